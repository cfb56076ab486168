package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadEnvDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORE", "")
	t.Setenv("APP_ADDR", "")
	t.Setenv("CANCEL_CUTOFF", "")
	t.Setenv("KAFKA_BROKERS", "")

	env, err := LoadEnv()
	if err != nil {
		t.Fatalf("LoadEnv returned error: %v", err)
	}
	if env.AppAddr != ":8080" || env.Store != StoreMySQL {
		t.Fatalf("unexpected defaults: %+v", env)
	}
	if env.CancelCutoff != 24*time.Hour || env.TokenTTL != 24*time.Hour {
		t.Fatalf("unexpected durations: cutoff=%s ttl=%s", env.CancelCutoff, env.TokenTTL)
	}
	if len(env.KafkaBrokers) != 0 {
		t.Fatalf("expected no kafka brokers, got %v", env.KafkaBrokers)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORE", "Memory")
	t.Setenv("GIN_MODE", "")
	t.Setenv("CANCEL_CUTOFF", "90m")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	env, err := LoadEnv()
	if err != nil {
		t.Fatalf("LoadEnv returned error: %v", err)
	}
	if env.Store != StoreMemory || env.CancelCutoff != 90*time.Minute {
		t.Fatalf("unexpected env: %+v", env)
	}
	if len(env.KafkaBrokers) != 2 || env.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("unexpected brokers %v", env.KafkaBrokers)
	}
	if len(env.CORSAllowedOrigins) != 2 {
		t.Fatalf("unexpected origins %v", env.CORSAllowedOrigins)
	}
}

func TestLoadEnvRejectsBadValues(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := LoadEnv(); err == nil {
		t.Fatalf("expected error without JWT_SECRET")
	}
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORE", "postgres")
	if _, err := LoadEnv(); err == nil {
		t.Fatalf("expected error for unknown store")
	}
	t.Setenv("STORE", "memory")
	t.Setenv("GIN_MODE", "release")
	if _, err := LoadEnv(); err == nil || !strings.Contains(err.Error(), "development") {
		t.Fatalf("expected memory store to be refused in release mode, got %v", err)
	}
	t.Setenv("GIN_MODE", "")
	t.Setenv("SWEEP_INTERVAL", "soon")
	if _, err := LoadEnv(); err == nil {
		t.Fatalf("expected error for bad duration")
	}
}

func TestDSN(t *testing.T) {
	env := Env{DBUser: "app", DBPassword: "pw", DBHost: "db:3306", DBName: "loadmatch"}
	dsn := env.DSN()
	if !strings.HasPrefix(dsn, "app:pw@tcp(db:3306)/loadmatch?") || !strings.Contains(dsn, "parseTime=true") {
		t.Fatalf("unexpected dsn %q", dsn)
	}
	env.DBDSN = "custom"
	if env.DSN() != "custom" {
		t.Fatalf("DB_DSN must win")
	}
}
