package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
)

type Env struct {
	AppAddr  string
	GinMode  string
	LogLevel string
	Store    string

	DBDSN      string
	DBUser     string
	DBPassword string
	DBHost     string
	DBName     string

	JWTSecret    string
	TokenTTL     time.Duration
	CancelCutoff time.Duration
	SweepEvery   time.Duration

	CORSAllowedOrigins []string

	NotifyBroker string
	RedisAddr    string
	KafkaBrokers []string

	AdminEmail    string
	AdminPassword string
}

// LoadEnv reads .env when present, then the process environment.
func LoadEnv() (Env, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	env := Env{
		AppAddr:            getenv("APP_ADDR", ":8080"),
		GinMode:            getenv("GIN_MODE", ""),
		LogLevel:           getenv("LOG_LEVEL", "info"),
		Store:              strings.ToLower(getenv("STORE", StoreMySQL)),
		DBDSN:              getenv("DB_DSN", ""),
		DBUser:             getenv("DB_USER", "root"),
		DBPassword:         os.Getenv("DB_PASSWORD"),
		DBHost:             getenv("DB_HOST", "127.0.0.1:3306"),
		DBName:             getenv("DB_NAME", "loadmatch"),
		JWTSecret:          getenv("JWT_SECRET", ""),
		CORSAllowedOrigins: splitList(getenv("CORS_ALLOWED_ORIGINS", "*")),
		NotifyBroker:       strings.ToLower(getenv("NOTIFY_BROKER", "gochannel")),
		RedisAddr:          getenv("REDIS_ADDR", ""),
		KafkaBrokers:       splitList(getenv("KAFKA_BROKERS", "")),
		AdminEmail:         getenv("ADMIN_EMAIL", ""),
		AdminPassword:      os.Getenv("ADMIN_PASSWORD"),
	}

	var err error
	if env.TokenTTL, err = duration("TOKEN_TTL", 24*time.Hour); err != nil {
		return env, err
	}
	if env.CancelCutoff, err = duration("CANCEL_CUTOFF", 24*time.Hour); err != nil {
		return env, err
	}
	if env.SweepEvery, err = duration("SWEEP_INTERVAL", time.Minute); err != nil {
		return env, err
	}

	switch env.Store {
	case StoreMySQL, StoreMemory:
	default:
		return env, fmt.Errorf("STORE must be %q or %q, got %q", StoreMySQL, StoreMemory, env.Store)
	}
	// the memory store serializes every transaction behind one lock
	if env.Store == StoreMemory && env.GinMode == "release" {
		return env, fmt.Errorf("STORE=%s is for development and tests only, not GIN_MODE=release", StoreMemory)
	}
	if env.JWTSecret == "" {
		return env, fmt.Errorf("JWT_SECRET is required")
	}
	if env.CancelCutoff < 0 {
		return env, fmt.Errorf("CANCEL_CUTOFF must not be negative")
	}
	return env, nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
