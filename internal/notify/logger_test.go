package notify

import (
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWatermillLoggerNamesOnceAndCarriesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewWatermillLogger(zap.New(core)).With(watermill.LogFields{"topic": Topic})

	log.Info("subscribed", watermill.LogFields{"consumer": "hub"})
	log.Error("publish failed", errors.New("broker down"), nil)

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.LoggerName != "watermill" {
			t.Fatalf("expected logger name watermill, got %q", e.LoggerName)
		}
		if e.ContextMap()["topic"] != Topic {
			t.Fatalf("missing topic field: %v", e.ContextMap())
		}
	}
	if entries[0].ContextMap()["consumer"] != "hub" {
		t.Fatalf("missing call fields: %v", entries[0].ContextMap())
	}
	if entries[1].Level != zapcore.ErrorLevel || entries[1].ContextMap()["error"] != "broker down" {
		t.Fatalf("unexpected error entry: %+v", entries[1])
	}
}
