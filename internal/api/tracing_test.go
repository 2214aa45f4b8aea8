package api

import (
	"context"
	"testing"
	"time"

	"github.com/Armour007/grc-backend/internal/config"
	"github.com/Armour007/grc-backend/pkg/logger"
)

func TestSetupOTel(t *testing.T) {
	shutdown, on := SetupOTel(config.TelemetryConfig{}, "grc-test", logger.Nop())
	if on {
		t.Fatal("tracing enabled without telemetry.enabled")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("noop shutdown: %v", err)
	}

	// nothing is exported, so an unreachable collector is never dialled
	shutdown, on = SetupOTel(config.TelemetryConfig{Enabled: true, Endpoint: "127.0.0.1:1"}, "grc-test", logger.Nop())
	if !on {
		t.Fatal("tracing not enabled")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
