package telemetry

import (
	"context"
	"testing"

	"github.com/e2dconnect/e2d/internal/config"
)

func TestSetupDisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.OTelConfig{Enabled: true})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("noop shutdown: %v", err)
	}
}

func TestSetupDisabledFlag(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.OTelConfig{Endpoint: "http://localhost:4318", Enabled: false})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("noop shutdown: %v", err)
	}
}

func TestTracerStartsSpans(t *testing.T) {
	_, span := Tracer().Start(context.Background(), "test")
	defer span.End()
	if span == nil {
		t.Fatal("expected span")
	}
}
