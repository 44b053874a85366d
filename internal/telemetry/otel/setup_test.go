package otel

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestNewProviders_EmptyEndpointIsNoop(t *testing.T) {
	ctx := context.Background()

	for _, endpoint := range []string{"", "   "} {
		providers, err := NewProviders(ctx, endpoint, "chromebook-cache", false)
		if err != nil {
			t.Fatalf("NewProviders(%q): %v", endpoint, err)
		}
		if providers.TracerProvider == nil || providers.MeterProvider == nil || providers.LoggerProvider == nil {
			t.Fatalf("NewProviders(%q): all providers should be non-nil", endpoint)
		}
		if err := providers.Shutdown(ctx); err != nil {
			t.Errorf("no-op shutdown returned %v", err)
		}
	}
}

func TestNewProviders_InvalidEndpoint(t *testing.T) {
	ctx := context.Background()

	for _, endpoint := range []string{"://invalid", "http://[invalid", "http://"} {
		if _, err := NewProviders(ctx, endpoint, "chromebook-cache", false); err == nil {
			t.Errorf("NewProviders(%q): expected error", endpoint)
		}
	}
}

func TestSetGlobal(t *testing.T) {
	providers, err := NewProviders(context.Background(), "", "chromebook-cache", false)
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}

	oldTP := otel.GetTracerProvider()
	oldMP := otel.GetMeterProvider()
	defer func() {
		otel.SetTracerProvider(oldTP)
		otel.SetMeterProvider(oldMP)
	}()

	providers.SetGlobal()

	if otel.GetTracerProvider() == oldTP {
		t.Error("TracerProvider should be replaced")
	}
	if otel.GetMeterProvider() == oldMP {
		t.Error("MeterProvider should be replaced")
	}
}

func TestSetGlobal_NilProvidersDoNotPanic(t *testing.T) {
	p := &Providers{Shutdown: func(context.Context) error { return nil }}
	p.SetGlobal()
}
