package tracing

import (
	"context"
	"testing"

	"github.com/nextlevelbuilder/scangate/internal/config"
)

func TestInstallNoopWhenEndpointEmpty(t *testing.T) {
	shutdown, err := Install(context.Background(), config.TracingConfig{})
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("no-op shutdown returned error: %v", err)
	}
}

func TestInstallBuildsOTLPExporterWithoutDialing(t *testing.T) {
	// otlptracegrpc.New with WithInsecure and no blocking dial option
	// should not attempt a network round-trip, matching how the host's
	// otelexport.New is used lazily at startup.
	shutdown, err := Install(context.Background(), config.TracingConfig{
		OTLPEndpoint: "127.0.0.1:4317",
		Insecure:     true,
		ServiceName:  "scangate-test",
	})
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}
