package telemetry

import (
	"context"
	"testing"
)

func TestSetupDisabled(t *testing.T) {
	for _, opts := range []Options{
		{ServiceName: "arbor", Enabled: true},
		{ServiceName: "arbor", Endpoint: "http://localhost:4318", Enabled: false},
	} {
		shutdown, err := Setup(context.Background(), opts)
		if err != nil {
			t.Fatalf("Setup(%+v) = %v", opts, err)
		}
		if err := shutdown(context.Background()); err != nil {
			t.Errorf("shutdown = %v", err)
		}
	}
}

func TestSetupEnabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), Options{
		ServiceName: "arbor-test",
		Endpoint:    "http://127.0.0.1:1/v1/traces",
		Enabled:     true,
	})
	if err != nil {
		t.Fatal(err)
	}
	// Nothing was recorded, so shutdown has nothing to export.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := shutdown(ctx); err != nil {
		t.Errorf("shutdown = %v", err)
	}
}
