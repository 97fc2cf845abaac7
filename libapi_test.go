package renderflow

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestServiceExports(t *testing.T) {
	conf := &Config{
		PushURL:      "ws://push.example/wsRedis",
		QueueBaseURL: "http://queue.example",
	}
	if err := ValidateConfig(conf); err != nil {
		t.Fatalf("ValidateConfig: %v", err)
	}

	log := NewSlogServiceLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
	svc, err := TryNewService(conf, log, context.Background(), ServiceDependencies{
		Registerer: prometheus.NewRegistry(),
	})
	if err != nil {
		t.Fatalf("TryNewService: %v", err)
	}
	defer svc.Close()

	if svc.Channel().State() != StateDisconnected {
		t.Fatalf("State = %v, want StateDisconnected", svc.Channel().State())
	}
	if err := svc.Channel().Send("ping"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Send before open = %v, want ErrNotConnected", err)
	}
}

func TestValidationExports(t *testing.T) {
	if err := ValidateConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}

	res := (&Service{}).Queue
	_ = res // compile-time check that the accessor is exported

	if got := NewIDGenerator().ClientID(); got == "" {
		t.Fatal("expected non-empty client id")
	}
	if got := CreateULID(); len(got) != 26 {
		t.Fatalf("ULID length = %d, want 26", len(got))
	}
}

func TestCodecExports(t *testing.T) {
	payload := map[string]any{"type": "str", "value": 42}
	data, err := Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded map[string]any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded["type"] != "str" {
		t.Fatalf("round trip lost type field: %v", decoded)
	}
}

func TestSinkRegistryExports(t *testing.T) {
	if !DefaultSinkRegistry.Has("nonexistent") {
		// Build for an unregistered sink must name it in the error.
		_, err := BuildSink(context.Background(), &Config{ForwarderSystem: "nonexistent"}, nil)
		if err == nil {
			t.Fatal("expected error for unregistered sink")
		}
	}

	caps := GetSinkCapabilities("nonexistent")
	if caps.SupportsReliableDelivery() {
		t.Fatal("unknown sink must not claim reliable delivery")
	}
}
