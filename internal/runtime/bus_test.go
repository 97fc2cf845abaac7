package runtime

import (
	"errors"
	"testing"

	errspkg "github.com/drblury/renderflow/internal/runtime/errors"
)

func TestBusDeliveryOrder(t *testing.T) {
	bus := NewBus(nil)

	var order []string
	if _, err := bus.On("x", func(any) { order = append(order, "first") }); err != nil {
		t.Fatalf("On failed: %v", err)
	}
	if _, err := bus.On("x", func(any) { order = append(order, "second") }); err != nil {
		t.Fatalf("On failed: %v", err)
	}
	if _, err := bus.On("x", func(any) { order = append(order, "third") }); err != nil {
		t.Fatalf("On failed: %v", err)
	}

	bus.Emit("x", nil)

	want := []string{"first", "second", "third"}
	if len(order) != len(want) {
		t.Fatalf("expected %d deliveries, got %d", len(want), len(order))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("delivery order = %v, want %v", order, want)
		}
	}
}

func TestBusPanicDoesNotStopLaterHandlers(t *testing.T) {
	bus := NewBus(nil)

	var panicked []string
	bus.onPanic = func(event string) { panicked = append(panicked, event) }

	secondRan := false
	bus.On("x", func(any) { panic("h1 exploded") })
	bus.On("x", func(any) { secondRan = true })

	bus.Emit("x", nil)

	if !secondRan {
		t.Fatal("expected second handler to run after first panicked")
	}
	if len(panicked) != 1 || panicked[0] != "x" {
		t.Fatalf("expected one recorded panic for event x, got %v", panicked)
	}
}

func TestBusOffRemovesExactRegistration(t *testing.T) {
	bus := NewBus(nil)

	calls := 0
	handler := func(any) { calls++ }

	sub1, _ := bus.On("x", handler)
	sub2, _ := bus.On("x", handler)

	// Same function registered twice: two distinct subscriptions, two calls.
	bus.Emit("x", nil)
	if calls != 2 {
		t.Fatalf("expected 2 calls for duplicate registration, got %d", calls)
	}

	bus.Off(sub1)
	bus.Emit("x", nil)
	if calls != 3 {
		t.Fatalf("expected 3 calls after removing one registration, got %d", calls)
	}

	bus.Off(sub2)
	bus.Off(sub2) // double removal is a no-op
	bus.Emit("x", nil)
	if calls != 3 {
		t.Fatalf("expected no calls after removing both registrations, got %d", calls)
	}
}

func TestBusOffNilIsNoop(t *testing.T) {
	bus := NewBus(nil)
	bus.Off(nil)
}

func TestBusPayloadDelivered(t *testing.T) {
	bus := NewBus(nil)

	var got any
	bus.On("progress", func(data any) { got = data })
	bus.Emit("progress", 42)

	if got != 42 {
		t.Fatalf("expected payload 42, got %v", got)
	}
}

func TestBusOnValidation(t *testing.T) {
	bus := NewBus(nil)

	if _, err := bus.On("", func(any) {}); !errors.Is(err, errspkg.ErrEventNameRequired) {
		t.Fatalf("expected ErrEventNameRequired, got %v", err)
	}
	if _, err := bus.On("x", nil); !errors.Is(err, errspkg.ErrHandlerRequired) {
		t.Fatalf("expected ErrHandlerRequired, got %v", err)
	}
}

func TestBusHandlerRegisteredDuringEmitSkipsCurrentEmit(t *testing.T) {
	bus := NewBus(nil)

	lateCalls := 0
	bus.On("x", func(any) {
		bus.On("x", func(any) { lateCalls++ })
	})

	bus.Emit("x", nil)
	if lateCalls != 0 {
		t.Fatalf("expected handler added during emit to be skipped, got %d calls", lateCalls)
	}

	bus.Emit("x", nil)
	if lateCalls != 1 {
		t.Fatalf("expected handler added during previous emit to run once, got %d", lateCalls)
	}
}
