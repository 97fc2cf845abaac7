package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	errspkg "github.com/drblury/renderflow/internal/runtime/errors"
)

func newTestWatcher(dialer *fakeDialer) (*Watcher, *Manager) {
	m := NewManager(NewBus(nil), dialer, nil)
	captureTimers(m)
	w := NewWatcher(m, "ws://push.example/wsRedis", ChannelConfig{}, nil)
	return w, m
}

func TestWatcherValidation(t *testing.T) {
	w, _ := newTestWatcher(&fakeDialer{})

	if err := w.StartWatching(context.Background(), "", func(*ProgressEvent) {}); !errors.Is(err, errspkg.ErrClientIDRequired) {
		t.Fatalf("expected ErrClientIDRequired, got %v", err)
	}
	if err := w.StartWatching(context.Background(), "c1", nil); !errors.Is(err, errspkg.ErrHandlerRequired) {
		t.Fatalf("expected ErrHandlerRequired, got %v", err)
	}
	if w.Watching() {
		t.Fatal("failed start must not mark the watcher active")
	}
}

func TestWatcherStartOpensKeyedChannel(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{conn}}
	w, m := newTestWatcher(dialer)

	opened := collectEvents(t, m.Bus(), EventOpen)
	progress := make(chan *ProgressEvent, 8)

	if err := w.StartWatching(context.Background(), "client-1", func(ev *ProgressEvent) {
		progress <- ev
	}); err != nil {
		t.Fatalf("StartWatching failed: %v", err)
	}
	waitEvent(t, opened, EventOpen)

	urls := dialer.dialedURLs()
	if len(urls) != 1 || urls[0] != "ws://push.example/wsRedis?key=client-1" {
		t.Fatalf("dialed URLs = %v, want push endpoint keyed by client id", urls)
	}
	if !w.Watching() || w.ClientID() != "client-1" {
		t.Fatalf("Watching=%v ClientID=%q, want active watch on client-1", w.Watching(), w.ClientID())
	}

	conn.pushFrame(`{"progress":55}`)
	select {
	case ev := <-progress:
		if ev.Percent != 55 {
			t.Fatalf("Percent = %d, want 55", ev.Percent)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for progress callback")
	}
}

func TestWatcherStartIsIdempotentForSameID(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{conn}}
	w, m := newTestWatcher(dialer)

	opened := collectEvents(t, m.Bus(), EventOpen)
	handler := func(*ProgressEvent) {}

	if err := w.StartWatching(context.Background(), "c1", handler); err != nil {
		t.Fatalf("StartWatching failed: %v", err)
	}
	waitEvent(t, opened, EventOpen)

	if err := w.StartWatching(context.Background(), "c1", handler); err != nil {
		t.Fatalf("repeated StartWatching failed: %v", err)
	}
	if dialer.dialCount() != 1 {
		t.Fatalf("expected a single dial, got %d", dialer.dialCount())
	}
}

func TestWatcherSwitchStopsPreviousWatch(t *testing.T) {
	first := newFakeConn()
	second := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{first, second}}
	w, m := newTestWatcher(dialer)

	opened := collectEvents(t, m.Bus(), EventOpen)

	if err := w.StartWatching(context.Background(), "c1", func(*ProgressEvent) {}); err != nil {
		t.Fatalf("StartWatching(c1) failed: %v", err)
	}
	waitEvent(t, opened, EventOpen)

	if err := w.StartWatching(context.Background(), "c2", func(*ProgressEvent) {}); err != nil {
		t.Fatalf("StartWatching(c2) failed: %v", err)
	}
	waitEvent(t, opened, EventOpen)

	if codes := first.closeCodes(); len(codes) != 1 || codes[0] != CloseNormal {
		t.Fatalf("previous channel close codes = %v, want one manual close", codes)
	}
	urls := dialer.dialedURLs()
	if len(urls) != 2 || urls[1] != "ws://push.example/wsRedis?key=c2" {
		t.Fatalf("dialed URLs = %v, want second dial keyed by c2", urls)
	}
	if w.ClientID() != "c2" {
		t.Fatalf("ClientID = %q, want c2", w.ClientID())
	}
}

func TestWatcherStopRemovesExactlyItsRegistrations(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{conn}}
	w, m := newTestWatcher(dialer)

	opened := collectEvents(t, m.Bus(), EventOpen)
	progress := make(chan *ProgressEvent, 8)

	// An unrelated subscriber must survive the stop.
	unrelated := make(chan struct{}, 8)
	if _, err := m.Bus().On(EventTaskProgress, func(any) { unrelated <- struct{}{} }); err != nil {
		t.Fatalf("On failed: %v", err)
	}

	if err := w.StartWatching(context.Background(), "c1", func(ev *ProgressEvent) {
		progress <- ev
	}); err != nil {
		t.Fatalf("StartWatching failed: %v", err)
	}
	waitEvent(t, opened, EventOpen)

	if err := w.StopWatching(); err != nil {
		t.Fatalf("StopWatching failed: %v", err)
	}
	if w.Watching() {
		t.Fatal("expected inactive watch after stop")
	}
	if codes := conn.closeCodes(); len(codes) != 1 || codes[0] != CloseNormal {
		t.Fatalf("close codes = %v, want one manual close", codes)
	}

	// StopWatching again is a no-op.
	if err := w.StopWatching(); err != nil {
		t.Fatalf("second StopWatching failed: %v", err)
	}
	if codes := conn.closeCodes(); len(codes) != 1 {
		t.Fatalf("second stop must not close again, codes = %v", codes)
	}

	m.Bus().Emit(EventTaskProgress, &ProgressEvent{Percent: 10})
	select {
	case <-unrelated:
	case <-time.After(time.Second):
		t.Fatal("unrelated subscriber was removed by StopWatching")
	}
	select {
	case <-progress:
		t.Fatal("watch progress handler still registered after stop")
	case <-time.After(50 * time.Millisecond):
	}
}
