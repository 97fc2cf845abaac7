package runtime

import (
	"testing"
	"time"
)

func TestResourceTrackerSnapshot(t *testing.T) {
	tracker := newResourceTracker()

	snap1 := tracker.Snapshot()
	if snap1.CPUPercent != 0 {
		t.Errorf("first snapshot CPU percent = %f, want 0", snap1.CPUPercent)
	}
	if snap1.MemoryBytes == 0 {
		t.Error("expected non-zero memory bytes")
	}
	if snap1.Goroutines == 0 {
		t.Error("expected non-zero goroutine count")
	}

	time.Sleep(10 * time.Millisecond)

	snap2 := tracker.Snapshot()
	if snap2.CPUPercent < 0 {
		t.Errorf("CPU percent = %f, want >= 0", snap2.CPUPercent)
	}
}

func TestResourceTrackerNil(t *testing.T) {
	var tracker *resourceTracker

	snap := tracker.Snapshot()
	if snap.CPUPercent != 0 || snap.MemoryBytes != 0 || snap.Goroutines != 0 {
		t.Errorf("nil tracker snapshot = %+v, want zero", snap)
	}
}
