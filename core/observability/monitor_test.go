package observability

import (
	"testing"
	"time"
)

func TestRecordRequestAccumulatesPerStatus(t *testing.T) {
	m := NewMonitor()

	m.RecordRequest(200, 10*time.Millisecond)
	m.RecordRequest(200, 30*time.Millisecond)
	m.RecordRequest(404, 5*time.Millisecond)

	snap := m.Snapshot()

	got200, ok := snap[200]
	if !ok || got200.Count != 2 {
		t.Fatalf("status 200 snapshot = %+v, ok=%v, want Count=2", got200, ok)
	}
	if got200.AvgDuration != 20*time.Millisecond {
		t.Fatalf("status 200 AvgDuration = %v, want 20ms", got200.AvgDuration)
	}

	got404, ok := snap[404]
	if !ok || got404.Count != 1 || got404.AvgDuration != 5*time.Millisecond {
		t.Fatalf("status 404 snapshot = %+v, ok=%v, want Count=1 AvgDuration=5ms", got404, ok)
	}
}

func TestSetEnabledFalseDropsRecords(t *testing.T) {
	m := NewMonitor()
	m.SetEnabled(false)

	m.RecordRequest(500, time.Millisecond)

	if snap := m.Snapshot(); len(snap) != 0 {
		t.Fatalf("snapshot = %+v, want empty while disabled", snap)
	}
}

func TestSnapshotEmptyWhenNothingRecorded(t *testing.T) {
	m := NewMonitor()
	if snap := m.Snapshot(); len(snap) != 0 {
		t.Fatalf("snapshot = %+v, want empty", snap)
	}
}
