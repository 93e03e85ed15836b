// Package observability records per-status-code request counters and
// latency, keeping the zero-overhead-when-disabled shape of the teacher's
// handler-keyed performance monitor but keyed by HTTP status instead of a
// route handler name, since this engine serves files rather than
// dispatching to named handlers.
package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

// StatusMetrics accumulates counts and latency for one HTTP status code.
type StatusMetrics struct {
	Count         atomic.Uint64
	TotalDuration atomic.Uint64 // nanoseconds
}

// Monitor is a zero-overhead-when-disabled request monitor: RecordRequest
// is a single atomic.Bool load when disabled.
type Monitor struct {
	enabled atomic.Bool
	byCode  sync.Map // int status -> *StatusMetrics
}

// NewMonitor creates an enabled Monitor.
func NewMonitor() *Monitor {
	m := &Monitor{}
	m.enabled.Store(true)
	return m
}

// SetEnabled toggles recording at runtime.
func (m *Monitor) SetEnabled(enabled bool) { m.enabled.Store(enabled) }

// RecordRequest records one completed request's status and service time.
func (m *Monitor) RecordRequest(status int, duration time.Duration) {
	if !m.enabled.Load() {
		return
	}

	val, _ := m.byCode.LoadOrStore(status, &StatusMetrics{})
	sm := val.(*StatusMetrics)
	sm.Count.Add(1)
	sm.TotalDuration.Add(uint64(duration.Nanoseconds()))
}

// Snapshot returns the current count and average latency per status code.
func (m *Monitor) Snapshot() map[int]StatusSnapshot {
	out := make(map[int]StatusSnapshot)
	m.byCode.Range(func(key, value any) bool {
		status := key.(int)
		sm := value.(*StatusMetrics)
		count := sm.Count.Load()
		snap := StatusSnapshot{Count: count}
		if count > 0 {
			snap.AvgDuration = time.Duration(sm.TotalDuration.Load() / count)
		}
		out[status] = snap
		return true
	})
	return out
}

// StatusSnapshot is one status code's point-in-time counters.
type StatusSnapshot struct {
	Count       uint64
	AvgDuration time.Duration
}
