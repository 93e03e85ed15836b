// Package pools carries the one ambient runtime-tuning concern that
// survives from the object-pool-centric design: since Jobs and the
// Workers' scratch buffers are now allocated once up front (see core/objpool) and
// not on the steady-state hot path, a less aggressive GC target reduces
// pause frequency without the risk of unbounded heap growth a busier
// allocator would carry.
package pools

import (
	"runtime"
	"runtime/debug"
)

// GCConfig holds the GC tuning parameters applied at startup.
type GCConfig struct {
	// GOGC sets the garbage collection target percentage; 0 leaves the
	// runtime default in place.
	GOGC int

	// WarmBytes is allocated and released once at startup to raise the
	// heap's initial baseline, so the object pools' one-time allocation
	// doesn't trigger an early GC cycle.
	WarmBytes int64
}

// ForCapacity sizes GCConfig's warm-up as the Manager's connection
// capacity multiplied by the per-transfer buffer size. Workers allocate
// one such buffer each, not one per connection, so this is larger than
// what the pools and Workers actually allocate.
func ForCapacity(maxConnections, perTransferBufferBytes int) GCConfig {
	warm := int64(maxConnections) * int64(perTransferBufferBytes)
	return GCConfig{GOGC: 150, WarmBytes: warm}
}

// Apply installs cfg's GC target and performs the warm-up allocation.
func Apply(cfg GCConfig) {
	if cfg.GOGC > 0 {
		debug.SetGCPercent(cfg.GOGC)
	}
	if cfg.WarmBytes > 0 {
		runtime.GC()
		_ = make([]byte, cfg.WarmBytes)
	}
}
