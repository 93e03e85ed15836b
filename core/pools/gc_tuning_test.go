package pools

import "testing"

func TestForCapacityScalesWarmBytesToPoolFootprint(t *testing.T) {
	cfg := ForCapacity(255, 1<<20)

	want := int64(255) * int64(1<<20)
	if cfg.WarmBytes != want {
		t.Fatalf("WarmBytes = %d, want %d", cfg.WarmBytes, want)
	}
	if cfg.GOGC <= 0 {
		t.Fatalf("GOGC = %d, want a positive percentage", cfg.GOGC)
	}
}

func TestForCapacityZeroConnectionsYieldsNoWarmup(t *testing.T) {
	cfg := ForCapacity(0, 1<<20)
	if cfg.WarmBytes != 0 {
		t.Fatalf("WarmBytes = %d, want 0", cfg.WarmBytes)
	}
}

func TestApplyDoesNotPanicOnZeroConfig(t *testing.T) {
	Apply(GCConfig{})
}
