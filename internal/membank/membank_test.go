package membank

import (
	"testing"

	"github.com/born-ml/born/internal/devkind"
)

// TestSingleOSAllocationPerSize reproduces spec.md §8's MemoryBank testable
// property: after N allocate/deposit cycles of identical size, the number
// of underlying OS allocations is 1.
func TestSingleOSAllocationPerSize(t *testing.T) {
	b := newBank()
	dev := devkind.HostDevice

	for i := 0; i < 10; i++ {
		buf := b.Acquire(dev, 256)
		b.Deposit(dev, buf)
	}

	if got := b.OSAllocations(dev, 256); got != 1 {
		t.Fatalf("OS allocations for repeated 256-byte cycles = %d, want 1", got)
	}
}

func TestDistinctSizesAllocateIndependently(t *testing.T) {
	b := newBank()
	dev := devkind.HostDevice

	b.Acquire(dev, 64)
	b.Acquire(dev, 128)

	if got := b.OSAllocations(dev, 64); got != 1 {
		t.Fatalf("OS allocations for size 64 = %d, want 1", got)
	}
	if got := b.OSAllocations(dev, 128); got != 1 {
		t.Fatalf("OS allocations for size 128 = %d, want 1", got)
	}
}
