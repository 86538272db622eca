// Package membank implements a process-wide free list of released tensor
// buffers, keyed by device and byte size, so that SyncMemory allocation
// and deallocation of same-sized buffers amortizes to a single underlying
// allocation.
package membank

import (
	"sync"

	"github.com/born-ml/born/internal/devkind"
)

type key struct {
	dev  devkind.Device
	size int
}

// Bank is a process-wide size-keyed free list of byte buffers. The zero
// value is not usable; use Global().
type Bank struct {
	mu      sync.Mutex
	buckets map[key][][]byte

	// stats, exposed for the MemoryBank testable property in spec.md §8
	// ("after N allocate/deposit cycles of identical size, the number of
	// underlying OS allocations is 1").
	osAllocs map[key]int
}

func newBank() *Bank {
	return &Bank{
		buckets:  make(map[key][][]byte),
		osAllocs: make(map[key]int),
	}
}

var global = newBank()

// Global returns the process-wide MemoryBank instance.
func Global() *Bank { return global }

// Acquire returns a byte buffer of exactly size bytes for dev, reusing a
// deposited one if the bucket is non-empty, else allocating fresh.
func (b *Bank) Acquire(dev devkind.Device, size int) []byte {
	k := key{dev, size}

	b.mu.Lock()
	defer b.mu.Unlock()

	bucket := b.buckets[k]
	if n := len(bucket); n > 0 {
		buf := bucket[n-1]
		b.buckets[k] = bucket[:n-1]
		return buf
	}

	b.osAllocs[k]++
	return make([]byte, size)
}

// Deposit returns buf to the free list for later reuse under (dev, len(buf)).
func (b *Bank) Deposit(dev devkind.Device, buf []byte) {
	if buf == nil {
		return
	}
	k := key{dev, len(buf)}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.buckets[k] = append(b.buckets[k], buf)
}

// OSAllocations returns how many times Acquire actually allocated fresh
// memory (as opposed to reusing a deposited buffer) for (dev, size). Test
// hook for the free-list amortization property.
func (b *Bank) OSAllocations(dev devkind.Device, size int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.osAllocs[key{dev, size}]
}

// Reset clears the bank. Test-only: production code never needs to drop
// deposited buffers.
func (b *Bank) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buckets = make(map[key][][]byte)
	b.osAllocs = make(map[key]int)
}
