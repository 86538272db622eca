package device

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/born-ml/born/internal/membank"
)

// Elem is the set of scalar element types SyncMemory can hold (spec.md §3:
// "SyncMemory<R> (R ∈ {f32, f64, i32})").
type Elem interface {
	~float32 | ~float64 | ~int32
}

type side struct {
	buf       []byte
	allocated bool
	fresh     bool
}

// SyncMemory is a host/device buffer pair with freshness tracking. At any
// moment either nothing is fresh, exactly one side is fresh, or both sides
// are fresh and bit-equal (spec.md §3).
//
// Allocation of either side is deferred until first read or write.
type SyncMemory[T Elem] struct {
	totalElems        int
	innerDim          int
	preferredDevice   Device
	clearOnAllocation bool

	host  side
	accel side

	bank *membank.Bank
}

func elemSize[T Elem]() int {
	var z T
	return int(unsafe.Sizeof(z))
}

// NewSyncMemory allocates nothing yet; it only records shape/device intent.
// innerDim is the trailing dimension used to size the free-list bucket
// (conventionally the last axis of the owning Array).
func NewSyncMemory[T Elem](totalElems, innerDim int, preferred Device) *SyncMemory[T] {
	m := &SyncMemory[T]{
		totalElems:      totalElems,
		innerDim:        innerDim,
		preferredDevice: preferred,
		bank:            membank.Global(),
	}
	runtime.SetFinalizer(m, (*SyncMemory[T]).release)
	return m
}

func (m *SyncMemory[T]) byteSize() int {
	return m.totalElems * elemSize[T]()
}

// release returns any allocated buffers to the MemoryBank. Invoked by the
// GC finalizer when the last handle to this memory is dropped (spec.md §5:
// "when the last handle is dropped, the buffer is deposited into the
// MemoryBank, not freed to the OS").
func (m *SyncMemory[T]) release() {
	if m.host.allocated {
		m.bank.Deposit(HostDevice, m.host.buf)
		m.host.allocated = false
	}
	if m.accel.allocated {
		m.bank.Deposit(m.accelDevice(), m.accel.buf)
		m.accel.allocated = false
	}
}

func (m *SyncMemory[T]) accelDevice() Device {
	if m.preferredDevice.Kind == Host {
		return AccelDevice(0)
	}
	return m.preferredDevice
}

func (m *SyncMemory[T]) sideFor(d Device) *side {
	if d.Kind == Host {
		return &m.host
	}
	return &m.accel
}

func (m *SyncMemory[T]) deviceFor(s *side) Device {
	if s == &m.host {
		return HostDevice
	}
	return m.accelDevice()
}

func (m *SyncMemory[T]) ensureAllocated(s *side) {
	if s.allocated {
		return
	}
	s.buf = m.bank.Acquire(m.deviceFor(s), m.byteSize())
	if m.clearOnAllocation {
		for i := range s.buf {
			s.buf[i] = 0
		}
	}
	s.allocated = true
}

func (m *SyncMemory[T]) typed(s *side) []T {
	if m.totalElems == 0 {
		return nil
	}
	//nolint:gosec // zero-copy reinterpretation of a bank-owned byte buffer, sized by totalElems
	return unsafe.Slice((*T)(unsafe.Pointer(&s.buf[0])), m.totalElems)
}

// transferTo copies data from whichever side is fresh into dst, allocating
// dst first if needed. If the other side is not fresh, dst keeps its
// current contents (zeros when clear-on-allocation is set).
func (m *SyncMemory[T]) transferTo(dst *side) {
	m.ensureAllocated(dst)
	src := &m.host
	if dst == &m.host {
		src = &m.accel
	}
	if !src.fresh {
		if !dst.fresh {
			// Nothing is fresh anywhere: leave dst as freshly-(maybe)cleared
			// zeros, matching lazy allocation semantics.
			return
		}
		return
	}
	copy(dst.buf, src.buf[:len(dst.buf)])
}

// readSide returns dst data for reading: allocates lazily, pulls a fresh
// copy across from the other side if dst is stale, and marks dst fresh
// without touching the other side's freshness.
func (m *SyncMemory[T]) readSide(dst *side) []T {
	m.ensureAllocated(dst)
	if !dst.fresh {
		m.transferTo(dst)
		dst.fresh = true
	}
	return m.typed(dst)
}

// writeSide returns dst data for mutation: allocates lazily, pulls a fresh
// copy across if needed (so partial writes don't lose prior data), marks
// dst fresh and the other side stale.
func (m *SyncMemory[T]) writeSide(dst *side) []T {
	data := m.readSide(dst)
	other := &m.accel
	if dst == &m.accel {
		other = &m.host
	}
	other.fresh = false
	return data
}

// CPUData returns a read view of the host-side data, transferring from the
// device side if the host side is stale.
func (m *SyncMemory[T]) CPUData() []T { return m.readSide(&m.host) }

// DeviceData returns a read view of the accelerator-side data.
func (m *SyncMemory[T]) DeviceData() []T { return m.readSide(&m.accel) }

// MutableCPUData returns a write view of the host-side data and marks the
// device side stale.
func (m *SyncMemory[T]) MutableCPUData() []T { return m.writeSide(&m.host) }

// MutableDeviceData returns a write view of the accelerator-side data and
// marks the host side stale.
func (m *SyncMemory[T]) MutableDeviceData() []T { return m.writeSide(&m.accel) }

// Clear zero-fills the preferred side and marks only it fresh.
func (m *SyncMemory[T]) Clear() {
	dst := m.sideFor(m.preferredDevice)
	m.ensureAllocated(dst)
	for i := range dst.buf {
		dst.buf[i] = 0
	}
	dst.fresh = true
	other := &m.accel
	if dst == &m.accel {
		other = &m.host
	}
	other.fresh = false
}

// LazyClear marks the buffer to be zero-filled on first allocation. If a
// side is already allocated, it is cleared immediately.
func (m *SyncMemory[T]) LazyClear() {
	m.clearOnAllocation = true
	for _, s := range []*side{&m.host, &m.accel} {
		if s.allocated {
			for i := range s.buf {
				s.buf[i] = 0
			}
		}
	}
}

// CopyFrom copies the fresh data of other into m, allocating m's preferred
// side and transferring across devices if required.
func (m *SyncMemory[T]) CopyFrom(other *SyncMemory[T]) error {
	if other.totalElems != m.totalElems {
		return fmt.Errorf("sync memory copy_from: element count mismatch: %d vs %d", m.totalElems, other.totalElems)
	}
	var src []T
	switch {
	case other.host.fresh:
		src = other.CPUData()
	case other.accel.fresh:
		src = other.DeviceData()
	default:
		// Nothing fresh on the source: nothing to copy.
		return nil
	}
	dst := m.writeSide(m.sideFor(m.preferredDevice))
	copy(dst, src)
	return nil
}

// TotalElems returns the element count.
func (m *SyncMemory[T]) TotalElems() int { return m.totalElems }

// InnerDim returns the trailing dimension used for bucket sizing.
func (m *SyncMemory[T]) InnerDim() int { return m.innerDim }

// PreferredDevice returns the preferred device.
func (m *SyncMemory[T]) PreferredDevice() Device { return m.preferredDevice }

// FreshSides reports which sides are currently fresh, for invariant tests.
func (m *SyncMemory[T]) FreshSides() (hostFresh, accelFresh bool) {
	return m.host.fresh, m.accel.fresh
}
