// Package mat implements the user-facing differentiable tensor: a named
// (value, gradient) pair with a lazily-allocated gradient (spec.md §3-4.3).
package mat

import (
	"sync/atomic"

	"github.com/born-ml/born/internal/device"
	"github.com/born-ml/born/internal/ndarray"
)

var nextID uint64

// Mat is a differentiable tensor: a value Array w and a lazily-allocated
// gradient Array dw of the same shape. Identity is by ID, assigned at
// construction; two Mats may share w with distinct dw ("encapsulate", used
// by Hogwild workers).
type Mat struct {
	Name string
	id   uint64
	w    *ndarray.Array[float32]
	dw   *ndarray.Array[float32]
}

// New wraps an existing value array as a Mat. dw is left unallocated.
func New(name string, w *ndarray.Array[float32]) *Mat {
	return &Mat{Name: name, id: atomic.AddUint64(&nextID, 1), w: w}
}

// Zeros creates a Mat whose value is a freshly zeroed array of shape.
func Zeros(name string, shape ndarray.Shape) *Mat {
	return New(name, ndarray.Zeros[float32](shape))
}

// ID returns the identity used to key solver accumulators and dedupe
// shared parameters across Hogwild worker shadows.
func (m *Mat) ID() uint64 { return m.id }

// W returns the value array.
func (m *Mat) W() *ndarray.Array[float32] { return m.w }

// Shape returns the shape of the value array.
func (m *Mat) Shape() ndarray.Shape { return m.w.Shape() }

// HasGrad reports whether dw has been allocated yet.
func (m *Mat) HasGrad() bool { return m.dw != nil }

// DW returns the gradient array, allocating and zero-initializing it on
// first use (spec.md §4.3: "dw is allocated lazily on first gradient use").
func (m *Mat) DW() *ndarray.Array[float32] {
	if m.dw == nil {
		m.dw = ndarray.Zeros[float32](m.w.Shape())
	}
	return m.dw
}

// AddToGrad accumulates contribution into dw, allocating it if necessary.
// This is the single entry point every op's backward closure uses to push
// a gradient contribution upstream.
func (m *Mat) AddToGrad(contribution *ndarray.Array[float32]) {
	if err := m.DW().AddAssign(contribution); err != nil {
		panic(err)
	}
}

// ZeroGrad resets dw to zero in place (solvers call this after a step).
// A no-op if dw was never allocated.
func (m *Mat) ZeroGrad() {
	if m.dw == nil {
		return
	}
	m.dw.MulAssignScalar(0)
}

// SeedGradient ensures dw is allocated and adds seed to every element
// (spec.md §4.3). A loss is typically seeded with 1.
func (m *Mat) SeedGradient(seed float32) {
	m.DW().AddAssignScalar(seed)
}

// Encapsulate constructs a worker-private Mat that aliases this Mat's
// value memory (same SyncMemory handle, so writes by any worker's solver
// are visible to all) but owns a fresh, private gradient array. This is
// the "Hogwild worker shadow" from spec.md §4.3/§9: workers never share
// Mat objects, only the underlying w buffer.
func (m *Mat) Encapsulate() *Mat {
	shared := &ndarray.Array[float32]{}
	*shared = *m.w // shallow copy: same memory handle, same view geometry
	return &Mat{
		Name: m.Name,
		id:   atomic.AddUint64(&nextID, 1),
		w:    shared,
	}
}

// Device returns the device the value array's memory prefers.
func (m *Mat) Device() device.Device { return m.w.Memory().PreferredDevice() }
