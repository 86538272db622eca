// Package ndarray implements the strided, device-aware n-dimensional array
// described in spec.md §3-4.2: shape, strides, offset and a broadcast mask
// over a shared SyncMemory handle, with slicing, axis-plucking, transpose,
// broadcasting and in-place arithmetic.
package ndarray

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/born/internal/device"
	"github.com/born-ml/born/internal/errs"
)

// Array is a strided view over a shared SyncMemory buffer.
type Array[T device.Elem] struct {
	shape         Shape
	strides       []int // nil/empty means "row-major contiguous, compute on demand"
	offset        int
	broadcastMask []bool // per-axis; nil means no axis is broadcastable
	memory        *device.SyncMemory[T]
}

// Shape returns the array's logical shape.
func (a *Array[T]) Shape() Shape { return a.shape }

// Offset returns the array's offset into its memory.
func (a *Array[T]) Offset() int { return a.offset }

// Memory returns the shared SyncMemory handle (for sharing/view checks).
func (a *Array[T]) Memory() *device.SyncMemory[T] { return a.memory }

// NumElements returns the number of logical elements (product of shape).
func (a *Array[T]) NumElements() int { return a.shape.NumElements() }

// IsContiguous reports whether the array has no recorded strides, i.e. is
// row-major contiguous starting at its offset (which may be nonzero, e.g.
// after an axis-0 pluck).
func (a *Array[T]) IsContiguous() bool { return len(a.strides) == 0 }

// EffectiveStrides returns per-axis strides, computing row-major defaults
// when none are recorded and forcing broadcast axes to stride 0.
func (a *Array[T]) EffectiveStrides() []int {
	var s []int
	if len(a.strides) == 0 {
		s = a.shape.ContiguousStrides()
	} else {
		s = append([]int(nil), a.strides...)
	}
	for i, bc := range a.broadcastMask {
		if bc && i < len(s) {
			s[i] = 0
		}
	}
	return s
}

func newArray[T device.Elem](shape Shape, strides []int, offset int, mask []bool, mem *device.SyncMemory[T]) *Array[T] {
	return &Array[T]{shape: shape.Clone(), strides: strides, offset: offset, broadcastMask: mask, memory: mem}
}

// ---- factories ----

// Zeros allocates a fresh, zero-initialized array of the given shape on
// the host device and lazily clears it on first allocation.
func Zeros[T device.Elem](shape Shape) *Array[T] {
	n := shape.NumElements()
	mem := device.NewSyncMemory[T](n, innerDim(shape), device.HostDevice)
	mem.LazyClear()
	a := newArray[T](shape, nil, 0, nil, mem)
	// Touch the host side so the buffer exists (spec.md: allocation is
	// deferred until first read/write; Zeros is expected to be usable
	// immediately).
	_ = mem.MutableCPUData()
	return a
}

// FromScalar creates a rank-0 array holding a single value.
func FromScalar[T device.Elem](v T) *Array[T] {
	a := Zeros[T](Shape{})
	a.memory.MutableCPUData()[0] = v
	return a
}

// Arange fills a freshly allocated array of the given shape with
// 0, 1, 2, ... in row-major order.
func Arange[T device.Elem](shape Shape) *Array[T] {
	a := Zeros[T](shape)
	data := a.memory.MutableCPUData()
	for i := range data {
		data[i] = T(i)
	}
	return a
}

// Uniform fills a freshly allocated array with values drawn uniformly from
// [lo, hi). Only meaningful for float element types; for integer types the
// draws are truncated.
func Uniform[T device.Elem](shape Shape, lo, hi float64, rng *rand.Rand) *Array[T] {
	a := Zeros[T](shape)
	data := a.memory.MutableCPUData()
	for i := range data {
		data[i] = T(lo + rng.Float64()*(hi-lo))
	}
	return a
}

func innerDim(shape Shape) int {
	if len(shape) == 0 {
		return 1
	}
	return shape[len(shape)-1]
}

// ---- element access ----

func (a *Array[T]) flatOffset(idx []int) (int, error) {
	if len(idx) != len(a.shape) {
		return 0, errs.New(errs.OutOfRange, "at", fmt.Sprintf("expected %d indices, got %d", len(a.shape), len(idx)))
	}
	strides := a.EffectiveStrides()
	off := a.offset
	for i, ix := range idx {
		if ix < 0 || ix >= a.shape[i] {
			return 0, errs.New(errs.OutOfRange, "at", fmt.Sprintf("index %d out of bounds for axis %d (size %d)", ix, i, a.shape[i])).WithAxis(i)
		}
		off += ix * strides[i]
	}
	return off, nil
}

// At returns the element at the given multi-index.
func (a *Array[T]) At(idx ...int) T {
	off, err := a.flatOffset(idx)
	if err != nil {
		panic(err)
	}
	return a.memory.CPUData()[off]
}

// Set writes v at the given multi-index.
func (a *Array[T]) Set(v T, idx ...int) {
	off, err := a.flatOffset(idx)
	if err != nil {
		panic(err)
	}
	a.memory.MutableCPUData()[off] = v
}

// ---- views ----

// PluckAxis returns a view one rank lower, fixing axis to index. Shares
// memory with the parent (spec.md §4.2).
func (a *Array[T]) PluckAxis(axis, index int) (*Array[T], error) {
	if axis < 0 || axis >= len(a.shape) {
		return nil, errs.New(errs.OutOfRange, "pluck_axis", fmt.Sprintf("axis %d out of range for rank %d", axis, len(a.shape))).WithAxis(axis)
	}
	if index < 0 || index >= a.shape[axis] {
		return nil, errs.New(errs.OutOfRange, "pluck_axis", fmt.Sprintf("index %d out of range for axis size %d", index, a.shape[axis])).WithAxis(axis)
	}

	if axis == 0 && a.IsContiguous() {
		newShape := a.shape[1:].Clone()
		stride := newShape.NumElements()
		return newArray[T](newShape, nil, a.offset+index*stride, dropMask(a.broadcastMask, axis), a.memory), nil
	}

	strides := a.EffectiveStrides()
	newShape := make(Shape, 0, len(a.shape)-1)
	newStrides := make([]int, 0, len(a.shape)-1)
	for i := range a.shape {
		if i == axis {
			continue
		}
		newShape = append(newShape, a.shape[i])
		newStrides = append(newStrides, strides[i])
	}
	return newArray[T](newShape, newStrides, a.offset+index*strides[axis], dropMask(a.broadcastMask, axis), a.memory), nil
}

func dropMask(mask []bool, axis int) []bool {
	if mask == nil {
		return nil
	}
	out := make([]bool, 0, len(mask)-1)
	for i, v := range mask {
		if i == axis {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Slice returns a view along axis from begin (inclusive) to end (exclusive,
// as a Python-style bound; semantics mirror a slice with the given step).
// step may be negative; step 0 is an error.
func (a *Array[T]) Slice(axis, begin, end, step int) (*Array[T], error) {
	if step == 0 {
		return nil, errs.New(errs.OutOfRange, "slice", "step must be nonzero").WithAxis(axis)
	}
	if axis < 0 || axis >= len(a.shape) {
		return nil, errs.New(errs.OutOfRange, "slice", fmt.Sprintf("axis %d out of range", axis)).WithAxis(axis)
	}

	dim := a.shape[axis]
	begin = normalizeIndex(begin, dim)
	end = normalizeIndex(end, dim)

	var size int
	if step > 0 {
		if end > begin {
			size = (end - begin + step - 1) / step
		}
	} else {
		if begin > end {
			size = (begin - end + (-step) - 1) / (-step)
		}
	}
	if size < 0 {
		size = 0
	}

	strides := a.EffectiveStrides()
	newShape := a.shape.Clone()
	newShape[axis] = size
	newStrides := append([]int(nil), strides...)
	newStrides[axis] = strides[axis] * step

	return newArray[T](newShape, newStrides, a.offset+begin*strides[axis], a.broadcastMask, a.memory), nil
}

// normalizeIndex maps a possibly-negative/out-of-range bound the way
// Python slicing does, clamped into [0, dim].
func normalizeIndex(i, dim int) int {
	if i < 0 {
		i += dim
	}
	if i < 0 {
		i = 0
	}
	if i > dim {
		i = dim
	}
	return i
}

// Transpose permutes shape and strides according to perm (default: full
// reversal). Contiguous arrays get materialized strides first.
func (a *Array[T]) Transpose(perm ...int) (*Array[T], error) {
	n := len(a.shape)
	if len(perm) == 0 {
		perm = make([]int, n)
		for i := range perm {
			perm[i] = n - 1 - i
		}
	}
	if len(perm) != n {
		return nil, errs.New(errs.ShapeMismatch, "transpose", fmt.Sprintf("permutation length %d does not match rank %d", len(perm), n))
	}
	seen := make([]bool, n)
	for _, p := range perm {
		if p < 0 || p >= n || seen[p] {
			return nil, errs.New(errs.ShapeMismatch, "transpose", fmt.Sprintf("invalid permutation %v", perm))
		}
		seen[p] = true
	}

	strides := a.EffectiveStrides()
	newShape := make(Shape, n)
	newStrides := make([]int, n)
	var newMask []bool
	if a.broadcastMask != nil {
		newMask = make([]bool, n)
	}
	for i, p := range perm {
		newShape[i] = a.shape[p]
		newStrides[i] = strides[p]
		if newMask != nil {
			newMask[i] = a.broadcastMask[p]
		}
	}
	return newArray[T](newShape, newStrides, a.offset, newMask, a.memory), nil
}

// ExpandDims inserts a size-1 axis at position k.
func (a *Array[T]) ExpandDims(k int) (*Array[T], error) {
	n := len(a.shape)
	if k < 0 || k > n {
		return nil, errs.New(errs.OutOfRange, "expand_dims", fmt.Sprintf("position %d out of range", k)).WithAxis(k)
	}
	strides := a.EffectiveStrides()
	newShape := make(Shape, 0, n+1)
	newStrides := make([]int, 0, n+1)
	var newMask []bool
	if a.broadcastMask != nil {
		newMask = make([]bool, 0, n+1)
	}
	for i := 0; i <= n; i++ {
		if i == k {
			newShape = append(newShape, 1)
			newStrides = append(newStrides, 0)
			if newMask != nil {
				newMask = append(newMask, false)
			}
		}
		if i < n {
			newShape = append(newShape, a.shape[i])
			newStrides = append(newStrides, strides[i])
			if newMask != nil {
				newMask = append(newMask, a.broadcastMask[i])
			}
		}
	}
	return newArray[T](newShape, newStrides, a.offset, newMask, a.memory), nil
}

// BroadcastAxis marks axis k as broadcastable; it must currently have size 1.
func (a *Array[T]) BroadcastAxis(k int) (*Array[T], error) {
	if k < 0 || k >= len(a.shape) {
		return nil, errs.New(errs.OutOfRange, "broadcast_axis", fmt.Sprintf("axis %d out of range", k)).WithAxis(k)
	}
	if a.shape[k] != 1 {
		return nil, errs.New(errs.InvalidBroadcast, "broadcast_axis", fmt.Sprintf("axis %d has size %d, must be 1", k, a.shape[k])).WithAxis(k)
	}
	mask := make([]bool, len(a.shape))
	copy(mask, a.broadcastMask)
	mask[k] = true
	return newArray[T](a.shape, append([]int(nil), a.EffectiveStrides()...), a.offset, mask, a.memory), nil
}

// ReshapeBroadcasted validates and materializes new_shape against the
// current shape: each axis must either match exactly, or be a broadcastable
// size-1 axis being expanded.
func (a *Array[T]) ReshapeBroadcasted(newShape Shape) (*Array[T], error) {
	if len(newShape) != len(a.shape) {
		return nil, errs.New(errs.InvalidBroadcast, "reshape_broadcasted", fmt.Sprintf("rank mismatch: %d vs %d", len(a.shape), len(newShape)))
	}
	strides := a.EffectiveStrides()
	outStrides := make([]int, len(newShape))
	for i := range newShape {
		switch {
		case a.shape[i] == newShape[i]:
			outStrides[i] = strides[i]
		case a.shape[i] == 1 && len(a.broadcastMask) > i && a.broadcastMask[i]:
			outStrides[i] = 0
		default:
			return nil, errs.New(errs.InvalidBroadcast, "reshape_broadcasted",
				fmt.Sprintf("axis %d: cannot expand size %d to %d (not marked broadcastable)", i, a.shape[i], newShape[i])).WithAxis(i)
		}
	}
	return newArray[T](newShape, outStrides, a.offset, nil, a.memory), nil
}

// ---- copy / canonical reshape ----

// Copy returns a new array. If deep is true (or the source is non-
// contiguous/a view), a fresh buffer is allocated and data is materialized
// in row-major order; if deep is false and the source is already
// contiguous at offset 0 covering its whole memory, the memory is shared.
func (a *Array[T]) Copy(deep bool) *Array[T] {
	if !deep && a.IsContiguous() && a.offset == 0 && a.memory.TotalElems() == a.NumElements() {
		return newArray[T](a.shape, nil, 0, nil, a.memory)
	}
	out := Zeros[T](a.shape)
	dst := out.memory.MutableCPUData()
	src := a.memory.CPUData()
	strides := a.EffectiveStrides()
	iterateIndices(a.shape, func(flat int, idx []int) {
		off := a.offset
		for i, ix := range idx {
			off += ix * strides[i]
		}
		dst[flat] = src[off]
	})
	return out
}

// ToRank collapses the array's shape to rank k (1..4) as specified in
// spec.md §4.2's canonical reshape, returning a contiguous copy.
func (a *Array[T]) ToRank(k int) (*Array[T], error) {
	c := a.Copy(true)
	shape := c.shape
	var newShape Shape
	switch k {
	case 1:
		newShape = Shape{shape.NumElements()}
	case 2:
		if len(shape) == 0 {
			newShape = Shape{1, 1}
		} else {
			lead := Shape(shape[:len(shape)-1]).NumElements()
			newShape = Shape{lead, shape[len(shape)-1]}
		}
	case 3:
		switch {
		case len(shape) == 0:
			newShape = Shape{1, 1, 1}
		case len(shape) == 1:
			newShape = Shape{1, 1, shape[0]}
		default:
			mid := Shape(shape[1 : len(shape)-1]).NumElements()
			newShape = Shape{shape[0], mid, shape[len(shape)-1]}
		}
	case 4:
		switch {
		case len(shape) >= 4:
			// Collapse any extra leading axes into the first.
			lead := Shape(shape[:len(shape)-3]).NumElements()
			newShape = Shape{lead, shape[len(shape)-3], shape[len(shape)-2], shape[len(shape)-1]}
		case len(shape) == 3:
			newShape = Shape{1, shape[0], shape[1], shape[2]}
		case len(shape) == 2:
			newShape = Shape{1, 1, shape[0], shape[1]}
		case len(shape) == 1:
			newShape = Shape{1, 1, 1, shape[0]}
		default:
			newShape = Shape{1, 1, 1, 1}
		}
	default:
		return nil, errs.New(errs.ShapeMismatch, "to_rank", fmt.Sprintf("unsupported rank %d", k))
	}
	c.shape = newShape
	c.strides = nil
	return c, nil
}

// ---- in-place arithmetic ----

type arithOp int

const (
	opAdd arithOp = iota
	opSub
	opMul
	opDiv
)

func (a *Array[T]) inplaceScalar(v T, op arithOp) {
	data := a.memory.MutableCPUData()
	strides := a.EffectiveStrides()
	iterateIndices(a.shape, func(_ int, idx []int) {
		off := a.offset
		for i, ix := range idx {
			off += ix * strides[i]
		}
		switch op {
		case opAdd:
			data[off] += v
		case opSub:
			data[off] -= v
		case opMul:
			data[off] *= v
		case opDiv:
			data[off] /= v
		}
	})
}

func (a *Array[T]) inplaceArray(rhs *Array[T], op arithOp) error {
	bshape, err := broadcastShapes(a.shape, rhs.shape)
	if err != nil {
		return errs.New(errs.ShapeMismatch, "inplace_arith", err.Error()).WithShapes(a.shape, rhs.shape)
	}
	if !bshape.Equal(a.shape) {
		return errs.New(errs.ShapeMismatch, "inplace_arith",
			"result shape does not match receiver (in-place ops cannot grow the receiver)").WithShapes(a.shape, rhs.shape)
	}

	aStrides := a.EffectiveStrides()
	rStrides := broadcastStridesTo(rhs, a.shape)
	dst := a.memory.MutableCPUData()
	src := rhs.memory.CPUData()

	iterateIndices(a.shape, func(_ int, idx []int) {
		aOff := a.offset
		rOff := rhs.offset
		for i, ix := range idx {
			aOff += ix * aStrides[i]
			rOff += ix * rStrides[i]
		}
		switch op {
		case opAdd:
			dst[aOff] += src[rOff]
		case opSub:
			dst[aOff] -= src[rOff]
		case opMul:
			dst[aOff] *= src[rOff]
		case opDiv:
			dst[aOff] /= src[rOff]
		}
	})
	return nil
}

// broadcastStridesTo returns rhs's strides expanded (with zero-stride
// padding/broadcast) to align with target shape, right-aligned.
func broadcastStridesTo[T device.Elem](rhs *Array[T], target Shape) []int {
	strides := rhs.EffectiveStrides()
	n := len(target)
	out := make([]int, n)
	rank := len(rhs.shape)
	for i := 0; i < n; i++ {
		rIdx := rank - n + i
		if rIdx < 0 {
			out[i] = 0
			continue
		}
		if rhs.shape[rIdx] == 1 && target[i] != 1 {
			out[i] = 0
		} else {
			out[i] = strides[rIdx]
		}
	}
	return out
}

// AddAssignScalar: a += v (element-wise).
func (a *Array[T]) AddAssignScalar(v T) { a.inplaceScalar(v, opAdd) }

// SubAssignScalar: a -= v.
func (a *Array[T]) SubAssignScalar(v T) { a.inplaceScalar(v, opSub) }

// MulAssignScalar: a *= v.
func (a *Array[T]) MulAssignScalar(v T) { a.inplaceScalar(v, opMul) }

// DivAssignScalar: a /= v.
func (a *Array[T]) DivAssignScalar(v T) { a.inplaceScalar(v, opDiv) }

// AddAssign: a += rhs, with broadcasting of rhs into a's shape.
func (a *Array[T]) AddAssign(rhs *Array[T]) error { return a.inplaceArray(rhs, opAdd) }

// SubAssign: a -= rhs.
func (a *Array[T]) SubAssign(rhs *Array[T]) error { return a.inplaceArray(rhs, opSub) }

// MulAssign: a *= rhs.
func (a *Array[T]) MulAssign(rhs *Array[T]) error { return a.inplaceArray(rhs, opMul) }

// DivAssign: a /= rhs.
func (a *Array[T]) DivAssign(rhs *Array[T]) error { return a.inplaceArray(rhs, opDiv) }

// FromSlice creates a freshly allocated contiguous array of shape,
// populated from data in row-major order.
func FromSlice[T device.Elem](shape Shape, data []T) (*Array[T], error) {
	if shape.NumElements() != len(data) {
		return nil, errs.New(errs.ShapeMismatch, "from_slice", fmt.Sprintf("shape %v needs %d elements, got %d", []int(shape), shape.NumElements(), len(data)))
	}
	a := Zeros[T](shape)
	copy(a.memory.MutableCPUData(), data)
	return a, nil
}

// Dense returns a contiguous, offset-0 row-major snapshot of the array's
// data. If the array is already laid out that way it shares memory;
// otherwise it materializes a copy.
func (a *Array[T]) Dense() []T {
	if a.IsContiguous() && a.offset == 0 && a.memory.TotalElems() == a.NumElements() {
		return a.memory.CPUData()
	}
	return a.Copy(true).memory.CPUData()
}

// Sum returns the sum of all elements.
func (a *Array[T]) Sum() T {
	var total T
	data := a.memory.CPUData()
	strides := a.EffectiveStrides()
	iterateIndices(a.shape, func(_ int, idx []int) {
		off := a.offset
		for i, ix := range idx {
			off += ix * strides[i]
		}
		total += data[off]
	})
	return total
}

// iterateIndices calls f once per logical element of shape, in row-major
// order, passing both the flat row-major position and the multi-index.
func iterateIndices(shape Shape, f func(flat int, idx []int)) {
	n := shape.NumElements()
	if n == 0 {
		return
	}
	idx := make([]int, len(shape))
	for flat := 0; flat < n; flat++ {
		f(flat, idx)
		for d := len(shape) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < shape[d] {
				break
			}
			idx[d] = 0
		}
	}
}
