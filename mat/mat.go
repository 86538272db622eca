// Package mat provides the public API for the differentiable tensor
// (value + lazily-allocated gradient) and its backing n-dimensional array.
package mat

import (
	"github.com/born-ml/born/internal/device"
	"github.com/born-ml/born/internal/mat"
	"github.com/born-ml/born/internal/ndarray"
)

// Mat is a named (value, gradient) pair with identity by id.
type Mat = mat.Mat

// New wraps an existing value array as a Mat.
func New(name string, w *ndarray.Array[float32]) *Mat { return mat.New(name, w) }

// Zeros creates a Mat whose value is a freshly zeroed array of shape.
func Zeros(name string, shape ndarray.Shape) *Mat { return mat.Zeros(name, shape) }

// Shape re-exports the n-dimensional shape type.
type Shape = ndarray.Shape

// Elem constrains the element types Array may hold.
type Elem = device.Elem

// Array is the generic strided n-dimensional array underlying every Mat.
type Array[T Elem] = ndarray.Array[T]

// ArrayZeros re-exports ndarray.Zeros under a distinct name to avoid
// colliding with the Mat-level Zeros above.
func ArrayZeros[T Elem](shape Shape) *Array[T] { return ndarray.Zeros[T](shape) }

// Arange re-exports ndarray.Arange.
func Arange[T Elem](shape Shape) *Array[T] { return ndarray.Arange[T](shape) }

// FromSlice re-exports ndarray.FromSlice.
func FromSlice[T Elem](shape Shape, data []T) (*Array[T], error) {
	return ndarray.FromSlice[T](shape, data)
}
