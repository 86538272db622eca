package mat

import (
	"math"
	"testing"

	"github.com/born-ml/born/internal/ndarray"
)

func assertClose(t *testing.T, expected, actual float32, msg string) {
	t.Helper()
	if math.Abs(float64(expected-actual)) > 1e-6 {
		t.Errorf("%s: expected %v, got %v", msg, expected, actual)
	}
}

func TestDWLazyAllocation(t *testing.T) {
	m := Zeros("x", ndarray.Shape{3})
	if m.HasGrad() {
		t.Fatal("HasGrad() should be false before any gradient write")
	}
	m.DW()
	if !m.HasGrad() {
		t.Fatal("HasGrad() should be true after DW() is called")
	}
}

func TestAddToGradAccumulates(t *testing.T) {
	m := Zeros("x", ndarray.Shape{2})
	contribution, _ := ndarray.FromSlice[float32](ndarray.Shape{2}, []float32{1, 2})
	m.AddToGrad(contribution)
	m.AddToGrad(contribution)
	dw := m.DW().Dense()
	assertClose(t, 2, dw[0], "accumulated grad[0]")
	assertClose(t, 4, dw[1], "accumulated grad[1]")
}

func TestZeroGradIsNoOpWithoutGrad(t *testing.T) {
	m := Zeros("x", ndarray.Shape{2})
	m.ZeroGrad() // must not allocate dw
	if m.HasGrad() {
		t.Fatal("ZeroGrad should not allocate dw when it was never used")
	}
}

func TestEncapsulateSharesValueNotGradient(t *testing.T) {
	m := Zeros("w", ndarray.Shape{2})
	m.W().AddAssignScalar(1)

	shadow := m.Encapsulate()
	if shadow.ID() == m.ID() {
		t.Fatal("Encapsulate should assign a fresh id")
	}

	shadow.W().Set(9, 0)
	assertClose(t, 9, m.W().At(0), "writes through the shadow's w should be visible on the master (shared memory)")

	shadow.DW().AddAssignScalar(5)
	if m.HasGrad() {
		t.Fatal("the shadow's gradient must be private, not shared with the master")
	}
}
