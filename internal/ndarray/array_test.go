package ndarray

import (
	"math"
	"testing"
)

func assertEqualFloat32(t *testing.T, expected, actual float32, msg string) {
	t.Helper()
	if math.Abs(float64(expected-actual)) > 1e-6 {
		t.Errorf("%s: expected %v, got %v", msg, expected, actual)
	}
}

func TestZerosAndAt(t *testing.T) {
	a := Zeros[float32](Shape{2, 3})
	if a.NumElements() != 6 {
		t.Fatalf("NumElements() = %d, want 6", a.NumElements())
	}
	a.Set(5, 1, 2)
	assertEqualFloat32(t, 5, a.At(1, 2), "At(1,2)")
}

func TestArangeSum(t *testing.T) {
	a := Arange[float32](Shape{10})
	assertEqualFloat32(t, 45, a.Sum(), "arange(10).sum()")
}

// Scenario 1 of the testable end-to-end properties: ones([10,20])+ones([10,20]) sums to 400.
func TestOnesPlusOnesSum(t *testing.T) {
	ones := func() *Array[float32] {
		a := Zeros[float32](Shape{10, 20})
		a.AddAssignScalar(1)
		return a
	}
	a, b := ones(), ones()
	if err := a.AddAssign(b); err != nil {
		t.Fatalf("AddAssign: %v", err)
	}
	assertEqualFloat32(t, 400, a.Sum(), "(A+B).sum()")
}

// Scenario 2: a [6,4] arange reshaped to [2,3,4]; pluck_axis sums.
func TestReshapeAndPluckAxisSum(t *testing.T) {
	a := Arange[float32](Shape{2, 3, 4})

	y1, err := a.PluckAxis(1, 2)
	if err != nil {
		t.Fatalf("PluckAxis(1,2): %v", err)
	}
	assertEqualFloat32(t, 134, y1.Sum(), "pluck_axis(1,2).sum()")

	y2, err := a.PluckAxis(2, 1)
	if err != nil {
		t.Fatalf("PluckAxis(2,1): %v", err)
	}
	assertEqualFloat32(t, 66, y2.Sum(), "pluck_axis(2,1).sum()")
}

func TestPluckAxisSharesMemory(t *testing.T) {
	a := Zeros[float32](Shape{3, 4})
	view, err := a.PluckAxis(0, 1)
	if err != nil {
		t.Fatalf("PluckAxis: %v", err)
	}
	if view.Memory() != a.Memory() {
		t.Fatalf("pluck_axis view does not share memory with parent")
	}
	view.Set(7, 2)
	assertEqualFloat32(t, 7, a.At(1, 2), "mutation via view should be visible in parent")
}

func TestTransposeRoundTrip(t *testing.T) {
	a := Arange[float32](Shape{2, 3, 4})
	perm := []int{2, 0, 1}
	inv := []int{1, 2, 0}

	b, err := a.Transpose(perm...)
	if err != nil {
		t.Fatalf("Transpose: %v", err)
	}
	c, err := b.Transpose(inv...)
	if err != nil {
		t.Fatalf("Transpose inverse: %v", err)
	}

	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 4; k++ {
				assertEqualFloat32(t, a.At(i, j, k), c.At(i, j, k), "transpose round-trip")
			}
		}
	}
}

func TestSliceRoundTrip(t *testing.T) {
	a := Zeros[float32](Shape{10})
	view, err := a.Slice(0, 2, 8, 1)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	view.Set(3.5, 1)
	assertEqualFloat32(t, 3.5, a.At(3), "slice round-trip write")
}

func TestBroadcastAxisAndReshapeBroadcasted(t *testing.T) {
	a := Zeros[float32](Shape{3, 1})
	a.Set(1, 0, 0)
	a.Set(2, 1, 0)
	a.Set(3, 2, 0)

	b, err := a.BroadcastAxis(1)
	if err != nil {
		t.Fatalf("BroadcastAxis: %v", err)
	}
	c, err := b.ReshapeBroadcasted(Shape{3, 4})
	if err != nil {
		t.Fatalf("ReshapeBroadcasted: %v", err)
	}
	for j := 0; j < 4; j++ {
		assertEqualFloat32(t, 2, c.At(1, j), "broadcast column")
	}
}

func TestReshapeBroadcastedRejectsUnmarkedAxis(t *testing.T) {
	a := Zeros[float32](Shape{3, 1})
	if _, err := a.ReshapeBroadcasted(Shape{3, 4}); err == nil {
		t.Fatalf("expected error reshaping an unmarked axis")
	}
}

func TestToRankCollapsesAsSpecified(t *testing.T) {
	a := Arange[float32](Shape{2, 3, 4})

	r2, err := a.ToRank(2)
	if err != nil {
		t.Fatalf("ToRank(2): %v", err)
	}
	if !r2.Shape().Equal(Shape{6, 4}) {
		t.Fatalf("ToRank(2) shape = %v, want [6 4]", r2.Shape())
	}

	r1, err := a.ToRank(1)
	if err != nil {
		t.Fatalf("ToRank(1): %v", err)
	}
	if !r1.Shape().Equal(Shape{24}) {
		t.Fatalf("ToRank(1) shape = %v, want [24]", r1.Shape())
	}
}
