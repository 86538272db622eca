package layer

import (
	"math"
	"testing"

	"github.com/born-ml/born/internal/mat"
	"github.com/born-ml/born/internal/ndarray"
	"github.com/born-ml/born/internal/ops"
	"github.com/born-ml/born/internal/tape"
)

func assertClose(t *testing.T, expected, actual float32, msg string) {
	t.Helper()
	if math.Abs(float64(expected-actual)) > 1e-6 {
		t.Errorf("%s: expected %v, got %v", msg, expected, actual)
	}
}

// copyMat returns a Mat with the same values as src but a distinct id and
// dw, so the RNN and the StackedInputLayer comparison below start from
// bit-identical weights without sharing gradient state.
func copyMat(name string, src *mat.Mat) *mat.Mat {
	data := append([]float32(nil), src.W().Dense()...)
	a, err := ndarray.FromSlice[float32](src.Shape(), data)
	if err != nil {
		panic(err)
	}
	return mat.New(name, a)
}

// TestRNNMatchesStackedInputLayer verifies spec.md §8's invariant: RNN and
// StackedInputLayer([input,hidden], hidden) produce elementwise-equal
// gradients on all parameters and inputs when initialised from identical
// weights.
func TestRNNMatchesStackedInputLayer(t *testing.T) {
	Seed(42)
	rnn := NewRNN("rnn", 3, 4, 0)

	sil := NewStackedInputLayer("sil", []int{3, 4}, 4)
	sil.Ws[0] = copyMat("Wx", rnn.Parameters()[0])
	sil.Ws[1] = copyMat("Wh", rnn.Parameters()[1])
	sil.B = copyMat("b", rnn.Parameters()[2])

	x := mat.Zeros("x", ndarray.Shape{3, 1})
	x.W().AddAssignScalar(0.2)
	h := mat.Zeros("h", ndarray.Shape{4, 1})
	h.W().AddAssignScalar(-0.1)

	tp1 := tape.New()
	y1 := rnn.Activate(tp1, x, h)
	loss1 := ops.Sum(tp1, y1)
	loss1.SeedGradient(1)
	tp1.Backward()

	x2 := copyMat("x2", x)
	h2 := copyMat("h2", h)
	tp2 := tape.New()
	y2 := sil.Activate(tp2, x2, h2)
	loss2 := ops.Sum(tp2, y2)
	loss2.SeedGradient(1)
	tp2.Backward()

	for i, v := range y1.W().Dense() {
		assertClose(t, v, y2.W().Dense()[i], "forward output mismatch")
	}

	params1 := rnn.Parameters()
	params2 := sil.Parameters()
	for p := range params1 {
		dw1 := params1[p].DW().Dense()
		dw2 := params2[p].DW().Dense()
		for i := range dw1 {
			assertClose(t, dw1[i], dw2[i], "parameter gradient mismatch")
		}
	}

	dx1 := x.DW().Dense()
	dx2 := x2.DW().Dense()
	for i := range dx1 {
		assertClose(t, dx1[i], dx2[i], "input gradient mismatch")
	}
}

// TestLSTMMemoryFeedsGatesDiffers reproduces spec.md §8 scenario 5: two
// LSTM cells with identical weights, one with memory_feeds_gates=true and
// one false, given identical inputs and zero initial state, produce
// different hidden outputs.
func TestLSTMMemoryFeedsGatesDiffers(t *testing.T) {
	Seed(7)
	plain := NewLSTM("plain", 3, 4, 0, false)
	Seed(7)
	peephole := NewLSTM("peephole", 3, 4, 0, true)

	// Give both cells identical weights on every block they share; only the
	// peephole cell's extra cell-input weights are its own.
	for _, pair := range [][2]*StackedInputLayer{
		{plain.iGate, peephole.iGate}, {plain.fGate, peephole.fGate},
		{plain.oGate, peephole.oGate}, {plain.gGate, peephole.gGate},
	} {
		for k, w := range pair[0].Ws {
			copy(pair[1].Ws[k].W().Dense(), w.W().Dense())
		}
		copy(pair[1].B.W().Dense(), pair[0].B.W().Dense())
	}

	x := mat.Zeros("x", ndarray.Shape{3, 1})
	x.W().AddAssignScalar(0.5)

	tp := tape.New()
	s1 := plain.Activate(tp, x, nil, plain.InitialState())
	s2 := peephole.Activate(tp, x, nil, peephole.InitialState())

	same := true
	for i, v := range s1.Hidden.W().Dense() {
		if math.Abs(float64(v-s2.Hidden.W().Dense()[i])) > 1e-9 {
			same = false
		}
	}
	if same {
		t.Fatal("memory_feeds_gates=true and false should diverge given nonzero memory-dependent gates")
	}
}
