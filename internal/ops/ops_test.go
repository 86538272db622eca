package ops

import (
	"math"
	"testing"

	"github.com/born-ml/born/internal/mat"
	"github.com/born-ml/born/internal/ndarray"
	"github.com/born-ml/born/internal/tape"
)

const (
	fdEps = 1e-3
	fdTol = 3e-2 // f32 central differences at this eps are noisy
)

func assertClose(t *testing.T, expected, actual float32, tol float64, msg string) {
	t.Helper()
	if math.Abs(float64(expected-actual)) > tol {
		t.Errorf("%s: expected %v, got %v (tol %v)", msg, expected, actual, tol)
	}
}

func matFromRows(name string, rows [][]float32) *mat.Mat {
	r := len(rows)
	c := len(rows[0])
	data := make([]float32, 0, r*c)
	for _, row := range rows {
		data = append(data, row...)
	}
	a, err := ndarray.FromSlice[float32](ndarray.Shape{r, c}, data)
	if err != nil {
		panic(err)
	}
	return mat.New(name, a)
}

// checkGradient perturbs element i of m by ±eps and compares the central
// difference of f's scalar output against m's accumulated backward
// gradient at i (spec.md §8's finite-difference invariant).
func checkGradient(t *testing.T, name string, m *mat.Mat, i int, f func(tp *tape.Tape, m *mat.Mat) *mat.Mat) {
	t.Helper()

	tp := tape.New()
	out := f(tp, m)
	out.SeedGradient(1)
	tp.Backward()
	analytic := m.DW().Dense()[i]

	w := m.W().Dense()
	orig := w[i]

	w[i] = orig + fdEps
	plus := f(tape.New(), m).W().Dense()[0]
	w[i] = orig - fdEps
	minus := f(tape.New(), m).W().Dense()[0]
	w[i] = orig

	numeric := float32((float64(plus) - float64(minus)) / (2 * fdEps))
	assertClose(t, numeric, analytic, fdTol, name+": gradient mismatch at index "+string(rune('0'+i)))
}

func TestSigmoidGradient(t *testing.T) {
	m := matFromRows("x", [][]float32{{0.3}, {-0.5}})
	checkGradient(t, "sigmoid", m, 0, func(tp *tape.Tape, m *mat.Mat) *mat.Mat { return Sum(tp, Sigmoid(tp, m)) })
}

func TestTanhGradient(t *testing.T) {
	m := matFromRows("x", [][]float32{{0.3}, {-0.5}})
	checkGradient(t, "tanh", m, 1, func(tp *tape.Tape, m *mat.Mat) *mat.Mat { return Sum(tp, Tanh(tp, m)) })
}

func TestEltmulGradient(t *testing.T) {
	a := matFromRows("a", [][]float32{{2}, {3}})
	b := matFromRows("b", [][]float32{{4}, {5}})
	checkGradient(t, "eltmul", a, 0, func(tp *tape.Tape, m *mat.Mat) *mat.Mat { return Sum(tp, Eltmul(tp, m, b)) })
}

func TestDotGradient(t *testing.T) {
	w := matFromRows("w", [][]float32{{1, 2}, {3, 4}})
	x := matFromRows("x", [][]float32{{5}, {6}})
	checkGradient(t, "dot", w, 0, func(tp *tape.Tape, m *mat.Mat) *mat.Mat { return Sum(tp, Dot(tp, m, x)) })
}

func TestSoftmaxSumsToOne(t *testing.T) {
	m := matFromRows("logits", [][]float32{{1}, {2}, {3}, {0.5}})
	tp := tape.New()
	y := Softmax(tp, m)
	var sum float32
	for _, v := range y.W().Dense() {
		sum += v
	}
	assertClose(t, 1, sum, 1e-6, "softmax sums to 1")
}

func TestCrossEntropyGradient(t *testing.T) {
	m := matFromRows("logits", [][]float32{{1}, {2}, {3}})
	checkGradient(t, "cross_entropy", m, 1, func(tp *tape.Tape, m *mat.Mat) *mat.Mat { return CrossEntropy(tp, m, 0) })
}

func TestRowPluckScatterAndSum(t *testing.T) {
	e := matFromRows("e", [][]float32{{1, 2}, {3, 4}, {5, 6}})
	tp := tape.New()
	row := RowPluck(tp, e, 1)
	assertClose(t, 3, row.W().Dense()[0], 1e-6, "row_pluck row 1 col 0")
	assertClose(t, 4, row.W().Dense()[1], 1e-6, "row_pluck row 1 col 1")

	row.SeedGradient(1)
	tp.Backward()
	dw := e.DW().Dense()
	assertClose(t, 0, dw[0], 1e-6, "row 0 untouched")
	assertClose(t, 1, dw[2], 1e-6, "row 1 col 0 gradient")
	assertClose(t, 0, dw[4], 1e-6, "row 2 untouched")
}

func TestTransposeRoundTrip(t *testing.T) {
	a := matFromRows("a", [][]float32{{1, 2, 3}, {4, 5, 6}})
	tp := tape.New()
	b := Transpose(tp, a)
	c := Transpose(tp, b)
	for i, v := range a.W().Dense() {
		assertClose(t, v, c.W().Dense()[i], 1e-6, "transpose round-trip")
	}
}
