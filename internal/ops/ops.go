// Package ops implements the differentiable op library of spec.md §4.4.
// Every op takes a *tape.Tape plus its Mat operands, computes a forward
// result, and — when the tape is recording — pushes a backward closure
// that accumulates into the operands' dw.
package ops

import (
	"math"

	"github.com/born-ml/born/internal/errs"
	"github.com/born-ml/born/internal/mat"
	"github.com/born-ml/born/internal/ndarray"
	"github.com/born-ml/born/internal/tape"
)

func shape2D(s ndarray.Shape) (rows, cols int) {
	switch len(s) {
	case 1:
		return s[0], 1
	case 2:
		return s[0], s[1]
	default:
		panic(errs.New(errs.ShapeMismatch, "shape2d", "expected rank 1 or 2 array"))
	}
}

func newMatFromSlice(name string, shape ndarray.Shape, data []float32) *mat.Mat {
	a, err := ndarray.FromSlice[float32](shape, data)
	if err != nil {
		panic(err)
	}
	return mat.New(name, a)
}

// ---- add (with rank-1 bias broadcast) ----

// Add computes A + B. If B has shape [H,1] and A has shape [H,N], B is
// broadcast columnwise (spec.md §4.4).
func Add(t *tape.Tape, a, b *mat.Mat) *mat.Mat {
	ar, ac := shape2D(a.Shape())
	br, bc := shape2D(b.Shape())

	broadcastB := bc == 1 && br == ar && ac != 1
	if !broadcastB && (ar != br || ac != bc) {
		panic(errs.New(errs.ShapeMismatch, "add", "shapes incompatible").WithShapes(a.Shape(), b.Shape()))
	}

	aData := a.W().Dense()
	bData := b.W().Dense()
	out := make([]float32, ar*ac)
	for i := 0; i < ar; i++ {
		for j := 0; j < ac; j++ {
			var bv float32
			if broadcastB {
				bv = bData[i]
			} else {
				bv = bData[i*bc+j]
			}
			out[i*ac+j] = aData[i*ac+j] + bv
		}
	}
	result := newMatFromSlice("add", ndarray.Shape{ar, ac}, out)

	t.Record(func() {
		dc := result.DW().Dense()
		a.AddToGrad(mustFromSlice(a.Shape(), dc))
		if broadcastB {
			bGrad := make([]float32, br)
			for i := 0; i < ar; i++ {
				for j := 0; j < ac; j++ {
					bGrad[i] += dc[i*ac+j]
				}
			}
			b.AddToGrad(mustFromSlice(b.Shape(), bGrad))
		} else {
			b.AddToGrad(mustFromSlice(b.Shape(), dc))
		}
	})
	return result
}

func mustFromSlice(shape ndarray.Shape, data []float32) *ndarray.Array[float32] {
	a, err := ndarray.FromSlice[float32](shape, data)
	if err != nil {
		panic(err)
	}
	return a
}

// Sub computes A - B (same shape, no broadcast).
func Sub(t *tape.Tape, a, b *mat.Mat) *mat.Mat {
	if !a.Shape().Equal(b.Shape()) {
		panic(errs.New(errs.ShapeMismatch, "sub", "shapes must match").WithShapes(a.Shape(), b.Shape()))
	}
	aData, bData := a.W().Dense(), b.W().Dense()
	out := make([]float32, len(aData))
	for i := range out {
		out[i] = aData[i] - bData[i]
	}
	result := newMatFromSlice("sub", a.Shape(), out)
	t.Record(func() {
		dc := result.DW().Dense()
		a.AddToGrad(mustFromSlice(a.Shape(), dc))
		neg := make([]float32, len(dc))
		for i, v := range dc {
			neg[i] = -v
		}
		b.AddToGrad(mustFromSlice(b.Shape(), neg))
	})
	return result
}

// Neg computes -A.
func Neg(t *tape.Tape, a *mat.Mat) *mat.Mat {
	aData := a.W().Dense()
	out := make([]float32, len(aData))
	for i, v := range aData {
		out[i] = -v
	}
	result := newMatFromSlice("neg", a.Shape(), out)
	t.Record(func() {
		dc := result.DW().Dense()
		neg := make([]float32, len(dc))
		for i, v := range dc {
			neg[i] = -v
		}
		a.AddToGrad(mustFromSlice(a.Shape(), neg))
	})
	return result
}

// Eltmul computes A ⊙ B elementwise (same shape).
func Eltmul(t *tape.Tape, a, b *mat.Mat) *mat.Mat {
	if !a.Shape().Equal(b.Shape()) {
		panic(errs.New(errs.ShapeMismatch, "eltmul", "shapes must match").WithShapes(a.Shape(), b.Shape()))
	}
	aData, bData := a.W().Dense(), b.W().Dense()
	out := make([]float32, len(aData))
	for i := range out {
		out[i] = aData[i] * bData[i]
	}
	result := newMatFromSlice("eltmul", a.Shape(), out)
	t.Record(func() {
		dc := result.DW().Dense()
		da := make([]float32, len(dc))
		db := make([]float32, len(dc))
		for i := range dc {
			da[i] = dc[i] * bData[i]
			db[i] = dc[i] * aData[i]
		}
		a.AddToGrad(mustFromSlice(a.Shape(), da))
		b.AddToGrad(mustFromSlice(b.Shape(), db))
	})
	return result
}

// Dot computes the matrix product A·B.
func Dot(t *tape.Tape, a, b *mat.Mat) *mat.Mat {
	ar, ac := shape2D(a.Shape())
	br, bc := shape2D(b.Shape())
	if ac != br {
		panic(errs.New(errs.ShapeMismatch, "dot", "inner dimensions must match").WithShapes(a.Shape(), b.Shape()))
	}
	aData, bData := a.W().Dense(), b.W().Dense()
	out := make([]float32, ar*bc)
	for i := 0; i < ar; i++ {
		for k := 0; k < ac; k++ {
			av := aData[i*ac+k]
			if av == 0 {
				continue
			}
			for j := 0; j < bc; j++ {
				out[i*bc+j] += av * bData[k*bc+j]
			}
		}
	}
	result := newMatFromSlice("dot", ndarray.Shape{ar, bc}, out)

	t.Record(func() {
		dc := result.DW().Dense() // [ar, bc]
		da := make([]float32, ar*ac)
		db := make([]float32, br*bc)
		// dA = dC · B^T
		for i := 0; i < ar; i++ {
			for k := 0; k < ac; k++ {
				var sum float32
				for j := 0; j < bc; j++ {
					sum += dc[i*bc+j] * bData[k*bc+j]
				}
				da[i*ac+k] += sum
			}
		}
		// dB = A^T · dC
		for k := 0; k < ac; k++ {
			for j := 0; j < bc; j++ {
				var sum float32
				for i := 0; i < ar; i++ {
					sum += aData[i*ac+k] * dc[i*bc+j]
				}
				db[k*bc+j] += sum
			}
		}
		a.AddToGrad(mustFromSlice(a.Shape(), da))
		b.AddToGrad(mustFromSlice(b.Shape(), db))
	})
	return result
}

// MulWithBias computes dot(W, x) + b. It is composed from Dot and Add, so
// it records two tape entries rather than one fused op.
func MulWithBias(t *tape.Tape, w, x, b *mat.Mat) *mat.Mat {
	return Add(t, Dot(t, w, x), b)
}

// MulAddMulWithBias computes Σ Wi·Xi + b for paired (Wi, Xi) operands.
func MulAddMulWithBias(t *tape.Tape, pairs [][2]*mat.Mat, b *mat.Mat) *mat.Mat {
	if len(pairs) == 0 {
		panic(errs.New(errs.ShapeMismatch, "mul_add_mul_with_bias", "at least one (W,x) pair required"))
	}
	acc := Dot(t, pairs[0][0], pairs[0][1])
	for _, p := range pairs[1:] {
		acc = Add(t, acc, Dot(t, p[0], p[1]))
	}
	return Add(t, acc, b)
}

// Transpose returns Aᵀ.
func Transpose(t *tape.Tape, a *mat.Mat) *mat.Mat {
	ar, ac := shape2D(a.Shape())
	aData := a.W().Dense()
	out := make([]float32, ar*ac)
	for i := 0; i < ar; i++ {
		for j := 0; j < ac; j++ {
			out[j*ar+i] = aData[i*ac+j]
		}
	}
	result := newMatFromSlice("transpose", ndarray.Shape{ac, ar}, out)
	t.Record(func() {
		dc := result.DW().Dense() // [ac, ar]
		da := make([]float32, ar*ac)
		for i := 0; i < ar; i++ {
			for j := 0; j < ac; j++ {
				da[i*ac+j] = dc[j*ar+i]
			}
		}
		a.AddToGrad(mustFromSlice(a.Shape(), da))
	})
	return result
}

func unaryOp(name string, t *tape.Tape, a *mat.Mat, fwd func(x float32) float32, bwd func(x, y, dc float32) float32) *mat.Mat {
	aData := a.W().Dense()
	out := make([]float32, len(aData))
	for i, v := range aData {
		out[i] = fwd(v)
	}
	result := newMatFromSlice(name, a.Shape(), out)
	t.Record(func() {
		dc := result.DW().Dense()
		da := make([]float32, len(dc))
		for i := range dc {
			da[i] = bwd(aData[i], out[i], dc[i])
		}
		a.AddToGrad(mustFromSlice(a.Shape(), da))
	})
	return result
}

// Sigmoid applies σ(x) = 1/(1+e^-x) elementwise.
func Sigmoid(t *tape.Tape, a *mat.Mat) *mat.Mat {
	return unaryOp("sigmoid", t, a,
		func(x float32) float32 { return float32(1 / (1 + math.Exp(float64(-x)))) },
		func(_, y, dc float32) float32 { return dc * y * (1 - y) })
}

// Tanh applies tanh(x) elementwise.
func Tanh(t *tape.Tape, a *mat.Mat) *mat.Mat {
	return unaryOp("tanh", t, a,
		func(x float32) float32 { return float32(math.Tanh(float64(x))) },
		func(_, y, dc float32) float32 { return dc * (1 - y*y) })
}

// Exp applies e^x elementwise.
func Exp(t *tape.Tape, a *mat.Mat) *mat.Mat {
	return unaryOp("exp", t, a,
		func(x float32) float32 { return float32(math.Exp(float64(x))) },
		func(_, y, dc float32) float32 { return dc * y })
}

// Log applies ln(x) elementwise.
func Log(t *tape.Tape, a *mat.Mat) *mat.Mat {
	return unaryOp("log", t, a,
		func(x float32) float32 { return float32(math.Log(float64(x))) },
		func(x, _, dc float32) float32 { return dc / x })
}

// ReLU applies max(0,x) elementwise.
func ReLU(t *tape.Tape, a *mat.Mat) *mat.Mat {
	return unaryOp("relu", t, a,
		func(x float32) float32 {
			if x > 0 {
				return x
			}
			return 0
		},
		func(x, _, dc float32) float32 {
			if x > 0 {
				return dc
			}
			return 0
		})
}

// Pow applies x^p elementwise.
func Pow(t *tape.Tape, a *mat.Mat, p float32) *mat.Mat {
	return unaryOp("pow", t, a,
		func(x float32) float32 { return float32(math.Pow(float64(x), float64(p))) },
		func(x, _, dc float32) float32 { return dc * p * float32(math.Pow(float64(x), float64(p-1))) })
}

// Sum reduces all elements to a scalar Mat of shape [1,1].
func Sum(t *tape.Tape, a *mat.Mat) *mat.Mat {
	aData := a.W().Dense()
	var total float32
	for _, v := range aData {
		total += v
	}
	result := newMatFromSlice("sum", ndarray.Shape{1, 1}, []float32{total})
	t.Record(func() {
		dc := result.DW().Dense()[0]
		da := make([]float32, len(aData))
		for i := range da {
			da[i] = dc
		}
		a.AddToGrad(mustFromSlice(a.Shape(), da))
	})
	return result
}

// Mean reduces all elements to a scalar Mat holding the arithmetic mean.
func Mean(t *tape.Tape, a *mat.Mat) *mat.Mat {
	aData := a.W().Dense()
	n := float32(len(aData))
	var total float32
	for _, v := range aData {
		total += v
	}
	result := newMatFromSlice("mean", ndarray.Shape{1, 1}, []float32{total / n})
	t.Record(func() {
		dc := result.DW().Dense()[0] / n
		da := make([]float32, len(aData))
		for i := range da {
			da[i] = dc
		}
		a.AddToGrad(mustFromSlice(a.Shape(), da))
	})
	return result
}

// RowPluck returns the i-th row of E (shape [vocab, dim]) as a [dim,1]
// column vector. Backward scatters into dE[i,:] only (spec.md §4.4).
func RowPluck(t *tape.Tape, e *mat.Mat, i int) *mat.Mat {
	rows, cols := shape2D(e.Shape())
	if i < 0 || i >= rows {
		panic(errs.New(errs.OutOfRange, "row_pluck", "row index out of range").WithAxis(i))
	}
	eData := e.W().Dense()
	out := make([]float32, cols)
	copy(out, eData[i*cols:(i+1)*cols])
	result := newMatFromSlice("row_pluck", ndarray.Shape{cols, 1}, out)
	t.Record(func() {
		dc := result.DW().Dense()
		full := make([]float32, rows*cols)
		copy(full[i*cols:(i+1)*cols], dc)
		e.AddToGrad(mustFromSlice(e.Shape(), full))
	})
	return result
}

// RowsPluck stacks the rows [i1..ik] of E into a single [dim, k] Mat.
// Backward accumulates each column's contribution into its source row.
func RowsPluck(t *tape.Tape, e *mat.Mat, idxs []int) *mat.Mat {
	rows, cols := shape2D(e.Shape())
	eData := e.W().Dense()
	out := make([]float32, cols*len(idxs))
	for c, i := range idxs {
		if i < 0 || i >= rows {
			panic(errs.New(errs.OutOfRange, "rows_pluck", "row index out of range").WithAxis(i))
		}
		for r := 0; r < cols; r++ {
			out[r*len(idxs)+c] = eData[i*cols+r]
		}
	}
	result := newMatFromSlice("rows_pluck", ndarray.Shape{cols, len(idxs)}, out)
	t.Record(func() {
		dc := result.DW().Dense()
		full := make([]float32, rows*cols)
		for c, i := range idxs {
			for r := 0; r < cols; r++ {
				full[i*cols+r] += dc[r*len(idxs)+c]
			}
		}
		e.AddToGrad(mustFromSlice(e.Shape(), full))
	})
	return result
}

// Softmax applies softmax along the column vector axis of a [n,1] Mat.
func Softmax(t *tape.Tape, a *mat.Mat) *mat.Mat {
	rows, cols := shape2D(a.Shape())
	if cols != 1 {
		panic(errs.New(errs.ShapeMismatch, "softmax", "expected a column vector [n,1]"))
	}
	aData := a.W().Dense()
	maxV := aData[0]
	for _, v := range aData {
		if v > maxV {
			maxV = v
		}
	}
	out := make([]float32, rows)
	var sum float32
	for i, v := range aData {
		e := float32(math.Exp(float64(v - maxV)))
		out[i] = e
		sum += e
	}
	for i := range out {
		out[i] /= sum
	}
	result := newMatFromSlice("softmax", a.Shape(), out)
	t.Record(func() {
		dc := result.DW().Dense()
		// Jacobian-vector product: da_i = y_i * (dc_i - sum_j(dc_j*y_j))
		var dot float32
		for i := range out {
			dot += dc[i] * out[i]
		}
		da := make([]float32, rows)
		for i := range da {
			da[i] = out[i] * (dc[i] - dot)
		}
		a.AddToGrad(mustFromSlice(a.Shape(), da))
	})
	return result
}

// CrossEntropy returns -log(softmax(logprobs)[target]) as a scalar Mat,
// given pre-softmax logits logprobs (shape [n,1]).
func CrossEntropy(t *tape.Tape, logprobs *mat.Mat, target int) *mat.Mat {
	rows, cols := shape2D(logprobs.Shape())
	if cols != 1 {
		panic(errs.New(errs.ShapeMismatch, "cross_entropy", "expected a column vector [n,1]"))
	}
	if target < 0 || target >= rows {
		panic(errs.New(errs.OutOfRange, "cross_entropy", "target index out of range").WithAxis(target))
	}
	data := logprobs.W().Dense()
	maxV := data[0]
	for _, v := range data {
		if v > maxV {
			maxV = v
		}
	}
	probs := make([]float32, rows)
	var sum float32
	for i, v := range data {
		e := float32(math.Exp(float64(v - maxV)))
		probs[i] = e
		sum += e
	}
	for i := range probs {
		probs[i] /= sum
	}
	loss := -float32(math.Log(float64(probs[target] + 1e-12)))
	result := newMatFromSlice("cross_entropy", ndarray.Shape{1, 1}, []float32{loss})

	t.Record(func() {
		dc := result.DW().Dense()[0]
		da := make([]float32, rows)
		for i := range da {
			if i == target {
				da[i] = dc * (probs[i] - 1)
			} else {
				da[i] = dc * probs[i]
			}
		}
		logprobs.AddToGrad(mustFromSlice(logprobs.Shape(), da))
	})
	return result
}
