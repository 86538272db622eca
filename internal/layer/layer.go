// Package layer implements the recurrent layer library of spec.md §4.5:
// Layer, StackedInputLayer, RNN, ShortcutRNN, GatedInput and LSTM, each
// exposing Parameters() and Activate(...) in a deterministic order so
// equal-type layers can have their parameters copied across instances.
package layer

import (
	"math"
	"math/rand"

	"github.com/born-ml/born/internal/mat"
	"github.com/born-ml/born/internal/ndarray"
	"github.com/born-ml/born/internal/ops"
	"github.com/born-ml/born/internal/tape"
)

// rng is shared for weight initialization; callers wanting reproducible
// runs should seed it once at process start via rand.New elsewhere and
// assign Seed below.
var rng = rand.New(rand.NewSource(1))

// Seed reseeds the package-level weight initializer (tests use this for
// deterministic parameter-equivalence checks).
func Seed(seed int64) { rng = rand.New(rand.NewSource(seed)) }

// xavier draws a [rows, cols] weight Mat from Xavier/Glorot uniform bounds.
func xavier(name string, rows, cols int) *mat.Mat {
	bound := math.Sqrt(6.0 / float64(rows+cols))
	w := ndarray.Uniform[float32](ndarray.Shape{rows, cols}, -bound, bound, rng)
	return mat.New(name, w)
}

// StackedInputLayer computes y = Σ Wk·xk + b, fusing K input weight blocks
// and a shared bias with no intermediate concatenation (spec.md §4.5).
type StackedInputLayer struct {
	Ws  []*mat.Mat // each [out, ink]
	B   *mat.Mat   // [out, 1]
	out int
	ins []int
}

// NewStackedInputLayer creates a layer combining inputs of sizes ins into
// an output of size out.
func NewStackedInputLayer(name string, ins []int, out int) *StackedInputLayer {
	l := &StackedInputLayer{out: out, ins: append([]int(nil), ins...)}
	for k, in := range ins {
		l.Ws = append(l.Ws, xavier(nameFor(name, "W", k), out, in))
	}
	l.B = mat.Zeros(name+".b", ndarray.Shape{out, 1})
	return l
}

func nameFor(base, field string, k int) string {
	return base + "." + field + string(rune('0'+k))
}

// Parameters returns [W1..Wk, b] in construction order.
func (l *StackedInputLayer) Parameters() []*mat.Mat {
	ps := make([]*mat.Mat, 0, len(l.Ws)+1)
	ps = append(ps, l.Ws...)
	return append(ps, l.B)
}

// Activate computes Σ Wk·xk + b.
func (l *StackedInputLayer) Activate(t *tape.Tape, xs ...*mat.Mat) *mat.Mat {
	if len(xs) != len(l.Ws) {
		panic("layer: StackedInputLayer.Activate called with wrong number of inputs")
	}
	pairs := make([][2]*mat.Mat, len(xs))
	for i, x := range xs {
		pairs[i] = [2]*mat.Mat{l.Ws[i], x}
	}
	return ops.MulAddMulWithBias(t, pairs, l.B)
}

// OutSize returns the output dimension.
func (l *StackedInputLayer) OutSize() int { return l.out }

// Encapsulate returns a worker-private shadow of this layer: every
// parameter Mat is encapsulated (spec.md §9 Hogwild worker shadows),
// aliasing the master w buffers but owning fresh, private gradients.
func (l *StackedInputLayer) Encapsulate() *StackedInputLayer {
	ws := make([]*mat.Mat, len(l.Ws))
	for i, w := range l.Ws {
		ws[i] = w.Encapsulate()
	}
	return &StackedInputLayer{Ws: ws, B: l.B.Encapsulate(), out: l.out, ins: append([]int(nil), l.ins...)}
}

// Layer computes y = W·x + b for a single input (spec.md §4.5).
type Layer struct {
	inner *StackedInputLayer
}

// NewLayer creates a Layer(in, out).
func NewLayer(name string, in, out int) *Layer {
	return &Layer{inner: NewStackedInputLayer(name, []int{in}, out)}
}

// Parameters returns {W, b}.
func (l *Layer) Parameters() []*mat.Mat { return l.inner.Parameters() }

// Activate computes W·x + b.
func (l *Layer) Activate(t *tape.Tape, x *mat.Mat) *mat.Mat {
	return l.inner.Activate(t, x)
}

// Encapsulate returns a worker-private shadow of this layer.
func (l *Layer) Encapsulate() *Layer { return &Layer{inner: l.inner.Encapsulate()} }

// RNN computes y = Wx·x + Wh·h + b: the fused two-input affine step shared
// by every recurrent cell in this library (spec.md §4.5). When used
// directly as a standalone layer (not inside LSTM), the caller applies
// whatever nonlinearity it wants to the result (typically Tanh).
type RNN struct {
	inner *StackedInputLayer
}

// NewRNN creates an RNN(input, hidden[, output]) block; if output <= 0 the
// hidden size is used as the output size.
func NewRNN(name string, input, hidden, output int) *RNN {
	if output <= 0 {
		output = hidden
	}
	return &RNN{inner: NewStackedInputLayer(name, []int{input, hidden}, output)}
}

// Parameters returns {Wx, Wh, b}.
func (r *RNN) Parameters() []*mat.Mat { return r.inner.Parameters() }

// Activate computes Wx·x + Wh·h + b.
func (r *RNN) Activate(t *tape.Tape, x, h *mat.Mat) *mat.Mat {
	return r.inner.Activate(t, x, h)
}

// Encapsulate returns a worker-private shadow of this layer.
func (r *RNN) Encapsulate() *RNN { return &RNN{inner: r.inner.Encapsulate()} }

// ShortcutRNN computes y = Wx·x + Ws·s + Wh·h + b (the Graves-style
// shortcut input variant of RNN, spec.md §4.5).
type ShortcutRNN struct {
	inner *StackedInputLayer
}

// NewShortcutRNN creates a ShortcutRNN(input, shortcut, hidden[, output]) block.
func NewShortcutRNN(name string, input, shortcut, hidden, output int) *ShortcutRNN {
	if output <= 0 {
		output = hidden
	}
	return &ShortcutRNN{inner: NewStackedInputLayer(name, []int{input, shortcut, hidden}, output)}
}

// Parameters returns {Wx, Ws, Wh, b}.
func (s *ShortcutRNN) Parameters() []*mat.Mat { return s.inner.Parameters() }

// Activate computes Wx·x + Ws·s + Wh·h + b.
func (s *ShortcutRNN) Activate(t *tape.Tape, x, shortcut, h *mat.Mat) *mat.Mat {
	return s.inner.Activate(t, x, shortcut, h)
}

// Encapsulate returns a worker-private shadow of this layer.
func (s *ShortcutRNN) Encapsulate() *ShortcutRNN { return &ShortcutRNN{inner: s.inner.Encapsulate()} }
