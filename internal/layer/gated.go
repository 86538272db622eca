package layer

import (
	"github.com/born-ml/born/internal/mat"
	"github.com/born-ml/born/internal/ops"
	"github.com/born-ml/born/internal/tape"
)

// GatedInput is a single-gate RNN with sigmoid output, used as the LSTM
// input gate (spec.md §4.5).
type GatedInput struct {
	inner *RNN
}

// NewGatedInput creates a GatedInput(input, hidden) block.
func NewGatedInput(name string, input, hidden int) *GatedInput {
	return &GatedInput{inner: NewRNN(name, input, hidden, hidden)}
}

// Parameters returns {Wx, Wh, b}.
func (g *GatedInput) Parameters() []*mat.Mat { return g.inner.Parameters() }

// Activate computes σ(Wx·x + Wh·h + b).
func (g *GatedInput) Activate(t *tape.Tape, x, h *mat.Mat) *mat.Mat {
	return ops.Sigmoid(t, g.inner.Activate(t, x, h))
}

// Encapsulate returns a worker-private shadow of this layer.
func (g *GatedInput) Encapsulate() *GatedInput { return &GatedInput{inner: g.inner.Encapsulate()} }
