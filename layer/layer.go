// Package layer provides the public API for the recurrent layer library:
// Layer, StackedInputLayer, RNN, ShortcutRNN, GatedInput and LSTM.
package layer

import (
	"github.com/born-ml/born/internal/layer"
	"github.com/born-ml/born/internal/mat"
	"github.com/born-ml/born/internal/tape"
)

// Tape is the per-worker autodiff tape threaded through every Activate call.
type Tape = tape.Tape

// Mat is the differentiable tensor type every layer operates on.
type Mat = mat.Mat

// Seed reseeds the package-level weight initializer.
func Seed(seed int64) { layer.Seed(seed) }

// StackedInputLayer computes y = Σ Wk·xk + b.
type StackedInputLayer = layer.StackedInputLayer

// NewStackedInputLayer creates a layer combining inputs of sizes ins into
// an output of size out.
func NewStackedInputLayer(name string, ins []int, out int) *StackedInputLayer {
	return layer.NewStackedInputLayer(name, ins, out)
}

// Layer computes y = W·x + b.
type Layer = layer.Layer

// NewLayer creates a Layer(in, out).
func NewLayer(name string, in, out int) *Layer { return layer.NewLayer(name, in, out) }

// RNN computes y = Wx·x + Wh·h + b.
type RNN = layer.RNN

// NewRNN creates an RNN(input, hidden[, output]) block.
func NewRNN(name string, input, hidden, output int) *RNN { return layer.NewRNN(name, input, hidden, output) }

// ShortcutRNN computes y = Wx·x + Ws·s + Wh·h + b.
type ShortcutRNN = layer.ShortcutRNN

// NewShortcutRNN creates a ShortcutRNN(input, shortcut, hidden[, output]) block.
func NewShortcutRNN(name string, input, shortcut, hidden, output int) *ShortcutRNN {
	return layer.NewShortcutRNN(name, input, shortcut, hidden, output)
}

// GatedInput is a single-gate RNN with sigmoid output.
type GatedInput = layer.GatedInput

// NewGatedInput creates a GatedInput(input, hidden) block.
func NewGatedInput(name string, input, hidden int) *GatedInput { return layer.NewGatedInput(name, input, hidden) }

// State is one LSTM level's recurrent state.
type State = layer.State

// LSTM implements the four-gate recurrent cell, with optional shortcut
// input and memory_feeds_gates variant.
type LSTM = layer.LSTM

// NewLSTM creates an LSTM(input, hidden[, shortcut][, memory_feeds_gates]) cell.
func NewLSTM(name string, input, hidden, shortcutSize int, memoryFeedsGates bool) *LSTM {
	return layer.NewLSTM(name, input, hidden, shortcutSize, memoryFeedsGates)
}

// InitialStates returns zero states for a stack of LSTM cells.
func InitialStates(cells []*LSTM) []State { return layer.InitialStates(cells) }

// ForwardLSTMs threads x through each level of a stacked LSTM.
func ForwardLSTMs(t *Tape, cells []*LSTM, x, shortcut *Mat, prev []State) (*Mat, []State) {
	return layer.ForwardLSTMs(t, cells, x, shortcut, prev)
}
