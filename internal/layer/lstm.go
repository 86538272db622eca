package layer

import (
	"github.com/born-ml/born/internal/mat"
	"github.com/born-ml/born/internal/ndarray"
	"github.com/born-ml/born/internal/ops"
	"github.com/born-ml/born/internal/tape"
)

// State is one LSTM level's recurrent state: cell memory and hidden output
// (spec.md §3).
type State struct {
	Memory *mat.Mat
	Hidden *mat.Mat
}

// LSTM implements the four-gate cell of spec.md §4.5, with an optional
// Graves-style shortcut input and an optional memory_feeds_gates (Graves
// peephole) variant where the cell state additionally feeds the
// forget/output/input gates: the input and forget gates see the previous
// cell, the output gate sees the updated cell c'.
//
//	i = σ(W_i · inputs);  f = σ(W_f · inputs);  o = σ(W_o · inputs);  g = tanh(W_g · inputs)
//	c' = f ⊙ c + i ⊙ g
//	h' = o ⊙ tanh(c')
type LSTM struct {
	inputSize        int
	hiddenSize       int
	shortcutSize     int // 0 means no shortcut input
	memoryFeedsGates bool

	iGate, fGate, oGate *StackedInputLayer // inputs: [x, (shortcut), h, (cell)]
	gGate               *StackedInputLayer // inputs: [x, (shortcut), h]
}

// NewLSTM creates an LSTM(input, hidden[, shortcut][, memory_feeds_gates])
// cell. Pass shortcutSize 0 to omit the shortcut input.
func NewLSTM(name string, input, hidden, shortcutSize int, memoryFeedsGates bool) *LSTM {
	base := []int{input}
	if shortcutSize > 0 {
		base = append(base, shortcutSize)
	}
	base = append(base, hidden)

	gateDims := append([]int(nil), base...)
	if memoryFeedsGates {
		gateDims = append(gateDims, hidden) // cell peephole, same width as hidden
	}

	return &LSTM{
		inputSize:        input,
		hiddenSize:       hidden,
		shortcutSize:     shortcutSize,
		memoryFeedsGates: memoryFeedsGates,
		iGate:            NewStackedInputLayer(name+".i", gateDims, hidden),
		fGate:            NewStackedInputLayer(name+".f", gateDims, hidden),
		oGate:            NewStackedInputLayer(name+".o", gateDims, hidden),
		gGate:            NewStackedInputLayer(name+".g", base, hidden),
	}
}

// Parameters returns the parameters of all four gates, in i,f,o,g order.
func (l *LSTM) Parameters() []*mat.Mat {
	ps := make([]*mat.Mat, 0, 4*3)
	ps = append(ps, l.iGate.Parameters()...)
	ps = append(ps, l.fGate.Parameters()...)
	ps = append(ps, l.oGate.Parameters()...)
	ps = append(ps, l.gGate.Parameters()...)
	return ps
}

// HiddenSize returns the hidden width of this cell.
func (l *LSTM) HiddenSize() int { return l.hiddenSize }

// InitialState returns a zero (Memory, Hidden) state for this cell.
func (l *LSTM) InitialState() State {
	return State{
		Memory: mat.Zeros("c0", ndarray.Shape{l.hiddenSize, 1}),
		Hidden: mat.Zeros("h0", ndarray.Shape{l.hiddenSize, 1}),
	}
}

// Activate steps the cell forward one timestep. shortcut may be nil iff
// this LSTM was built with shortcutSize 0.
func (l *LSTM) Activate(t *tape.Tape, x, shortcut *mat.Mat, prev State) State {
	base := []*mat.Mat{x}
	if l.shortcutSize > 0 {
		if shortcut == nil {
			panic("layer: LSTM configured with a shortcut input but none was supplied")
		}
		base = append(base, shortcut)
	}
	base = append(base, prev.Hidden)

	gateInputs := append([]*mat.Mat(nil), base...)
	if l.memoryFeedsGates {
		gateInputs = append(gateInputs, prev.Memory)
	}

	i := ops.Sigmoid(t, l.iGate.Activate(t, gateInputs...))
	f := ops.Sigmoid(t, l.fGate.Activate(t, gateInputs...))
	g := ops.Tanh(t, l.gGate.Activate(t, base...))

	cell := ops.Add(t, ops.Eltmul(t, f, prev.Memory), ops.Eltmul(t, i, g))

	outInputs := base
	if l.memoryFeedsGates {
		outInputs = append(append([]*mat.Mat(nil), base...), cell)
	}
	o := ops.Sigmoid(t, l.oGate.Activate(t, outInputs...))
	hidden := ops.Eltmul(t, o, ops.Tanh(t, cell))

	return State{Memory: cell, Hidden: hidden}
}

// Encapsulate returns a worker-private shadow of this cell: every gate's
// parameters are encapsulated (spec.md §9 Hogwild worker shadows).
func (l *LSTM) Encapsulate() *LSTM {
	return &LSTM{
		inputSize:        l.inputSize,
		hiddenSize:       l.hiddenSize,
		shortcutSize:     l.shortcutSize,
		memoryFeedsGates: l.memoryFeedsGates,
		iGate:            l.iGate.Encapsulate(),
		fGate:            l.fGate.Encapsulate(),
		oGate:            l.oGate.Encapsulate(),
		gGate:            l.gGate.Encapsulate(),
	}
}

// InitialStates returns zero states for a stack of LSTM cells, one per
// level (spec.md §4.5: initial_states(hidden_sizes)).
func InitialStates(cells []*LSTM) []State {
	states := make([]State, len(cells))
	for i, c := range cells {
		states[i] = c.InitialState()
	}
	return states
}

// ForwardLSTMs threads x through each level of a stacked LSTM, feeding
// hidden[k] as the input to level k+1 (spec.md §4.5:
// forward_LSTMs(x, prev_state, cells)). shortcut, if non-nil, is fed to
// every level that was configured with a shortcut input.
func ForwardLSTMs(t *tape.Tape, cells []*LSTM, x, shortcut *mat.Mat, prev []State) (out *mat.Mat, next []State) {
	next = make([]State, len(cells))
	cur := x
	for k, cell := range cells {
		s := cell.Activate(t, cur, shortcut, prev[k])
		next[k] = s
		cur = s.Hidden
	}
	return cur, next
}
