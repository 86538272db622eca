// Package model implements the character-level recurrent model of
// spec.md §4.5 end-to-end: an embedding table, a stack of LSTM cells,
// and a linear decoder to vocabulary logits, plus the Hogwild parallel
// training driver of spec.md §5.
package model

import (
	"math"
	"math/rand"
	"runtime"
	"strconv"
	"sync"

	"github.com/born-ml/born/internal/config"
	"github.com/born-ml/born/internal/layer"
	"github.com/born-ml/born/internal/mat"
	"github.com/born-ml/born/internal/ndarray"
	"github.com/born-ml/born/internal/ontology"
	"github.com/born-ml/born/internal/ops"
	"github.com/born-ml/born/internal/solver"
	"github.com/born-ml/born/internal/tape"
)

// StackedModel is an embedding table feeding a stack of LSTM cells
// (spec.md §4.5's forward_LSTMs) and a linear decoder to vocabulary
// logits.
type StackedModel struct {
	Embedding   *mat.Mat
	Cells       []*layer.LSTM
	Decoder     *layer.Layer
	VocabSize   int
	EmbedDim    int
	HiddenSizes []int
}

// New builds a StackedModel with the given vocabulary size, embedding
// width and per-level hidden sizes.
func New(vocabSize, embedDim int, hiddenSizes []int, rng *rand.Rand) *StackedModel {
	bound := math.Sqrt(1.0 / float64(embedDim))
	emb := ndarray.Uniform[float32](ndarray.Shape{vocabSize, embedDim}, -bound, bound, rng)
	m := &StackedModel{
		Embedding:   mat.New("embedding", emb),
		VocabSize:   vocabSize,
		EmbedDim:    embedDim,
		HiddenSizes: append([]int(nil), hiddenSizes...),
	}
	in := embedDim
	for k, h := range hiddenSizes {
		m.Cells = append(m.Cells, layer.NewLSTM(cellName(k), in, h, 0, false))
		in = h
	}
	m.Decoder = layer.NewLayer("decoder", in, vocabSize)
	return m
}

func cellName(k int) string { return "cell" + string(rune('0'+k)) }

// Configuration returns this model's hyperparameters as a config.Map (the
// external key/value format of spec.md §6), so they can be saved next to
// a checkpoint and used to rebuild the same shape before loading weights.
func (m *StackedModel) Configuration() *config.Map {
	c := config.New()
	c.Set("vocabulary_size", strconv.Itoa(m.VocabSize))
	c.Set("embedding_size", strconv.Itoa(m.EmbedDim))
	for _, h := range m.HiddenSizes {
		c.Set("hidden_sizes", strconv.Itoa(h))
	}
	return c
}

// NewFromConfiguration rebuilds a StackedModel's shape from a
// configuration map produced by Configuration. It does not restore
// trained weights — those load separately via internal/blob once the
// shape matches.
func NewFromConfiguration(c *config.Map, rng *rand.Rand) *StackedModel {
	vocabSize := c.Int("vocabulary_size", 0)
	embedDim := c.Int("embedding_size", 0)
	hiddenSizes := c.Ints("hidden_sizes")
	return New(vocabSize, embedDim, hiddenSizes, rng)
}

// Parameters returns every trainable Mat in construction order: the
// embedding table, each LSTM level's gates, then the decoder.
func (m *StackedModel) Parameters() []*mat.Mat {
	ps := []*mat.Mat{m.Embedding}
	for _, c := range m.Cells {
		ps = append(ps, c.Parameters()...)
	}
	return append(ps, m.Decoder.Parameters()...)
}

// Encapsulate returns a worker-private shadow of the whole model: every
// parameter Mat aliases the master w buffer but owns a fresh, private
// gradient (spec.md §9 Hogwild worker shadows).
func (m *StackedModel) Encapsulate() *StackedModel {
	shadow := &StackedModel{
		Embedding:   m.Embedding.Encapsulate(),
		VocabSize:   m.VocabSize,
		EmbedDim:    m.EmbedDim,
		HiddenSizes: append([]int(nil), m.HiddenSizes...),
		Decoder:     m.Decoder.Encapsulate(),
	}
	for _, c := range m.Cells {
		shadow.Cells = append(shadow.Cells, c.Encapsulate())
	}
	return shadow
}

// InitialStates returns zero recurrent state for every stacked level.
func (m *StackedModel) InitialStates() []layer.State {
	return layer.InitialStates(m.Cells)
}

// Step runs the model one character forward: embeds charIdx, threads it
// through the LSTM stack from prev, and decodes to vocabulary logits.
func (m *StackedModel) Step(t *tape.Tape, charIdx int, prev []layer.State) (logits *mat.Mat, next []layer.State) {
	x := ops.RowPluck(t, m.Embedding, charIdx)
	hidden, next := layer.ForwardLSTMs(t, m.Cells, x, nil, prev)
	logits = m.Decoder.Activate(t, hidden)
	return logits, next
}

// LineLoss runs a full training example (spec.md §6's corpus line, already
// prepad/postpad-encoded) through the model and returns the summed
// per-character cross-entropy loss Mat, with backward closures recorded
// on t for every step.
func (m *StackedModel) LineLoss(t *tape.Tape, line []int) *mat.Mat {
	states := m.InitialStates()
	var loss *mat.Mat
	for i := 0; i < len(line)-1; i++ {
		logits, next := m.Step(t, line[i], states)
		states = next
		stepLoss := ops.CrossEntropy(t, logits, line[i+1])
		if loss == nil {
			loss = stepLoss
		} else {
			loss = ops.Add(t, loss, stepLoss)
		}
	}
	return loss
}

// Validate computes the mean per-character cross-entropy over lines, with
// backprop disabled (spec.md's NoBackprop scope). Lines are independent
// read-only forward passes over m, so they are partitioned across a
// worker pool sized to the CPU count; each worker owns its own tape and
// accumulates into a private slot of sums/counts, so no locking is
// needed until the final sequential reduction.
func Validate(m *StackedModel, lines [][]int) float32 {
	sums := make([]float32, len(lines))
	counts := make([]int, len(lines))

	forEachLine(len(lines), func(i int) {
		t := tape.New()
		restore := t.NoBackprop()
		defer restore()

		states := m.InitialStates()
		line := lines[i]
		for k := 0; k < len(line)-1; k++ {
			logits, next := m.Step(t, line[k], states)
			states = next
			stepLoss := ops.CrossEntropy(t, logits, line[k+1])
			sums[i] += stepLoss.W().Dense()[0]
			counts[i]++
		}
	})

	var total float32
	var count int
	for i := range lines {
		total += sums[i]
		count += counts[i]
	}
	if count == 0 {
		return 0
	}
	return total / float32(count)
}

// minLinesPerWorker is the smallest validation batch worth splitting
// across goroutines; below it the dispatch overhead isn't worth paying.
const minLinesPerWorker = 64

// forEachLine runs validate(i) for every line index in [0, n), fanned out
// across min(runtime.NumCPU(), n) goroutines, each owning a contiguous run
// of line indices. Falls back to a sequential loop when n is below
// minLinesPerWorker.
func forEachLine(n int, validate func(i int)) {
	workers := runtime.NumCPU()
	if workers < 1 || n < minLinesPerWorker {
		workers = 1
	}
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		for i := 0; i < n; i++ {
			validate(i)
		}
		return
	}

	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				validate(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// Reconstruct greedily decodes a character sequence starting from seed:
// at each step it feeds the current symbol through the model, takes the
// argmax over the decoder's logits as the next symbol, and feeds that
// back in, stopping at stopSymbol or after maxLen generated symbols.
func (m *StackedModel) Reconstruct(seed, stopSymbol, maxLen int) []int {
	t := tape.New()
	restore := t.NoBackprop()
	defer restore()

	states := m.InitialStates()
	out := make([]int, 0, maxLen+1)
	out = append(out, seed)
	current := seed
	for i := 0; i < maxLen; i++ {
		logits, next := m.Step(t, current, states)
		states = next
		current = argmax(logits.W().Dense())
		out = append(out, current)
		if current == stopSymbol {
			break
		}
	}
	return out
}

// ReconstructLattice walks an ontology tree root-to-leaf, constraining
// the decoder's argmax at each step to the current node's children: the
// model may only emit a symbol that advances to one of them. symbolOf
// maps an ontology node name to the vocabulary index fed back into the
// model as that node's representation. Descent stops at a childless node
// or after maxDepth steps.
func (m *StackedModel) ReconstructLattice(tree *ontology.Tree, seed int, root string, maxDepth int, symbolOf map[string]int) []string {
	t := tape.New()
	restore := t.NoBackprop()
	defer restore()

	states := m.InitialStates()
	path := []string{root}
	current := root
	symbol := seed
	for i := 0; i < maxDepth; i++ {
		children := tree.ChildrenOf(current)
		if len(children) == 0 {
			break
		}
		logits, next := m.Step(t, symbol, states)
		states = next
		dense := logits.W().Dense()

		best := children[0]
		bestScore := float32(math.Inf(-1))
		for _, c := range children {
			idx, ok := symbolOf[c]
			if !ok || idx >= len(dense) {
				continue
			}
			if dense[idx] > bestScore {
				bestScore = dense[idx]
				best = c
			}
		}
		current = best
		symbol = symbolOf[current]
		path = append(path, current)
	}
	return path
}

func argmax(xs []float32) int {
	best := 0
	for i, v := range xs {
		if v > xs[best] {
			best = i
		}
	}
	return best
}

// TrainConfig holds the Hogwild driver's hyperparameters.
type TrainConfig struct {
	Workers     int
	Minibatch   int
	Solver      solver.Solver
	GradScale   float32 // scale passed to solver.Step, typically 1/minibatch
	L2          float32
}

// TrainEpoch runs one Hogwild epoch: Workers goroutines, each with its
// own tape and model shadow (spec.md §5: "each worker constructs a
// parallel Mat list whose w aliases the master buffer... Solvers update
// the master w without locking"), pulling minibatches of lines from
// lines via a shared, pre-filled and closed channel of line indices and calling cfg.Solver on
// the shadow's parameters (which alias the master w buffers) after each
// minibatch.
func TrainEpoch(m *StackedModel, lines [][]int, cfg TrainConfig) {
	cursor := make(chan int, len(lines))
	for i := range lines {
		cursor <- i
	}
	close(cursor)

	done := make(chan struct{})
	for w := 0; w < cfg.Workers; w++ {
		go func() {
			defer func() { done <- struct{}{} }()
			shadow := m.Encapsulate()
			params := shadow.Parameters()
			t := tape.New()

			batch := make([]int, 0, cfg.Minibatch)
			flush := func() {
				if len(batch) == 0 {
					return
				}
				var loss *mat.Mat
				for _, idx := range batch {
					lineLoss := shadow.LineLoss(t, lines[idx])
					if loss == nil {
						loss = lineLoss
					} else {
						loss = ops.Add(t, loss, lineLoss)
					}
				}
				loss.SeedGradient(1)
				t.Backward()
				cfg.Solver.Step(params, cfg.GradScale, cfg.L2)
				batch = batch[:0]
			}

			for idx := range cursor {
				batch = append(batch, idx)
				if len(batch) >= cfg.Minibatch {
					flush()
				}
			}
			flush()
		}()
	}
	for w := 0; w < cfg.Workers; w++ {
		<-done
	}
}
