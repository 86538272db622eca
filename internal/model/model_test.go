package model

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/born-ml/born/internal/ndarray"
	"github.com/born-ml/born/internal/ontology"
	"github.com/born-ml/born/internal/solver"
	"github.com/born-ml/born/internal/tape"
)

func newTestModel() *StackedModel {
	rng := rand.New(rand.NewSource(1))
	return New(12, 4, []int{6, 6}, rng)
}

func TestLineLossIsScalar(t *testing.T) {
	m := newTestModel()
	t0 := tape.New()
	loss := m.LineLoss(t0, []int{0, 1, 2, 3})
	require.True(t, loss.Shape().Equal(ndarray.Shape{1, 1}))
	require.Len(t, loss.W().Dense(), 1)
}

func TestEncapsulateAliasesEmbeddingMemory(t *testing.T) {
	m := newTestModel()
	shadow := m.Encapsulate()

	shadow.Embedding.W().Set(42, 0, 0)
	require.Equal(t, float32(42), m.Embedding.W().At(0, 0))
	require.NotEqual(t, m.Embedding.ID(), shadow.Embedding.ID())
}

func TestTrainEpochUpdatesParameters(t *testing.T) {
	m := newTestModel()
	before := append([]float32(nil), m.Decoder.Parameters()[0].W().Dense()...)

	lines := [][]int{{0, 1, 2, 3}, {1, 2, 3, 0}, {2, 3, 0, 1}, {3, 0, 1, 2}}
	cfg := TrainConfig{
		Workers:   2,
		Minibatch: 2,
		Solver:    solver.NewSGD(0.1),
		GradScale: 1.0,
	}
	TrainEpoch(m, lines, cfg)

	after := m.Decoder.Parameters()[0].W().Dense()
	changed := false
	for i := range before {
		if before[i] != after[i] {
			changed = true
			break
		}
	}
	require.True(t, changed, "decoder weights should change after a training epoch")
}

func TestValidateDoesNotAccumulateGradients(t *testing.T) {
	m := newTestModel()
	lines := [][]int{{0, 1, 2, 3}}
	_ = Validate(m, lines)
	require.False(t, m.Embedding.HasGrad(), "validation must not leave gradients on the model (NoBackprop scope)")
}

func TestConfigurationRoundTrips(t *testing.T) {
	m := newTestModel()
	cfg := m.Configuration()

	rng := rand.New(rand.NewSource(2))
	rebuilt := NewFromConfiguration(cfg, rng)

	require.Equal(t, m.VocabSize, rebuilt.VocabSize)
	require.Equal(t, m.EmbedDim, rebuilt.EmbedDim)
	require.Equal(t, m.HiddenSizes, rebuilt.HiddenSizes)
}

func TestReconstructStopsAtStopSymbolOrMaxLen(t *testing.T) {
	m := newTestModel()

	out := m.Reconstruct(0, 11, 5)
	require.LessOrEqual(t, len(out), 6)
	require.Equal(t, 0, out[0])
	if len(out) < 6 {
		require.Equal(t, 11, out[len(out)-1])
	}
}

func TestReconstructDoesNotAccumulateGradients(t *testing.T) {
	m := newTestModel()
	_ = m.Reconstruct(0, 11, 3)
	require.False(t, m.Embedding.HasGrad())
}

func TestReconstructLatticeStaysWithinChildren(t *testing.T) {
	m := newTestModel()

	tree := ontology.New()
	tree.AddEdge("root", "a")
	tree.AddEdge("root", "b")
	tree.AddEdge("a", "a1")
	tree.AddEdge("a", "a2")

	symbolOf := map[string]int{"a": 0, "b": 1, "a1": 2, "a2": 3}

	path := m.ReconstructLattice(tree, 0, "root", 3, symbolOf)
	require.Equal(t, "root", path[0])
	for _, node := range path[1:] {
		found := false
		for _, c := range append(tree.ChildrenOf("root"), append(tree.ChildrenOf("a"), tree.ChildrenOf("b")...)...) {
			if c == node {
				found = true
				break
			}
		}
		require.True(t, found, "reconstructed node %q must be a child somewhere in the tree", node)
	}
}
