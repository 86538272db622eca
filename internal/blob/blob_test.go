package blob

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/born-ml/born/internal/mat"
	"github.com/born-ml/born/internal/ndarray"
)

func TestWriteReadArrayRoundTrip(t *testing.T) {
	a, err := ndarray.FromSlice[float32](ndarray.Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteArray(&buf, a))

	got, err := ReadArray[float32](&buf)
	require.NoError(t, err)
	require.True(t, got.Shape().Equal(a.Shape()))
	require.Equal(t, a.Dense(), got.Dense())
}

func TestReadArrayRejectsDtypeMismatch(t *testing.T) {
	a, err := ndarray.FromSlice[int32](ndarray.Shape{3}, []int32{1, 2, 3})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteArray(&buf, a))

	_, err = ReadArray[float32](&buf)
	require.Error(t, err)
}

func TestSaveLoadParametersRoundTrip(t *testing.T) {
	dir := t.TempDir()

	p1 := mat.Zeros("w1", ndarray.Shape{2, 2})
	p1.W().AddAssignScalar(1)
	p2 := mat.Zeros("b1", ndarray.Shape{2})
	p2.W().AddAssignScalar(2)
	params := []*mat.Mat{p1, p2}

	require.NoError(t, SaveParameters(dir, params))

	loaded := []*mat.Mat{
		mat.Zeros("w1", ndarray.Shape{2, 2}),
		mat.Zeros("b1", ndarray.Shape{2}),
	}
	require.NoError(t, LoadParameters(dir, loaded))

	require.Equal(t, p1.W().Dense(), loaded[0].W().Dense())
	require.Equal(t, p2.W().Dense(), loaded[1].W().Dense())
}
