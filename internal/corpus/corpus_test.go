package corpus

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadPrepadsAndPostpads(t *testing.T) {
	r := strings.NewReader("ab\ncd\n")
	c, err := Load(r, 300, 0, 299)
	require.NoError(t, err)
	require.Equal(t, 2, c.NumLines())

	line := c.Line(0)
	require.Equal(t, []int{0, 'a', 'b', 299}, line)
}

func TestLoadClampsCharacterCodes(t *testing.T) {
	r := strings.NewReader("é\n") // 'é' = 233, well beyond a vocab of 50
	c, err := Load(r, 50, 0, 49)
	require.NoError(t, err)

	line := c.Line(0)
	require.Equal(t, 49, line[1]) // clamped to vocabSize-1
}

func TestLoadSkipsBlankLines(t *testing.T) {
	r := strings.NewReader("a\n\nb\n")
	c, err := Load(r, 300, 0, 299)
	require.NoError(t, err)
	require.Equal(t, 2, c.NumLines())
}
