// Package corpus implements the UTF-8 line-corpus reader of spec.md §6:
// each newline-terminated line is a training example, prepadded with a
// start symbol and postpadded with an end symbol, with character codes
// clamped to [0, vocab_size-1].
package corpus

import (
	"bufio"
	"io"
)

// Corpus is a sequence of character-index lines ready for training.
type Corpus struct {
	Lines    [][]int
	VocabSize int
	Prepad   int
	Postpad  int
}

// Load reads a UTF-8 text file from r, one training example per line.
// Each line is prepended with prepad and appended with postpad (spec.md
// §6 conventionally uses vocabSize-1 for postpad); every character code
// is clamped into [0, vocabSize-1].
func Load(r io.Reader, vocabSize, prepad, postpad int) (*Corpus, error) {
	c := &Corpus{VocabSize: vocabSize, Prepad: prepad, Postpad: postpad}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		c.Lines = append(c.Lines, encodeLine(line, vocabSize, prepad, postpad))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return c, nil
}

func encodeLine(line string, vocabSize, prepad, postpad int) []int {
	runes := []rune(line)
	out := make([]int, 0, len(runes)+2)
	out = append(out, clamp(prepad, vocabSize))
	for _, r := range runes {
		out = append(out, clamp(int(r), vocabSize))
	}
	out = append(out, clamp(postpad, vocabSize))
	return out
}

func clamp(code, vocabSize int) int {
	if code < 0 {
		return 0
	}
	if code >= vocabSize {
		return vocabSize - 1
	}
	return code
}

// NumLines returns the number of training examples loaded.
func (c *Corpus) NumLines() int { return len(c.Lines) }

// Line returns the i-th encoded line.
func (c *Corpus) Line(i int) []int { return c.Lines[i] }
