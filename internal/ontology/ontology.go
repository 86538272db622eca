// Package ontology implements the external ontology-tree format of
// spec.md §6: one edge per line, "A"->"B" meaning A is the parent of B,
// with multiple parents permitted per node. Round-trippable through
// Save/Load.
package ontology

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/born-ml/born/internal/errs"
)

// Tree is a directed edge set: Parents[child] lists every parent of child.
// children mirrors the same edges in the opposite direction, so a
// constrained decode walking the tree root-to-leaf can look up a node's
// children without scanning every edge.
type Tree struct {
	Parents  map[string][]string
	children map[string][]string
}

// New creates an empty Tree.
func New() *Tree {
	return &Tree{Parents: make(map[string][]string), children: make(map[string][]string)}
}

// AddEdge records that parent is a parent of child (duplicates permitted,
// matching the format's "multiple parents permitted" allowance).
func (t *Tree) AddEdge(parent, child string) {
	if t.children == nil {
		t.children = make(map[string][]string)
	}
	t.Parents[child] = append(t.Parents[child], parent)
	t.children[parent] = append(t.children[parent], child)
}

// ParentsOf returns the recorded parents of child, in insertion order.
func (t *Tree) ParentsOf(child string) []string { return t.Parents[child] }

// ChildrenOf returns the recorded children of parent, in insertion order.
func (t *Tree) ChildrenOf(parent string) []string { return t.children[parent] }

// Children returns every node appearing as a child of at least one edge.
func (t *Tree) Children() []string {
	out := make([]string, 0, len(t.Parents))
	for child := range t.Parents {
		out = append(out, child)
	}
	return out
}

var errMalformedEdge = errs.New(errs.InvariantViolated, "ontology.Load", `expected a line of the form "A"->"B"`)

// Load parses one edge per line in "A"->"B" form.
func Load(r io.Reader) (*Tree, error) {
	t := New()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parent, child, err := parseEdge(line)
		if err != nil {
			return nil, err
		}
		t.AddEdge(parent, child)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

func parseEdge(line string) (parent, child string, err error) {
	idx := strings.Index(line, "->")
	if idx < 0 {
		return "", "", errMalformedEdge
	}
	parent = unquote(strings.TrimSpace(line[:idx]))
	child = unquote(strings.TrimSpace(line[idx+2:]))
	if parent == "" || child == "" {
		return "", "", errMalformedEdge
	}
	return parent, child, nil
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// Save writes the tree's edges, one per line, in "A"->"B" form. Edges are
// written in the iteration order of Parents (round-trippable, not
// sorted/canonicalized).
func Save(w io.Writer, t *Tree) error {
	bw := bufio.NewWriter(w)
	for child, parents := range t.Parents {
		for _, parent := range parents {
			if _, err := fmt.Fprintf(bw, "%q->%q\n", parent, child); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}
