package grammars

import (
	"hash/fnv"
	"strconv"
	"strings"
)

// Path addresses a node in a derivation tree by the sequence of child
// indices leading to it from the root. The empty path is the root.
type Path []int

// Child extends a path by one step. The receiver is not modified.
func (p Path) Child(idx int) Path {
	child := make(Path, len(p), len(p)+1)
	copy(child, p)
	return append(child, idx)
}

// Equal reports whether two paths address the same node.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// IsPrefixOf reports whether p is a (non-strict) prefix of other.
func (p Path) IsPrefixOf(other Path) bool {
	if len(p) > len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// Less orders paths lexicographically, which coincides with document
// order of the addressed subtrees.
func (p Path) Less(other Path) bool {
	n := len(p)
	if len(other) < n {
		n = len(other)
	}
	for i := 0; i < n; i++ {
		if p[i] != other[i] {
			return p[i] < other[i]
		}
	}
	return len(p) < len(other)
}

// Tree is an immutable derivation tree. Each node carries a grammar
// symbol; concatenating the terminal leaf symbols left to right yields
// the concrete input string the tree derives. Trees are produced by
// parsing or fuzzing and are never mutated in place.
type Tree struct {
	Value    string
	Children []*Tree

	hash uint64 // structural hash, computed lazily
}

// NewTree builds a tree node.
func NewTree(value string, children ...*Tree) *Tree {
	return &Tree{Value: value, Children: children}
}

// TreeAt pairs a subtree with its path from the enclosing root.
type TreeAt struct {
	Path Path
	Tree *Tree
}

// String renders the concrete input the tree derives: the ordered
// concatenation of its terminal leaf symbols. Unexpanded nonterminal
// leaves contribute nothing.
func (t *Tree) String() string {
	var sb strings.Builder
	t.render(&sb)
	return sb.String()
}

func (t *Tree) render(sb *strings.Builder) {
	if len(t.Children) == 0 {
		if !IsNonterminal(t.Value) {
			sb.WriteString(t.Value)
		}
		return
	}
	for _, child := range t.Children {
		child.render(sb)
	}
}

// Subtree returns the node addressed by path, or nil if the path leads
// outside the tree.
func (t *Tree) Subtree(path Path) *Tree {
	node := t
	for _, idx := range path {
		if idx < 0 || idx >= len(node.Children) {
			return nil
		}
		node = node.Children[idx]
	}
	return node
}

// Leaves returns all leaf nodes with their paths, in document order.
func (t *Tree) Leaves() []TreeAt {
	var result []TreeAt
	t.walk(nil, func(path Path, node *Tree) {
		if len(node.Children) == 0 {
			result = append(result, TreeAt{Path: path, Tree: node})
		}
	})
	return result
}

// Filter returns all subtrees satisfying pred with their paths, in
// document order. The root itself is included when it matches.
func (t *Tree) Filter(pred func(*Tree) bool) []TreeAt {
	var result []TreeAt
	t.walk(nil, func(path Path, node *Tree) {
		if pred(node) {
			result = append(result, TreeAt{Path: path, Tree: node})
		}
	})
	return result
}

func (t *Tree) walk(path Path, visit func(Path, *Tree)) {
	visit(path, t)
	for idx, child := range t.Children {
		child.walk(path.Child(idx), visit)
	}
}

// Size returns the number of nodes in the tree.
func (t *Tree) Size() int {
	size := 1
	for _, child := range t.Children {
		size += child.Size()
	}
	return size
}

// Hash returns a structural hash suitable for set membership. Two
// structurally equal trees hash identically.
func (t *Tree) Hash() uint64 {
	if t.hash != 0 {
		return t.hash
	}
	h := fnv.New64a()
	t.feed(h)
	t.hash = h.Sum64()
	return t.hash
}

func (t *Tree) feed(h interface{ Write([]byte) (int, error) }) {
	h.Write([]byte(t.Value))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(len(t.Children))))
	for _, child := range t.Children {
		child.feed(h)
	}
}

// Equal reports structural equality.
func (t *Tree) Equal(other *Tree) bool {
	if t == other {
		return true
	}
	if t == nil || other == nil {
		return false
	}
	if t.Value != other.Value || len(t.Children) != len(other.Children) {
		return false
	}
	for i := range t.Children {
		if !t.Children[i].Equal(other.Children[i]) {
			return false
		}
	}
	return true
}
