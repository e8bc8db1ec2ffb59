// Package fuzzing generates derivation trees for example-pool growth:
// a coverage-guided grammar fuzzer producing fresh inputs, and a
// mutation fuzzer evolving inputs from a seed population.
package fuzzing

import (
	"fmt"
	"math/rand"

	"github.com/smythi93/islearn/pkg/grammars"
)

// CoverageFuzzer expands derivation trees from a grammar, preferring
// expansion alternatives it has not used yet, so a sequence of
// generated inputs covers the grammar's productions quickly.
type CoverageFuzzer struct {
	grammar  grammars.Grammar
	rng      *rand.Rand
	covered  map[string]bool
	maxDepth int
}

// NewCoverageFuzzer creates a fuzzer over the given grammar. rng may be
// nil, in which case an unseeded source is used. maxDepth bounds how
// deep expansion may freely recurse before the fuzzer switches to the
// cheapest alternatives to close the tree.
func NewCoverageFuzzer(grammar grammars.Grammar, rng *rand.Rand, maxDepth int) *CoverageFuzzer {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	if maxDepth <= 0 {
		maxDepth = 16
	}
	return &CoverageFuzzer{
		grammar:  grammar,
		rng:      rng,
		covered:  map[string]bool{},
		maxDepth: maxDepth,
	}
}

// ExpandTree returns a fully expanded copy of seed: every nonterminal
// leaf is recursively expanded until only terminals remain. The seed is
// not modified.
func (f *CoverageFuzzer) ExpandTree(seed *grammars.Tree) *grammars.Tree {
	return f.expand(seed, 0)
}

// Fuzz generates a fresh input from the grammar's start symbol.
func (f *CoverageFuzzer) Fuzz() *grammars.Tree {
	return f.ExpandTree(grammars.NewTree(grammars.Start))
}

func (f *CoverageFuzzer) expand(node *grammars.Tree, depth int) *grammars.Tree {
	if len(node.Children) > 0 {
		children := make([]*grammars.Tree, len(node.Children))
		for i, child := range node.Children {
			children[i] = f.expand(child, depth+1)
		}
		return grammars.NewTree(node.Value, children...)
	}
	if !grammars.IsNonterminal(node.Value) {
		return grammars.NewTree(node.Value)
	}

	alternatives := f.grammar[node.Value]
	if len(alternatives) == 0 {
		// Unknown nonterminal: leave unexpanded.
		return grammars.NewTree(node.Value)
	}

	idx := f.chooseAlternative(node.Value, alternatives, depth)
	f.covered[expansionKey(node.Value, idx)] = true

	alt := alternatives[idx]
	children := make([]*grammars.Tree, len(alt))
	for i, symbol := range alt {
		children[i] = f.expand(grammars.NewTree(symbol), depth+1)
	}
	return grammars.NewTree(node.Value, children...)
}

func (f *CoverageFuzzer) chooseAlternative(nt string, alternatives []grammars.Alternative, depth int) int {
	if depth >= f.maxDepth {
		return cheapestAlternative(alternatives)
	}
	var uncovered []int
	for idx := range alternatives {
		if !f.covered[expansionKey(nt, idx)] {
			uncovered = append(uncovered, idx)
		}
	}
	if len(uncovered) > 0 {
		return uncovered[f.rng.Intn(len(uncovered))]
	}
	return f.rng.Intn(len(alternatives))
}

// cheapestAlternative picks the expansion with the fewest nonterminals,
// which terminates recursion fastest.
func cheapestAlternative(alternatives []grammars.Alternative) int {
	best, bestCost := 0, -1
	for idx, alt := range alternatives {
		cost := 0
		for _, symbol := range alt {
			if grammars.IsNonterminal(symbol) {
				cost++
			}
		}
		if bestCost < 0 || cost < bestCost {
			best, bestCost = idx, cost
		}
	}
	return best
}

func expansionKey(nt string, idx int) string {
	return fmt.Sprintf("%s#%d", nt, idx)
}
