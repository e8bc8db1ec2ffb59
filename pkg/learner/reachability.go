// Package learner implements the candidate generation and filtering
// engine: it turns abstract formula templates into concrete, well-typed
// candidate invariants over a grammar, prunes implausible
// instantiations with cheap structural filters, and ranks the
// survivors by how precisely they separate positive from negative
// example inputs.
package learner

import (
	"github.com/smythi93/islearn/pkg/grammars"
)

type symbolPair struct {
	from, to string
}

// ReachabilityIndex stores two nonterminal-pair relations: the
// grammar-wide "may reach" relation (delegated to the grammar graph)
// and the sample-restricted "observed to reach" relation derived from
// the example pool's derivation trees, transitively closed. The
// observed relation is a subset of the grammar-wide one and is used
// preferentially to cut over-generation.
//
// The index is purely derived; it is recomputed whenever the example
// pool changes materially, not incrementally maintained.
type ReachabilityIndex struct {
	graph    *grammars.Graph
	observed map[symbolPair]bool
}

// NewReachabilityIndex derives the index from the example pool: every
// pair of nonterminals occurring jointly on some root-to-leaf path of
// some example contributes an observed pair.
func NewReachabilityIndex(graph *grammars.Graph, examples []*grammars.Tree) *ReachabilityIndex {
	observed := map[symbolPair]bool{}
	for _, example := range examples {
		for _, leaf := range example.Leaves() {
			chain := nonterminalChain(example, leaf.Path)
			for i := 0; i < len(chain); i++ {
				for j := i + 1; j < len(chain); j++ {
					observed[symbolPair{chain[i], chain[j]}] = true
				}
			}
		}
	}
	transitiveClosure(observed)
	return &ReachabilityIndex{graph: graph, observed: observed}
}

// nonterminalChain returns the nonterminal symbols along the path from
// the root to (and including, if nonterminal) the addressed node.
func nonterminalChain(root *grammars.Tree, path grammars.Path) []string {
	var chain []string
	node := root
	if grammars.IsNonterminal(node.Value) {
		chain = append(chain, node.Value)
	}
	for _, idx := range path {
		if idx < 0 || idx >= len(node.Children) {
			break
		}
		node = node.Children[idx]
		if grammars.IsNonterminal(node.Value) {
			chain = append(chain, node.Value)
		}
	}
	return chain
}

// transitiveClosure closes a pair relation in place.
func transitiveClosure(relation map[symbolPair]bool) {
	for {
		var added []symbolPair
		for p1 := range relation {
			for p2 := range relation {
				if p1.to == p2.from && !relation[symbolPair{p1.from, p2.to}] {
					added = append(added, symbolPair{p1.from, p2.to})
				}
			}
		}
		if len(added) == 0 {
			return
		}
		for _, pair := range added {
			relation[pair] = true
		}
	}
}

// MayReach reports grammar-wide reachability from one nonterminal to
// another. Unknown nonterminals reach nothing.
func (ri *ReachabilityIndex) MayReach(from, to string) bool {
	return ri.graph.Reachable(from, to)
}

// ObservedReach reports membership in the transitively closed,
// sample-restricted relation.
func (ri *ReachabilityIndex) ObservedReach(from, to string) bool {
	return ri.observed[symbolPair{from, to}]
}

// observedSuccessors returns the nonterminals observed-reachable from
// the given one, in unspecified order.
func (ri *ReachabilityIndex) observedSuccessors(from string) []string {
	var result []string
	for pair := range ri.observed {
		if pair.from == from {
			result = append(result, pair.to)
		}
	}
	return result
}

// Size returns the number of observed pairs.
func (ri *ReachabilityIndex) Size() int {
	return len(ri.observed)
}
