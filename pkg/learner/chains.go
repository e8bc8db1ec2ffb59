package learner

import (
	"github.com/smythi93/islearn/pkg/grammars"
	"github.com/smythi93/islearn/pkg/language"
)

// ChainClosure computes the closure of a nonterminal-type chain: the
// set of longer concrete chains obtained by replacing each consecutive
// pair with any derivation path between the two nonterminals in the
// grammar graph. maxCycles bounds cycle unrolling during path
// enumeration; zero keeps the closure finite and small.
func ChainClosure(chain []string, graph *grammars.Graph, maxCycles int) [][]string {
	if len(chain) == 0 {
		return nil
	}
	closure := [][]string{{chain[0]}}
	for _, elem := range chain[1:] {
		var next [][]string
		for _, partial := range closure {
			for _, path := range graph.PathsBetween(partial[len(partial)-1], elem, maxCycles) {
				extended := make([]string, len(partial), len(partial)+len(path)-1)
				copy(extended, partial)
				next = append(next, append(extended, path[1:]...))
			}
		}
		closure = next
	}
	return closure
}

// ChainImplies decides structural implication between two quantifier
// subject-type chains: it holds iff the chains have equal length and
// equal final element, and every closure expansion of c2 occurs as a
// contiguous subsequence of some closure expansion of c1. Chains of
// unequal length never imply one another; this is a deliberate
// structural approximation.
func ChainImplies(c1, c2 []string, graph *grammars.Graph) bool {
	if len(c1) != len(c2) {
		return false
	}
	if len(c1) == 0 {
		return true
	}
	if c1[len(c1)-1] != c2[len(c2)-1] {
		return false
	}

	closure1 := ChainClosure(c1, graph, 0)
	closure2 := ChainClosure(c2, graph, 0)

	for _, expansion2 := range closure2 {
		matched := false
		for _, expansion1 := range closure1 {
			if containsChain(expansion1, expansion2) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// containsChain reports whether needle occurs as a contiguous
// subsequence of haystack.
func containsChain(haystack, needle []string) bool {
	if len(needle) > len(haystack) {
		return false
	}
	for offset := 0; offset <= len(haystack)-len(needle); offset++ {
		match := true
		for i := range needle {
			if haystack[offset+i] != needle[i] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// StructurallyImplies decides whether f1 structurally implies f2: both
// must open with quantifier blocks of the same shape (same nesting of
// universal and existential quantifiers, each quantifier's subject
// type equal to the previous quantifier's bound type), and the
// subject-type chain of f2 must be chain-implied by that of f1. This
// approximates "the elements f2 addresses are a subset of what f1
// addresses" without semantic reasoning.
func StructurallyImplies(f1, f2 language.Formula, graph *grammars.Graph) bool {
	block1 := language.QuantifierBlock(f1)
	block2 := language.QuantifierBlock(f2)
	if len(block1) == 0 || len(block1) != len(block2) {
		return false
	}
	for i := range block1 {
		if block1[i].Kind != block2[i].Kind {
			return false
		}
	}

	chain1, ok := subjectTypeChain(block1)
	if !ok {
		return false
	}
	chain2, ok := subjectTypeChain(block2)
	if !ok {
		return false
	}
	return ChainImplies(chain1, chain2, graph)
}

// subjectTypeChain extracts (in-type..., bound-type) from a quantifier
// block, requiring the chain to be connected: each quantifier's subject
// type equals the previous quantifier's bound type.
func subjectTypeChain(block []*language.Quantified) ([]string, bool) {
	var chain []string
	for _, qfr := range block {
		if qfr.In.NType() == "" || qfr.Bound.NType() == "" {
			return nil, false
		}
		chain = append(chain, qfr.In.NType())
	}
	chain = append(chain, block[len(block)-1].Bound.NType())
	for i := 0; i+1 < len(block); i++ {
		if block[i].Bound.NType() != block[i+1].In.NType() {
			return nil, false
		}
	}
	return chain, true
}
