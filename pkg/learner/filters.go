package learner

import (
	"github.com/smythi93/islearn/pkg/grammars"
	"github.com/smythi93/islearn/pkg/language"
)

// ============================================================================
// CANDIDATE FILTERS
// ============================================================================

// Filter is a cheap syntactic or sample-based plausibility check on a
// concrete candidate formula. A filter returning false discards the
// candidate before any full evaluation happens. Filters approximate:
// they may keep candidates that later evaluate false, but must never
// discard a candidate that holds on the sample inputs.
type Filter interface {
	Name() string
	Predicate(formula language.Formula, inputs []*grammars.Tree) bool
}

// VariablesEqualFilter keeps a candidate carrying variable-to-variable
// equality atoms only if some input contains, for every such atom, two
// distinct subtrees of the operand types deriving the same string.
type VariablesEqualFilter struct{}

func (VariablesEqualFilter) Name() string { return "variables equal filter" }

func (VariablesEqualFilter) Predicate(formula language.Formula, inputs []*grammars.Tree) bool {
	equalities := collectVariableEqualities(formula)
	if len(equalities) == 0 {
		return true
	}

	for _, inp := range inputs {
		success := true
		for _, eq := range equalities {
			lhs, rhs := eq.Lhs.(language.VarTerm).V, eq.Rhs.(language.VarTerm).V
			if !hasEqualDistinctSubtrees(inp, lhs.NType(), rhs.NType()) {
				success = false
				break
			}
		}
		if success {
			return true
		}
	}
	return false
}

// collectVariableEqualities gathers equality atoms whose operands are
// two distinct concretely typed variables.
func collectVariableEqualities(formula language.Formula) []*language.Comparison {
	var result []*language.Comparison
	language.Walk(formula, func(f language.Formula) {
		cmp, ok := f.(*language.Comparison)
		if !ok || cmp.Op != language.OpEq {
			return
		}
		lhs, lok := cmp.Lhs.(language.VarTerm)
		rhs, rok := cmp.Rhs.(language.VarTerm)
		if !lok || !rok || lhs.V == rhs.V {
			return
		}
		if lhs.V.NType() == "" || rhs.V.NType() == "" {
			return
		}
		result = append(result, cmp)
	})
	return result
}

func hasEqualDistinctSubtrees(inp *grammars.Tree, type1, type2 string) bool {
	trees1 := inp.Filter(func(t *grammars.Tree) bool { return t.Value == type1 })
	trees2 := inp.Filter(func(t *grammars.Tree) bool { return t.Value == type2 })
	for _, t1 := range trees1 {
		s1 := t1.Tree.String()
		for _, t2 := range trees2 {
			if !t1.Path.Equal(t2.Path) && s1 == t2.Tree.String() {
				return true
			}
		}
	}
	return false
}

// StructuralPredicatesFilter keeps a candidate carrying structural
// predicate atoms only if some input admits, for every such atom, an
// assignment of same-typed subtrees satisfying the predicate.
type StructuralPredicatesFilter struct{}

func (StructuralPredicatesFilter) Name() string { return "structural predicates filter" }

func (StructuralPredicatesFilter) Predicate(formula language.Formula, inputs []*grammars.Tree) bool {
	atoms := collectFormulas[*language.StructuralPredicateFormula](formula)
	if len(atoms) == 0 {
		return true
	}

	for _, inp := range inputs {
		success := true
		for _, atom := range atoms {
			if !structuralAtomSatisfiable(atom, inp) {
				success = false
				break
			}
		}
		if success {
			return true
		}
	}
	return false
}

// structuralAtomSatisfiable searches the input for an argument
// assignment under which the predicate holds. Repeated variables are
// assigned consistently.
func structuralAtomSatisfiable(atom *language.StructuralPredicateFormula, inp *grammars.Tree) bool {
	vars := make([]language.Variable, 0, len(atom.Args))
	seen := map[language.Variable]bool{}
	for _, arg := range atom.Args {
		va, ok := arg.(language.VarArg)
		if !ok {
			return false
		}
		if !seen[va.V] {
			seen[va.V] = true
			vars = append(vars, va.V)
		}
	}

	candidates := make([][]grammars.Path, len(vars))
	for i, v := range vars {
		nType := v.NType()
		for _, match := range inp.Filter(func(t *grammars.Tree) bool { return t.Value == nType }) {
			candidates[i] = append(candidates[i], match.Path)
		}
		if len(candidates[i]) == 0 {
			return false
		}
	}

	assignment := map[language.Variable]grammars.Path{}
	var search func(idx int) bool
	search = func(idx int) bool {
		if idx == len(vars) {
			paths := make([]grammars.Path, len(atom.Args))
			for i, arg := range atom.Args {
				paths[i] = assignment[arg.(language.VarArg).V]
			}
			return atom.Predicate.Apply(inp, paths)
		}
		for _, path := range candidates[idx] {
			assignment[vars[idx]] = path
			if search(idx + 1) {
				return true
			}
		}
		return false
	}
	return search(0)
}

// NonterminalStringInCountPredicatesFilter keeps a candidate carrying
// count atoms only if some atom counts a needle that can occur a
// variable number of times below its element: the needle must be
// reachable, along the sample-restricted relation, through some
// recursive intermediate nonterminal.
type NonterminalStringInCountPredicatesFilter struct {
	Graph *grammars.Graph
	Index *ReachabilityIndex
}

func (NonterminalStringInCountPredicatesFilter) Name() string {
	return "nonterminal string in count predicates filter"
}

func (f NonterminalStringInCountPredicatesFilter) Predicate(formula language.Formula, inputs []*grammars.Tree) bool {
	var atoms []*language.SemanticPredicateFormula
	language.Walk(formula, func(sub language.Formula) {
		if sf, ok := sub.(*language.SemanticPredicateFormula); ok && sf.Predicate == language.Count {
			atoms = append(atoms, sf)
		}
	})
	if len(atoms) == 0 {
		return true
	}

	for _, atom := range atoms {
		elem, ok := atom.Args[0].(language.VarArg)
		if !ok {
			continue
		}
		needle, ok := atom.Args[1].(language.StringArg)
		if !ok {
			continue
		}
		if f.variableNumberOfOccurrences(elem.V.NType(), needle.S) {
			return true
		}
	}
	return false
}

func (f NonterminalStringInCountPredicatesFilter) variableNumberOfOccurrences(elemType, needle string) bool {
	for _, intermediate := range f.Graph.Grammar().Nonterminals() {
		if f.Index.ObservedReach(elemType, intermediate) &&
			f.Graph.Reachable(intermediate, intermediate) &&
			f.Index.ObservedReach(intermediate, needle) {
			return true
		}
	}
	return false
}

func collectFormulas[T language.Formula](formula language.Formula) []T {
	var result []T
	language.Walk(formula, func(f language.Formula) {
		if typed, ok := f.(T); ok {
			result = append(result, typed)
		}
	})
	return result
}
