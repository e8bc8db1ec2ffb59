package learner

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/smythi93/islearn/pkg/grammars"
	"github.com/smythi93/islearn/pkg/language"
)

// ErrUnsupportedPlaceholder is returned when instantiation leaves a
// placeholder behind, i.e. a pattern uses a placeholder in a position
// the pipeline cannot eliminate.
var ErrUnsupportedPlaceholder = errors.New("learner: pattern retains uninstantiated placeholder")

// Instantiator eliminates the three placeholder kinds from abstract
// patterns, producing the set of syntactically concrete formulas
// consistent with the grammar and the example pool. Each stage maps a
// set of formulas to a set of formulas; a stage is the identity when no
// placeholder of its kind occurs.
type Instantiator struct {
	grammar grammars.Grammar
	graph   *grammars.Graph
	index   *ReachabilityIndex
	// dedupe discards chain instantiations whose type chain is strictly
	// implied by another candidate's. Off by default: implication-based
	// pruning trades recall for candidate-set size.
	dedupe bool
	log    *zap.Logger
}

// NewInstantiator builds an instantiator over a grammar, its graph,
// and the reachability index derived from the current example pool.
func NewInstantiator(grammar grammars.Grammar, graph *grammars.Graph, index *ReachabilityIndex, dedupe bool, log *zap.Logger) *Instantiator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Instantiator{grammar: grammar, graph: graph, index: index, dedupe: dedupe, log: log}
}

// Instantiate runs the full three-stage pipeline on one abstract
// pattern. Every formula in the result is concrete; a remaining
// placeholder of any kind is a fatal pattern error.
func (in *Instantiator) Instantiate(pattern language.Formula, examples []*grammars.Tree) ([]language.Formula, error) {
	withoutNonterminals, err := in.InstantiateNonterminalPlaceholders(pattern)
	if err != nil {
		return nil, err
	}
	in.log.Debug("instantiated nonterminal placeholders",
		zap.Int("instantiations", len(withoutNonterminals)))

	withoutNonterminalStrings := in.InstantiateNonterminalStringPlaceholders(withoutNonterminals)
	in.log.Debug("instantiated nonterminal string placeholders",
		zap.Int("instantiations", len(withoutNonterminalStrings)))

	concrete := in.InstantiateStringPlaceholders(withoutNonterminalStrings, examples)
	in.log.Debug("instantiated string placeholders",
		zap.Int("instantiations", len(concrete)))

	for _, candidate := range concrete {
		if remaining := language.Placeholders(candidate); len(remaining) > 0 {
			return nil, fmt.Errorf("%w: %s in %s",
				ErrUnsupportedPlaceholder, remaining[0].Name(), candidate)
		}
	}
	return concrete, nil
}

// InstantiateNonterminalPlaceholders eliminates nonterminal-typed
// bound-variable placeholders: quantifier (bound, in) edges are grouped
// into connected chains ending at the top-level start constant, every
// type sequence reachable along the sample-restricted relation is
// enumerated per chain, and the per-chain substitutions are
// cross-multiplied into full instantiations.
func (in *Instantiator) InstantiateNonterminalPlaceholders(pattern language.Formula) ([]language.Formula, error) {
	if !hasPlaceholderKind(pattern, isNonterminalPlaceholder) {
		return []language.Formula{pattern}, nil
	}

	top, ok := language.TopLevelConstant(pattern)
	if !ok {
		return nil, fmt.Errorf("learner: pattern %s has no top-level constant", pattern)
	}

	chains, err := connectedChains(pattern, top)
	if err != nil {
		return nil, err
	}

	substitutions := []map[language.Variable]language.Variable{{}}
	for _, chain := range chains {
		sequences := in.enumerateTypeSequences(top.NType(), len(chain))
		if in.dedupe {
			sequences = in.dropImpliedSequences(sequences)
		}

		var chainSubsts []map[language.Variable]language.Variable
		for _, sequence := range sequences {
			subst, ok := chainSubstitution(chain, sequence)
			if !ok {
				continue
			}
			chainSubsts = append(chainSubsts, subst)
		}
		substitutions = crossSubstitutions(substitutions, chainSubsts)
	}

	result := make([]language.Formula, 0, len(substitutions))
	for _, subst := range substitutions {
		result = append(result, language.SubstituteVariables(pattern, subst))
	}
	return result, nil
}

// connectedChains groups quantifier (bound, in) edges into maximal
// chains from an innermost bound variable out to the top-level
// constant, innermost first.
func connectedChains(pattern language.Formula, top language.Constant) ([][]language.Variable, error) {
	type edge struct{ bound, in language.Variable }
	var edges []edge
	usedAsIn := map[language.Variable]bool{}
	language.Walk(pattern, func(f language.Formula) {
		if qfr, ok := f.(*language.Quantified); ok {
			edges = append(edges, edge{bound: qfr.Bound, in: qfr.In})
			usedAsIn[qfr.In] = true
		}
	})

	byBound := map[language.Variable]language.Variable{}
	for _, e := range edges {
		byBound[e.bound] = e.in
	}

	var chains [][]language.Variable
	for _, e := range edges {
		if usedAsIn[e.bound] {
			continue // not innermost
		}
		chain := []language.Variable{e.bound}
		current := e.bound
		for {
			next, ok := byBound[current]
			if !ok {
				break
			}
			chain = append(chain, next)
			current = next
		}
		if chain[len(chain)-1] != language.Variable(top) {
			return nil, fmt.Errorf("learner: quantifier chain of %s does not end at the top-level constant", pattern)
		}
		chains = append(chains, chain)
	}
	return chains, nil
}

// enumerateTypeSequences breadth-first expands the sample-restricted
// reachability relation from the start symbol into all type sequences
// of the requested length, returned innermost first.
func (in *Instantiator) enumerateTypeSequences(startSymbol string, length int) [][]string {
	var result [][]string
	queue := [][]string{{startSymbol}}
	for len(queue) > 0 {
		partial := queue[0]
		queue = queue[1:]
		if len(partial) == length {
			result = append(result, reverseChain(partial))
			continue
		}
		for _, succ := range in.index.observedSuccessors(partial[len(partial)-1]) {
			extended := make([]string, len(partial), len(partial)+1)
			copy(extended, partial)
			queue = append(queue, append(extended, succ))
		}
	}
	return result
}

// dropImpliedSequences keeps only sequences not strictly implied by
// another candidate sequence, comparing outer-to-inner chains.
func (in *Instantiator) dropImpliedSequences(sequences [][]string) [][]string {
	var result [][]string
	for i, seq := range sequences {
		implied := false
		for j, other := range sequences {
			if i == j || equalChain(seq, other) {
				continue
			}
			if ChainImplies(reverseChain(other), reverseChain(seq), in.graph) {
				implied = true
				break
			}
		}
		if !implied {
			result = append(result, seq)
		}
	}
	return result
}

// chainSubstitution maps each placeholder in the chain (all but the
// final constant) to a bound variable typed by the matching sequence
// element. Concretely typed chain variables must agree with the
// sequence or the combination is discarded.
func chainSubstitution(chain []language.Variable, sequence []string) (map[language.Variable]language.Variable, bool) {
	subst := map[language.Variable]language.Variable{}
	for idx, v := range chain[:len(chain)-1] {
		switch concrete := v.(type) {
		case language.NonterminalPlaceholder:
			subst[v] = language.BoundVariable{VarName: concrete.VarName, VarType: sequence[idx]}
		case language.BoundVariable:
			if concrete.VarType != sequence[idx] {
				return nil, false
			}
		default:
			return nil, false
		}
	}
	return subst, true
}

func crossSubstitutions(
	left, right []map[language.Variable]language.Variable,
) []map[language.Variable]language.Variable {
	var result []map[language.Variable]language.Variable
	for _, l := range left {
		for _, r := range right {
			merged := make(map[language.Variable]language.Variable, len(l)+len(r))
			for k, v := range l {
				merged[k] = v
			}
			for k, v := range r {
				merged[k] = v
			}
			result = append(result, merged)
		}
	}
	return result
}

// InstantiateNonterminalStringPlaceholders eliminates literal
// nonterminal-name placeholders: each carrying formula is multiplied
// once per grammar nonterminal. Formulas without such placeholders
// pass through unchanged.
func (in *Instantiator) InstantiateNonterminalStringPlaceholders(instantiations []language.Formula) []language.Formula {
	var result []language.Formula
	for _, inst := range instantiations {
		if !hasPlaceholderKind(inst, isNonterminalStringPlaceholder) {
			result = append(result, inst)
			continue
		}
		for _, nonterminal := range in.grammar.Nonterminals() {
			result = append(result, substituteNonterminalStrings(inst, nonterminal))
		}
	}
	return result
}

func substituteNonterminalStrings(inst language.Formula, nonterminal string) language.Formula {
	return language.ReplaceFormulas(inst, func(atom language.Formula) language.Formula {
		switch a := atom.(type) {
		case *language.StructuralPredicateFormula:
			if args, changed := replaceNonterminalStringArgs(a.Args, nonterminal); changed {
				return &language.StructuralPredicateFormula{Predicate: a.Predicate, Args: args}
			}
		case *language.SemanticPredicateFormula:
			if args, changed := replaceNonterminalStringArgs(a.Args, nonterminal); changed {
				return &language.SemanticPredicateFormula{Predicate: a.Predicate, Args: args}
			}
		}
		return nil
	})
}

func replaceNonterminalStringArgs(args []language.Arg, nonterminal string) ([]language.Arg, bool) {
	changed := false
	result := make([]language.Arg, len(args))
	for i, arg := range args {
		if va, ok := arg.(language.VarArg); ok {
			if _, isPH := va.V.(language.NonterminalStringPlaceholder); isPH {
				result[i] = language.StringArg{S: nonterminal}
				changed = true
				continue
			}
		}
		result[i] = arg
	}
	return result, changed
}

// InstantiateStringPlaceholders eliminates literal-string placeholders
// by substituting common fragments: the substrings that occur in every
// example as the string form of some subtree whose type matches an
// atom's non-placeholder variables. Atoms whose fragment set is empty
// veto every formula containing them.
func (in *Instantiator) InstantiateStringPlaceholders(
	instantiations []language.Formula,
	examples []*grammars.Tree,
) []language.Formula {
	carrying := false
	for _, inst := range instantiations {
		if hasPlaceholderKind(inst, isStringPlaceholder) {
			carrying = true
			break
		}
	}
	if !carrying {
		return instantiations
	}

	fragments := commonFragments(in.grammar, examples)

	var result []language.Formula
	for _, inst := range instantiations {
		if !hasPlaceholderKind(inst, isStringPlaceholder) {
			result = append(result, inst)
			continue
		}
		result = append(result, language.ExpandFormula(inst, func(atom language.Formula) []language.Formula {
			return expandStringPlaceholders(atom, fragments)
		})...)
	}
	return result
}

// commonFragments computes, per nonterminal, the set of nonempty
// subtree strings occurring in every example.
func commonFragments(grammar grammars.Grammar, examples []*grammars.Tree) map[string]map[string]bool {
	result := map[string]map[string]bool{}
	for _, nonterminal := range grammar.Nonterminals() {
		var common map[string]bool
		for _, example := range examples {
			observed := map[string]bool{}
			for _, sub := range example.Filter(func(t *grammars.Tree) bool { return t.Value == nonterminal }) {
				if s := sub.Tree.String(); s != "" {
					observed[s] = true
				}
			}
			if common == nil {
				common = observed
				continue
			}
			for s := range common {
				if !observed[s] {
					delete(common, s)
				}
			}
		}
		result[nonterminal] = common
	}
	return result
}

// expandStringPlaceholders rewrites one atom: every string placeholder
// is substituted with each candidate literal drawn from the fragments
// of the atom's non-placeholder variable types. Returns nil when the
// atom has no string placeholder.
func expandStringPlaceholders(atom language.Formula, fragments map[string]map[string]bool) []language.Formula {
	vars := language.AtomVariables(atom)
	var placeholders []language.Variable
	literals := map[string]bool{}
	for _, v := range vars {
		if _, ok := v.(language.StringPlaceholder); ok {
			placeholders = append(placeholders, v)
			continue
		}
		if _, ok := v.(language.Placeholder); ok {
			continue
		}
		for s := range fragments[v.NType()] {
			literals[s] = true
		}
	}
	if len(placeholders) == 0 {
		return nil
	}
	if len(literals) == 0 {
		return []language.Formula{}
	}

	expansions := []language.Formula{atom}
	for _, ph := range placeholders {
		var next []language.Formula
		for _, partial := range expansions {
			for literal := range literals {
				next = append(next, substituteStringLiteral(partial, ph, literal))
			}
		}
		expansions = next
	}
	return expansions
}

func substituteStringLiteral(atom language.Formula, ph language.Variable, literal string) language.Formula {
	switch a := atom.(type) {
	case *language.Comparison:
		return &language.Comparison{
			Op:  a.Op,
			Lhs: replaceTermPlaceholder(a.Lhs, ph, literal),
			Rhs: replaceTermPlaceholder(a.Rhs, ph, literal),
		}
	case *language.StructuralPredicateFormula:
		return &language.StructuralPredicateFormula{Predicate: a.Predicate, Args: replaceArgPlaceholder(a.Args, ph, literal)}
	case *language.SemanticPredicateFormula:
		return &language.SemanticPredicateFormula{Predicate: a.Predicate, Args: replaceArgPlaceholder(a.Args, ph, literal)}
	default:
		return atom
	}
}

func replaceTermPlaceholder(t language.Term, ph language.Variable, literal string) language.Term {
	if vt, ok := t.(language.VarTerm); ok && vt.V == ph {
		return language.LitTerm{S: literal}
	}
	return t
}

func replaceArgPlaceholder(args []language.Arg, ph language.Variable, literal string) []language.Arg {
	result := make([]language.Arg, len(args))
	for i, arg := range args {
		if va, ok := arg.(language.VarArg); ok && va.V == ph {
			result[i] = language.StringArg{S: literal}
			continue
		}
		result[i] = arg
	}
	return result
}

func hasPlaceholderKind(f language.Formula, match func(language.Placeholder) bool) bool {
	for _, ph := range language.Placeholders(f) {
		if match(ph) {
			return true
		}
	}
	return false
}

func isNonterminalPlaceholder(ph language.Placeholder) bool {
	_, ok := ph.(language.NonterminalPlaceholder)
	return ok
}

func isNonterminalStringPlaceholder(ph language.Placeholder) bool {
	_, ok := ph.(language.NonterminalStringPlaceholder)
	return ok
}

func isStringPlaceholder(ph language.Placeholder) bool {
	_, ok := ph.(language.StringPlaceholder)
	return ok
}

func reverseChain(chain []string) []string {
	result := make([]string, len(chain))
	for i, elem := range chain {
		result[len(chain)-1-i] = elem
	}
	return result
}

func equalChain(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
