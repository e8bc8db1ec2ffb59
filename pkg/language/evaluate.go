package language

import (
	"fmt"
	"strconv"

	"github.com/smythi93/islearn/pkg/grammars"
)

// TruthValue is the tri-state result of formula evaluation. Unknown
// arises from unbound variables or predicates the evaluator cannot
// decide; callers needing a boolean treat it as not-true.
type TruthValue int

const (
	TruthFalse TruthValue = iota
	TruthTrue
	TruthUnknown
)

// IsTrue reports definite truth.
func (t TruthValue) IsTrue() bool { return t == TruthTrue }

func (t TruthValue) String() string {
	switch t {
	case TruthFalse:
		return "false"
	case TruthTrue:
		return "true"
	case TruthUnknown:
		return "unknown"
	default:
		panic(fmt.Sprintf("language: unknown truth value %d", int(t)))
	}
}

type environment struct {
	root  *grammars.Tree
	trees map[Variable]grammars.TreeAt
	nums  map[Variable]int
}

func (e *environment) bindTree(v Variable, at grammars.TreeAt) *environment {
	trees := make(map[Variable]grammars.TreeAt, len(e.trees)+1)
	for k, val := range e.trees {
		trees[k] = val
	}
	trees[v] = at
	return &environment{root: e.root, trees: trees, nums: e.nums}
}

func (e *environment) bindNum(v Variable, n int) *environment {
	nums := make(map[Variable]int, len(e.nums)+1)
	for k, val := range e.nums {
		nums[k] = val
	}
	nums[v] = n
	return &environment{root: e.root, trees: e.trees, nums: nums}
}

// Evaluate decides a concrete formula against a derivation tree. The
// top-level constant of the formula is bound to the tree's root.
// Formulas still containing placeholders evaluate to TruthUnknown.
func Evaluate(f Formula, tree *grammars.Tree, grammar grammars.Grammar) TruthValue {
	env := &environment{
		root:  tree,
		trees: map[Variable]grammars.TreeAt{},
		nums:  map[Variable]int{},
	}
	if c, ok := TopLevelConstant(f); ok {
		env.trees[c] = grammars.TreeAt{Path: nil, Tree: tree}
	}
	return eval(f, env)
}

func eval(f Formula, env *environment) TruthValue {
	switch v := f.(type) {
	case *Quantified:
		return evalQuantified(v, env)
	case *IntroduceNumericConstant:
		return evalIntroduceNumeric(v, env)
	case *Conjunction:
		result := TruthTrue
		for _, op := range v.Operands {
			switch eval(op, env) {
			case TruthFalse:
				return TruthFalse
			case TruthUnknown:
				result = TruthUnknown
			}
		}
		return result
	case *Disjunction:
		result := TruthFalse
		for _, op := range v.Operands {
			switch eval(op, env) {
			case TruthTrue:
				return TruthTrue
			case TruthUnknown:
				result = TruthUnknown
			}
		}
		return result
	case *Negation:
		switch eval(v.Inner, env) {
		case TruthTrue:
			return TruthFalse
		case TruthFalse:
			return TruthTrue
		default:
			return TruthUnknown
		}
	case *Comparison:
		return evalComparison(v, env)
	case *StructuralPredicateFormula:
		return evalStructural(v, env)
	case *SemanticPredicateFormula:
		return evalSemantic(v, env)
	default:
		panic(fmt.Sprintf("language: unknown formula variant %T", f))
	}
}

func evalQuantified(f *Quantified, env *environment) TruthValue {
	ntype := f.Bound.NType()
	if ntype == "" {
		return TruthUnknown
	}
	in, ok := env.trees[f.In]
	if !ok {
		return TruthUnknown
	}
	domain := in.Tree.Filter(func(t *grammars.Tree) bool { return t.Value == ntype })

	result := TruthTrue
	if f.Kind == ExistsQuantifier {
		result = TruthFalse
	}
	for _, match := range domain {
		abs := make(grammars.Path, 0, len(in.Path)+len(match.Path))
		abs = append(abs, in.Path...)
		abs = append(abs, match.Path...)
		value := eval(f.Inner, env.bindTree(f.Bound, grammars.TreeAt{Path: abs, Tree: match.Tree}))
		switch f.Kind {
		case ForallQuantifier:
			switch value {
			case TruthFalse:
				return TruthFalse
			case TruthUnknown:
				result = TruthUnknown
			}
		case ExistsQuantifier:
			switch value {
			case TruthTrue:
				return TruthTrue
			case TruthUnknown:
				result = TruthUnknown
			}
		}
	}
	return result
}

func evalIntroduceNumeric(f *IntroduceNumericConstant, env *environment) TruthValue {
	// The witness is bounded by the node count: the only numeric atoms
	// are count predicates and comparisons against observed counts.
	limit := env.root.Size()
	sawUnknown := false
	for n := 0; n <= limit; n++ {
		switch eval(f.Inner, env.bindNum(f.Bound, n)) {
		case TruthTrue:
			return TruthTrue
		case TruthUnknown:
			sawUnknown = true
		}
	}
	if sawUnknown {
		return TruthUnknown
	}
	return TruthFalse
}

func resolveTerm(t Term, env *environment) (string, bool) {
	switch v := t.(type) {
	case LitTerm:
		return v.S, true
	case VarTerm:
		if _, ok := v.V.(Placeholder); ok {
			return "", false
		}
		if n, ok := env.nums[v.V]; ok {
			return strconv.Itoa(n), true
		}
		if at, ok := env.trees[v.V]; ok {
			return at.Tree.String(), true
		}
		return "", false
	default:
		panic(fmt.Sprintf("language: unknown term variant %T", t))
	}
}

func evalComparison(f *Comparison, env *environment) TruthValue {
	lhs, ok := resolveTerm(f.Lhs, env)
	if !ok {
		return TruthUnknown
	}
	rhs, ok := resolveTerm(f.Rhs, env)
	if !ok {
		return TruthUnknown
	}

	var cmp int
	if ln, lerr := strconv.Atoi(lhs); lerr == nil {
		if rn, rerr := strconv.Atoi(rhs); rerr == nil {
			switch {
			case ln < rn:
				cmp = -1
			case ln > rn:
				cmp = 1
			}
			return compareResult(f.Op, cmp)
		}
	}
	switch {
	case lhs < rhs:
		cmp = -1
	case lhs > rhs:
		cmp = 1
	}
	return compareResult(f.Op, cmp)
}

func compareResult(op CompareOp, cmp int) TruthValue {
	var holds bool
	switch op {
	case OpEq:
		holds = cmp == 0
	case OpNe:
		holds = cmp != 0
	case OpLt:
		holds = cmp < 0
	case OpLe:
		holds = cmp <= 0
	case OpGt:
		holds = cmp > 0
	case OpGe:
		holds = cmp >= 0
	default:
		panic(fmt.Sprintf("language: unknown compare op %d", int(op)))
	}
	if holds {
		return TruthTrue
	}
	return TruthFalse
}

func evalStructural(f *StructuralPredicateFormula, env *environment) TruthValue {
	paths := make([]grammars.Path, len(f.Args))
	for i, arg := range f.Args {
		va, ok := arg.(VarArg)
		if !ok {
			return TruthUnknown
		}
		at, bound := env.trees[va.V]
		if !bound {
			return TruthUnknown
		}
		paths[i] = at.Path
	}
	if f.Predicate.Apply(env.root, paths) {
		return TruthTrue
	}
	return TruthFalse
}

func evalSemantic(f *SemanticPredicateFormula, env *environment) TruthValue {
	if f.Predicate != Count || len(f.Args) != 3 {
		return TruthUnknown
	}
	elemArg, ok := f.Args[0].(VarArg)
	if !ok {
		return TruthUnknown
	}
	elem, bound := env.trees[elemArg.V]
	if !bound {
		return TruthUnknown
	}
	needleArg, ok := f.Args[1].(StringArg)
	if !ok {
		return TruthUnknown
	}
	numArg, ok := f.Args[2].(VarArg)
	if !ok {
		return TruthUnknown
	}
	expected, bound := env.nums[numArg.V]
	if !bound {
		return TruthUnknown
	}

	count := len(elem.Tree.Filter(func(t *grammars.Tree) bool { return t.Value == needleArg.S }))
	if count == expected {
		return TruthTrue
	}
	return TruthFalse
}
