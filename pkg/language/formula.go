package language

import (
	"fmt"
	"strings"

	"github.com/smythi93/islearn/pkg/grammars"
)

// Formula is a formula over derivation trees. The concrete variants
// form a closed set; every visitor in this package switches over all of
// them and panics on an unknown variant, so adding a kind without
// extending the visitors fails loudly.
type Formula interface {
	fmt.Stringer
	isFormula()
}

// Term is an operand of a comparison: either a variable or a string
// literal.
type Term interface {
	fmt.Stringer
	isTerm()
}

// VarTerm wraps a variable operand.
type VarTerm struct{ V Variable }

func (t VarTerm) isTerm() {}
func (t VarTerm) String() string {
	if _, ok := t.V.(StringPlaceholder); ok {
		return "<?STRING>"
	}
	return t.V.Name()
}

// LitTerm is a literal string operand.
type LitTerm struct{ S string }

func (t LitTerm) isTerm()        {}
func (t LitTerm) String() string { return fmt.Sprintf("%q", t.S) }

// Arg is an argument of a predicate formula: a variable, a literal
// string (e.g. a nonterminal name), or a tree binding produced during
// evaluation-time substitution.
type Arg interface {
	fmt.Stringer
	isArg()
}

// VarArg wraps a variable argument.
type VarArg struct{ V Variable }

func (a VarArg) isArg() {}
func (a VarArg) String() string {
	switch a.V.(type) {
	case NonterminalStringPlaceholder:
		return "<?NONTERMINAL>"
	case StringPlaceholder:
		return "<?STRING>"
	}
	return a.V.Name()
}

// StringArg is a literal string argument.
type StringArg struct{ S string }

func (a StringArg) isArg() {}
func (a StringArg) String() string {
	if grammars.IsNonterminal(a.S) {
		return a.S
	}
	return fmt.Sprintf("%q", a.S)
}

// Quantifier distinguishes universal from existential quantification.
type Quantifier int

const (
	ForallQuantifier Quantifier = iota
	ExistsQuantifier
)

func (q Quantifier) String() string {
	if q == ForallQuantifier {
		return "forall"
	}
	return "exists"
}

// Quantified binds a variable of some nonterminal type over the
// matching subtrees of an in-variable's instantiation. Before
// instantiation the bound variable may be a NonterminalPlaceholder.
type Quantified struct {
	Kind  Quantifier
	Bound Variable
	In    Variable
	Inner Formula
}

func (f *Quantified) isFormula() {}
func (f *Quantified) String() string {
	bound := f.Bound.Name()
	if _, ok := f.Bound.(NonterminalPlaceholder); ok {
		bound = "<?> " + bound
	} else if f.Bound.NType() != "" {
		bound = f.Bound.NType() + " " + bound
	}
	return fmt.Sprintf("%s %s in %s: (%s)", f.Kind, bound, f.In.Name(), f.Inner)
}

// IntroduceNumericConstant binds a fresh numeric constant over the
// inner formula; the formula holds when some nonnegative integer
// binding makes the inner formula true.
type IntroduceNumericConstant struct {
	Bound BoundVariable
	Inner Formula
}

func (f *IntroduceNumericConstant) isFormula() {}
func (f *IntroduceNumericConstant) String() string {
	return fmt.Sprintf("exists int %s: (%s)", f.Bound.Name(), f.Inner)
}

// Conjunction is the n-ary logical and.
type Conjunction struct{ Operands []Formula }

func (f *Conjunction) isFormula() {}
func (f *Conjunction) String() string {
	return joinOperands(f.Operands, " and ")
}

// Disjunction is the n-ary logical or.
type Disjunction struct{ Operands []Formula }

func (f *Disjunction) isFormula() {}
func (f *Disjunction) String() string {
	return joinOperands(f.Operands, " or ")
}

func joinOperands(operands []Formula, sep string) string {
	parts := make([]string, len(operands))
	for i, op := range operands {
		parts[i] = op.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}

// Negation inverts its inner formula.
type Negation struct{ Inner Formula }

func (f *Negation) isFormula()     {}
func (f *Negation) String() string { return fmt.Sprintf("not (%s)", f.Inner) }

// CompareOp is the operator of an atomic comparison constraint.
type CompareOp int

const (
	OpEq CompareOp = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

func (op CompareOp) String() string {
	switch op {
	case OpEq:
		return "=="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	default:
		panic(fmt.Sprintf("language: unknown compare op %d", int(op)))
	}
}

// Comparison is an atomic constraint over two terms. Variable terms
// compare by the string the bound subtree derives; numeric-typed
// operands compare numerically.
type Comparison struct {
	Op       CompareOp
	Lhs, Rhs Term
}

func (f *Comparison) isFormula() {}
func (f *Comparison) String() string {
	return fmt.Sprintf("%s %s %s", f.Lhs, f.Op, f.Rhs)
}

// StructuralPredicateFormula applies a structural predicate to
// argument positions.
type StructuralPredicateFormula struct {
	Predicate *StructuralPredicate
	Args      []Arg
}

func (f *StructuralPredicateFormula) isFormula() {}
func (f *StructuralPredicateFormula) String() string {
	return predicateString(f.Predicate.PredName, f.Args)
}

// SemanticPredicateFormula applies a semantic predicate to arguments.
type SemanticPredicateFormula struct {
	Predicate *SemanticPredicate
	Args      []Arg
}

func (f *SemanticPredicateFormula) isFormula() {}
func (f *SemanticPredicateFormula) String() string {
	return predicateString(f.Predicate.PredName, f.Args)
}

func predicateString(name string, args []Arg) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = arg.String()
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(parts, ", "))
}
