// Package language defines the formula representation the learner
// instantiates and ranks: variables and the three placeholder kinds,
// a closed set of formula variants with quantifiers, connectives,
// comparisons, and predicates, plus substitution, collection, and a
// tri-state evaluator over derivation trees.
package language

// NumericNType is the reserved nonterminal type of numeric constants
// bound by IntroduceNumericConstant.
const NumericNType = "NUM"

// Variable is a named, nonterminal-typed symbol occurring in formulas.
// The concrete kinds form a closed set: Constant, BoundVariable, and
// the three placeholder kinds. All kinds are comparable value types, so
// variables can key maps directly.
type Variable interface {
	Name() string
	// NType is the nonterminal type of the variable. Placeholders
	// return the empty string: their type is exactly what instantiation
	// determines.
	NType() string
	isVariable()
}

// Placeholder marks the variable kinds that must be eliminated before
// a formula becomes a concrete candidate invariant.
type Placeholder interface {
	Variable
	isPlaceholder()
}

// Constant is a free, externally bound variable. The single non-numeric
// constant of a pattern designates the top-level start symbol.
type Constant struct {
	VarName string
	VarType string
}

func (c Constant) Name() string  { return c.VarName }
func (c Constant) NType() string { return c.VarType }
func (c Constant) isVariable()   {}

// IsNumeric reports whether the constant carries the reserved numeric
// type rather than a grammar nonterminal.
func (c Constant) IsNumeric() bool { return c.VarType == NumericNType }

// StartConstant returns the conventional top-level constant over the
// given start symbol.
func StartConstant(startSymbol string) Constant {
	return Constant{VarName: "start", VarType: startSymbol}
}

// BoundVariable is a variable bound by a quantifier, typed with a
// concrete grammar nonterminal (or NumericNType for introduced
// numeric constants).
type BoundVariable struct {
	VarName string
	VarType string
}

func (v BoundVariable) Name() string  { return v.VarName }
func (v BoundVariable) NType() string { return v.VarType }
func (v BoundVariable) isVariable()   {}

// NonterminalPlaceholder stands for a bound variable whose nonterminal
// type is not yet determined. Instantiation replaces it with a
// BoundVariable of the same name and a concrete type.
type NonterminalPlaceholder struct {
	VarName string
}

func (v NonterminalPlaceholder) Name() string   { return v.VarName }
func (v NonterminalPlaceholder) NType() string  { return "" }
func (v NonterminalPlaceholder) isVariable()    {}
func (v NonterminalPlaceholder) isPlaceholder() {}

// NonterminalStringPlaceholder stands for a literal nonterminal-name
// argument of a predicate. It is not a bound variable; instantiation
// replaces it with the name of some grammar nonterminal.
type NonterminalStringPlaceholder struct {
	VarName string
}

func (v NonterminalStringPlaceholder) Name() string   { return v.VarName }
func (v NonterminalStringPlaceholder) NType() string  { return "" }
func (v NonterminalStringPlaceholder) isVariable()    {}
func (v NonterminalStringPlaceholder) isPlaceholder() {}

// StringPlaceholder stands for a literal substring argument of a
// predicate or comparison. Instantiation replaces it with fragments
// observed across the example pool.
type StringPlaceholder struct {
	VarName string
}

func (v StringPlaceholder) Name() string   { return v.VarName }
func (v StringPlaceholder) NType() string  { return "" }
func (v StringPlaceholder) isVariable()    {}
func (v StringPlaceholder) isPlaceholder() {}
