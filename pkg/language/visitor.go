package language

import "fmt"

// Walk visits f and every subformula in pre-order.
func Walk(f Formula, visit func(Formula)) {
	visit(f)
	switch v := f.(type) {
	case *Quantified:
		Walk(v.Inner, visit)
	case *IntroduceNumericConstant:
		Walk(v.Inner, visit)
	case *Conjunction:
		for _, op := range v.Operands {
			Walk(op, visit)
		}
	case *Disjunction:
		for _, op := range v.Operands {
			Walk(op, visit)
		}
	case *Negation:
		Walk(v.Inner, visit)
	case *Comparison, *StructuralPredicateFormula, *SemanticPredicateFormula:
		// atoms
	default:
		panic(fmt.Sprintf("language: unknown formula variant %T", f))
	}
}

// Collect returns all subformulas of f satisfying pred, in pre-order.
func Collect(f Formula, pred func(Formula) bool) []Formula {
	var result []Formula
	Walk(f, func(sub Formula) {
		if pred(sub) {
			result = append(result, sub)
		}
	})
	return result
}

// AtomVariables returns the variables occurring directly in an atomic
// formula, in argument order without duplicates. Non-atoms yield nil.
func AtomVariables(f Formula) []Variable {
	var vars []Variable
	add := func(v Variable) {
		for _, existing := range vars {
			if existing == v {
				return
			}
		}
		vars = append(vars, v)
	}
	switch a := f.(type) {
	case *Comparison:
		for _, term := range []Term{a.Lhs, a.Rhs} {
			if vt, ok := term.(VarTerm); ok {
				add(vt.V)
			}
		}
	case *StructuralPredicateFormula:
		for _, arg := range a.Args {
			if va, ok := arg.(VarArg); ok {
				add(va.V)
			}
		}
	case *SemanticPredicateFormula:
		for _, arg := range a.Args {
			if va, ok := arg.(VarArg); ok {
				add(va.V)
			}
		}
	}
	return vars
}

// Variables returns every variable occurring anywhere in f, in first-
// occurrence order without duplicates: quantifier bound and in
// variables, introduced numeric constants, and atom operands.
func Variables(f Formula) []Variable {
	var vars []Variable
	seen := map[Variable]bool{}
	add := func(v Variable) {
		if !seen[v] {
			seen[v] = true
			vars = append(vars, v)
		}
	}
	Walk(f, func(sub Formula) {
		switch v := sub.(type) {
		case *Quantified:
			add(v.Bound)
			add(v.In)
		case *IntroduceNumericConstant:
			add(v.Bound)
		default:
			for _, av := range AtomVariables(sub) {
				add(av)
			}
		}
	})
	return vars
}

// Placeholders returns the placeholder variables remaining in f.
func Placeholders(f Formula) []Placeholder {
	var result []Placeholder
	for _, v := range Variables(f) {
		if ph, ok := v.(Placeholder); ok {
			result = append(result, ph)
		}
	}
	return result
}

// TopLevelConstant returns the unique non-numeric constant of f, which
// designates the top-level start symbol.
func TopLevelConstant(f Formula) (Constant, bool) {
	for _, v := range Variables(f) {
		if c, ok := v.(Constant); ok && !c.IsNumeric() {
			return c, true
		}
	}
	return Constant{}, false
}

// QuantifierBlock returns the maximal prefix chain of quantified
// formulas starting at f, skipping numeric-constant introductions.
func QuantifierBlock(f Formula) []*Quantified {
	switch v := f.(type) {
	case *Quantified:
		return append([]*Quantified{v}, QuantifierBlock(v.Inner)...)
	case *IntroduceNumericConstant:
		return QuantifierBlock(v.Inner)
	default:
		return nil
	}
}

// SubstituteVariables returns a copy of f with every occurrence of a
// mapped variable replaced, including quantifier binders and in
// variables, comparison terms, and predicate arguments.
func SubstituteVariables(f Formula, subst map[Variable]Variable) Formula {
	mapVar := func(v Variable) Variable {
		if repl, ok := subst[v]; ok {
			return repl
		}
		return v
	}
	switch v := f.(type) {
	case *Quantified:
		return &Quantified{
			Kind:  v.Kind,
			Bound: mapVar(v.Bound),
			In:    mapVar(v.In),
			Inner: SubstituteVariables(v.Inner, subst),
		}
	case *IntroduceNumericConstant:
		bound := v.Bound
		if repl, ok := subst[Variable(v.Bound)].(BoundVariable); ok {
			bound = repl
		}
		return &IntroduceNumericConstant{Bound: bound, Inner: SubstituteVariables(v.Inner, subst)}
	case *Conjunction:
		return &Conjunction{Operands: substituteAll(v.Operands, subst)}
	case *Disjunction:
		return &Disjunction{Operands: substituteAll(v.Operands, subst)}
	case *Negation:
		return &Negation{Inner: SubstituteVariables(v.Inner, subst)}
	case *Comparison:
		return &Comparison{Op: v.Op, Lhs: substituteTerm(v.Lhs, mapVar), Rhs: substituteTerm(v.Rhs, mapVar)}
	case *StructuralPredicateFormula:
		return &StructuralPredicateFormula{Predicate: v.Predicate, Args: substituteArgs(v.Args, mapVar)}
	case *SemanticPredicateFormula:
		return &SemanticPredicateFormula{Predicate: v.Predicate, Args: substituteArgs(v.Args, mapVar)}
	default:
		panic(fmt.Sprintf("language: unknown formula variant %T", f))
	}
}

func substituteAll(operands []Formula, subst map[Variable]Variable) []Formula {
	result := make([]Formula, len(operands))
	for i, op := range operands {
		result[i] = SubstituteVariables(op, subst)
	}
	return result
}

func substituteTerm(t Term, mapVar func(Variable) Variable) Term {
	if vt, ok := t.(VarTerm); ok {
		return VarTerm{V: mapVar(vt.V)}
	}
	return t
}

func substituteArgs(args []Arg, mapVar func(Variable) Variable) []Arg {
	result := make([]Arg, len(args))
	for i, arg := range args {
		if va, ok := arg.(VarArg); ok {
			result[i] = VarArg{V: mapVar(va.V)}
		} else {
			result[i] = arg
		}
	}
	return result
}

// ReplaceFormulas rewrites f bottom-up: transform is applied to every
// atomic subformula and may return a replacement or nil to keep the
// atom unchanged. Composite structure is preserved.
func ReplaceFormulas(f Formula, transform func(Formula) Formula) Formula {
	switch v := f.(type) {
	case *Quantified:
		return &Quantified{Kind: v.Kind, Bound: v.Bound, In: v.In, Inner: ReplaceFormulas(v.Inner, transform)}
	case *IntroduceNumericConstant:
		return &IntroduceNumericConstant{Bound: v.Bound, Inner: ReplaceFormulas(v.Inner, transform)}
	case *Conjunction:
		return &Conjunction{Operands: replaceAll(v.Operands, transform)}
	case *Disjunction:
		return &Disjunction{Operands: replaceAll(v.Operands, transform)}
	case *Negation:
		return &Negation{Inner: ReplaceFormulas(v.Inner, transform)}
	case *Comparison, *StructuralPredicateFormula, *SemanticPredicateFormula:
		if repl := transform(v); repl != nil {
			return repl
		}
		return v
	default:
		panic(fmt.Sprintf("language: unknown formula variant %T", f))
	}
}

func replaceAll(operands []Formula, transform func(Formula) Formula) []Formula {
	result := make([]Formula, len(operands))
	for i, op := range operands {
		result[i] = ReplaceFormulas(op, transform)
	}
	return result
}

// ExpandFormula rewrites f bottom-up where each atomic subformula may
// expand into several alternatives; expand returns nil to keep an atom
// unchanged, and an empty slice to veto every formula containing it.
// The result enumerates all combinations of independent choices.
func ExpandFormula(f Formula, expand func(Formula) []Formula) []Formula {
	switch v := f.(type) {
	case *Quantified:
		return wrapExpansions(ExpandFormula(v.Inner, expand), func(inner Formula) Formula {
			return &Quantified{Kind: v.Kind, Bound: v.Bound, In: v.In, Inner: inner}
		})
	case *IntroduceNumericConstant:
		return wrapExpansions(ExpandFormula(v.Inner, expand), func(inner Formula) Formula {
			return &IntroduceNumericConstant{Bound: v.Bound, Inner: inner}
		})
	case *Negation:
		return wrapExpansions(ExpandFormula(v.Inner, expand), func(inner Formula) Formula {
			return &Negation{Inner: inner}
		})
	case *Conjunction:
		return crossExpansions(v.Operands, expand, func(ops []Formula) Formula {
			return &Conjunction{Operands: ops}
		})
	case *Disjunction:
		return crossExpansions(v.Operands, expand, func(ops []Formula) Formula {
			return &Disjunction{Operands: ops}
		})
	case *Comparison, *StructuralPredicateFormula, *SemanticPredicateFormula:
		if repls := expand(v); repls != nil {
			return repls
		}
		return []Formula{v}
	default:
		panic(fmt.Sprintf("language: unknown formula variant %T", f))
	}
}

func wrapExpansions(inners []Formula, wrap func(Formula) Formula) []Formula {
	result := make([]Formula, len(inners))
	for i, inner := range inners {
		result[i] = wrap(inner)
	}
	return result
}

func crossExpansions(operands []Formula, expand func(Formula) []Formula, build func([]Formula) Formula) []Formula {
	combinations := [][]Formula{nil}
	for _, op := range operands {
		choices := ExpandFormula(op, expand)
		var next [][]Formula
		for _, combo := range combinations {
			for _, choice := range choices {
				extended := make([]Formula, len(combo), len(combo)+1)
				copy(extended, combo)
				next = append(next, append(extended, choice))
			}
		}
		combinations = next
	}
	result := make([]Formula, len(combinations))
	for i, combo := range combinations {
		result[i] = build(combo)
	}
	return result
}
