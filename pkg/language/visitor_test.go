package language

import (
	"strings"
	"testing"

	"github.com/smythi93/islearn/pkg/grammars"
)

func TestVariablesFirstOccurrenceOrder(t *testing.T) {
	formula := defBeforeUse()
	vars := Variables(formula)

	want := []string{"use_ctx", "start", "use", "def_ctx", "def"}
	if len(vars) != len(want) {
		t.Fatalf("Variables returned %d entries, want %d", len(vars), len(want))
	}
	for i, name := range want {
		if vars[i].Name() != name {
			t.Errorf("Variables[%d] = %s, want %s", i, vars[i].Name(), name)
		}
	}
}

func TestPlaceholdersAndTopLevelConstant(t *testing.T) {
	start := StartConstant(grammars.Start)
	ph := NonterminalPlaceholder{VarName: "elem"}
	formula := &Quantified{
		Kind: ForallQuantifier, Bound: ph, In: start,
		Inner: &Comparison{
			Op:  OpEq,
			Lhs: VarTerm{V: ph},
			Rhs: VarTerm{V: StringPlaceholder{VarName: "value"}},
		},
	}

	placeholders := Placeholders(formula)
	if len(placeholders) != 2 {
		t.Fatalf("Placeholders returned %d entries, want 2", len(placeholders))
	}

	top, ok := TopLevelConstant(formula)
	if !ok || top.Name() != "start" {
		t.Errorf("TopLevelConstant = %v, %v; want the start constant", top, ok)
	}

	if _, ok := TopLevelConstant(&Comparison{Op: OpEq, Lhs: LitTerm{S: "a"}, Rhs: LitTerm{S: "b"}}); ok {
		t.Error("TopLevelConstant found a constant in a constant-free formula")
	}
}

func TestQuantifierBlockSkipsNumericIntroduction(t *testing.T) {
	start := StartConstant(grammars.Start)
	elem := BoundVariable{VarName: "elem", VarType: "<record>"}
	num := BoundVariable{VarName: "num", VarType: NumericNType}
	formula := &IntroduceNumericConstant{
		Bound: num,
		Inner: &Quantified{
			Kind: ForallQuantifier, Bound: elem, In: start,
			Inner: &SemanticPredicateFormula{
				Predicate: Count,
				Args:      []Arg{VarArg{V: elem}, StringArg{S: "<field>"}, VarArg{V: num}},
			},
		},
	}

	block := QuantifierBlock(formula)
	if len(block) != 1 {
		t.Fatalf("QuantifierBlock returned %d entries, want 1", len(block))
	}
	if block[0].Bound != Variable(elem) {
		t.Errorf("QuantifierBlock bound = %v, want elem", block[0].Bound)
	}
}

func TestSubstituteVariablesRebindsQuantifiers(t *testing.T) {
	start := StartConstant(grammars.Start)
	ph := NonterminalPlaceholder{VarName: "elem"}
	formula := &Quantified{
		Kind: ForallQuantifier, Bound: ph, In: start,
		Inner: &Comparison{Op: OpEq, Lhs: VarTerm{V: ph}, Rhs: LitTerm{S: "x"}},
	}

	typed := BoundVariable{VarName: "elem", VarType: "<item>"}
	result := SubstituteVariables(formula, map[Variable]Variable{ph: typed})

	qfr, ok := result.(*Quantified)
	if !ok {
		t.Fatalf("substitution changed the formula shape: %T", result)
	}
	if qfr.Bound != Variable(typed) {
		t.Errorf("binder = %v, want the typed variable", qfr.Bound)
	}
	cmp := qfr.Inner.(*Comparison)
	if cmp.Lhs.(VarTerm).V != Variable(typed) {
		t.Errorf("term occurrence = %v, want the typed variable", cmp.Lhs)
	}

	// The original is untouched.
	if formula.Bound != Variable(ph) {
		t.Error("substitution mutated the input formula")
	}
}

func TestExpandFormulaCrossProduct(t *testing.T) {
	a := &Comparison{Op: OpEq, Lhs: LitTerm{S: "a"}, Rhs: LitTerm{S: "a"}}
	b := &Comparison{Op: OpEq, Lhs: LitTerm{S: "b"}, Rhs: LitTerm{S: "b"}}
	conj := &Conjunction{Operands: []Formula{a, b}}

	expansions := ExpandFormula(conj, func(atom Formula) []Formula {
		cmp := atom.(*Comparison)
		if cmp.Lhs.(LitTerm).S != "a" {
			return nil // keep
		}
		return []Formula{
			&Comparison{Op: OpEq, Lhs: LitTerm{S: "a1"}, Rhs: cmp.Rhs},
			&Comparison{Op: OpEq, Lhs: LitTerm{S: "a2"}, Rhs: cmp.Rhs},
		}
	})
	if len(expansions) != 2 {
		t.Fatalf("ExpandFormula returned %d formulas, want 2", len(expansions))
	}

	// An empty expansion vetoes the whole formula.
	vetoed := ExpandFormula(conj, func(Formula) []Formula { return []Formula{} })
	if len(vetoed) != 0 {
		t.Errorf("vetoed expansion returned %d formulas, want 0", len(vetoed))
	}
}

func TestFormulaString(t *testing.T) {
	got := defBeforeUse().String()
	for _, fragment := range []string{
		"forall <ref> use_ctx in start:",
		"exists <decl> def_ctx in start:",
		"def == use",
		"before(def_ctx, use_ctx)",
	} {
		if !strings.Contains(got, fragment) {
			t.Errorf("String() = %q, missing %q", got, fragment)
		}
	}
}
