package learner

import (
	"strings"
	"testing"

	"github.com/smythi93/islearn/pkg/grammars"
	"github.com/smythi93/islearn/pkg/language"
	"github.com/smythi93/islearn/pkg/patterns"
)

func newTestInstantiator(t *testing.T, examples []*grammars.Tree, dedupe bool) *Instantiator {
	t.Helper()
	grammar := csvGrammar()
	graph := grammars.NewGraph(grammar)
	index := NewReachabilityIndex(graph, examples)
	return NewInstantiator(grammar, graph, index, dedupe, nil)
}

func mustPattern(t *testing.T, name string) language.Formula {
	t.Helper()
	repo, err := patterns.BuiltIn()
	if err != nil {
		t.Fatalf("BuiltIn() failed: %v", err)
	}
	formulas := repo.Get(name)
	if len(formulas) != 1 {
		t.Fatalf("pattern %q resolves to %d formulas", name, len(formulas))
	}
	return formulas[0]
}

func TestInstantiateEliminatesAllPlaceholders(t *testing.T) {
	examples := []*grammars.Tree{
		csvTree(recordTree("x", "y")),
		csvTree(recordTree("x"), recordTree("y")),
	}
	inst := newTestInstantiator(t, examples, false)

	for _, name := range []string{"def_use", "equal_count", "fixed_value"} {
		t.Run(name, func(t *testing.T) {
			results, err := inst.Instantiate(mustPattern(t, name), examples)
			if err != nil {
				t.Fatalf("Instantiate failed: %v", err)
			}
			for _, result := range results {
				if remaining := language.Placeholders(result); len(remaining) > 0 {
					t.Errorf("instantiation %s retains placeholder %s", result, remaining[0].Name())
				}
			}
		})
	}
}

func TestInstantiateNonterminalPlaceholdersRespectsObservation(t *testing.T) {
	examples := []*grammars.Tree{csvTree(recordTree("x", "y"))}
	inst := newTestInstantiator(t, examples, false)

	results, err := inst.InstantiateNonterminalPlaceholders(mustPattern(t, "equal_count"))
	if err != nil {
		t.Fatalf("InstantiateNonterminalPlaceholders failed: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("no instantiations produced")
	}

	index := NewReachabilityIndex(grammars.NewGraph(csvGrammar()), examples)
	sawRecord := false
	for _, result := range results {
		block := language.QuantifierBlock(result)
		if len(block) != 1 {
			t.Fatalf("instantiation %s has %d quantifiers, want 1", result, len(block))
		}
		boundType := block[0].Bound.NType()
		if boundType == "" {
			t.Fatalf("instantiation %s kept an untyped binder", result)
		}
		// Every assigned type was observed below the in-variable's type.
		if !index.ObservedReach(block[0].In.NType(), boundType) {
			t.Errorf("type %s not observed below %s", boundType, block[0].In.NType())
		}
		if boundType == "<record>" {
			sawRecord = true
		}
	}
	if !sawRecord {
		t.Error("no instantiation bound elem to <record>")
	}
}

func TestInstantiateNonterminalPlaceholdersIdentityWithoutPlaceholders(t *testing.T) {
	inst := newTestInstantiator(t, []*grammars.Tree{csvTree(recordTree("x"))}, false)

	start := language.StartConstant(grammars.Start)
	field := language.BoundVariable{VarName: "f", VarType: "<field>"}
	concrete := &language.Quantified{
		Kind: language.ForallQuantifier, Bound: field, In: start,
		Inner: &language.Comparison{Op: language.OpEq, Lhs: language.VarTerm{V: field}, Rhs: language.LitTerm{S: "x"}},
	}

	results, err := inst.InstantiateNonterminalPlaceholders(concrete)
	if err != nil {
		t.Fatalf("InstantiateNonterminalPlaceholders failed: %v", err)
	}
	if len(results) != 1 || results[0] != language.Formula(concrete) {
		t.Errorf("concrete formula was not passed through unchanged")
	}
}

func TestInstantiateNonterminalStringPlaceholders(t *testing.T) {
	examples := []*grammars.Tree{csvTree(recordTree("x"))}
	inst := newTestInstantiator(t, examples, false)

	withTyped, err := inst.InstantiateNonterminalPlaceholders(mustPattern(t, "equal_count"))
	if err != nil {
		t.Fatalf("stage 1 failed: %v", err)
	}
	results := inst.InstantiateNonterminalStringPlaceholders(withTyped)

	// Each stage-1 instantiation is multiplied once per nonterminal.
	nonterminals := len(csvGrammar().Nonterminals())
	if len(results) != len(withTyped)*nonterminals {
		t.Errorf("got %d instantiations, want %d", len(results), len(withTyped)*nonterminals)
	}
	sawField := false
	for _, result := range results {
		if strings.Contains(result.String(), "count(elem, <field>, num)") {
			sawField = true
		}
	}
	if !sawField {
		t.Error("no instantiation counts <field> occurrences")
	}
}

func TestInstantiateStringPlaceholdersUsesCommonFragments(t *testing.T) {
	// "x" derives from a field in every example; "y" only in one.
	examples := []*grammars.Tree{
		csvTree(recordTree("x", "y")),
		csvTree(recordTree("x")),
	}
	inst := newTestInstantiator(t, examples, false)

	results, err := inst.Instantiate(mustPattern(t, "fixed_value"), examples)
	if err != nil {
		t.Fatalf("Instantiate failed: %v", err)
	}

	sawCommon := false
	for _, result := range results {
		s := result.String()
		if strings.Contains(s, `== "y"`) {
			t.Errorf("non-common fragment instantiated: %s", s)
		}
		if strings.Contains(s, `== "x"`) {
			sawCommon = true
		}
	}
	if !sawCommon {
		t.Error("common fragment \"x\" never instantiated")
	}
}

func TestInstantiateDeduplicatesImpliedChains(t *testing.T) {
	examples := []*grammars.Tree{
		csvTree(recordTree("x", "y")),
		csvTree(recordTree("x"), recordTree("y")),
	}
	plain := newTestInstantiator(t, examples, false)
	deduped := newTestInstantiator(t, examples, true)

	pattern := mustPattern(t, "equal_count")
	all, err := plain.InstantiateNonterminalPlaceholders(pattern)
	if err != nil {
		t.Fatalf("stage 1 failed: %v", err)
	}
	kept, err := deduped.InstantiateNonterminalPlaceholders(pattern)
	if err != nil {
		t.Fatalf("deduplicating stage 1 failed: %v", err)
	}
	if len(kept) > len(all) {
		t.Errorf("deduplication grew the instantiation set: %d > %d", len(kept), len(all))
	}
	if len(kept) == 0 {
		t.Error("deduplication removed every instantiation")
	}
}
