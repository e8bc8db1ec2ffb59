package learner

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/smythi93/islearn/pkg/grammars"
	"github.com/smythi93/islearn/pkg/language"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// csvGrammar derives newline-separated records of semicolon-separated
// fields.
func csvGrammar() grammars.Grammar {
	return grammars.Grammar{
		grammars.Start: {{"<records>"}},
		"<records>":    {{"<record>"}, {"<record>", "\n", "<records>"}},
		"<record>":     {{"<fields>"}},
		"<fields>":     {{"<field>"}, {"<field>", ";", "<fields>"}},
		"<field>":      {{"x"}, {"y"}},
	}
}

func fieldTree(value string) *grammars.Tree {
	return grammars.NewTree("<field>", grammars.NewTree(value))
}

func fieldsTree(values ...string) *grammars.Tree {
	tail := grammars.NewTree("<fields>", fieldTree(values[len(values)-1]))
	for i := len(values) - 2; i >= 0; i-- {
		tail = grammars.NewTree("<fields>", fieldTree(values[i]), grammars.NewTree(";"), tail)
	}
	return tail
}

func recordTree(values ...string) *grammars.Tree {
	return grammars.NewTree("<record>", fieldsTree(values...))
}

// csvTree assembles records into a full derivation tree.
func csvTree(records ...*grammars.Tree) *grammars.Tree {
	tail := grammars.NewTree("<records>", records[len(records)-1])
	for i := len(records) - 2; i >= 0; i-- {
		tail = grammars.NewTree("<records>", records[i], grammars.NewTree("\n"), tail)
	}
	return grammars.NewTree(grammars.Start, tail)
}

// equalFieldCounts holds when every record carries the same number of
// fields.
func equalFieldCounts(tree *grammars.Tree) bool {
	counts := map[int]bool{}
	for _, record := range tree.Filter(func(t *grammars.Tree) bool { return t.Value == "<record>" }) {
		fields := record.Tree.Filter(func(t *grammars.Tree) bool { return t.Value == "<field>" })
		counts[len(fields)] = true
	}
	return len(counts) <= 1
}

func TestLearnEqualFieldCounts(t *testing.T) {
	grammar := csvGrammar()

	positives := []*grammars.Tree{
		csvTree(recordTree("x", "y"), recordTree("y", "x")),
		csvTree(recordTree("x", "x"), recordTree("y", "y"), recordTree("x", "y")),
		csvTree(recordTree("x")),
	}
	negatives := []*grammars.Tree{
		csvTree(recordTree("x", "y"), recordTree("x")),
		csvTree(recordTree("x"), recordTree("y", "y", "x")),
	}

	l, err := New(Options{
		Grammar:          grammar,
		Property:         equalFieldCounts,
		PositiveExamples: positives,
		NegativeExamples: negatives,
		Rand:             rand.New(rand.NewSource(42)),
		Logger:           zaptest.NewLogger(t),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	result, err := l.Learn(context.Background())
	if err != nil {
		t.Fatalf("Learn failed: %v", err)
	}
	if len(result) == 0 {
		t.Fatal("no invariants learned")
	}

	for i, scored := range result {
		if scored.Precision < 0 || scored.Precision > 1 {
			t.Errorf("precision %f out of range for %s", scored.Precision, scored.Invariant)
		}
		if i > 0 && result[i-1].Precision < scored.Precision {
			t.Errorf("result not sorted by precision at index %d", i)
		}
	}

	found := false
	for _, scored := range result {
		s := scored.Invariant.String()
		if !strings.Contains(s, "count(") {
			continue
		}
		// Only the record-subject count candidates survive the
		// filters and the positive pool.
		if !strings.Contains(s, "forall <record>") {
			t.Errorf("count invariant quantifies a non-record subject: %s", s)
			continue
		}
		if strings.Contains(s, "<field>") {
			found = true
			if scored.Precision == 0 {
				t.Errorf("field-count invariant has zero precision: %s", s)
			}
		}
	}
	if !found {
		t.Error("expected an equal-field-count invariant among the results")
	}
}

func TestLearnSortsDeterministically(t *testing.T) {
	grammar := csvGrammar()
	run := func(seed int64) []ScoredInvariant {
		l, err := New(Options{
			Grammar:          grammar,
			Property:         equalFieldCounts,
			PositiveExamples: []*grammars.Tree{csvTree(recordTree("x", "y"))},
			ActivatedPatterns: []string{
				"equal_count",
			},
			Rand: rand.New(rand.NewSource(seed)),
		})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		result, err := l.Learn(context.Background())
		if err != nil {
			t.Fatalf("Learn failed: %v", err)
		}
		return result
	}

	first := run(7)
	second := run(7)
	if len(first) != len(second) {
		t.Fatalf("same seed, different result sizes: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Invariant.String() != second[i].Invariant.String() ||
			first[i].Precision != second[i].Precision {
			t.Errorf("same seed, different result at index %d", i)
		}
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	grammar := csvGrammar()

	if _, err := New(Options{Grammar: grammar}); err == nil {
		t.Error("missing property accepted")
	}

	if _, err := New(Options{
		Grammar:  grammars.Grammar{"<a>": {{"x"}}},
		Property: equalFieldCounts,
	}); err == nil {
		t.Error("invalid grammar accepted")
	}

	_, err := New(Options{
		Grammar:             grammar,
		Property:            equalFieldCounts,
		ActivatedPatterns:   []string{"equal_count"},
		DeactivatedPatterns: []string{"def_use"},
	})
	if !errors.Is(err, ErrConflictingPatternOptions) {
		t.Errorf("err = %v, want ErrConflictingPatternOptions", err)
	}

	if _, err := New(Options{
		Grammar:           grammar,
		Property:          equalFieldCounts,
		ActivatedPatterns: []string{"no_such_pattern"},
	}); err == nil {
		t.Error("unknown activated pattern accepted")
	}
}

func TestLearnRejectsMisclassifiedExamples(t *testing.T) {
	grammar := csvGrammar()
	unequal := csvTree(recordTree("x", "y"), recordTree("x"))

	l, err := New(Options{
		Grammar:          grammar,
		Property:         equalFieldCounts,
		PositiveExamples: []*grammars.Tree{unequal},
		Rand:             rand.New(rand.NewSource(1)),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := l.Learn(context.Background()); err == nil {
		t.Error("misclassified positive example accepted")
	}
}

func TestLearnNoPositiveExamples(t *testing.T) {
	grammar := csvGrammar()

	l, err := New(Options{
		Grammar:  grammar,
		Property: func(*grammars.Tree) bool { return false },
		Rand:     rand.New(rand.NewSource(3)),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	_, err = l.Learn(context.Background())
	if !errors.Is(err, ErrNoPositiveExamples) {
		t.Errorf("err = %v, want ErrNoPositiveExamples", err)
	}
}

func TestLearnHonorsCancellation(t *testing.T) {
	grammar := csvGrammar()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l, err := New(Options{
		Grammar:          grammar,
		Property:         equalFieldCounts,
		PositiveExamples: []*grammars.Tree{csvTree(recordTree("x"))},
		Rand:             rand.New(rand.NewSource(9)),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := l.Learn(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestLearnWithExplicitPatterns(t *testing.T) {
	grammar := csvGrammar()
	start := language.StartConstant(grammars.Start)
	field := language.BoundVariable{VarName: "f", VarType: "<field>"}
	// Concrete pattern without placeholders: every field is "x".
	pattern := &language.Quantified{
		Kind: language.ForallQuantifier, Bound: field, In: start,
		Inner: &language.Comparison{Op: language.OpEq, Lhs: language.VarTerm{V: field}, Rhs: language.LitTerm{S: "x"}},
	}

	l, err := New(Options{
		Grammar:          grammar,
		Property:         func(t *grammars.Tree) bool { return !strings.Contains(t.String(), "y") },
		PositiveExamples: []*grammars.Tree{csvTree(recordTree("x", "x"))},
		Patterns:         []language.Formula{pattern},
		Rand:             rand.New(rand.NewSource(13)),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	result, err := l.Learn(context.Background())
	if err != nil {
		t.Fatalf("Learn failed: %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("learned %d invariants, want exactly the explicit pattern", len(result))
	}
	if got := result[0].Invariant.String(); !strings.Contains(got, `f == "x"`) {
		t.Errorf("invariant = %s, want the explicit pattern", got)
	}
}

func TestLearnPrecisionEdgeValues(t *testing.T) {
	grammar := csvGrammar()
	start := language.StartConstant(grammars.Start)
	field := language.BoundVariable{VarName: "f", VarType: "<field>"}
	allX := &language.Quantified{
		Kind: language.ForallQuantifier, Bound: field, In: start,
		Inner: &language.Comparison{Op: language.OpEq, Lhs: language.VarTerm{V: field}, Rhs: language.LitTerm{S: "x"}},
	}
	tautology := &language.Quantified{
		Kind: language.ForallQuantifier, Bound: field, In: start,
		Inner: &language.Comparison{Op: language.OpEq, Lhs: language.VarTerm{V: field}, Rhs: language.VarTerm{V: field}},
	}

	t.Run("no negatives scores one", func(t *testing.T) {
		// Always-true property: the negative pool stays empty through
		// both growth stages.
		l, err := New(Options{
			Grammar:            grammar,
			Property:           func(*grammars.Tree) bool { return true },
			PositiveExamples:   []*grammars.Tree{csvTree(recordTree("x"))},
			Patterns:           []language.Formula{tautology},
			DesiredExamples:    2,
			FuzzTries:          5,
			MutationIterations: 2,
			Rand:               rand.New(rand.NewSource(21)),
		})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		result, err := l.Learn(context.Background())
		if err != nil {
			t.Fatalf("Learn failed: %v", err)
		}
		if len(result) != 1 {
			t.Fatalf("learned %d invariants, want 1", len(result))
		}
		if result[0].Precision != 1.0 {
			t.Errorf("precision with no negatives = %f, want exactly 1", result[0].Precision)
		}
	})

	t.Run("false on every negative scores one", func(t *testing.T) {
		// Every tree the property rejects contains a "y" field, so the
		// all-x candidate is false on the whole negative pool.
		l, err := New(Options{
			Grammar:            grammar,
			Property:           func(t *grammars.Tree) bool { return !strings.Contains(t.String(), "y") },
			PositiveExamples:   []*grammars.Tree{csvTree(recordTree("x", "x"))},
			NegativeExamples:   []*grammars.Tree{csvTree(recordTree("x", "y"))},
			Patterns:           []language.Formula{allX},
			DesiredExamples:    2,
			FuzzTries:          5,
			MutationIterations: 2,
			Rand:               rand.New(rand.NewSource(23)),
		})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		result, err := l.Learn(context.Background())
		if err != nil {
			t.Fatalf("Learn failed: %v", err)
		}
		if len(result) != 1 {
			t.Fatalf("learned %d invariants, want 1", len(result))
		}
		if result[0].Precision != 1.0 {
			t.Errorf("precision of an all-negative rejector = %f, want exactly 1", result[0].Precision)
		}
	})

	t.Run("true on every negative scores zero", func(t *testing.T) {
		// The tautology survives the positives but accepts every
		// negative as well.
		l, err := New(Options{
			Grammar:            grammar,
			Property:           equalFieldCounts,
			PositiveExamples:   []*grammars.Tree{csvTree(recordTree("x", "y"))},
			NegativeExamples:   []*grammars.Tree{csvTree(recordTree("x", "y"), recordTree("x"))},
			Patterns:           []language.Formula{tautology},
			DesiredExamples:    2,
			FuzzTries:          5,
			MutationIterations: 2,
			Rand:               rand.New(rand.NewSource(27)),
		})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		result, err := l.Learn(context.Background())
		if err != nil {
			t.Fatalf("Learn failed: %v", err)
		}
		if len(result) != 1 {
			t.Fatalf("learned %d invariants, want 1", len(result))
		}
		if result[0].Precision != 0.0 {
			t.Errorf("precision of a tautology = %f, want exactly 0", result[0].Precision)
		}
	})
}
