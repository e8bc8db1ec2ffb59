package learner

import (
	"testing"

	"github.com/smythi93/islearn/pkg/grammars"
)

func TestFilterByKPathsKeepsSmallPools(t *testing.T) {
	graph := grammars.NewGraph(csvGrammar())
	pool := []*grammars.Tree{
		csvTree(recordTree("x")),
		csvTree(recordTree("y")),
	}

	result := FilterByKPaths(pool, graph, 10, 3, true)
	if len(result) != len(pool) {
		t.Errorf("pool within the cap shrank from %d to %d", len(pool), len(result))
	}
}

func TestFilterByKPathsDeduplicates(t *testing.T) {
	graph := grammars.NewGraph(csvGrammar())
	pool := []*grammars.Tree{
		csvTree(recordTree("x")),
		csvTree(recordTree("x")),
		csvTree(recordTree("x")),
	}

	result := FilterByKPaths(pool, graph, 10, 3, true)
	if len(result) != 1 {
		t.Errorf("duplicates survived: %d trees, want 1", len(result))
	}
}

func TestFilterByKPathsRespectsCap(t *testing.T) {
	graph := grammars.NewGraph(csvGrammar())
	var pool []*grammars.Tree
	for i := 1; i <= 8; i++ {
		values := make([]string, i)
		for j := range values {
			values[j] = "x"
		}
		pool = append(pool, csvTree(recordTree(values...)))
	}

	result := FilterByKPaths(pool, graph, 3, 3, false)
	if len(result) > 3 {
		t.Errorf("cap exceeded: %d trees", len(result))
	}
	if len(result) == 0 {
		t.Error("subsampling dropped every tree")
	}
}

func TestFilterByKPathsPrefersSmallTrees(t *testing.T) {
	graph := grammars.NewGraph(csvGrammar())
	small := csvTree(recordTree("x"))
	large := csvTree(recordTree("x"), recordTree("x"), recordTree("x"))
	medium := csvTree(recordTree("x"), recordTree("x"))

	result := FilterByKPaths([]*grammars.Tree{large, medium, small,
		csvTree(recordTree("y")), csvTree(recordTree("y", "y"))}, graph, 1, 3, true)
	if len(result) != 1 {
		t.Fatalf("got %d trees, want 1", len(result))
	}
	if result[0].Size() != small.Size() {
		t.Errorf("picked a tree of size %d, smallest is %d", result[0].Size(), small.Size())
	}
}

func TestFilterByKPathsBreaksTiesBySize(t *testing.T) {
	graph := grammars.NewGraph(csvGrammar())
	// Both trees realize exactly five distinct 3-paths, so greedy
	// selection ties on coverage and must fall back to size.
	wide := csvTree(recordTree("x", "x"))
	tall := csvTree(recordTree("x"), recordTree("x"))
	if wide.Size() >= tall.Size() {
		t.Fatalf("fixture sizes inverted: wide %d, tall %d", wide.Size(), tall.Size())
	}

	result := FilterByKPaths([]*grammars.Tree{tall, wide}, graph, 1, 3, false)
	if len(result) != 1 {
		t.Fatalf("got %d trees, want 1", len(result))
	}
	if !result[0].Equal(wide) {
		t.Errorf("tie broken toward the larger tree (size %d)", result[0].Size())
	}
}

func TestFilterByKPathsCoversBeforeRepeating(t *testing.T) {
	graph := grammars.NewGraph(csvGrammar())
	// A deep pool covers more 3-paths than a flat one.
	flat := csvTree(recordTree("x"))
	deep := csvTree(recordTree("x", "x", "x"), recordTree("y"))

	result := FilterByKPaths([]*grammars.Tree{
		flat, deep,
		csvTree(recordTree("y")),
		csvTree(recordTree("x")),
	}, graph, 2, 3, false)

	if len(result) == 0 {
		t.Fatal("empty subsample")
	}
	// Greedy coverage picks the deep tree first.
	if !result[0].Equal(deep) {
		t.Errorf("first pick has size %d, want the deepest tree", result[0].Size())
	}
}
