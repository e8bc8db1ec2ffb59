package fuzzing

import (
	"context"
	"math/rand"

	"github.com/smythi93/islearn/pkg/grammars"
)

// MutationConfig tunes a mutation run.
type MutationConfig struct {
	// Iterations is the number of mutation attempts.
	Iterations int
	// Rate is the fraction of a tree's nonterminal nodes replaced per
	// mutation, at least one.
	Rate float64
	// YieldNegative includes inputs violating the property in the
	// output stream. Property-satisfying inputs are always yielded and
	// additionally join the seed population when they add coverage.
	YieldNegative bool
	// K is the path length used for the coverage fitness of new seeds.
	K int
}

// DefaultMutationConfig mirrors the learner's growth budget.
func DefaultMutationConfig() MutationConfig {
	return MutationConfig{Iterations: 50, Rate: 0.1, YieldNegative: true, K: 3}
}

// MutationFuzzer evolves derivation trees from a seed population by
// replacing random subtrees with freshly fuzzed ones. Inputs that
// satisfy the property and add k-path coverage join the population.
type MutationFuzzer struct {
	grammar  grammars.Grammar
	graph    *grammars.Graph
	fuzzer   *CoverageFuzzer
	property func(*grammars.Tree) bool
	rng      *rand.Rand

	seeds   []*grammars.Tree
	covered map[string]bool
}

// NewMutationFuzzer builds a mutation fuzzer over the given seeds. The
// property classifies generated inputs; rng may be nil.
func NewMutationFuzzer(
	grammar grammars.Grammar,
	graph *grammars.Graph,
	seeds []*grammars.Tree,
	property func(*grammars.Tree) bool,
	rng *rand.Rand,
) *MutationFuzzer {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &MutationFuzzer{
		grammar:  grammar,
		graph:    graph,
		fuzzer:   NewCoverageFuzzer(grammar, rng, 0),
		property: property,
		rng:      rng,
		seeds:    append([]*grammars.Tree(nil), seeds...),
		covered:  map[string]bool{},
	}
}

// Run starts a mutation run and returns a lazily produced stream of
// generated trees. The stream closes after cfg.Iterations attempts or
// when ctx is cancelled, whichever comes first.
func (m *MutationFuzzer) Run(ctx context.Context, cfg MutationConfig) <-chan *grammars.Tree {
	out := make(chan *grammars.Tree)
	go func() {
		defer close(out)
		if len(m.seeds) == 0 {
			return
		}
		for _, seed := range m.seeds {
			m.recordCoverage(seed, cfg.K)
		}
		for i := 0; i < cfg.Iterations; i++ {
			seed := m.seeds[m.rng.Intn(len(m.seeds))]
			mutant := m.mutate(seed, cfg.Rate)

			satisfies := m.property(mutant)
			if satisfies && m.addsCoverage(mutant, cfg.K) {
				m.seeds = append(m.seeds, mutant)
				m.recordCoverage(mutant, cfg.K)
			}
			if !satisfies && !cfg.YieldNegative {
				continue
			}
			select {
			case out <- mutant:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// mutate replaces randomly chosen nonterminal subtrees of seed with
// freshly fuzzed replacements of the same type.
func (m *MutationFuzzer) mutate(seed *grammars.Tree, rate float64) *grammars.Tree {
	sites := seed.Filter(func(t *grammars.Tree) bool {
		return grammars.IsNonterminal(t.Value) && len(t.Children) > 0
	})
	if len(sites) == 0 {
		return seed
	}
	numMutations := int(rate * float64(len(sites)))
	if numMutations < 1 {
		numMutations = 1
	}
	result := seed
	for i := 0; i < numMutations; i++ {
		site := sites[m.rng.Intn(len(sites))]
		replacement := m.fuzzer.ExpandTree(grammars.NewTree(site.Tree.Value))
		result = replaceSubtree(result, site.Path, replacement)
	}
	return result
}

// replaceSubtree returns a copy of tree with the node at path swapped
// for replacement. Nodes off the path are shared, not copied.
func replaceSubtree(tree *grammars.Tree, path grammars.Path, replacement *grammars.Tree) *grammars.Tree {
	if len(path) == 0 {
		return replacement
	}
	idx := path[0]
	if idx < 0 || idx >= len(tree.Children) {
		return tree
	}
	children := make([]*grammars.Tree, len(tree.Children))
	copy(children, tree.Children)
	children[idx] = replaceSubtree(children[idx], path[1:], replacement)
	return grammars.NewTree(tree.Value, children...)
}

func (m *MutationFuzzer) recordCoverage(tree *grammars.Tree, k int) {
	for path := range m.graph.KPathsInTree(tree, k) {
		m.covered[path] = true
	}
}

func (m *MutationFuzzer) addsCoverage(tree *grammars.Tree, k int) bool {
	for path := range m.graph.KPathsInTree(tree, k) {
		if !m.covered[path] {
			return true
		}
	}
	return false
}
