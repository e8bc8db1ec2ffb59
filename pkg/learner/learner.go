// Package learner infers candidate invariants characterizing the valid
// inputs of a grammar-described language. Starting from abstract
// patterns, it instantiates placeholders against sample derivation
// trees, discards implausible candidates through cheap filters, keeps
// the candidates holding on every positive example, and ranks the
// survivors by their precision on negative examples.
package learner

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/smythi93/islearn/pkg/fuzzing"
	"github.com/smythi93/islearn/pkg/grammars"
	"github.com/smythi93/islearn/pkg/language"
	"github.com/smythi93/islearn/pkg/patterns"
)

// ============================================================================
// OPTIONS
// ============================================================================

var (
	// ErrNoPositiveExamples is returned when neither the caller nor
	// the fuzzing stage produced a single property-satisfying input.
	ErrNoPositiveExamples = errors.New("learner: no positive examples to learn from")

	// ErrConflictingPatternOptions is returned when both activated and
	// deactivated pattern names are given.
	ErrConflictingPatternOptions = errors.New("learner: activated and deactivated patterns are mutually exclusive")
)

// Options configures a learning run. Grammar and Property are
// mandatory; everything else has a default.
type Options struct {
	Grammar  grammars.Grammar
	Property func(*grammars.Tree) bool

	// PositiveExamples and NegativeExamples seed the example pools.
	// Each must classify as its pool claims under Property.
	PositiveExamples []*grammars.Tree
	NegativeExamples []*grammars.Tree

	// Patterns, when set, bypasses the repository entirely.
	Patterns []language.Formula
	// Repository supplies abstract patterns; nil means the built-in
	// catalog. ActivatedPatterns restricts to the named patterns,
	// DeactivatedPatterns excludes them; at most one may be set.
	Repository          *patterns.Repository
	ActivatedPatterns   []string
	DeactivatedPatterns []string

	// K is the path length for coverage subsampling and mutation
	// fitness. Zero means 3.
	K int

	// DeduplicateImplied prunes chain instantiations implied by other
	// candidates during placeholder elimination.
	DeduplicateImplied bool

	// DesiredExamples and FuzzTries bound the grammar-fuzzing growth
	// stage; MutationIterations and MutationRate the mutation stage.
	// Zero selects the defaults 10, 100, 50, and 0.1.
	DesiredExamples    int
	FuzzTries          int
	MutationIterations int
	MutationRate       float64

	// MaxExamples caps both pools after subsampling and
	// MaxLearningExamples the positives used for candidate
	// generation. Zero selects 10 and 7.
	MaxExamples         int
	MaxLearningExamples int

	// Workers bounds the parallel precision evaluation. Zero means
	// twice GOMAXPROCS.
	Workers int

	Rand   *rand.Rand
	Logger *zap.Logger
}

func (o *Options) withDefaults() Options {
	opts := *o
	if opts.K == 0 {
		opts.K = 3
	}
	if opts.DesiredExamples == 0 {
		opts.DesiredExamples = 10
	}
	if opts.FuzzTries == 0 {
		opts.FuzzTries = 100
	}
	if opts.MutationIterations == 0 {
		opts.MutationIterations = 50
	}
	if opts.MutationRate == 0 {
		opts.MutationRate = 0.1
	}
	if opts.MaxExamples == 0 {
		opts.MaxExamples = 10
	}
	if opts.MaxLearningExamples == 0 {
		opts.MaxLearningExamples = 7
	}
	if opts.Workers == 0 {
		opts.Workers = 2 * runtime.GOMAXPROCS(0)
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(rand.Int63()))
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return opts
}

// ScoredInvariant is one learned invariant with its precision on the
// negative example pool, in [0, 1].
type ScoredInvariant struct {
	Invariant language.Formula
	Precision float64
}

// ============================================================================
// LEARNER
// ============================================================================

// Learner runs the full invariant learning pipeline.
type Learner struct {
	opts     Options
	graph    *grammars.Graph
	patterns []language.Formula
	log      *zap.Logger
}

// New validates the options and resolves the abstract pattern set.
func New(opts Options) (*Learner, error) {
	if opts.Property == nil {
		return nil, errors.New("learner: property predicate is required")
	}
	if err := opts.Grammar.Validate(); err != nil {
		return nil, fmt.Errorf("learner: %w", err)
	}
	if len(opts.ActivatedPatterns) > 0 && len(opts.DeactivatedPatterns) > 0 {
		return nil, ErrConflictingPatternOptions
	}

	opts = opts.withDefaults()

	resolved, err := resolvePatterns(&opts)
	if err != nil {
		return nil, err
	}

	return &Learner{
		opts:     opts,
		graph:    grammars.NewGraph(opts.Grammar),
		patterns: resolved,
		log:      opts.Logger,
	}, nil
}

func resolvePatterns(opts *Options) ([]language.Formula, error) {
	if len(opts.Patterns) > 0 {
		return opts.Patterns, nil
	}
	repo := opts.Repository
	if repo == nil {
		builtin, err := patterns.BuiltIn()
		if err != nil {
			return nil, err
		}
		repo = builtin
	}
	if len(opts.ActivatedPatterns) > 0 {
		var result []language.Formula
		for _, name := range opts.ActivatedPatterns {
			formulas := repo.Get(name)
			if len(formulas) == 0 {
				return nil, fmt.Errorf("learner: unknown pattern %q", name)
			}
			result = append(result, formulas...)
		}
		return result, nil
	}
	return repo.GetAll(opts.DeactivatedPatterns...), nil
}

// Learn executes the pipeline: grow the example pools by grammar and
// mutation fuzzing, subsample by k-path coverage, generate and filter
// candidates, keep the true invariants, and rank them by precision.
// The result is sorted by precision descending, ties broken by the
// invariant's string form.
func (l *Learner) Learn(ctx context.Context) ([]ScoredInvariant, error) {
	positives := dedupTrees(l.opts.PositiveExamples)
	negatives := dedupTrees(l.opts.NegativeExamples)

	for _, example := range positives {
		if !l.opts.Property(example) {
			return nil, fmt.Errorf("learner: positive example %q violates the property", example.String())
		}
	}
	for _, example := range negatives {
		if l.opts.Property(example) {
			return nil, fmt.Errorf("learner: negative example %q satisfies the property", example.String())
		}
	}

	l.log.Info("starting invariant learning",
		zap.Int("positive", len(positives)),
		zap.Int("negative", len(negatives)),
		zap.Int("patterns", len(l.patterns)))

	positives, negatives = l.growByFuzzing(positives, negatives)
	if len(positives) == 0 {
		return nil, ErrNoPositiveExamples
	}

	positives, negatives = l.growByMutation(ctx, positives, negatives)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	positives = FilterByKPaths(positives, l.graph, l.opts.MaxExamples, l.opts.K, true)
	learningExamples := FilterByKPaths(positives, l.graph, l.opts.MaxLearningExamples, l.opts.K, true)
	negatives = FilterByKPaths(negatives, l.graph, l.opts.MaxExamples, l.opts.K, true)
	l.log.Info("subsampled example pools by k-path coverage",
		zap.Int("positive", len(positives)),
		zap.Int("negative", len(negatives)),
		zap.Int("learning", len(learningExamples)))

	candidates, err := l.generateCandidates(learningExamples)
	if err != nil {
		return nil, err
	}
	l.log.Info("generated invariant candidates", zap.Int("candidates", len(candidates)))

	var invariants []language.Formula
	for _, candidate := range candidates {
		if holdsOnAll(candidate, positives, l.opts.Grammar) {
			invariants = append(invariants, candidate)
		}
	}
	l.log.Info("kept candidates holding on all positive examples",
		zap.Int("invariants", len(invariants)))

	result, err := l.scoreByPrecision(ctx, invariants, negatives)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Precision != result[j].Precision {
			return result[i].Precision > result[j].Precision
		}
		return result[i].Invariant.String() < result[j].Invariant.String()
	})

	nonZero := 0
	for _, scored := range result {
		if scored.Precision > 0 {
			nonZero++
		}
	}
	l.log.Info("finished invariant learning",
		zap.Int("invariants", len(result)),
		zap.Int("nonzero_precision", nonZero))
	return result, nil
}

// growByFuzzing adds coverage-fuzzed inputs to the smaller pool until
// both pools reach the desired size or the try budget is spent.
func (l *Learner) growByFuzzing(positives, negatives []*grammars.Tree) ([]*grammars.Tree, []*grammars.Tree) {
	pBefore, nBefore := len(positives), len(negatives)
	fuzzer := fuzzing.NewCoverageFuzzer(l.opts.Grammar, l.opts.Rand, 0)
	for i := 0; i < l.opts.FuzzTries &&
		(len(positives) < l.opts.DesiredExamples || len(negatives) < l.opts.DesiredExamples); i++ {
		inp := fuzzer.Fuzz()
		if l.opts.Property(inp) {
			positives = appendUnique(positives, inp)
		} else {
			negatives = appendUnique(negatives, inp)
		}
	}
	l.log.Info("grew example pools by grammar fuzzing",
		zap.Int("new_positive", len(positives)-pBefore),
		zap.Int("new_negative", len(negatives)-nBefore))
	return positives, negatives
}

// growByMutation evolves the positive pool and classifies every
// generated input into the matching pool.
func (l *Learner) growByMutation(ctx context.Context, positives, negatives []*grammars.Tree) ([]*grammars.Tree, []*grammars.Tree) {
	pBefore, nBefore := len(positives), len(negatives)
	mutator := fuzzing.NewMutationFuzzer(l.opts.Grammar, l.graph, positives, l.opts.Property, l.opts.Rand)
	cfg := fuzzing.MutationConfig{
		Iterations:    l.opts.MutationIterations,
		Rate:          l.opts.MutationRate,
		YieldNegative: true,
		K:             l.opts.K,
	}
	for inp := range mutator.Run(ctx, cfg) {
		if l.opts.Property(inp) {
			positives = appendUnique(positives, inp)
		} else {
			negatives = appendUnique(negatives, inp)
		}
	}
	l.log.Info("grew example pools by mutation fuzzing",
		zap.Int("new_positive", len(positives)-pBefore),
		zap.Int("new_negative", len(negatives)-nBefore))
	return positives, negatives
}

// generateCandidates instantiates every abstract pattern against the
// learning examples and strains the result through the candidate
// filters.
func (l *Learner) generateCandidates(learningExamples []*grammars.Tree) ([]language.Formula, error) {
	index := NewReachabilityIndex(l.graph, learningExamples)
	l.log.Debug("computed sample reachability relation", zap.Int("pairs", index.Size()))

	instantiator := NewInstantiator(l.opts.Grammar, l.graph, index, l.opts.DeduplicateImplied, l.log)

	seen := map[string]bool{}
	var candidates []language.Formula
	for _, pattern := range l.patterns {
		instantiations, err := instantiator.Instantiate(pattern, learningExamples)
		if err != nil {
			return nil, err
		}
		for _, inst := range instantiations {
			key := inst.String()
			if !seen[key] {
				seen[key] = true
				candidates = append(candidates, inst)
			}
		}
	}

	filters := []Filter{
		StructuralPredicatesFilter{},
		VariablesEqualFilter{},
		NonterminalStringInCountPredicatesFilter{Graph: l.graph, Index: index},
	}
	for _, filter := range filters {
		var remaining []language.Formula
		for _, candidate := range candidates {
			if filter.Predicate(candidate, learningExamples) {
				remaining = append(remaining, candidate)
			}
		}
		l.log.Debug("applied candidate filter",
			zap.String("filter", filter.Name()),
			zap.Int("remaining", len(remaining)))
		candidates = remaining
	}
	return candidates, nil
}

// scoreByPrecision evaluates every invariant against the negative pool
// in parallel. Precision is the fraction of negatives the invariant
// rejects; with no negatives every invariant scores 1.
func (l *Learner) scoreByPrecision(ctx context.Context, invariants []language.Formula, negatives []*grammars.Tree) ([]ScoredInvariant, error) {
	result := make([]ScoredInvariant, len(invariants))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(l.opts.Workers)
	for i, invariant := range invariants {
		i, invariant := i, invariant
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			truePositives := 0
			for _, negative := range negatives {
				if language.Evaluate(invariant, negative, l.opts.Grammar).IsTrue() {
					truePositives++
				}
			}
			precision := 1.0
			if len(negatives) > 0 {
				precision = 1 - float64(truePositives)/float64(len(negatives))
			}
			result[i] = ScoredInvariant{Invariant: invariant, Precision: precision}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

func holdsOnAll(candidate language.Formula, examples []*grammars.Tree, grammar grammars.Grammar) bool {
	for _, example := range examples {
		if !language.Evaluate(candidate, example, grammar).IsTrue() {
			return false
		}
	}
	return true
}

func appendUnique(pool []*grammars.Tree, inp *grammars.Tree) []*grammars.Tree {
	for _, existing := range pool {
		if existing.Hash() == inp.Hash() && existing.Equal(inp) {
			return pool
		}
	}
	return append(pool, inp)
}
