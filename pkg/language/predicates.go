package language

import "github.com/smythi93/islearn/pkg/grammars"

// StructuralPredicate is a purely syntactic predicate over node
// positions in a derivation tree. Apply receives the paths the
// predicate's arguments were bound to, in argument order.
type StructuralPredicate struct {
	PredName string
	Arity    int
	Apply    func(root *grammars.Tree, paths []grammars.Path) bool
}

func (p *StructuralPredicate) Name() string { return p.PredName }

// SemanticPredicate is a predicate that requires evaluation against the
// tree beyond pure position arithmetic, e.g. counting occurrences of a
// nonterminal. Evaluation is part of the formula evaluator.
type SemanticPredicate struct {
	PredName string
	Arity    int
}

func (p *SemanticPredicate) Name() string { return p.PredName }

// Before holds when the first argument occurs strictly before the
// second in document order and is not an ancestor of it.
var Before = &StructuralPredicate{
	PredName: "before",
	Arity:    2,
	Apply: func(_ *grammars.Tree, paths []grammars.Path) bool {
		return paths[0].Less(paths[1]) && !paths[0].IsPrefixOf(paths[1])
	},
}

// After is the mirror image of Before.
var After = &StructuralPredicate{
	PredName: "after",
	Arity:    2,
	Apply: func(_ *grammars.Tree, paths []grammars.Path) bool {
		return paths[1].Less(paths[0]) && !paths[1].IsPrefixOf(paths[0])
	},
}

// Within holds when the first argument lies inside the subtree of the
// second (a proper descendant).
var Within = &StructuralPredicate{
	PredName: "within",
	Arity:    2,
	Apply: func(_ *grammars.Tree, paths []grammars.Path) bool {
		return paths[1].IsPrefixOf(paths[0]) && len(paths[1]) < len(paths[0])
	},
}

// SamePosition holds when both arguments address the same node.
var SamePosition = &StructuralPredicate{
	PredName: "same_position",
	Arity:    2,
	Apply: func(_ *grammars.Tree, paths []grammars.Path) bool {
		return paths[0].Equal(paths[1])
	},
}

// Count is the counting semantic predicate count(elem, nonterminal,
// num): the number of nonterminal-typed nodes within elem's subtree
// equals the numeric binding of num.
var Count = &SemanticPredicate{PredName: "count", Arity: 3}

// StructuralPredicateByName resolves the built-in structural predicates
// used by the pattern catalog.
func StructuralPredicateByName(name string) (*StructuralPredicate, bool) {
	switch name {
	case Before.PredName:
		return Before, true
	case After.PredName:
		return After, true
	case Within.PredName:
		return Within, true
	case SamePosition.PredName:
		return SamePosition, true
	}
	return nil, false
}

// SemanticPredicateByName resolves the built-in semantic predicates.
func SemanticPredicateByName(name string) (*SemanticPredicate, bool) {
	if name == Count.PredName {
		return Count, true
	}
	return nil, false
}
