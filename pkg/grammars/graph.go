package grammars

import "sort"

// Graph is the nonterminal-derivation graph of a grammar: an edge
// A -> B exists when some alternative of A mentions B. It answers the
// reachability, path, and k-path queries the learner core consumes.
// A Graph is immutable after construction and safe for concurrent use.
type Graph struct {
	grammar Grammar
	edges   map[string][]string

	// reach[A] is the set of nonterminals reachable from A in one or
	// more derivation steps. Precomputed; reach[A][A] holds only for
	// recursive nonterminals.
	reach map[string]map[string]bool
}

// NewGraph builds the derivation graph of a grammar.
func NewGraph(g Grammar) *Graph {
	edges := make(map[string][]string, len(g))
	for nt, alternatives := range g {
		seen := map[string]bool{}
		var succ []string
		for _, alt := range alternatives {
			for _, symbol := range alt {
				if IsNonterminal(symbol) && !seen[symbol] {
					seen[symbol] = true
					succ = append(succ, symbol)
				}
			}
		}
		sort.Strings(succ)
		edges[nt] = succ
	}

	reach := make(map[string]map[string]bool, len(g))
	for nt := range g {
		reach[nt] = reachableFrom(nt, edges)
	}

	return &Graph{grammar: g, edges: edges, reach: reach}
}

func reachableFrom(start string, edges map[string][]string) map[string]bool {
	result := map[string]bool{}
	stack := append([]string(nil), edges[start]...)
	for len(stack) > 0 {
		nt := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if result[nt] {
			continue
		}
		result[nt] = true
		stack = append(stack, edges[nt]...)
	}
	return result
}

// Grammar returns the underlying grammar.
func (gr *Graph) Grammar() Grammar {
	return gr.grammar
}

// Successors returns the direct derivation successors of a nonterminal.
func (gr *Graph) Successors(nt string) []string {
	return gr.edges[nt]
}

// Reachable reports whether to can be derived from from in one or more
// steps. Reachable(A, A) holds only when A is recursive. Unknown
// symbols are reachable from nothing.
func (gr *Graph) Reachable(from, to string) bool {
	return gr.reach[from][to]
}

// PathsBetween enumerates the derivation paths from from to to,
// including both endpoints. maxCycles bounds how often any nonterminal
// may be revisited along one path; zero yields only simple paths. The
// result is empty when to is unreachable, and paths always contain at
// least one edge.
func (gr *Graph) PathsBetween(from, to string, maxCycles int) [][]string {
	var result [][]string
	visits := map[string]int{from: 1}
	var extend func(path []string)
	extend = func(path []string) {
		last := path[len(path)-1]
		for _, succ := range gr.edges[last] {
			if succ == to {
				found := make([]string, len(path)+1)
				copy(found, path)
				found[len(path)] = to
				result = append(result, found)
				continue
			}
			if visits[succ] > maxCycles {
				continue
			}
			visits[succ]++
			extend(append(path, succ))
			visits[succ]--
		}
	}
	extend([]string{from})
	return result
}

// KPaths returns every length-k sequence of nonterminals the grammar
// admits along derivation chains. Sequences are encoded as joined
// symbol strings for cheap set arithmetic.
func (gr *Graph) KPaths(k int) map[string]bool {
	result := map[string]bool{}
	if k <= 0 {
		return result
	}
	for nt := range gr.grammar {
		gr.kPathsFrom([]string{nt}, k, result)
	}
	return result
}

func (gr *Graph) kPathsFrom(path []string, k int, into map[string]bool) {
	if len(path) == k {
		into[joinPath(path)] = true
		return
	}
	for _, succ := range gr.edges[path[len(path)-1]] {
		gr.kPathsFrom(append(path, succ), k, into)
	}
}

// KPathsInTree returns the length-k nonterminal sequences realized
// along root-to-leaf paths of a derivation tree, in the same encoding
// as KPaths.
func (gr *Graph) KPathsInTree(tree *Tree, k int) map[string]bool {
	result := map[string]bool{}
	if k <= 0 {
		return result
	}
	var descend func(node *Tree, chain []string)
	descend = func(node *Tree, chain []string) {
		if IsNonterminal(node.Value) {
			chain = append(chain, node.Value)
			if len(chain) >= k {
				result[joinPath(chain[len(chain)-k:])] = true
			}
		}
		for _, child := range node.Children {
			descend(child, chain)
		}
	}
	descend(tree, nil)
	return result
}

func joinPath(path []string) string {
	total := 0
	for _, p := range path {
		total += len(p)
	}
	b := make([]byte, 0, total)
	for _, p := range path {
		b = append(b, p...)
	}
	return string(b)
}
