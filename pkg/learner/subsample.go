package learner

import (
	"sort"

	"github.com/smythi93/islearn/pkg/grammars"
)

// FilterByKPaths reduces an example pool to at most maxCnt trees
// chosen greedily for k-path coverage. Duplicate trees are merged
// first; a pool already within the cap is returned unchanged. With
// preferSmall set, each round picks the smallest tree still covering
// an uncovered path; otherwise the tree covering the most uncovered
// paths wins, smaller trees breaking ties.
func FilterByKPaths(inputs []*grammars.Tree, graph *grammars.Graph, maxCnt, k int, preferSmall bool) []*grammars.Tree {
	pool := dedupTrees(inputs)
	if len(pool) <= maxCnt {
		return pool
	}

	treePaths := make([]map[string]bool, len(pool))
	for i, inp := range pool {
		treePaths[i] = graph.KPathsInTree(inp, k)
	}
	totalPaths := len(graph.KPaths(k))

	covered := map[string]bool{}
	remaining := make([]int, len(pool))
	for i := range pool {
		remaining[i] = i
	}

	uncovered := func(idx int) int {
		cnt := 0
		for path := range treePaths[idx] {
			if !covered[path] {
				cnt++
			}
		}
		return cnt
	}

	var result []*grammars.Tree
	for len(remaining) > 0 && len(result) < maxCnt && len(covered) < totalPaths {
		pick := -1
		if preferSmall {
			ordered := make([]int, len(remaining))
			copy(ordered, remaining)
			sort.Slice(ordered, func(a, b int) bool {
				return pool[ordered[a]].Size() < pool[ordered[b]].Size()
			})
			for _, idx := range ordered {
				if uncovered(idx) > 0 {
					pick = idx
					break
				}
			}
			if pick < 0 {
				break
			}
		} else {
			best := -1
			for _, idx := range remaining {
				cnt := uncovered(idx)
				if best < 0 || cnt > uncovered(best) ||
					(cnt == uncovered(best) && pool[idx].Size() < pool[best].Size()) {
					best = idx
				}
			}
			pick = best
		}

		for path := range treePaths[pick] {
			covered[path] = true
		}
		result = append(result, pool[pick])
		remaining = removeIndex(remaining, pick)
	}
	return result
}

func dedupTrees(inputs []*grammars.Tree) []*grammars.Tree {
	seen := map[uint64][]*grammars.Tree{}
	var result []*grammars.Tree
outer:
	for _, inp := range inputs {
		h := inp.Hash()
		for _, prev := range seen[h] {
			if prev.Equal(inp) {
				continue outer
			}
		}
		seen[h] = append(seen[h], inp)
		result = append(result, inp)
	}
	return result
}

func removeIndex(indices []int, value int) []int {
	for i, idx := range indices {
		if idx == value {
			return append(indices[:i], indices[i+1:]...)
		}
	}
	return indices
}
