package graph

import "sort"

func (g *Graph) UnresolvedReasonCounts() map[UnresolvedReason]int {
	counts := make(map[UnresolvedReason]int)
	if g == nil {
		return counts
	}
	for _, u := range g.Unresolved {
		reason := u.Reason
		if reason == "" {
			reason = ReasonNoCandidate
		}
		counts[reason]++
	}
	return counts
}

// MostImported returns up to n module IDs ordered by number of dependents,
// ties broken by ID.
func (g *Graph) MostImported(n int) []string {
	counts := make(map[string]int)
	for id := range g.Nodes {
		counts[id] = len(g.GetDependents(id))
	}
	ids := make([]string, 0, len(counts))
	for id, c := range counts {
		if c > 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		if counts[ids[i]] == counts[ids[j]] {
			return ids[i] < ids[j]
		}
		return counts[ids[i]] > counts[ids[j]]
	})
	if n > 0 && len(ids) > n {
		ids = ids[:n]
	}
	return ids
}
