package solver

import (
	"sort"

	"github.com/gridctl/gridctl/internal/domain"
)

// GreedySolver is the deterministic fallback named in spec.md §4.3: sort
// sources by cost_per_amp ascending and fill consumers largest demand first
// (equal demands by ascending id), respecting capacity and ramp. Each
// consumer goes to the cheapest source with room for its whole demand; only
// when no source has that room does it take a partial amount from the
// cheapest source with any room left. Used directly when the primary solver has
// no usable incumbent, and as the reference implementation tests compare
// against for reproducibility.
type GreedySolver struct{}

// Solve never fails and never blocks — it is the guaranteed-fast path.
func (GreedySolver) Solve(state State) Allocation {
	alloc := newAllocation()

	sources := sortedSources(state.Sources)
	used := make(map[domain.SourceID]float64, len(sources))
	available := make(map[domain.SourceID]float64, len(sources))
	for _, s := range sources {
		prev := state.PrevTotals[s.SourceID]
		available[s.SourceID] = availableCapacity(s, prev)
		alloc.SourceTotals[s.SourceID] = 0
	}

	consumers := sortedConsumers(state.Consumers)
	sort.SliceStable(consumers, func(i, j int) bool { return consumers[i].Demand > consumers[j].Demand })

	for _, c := range consumers {
		remaining := c.Demand
		whole := -1
		for i, s := range sources {
			if available[s.SourceID]-used[s.SourceID] >= remaining-1e-9 {
				whole = i
				break
			}
		}
		for i, s := range sources {
			if whole >= 0 && i != whole {
				continue
			}
			room := available[s.SourceID] - used[s.SourceID]
			if room <= 1e-9 {
				continue
			}
			amt := remaining
			if amt > room {
				amt = room
			}
			if amt <= 0 {
				continue
			}
			used[s.SourceID] += amt
			alloc.Assigned[c.NodeID] = s.SourceID
			alloc.Amps[c.NodeID] = amt
			remaining -= amt
			break // one source per node — DispatchFrame cannot split a node across sources
		}
		if remaining > 1e-9 {
			alloc.Unmet[c.NodeID] = remaining
		}
	}

	for s, amt := range used {
		alloc.SourceTotals[s] = amt
	}
	return alloc
}
