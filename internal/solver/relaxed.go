package solver

import (
	"math"
	"time"

	"github.com/gridctl/gridctl/internal/domain"
)

// RelaxedMILPSolver approximates the MILP described in spec.md §4.3 with an
// LP-relaxation-style local search: start from the greedy assignment, then
// repeatedly look for a single-consumer reassignment that reduces total
// cost without violating any source's ramp/capacity ceiling, stopping at
// convergence or at the wall-clock deadline.
//
// No MILP library is grounded anywhere in the reference corpus, so this
// stands in for "a production build may link an MILP library" (Design
// Notes §9) behind the same Solver contract.
type RelaxedMILPSolver struct {
	// MaxPasses bounds iterations defensively; real convergence is almost
	// always reached in 2-3 passes for source/consumer counts in the
	// dozens. Zero means DefaultMaxPasses.
	MaxPasses int
}

// DefaultMaxPasses is a generous bound — the deadline, not this counter,
// is the real stopping condition under load.
const DefaultMaxPasses = 50

// Solve returns its best incumbent and domain.ErrBudgetExceeded if the
// deadline passes before local search converges. The incumbent is always
// populated (seeded from the greedy solution) and safe to use either way.
func (r RelaxedMILPSolver) Solve(state State, deadline time.Time) (Allocation, error) {
	alloc := GreedySolver{}.Solve(state)

	sources := sortedSources(state.Sources)
	available := make(map[domain.SourceID]float64, len(sources))
	costOf := make(map[domain.SourceID]float64, len(sources))
	for _, s := range sources {
		available[s.SourceID] = availableCapacity(s, state.PrevTotals[s.SourceID])
		costOf[s.SourceID] = s.CostPerAmp
	}

	used := make(map[domain.SourceID]float64, len(sources))
	for s, amt := range alloc.SourceTotals {
		used[s] = amt
	}

	maxPasses := r.MaxPasses
	if maxPasses <= 0 {
		maxPasses = DefaultMaxPasses
	}

	consumers := sortedConsumers(state.Consumers)

	for pass := 0; pass < maxPasses; pass++ {
		if !deadline.IsZero() && time.Now().After(deadline) {
			for s := range alloc.SourceTotals {
				alloc.SourceTotals[s] = used[s]
			}
			return alloc, domain.ErrBudgetExceeded
		}

		improved := false
		for _, c := range consumers {
			amt := alloc.Amps[c.NodeID]
			curSource, assigned := alloc.Assigned[c.NodeID]
			curCost := math.MaxFloat64
			if assigned {
				curCost = costOf[curSource]
			}

			// A reassignment is only worth taking if it serves strictly
			// more demand (closing the unmet gap ranks above cost, since
			// the MILP's slack variables are penalized far above any
			// cost_per_amp difference), or serves the same amount at a
			// strictly lower cost.
			bestSource, bestAmt, bestCost := curSource, amt, curCost
			found := false

			for _, s := range sources {
				if assigned && s.SourceID == curSource {
					continue
				}
				room := available[s.SourceID] - used[s.SourceID]
				if room <= 1e-9 {
					continue
				}
				candidate := c.Demand
				if candidate > room {
					candidate = room
				}
				if candidate <= 1e-9 {
					continue
				}
				betterCoverage := candidate > bestAmt+1e-9
				sameCoverageCheaper := candidate >= bestAmt-1e-9 && costOf[s.SourceID] < bestCost-1e-9
				if betterCoverage || sameCoverageCheaper {
					bestSource, bestAmt, bestCost = s.SourceID, candidate, costOf[s.SourceID]
					found = true
				}
			}

			if !found {
				continue
			}
			if assigned {
				used[curSource] -= amt
			}
			used[bestSource] += bestAmt
			alloc.Assigned[c.NodeID] = bestSource
			alloc.Amps[c.NodeID] = bestAmt
			if bestAmt < c.Demand-1e-9 {
				alloc.Unmet[c.NodeID] = c.Demand - bestAmt
			} else {
				delete(alloc.Unmet, c.NodeID)
			}
			improved = true
		}
		if !improved {
			break
		}
	}

	for s := range alloc.SourceTotals {
		alloc.SourceTotals[s] = used[s]
	}
	return alloc, nil
}
