// Package solver computes a cost-minimizing assignment of supply sources
// to consumer nodes under capacity and ramp constraints, normalizing the
// result to a DispatchFrame.
//
// Because a DispatchFrame can carry only one source per node (the wire
// format has a single source_id field per node record, §4.1), every
// implementation here treats the optional "one-source-per-node" MILP
// constraint as mandatory: a consumer is served by exactly one source, or
// left partially/fully unmet.
package solver

import (
	"sort"

	"github.com/gridctl/gridctl/internal/domain"
)

// ConsumerDemand is one consumer node's forecast demand at horizon h=1.
type ConsumerDemand struct {
	NodeID domain.NodeID
	Demand float64
}

// State is the solver's complete input for one tick.
type State struct {
	Consumers  []ConsumerDemand
	Sources    []domain.SourceSpec
	PrevTotals map[domain.SourceID]float64 // previous tick's per-source output totals
}

// Allocation is the solver's output: which source (if any) serves each
// consumer, how many amps, per-source totals, and unmet demand.
type Allocation struct {
	Assigned     map[domain.NodeID]domain.SourceID
	Amps         map[domain.NodeID]float64
	Unmet        map[domain.NodeID]float64
	SourceTotals map[domain.SourceID]float64
}

func newAllocation() Allocation {
	return Allocation{
		Assigned:     make(map[domain.NodeID]domain.SourceID),
		Amps:         make(map[domain.NodeID]float64),
		Unmet:        make(map[domain.NodeID]float64),
		SourceTotals: make(map[domain.SourceID]float64),
	}
}

// TotalUnmet sums unmet demand across all consumers.
func (a Allocation) TotalUnmet() float64 {
	var sum float64
	for _, v := range a.Unmet {
		sum += v
	}
	return sum
}

// TotalAllocated sums delivered amps across all consumers.
func (a Allocation) TotalAllocated() float64 {
	var sum float64
	for _, v := range a.Amps {
		sum += v
	}
	return sum
}

// Cost computes Σ cost[s]·x[s,n] over the allocation, given the source
// table (for cost_per_amp lookup).
func (a Allocation) Cost(sources []domain.SourceSpec) float64 {
	costBySource := make(map[domain.SourceID]float64, len(sources))
	for _, s := range sources {
		costBySource[s.SourceID] = s.CostPerAmp
	}
	var total float64
	for node, amps := range a.Amps {
		src := a.Assigned[node]
		total += amps * costBySource[src]
	}
	return total
}

// sortedConsumers returns consumers in ascending NodeID order — Design
// Notes §9: iterate deterministically by ascending id to stabilize
// tie-breaks.
func sortedConsumers(consumers []ConsumerDemand) []ConsumerDemand {
	out := make([]ConsumerDemand, len(consumers))
	copy(out, consumers)
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out
}

// sortedSources orders sources for greedy/tie-break selection: cheapest
// cost_per_amp first; among equal cost, green sources before non-green;
// any remaining tie resolved by ascending source_id.
func sortedSources(sources []domain.SourceSpec) []domain.SourceSpec {
	out := make([]domain.SourceSpec, len(sources))
	copy(out, sources)
	sort.Slice(out, func(i, j int) bool {
		if out[i].CostPerAmp != out[j].CostPerAmp {
			return out[i].CostPerAmp < out[j].CostPerAmp
		}
		if out[i].Green != out[j].Green {
			return out[i].Green // green sorts first
		}
		return out[i].SourceID < out[j].SourceID
	})
	return out
}

// availableCapacity returns the ramp- and capacity-bounded ceiling on a
// source's total output this tick: min(max_capacity, prev_total + ramp),
// clamped to be non-negative.
func availableCapacity(spec domain.SourceSpec, prevTotal float64) float64 {
	ceiling := spec.MaxCapacity
	rampCeil := prevTotal + spec.RampLimit
	if rampCeil < ceiling {
		ceiling = rampCeil
	}
	if ceiling < 0 {
		ceiling = 0
	}
	return ceiling
}
