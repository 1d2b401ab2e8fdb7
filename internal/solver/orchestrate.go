package solver

import "time"

// Primary is the solver the tick loop tries first each tick, ahead of the
// deterministic greedy fallback. RelaxedMILPSolver satisfies it.
type Primary interface {
	Solve(state State, deadline time.Time) (Allocation, error)
}

// Outcome carries the allocation plus the bookkeeping the confidence gate
// and snapshot need: whether the fallback path was taken and how long the
// solve actually took.
type Outcome struct {
	Allocation   Allocation
	UsedFallback bool
	ElapsedMs    float64
}

// Dispatch runs the primary solver within budgetMs of wall-clock time. Any
// incumbent the primary returns — whether it finished cleanly or hit
// ErrBudgetExceeded along the way — is used as-is; the deterministic
// greedy solver only runs as a fallback when the primary produced no
// incumbent at all. This mirrors spec.md §4.3's failure mode: "On budget
// exceeded, the solver returns its best incumbent if any, else a greedy
// fallback."
func Dispatch(primary Primary, state State, budgetMs int) Outcome {
	start := time.Now()
	deadline := start.Add(time.Duration(budgetMs) * time.Millisecond)

	// err is deliberately not used to decide fallback: ErrBudgetExceeded
	// still returns a usable incumbent (relaxed.go), so only the shape of
	// alloc itself — not the error — determines whether greedy is needed.
	alloc, _ := primary.Solve(state, deadline)
	elapsed := time.Since(start)

	usedFallback := false
	if !hasIncumbent(alloc, state) {
		alloc = GreedySolver{}.Solve(state)
		usedFallback = true
	}

	return Outcome{
		Allocation:   alloc,
		UsedFallback: usedFallback,
		ElapsedMs:    float64(elapsed.Microseconds()) / 1000.0,
	}
}

// hasIncumbent reports whether alloc looks like a real solve rather than a
// zero-value Allocation — every consumer must at least appear in either
// Amps or Unmet.
func hasIncumbent(alloc Allocation, state State) bool {
	if alloc.Assigned == nil && alloc.Unmet == nil {
		return false
	}
	for _, c := range state.Consumers {
		_, served := alloc.Amps[c.NodeID]
		_, unmet := alloc.Unmet[c.NodeID]
		if !served && !unmet {
			return false
		}
	}
	return true
}
