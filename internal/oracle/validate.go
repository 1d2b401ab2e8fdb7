package oracle

import (
	"math"

	"github.com/gridctl/gridctl/internal/domain"
	"github.com/gridctl/gridctl/internal/solver"
)

// Validate re-checks an oracle-proposed allocation against the same
// capacity and ramp constraints the solver itself must satisfy, per
// spec.md §4.5: "A returned allocation is subject to the same constraints
// as solver output and is rejected if it violates capacity or ramp."
func Validate(alloc solver.Allocation, sources []domain.SourceSpec, prevTotals map[domain.SourceID]float64) error {
	bySource := make(map[domain.SourceID]domain.SourceSpec, len(sources))
	for _, s := range sources {
		bySource[s.SourceID] = s
	}

	for id, total := range alloc.SourceTotals {
		spec, known := bySource[id]
		if !known {
			return domain.ErrOracleInvalidOverride
		}
		if total > spec.MaxCapacity+1e-6 {
			return domain.ErrOracleInvalidOverride
		}
		delta := math.Abs(total - prevTotals[id])
		if delta > spec.RampLimit+1e-6 {
			return domain.ErrOracleInvalidOverride
		}
	}
	return nil
}
