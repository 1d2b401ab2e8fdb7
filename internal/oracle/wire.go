package oracle

import (
	"github.com/gridctl/gridctl/internal/domain"
	"github.com/gridctl/gridctl/internal/solver"
)

// wireSnapshot, wireSourceSpec, and wireAllocation are JSON-friendly
// mirrors of the domain/solver types, decoupling the oracle's wire
// contract from internal field layout changes.
type wireSnapshot struct {
	TimestampMs uint32          `json:"timestamp_ms"`
	Economic    domain.Economic `json:"economic"`
}

type wireSourceSpec struct {
	SourceID    domain.SourceID `json:"source_id"`
	MaxCapacity float64         `json:"max_capacity"`
	RampLimit   float64         `json:"ramp_limit"`
	CostPerAmp  float64         `json:"cost_per_amp"`
	Green       bool            `json:"green"`
}

type wireAllocation struct {
	Amps   map[domain.NodeID]float64         `json:"amps"`
	Source map[domain.NodeID]domain.SourceID `json:"source_id"`
	Unmet  map[domain.NodeID]float64         `json:"unmet"`
}

func toWireRequest(req Request) wireRequest {
	snapshots := make([]wireSnapshot, len(req.Snapshots))
	for i, s := range req.Snapshots {
		snapshots[i] = wireSnapshot{TimestampMs: s.TimestampMs, Economic: s.Economic}
	}

	sources := make([]wireSourceSpec, len(req.Sources))
	for i, s := range req.Sources {
		sources[i] = wireSourceSpec{
			SourceID:    s.SourceID,
			MaxCapacity: s.MaxCapacity,
			RampLimit:   s.RampLimit,
			CostPerAmp:  s.CostPerAmp,
			Green:       s.Green,
		}
	}

	return wireRequest{
		RequestID:          req.ID,
		Snapshots:          snapshots,
		Sources:            sources,
		RejectedAllocation: toWireAllocation(req.RejectedAllocation),
	}
}

func toWireAllocation(a solver.Allocation) wireAllocation {
	return wireAllocation{Amps: a.Amps, Source: a.Assigned, Unmet: a.Unmet}
}

func fromWireResponse(wr wireResponse) Response {
	return Response{
		RequestID: wr.RequestID,
		OK:        wr.OK,
		Allocation: solver.Allocation{
			Assigned:     wr.Allocation.Source,
			Amps:         wr.Allocation.Amps,
			Unmet:        wr.Allocation.Unmet,
			SourceTotals: sourceTotalsFrom(wr.Allocation.Amps, wr.Allocation.Source),
		},
	}
}

func sourceTotalsFrom(amps map[domain.NodeID]float64, assigned map[domain.NodeID]domain.SourceID) map[domain.SourceID]float64 {
	totals := make(map[domain.SourceID]float64, len(assigned))
	for node, src := range assigned {
		totals[src] += amps[node]
	}
	return totals
}
