package domain

// NodeReading is one node's state as published in a Snapshot.
type NodeReading struct {
	ID          NodeID  `json:"id"`
	Type        Role    `json:"type"`
	Demand      float64 `json:"demand"`
	Fulfillment float64 `json:"fulfillment"`
}

// SourceUsage is one source's per-tick utilization, as published in a
// Snapshot's source_usage map.
type SourceUsage struct {
	Amps        float64 `json:"amps"`
	Cost        float64 `json:"cost"`
	CostPerAmp  float64 `json:"cost_per_amp"`
	MaxCapacity float64 `json:"max_capacity"`
}

// DispatchDetail is one commanded allocation, mirrored into the Snapshot
// for observer convenience (the wire-format DispatchFrame is what actually
// goes to the endpoint).
type DispatchDetail struct {
	ID         NodeID   `json:"id"`
	SupplyAmps float64  `json:"supply_amps"`
	SourceID   SourceID `json:"source_id"`
}

// Economic aggregates cost and efficiency figures for one tick.
type Economic struct {
	TotalCost          float64            `json:"total_cost"`           // cumulative across the run
	CostPerSecond      float64            `json:"cost_per_second"`      // instantaneous, this tick
	CostPerAmp         float64            `json:"cost_per_amp"`         // blended, this tick
	TotalDemand        float64            `json:"total_demand"`
	TotalSupply        float64            `json:"total_supply"`
	UnmetDemand        float64            `json:"unmet_demand"`
	EfficiencyPercent  float64            `json:"efficiency_percent"`   // 0..100
	GreenEnergyPercent float64            `json:"green_energy_percent"` // 0..100
	SourceUsage        map[SourceID]SourceUsage `json:"source_usage"`
}

// Snapshot is the publishable aggregated state for one tick. Immutable
// once published — the tick loop must build a fresh value each tick, never
// mutate a previously published one.
type Snapshot struct {
	TimestampMs       uint32           `json:"timestamp_ms"`
	Nodes             []NodeReading    `json:"nodes"`
	OptimizationTimeMs float64         `json:"optimization_time_ms"`
	ConfidenceScore   float64          `json:"confidence_score"`
	DispatchCount     uint64           `json:"dispatch_count"`
	Economic          Economic         `json:"economic"`
	DispatchDetails   []DispatchDetail `json:"dispatch_details"`
	LinkDown          bool             `json:"link_down"`
	UsedFallback      bool             `json:"used_fallback"`
	Escalating        bool             `json:"escalating"`
}
