package domain

// SourceID identifies a supply source as enumerated at startup.
type SourceID uint8

// DispatchEntry is one commanded supply level for a consumer node.
type DispatchEntry struct {
	NodeID   NodeID
	Supply   float64 // normalized PWM level, [0.0, 1.0]
	SourceID SourceID
}

// DispatchFrame is one command set sent to the hardware endpoint.
//
// Invariants: each NodeID appears at most once; every NodeID refers to a
// consumer node known from recent telemetry.
type DispatchFrame struct {
	Entries []DispatchEntry
}
