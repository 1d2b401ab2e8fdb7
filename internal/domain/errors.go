package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// Wire codec errors (§4.1)
	ErrBadMagic         = errors.New("frame prefix does not match expected magic")
	ErrTruncatedFrame   = errors.New("remaining bytes insufficient for declared node count")
	ErrTooManyNodes     = errors.New("node count exceeds MaxNodesPerFrame")
	ErrOutOfRangeSupply = errors.New("decoded supply outside [0, 1]")

	// Solver errors (§4.3)
	ErrInfeasible    = errors.New("dispatch is structurally infeasible")
	ErrBudgetExceeded = errors.New("solver exceeded its wall-clock budget")

	// Endpoint link errors (§4.7)
	ErrLinkDown = errors.New("endpoint link is disconnected")

	// Oracle errors (§4.5)
	ErrOracleTimeout        = errors.New("oracle did not respond within the deadline")
	ErrOracleBusy           = errors.New("oracle already has an outstanding request")
	ErrOracleInvalidOverride = errors.New("oracle override violates capacity or ramp constraints")

	// Configuration errors (§7) — fatal at startup
	ErrZeroCapacity    = errors.New("source has zero or negative max_capacity")
	ErrNegativeRamp    = errors.New("source has negative ramp_limit")
	ErrDuplicateSource = errors.New("duplicate source_id in source table")
	ErrNoSources       = errors.New("no sources configured")
	ErrDuplicateNode   = errors.New("duplicate node_id in node table")
	ErrZeroNominal     = errors.New("node has zero or negative nominal_current")

	// Snapshot read errors (§6)
	ErrSnapshotNotReady = errors.New("no tick has completed yet")
)
