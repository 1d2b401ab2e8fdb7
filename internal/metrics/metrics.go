// Package metrics exposes the Prometheus counters and gauges that back
// the /metrics observer endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Tick Metrics ───────────────────────────────────────────────────────────

// TickDuration tracks end-to-end tick latency.
var TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "gridctl",
	Subsystem: "tick",
	Name:      "duration_ms",
	Help:      "End-to-end tick loop latency in milliseconds.",
	Buckets:   []float64{1, 2, 5, 10, 15, 20, 25, 35, 50, 75, 100},
})

// TicksTotal counts completed ticks.
var TicksTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "gridctl",
	Subsystem: "tick",
	Name:      "total",
	Help:      "Total ticks completed.",
})

// ─── Solver Metrics ─────────────────────────────────────────────────────────

// SolveDuration tracks solver wall-clock time.
var SolveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "gridctl",
	Subsystem: "solver",
	Name:      "duration_ms",
	Help:      "Dispatch solver wall-clock time in milliseconds.",
	Buckets:   []float64{1, 2, 5, 10, 15, 20, 25, 30, 50},
})

// FallbacksTotal counts ticks where the greedy fallback was used.
var FallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "gridctl",
	Subsystem: "solver",
	Name:      "fallbacks_total",
	Help:      "Total ticks where the deterministic greedy fallback was used.",
})

// UnmetDemandAmps tracks the most recent tick's total unmet demand.
var UnmetDemandAmps = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "gridctl",
	Subsystem: "solver",
	Name:      "unmet_demand_amps",
	Help:      "Total unmet demand in amps for the most recent tick.",
})

// ─── Confidence / Escalation Metrics ────────────────────────────────────────

// ConfidenceScore tracks the most recent tick's confidence score.
var ConfidenceScore = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "gridctl",
	Subsystem: "confidence",
	Name:      "score",
	Help:      "Most recent tick's confidence score in [0, 1].",
})

// EscalationsTotal counts ticks that escalated to the oracle.
var EscalationsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "gridctl",
	Subsystem: "confidence",
	Name:      "escalations_total",
	Help:      "Total ticks marked escalating.",
})

// ─── Oracle Metrics ─────────────────────────────────────────────────────────

// OracleTimeoutsTotal counts oracle requests that did not respond in time.
var OracleTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "gridctl",
	Subsystem: "oracle",
	Name:      "timeouts_total",
	Help:      "Total oracle requests that exceeded their deadline.",
})

// OracleOverridesAppliedTotal counts ticks where a validated oracle
// override replaced the solver's dispatch.
var OracleOverridesAppliedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "gridctl",
	Subsystem: "oracle",
	Name:      "overrides_applied_total",
	Help:      "Total ticks where a validated oracle override was applied.",
})

// OracleInvalidOverridesTotal counts oracle responses rejected by
// constraint revalidation.
var OracleInvalidOverridesTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "gridctl",
	Subsystem: "oracle",
	Name:      "invalid_overrides_total",
	Help:      "Total oracle responses rejected for violating capacity or ramp.",
})

// ─── Endpoint Link Metrics ──────────────────────────────────────────────────

// BadFramesTotal counts dropped malformed frames.
var BadFramesTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "gridctl",
	Subsystem: "endpoint",
	Name:      "bad_frames_total",
	Help:      "Total malformed frames dropped by the endpoint link reader.",
})

// ReconnectsTotal counts successful endpoint link connections, the first
// one included; failed dial attempts are not counted.
var ReconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "gridctl",
	Subsystem: "endpoint",
	Name:      "reconnects_total",
	Help:      "Total successful endpoint link connections.",
})

// LinkDown reports whether the endpoint link is currently disconnected.
var LinkDown = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "gridctl",
	Subsystem: "endpoint",
	Name:      "link_down",
	Help:      "Whether the endpoint link is currently disconnected (1) or not (0).",
})
