// Package tickloop drives the controller's 8-step per-tick pipeline from
// spec.md §4.6 at a fixed cadence: consume telemetry, update history,
// forecast, solve, gate confidence, escalate or apply an oracle override,
// dispatch, and publish a snapshot.
package tickloop

import (
	"log"
	"sort"
	"time"

	"github.com/gridctl/gridctl/internal/audit"
	"github.com/gridctl/gridctl/internal/broadcast"
	"github.com/gridctl/gridctl/internal/confidence"
	"github.com/gridctl/gridctl/internal/domain"
	"github.com/gridctl/gridctl/internal/endpoint"
	"github.com/gridctl/gridctl/internal/forecast"
	"github.com/gridctl/gridctl/internal/metrics"
	"github.com/gridctl/gridctl/internal/oracle"
	"github.com/gridctl/gridctl/internal/solver"
)

// snapshotBacklog is N from spec.md §4.5: the number of recent snapshots
// handed to the oracle as escalation context.
const snapshotBacklog = 10

// maxExpectedVariance bounds the confidence gate's variance normalization;
// chosen so a freshly-unseen node's flat-fill forecast (zero variance)
// reads as fully confident and a node oscillating by roughly its own mean
// reads as maximally uncertain.
const maxExpectedVariance = 4.0

// Config bundles the cadence and budget knobs the loop needs, plus the
// per-node nominal-current table, all sourced from config.Config.
type Config struct {
	TickMs        int
	SolveBudgetMs int
	StaleMs       int
	HistoryH      int
	FourierK      int
	MinSamples    int
	FourierPeriod int

	// NominalByNode is per_node_nominal[n] from spec.md §4.3: each node's
	// fixed, startup-configured rated current, used to normalize that
	// node's allocated amps into the dispatch frame's [0,1] PWM level.
	NominalByNode map[domain.NodeID]float64
}

// Loop is the sole mutator of History, the per-tick dispatch count, and
// the near-capacity streak. It is not safe for concurrent use — exactly
// one goroutine must call Run.
type Loop struct {
	cfg     Config
	sources []domain.SourceSpec

	link        *endpoint.Link
	forecaster  *forecast.Forecaster
	primary     solver.Primary
	oracleClient *oracle.Client
	broadcaster *broadcast.Broadcaster
	audit       *audit.DB

	histories  map[domain.NodeID]*domain.History
	roles      map[domain.NodeID]domain.Role
	lastSeenMs map[domain.NodeID]uint32
	prevTotals map[domain.SourceID]float64
	streak     map[domain.SourceID]int

	dispatchCount  uint64
	cumulativeCost float64
	recentSnaps    []domain.Snapshot
}

// Deps bundles the collaborating components a Loop is built from.
type Deps struct {
	Link        *endpoint.Link
	Primary     solver.Primary
	OracleClient *oracle.Client
	Broadcaster *broadcast.Broadcaster
	Audit       *audit.DB
}

// New constructs a Loop over the given sources and collaborators.
func New(cfg Config, sources []domain.SourceSpec, deps Deps) *Loop {
	return &Loop{
		cfg:          cfg,
		sources:      sources,
		link:         deps.Link,
		forecaster:   forecast.New(forecast.Config{MinSamples: cfg.MinSamples, FourierK: cfg.FourierK, Period: cfg.FourierPeriod}),
		primary:      deps.Primary,
		oracleClient: deps.OracleClient,
		broadcaster:  deps.Broadcaster,
		audit:        deps.Audit,
		histories:    make(map[domain.NodeID]*domain.History),
		roles:        make(map[domain.NodeID]domain.Role),
		lastSeenMs:   make(map[domain.NodeID]uint32),
		prevTotals:   make(map[domain.SourceID]float64),
		streak:       make(map[domain.SourceID]int),
	}
}

// Run drives the tick loop at cfg.TickMs cadence until stop is closed. On
// shutdown it issues one best-effort zero-demand dispatch and returns
// after a fixed 500ms grace period.
func (l *Loop) Run(stop <-chan struct{}) {
	interval := time.Duration(l.cfg.TickMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastTimestamp uint32
	for {
		select {
		case <-stop:
			l.shutdown()
			return
		case <-ticker.C:
			lastTimestamp = l.tick(lastTimestamp)
		}
	}
}

// shutdown performs the best-effort zero-demand dispatch and a grace
// drain, per spec.md §4.6/§5.
func (l *Loop) shutdown() {
	zero := domain.DispatchFrame{}
	if err := l.link.Send(zero); err != nil {
		log.Printf("tickloop: shutdown dispatch not transmitted: %v", err)
	}
	time.Sleep(500 * time.Millisecond)
}

// tick runs one full pipeline pass and returns the telemetry timestamp
// used, so the next tick can detect staleness relative to it.
func (l *Loop) tick(lastTimestamp uint32) uint32 {
	start := time.Now()
	defer func() {
		metrics.TickDuration.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
		metrics.TicksTotal.Inc()
	}()

	// Step 1: drain the latest telemetry, latest wins.
	frame, ok := l.link.Latest()
	timestamp := lastTimestamp
	if ok {
		timestamp = frame.TimestampMs
		l.ingest(frame)
	}

	// Step 2: expire stale nodes.
	l.expireStale(timestamp)

	// Step 3: forecast.
	consumers := l.forecastConsumers()

	// Step 4: solve.
	state := solver.State{
		Consumers:  consumers,
		Sources:    l.sources,
		PrevTotals: l.prevTotals,
	}
	outcome := solver.Dispatch(l.primary, state, l.cfg.SolveBudgetMs)
	metrics.SolveDuration.Observe(outcome.ElapsedMs)
	if outcome.UsedFallback {
		metrics.FallbacksTotal.Inc()
		l.recordAudit(timestamp, audit.KindFallback, "")
	}

	alloc := outcome.Allocation

	// Step 5: confidence, possible escalation. An oracle response already
	// waiting is collected first, so a response to this tick's own
	// escalation is never applied within the same tick.
	var oracleResp oracle.Response
	oracleReady := false
	if l.oracleClient != nil {
		oracleResp, oracleReady = l.oracleClient.Poll()
	}
	score := l.evaluateConfidence(outcome, state)
	metrics.ConfidenceScore.Set(score.Confidence)
	if score.Escalating {
		metrics.EscalationsTotal.Inc()
		if l.oracleClient != nil && !l.oracleClient.Outstanding() {
			submitted := l.oracleClient.Escalate(oracle.Request{
				Snapshots:          l.recentSnaps,
				Sources:            l.sources,
				RejectedAllocation: alloc,
			})
			if submitted {
				l.recordAudit(timestamp, audit.KindEscalation, "")
			}
		}
	}

	// Step 6: apply a prior oracle response if one is ready and valid.
	if oracleReady {
		if err := oracle.Validate(oracleResp.Allocation, l.sources, l.prevTotals); err == nil {
			alloc = oracleResp.Allocation
			metrics.OracleOverridesAppliedTotal.Inc()
		} else {
			metrics.OracleInvalidOverridesTotal.Inc()
			l.recordAudit(timestamp, audit.KindOracleTimeout, err.Error())
		}
	}

	// Step 7: encode and hand off to the endpoint link.
	linkDown := l.link.Down()
	if !linkDown {
		if err := l.link.Send(toDispatchFrame(alloc, l.cfg.NominalByNode)); err != nil {
			linkDown = true
		}
	}
	metrics.LinkDown.Set(boolToFloat(linkDown))

	l.prevTotals = alloc.SourceTotals
	l.dispatchCount++

	// Step 8: assemble and publish the snapshot.
	snap := l.buildSnapshot(timestamp, consumers, alloc, outcome, score, linkDown)
	l.broadcaster.Publish(snap)
	l.pushRecentSnapshot(snap)

	return timestamp
}

func (l *Loop) ingest(frame domain.TelemetryFrame) {
	for _, n := range frame.Nodes {
		h, known := l.histories[n.ID]
		if !known {
			h = domain.NewHistory(l.cfg.HistoryH)
			l.histories[n.ID] = h
		}
		l.roles[n.ID] = n.Role
		l.lastSeenMs[n.ID] = frame.TimestampMs
		if n.Role == domain.RoleConsumer {
			h.Add(n.Demand)
		}
	}
}

// expireStale drops nodes unseen for more than StaleMs relative to
// timestamp, per spec.md §4.6 step 2. The timestamp is a wrapping
// millisecond counter, so staleness is measured on its unsigned
// difference.
func (l *Loop) expireStale(timestamp uint32) {
	staleMs := uint32(l.cfg.StaleMs)
	for id, lastSeen := range l.lastSeenMs {
		if timestamp-lastSeen > staleMs {
			delete(l.histories, id)
			delete(l.roles, id)
			delete(l.lastSeenMs, id)
		}
	}
}

func (l *Loop) forecastConsumers() []solver.ConsumerDemand {
	out := make([]solver.ConsumerDemand, 0, len(l.histories))
	for id, h := range l.histories {
		if l.roles[id] != domain.RoleConsumer {
			continue
		}
		res := l.forecaster.Forecast(h, 1)
		demand := 0.0
		if len(res.Projection) > 0 {
			demand = res.Projection[0]
		}
		out = append(out, solver.ConsumerDemand{NodeID: id, Demand: demand})
	}
	return out
}

func (l *Loop) evaluateConfidence(outcome solver.Outcome, state solver.State) confidence.Score {
	usage := make(map[domain.SourceID]confidence.Usage, len(l.sources))
	for _, s := range l.sources {
		usage[s.SourceID] = confidence.Usage{
			Used:        outcome.Allocation.SourceTotals[s.SourceID],
			MaxCapacity: s.MaxCapacity,
		}
	}

	totalDemand := 0.0
	for _, c := range state.Consumers {
		totalDemand += c.Demand
	}

	variance := 0.0
	for _, h := range l.histories {
		res := l.forecaster.Forecast(h, 1)
		if res.Variance > variance {
			variance = res.Variance
		}
	}

	score := confidence.Evaluate(confidence.Input{
		TotalDemand:         totalDemand,
		TotalUnmet:          outcome.Allocation.TotalUnmet(),
		ForecastVariance:    variance,
		MaxExpectedVariance: maxExpectedVariance,
		SourceUsage:         usage,
		UsedFallback:        outcome.UsedFallback,
		PrevStreak:          l.streak,
	})
	l.streak = score.Streak
	return score
}

func (l *Loop) buildSnapshot(timestamp uint32, consumers []solver.ConsumerDemand, alloc solver.Allocation, outcome solver.Outcome, score confidence.Score, linkDown bool) domain.Snapshot {
	nodes := make([]domain.NodeReading, 0, len(l.histories))
	details := make([]domain.DispatchDetail, 0, len(alloc.Amps))

	for id, role := range l.roles {
		reading := domain.NodeReading{ID: id, Type: role}
		if role == domain.RoleConsumer {
			for _, c := range consumers {
				if c.NodeID == id {
					reading.Demand = c.Demand
					break
				}
			}
			reading.Fulfillment = alloc.Amps[id]
		}
		nodes = append(nodes, reading)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	for id, amps := range alloc.Amps {
		details = append(details, domain.DispatchDetail{
			ID:         id,
			SupplyAmps: amps,
			SourceID:   alloc.Assigned[id],
		})
	}

	tickCost := alloc.Cost(l.sources)
	l.cumulativeCost += tickCost

	totalSupply := alloc.TotalAllocated()
	totalDemand := 0.0
	for _, c := range consumers {
		totalDemand += c.Demand
	}

	efficiency := 100.0
	if totalDemand > 0 {
		efficiency = 100 * totalSupply / totalDemand
		if efficiency > 100 {
			efficiency = 100
		}
	}

	greenCapacity, totalCapacity := 0.0, 0.0
	for _, s := range l.sources {
		totalCapacity += alloc.SourceTotals[s.SourceID]
		if s.Green {
			greenCapacity += alloc.SourceTotals[s.SourceID]
		}
	}
	greenPercent := 0.0
	if totalCapacity > 0 {
		greenPercent = 100 * greenCapacity / totalCapacity
	}

	usage := make(map[domain.SourceID]domain.SourceUsage, len(l.sources))
	for _, s := range l.sources {
		total := alloc.SourceTotals[s.SourceID]
		usage[s.SourceID] = domain.SourceUsage{
			Amps:        total,
			Cost:        total * s.CostPerAmp,
			CostPerAmp:  s.CostPerAmp,
			MaxCapacity: s.MaxCapacity,
		}
	}

	costPerSecond := tickCost * (1000.0 / float64(l.cfg.TickMs))
	blendedCostPerAmp := 0.0
	if totalSupply > 0 {
		blendedCostPerAmp = tickCost / totalSupply
	}

	return domain.Snapshot{
		TimestampMs:        timestamp,
		Nodes:              nodes,
		OptimizationTimeMs: outcome.ElapsedMs,
		ConfidenceScore:    score.Confidence,
		DispatchCount:      l.dispatchCount,
		Economic: domain.Economic{
			TotalCost:          l.cumulativeCost,
			CostPerSecond:      costPerSecond,
			CostPerAmp:         blendedCostPerAmp,
			TotalDemand:        totalDemand,
			TotalSupply:        totalSupply,
			UnmetDemand:        alloc.TotalUnmet(),
			EfficiencyPercent:  efficiency,
			GreenEnergyPercent: greenPercent,
			SourceUsage:        usage,
		},
		DispatchDetails: details,
		LinkDown:        linkDown,
		UsedFallback:    outcome.UsedFallback,
		Escalating:      score.Escalating,
	}
}

func (l *Loop) pushRecentSnapshot(snap domain.Snapshot) {
	l.recentSnaps = append(l.recentSnaps, snap)
	if len(l.recentSnaps) > snapshotBacklog {
		l.recentSnaps = l.recentSnaps[len(l.recentSnaps)-snapshotBacklog:]
	}
}

func (l *Loop) recordAudit(timestamp uint32, kind audit.Kind, detail string) {
	if l.audit == nil {
		return
	}
	if err := l.audit.Record(audit.Event{TimestampMs: timestamp, Kind: kind, Detail: detail}); err != nil {
		log.Printf("tickloop: audit record failed: %v", err)
	}
}

func toDispatchFrame(alloc solver.Allocation, nominalByNode map[domain.NodeID]float64) domain.DispatchFrame {
	entries := make([]domain.DispatchEntry, 0, len(alloc.Amps))
	for id, amps := range alloc.Amps {
		src, assigned := alloc.Assigned[id]
		if !assigned {
			continue
		}
		entries = append(entries, domain.DispatchEntry{
			NodeID:   id,
			Supply:   normalizeSupply(amps, nominalByNode[id]),
			SourceID: src,
		})
	}
	return domain.DispatchFrame{Entries: entries}
}

// normalizeSupply converts an allocated amps figure to the wire format's
// normalized [0,1] PWM level: the fraction of the node's fixed,
// startup-configured nominal current (per_node_nominal[n], spec.md §4.3)
// that this tick's dispatch actually supplies. A node with no configured
// nominal current (never enrolled at startup) always reads 0.
func normalizeSupply(amps, nominal float64) float64 {
	if nominal <= 0 {
		return 0
	}
	v := amps / nominal
	if v > 1 {
		v = 1
	}
	if v < 0 {
		v = 0
	}
	return v
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
