// Package config loads and validates the controller's startup
// configuration from a TOML file, per spec.md §6.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/gridctl/gridctl/internal/domain"
)

// Config is the complete startup configuration.
type Config struct {
	Tick     TickConfig     `toml:"tick"`
	Forecast ForecastConfig `toml:"forecast"`
	Network  NetworkConfig  `toml:"network"`
	Sources  []SourceConfig `toml:"source"`
	Nodes    []NodeConfig   `toml:"node"`
}

// TickConfig controls cadence, solve budget, history, and staleness.
type TickConfig struct {
	TickMs        int `toml:"tick_ms"`
	SolveBudgetMs int `toml:"solve_budget_ms"`
	StaleMs       int `toml:"stale_ms"`
	HistoryH      int `toml:"history_h"`
}

// ForecastConfig controls the Fourier forecaster.
type ForecastConfig struct {
	MinSamples    int `toml:"min_samples"`
	FourierK      int `toml:"fourier_k"`
	FourierPeriod int `toml:"fourier_period"`
}

// NetworkConfig holds the three external addresses from spec.md §6.
type NetworkConfig struct {
	EndpointAddr string `toml:"endpoint_addr"`
	ObserverAddr string `toml:"observer_addr"`
	OracleAddr   string `toml:"oracle_addr"` // empty disables the oracle client
}

// SourceConfig mirrors domain.SourceSpec for TOML decoding.
type SourceConfig struct {
	SourceID    uint8   `toml:"source_id"`
	MaxCapacity float64 `toml:"max_capacity"`
	CostPerAmp  float64 `toml:"cost_per_amp"`
	RampLimit   float64 `toml:"ramp_limit"`
	Green       bool    `toml:"green"`
}

// NodeConfig carries a node's per_node_nominal[n] from spec.md §4.3: a
// fixed, startup-configured rated current used to normalize that node's
// allocated amps into the wire format's [0,1] PWM level. It is unrelated
// to the node's forecasted demand, which varies tick to tick.
type NodeConfig struct {
	NodeID         uint8   `toml:"node_id"`
	NominalCurrent float64 `toml:"nominal_current"`
}

// Default returns spec.md §6's default values with no sources configured
// — callers must supply a source table.
func Default() Config {
	return Config{
		Tick: TickConfig{
			TickMs:        42,
			SolveBudgetMs: 25,
			StaleMs:       5000,
			HistoryH:      200,
		},
		Forecast: ForecastConfig{
			MinSamples:    32,
			FourierK:      2,
			FourierPeriod: 120,
		},
		Network: NetworkConfig{
			EndpointAddr: "127.0.0.1:9000",
			ObserverAddr: "127.0.0.1:9090",
		},
	}
}

// Load reads and decodes a TOML config file, filling any zero-valued
// field from Default() and validating the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	applyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	d := Default()
	if cfg.Tick.TickMs == 0 {
		cfg.Tick.TickMs = d.Tick.TickMs
	}
	if cfg.Tick.SolveBudgetMs == 0 {
		cfg.Tick.SolveBudgetMs = d.Tick.SolveBudgetMs
	}
	if cfg.Tick.StaleMs == 0 {
		cfg.Tick.StaleMs = d.Tick.StaleMs
	}
	if cfg.Tick.HistoryH == 0 {
		cfg.Tick.HistoryH = d.Tick.HistoryH
	}
	if cfg.Forecast.MinSamples == 0 {
		cfg.Forecast.MinSamples = d.Forecast.MinSamples
	}
	if cfg.Forecast.FourierK == 0 {
		cfg.Forecast.FourierK = d.Forecast.FourierK
	}
	if cfg.Forecast.FourierPeriod == 0 {
		cfg.Forecast.FourierPeriod = d.Forecast.FourierPeriod
	}
	if cfg.Network.EndpointAddr == "" {
		cfg.Network.EndpointAddr = d.Network.EndpointAddr
	}
	if cfg.Network.ObserverAddr == "" {
		cfg.Network.ObserverAddr = d.Network.ObserverAddr
	}
}

// Validate checks the fatal-at-startup conditions from spec.md §7: a
// source with zero or negative capacity, negative ramp, a duplicate
// source_id, an empty source table, a duplicate node_id, or a node with
// zero or negative nominal_current.
func Validate(cfg Config) error {
	if len(cfg.Sources) == 0 {
		return domain.ErrNoSources
	}
	seen := make(map[domain.SourceID]bool, len(cfg.Sources))
	for _, s := range cfg.Sources {
		id := domain.SourceID(s.SourceID)
		if seen[id] {
			return fmt.Errorf("config: source_id %d: %w", s.SourceID, domain.ErrDuplicateSource)
		}
		seen[id] = true

		spec := domain.SourceSpec{
			SourceID:    id,
			MaxCapacity: s.MaxCapacity,
			RampLimit:   s.RampLimit,
			CostPerAmp:  s.CostPerAmp,
			Green:       s.Green,
		}
		if err := spec.Validate(); err != nil {
			return fmt.Errorf("config: source_id %d: %w", s.SourceID, err)
		}
	}

	seenNodes := make(map[domain.NodeID]bool, len(cfg.Nodes))
	for _, n := range cfg.Nodes {
		id := domain.NodeID(n.NodeID)
		if seenNodes[id] {
			return fmt.Errorf("config: node_id %d: %w", n.NodeID, domain.ErrDuplicateNode)
		}
		seenNodes[id] = true
		if n.NominalCurrent <= 0 {
			return fmt.Errorf("config: node_id %d: %w", n.NodeID, domain.ErrZeroNominal)
		}
	}
	return nil
}

// SourceSpecs converts the configured source table to domain.SourceSpec.
func (c Config) SourceSpecs() []domain.SourceSpec {
	specs := make([]domain.SourceSpec, len(c.Sources))
	for i, s := range c.Sources {
		specs[i] = domain.SourceSpec{
			SourceID:    domain.SourceID(s.SourceID),
			MaxCapacity: s.MaxCapacity,
			RampLimit:   s.RampLimit,
			CostPerAmp:  s.CostPerAmp,
			Green:       s.Green,
		}
	}
	return specs
}

// NominalByNode converts the configured node table into the per-node
// nominal-current lookup the tick loop normalizes dispatched amps against.
func (c Config) NominalByNode() map[domain.NodeID]float64 {
	nominal := make(map[domain.NodeID]float64, len(c.Nodes))
	for _, n := range c.Nodes {
		nominal[domain.NodeID(n.NodeID)] = n.NominalCurrent
	}
	return nominal
}
