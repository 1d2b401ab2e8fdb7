package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gridctl/gridctl/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	if cfg.Tick.TickMs != 42 {
		t.Errorf("Tick.TickMs = %d, want 42", cfg.Tick.TickMs)
	}
	if cfg.Tick.SolveBudgetMs != 25 {
		t.Errorf("Tick.SolveBudgetMs = %d, want 25", cfg.Tick.SolveBudgetMs)
	}
	if cfg.Forecast.FourierPeriod != 120 {
		t.Errorf("Forecast.FourierPeriod = %d, want 120", cfg.Forecast.FourierPeriod)
	}
}

func writeTempTOML(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "gridctl.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaultsAndValidatesSources(t *testing.T) {
	path := writeTempTOML(t, `
[tick]
tick_ms = 50

[[source]]
source_id = 1
max_capacity = 5.0
cost_per_amp = 0.10
ramp_limit = 2.0

[[source]]
source_id = 2
max_capacity = 5.0
cost_per_amp = 0.20
ramp_limit = 2.0
green = true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Tick.TickMs != 50 {
		t.Errorf("Tick.TickMs = %d, want 50 (overridden)", cfg.Tick.TickMs)
	}
	if cfg.Tick.SolveBudgetMs != 25 {
		t.Errorf("Tick.SolveBudgetMs = %d, want 25 (default, unset)", cfg.Tick.SolveBudgetMs)
	}
	if len(cfg.SourceSpecs()) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(cfg.SourceSpecs()))
	}
}

func TestLoadRejectsZeroCapacity(t *testing.T) {
	path := writeTempTOML(t, `
[[source]]
source_id = 1
max_capacity = 0
cost_per_amp = 0.10
ramp_limit = 1.0
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected zero-capacity source to be rejected")
	}
}

func TestLoadRejectsDuplicateSourceID(t *testing.T) {
	path := writeTempTOML(t, `
[[source]]
source_id = 1
max_capacity = 5.0
cost_per_amp = 0.1
ramp_limit = 1.0

[[source]]
source_id = 1
max_capacity = 3.0
cost_per_amp = 0.2
ramp_limit = 1.0
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected duplicate source_id to be rejected")
	}
}

func TestValidateRejectsEmptySourceTable(t *testing.T) {
	if err := Validate(Default()); err != domain.ErrNoSources {
		t.Fatalf("err = %v, want ErrNoSources", err)
	}
}

func TestLoadParsesNodeNominalTable(t *testing.T) {
	path := writeTempTOML(t, `
[[source]]
source_id = 1
max_capacity = 5.0
cost_per_amp = 0.10
ramp_limit = 2.0

[[node]]
node_id = 1
nominal_current = 8.0

[[node]]
node_id = 2
nominal_current = 4.0
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	nominal := cfg.NominalByNode()
	if nominal[domain.NodeID(1)] != 8.0 {
		t.Errorf("node 1 nominal = %v, want 8.0", nominal[domain.NodeID(1)])
	}
	if nominal[domain.NodeID(2)] != 4.0 {
		t.Errorf("node 2 nominal = %v, want 4.0", nominal[domain.NodeID(2)])
	}
}

func TestLoadRejectsDuplicateNodeID(t *testing.T) {
	path := writeTempTOML(t, `
[[source]]
source_id = 1
max_capacity = 5.0
cost_per_amp = 0.10
ramp_limit = 2.0

[[node]]
node_id = 1
nominal_current = 8.0

[[node]]
node_id = 1
nominal_current = 4.0
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected duplicate node_id to be rejected")
	}
}

func TestLoadRejectsZeroNominalCurrent(t *testing.T) {
	path := writeTempTOML(t, `
[[source]]
source_id = 1
max_capacity = 5.0
cost_per_amp = 0.10
ramp_limit = 2.0

[[node]]
node_id = 1
nominal_current = 0
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected zero nominal_current to be rejected")
	}
}
