package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"regimegov/internal/engine"
	"regimegov/internal/factors"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture: a sample
// trajectory with the expected action and regime per cycle.
type Fixture struct {
	Description string            `json:"description"`
	Config      FixtureConfig     `json:"config"`
	Samples     []FixtureSample   `json:"samples"`
	Expected    []FixtureExpected `json:"expected"`
}

// FixtureConfig carries the engine-local knobs; the contract itself stays
// canonical so fixtures cannot drift from the published constants.
type FixtureConfig struct {
	OscillationWindowS   float64 `json:"oscillation_window_s"`
	OscillationThreshold int     `json:"oscillation_threshold"`
}

// FixtureSample is one factor observation at an offset from the run start.
type FixtureSample struct {
	TOffsetS               float64 `json:"t_offset_s"`
	CompositeRisk          float64 `json:"composite_risk"`
	MetaInstability        float64 `json:"meta_instability"`
	PredictiveCollapseRisk float64 `json:"predictive_collapse_risk"`
	ConsistencyGap         float64 `json:"consistency_gap"`
	ContinuityIndex        float64 `json:"continuity_index"`
}

// FixtureExpected is the golden action/regime for one cycle.
type FixtureExpected struct {
	Index  int    `json:"index"`
	Action string `json:"action"`
	Regime string `json:"regime"`
}

// #endregion fixture-types

// #region load
// LoadFixture reads and parses a fixture file.
func LoadFixture(path string) (Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("read fixture: %w", err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return Fixture{}, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return f, nil
}

// #endregion load

// #region build
// EngineConfig maps the fixture knobs onto an engine configuration.
func (f Fixture) EngineConfig() engine.Config {
	cfg := engine.DefaultConfig()
	if f.Config.OscillationWindowS > 0 {
		cfg.OscillationWindow = time.Duration(f.Config.OscillationWindowS * float64(time.Second))
	}
	if f.Config.OscillationThreshold > 0 {
		cfg.OscillationThreshold = f.Config.OscillationThreshold
	}
	return cfg
}

// BuildSamples materializes the fixture trajectory against a fixed epoch so
// replays are reproducible byte-for-byte.
func (f Fixture) BuildSamples() []factors.Sample {
	base := time.Unix(1700000000, 0).UTC()
	samples := make([]factors.Sample, 0, len(f.Samples))
	for _, fs := range f.Samples {
		samples = append(samples, factors.Sample{
			Timestamp:              base.Add(time.Duration(fs.TOffsetS * float64(time.Second))),
			CompositeRisk:          fs.CompositeRisk,
			MetaInstability:        fs.MetaInstability,
			PredictiveCollapseRisk: fs.PredictiveCollapseRisk,
			ConsistencyGap:         fs.ConsistencyGap,
			ContinuityIndex:        fs.ContinuityIndex,
		})
	}
	return samples
}

// Check compares replay results against the fixture's expectations.
func (f Fixture) Check(results []Result) error {
	for _, exp := range f.Expected {
		if exp.Index < 0 || exp.Index >= len(results) {
			return fmt.Errorf("expected index %d out of range (%d results)", exp.Index, len(results))
		}
		r := results[exp.Index]
		if exp.Action != "" && r.Action != exp.Action {
			return fmt.Errorf("cycle %d: action %q, want %q (%s)", exp.Index, r.Action, exp.Action, r.Reason)
		}
		if exp.Regime != "" && string(r.Regime) != exp.Regime {
			return fmt.Errorf("cycle %d: regime %q, want %q", exp.Index, r.Regime, exp.Regime)
		}
	}
	return nil
}

// #endregion build
