package contract

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// #region default
// Default returns the canonical contract. These constants are the single
// ground truth for scoring and classification; engine and oracle both read
// them and nothing else.
func Default() *Contract {
	return &Contract{
		Weights: Weights{
			CompositeRisk:          0.30,
			MetaInstability:        0.20,
			PredictiveCollapseRisk: 0.25,
			ConsistencyGap:         0.10,
			ContinuityIndex:        0.15,
		},
		Bands: map[Regime]Band{
			RegimeNormal:                 {Low: 0.00, High: 0.30},
			RegimeHeightened:             {Low: 0.30, High: 0.55},
			RegimeControlledDegradation:  {Low: 0.55, High: 0.75},
			RegimeEmergencyStabilization: {Low: 0.75, High: 1.00},
		},
		MinDurations: map[Regime]float64{
			RegimeNormal:                 0,
			RegimeHeightened:             300,
			RegimeControlledDegradation:  600,
			RegimeEmergencyStabilization: 900,
			RegimeRecovery:               1800,
		},
		Postures: map[Regime]Posture{
			RegimeNormal:                 {ThresholdMultiplier: 1.00, TrafficLimit: 1.00},
			RegimeHeightened:             {ThresholdMultiplier: 1.25, TrafficLimit: 0.75},
			RegimeControlledDegradation:  {ThresholdMultiplier: 1.50, TrafficLimit: 0.50, DeploymentFreeze: true},
			RegimeEmergencyStabilization: {ThresholdMultiplier: 2.00, TrafficLimit: 0.25, DeploymentFreeze: true, SafeModeForced: true},
			RegimeRecovery:               {ThresholdMultiplier: 1.25, TrafficLimit: 0.50, DeploymentFreeze: true},
		},
		Bounds: AmplitudeBounds{
			MinThresholdMultiplier: 0.5,
			MaxThresholdMultiplier: 2.0,
			MinTrafficLimit:        0.0,
			MaxTrafficLimit:        1.0,
		},
		HysteresisMargin:       0.05,
		RecoveryExitContinuity: 0.85,
	}
}

// #endregion default

// #region load
// Load reads a contract from a YAML file and validates it.
func Load(path string) (*Contract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read contract: %w", err)
	}
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse contract: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid contract %s: %w", path, err)
	}
	return c, nil
}

// #endregion load

// #region validate
// Validate checks internal consistency of the constants table: weight mass,
// band coverage of [0,1], per-regime durations and posture bounds, and
// posture monotonicity in severity.
func (c *Contract) Validate() error {
	if s := c.Weights.Sum(); s < 0.999 || s > 1.001 {
		return fmt.Errorf("weights sum to %.4f, want 1.0", s)
	}

	// Bands must tile [0,1] contiguously in severity order.
	banded := make([]Regime, 0, len(c.Bands))
	for r := range c.Bands {
		if r == RegimeRecovery {
			return fmt.Errorf("recovery has no score band")
		}
		banded = append(banded, r)
	}
	sort.Slice(banded, func(i, j int) bool {
		return banded[i].Severity() < banded[j].Severity()
	})
	prev := 0.0
	for _, r := range banded {
		b := c.Bands[r]
		if b.Low != prev {
			return fmt.Errorf("band %s starts at %.2f, want %.2f", r, b.Low, prev)
		}
		if b.High <= b.Low {
			return fmt.Errorf("band %s is empty", r)
		}
		prev = b.High
	}
	if prev != 1.0 {
		return fmt.Errorf("bands end at %.2f, want 1.0", prev)
	}

	for _, r := range []Regime{RegimeNormal, RegimeHeightened, RegimeControlledDegradation, RegimeEmergencyStabilization, RegimeRecovery} {
		d, ok := c.MinDurations[r]
		if !ok || d < 0 {
			return fmt.Errorf("missing or negative min duration for %s", r)
		}
		p, ok := c.Postures[r]
		if !ok {
			return fmt.Errorf("missing posture for %s", r)
		}
		if !c.Bounds.Within(p) {
			return fmt.Errorf("posture for %s outside amplitude bounds", r)
		}
	}

	// More severe regime: larger threshold multiplier, smaller traffic limit.
	order := []Regime{RegimeNormal, RegimeHeightened, RegimeControlledDegradation, RegimeEmergencyStabilization}
	for i := 1; i < len(order); i++ {
		lo, hi := c.Postures[order[i-1]], c.Postures[order[i]]
		if hi.ThresholdMultiplier < lo.ThresholdMultiplier || hi.TrafficLimit > lo.TrafficLimit {
			return fmt.Errorf("posture table not monotone between %s and %s", order[i-1], order[i])
		}
	}

	if c.HysteresisMargin < 0 || c.HysteresisMargin >= 0.5 {
		return fmt.Errorf("hysteresis margin %.3f out of range", c.HysteresisMargin)
	}
	if c.RecoveryExitContinuity <= 0 || c.RecoveryExitContinuity > 1 {
		return fmt.Errorf("recovery exit continuity %.3f out of range", c.RecoveryExitContinuity)
	}
	return nil
}

// #endregion validate

// #region band-lookup
// BandFor returns the score band for a banded regime. Recovery has no band.
func (c *Contract) BandFor(r Regime) (Band, bool) {
	b, ok := c.Bands[r]
	return b, ok
}

// #endregion band-lookup
