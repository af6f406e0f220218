package contract

import "time"

// #region regime
// Regime is a discrete operating severity level governing system posture.
type Regime string

const (
	RegimeNormal                 Regime = "normal"
	RegimeHeightened             Regime = "heightened"
	RegimeControlledDegradation  Regime = "controlled_degradation"
	RegimeEmergencyStabilization Regime = "emergency_stabilization"
	RegimeRecovery               Regime = "recovery"
)

// Severity returns the ordering rank of a regime. Recovery sits between
// heightened and controlled_degradation: escalation past it is always
// possible, but it never counts as more severe than the states it exits from.
func (r Regime) Severity() int {
	switch r {
	case RegimeNormal:
		return 0
	case RegimeHeightened, RegimeRecovery:
		return 1
	case RegimeControlledDegradation:
		return 2
	case RegimeEmergencyStabilization:
		return 3
	}
	return -1
}

// Valid reports whether r is one of the five known regimes.
func (r Regime) Valid() bool {
	return r.Severity() >= 0
}

// #endregion regime

// #region band
// Band is a half-open score interval [Low, High) used for upgrade detection.
type Band struct {
	Low  float64 `yaml:"low" json:"low"`
	High float64 `yaml:"high" json:"high"`
}

// Contains reports whether score falls inside the band. The top band is
// closed above so a score of exactly 1.0 still classifies.
func (b Band) Contains(score float64) bool {
	if b.High >= 1.0 {
		return score >= b.Low && score <= 1.0
	}
	return score >= b.Low && score < b.High
}

// #endregion band

// #region weights
// Weights is the fixed factor weighting of the regime score. ContinuityIndex
// enters inverted: its contribution is weight * (1 - value).
type Weights struct {
	CompositeRisk          float64 `yaml:"composite_risk" json:"composite_risk"`
	MetaInstability        float64 `yaml:"meta_instability" json:"meta_instability"`
	PredictiveCollapseRisk float64 `yaml:"predictive_collapse_risk" json:"predictive_collapse_risk"`
	ConsistencyGap         float64 `yaml:"consistency_gap" json:"consistency_gap"`
	ContinuityIndex        float64 `yaml:"continuity_index" json:"continuity_index"`
}

// Sum returns the total weight mass.
func (w Weights) Sum() float64 {
	return w.CompositeRisk + w.MetaInstability + w.PredictiveCollapseRisk +
		w.ConsistencyGap + w.ContinuityIndex
}

// #endregion weights

// #region posture
// Posture is the amplitude triad derived from the current regime. It is
// never hand-edited; always recomputed from the regime via the posture table.
type Posture struct {
	ThresholdMultiplier float64 `yaml:"threshold_multiplier" json:"threshold_multiplier"`
	TrafficLimit        float64 `yaml:"traffic_limit" json:"traffic_limit"`
	DeploymentFreeze    bool    `yaml:"deployment_freeze" json:"deployment_freeze"`
	SafeModeForced      bool    `yaml:"safe_mode_forced" json:"safe_mode_forced"`
}

// AmplitudeBounds are the global limits every stored posture must satisfy.
type AmplitudeBounds struct {
	MinThresholdMultiplier float64 `yaml:"min_threshold_multiplier" json:"min_threshold_multiplier"`
	MaxThresholdMultiplier float64 `yaml:"max_threshold_multiplier" json:"max_threshold_multiplier"`
	MinTrafficLimit        float64 `yaml:"min_traffic_limit" json:"min_traffic_limit"`
	MaxTrafficLimit        float64 `yaml:"max_traffic_limit" json:"max_traffic_limit"`
}

// Within reports whether p satisfies the bounds.
func (b AmplitudeBounds) Within(p Posture) bool {
	return p.ThresholdMultiplier >= b.MinThresholdMultiplier &&
		p.ThresholdMultiplier <= b.MaxThresholdMultiplier &&
		p.TrafficLimit >= b.MinTrafficLimit &&
		p.TrafficLimit <= b.MaxTrafficLimit
}

// #endregion posture

// #region contract
// Contract is the published constants table shared by the policy engine and
// the oracle. Both derive their scoring and classification mechanically from
// this one value, so the two implementations cannot drift apart on constants.
// Immutable after construction.
type Contract struct {
	Weights          Weights            `yaml:"weights" json:"weights"`
	Bands            map[Regime]Band    `yaml:"bands" json:"bands"`
	MinDurations     map[Regime]float64 `yaml:"min_durations_s" json:"min_durations_s"`
	Postures         map[Regime]Posture `yaml:"postures" json:"postures"`
	Bounds           AmplitudeBounds    `yaml:"amplitude_bounds" json:"amplitude_bounds"`
	HysteresisMargin float64            `yaml:"hysteresis_margin" json:"hysteresis_margin"`
	// RecoveryExitContinuity is the continuity-index floor for leaving
	// recovery back to normal.
	RecoveryExitContinuity float64 `yaml:"recovery_exit_continuity" json:"recovery_exit_continuity"`
}

// MinDuration returns the minimum hold time before a downgrade out of r is legal.
func (c *Contract) MinDuration(r Regime) time.Duration {
	return time.Duration(c.MinDurations[r] * float64(time.Second))
}

// PostureFor returns the posture template for r.
func (c *Contract) PostureFor(r Regime) Posture {
	return c.Postures[r]
}

// #endregion contract
