// Package oracle is an independent re-derivation of the regime scoring and
// classification rules from the published contract constants. It exists only
// for cross-checking the policy engine: both read the same constants table,
// but the logic here is written separately from the engine's internals.
//
// Every function is pure and stateless. Callers must pass the engine's
// PRE-transition regime and hold duration; evaluating against the engine's
// post-transition state makes every downgrade trivially self-consistent and
// silently defeats drift detection.
package oracle

import (
	"time"

	"regimegov/internal/contract"
	"regimegov/internal/factors"
)

// #region score
// Score computes the regime score in [0,1] from a factor sample via the
// contract weight vector. The continuity index enters inverted.
func Score(c *contract.Contract, s factors.Sample) float64 {
	w := c.Weights
	score := w.CompositeRisk*s.CompositeRisk +
		w.MetaInstability*s.MetaInstability +
		w.PredictiveCollapseRisk*s.PredictiveCollapseRisk +
		w.ConsistencyGap*s.ConsistencyGap +
		w.ContinuityIndex*(1.0-s.ContinuityIndex)
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// #endregion score

// #region classify-score
// ClassifyScore maps a score to its banded regime.
func ClassifyScore(c *contract.Contract, score float64) contract.Regime {
	for _, r := range []contract.Regime{
		contract.RegimeNormal,
		contract.RegimeHeightened,
		contract.RegimeControlledDegradation,
		contract.RegimeEmergencyStabilization,
	} {
		if b, ok := c.BandFor(r); ok && b.Contains(score) {
			return r
		}
	}
	return contract.RegimeEmergencyStabilization
}

// #endregion classify-score

// #region classify
// Classify applies the full transition rules to the pre-transition state:
// immediate upgrades, hysteresis- and duration-guarded downgrades, and the
// recovery gate. Continuity is the sample's continuity index, needed for the
// recovery exit condition.
func Classify(
	c *contract.Contract,
	score float64,
	continuity float64,
	current contract.Regime,
	timeIn time.Duration,
) contract.Regime {
	proposed := ClassifyScore(c, score)

	if current == contract.RegimeRecovery {
		// Escalation past recovery is always immediate.
		if proposed.Severity() > current.Severity() {
			return proposed
		}
		// The only other exit is to normal, gated on continuity and duration.
		if continuity >= c.RecoveryExitContinuity && timeIn >= c.MinDuration(contract.RegimeRecovery) {
			return contract.RegimeNormal
		}
		return contract.RegimeRecovery
	}

	switch {
	case proposed.Severity() > current.Severity():
		// Upgrades apply immediately: no hysteresis, no minimum duration.
		return proposed

	case proposed.Severity() < current.Severity():
		band, ok := c.BandFor(current)
		if !ok {
			return current
		}
		if score >= band.Low-c.HysteresisMargin {
			return current // inside the hysteresis buffer
		}
		if timeIn < c.MinDuration(current) {
			return current // duration floor not met
		}
		// The two most severe regimes step down through recovery.
		if current == contract.RegimeControlledDegradation ||
			current == contract.RegimeEmergencyStabilization {
			return contract.RegimeRecovery
		}
		return proposed
	}
	return current
}

// #endregion classify
