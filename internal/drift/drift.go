// Package drift implements the guard that compares each engine decision
// against the oracle's independent verdict and re-checks the transition
// invariants. The guard never mutates state; it only classifies.
package drift

import (
	"regimegov/internal/contract"
	"regimegov/internal/engine"
	"regimegov/internal/ledger"
)

// #region reasons
// Reason is a drift reason code recorded in the ledger.
type Reason string

const (
	ReasonDisagreement   Reason = "dual_modality_disagreement"
	ReasonHysteresis     Reason = "hysteresis_violation"
	ReasonMinDuration    Reason = "min_duration_violation"
	ReasonRecoveryGate   Reason = "recovery_gate_violation"
	ReasonAmplitude      Reason = "amplitude_violation"
	ReasonHashChain      Reason = "hash_chain_mismatch"
	ReasonTimestamp      Reason = "timestamp_regression"
	ReasonTransitionFrom Reason = "transition_from_mismatch"
	ReasonOracleError    Reason = "oracle_error"
)

// #endregion reasons

// #region verdict
// Verdict aggregates the four invariant checks for one cycle. Any triggered
// reason sets DriftDetected; all triggered reasons are recorded, not just
// the first.
type Verdict struct {
	DriftDetected bool
	Reasons       []Reason

	Agreement           bool
	HysteresisEnforced  bool
	MinDurationEnforced bool
	LedgerContinuity    bool
	AmplitudeValid      bool
}

// ReasonStrings returns the reason codes as plain strings for serialization.
func (v Verdict) ReasonStrings() []string {
	if len(v.Reasons) == 0 {
		return nil
	}
	out := make([]string, len(v.Reasons))
	for i, r := range v.Reasons {
		out[i] = string(r)
	}
	return out
}

// #endregion verdict

// #region guard
// Guard holds the contract constants used for the defensive re-checks.
type Guard struct {
	c *contract.Contract
}

// NewGuard creates a drift guard bound to the published contract.
func NewGuard(c *contract.Contract) *Guard {
	return &Guard{c: c}
}

// Check compares one cycle's engine snapshot against the oracle regime
// (evaluated on the same pre-transition inputs) and the previous ledger
// entry. oracleFailed marks an oracle evaluation that could not complete;
// lastHash is the hash the next append will link to.
func (g *Guard) Check(
	snap engine.Snapshot,
	oracleRegime contract.Regime,
	oracleFailed bool,
	prev *ledger.Entry,
	lastHash string,
) Verdict {
	v := Verdict{
		Agreement:           !oracleFailed && oracleRegime == snap.Regime,
		HysteresisEnforced:  true,
		MinDurationEnforced: true,
		LedgerContinuity:    true,
		AmplitudeValid:      true,
	}
	var reasons []Reason

	// 1. Dual-modality disagreement.
	if oracleFailed {
		reasons = append(reasons, ReasonOracleError)
	} else if oracleRegime != snap.Regime {
		reasons = append(reasons, ReasonDisagreement)
	}

	// 2. Invariant re-check on committed downgrades. Defensive: catches
	// engine bugs even when the oracle happens to agree.
	if snap.Transitioned() && snap.Regime.Severity() < snap.TransitionFrom.Severity() {
		from := snap.TransitionFrom
		if from == contract.RegimeRecovery {
			if snap.Factors.ContinuityIndex < g.c.RecoveryExitContinuity {
				v.HysteresisEnforced = false
				reasons = append(reasons, ReasonRecoveryGate)
			}
		} else if band, ok := g.c.BandFor(from); ok {
			if snap.Score >= band.Low-g.c.HysteresisMargin {
				v.HysteresisEnforced = false
				reasons = append(reasons, ReasonHysteresis)
			}
		}
		if snap.PreviousDurationS < g.c.MinDurations[from] {
			v.MinDurationEnforced = false
			reasons = append(reasons, ReasonMinDuration)
		}
	}

	// 3. Amplitude bounds.
	if !g.c.Bounds.Within(snap.Posture) {
		v.AmplitudeValid = false
		reasons = append(reasons, ReasonAmplitude)
	}

	// 4. Continuity against the previous ledger entry.
	if prev != nil {
		if prev.EntryID != lastHash {
			v.LedgerContinuity = false
			reasons = append(reasons, ReasonHashChain)
		}
		if !snap.Timestamp.After(prev.Timestamp) {
			v.LedgerContinuity = false
			reasons = append(reasons, ReasonTimestamp)
		}
		switch {
		case snap.Transitioned() && snap.TransitionFrom != prev.ORPRegime:
			v.LedgerContinuity = false
			reasons = append(reasons, ReasonTransitionFrom)
		case !snap.Transitioned() && snap.Regime != prev.ORPRegime:
			// A regime change with no recorded transition is as broken as
			// a mislabeled one.
			v.LedgerContinuity = false
			reasons = append(reasons, ReasonTransitionFrom)
		}
	}

	v.Reasons = reasons
	v.DriftDetected = len(reasons) > 0
	return v
}

// #endregion guard
