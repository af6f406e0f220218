// Package engine implements the Operational Regime Policy: a stateful
// classifier that turns contributing-factor samples into a discrete
// operating regime with hysteresis, minimum-duration floors, and a gated
// recovery path, and derives the posture amplitudes from the result.
package engine

import (
	"fmt"
	"time"

	"regimegov/internal/contract"
	"regimegov/internal/factors"
)

// #region engine-struct
// Engine holds the current regime and the bookkeeping needed for duration
// tracking and oscillation detection. Not safe for concurrent use; the
// supervisor serializes all access.
type Engine struct {
	cfg Config

	initialized bool
	startedAt   time.Time
	lastEval    time.Time

	current   contract.Regime
	enteredAt time.Time

	frozen       bool
	freezeReason string

	transitions []time.Time // committed transition timestamps, pruned to the window
}

// NewEngine creates an engine that will start in the normal regime at the
// timestamp of its first sample.
func NewEngine(cfg Config) *Engine {
	if cfg.Contract == nil {
		cfg.Contract = contract.Default()
	}
	return &Engine{cfg: cfg, current: contract.RegimeNormal}
}

// #endregion engine-struct

// #region evaluate
// Evaluate runs one classification cycle against the engine's current
// state WITHOUT committing it. It is a total function of (sample, current
// state): identical inputs against identical prior state produce identical
// snapshots. Invalid input is rejected with no state mutation.
//
// Callers apply the snapshot with Commit once the cycle's side effects
// (the ledger append) have succeeded; a snapshot that is never committed
// leaves the engine exactly as it was, so in-memory state cannot diverge
// from what was durably recorded.
func (e *Engine) Evaluate(sample factors.Sample) (Snapshot, error) {
	if err := sample.Validate(); err != nil {
		return Snapshot{}, err
	}
	ts := sample.Timestamp
	if e.initialized && !ts.After(e.lastEval) {
		return Snapshot{}, fmt.Errorf("sample timestamp %s not after previous evaluation %s",
			ts.Format(time.RFC3339Nano), e.lastEval.Format(time.RFC3339Nano))
	}
	startedAt := e.startedAt
	enteredAt := e.enteredAt
	if !e.initialized {
		startedAt = ts
		enteredAt = ts
	}

	c := e.cfg.Contract
	prev := e.current
	prevDur := ts.Sub(enteredAt)

	score := e.score(sample)
	proposed := e.bandRegime(score)

	next, decision := e.decide(score, sample.ContinuityIndex, proposed, prev, prevDur)

	// Halt-on-drift freeze: observation continues, transitions do not.
	if e.frozen && next != prev {
		decision = Decision{
			Action: ActionFrozenHold,
			Reason: fmt.Sprintf("transition %s→%s withheld: %s", prev, next, e.freezeReason),
		}
		next = prev
	}

	transitionFrom := contract.Regime("")
	if next != prev {
		transitionFrom = prev
	}

	// Advisory flag, counted as of this cycle's would-be commit. It never
	// blocks a transition.
	cutoff := ts.Add(-e.cfg.OscillationWindow)
	inWindow := 0
	for _, t := range e.transitions {
		if t.After(cutoff) {
			inWindow++
		}
	}
	if transitionFrom != "" {
		inWindow++
	}
	oscillating := e.cfg.OscillationThreshold > 0 && inWindow >= e.cfg.OscillationThreshold

	return Snapshot{
		Timestamp:           ts,
		ElapsedS:            ts.Sub(startedAt).Seconds(),
		Factors:             sample,
		Score:               score,
		Regime:              next,
		Posture:             c.PostureFor(next),
		PreviousRegime:      prev,
		PreviousDurationS:   prevDur.Seconds(),
		TransitionFrom:      transitionFrom,
		Decision:            decision,
		OscillationDetected: oscillating,
		Frozen:              e.frozen,
	}, nil
}

// Commit applies a snapshot produced by Evaluate. Snapshots must be
// committed in evaluation order; a snapshot whose ledger append was
// rejected is simply dropped, leaving the engine on its previous state
// and timestamp.
func (e *Engine) Commit(snap Snapshot) {
	ts := snap.Timestamp
	if !e.initialized {
		e.initialized = true
		e.startedAt = ts
		e.enteredAt = ts
	}
	if snap.Transitioned() {
		e.current = snap.Regime
		e.enteredAt = ts
		e.transitions = append(e.transitions, ts)
	}
	e.lastEval = ts

	// Prune the trailing oscillation window.
	cutoff := ts.Add(-e.cfg.OscillationWindow)
	kept := e.transitions[:0]
	for _, t := range e.transitions {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	e.transitions = kept
}

// #endregion evaluate

// #region decide
// decide applies the transition rules to pre-transition state and returns
// the next regime with the decision record.
func (e *Engine) decide(
	score, continuity float64,
	proposed, current contract.Regime,
	timeIn time.Duration,
) (contract.Regime, Decision) {
	c := e.cfg.Contract

	// Upgrades apply immediately, including escalation out of recovery.
	if proposed.Severity() > current.Severity() {
		return proposed, Decision{
			Action: ActionUpgrade,
			Reason: fmt.Sprintf("score %.4f in %s band", score, proposed),
		}
	}

	if current == contract.RegimeRecovery {
		minDur := c.MinDuration(contract.RegimeRecovery)
		switch {
		case continuity < c.RecoveryExitContinuity:
			return current, Decision{
				Action: ActionDowngradeBlocked,
				Reason: fmt.Sprintf("recovery gate: continuity %.4f below %.2f", continuity, c.RecoveryExitContinuity),
			}
		case timeIn < minDur:
			return current, Decision{
				Action: ActionDowngradeBlocked,
				Reason: fmt.Sprintf("recovery gate: held %.0fs of %.0fs minimum", timeIn.Seconds(), minDur.Seconds()),
			}
		}
		return contract.RegimeNormal, Decision{
			Action: ActionDowngrade,
			Reason: fmt.Sprintf("recovery complete: continuity %.4f, held %.0fs", continuity, timeIn.Seconds()),
		}
	}

	if proposed.Severity() < current.Severity() {
		band, _ := c.BandFor(current)
		floor := band.Low - c.HysteresisMargin
		if score >= floor {
			return current, Decision{
				Action: ActionDowngradeBlocked,
				Reason: fmt.Sprintf("hysteresis: score %.4f above floor %.4f", score, floor),
			}
		}
		minDur := c.MinDuration(current)
		if timeIn < minDur {
			return current, Decision{
				Action: ActionDowngradeBlocked,
				Reason: fmt.Sprintf("min duration: held %.0fs of %.0fs", timeIn.Seconds(), minDur.Seconds()),
			}
		}
		target := proposed
		if current == contract.RegimeControlledDegradation ||
			current == contract.RegimeEmergencyStabilization {
			target = contract.RegimeRecovery
		}
		return target, Decision{
			Action: ActionDowngrade,
			Reason: fmt.Sprintf("score %.4f below floor %.4f after %.0fs", score, floor, timeIn.Seconds()),
		}
	}

	return current, Decision{
		Action: ActionHold,
		Reason: fmt.Sprintf("score %.4f within %s band", score, current),
	}
}

// #endregion decide

// #region scoring
// score computes the weighted regime score. Kept inside the engine so the
// oracle's implementation stays an independent derivation of the same
// contract constants.
func (e *Engine) score(s factors.Sample) float64 {
	w := e.cfg.Contract.Weights
	v := w.CompositeRisk*s.CompositeRisk +
		w.MetaInstability*s.MetaInstability +
		w.PredictiveCollapseRisk*s.PredictiveCollapseRisk +
		w.ConsistencyGap*s.ConsistencyGap +
		w.ContinuityIndex*(1.0-s.ContinuityIndex)
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// bandRegime maps a score to its banded regime.
func (e *Engine) bandRegime(score float64) contract.Regime {
	for _, r := range []contract.Regime{
		contract.RegimeNormal,
		contract.RegimeHeightened,
		contract.RegimeControlledDegradation,
		contract.RegimeEmergencyStabilization,
	} {
		if b, ok := e.cfg.Contract.BandFor(r); ok && b.Contains(score) {
			return r
		}
	}
	return contract.RegimeEmergencyStabilization
}

// #endregion scoring

// #region freeze
// Freeze stops the engine from committing further transitions. Evaluation
// and logging continue. Sticky until ClearFreeze.
func (e *Engine) Freeze(reason string) {
	e.frozen = true
	e.freezeReason = reason
}

// ClearFreeze re-enables transitions. Operator action.
func (e *Engine) ClearFreeze() {
	e.frozen = false
	e.freezeReason = ""
}

// Frozen reports whether transitions are currently withheld.
func (e *Engine) Frozen() bool {
	return e.frozen
}

// #endregion freeze

// #region state
// Current returns the regime the engine holds right now.
func (e *Engine) Current() contract.Regime {
	return e.current
}

// TimeIn returns how long the engine has held the current regime as of ts.
func (e *Engine) TimeIn(ts time.Time) time.Duration {
	if !e.initialized {
		return 0
	}
	return ts.Sub(e.enteredAt)
}

// #endregion state
