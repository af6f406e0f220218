package engine

import (
	"time"

	"regimegov/internal/contract"
	"regimegov/internal/factors"
)

// #region config
// Config holds the engine's tuning knobs. The contract carries all scoring
// and transition constants; the oscillation window is engine-local.
type Config struct {
	Contract             *contract.Contract
	OscillationWindow    time.Duration // trailing window for transition counting
	OscillationThreshold int           // transitions within window that set the advisory flag
}

// DefaultConfig returns the canonical contract with the default 300s/3
// oscillation window.
func DefaultConfig() Config {
	return Config{
		Contract:             contract.Default(),
		OscillationWindow:    300 * time.Second,
		OscillationThreshold: 3,
	}
}

// #endregion config

// #region decision
// Decision records what the engine decided for one evaluation cycle.
type Decision struct {
	Action string // "upgrade" | "downgrade" | "hold" | "downgrade_blocked" | "frozen_hold"
	Reason string
}

const (
	ActionUpgrade          = "upgrade"
	ActionDowngrade        = "downgrade"
	ActionHold             = "hold"
	ActionDowngradeBlocked = "downgrade_blocked"
	ActionFrozenHold       = "frozen_hold"
)

// #endregion decision

// #region snapshot
// Snapshot is one evaluation's full output. Immutable after creation.
//
// PreviousRegime and PreviousDurationS are the PRE-transition values the
// engine held before committing this cycle's decision. The ledger feeds
// exactly these to the oracle for cross-checking; evaluating the oracle
// against post-transition state would make every downgrade self-consistent.
type Snapshot struct {
	Timestamp time.Time
	ElapsedS  float64 // seconds since engine start

	Factors factors.Sample
	Score   float64

	Regime  contract.Regime
	Posture contract.Posture

	PreviousRegime    contract.Regime
	PreviousDurationS float64

	// TransitionFrom is set only when a transition was committed this cycle.
	TransitionFrom contract.Regime

	Decision            Decision
	OscillationDetected bool // advisory only, never blocks a transition
	Frozen              bool
}

// Transitioned reports whether this cycle committed a regime change.
func (s Snapshot) Transitioned() bool {
	return s.TransitionFrom != ""
}

// PreviousDuration returns the pre-transition hold time as a duration.
func (s Snapshot) PreviousDuration() time.Duration {
	return time.Duration(s.PreviousDurationS * float64(time.Second))
}

// #endregion snapshot
