// Package supervisor wires the per-cycle pipeline: engine evaluation,
// oracle cross-check on pre-transition state, drift guarding, and the
// ledger append. One supervisor is constructed at process start and passed
// by handle to every consumer; there is no ambient global state.
package supervisor

import (
	"fmt"
	"log"
	"sync"

	"regimegov/internal/contract"
	"regimegov/internal/drift"
	"regimegov/internal/engine"
	"regimegov/internal/factors"
	"regimegov/internal/ledger"
	"regimegov/internal/oracle"
)

// #region config
// Config is the immutable policy bundle for a supervisor.
type Config struct {
	Engine engine.Config
	// HaltOnDrift freezes further regime transitions after a drift event
	// until an operator clears the flag. Observation continues regardless.
	HaltOnDrift bool
}

// DefaultConfig enables the canonical contract without halt-on-drift.
func DefaultConfig() Config {
	return Config{Engine: engine.DefaultConfig()}
}

// #endregion config

// #region supervisor-struct
// Supervisor serializes the evaluate→cross-check→append pipeline under a
// single writer lock so hash-chain ordering and timestamp monotonicity are
// never raced. Ledger queries stay concurrent with the writer.
type Supervisor struct {
	mu sync.Mutex

	cfg    Config
	c      *contract.Contract
	engine *engine.Engine
	guard  *drift.Guard
	ledger *ledger.Ledger
	sink   AlertSink
}

// New builds a supervisor around an opened ledger. A nil sink selects the
// no-op implementation.
func New(cfg Config, led *ledger.Ledger, sink AlertSink) *Supervisor {
	if cfg.Engine.Contract == nil {
		cfg.Engine = engine.DefaultConfig()
	}
	if sink == nil {
		sink = NopAlertSink{}
	}
	return &Supervisor{
		cfg:    cfg,
		c:      cfg.Engine.Contract,
		engine: engine.NewEngine(cfg.Engine),
		guard:  drift.NewGuard(cfg.Engine.Contract),
		ledger: led,
		sink:   sink,
	}
}

// #endregion supervisor-struct

// #region cycle
// Cycle runs one full evaluation cycle for a factor sample. Validation
// failures reject the sample with no state change; ledger append failures
// surface as-is.
func (s *Supervisor) Cycle(sample factors.Sample) (CycleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.engine.Evaluate(sample)
	if err != nil {
		return CycleResult{}, fmt.Errorf("evaluate: %w", err)
	}

	// Oracle cross-check against the PRE-transition state the engine held
	// before committing. A panic in the oracle is a programming defect:
	// converted to a drift reason here rather than crashing the host.
	oracleScore, oracleRegime, oracleFailed := s.oracleEval(snap)

	var prev *ledger.Entry
	if last, ok := s.ledger.Last(); ok {
		prev = &last
	}
	verdict := s.guard.Check(snap, oracleRegime, oracleFailed, prev, s.ledger.LastHash())

	entry := buildEntry(snap, oracleRegime, oracleScore, verdict)
	appended, err := s.ledger.Append(entry)
	if err != nil {
		// The evaluation is discarded: the engine never commits a
		// transition the ledger did not durably record.
		return CycleResult{}, err
	}
	s.engine.Commit(snap)

	halted := false
	if verdict.DriftDetected {
		s.sink.DriftDetected(appended)
		if s.cfg.HaltOnDrift && !s.engine.Frozen() {
			s.engine.Freeze(fmt.Sprintf("drift at entry %.12s: %v", appended.EntryID, appended.DriftReasons))
			halted = true
			log.Printf("[GOV] halt-on-drift: transitions frozen at entry %.12s", appended.EntryID)
		}
	}

	return CycleResult{Snapshot: snap, Entry: appended, Verdict: verdict, Halted: halted}, nil
}

// oracleEval re-derives the cycle through the oracle, recovering from any
// defect so the pipeline keeps observing.
func (s *Supervisor) oracleEval(snap engine.Snapshot) (score float64, regime contract.Regime, failed bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[GOV] oracle panic: %v", r)
			failed = true
		}
	}()
	score = oracle.Score(s.c, snap.Factors)
	regime = oracle.Classify(s.c, score, snap.Factors.ContinuityIndex,
		snap.PreviousRegime, snap.PreviousDuration())
	return score, regime, false
}

// #endregion cycle

// #region build-entry
func buildEntry(
	snap engine.Snapshot,
	oracleRegime contract.Regime,
	oracleScore float64,
	verdict drift.Verdict,
) ledger.Entry {
	e := ledger.Entry{
		Timestamp: snap.Timestamp,
		ElapsedS:  snap.ElapsedS,
		Factors:   snap.Factors.Map(),

		ORPRegime:         snap.Regime,
		ORPRegimeScore:    snap.Score,
		OracleRegime:      oracleRegime,
		OracleRegimeScore: oracleScore,

		DualModalityAgreement: verdict.Agreement,

		Posture: snap.Posture,

		HysteresisEnforced:  verdict.HysteresisEnforced,
		MinDurationEnforced: verdict.MinDurationEnforced,
		LedgerContinuity:    verdict.LedgerContinuity,
		AmplitudeValid:      verdict.AmplitudeValid,

		DriftDetected: verdict.DriftDetected,
		DriftReasons:  verdict.ReasonStrings(),

		OscillationDetected: snap.OscillationDetected,
		DecisionAction:      snap.Decision.Action,
		DecisionReason:      snap.Decision.Reason,
	}
	if snap.Transitioned() {
		e.TransitionFrom = snap.TransitionFrom
		e.TransitionDurationS = snap.PreviousDurationS
	}
	return e
}

// #endregion build-entry

// #region operator
// ClearFreeze re-enables transitions after an operator resolved a drift
// event.
func (s *Supervisor) ClearFreeze() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.ClearFreeze()
	log.Printf("[GOV] freeze cleared by operator")
}

// Frozen reports whether halt-on-drift is currently withholding transitions.
func (s *Supervisor) Frozen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Frozen()
}

// Ledger exposes the read-side of the verification ledger.
func (s *Supervisor) Ledger() *ledger.Ledger {
	return s.ledger
}

// #endregion operator
