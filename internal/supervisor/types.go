package supervisor

import (
	"log"

	"regimegov/internal/drift"
	"regimegov/internal/engine"
	"regimegov/internal/ledger"
)

// #region alert-sink
// AlertSink receives drift events for external alerting. Implementations
// must not block: the supervisor calls them inline under its cycle lock.
type AlertSink interface {
	DriftDetected(entry ledger.Entry)
}

// NopAlertSink discards drift events. Selected at construction when no
// external alerting is wired.
type NopAlertSink struct{}

func (NopAlertSink) DriftDetected(ledger.Entry) {}

// LogAlertSink writes drift events to the process log.
type LogAlertSink struct{}

func (LogAlertSink) DriftDetected(e ledger.Entry) {
	log.Printf("[DRIFT] entry=%.12s regime=%s oracle=%s reasons=%v",
		e.EntryID, e.ORPRegime, e.OracleRegime, e.DriftReasons)
}

// #endregion alert-sink

// #region cycle-result
// CycleResult is one evaluate→cross-check→append pass.
type CycleResult struct {
	Snapshot engine.Snapshot
	Entry    ledger.Entry
	Verdict  drift.Verdict
	// Halted is set when this cycle's drift verdict froze the engine.
	Halted bool
}

// #endregion cycle-result
