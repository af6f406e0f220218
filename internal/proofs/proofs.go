// Package proofs re-derives the four continuity invariants over a stored
// ledger slice. The checks overlap the drift guard on purpose: the guard
// runs inline per cycle, these run offline over historical data as a
// regression guard for audits and tests.
package proofs

import (
	"fmt"

	"regimegov/internal/contract"
	"regimegov/internal/ledger"
)

// #region proof
// Proof is the outcome of one batch validator: pass/fail plus the first
// offending entry index (-1 when the slice passes).
type Proof struct {
	Name        string
	Passed      bool
	FailedIndex int
	Detail      string
}

func pass(name string) Proof {
	return Proof{Name: name, Passed: true, FailedIndex: -1}
}

func fail(name string, idx int, format string, args ...any) Proof {
	return Proof{Name: name, Passed: false, FailedIndex: idx, Detail: fmt.Sprintf(format, args...)}
}

// #endregion proof

// #region ledger-continuity
// LedgerContinuity checks hash linkage and transition_from chaining
// entry-to-entry. sentinel anchors the first entry; rotated segments pass
// the carried-forward hash, full histories pass ledger.ZeroHash.
func LedgerContinuity(entries []ledger.Entry, sentinel string) Proof {
	const name = "ledger_continuity"
	prevHash := sentinel
	for i, e := range entries {
		if e.PrevEntryHash != prevHash {
			return fail(name, i, "prev hash %.12s does not link to %.12s", e.PrevEntryHash, prevHash)
		}
		if i > 0 {
			if e.TransitionFrom != "" && e.TransitionFrom != entries[i-1].ORPRegime {
				return fail(name, i, "transition_from %s does not match previous regime %s",
					e.TransitionFrom, entries[i-1].ORPRegime)
			}
			if e.TransitionFrom == "" && e.ORPRegime != entries[i-1].ORPRegime {
				return fail(name, i, "regime changed %s to %s with no transition recorded",
					entries[i-1].ORPRegime, e.ORPRegime)
			}
		}
		prevHash = e.EntryID
	}
	return pass(name)
}

// #endregion ledger-continuity

// #region temporal-continuity
// TemporalContinuity checks that timestamps and elapsed seconds strictly
// increase entry-to-entry.
func TemporalContinuity(entries []ledger.Entry) Proof {
	const name = "temporal_continuity"
	for i := 1; i < len(entries); i++ {
		if !entries[i].Timestamp.After(entries[i-1].Timestamp) {
			return fail(name, i, "timestamp %s not after %s",
				entries[i].Timestamp, entries[i-1].Timestamp)
		}
		if entries[i].ElapsedS <= entries[i-1].ElapsedS {
			return fail(name, i, "elapsed %.3fs not after %.3fs",
				entries[i].ElapsedS, entries[i-1].ElapsedS)
		}
	}
	return pass(name)
}

// #endregion temporal-continuity

// #region amplitude-continuity
// AmplitudeContinuity checks every stored posture against the declared
// amplitude bounds.
func AmplitudeContinuity(entries []ledger.Entry, c *contract.Contract) Proof {
	const name = "amplitude_continuity"
	for i, e := range entries {
		if !c.Bounds.Within(e.Posture) {
			return fail(name, i, "posture {%.2f, %.2f} outside bounds",
				e.Posture.ThresholdMultiplier, e.Posture.TrafficLimit)
		}
	}
	return pass(name)
}

// #endregion amplitude-continuity

// #region regime-continuity
// RegimeContinuity checks that every recorded downgrade actually satisfied
// hysteresis and the minimum-duration floor at the time it was recorded.
func RegimeContinuity(entries []ledger.Entry, c *contract.Contract) Proof {
	const name = "regime_continuity"
	for i, e := range entries {
		if e.TransitionFrom == "" || e.ORPRegime.Severity() >= e.TransitionFrom.Severity() {
			continue
		}
		from := e.TransitionFrom
		if from == contract.RegimeRecovery {
			if ci, ok := e.Factors["continuity_index"]; ok && ci < c.RecoveryExitContinuity {
				return fail(name, i, "recovery exit with continuity %.4f below %.2f",
					ci, c.RecoveryExitContinuity)
			}
		} else if band, ok := c.BandFor(from); ok {
			if e.ORPRegimeScore >= band.Low-c.HysteresisMargin {
				return fail(name, i, "downgrade from %s at score %.4f inside hysteresis buffer",
					from, e.ORPRegimeScore)
			}
		}
		if e.TransitionDurationS < c.MinDurations[from] {
			return fail(name, i, "downgrade from %s after %.0fs, floor is %.0fs",
				from, e.TransitionDurationS, c.MinDurations[from])
		}
	}
	return pass(name)
}

// #endregion regime-continuity

// #region validate-all
// ValidateAll runs the four proofs over a slice in a fixed order.
func ValidateAll(entries []ledger.Entry, sentinel string, c *contract.Contract) []Proof {
	return []Proof{
		LedgerContinuity(entries, sentinel),
		TemporalContinuity(entries),
		AmplitudeContinuity(entries, c),
		RegimeContinuity(entries, c),
	}
}

// #endregion validate-all
