package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"regimegov/internal/contract"
)

// ZeroHash is the genesis sentinel for the first entry of an unrotated log.
var ZeroHash = strings.Repeat("0", 64)

// #region entry
// Entry is one ledger record: the engine's snapshot, the oracle's
// independent verdict on the same pre-transition inputs, and the drift
// guard's invariant checks, hash-linked to the previous entry.
//
// Field order is the canonical serialization order; EntryID is the SHA-256
// of the canonical JSON with the id itself excluded. Never reorder or
// rename fields without migrating stored chains.
type Entry struct {
	EntryID       string    `json:"entry_id"`
	PrevEntryHash string    `json:"prev_entry_hash"`
	Timestamp     time.Time `json:"timestamp"`
	ElapsedS      float64   `json:"elapsed_s"`

	NodeID        string `json:"node_id"`
	EngineVersion string `json:"engine_version"`

	Factors map[string]float64 `json:"factors"`

	ORPRegime         contract.Regime `json:"orp_regime"`
	ORPRegimeScore    float64         `json:"orp_regime_score"`
	OracleRegime      contract.Regime `json:"oracle_regime"`
	OracleRegimeScore float64         `json:"oracle_regime_score"`

	DualModalityAgreement bool `json:"dual_modality_agreement"`

	TransitionFrom      contract.Regime `json:"transition_from,omitempty"`
	TransitionDurationS float64         `json:"transition_duration_s,omitempty"`

	Posture contract.Posture `json:"posture"`

	HysteresisEnforced  bool `json:"hysteresis_enforced"`
	MinDurationEnforced bool `json:"min_duration_enforced"`
	LedgerContinuity    bool `json:"ledger_continuity"`
	AmplitudeValid      bool `json:"amplitude_valid"`

	DriftDetected bool     `json:"drift_detected"`
	DriftReasons  []string `json:"drift_reasons,omitempty"`

	OscillationDetected bool   `json:"oscillation_detected"`
	DecisionAction      string `json:"decision_action"`
	DecisionReason      string `json:"decision_reason"`
}

// #endregion entry

// #region hashing
// CanonicalJSON serializes the entry with the id excluded, in canonical
// field order. Map keys are sorted by encoding/json, so the factor map is
// reproducible.
func (e Entry) CanonicalJSON() ([]byte, error) {
	e.EntryID = ""
	return json.Marshal(e)
}

// ComputeEntryID derives the content hash over the canonical serialization.
func (e Entry) ComputeEntryID() (string, error) {
	data, err := e.CanonicalJSON()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// #endregion hashing

// #region verify-chain
// Violation locates one integrity failure in a ledger slice.
type Violation struct {
	Index  int
	Reason string
}

// verifyChain recomputes every entry hash and checks linkage and strict
// timestamp monotonicity against the segment sentinel.
func verifyChain(entries []Entry, sentinel string) []Violation {
	var violations []Violation
	prevHash := sentinel
	var prevTS time.Time

	for i, e := range entries {
		id, err := e.ComputeEntryID()
		if err != nil {
			violations = append(violations, Violation{Index: i, Reason: "canonical serialization failed: " + err.Error()})
			continue
		}
		if id != e.EntryID {
			violations = append(violations, Violation{Index: i, Reason: "entry hash mismatch"})
		}
		if e.PrevEntryHash != prevHash {
			violations = append(violations, Violation{Index: i, Reason: "broken hash chain"})
		}
		if i > 0 && !e.Timestamp.After(prevTS) {
			violations = append(violations, Violation{Index: i, Reason: "timestamp not strictly increasing"})
		}
		prevHash = e.EntryID
		prevTS = e.Timestamp
	}
	return violations
}

// #endregion verify-chain
