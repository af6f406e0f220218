package ledger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"regimegov/internal/contract"
)

var base = time.Unix(1700000000, 0).UTC()

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	return Config{
		Path:          filepath.Join(dir, "avl.log"),
		IndexPath:     filepath.Join(dir, "avl.idx"),
		NodeID:        "node-test",
		EngineVersion: "orp-test",
	}
}

func openLedger(t *testing.T, cfg Config) *Ledger {
	t.Helper()
	l, err := Open(cfg)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func candidate(offset time.Duration, regime contract.Regime, score float64) Entry {
	return Entry{
		Timestamp:         base.Add(offset),
		ElapsedS:          offset.Seconds(),
		Factors:           map[string]float64{"composite_risk": score},
		ORPRegime:         regime,
		ORPRegimeScore:    score,
		OracleRegime:      regime,
		OracleRegimeScore: score,

		DualModalityAgreement: true,
		Posture:               contract.Posture{ThresholdMultiplier: 1.0, TrafficLimit: 1.0},
		HysteresisEnforced:    true,
		MinDurationEnforced:   true,
		LedgerContinuity:      true,
		AmplitudeValid:        true,
		DecisionAction:        "hold",
		DecisionReason:        "test",
	}
}

func mustAppend(t *testing.T, l *Ledger, e Entry) Entry {
	t.Helper()
	out, err := l.Append(e)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	return out
}

func TestOpenMissingFileStartsFresh(t *testing.T) {
	l := openLedger(t, testConfig(t))
	if l.Len() != 0 {
		t.Fatalf("fresh ledger has %d entries", l.Len())
	}
	if l.LastHash() != ZeroHash {
		t.Fatalf("fresh ledger last hash %q, want zero sentinel", l.LastHash())
	}
}

func TestAppendChainsEntries(t *testing.T) {
	l := openLedger(t, testConfig(t))

	e1 := mustAppend(t, l, candidate(0, contract.RegimeNormal, 0.10))
	e2 := mustAppend(t, l, candidate(10*time.Second, contract.RegimeNormal, 0.12))
	e3 := mustAppend(t, l, candidate(20*time.Second, contract.RegimeNormal, 0.14))

	if e1.PrevEntryHash != ZeroHash {
		t.Fatalf("first entry links to %q, want zero sentinel", e1.PrevEntryHash)
	}
	if e2.PrevEntryHash != e1.EntryID {
		t.Fatal("second entry does not link to first")
	}
	if e3.PrevEntryHash != e2.EntryID {
		t.Fatal("third entry does not link to second")
	}
	if e1.NodeID != "node-test" || e1.EngineVersion != "orp-test" {
		t.Fatalf("entry metadata not stamped: %q %q", e1.NodeID, e1.EngineVersion)
	}

	ok, violations := l.VerifyIntegrity()
	if !ok {
		t.Fatalf("chain should verify: %v", violations)
	}
	if l.LastHash() != e3.EntryID {
		t.Fatal("last hash should track the newest entry")
	}
}

func TestAppendRejectsTimestampRegression(t *testing.T) {
	l := openLedger(t, testConfig(t))
	mustAppend(t, l, candidate(10*time.Second, contract.RegimeNormal, 0.10))

	_, err := l.Append(candidate(10*time.Second, contract.RegimeNormal, 0.11))
	if !errors.Is(err, ErrTimestampRegression) {
		t.Fatalf("equal timestamp: got %v, want ErrTimestampRegression", err)
	}
	_, err = l.Append(candidate(0, contract.RegimeNormal, 0.11))
	if !errors.Is(err, ErrTimestampRegression) {
		t.Fatalf("earlier timestamp: got %v, want ErrTimestampRegression", err)
	}

	// The rejected appends left the ledger untouched.
	if l.Len() != 1 {
		t.Fatalf("ledger has %d entries after rejections, want 1", l.Len())
	}
	ok, _ := l.VerifyIntegrity()
	if !ok {
		t.Fatal("chain should still verify")
	}
}

func TestReloadVerifiesChain(t *testing.T) {
	cfg := testConfig(t)
	l := openLedger(t, cfg)
	mustAppend(t, l, candidate(0, contract.RegimeNormal, 0.10))
	mustAppend(t, l, candidate(10*time.Second, contract.RegimeHeightened, 0.35))
	last := mustAppend(t, l, candidate(20*time.Second, contract.RegimeHeightened, 0.40))
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if reopened.Len() != 3 {
		t.Fatalf("reloaded %d entries, want 3", reopened.Len())
	}
	if reopened.LastHash() != last.EntryID {
		t.Fatal("reloaded last hash does not match")
	}
	// Appends continue the chain across the restart.
	e4 := mustAppend(t, reopened, candidate(30*time.Second, contract.RegimeHeightened, 0.42))
	if e4.PrevEntryHash != last.EntryID {
		t.Fatal("post-restart entry does not link to pre-restart tail")
	}
}

func TestTamperedEntryIsLocalized(t *testing.T) {
	cfg := testConfig(t)
	l := openLedger(t, cfg)
	mustAppend(t, l, candidate(0, contract.RegimeNormal, 0.10))
	mustAppend(t, l, candidate(10*time.Second, contract.RegimeNormal, 0.12))
	mustAppend(t, l, candidate(20*time.Second, contract.RegimeNormal, 0.14))
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Flip one stored value in the middle entry.
	data, err := os.ReadFile(cfg.Path)
	if err != nil {
		t.Fatal(err)
	}
	tampered := strings.Replace(string(data), `"elapsed_s":10`, `"elapsed_s":99`, 1)
	if tampered == string(data) {
		t.Fatal("tamper target not found in stored log")
	}
	if err := os.WriteFile(cfg.Path, []byte(tampered), 0o644); err != nil {
		t.Fatal(err)
	}

	ok, violations, err := VerifySegment(cfg.Path, ZeroHash)
	if err != nil {
		t.Fatalf("verify segment: %v", err)
	}
	if ok {
		t.Fatal("tampered segment should not verify")
	}
	if len(violations) != 1 || violations[0].Index != 1 {
		t.Fatalf("violations %v, want exactly index 1", violations)
	}

	// A corrupted segment refuses to open for writing.
	cfg2 := cfg
	cfg2.IndexPath = filepath.Join(t.TempDir(), "avl.idx")
	_, err = Open(cfg2)
	var cerr *CorruptionError
	if !errors.As(err, &cerr) {
		t.Fatalf("open returned %v, want CorruptionError", err)
	}
}

func TestRotateCarriesHashForward(t *testing.T) {
	cfg := testConfig(t)
	l := openLedger(t, cfg)
	mustAppend(t, l, candidate(0, contract.RegimeNormal, 0.10))
	tail := mustAppend(t, l, candidate(10*time.Second, contract.RegimeNormal, 0.12))

	newPath := filepath.Join(filepath.Dir(cfg.Path), "avl-001.log")
	if err := l.Rotate(newPath); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if l.Len() != 0 {
		t.Fatalf("rotated segment has %d entries, want 0", l.Len())
	}

	e3 := mustAppend(t, l, candidate(20*time.Second, contract.RegimeNormal, 0.14))
	if e3.PrevEntryHash != tail.EntryID {
		t.Fatal("first post-rotation entry does not link to pre-rotation tail")
	}

	// Timestamp monotonicity spans the rotation boundary.
	if _, err := l.Append(candidate(10*time.Second, contract.RegimeNormal, 0.15)); !errors.Is(err, ErrTimestampRegression) {
		t.Fatalf("got %v, want ErrTimestampRegression across rotation", err)
	}

	ok, violations := l.VerifyIntegrity()
	if !ok {
		t.Fatalf("rotated chain should verify: %v", violations)
	}
	if ok, violations, err := VerifySegment(newPath, tail.EntryID); err != nil || !ok {
		t.Fatalf("stored rotated segment should verify against carried hash: %v %v", violations, err)
	}
}

func TestQueryIndex(t *testing.T) {
	l := openLedger(t, testConfig(t))
	mustAppend(t, l, candidate(0, contract.RegimeNormal, 0.10))
	drifted := candidate(10*time.Second, contract.RegimeHeightened, 0.35)
	drifted.DriftDetected = true
	drifted.DriftReasons = []string{"dual_modality_disagreement"}
	mustAppend(t, l, drifted)
	mustAppend(t, l, candidate(20*time.Second, contract.RegimeHeightened, 0.40))
	mustAppend(t, l, candidate(30*time.Second, contract.RegimeNormal, 0.12))

	latest, err := l.GetLatest(2)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if len(latest) != 2 || latest[0].ElapsedS != 20 || latest[1].ElapsedS != 30 {
		t.Fatalf("latest(2) returned wrong entries: %+v", latest)
	}

	window, err := l.QueryByTimeWindow(base.Add(5*time.Second), base.Add(25*time.Second))
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if len(window) != 2 {
		t.Fatalf("window returned %d entries, want 2", len(window))
	}

	heightened, err := l.QueryByRegime(contract.RegimeHeightened)
	if err != nil {
		t.Fatalf("by regime: %v", err)
	}
	if len(heightened) != 2 {
		t.Fatalf("regime query returned %d entries, want 2", len(heightened))
	}

	drifts, err := l.QueryDriftEvents()
	if err != nil {
		t.Fatalf("drift events: %v", err)
	}
	if len(drifts) != 1 || !drifts[0].DriftDetected {
		t.Fatalf("drift query returned %+v, want the one drifted entry", drifts)
	}
}

func TestIndexRebuiltOnReload(t *testing.T) {
	cfg := testConfig(t)
	l := openLedger(t, cfg)
	mustAppend(t, l, candidate(0, contract.RegimeNormal, 0.10))
	mustAppend(t, l, candidate(10*time.Second, contract.RegimeHeightened, 0.35))
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Deleting the index must not matter: it is derived from the log.
	if err := os.Remove(cfg.IndexPath); err != nil {
		t.Fatal(err)
	}
	reopened := openLedger(t, cfg)
	heightened, err := reopened.QueryByRegime(contract.RegimeHeightened)
	if err != nil {
		t.Fatalf("by regime after rebuild: %v", err)
	}
	if len(heightened) != 1 {
		t.Fatalf("rebuilt index returned %d entries, want 1", len(heightened))
	}
}

func TestEntryIDIsContentHash(t *testing.T) {
	e := candidate(0, contract.RegimeNormal, 0.10)
	id1, err := e.ComputeEntryID()
	if err != nil {
		t.Fatal(err)
	}
	// The id field itself is excluded from the hash.
	e.EntryID = id1
	id2, err := e.ComputeEntryID()
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 {
		t.Fatal("entry id must not depend on the stored id field")
	}

	e.ORPRegimeScore = 0.11
	id3, err := e.ComputeEntryID()
	if err != nil {
		t.Fatal(err)
	}
	if id3 == id1 {
		t.Fatal("content change must change the entry id")
	}
	if len(id1) != 64 {
		t.Fatalf("entry id length %d, want 64 hex chars", len(id1))
	}
}
