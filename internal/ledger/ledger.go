// Package ledger implements the Autonomous Verification Ledger: an
// append-only, hash-chained store of one entry per evaluation cycle. The
// durable form is a JSONL segment file; a derived SQLite index serves read
// queries and is rebuilt from the log on reload.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"regimegov/internal/contract"
)

// #region config
// Config locates the ledger stores and stamps entry metadata.
type Config struct {
	Path          string // JSONL segment file
	IndexPath     string // SQLite query index; defaults to Path + ".idx"
	NodeID        string
	EngineVersion string
	// Sentinel anchors the first entry's prev hash. Empty means the
	// all-zero genesis sentinel; rotation carries the previous segment's
	// last entry hash forward here.
	Sentinel string
}

// #endregion config

// #region ledger-struct
// Ledger enforces append-only semantics with strict timestamp monotonicity.
// Append is the only mutation it ever performs: no update, no delete.
// A single mutex serializes the writer; readers query the derived index.
type Ledger struct {
	mu sync.RWMutex

	cfg      Config
	log      *appendLog
	index    *queryIndex
	entries  []Entry
	sentinel string
	lastHash string
	lastTS   time.Time
}

// #endregion ledger-struct

// #region open
// Open loads an existing segment (if any), verifies the full hash chain,
// and rebuilds the query index. A failed verification is fatal: the ledger
// refuses to open for writing.
func Open(cfg Config) (*Ledger, error) {
	if cfg.IndexPath == "" {
		cfg.IndexPath = cfg.Path + ".idx"
	}
	sentinel := cfg.Sentinel
	if sentinel == "" {
		sentinel = ZeroHash
	}

	entries, err := ReadLog(cfg.Path)
	if err != nil {
		// A missing segment is a fresh ledger; anything else is corruption.
		if !errors.Is(err, os.ErrNotExist) {
			return nil, &CorruptionError{Path: cfg.Path, Violations: []Violation{{Index: -1, Reason: err.Error()}}}
		}
		entries = nil
	}
	if violations := verifyChain(entries, sentinel); len(violations) > 0 {
		return nil, &CorruptionError{Path: cfg.Path, Violations: violations}
	}

	alog, err := openAppendLog(cfg.Path)
	if err != nil {
		return nil, err
	}
	index, err := openQueryIndex(cfg.IndexPath)
	if err != nil {
		alog.close()
		return nil, err
	}
	if err := index.rebuild(entries); err != nil {
		alog.close()
		index.close()
		return nil, fmt.Errorf("rebuild index: %w", err)
	}

	l := &Ledger{
		cfg:      cfg,
		log:      alog,
		index:    index,
		entries:  entries,
		sentinel: sentinel,
		lastHash: sentinel,
	}
	if n := len(entries); n > 0 {
		l.lastHash = entries[n-1].EntryID
		l.lastTS = entries[n-1].Timestamp
	}
	return l, nil
}

// Close releases the segment file and the index database.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	ierr := l.index.close()
	if err := l.log.close(); err != nil {
		return err
	}
	return ierr
}

// #endregion open

// #region append
// Append stamps, links, hashes, and durably stores a candidate entry.
// Rejects entries that would break strict timestamp monotonicity; the
// ledger is unchanged on any failure.
func (l *Ledger) Append(e Entry) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.Timestamp = e.Timestamp.UTC()
	if e.Timestamp.IsZero() {
		return Entry{}, fmt.Errorf("%w: zero timestamp", ErrTimestampRegression)
	}
	if !l.lastTS.IsZero() && !e.Timestamp.After(l.lastTS) {
		return Entry{}, fmt.Errorf("%w: %s <= %s", ErrTimestampRegression,
			e.Timestamp.Format(time.RFC3339Nano), l.lastTS.Format(time.RFC3339Nano))
	}

	e.NodeID = l.cfg.NodeID
	e.EngineVersion = l.cfg.EngineVersion
	e.PrevEntryHash = l.lastHash

	id, err := e.ComputeEntryID()
	if err != nil {
		return Entry{}, fmt.Errorf("hash entry: %w", err)
	}
	e.EntryID = id

	// Stored form is the canonical serialization with the id filled in.
	line, err := json.Marshal(e)
	if err != nil {
		return Entry{}, fmt.Errorf("serialize entry: %w", err)
	}
	if err := l.log.writeLine(line); err != nil {
		return Entry{}, err
	}

	// The index is derived: a failure here degrades queries, never integrity.
	if err := l.index.insert(e); err != nil {
		log.Printf("[AVL] index insert failed for %s: %v", e.EntryID, err)
	}

	l.entries = append(l.entries, e)
	l.lastHash = e.EntryID
	l.lastTS = e.Timestamp
	return e, nil
}

// #endregion append

// #region verify
// VerifyIntegrity walks the full in-memory segment recomputing the hash
// chain. Used after reload and by audits.
func (l *Ledger) VerifyIntegrity() (bool, []Violation) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	violations := verifyChain(l.entries, l.sentinel)
	return len(violations) == 0, violations
}

// #endregion verify

// #region accessors
// Len returns the number of entries in the active segment.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// LastHash returns the hash the next entry will link to.
func (l *Ledger) LastHash() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastHash
}

// Last returns the most recent entry, if any.
func (l *Ledger) Last() (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.entries) == 0 {
		return Entry{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// Entries returns a snapshot copy of the active segment, oldest first.
// Safe to use concurrently with appends.
func (l *Ledger) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// #endregion accessors

// #region queries
// GetLatest returns the n most recent entries, oldest first.
func (l *Ledger) GetLatest(n int) ([]Entry, error) {
	return l.index.latest(n)
}

// QueryByTimeWindow returns entries with start <= timestamp <= end.
func (l *Ledger) QueryByTimeWindow(start, end time.Time) ([]Entry, error) {
	return l.index.window(start, end)
}

// QueryByRegime returns entries whose committed regime matches r.
func (l *Ledger) QueryByRegime(r contract.Regime) ([]Entry, error) {
	return l.index.byRegime(r)
}

// QueryDriftEvents returns every entry with drift_detected set.
func (l *Ledger) QueryDriftEvents() ([]Entry, error) {
	return l.index.driftEvents()
}

// #endregion queries

// #region rotate
// Rotate closes the active segment and starts a new one at newPath,
// carrying the last entry hash forward as the new segment's sentinel so
// the chain stays verifiable across segments. The query index keeps
// accumulating across rotations.
func (l *Ledger) Rotate(newPath string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.log.close(); err != nil {
		return fmt.Errorf("close segment: %w", err)
	}
	alog, err := openAppendLog(newPath)
	if err != nil {
		return err
	}
	l.log = alog
	l.cfg.Path = newPath
	l.sentinel = l.lastHash
	l.entries = nil
	return nil
}

// #endregion rotate
