package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"regimegov/internal/contract"

	_ "modernc.org/sqlite"
)

// #region schema
const indexSchema = `
CREATE TABLE IF NOT EXISTS avl_index (
	seq            INTEGER PRIMARY KEY AUTOINCREMENT,
	entry_id       TEXT NOT NULL UNIQUE,
	ts_unix_nano   INTEGER NOT NULL,
	orp_regime     TEXT NOT NULL,
	drift_detected INTEGER NOT NULL,
	entry_json     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_avl_ts ON avl_index(ts_unix_nano);
CREATE INDEX IF NOT EXISTS idx_avl_regime ON avl_index(orp_regime);
`
// #endregion schema

// #region index-struct
// queryIndex is the derived read model for ledger queries. The JSONL log is
// canonical; this SQLite store is rebuilt from it on reload and is never the
// source of truth for integrity.
type queryIndex struct {
	db *sql.DB
}

func openQueryIndex(dbPath string) (*queryIndex, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open index db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(indexSchema); err != nil {
		return nil, fmt.Errorf("migrate index: %w", err)
	}
	return &queryIndex{db: db}, nil
}

func (q *queryIndex) close() error {
	return q.db.Close()
}

// #endregion index-struct

// #region insert
func (q *queryIndex) insert(e Entry) error {
	blob, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	drift := 0
	if e.DriftDetected {
		drift = 1
	}
	_, err = q.db.Exec(
		`INSERT INTO avl_index (entry_id, ts_unix_nano, orp_regime, drift_detected, entry_json)
		 VALUES (?, ?, ?, ?, ?)`,
		e.EntryID, e.Timestamp.UnixNano(), string(e.ORPRegime), drift, string(blob),
	)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// rebuild drops all rows and reindexes the given entries in order.
func (q *queryIndex) rebuild(entries []Entry) error {
	tx, err := q.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM avl_index`); err != nil {
		return fmt.Errorf("clear index: %w", err)
	}
	for _, e := range entries {
		blob, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal entry: %w", err)
		}
		drift := 0
		if e.DriftDetected {
			drift = 1
		}
		_, err = tx.Exec(
			`INSERT INTO avl_index (entry_id, ts_unix_nano, orp_regime, drift_detected, entry_json)
			 VALUES (?, ?, ?, ?, ?)`,
			e.EntryID, e.Timestamp.UnixNano(), string(e.ORPRegime), drift, string(blob),
		)
		if err != nil {
			return fmt.Errorf("reindex entry %s: %w", e.EntryID, err)
		}
	}
	return tx.Commit()
}

// #endregion insert

// #region queries
func (q *queryIndex) latest(n int) ([]Entry, error) {
	rows, err := q.db.Query(
		`SELECT entry_json FROM avl_index ORDER BY seq DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query latest: %w", err)
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	// Oldest first, matching the on-disk order.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

func (q *queryIndex) window(start, end time.Time) ([]Entry, error) {
	rows, err := q.db.Query(
		`SELECT entry_json FROM avl_index
		 WHERE ts_unix_nano >= ? AND ts_unix_nano <= ?
		 ORDER BY seq ASC`,
		start.UnixNano(), end.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("query window: %w", err)
	}
	return scanEntries(rows)
}

func (q *queryIndex) byRegime(r contract.Regime) ([]Entry, error) {
	rows, err := q.db.Query(
		`SELECT entry_json FROM avl_index WHERE orp_regime = ? ORDER BY seq ASC`,
		string(r))
	if err != nil {
		return nil, fmt.Errorf("query regime: %w", err)
	}
	return scanEntries(rows)
}

func (q *queryIndex) driftEvents() ([]Entry, error) {
	rows, err := q.db.Query(
		`SELECT entry_json FROM avl_index WHERE drift_detected = 1 ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("query drift events: %w", err)
	}
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		var e Entry
		if err := json.Unmarshal([]byte(blob), &e); err != nil {
			return nil, fmt.Errorf("unmarshal entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// #endregion queries
