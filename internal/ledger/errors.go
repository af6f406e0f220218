package ledger

import (
	"errors"
	"fmt"
)

// ErrTimestampRegression rejects an append whose timestamp does not strictly
// follow the last entry. The ledger is left unchanged.
var ErrTimestampRegression = errors.New("ledger: timestamp not after previous entry")

// #region corruption
// CorruptionError means a reloaded chain failed integrity verification.
// Fatal for the ledger instance: writing must not resume until an operator
// resolves the store.
type CorruptionError struct {
	Path       string
	Violations []Violation
}

func (e *CorruptionError) Error() string {
	if len(e.Violations) == 0 {
		return fmt.Sprintf("ledger %s corrupt", e.Path)
	}
	v := e.Violations[0]
	return fmt.Sprintf("ledger %s corrupt: %d violation(s), first at entry %d: %s",
		e.Path, len(e.Violations), v.Index, v.Reason)
}

// #endregion corruption

// #region persistence
// PersistenceError means the durable append failed after bounded retries.
// The entry was not indexed; in-memory state matches what is on disk.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("ledger persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// #endregion persistence
