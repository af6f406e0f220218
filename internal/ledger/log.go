package ledger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// #region applog
// segmentFile is the slice of *os.File the append log writes through.
// Tests substitute a fault-injecting implementation.
type segmentFile interface {
	io.Writer
	Sync() error
	Truncate(size int64) error
	Close() error
}

// appendLog is the durable JSONL segment: one canonical record per line,
// oldest first, never rewritten in place. size tracks the byte offset of
// the last fully synced record.
type appendLog struct {
	path string
	f    segmentFile
	size int64
}

func openAppendLog(path string) (*appendLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log %s: %w", path, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat log %s: %w", path, err)
	}
	return &appendLog{path: path, f: f, size: st.Size()}, nil
}

// writeLine appends one record with bounded retry and backoff, syncing to
// durable storage before reporting success. A failed attempt may have left
// a partial record behind, so the segment is truncated back to the last
// synced offset before every attempt; a retry then rewrites the whole line
// instead of stacking it after stray bytes.
func (l *appendLog) writeLine(line []byte) error {
	const attempts = 3
	backoff := 25 * time.Millisecond
	rec := append(line, '\n')

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}
		if err := l.f.Truncate(l.size); err != nil {
			lastErr = err
			continue
		}
		if _, err := l.f.Write(rec); err != nil {
			lastErr = err
			continue
		}
		if err := l.f.Sync(); err != nil {
			lastErr = err
			continue
		}
		l.size += int64(len(rec))
		return nil
	}
	return &PersistenceError{Op: "append " + l.path, Err: lastErr}
}

func (l *appendLog) close() error {
	return l.f.Close()
}

// #endregion applog

// #region read-log
// ReadLog parses a ledger segment file into entries, oldest first.
func ReadLog(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log %s: %w", path, err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("parse %s line %d: %w", path, lineNo, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log %s: %w", path, err)
	}
	return entries, nil
}

// VerifySegment re-verifies a stored segment against its starting sentinel.
// Rotated segments pass the previous segment's last entry hash; the first
// segment uses ZeroHash.
func VerifySegment(path, sentinel string) (bool, []Violation, error) {
	entries, err := ReadLog(path)
	if err != nil {
		return false, nil, err
	}
	violations := verifyChain(entries, sentinel)
	return len(violations) == 0, violations, nil
}

// #endregion read-log
