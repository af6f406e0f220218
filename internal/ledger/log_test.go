package ledger

import (
	"bytes"
	"errors"
	"testing"
)

// flakySegment fails a configurable number of writes the way a torn disk
// write would: part of the record lands before the error surfaces.
type flakySegment struct {
	buf        bytes.Buffer
	failWrites int
	failSyncs  int
	partial    int
}

func (s *flakySegment) Write(p []byte) (int, error) {
	if s.failWrites > 0 {
		s.failWrites--
		n := s.partial
		if n > len(p) {
			n = len(p)
		}
		s.buf.Write(p[:n])
		return n, errors.New("device write fault")
	}
	return s.buf.Write(p)
}

func (s *flakySegment) Sync() error {
	if s.failSyncs > 0 {
		s.failSyncs--
		return errors.New("device sync fault")
	}
	return nil
}

func (s *flakySegment) Truncate(size int64) error {
	s.buf.Truncate(int(size))
	return nil
}

func (s *flakySegment) Close() error { return nil }

func TestWriteLineRetryDiscardsPartialRecord(t *testing.T) {
	seg := &flakySegment{failWrites: 1, partial: 7}
	l := &appendLog{path: "seg.log", f: seg}

	if err := l.writeLine([]byte(`{"seq":1}`)); err != nil {
		t.Fatalf("writeLine: %v", err)
	}
	if got := seg.buf.String(); got != "{\"seq\":1}\n" {
		t.Fatalf("segment holds %q, want exactly one clean record", got)
	}
	if l.size != int64(seg.buf.Len()) {
		t.Fatalf("tracked size %d, segment has %d bytes", l.size, seg.buf.Len())
	}
}

func TestWriteLineRetryDiscardsSyncedButUnackedRecord(t *testing.T) {
	// The write lands in full but the sync fails: the retry must replace
	// the record, not append a duplicate.
	seg := &flakySegment{failSyncs: 1}
	l := &appendLog{path: "seg.log", f: seg}

	if err := l.writeLine([]byte(`{"seq":1}`)); err != nil {
		t.Fatalf("writeLine: %v", err)
	}
	if got := seg.buf.String(); got != "{\"seq\":1}\n" {
		t.Fatalf("segment holds %q, want exactly one clean record", got)
	}
}

func TestWriteLineHealsResidueFromExhaustedRetries(t *testing.T) {
	seg := &flakySegment{failWrites: 3, partial: 4}
	l := &appendLog{path: "seg.log", f: seg}

	err := l.writeLine([]byte(`{"seq":1}`))
	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("got %v, want PersistenceError after exhausted retries", err)
	}

	// The failed call left residue behind; the next record must start at
	// the last synced offset, not after the stray bytes.
	if err := l.writeLine([]byte(`{"seq":2}`)); err != nil {
		t.Fatalf("writeLine after device recovery: %v", err)
	}
	if got := seg.buf.String(); got != "{\"seq\":2}\n" {
		t.Fatalf("segment holds %q, want exactly one clean record", got)
	}
}
