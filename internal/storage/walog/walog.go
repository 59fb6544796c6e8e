// Package walog provides a file-backed append-only EventLog on top of
// a segmented write-ahead log. It is the lightweight durable option
// when a SQL database is not wanted.
package walog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vadiminshakov/gowal"

	"github.com/roach88/tally/internal/storage"
)

// Log implements storage.EventLog over gowal segments.
// gowal indexes are 1-based; exposed offsets are index-1 so all three
// adapters agree on offset semantics.
type Log struct {
	mu  sync.Mutex
	wal *gowal.Wal
	now func() time.Time
}

// Config controls segment layout on disk.
type Config struct {
	Dir              string
	SegmentThreshold int
	MaxSegments      int
	SyncOnWrite      bool
}

// Open creates or opens a segmented log under cfg.Dir.
func Open(cfg Config) (*Log, error) {
	if cfg.SegmentThreshold <= 0 {
		cfg.SegmentThreshold = 1000
	}
	if cfg.MaxSegments <= 0 {
		cfg.MaxSegments = 64
	}
	w, err := gowal.NewWAL(gowal.Config{
		Dir:              cfg.Dir,
		Prefix:           "seg_",
		SegmentThreshold: cfg.SegmentThreshold,
		MaxSegments:      cfg.MaxSegments,
		IsInSyncDiskMode: cfg.SyncOnWrite,
	})
	if err != nil {
		return nil, &storage.PersistenceError{Op: "walog open", Err: err}
	}
	return &Log{wal: w, now: time.Now}, nil
}

// Append implements storage.EventLog. The record key carries the
// knowledge-time stamp since gowal values are opaque payload bytes.
func (l *Log) Append(_ context.Context, data []byte) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	index := l.wal.CurrentIndex() + 1
	key := l.now().UTC().Format(time.RFC3339Nano)
	if err := l.wal.Write(index, key, data); err != nil {
		return 0, &storage.PersistenceError{Op: "walog append", Err: err}
	}
	return int64(index) - 1, nil
}

// Replay implements storage.EventLog.
func (l *Log) Replay(_ context.Context, from, to int64) ([]storage.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// The iterator yields records in write order; offsets are the
	// enumeration positions, matching the indexes assigned at Append.
	var out []storage.Record
	var offset int64
	for msg := range l.wal.Iterator() {
		if offset >= from && (to < 0 || offset < to) {
			out = append(out, storage.Record{
				Offset:        offset,
				Data:          msg.Value,
				KnowledgeTime: msg.Key,
			})
		}
		offset++
	}
	return out, nil
}

// End implements storage.EventLog.
func (l *Log) End(_ context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int64(l.wal.CurrentIndex()), nil
}

// Close flushes and closes the underlying segments.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.wal.Close(); err != nil {
		return fmt.Errorf("walog close: %w", err)
	}
	return nil
}
