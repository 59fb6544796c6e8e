// Package memlog provides in-memory storage adapters, used by tests
// and by replay clones that must not touch the source log.
package memlog

import (
	"context"
	"sync"
	"time"

	"github.com/roach88/tally/internal/storage"
)

// Log is an in-memory append-only EventLog.
// Safe for concurrent use; readers never block the writer beyond the
// copy under the lock.
type Log struct {
	mu      sync.RWMutex
	records []storage.Record
	now     func() time.Time
}

// NewLog creates an empty in-memory log.
func NewLog() *Log {
	return &Log{now: time.Now}
}

// NewLogAt creates a log with an injected clock for deterministic
// knowledge-time stamps in tests.
func NewLogAt(now func() time.Time) *Log {
	return &Log{now: now}
}

// Append implements storage.EventLog.
func (l *Log) Append(_ context.Context, data []byte) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	buf := make([]byte, len(data))
	copy(buf, data)
	offset := int64(len(l.records))
	l.records = append(l.records, storage.Record{
		Offset:        offset,
		Data:          buf,
		KnowledgeTime: l.now().UTC().Format(time.RFC3339Nano),
	})
	return offset, nil
}

// Replay implements storage.EventLog.
func (l *Log) Replay(_ context.Context, from, to int64) ([]storage.Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	end := int64(len(l.records))
	if to >= 0 && to < end {
		end = to
	}
	if from < 0 {
		from = 0
	}
	if from >= end {
		return nil, nil
	}

	out := make([]storage.Record, end-from)
	copy(out, l.records[from:end])
	return out, nil
}

// End implements storage.EventLog.
func (l *Log) End(_ context.Context) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return int64(len(l.records)), nil
}

// KV is an in-memory KeyValueStore.
type KV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewKV creates an empty in-memory key-value store.
func NewKV() *KV {
	return &KV{data: make(map[string][]byte)}
}

// Put implements storage.KeyValueStore.
func (k *KV) Put(_ context.Context, key string, value []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	buf := make([]byte, len(value))
	copy(buf, value)
	k.data[key] = buf
	return nil
}

// Get implements storage.KeyValueStore.
func (k *KV) Get(_ context.Context, key string) ([]byte, bool, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	v, ok := k.data[key]
	if !ok {
		return nil, false, nil
	}
	buf := make([]byte, len(v))
	copy(buf, v)
	return buf, true, nil
}
