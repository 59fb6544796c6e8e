// Package storage defines the narrow persistence contracts the core
// depends on. The core never imports a concrete transport or database
// driver; adapters live in subpackages and are injected.
package storage

import (
	"context"
	"fmt"
)

// PersistenceError reports an injected-dependency failure. It is
// propagated to the caller, never swallowed; retry and backoff belong
// to the adapters, not the core.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Record is one entry of an append-only log. Offset is assigned by the
// log at append time and is strictly increasing. KnowledgeTime is the
// RFC 3339 UTC instant the log learned the record, stamped by the
// adapter (bitemporal: the payload carries its own event time).
type Record struct {
	Offset        int64
	Data          []byte
	KnowledgeTime string
}

// EventLog is an append-only byte log. History is never edited;
// current state is always a fold over the log.
type EventLog interface {
	// Append stores data and returns its offset.
	Append(ctx context.Context, data []byte) (int64, error)

	// Replay returns records with from <= Offset < to, in offset
	// order. to < 0 means "to the end".
	Replay(ctx context.Context, from, to int64) ([]Record, error)

	// End returns the offset one past the last record.
	End(ctx context.Context) (int64, error)
}

// KeyValueStore is a flat byte store keyed by string. Used for
// content-addressed records and materialized snapshots.
type KeyValueStore interface {
	Put(ctx context.Context, key string, value []byte) error

	// Get returns (value, true, nil) when present and
	// (nil, false, nil) when absent; errors are transport failures.
	Get(ctx context.Context, key string) ([]byte, bool, error)
}
