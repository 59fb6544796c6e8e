package replay

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/roach88/tally/internal/canon"
	"github.com/roach88/tally/internal/ledger"
)

const (
	snapshotPrefix    = "snap/"
	snapshotLatestKey = "snap/latest"
)

// Snapshot is a materialized view of ledger state at a log position.
// It is derived from the log and exists for performance and
// divergence detection; the log remains the only source of truth.
type Snapshot struct {
	AsOf      time.Time
	Seq       int64
	Offset    int64
	Positions []ledger.Position

	// StateHash is the balance-state content hash at capture time.
	// A refold of the same prefix must reproduce it exactly.
	StateHash string
}

// SaveSnapshot captures the source ledger's current state and persists
// it. The source must be the live owner of the log (its state reflects
// every appended record).
func (e *Engine) SaveSnapshot(ctx context.Context, source *ledger.Ledger, asOf time.Time) (Snapshot, error) {
	if e.kv == nil {
		return Snapshot{}, fmt.Errorf("save snapshot: no key-value store injected")
	}
	offset, err := e.log.End(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	hash, err := source.StateHash()
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{
		AsOf:      asOf.UTC(),
		Seq:       source.Seq(),
		Offset:    offset,
		Positions: source.Positions(),
		StateHash: hash,
	}

	data, err := marshalSnapshot(snap)
	if err != nil {
		return Snapshot{}, err
	}
	key := snapshotPrefix + strconv.FormatInt(snap.Offset, 10)
	if err := e.kv.Put(ctx, key, data); err != nil {
		return Snapshot{}, err
	}
	if err := e.kv.Put(ctx, snapshotLatestKey, []byte(key)); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// LatestSnapshot returns the most recently saved snapshot, if any.
func (e *Engine) LatestSnapshot(ctx context.Context) (Snapshot, bool, error) {
	if e.kv == nil {
		return Snapshot{}, false, nil
	}
	keyBytes, ok, err := e.kv.Get(ctx, snapshotLatestKey)
	if err != nil || !ok {
		return Snapshot{}, false, err
	}
	data, ok, err := e.kv.Get(ctx, string(keyBytes))
	if err != nil {
		return Snapshot{}, false, err
	}
	if !ok {
		return Snapshot{}, false, fmt.Errorf("latest snapshot key %q dangles", keyBytes)
	}
	snap, err := unmarshalSnapshot(data)
	if err != nil {
		return Snapshot{}, false, err
	}
	return snap, true, nil
}

// VerifySnapshot refolds the log prefix the snapshot claims to cover
// and compares state hashes. A mismatch means the snapshot diverged
// from the log and must be discarded.
func (e *Engine) VerifySnapshot(ctx context.Context, source *ledger.Ledger, snap Snapshot) (bool, error) {
	clone, err := e.foldInto(ctx, source, 0, snap.Offset, nil)
	if err != nil {
		return false, err
	}
	hash, err := clone.StateHash()
	if err != nil {
		return false, err
	}
	return hash == snap.StateHash, nil
}

func marshalSnapshot(s Snapshot) ([]byte, error) {
	posPairs := make([]canon.Pair, 0, len(s.Positions))
	byAccount := make(map[string][]canon.Pair)
	var order []string
	for _, p := range s.Positions {
		if _, seen := byAccount[p.Account]; !seen {
			order = append(order, p.Account)
		}
		byAccount[p.Account] = append(byAccount[p.Account], canon.P(p.Instrument, canon.Num(p.Quantity)))
	}
	for _, account := range order {
		m, err := canon.NewMap(byAccount[account]...)
		if err != nil {
			return nil, err
		}
		posPairs = append(posPairs, canon.P(account, m))
	}
	balances, err := canon.NewMap(posPairs...)
	if err != nil {
		return nil, err
	}

	rec, err := canon.NewMap(
		canon.P("as_of", canon.String(s.AsOf.UTC().Format(time.RFC3339Nano))),
		canon.P("seq", canon.Int(s.Seq)),
		canon.P("offset", canon.Int(s.Offset)),
		canon.P("balances", balances),
		canon.P("state_hash", canon.String(s.StateHash)),
	)
	if err != nil {
		return nil, err
	}
	return canon.Encode(rec)
}

func unmarshalSnapshot(data []byte) (Snapshot, error) {
	v, err := canon.Decode(data)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot decode: %w", err)
	}
	m, ok := v.(canon.Map)
	if !ok {
		return Snapshot{}, fmt.Errorf("snapshot decode: not an object")
	}

	var snap Snapshot
	asOfRaw, ok := m.Get("as_of")
	if !ok {
		return Snapshot{}, fmt.Errorf("snapshot decode: missing as_of")
	}
	asOfStr, ok := asOfRaw.(canon.String)
	if !ok {
		return Snapshot{}, fmt.Errorf("snapshot decode: as_of is not a string")
	}
	asOf, err := time.Parse(time.RFC3339Nano, string(asOfStr))
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot decode: as_of: %w", err)
	}
	snap.AsOf = asOf.UTC()

	snap.Seq, err = intField(m, "seq")
	if err != nil {
		return Snapshot{}, err
	}
	snap.Offset, err = intField(m, "offset")
	if err != nil {
		return Snapshot{}, err
	}

	hashRaw, ok := m.Get("state_hash")
	if !ok {
		return Snapshot{}, fmt.Errorf("snapshot decode: missing state_hash")
	}
	hashStr, ok := hashRaw.(canon.String)
	if !ok {
		return Snapshot{}, fmt.Errorf("snapshot decode: state_hash is not a string")
	}
	snap.StateHash = string(hashStr)

	balRaw, ok := m.Get("balances")
	if !ok {
		return Snapshot{}, fmt.Errorf("snapshot decode: missing balances")
	}
	balances, ok := balRaw.(canon.Map)
	if !ok {
		return Snapshot{}, fmt.Errorf("snapshot decode: balances is not an object")
	}
	for _, accountPair := range balances.Pairs() {
		byUnit, ok := accountPair.Val.(canon.Map)
		if !ok {
			return Snapshot{}, fmt.Errorf("snapshot decode: balances[%q] is not an object", accountPair.Key)
		}
		for _, unitPair := range byUnit.Pairs() {
			qty, ok := unitPair.Val.(canon.Number)
			if !ok {
				return Snapshot{}, fmt.Errorf("snapshot decode: quantity for %s/%s is not a number",
					accountPair.Key, unitPair.Key)
			}
			snap.Positions = append(snap.Positions, ledger.Position{
				Account:    accountPair.Key,
				Instrument: unitPair.Key,
				Quantity:   qty.Decimal(),
			})
		}
	}
	return snap, nil
}

func intField(m canon.Map, key string) (int64, error) {
	v, ok := m.Get(key)
	if !ok {
		return 0, fmt.Errorf("snapshot decode: missing %s", key)
	}
	n, ok := v.(canon.Number)
	if !ok {
		return 0, fmt.Errorf("snapshot decode: %s is not a number", key)
	}
	return n.Decimal().IntPart(), nil
}
