package ledger

import (
	"fmt"
	"time"

	"github.com/roach88/tally/internal/canon"
)

// LoggedTransaction is one decoded entry of the append-only log: the
// transaction plus the seq the single writer stamped it with.
type LoggedTransaction struct {
	Seq         int64
	Transaction Transaction
}

// marshalRecord produces the canonical log entry bytes for a
// transaction at seq.
func marshalRecord(tx Transaction, seq int64) ([]byte, error) {
	rec, err := canon.NewMap(
		canon.P("seq", canon.Int(seq)),
		canon.P("transaction", tx.canonical()),
	)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return canon.Encode(rec)
}

// UnmarshalRecord parses one log entry back into its transaction.
func UnmarshalRecord(data []byte) (LoggedTransaction, error) {
	v, err := canon.Decode(data)
	if err != nil {
		return LoggedTransaction{}, fmt.Errorf("record decode: %w", err)
	}
	m, ok := v.(canon.Map)
	if !ok {
		return LoggedTransaction{}, fmt.Errorf("record decode: not an object")
	}

	seqRaw, ok := m.Get("seq")
	if !ok {
		return LoggedTransaction{}, fmt.Errorf("record decode: missing seq")
	}
	seqNum, ok := seqRaw.(canon.Number)
	if !ok {
		return LoggedTransaction{}, fmt.Errorf("record decode: seq is not a number")
	}

	txRaw, ok := m.Get("transaction")
	if !ok {
		return LoggedTransaction{}, fmt.Errorf("record decode: missing transaction")
	}
	tx, err := transactionFromCanon(txRaw)
	if err != nil {
		return LoggedTransaction{}, err
	}
	return LoggedTransaction{Seq: seqNum.Decimal().IntPart(), Transaction: tx}, nil
}

func transactionFromCanon(v canon.Value) (Transaction, error) {
	m, ok := v.(canon.Map)
	if !ok {
		return Transaction{}, fmt.Errorf("transaction decode: not an object")
	}

	id, err := mapString(m, "id")
	if err != nil {
		return Transaction{}, err
	}
	tsStr, err := mapString(m, "timestamp")
	if err != nil {
		return Transaction{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, tsStr)
	if err != nil {
		return Transaction{}, fmt.Errorf("transaction decode: timestamp %q: %w", tsStr, err)
	}

	movesRaw, ok := m.Get("moves")
	if !ok {
		return Transaction{}, fmt.Errorf("transaction decode: missing moves")
	}
	movesArr, ok := movesRaw.(canon.Array)
	if !ok {
		return Transaction{}, fmt.Errorf("transaction decode: moves is not an array")
	}
	moves := make([]Move, 0, len(movesArr))
	for i, mv := range movesArr {
		move, err := moveFromCanon(mv)
		if err != nil {
			return Transaction{}, fmt.Errorf("transaction decode: move[%d]: %w", i, err)
		}
		moves = append(moves, move)
	}

	var deltas []StateDelta
	if deltasRaw, ok := m.Get("deltas"); ok {
		deltasArr, isArr := deltasRaw.(canon.Array)
		if !isArr {
			return Transaction{}, fmt.Errorf("transaction decode: deltas is not an array")
		}
		for i, dv := range deltasArr {
			delta, err := deltaFromCanon(dv)
			if err != nil {
				return Transaction{}, fmt.Errorf("transaction decode: delta[%d]: %w", i, err)
			}
			deltas = append(deltas, delta)
		}
	}

	return NewTransaction(id, moves, ts.UTC(), deltas)
}

func moveFromCanon(v canon.Value) (Move, error) {
	m, ok := v.(canon.Map)
	if !ok {
		return Move{}, fmt.Errorf("not an object")
	}
	source, err := mapString(m, "source")
	if err != nil {
		return Move{}, err
	}
	destination, err := mapString(m, "destination")
	if err != nil {
		return Move{}, err
	}
	unit, err := mapString(m, "unit")
	if err != nil {
		return Move{}, err
	}
	qtyRaw, ok := m.Get("quantity")
	if !ok {
		return Move{}, fmt.Errorf("missing quantity")
	}
	qty, ok := qtyRaw.(canon.Number)
	if !ok {
		return Move{}, fmt.Errorf("quantity is not a number")
	}
	contractID, err := mapOptionalString(m, "contract_id")
	if err != nil {
		return Move{}, err
	}
	attestationID, err := mapOptionalString(m, "attestation_id")
	if err != nil {
		return Move{}, err
	}
	return NewMove(source, destination, unit, qty.Decimal(), contractID, attestationID)
}

func deltaFromCanon(v canon.Value) (StateDelta, error) {
	m, ok := v.(canon.Map)
	if !ok {
		return StateDelta{}, fmt.Errorf("not an object")
	}
	unit, err := mapString(m, "unit")
	if err != nil {
		return StateDelta{}, err
	}
	field, err := mapString(m, "field")
	if err != nil {
		return StateDelta{}, err
	}
	oldRaw, ok := m.Get("old")
	if !ok {
		return StateDelta{}, fmt.Errorf("missing old")
	}
	old, err := stateValueFromCanon(oldRaw)
	if err != nil {
		return StateDelta{}, err
	}
	newRaw, ok := m.Get("new")
	if !ok {
		return StateDelta{}, fmt.Errorf("missing new")
	}
	nw, err := stateValueFromCanon(newRaw)
	if err != nil {
		return StateDelta{}, err
	}
	return StateDelta{Unit: unit, Field: field, Old: old, New: nw}, nil
}

func mapString(m canon.Map, key string) (string, error) {
	v, ok := m.Get(key)
	if !ok {
		return "", fmt.Errorf("missing field %q", key)
	}
	s, ok := v.(canon.String)
	if !ok {
		return "", fmt.Errorf("field %q is not a string", key)
	}
	return string(s), nil
}

func mapOptionalString(m canon.Map, key string) (string, error) {
	v, ok := m.Get(key)
	if !ok {
		return "", nil
	}
	if _, isNull := v.(canon.Null); isNull {
		return "", nil
	}
	s, ok := v.(canon.String)
	if !ok {
		return "", fmt.Errorf("field %q is not a string", key)
	}
	return string(s), nil
}
