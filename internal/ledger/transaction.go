package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/roach88/tally/internal/canon"
	"github.com/roach88/tally/internal/refined"
)

// Move is one leg of a transaction: quantity of unit leaves source and
// enters destination. Because each move both debits and credits the
// same unit by the same quantity, conservation holds per move.
type Move struct {
	accounts      DistinctAccountPair
	unit          string
	quantity      refined.PositiveDecimal
	contractID    string
	attestationID string
}

// NewMove validates and constructs a move. attestationID is the
// optional epistemic basis for the leg (an attestation id); empty means
// unattested.
func NewMove(source, destination, unit string, quantity decimal.Decimal, contractID, attestationID string) (Move, error) {
	pair, err := NewDistinctAccountPair(source, destination)
	if err != nil {
		return Move{}, err
	}
	if _, err := refined.NewNonEmptyString("move.unit", unit); err != nil {
		return Move{}, err
	}
	qty, err := refined.NewPositiveDecimal("move.quantity", quantity)
	if err != nil {
		return Move{}, err
	}
	return Move{
		accounts:      pair,
		unit:          unit,
		quantity:      qty,
		contractID:    contractID,
		attestationID: attestationID,
	}, nil
}

// Source returns the account the quantity leaves.
func (m Move) Source() string { return m.accounts.Debit() }

// Destination returns the account the quantity enters.
func (m Move) Destination() string { return m.accounts.Credit() }

// Unit returns the instrument moved.
func (m Move) Unit() string { return m.unit }

// Quantity returns the positive amount moved.
func (m Move) Quantity() decimal.Decimal { return m.quantity.Decimal() }

// ContractID returns the originating contract reference.
func (m Move) ContractID() string { return m.contractID }

// AttestationID returns the attestation backing this leg, empty when
// unattested.
func (m Move) AttestationID() string { return m.attestationID }

func (m Move) canonical() canon.Value {
	att := canon.Value(canon.Null{})
	if m.attestationID != "" {
		att = canon.String(m.attestationID)
	}
	ctr := canon.Value(canon.Null{})
	if m.contractID != "" {
		ctr = canon.String(m.contractID)
	}
	return canon.MustMap(
		canon.P("source", canon.String(m.accounts.Debit())),
		canon.P("destination", canon.String(m.accounts.Credit())),
		canon.P("unit", canon.String(m.unit)),
		canon.P("quantity", canon.Num(m.quantity.Decimal())),
		canon.P("contract_id", ctr),
		canon.P("attestation_id", att),
	)
}

// Transaction is the atomic unit of ledger mutation: either fully
// applied or not applied at all. ID doubles as the idempotency key.
type Transaction struct {
	id        string
	moves     []Move
	timestamp time.Time
	deltas    []StateDelta
}

// NewTransaction validates and constructs a transaction. Moves must be
// non-empty and the timestamp UTC-aware.
func NewTransaction(id string, moves []Move, timestamp time.Time, deltas []StateDelta) (Transaction, error) {
	if _, err := refined.NewNonEmptyString("transaction.id", id); err != nil {
		return Transaction{}, err
	}
	if len(moves) == 0 {
		return Transaction{}, &refined.ValidationError{
			Field:   "transaction.moves",
			Message: "must be non-empty",
		}
	}
	if timestamp.IsZero() || timestamp.Location() != time.UTC {
		return Transaction{}, &refined.ValidationError{
			Field:   "transaction.timestamp",
			Message: "must be UTC-aware",
		}
	}
	return Transaction{
		id:        id,
		moves:     append([]Move(nil), moves...),
		timestamp: timestamp,
		deltas:    append([]StateDelta(nil), deltas...),
	}, nil
}

// NewTransactionID returns a fresh unique transaction id.
func NewTransactionID() string {
	return uuid.NewString()
}

// ID returns the transaction id / idempotency key.
func (t Transaction) ID() string { return t.id }

// Moves returns a copy of the legs in order.
func (t Transaction) Moves() []Move { return append([]Move(nil), t.moves...) }

// Timestamp returns the UTC event time.
func (t Transaction) Timestamp() time.Time { return t.timestamp }

// Deltas returns a copy of the state deltas in order.
func (t Transaction) Deltas() []StateDelta { return append([]StateDelta(nil), t.deltas...) }

func (t Transaction) canonical() canon.Value {
	moves := make(canon.Array, len(t.moves))
	for i, m := range t.moves {
		moves[i] = m.canonical()
	}
	deltas := make(canon.Array, len(t.deltas))
	for i, d := range t.deltas {
		deltas[i] = d.canonical()
	}
	return canon.MustMap(
		canon.P("id", canon.String(t.id)),
		canon.P("moves", moves),
		canon.P("timestamp", canon.String(t.timestamp.UTC().Format(time.RFC3339Nano))),
		canon.P("deltas", deltas),
	)
}

// Hash returns the content hash of the transaction under the
// transaction domain, used by integrity verification.
func (t Transaction) Hash() (string, error) {
	return canon.Hash(canon.DomainTransaction, t.canonical())
}

// LedgerEntry is one balanced, positive-amount movement derived from a
// move at execution time. Double-entry correctness is structural:
// accounts are distinct and the amount positive by construction.
type LedgerEntry struct {
	Accounts      DistinctAccountPair
	Instrument    string
	Amount        refined.PositiveDecimal
	Timestamp     time.Time
	AttestationID string
}
