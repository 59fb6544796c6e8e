package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/roach88/tally/internal/canon"
	"github.com/roach88/tally/internal/refined"
	"github.com/roach88/tally/internal/storage"
)

// Status classifies the outcome of Execute.
type Status int

const (
	// Applied: the transaction was appended to the log and the index
	// updated.
	Applied Status = iota

	// AlreadyApplied: the transaction id was seen before; nothing was
	// mutated. Replay-safety for at-least-once delivery.
	AlreadyApplied

	// Rejected: a precondition failed; nothing was mutated. The
	// reason is carried on the outcome.
	Rejected
)

func (s Status) String() string {
	switch s {
	case Applied:
		return "Applied"
	case AlreadyApplied:
		return "AlreadyApplied"
	case Rejected:
		return "Rejected"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Outcome is the result of executing one transaction.
type Outcome struct {
	Status  Status
	Seq     int64
	Entries []LedgerEntry

	// Reason is set when Status is Rejected.
	Reason *LedgerError
}

// Ledger is the single-writer double-entry engine over
// (account, instrument) balances.
type Ledger struct {
	mu    sync.Mutex
	log   storage.EventLog
	clock *Clock

	accounts    map[string]Account
	instruments map[string]AccountType
	balances    map[string]map[string]decimal.Decimal
	applied     map[string]int64
}

// New creates an empty ledger over the injected log. If the log
// already holds history, call Recover before executing.
func New(log storage.EventLog) *Ledger {
	return &Ledger{
		log:         log,
		clock:       NewClock(),
		accounts:    make(map[string]Account),
		instruments: make(map[string]AccountType),
		balances:    make(map[string]map[string]decimal.Decimal),
		applied:     make(map[string]int64),
	}
}

// RegisterAccount adds an account to the registry. Idempotent for an
// identical re-registration; a conflicting type is an error so the
// registry stays unambiguous.
func (l *Ledger) RegisterAccount(acc Account) (Account, error) {
	validated, err := NewAccount(acc.ID, acc.Type)
	if err != nil {
		return Account{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.accounts[validated.ID]; ok {
		if existing.Type != validated.Type {
			return Account{}, &LedgerError{
				Code:    ErrCodeAmbiguousMapping,
				Message: fmt.Sprintf("account already registered as %s, not %s", existing.Type, validated.Type),
				Account: validated.ID,
			}
		}
		return existing, nil
	}
	l.accounts[validated.ID] = validated
	return validated, nil
}

// RegisterInstrument assigns an instrument to an account type. The
// mapping must be total (Execute rejects moves on unassigned
// instruments) and unambiguous (conflicting re-assignment is an
// error).
func (l *Ledger) RegisterInstrument(unit string, typ AccountType) error {
	if _, err := refined.NewNonEmptyString("instrument", unit); err != nil {
		return err
	}
	if !accountTypes[typ] {
		return &refined.ValidationError{
			Field:   "instrument.type",
			Message: fmt.Sprintf("unknown account type %q", typ),
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.instruments[unit]; ok && existing != typ {
		return &LedgerError{
			Code:    ErrCodeAmbiguousMapping,
			Message: fmt.Sprintf("instrument already assigned to %s, not %s", existing, typ),
			Unit:    unit,
		}
	}
	l.instruments[unit] = typ
	return nil
}

// Execute applies one transaction atomically. Preconditions are
// checked before any mutation; on success the transaction is appended
// to the log before the balance index is touched - the log, not the
// index, is the source of truth.
func (l *Ledger) Execute(ctx context.Context, tx Transaction) (Outcome, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if tx.ID() == "" || len(tx.moves) == 0 {
		return Outcome{}, &refined.ValidationError{
			Field:   "transaction",
			Message: "must be constructed via NewTransaction",
		}
	}

	if seq, ok := l.applied[tx.ID()]; ok {
		return Outcome{Status: AlreadyApplied, Seq: seq}, nil
	}

	if reason := l.precheck(tx); reason != nil {
		return Outcome{Status: Rejected, Reason: reason}, nil
	}

	seq := l.clock.Next()
	data, err := marshalRecord(tx, seq)
	if err != nil {
		return Outcome{}, err
	}
	if _, err := l.log.Append(ctx, data); err != nil {
		return Outcome{}, err
	}

	entries := l.apply(tx)
	l.applied[tx.ID()] = seq
	return Outcome{Status: Applied, Seq: seq, Entries: entries}, nil
}

// precheck verifies every precondition without mutating. Returns the
// rejection reason or nil.
func (l *Ledger) precheck(tx Transaction) *LedgerError {
	for _, m := range tx.moves {
		for _, acct := range []string{m.Source(), m.Destination()} {
			if _, ok := l.accounts[acct]; !ok {
				return &LedgerError{
					Code:    ErrCodeUnknownAccount,
					Message: "move references unregistered account",
					TxID:    tx.ID(),
					Account: acct,
				}
			}
		}
		if _, ok := l.instruments[m.Unit()]; !ok {
			return &LedgerError{
				Code:    ErrCodeUnassignedInstrument,
				Message: "instrument has no account-type assignment",
				TxID:    tx.ID(),
				Unit:    m.Unit(),
			}
		}
	}

	// Conservation needs no arithmetic check: a Move debits and credits
	// the same unit by the same PositiveDecimal quantity, so no
	// constructible transaction can change a per-instrument total. The
	// randomized conservation tests pin the invariant across arbitrary
	// applied sequences.
	return nil
}

// apply updates the balance index and derives the entries. Callers
// hold the lock and have already passed precheck.
func (l *Ledger) apply(tx Transaction) []LedgerEntry {
	entries := make([]LedgerEntry, 0, len(tx.moves))
	for _, m := range tx.moves {
		l.adjust(m.Source(), m.Unit(), m.Quantity().Neg())
		l.adjust(m.Destination(), m.Unit(), m.Quantity())
		entries = append(entries, LedgerEntry{
			Accounts:      m.accounts,
			Instrument:    m.Unit(),
			Amount:        m.quantity,
			Timestamp:     tx.timestamp,
			AttestationID: m.AttestationID(),
		})
	}
	return entries
}

func (l *Ledger) adjust(account, unit string, delta decimal.Decimal) {
	byUnit, ok := l.balances[account]
	if !ok {
		byUnit = make(map[string]decimal.Decimal)
		l.balances[account] = byUnit
	}
	byUnit[unit] = byUnit[unit].Add(delta)
}

// GetPosition returns the balance of (account, instrument), served
// from the index materialized from the log. A registered account with
// no activity reads zero; an unregistered account is an error.
func (l *Ledger) GetPosition(account, instrument string) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.accounts[account]; !ok {
		return decimal.Decimal{}, &LedgerError{
			Code:    ErrCodeUnknownAccount,
			Message: "unknown account",
			Account: account,
		}
	}
	return l.balances[account][instrument], nil
}

// Positions returns every non-zero position as an immutable snapshot,
// deterministically ordered by (account, instrument).
func (l *Ledger) Positions() []Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Position
	for account, byUnit := range l.balances {
		for unit, qty := range byUnit {
			if qty.IsZero() {
				continue
			}
			out = append(out, Position{Account: account, Instrument: unit, Quantity: qty})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Account != out[j].Account {
			return out[i].Account < out[j].Account
		}
		return out[i].Instrument < out[j].Instrument
	})
	return out
}

// TotalByInstrument sums an instrument's balance across all accounts.
// Conservation means Execute never changes this value.
func (l *Ledger) TotalByInstrument(unit string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := decimal.Zero
	for _, byUnit := range l.balances {
		total = total.Add(byUnit[unit])
	}
	return total
}

// Accounts returns the registered accounts sorted by id.
func (l *Ledger) Accounts() []Account {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Account, 0, len(l.accounts))
	for _, a := range l.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Instruments returns a copy of the instrument assignments.
func (l *Ledger) Instruments() map[string]AccountType {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]AccountType, len(l.instruments))
	for k, v := range l.instruments {
		out[k] = v
	}
	return out
}

// Seq returns the last assigned sequence number.
func (l *Ledger) Seq() int64 {
	return l.clock.Current()
}

// StateHash returns the content hash of the full balance state under
// the snapshot domain. Byte-identical state across machines and
// replays hashes identically; this is the basis of the audit
// guarantee.
func (l *Ledger) StateHash() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return stateHash(l.balances)
}

func stateHash(balances map[string]map[string]decimal.Decimal) (string, error) {
	accountPairs := make([]canon.Pair, 0, len(balances))
	for account, byUnit := range balances {
		unitPairs := make([]canon.Pair, 0, len(byUnit))
		for unit, qty := range byUnit {
			if qty.IsZero() {
				continue
			}
			unitPairs = append(unitPairs, canon.P(unit, canon.Num(qty)))
		}
		if len(unitPairs) == 0 {
			continue
		}
		m, err := canon.NewMap(unitPairs...)
		if err != nil {
			return "", err
		}
		accountPairs = append(accountPairs, canon.P(account, m))
	}
	m, err := canon.NewMap(accountPairs...)
	if err != nil {
		return "", err
	}
	return canon.Hash(canon.DomainSnapshot, m)
}

// Recover folds the existing log back into memory: balances, applied
// ids, and the clock position. Structural idempotency means recovery
// uses the same apply path as live execution.
func (l *Ledger) Recover(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.log.Replay(ctx, 0, -1)
	if err != nil {
		return err
	}
	maxSeq := int64(0)
	for _, rec := range records {
		logged, err := UnmarshalRecord(rec.Data)
		if err != nil {
			return &ReplayError{Offset: rec.Offset, Err: err}
		}
		if _, ok := l.applied[logged.Transaction.ID()]; ok {
			continue
		}
		l.apply(logged.Transaction)
		l.applied[logged.Transaction.ID()] = logged.Seq
		if logged.Seq > maxSeq {
			maxSeq = logged.Seq
		}
	}
	if maxSeq > l.clock.Current() {
		l.clock = NewClockAt(maxSeq)
	}
	return nil
}
