package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/roach88/tally/internal/refined"
)

// AccountType classifies an account's role in the book.
type AccountType string

const (
	AccountTrading    AccountType = "trading"
	AccountSettlement AccountType = "settlement"
	AccountCollateral AccountType = "collateral"
	AccountMargin     AccountType = "margin"
	AccountPnL        AccountType = "pnl"
	AccountAccrual    AccountType = "accrual"
	AccountSuspense   AccountType = "suspense"
)

var accountTypes = map[AccountType]bool{
	AccountTrading:    true,
	AccountSettlement: true,
	AccountCollateral: true,
	AccountMargin:     true,
	AccountPnL:        true,
	AccountAccrual:    true,
	AccountSuspense:   true,
}

// Account identifies one balance-holding party.
type Account struct {
	ID   string
	Type AccountType
}

// NewAccount validates and constructs an account.
func NewAccount(id string, typ AccountType) (Account, error) {
	if _, err := refined.NewNonEmptyString("account.id", id); err != nil {
		return Account{}, err
	}
	if !accountTypes[typ] {
		return Account{}, &refined.ValidationError{
			Field:   "account.type",
			Message: fmt.Sprintf("unknown account type %q", typ),
		}
	}
	return Account{ID: id, Type: typ}, nil
}

// Position is a materialized, derivable view of one (account,
// instrument) balance. It is never a primary source of truth: it is
// recomputed from the transaction log.
type Position struct {
	Account    string
	Instrument string
	Quantity   decimal.Decimal
}

// DistinctAccountPair is a (debit, credit) pair constructible only
// when the two accounts differ and both are non-empty. Self-transfers
// are structurally unrepresentable.
type DistinctAccountPair struct {
	debit  string
	credit string
}

// NewDistinctAccountPair validates and constructs the pair.
func NewDistinctAccountPair(debit, credit string) (DistinctAccountPair, error) {
	if _, err := refined.NewNonEmptyString("debit", debit); err != nil {
		return DistinctAccountPair{}, err
	}
	if _, err := refined.NewNonEmptyString("credit", credit); err != nil {
		return DistinctAccountPair{}, err
	}
	if debit == credit {
		return DistinctAccountPair{}, &refined.ValidationError{
			Field:   "accounts",
			Message: fmt.Sprintf("debit and credit must differ, both are %q", debit),
		}
	}
	return DistinctAccountPair{debit: debit, credit: credit}, nil
}

// Debit returns the debited account id.
func (p DistinctAccountPair) Debit() string { return p.debit }

// Credit returns the credited account id.
func (p DistinctAccountPair) Credit() string { return p.credit }
