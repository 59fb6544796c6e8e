package refined

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CurrencyMismatchError reports an attempted cross-currency operation.
// Money arithmetic is defined only within one currency; there is no
// implicit conversion anywhere in the core.
type CurrencyMismatchError struct {
	Op    string
	Left  string
	Right string
}

func (e *CurrencyMismatchError) Error() string {
	return fmt.Sprintf("money: %s: currency mismatch %s vs %s", e.Op, e.Left, e.Right)
}

// Money is an exact decimal amount in a single currency.
// Immutable: every operation returns a new instance.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// NewMoney validates and constructs a Money value. The currency code
// must be non-empty; the amount may be any exact decimal including zero
// and negatives (a balance can owe).
func NewMoney(amount decimal.Decimal, currency string) (Money, error) {
	cur, err := NewNonEmptyString("currency", currency)
	if err != nil {
		return Money{}, err
	}
	return Money{amount: amount, currency: cur.String()}, nil
}

// Amount returns the exact decimal amount.
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Currency returns the currency code.
func (m Money) Currency() string {
	return m.currency
}

// Add returns m + other, failing on currency mismatch.
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, &CurrencyMismatchError{Op: "add", Left: m.currency, Right: other.currency}
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

// Sub returns m - other, failing on currency mismatch.
func (m Money) Sub(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, &CurrencyMismatchError{Op: "sub", Left: m.currency, Right: other.currency}
	}
	return Money{amount: m.amount.Sub(other.amount), currency: m.currency}, nil
}

// Neg returns -m.
func (m Money) Neg() Money {
	return Money{amount: m.amount.Neg(), currency: m.currency}
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// Equal reports whether two Money values have the same currency and
// numerically equal amounts.
func (m Money) Equal(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount, m.currency)
}
