package refined

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNonEmptyStringRejectsBlank(t *testing.T) {
	for _, s := range []string{"", "   ", "\t\n"} {
		_, err := NewNonEmptyString("source", s)
		require.Error(t, err)
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve)
	}
}

func TestNonEmptyStringAccepts(t *testing.T) {
	n, err := NewNonEmptyString("source", "bloomberg")
	require.NoError(t, err)
	assert.Equal(t, "bloomberg", n.String())
	assert.False(t, n.IsZero())
}

func TestPositiveDecimalRejectsZeroAndNegative(t *testing.T) {
	for _, s := range []string{"0", "0.000", "-1", "-0.01"} {
		_, err := NewPositiveDecimal("quantity", decimal.RequireFromString(s))
		require.Error(t, err, "input %s", s)
	}
}

func TestNonZeroDecimalRejectsZero(t *testing.T) {
	_, err := NewNonZeroDecimal("rate", decimal.New(0, -3))
	require.Error(t, err)

	n, err := NewNonZeroDecimal("rate", decimal.RequireFromString("-0.5"))
	require.NoError(t, err)
	assert.Equal(t, "-0.5", n.Decimal().String())
}

func TestMoneyRejectsEmptyCurrency(t *testing.T) {
	_, err := NewMoney(decimal.NewFromInt(10), "")
	require.Error(t, err)
}

func TestMoneyAddSameCurrency(t *testing.T) {
	a, err := NewMoney(decimal.RequireFromString("10.00"), "USD")
	require.NoError(t, err)
	b, err := NewMoney(decimal.RequireFromString("5.25"), "USD")
	require.NoError(t, err)

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.True(t, sum.Amount().Equal(decimal.RequireFromString("15.25")))
	assert.Equal(t, "USD", sum.Currency())

	// Operands unchanged.
	assert.True(t, a.Amount().Equal(decimal.RequireFromString("10.00")))
}

func TestMoneyCrossCurrencyIsTypedError(t *testing.T) {
	usd, err := NewMoney(decimal.RequireFromString("10.00"), "USD")
	require.NoError(t, err)
	eur, err := NewMoney(decimal.RequireFromString("5.00"), "EUR")
	require.NoError(t, err)

	_, err = usd.Add(eur)
	require.Error(t, err)
	var cme *CurrencyMismatchError
	require.ErrorAs(t, err, &cme)
	assert.Equal(t, "USD", cme.Left)
	assert.Equal(t, "EUR", cme.Right)

	_, err = usd.Sub(eur)
	require.Error(t, err)
}

func TestMoneySubAndNeg(t *testing.T) {
	a, _ := NewMoney(decimal.RequireFromString("3.50"), "GBP")
	b, _ := NewMoney(decimal.RequireFromString("5.00"), "GBP")

	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.True(t, diff.Amount().Equal(decimal.RequireFromString("-1.50")))
	assert.True(t, diff.Neg().Amount().Equal(decimal.RequireFromString("1.50")))
}

func TestMoneyEqualIgnoresScale(t *testing.T) {
	a, _ := NewMoney(decimal.RequireFromString("1.50"), "USD")
	b, _ := NewMoney(decimal.RequireFromString("1.5"), "USD")
	c, _ := NewMoney(decimal.RequireFromString("1.5"), "EUR")

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}
