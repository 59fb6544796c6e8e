package attest

import (
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tally/internal/canon"
)

func TestQuotedRejectsCrossedMarket(t *testing.T) {
	_, err := NewQuoted(
		decimal.NewFromInt(100), decimal.NewFromInt(99),
		"XNYS", nil, nil,
	)
	require.Error(t, err)
}

func TestQuotedMidAndSpread(t *testing.T) {
	q, err := NewQuoted(
		decimal.RequireFromString("100.00"), decimal.RequireFromString("101.00"),
		"XNYS", nil, []string{"firm"},
	)
	require.NoError(t, err)
	assert.True(t, q.Mid().Equal(decimal.RequireFromString("100.5")))
	assert.True(t, q.Spread().Equal(decimal.NewFromInt(1)))
}

func TestQuotedRejectsNonPositiveSize(t *testing.T) {
	size := decimal.Zero
	_, err := NewQuoted(decimal.NewFromInt(1), decimal.NewFromInt(2), "XNYS", &size, nil)
	require.Error(t, err)
}

func TestFirmRejectsNaiveTimestamp(t *testing.T) {
	naive := time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("EST", -5*3600))
	_, err := NewFirm("exch", naive, "")
	require.Error(t, err)

	_, err = NewFirm("exch", time.Time{}, "")
	require.Error(t, err)
}

func TestFirmAcceptsExplicitZeroOffsetZone(t *testing.T) {
	// A fixed +00:00 zone names the same instant as time.UTC; only a
	// nonzero offset makes a timestamp ambiguous. The stored instant
	// is pinned to UTC so both spellings hash identically.
	when := time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("", 0))
	firm, err := NewFirm("exch", when, "")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, firm.ObservedAt().Location())

	utc, err := NewFirm("exch", when.UTC(), "")
	require.NoError(t, err)
	got, err := canon.Encode(firm.canonical())
	require.NoError(t, err)
	want, err := canon.Encode(utc.canonical())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDerivedRequiresQuantifiedUncertainty(t *testing.T) {
	fq := canon.MustMap(canon.P("rmse", canon.Num(decimal.RequireFromString("0.01"))))
	low := decimal.RequireFromString("0.9")
	high := decimal.RequireFromString("1.1")
	level := decimal.RequireFromString("0.95")

	// Empty fit quality.
	_, err := NewDerived("svi_fit", "", canon.Map{}, low, high, level)
	require.Error(t, err)

	// Inverted interval.
	_, err = NewDerived("svi_fit", "", fq, high, low, level)
	require.Error(t, err)

	// Level outside (0,1).
	for _, bad := range []string{"0", "1", "1.5", "-0.1"} {
		_, err = NewDerived("svi_fit", "", fq, low, high, decimal.RequireFromString(bad))
		require.Error(t, err, "level %s", bad)
	}

	d, err := NewDerived("svi_fit", "cfg-7", fq, low, high, level)
	require.NoError(t, err)
	lo, hi := d.ConfidenceInterval()
	assert.True(t, lo.Equal(low))
	assert.True(t, hi.Equal(high))
}

func TestConfidenceRankOrdering(t *testing.T) {
	firm, err := NewFirm("exch", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), "")
	require.NoError(t, err)
	quoted, err := NewQuoted(decimal.NewFromInt(1), decimal.NewFromInt(2), "XNYS", nil, nil)
	require.NoError(t, err)
	fq := canon.MustMap(canon.P("rmse", canon.Num(decimal.RequireFromString("0.01"))))
	derived, err := NewDerived("fit", "", fq,
		decimal.RequireFromString("0.9"), decimal.RequireFromString("1.1"), decimal.RequireFromString("0.95"))
	require.NoError(t, err)

	assert.Greater(t, firm.Rank(), quoted.Rank())
	assert.Greater(t, quoted.Rank(), derived.Rank())

	w, ok := Weakest(firm, quoted, derived)
	require.True(t, ok)
	assert.Equal(t, KindDerived, w.Kind())
}

// The variant names are part of the hash contract: renaming one changes
// every attestation id that includes it. These assertions and the
// golden files below pin that contract.
func TestConfidenceKindWireContract(t *testing.T) {
	assert.Equal(t, "Firm", KindFirm)
	assert.Equal(t, "Quoted", KindQuoted)
	assert.Equal(t, "Derived", KindDerived)
}

func TestGoldenConfidenceEncodings(t *testing.T) {
	g := goldie.New(t)

	firm, err := NewFirm("exch", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), "ref-1")
	require.NoError(t, err)
	b, err := canon.Encode(firm.canonical())
	require.NoError(t, err)
	g.Assert(t, "confidence_firm", b)

	quoted, err := NewQuoted(
		decimal.NewFromInt(100), decimal.NewFromInt(101),
		"XNYS", nil, []string{"firm"},
	)
	require.NoError(t, err)
	b, err = canon.Encode(quoted.canonical())
	require.NoError(t, err)
	g.Assert(t, "confidence_quoted", b)

	fq := canon.MustMap(canon.P("rmse", canon.Num(decimal.RequireFromString("0.01"))))
	derived, err := NewDerived("svi_fit", "", fq,
		decimal.RequireFromString("0.9"), decimal.RequireFromString("1.1"), decimal.RequireFromString("0.95"))
	require.NoError(t, err)
	b, err = canon.Encode(derived.canonical())
	require.NoError(t, err)
	g.Assert(t, "confidence_derived", b)
}

func TestConfidenceRoundTrip(t *testing.T) {
	size := decimal.RequireFromString("250")
	quoted, err := NewQuoted(
		decimal.RequireFromString("99.5"), decimal.RequireFromString("100.5"),
		"XLON", &size, []string{"indicative"},
	)
	require.NoError(t, err)

	encoded, err := canon.Encode(quoted.canonical())
	require.NoError(t, err)
	decoded, err := canon.Decode(encoded)
	require.NoError(t, err)

	back, err := confidenceFromValue(decoded)
	require.NoError(t, err)
	q, ok := back.(Quoted)
	require.True(t, ok)
	assert.True(t, q.Bid().Equal(quoted.Bid()))
	gotSize, present := q.Size()
	require.True(t, present)
	assert.True(t, gotSize.Equal(size))
	assert.Equal(t, []string{"indicative"}, q.Conditions())
}
