package canon

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// Golden files pin the canonical byte contract. A diff here means the
// wire format changed and every content hash with it; that is a
// breaking change to persisted identity, not a refactor.

func TestGoldenCompositeEncoding(t *testing.T) {
	v := MustMap(
		P("amount", Num(decimal.RequireFromString("10.50"))),
		P("currency", String("USD")),
		P("note", Null{}),
		P("tags", Array{String("fx"), String("spot")}),
	)

	encoded, err := Encode(v)
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "composite", encoded)
}

func TestGoldenZeroForms(t *testing.T) {
	encoded, err := Encode(Array{
		Num(decimal.New(0, -5)),
		Num(decimal.New(0, 3)),
		Int(0),
	})
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "zero_forms", encoded)
}
