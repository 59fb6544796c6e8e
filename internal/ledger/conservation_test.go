package ledger

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tally/internal/storage/memlog"
)

// Conservation is the system's load-bearing invariant: for every
// instrument, the total balance summed across accounts is unchanged by
// any sequence of applied transactions. The engine enforces it
// structurally; these tests drive randomized sequences through Execute
// and check the sums after every step.

func TestConservationAcrossRandomSequences(t *testing.T) {
	const (
		seeds        = 5
		transactions = 200
	)
	units := []string{"USD", "EUR", "BOND-1", "EQ-9"}
	accounts := []string{"a1", "a2", "a3", "a4", "a5"}

	for seed := int64(0); seed < seeds; seed++ {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewSource(seed))
			l := New(memlog.NewLog())
			for _, id := range accounts {
				_, err := l.RegisterAccount(Account{ID: id, Type: AccountTrading})
				require.NoError(t, err)
			}
			for _, u := range units {
				require.NoError(t, l.RegisterInstrument(u, AccountTrading))
			}

			totals := make(map[string]decimal.Decimal)
			for _, u := range units {
				totals[u] = l.TotalByInstrument(u)
			}

			ctx := context.Background()
			for i := 0; i < transactions; i++ {
				tx := randomTransaction(t, rng, i, accounts, units)
				out, err := l.Execute(ctx, tx)
				require.NoError(t, err)
				require.Equal(t, Applied, out.Status)

				for _, u := range units {
					got := l.TotalByInstrument(u)
					assert.True(t, got.Equal(totals[u]),
						"tx %d changed total of %s: %s -> %s", i, u, totals[u], got)
				}
			}
		})
	}
}

func randomTransaction(t *testing.T, rng *rand.Rand, i int, accounts, units []string) Transaction {
	t.Helper()
	legs := 1 + rng.Intn(4)
	moves := make([]Move, 0, legs)
	for j := 0; j < legs; j++ {
		src := accounts[rng.Intn(len(accounts))]
		dst := accounts[rng.Intn(len(accounts))]
		for dst == src {
			dst = accounts[rng.Intn(len(accounts))]
		}
		// Quantities with up to 4 decimal places exercise exact
		// arithmetic, not float rounding.
		qty := decimal.New(int64(1+rng.Intn(10_000_000)), -int32(rng.Intn(5)))
		m, err := NewMove(src, dst, units[rng.Intn(len(units))], qty, "", "")
		require.NoError(t, err)
		moves = append(moves, m)
	}
	tx, err := NewTransaction(
		fmt.Sprintf("tx-%d", i), moves,
		time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i)*time.Second),
		nil,
	)
	require.NoError(t, err)
	return tx
}

func TestConservationSurvivesInterleavedReads(t *testing.T) {
	// Readers run against copies while the single writer executes;
	// totals observed by a concurrent reader are always a consistent
	// snapshot (never a torn write).
	l := New(memlog.NewLog())
	for _, id := range []string{"a", "b"} {
		_, err := l.RegisterAccount(Account{ID: id, Type: AccountTrading})
		require.NoError(t, err)
	}
	require.NoError(t, l.RegisterInstrument("USD", AccountTrading))

	ctx := context.Background()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			m, _ := NewMove("a", "b", "USD", decimal.NewFromInt(1), "", "")
			tx, _ := NewTransaction(fmt.Sprintf("c-%d", i), []Move{m},
				time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), nil)
			if _, err := l.Execute(ctx, tx); err != nil {
				t.Error(err)
				return
			}
		}
	}()

	for i := 0; i < 100; i++ {
		total := l.TotalByInstrument("USD")
		assert.True(t, total.IsZero(), "observed non-conserved total %s", total)
	}
	<-done
	assert.True(t, l.TotalByInstrument("USD").IsZero())
}
