package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tally/internal/ledger"
	"github.com/roach88/tally/internal/storage/sqlite"
)

// writeFixture creates a temp store with two transfers and a matching
// config file. It returns the config path.
func writeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	storePath := filepath.Join(dir, "tally.db")

	st, err := sqlite.Open(storePath)
	require.NoError(t, err)
	defer st.Close()

	l := ledger.New(st)
	for _, acc := range []ledger.Account{
		{ID: "desk-a", Type: ledger.AccountTrading},
		{ID: "desk-b", Type: ledger.AccountTrading},
	} {
		_, err := l.RegisterAccount(acc)
		require.NoError(t, err)
	}
	require.NoError(t, l.RegisterInstrument("USD", ledger.AccountSettlement))

	ctx := context.Background()
	at := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	for i, qty := range []string{"100", "40"} {
		m, err := ledger.NewMove("desk-a", "desk-b", "USD", decimal.RequireFromString(qty), "", "")
		require.NoError(t, err)
		tx, err := ledger.NewTransaction(ledger.NewTransactionID(), []ledger.Move{m},
			at.Add(time.Duration(i)*time.Minute), nil)
		require.NoError(t, err)
		out, err := l.Execute(ctx, tx)
		require.NoError(t, err)
		require.Equal(t, ledger.Applied, out.Status)
	}

	configPath := filepath.Join(dir, "tally.yaml")
	config := "store: " + storePath + "\n" +
		"accounts:\n" +
		"  - id: desk-a\n" +
		"    type: trading\n" +
		"  - id: desk-b\n" +
		"    type: trading\n" +
		"instruments:\n" +
		"  USD: settlement\n"
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0o644))
	return configPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestPositionsCommand(t *testing.T) {
	cfg := writeFixture(t)

	out, err := execute(t, "positions", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "desk-a")
	assert.Contains(t, out, "-140")
	assert.Contains(t, out, "desk-b")
	assert.Contains(t, out, "seq=2")
}

func TestPositionsCommandAccountFilter(t *testing.T) {
	cfg := writeFixture(t)

	out, err := execute(t, "positions", "--config", cfg, "--account", "desk-b")
	require.NoError(t, err)
	assert.Contains(t, out, "desk-b")
	assert.NotContains(t, out, "desk-a  ")
}

func TestPositionsCommandJSON(t *testing.T) {
	cfg := writeFixture(t)

	out, err := execute(t, "positions", "--config", cfg, "--format", "json")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestReplayCommand(t *testing.T) {
	cfg := writeFixture(t)

	out, err := execute(t, "replay", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "2 transaction(s)")
	assert.Contains(t, out, "moves=1")
}

func TestReplayCommandOffsetWindow(t *testing.T) {
	cfg := writeFixture(t)

	out, err := execute(t, "replay", "--config", cfg, "--from", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "1 transaction(s)")
}

func TestVerifyCommand(t *testing.T) {
	cfg := writeFixture(t)

	out, err := execute(t, "verify", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Transactions: 2")
	assert.Contains(t, out, "✓ Replay deterministic")
}

func TestVerifyCommandJSON(t *testing.T) {
	cfg := writeFixture(t)

	out, err := execute(t, "verify", "--config", cfg, "--format", "json")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestCommandsRejectMissingConfig(t *testing.T) {
	for _, name := range []string{"positions", "replay", "verify"} {
		t.Run(name, func(t *testing.T) {
			_, err := execute(t, name)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestLoadConfigValidation(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadConfig("")
	require.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("accounts: []\n"), 0o644))
	_, err = LoadConfig(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store path")
}
