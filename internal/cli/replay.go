package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/tally/internal/replay"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Account    string // optional - transactions touching one account
	FromOffset int64
	ToOffset   int64
}

// ReplayTxRow is one logged transaction in the output.
type ReplayTxRow struct {
	Seq       int64  `json:"seq"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Moves     int    `json:"moves"`
	Hash      string `json:"hash"`
}

// ReplayResult holds the overall replay output.
type ReplayResult struct {
	Transactions []ReplayTxRow `json:"transactions"`
	Total        int           `json:"total"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "List logged transactions in log order",
		Long: `Read the transaction log and print each logged transaction with its
sequence number and content hash, optionally filtered by log offset
window or by touched account.

Examples:
  tally replay --config ./tally.yaml
  tally replay --config ./tally.yaml --account desk-a
  tally replay --config ./tally.yaml --from 100 --to 200 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Account, "account", "", "only transactions touching this account")
	cmd.Flags().Int64Var(&opts.FromOffset, "from", 0, "first log offset included")
	cmd.Flags().Int64Var(&opts.ToOffset, "to", -1, "one past the last offset included (-1 = end)")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	logger, err := newLogger(opts.Verbose)
	if err != nil {
		return WrapExitError(ExitCommandError, "building logger", err)
	}
	defer logger.Sync()

	cfg, err := LoadConfig(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "loading config", err)
	}

	_, st, err := openLedger(ctx, cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "opening ledger", err)
	}
	defer st.Close()

	eng := replay.New(st, st)
	logged, err := replay.Collect(eng.Replay(ctx, replay.Options{
		FromOffset: opts.FromOffset,
		ToOffset:   opts.ToOffset,
		Account:    opts.Account,
	}))
	if err != nil {
		return WrapExitError(ExitCommandError, "replaying log", err)
	}
	logger.Debug("replayed log", zap.Int("transactions", len(logged)))

	result := ReplayResult{Transactions: make([]ReplayTxRow, 0, len(logged)), Total: len(logged)}
	for _, lt := range logged {
		hash, err := lt.Transaction.Hash()
		if err != nil {
			return WrapExitError(ExitCommandError, "hashing transaction", err)
		}
		result.Transactions = append(result.Transactions, ReplayTxRow{
			Seq:       lt.Seq,
			ID:        lt.Transaction.ID(),
			Timestamp: lt.Transaction.Timestamp().Format(time.RFC3339Nano),
			Moves:     len(lt.Transaction.Moves()),
			Hash:      hash,
		})
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: result})
	}

	w := cmd.OutOrStdout()
	if result.Total == 0 {
		fmt.Fprintln(w, "No transactions.")
		return nil
	}
	for _, row := range result.Transactions {
		fmt.Fprintf(w, "%6d  %s  %s  moves=%d  %s\n", row.Seq, row.ID, row.Timestamp, row.Moves, row.Hash)
	}
	fmt.Fprintf(w, "\n%d transaction(s)\n", result.Total)
	return nil
}
