package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// PositionsOptions holds flags for the positions command.
type PositionsOptions struct {
	*RootOptions
	Account string // optional - single account only
}

// PositionRow is one (account, instrument) balance in the output.
type PositionRow struct {
	Account    string `json:"account"`
	Instrument string `json:"instrument"`
	Quantity   string `json:"quantity"`
}

// PositionsResult holds the positions command output.
type PositionsResult struct {
	Positions []PositionRow `json:"positions"`
	Seq       int64         `json:"seq"`
	StateHash string        `json:"state_hash"`
}

// NewPositionsCommand creates the positions command.
func NewPositionsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PositionsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "positions",
		Short: "Show balances recomputed from the transaction log",
		Long: `Fold the transaction log and print every non-zero (account, instrument)
balance, in deterministic order, together with the log sequence and the
state content hash.

Positions are always derived: the log is the only source of truth.

Examples:
  tally positions --config ./tally.yaml
  tally positions --config ./tally.yaml --account desk-a --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPositions(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Account, "account", "", "show one account only")

	return cmd
}

func runPositions(opts *PositionsOptions, cmd *cobra.Command) error {
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

	l, st, err := openLedger(ctx, cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "opening ledger", err)
	}
	defer st.Close()

	logger.Debug("ledger recovered", zap.Int64("seq", l.Seq()))

	hash, err := l.StateHash()
	if err != nil {
		return WrapExitError(ExitCommandError, "computing state hash", err)
	}

	result := PositionsResult{Positions: []PositionRow{}, Seq: l.Seq(), StateHash: hash}
	for _, p := range l.Positions() {
		if opts.Account != "" && p.Account != opts.Account {
			continue
		}
		result.Positions = append(result.Positions, PositionRow{
			Account:    p.Account,
			Instrument: p.Instrument,
			Quantity:   p.Quantity.String(),
		})
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: result})
	}

	w := cmd.OutOrStdout()
	if len(result.Positions) == 0 {
		fmt.Fprintln(w, "No positions.")
	}
	for _, row := range result.Positions {
		fmt.Fprintf(w, "%s  %s  %s\n", row.Account, row.Instrument, row.Quantity)
	}
	fmt.Fprintf(w, "\nseq=%d state=%s\n", result.Seq, result.StateHash)
	return nil
}
