package cli

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tally/internal/ledger"
	"github.com/roach88/tally/internal/storage/sqlite"
)

// AccountConfig declares one account in the book.
type AccountConfig struct {
	ID   string `yaml:"id"`
	Type string `yaml:"type"`
}

// Config is the YAML configuration shared by all commands. The store
// holds the log; the registry (accounts, instrument assignments) lives
// in config because it is operator-owned, not log-derived.
type Config struct {
	Store       string            `yaml:"store"`
	Accounts    []AccountConfig   `yaml:"accounts"`
	Instruments map[string]string `yaml:"instruments"`
}

// LoadConfig reads and validates the YAML config at path.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("no config file given (use --config)")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.Store == "" {
		return nil, fmt.Errorf("config %s: store path is required", path)
	}
	return &cfg, nil
}

// openLedger opens the durable store, registers the configured book,
// and recovers state by folding the log. The caller owns closing the
// returned store.
func openLedger(ctx context.Context, cfg *Config) (*ledger.Ledger, *sqlite.Store, error) {
	st, err := sqlite.Open(cfg.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store %s: %w", cfg.Store, err)
	}

	l := ledger.New(st)
	for _, ac := range cfg.Accounts {
		acc, err := ledger.NewAccount(ac.ID, ledger.AccountType(ac.Type))
		if err != nil {
			st.Close()
			return nil, nil, fmt.Errorf("config account %q: %w", ac.ID, err)
		}
		if _, err := l.RegisterAccount(acc); err != nil {
			st.Close()
			return nil, nil, err
		}
	}
	for unit, typ := range cfg.Instruments {
		if err := l.RegisterInstrument(unit, ledger.AccountType(typ)); err != nil {
			st.Close()
			return nil, nil, fmt.Errorf("config instrument %q: %w", unit, err)
		}
	}

	if err := l.Recover(ctx); err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("recovering ledger: %w", err)
	}
	return l, st, nil
}
