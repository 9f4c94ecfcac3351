// Command solbotctl inspects the engine's database: positions, strategies and
// realised performance. It never modifies state.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"solTradeBot/internal/adapters/logger"
	"solTradeBot/internal/adapters/sqlite"
)

type options struct {
	dbPath string
	format string
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "solbotctl",
		Short:         "Inspect positions and strategies of the Solana trading engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&opts.dbPath, "db", envOr("DB_PATH", "./data/soltrader.db"), "Path to the engine's SQLite database")
	root.PersistentFlags().StringVar(&opts.format, "format", "table", "Output format: table, json or csv (csv for positions list)")

	root.AddCommand(newPositionsCmd(opts), newStrategiesCmd(opts))
	return root
}

// openRepo opens the database with logging silenced below errors.
func openRepo(opts *options) (*sqlite.Repository, error) {
	if opts.format != "table" && opts.format != "json" && opts.format != "csv" {
		return nil, fmt.Errorf("unknown format %q", opts.format)
	}
	if _, err := os.Stat(opts.dbPath); err != nil {
		return nil, fmt.Errorf("database %s: %w", opts.dbPath, err)
	}
	return sqlite.NewRepository(sqlite.Config{
		DBPath: opts.dbPath,
		Logger: logger.New("text", logger.LevelError, os.Stderr),
	})
}

func withRepo(opts *options, fn func(ctx context.Context, repo *sqlite.Repository) error) error {
	repo, err := openRepo(opts)
	if err != nil {
		return err
	}
	defer repo.Close()
	return fn(context.Background(), repo)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
