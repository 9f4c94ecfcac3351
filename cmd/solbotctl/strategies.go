package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"solTradeBot/internal/adapters/sqlite"
	"solTradeBot/internal/analytics"
	"solTradeBot/internal/domain"
)

func newStrategiesCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "strategies",
		Short: "List strategies and their trade counters",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored strategies with their key limits",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(opts, func(ctx context.Context, repo *sqlite.Repository) error {
				strategies, err := repo.LoadStrategies(ctx)
				if err != nil {
					return err
				}
				if opts.format == "json" {
					return writeJSON(cmd.OutOrStdout(), strategies)
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tENABLED\tMAX POS\tSIZE SOL\tBUDGET SOL\tSL%\tTP%\tTS%\tMAX RISK")
				for _, s := range strategies {
					c := s.Config
					ts := "-"
					if c.TrailingStop != nil {
						ts = fmt.Sprintf("%g", *c.TrailingStop)
					}
					fmt.Fprintf(w, "%s\t%s\t%t\t%d\t%g\t%g\t%g\t%g\t%s\t%d\n",
						s.ID, s.Name, s.Enabled, c.MaxConcurrentPositions, c.MaxPositionSizeSOL,
						c.TotalBudgetSOL, c.StopLoss, c.TakeProfit, ts, c.MaxRiskLevel)
				}
				return w.Flush()
			})
		},
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Per-strategy trade counters and realised profit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(opts, func(ctx context.Context, repo *sqlite.Repository) error {
				strategies, err := repo.LoadStrategies(ctx)
				if err != nil {
					return err
				}
				rows := make([]strategyStats, 0, len(strategies))
				for _, s := range strategies {
					closed, err := repo.ClosedPositions(ctx, s.ID)
					if err != nil {
						return err
					}
					rows = append(rows, newStrategyStats(s, analytics.AnalyzePositions(closed, s.Config.TotalBudgetSOL)))
				}
				if opts.format == "json" {
					return writeJSON(cmd.OutOrStdout(), rows)
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tTRADES\tOK\tFAILED\tCLOSED\tWIN%\tPROFIT SOL")
				for _, r := range rows {
					fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%.1f\t%.6f\n",
						r.ID, r.Name, r.TotalTrades, r.SuccessfulTrades, r.FailedTrades, r.ClosedTrades, r.WinRate*100, r.Profit)
				}
				return w.Flush()
			})
		},
	}

	cmd.AddCommand(list, stats)
	return cmd
}

type strategyStats struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	TotalTrades      int     `json:"totalTrades"`
	SuccessfulTrades int     `json:"successfulTrades"`
	FailedTrades     int     `json:"failedTrades"`
	ClosedTrades     int     `json:"closedTrades"`
	WinRate          float64 `json:"winRate"`
	Profit           float64 `json:"profitSOL"`
}

func newStrategyStats(s *domain.Strategy, m *analytics.PerformanceMetrics) strategyStats {
	return strategyStats{
		ID:               s.ID,
		Name:             s.Name,
		TotalTrades:      s.Stats.TotalTrades,
		SuccessfulTrades: s.Stats.SuccessfulTrades,
		FailedTrades:     s.Stats.FailedTrades,
		ClosedTrades:     m.TotalTrades,
		WinRate:          m.WinRate,
		Profit:           s.Stats.Profit,
	}
}
