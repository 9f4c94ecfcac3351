package main

import (
	"context"
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"solTradeBot/internal/adapters/sqlite"
	"solTradeBot/internal/analytics"
	"solTradeBot/internal/domain"
	"solTradeBot/internal/utils"
)

func newPositionsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "positions",
		Short: "List positions and their realised performance",
	}

	var openOnly bool
	var strategyID string
	list := &cobra.Command{
		Use:   "list",
		Short: "List stored positions, oldest first",
		Example: `  solbotctl positions list --open
  solbotctl positions list --strategy 0191c2a4-... --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(opts, func(ctx context.Context, repo *sqlite.Repository) error {
				all, err := repo.LoadPositions(ctx)
				if err != nil {
					return err
				}
				var rows []*domain.Position
				for _, p := range all {
					if openOnly && !p.IsOpen() {
						continue
					}
					if strategyID != "" && p.StrategyID != strategyID {
						continue
					}
					rows = append(rows, p)
				}
				switch opts.format {
				case "json":
					return writeJSON(cmd.OutOrStdout(), rows)
				case "csv":
					return utils.WritePositionsCSV(cmd.OutOrStdout(), rows)
				}
				return printPositions(cmd, rows)
			})
		},
	}
	list.Flags().BoolVar(&openOnly, "open", false, "Only open positions")
	list.Flags().StringVar(&strategyID, "strategy", "", "Only positions opened by this strategy")

	var balance float64
	var statsStrategy string
	stats := &cobra.Command{
		Use:   "stats",
		Short: "Realised performance over closed positions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(opts, func(ctx context.Context, repo *sqlite.Repository) error {
				closed, err := repo.ClosedPositions(ctx, statsStrategy)
				if err != nil {
					return err
				}
				m := analytics.AnalyzePositions(closed, balance)
				if opts.format == "json" {
					return writeJSON(cmd.OutOrStdout(), m)
				}
				return printPerformance(cmd, m)
			})
		},
	}
	stats.Flags().Float64Var(&balance, "balance", 10, "Starting SOL balance the equity curve is replayed from")
	stats.Flags().StringVar(&statsStrategy, "strategy", "", "Only positions opened by this strategy")

	cmd.AddCommand(list, stats)
	return cmd
}

func printPositions(cmd *cobra.Command, rows []*domain.Position) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTOKEN\tSTATUS\tENTRY\tAMOUNT\tEXIT\tPROFIT%\tREASON\tSTRATEGY\tOPENED")
	for _, p := range rows {
		exit, profit := "-", "-"
		if p.ExitPrice != nil {
			exit = fmt.Sprintf("%.9g", *p.ExitPrice)
		}
		if p.Profit != nil {
			profit = fmt.Sprintf("%.2f", *p.Profit)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.9g\t%.6g\t%s\t%s\t%s\t%s\t%s\n",
			p.ID, tokenLabel(p), p.Status, p.EntryPrice, p.Amount, exit, profit,
			orDash(string(p.CloseReason)), orDash(p.StrategyID), p.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func printPerformance(cmd *cobra.Command, m *analytics.PerformanceMetrics) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Closed trades\t%d\n", m.TotalTrades)
	fmt.Fprintf(w, "Win rate\t%.1f%%\n", m.WinRate*100)
	fmt.Fprintf(w, "Realised profit\t%.6f SOL\n", m.TotalProfit)
	fmt.Fprintf(w, "Return on invested\t%.2f%%\n", m.ReturnOnInvestment*100)
	fmt.Fprintf(w, "Profit factor\t%.2f\n", m.ProfitFactor)
	fmt.Fprintf(w, "Max drawdown\t%.2f%%\n", m.MaxDrawdown*100)
	fmt.Fprintf(w, "Average hold\t%s\n", m.AverageHoldDuration.Round(time.Second))

	reasons := make([]string, 0, len(m.ExitReasons))
	for r := range m.ExitReasons {
		reasons = append(reasons, string(r))
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		fmt.Fprintf(w, "Exits %s\t%d\n", r, m.ExitReasons[domain.CloseReason(r)])
	}
	for _, mr := range m.GetMonthlyReturns() {
		fmt.Fprintf(w, "Month %s\t%.6f SOL\n", mr.Month.Format("2006-01"), mr.Return)
	}
	return w.Flush()
}

func tokenLabel(p *domain.Position) string {
	if p.TokenSymbol != "" {
		return p.TokenSymbol
	}
	return p.TokenAddress
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
