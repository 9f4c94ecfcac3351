package utils

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"solTradeBot/internal/domain"
)

// WritePositionsCSV writes one row per position. Nullable fields are left empty.
func WritePositionsCSV(w io.Writer, positions []*domain.Position) error {
	writer := csv.NewWriter(w)

	// Write header
	writer.Write([]string{"id", "token_address", "token_symbol", "status", "strategy_id", "entry_price", "amount",
		"initial_investment_sol", "exit_price", "profit_pct", "close_reason", "created_at", "closed_at"})

	for _, p := range positions {
		closedAt := ""
		if p.ClosedAt != nil {
			closedAt = p.ClosedAt.Format(time.RFC3339)
		}
		writer.Write([]string{
			p.ID,
			p.TokenAddress,
			p.TokenSymbol,
			string(p.Status),
			p.StrategyID,
			strconv.FormatFloat(p.EntryPrice, 'f', -1, 64),
			strconv.FormatFloat(p.Amount, 'f', -1, 64),
			strconv.FormatFloat(p.InitialInvestment, 'f', -1, 64),
			formatOptional(p.ExitPrice),
			formatOptional(p.Profit),
			string(p.CloseReason),
			p.CreatedAt.Format(time.RFC3339),
			closedAt,
		})
	}
	writer.Flush()
	return writer.Error()
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
