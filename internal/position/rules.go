package position

import "solTradeBot/internal/domain"

// exitReason evaluates the exit rules of an open position against price in fixed
// priority order: take-profit, stop-loss, trailing-stop. The first match wins.
// HighestPrice must already reflect price.
func exitReason(p *domain.Position, price float64) (domain.CloseReason, bool) {
	if p.TakeProfit != nil && price >= p.EntryPrice*(1+*p.TakeProfit/100) {
		return domain.CloseReasonTakeProfit, true
	}
	if p.StopLoss != nil && price <= p.EntryPrice*(1-*p.StopLoss/100) {
		return domain.CloseReasonStopLoss, true
	}
	if p.TrailingStop != nil && price <= p.HighestPrice*(1-*p.TrailingStop/100) {
		return domain.CloseReasonTrailingStop, true
	}
	return "", false
}

// profitPercent is the percentage move from entry to exit. A zero entry price
// (never produced by a settled swap) yields 0 rather than an infinity.
func profitPercent(entry, exit float64) float64 {
	if entry <= 0 {
		return 0
	}
	return (exit - entry) / entry * 100
}
