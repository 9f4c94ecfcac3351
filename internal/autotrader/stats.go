package autotrader

// Performance aggregates the stats of every strategy.
type Performance struct {
	StrategyCount    int
	ActiveStrategies int
	TotalTrades      int
	SuccessfulTrades int
	FailedTrades     int
	WinRate          float64 // Percent of trades that settled; 0 without trades
	TotalProfit      float64 // Realised SOL
}

// PerformanceStats sums the counters of all strategies.
func (t *Trader) PerformanceStats() Performance {
	var p Performance
	for _, s := range t.Strategies() {
		p.StrategyCount++
		if s.Enabled {
			p.ActiveStrategies++
		}
		p.TotalTrades += s.Stats.TotalTrades
		p.SuccessfulTrades += s.Stats.SuccessfulTrades
		p.FailedTrades += s.Stats.FailedTrades
		p.TotalProfit += s.Stats.Profit
	}
	if p.TotalTrades > 0 {
		p.WinRate = float64(p.SuccessfulTrades) / float64(p.TotalTrades) * 100
	}
	return p
}
