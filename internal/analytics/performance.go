// Package analytics summarises closed positions.
package analytics

import (
	"math"
	"sort"
	"time"

	"solTradeBot/internal/domain"
)

// PerformanceMetrics holds realised performance over a set of closed positions.
// Money values are SOL.
type PerformanceMetrics struct {
	// Basic Metrics
	TotalTrades        int
	WinningTrades      int
	LosingTrades       int
	WinRate            float64
	TotalProfit        float64
	TotalInvested      float64
	MaxDrawdown        float64
	ProfitFactor       float64
	AverageWin         float64
	AverageLoss        float64
	FinalBalance       float64
	ReturnOnInvestment float64

	// Advanced Metrics
	MaxConsecutiveWins   int
	MaxConsecutiveLosses int
	AverageHoldDuration  time.Duration
	RecoveryFactor       float64
	Expectancy           float64
	BestTradePercent     float64
	WorstTradePercent    float64
	ExitReasons          map[domain.CloseReason]int
	MonthlyReturns       map[string]float64
	Drawdowns            []Drawdown
	EquityCurve          []EquityPoint
}

// Drawdown represents a drawdown period
type Drawdown struct {
	StartTime  time.Time
	EndTime    time.Time
	StartValue float64
	EndValue   float64
	Depth      float64
	Duration   time.Duration
}

// EquityPoint represents a point on the equity curve
type EquityPoint struct {
	Time     time.Time
	Value    float64
	Drawdown float64
}

// AnalyzePositions calculates performance from closed positions, replayed in close order
// on top of initialBalance. Open positions are ignored.
func AnalyzePositions(positions []*domain.Position, initialBalance float64) *PerformanceMetrics {
	metrics := &PerformanceMetrics{
		FinalBalance:   initialBalance,
		ExitReasons:    make(map[domain.CloseReason]int),
		MonthlyReturns: make(map[string]float64),
		Drawdowns:      make([]Drawdown, 0),
		EquityCurve:    make([]EquityPoint, 0),
	}

	closed := make([]*domain.Position, 0, len(positions))
	for _, p := range positions {
		if !p.IsOpen() && p.ClosedAt != nil && p.Profit != nil {
			closed = append(closed, p)
		}
	}
	if len(closed) == 0 {
		return metrics
	}

	sort.SliceStable(closed, func(i, j int) bool {
		return closed[i].ClosedAt.Before(*closed[j].ClosedAt)
	})

	var currentBalance = initialBalance
	var peakBalance = initialBalance
	var currentDrawdown *Drawdown
	var consecutiveWins, consecutiveLosses int
	var grossWin, grossLoss float64
	var totalHold time.Duration

	metrics.BestTradePercent = math.Inf(-1)
	metrics.WorstTradePercent = math.Inf(1)

	for _, p := range closed {
		pnl := p.RealizedProfitSOL()
		exitTime := *p.ClosedAt

		metrics.TotalTrades++
		metrics.TotalInvested += p.InitialInvestment
		metrics.ExitReasons[p.CloseReason]++
		metrics.BestTradePercent = math.Max(metrics.BestTradePercent, *p.Profit)
		metrics.WorstTradePercent = math.Min(metrics.WorstTradePercent, *p.Profit)
		totalHold += exitTime.Sub(p.CreatedAt)

		if pnl > 0 {
			metrics.WinningTrades++
			grossWin += pnl
			consecutiveWins++
			consecutiveLosses = 0
		} else {
			metrics.LosingTrades++
			grossLoss += pnl
			consecutiveLosses++
			consecutiveWins = 0
		}
		if consecutiveWins > metrics.MaxConsecutiveWins {
			metrics.MaxConsecutiveWins = consecutiveWins
		}
		if consecutiveLosses > metrics.MaxConsecutiveLosses {
			metrics.MaxConsecutiveLosses = consecutiveLosses
		}

		currentBalance += pnl
		metrics.TotalProfit += pnl
		metrics.FinalBalance = currentBalance
		metrics.MonthlyReturns[exitTime.Format("2006-01")] += pnl

		// Drawdown tracking
		if currentBalance > peakBalance {
			peakBalance = currentBalance
			if currentDrawdown != nil {
				currentDrawdown.EndTime = exitTime
				currentDrawdown.EndValue = currentBalance
				currentDrawdown.Duration = currentDrawdown.EndTime.Sub(currentDrawdown.StartTime)
				metrics.Drawdowns = append(metrics.Drawdowns, *currentDrawdown)
				currentDrawdown = nil
			}
		} else if peakBalance > 0 {
			drawdown := (peakBalance - currentBalance) / peakBalance
			if currentDrawdown == nil {
				currentDrawdown = &Drawdown{StartTime: exitTime, StartValue: peakBalance, Depth: drawdown}
			} else {
				currentDrawdown.Depth = math.Max(currentDrawdown.Depth, drawdown)
			}
			metrics.MaxDrawdown = math.Max(metrics.MaxDrawdown, drawdown)
		}

		point := EquityPoint{Time: exitTime, Value: currentBalance}
		if peakBalance > 0 {
			point.Drawdown = (peakBalance - currentBalance) / peakBalance
		}
		metrics.EquityCurve = append(metrics.EquityCurve, point)
	}

	// Close any open drawdown
	if currentDrawdown != nil {
		currentDrawdown.EndTime = *closed[len(closed)-1].ClosedAt
		currentDrawdown.EndValue = currentBalance
		currentDrawdown.Duration = currentDrawdown.EndTime.Sub(currentDrawdown.StartTime)
		metrics.Drawdowns = append(metrics.Drawdowns, *currentDrawdown)
	}

	n := float64(metrics.TotalTrades)
	metrics.WinRate = float64(metrics.WinningTrades) / n
	if metrics.WinningTrades > 0 {
		metrics.AverageWin = grossWin / float64(metrics.WinningTrades)
	}
	if metrics.LosingTrades > 0 {
		metrics.AverageLoss = grossLoss / float64(metrics.LosingTrades)
	}
	if grossLoss != 0 {
		metrics.ProfitFactor = grossWin / -grossLoss
	}
	if metrics.TotalInvested > 0 {
		metrics.ReturnOnInvestment = metrics.TotalProfit / metrics.TotalInvested
	}
	metrics.AverageHoldDuration = totalHold / time.Duration(metrics.TotalTrades)
	if metrics.MaxDrawdown > 0 && initialBalance > 0 {
		metrics.RecoveryFactor = metrics.TotalProfit / (initialBalance * metrics.MaxDrawdown)
	}
	metrics.Expectancy = metrics.WinRate*metrics.AverageWin + (1-metrics.WinRate)*metrics.AverageLoss

	return metrics
}

// GetMonthlyReturns returns the monthly returns as a sorted slice
func (m *PerformanceMetrics) GetMonthlyReturns() []MonthlyReturn {
	returns := make([]MonthlyReturn, 0, len(m.MonthlyReturns))
	for month, profit := range m.MonthlyReturns {
		date, _ := time.Parse("2006-01", month)
		returns = append(returns, MonthlyReturn{
			Month:  date,
			Return: profit,
		})
	}
	sort.Slice(returns, func(i, j int) bool {
		return returns[i].Month.Before(returns[j].Month)
	})
	return returns
}

// MonthlyReturn represents a monthly return value
type MonthlyReturn struct {
	Month  time.Time
	Return float64
}
