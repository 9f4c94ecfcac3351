package domain

import "time"

// Strategy is one autonomous, budget- and risk-bounded trading configuration.
type Strategy struct {
	ID        string
	Name      string
	Enabled   bool // Gates both scanning and execution
	CreatedAt time.Time
	LastRun   *time.Time // Most recent execution attempt
	Stats     StrategyStats
	Config    StrategyConfig
}

// StrategyStats accumulate over the lifetime of a strategy and are never reset.
type StrategyStats struct {
	TotalTrades      int
	SuccessfulTrades int
	FailedTrades     int
	Profit           float64 // Realised SOL profit of closed positions
}

// Clone returns a deep copy of the strategy.
func (s *Strategy) Clone() *Strategy {
	if s == nil {
		return nil
	}
	c := *s
	if s.LastRun != nil {
		t := *s.LastRun
		c.LastRun = &t
	}
	c.Config.TrailingStop = cloneFloat(s.Config.TrailingStop)
	return &c
}

// StrategyConfig is the full enumerated option set of a strategy.
type StrategyConfig struct {
	MaxConcurrentPositions int
	MaxPositionSizeSOL     float64
	TotalBudgetSOL         float64
	StopLoss               float64  // Percent drawdown from entry
	TakeProfit             float64  // Percent gain from entry
	TrailingStop           *float64 // Percent drawdown from the high-water mark, nil disables
	MaxRiskLevel           int
	ScanIntervalMinutes    int // Informational; the scan cadence is global
	MinLiquiditySOL        float64
	MinHolders             int
	TokenFilters           TokenFilters
	TradingConditions      TradingConditions
	Notifications          Notifications
}

type TokenFilters struct {
	ExcludeNSFW       bool
	ExcludeMemeTokens bool
	MinAgeHours       float64
	MaxAgeHours       float64
}

type TradingConditions struct {
	MinPriceChangePercent float64
	TimeframeMinutes      int
	MinVolume             float64
	VolumeIncreasePercent float64
}

// Notifications are advisory; the engine emits every event regardless and tags
// them so the chat layer can decide what to forward.
type Notifications struct {
	OnEntry bool
	OnExit  bool
	OnError bool
}

// DefaultStrategyConfig returns the documented defaults for every config field.
func DefaultStrategyConfig() StrategyConfig {
	return StrategyConfig{
		MaxConcurrentPositions: 3,
		MaxPositionSizeSOL:     0.1,
		TotalBudgetSOL:         1.0,
		StopLoss:               10,
		TakeProfit:             30,
		TrailingStop:           nil,
		MaxRiskLevel:           50,
		ScanIntervalMinutes:    5,
		MinLiquiditySOL:        10,
		MinHolders:             50,
		TokenFilters: TokenFilters{
			ExcludeNSFW:       true,
			ExcludeMemeTokens: false,
			MinAgeHours:       0,
			MaxAgeHours:       72,
		},
		TradingConditions: TradingConditions{
			MinPriceChangePercent: 5,
			TimeframeMinutes:      15,
			MinVolume:             5,
			VolumeIncreasePercent: 20,
		},
		Notifications: Notifications{
			OnEntry: true,
			OnExit:  true,
			OnError: true,
		},
	}
}

// NewStrategy is the input accepted by the auto trader when a strategy is created.
type NewStrategy struct {
	Name   string
	Config StrategyConfigPatch
}

// StrategyUpdate overwrites top-level fields and merges Config into the existing config.
type StrategyUpdate struct {
	Name    *string
	Enabled *bool
	Config  *StrategyConfigPatch
}

// StrategyConfigPatch mirrors StrategyConfig with every field optional.
// Fields left nil keep the value they are merged onto.
type StrategyConfigPatch struct {
	MaxConcurrentPositions *int
	MaxPositionSizeSOL     *float64
	TotalBudgetSOL         *float64
	StopLoss               *float64
	TakeProfit             *float64
	TrailingStop           *float64 // <= 0 disables the trailing stop
	MaxRiskLevel           *int
	ScanIntervalMinutes    *int
	MinLiquiditySOL        *float64
	MinHolders             *int
	TokenFilters           *TokenFiltersPatch
	TradingConditions      *TradingConditionsPatch
	Notifications          *NotificationsPatch
}

type TokenFiltersPatch struct {
	ExcludeNSFW       *bool
	ExcludeMemeTokens *bool
	MinAgeHours       *float64
	MaxAgeHours       *float64
}

type TradingConditionsPatch struct {
	MinPriceChangePercent *float64
	TimeframeMinutes      *int
	MinVolume             *float64
	VolumeIncreasePercent *float64
}

type NotificationsPatch struct {
	OnEntry *bool
	OnExit  *bool
	OnError *bool
}

// Merge applies the patch onto base and returns the result. base is not modified.
func (p StrategyConfigPatch) Merge(base StrategyConfig) StrategyConfig {
	out := base
	out.TrailingStop = cloneFloat(base.TrailingStop)

	setInt(&out.MaxConcurrentPositions, p.MaxConcurrentPositions)
	setFloat(&out.MaxPositionSizeSOL, p.MaxPositionSizeSOL)
	setFloat(&out.TotalBudgetSOL, p.TotalBudgetSOL)
	setFloat(&out.StopLoss, p.StopLoss)
	setFloat(&out.TakeProfit, p.TakeProfit)
	out.TrailingStop = mergeThreshold(out.TrailingStop, p.TrailingStop)
	setInt(&out.MaxRiskLevel, p.MaxRiskLevel)
	setInt(&out.ScanIntervalMinutes, p.ScanIntervalMinutes)
	setFloat(&out.MinLiquiditySOL, p.MinLiquiditySOL)
	setInt(&out.MinHolders, p.MinHolders)

	if f := p.TokenFilters; f != nil {
		setBool(&out.TokenFilters.ExcludeNSFW, f.ExcludeNSFW)
		setBool(&out.TokenFilters.ExcludeMemeTokens, f.ExcludeMemeTokens)
		setFloat(&out.TokenFilters.MinAgeHours, f.MinAgeHours)
		setFloat(&out.TokenFilters.MaxAgeHours, f.MaxAgeHours)
	}
	if c := p.TradingConditions; c != nil {
		setFloat(&out.TradingConditions.MinPriceChangePercent, c.MinPriceChangePercent)
		setInt(&out.TradingConditions.TimeframeMinutes, c.TimeframeMinutes)
		setFloat(&out.TradingConditions.MinVolume, c.MinVolume)
		setFloat(&out.TradingConditions.VolumeIncreasePercent, c.VolumeIncreasePercent)
	}
	if n := p.Notifications; n != nil {
		setBool(&out.Notifications.OnEntry, n.OnEntry)
		setBool(&out.Notifications.OnExit, n.OnExit)
		setBool(&out.Notifications.OnError, n.OnError)
	}
	return out
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
