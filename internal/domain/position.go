package domain

import "time"

// Position represents a single open or closed trade tracked by the position manager.
type Position struct {
	ID           string  // Time-sortable unique identifier (UUIDv7)
	TokenAddress string  // Mint address of the traded token
	TokenSymbol  string  // Informational only
	EntryPrice   float64 // SOL per token at open
	Amount       float64 // Quantity held, in token units
	HighestPrice float64 // High-water mark since entry, only used by the trailing stop

	// Exit rules in percent. Nil disables the rule.
	StopLoss     *float64
	TakeProfit   *float64
	TrailingStop *float64

	Status            PositionStatus
	StrategyID        string  // Empty for manually opened positions
	InitialInvestment float64 // SOL committed, used for strategy budget accounting
	EntryTx           string  // Swap reference of the opening trade

	CreatedAt time.Time
	UpdatedAt time.Time

	// Populated only on close.
	ExitPrice   *float64
	Profit      *float64 // Percent relative to entry price
	ClosedAt    *time.Time
	CloseReason CloseReason
}

// IsOpen checks if the position status is open.
func (p *Position) IsOpen() bool {
	return p.Status == StatusOpen
}

// RealizedProfitSOL converts the percentage profit of a closed position into SOL
// using the initial investment. Returns 0 for open positions.
func (p *Position) RealizedProfitSOL() float64 {
	if p.Profit == nil {
		return 0
	}
	return p.InitialInvestment * *p.Profit / 100
}

// Clone returns a deep copy so callers never share mutable state with the manager.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	c := *p
	c.StopLoss = cloneFloat(p.StopLoss)
	c.TakeProfit = cloneFloat(p.TakeProfit)
	c.TrailingStop = cloneFloat(p.TrailingStop)
	c.ExitPrice = cloneFloat(p.ExitPrice)
	c.Profit = cloneFloat(p.Profit)
	if p.ClosedAt != nil {
		t := *p.ClosedAt
		c.ClosedAt = &t
	}
	return &c
}

// PositionOptions carries the optional attributes accepted when a position is opened.
type PositionOptions struct {
	TokenSymbol       string
	StopLoss          *float64
	TakeProfit        *float64
	TrailingStop      *float64
	StrategyID        string
	InitialInvestment float64
	EntryTx           string
}

// PositionUpdate is a shallow patch over the mutable fields of an open position.
// Nil fields are left untouched. A threshold set to a value <= 0 disables that rule.
type PositionUpdate struct {
	Amount       *float64
	StopLoss     *float64
	TakeProfit   *float64
	TrailingStop *float64
}

// Apply merges the patch into p.
func (u PositionUpdate) Apply(p *Position) {
	if u.Amount != nil {
		p.Amount = *u.Amount
	}
	p.StopLoss = mergeThreshold(p.StopLoss, u.StopLoss)
	p.TakeProfit = mergeThreshold(p.TakeProfit, u.TakeProfit)
	p.TrailingStop = mergeThreshold(p.TrailingStop, u.TrailingStop)
}

func mergeThreshold(current, patch *float64) *float64 {
	if patch == nil {
		return current
	}
	if *patch <= 0 {
		return nil
	}
	return cloneFloat(patch)
}
