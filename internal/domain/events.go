package domain

import "time"

// EventKind names an event variant.
type EventKind string

const (
	EventPositionCreated EventKind = "positionCreated"
	EventPositionUpdated EventKind = "positionUpdated"
	EventPositionClosed  EventKind = "positionClosed"
	EventSellExecuted    EventKind = "sellExecuted"
	EventStrategyCreated EventKind = "strategyCreated"
	EventStrategyUpdated EventKind = "strategyUpdated"
	EventStrategyDeleted EventKind = "strategyDeleted"
	EventStarted         EventKind = "started"
	EventStopped         EventKind = "stopped"
	EventTokenDiscovered EventKind = "tokenDiscovered"
	EventTradeExecuted   EventKind = "tradeExecuted"
	EventTradeError      EventKind = "tradeError"
)

// Event is implemented by every lifecycle notification emitted by the engine.
type Event interface {
	Kind() EventKind
}

// --- Position manager events ---

type PositionCreated struct{ Position *Position }

type PositionUpdated struct{ Position *Position }

type PositionClosed struct{ Position *Position }

type SellExecuted struct {
	PositionID   string
	TokenAddress string
	Price        float64
	Reason       CloseReason
	TxRef        string
}

func (PositionCreated) Kind() EventKind { return EventPositionCreated }
func (PositionUpdated) Kind() EventKind { return EventPositionUpdated }
func (PositionClosed) Kind() EventKind  { return EventPositionClosed }
func (SellExecuted) Kind() EventKind    { return EventSellExecuted }

// --- Auto trader events ---

type StrategyCreated struct{ Strategy *Strategy }

type StrategyUpdated struct{ Strategy *Strategy }

type StrategyDeleted struct{ StrategyID string }

type Started struct{ At time.Time }

type Stopped struct{ At time.Time }

type TokenDiscovered struct {
	StrategyID  string
	Opportunity Opportunity
}

type TradeExecuted struct {
	StrategyID   string
	PositionID   string
	TokenAddress string
	AmountSOL    float64
	TokenAmount  float64
	EntryPrice   float64
	TxRef        string
	Notify       bool // Strategy's OnEntry toggle
}

type TradeError struct {
	StrategyID   string
	TokenAddress string
	AmountSOL    float64
	Err          error
	Notify       bool // Strategy's OnError toggle
}

func (StrategyCreated) Kind() EventKind { return EventStrategyCreated }
func (StrategyUpdated) Kind() EventKind { return EventStrategyUpdated }
func (StrategyDeleted) Kind() EventKind { return EventStrategyDeleted }
func (Started) Kind() EventKind         { return EventStarted }
func (Stopped) Kind() EventKind         { return EventStopped }
func (TokenDiscovered) Kind() EventKind { return EventTokenDiscovered }
func (TradeExecuted) Kind() EventKind   { return EventTradeExecuted }
func (TradeError) Kind() EventKind      { return EventTradeError }
