package domain

// SwapDirection represents the side of a swap against the base asset (SOL).
type SwapDirection string

const (
	Buy  SwapDirection = "BUY"  // SOL -> token
	Sell SwapDirection = "SELL" // token -> SOL
)

// PositionStatus represents the status of a trading position.
type PositionStatus string

const (
	StatusOpen   PositionStatus = "OPEN"
	StatusClosed PositionStatus = "CLOSED"
)

// CloseReason indicates why a position was closed.
type CloseReason string

const (
	CloseReasonTakeProfit   CloseReason = "TAKE_PROFIT"
	CloseReasonStopLoss     CloseReason = "STOP_LOSS"
	CloseReasonTrailingStop CloseReason = "TRAILING_STOP"
	CloseReasonManual       CloseReason = "MANUAL" // Operator-initiated exit
)

// BaseAssetMint is the wrapped SOL mint every price is quoted against.
const BaseAssetMint = "So11111111111111111111111111111111111111112"

// Float returns a pointer to v. Handy for the nullable percentage thresholds.
func Float(v float64) *float64 {
	return &v
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
