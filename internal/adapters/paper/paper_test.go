package paper

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solTradeBot/internal/domain"
	"solTradeBot/internal/ports"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type fixedOracle struct {
	price float64
	err   error
}

func (o *fixedOracle) Price(ctx context.Context, token string) (float64, error) {
	return o.price, o.err
}

func newVenue(t *testing.T, sol, slippagePct float64, oracle *fixedOracle) (*Swap, *Wallet) {
	t.Helper()
	w := NewWallet("paper-wallet", sol)
	s, err := NewSwap(SwapConfig{SlippagePercent: slippagePct}, w, oracle, &mockLogger{})
	require.NoError(t, err)
	return s, w
}

func TestBuyThenSell(t *testing.T) {
	oracle := &fixedOracle{price: 0.001}
	s, w := newVenue(t, 1, 0, oracle)
	ctx := context.Background()

	buy, err := s.Swap(ctx, ports.SwapRequest{Direction: domain.Buy, Token: "MINT1", Amount: 0.1, SlippageBps: 100})
	require.NoError(t, err)
	assert.InDelta(t, 0.1, buy.InAmount, 1e-12)
	assert.InDelta(t, 100, buy.OutAmount, 1e-9)
	assert.NotEmpty(t, buy.TxRef)

	bal, err := w.BalanceSOL(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.9, bal, 1e-12)
	assert.InDelta(t, 100, w.TokenBalance("MINT1"), 1e-9)

	oracle.price = 0.002
	sell, err := s.Swap(ctx, ports.SwapRequest{Direction: domain.Sell, Token: "MINT1", Amount: buy.OutAmount, SlippageBps: 300})
	require.NoError(t, err)
	assert.InDelta(t, 0.2, sell.OutAmount, 1e-9)

	bal, _ = w.BalanceSOL(ctx)
	assert.InDelta(t, 1.1, bal, 1e-9)
	assert.Zero(t, w.TokenBalance("MINT1"))
}

func TestSlippageMovesAgainstTrader(t *testing.T) {
	s, _ := newVenue(t, 1, 1, &fixedOracle{price: 0.01})

	buy, err := s.Swap(context.Background(), ports.SwapRequest{Direction: domain.Buy, Token: "MINT1", Amount: 0.101, SlippageBps: 200})
	require.NoError(t, err)
	assert.InDelta(t, 10, buy.OutAmount, 1e-9, "0.101 SOL at 0.0101")
	assert.Equal(t, 1.0, buy.PriceImpactPct)
}

func TestBuyTruncatesToLamports(t *testing.T) {
	s, w := newVenue(t, 1, 0, &fixedOracle{price: 0.001})

	buy, err := s.Swap(context.Background(), ports.SwapRequest{Direction: domain.Buy, Token: "MINT1", Amount: 0.1234567899, SlippageBps: 100})
	require.NoError(t, err)
	assert.Equal(t, 0.123456789, buy.InAmount)

	bal, err := w.BalanceSOL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.876543211, bal)
}

func TestSwapFailures(t *testing.T) {
	tests := []struct {
		name   string
		oracle *fixedOracle
		slip   float64
		req    ports.SwapRequest
		want   error
	}{
		{"insufficient SOL", &fixedOracle{price: 1}, 0, ports.SwapRequest{Direction: domain.Buy, Token: "T", Amount: 5}, ports.ErrInsufficientFunds},
		{"no tokens to sell", &fixedOracle{price: 1}, 0, ports.SwapRequest{Direction: domain.Sell, Token: "T", Amount: 1}, ports.ErrInsufficientFunds},
		{"no price", &fixedOracle{err: ports.ErrPriceUnavailable}, 0, ports.SwapRequest{Direction: domain.Buy, Token: "T", Amount: 0.1}, ports.ErrPriceUnavailable},
		{"tolerance exceeded", &fixedOracle{price: 1}, 2, ports.SwapRequest{Direction: domain.Buy, Token: "T", Amount: 0.1, SlippageBps: 100}, ports.ErrSwapFailed},
		{"zero amount", &fixedOracle{price: 1}, 0, ports.SwapRequest{Direction: domain.Buy, Token: "T"}, ports.ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, w := newVenue(t, 1, tt.slip, tt.oracle)
			_, err := s.Swap(context.Background(), tt.req)
			assert.ErrorIs(t, err, ports.ErrSwapFailed)
			assert.ErrorIs(t, err, tt.want)

			bal, _ := w.BalanceSOL(context.Background())
			assert.Equal(t, 1.0, bal, "nothing settles on failure")
		})
	}
}

func TestNewSwapValidation(t *testing.T) {
	_, err := NewSwap(SwapConfig{}, nil, &fixedOracle{}, &mockLogger{})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}

func TestFullExitAfterFloatRoundTrip(t *testing.T) {
	s, w := newVenue(t, 1, 0.5, &fixedOracle{price: 0.0013})
	ctx := context.Background()

	buy, err := s.Swap(ctx, ports.SwapRequest{Direction: domain.Buy, Token: "MINT1", Amount: 0.1, SlippageBps: 100})
	require.NoError(t, err)

	_, err = s.Swap(ctx, ports.SwapRequest{Direction: domain.Sell, Token: "MINT1", Amount: buy.OutAmount, SlippageBps: 300})
	require.NoError(t, err)
	assert.Zero(t, w.TokenBalance("MINT1"))
}
