package paper

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"solTradeBot/internal/domain"
	"solTradeBot/internal/ports"
)

// SwapConfig holds the paper venue options.
type SwapConfig struct {
	SlippagePercent float64 // Applied against the trader on every fill
	Now             func() time.Time
}

// Swap implements ports.SwapProvider against a paper Wallet.
type Swap struct {
	cfg    SwapConfig
	wallet *Wallet
	oracle ports.PriceOracle
	logger ports.Logger
}

func NewSwap(cfg SwapConfig, wallet *Wallet, oracle ports.PriceOracle, logger ports.Logger) (*Swap, error) {
	if wallet == nil || oracle == nil || logger == nil {
		return nil, fmt.Errorf("paper swap needs wallet, oracle and logger: %w", ports.ErrConfigurationError)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Swap{cfg: cfg, wallet: wallet, oracle: oracle, logger: logger}, nil
}

// Swap fills the request at the oracle price moved against the trader by the configured slippage.
func (s *Swap) Swap(ctx context.Context, req ports.SwapRequest) (*ports.SwapResult, error) {
	op := "PaperSwap.Swap"
	fields := map[string]interface{}{"direction": string(req.Direction), "token": req.Token, "amount": req.Amount}

	if req.Amount <= 0 || req.Token == "" {
		return nil, fmt.Errorf("%s: %w: %w", op, ports.ErrSwapFailed, ports.ErrInvalidRequest)
	}
	slippageBps := int(s.cfg.SlippagePercent * 100)
	if req.SlippageBps > 0 && slippageBps > req.SlippageBps {
		return nil, fmt.Errorf("%s: slippage %dbps exceeds tolerance %dbps: %w", op, slippageBps, req.SlippageBps, ports.ErrSwapFailed)
	}

	price, err := s.oracle.Price(ctx, req.Token)
	if err != nil {
		s.logger.Warn(ctx, op+": no price for fill", fields)
		return nil, fmt.Errorf("%s: %w: %w", op, ports.ErrSwapFailed, err)
	}

	slip := decimal.NewFromFloat(s.cfg.SlippagePercent).Div(decimal.NewFromInt(100))
	mid := decimal.NewFromFloat(price)
	amount := decimal.NewFromFloat(req.Amount)

	var in, out decimal.Decimal
	switch req.Direction {
	case domain.Buy:
		// Truncate so the debit never exceeds what the caller sized.
		in = amount.Truncate(lamportPlaces)
		out = in.Div(mid.Mul(decimal.NewFromInt(1).Add(slip)))
		err = s.wallet.exchange("", in, req.Token, out)
	case domain.Sell:
		in = amount
		out = in.Mul(mid.Mul(decimal.NewFromInt(1).Sub(slip))).Round(lamportPlaces)
		err = s.wallet.exchange(req.Token, in, "", out)
	default:
		return nil, fmt.Errorf("%s: direction %q: %w: %w", op, req.Direction, ports.ErrSwapFailed, ports.ErrInvalidRequest)
	}
	if err != nil {
		s.logger.Warn(ctx, op+": fill rejected", mergeFields(fields, map[string]interface{}{"error": err.Error()}))
		return nil, fmt.Errorf("%s: %w: %w", op, ports.ErrSwapFailed, err)
	}

	res := &ports.SwapResult{
		InAmount:       in.InexactFloat64(),
		OutAmount:      out.InexactFloat64(),
		PriceImpactPct: s.cfg.SlippagePercent,
		TxRef:          "paper-" + uuid.NewString(),
		Timestamp:      s.cfg.Now(),
	}
	s.logger.Info(ctx, "Paper swap filled", mergeFields(fields, map[string]interface{}{
		"in": res.InAmount, "out": res.OutAmount, "price": price, "tx": res.TxRef,
	}))
	return res, nil
}

func mergeFields(a, b map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}
