package autotrader

import (
	"context"
	"fmt"

	"solTradeBot/internal/domain"
	"solTradeBot/internal/ports"
	"solTradeBot/internal/risk"
)

// ExecuteStrategies gives every enabled strategy one chance to act on its newest
// unprocessed opportunity. A strategy without spare capacity leaves its queue
// untouched so the opportunity is still there once a position closes.
// Does nothing unless the trader is running.
func (t *Trader) ExecuteStrategies(ctx context.Context) {
	if !t.running.Load() {
		return
	}
	for _, s := range t.enabledStrategies() {
		if ctx.Err() != nil {
			return
		}
		t.executeStrategy(ctx, s.ID)
	}
}

func (t *Trader) executeStrategy(ctx context.Context, strategyID string) {
	op := "executeStrategy"
	t.safely(ctx, op, func() {
		s := t.Strategy(strategyID)
		if s == nil || !s.Enabled {
			return
		}
		budget := risk.NewBudgetManager(risk.ConfigFromStrategy(s.Config))
		if _, err := budget.ValidateCapacity(t.deps.Positions.OpenPositionsByStrategy(strategyID)); err != nil {
			t.logger.Debug(ctx, op+": Strategy at capacity, queue left intact", map[string]interface{}{"strategyID": strategyID, "reason": err.Error()})
			return
		}
		opp := t.nextOpportunity(strategyID)
		if opp == nil {
			return
		}
		_, _ = t.ApplyStrategy(ctx, strategyID, opp)
	})
}

// ApplyStrategy runs the budget and risk gate for one opportunity and, when it
// passes, buys the token and opens a position tagged with the strategy.
//
// A gate that blocks the trade returns (nil, nil). A failed swap returns the swap
// error after recording the failure in the strategy stats.
func (t *Trader) ApplyStrategy(ctx context.Context, strategyID string, opp *domain.Opportunity) (*domain.Position, error) {
	op := "ApplyStrategy"
	t.applyMu.Lock()
	defer t.applyMu.Unlock()

	s := t.Strategy(strategyID)
	if s == nil {
		t.logger.Warn(ctx, op+": Strategy not found", map[string]interface{}{"strategyID": strategyID})
		return nil, fmt.Errorf("strategy %s: %w", strategyID, ports.ErrNotFound)
	}
	if opp == nil {
		return nil, fmt.Errorf("%s: nil opportunity: %w", op, ports.ErrInvalidRequest)
	}
	if t.deps.Swap == nil || t.deps.Positions == nil {
		return nil, fmt.Errorf("%s: %w", op, ports.ErrConfigurationError)
	}
	fields := map[string]interface{}{"strategyID": strategyID, "token": opp.Token.Address}

	// 1+2. Concurrency cap and remaining budget.
	budget := risk.NewBudgetManager(risk.ConfigFromStrategy(s.Config))
	stats, err := budget.ValidateCapacity(t.deps.Positions.OpenPositionsByStrategy(strategyID))
	if err != nil {
		t.logger.Info(ctx, op+": Trade skipped, "+err.Error(), fields)
		return nil, nil
	}

	// Time has passed since the scan; re-score before committing funds.
	if t.deps.Scorer != nil {
		a, err := t.deps.Scorer.Score(ctx, opp.Token.Address)
		if err != nil || a == nil {
			t.logger.Warn(ctx, op+": Trade abandoned, risk re-check failed", mergeFields(fields, map[string]interface{}{"error": errString(err)}))
			return nil, nil
		}
		if a.RiskLevel > s.Config.MaxRiskLevel {
			t.logger.Info(ctx, op+": Trade abandoned, risk rose above limit", mergeFields(fields, map[string]interface{}{
				"riskLevel":    a.RiskLevel,
				"maxRiskLevel": s.Config.MaxRiskLevel,
			}))
			return nil, nil
		}
	}

	// 3. Size with some variability so strategies on the same token do not all
	// buy the maximum.
	size := budget.PositionSize(stats.Available, t.cfg.SizeFactor())
	fields["amountSOL"] = size

	// 4. Execute.
	res, err := t.deps.Swap.Swap(ctx, ports.SwapRequest{
		Direction:   domain.Buy,
		Token:       opp.Token.Address,
		Amount:      size,
		SlippageBps: t.cfg.BuySlippageBps,
	})
	if err == nil && (res == nil || res.OutAmount <= 0 || res.InAmount <= 0) {
		err = fmt.Errorf("%s: empty swap result: %w", op, ports.ErrInvalidResponse)
	}
	if err != nil {
		t.recordTrade(ctx, strategyID, false)
		t.cfg.Metrics.ObserveTrade(strategyID, false)
		t.logger.Error(ctx, err, op+": Entry swap failed", fields)
		t.deps.Publisher.Publish(ctx, domain.TradeError{
			StrategyID:   strategyID,
			TokenAddress: opp.Token.Address,
			AmountSOL:    size,
			Err:          err,
			Notify:       s.Config.Notifications.OnError,
		})
		return nil, err
	}

	entryPrice := res.InAmount / res.OutAmount
	pos, err := t.deps.Positions.AddPosition(ctx, opp.Token.Address, entryPrice, res.OutAmount, domain.PositionOptions{
		TokenSymbol:       opp.Token.Symbol,
		StopLoss:          domain.Float(s.Config.StopLoss),
		TakeProfit:        domain.Float(s.Config.TakeProfit),
		TrailingStop:      s.Config.TrailingStop,
		StrategyID:        strategyID,
		InitialInvestment: res.InAmount,
		EntryTx:           res.TxRef,
	})
	if err != nil {
		// The swap settled; nothing to roll back, but there is no position to monitor.
		t.recordTrade(ctx, strategyID, false)
		t.cfg.Metrics.ObserveTrade(strategyID, false)
		t.logger.Error(ctx, err, op+": Swap settled but position could not be opened", mergeFields(fields, map[string]interface{}{"txRef": res.TxRef}))
		t.deps.Publisher.Publish(ctx, domain.TradeError{
			StrategyID:   strategyID,
			TokenAddress: opp.Token.Address,
			AmountSOL:    res.InAmount,
			Err:          err,
			Notify:       s.Config.Notifications.OnError,
		})
		return nil, err
	}

	t.recordTrade(ctx, strategyID, true)
	t.cfg.Metrics.ObserveTrade(strategyID, true)
	t.logger.Info(ctx, op+": Trade executed", mergeFields(fields, map[string]interface{}{
		"positionID":  pos.ID,
		"entryPrice":  entryPrice,
		"tokenAmount": res.OutAmount,
		"txRef":       res.TxRef,
	}))
	t.deps.Publisher.Publish(ctx, domain.TradeExecuted{
		StrategyID:   strategyID,
		PositionID:   pos.ID,
		TokenAddress: opp.Token.Address,
		AmountSOL:    res.InAmount,
		TokenAmount:  res.OutAmount,
		EntryPrice:   entryPrice,
		TxRef:        res.TxRef,
		Notify:       s.Config.Notifications.OnEntry,
	})
	return pos, nil
}

// recordTrade updates the strategy's counters, stamps LastRun and persists.
func (t *Trader) recordTrade(ctx context.Context, strategyID string, ok bool) {
	t.mu.Lock()
	s, found := t.strategies[strategyID]
	if found {
		now := t.cfg.Now()
		s.Stats.TotalTrades++
		if ok {
			s.Stats.SuccessfulTrades++
		} else {
			s.Stats.FailedTrades++
		}
		s.LastRun = &now
	}
	t.mu.Unlock()
	if found {
		t.persist(ctx)
	}
}

// ManagePositions is the hook for strategy-specific exit overrides. Generic exits
// belong to the position manager; this only reports each strategy's exposure.
func (t *Trader) ManagePositions(ctx context.Context) {
	if !t.running.Load() {
		return
	}
	t.safely(ctx, "ManagePositions", func() {
		for _, s := range t.enabledStrategies() {
			open := t.deps.Positions.OpenPositionsByStrategy(s.ID)
			if len(open) == 0 {
				continue
			}
			stats := risk.NewBudgetManager(risk.ConfigFromStrategy(s.Config)).Stats(open)
			t.logger.Debug(ctx, "ManagePositions: Strategy exposure", map[string]interface{}{
				"strategyID":    s.ID,
				"openPositions": stats.OpenPositions,
				"usedBudgetSOL": stats.UsedBudget,
			})
		}
	})
}

func mergeFields(base, extra map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
