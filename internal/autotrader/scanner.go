package autotrader

import (
	"context"
	"sort"
	"time"

	"solTradeBot/internal/domain"
	"solTradeBot/internal/ports"
)

// ScanForTradingOpportunities pulls candidate tokens from the discovery feed and
// queues every token that passes a strategy's filters onto that strategy's queue.
// Does nothing unless the trader is running.
func (t *Trader) ScanForTradingOpportunities(ctx context.Context) {
	if !t.running.Load() {
		return
	}
	op := "ScanForTradingOpportunities"
	t.safely(ctx, op, func() {
		if t.deps.Feed == nil {
			t.logger.Debug(ctx, op+": No token feed configured")
			return
		}
		strategies := t.enabledStrategies()
		if len(strategies) == 0 {
			return
		}

		tokens, err := t.deps.Feed.Discover(ctx)
		if err != nil {
			t.logger.Warn(ctx, op+": Token discovery failed", map[string]interface{}{"error": err.Error()})
			return
		}
		t.logger.Debug(ctx, op+": Tokens discovered", map[string]interface{}{"count": len(tokens), "strategies": len(strategies)})

		now := t.cfg.Now()
		for _, token := range tokens {
			// Holder counts and risk scores cost a remote call each, so they are
			// only fetched for tokens some strategy still wants.
			candidates := make([]*domain.Strategy, 0, len(strategies))
			for _, s := range strategies {
				if listingAccepted(s.Config, token, now) {
					candidates = append(candidates, s)
				}
			}
			if len(candidates) == 0 {
				continue
			}
			token = t.withHolders(ctx, token)
			if !anyHolderMinimum(candidates, token) {
				continue
			}
			assessment, ok := t.assess(ctx, token)
			if !ok {
				continue
			}
			for _, s := range candidates {
				if !accepts(s.Config, token, assessment.RiskLevel, now) {
					continue
				}
				opp := &domain.Opportunity{
					ID:           t.cfg.NewID(),
					StrategyID:   s.ID,
					Token:        token,
					RiskLevel:    assessment.RiskLevel,
					Warnings:     append([]string(nil), assessment.Warnings...),
					DiscoveredAt: now,
				}
				if !t.enqueue(opp) {
					continue
				}
				t.cfg.Metrics.ObserveOpportunity(s.ID)
				t.logger.Info(ctx, op+": Opportunity queued", map[string]interface{}{
					"strategyID": s.ID,
					"token":      token.Address,
					"symbol":     token.Symbol,
					"riskLevel":  assessment.RiskLevel,
				})
				t.deps.Publisher.Publish(ctx, domain.TokenDiscovered{StrategyID: s.ID, Opportunity: *opp})
			}
		}
	})
}

// assess returns the risk estimate for a token: the feed's own when present,
// otherwise a (cached) score from the risk scorer. Unscored tokens are rejected.
func (t *Trader) assess(ctx context.Context, token domain.TokenInfo) (ports.RiskAssessment, bool) {
	if token.RiskLevel != domain.RiskUnknown {
		return ports.RiskAssessment{RiskLevel: token.RiskLevel}, true
	}
	if t.deps.Scorer == nil {
		return ports.RiskAssessment{}, false
	}

	now := t.cfg.Now()
	t.riskMu.Lock()
	cached, hit := t.riskCache[token.Address]
	t.riskMu.Unlock()
	if hit && now.Sub(cached.at) < t.cfg.RiskCacheTTL {
		return cached.assessment, true
	}

	a, err := t.deps.Scorer.Score(ctx, token.Address)
	if err != nil || a == nil {
		t.logger.Warn(ctx, "Risk scoring failed, skipping token", map[string]interface{}{"token": token.Address, "error": errString(err)})
		return ports.RiskAssessment{}, false
	}

	t.riskMu.Lock()
	t.riskCache[token.Address] = cachedRisk{assessment: *a, at: now}
	for addr, c := range t.riskCache {
		if now.Sub(c.at) >= t.cfg.RiskCacheTTL {
			delete(t.riskCache, addr)
		}
	}
	t.riskMu.Unlock()
	return *a, true
}

// withHolders fills in the holder count when the feed did not report one.
// A failed count leaves it at zero, which only passes strategies with no minimum.
func (t *Trader) withHolders(ctx context.Context, token domain.TokenInfo) domain.TokenInfo {
	if token.Holders > 0 || t.deps.Holders == nil {
		return token
	}
	n, err := t.deps.Holders.HolderCount(ctx, token.Address)
	if err != nil {
		t.logger.Debug(ctx, "Holder count unavailable", map[string]interface{}{"token": token.Address, "error": err.Error()})
		return token
	}
	token.Holders = n
	return token
}

func anyHolderMinimum(strategies []*domain.Strategy, token domain.TokenInfo) bool {
	for _, s := range strategies {
		if token.Holders >= s.Config.MinHolders {
			return true
		}
	}
	return false
}

// accepts reports whether a token passes every filter of a strategy config.
func accepts(cfg domain.StrategyConfig, token domain.TokenInfo, riskLevel int, now time.Time) bool {
	if !listingAccepted(cfg, token, now) {
		return false
	}
	if token.Holders < cfg.MinHolders {
		return false
	}
	return riskLevel <= cfg.MaxRiskLevel
}

// listingAccepted applies the filters that need no remote lookup: liquidity, age
// and content flags.
func listingAccepted(cfg domain.StrategyConfig, token domain.TokenInfo, now time.Time) bool {
	if token.LiquiditySOL < cfg.MinLiquiditySOL {
		return false
	}
	age := token.AgeHours(now)
	if age < cfg.TokenFilters.MinAgeHours {
		return false
	}
	if cfg.TokenFilters.MaxAgeHours > 0 && age > cfg.TokenFilters.MaxAgeHours {
		return false
	}
	if cfg.TokenFilters.ExcludeNSFW && token.NSFW {
		return false
	}
	if cfg.TokenFilters.ExcludeMemeTokens && token.Meme {
		return false
	}
	return true
}

// enqueue adds opp to its strategy's queue unless the token is already queued.
// The queue is kept newest first and capped; the oldest entries are dropped.
func (t *Trader) enqueue(opp *domain.Opportunity) bool {
	t.queueMu.Lock()
	defer t.queueMu.Unlock()

	q := t.queues[opp.StrategyID]
	for _, existing := range q {
		if existing.Token.Address == opp.Token.Address {
			return false
		}
	}
	q = append(q, opp)
	sort.SliceStable(q, func(i, j int) bool { return newerOpportunity(q[i], q[j]) })
	if len(q) > t.cfg.QueueLimit {
		q = q[:t.cfg.QueueLimit]
	}
	t.queues[opp.StrategyID] = q
	return true
}

// newerOpportunity orders by discovery time, then by token listing time, both
// descending. Opportunities from one scan share a discovery time.
func newerOpportunity(a, b *domain.Opportunity) bool {
	if !a.DiscoveredAt.Equal(b.DiscoveredAt) {
		return a.DiscoveredAt.After(b.DiscoveredAt)
	}
	return a.Token.CreatedAt.After(b.Token.CreatedAt)
}

// nextOpportunity pops the newest unprocessed opportunity of a strategy and marks it
// processed before returning, so it is consumed at most once.
func (t *Trader) nextOpportunity(strategyID string) *domain.Opportunity {
	t.queueMu.Lock()
	defer t.queueMu.Unlock()

	for _, opp := range t.queues[strategyID] {
		if opp.Processed {
			continue
		}
		opp.Processed = true
		c := *opp
		return &c
	}
	return nil
}

// Queue returns a copy of a strategy's opportunity queue, newest first.
func (t *Trader) Queue(strategyID string) []domain.Opportunity {
	t.queueMu.Lock()
	defer t.queueMu.Unlock()

	q := t.queues[strategyID]
	out := make([]domain.Opportunity, len(q))
	for i, opp := range q {
		out[i] = *opp
	}
	return out
}

func errString(err error) string {
	if err == nil {
		return "empty assessment"
	}
	return err.Error()
}
