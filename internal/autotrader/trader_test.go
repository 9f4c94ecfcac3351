package autotrader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solTradeBot/internal/domain"
	"solTradeBot/internal/events"
	"solTradeBot/internal/ports"
)

// Mock implementations
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type mockBook struct {
	mu        sync.Mutex
	seq       int
	positions []*domain.Position
}

func (m *mockBook) AddPosition(ctx context.Context, token string, entryPrice, amount float64, opts domain.PositionOptions) (*domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	p := &domain.Position{
		ID:                fmt.Sprintf("pos-%04d", m.seq),
		TokenAddress:      token,
		EntryPrice:        entryPrice,
		HighestPrice:      entryPrice,
		Amount:            amount,
		StopLoss:          opts.StopLoss,
		TakeProfit:        opts.TakeProfit,
		TrailingStop:      opts.TrailingStop,
		Status:            domain.StatusOpen,
		StrategyID:        opts.StrategyID,
		InitialInvestment: opts.InitialInvestment,
		EntryTx:           opts.EntryTx,
	}
	m.positions = append(m.positions, p)
	return p.Clone(), nil
}

func (m *mockBook) OpenPositionsByStrategy(strategyID string) []*domain.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Position
	for _, p := range m.positions {
		if p.IsOpen() && p.StrategyID == strategyID {
			out = append(out, p.Clone())
		}
	}
	return out
}

func (m *mockBook) closeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.positions {
		p.Status = domain.StatusClosed
	}
}

type mockSwap struct {
	mu    sync.Mutex
	err   error
	calls []ports.SwapRequest
}

func (m *mockSwap) Swap(ctx context.Context, req ports.SwapRequest) (*ports.SwapResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)
	if m.err != nil {
		return nil, m.err
	}
	return &ports.SwapResult{InAmount: req.Amount, OutAmount: req.Amount * 1000, TxRef: fmt.Sprintf("paper-%d", len(m.calls))}, nil
}

func (m *mockSwap) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type mockWallet struct{}

func (mockWallet) Address() string                                 { return "paper-wallet" }
func (mockWallet) BalanceSOL(ctx context.Context) (float64, error) { return 10, nil }

type mockFeed struct {
	tokens []domain.TokenInfo
	err    error
}

func (m *mockFeed) Discover(ctx context.Context) ([]domain.TokenInfo, error) {
	return m.tokens, m.err
}

type mockScorer struct {
	mu     sync.Mutex
	levels map[string]int
	err    error
	calls  map[string]int
}

func (m *mockScorer) Score(ctx context.Context, token string) (*ports.RiskAssessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = map[string]int{}
	}
	m.calls[token]++
	if m.err != nil {
		return nil, m.err
	}
	return &ports.RiskAssessment{RiskLevel: m.levels[token], Warnings: []string{"mutable metadata"}}, nil
}

type mockHolders struct {
	mu     sync.Mutex
	counts map[string]int
	calls  map[string]int
}

func (m *mockHolders) HolderCount(ctx context.Context, token string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = map[string]int{}
	}
	m.calls[token]++
	n, ok := m.counts[token]
	if !ok {
		return 0, ports.ErrHoldersUnknown
	}
	return n, nil
}

type memStore struct {
	mu      sync.Mutex
	saved   []*domain.Strategy
	saves   int
	initial []*domain.Strategy
}

func (m *memStore) LoadStrategies(ctx context.Context) ([]*domain.Strategy, error) {
	return m.initial, nil
}

func (m *memStore) SaveStrategies(ctx context.Context, strategies []*domain.Strategy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.saved = strategies
	return nil
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	trader *Trader
	book   *mockBook
	swap   *mockSwap
	feed   *mockFeed
	scorer *mockScorer
	store  *memStore
	events *events.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		book:   &mockBook{},
		swap:   &mockSwap{},
		feed:   &mockFeed{},
		scorer: &mockScorer{levels: map[string]int{}},
		store:  &memStore{},
		events: &events.Recorder{},
	}
	seq := 0
	trader, err := NewTrader(Config{
		ScanSchedule:    "@every 1h",
		ExecuteSchedule: "@every 1h",
		Now:             func() time.Time { return testNow },
		NewID: func() string {
			seq++
			return fmt.Sprintf("id-%04d", seq)
		},
		SizeFactor: func() float64 { return 1 },
	}, &mockLogger{}, Dependencies{
		Positions: f.book,
		Swap:      f.swap,
		Wallet:    mockWallet{},
		Feed:      f.feed,
		Scorer:    f.scorer,
		Store:     f.store,
		Publisher: f.events,
	})
	require.NoError(t, err)
	f.trader = trader
	t.Cleanup(func() { trader.Stop(context.Background()) })
	return f
}

func candidate(addr string) domain.TokenInfo {
	return domain.TokenInfo{
		Address:      addr,
		Symbol:       addr,
		CreatedAt:    testNow.Add(-time.Hour),
		LiquiditySOL: 100,
		Holders:      200,
		RiskLevel:    10,
	}
}

func listedAgo(addr string, age time.Duration) domain.TokenInfo {
	token := candidate(addr)
	token.CreatedAt = testNow.Add(-age)
	return token
}

func TestNewTrader_MissingDependencies(t *testing.T) {
	_, err := NewTrader(Config{}, &mockLogger{}, Dependencies{Publisher: &events.Recorder{}})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}

func TestAddStrategyFillsDefaults(t *testing.T) {
	f := newFixture(t)
	s, err := f.trader.AddStrategy(context.Background(), domain.NewStrategy{})
	require.NoError(t, err)

	got := f.trader.Strategy(s.ID)
	require.NotNil(t, got)
	assert.Equal(t, 1.0, got.Config.TotalBudgetSOL)
	assert.Equal(t, domain.DefaultStrategyConfig(), got.Config)
	assert.True(t, got.Enabled)
	assert.Equal(t, domain.StrategyStats{}, got.Stats)
	assert.Nil(t, got.LastRun)
	assert.Len(t, f.store.saved, 1)
	assert.Len(t, f.events.OfKind(domain.EventStrategyCreated), 1)
}

func TestAddStrategyPartialConfig(t *testing.T) {
	f := newFixture(t)
	maxSize := 0.25
	s, err := f.trader.AddStrategy(context.Background(), domain.NewStrategy{
		Name: "snipe",
		Config: domain.StrategyConfigPatch{
			MaxPositionSizeSOL: &maxSize,
			TokenFilters:       &domain.TokenFiltersPatch{MaxAgeHours: domain.Float(24)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "snipe", s.Name)
	assert.Equal(t, 0.25, s.Config.MaxPositionSizeSOL)
	assert.Equal(t, 24.0, s.Config.TokenFilters.MaxAgeHours)
	assert.True(t, s.Config.TokenFilters.ExcludeNSFW, "sibling fields keep their defaults")
}

func TestUpdateStrategy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.trader.AddStrategy(ctx, domain.NewStrategy{Name: "a"})
	require.NoError(t, err)

	disabled := false
	budget := 3.0
	updated, err := f.trader.UpdateStrategy(ctx, s.ID, domain.StrategyUpdate{
		Enabled: &disabled,
		Config:  &domain.StrategyConfigPatch{TotalBudgetSOL: &budget},
	})
	require.NoError(t, err)
	assert.False(t, updated.Enabled)
	assert.Equal(t, 3.0, updated.Config.TotalBudgetSOL)
	assert.Equal(t, 0.1, updated.Config.MaxPositionSizeSOL, "unpatched config fields are preserved")
	assert.Equal(t, "a", updated.Name)

	_, err = f.trader.UpdateStrategy(ctx, "missing", domain.StrategyUpdate{})
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestUpdateStrategyEmptyIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.trader.AddStrategy(ctx, domain.NewStrategy{Name: "a"})
	require.NoError(t, err)
	before := f.trader.Strategy(s.ID)
	saves := f.store.saves

	after, err := f.trader.UpdateStrategy(ctx, s.ID, domain.StrategyUpdate{})
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, saves+1, f.store.saves, "still persisted")
}

func TestDeleteStrategy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.trader.AddStrategy(ctx, domain.NewStrategy{})
	require.NoError(t, err)

	require.NoError(t, f.trader.DeleteStrategy(ctx, s.ID))
	assert.Nil(t, f.trader.Strategy(s.ID))
	assert.Empty(t, f.trader.Strategies())
	assert.Empty(t, f.store.saved)
	assert.Len(t, f.events.OfKind(domain.EventStrategyDeleted), 1)

	assert.ErrorIs(t, f.trader.DeleteStrategy(ctx, s.ID), ports.ErrNotFound)
}

func TestStartStop(t *testing.T) {
	ctx := context.Background()

	noWallet, err := NewTrader(Config{}, &mockLogger{}, Dependencies{
		Positions: &mockBook{}, Swap: &mockSwap{}, Store: &memStore{}, Publisher: &events.Recorder{},
	})
	require.NoError(t, err)
	assert.False(t, noWallet.Start(ctx))
	assert.False(t, noWallet.IsRunning())

	f := newFixture(t)
	assert.True(t, f.trader.Start(ctx))
	assert.True(t, f.trader.Start(ctx), "second start is a no-op")
	assert.True(t, f.trader.IsRunning())
	assert.Len(t, f.events.OfKind(domain.EventStarted), 1)

	f.trader.Stop(ctx)
	f.trader.Stop(ctx)
	assert.False(t, f.trader.IsRunning())
	assert.Len(t, f.events.OfKind(domain.EventStopped), 1)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	trader, err := NewTrader(Config{ScanSchedule: "not a schedule"}, &mockLogger{}, Dependencies{
		Positions: &mockBook{}, Swap: &mockSwap{}, Wallet: mockWallet{}, Store: &memStore{}, Publisher: &events.Recorder{},
	})
	require.NoError(t, err)
	assert.False(t, trader.Start(context.Background()))
	assert.False(t, trader.IsRunning())
}

func TestJobsAreNoopsWhenStopped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.trader.AddStrategy(ctx, domain.NewStrategy{})
	require.NoError(t, err)
	f.feed.tokens = []domain.TokenInfo{candidate("MINT1")}

	f.trader.ScanForTradingOpportunities(ctx)
	f.trader.ExecuteStrategies(ctx)
	assert.Empty(t, f.events.OfKind(domain.EventTokenDiscovered))
	assert.Zero(t, f.swap.count())
}

func TestConcurrencyCapDefersQueuedOpportunity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	one := 1
	s, err := f.trader.AddStrategy(ctx, domain.NewStrategy{Config: domain.StrategyConfigPatch{MaxConcurrentPositions: &one}})
	require.NoError(t, err)
	require.True(t, f.trader.Start(ctx))

	f.feed.tokens = []domain.TokenInfo{candidate("MINT1"), candidate("MINT2")}
	f.trader.ScanForTradingOpportunities(ctx)
	require.Len(t, f.trader.Queue(s.ID), 2)

	f.trader.ExecuteStrategies(ctx)
	require.Equal(t, 1, f.swap.count())
	require.Len(t, f.book.OpenPositionsByStrategy(s.ID), 1)

	// At capacity: the second opportunity stays queued.
	f.trader.ExecuteStrategies(ctx)
	assert.Equal(t, 1, f.swap.count())
	unprocessed := 0
	for _, opp := range f.trader.Queue(s.ID) {
		if !opp.Processed {
			unprocessed++
		}
	}
	assert.Equal(t, 1, unprocessed)

	// Once the first position closes the second one is opened.
	f.book.closeAll()
	f.trader.ExecuteStrategies(ctx)
	assert.Equal(t, 2, f.swap.count())
	assert.NotEqual(t, f.swap.calls[0].Token, f.swap.calls[1].Token)

	got := f.trader.Strategy(s.ID)
	assert.Equal(t, 2, got.Stats.TotalTrades)
	assert.Equal(t, 2, got.Stats.SuccessfulTrades)
	assert.NotNil(t, got.LastRun)
}

func TestApplyStrategyOpensTaggedPosition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.trader.AddStrategy(ctx, domain.NewStrategy{})
	require.NoError(t, err)

	pos, err := f.trader.ApplyStrategy(ctx, s.ID, &domain.Opportunity{Token: candidate("MINT1")})
	require.NoError(t, err)
	require.NotNil(t, pos)

	assert.Equal(t, s.ID, pos.StrategyID)
	assert.InDelta(t, 0.1, pos.InitialInvestment, 1e-9)
	assert.InDelta(t, 0.001, pos.EntryPrice, 1e-12)
	assert.Equal(t, 10.0, *pos.StopLoss)
	assert.Equal(t, 30.0, *pos.TakeProfit)
	assert.Nil(t, pos.TrailingStop)
	assert.Equal(t, domain.Buy, f.swap.calls[0].Direction)

	executed := f.events.OfKind(domain.EventTradeExecuted)
	require.Len(t, executed, 1)
	assert.True(t, executed[0].(domain.TradeExecuted).Notify)
}

func TestApplyStrategySwapFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.trader.AddStrategy(ctx, domain.NewStrategy{})
	require.NoError(t, err)
	f.swap.err = ports.ErrSwapFailed

	pos, err := f.trader.ApplyStrategy(ctx, s.ID, &domain.Opportunity{Token: candidate("MINT1")})
	assert.ErrorIs(t, err, ports.ErrSwapFailed)
	assert.Nil(t, pos)

	got := f.trader.Strategy(s.ID)
	assert.Equal(t, 1, got.Stats.TotalTrades)
	assert.Equal(t, 1, got.Stats.FailedTrades)
	assert.NotNil(t, got.LastRun)
	assert.Len(t, f.events.OfKind(domain.EventTradeError), 1)
	assert.Empty(t, f.book.OpenPositionsByStrategy(s.ID))
}

func TestApplyStrategyRiskRecheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.trader.AddStrategy(ctx, domain.NewStrategy{})
	require.NoError(t, err)

	f.scorer.levels["MINT1"] = 90
	pos, err := f.trader.ApplyStrategy(ctx, s.ID, &domain.Opportunity{Token: candidate("MINT1")})
	require.NoError(t, err)
	assert.Nil(t, pos)

	f.scorer.err = errors.New("rugcheck down")
	pos, err = f.trader.ApplyStrategy(ctx, s.ID, &domain.Opportunity{Token: candidate("MINT2")})
	require.NoError(t, err)
	assert.Nil(t, pos)

	assert.Zero(t, f.swap.count())
	assert.Equal(t, domain.StrategyStats{}, f.trader.Strategy(s.ID).Stats)
}

func TestApplyStrategyBudgetNeverExceeded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ten, size := 10, 0.4
	s, err := f.trader.AddStrategy(ctx, domain.NewStrategy{Config: domain.StrategyConfigPatch{
		MaxConcurrentPositions: &ten,
		MaxPositionSizeSOL:     &size,
	}})
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		_, err := f.trader.ApplyStrategy(ctx, s.ID, &domain.Opportunity{Token: candidate(fmt.Sprintf("MINT%d", i))})
		require.NoError(t, err)

		used := decimal.Zero
		for _, p := range f.book.OpenPositionsByStrategy(s.ID) {
			used = used.Add(decimal.NewFromFloat(p.InitialInvestment))
		}
		assert.True(t, used.LessThanOrEqual(decimal.NewFromInt(1)), "used %s SOL", used)
	}
	assert.GreaterOrEqual(t, len(f.book.OpenPositionsByStrategy(s.ID)), 2)
}

func TestApplyStrategyUnknownStrategy(t *testing.T) {
	f := newFixture(t)
	_, err := f.trader.ApplyStrategy(context.Background(), "missing", &domain.Opportunity{Token: candidate("MINT1")})
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestScanFilters(t *testing.T) {
	cfg := domain.DefaultStrategyConfig()
	tests := []struct {
		name   string
		mutate func(*domain.TokenInfo)
		risk   int
		want   bool
	}{
		{"accepted", func(*domain.TokenInfo) {}, 10, true},
		{"low liquidity", func(tk *domain.TokenInfo) { tk.LiquiditySOL = 9.99 }, 10, false},
		{"too few holders", func(tk *domain.TokenInfo) { tk.Holders = 49 }, 10, false},
		{"risk above limit", func(*domain.TokenInfo) {}, 51, false},
		{"risk at limit", func(*domain.TokenInfo) {}, 50, true},
		{"too old", func(tk *domain.TokenInfo) { tk.CreatedAt = testNow.Add(-73 * time.Hour) }, 10, false},
		{"nsfw", func(tk *domain.TokenInfo) { tk.NSFW = true }, 10, false},
		{"meme allowed by default", func(tk *domain.TokenInfo) { tk.Meme = true }, 10, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := candidate("MINT1")
			tt.mutate(&tk)
			assert.Equal(t, tt.want, accepts(cfg, tk, tt.risk, testNow))
		})
	}
}

func TestScanDedupesAndScoresOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.trader.AddStrategy(ctx, domain.NewStrategy{})
	require.NoError(t, err)
	require.True(t, f.trader.Start(ctx))

	unscored := candidate("MINT2")
	unscored.RiskLevel = domain.RiskUnknown
	f.scorer.levels["MINT2"] = 20
	f.feed.tokens = []domain.TokenInfo{candidate("MINT1"), unscored}

	f.trader.ScanForTradingOpportunities(ctx)
	f.trader.ScanForTradingOpportunities(ctx)

	queue := f.trader.Queue(s.ID)
	require.Len(t, queue, 2)
	assert.Len(t, f.events.OfKind(domain.EventTokenDiscovered), 2)
	assert.Equal(t, 1, f.scorer.calls["MINT2"])
	assert.Zero(t, f.scorer.calls["MINT1"])
}

func TestScanQueueIsCapped(t *testing.T) {
	f := newFixture(t)
	f.trader.cfg.QueueLimit = 2
	ctx := context.Background()
	s, err := f.trader.AddStrategy(ctx, domain.NewStrategy{})
	require.NoError(t, err)
	require.True(t, f.trader.Start(ctx))

	f.feed.tokens = []domain.TokenInfo{
		listedAgo("MINT1", 60*time.Minute),
		listedAgo("MINT2", 30*time.Minute),
		listedAgo("MINT3", 10*time.Minute),
	}
	f.trader.ScanForTradingOpportunities(ctx)

	queue := f.trader.Queue(s.ID)
	require.Len(t, queue, 2)
	assert.Equal(t, "MINT3", queue[0].Token.Address)
	assert.Equal(t, "MINT2", queue[1].Token.Address)
}

func TestExecuteBuysNewestListingFromOneScan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.trader.AddStrategy(ctx, domain.NewStrategy{})
	require.NoError(t, err)
	require.True(t, f.trader.Start(ctx))

	// The feed reports newest first; every opportunity shares the scan time.
	f.feed.tokens = []domain.TokenInfo{
		listedAgo("NEWEST", 10*time.Minute),
		listedAgo("MID", 30*time.Minute),
		listedAgo("OLDEST", 60*time.Minute),
	}
	f.trader.ScanForTradingOpportunities(ctx)

	queue := f.trader.Queue(s.ID)
	require.Len(t, queue, 3)
	assert.Equal(t, "NEWEST", queue[0].Token.Address)
	assert.Equal(t, "OLDEST", queue[2].Token.Address)

	f.trader.ExecuteStrategies(ctx)
	require.Equal(t, 1, f.swap.count())
	assert.Equal(t, "NEWEST", f.swap.calls[0].Token)

	f.trader.ExecuteStrategies(ctx)
	require.Equal(t, 2, f.swap.count())
	assert.Equal(t, "MID", f.swap.calls[1].Token)
}

func TestScanLooksUpOnlyTokensPassingListingFilters(t *testing.T) {
	f := newFixture(t)
	holders := &mockHolders{counts: map[string]int{"GOOD": 120, "THIN": 3}}
	f.trader.deps.Holders = holders
	ctx := context.Background()
	s, err := f.trader.AddStrategy(ctx, domain.NewStrategy{})
	require.NoError(t, err)
	require.True(t, f.trader.Start(ctx))

	unknown := func(addr string) domain.TokenInfo {
		token := candidate(addr)
		token.Holders = 0
		token.RiskLevel = domain.RiskUnknown
		return token
	}
	illiquid := unknown("ILLIQUID")
	illiquid.LiquiditySOL = 1
	stale := unknown("STALE")
	stale.CreatedAt = testNow.Add(-100 * time.Hour)
	f.feed.tokens = []domain.TokenInfo{unknown("GOOD"), unknown("THIN"), illiquid, stale}

	f.trader.ScanForTradingOpportunities(ctx)

	queue := f.trader.Queue(s.ID)
	require.Len(t, queue, 1)
	assert.Equal(t, "GOOD", queue[0].Token.Address)
	assert.Equal(t, 120, queue[0].Token.Holders)

	assert.Equal(t, map[string]int{"GOOD": 1, "THIN": 1}, holders.calls)
	assert.Equal(t, 1, f.scorer.calls["GOOD"])
	assert.Zero(t, f.scorer.calls["THIN"], "too few holders, never scored")
	assert.Zero(t, f.scorer.calls["ILLIQUID"])
	assert.Zero(t, f.scorer.calls["STALE"])
}

func TestScanFeedFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.trader.AddStrategy(ctx, domain.NewStrategy{})
	require.NoError(t, err)
	require.True(t, f.trader.Start(ctx))

	f.feed.err = ports.ErrFeedUnavailable
	f.trader.ScanForTradingOpportunities(ctx)
	assert.Empty(t, f.trader.Queue(s.ID))
}

func TestPerformanceStats(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, Performance{}, f.trader.PerformanceStats())

	ctx := context.Background()
	s, err := f.trader.AddStrategy(ctx, domain.NewStrategy{})
	require.NoError(t, err)
	_, err = f.trader.ApplyStrategy(ctx, s.ID, &domain.Opportunity{Token: candidate("MINT1")})
	require.NoError(t, err)
	f.swap.err = ports.ErrSwapFailed
	_, _ = f.trader.ApplyStrategy(ctx, s.ID, &domain.Opportunity{Token: candidate("MINT2")})

	stats := f.trader.PerformanceStats()
	assert.Equal(t, 1, stats.StrategyCount)
	assert.Equal(t, 1, stats.ActiveStrategies)
	assert.Equal(t, 2, stats.TotalTrades)
	assert.InDelta(t, 50.0, stats.WinRate, 1e-9)
}

func TestHandleEventAccumulatesProfit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.trader.AddStrategy(ctx, domain.NewStrategy{})
	require.NoError(t, err)

	f.trader.HandleEvent(ctx, domain.PositionClosed{Position: &domain.Position{
		StrategyID:        s.ID,
		InitialInvestment: 0.1,
		Status:            domain.StatusClosed,
		Profit:            domain.Float(50),
	}})
	f.trader.HandleEvent(ctx, domain.PositionClosed{Position: &domain.Position{Profit: domain.Float(10)}})
	f.trader.HandleEvent(ctx, domain.Started{At: testNow})

	assert.InDelta(t, 0.05, f.trader.Strategy(s.ID).Stats.Profit, 1e-9)
	assert.InDelta(t, 0.05, f.trader.PerformanceStats().TotalProfit, 1e-9)
}

func TestLoad(t *testing.T) {
	f := newFixture(t)
	f.store.initial = []*domain.Strategy{{ID: "s1", Name: "restored", Enabled: true, Config: domain.DefaultStrategyConfig()}}
	require.NoError(t, f.trader.Load(context.Background()))
	require.NotNil(t, f.trader.Strategy("s1"))
	assert.Equal(t, "restored", f.trader.Strategy("s1").Name)
}
