// Package autotrader owns the strategy set and drives the two periodic jobs of the
// engine: opportunity discovery and strategy execution.
package autotrader

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"solTradeBot/internal/domain"
	"solTradeBot/internal/metrics"
	"solTradeBot/internal/ports"
)

const (
	defaultScanSchedule    = "@every 60s"
	defaultExecuteSchedule = "@every 30s"
	defaultBuySlippageBps  = 100
	defaultQueueLimit      = 50
	defaultRiskCacheTTL    = 5 * time.Minute
)

// Config holds the tunables of the auto trader.
type Config struct {
	ScanSchedule    string // cron spec of the discovery job (default "@every 60s")
	ExecuteSchedule string // cron spec of the execute+manage job (default "@every 30s")
	BuySlippageBps  int
	QueueLimit      int           // Max opportunities kept per strategy; oldest dropped first
	RiskCacheTTL    time.Duration // How long a risk score is reused across scans
	Metrics         *metrics.Registry

	// Test seams; defaulted when nil.
	Now        func() time.Time
	NewID      func() string
	SizeFactor func() float64 // Position size variability in [0.5, 1)
}

// PositionBook is the slice of the position manager the trader depends on.
type PositionBook interface {
	AddPosition(ctx context.Context, token string, entryPrice, amount float64, opts domain.PositionOptions) (*domain.Position, error)
	OpenPositionsByStrategy(strategyID string) []*domain.Position
}

// Dependencies are the collaborators of the trader. Positions, Swap and Wallet are
// required by Start; the rest degrade gracefully when nil.
type Dependencies struct {
	Positions PositionBook
	Swap      ports.SwapProvider
	Wallet    ports.Wallet
	Feed      ports.TokenFeed
	Holders   ports.HolderCounter // Fills holder counts the feed leaves empty
	Scorer    ports.RiskScorer
	Store     ports.StrategyStore
	Publisher ports.EventPublisher
}

// Trader manages strategies and turns discovered tokens into positions.
type Trader struct {
	cfg    Config
	logger ports.Logger
	deps   Dependencies

	mu         sync.RWMutex // Protects strategies
	strategies map[string]*domain.Strategy

	queueMu sync.Mutex // Protects queues
	queues  map[string][]*domain.Opportunity

	riskMu    sync.Mutex
	riskCache map[string]cachedRisk

	applyMu sync.Mutex // Serialises budget checks with position opens
	saveMu  sync.Mutex

	runMu     sync.Mutex // Serialises Start/Stop transitions
	running   atomic.Bool
	scheduler *cron.Cron
	jobCancel context.CancelFunc
}

type cachedRisk struct {
	assessment ports.RiskAssessment
	at         time.Time
}

// NewTrader creates an auto trader. Call Load to restore persisted strategies.
func NewTrader(cfg Config, logger ports.Logger, deps Dependencies) (*Trader, error) {
	if logger == nil || deps.Store == nil || deps.Publisher == nil {
		return nil, fmt.Errorf("missing required dependencies for auto trader: %w", ports.ErrConfigurationError)
	}
	if cfg.ScanSchedule == "" {
		cfg.ScanSchedule = defaultScanSchedule
	}
	if cfg.ExecuteSchedule == "" {
		cfg.ExecuteSchedule = defaultExecuteSchedule
	}
	if cfg.BuySlippageBps <= 0 {
		cfg.BuySlippageBps = defaultBuySlippageBps
	}
	if cfg.QueueLimit <= 0 {
		cfg.QueueLimit = defaultQueueLimit
	}
	if cfg.RiskCacheTTL <= 0 {
		cfg.RiskCacheTTL = defaultRiskCacheTTL
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.NewID == nil {
		cfg.NewID = func() string { return uuid.Must(uuid.NewV7()).String() }
	}
	if cfg.SizeFactor == nil {
		cfg.SizeFactor = func() float64 { return 0.5 + rand.Float64()*0.5 }
	}
	return &Trader{
		cfg:        cfg,
		logger:     logger,
		deps:       deps,
		strategies: make(map[string]*domain.Strategy),
		queues:     make(map[string][]*domain.Opportunity),
		riskCache:  make(map[string]cachedRisk),
	}, nil
}

// Load restores the persisted strategy set.
func (t *Trader) Load(ctx context.Context) error {
	loaded, err := t.deps.Store.LoadStrategies(ctx)
	if err != nil {
		t.logger.Error(ctx, err, "Failed to load strategies")
		return fmt.Errorf("load strategies: %w", err)
	}
	t.mu.Lock()
	for _, s := range loaded {
		t.strategies[s.ID] = s
	}
	t.mu.Unlock()
	t.logger.Info(ctx, "Strategies restored", map[string]interface{}{"count": len(loaded)})
	return nil
}

// --- Strategy management ---

// AddStrategy creates an enabled strategy with every omitted config field defaulted.
// When the trader is running the new strategy gets one immediate execution attempt.
func (t *Trader) AddStrategy(ctx context.Context, in domain.NewStrategy) (*domain.Strategy, error) {
	op := "AddStrategy"
	id := t.cfg.NewID()
	name := in.Name
	if name == "" {
		name = "strategy-" + id
	}
	s := &domain.Strategy{
		ID:        id,
		Name:      name,
		Enabled:   true,
		CreatedAt: t.cfg.Now(),
		Config:    in.Config.Merge(domain.DefaultStrategyConfig()),
	}

	t.mu.Lock()
	t.strategies[id] = s
	snapshot := s.Clone()
	t.mu.Unlock()

	t.persist(ctx)
	t.logger.Info(ctx, op+": Strategy created", map[string]interface{}{
		"strategyID":     id,
		"name":           name,
		"totalBudgetSOL": snapshot.Config.TotalBudgetSOL,
	})
	t.deps.Publisher.Publish(ctx, domain.StrategyCreated{Strategy: snapshot})

	if t.running.Load() {
		t.executeStrategy(ctx, id)
	}
	return snapshot, nil
}

// Strategy returns a copy of the strategy with the given id, or nil.
func (t *Trader) Strategy(id string) *domain.Strategy {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.strategies[id].Clone()
}

// Strategies returns copies of every strategy ordered by creation.
func (t *Trader) Strategies() []*domain.Strategy {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*domain.Strategy, 0, len(t.strategies))
	for _, s := range t.strategies {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (t *Trader) enabledStrategies() []*domain.Strategy {
	all := t.Strategies()
	out := all[:0]
	for _, s := range all {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// UpdateStrategy overwrites the top-level fields present in upd and merges its
// config patch into the existing config.
func (t *Trader) UpdateStrategy(ctx context.Context, id string, upd domain.StrategyUpdate) (*domain.Strategy, error) {
	op := "UpdateStrategy"
	t.mu.Lock()
	s, ok := t.strategies[id]
	if !ok {
		t.mu.Unlock()
		t.logger.Warn(ctx, op+": Strategy not found", map[string]interface{}{"strategyID": id})
		return nil, fmt.Errorf("strategy %s: %w", id, ports.ErrNotFound)
	}
	if upd.Name != nil {
		s.Name = *upd.Name
	}
	if upd.Enabled != nil {
		s.Enabled = *upd.Enabled
	}
	if upd.Config != nil {
		s.Config = upd.Config.Merge(s.Config)
	}
	snapshot := s.Clone()
	t.mu.Unlock()

	t.persist(ctx)
	t.logger.Info(ctx, op+": Strategy updated", map[string]interface{}{"strategyID": id, "enabled": snapshot.Enabled})
	t.deps.Publisher.Publish(ctx, domain.StrategyUpdated{Strategy: snapshot})
	return snapshot, nil
}

// DeleteStrategy removes the strategy and its opportunity queue. Positions it opened
// stay under the position manager's control.
func (t *Trader) DeleteStrategy(ctx context.Context, id string) error {
	op := "DeleteStrategy"
	t.mu.Lock()
	if _, ok := t.strategies[id]; !ok {
		t.mu.Unlock()
		t.logger.Warn(ctx, op+": Strategy not found", map[string]interface{}{"strategyID": id})
		return fmt.Errorf("strategy %s: %w", id, ports.ErrNotFound)
	}
	delete(t.strategies, id)
	t.mu.Unlock()

	t.queueMu.Lock()
	delete(t.queues, id)
	t.queueMu.Unlock()

	t.persist(ctx)
	t.logger.Info(ctx, op+": Strategy deleted", map[string]interface{}{"strategyID": id})
	t.deps.Publisher.Publish(ctx, domain.StrategyDeleted{StrategyID: id})
	return nil
}

// HandleEvent accumulates realised profit of closed positions into their strategy.
// Subscribe it to PositionClosed on the event bus.
func (t *Trader) HandleEvent(ctx context.Context, ev domain.Event) {
	closed, ok := ev.(domain.PositionClosed)
	if !ok || closed.Position == nil || closed.Position.StrategyID == "" {
		return
	}
	t.mu.Lock()
	s, ok := t.strategies[closed.Position.StrategyID]
	if ok {
		s.Stats.Profit += closed.Position.RealizedProfitSOL()
	}
	t.mu.Unlock()
	if ok {
		t.persist(ctx)
	}
}

// --- Lifecycle ---

// Start schedules the scan and execute jobs and runs one execution pass. It returns
// false without starting when a required collaborator is missing.
func (t *Trader) Start(ctx context.Context) bool {
	op := "Start"
	if t.deps.Wallet == nil || t.deps.Swap == nil || t.deps.Positions == nil {
		t.logger.Error(ctx, ports.ErrConfigurationError, op+": Auto trader needs a wallet, a swap provider and a position manager")
		return false
	}

	t.runMu.Lock()
	if t.running.Load() {
		t.runMu.Unlock()
		return true
	}

	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	cl := cronLogger{logger: t.logger}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	if _, err := c.AddFunc(t.cfg.ScanSchedule, func() { t.ScanForTradingOpportunities(jobCtx) }); err != nil {
		t.runMu.Unlock()
		cancel()
		t.logger.Error(ctx, err, op+": Invalid scan schedule", map[string]interface{}{"schedule": t.cfg.ScanSchedule})
		return false
	}
	if _, err := c.AddFunc(t.cfg.ExecuteSchedule, func() {
		t.ExecuteStrategies(jobCtx)
		t.ManagePositions(jobCtx)
	}); err != nil {
		t.runMu.Unlock()
		cancel()
		t.logger.Error(ctx, err, op+": Invalid execute schedule", map[string]interface{}{"schedule": t.cfg.ExecuteSchedule})
		return false
	}

	t.scheduler = c
	t.jobCancel = cancel
	t.running.Store(true)
	c.Start()
	t.runMu.Unlock()

	t.logger.Info(ctx, op+": Auto trader started", map[string]interface{}{
		"wallet":          t.deps.Wallet.Address(),
		"scanSchedule":    t.cfg.ScanSchedule,
		"executeSchedule": t.cfg.ExecuteSchedule,
	})
	t.ExecuteStrategies(jobCtx)
	t.deps.Publisher.Publish(ctx, domain.Started{At: t.cfg.Now()})
	return true
}

// Stop unschedules both jobs and waits for in-flight runs to finish. Stopping a
// trader that is not running does nothing.
func (t *Trader) Stop(ctx context.Context) {
	t.runMu.Lock()
	if !t.running.Load() {
		t.runMu.Unlock()
		return
	}
	t.running.Store(false)
	c, cancel := t.scheduler, t.jobCancel
	t.scheduler, t.jobCancel = nil, nil
	t.runMu.Unlock()

	<-c.Stop().Done()
	cancel()
	t.logger.Info(ctx, "Auto trader stopped")
	t.deps.Publisher.Publish(ctx, domain.Stopped{At: t.cfg.Now()})
}

// IsRunning reports whether the jobs are scheduled.
func (t *Trader) IsRunning() bool {
	return t.running.Load()
}

// persist writes the full strategy set. Failures are logged and retried by the next
// mutation.
func (t *Trader) persist(ctx context.Context) {
	t.saveMu.Lock()
	defer t.saveMu.Unlock()

	all := t.Strategies()
	if err := t.deps.Store.SaveStrategies(ctx, all); err != nil {
		t.logger.Error(ctx, err, "Failed to persist strategies", map[string]interface{}{"count": len(all)})
	}
}

// safely runs fn and logs a panic instead of letting it escape a job.
func (t *Trader) safely(ctx context.Context, what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error(ctx, fmt.Errorf("panic: %v", r), what+" panicked")
		}
	}()
	fn()
}

// cronLogger adapts ports.Logger to cron.Logger.
type cronLogger struct {
	logger ports.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(context.Background(), "cron: "+msg, kvFields(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(context.Background(), err, "cron: "+msg, kvFields(keysAndValues))
}

func kvFields(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
