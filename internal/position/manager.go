// Package position owns the set of trading positions and the monitor loop that closes
// them when a stop-loss, take-profit or trailing-stop rule fires.
package position

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"solTradeBot/internal/domain"
	"solTradeBot/internal/metrics"
	"solTradeBot/internal/ports"
)

const (
	defaultMonitorInterval = 10 * time.Second
	defaultExitSlippageBps = 300
)

// Config holds the tunables of the position manager.
type Config struct {
	MonitorInterval time.Duration // Period of the monitor loop (default 10s)
	ExitSlippageBps int           // Slippage tolerated on exit swaps (default 300 = 3%)
	Metrics         *metrics.Registry

	// Test seams; defaulted when nil.
	Now   func() time.Time
	NewID func() string
}

// Manager is the single source of truth for positions. It is the only component
// allowed to open or close one.
type Manager struct {
	cfg       Config
	logger    ports.Logger
	oracle    ports.PriceOracle
	swap      ports.SwapProvider
	store     ports.PositionStore
	publisher ports.EventPublisher

	mu         sync.RWMutex // Protects the fields below
	positions  map[string]*domain.Position
	exiting    map[string]bool // Positions with an exit swap in flight
	monitoring bool
	stopped    bool
	loopDone   chan struct{}

	saveMu sync.Mutex // Serialises full-set saves so the newest snapshot lands last

	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager creates a position manager. Call Load to restore persisted positions.
func NewManager(
	cfg Config,
	logger ports.Logger,
	oracle ports.PriceOracle,
	swap ports.SwapProvider,
	store ports.PositionStore,
	publisher ports.EventPublisher,
) (*Manager, error) {
	if logger == nil || oracle == nil || swap == nil || store == nil || publisher == nil {
		return nil, fmt.Errorf("missing required dependencies for position manager: %w", ports.ErrConfigurationError)
	}
	if cfg.MonitorInterval <= 0 {
		cfg.MonitorInterval = defaultMonitorInterval
	}
	if cfg.ExitSlippageBps <= 0 {
		cfg.ExitSlippageBps = defaultExitSlippageBps
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.NewID == nil {
		cfg.NewID = func() string { return uuid.Must(uuid.NewV7()).String() }
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:       cfg,
		logger:    logger,
		oracle:    oracle,
		swap:      swap,
		store:     store,
		publisher: publisher,
		positions: make(map[string]*domain.Position),
		exiting:   make(map[string]bool),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Load restores the persisted position set and starts monitoring if any are open.
func (m *Manager) Load(ctx context.Context) error {
	loaded, err := m.store.LoadPositions(ctx)
	if err != nil {
		m.logger.Error(ctx, err, "Failed to load positions")
		return fmt.Errorf("load positions: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range loaded {
		m.positions[p.ID] = p
	}
	open := m.countOpenLocked()
	m.cfg.Metrics.SetOpenPositions(open)
	m.logger.Info(ctx, "Positions restored", map[string]interface{}{"total": len(loaded), "open": open})
	if open > 0 {
		m.startMonitorLocked()
	}
	return nil
}

// AddPosition opens a new position at entryPrice. Callers must only pass settled swap
// results; amount is not validated here.
func (m *Manager) AddPosition(ctx context.Context, token string, entryPrice, amount float64, opts domain.PositionOptions) (*domain.Position, error) {
	op := "AddPosition"
	if token == "" {
		return nil, fmt.Errorf("%s: empty token address: %w", op, ports.ErrInvalidRequest)
	}

	now := m.cfg.Now()
	p := &domain.Position{
		ID:                m.cfg.NewID(),
		TokenAddress:      token,
		TokenSymbol:       opts.TokenSymbol,
		EntryPrice:        entryPrice,
		Amount:            amount,
		HighestPrice:      entryPrice,
		StopLoss:          positiveOrNil(opts.StopLoss),
		TakeProfit:        positiveOrNil(opts.TakeProfit),
		TrailingStop:      positiveOrNil(opts.TrailingStop),
		Status:            domain.StatusOpen,
		StrategyID:        opts.StrategyID,
		InitialInvestment: opts.InitialInvestment,
		EntryTx:           opts.EntryTx,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	m.mu.Lock()
	m.positions[p.ID] = p
	snapshot := p.Clone()
	m.cfg.Metrics.SetOpenPositions(m.countOpenLocked())
	m.startMonitorLocked()
	m.mu.Unlock()

	if anchor, ok := m.oracle.(ports.PriceAnchor); ok {
		anchor.Anchor(token, entryPrice)
	}

	m.persist(ctx)
	m.logger.Info(ctx, op+": Position opened", map[string]interface{}{
		"positionID": p.ID,
		"token":      token,
		"entryPrice": entryPrice,
		"amount":     amount,
		"strategyID": opts.StrategyID,
	})
	m.publisher.Publish(ctx, domain.PositionCreated{Position: snapshot})
	return snapshot, nil
}

// Position returns a copy of the position with the given id, or nil.
func (m *Manager) Position(id string) *domain.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.positions[id].Clone()
}

// AllPositions returns copies of every position ordered by creation.
func (m *Manager) AllPositions() []*domain.Position {
	return m.collect(func(*domain.Position) bool { return true })
}

// OpenPositions returns copies of the open positions ordered by creation.
func (m *Manager) OpenPositions() []*domain.Position {
	return m.collect(func(p *domain.Position) bool { return p.IsOpen() })
}

// OpenPositionsByStrategy returns the open positions tagged with strategyID.
func (m *Manager) OpenPositionsByStrategy(strategyID string) []*domain.Position {
	return m.collect(func(p *domain.Position) bool { return p.IsOpen() && p.StrategyID == strategyID })
}

func (m *Manager) collect(keep func(*domain.Position) bool) []*domain.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Position, 0, len(m.positions))
	for _, p := range m.positions {
		if keep(p) {
			out = append(out, p.Clone())
		}
	}
	sortByID(out)
	return out
}

// UpdatePosition merges the patch into an open position.
func (m *Manager) UpdatePosition(ctx context.Context, id string, upd domain.PositionUpdate) (*domain.Position, error) {
	op := "UpdatePosition"
	m.mu.Lock()
	p, ok := m.positions[id]
	if !ok {
		m.mu.Unlock()
		m.logger.Warn(ctx, op+": Position not found", map[string]interface{}{"positionID": id})
		return nil, fmt.Errorf("position %s: %w", id, ports.ErrNotFound)
	}
	if !p.IsOpen() {
		m.mu.Unlock()
		m.logger.Warn(ctx, op+": Closed positions are immutable", map[string]interface{}{"positionID": id})
		return nil, fmt.Errorf("position %s is closed: %w", id, ports.ErrInvalidState)
	}
	upd.Apply(p)
	p.UpdatedAt = m.cfg.Now()
	snapshot := p.Clone()
	m.mu.Unlock()

	m.persist(ctx)
	m.publisher.Publish(ctx, domain.PositionUpdated{Position: snapshot})
	return snapshot, nil
}

// ClosePosition marks an open position closed at exitPrice. Closing a position that
// is already closed, or whose exit swap is in flight, is rejected with ErrInvalidState.
func (m *Manager) ClosePosition(ctx context.Context, id string, exitPrice float64, reason domain.CloseReason) (*domain.Position, error) {
	m.mu.RLock()
	busy := m.exiting[id]
	m.mu.RUnlock()
	if busy {
		m.logger.Warn(ctx, "ClosePosition: Exit already in progress", map[string]interface{}{"positionID": id})
		return nil, fmt.Errorf("position %s has an exit in flight: %w", id, ports.ErrInvalidState)
	}
	return m.close(ctx, id, exitPrice, reason)
}

func (m *Manager) close(ctx context.Context, id string, exitPrice float64, reason domain.CloseReason) (*domain.Position, error) {
	op := "ClosePosition"
	m.mu.Lock()
	p, ok := m.positions[id]
	if !ok {
		m.mu.Unlock()
		m.logger.Warn(ctx, op+": Position not found", map[string]interface{}{"positionID": id})
		return nil, fmt.Errorf("position %s: %w", id, ports.ErrNotFound)
	}
	if !p.IsOpen() {
		m.mu.Unlock()
		m.logger.Warn(ctx, op+": Position already closed", map[string]interface{}{"positionID": id, "closeReason": p.CloseReason})
		return nil, fmt.Errorf("position %s already closed: %w", id, ports.ErrInvalidState)
	}

	now := m.cfg.Now()
	profit := profitPercent(p.EntryPrice, exitPrice)
	p.Status = domain.StatusClosed
	p.ExitPrice = domain.Float(exitPrice)
	p.Profit = domain.Float(profit)
	p.ClosedAt = &now
	p.CloseReason = reason
	p.UpdatedAt = now
	snapshot := p.Clone()
	m.cfg.Metrics.SetOpenPositions(m.countOpenLocked())
	m.mu.Unlock()

	m.persist(ctx)
	m.cfg.Metrics.ObserveExit(string(reason))
	m.logger.Info(ctx, op+": Position closed", map[string]interface{}{
		"positionID": id,
		"token":      snapshot.TokenAddress,
		"exitPrice":  exitPrice,
		"profitPct":  profit,
		"reason":     reason,
	})
	m.publisher.Publish(ctx, domain.PositionClosed{Position: snapshot})
	return snapshot, nil
}

// ManualClose prices the token, sells the position and closes it with reason MANUAL.
func (m *Manager) ManualClose(ctx context.Context, id string) (*domain.Position, error) {
	op := "ManualClose"
	m.mu.Lock()
	p, ok := m.positions[id]
	if !ok {
		m.mu.Unlock()
		m.logger.Warn(ctx, op+": Position not found", map[string]interface{}{"positionID": id})
		return nil, fmt.Errorf("position %s: %w", id, ports.ErrNotFound)
	}
	if !p.IsOpen() || m.exiting[id] {
		m.mu.Unlock()
		return nil, fmt.Errorf("position %s cannot be closed now: %w", id, ports.ErrInvalidState)
	}
	m.exiting[id] = true
	snapshot := p.Clone()
	m.mu.Unlock()

	price, err := m.oracle.Price(ctx, snapshot.TokenAddress)
	if err != nil {
		m.clearExiting(id)
		m.logger.Error(ctx, err, op+": Failed to price position", map[string]interface{}{"positionID": id})
		return nil, fmt.Errorf("price %s: %w", snapshot.TokenAddress, err)
	}
	return m.executeExit(ctx, snapshot, price, domain.CloseReasonManual)
}

// IsMonitoring reports whether the monitor loop is currently scheduled.
func (m *Manager) IsMonitoring() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.monitoring
}

// Stop cancels the monitor loop and waits for an in-flight tick to finish.
// The manager does not restart monitoring afterwards.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.stopped = true
	done := m.loopDone
	m.mu.Unlock()

	m.cancel()
	if done != nil {
		<-done
	}
}

// --- Monitor loop ---

// startMonitorLocked launches the monitor goroutine if it is not running.
// NOTE: the caller must hold m.mu.
func (m *Manager) startMonitorLocked() {
	if m.monitoring || m.stopped {
		return
	}
	m.monitoring = true
	done := make(chan struct{})
	m.loopDone = done
	go m.monitorLoop(done)
}

func (m *Manager) monitorLoop(done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.cfg.MonitorInterval)
	defer ticker.Stop()

	m.logger.Info(m.ctx, "Position monitor started", map[string]interface{}{"interval": m.cfg.MonitorInterval.String()})
	for {
		select {
		case <-m.ctx.Done():
			m.mu.Lock()
			m.monitoring = false
			m.mu.Unlock()
			m.logger.Info(context.Background(), "Position monitor cancelled")
			return
		case <-ticker.C:
			m.mu.Lock()
			if m.countOpenLocked() == 0 {
				// Lazy restart happens on the next AddPosition.
				m.monitoring = false
				m.mu.Unlock()
				m.logger.Info(m.ctx, "No open positions, position monitor stopping")
				return
			}
			m.mu.Unlock()
			m.CheckPositions(m.ctx)
		}
	}
}

// CheckPositions runs one monitor tick: it prices every token with open positions and
// triggers the exits whose rules fire. It never panics and never returns an error;
// failures are logged and retried on the next tick.
func (m *Manager) CheckPositions(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error(ctx, fmt.Errorf("panic: %v", r), "Position monitor tick panicked")
		}
	}()
	m.cfg.Metrics.ObserveTick()

	tokens, groups := m.openByToken()
	for _, token := range tokens {
		if ctx.Err() != nil {
			return
		}
		price, err := m.oracle.Price(ctx, token)
		if err != nil {
			m.cfg.Metrics.ObservePriceError(token)
			m.logger.Warn(ctx, "Price fetch failed, skipping token this tick", map[string]interface{}{"token": token, "error": err.Error()})
			continue
		}
		if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
			m.cfg.Metrics.ObservePriceError(token)
			m.logger.Warn(ctx, "Invalid price, skipping token this tick", map[string]interface{}{"token": token, "price": price})
			continue
		}
		for _, id := range groups[token] {
			m.evaluate(ctx, id, price)
		}
	}
}

// openByToken groups open positions by token so each token is priced once per tick.
func (m *Manager) openByToken() ([]string, map[string][]string) {
	open := m.OpenPositions()
	groups := make(map[string][]string)
	tokens := make([]string, 0)
	for _, p := range open {
		if _, seen := groups[p.TokenAddress]; !seen {
			tokens = append(tokens, p.TokenAddress)
		}
		groups[p.TokenAddress] = append(groups[p.TokenAddress], p.ID)
	}
	return tokens, groups
}

func (m *Manager) evaluate(ctx context.Context, id string, price float64) {
	m.mu.Lock()
	p, ok := m.positions[id]
	if !ok || !p.IsOpen() || m.exiting[id] {
		m.mu.Unlock()
		return
	}
	raised := false
	if price > p.HighestPrice {
		p.HighestPrice = price
		p.UpdatedAt = m.cfg.Now()
		raised = true
	}
	reason, hit := exitReason(p, price)
	if hit {
		m.exiting[id] = true
	}
	snapshot := p.Clone()
	m.mu.Unlock()

	if !hit {
		if raised {
			m.persist(ctx)
		}
		return
	}

	m.logger.Info(ctx, "Exit rule triggered", map[string]interface{}{
		"positionID":   id,
		"token":        snapshot.TokenAddress,
		"price":        price,
		"entryPrice":   snapshot.EntryPrice,
		"highestPrice": snapshot.HighestPrice,
		"reason":       reason,
	})
	// On failure the position stays open and is re-evaluated next tick.
	_, _ = m.executeExit(ctx, snapshot, price, reason)
}

// executeExit sells the position and closes it. The caller must have marked the
// position as exiting; the mark is always cleared on return.
func (m *Manager) executeExit(ctx context.Context, p *domain.Position, price float64, reason domain.CloseReason) (*domain.Position, error) {
	op := "executeExit"
	defer m.clearExiting(p.ID)

	res, err := m.swap.Swap(ctx, ports.SwapRequest{
		Direction:   domain.Sell,
		Token:       p.TokenAddress,
		Amount:      p.Amount,
		SlippageBps: m.cfg.ExitSlippageBps,
	})
	if err != nil {
		m.cfg.Metrics.ObserveExitFailure()
		m.logger.Error(ctx, err, op+": Exit swap failed, position stays open", map[string]interface{}{
			"positionID": p.ID,
			"token":      p.TokenAddress,
			"reason":     reason,
		})
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	closed, err := m.close(ctx, p.ID, price, reason)
	if err != nil {
		m.logger.Error(ctx, err, op+": Swap settled but close failed", map[string]interface{}{"positionID": p.ID, "txRef": res.TxRef})
		return nil, err
	}

	m.publisher.Publish(ctx, domain.SellExecuted{
		PositionID:   p.ID,
		TokenAddress: p.TokenAddress,
		Price:        price,
		Reason:       reason,
		TxRef:        res.TxRef,
	})
	return closed, nil
}

func (m *Manager) clearExiting(id string) {
	m.mu.Lock()
	delete(m.exiting, id)
	m.mu.Unlock()
}

// persist writes the full position set. Failures are logged; the in-memory state
// stays authoritative and the next mutation retries the write.
func (m *Manager) persist(ctx context.Context) {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	all := m.AllPositions()
	if err := m.store.SavePositions(ctx, all); err != nil {
		m.logger.Error(ctx, err, "Failed to persist positions", map[string]interface{}{"count": len(all)})
	}
}

// NOTE: the caller must hold m.mu.
func (m *Manager) countOpenLocked() int {
	n := 0
	for _, p := range m.positions {
		if p.IsOpen() {
			n++
		}
	}
	return n
}

func sortByID(ps []*domain.Position) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].ID < ps[j].ID })
}

func positiveOrNil(v *float64) *float64 {
	if v == nil || *v <= 0 {
		return nil
	}
	c := *v
	return &c
}
