package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"solTradeBot/config"
	"solTradeBot/internal/autotrader"
	"solTradeBot/internal/domain"
	"solTradeBot/internal/events"
	"solTradeBot/internal/metrics"
	"solTradeBot/internal/ports"
	"solTradeBot/internal/position"
)

const shutdownTimeout = 15 * time.Second

// Store persists both positions and strategies. The SQLite repository implements it.
type Store interface {
	ports.PositionStore
	ports.StrategyStore
}

// Runner is a long-lived background component, such as the token stream.
type Runner interface {
	Run(ctx context.Context) error
}

// Components are the adapters the service is assembled from.
type Components struct {
	Store   Store
	Oracle  ports.PriceOracle
	Swap    ports.SwapProvider
	Wallet  ports.Wallet
	Feed    ports.TokenFeed     // Optional
	Holders ports.HolderCounter // Optional
	Scorer  ports.RiskScorer    // Optional
	Runners []Runner
	Metrics *metrics.Registry // Optional
}

// TradingService owns the engine: the position manager, the auto trader and the bus
// connecting them.
type TradingService struct {
	cfg     *config.Config
	logger  ports.Logger
	comps   Components
	bus     *events.Bus
	pos     *position.Manager
	trader  *autotrader.Trader
	metrics *metrics.Registry
}

// NewTradingService creates a new application service instance.
func NewTradingService(cfg *config.Config, logger ports.Logger, comps Components) (*TradingService, error) {
	if cfg == nil || logger == nil || comps.Store == nil || comps.Oracle == nil || comps.Swap == nil || comps.Wallet == nil {
		return nil, fmt.Errorf("missing required dependencies for TradingService: %w", ports.ErrConfigurationError)
	}

	bus := events.NewBus(logger)

	pos, err := position.NewManager(position.Config{
		MonitorInterval: cfg.MonitorInterval,
		ExitSlippageBps: cfg.ExitSlippageBps,
		Metrics:         comps.Metrics,
	}, logger, comps.Oracle, comps.Swap, comps.Store, bus)
	if err != nil {
		return nil, fmt.Errorf("position manager: %w", err)
	}

	trader, err := autotrader.NewTrader(autotrader.Config{
		ScanSchedule:    everySchedule(cfg.ScanInterval),
		ExecuteSchedule: everySchedule(cfg.ExecuteInterval),
		BuySlippageBps:  cfg.BuySlippageBps,
		QueueLimit:      cfg.OpportunityQueueLimit,
		Metrics:         comps.Metrics,
	}, logger, autotrader.Dependencies{
		Positions: pos,
		Swap:      comps.Swap,
		Wallet:    comps.Wallet,
		Feed:      comps.Feed,
		Holders:   comps.Holders,
		Scorer:    comps.Scorer,
		Store:     comps.Store,
		Publisher: bus,
	})
	if err != nil {
		return nil, fmt.Errorf("auto trader: %w", err)
	}

	s := &TradingService{
		cfg:     cfg,
		logger:  logger,
		comps:   comps,
		bus:     bus,
		pos:     pos,
		trader:  trader,
		metrics: comps.Metrics,
	}
	bus.Subscribe(trader.HandleEvent, domain.EventPositionClosed)
	bus.Subscribe(s.logEvent)
	return s, nil
}

// Positions exposes the position manager to operator tooling.
func (s *TradingService) Positions() *position.Manager { return s.pos }

// Trader exposes the auto trader to operator tooling.
func (s *TradingService) Trader() *autotrader.Trader { return s.trader }

// Events exposes the bus so transports can subscribe.
func (s *TradingService) Events() *events.Bus { return s.bus }

// Start restores state, starts every background component and blocks until ctx is
// cancelled or SIGINT/SIGTERM arrives, then shuts down in order.
func (s *TradingService) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting Trading Service...")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Initialization Steps ---
	if err := s.pos.Load(ctx); err != nil {
		return fmt.Errorf("failed to restore positions: %w", err)
	}
	if err := s.trader.Load(ctx); err != nil {
		return fmt.Errorf("failed to restore strategies: %w", err)
	}
	if balance, err := s.comps.Wallet.BalanceSOL(ctx); err != nil {
		s.logger.Warn(ctx, "Wallet balance unavailable", map[string]interface{}{"error": err.Error()})
	} else {
		s.logger.Info(ctx, "Wallet ready", map[string]interface{}{"address": s.comps.Wallet.Address(), "balanceSOL": balance})
	}

	g, gctx := errgroup.WithContext(ctx)

	for _, r := range s.comps.Runners {
		g.Go(func() error {
			// A dead feed degrades discovery; exits keep working.
			if err := r.Run(gctx); err != nil {
				s.logger.Error(gctx, err, "Background component stopped")
			}
			return nil
		})
	}

	if s.cfg.MetricsAddr != "" && s.metrics != nil {
		srv := &http.Server{Addr: s.cfg.MetricsAddr, Handler: s.metricsMux(), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			s.logger.Info(gctx, "Metrics endpoint listening", map[string]interface{}{"addr": s.cfg.MetricsAddr})
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if s.cfg.AutoTraderEnabled {
		if !s.trader.Start(gctx) {
			stop()
			_ = g.Wait()
			s.pos.Stop()
			return fmt.Errorf("auto trader failed to start: %w", ports.ErrConfigurationError)
		}
	} else {
		s.logger.Info(ctx, "Auto trader disabled; monitoring positions only")
	}

	g.Go(func() error {
		<-gctx.Done()
		s.shutdown(context.WithoutCancel(gctx))
		return nil
	})

	err := g.Wait()
	s.logger.Info(context.Background(), "Trading Service stopped")
	return err
}

// shutdown stops entries before exits so no new position opens while monitoring winds down.
func (s *TradingService) shutdown(ctx context.Context) {
	s.logger.Info(ctx, "Shutting down Trading Service...")
	s.trader.Stop(ctx)
	s.pos.Stop()
	perf := s.trader.PerformanceStats()
	s.logger.Info(ctx, "Final engine state", map[string]interface{}{
		"openPositions": len(s.pos.OpenPositions()),
		"strategies":    perf.StrategyCount,
		"totalTrades":   perf.TotalTrades,
		"totalProfit":   perf.TotalProfit,
	})
}

func (s *TradingService) metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// logEvent writes every lifecycle event to the log.
func (s *TradingService) logEvent(ctx context.Context, ev domain.Event) {
	fields := map[string]interface{}{"event": string(ev.Kind())}
	switch e := ev.(type) {
	case domain.PositionCreated:
		fields["positionID"] = e.Position.ID
		fields["token"] = e.Position.TokenAddress
	case domain.PositionClosed:
		fields["positionID"] = e.Position.ID
		fields["reason"] = string(e.Position.CloseReason)
		if e.Position.Profit != nil {
			fields["profitPct"] = *e.Position.Profit
		}
	case domain.SellExecuted:
		fields["positionID"] = e.PositionID
		fields["tx"] = e.TxRef
	case domain.TradeExecuted:
		fields["strategyID"] = e.StrategyID
		fields["token"] = e.TokenAddress
		fields["amountSOL"] = e.AmountSOL
		fields["notify"] = e.Notify
	case domain.TradeError:
		fields["strategyID"] = e.StrategyID
		fields["token"] = e.TokenAddress
		fields["error"] = errString(e.Err)
		fields["notify"] = e.Notify
	case domain.TokenDiscovered:
		fields["strategyID"] = e.StrategyID
		fields["token"] = e.Opportunity.Token.Address
	default:
		s.logger.Debug(ctx, "Engine event", fields)
		return
	}
	s.logger.Info(ctx, "Engine event", fields)
}

// everySchedule turns an interval into a cron "@every" spec.
func everySchedule(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	return "@every " + d.String()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
