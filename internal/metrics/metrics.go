// Package metrics exposes the engine's Prometheus instruments. Every method is safe to
// call on a nil *Registry so components can run without metrics wired.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all Prometheus metrics for the trading engine.
type Registry struct {
	reg *prometheus.Registry

	MonitorTicks      prometheus.Counter
	PriceFetchErrors  *prometheus.CounterVec
	Exits             *prometheus.CounterVec
	ExitFailures      prometheus.Counter
	OpenPositions     prometheus.Gauge
	TradesExecuted    *prometheus.CounterVec
	TradeErrors       *prometheus.CounterVec
	OpportunitiesSeen *prometheus.CounterVec
	ProviderRequests  *prometheus.CounterVec
}

// NewRegistry creates and registers all metrics on a private registry.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		MonitorTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "soltrader_monitor_ticks_total",
			Help: "Number of position monitor ticks executed",
		}),
		PriceFetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soltrader_price_fetch_errors_total",
			Help: "Price lookups that failed and caused a token group to be skipped",
		}, []string{"token"}),
		Exits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soltrader_exits_total",
			Help: "Positions closed by exit reason",
		}, []string{"reason"}),
		ExitFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "soltrader_exit_failures_total",
			Help: "Exit swaps that failed and left the position open",
		}),
		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "soltrader_open_positions",
			Help: "Currently open positions",
		}),
		TradesExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soltrader_trades_executed_total",
			Help: "Strategy entries that settled",
		}, []string{"strategy"}),
		TradeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soltrader_trade_errors_total",
			Help: "Strategy entries whose swap failed",
		}, []string{"strategy"}),
		OpportunitiesSeen: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soltrader_opportunities_total",
			Help: "Opportunities queued per strategy",
		}, []string{"strategy"}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soltrader_provider_requests_total",
			Help: "Quote provider requests by provider and result",
		}, []string{"provider", "result"}),
	}
	r.reg.MustRegister(
		r.MonitorTicks, r.PriceFetchErrors, r.Exits, r.ExitFailures, r.OpenPositions,
		r.TradesExecuted, r.TradeErrors, r.OpportunitiesSeen, r.ProviderRequests,
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

func (r *Registry) ObserveTick() {
	if r == nil {
		return
	}
	r.MonitorTicks.Inc()
}

func (r *Registry) ObservePriceError(token string) {
	if r == nil {
		return
	}
	r.PriceFetchErrors.WithLabelValues(token).Inc()
}

func (r *Registry) ObserveExit(reason string) {
	if r == nil {
		return
	}
	r.Exits.WithLabelValues(reason).Inc()
}

func (r *Registry) ObserveExitFailure() {
	if r == nil {
		return
	}
	r.ExitFailures.Inc()
}

func (r *Registry) SetOpenPositions(n int) {
	if r == nil {
		return
	}
	r.OpenPositions.Set(float64(n))
}

func (r *Registry) ObserveTrade(strategyID string, ok bool) {
	if r == nil {
		return
	}
	if ok {
		r.TradesExecuted.WithLabelValues(strategyID).Inc()
		return
	}
	r.TradeErrors.WithLabelValues(strategyID).Inc()
}

func (r *Registry) ObserveOpportunity(strategyID string) {
	if r == nil {
		return
	}
	r.OpportunitiesSeen.WithLabelValues(strategyID).Inc()
}

func (r *Registry) ObserveProvider(provider string, ok bool) {
	if r == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	r.ProviderRequests.WithLabelValues(provider, result).Inc()
}
