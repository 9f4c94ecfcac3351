// Package pumpportal discovers freshly launched tokens from the PumpPortal websocket stream.
package pumpportal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"solTradeBot/internal/domain"
	"solTradeBot/internal/ports"
)

// Config holds the feed options.
type Config struct {
	URL                  string
	WatchlistSize        int // Oldest tokens are evicted beyond this
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int // 0 retries forever
	Now                  func() time.Time
}

// Feed implements ports.TokenFeed. Run keeps the stream connected; Discover
// snapshots the current watchlist.
type Feed struct {
	cfg    Config
	logger ports.Logger

	mu        sync.Mutex
	order     []string // Mints, oldest first
	tokens    map[string]*domain.TokenInfo
	conn      *websocket.Conn
	connected bool
	failed    error // Set once reconnects are exhausted

	writeMu sync.Mutex
}

func NewFeed(cfg Config, logger ports.Logger) (*Feed, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for token feed: %w", ports.ErrConfigurationError)
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("token feed URL is empty: %w", ports.ErrConfigurationError)
	}
	if cfg.WatchlistSize <= 0 {
		cfg.WatchlistSize = 200
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Feed{cfg: cfg, logger: logger, tokens: make(map[string]*domain.TokenInfo)}, nil
}

// Run connects and reads until ctx is cancelled or reconnect attempts run out.
func (f *Feed) Run(ctx context.Context) error {
	op := "PumpPortal.Run"
	attempts := 0
	for {
		err := f.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			attempts = 0
		}
		attempts++
		if f.cfg.MaxReconnectAttempts > 0 && attempts > f.cfg.MaxReconnectAttempts {
			failed := fmt.Errorf("%s: gave up after %d attempts: %w: %w", op, attempts-1, ports.ErrFeedUnavailable, err)
			f.mu.Lock()
			f.failed = failed
			f.mu.Unlock()
			f.logger.Error(ctx, failed, op+": token stream abandoned")
			return failed
		}
		f.logger.Warn(ctx, op+": stream disconnected, reconnecting", map[string]interface{}{
			"attempt": attempts, "delay": f.cfg.ReconnectDelay.String(), "error": errString(err),
		})
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(f.cfg.ReconnectDelay):
		}
	}
}

// session runs one connection. A nil return means the connection was established
// and later dropped, which resets the retry budget.
func (f *Feed) session(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w: %w", f.cfg.URL, ports.ErrConnectionFailed, err)
	}
	defer conn.Close()

	f.mu.Lock()
	f.conn = conn
	f.connected = true
	resubscribe := append([]string(nil), f.order...)
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.conn = nil
		f.connected = false
		f.mu.Unlock()
	}()

	if err := f.send(map[string]interface{}{"method": "subscribeNewToken"}); err != nil {
		return fmt.Errorf("subscribe: %w: %w", ports.ErrConnectionFailed, err)
	}
	if len(resubscribe) > 0 {
		_ = f.send(map[string]interface{}{"method": "subscribeTokenTrade", "keys": resubscribe})
	}
	f.logger.Info(ctx, "PumpPortal stream connected", map[string]interface{}{"url": f.cfg.URL, "watching": len(resubscribe)})

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			f.logger.Debug(ctx, "PumpPortal read failed", map[string]interface{}{"error": err.Error()})
			return nil
		}
		f.handleMessage(ctx, data)
	}
}

func (f *Feed) send(v interface{}) error {
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	if conn == nil {
		return errors.New("not connected")
	}
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	return conn.WriteJSON(v)
}

type streamMessage struct {
	Message            string  `json:"message"`
	TxType             string  `json:"txType"`
	Mint               string  `json:"mint"`
	Name               string  `json:"name"`
	Symbol             string  `json:"symbol"`
	Pool               string  `json:"pool"`
	VSolInBondingCurve float64 `json:"vSolInBondingCurve"`
}

func (f *Feed) handleMessage(ctx context.Context, data []byte) {
	var msg streamMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		f.logger.Debug(ctx, "PumpPortal message skipped", map[string]interface{}{"error": err.Error()})
		return
	}
	if msg.Mint == "" {
		return // subscription acks
	}

	switch msg.TxType {
	case "create":
		f.watch(msg)
	case "buy", "sell":
		f.mu.Lock()
		if info, ok := f.tokens[msg.Mint]; ok && msg.VSolInBondingCurve > 0 {
			info.LiquiditySOL = msg.VSolInBondingCurve
		}
		f.mu.Unlock()
	}
}

func (f *Feed) watch(msg streamMessage) {
	now := f.cfg.Now()
	f.mu.Lock()
	if _, ok := f.tokens[msg.Mint]; ok {
		f.mu.Unlock()
		return
	}
	f.tokens[msg.Mint] = &domain.TokenInfo{
		Address:      msg.Mint,
		Name:         msg.Name,
		Symbol:       msg.Symbol,
		CreatedAt:    now,
		LiquiditySOL: msg.VSolInBondingCurve,
		// Bonding-curve launches are meme tokens. The stream carries no content flags.
		Meme:      msg.Pool == "" || msg.Pool == "pump",
		RiskLevel: domain.RiskUnknown,
	}
	f.order = append(f.order, msg.Mint)
	var evicted []string
	for len(f.order) > f.cfg.WatchlistSize {
		evicted = append(evicted, f.order[0])
		delete(f.tokens, f.order[0])
		f.order = f.order[1:]
	}
	connected := f.connected
	f.mu.Unlock()

	if !connected {
		return
	}
	_ = f.send(map[string]interface{}{"method": "subscribeTokenTrade", "keys": []string{msg.Mint}})
	if len(evicted) > 0 {
		_ = f.send(map[string]interface{}{"method": "unsubscribeTokenTrade", "keys": evicted})
	}
}

// Discover returns the watchlist, newest first. Holder counts are left to the
// caller, which only needs them for tokens that pass its cheaper filters.
func (f *Feed) Discover(ctx context.Context) ([]domain.TokenInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failed != nil && len(f.order) == 0 {
		return nil, f.failed
	}
	out := make([]domain.TokenInfo, 0, len(f.order))
	for i := len(f.order) - 1; i >= 0; i-- {
		out = append(out, *f.tokens[f.order[i]])
	}
	return out, nil
}

// Connected reports whether the stream is currently up.
func (f *Feed) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
