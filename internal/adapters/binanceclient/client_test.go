package binanceclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solTradeBot/internal/ports"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL, Logger: &mockLogger{}})
	require.NoError(t, err)
	return c
}

func TestSOLPriceUSD(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/fapi/v1/premiumIndex", r.URL.Path)
		assert.Equal(t, "SOLUSDT", r.URL.Query().Get("symbol"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"SOLUSDT","markPrice":"150.25","indexPrice":"150.20","lastFundingRate":"0.0001","nextFundingTime":0,"interestRate":"0.0001","time":0}`))
	})

	price, err := c.SOLPriceUSD(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 150.25, price)

	// Served from the short-lived cache.
	price, err = c.SOLPriceUSD(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 150.25, price)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetMarkPrice_APIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"code":-1003,"msg":"Too many requests"}`))
	})

	_, err := c.GetMarkPrice(context.Background(), "SOLUSDT")
	assert.ErrorIs(t, err, ports.ErrRateLimited)
}

func TestGetMarkPrice_BadPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"symbol":"SOLUSDT","markPrice":"not-a-number"}`))
	})

	_, err := c.GetMarkPrice(context.Background(), "SOLUSDT")
	assert.ErrorIs(t, err, ports.ErrInvalidResponse)
}

func TestNew_RequiresLogger(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}
