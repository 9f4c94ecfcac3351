package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"solTradeBot/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// setupTestDB creates a temporary database for testing
func setupTestDB(t *testing.T) (*Repository, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "soltrader-test-*")
	require.NoError(t, err)

	repo, err := NewRepository(Config{
		DBPath: filepath.Join(tmpDir, "nested", "test.db"),
		Logger: &mockLogger{},
	})
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		os.RemoveAll(tmpDir)
	}
	return repo, cleanup
}

func TestNewRepository_RequiresLogger(t *testing.T) {
	_, err := NewRepository(Config{DBPath: filepath.Join(t.TempDir(), "x.db")})
	assert.Error(t, err)
}

func TestRepository_PositionsRoundTrip(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	created := time.Date(2026, 1, 2, 3, 4, 5, 600, time.UTC)
	closedAt := created.Add(time.Hour)
	open := &domain.Position{
		ID:                "0190a000-0000-7000-8000-000000000001",
		TokenAddress:      "MINT1",
		TokenSymbol:       "BONK",
		EntryPrice:        0.001,
		Amount:            1000,
		HighestPrice:      0.0012,
		StopLoss:          domain.Float(10),
		TrailingStop:      domain.Float(5),
		Status:            domain.StatusOpen,
		StrategyID:        "s1",
		InitialInvestment: 0.1,
		EntryTx:           "paper-1",
		CreatedAt:         created,
		UpdatedAt:         created,
	}
	closed := &domain.Position{
		ID:           "0190a000-0000-7000-8000-000000000002",
		TokenAddress: "MINT2",
		EntryPrice:   1,
		Amount:       5,
		HighestPrice: 1,
		TakeProfit:   domain.Float(30),
		Status:       domain.StatusClosed,
		CreatedAt:    created,
		UpdatedAt:    closedAt,
		ExitPrice:    domain.Float(0.89),
		Profit:       domain.Float(-11),
		ClosedAt:     &closedAt,
		CloseReason:  domain.CloseReasonStopLoss,
	}

	require.NoError(t, repo.SavePositions(ctx, []*domain.Position{open, closed}))
	loaded, err := repo.LoadPositions(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	got := loaded[0]
	assert.Equal(t, open.ID, got.ID)
	assert.Equal(t, "BONK", got.TokenSymbol)
	assert.Equal(t, 10.0, *got.StopLoss)
	assert.Nil(t, got.TakeProfit)
	assert.Equal(t, 5.0, *got.TrailingStop)
	assert.Equal(t, domain.StatusOpen, got.Status)
	assert.Equal(t, "s1", got.StrategyID)
	assert.True(t, created.Equal(got.CreatedAt), "created_at round trip")
	assert.Nil(t, got.ExitPrice)
	assert.Nil(t, got.Profit)
	assert.Nil(t, got.ClosedAt)
	assert.Empty(t, got.CloseReason)

	got = loaded[1]
	assert.Equal(t, domain.StatusClosed, got.Status)
	assert.Equal(t, 0.89, *got.ExitPrice)
	assert.Equal(t, -11.0, *got.Profit)
	require.NotNil(t, got.ClosedAt)
	assert.True(t, closedAt.Equal(*got.ClosedAt))
	assert.Equal(t, domain.CloseReasonStopLoss, got.CloseReason)
}

func TestRepository_SavePositionsReplacesSet(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	now := time.Now().UTC()

	mk := func(id string) *domain.Position {
		return &domain.Position{ID: id, TokenAddress: "MINT", EntryPrice: 1, HighestPrice: 1, Status: domain.StatusOpen, CreatedAt: now, UpdatedAt: now}
	}
	require.NoError(t, repo.SavePositions(ctx, []*domain.Position{mk("a"), mk("b")}))
	require.NoError(t, repo.SavePositions(ctx, []*domain.Position{mk("c")}))

	loaded, err := repo.LoadPositions(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "c", loaded[0].ID)

	require.NoError(t, repo.SavePositions(ctx, nil))
	loaded, err = repo.LoadPositions(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestRepository_SavePositionsRollsBackOnError(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	now := time.Now().UTC()

	p := &domain.Position{ID: "a", TokenAddress: "MINT", EntryPrice: 1, HighestPrice: 1, Status: domain.StatusOpen, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.SavePositions(ctx, []*domain.Position{p}))

	// Duplicate primary key aborts the whole save.
	err := repo.SavePositions(ctx, []*domain.Position{p, p})
	assert.Error(t, err)

	loaded, err := repo.LoadPositions(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}

func TestRepository_ClosedPositions(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	now := time.Now().UTC()

	mk := func(id, strategy string, status domain.PositionStatus) *domain.Position {
		p := &domain.Position{ID: id, TokenAddress: "MINT", EntryPrice: 1, HighestPrice: 1, Status: status, StrategyID: strategy, CreatedAt: now, UpdatedAt: now}
		if status == domain.StatusClosed {
			p.ExitPrice, p.Profit, p.ClosedAt, p.CloseReason = domain.Float(2), domain.Float(100), &now, domain.CloseReasonTakeProfit
		}
		return p
	}
	require.NoError(t, repo.SavePositions(ctx, []*domain.Position{
		mk("a", "s1", domain.StatusClosed),
		mk("b", "s2", domain.StatusClosed),
		mk("c", "s1", domain.StatusOpen),
	}))

	all, err := repo.ClosedPositions(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	s1, err := repo.ClosedPositions(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, s1, 1)
	assert.Equal(t, "a", s1[0].ID)
}

func TestRepository_StrategiesRoundTrip(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	created := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	lastRun := created.Add(30 * time.Minute)
	cfg := domain.DefaultStrategyConfig()
	cfg.TrailingStop = domain.Float(7)
	cfg.TokenFilters.MaxAgeHours = 24

	in := []*domain.Strategy{
		{
			ID:        "s1",
			Name:      "snipe",
			Enabled:   true,
			CreatedAt: created,
			LastRun:   &lastRun,
			Stats:     domain.StrategyStats{TotalTrades: 3, SuccessfulTrades: 2, FailedTrades: 1, Profit: 0.05},
			Config:    cfg,
		},
		{ID: "s2", Name: "idle", CreatedAt: created, Config: domain.DefaultStrategyConfig()},
	}
	require.NoError(t, repo.SaveStrategies(ctx, in))

	loaded, err := repo.LoadStrategies(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	got := loaded[0]
	assert.Equal(t, "snipe", got.Name)
	assert.True(t, got.Enabled)
	assert.Equal(t, in[0].Stats, got.Stats)
	require.NotNil(t, got.LastRun)
	assert.True(t, lastRun.Equal(*got.LastRun))
	assert.Equal(t, cfg, got.Config)

	assert.False(t, loaded[1].Enabled)
	assert.Nil(t, loaded[1].LastRun)
	assert.Nil(t, loaded[1].Config.TrailingStop)

	require.NoError(t, repo.SaveStrategies(ctx, loaded[1:]))
	loaded, err = repo.LoadStrategies(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "s2", loaded[0].ID)
}
