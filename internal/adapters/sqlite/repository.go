package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"solTradeBot/internal/domain"
	"solTradeBot/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements ports.PositionStore and ports.StrategyStore on SQLite.
// Both stores persist full sets: every save replaces the table content in one
// transaction.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository: %w", ports.ErrConfigurationError)
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/soltrader.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// One writer; SQLite serialises writes anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite store ready", map[string]interface{}{"path": dbPath})
	return repo, nil
}

func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS positions (
		id TEXT PRIMARY KEY,
		token_address TEXT NOT NULL,
		token_symbol TEXT NOT NULL DEFAULT '',
		entry_price REAL NOT NULL,
		amount REAL NOT NULL,
		highest_price REAL NOT NULL,
		stop_loss REAL NULL,
		take_profit REAL NULL,
		trailing_stop REAL NULL,
		status TEXT NOT NULL,
		strategy_id TEXT NOT NULL DEFAULT '',
		initial_investment REAL NOT NULL DEFAULT 0,
		entry_tx TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		exit_price REAL NULL,
		profit REAL NULL,
		closed_at TIMESTAMP NULL,
		close_reason TEXT NULL
	);

	CREATE TABLE IF NOT EXISTS strategies (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		enabled INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL,
		last_run TIMESTAMP NULL,
		total_trades INTEGER NOT NULL DEFAULT 0,
		successful_trades INTEGER NOT NULL DEFAULT 0,
		failed_trades INTEGER NOT NULL DEFAULT 0,
		profit REAL NOT NULL DEFAULT 0,
		config TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_positions_strategy_status ON positions (strategy_id, status);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- PositionStore Implementation ---

const positionColumns = `id, token_address, token_symbol, entry_price, amount, highest_price,
	stop_loss, take_profit, trailing_stop, status, strategy_id, initial_investment, entry_tx,
	created_at, updated_at, exit_price, profit, closed_at, close_reason`

// LoadPositions returns every stored position ordered by id.
func (r *Repository) LoadPositions(ctx context.Context) ([]*domain.Position, error) {
	return r.queryPositions(ctx, `SELECT `+positionColumns+` FROM positions ORDER BY id`)
}

// ClosedPositions returns the closed positions, optionally of one strategy.
func (r *Repository) ClosedPositions(ctx context.Context, strategyID string) ([]*domain.Position, error) {
	if strategyID == "" {
		return r.queryPositions(ctx, `SELECT `+positionColumns+` FROM positions WHERE status = ? ORDER BY closed_at`, domain.StatusClosed)
	}
	return r.queryPositions(ctx, `SELECT `+positionColumns+` FROM positions WHERE status = ? AND strategy_id = ? ORDER BY closed_at`,
		domain.StatusClosed, strategyID)
}

func (r *Repository) queryPositions(ctx context.Context, query string, args ...interface{}) ([]*domain.Position, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	positions := make([]*domain.Position, 0)
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, pos)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating position rows: %w", err)
	}
	return positions, nil
}

// SavePositions replaces the stored position set with positions.
func (r *Repository) SavePositions(ctx context.Context, positions []*domain.Position) error {
	const insert = `INSERT INTO positions (` + positionColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	return r.replaceAll(ctx, "positions", insert, len(positions), func(stmt *sql.Stmt, i int) error {
		p := positions[i]
		var closeReason sql.NullString
		if p.CloseReason != "" {
			closeReason = sql.NullString{String: string(p.CloseReason), Valid: true}
		}
		_, err := stmt.ExecContext(ctx,
			p.ID, p.TokenAddress, p.TokenSymbol, p.EntryPrice, p.Amount, p.HighestPrice,
			nullFloat(p.StopLoss), nullFloat(p.TakeProfit), nullFloat(p.TrailingStop),
			string(p.Status), p.StrategyID, p.InitialInvestment, p.EntryTx,
			p.CreatedAt, p.UpdatedAt, nullFloat(p.ExitPrice), nullFloat(p.Profit), nullTime(p.ClosedAt), closeReason)
		if err != nil {
			return fmt.Errorf("failed to insert position %s: %w", p.ID, err)
		}
		return nil
	})
}

// --- StrategyStore Implementation ---

// LoadStrategies returns every stored strategy ordered by id.
func (r *Repository) LoadStrategies(ctx context.Context) ([]*domain.Strategy, error) {
	const query = `
	SELECT id, name, enabled, created_at, last_run, total_trades, successful_trades,
	       failed_trades, profit, config
	FROM strategies
	ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query strategies: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	strategies := make([]*domain.Strategy, 0)
	for rows.Next() {
		s, err := scanStrategy(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan strategy: %w", err)
		}
		strategies = append(strategies, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating strategy rows: %w", err)
	}
	return strategies, nil
}

// SaveStrategies replaces the stored strategy set with strategies.
func (r *Repository) SaveStrategies(ctx context.Context, strategies []*domain.Strategy) error {
	const insert = `
	INSERT INTO strategies (id, name, enabled, created_at, last_run, total_trades,
	                        successful_trades, failed_trades, profit, config)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	return r.replaceAll(ctx, "strategies", insert, len(strategies), func(stmt *sql.Stmt, i int) error {
		s := strategies[i]
		cfg, err := json.Marshal(s.Config)
		if err != nil {
			return fmt.Errorf("failed to encode config of strategy %s: %w", s.ID, err)
		}
		_, err = stmt.ExecContext(ctx,
			s.ID, s.Name, s.Enabled, s.CreatedAt, nullTime(s.LastRun),
			s.Stats.TotalTrades, s.Stats.SuccessfulTrades, s.Stats.FailedTrades, s.Stats.Profit, string(cfg))
		if err != nil {
			return fmt.Errorf("failed to insert strategy %s: %w", s.ID, err)
		}
		return nil
	})
}

// replaceAll empties table and inserts n rows through insert inside one transaction.
func (r *Repository) replaceAll(ctx context.Context, table, insert string, n int, exec func(*sql.Stmt, int) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin %s save: %w: %w", table, ports.ErrUpdateFailed, err)
	}
	defer tx.Rollback() // No-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("failed to clear %s: %w: %w", table, ports.ErrUpdateFailed, err)
	}
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("failed to prepare %s insert: %w: %w", table, ports.ErrUpdateFailed, err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if err := exec(stmt, i); err != nil {
			return fmt.Errorf("%w: %w", ports.ErrUpdateFailed, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s save: %w: %w", table, ports.ErrUpdateFailed, err)
	}
	r.logger.Debug(ctx, "Saved "+table, map[string]interface{}{"count": n})
	return nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPosition(s scanner) (*domain.Position, error) {
	p := &domain.Position{}
	var (
		status                         string
		stopLoss, takeProfit, trailing sql.NullFloat64
		exitPrice, profit              sql.NullFloat64
		closedAt                       sql.NullTime
		closeReason                    sql.NullString
	)
	err := s.Scan(
		&p.ID, &p.TokenAddress, &p.TokenSymbol, &p.EntryPrice, &p.Amount, &p.HighestPrice,
		&stopLoss, &takeProfit, &trailing, &status, &p.StrategyID, &p.InitialInvestment, &p.EntryTx,
		&p.CreatedAt, &p.UpdatedAt, &exitPrice, &profit, &closedAt, &closeReason)
	if err != nil {
		return nil, err
	}
	p.Status = domain.PositionStatus(status)
	p.StopLoss = floatPtr(stopLoss)
	p.TakeProfit = floatPtr(takeProfit)
	p.TrailingStop = floatPtr(trailing)
	p.ExitPrice = floatPtr(exitPrice)
	p.Profit = floatPtr(profit)
	if closedAt.Valid {
		t := closedAt.Time
		p.ClosedAt = &t
	}
	if closeReason.Valid {
		p.CloseReason = domain.CloseReason(closeReason.String)
	}
	return p, nil
}

func scanStrategy(s scanner) (*domain.Strategy, error) {
	st := &domain.Strategy{}
	var (
		lastRun sql.NullTime
		cfg     string
	)
	err := s.Scan(&st.ID, &st.Name, &st.Enabled, &st.CreatedAt, &lastRun,
		&st.Stats.TotalTrades, &st.Stats.SuccessfulTrades, &st.Stats.FailedTrades, &st.Stats.Profit, &cfg)
	if err != nil {
		return nil, err
	}
	if lastRun.Valid {
		t := lastRun.Time
		st.LastRun = &t
	}
	// Start from defaults so rows written before a config field existed stay complete.
	st.Config = domain.DefaultStrategyConfig()
	if err := json.Unmarshal([]byte(cfg), &st.Config); err != nil {
		return nil, fmt.Errorf("failed to decode config of strategy %s: %w", st.ID, err)
	}
	return st, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return domain.Float(v.Float64)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
