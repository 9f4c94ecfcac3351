package ports

import (
	"context"

	"solTradeBot/internal/domain"
)

// PositionStore persists the full position set. Save replaces whatever was stored before.
type PositionStore interface {
	// LoadPositions returns every stored position, open and closed.
	LoadPositions(ctx context.Context) ([]*domain.Position, error)
	// SavePositions writes the complete set.
	SavePositions(ctx context.Context, positions []*domain.Position) error
}

// StrategyStore persists the full strategy set. Strategies missing from a save are removed.
type StrategyStore interface {
	LoadStrategies(ctx context.Context) ([]*domain.Strategy, error)
	SaveStrategies(ctx context.Context, strategies []*domain.Strategy) error
}
