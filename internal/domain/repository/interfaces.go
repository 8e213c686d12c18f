package repository

import (
	"context"

	"StratGate/internal/domain/models"
)

// Publisher emits completed validation results to downstream consumers.
type Publisher interface {
	PublishSymbolResult(ctx context.Context, runID string, r models.SymbolResult) error
	PublishPortfolio(ctx context.Context, r models.PortfolioResult) error
	Close() error
}

// ReportStore persists validation outcomes for later retrieval. The engine
// only hands over plain value objects; rendering and schema are the
// store's concern.
type ReportStore interface {
	Init(ctx context.Context) error // ensure tables exist
	SaveSymbolResult(ctx context.Context, runID string, r models.SymbolResult) error
	SavePortfolio(ctx context.Context, r models.PortfolioResult) error
	LatestSymbolResult(ctx context.Context, symbol string) (models.SymbolResult, error)
	Health(ctx context.Context) error
	Close() error
}

// Metrics records operational counters for the validation engine.
type Metrics interface {
	RecordFold(symbol, kind string) // kind: "completed" | "excluded"
	RecordSimulation(symbol string, seconds float64)
	RecordSymbol(symbol, outcome string) // outcome: "ok" | "failed" | "timed_out"
	RecordGeneration(symbol string)
	RecordError(kind string)
}
