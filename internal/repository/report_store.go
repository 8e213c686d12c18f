package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"StratGate/internal/domain/models"
	"StratGate/internal/domain/repository"
	"StratGate/pkg/clickhouse"
)

// ClickHouseReportStore persists validation outcomes. Summary columns make
// reports queryable; the full result travels as a JSON payload so the
// schema does not chase every struct change.
type ClickHouseReportStore struct {
	client *clickhouse.Client
	db     *sql.DB
}

func NewClickHouseReportStore(client *clickhouse.Client) repository.ReportStore {
	return &ClickHouseReportStore{client: client, db: client.DB()}
}

func (s *ClickHouseReportStore) Init(ctx context.Context) error {
	return s.client.InitSchema(ctx, []string{
		`CREATE TABLE IF NOT EXISTS symbol_reports (
			run_id            String,
			symbol            String,
			created_at        DateTime,
			bars              UInt32,
			mean_accuracy     Float64,
			coeff_variation   Float64,
			stable            UInt8,
			overfitting_score Float64,
			recommendation    String,
			wf_efficiency     Float64,
			best_fitness      Float64,
			payload           String
		) ENGINE = MergeTree()
		ORDER BY (symbol, created_at)`,
		`CREATE TABLE IF NOT EXISTS portfolio_reports (
			run_id           String,
			created_at       DateTime,
			symbols          UInt32,
			failures         UInt32,
			portfolio_return Float64,
			best_symbol      String,
			worst_symbol     String,
			payload          String
		) ENGINE = MergeTree()
		ORDER BY created_at`,
	})
}

func (s *ClickHouseReportStore) SaveSymbolResult(ctx context.Context, runID string, r models.SymbolResult) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal symbol result: %w", err)
	}

	stable := uint8(0)
	if r.Aggregate.Stable {
		stable = 1
	}
	q := `INSERT INTO symbol_reports
		(run_id, symbol, created_at, bars, mean_accuracy, coeff_variation, stable, overfitting_score, recommendation, wf_efficiency, best_fitness, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, q,
		runID,
		r.Symbol,
		time.Now().UTC(),
		uint32(r.Bars),
		r.Aggregate.MeanAccuracy,
		r.Aggregate.CoefficientOfVariation,
		stable,
		r.Gap.OverfittingScore,
		string(r.Gap.Recommendation),
		r.WalkForward.Efficiency,
		r.BestFitness,
		string(payload),
	)
	return err
}

func (s *ClickHouseReportStore) SavePortfolio(ctx context.Context, r models.PortfolioResult) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal portfolio result: %w", err)
	}

	q := `INSERT INTO portfolio_reports
		(run_id, created_at, symbols, failures, portfolio_return, best_symbol, worst_symbol, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, q,
		r.RunID,
		time.Now().UTC(),
		uint32(len(r.Symbols)),
		uint32(len(r.Failures)),
		r.PortfolioReturn,
		r.BestSymbol,
		r.WorstSymbol,
		string(payload),
	)
	return err
}

func (s *ClickHouseReportStore) LatestSymbolResult(ctx context.Context, symbol string) (models.SymbolResult, error) {
	var payload string
	q := `SELECT payload FROM symbol_reports WHERE symbol = ? ORDER BY created_at DESC LIMIT 1`
	if err := s.db.QueryRowContext(ctx, q, symbol).Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return models.SymbolResult{}, fmt.Errorf("no report for %s", symbol)
		}
		return models.SymbolResult{}, err
	}

	var r models.SymbolResult
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return models.SymbolResult{}, fmt.Errorf("unmarshal report payload: %w", err)
	}
	return r, nil
}

func (s *ClickHouseReportStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

func (s *ClickHouseReportStore) Close() error {
	return s.client.Close()
}
