package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/yourusername/fund-backtester/internal/models"
)

const errScanBacktestRun = "failed to scan backtest run: %w"

const backtestRunColumns = `id, mode, benchmark, start_date, end_date, funds,
	final_unit_nav, final_value, total_return, benchmark_return, annualized_return,
	max_drawdown, sharpe_ratio, trades, rejected, report, created_at`

// ErrRunNotFound is returned when no run has the requested id
var ErrRunNotFound = errors.New("backtest run not found")

// PostgresBacktestRunRepository implements BacktestRunRepository for PostgreSQL
type PostgresBacktestRunRepository struct {
	db Querier
}

// NewPostgresBacktestRunRepository creates a new backtest run repository
func NewPostgresBacktestRunRepository(db Querier) BacktestRunRepository {
	return &PostgresBacktestRunRepository{db: db}
}

// Save inserts a run summary
func (r *PostgresBacktestRunRepository) Save(ctx context.Context, run *models.BacktestRun) error {
	query := `
		INSERT INTO backtest_runs (` + backtestRunColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`
	_, err := r.db.Exec(ctx, query,
		run.ID, run.Mode, run.Benchmark, run.StartDate, run.EndDate, run.Funds,
		run.FinalUnitNAV, run.FinalValue, run.TotalReturn, run.BenchmarkReturn, run.AnnualizedReturn,
		run.MaxDrawdown, run.SharpeRatio, run.Trades, run.Rejected, []byte(run.Report), run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save backtest run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by id
func (r *PostgresBacktestRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.BacktestRun, error) {
	query := `SELECT ` + backtestRunColumns + ` FROM backtest_runs WHERE id = $1`
	run, err := scanBacktestRun(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf(errScanBacktestRun, err)
	}
	return run, nil
}

// GetLatest retrieves the most recent runs
func (r *PostgresBacktestRunRepository) GetLatest(ctx context.Context, limit int) ([]*models.BacktestRun, error) {
	query := `SELECT ` + backtestRunColumns + ` FROM backtest_runs ORDER BY created_at DESC LIMIT $1`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest backtest runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.BacktestRun
	for rows.Next() {
		run, err := scanBacktestRun(rows)
		if err != nil {
			return nil, fmt.Errorf(errScanBacktestRun, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanBacktestRun(row pgx.Row) (*models.BacktestRun, error) {
	run := &models.BacktestRun{}
	var report []byte
	if err := row.Scan(
		&run.ID, &run.Mode, &run.Benchmark, &run.StartDate, &run.EndDate, &run.Funds,
		&run.FinalUnitNAV, &run.FinalValue, &run.TotalReturn, &run.BenchmarkReturn, &run.AnnualizedReturn,
		&run.MaxDrawdown, &run.SharpeRatio, &run.Trades, &run.Rejected, &report, &run.CreatedAt,
	); err != nil {
		return nil, err
	}
	run.Report = report
	return run, nil
}
