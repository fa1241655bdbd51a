package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/popanda44/seedvalidator-finance/internal/models"
)

// ErrNoObservations is returned when a company has no stored values for a metric.
var ErrNoObservations = errors.New("no observations found")

// DatabasePool defines the interface for database pool operations.
// Both *pgxpool.Pool and pgxmock pools satisfy it.
type DatabasePool interface {
	// QueryRow executes a query that is expected to return at most one row.
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	// Exec executes a query without returning any rows.
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	// Query executes a query that returns rows.
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	// Begin starts a transaction.
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ObservationRepository handles database operations for metric observations.
type ObservationRepository struct {
	pool DatabasePool
}

// NewObservationRepository creates a new observation repository.
//
// Parameters:
//
//	pool: The database connection pool.
//
// Returns:
//
//	*ObservationRepository: The initialized repository.
func NewObservationRepository(pool DatabasePool) *ObservationRepository {
	return &ObservationRepository{pool: pool}
}

const upsertObservationSQL = `
		INSERT INTO metric_observations (company_id, metric, period_start, value, source, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (company_id, metric, period_start)
		DO UPDATE SET value = EXCLUDED.value, source = EXCLUDED.source, updated_at = NOW()`

// ListObservations returns the latest limit observations of a metric in
// chronological order.
//
// Parameters:
//
//	ctx: Context.
//	companyID: Company identifier.
//	metric: Metric kind.
//	limit: Maximum number of months to return (most recent first in the query).
//
// Returns:
//
//	[]models.MetricObservation: Observations, oldest first.
//	error: ErrNoObservations when nothing is stored.
func (r *ObservationRepository) ListObservations(ctx context.Context, companyID string, metric models.MetricKind, limit int) ([]models.MetricObservation, error) {
	query := `
		SELECT company_id, metric, period_start, value, source, updated_at
		FROM metric_observations
		WHERE company_id = $1 AND metric = $2
		ORDER BY period_start DESC
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, companyID, string(metric), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var observations []models.MetricObservation
	for rows.Next() {
		var (
			obs        models.MetricObservation
			metricName string
		)
		if err := rows.Scan(&obs.CompanyID, &metricName, &obs.PeriodStart, &obs.Value, &obs.Source, &obs.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		obs.Metric = models.MetricKind(metricName)
		observations = append(observations, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating observations: %w", err)
	}
	if len(observations) == 0 {
		return nil, ErrNoObservations
	}

	// Query returns newest first; callers need oldest first.
	for i, j := 0, len(observations)-1; i < j; i, j = i+1, j-1 {
		observations[i], observations[j] = observations[j], observations[i]
	}
	return observations, nil
}

// UpsertObservation inserts or replaces the value stored for one month.
func (r *ObservationRepository) UpsertObservation(ctx context.Context, obs models.MetricObservation) error {
	_, err := r.pool.Exec(ctx, upsertObservationSQL,
		obs.CompanyID, string(obs.Metric), models.PeriodStartOf(obs.PeriodStart), obs.Value, obs.Source)
	if err != nil {
		return fmt.Errorf("failed to upsert observation: %w", err)
	}
	return nil
}

// UpsertObservations writes all observations in a single transaction.
//
// Returns:
//
//	int: Number of rows written.
//	error: Error if any write fails; nothing is committed in that case.
func (r *ObservationRepository) UpsertObservations(ctx context.Context, observations []models.MetricObservation) (int, error) {
	if len(observations) == 0 {
		return 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, obs := range observations {
		if _, err := tx.Exec(ctx, upsertObservationSQL,
			obs.CompanyID, string(obs.Metric), models.PeriodStartOf(obs.PeriodStart), obs.Value, obs.Source); err != nil {
			return 0, fmt.Errorf("failed to upsert observation: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit observations: %w", err)
	}
	return len(observations), nil
}

// LatestValue returns the most recent stored value of a metric.
func (r *ObservationRepository) LatestValue(ctx context.Context, companyID string, metric models.MetricKind) (float64, error) {
	query := `
		SELECT value FROM metric_observations
		WHERE company_id = $1 AND metric = $2
		ORDER BY period_start DESC
		LIMIT 1`

	var value float64
	err := r.pool.QueryRow(ctx, query, companyID, string(metric)).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNoObservations
		}
		return 0, fmt.Errorf("failed to get latest value: %w", err)
	}
	return value, nil
}

// ListCompanies returns the companies that have at least one value of metric.
func (r *ObservationRepository) ListCompanies(ctx context.Context, metric models.MetricKind) ([]string, error) {
	query := `
		SELECT DISTINCT company_id FROM metric_observations
		WHERE metric = $1
		ORDER BY company_id`

	rows, err := r.pool.Query(ctx, query, string(metric))
	if err != nil {
		return nil, fmt.Errorf("failed to query companies: %w", err)
	}
	defer rows.Close()

	var companies []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		companies = append(companies, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating companies: %w", err)
	}
	return companies, nil
}
