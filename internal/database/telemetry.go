package database

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/popanda44/seedvalidator-finance/internal/observability"
)

// TracedPool wraps a DatabasePool and records a span per statement.
type TracedPool struct {
	pool DatabasePool
}

// NewTracedPool wraps pool with tracing.
func NewTracedPool(pool DatabasePool) *TracedPool {
	return &TracedPool{pool: pool}
}

func (p *TracedPool) startSpan(ctx context.Context, op, sql string) (context.Context, trace.Span) {
	return observability.StartSpan(ctx, observability.SpanOpDBQuery, "db."+op,
		attribute.String("db.system", "postgresql"),
		attribute.String("db.statement", compactSQL(sql)),
	)
}

// Query executes a query that returns rows.
func (p *TracedPool) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	ctx, span := p.startSpan(ctx, "Query", sql)
	rows, err := p.pool.Query(ctx, sql, args...)
	observability.FinishSpan(span, err)
	return rows, err
}

// QueryRow executes a query returning at most one row. Errors surface on Scan.
func (p *TracedPool) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	ctx, span := p.startSpan(ctx, "QueryRow", sql)
	row := p.pool.QueryRow(ctx, sql, args...)
	observability.FinishSpan(span, nil)
	return row
}

// Exec executes a statement without returning rows.
func (p *TracedPool) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	ctx, span := p.startSpan(ctx, "Exec", sql)
	tag, err := p.pool.Exec(ctx, sql, args...)
	if err == nil {
		span.SetAttributes(attribute.Int64("db.rows_affected", tag.RowsAffected()))
	}
	observability.FinishSpan(span, err)
	return tag, err
}

// Begin starts a transaction.
func (p *TracedPool) Begin(ctx context.Context) (pgx.Tx, error) {
	ctx, span := p.startSpan(ctx, "Begin", "BEGIN")
	tx, err := p.pool.Begin(ctx)
	observability.FinishSpan(span, err)
	return tx, err
}

func compactSQL(sql string) string {
	return strings.Join(strings.Fields(sql), " ")
}
