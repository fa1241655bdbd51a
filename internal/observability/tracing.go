package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/popanda44/seedvalidator-finance/internal/telemetry"
)

// SpanOperation constants for consistent span naming
const (
	SpanOpForecast    = "forecast.holt_winters"
	SpanOpTrend       = "forecast.trend"
	SpanOpSeasonality = "forecast.seasonality"
	SpanOpAnomaly     = "forecast.anomaly"
	SpanOpBurnRate    = "forecast.burn_rate"
	SpanOpRunway      = "forecast.runway"
	SpanOpDBQuery     = "db.query"
	SpanOpCacheGet    = "cache.get"
	SpanOpCacheSet    = "cache.set"
)

// StartSpan starts a span named name tagged with its operation.
func StartSpan(ctx context.Context, operation string, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("operation", operation))
	return telemetry.Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// FinishSpan records err (if any) on the span and ends it.
func FinishSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
