package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Package middleware provides HTTP middleware for request logging, metrics
// and span enrichment.

// SpanAttributes tags the server span (started by otelgin) with the route
// parameters that identify a company metric.
func SpanAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, p := range c.Params {
			AddSpanAttribute(c, "forecast."+p.Key, p.Value)
		}
		if id := c.GetString(RequestIDKey); id != "" {
			AddSpanAttribute(c, "request.id", id)
		}

		c.Next()

		if status := c.Writer.Status(); status >= 500 {
			span := trace.SpanFromContext(c.Request.Context())
			if span.IsRecording() {
				span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
			}
		}
	}
}

// RecordError records an error on the current span
func RecordError(c *gin.Context, err error, description string) {
	span := trace.SpanFromContext(c.Request.Context())
	if span.IsRecording() {
		span.RecordError(err)
		span.SetStatus(codes.Error, description)
	}
}

// AddSpanAttribute adds an attribute to the current span
func AddSpanAttribute(c *gin.Context, key string, value interface{}) {
	span := trace.SpanFromContext(c.Request.Context())
	if !span.IsRecording() {
		return
	}
	switch v := value.(type) {
	case string:
		span.SetAttributes(attribute.String(key, v))
	case int:
		span.SetAttributes(attribute.Int(key, v))
	case float64:
		span.SetAttributes(attribute.Float64(key, v))
	case bool:
		span.SetAttributes(attribute.Bool(key, v))
	default:
		span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", value)))
	}
}
