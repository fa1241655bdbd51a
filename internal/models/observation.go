package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/popanda44/seedvalidator-finance/pkg/forecast"
)

// MetricKind names a tracked financial metric.
type MetricKind string

const (
	MetricMRR         MetricKind = "mrr"
	MetricRevenue     MetricKind = "revenue"
	MetricExpense     MetricKind = "expense"
	MetricCashBurn    MetricKind = "cash_burn"
	MetricCashBalance MetricKind = "cash_balance"
)

// AllMetricKinds lists every supported metric.
var AllMetricKinds = []MetricKind{MetricMRR, MetricRevenue, MetricExpense, MetricCashBurn, MetricCashBalance}

// Valid reports whether m is a supported metric.
func (m MetricKind) Valid() bool {
	for _, k := range AllMetricKinds {
		if m == k {
			return true
		}
	}
	return false
}

// ParseMetricKind normalizes s and checks it against the supported metrics.
func ParseMetricKind(s string) (MetricKind, error) {
	m := MetricKind(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("unsupported metric %q", s)
	}
	return m, nil
}

// MetricObservation is one stored monthly value of a company metric.
type MetricObservation struct {
	CompanyID   string     `json:"company_id" db:"company_id"`
	Metric      MetricKind `json:"metric" db:"metric"`
	PeriodStart time.Time  `json:"period_start" db:"period_start"`
	Value       float64    `json:"value" db:"value"`
	Source      string     `json:"source,omitempty" db:"source"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// ToObservation converts the stored row into an engine observation.
func (o MetricObservation) ToObservation() forecast.Observation {
	return forecast.Observation{Timestamp: o.PeriodStart, Value: o.Value}
}

// ToObservations converts rows preserving order.
func ToObservations(rows []MetricObservation) []forecast.Observation {
	out := make([]forecast.Observation, len(rows))
	for i, row := range rows {
		out[i] = row.ToObservation()
	}
	return out
}

// PeriodStartOf truncates t to the first instant of its UTC month.
func PeriodStartOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
