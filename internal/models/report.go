package models

import (
	"time"

	"github.com/popanda44/seedvalidator-finance/pkg/forecast"
)

// ForecastReport wraps an engine forecast with its run metadata.
type ForecastReport struct {
	RunID           string                   `json:"run_id" yaml:"run_id"`
	CompanyID       string                   `json:"company_id,omitempty" yaml:"company_id,omitempty"`
	Metric          MetricKind               `json:"metric,omitempty" yaml:"metric,omitempty"`
	HorizonMonths   int                      `json:"horizon_months" yaml:"horizon_months"`
	ConfidenceLevel float64                  `json:"confidence_level" yaml:"confidence_level"`
	Observations    int                      `json:"observations" yaml:"observations"`
	Result          *forecast.ForecastResult `json:"result" yaml:"result"`
	Cached          bool                     `json:"cached" yaml:"cached"`
	GeneratedAt     time.Time                `json:"generated_at" yaml:"generated_at"`
}

// AnomalyReport lists anomalies found in a series.
type AnomalyReport struct {
	RunID        string             `json:"run_id" yaml:"run_id"`
	CompanyID    string             `json:"company_id,omitempty" yaml:"company_id,omitempty"`
	Metric       MetricKind         `json:"metric,omitempty" yaml:"metric,omitempty"`
	Threshold    float64            `json:"threshold_std_devs" yaml:"threshold_std_devs"`
	Observations int                `json:"observations" yaml:"observations"`
	Anomalies    []forecast.Anomaly `json:"anomalies" yaml:"anomalies"`
	GeneratedAt  time.Time          `json:"generated_at" yaml:"generated_at"`
}

// BurnReport carries a burn-rate projection.
type BurnReport struct {
	RunID       string                  `json:"run_id" yaml:"run_id"`
	CompanyID   string                  `json:"company_id,omitempty" yaml:"company_id,omitempty"`
	Metric      MetricKind              `json:"metric,omitempty" yaml:"metric,omitempty"`
	Months      int                     `json:"months" yaml:"months"`
	Prediction  forecast.BurnPrediction `json:"prediction" yaml:"prediction"`
	GeneratedAt time.Time               `json:"generated_at" yaml:"generated_at"`
}

// RunwayReport carries the three runway scenarios and their inputs.
type RunwayReport struct {
	RunID             string                   `json:"run_id" yaml:"run_id"`
	CompanyID         string                   `json:"company_id,omitempty" yaml:"company_id,omitempty"`
	CashBalance       float64                  `json:"cash_balance" yaml:"cash_balance"`
	MonthlyBurn       float64                  `json:"monthly_burn" yaml:"monthly_burn"`
	MonthlyRevenue    float64                  `json:"monthly_revenue" yaml:"monthly_revenue"`
	GrowthRatePercent float64                  `json:"growth_rate_percent" yaml:"growth_rate_percent"`
	NetBurn           float64                  `json:"net_burn" yaml:"net_burn"`
	Profitable        bool                     `json:"profitable" yaml:"profitable"`
	Scenarios         forecast.RunwayScenarios `json:"scenarios" yaml:"scenarios"`
	SentinelMonths    float64                  `json:"sentinel_months" yaml:"sentinel_months"`
	GeneratedAt       time.Time                `json:"generated_at" yaml:"generated_at"`
}

// BatchItem is one entry of a multi-company forecast run.
type BatchItem struct {
	CompanyID string          `json:"company_id" yaml:"company_id"`
	Report    *ForecastReport `json:"report,omitempty" yaml:"report,omitempty"`
	Error     string          `json:"error,omitempty" yaml:"error,omitempty"`
}
