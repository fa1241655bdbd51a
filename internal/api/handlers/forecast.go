package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/popanda44/seedvalidator-finance/internal/models"
	"github.com/popanda44/seedvalidator-finance/internal/services"
	"github.com/popanda44/seedvalidator-finance/pkg/forecast"
)

// ForecastRequest forecasts a caller-supplied series. Zero options use the
// server defaults.
type ForecastRequest struct {
	Observations    []forecast.Observation `json:"observations" validate:"max=1200"`
	HorizonMonths   int                    `json:"horizon_months" validate:"omitempty,gte=1"`
	ConfidenceLevel float64                `json:"confidence_level" validate:"omitempty,confidence"`
	SeasonalPeriod  int                    `json:"seasonal_period" validate:"omitempty,gte=2"`
}

func (r ForecastRequest) options() forecast.Options {
	return forecast.Options{
		HorizonMonths:   r.HorizonMonths,
		ConfidenceLevel: r.ConfidenceLevel,
		SeasonalPeriod:  r.SeasonalPeriod,
	}
}

// TrendRequest fits a linear trend.
type TrendRequest struct {
	Observations []forecast.Observation `json:"observations" validate:"max=1200"`
}

// SeasonalityRequest measures periodicity in a value series.
type SeasonalityRequest struct {
	Values []float64 `json:"values" validate:"max=1200"`
	Period int       `json:"period" validate:"omitempty,gte=2"`
}

// AnomalyRequest flags outliers in a series.
type AnomalyRequest struct {
	Observations     []forecast.Observation `json:"observations" validate:"max=1200"`
	ThresholdStdDevs float64                `json:"threshold_std_devs" validate:"omitempty,gt=0"`
}

// BurnRateRequest projects an expense series.
type BurnRateRequest struct {
	Observations []forecast.Observation `json:"observations" validate:"max=1200"`
	Months       int                    `json:"months" validate:"omitempty,gte=1"`
}

// RunwayRequest estimates runway from explicit figures.
type RunwayRequest struct {
	CashBalance       *float64 `json:"cash_balance" validate:"required"`
	MonthlyBurn       *float64 `json:"monthly_burn" validate:"required,gte=0"`
	MonthlyRevenue    float64  `json:"monthly_revenue" validate:"gte=0"`
	GrowthRatePercent float64  `json:"growth_rate_percent"`
}

// IngestRequest stores monthly values for a company metric.
type IngestRequest struct {
	Observations []forecast.Observation `json:"observations" validate:"required,min=1,max=1200"`
	Source       string                 `json:"source" default:"api" validate:"max=64"`
}

// BatchForecastRequest forecasts one metric across companies.
type BatchForecastRequest struct {
	CompanyIDs      []string `json:"company_ids" validate:"max=500,dive,required"`
	HorizonMonths   int      `json:"horizon_months" validate:"omitempty,gte=1"`
	ConfidenceLevel float64  `json:"confidence_level" validate:"omitempty,confidence"`
	SeasonalPeriod  int      `json:"seasonal_period" validate:"omitempty,gte=2"`
}

// ForecastQuery holds the query parameters of store-backed forecast reads.
type ForecastQuery struct {
	HorizonMonths   int     `form:"horizon_months" validate:"omitempty,gte=1"`
	ConfidenceLevel float64 `form:"confidence_level" validate:"omitempty,confidence"`
	SeasonalPeriod  int     `form:"seasonal_period" validate:"omitempty,gte=2"`
}

// AnomalyQuery holds the query parameters of store-backed anomaly reads.
type AnomalyQuery struct {
	ThresholdStdDevs float64 `form:"threshold_std_devs" validate:"omitempty,gt=0"`
}

// BurnQuery holds the query parameters of store-backed burn projections.
type BurnQuery struct {
	Months int    `form:"months" validate:"omitempty,gte=1"`
	Metric string `form:"metric" default:"expense" validate:"oneof=expense cash_burn"`
}

// RunwayQuery holds the query parameters of store-backed runway estimates.
type RunwayQuery struct {
	GrowthRatePercent *float64 `form:"growth_rate_percent"`
}

// ForecastHandler serves the forecasting endpoints.
type ForecastHandler struct {
	service *services.ForecastService
}

// NewForecastHandler creates a new forecast handler.
func NewForecastHandler(service *services.ForecastService) *ForecastHandler {
	return &ForecastHandler{service: service}
}

// Forecast handles POST /api/v1/forecast.
func (h *ForecastHandler) Forecast(c *gin.Context) {
	var req ForecastRequest
	if errs := bindJSON(c, &req); errs != nil {
		respondInvalid(c, errs)
		return
	}

	report, err := h.service.ForecastSeries(c.Request.Context(), req.Observations, req.options())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Trend handles POST /api/v1/trend.
func (h *ForecastHandler) Trend(c *gin.Context) {
	var req TrendRequest
	if errs := bindJSON(c, &req); errs != nil {
		respondInvalid(c, errs)
		return
	}

	result, err := h.service.CalculateTrend(c.Request.Context(), req.Observations)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Seasonality handles POST /api/v1/seasonality.
func (h *ForecastHandler) Seasonality(c *gin.Context) {
	var req SeasonalityRequest
	if errs := bindJSON(c, &req); errs != nil {
		respondInvalid(c, errs)
		return
	}

	result, err := h.service.DetectSeasonality(c.Request.Context(), req.Values, req.Period)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"factors":  result.Factors,
		"strength": result.Strength,
		"detected": result.Detected(),
	})
}

// Anomalies handles POST /api/v1/anomalies.
func (h *ForecastHandler) Anomalies(c *gin.Context) {
	var req AnomalyRequest
	if errs := bindJSON(c, &req); errs != nil {
		respondInvalid(c, errs)
		return
	}

	report, err := h.service.DetectAnomalies(c.Request.Context(), req.Observations, req.ThresholdStdDevs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// BurnRate handles POST /api/v1/burn-rate.
func (h *ForecastHandler) BurnRate(c *gin.Context) {
	var req BurnRateRequest
	if errs := bindJSON(c, &req); errs != nil {
		respondInvalid(c, errs)
		return
	}

	report, err := h.service.PredictBurnRate(c.Request.Context(), req.Observations, req.Months)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Runway handles POST /api/v1/runway.
func (h *ForecastHandler) Runway(c *gin.Context) {
	var req RunwayRequest
	if errs := bindJSON(c, &req); errs != nil {
		respondInvalid(c, errs)
		return
	}

	report, err := h.service.CalculateRunway(c.Request.Context(), services.RunwayInput{
		CashBalance:       *req.CashBalance,
		MonthlyBurn:       *req.MonthlyBurn,
		MonthlyRevenue:    req.MonthlyRevenue,
		GrowthRatePercent: req.GrowthRatePercent,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// MetricForecast handles GET /api/v1/companies/:company_id/metrics/:metric/forecast.
func (h *ForecastHandler) MetricForecast(c *gin.Context) {
	metric, ok := metricParam(c)
	if !ok {
		return
	}
	var q ForecastQuery
	if errs := bindQuery(c, &q); errs != nil {
		respondInvalid(c, errs)
		return
	}

	report, err := h.service.ForecastMetric(c.Request.Context(), c.Param("company_id"), metric, forecast.Options{
		HorizonMonths:   q.HorizonMonths,
		ConfidenceLevel: q.ConfidenceLevel,
		SeasonalPeriod:  q.SeasonalPeriod,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// MetricAnomalies handles GET /api/v1/companies/:company_id/metrics/:metric/anomalies.
func (h *ForecastHandler) MetricAnomalies(c *gin.Context) {
	metric, ok := metricParam(c)
	if !ok {
		return
	}
	var q AnomalyQuery
	if errs := bindQuery(c, &q); errs != nil {
		respondInvalid(c, errs)
		return
	}

	report, err := h.service.DetectMetricAnomalies(c.Request.Context(), c.Param("company_id"), metric, q.ThresholdStdDevs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// IngestObservations handles PUT /api/v1/companies/:company_id/metrics/:metric/observations.
func (h *ForecastHandler) IngestObservations(c *gin.Context) {
	metric, ok := metricParam(c)
	if !ok {
		return
	}
	var req IngestRequest
	if errs := bindJSON(c, &req); errs != nil {
		respondInvalid(c, errs)
		return
	}

	n, err := h.service.IngestObservations(c.Request.Context(), c.Param("company_id"), metric, req.Observations, req.Source)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"company_id": c.Param("company_id"),
		"metric":     metric,
		"ingested":   n,
	})
}

// CompanyBurnRate handles GET /api/v1/companies/:company_id/burn-rate.
func (h *ForecastHandler) CompanyBurnRate(c *gin.Context) {
	var q BurnQuery
	if errs := bindQuery(c, &q); errs != nil {
		respondInvalid(c, errs)
		return
	}

	report, err := h.service.PredictCompanyBurn(c.Request.Context(), c.Param("company_id"), models.MetricKind(q.Metric), q.Months)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// CompanyRunway handles GET /api/v1/companies/:company_id/runway.
func (h *ForecastHandler) CompanyRunway(c *gin.Context) {
	var q RunwayQuery
	if errs := bindQuery(c, &q); errs != nil {
		respondInvalid(c, errs)
		return
	}

	report, err := h.service.CompanyRunway(c.Request.Context(), c.Param("company_id"), q.GrowthRatePercent)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// BatchForecast handles POST /api/v1/metrics/:metric/forecast/batch.
func (h *ForecastHandler) BatchForecast(c *gin.Context) {
	metric, ok := metricParam(c)
	if !ok {
		return
	}
	var req BatchForecastRequest
	if errs := bindJSON(c, &req); errs != nil {
		respondInvalid(c, errs)
		return
	}

	items, err := h.service.ForecastBatch(c.Request.Context(), req.CompanyIDs, metric, forecast.Options{
		HorizonMonths:   req.HorizonMonths,
		ConfidenceLevel: req.ConfidenceLevel,
		SeasonalPeriod:  req.SeasonalPeriod,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"metric": metric,
		"items":  items,
	})
}

func metricParam(c *gin.Context) (models.MetricKind, bool) {
	metric, err := models.ParseMetricKind(c.Param("metric"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "field": "metric"})
		return "", false
	}
	return metric, true
}
