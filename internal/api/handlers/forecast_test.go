package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popanda44/seedvalidator-finance/internal/config"
	"github.com/popanda44/seedvalidator-finance/internal/database"
	"github.com/popanda44/seedvalidator-finance/internal/logging"
	"github.com/popanda44/seedvalidator-finance/internal/services"
)

var (
	jan2024 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	feb2024 = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
)

var observationColumns = []string{"company_id", "metric", "period_start", "value", "source", "updated_at"}

func testForecastConfig() config.ForecastConfig {
	return config.ForecastConfig{
		DefaultHorizonMonths:   6,
		MaxHorizonMonths:       36,
		DefaultConfidenceLevel: 0.95,
		SeasonalPeriod:         12,
		LookbackMonths:         36,
		AnomalyThreshold:       2,
		BurnProjectionMonths:   6,
		BatchConcurrency:       2,
	}
}

func newTestRouter(store services.ObservationStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewForecastHandler(services.NewForecastService(store, nil, testForecastConfig(), logging.Discard(), nil))

	v1 := router.Group("/api/v1")
	v1.POST("/forecast", h.Forecast)
	v1.POST("/trend", h.Trend)
	v1.POST("/seasonality", h.Seasonality)
	v1.POST("/anomalies", h.Anomalies)
	v1.POST("/burn-rate", h.BurnRate)
	v1.POST("/runway", h.Runway)
	v1.GET("/companies/:company_id/metrics/:metric/forecast", h.MetricForecast)
	v1.GET("/companies/:company_id/metrics/:metric/anomalies", h.MetricAnomalies)
	v1.PUT("/companies/:company_id/metrics/:metric/observations", h.IngestObservations)
	v1.GET("/companies/:company_id/burn-rate", h.CompanyBurnRate)
	v1.GET("/companies/:company_id/runway", h.CompanyRunway)
	v1.POST("/metrics/:metric/forecast/batch", h.BatchForecast)
	return router
}

func newMockRouter(t *testing.T) (*gin.Engine, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return newTestRouter(database.NewObservationRepository(mock)), mock
}

func doJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func series(values ...float64) []map[string]interface{} {
	out := make([]map[string]interface{}, len(values))
	for i, v := range values {
		out[i] = map[string]interface{}{
			"timestamp": jan2024.AddDate(0, i, 0).Format(time.RFC3339),
			"value":     v,
		}
	}
	return out
}

func TestForecastHandler_Forecast(t *testing.T) {
	router := newTestRouter(nil)

	w := doJSON(router, http.MethodPost, "/api/v1/forecast", map[string]interface{}{
		"observations":   series(100, 104, 108, 112, 117, 121, 126, 131),
		"horizon_months": 3,
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, float64(3), body["horizon_months"])
	assert.Equal(t, 0.95, body["confidence_level"])

	result := body["result"].(map[string]interface{})
	forecasts := result["forecasts"].([]interface{})
	require.Len(t, forecasts, 4)
	first := forecasts[0].(map[string]interface{})
	assert.Equal(t, 131.0, first["actual"])
	assert.Equal(t, false, result["fallback"])
}

func TestForecastHandler_Forecast_Validation(t *testing.T) {
	router := newTestRouter(nil)

	t.Run("confidence out of range", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/api/v1/forecast", map[string]interface{}{
			"observations":     series(1, 2, 3),
			"confidence_level": 1.5,
		})
		require.Equal(t, http.StatusBadRequest, w.Code)

		var body struct {
			Details []FieldError `json:"details"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Len(t, body.Details, 1)
		assert.Equal(t, "ERR_CONFIDENCE", body.Details[0].Code)
		assert.Equal(t, "confidence_level", body.Details[0].Field)
	})

	t.Run("horizon above configured max", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/api/v1/forecast", map[string]interface{}{
			"observations":   series(1, 2, 3),
			"horizon_months": 48,
		})
		require.Equal(t, http.StatusBadRequest, w.Code)
		body := decode(t, w)
		assert.Equal(t, "horizon_months must not exceed 36", body["error"])
		assert.Equal(t, "horizon_months", body["field"])
	})

	t.Run("malformed body", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/api/v1/forecast", `{"observations": [`)
		require.Equal(t, http.StatusBadRequest, w.Code)

		var body struct {
			Details []FieldError `json:"details"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Len(t, body.Details, 1)
		assert.Equal(t, "ERR_BIND", body.Details[0].Code)
	})
}

func TestForecastHandler_Stateless(t *testing.T) {
	router := newTestRouter(nil)

	t.Run("trend", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/api/v1/trend", map[string]interface{}{
			"observations": series(100, 110, 120),
		})
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.InDelta(t, 10.0, body["slope"], 1e-9)
		assert.InDelta(t, 100.0, body["intercept"], 1e-9)
	})

	t.Run("seasonality", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/api/v1/seasonality", map[string]interface{}{
			"values": []float64{1, 2, 3},
			"period": 4,
		})
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, false, body["detected"])
		assert.Len(t, body["factors"], 4)
	})

	t.Run("anomalies", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/api/v1/anomalies", map[string]interface{}{
			"observations": series(10, 10, 10, 10, 10, 10, 10, 10, 10, 50),
		})
		require.Equal(t, http.StatusOK, w.Code)
		anomalies := decode(t, w)["anomalies"].([]interface{})
		require.Len(t, anomalies, 1)
		assert.Equal(t, "above", anomalies[0].(map[string]interface{})["direction"])
	})

	t.Run("burn rate", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/api/v1/burn-rate", map[string]interface{}{
			"observations": series(40000, 42000, 44000, 46000),
			"months":       2,
		})
		require.Equal(t, http.StatusOK, w.Code)
		prediction := decode(t, w)["prediction"].(map[string]interface{})
		assert.Len(t, prediction["predictions"], 2)
		assert.Equal(t, "increasing", prediction["trend"])
	})

	t.Run("runway", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/api/v1/runway", map[string]interface{}{
			"cash_balance":        500000,
			"monthly_burn":        50000,
			"monthly_revenue":     10000,
			"growth_rate_percent": 10,
		})
		require.Equal(t, http.StatusOK, w.Code)
		scenarios := decode(t, w)["scenarios"].(map[string]interface{})
		assert.Equal(t, 12.5, scenarios["base"])
		assert.Equal(t, 12.66, scenarios["optimistic"])
		assert.Equal(t, 12.42, scenarios["pessimistic"])
	})

	t.Run("runway requires cash", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/api/v1/runway", map[string]interface{}{
			"monthly_burn": 50000,
		})
		require.Equal(t, http.StatusBadRequest, w.Code)

		var body struct {
			Details []FieldError `json:"details"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Len(t, body.Details, 1)
		assert.Equal(t, "ERR_REQUIRED", body.Details[0].Code)
		assert.Equal(t, "cash_balance", body.Details[0].Field)
	})
}

func TestForecastHandler_MetricForecast(t *testing.T) {
	router, mock := newMockRouter(t)

	mock.ExpectQuery("SELECT company_id, metric, period_start").
		WithArgs("acme", "mrr", 36).
		WillReturnRows(pgxmock.NewRows(observationColumns).
			AddRow("acme", "mrr", feb2024, 110.0, "", feb2024).
			AddRow("acme", "mrr", jan2024, 100.0, "", jan2024))

	w := doJSON(router, http.MethodGet, "/api/v1/companies/acme/metrics/mrr/forecast?horizon_months=2&confidence_level=0.9", nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "acme", body["company_id"])
	assert.Equal(t, "mrr", body["metric"])
	assert.Equal(t, 0.9, body["confidence_level"])
	assert.Equal(t, float64(2), body["observations"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestForecastHandler_MetricForecast_Errors(t *testing.T) {
	t.Run("unsupported metric", func(t *testing.T) {
		router, _ := newMockRouter(t)
		w := doJSON(router, http.MethodGet, "/api/v1/companies/acme/metrics/ebitda/forecast", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "metric", decode(t, w)["field"])
	})

	t.Run("no observations", func(t *testing.T) {
		router, mock := newMockRouter(t)
		mock.ExpectQuery("SELECT company_id, metric").
			WithArgs("acme", "revenue", 36).
			WillReturnRows(pgxmock.NewRows(observationColumns))

		w := doJSON(router, http.MethodGet, "/api/v1/companies/acme/metrics/revenue/forecast", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("database failure", func(t *testing.T) {
		router, mock := newMockRouter(t)
		mock.ExpectQuery("SELECT company_id, metric").
			WithArgs("acme", "revenue", 36).
			WillReturnError(errors.New("connection reset"))

		w := doJSON(router, http.MethodGet, "/api/v1/companies/acme/metrics/revenue/forecast", nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "internal server error", decode(t, w)["error"])
	})

	t.Run("invalid query", func(t *testing.T) {
		router, _ := newMockRouter(t)
		w := doJSON(router, http.MethodGet, "/api/v1/companies/acme/metrics/mrr/forecast?seasonal_period=1", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestForecastHandler_MetricAnomalies(t *testing.T) {
	router, mock := newMockRouter(t)

	rows := pgxmock.NewRows(observationColumns)
	values := []float64{10, 10, 10, 10, 10, 10, 10, 10, 10, 50}
	for i := len(values) - 1; i >= 0; i-- {
		period := jan2024.AddDate(0, i, 0)
		rows.AddRow("acme", "expense", period, values[i], "", period)
	}
	mock.ExpectQuery("SELECT company_id, metric").
		WithArgs("acme", "expense", 36).
		WillReturnRows(rows)

	w := doJSON(router, http.MethodGet, "/api/v1/companies/acme/metrics/expense/anomalies?threshold_std_devs=2.5", nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, 2.5, body["threshold_std_devs"])
	assert.Len(t, body["anomalies"], 1)
}

func TestForecastHandler_IngestObservations(t *testing.T) {
	router, mock := newMockRouter(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO metric_observations").
		WithArgs("acme", "cash_balance", jan2024, 500000.0, "api").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO metric_observations").
		WithArgs("acme", "cash_balance", feb2024, 460000.0, "api").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	w := doJSON(router, http.MethodPut, "/api/v1/companies/acme/metrics/cash_balance/observations", map[string]interface{}{
		"observations": series(500000, 460000),
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(2), decode(t, w)["ingested"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestForecastHandler_IngestObservations_Empty(t *testing.T) {
	router, _ := newMockRouter(t)

	w := doJSON(router, http.MethodPut, "/api/v1/companies/acme/metrics/mrr/observations", map[string]interface{}{
		"observations": []interface{}{},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestForecastHandler_CompanyRunway(t *testing.T) {
	router, mock := newMockRouter(t)

	mock.ExpectQuery("SELECT value FROM metric_observations").
		WithArgs("acme", "cash_balance").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow(500000.0))
	mock.ExpectQuery("SELECT value FROM metric_observations").
		WithArgs("acme", "expense").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow(50000.0))
	mock.ExpectQuery("SELECT company_id, metric").
		WithArgs("acme", "revenue", 36).
		WillReturnRows(pgxmock.NewRows(observationColumns))

	w := doJSON(router, http.MethodGet, "/api/v1/companies/acme/runway?growth_rate_percent=5", nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, 5.0, body["growth_rate_percent"])
	assert.Equal(t, 10.0, body["scenarios"].(map[string]interface{})["base"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestForecastHandler_CompanyBurnRate(t *testing.T) {
	t.Run("expense series by default", func(t *testing.T) {
		router, mock := newMockRouter(t)

		mock.ExpectQuery("SELECT company_id, metric").
			WithArgs("acme", "expense", 36).
			WillReturnRows(pgxmock.NewRows(observationColumns).
				AddRow("acme", "expense", feb2024, 48000.0, "", feb2024).
				AddRow("acme", "expense", jan2024, 50000.0, "", jan2024))

		w := doJSON(router, http.MethodGet, "/api/v1/companies/acme/burn-rate?months=3", nil)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		body := decode(t, w)
		assert.Equal(t, float64(3), body["months"])
		assert.Equal(t, "expense", body["metric"])
		assert.Equal(t, "decreasing", body["prediction"].(map[string]interface{})["trend"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cash burn series", func(t *testing.T) {
		router, mock := newMockRouter(t)

		mock.ExpectQuery("SELECT company_id, metric").
			WithArgs("acme", "cash_burn", 36).
			WillReturnRows(pgxmock.NewRows(observationColumns).
				AddRow("acme", "cash_burn", feb2024, 48000.0, "", feb2024).
				AddRow("acme", "cash_burn", jan2024, 50000.0, "", jan2024))

		w := doJSON(router, http.MethodGet, "/api/v1/companies/acme/burn-rate?metric=cash_burn", nil)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "cash_burn", decode(t, w)["metric"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unsupported series", func(t *testing.T) {
		router, _ := newMockRouter(t)

		w := doJSON(router, http.MethodGet, "/api/v1/companies/acme/burn-rate?metric=mrr", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestForecastHandler_BatchForecast(t *testing.T) {
	router, mock := newMockRouter(t)

	mock.ExpectQuery("SELECT company_id, metric").
		WithArgs("acme", "mrr", 36).
		WillReturnRows(pgxmock.NewRows(observationColumns).
			AddRow("acme", "mrr", feb2024, 110.0, "", feb2024).
			AddRow("acme", "mrr", jan2024, 100.0, "", jan2024))

	w := doJSON(router, http.MethodPost, "/api/v1/metrics/mrr/forecast/batch", map[string]interface{}{
		"company_ids":    []string{"acme"},
		"horizon_months": 2,
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	items := decode(t, w)["items"].([]interface{})
	require.Len(t, items, 1)
	item := items[0].(map[string]interface{})
	assert.Equal(t, "acme", item["company_id"])
	assert.NotNil(t, item["report"])
}
