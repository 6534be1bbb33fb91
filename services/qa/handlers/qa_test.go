// Copyright (C) 2025 Atlas RE Intelligence (engineering@atlasre.io)
// Tests for the QA handlers

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasre/assetgraph/services/engine/answer"
	"github.com/atlasre/assetgraph/services/graphstore"
	"github.com/atlasre/assetgraph/services/qa/datatypes"
	"github.com/atlasre/assetgraph/services/timeseries"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func seedAssets() []graphstore.Asset {
	return []graphstore.Asset{
		{
			Name: "Sunset Commons", City: "Los Angeles", State: "California",
			Region: "West Coast", BuildingType: "Mixed Use", Platform: "Real Estate",
			InvestmentType: "Equity", Latitude: 34.0522, Longitude: -118.2437,
		},
		{
			Name: "Congress Tower", City: "Austin", State: "Texas",
			Region: "Southwest", BuildingType: "Commercial", Platform: "Real Estate",
			InvestmentType: "Equity", Latitude: 30.2672, Longitude: -97.7431,
		},
		{
			Name: "Lakefront Exchange", City: "Chicago", State: "Illinois",
			Region: "Midwest", BuildingType: "Commercial", Platform: "Credit",
			InvestmentType: "Debt", Latitude: 41.8781, Longitude: -87.6298,
		},
	}
}

// newTestRouter builds a router over a real engine. When loaded is false
// the asset snapshot is left empty so queries surface store errors.
func newTestRouter(t *testing.T, loaded bool) *gin.Engine {
	t.Helper()

	ts, err := timeseries.Open(timeseries.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ts.Close() })

	metric := timeseries.Metric{Name: "California Unemployment Rate", Category: "Employment", Scope: "California", Units: "percent"}
	_, err = ts.Append(context.Background(), metric, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), 5.3)
	require.NoError(t, err)

	store := graphstore.NewMemory(ts, nil)
	if loaded {
		require.NoError(t, store.LoadAssets(seedAssets()))
	}

	eng, err := answer.New(answer.Deps{Store: store})
	require.NoError(t, err)

	router := gin.New()
	router.POST("/qa", HandleQA(eng))
	return router
}

func postQA(router *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/qa", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

// =============================================================================
// HandleQA Tests
// =============================================================================

func TestHandleQA_GeographicQuestion(t *testing.T) {
	router := newTestRouter(t, true)

	w := postQA(router, `{"question": "Show me all assets in California"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.QAResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "geographic_template_generated", resp.QueryType)
	assert.NotEmpty(t, resp.RequestID)
	assert.True(t, resp.PatternMatched)
	assert.Contains(t, resp.Answer, "Found 1 asset in California.")
	assert.Contains(t, resp.Answer, "Sunset Commons")
}

func TestHandleQA_PortfolioQuestion(t *testing.T) {
	router := newTestRouter(t, true)

	w := postQA(router, `{"question": "What is the portfolio distribution by platform?"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.QAResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "portfolio_template_generated", resp.QueryType)
	assert.Contains(t, resp.Answer, "Portfolio Distribution:")
	assert.Contains(t, resp.Answer, "Real Estate")
}

func TestHandleQA_EconomicQuestion(t *testing.T) {
	router := newTestRouter(t, true)

	w := postQA(router, `{"question": "What is the current unemployment rate in California?"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.QAResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "economic_template_generated", resp.QueryType)
	assert.Contains(t, resp.Answer, "California Unemployment Rate")
}

func TestHandleQA_MissingBody(t *testing.T) {
	router := newTestRouter(t, true)

	w := postQA(router, ``)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "question is required")
}

func TestHandleQA_MissingQuestionField(t *testing.T) {
	router := newTestRouter(t, true)

	w := postQA(router, `{"text": "hello"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "question is required")
}

func TestHandleQA_BlankQuestion(t *testing.T) {
	router := newTestRouter(t, true)

	w := postQA(router, `{"question": "   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "question must not be blank")
}

func TestHandleQA_StoreUnavailable(t *testing.T) {
	router := newTestRouter(t, false)

	w := postQA(router, `{"question": "Show me all assets in California"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Contains(t, response["error"], "unavailable")
}

func TestHandleQA_WorkflowStepsInResponse(t *testing.T) {
	router := newTestRouter(t, true)

	w := postQA(router, `{"question": "How many assets are on each platform?"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.QAResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.WorkflowSteps)
	assert.Equal(t, "classify_intent", resp.WorkflowSteps[0])
	assert.Equal(t, "format_response", resp.WorkflowSteps[len(resp.WorkflowSteps)-1])
}

// =============================================================================
// HealthCheck Tests
// =============================================================================

func TestHealthCheck_ReturnsOK(t *testing.T) {
	router := gin.New()
	router.GET("/health", HealthCheck(nil))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]string
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, "ok", response["status"])
}

func TestHealthCheck_ReportsChainStoreStatus(t *testing.T) {
	okPing := func(context.Context) error { return nil }
	badPing := func(context.Context) error { return errors.New("closed") }

	router := gin.New()
	router.GET("/health/ok", HealthCheck(okPing))
	router.GET("/health/bad", HealthCheck(badPing))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health/ok", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"chain_store":"ok"`)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/health/bad", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"chain_store":"unreachable"`)
	assert.Contains(t, w.Body.String(), `"status":"degraded"`)
}

func TestHealthCheck_JSONContentType(t *testing.T) {
	router := gin.New()
	router.GET("/health", HealthCheck(nil))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)

	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
}
