package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantiq/ai-router/internal/complexity"
	"github.com/verdantiq/ai-router/internal/config"
	"github.com/verdantiq/ai-router/internal/cost"
	"github.com/verdantiq/ai-router/internal/health"
	"github.com/verdantiq/ai-router/internal/providers"
	"github.com/verdantiq/ai-router/internal/routing"
	"github.com/verdantiq/ai-router/internal/scoring"
	"github.com/verdantiq/ai-router/internal/types"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestEngine(t *testing.T) *routing.Engine {
	t.Helper()

	logger := testLogger()

	capabilities := []types.ProviderCapability{
		{
			ProviderID:      "premier",
			CostPer1KTokens: 0.005,
			TokensPerSecond: 60,
			QualityScore:    0.98,
			ComplexityRange: types.ComplexityRange{Min: 20, Max: 100},
			Specializations: []string{"compliance"},
		},
		{
			ProviderID:      "econo",
			CostPer1KTokens: 0.0002,
			TokensPerSecond: 40,
			QualityScore:    0.85,
			ComplexityRange: types.ComplexityRange{Min: 0, Max: 70},
		},
	}

	monitor := health.NewMonitor(health.Config{}, nil, logger)
	monitor.RegisterProvider(providers.NewStaticProber("premier", 0))
	monitor.RegisterProvider(providers.NewStaticProber("econo", 0))

	analyzer := complexity.NewAnalyzer(complexity.Increments{}, complexity.Keywords{})
	scorer, err := scoring.NewScorer(scoring.Weights{})
	require.NoError(t, err)
	optimizer := cost.NewOptimizer(nil, logger)
	ruleSet, err := routing.NewRuleSet(nil)
	require.NoError(t, err)

	engine, err := routing.NewEngine(routing.EngineConfig{}, analyzer, scorer, monitor, optimizer, ruleSet, capabilities, nil, logger)
	require.NoError(t, err)
	return engine
}

func newTestServer(t *testing.T, auth config.AuthConfig) *Server {
	t.Helper()

	cfg := &config.ServerConfig{
		Port:           "8080",
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   5 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Auth:           auth,
	}

	srv, err := NewServer(cfg, newTestEngine(t), testLogger())
	require.NoError(t, err)
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestRouteEndpoint(t *testing.T) {
	srv := newTestServer(t, config.AuthConfig{})

	rec := doJSON(t, srv, "POST", "/v1/route", map[string]interface{}{
		"query":     "what is the filing deadline",
		"tenant_id": "acme",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var decision routing.RoutingDecision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decision))
	assert.NotEmpty(t, decision.ID)
	assert.NotEmpty(t, decision.PrimaryProvider)
	assert.NotEmpty(t, decision.Reasoning)
	assert.False(t, decision.BestEffort)
}

func TestRouteEndpointRejectsInvalidBody(t *testing.T) {
	srv := newTestServer(t, config.AuthConfig{})

	// Missing required tenant_id fails schema validation before the handler
	rec := doJSON(t, srv, "POST", "/v1/route", map[string]interface{}{
		"query": "hello",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Bad priority enum
	rec = doJSON(t, srv, "POST", "/v1/route", map[string]interface{}{
		"query":     "hello",
		"tenant_id": "acme",
		"priority":  "urgent",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Malformed JSON
	req := httptest.NewRequest("POST", "/v1/route", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	rec2 := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusBadRequest, rec2.Code)
}

func TestUsageEndpoint(t *testing.T) {
	srv := newTestServer(t, config.AuthConfig{})

	rec := doJSON(t, srv, "POST", "/v1/usage", map[string]interface{}{
		"provider_id":      "premier",
		"tenant_id":        "acme",
		"success":          true,
		"response_time_ms": 150,
		"tokens_used":      2000,
	})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, srv, "GET", "/v1/health/premier", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats types.ProviderHealthStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.TotalRequests)
	assert.Equal(t, float64(150), stats.ResponseTime)
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, config.AuthConfig{})

	rec := doJSON(t, srv, "GET", "/v1/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status types.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Len(t, status.Providers, 2)
	assert.True(t, status.Summary.AllHealthy)

	rec = doJSON(t, srv, "GET", "/v1/health/econo", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, "GET", "/v1/health/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestForceCheckEndpoint(t *testing.T) {
	srv := newTestServer(t, config.AuthConfig{})

	rec := doJSON(t, srv, "POST", "/v1/health/premier/check", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result types.HealthCheckResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "premier", result.ProviderID)
	assert.True(t, result.Success)

	rec = doJSON(t, srv, "POST", "/v1/health/ghost/check", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResetStatsEndpoint(t *testing.T) {
	srv := newTestServer(t, config.AuthConfig{})

	doJSON(t, srv, "POST", "/v1/usage", map[string]interface{}{
		"provider_id": "premier",
		"tenant_id":   "acme",
		"success":     false,
	})

	rec := doJSON(t, srv, "DELETE", "/v1/providers/premier/stats", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, srv, "GET", "/v1/health/premier", nil)
	var stats types.ProviderHealthStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(0), stats.TotalRequests)

	rec = doJSON(t, srv, "DELETE", "/v1/providers/ghost/stats", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProvidersEndpoint(t *testing.T) {
	srv := newTestServer(t, config.AuthConfig{})

	rec := doJSON(t, srv, "GET", "/v1/providers", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Providers map[string]types.ProviderCapability `json:"providers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Len(t, payload.Providers, 2)
	assert.Equal(t, 0.98, payload.Providers["premier"].QualityScore)
}

func TestDecisionsEndpoints(t *testing.T) {
	srv := newTestServer(t, config.AuthConfig{})

	for i := 0; i < 3; i++ {
		doJSON(t, srv, "POST", "/v1/route", map[string]interface{}{
			"query":     "what is the filing deadline",
			"tenant_id": "acme",
		})
	}

	rec := doJSON(t, srv, "GET", "/v1/decisions?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Decisions []routing.RoutingDecision `json:"decisions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Len(t, payload.Decisions, 2)

	rec = doJSON(t, srv, "GET", "/v1/decisions?limit=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, "GET", "/v1/decisions/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats routing.HistoryStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.Total)
}

func TestLivenessAndSpecEndpoints(t *testing.T) {
	srv := newTestServer(t, config.AuthConfig{})

	rec := doJSON(t, srv, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, "GET", "/openapi.yaml", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "openapi: 3.0.3")

	rec = doJSON(t, srv, "GET", "/openapi.json", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var doc map[string]interface{}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
}

func signTestToken(t *testing.T, secret string) string {
	t.Helper()

	claims := RouterClaims{
		TenantID: "acme",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "test-user",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestAuthRejectsMissingOrBadTokens(t *testing.T) {
	srv := newTestServer(t, config.AuthConfig{Enabled: true, JWTSecret: "test-secret"})

	rec := doJSON(t, srv, "GET", "/v1/health", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest("GET", "/v1/health", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec2 := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusUnauthorized, rec2.Code)

	// Token signed with the wrong secret
	req = httptest.NewRequest("GET", "/v1/health", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, "other-secret"))
	rec3 := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec3, req)
	assert.Equal(t, http.StatusUnauthorized, rec3.Code)

	// Liveness stays open for probes
	rec4 := doJSON(t, srv, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, rec4.Code)
}

func TestAuthAcceptsValidToken(t *testing.T) {
	srv := newTestServer(t, config.AuthConfig{Enabled: true, JWTSecret: "test-secret"})

	req := httptest.NewRequest("GET", "/v1/health", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, "test-secret"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, config.AuthConfig{})

	req := httptest.NewRequest("OPTIONS", "/v1/route", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
