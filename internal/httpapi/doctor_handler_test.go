package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sigma-events-tracker/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStatusProvider struct {
	status service.CycleStatus
}

func (f *fakeStatusProvider) Status() service.CycleStatus {
	return f.status
}

func setupRouter(provider CycleStatusProvider) *Router {
	logger := zap.NewNop()
	router := NewRouter(logger)
	router.RegisterDoctorRoutes(NewDoctorHandler(nil, nil, provider, logger))
	return router
}

func TestHealthCheck_HealthyCycle(t *testing.T) {
	provider := &fakeStatusProvider{status: service.CycleStatus{
		LastCycleAt: time.Now().UTC(),
		Success:     true,
		EventCount:  120,
		KeyCount:    7,
		Fired:       1,
	}}
	router := setupRouter(provider)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthCheckResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "healthy", resp.Services["tracker"])
	assert.Equal(t, 120, resp.LastCycle.EventCount)
}

func TestHealthCheck_FailedCycleReportsDegraded(t *testing.T) {
	provider := &fakeStatusProvider{status: service.CycleStatus{
		LastCycleAt: time.Now().UTC(),
		Success:     false,
		Error:       "failed to fetch events",
	}}
	router := setupRouter(provider)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthCheckResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Contains(t, resp.Services["tracker"], "failed to fetch events")
}

func TestHealthCheck_NoCycleYet(t *testing.T) {
	provider := &fakeStatusProvider{}
	router := setupRouter(provider)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthCheckResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
}

func TestRouter_NotFoundJSON(t *testing.T) {
	router := setupRouter(&fakeStatusProvider{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/no/such/route", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Route not found.", body["message"])
	assert.Equal(t, "Please check the URL and HTTP method to ensure they are correct.", body["suggestion"])
}
