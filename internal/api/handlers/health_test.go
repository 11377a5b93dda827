package handlers_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prism-dns/prism/internal/api/handlers"
	"github.com/prism-dns/prism/internal/api/models"
	"github.com/prism-dns/prism/internal/config"
	"github.com/prism-dns/prism/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHealthChecker struct {
	err error
}

func (f fakeHealthChecker) Health() error { return f.err }

func TestHealth(t *testing.T) {
	cfg := &config.Config{}
	h := handlers.New(cfg, nil, nil, nil)
	r := setupTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.StatusResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
}

func TestReady_NoDatabaseConfigured(t *testing.T) {
	cfg := &config.Config{}
	h := handlers.New(cfg, nil, nil, nil)
	r := setupTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReady_DatabaseHealthy(t *testing.T) {
	cfg := &config.Config{}
	h := handlers.New(cfg, nil, nil, fakeHealthChecker{})
	r := setupTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReady_DatabaseUnreachable(t *testing.T) {
	cfg := &config.Config{}
	h := handlers.New(cfg, nil, nil, fakeHealthChecker{err: errors.New("db down")})
	r := setupTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp models.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Error)
}

func TestStats_EmptyRegistry(t *testing.T) {
	cfg := &config.Config{}
	h := handlers.New(cfg, nil, nil, nil)
	r := setupTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.ServerStatsResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Uptime)
	assert.Greater(t, resp.GoRoutines, 0)
	assert.Equal(t, 0, resp.Registry.TotalHosts)
}

func TestStats_AggregatesRegistryCounts(t *testing.T) {
	reg, err := registry.New(nil, nil)
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	_, err = reg.UpsertOnRegistration("stale.example", "10.0.0.2", "owner-1", past)
	require.NoError(t, err)
	reg.MarkOfflineIfStale(time.Now())

	_, err = reg.UpsertOnRegistration("online.example", "10.0.0.1", "owner-1", time.Now())
	require.NoError(t, err)
	reg.RecordDNSSync("online.example", registry.DNSSyncSynced, "example", "rec-1")

	cfg := &config.Config{}
	h := handlers.New(cfg, nil, reg, nil)
	r := setupTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.ServerStatsResponse
	err = json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Registry.TotalHosts)
	assert.Equal(t, 1, resp.Registry.OnlineHosts)
	assert.Equal(t, 1, resp.Registry.OfflineHosts)
	assert.Equal(t, 1, resp.Registry.DNSSynced)
	assert.Equal(t, 1, resp.Registry.DNSPending)
}
