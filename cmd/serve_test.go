package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/otherjamesbrown/recents/pkg/db"
	"github.com/otherjamesbrown/recents/pkg/logging"
	"github.com/otherjamesbrown/recents/pkg/recents"
)

func newTestServer(t *testing.T, env *testEnv) *Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	rt, err := OpenRuntime(context.Background(), env.cfg, RuntimeOptions{
		Logger:     logging.NewNopLogger(),
		Registerer: reg,
		Gate:       recents.StaticGate{Read: true},
		Secrets:    env.secrets,
	})
	require.NoError(t, err)
	t.Cleanup(func() { rt.Close() })
	return NewServer(env.cfg, rt, reg)
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestServer_Recents(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "0905111111", "0905222222", "0905222222", "0905333333")
	s := newTestServer(t, env)

	rec := get(t, s, "/v1/recents")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var calls []recents.EnrichedCall
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &calls))
	assert.Len(t, calls, 4)

	rec = get(t, s, "/v1/recents?group=true")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &calls))
	assert.Equal(t, []string{"0905333333", "0905222222", "0905111111"}, numbersOf(calls))
	assert.Len(t, calls[1].AllIDs(), 2)

	rec = get(t, s, "/v1/recents?max=1&pages=2")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &calls))
	assert.Equal(t, []string{"0905333333", "0905222222"}, numbersOf(calls))
}

func TestServer_RecentsKeepsRequestID(t *testing.T) {
	s := newTestServer(t, newTestEnv(t))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/recents", nil)
	req.Header.Set("X-Request-ID", "req-42")
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestServer_RecentsBadQuery(t *testing.T) {
	s := newTestServer(t, newTestEnv(t))

	for _, target := range []string{
		"/v1/recents?group=maybe",
		"/v1/recents?max=-1",
		"/v1/recents?max=ten",
		"/v1/recents?pages=0",
		"/v1/recents?all=sometimes",
	} {
		rec := get(t, s, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Contains(t, rec.Body.String(), "invalid", target)
	}
}

func TestServer_RecentsMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, newTestEnv(t))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/recents", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_Healthz(t *testing.T) {
	s := newTestServer(t, newTestEnv(t))

	rec := get(t, s, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["healthy"])
}

func TestServer_VersionAndMetrics(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "0905111111")
	s := newTestServer(t, env)

	rec := get(t, s, "/version")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"service_name":"recents"`)

	get(t, s, "/v1/recents")

	rec = get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "recents_")
}

func TestServer_HealthStatusFollowsStore(t *testing.T) {
	s := newTestServer(t, newTestEnv(t))
	ctx := context.Background()

	check := func() healthpb.HealthCheckResponse_ServingStatus {
		resp, err := s.health.Check(ctx, &healthpb.HealthCheckRequest{Service: healthService})
		require.NoError(t, err)
		return resp.Status
	}

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(), "not serving before the first check")

	s.reportHealth(&db.HealthStatus{Healthy: true})
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check())

	s.reportHealth(&db.HealthStatus{Error: errors.New("database is locked")})
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check())
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Serve.HTTPAddr = "127.0.0.1:0"
	env.cfg.Serve.GRPCAddr = "127.0.0.1:0"
	env.cfg.Serve.HealthInterval = 10 * time.Millisecond
	s := newTestServer(t, env)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	assert.Eventually(t, func() bool {
		resp, err := s.health.Check(context.Background(), &healthpb.HealthCheckRequest{})
		return err == nil && resp.Status == healthpb.HealthCheckResponse_SERVING
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestServeCommand_Flags(t *testing.T) {
	cmd := NewServeCommand(newTestEnv(t).deps)

	assert.Equal(t, "serve", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("http-addr"))
	assert.NotNil(t, cmd.Flags().Lookup("grpc-addr"))
}
