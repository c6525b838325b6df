package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func okPinger() Pinger { return pingerFunc(func(context.Context) error { return nil }) }

func failingPinger() Pinger {
	return pingerFunc(func(context.Context) error { return errors.New("connection refused") })
}

func serve(t *testing.T, s *Server, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestLive(t *testing.T) {
	s := NewServer(Config{ServiceName: "matchedge"})
	rec, body := serve(t, s, "/live")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "matchedge", body["service"])
}

func TestHealthIncludesEngineReport(t *testing.T) {
	s := NewServer(Config{
		ServiceName: "matchedge",
		Version:     "1.2.0",
		Reporter: func(ctx context.Context) (interface{}, bool) {
			return map[string]string{"EPL": "deployed"}, true
		},
	})

	rec, body := serve(t, s, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1.2.0", body["version"])
	assert.Equal(t, map[string]interface{}{"EPL": "deployed"}, body["engine"])
}

func TestHealthDegraded(t *testing.T) {
	s := NewServer(Config{
		Reporter: func(ctx context.Context) (interface{}, bool) { return nil, false },
	})

	rec, body := serve(t, s, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", body["status"])
}

func TestReady(t *testing.T) {
	tests := []struct {
		name   string
		ready  bool
		checks map[string]Pinger
		code   int
	}{
		{name: "not marked ready", ready: false, code: http.StatusServiceUnavailable},
		{name: "ready without deps", ready: true, code: http.StatusOK},
		{name: "healthy deps", ready: true, checks: map[string]Pinger{"database": okPinger(), "redis": okPinger()}, code: http.StatusOK},
		{name: "failing dep", ready: true, checks: map[string]Pinger{"database": okPinger(), "redis": failingPinger()}, code: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(Config{ServiceName: "matchedge", Checks: tt.checks})
			s.SetReady(tt.ready)

			rec, body := serve(t, s, "/ready")
			assert.Equal(t, tt.code, rec.Code)
			if tt.checks["redis"] != nil && tt.code != http.StatusOK {
				checks := body["checks"].(map[string]interface{})
				assert.Contains(t, checks["redis"], "connection refused")
			}
		})
	}
}

func TestGRPCRefresh(t *testing.T) {
	log, _ := test.NewNullLogger()
	healthy := false
	s := NewServer(Config{
		ServiceName: "matchedge",
		Reporter: func(ctx context.Context) (interface{}, bool) {
			return nil, healthy
		},
	})
	g := NewGRPCServer(s, 0, log)
	ctx := context.Background()

	status, err := g.Check(ctx, "matchedge")
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status)

	s.SetReady(true)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, g.Refresh(ctx))

	healthy = true
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, g.Refresh(ctx))
	status, err = g.Check(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status)

	_, err = g.Check(ctx, "unknown")
	assert.Error(t, err)
}
