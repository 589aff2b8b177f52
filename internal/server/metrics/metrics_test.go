package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jorenvermeersch/budget-api/internal/server/audit"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRequest(t *testing.T) {
	m := New()

	m.ObserveRequest("/api/sessions", http.MethodPost, 401, 120*time.Millisecond)
	m.ObserveRequest("/api/sessions", http.MethodPost, 401, 150*time.Millisecond)
	m.ObserveRequest("/api/sessions", http.MethodPost, 200, 110*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("/api/sessions", "POST", "401")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("/api/sessions", "POST", "200")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.requestDuration))
}

func TestWriteCountsSecurityEvents(t *testing.T) {
	m := New()
	var sink audit.Sink = m

	require.NoError(t, sink.Write(context.Background(), audit.Event{Code: audit.LoginBadPassword}))
	require.NoError(t, sink.Write(context.Background(), audit.Event{Code: audit.LoginBadPassword}))
	require.NoError(t, sink.Write(context.Background(), audit.Event{Code: audit.LoginLockEngaged}))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.securityEvents.WithLabelValues(string(audit.LoginBadPassword))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.securityEvents.WithLabelValues(string(audit.LoginLockEngaged))))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveRequest("/health", http.MethodGet, 200, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `budget_api_http_requests_total{method="GET",route="/health",status="200"} 1`))
	assert.Contains(t, string(body), "go_goroutines")
}
