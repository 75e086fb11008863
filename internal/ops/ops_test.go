package ops

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthAndMetrics(t *testing.T) {
	extra := prometheus.NewCounter(prometheus.CounterOpts{Name: "expensebot_test_total", Help: "test"})
	extra.Add(3)

	s, err := New(Options{Collectors: []prometheus.Collector{extra}})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body healthBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "expensebot_test_total 3")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestDuplicateCollector(t *testing.T) {
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "dup_total", Help: "dup"})
	_, err := New(Options{Collectors: []prometheus.Collector{c, c}})
	assert.Error(t, err)
}

func TestBadSchedule(t *testing.T) {
	_, err := New(Options{KeepaliveURL: "http://localhost", KeepaliveSchedule: "every minute"})
	assert.Error(t, err)
}

func TestKeepalive(t *testing.T) {
	var hits atomic.Int32
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
	}))
	defer target.Close()

	s, err := New(Options{KeepaliveURL: target.URL, KeepaliveSchedule: "* * * * * *"})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))

	assert.Eventually(t, func() bool { return hits.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	require.NoError(t, s.Shutdown(context.Background()))
	assert.GreaterOrEqual(t, testutil.ToFloat64(s.pings.WithLabelValues("ok")), 1.0)
}

func TestKeepaliveFailureCounted(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer target.Close()

	s, err := New(Options{KeepaliveURL: target.URL})
	require.NoError(t, err)
	s.keepalive()
	assert.Equal(t, 1.0, testutil.ToFloat64(s.pings.WithLabelValues("error")))
}

func TestListener(t *testing.T) {
	s, err := New(Options{Listen: "127.0.0.1:0"})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	defer s.Shutdown(context.Background())

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(b), `"status":"ok"`)
}
