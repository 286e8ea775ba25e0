package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/brojonat/mintwatch/service/metrics"
	"github.com/brojonat/mintwatch/service/stream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHealth(t *testing.T) {
	srv := New(":0", nil, func() string { return "open" }, nil, testLogger())

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "open", body["stream"])
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealth_ReconnectingIsStillHealthy(t *testing.T) {
	srv := New(":0", nil, func() string { return "connecting" }, nil, testLogger())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "connecting")
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	m.RecordReconnect()

	srv := New(":0", reg, nil, nil, testLogger())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "stream_reconnects_total 1")
}

func TestOptionalEndpointsDisabled(t *testing.T) {
	srv := New(":0", nil, nil, nil, testLogger())

	for _, path := range []string{"/metrics", "/api/v1/stream/buys"} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := New(":0", nil, nil, nil, testLogger())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("OPTIONS", "/api/v1/stream/buys", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

// readEvent reads one SSE event, skipping comment lines.
func readEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var name, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if name != "" {
				return name, data
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestStreamBuys(t *testing.T) {
	broadcaster := NewBroadcaster(4, testLogger())
	srv := New(":0", nil, nil, broadcaster, testLogger())

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", ts.URL+"/api/v1/stream/buys", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	name, _ := readEvent(t, reader)
	assert.Equal(t, "connected", name)
	require.Equal(t, 1, broadcaster.SubscriberCount())

	event := stream.BuyEvent{
		Account:       "acct",
		AccountOwner:  "owner",
		Amount:        "5.000000",
		RawAmount:     5_000_000,
		Decimals:      6,
		TransactionID: "tx1",
	}
	require.NoError(t, broadcaster.PublishEvents(ctx, []stream.BuyEvent{event}))

	name, data := readEvent(t, reader)
	assert.Equal(t, "buy", name)

	var got stream.BuyEvent
	require.NoError(t, json.Unmarshal([]byte(data), &got))
	assert.Equal(t, event, got)

	cancel()
	require.Eventually(t, func() bool { return broadcaster.SubscriberCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
