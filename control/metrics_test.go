package control_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/momentics/hioload-sql/control"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsNilReceiverIsNoop(t *testing.T) {
	var m *control.Metrics
	m.ConnectionAccepted()
	m.ConnectionClosed(control.ReasonExit)
	m.Request(control.OutcomeOK, time.Millisecond)
	m.BytesReceived(10)
	m.BytesSent(10)
	m.PollTimeout()
}

func TestMetricsCountConnectionLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := control.NewMetrics(reg)

	m.ConnectionAccepted()
	m.ConnectionAccepted()
	m.ConnectionClosed(control.ReasonPeerRead)
	m.Request(control.OutcomeOK, 2*time.Millisecond)
	m.Request(control.OutcomeExit, 0)
	m.BytesReceived(512)
	m.BytesSent(100)
	m.BytesSent(-1)
	m.PollTimeout()

	const expected = `
# HELP hioload_sql_connections_active Client connections currently open.
# TYPE hioload_sql_connections_active gauge
hioload_sql_connections_active 1
# HELP hioload_sql_connections_closed_total Client connections closed, by reason.
# TYPE hioload_sql_connections_closed_total counter
hioload_sql_connections_closed_total{reason="peer_closed_read"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"hioload_sql_connections_active", "hioload_sql_connections_closed_total"); err != nil {
		t.Fatal(err)
	}
	const bytes = `
# HELP hioload_sql_bytes_sent_total Bytes written to client sockets.
# TYPE hioload_sql_bytes_sent_total counter
hioload_sql_bytes_sent_total 100
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(bytes), "hioload_sql_bytes_sent_total"); err != nil {
		t.Fatal(err)
	}
	if n := testutil.CollectAndCount(reg, "hioload_sql_requests_total"); n != 2 {
		t.Errorf("expected 2 outcome series, got %d", n)
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	control.NewMetrics(reg).PollTimeout()
	srv := httptest.NewServer(control.NewHandler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "hioload_sql_poll_timeouts_total 1") {
		t.Fatalf("metrics output missing poll timeouts:\n%s", body)
	}

	health, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Fatalf("healthz status %d", health.StatusCode)
	}
}
