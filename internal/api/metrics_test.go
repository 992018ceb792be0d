package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestMetricsRegistered(t *testing.T) {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	found := make(map[string]bool)
	for _, fam := range families {
		found[fam.GetName()] = true
	}
	for _, name := range []string{
		"cadence_http_requests_total",
		"cadence_http_stream_duration_seconds",
		"cadence_http_active_streams",
	} {
		if !found[name] {
			t.Errorf("metric %q not registered", name)
		}
	}
}

func streamSamples(t *testing.T) uint64 {
	t.Helper()
	m := &dto.Metric{}
	if err := httpStreamDuration.Write(m); err != nil {
		t.Fatalf("write histogram: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

func TestStreamRequestsObservedSeparately(t *testing.T) {
	srv := newTestServer(t)
	run := runSync(t, srv, featureStream)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	before := streamSamples(t)

	resp, err := http.Get(ts.URL + "/v1/runs/" + run.ID + "/stream")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if _, err := io.ReadAll(resp.Body); err != nil {
		t.Fatalf("read stream: %v", err)
	}
	resp.Body.Close()

	if got := streamSamples(t); got != before+1 {
		t.Errorf("stream duration samples = %d, want %d", got, before+1)
	}

	m := &dto.Metric{}
	if err := httpActiveStreams.Write(m); err != nil {
		t.Fatalf("write gauge: %v", err)
	}
	if got := m.GetGauge().GetValue(); got != 0 {
		t.Errorf("active streams = %v, want 0 after the stream closed", got)
	}

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() != "cadence_http_request_duration_seconds" {
			continue
		}
		for _, metric := range fam.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "route" && strings.HasSuffix(label.GetValue(), "/stream") {
					t.Errorf("request duration has stream route %q", label.GetValue())
				}
			}
		}
	}
}

func TestRoutePatternLabels(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/runs/does-not-exist")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()

	m := &dto.Metric{}
	if err := httpRequestsTotal.WithLabelValues(http.MethodGet, "/v1/runs/{id}", "404").Write(m); err != nil {
		t.Fatalf("write counter: %v", err)
	}
	if m.GetCounter().GetValue() < 1 {
		t.Error("404 on a run id was not counted under the route pattern")
	}
}
