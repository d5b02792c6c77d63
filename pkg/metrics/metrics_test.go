package metrics

import (
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCounters(t *testing.T) {
	r := New()
	r.RecordFetched("bridge", 120)
	r.RecordFetched("bridge", 30)
	r.RecordNodes("Bridge", 150)
	r.RecordEdges("NEXT", 7)
	r.RecordRequest("200")

	assert.Equal(t, 150.0, testutil.ToFloat64(r.RecordsFetched.WithLabelValues("bridge")))
	assert.Equal(t, 150.0, testutil.ToFloat64(r.NodesCreated.WithLabelValues("Bridge")))
	assert.Equal(t, 7.0, testutil.ToFloat64(r.EdgesDerived.WithLabelValues("NEXT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.FetchRequests.WithLabelValues("200")))
}

func TestRecordRun(t *testing.T) {
	r := New()
	r.RecordRun(2*time.Second, nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.LastRunSuccess))

	r.RecordRun(time.Second, errors.New("neo4j down"))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.LastRunSuccess))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.RunsTotal.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.LastRunDuration))
}

func TestNilRegistry(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.RecordFetched("route", 1)
		r.RecordRequest("500")
		r.RecordNodes("Route", 1)
		r.RecordEdges("STREAMS", 1)
		r.ObserveStage("routes", time.Millisecond, nil)
		r.RecordRun(time.Millisecond, nil)
	})
}

func TestHandler(t *testing.T) {
	r := New()
	r.ObserveStage("chainBridges", 150*time.Millisecond, nil)
	r.RecordNodes("Lock", 3)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Contains(t, string(body), `vaarweg_nodes_created_total{label="Lock"} 3`)
	assert.Contains(t, string(body), `vaarweg_stage_duration_seconds_count{stage="chainBridges",status="ok"} 1`)
}

func TestMux(t *testing.T) {
	r := New()
	r.RecordFetched("bridge", 12)
	srv := httptest.NewServer(r.Mux(slog.New(slog.NewTextHandler(io.Discard, nil))))
	defer srv.Close()

	for path, want := range map[string]string{
		"/metrics": `vaarweg_records_fetched_total{object_type="bridge"} 12`,
		"/":        "ok",
	} {
		resp, err := srv.Client().Get(srv.URL + path)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		assert.Contains(t, string(body), want, "GET %s", path)
	}
}
