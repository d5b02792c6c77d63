package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WessleyAI/vaarweggraph/engine/domain"
	"github.com/WessleyAI/vaarweggraph/pkg/fn"
	"github.com/WessleyAI/vaarweggraph/pkg/resilience"
)

var fastRetry = fn.RetryOpts{MaxAttempts: 5, InitialWait: time.Millisecond, MaxWait: 5 * time.Millisecond}

func newTestClient(srv *httptest.Server) *Client {
	return New(Options{
		BaseURL:    srv.URL,
		PageSize:   2,
		Retry:      fastRetry,
		HTTPClient: srv.Client(),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

// service serves total records of every object type, two per page.
func service(t *testing.T, total int, hook func(w http.ResponseWriter, r *http.Request) bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/geogeneration", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"GeoGeneration": 42})
	})
	mux.HandleFunc("/42/{type}", func(w http.ResponseWriter, r *http.Request) {
		if hook != nil && hook(w, r) {
			return
		}
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		count, _ := strconv.Atoi(r.URL.Query().Get("count"))
		var result []map[string]any
		for i := offset; i < offset+count && i < total; i++ {
			result = append(result, map[string]any{"Id": i + 1, "Type": r.PathValue("type")})
		}
		json.NewEncoder(w).Encode(map[string]any{"Result": result, "TotalCount": total})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestGeoGeneration(t *testing.T) {
	c := newTestClient(service(t, 0, nil))
	geo, err := c.GeoGeneration(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), geo)
}

func TestFetch_Pages(t *testing.T) {
	var requests atomic.Int32
	srv := service(t, 5, func(http.ResponseWriter, *http.Request) bool {
		requests.Add(1)
		return false
	})
	c := newTestClient(srv)

	recs, err := c.Fetch(context.Background(), 42, domain.ObjectBridge)
	require.NoError(t, err)
	require.Len(t, recs, 5)
	assert.Equal(t, int32(3), requests.Load())
	assert.Equal(t, float64(5), recs[4]["Id"])
	assert.Equal(t, "bridge", recs[0]["Type"])
}

func TestFetch_ExactPageBoundary(t *testing.T) {
	var requests atomic.Int32
	srv := service(t, 4, func(http.ResponseWriter, *http.Request) bool {
		requests.Add(1)
		return false
	})
	recs, err := newTestClient(srv).Fetch(context.Background(), 42, domain.ObjectLock)
	require.NoError(t, err)
	assert.Len(t, recs, 4)
	assert.Equal(t, int32(2), requests.Load(), "TotalCount <= offset+count stops paging")
}

func TestFetch_MaxPages(t *testing.T) {
	srv := service(t, 100, nil)
	c := New(Options{BaseURL: srv.URL, PageSize: 2, MaxPages: 3, HTTPClient: srv.Client(), Retry: fastRetry})
	recs, err := c.Fetch(context.Background(), 42, domain.ObjectRoute)
	require.NoError(t, err)
	assert.Len(t, recs, 6)
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := service(t, 1, func(w http.ResponseWriter, _ *http.Request) bool {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return true
		}
		return false
	})
	recs, err := newTestClient(srv).Fetch(context.Background(), 42, domain.ObjectISRS)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetch_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := service(t, 1, func(w http.ResponseWriter, _ *http.Request) bool {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		return true
	})
	_, err := newTestClient(srv).Fetch(context.Background(), 42, domain.ObjectISRS)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Status)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := service(t, 1, func(w http.ResponseWriter, _ *http.Request) bool {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		return true
	})
	_, err := newTestClient(srv).Fetch(context.Background(), 42, domain.ObjectFairway)
	require.Error(t, err)
	assert.Equal(t, int32(5), calls.Load())
}

func TestFetchAll_Complete(t *testing.T) {
	data, err := newTestClient(service(t, 3, nil)).FetchAll(context.Background(), []domain.ObjectType{domain.ObjectRoute, domain.ObjectBridge})
	require.NoError(t, err)
	assert.Len(t, data[domain.ObjectRoute], 3)
	assert.Len(t, data[domain.ObjectBridge], 3)
}

func TestFetchAll_ContinuesAfterFailure(t *testing.T) {
	srv := service(t, 3, func(w http.ResponseWriter, r *http.Request) bool {
		if r.PathValue("type") == "lock" {
			w.WriteHeader(http.StatusForbidden)
			return true
		}
		return false
	})
	data, err := newTestClient(srv).FetchAll(context.Background(), []domain.ObjectType{domain.ObjectLock, domain.ObjectRoute})
	var pe *PartialError
	require.ErrorAs(t, err, &pe)
	assert.Len(t, pe.Failed, 1)
	assert.Contains(t, pe.Failed, domain.ObjectLock)
	assert.Contains(t, err.Error(), "lock")
	assert.Empty(t, data[domain.ObjectLock])
	assert.Len(t, data[domain.ObjectRoute], 3)
}

func TestFetchAll_NoGeoGeneration(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	data, err := newTestClient(srv).FetchAll(context.Background(), domain.AllObjectTypes)
	var pe *PartialError
	require.ErrorAs(t, err, &pe)
	assert.Len(t, pe.Failed, len(domain.AllObjectTypes))
	assert.Zero(t, len(data))
}

func TestFetchAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := service(t, 3, func(http.ResponseWriter, *http.Request) bool {
		cancel()
		return false
	})
	_, err := newTestClient(srv).FetchAll(ctx, []domain.ObjectType{domain.ObjectRoute, domain.ObjectBridge})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryable(t *testing.T) {
	for _, tc := range []struct {
		err  error
		want bool
	}{
		{&StatusError{Status: 500}, true},
		{&StatusError{Status: 502}, true},
		{&StatusError{Status: 504}, true},
		{&StatusError{Status: 503}, false},
		{&StatusError{Status: 404}, false},
		{&decodeError{err: io.ErrUnexpectedEOF}, false},
		{fmt.Errorf("dial: %w", io.EOF), true},
		{context.Canceled, false},
	} {
		assert.Equal(t, tc.want, Retryable(tc.err), "%v", tc.err)
	}
}

func TestFetchAll_BreakerSkipsAfterOutage(t *testing.T) {
	var requests atomic.Int32
	srv := service(t, 1, func(w http.ResponseWriter, _ *http.Request) bool {
		requests.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		return true
	})
	c := New(Options{
		BaseURL:    srv.URL,
		Retry:      fn.RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond},
		HTTPClient: srv.Client(),
		Breaker:    resilience.NewBreaker(resilience.BreakerOpts{FailThreshold: 2, Cooldown: time.Hour, Trips: Retryable}),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	data, err := c.FetchAll(context.Background(), domain.AllObjectTypes)
	var pe *PartialError
	require.ErrorAs(t, err, &pe)
	assert.Len(t, pe.Failed, len(domain.AllObjectTypes))
	// Two types exhaust their retries, the rest are rejected without a request.
	assert.Equal(t, int32(4), requests.Load())
	for _, typ := range domain.AllObjectTypes {
		assert.Empty(t, data[typ])
	}
}
