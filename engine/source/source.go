// Package source fetches waterway objects from the vaarweginformatie.nl
// data service, page by page, for one geo generation.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/WessleyAI/vaarweggraph/engine/domain"
	"github.com/WessleyAI/vaarweggraph/pkg/fn"
	"github.com/WessleyAI/vaarweggraph/pkg/metrics"
	"github.com/WessleyAI/vaarweggraph/pkg/resilience"
)

// DefaultBaseURL is the data service root.
const DefaultBaseURL = "https://www.vaarweginformatie.nl/wfswms/dataservice/1.3"

const userAgent = "vaarweggraph/1.0 (waterway graph loader)"

// Options configures a Client. Zero values select the defaults.
type Options struct {
	BaseURL  string
	PageSize int
	MaxPages int
	// Timeout applies to each request.
	Timeout time.Duration
	Retry   fn.RetryOpts
	// RequestsPerSecond throttles requests; zero disables throttling.
	RequestsPerSecond float64
	HTTPClient        *http.Client
	// Breaker stops calling a failing service; nil disables it.
	Breaker *resilience.Breaker
	Logger  *slog.Logger
	Metrics *metrics.Registry
}

// Client reads object collections from the data service.
type Client struct {
	base    string
	opts    Options
	client  *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
}

// StatusError is a non-200 response.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string { return fmt.Sprintf("http %d from %s", e.Status, e.URL) }

// New creates a Client.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 1000
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = fn.DefaultRetry
	}
	if opts.Retry.Retryable == nil {
		opts.Retry.Retryable = Retryable
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return &Client{
		base:    strings.TrimRight(opts.BaseURL, "/"),
		opts:    opts,
		client:  client,
		limiter: limiter,
		log:     opts.Logger.With("source", "vaarweginformatie"),
	}
}

// Retryable reports whether a failed request is worth repeating: gateway
// and server errors 500, 502 and 504, and transport failures.
func Retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		switch se.Status {
		case http.StatusInternalServerError, http.StatusBadGateway, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	var de *decodeError
	return !errors.As(err, &de)
}

type decodeError struct{ err error }

func (e *decodeError) Error() string { return "decode: " + e.err.Error() }

func (e *decodeError) Unwrap() error { return e.err }

type geoGenerationResponse struct {
	GeoGeneration int64 `json:"GeoGeneration"`
}

type pageResponse struct {
	Result     []domain.Record `json:"Result"`
	TotalCount int             `json:"TotalCount"`
}

// GeoGeneration returns the current geo generation.
func (c *Client) GeoGeneration(ctx context.Context) (int64, error) {
	var resp geoGenerationResponse
	if err := c.get(ctx, c.base+"/geogeneration", &resp); err != nil {
		return 0, fmt.Errorf("geogeneration: %w", err)
	}
	return resp.GeoGeneration, nil
}

// Fetch reads every page of one object type. Records gathered before a
// failure are returned together with the error.
func (c *Client) Fetch(ctx context.Context, geo int64, t domain.ObjectType) ([]domain.Record, error) {
	var out []domain.Record
	offset, count := 0, c.opts.PageSize
	for page := 0; page < c.opts.MaxPages; page++ {
		u := fmt.Sprintf("%s/%d/%s?%s", c.base, geo, url.PathEscape(string(t)), url.Values{
			"offset": {strconv.Itoa(offset)},
			"count":  {strconv.Itoa(count)},
		}.Encode())
		var resp pageResponse
		if err := c.get(ctx, u, &resp); err != nil {
			return out, fmt.Errorf("fetch %s at offset %d: %w", t, offset, err)
		}
		out = append(out, resp.Result...)
		if resp.TotalCount <= offset+count {
			break
		}
		offset += count
	}
	c.opts.Metrics.RecordFetched(string(t), len(out))
	c.log.Info("fetched", "object_type", t, "records", len(out))
	return out, nil
}

// PartialError lists the object types that could not be read in full.
type PartialError struct {
	Failed map[domain.ObjectType]error
}

func (e *PartialError) Error() string {
	types := slices.Sorted(maps.Keys(e.Failed))
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return fmt.Sprintf("partial fetch: %d object types failed: %s", len(types), strings.Join(names, ", "))
}

// FetchAll reads every requested object type. A type that fails is logged
// and kept with whatever was read; the dataset is then returned together
// with a *PartialError. Cancellation of ctx is returned as is.
func (c *Client) FetchAll(ctx context.Context, types []domain.ObjectType) (domain.Dataset, error) {
	data := make(domain.Dataset, len(types))
	failed := make(map[domain.ObjectType]error)
	geo, err := c.GeoGeneration(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return data, ctx.Err()
		}
		c.log.Error("fetch failed", "error", err)
		for _, t := range types {
			failed[t] = err
		}
		return data, &PartialError{Failed: failed}
	}
	c.log.Info("geo generation", "geo_generation", geo)

	for _, t := range types {
		recs, err := c.Fetch(ctx, geo, t)
		data[t] = recs
		if err != nil {
			if ctx.Err() != nil {
				return data, ctx.Err()
			}
			c.log.Error("fetch failed", "object_type", t, "records", len(recs), "error", err)
			failed[t] = err
		}
	}
	if len(failed) > 0 {
		return data, &PartialError{Failed: failed}
	}
	return data, nil
}

func (c *Client) get(ctx context.Context, u string, into any) error {
	res := resilience.Do(ctx, c.opts.Breaker, func(ctx context.Context) fn.Result[struct{}] {
		return fn.Retry(ctx, c.opts.Retry, func(ctx context.Context) fn.Result[struct{}] {
			if err := c.limiter.Wait(ctx); err != nil {
				return fn.Err[struct{}](err)
			}
			return fn.FromPair(struct{}{}, c.do(ctx, u, into))
		})
	})
	_, err := res.Unwrap()
	return err
}

func (c *Client) do(ctx context.Context, u string, into any) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.opts.Metrics.RecordRequest("error")
		return err
	}
	defer resp.Body.Close()
	c.opts.Metrics.RecordRequest(strconv.Itoa(resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return &StatusError{URL: u, Status: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return &decodeError{err: err}
	}
	return nil
}
