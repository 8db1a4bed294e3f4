// Package gsa provides a client for the GSA per diem rates API
// (https://open.gsa.gov/api/perdiem/).
package gsa

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/perdiem/internal/resilience"
)

const (
	// DefaultBaseURL is the production per diem API root.
	DefaultBaseURL   = "https://api.gsa.gov/travel/perdiem/v2"
	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "PerDiemCalculator/1.0"
	serviceName      = "gsa"
	maxBodyBytes     = 5 << 20
	snippetBytes     = 200
)

var (
	// ErrUpstreamUnavailable is returned for transport failures, timeouts,
	// an open circuit breaker and non-2xx responses.
	ErrUpstreamUnavailable = resilience.ErrUpstreamUnavailable

	// ErrMalformedResponse is returned when the body is markup or otherwise
	// not JSON, whatever the status code.
	ErrMalformedResponse = resilience.ErrMalformedResponse

	// ErrMissingAPIKey is returned by NewClient when no API key is supplied.
	ErrMissingAPIKey = eris.New("gsa: api key is required")
)

// ZipVariant selects one of the two zip-code URL shapes the API has exposed.
type ZipVariant int

const (
	// ZipPrimary is /rates/zip/{zip}/year/{year}.
	ZipPrimary ZipVariant = iota
	// ZipAlternate is /rates/conus/zip/{zip}/year/{year}.
	ZipAlternate
)

func (v ZipVariant) String() string {
	switch v {
	case ZipPrimary:
		return "primary"
	case ZipAlternate:
		return "conus"
	default:
		return "unknown"
	}
}

// Client fetches raw rate records. A valid JSON body is always returned
// as-is, even when it carries no usable rate; judging the payload is the
// caller's job.
type Client interface {
	// FetchByZip fetches the rates for a zip code and fiscal year.
	FetchByZip(ctx context.Context, zip string, year int, variant ZipVariant) (gjson.Result, error)
	// FetchByCity fetches the rates for a city, state and fiscal year.
	FetchByCity(ctx context.Context, city, state string, year int) (gjson.Result, error)
}

// Option configures the GSA client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the per-call deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithRateLimit paces outbound calls to rps requests per second. A
// non-positive value disables pacing.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	}
}

// WithCircuitBreaker fails calls fast while the API keeps failing.
func WithCircuitBreaker(cb *resilience.Breaker) Option {
	return func(c *httpClient) {
		c.breaker = cb
	}
}

type httpClient struct {
	apiKey    string
	baseURL   string
	userAgent string
	timeout   time.Duration
	http      *http.Client
	limiter   *rate.Limiter
	breaker   *resilience.Breaker
}

// NewClient creates a GSA client. The API key is required.
func NewClient(apiKey string, opts ...Option) (Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	c := &httpClient{
		apiKey:    apiKey,
		baseURL:   DefaultBaseURL,
		userAgent: defaultUserAgent,
		timeout:   defaultTimeout,
		limiter:   rate.NewLimiter(rate.Inf, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{
			Timeout: c.timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return c, nil
}

// ZipPath returns the request path for a zip lookup.
func ZipPath(zip string, year int, variant ZipVariant) string {
	if variant == ZipAlternate {
		return fmt.Sprintf("/rates/conus/zip/%s/year/%d", url.PathEscape(zip), year)
	}
	return fmt.Sprintf("/rates/zip/%s/year/%d", url.PathEscape(zip), year)
}

// CityPath returns the request path for a city lookup.
func CityPath(city, state string, year int) string {
	return fmt.Sprintf("/rates/city/%s/%s/year/%d", url.PathEscape(city), url.PathEscape(state), year)
}

// FetchByZip implements Client.
func (c *httpClient) FetchByZip(ctx context.Context, zip string, year int, variant ZipVariant) (gjson.Result, error) {
	return c.get(ctx, "zip "+variant.String(), ZipPath(zip, year, variant))
}

// FetchByCity implements Client.
func (c *httpClient) FetchByCity(ctx context.Context, city, state string, year int) (gjson.Result, error) {
	return c.get(ctx, "city", CityPath(city, state, year))
}

func (c *httpClient) get(ctx context.Context, op, path string) (gjson.Result, error) {
	if c.breaker == nil {
		return c.do(ctx, op, path)
	}
	res, err := resilience.Do(ctx, c.breaker, func(ctx context.Context) (gjson.Result, error) {
		return c.do(ctx, op, path)
	})
	if err != nil {
		return gjson.Result{}, eris.Wrapf(err, "gsa: %s", op)
	}
	return res, nil
}

func (c *httpClient) do(ctx context.Context, op, path string) (gjson.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return gjson.Result{}, eris.Wrap(resilience.NewUpstreamError(serviceName, 0, err), "gsa: rate limit")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return gjson.Result{}, eris.Wrap(err, "gsa: build request")
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return gjson.Result{}, eris.Wrap(resilience.NewUpstreamError(serviceName, 0, err), "gsa: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return gjson.Result{}, eris.Wrap(resilience.NewUpstreamError(serviceName, resp.StatusCode, err), "gsa: read body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		zap.L().Debug("gsa: error status",
			zap.String("op", op),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", snippet(body)),
		)
		return gjson.Result{}, eris.Wrap(resilience.NewUpstreamError(serviceName, resp.StatusCode, nil), "gsa: request")
	}

	if looksLikeMarkup(body) {
		zap.L().Warn("gsa: received markup instead of JSON, check the API key",
			zap.String("op", op),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("snippet", snippet(body)),
		)
		return gjson.Result{}, eris.Wrapf(ErrMalformedResponse, "gsa: markup body with status %d", resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, eris.Wrapf(ErrMalformedResponse, "gsa: invalid JSON body with status %d", resp.StatusCode)
	}

	return gjson.ParseBytes(body), nil
}

// looksLikeMarkup reports whether body is an HTML/XML page rather than JSON.
func looksLikeMarkup(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '<' {
		return true
	}
	lower := bytes.ToLower(trimmed)
	return bytes.Contains(lower, []byte("<html")) || bytes.Contains(lower, []byte("<!doctype"))
}

func snippet(body []byte) string {
	if len(body) > snippetBytes {
		body = body[:snippetBytes]
	}
	return string(body)
}
