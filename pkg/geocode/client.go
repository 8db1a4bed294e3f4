// Package geocode resolves U.S. city/state pairs to zip codes via the
// zippopotam.us place lookup.
package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/perdiem/internal/resilience"
)

const (
	defaultBaseURL = "http://api.zippopotam.us"
	defaultTimeout = 5 * time.Second
	serviceName    = "zippopotam"
	maxBodyBytes   = 1 << 20
)

// ErrNotFound is returned by Places when zippopotam has no entry for the
// city/state pair.
var ErrNotFound = eris.New("geocode: place not found")

// Client looks up places and zip codes for a city in a state.
type Client interface {
	// ResolveZip returns the first zip code for the city, or false when the
	// lookup fails for any reason. It never returns an error.
	ResolveZip(ctx context.Context, city, state string) (string, bool)

	// Places returns every zippopotam place for the city in the state.
	Places(ctx context.Context, state, city string) (*PlacesResponse, error)
}

// PlacesResponse is the zippopotam /us/{state}/{city} payload.
type PlacesResponse struct {
	Country           string  `json:"country"`
	CountryAbbrev     string  `json:"country abbreviation"`
	PlaceName         string  `json:"place name"`
	State             string  `json:"state"`
	StateAbbreviation string  `json:"state abbreviation"`
	Places            []Place `json:"places"`
}

// Place is a single postal area within a PlacesResponse.
type Place struct {
	PlaceName string `json:"place name"`
	PostCode  string `json:"post code"`
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(g *geocoder) {
		g.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithTimeout sets the per-call deadline.
func WithTimeout(d time.Duration) Option {
	return func(g *geocoder) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithRateLimit sets the requests-per-second rate limit for lookups.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		if rps <= 0 {
			g.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	}
}

type geocoder struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	limiter    *rate.Limiter
}

// NewClient creates a new zippopotam Client with the given options.
func NewClient(opts ...Option) Client {
	g := &geocoder{
		baseURL: defaultBaseURL,
		timeout: defaultTimeout,
		limiter: rate.NewLimiter(5, 5),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.httpClient == nil {
		g.httpClient = &http.Client{Timeout: g.timeout}
	}
	return g
}

// ResolveZip implements Client. Single attempt, no retry.
func (g *geocoder) ResolveZip(ctx context.Context, city, state string) (string, bool) {
	resp, err := g.Places(ctx, state, city)
	if err != nil {
		zap.L().Debug("geocode: zip lookup failed",
			zap.String("city", city),
			zap.String("state", state),
			zap.Error(err),
		)
		return "", false
	}

	for _, p := range resp.Places {
		if zip := strings.TrimSpace(p.PostCode); zip != "" {
			zap.L().Debug("geocode: resolved zip",
				zap.String("city", city),
				zap.String("state", state),
				zap.String("zip", zip),
			)
			return zip, true
		}
	}

	zap.L().Debug("geocode: no zip for city",
		zap.String("city", city),
		zap.String("state", state),
	)
	return "", false
}

// Places implements Client.
func (g *geocoder) Places(ctx context.Context, state, city string) (*PlacesResponse, error) {
	state = strings.TrimSpace(state)
	city = strings.TrimSpace(city)
	if state == "" || city == "" {
		return nil, eris.New("geocode: city and state are required")
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: rate limit")
	}

	reqURL := g.baseURL + "/us/" + url.PathEscape(strings.ToLower(state)) + "/" + url.PathEscape(city)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(resilience.NewUpstreamError(serviceName, 0, err), "geocode: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Wrap(resilience.NewUpstreamError(serviceName, resp.StatusCode, nil), "geocode: request")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(resilience.NewUpstreamError(serviceName, resp.StatusCode, err), "geocode: read body")
	}

	var out PlacesResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrapf(resilience.ErrMalformedResponse, "geocode: parse response: %v", err)
	}
	if len(out.Places) == 0 {
		return nil, ErrNotFound
	}
	return &out, nil
}
