package geocode

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const chicagoPlaces = `{
	"country abbreviation": "US",
	"places": [
		{"place name": "Chicago", "longitude": "-87.6244", "post code": "60601", "latitude": "41.8858"},
		{"place name": "Chicago", "longitude": "-87.6181", "post code": "60602", "latitude": "41.8829"}
	],
	"country": "United States",
	"place name": "Chicago",
	"state": "Illinois",
	"state abbreviation": "IL"
}`

// newFakeZippopotam starts a test server answering every request with the
// given status and body, and returns a client pointed at it.
func newFakeZippopotam(t *testing.T, status int, body string) (Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	return NewClient(WithBaseURL(srv.URL), WithRateLimit(0), WithTimeout(2*time.Second)), srv
}
