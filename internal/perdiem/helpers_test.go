package perdiem

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/sells-group/perdiem/pkg/geocode"
	"github.com/sells-group/perdiem/pkg/gsa"
)

// fakeSource is an in-memory gsa.Client that records every call.
type fakeSource struct {
	mu     sync.Mutex
	calls  []string
	byZip  func(zip string, year int, variant gsa.ZipVariant) (gjson.Result, error)
	byCity func(city, state string, year int) (gjson.Result, error)
}

func (f *fakeSource) FetchByZip(_ context.Context, zip string, year int, variant gsa.ZipVariant) (gjson.Result, error) {
	f.record("zip:" + variant.String())
	if f.byZip == nil {
		return gjson.Parse(`{"rates":[]}`), nil
	}
	return f.byZip(zip, year, variant)
}

func (f *fakeSource) FetchByCity(_ context.Context, city, state string, year int) (gjson.Result, error) {
	f.record("city")
	if f.byCity == nil {
		return gjson.Parse(`{"rates":[]}`), nil
	}
	return f.byCity(city, state, year)
}

func (f *fakeSource) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeSource) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fakeGeocoder satisfies ZipResolver and PlaceFinder.
type fakeGeocoder struct {
	zip       string
	ok        bool
	places    *geocode.PlacesResponse
	placesErr error
	zipCalls  int
}

func (g *fakeGeocoder) ResolveZip(context.Context, string, string) (string, bool) {
	g.zipCalls++
	return g.zip, g.ok
}

func (g *fakeGeocoder) Places(context.Context, string, string) (*geocode.PlacesResponse, error) {
	if g.placesErr != nil {
		return nil, g.placesErr
	}
	return g.places, nil
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func chicagoRequest(t *testing.T) LookupRequest {
	t.Helper()
	return LookupRequest{City: "Chicago", State: "IL", Date: mustDate(t, "2024-06-15"), ZipCode: "60601"}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

const chicagoZipBody = `{
  "rates": [{
    "city": "Chicago",
    "state": "IL",
    "county": "Cook",
    "standardRate": "false",
    "rate": [{
      "meals": 69,
      "incidentals": 5,
      "months": {"month": [
        {"number": 5, "value": 170, "short": "May"},
        {"number": 6, "value": 181, "short": "Jun"},
        {"number": 7, "value": 190, "short": "Jul"}
      ]}
    }]
  }]
}`

const chicagoCityBody = `{
  "city": "Chicago",
  "state": "IL",
  "rates": [
    {"effectiveDate": "2024-05-01", "expirationDate": "2024-05-31", "rate": {"lodging": 140, "meals": 69, "incidentals": 5}},
    {"effectiveDate": "2024-06-01", "expirationDate": "2024-06-30", "rate": {"lodging": 150, "meals": 69, "incidentals": 5}}
  ]
}`

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, dec(want).Equal(got), "want %s, got %s", want, got.String())
}
