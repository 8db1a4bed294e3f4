package perdiem

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/sells-group/perdiem/internal/resilience"
	"github.com/sells-group/perdiem/pkg/geocode"
	"github.com/sells-group/perdiem/pkg/gsa"
)

func chicagoPlaces(n int) *geocode.PlacesResponse {
	resp := &geocode.PlacesResponse{PlaceName: "Chicago", StateAbbreviation: "IL"}
	for i := 0; i < n; i++ {
		resp.Places = append(resp.Places, geocode.Place{
			PlaceName: "Chicago",
			PostCode:  "6060" + string(rune('0'+i)),
		})
	}
	return resp
}

func newTestSuggester(src gsa.Client, places PlaceFinder, m *Metrics) *Suggester {
	s := NewSuggester(src, places, m)
	s.now = func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) }
	return s
}

func TestSuggest_ShortQuery(t *testing.T) {
	src := &fakeSource{}
	s := newTestSuggester(src, &fakeGeocoder{places: chicagoPlaces(1)}, nil)

	for _, q := range []string{"", "c", "  c  "} {
		got := s.Suggest(context.Background(), q, "IL")
		assert.NotNil(t, got)
		assert.Empty(t, got)
	}
	assert.Empty(t, src.Calls())
}

func TestSuggest_ZipQuery(t *testing.T) {
	var gotYear int
	src := &fakeSource{byZip: func(zip string, year int, variant gsa.ZipVariant) (gjson.Result, error) {
		gotYear = year
		assert.Equal(t, gsa.ZipPrimary, variant)
		return gjson.Parse(chicagoZipBody), nil
	}}
	s := newTestSuggester(src, nil, nil)

	got := s.Suggest(context.Background(), "60601", "")
	require.Len(t, got, 1)
	assert.Equal(t, 2025, gotYear)
	assert.Equal(t, CitySuggestion{City: "Chicago", State: "IL", ZipCode: "60601", County: "Cook", Source: SourceGSAZip}, got[0])
}

func TestSuggest_NonZipQuerySkipsGSA(t *testing.T) {
	src := &fakeSource{}
	s := newTestSuggester(src, &fakeGeocoder{places: chicagoPlaces(2)}, nil)

	got := s.Suggest(context.Background(), "Chicago", "il")
	require.Len(t, got, 1)
	assert.Equal(t, SourceZippopotam, got[0].Source)
	assert.Equal(t, "60600", got[0].ZipCode)
	assert.Empty(t, src.Calls())
}

func TestSuggest_StateRequiredForPlaces(t *testing.T) {
	s := newTestSuggester(&fakeSource{}, &fakeGeocoder{places: chicagoPlaces(2)}, nil)

	assert.Empty(t, s.Suggest(context.Background(), "Chicago", ""))
	assert.Empty(t, s.Suggest(context.Background(), "Chicago", "Illinois"))
}

func TestSuggest_ZipEntryWinsDedup(t *testing.T) {
	src := &fakeSource{byZip: func(string, int, gsa.ZipVariant) (gjson.Result, error) {
		return gjson.Parse(`{"rates":[{"city":"CHICAGO","state":"il","county":"Cook"}]}`), nil
	}}
	places := &geocode.PlacesResponse{
		PlaceName:         "Chicago",
		StateAbbreviation: "IL",
		Places:            []geocode.Place{{PlaceName: "Chicago", PostCode: "60602"}},
	}
	s := newTestSuggester(src, &fakeGeocoder{places: places}, nil)

	got := s.Suggest(context.Background(), "60601", "IL")
	require.Len(t, got, 1)
	assert.Equal(t, SourceGSAZip, got[0].Source)
	assert.Equal(t, "60601", got[0].ZipCode)
}

func TestSuggest_FailingSourcesYieldEmpty(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	src := &fakeSource{byZip: func(string, int, gsa.ZipVariant) (gjson.Result, error) {
		return gjson.Result{}, resilience.NewUpstreamError("gsa", 502, nil)
	}}
	s := newTestSuggester(src, &fakeGeocoder{placesErr: errors.New("boom")}, m)

	got := s.Suggest(context.Background(), "60601", "IL")
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.suggestions.WithLabelValues("gsa_zip", resilience.KindUnavailable)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.suggestions.WithLabelValues("zippopotam", resilience.KindOther)))
}

func TestSuggest_GSAWithoutRatesYieldsNothing(t *testing.T) {
	src := &fakeSource{}
	s := newTestSuggester(src, nil, nil)

	assert.Empty(t, s.Suggest(context.Background(), "99999", ""))
	assert.Equal(t, []string{"zip:primary"}, src.Calls())
}

func TestFromPlaces_CapsAtFive(t *testing.T) {
	s := newTestSuggester(nil, &fakeGeocoder{places: chicagoPlaces(8)}, nil)

	got := s.fromPlaces(context.Background(), "IL", "Chicago")
	require.Len(t, got, 5)
	assert.Equal(t, "60604", got[4].ZipCode)
	assert.Equal(t, "Chicago", got[4].County)
}

func TestMergeSuggestions(t *testing.T) {
	a := []CitySuggestion{{City: "Springfield", State: "IL", ZipCode: "62701", Source: SourceGSAZip}}
	b := []CitySuggestion{
		{City: "springfield", State: "il", ZipCode: "62702", Source: SourceZippopotam},
		{City: "Springfield", State: "MO", ZipCode: "65801", Source: SourceZippopotam},
	}

	got := mergeSuggestions(10, a, b)
	require.Len(t, got, 2)
	assert.Equal(t, "62701", got[0].ZipCode)
	assert.Equal(t, "MO", got[1].State)
}

func TestMergeSuggestions_Cap(t *testing.T) {
	var many []CitySuggestion
	for i := 0; i < 15; i++ {
		many = append(many, CitySuggestion{City: "City" + string(rune('A'+i)), State: "TX"})
	}

	got := mergeSuggestions(10, many)
	require.Len(t, got, 10)
	assert.Equal(t, "CityJ", got[9].City)
}
