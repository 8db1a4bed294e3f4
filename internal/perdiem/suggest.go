package perdiem

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"

	"github.com/sells-group/perdiem/pkg/geocode"
	"github.com/sells-group/perdiem/pkg/gsa"
)

const (
	minQueryLen      = 2
	maxPlaces        = 5
	maxSuggestions   = 10
	suggestSlotZip   = 0
	suggestSlotPlace = 1
)

// PlaceFinder lists zippopotam places for a city. It is satisfied by
// geocode.Client.
type PlaceFinder interface {
	Places(ctx context.Context, state, city string) (*geocode.PlacesResponse, error)
}

// Suggester merges autocomplete candidates from the GSA zip lookup and
// zippopotam.
type Suggester struct {
	source  gsa.Client
	places  PlaceFinder
	metrics *Metrics
	now     func() time.Time
}

// NewSuggester creates a Suggester. Either source may be nil, which
// disables it. metrics may be nil.
func NewSuggester(source gsa.Client, places PlaceFinder, metrics *Metrics) *Suggester {
	return &Suggester{
		source:  source,
		places:  places,
		metrics: metrics,
		now:     time.Now,
	}
}

// Suggest returns up to 10 unique (city, state) candidates for query. It
// never fails: insufficient input or failing sources yield fewer entries.
func (s *Suggester) Suggest(ctx context.Context, query, state string) []CitySuggestion {
	query = strings.TrimSpace(query)
	state = strings.ToUpper(strings.TrimSpace(state))
	if utf8.RuneCountInString(query) < minQueryLen {
		return []CitySuggestion{}
	}

	// Fixed slots keep zip-sourced entries ahead of place entries no matter
	// which lookup finishes first.
	slots := make([][]CitySuggestion, 2)
	var g errgroup.Group

	if IsZip(query) && s.source != nil {
		g.Go(func() error {
			slots[suggestSlotZip] = s.fromGSAZip(ctx, query)
			return nil
		})
	}
	if statePattern.MatchString(state) && s.places != nil {
		g.Go(func() error {
			slots[suggestSlotPlace] = s.fromPlaces(ctx, state, query)
			return nil
		})
	}
	_ = g.Wait()

	return mergeSuggestions(maxSuggestions, slots...)
}

func (s *Suggester) fromGSAZip(ctx context.Context, zip string) []CitySuggestion {
	body, err := s.source.FetchByZip(ctx, zip, s.now().Year(), gsa.ZipPrimary)
	s.metrics.suggestionSource(SourceGSAZip, err)
	if err != nil {
		zap.L().Debug("perdiem: zip suggestion lookup failed", zap.String("zip", zip), zap.Error(err))
		return nil
	}

	record := body.Get("rates.0")
	if !record.IsObject() {
		return nil
	}
	city := firstNonEmpty(record.Get("city").String(), body.Get("city").String())
	if city == "" {
		return nil
	}
	return []CitySuggestion{{
		City:    city,
		State:   firstNonEmpty(record.Get("state").String(), body.Get("state").String()),
		County:  firstNonEmpty(record.Get("county").String(), body.Get("county").String()),
		ZipCode: zip,
		Source:  SourceGSAZip,
	}}
}

func (s *Suggester) fromPlaces(ctx context.Context, state, query string) []CitySuggestion {
	resp, err := s.places.Places(ctx, state, query)
	s.metrics.suggestionSource(SourceZippopotam, err)
	if err != nil {
		zap.L().Debug("perdiem: place suggestion lookup failed",
			zap.String("query", query),
			zap.String("state", state),
			zap.Error(err),
		)
		return nil
	}

	out := make([]CitySuggestion, 0, min(len(resp.Places), maxPlaces))
	for _, p := range resp.Places {
		if len(out) == maxPlaces {
			break
		}
		out = append(out, CitySuggestion{
			City:    resp.PlaceName,
			State:   resp.StateAbbreviation,
			ZipCode: p.PostCode,
			County:  p.PlaceName,
			Source:  SourceZippopotam,
		})
	}
	return out
}

// mergeSuggestions concatenates groups in order, keeps the first entry per
// case-folded (city, state) and stops at limit.
func mergeSuggestions(limit int, groups ...[]CitySuggestion) []CitySuggestion {
	fold := cases.Fold()
	seen := make(map[string]struct{})
	out := make([]CitySuggestion, 0, limit)

	for _, group := range groups {
		for _, sug := range group {
			if len(out) == limit {
				return out
			}
			key := fold.String(strings.TrimSpace(sug.City)) + "\x00" + fold.String(strings.TrimSpace(sug.State))
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, sug)
		}
	}
	return out
}
