package perdiem

import (
	"time"

	"github.com/shopspring/decimal"
)

// Method names the strategy that produced a rate.
type Method string

// Lookup methods, in chain order.
const (
	MethodZip    Method = "zipcode"
	MethodZipAlt Method = "zipcode_alt"
	MethodCity   Method = "city"
)

// IsZip reports whether the method looked rates up by zip code.
func (m Method) IsZip() bool {
	return m == MethodZip || m == MethodZipAlt
}

// NormalizedRate is the canonical daily rate for one location and date.
type NormalizedRate struct {
	City           string          `json:"city"`
	State          string          `json:"state"`
	County         string          `json:"county,omitempty"`
	Lodging        decimal.Decimal `json:"lodging"`
	Meals          decimal.Decimal `json:"meals"`
	Incidentals    decimal.Decimal `json:"incidentals"`
	Total          decimal.Decimal `json:"total"`
	EffectiveDate  time.Time       `json:"effectiveDate"`
	ExpirationDate time.Time       `json:"expirationDate"`
	StandardRate   bool            `json:"standardRate,omitempty"`
	Method         Method          `json:"method"`
}

// Valid reports whether the rate carries a positive lodging or meals
// amount. Incidentals alone never make a rate usable.
func (r *NormalizedRate) Valid() bool {
	return r.Lodging.IsPositive() || r.Meals.IsPositive()
}

// MealsAndIncidentals is the daily food allowance.
func (r *NormalizedRate) MealsAndIncidentals() decimal.Decimal {
	return r.Meals.Add(r.Incidentals)
}

func (r *NormalizedRate) recomputeTotal() {
	r.Total = r.Lodging.Add(r.Meals).Add(r.Incidentals)
}

// Source names where a CitySuggestion came from.
type Source string

// Suggestion sources, in insertion order.
const (
	SourceGSAZip     Source = "gsa_zip"
	SourceZippopotam Source = "zippopotam"
)

// CitySuggestion is one autocomplete candidate.
type CitySuggestion struct {
	City    string `json:"city" yaml:"city"`
	State   string `json:"state" yaml:"state"`
	ZipCode string `json:"zipCode,omitempty" yaml:"zip_code,omitempty"`
	County  string `json:"county,omitempty" yaml:"county,omitempty"`
	Source  Source `json:"source" yaml:"source"`
}
