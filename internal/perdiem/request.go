// Package perdiem resolves federal per diem rates for a city, state and
// travel date by running an ordered chain of lookup strategies against the
// GSA rates API, and suggests cities for autocomplete.
package perdiem

import (
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// DateLayout is the calendar date format used on every boundary.
const DateLayout = "2006-01-02"

var (
	// ErrInvalidRequest marks a LookupRequest rejected before any lookup.
	ErrInvalidRequest = eris.New("perdiem: invalid request")

	// ErrNoApplicableRate marks a valid upstream response that carries no
	// usable rate, and the exhaustion of every strategy.
	ErrNoApplicableRate = eris.New("perdiem: no applicable rate")
)

var (
	zipPattern   = regexp.MustCompile(`^\d{5}$`)
	statePattern = regexp.MustCompile(`^[A-Za-z]{2}$`)
)

// LookupRequest is one rate lookup.
type LookupRequest struct {
	City    string    `json:"city" yaml:"city"`
	State   string    `json:"state" yaml:"state"`
	Date    time.Time `json:"date" yaml:"date"`
	ZipCode string    `json:"zipCode,omitempty" yaml:"zip_code,omitempty"`
}

// Validate trims the request, upper-cases the state and checks every field.
func (r *LookupRequest) Validate() error {
	r.City = strings.TrimSpace(r.City)
	r.State = strings.ToUpper(strings.TrimSpace(r.State))
	r.ZipCode = strings.TrimSpace(r.ZipCode)

	switch {
	case r.City == "":
		return eris.Wrap(ErrInvalidRequest, "city is required")
	case !statePattern.MatchString(r.State):
		return eris.Wrapf(ErrInvalidRequest, "state must be a 2-letter code, got %q", r.State)
	case r.Date.IsZero():
		return eris.Wrap(ErrInvalidRequest, "date is required")
	case r.ZipCode != "" && !zipPattern.MatchString(r.ZipCode):
		return eris.Wrapf(ErrInvalidRequest, "zip code must be 5 digits, got %q", r.ZipCode)
	}
	return nil
}

// TargetMonth returns the 1-indexed month of the travel date.
func (r LookupRequest) TargetMonth() int {
	return int(r.Date.Month())
}

// Year returns the rate year queried for the travel date.
func (r LookupRequest) Year() int {
	return r.Date.Year()
}

// ParseDate parses YYYY-MM-DD, or an RFC 3339 timestamp truncated to its
// calendar date, as a UTC midnight.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, eris.Wrap(ErrInvalidRequest, "date is required")
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, eris.Wrapf(ErrInvalidRequest, "date %q is not YYYY-MM-DD", s)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// IsZip reports whether s is a 5-digit zip code.
func IsZip(s string) bool {
	return zipPattern.MatchString(s)
}
