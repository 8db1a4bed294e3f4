package main

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/perdiem/internal/perdiem"
)

// rateView is the printable form of a resolution. Amounts are fixed to two
// decimals and dates are YYYY-MM-DD.
type rateView struct {
	Method         perdiem.Method    `json:"method" yaml:"method"`
	ZipCode        string            `json:"zipCode,omitempty" yaml:"zip_code,omitempty"`
	City           string            `json:"city" yaml:"city"`
	State          string            `json:"state" yaml:"state"`
	County         string            `json:"county,omitempty" yaml:"county,omitempty"`
	Lodging        string            `json:"lodging" yaml:"lodging"`
	Meals          string            `json:"meals" yaml:"meals"`
	Incidentals    string            `json:"incidentals" yaml:"incidentals"`
	Total          string            `json:"total" yaml:"total"`
	EffectiveDate  string            `json:"effectiveDate" yaml:"effective_date"`
	ExpirationDate string            `json:"expirationDate" yaml:"expiration_date"`
	StandardRate   bool              `json:"standardRate,omitempty" yaml:"standard_rate,omitempty"`
	Attempts       []perdiem.Attempt `json:"attempts,omitempty" yaml:"attempts,omitempty"`
}

func newRateView(res *perdiem.Resolution) rateView {
	r := res.Rate
	return rateView{
		Method:         res.Method,
		ZipCode:        res.ZipCode,
		City:           r.City,
		State:          r.State,
		County:         r.County,
		Lodging:        r.Lodging.StringFixed(2),
		Meals:          r.Meals.StringFixed(2),
		Incidentals:    r.Incidentals.StringFixed(2),
		Total:          r.Total.StringFixed(2),
		EffectiveDate:  r.EffectiveDate.Format(perdiem.DateLayout),
		ExpirationDate: r.ExpirationDate.Format(perdiem.DateLayout),
		StandardRate:   r.StandardRate,
		Attempts:       res.Attempts,
	}
}

// writeOutput encodes v as "yaml" or "json".
func writeOutput(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return enc.Close()
	default:
		return eris.Errorf("unsupported output format %q (want yaml or json)", format)
	}
}
