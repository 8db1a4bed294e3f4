package perdiem

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// components is a partial rate produced by one shape parser.
type components struct {
	Lodging     decimal.Decimal
	Meals       decimal.Decimal
	Incidentals decimal.Decimal
}

// fillZero copies every component of o that is still zero in c.
func (c *components) fillZero(o components) {
	if c.Lodging.IsZero() {
		c.Lodging = o.Lodging
	}
	if c.Meals.IsZero() {
		c.Meals = o.Meals
	}
	if c.Incidentals.IsZero() {
		c.Incidentals = o.Incidentals
	}
}

func (c components) usable() bool {
	return c.Lodging.IsPositive() || c.Meals.IsPositive()
}

// shapeParser extracts rate components from one known payload shape. ok is
// false when the shape is not present in the record.
type shapeParser struct {
	Name  string
	Parse func(record gjson.Result, month int) (c components, ok bool)
}

// Zip-shaped parsers run in order; later parsers only fill components the
// earlier ones left at zero.
var zipParsers = []shapeParser{
	{Name: "nested", Parse: parseZipNested},
	{Name: "flat", Parse: parseZipFlat},
}

// City-shaped parsers run in order; the first one whose shape is present
// wins.
var cityParsers = []shapeParser{
	{Name: "nested-object", Parse: parseCityNested},
	{Name: "flat", Parse: parseCityFlat},
}

// NormalizeZip turns a zip-shaped response into a rate for the request's
// travel month.
func NormalizeZip(body gjson.Result, req LookupRequest, method Method) (*NormalizedRate, error) {
	record := body.Get("rates.0")
	if !record.IsObject() {
		return nil, eris.Wrap(ErrNoApplicableRate, "perdiem: zip response has no rate record")
	}

	var acc components
	for _, p := range zipParsers {
		c, ok := p.Parse(record, req.TargetMonth())
		if !ok {
			continue
		}
		acc.fillZero(c)
	}

	zap.L().Debug("perdiem: parsed zip rate",
		zap.String("method", string(method)),
		zap.String("lodging", acc.Lodging.String()),
		zap.String("meals", acc.Meals.String()),
		zap.String("incidentals", acc.Incidentals.String()),
	)

	if !acc.usable() {
		return nil, eris.Wrap(ErrNoApplicableRate, "perdiem: zip rate has no lodging or meals")
	}

	year := req.Year()
	rate := &NormalizedRate{
		City:           firstNonEmpty(record.Get("city").String(), req.City),
		State:          firstNonEmpty(record.Get("state").String(), req.State),
		County:         strings.TrimSpace(record.Get("county").String()),
		Lodging:        acc.Lodging,
		Meals:          acc.Meals,
		Incidentals:    acc.Incidentals,
		EffectiveDate:  time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		ExpirationDate: time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC),
		StandardRate:   record.Get("standardRate").Bool(),
		Method:         method,
	}
	rate.recomputeTotal()
	return rate, nil
}

// NormalizeCity turns a city-shaped response into the rate whose validity
// interval contains the travel date. There is no nearest-interval fallback.
func NormalizeCity(body gjson.Result, req LookupRequest) (*NormalizedRate, error) {
	rates := body.Get("rates")
	if !rates.IsArray() || len(rates.Array()) == 0 {
		return nil, eris.Wrap(ErrNoApplicableRate, "perdiem: city response has no rates")
	}

	entry, effective, expiration, found := coveringEntry(rates.Array(), req.Date)
	if !found {
		return nil, eris.Wrapf(ErrNoApplicableRate, "perdiem: no city rate covers %s", req.Date.Format(DateLayout))
	}

	var acc components
	for _, p := range cityParsers {
		c, ok := p.Parse(entry, req.TargetMonth())
		if !ok {
			continue
		}
		zap.L().Debug("perdiem: parsed city rate",
			zap.String("parser", p.Name),
			zap.String("lodging", c.Lodging.String()),
			zap.String("meals", c.Meals.String()),
			zap.String("incidentals", c.Incidentals.String()),
		)
		acc = c
		break
	}

	if !acc.usable() {
		return nil, eris.Wrap(ErrNoApplicableRate, "perdiem: city rate has no lodging or meals")
	}

	rate := &NormalizedRate{
		City:           firstNonEmpty(body.Get("city").String(), req.City),
		State:          firstNonEmpty(body.Get("state").String(), req.State),
		County:         strings.TrimSpace(firstNonEmpty(entry.Get("county").String(), body.Get("county").String())),
		Lodging:        acc.Lodging,
		Meals:          acc.Meals,
		Incidentals:    acc.Incidentals,
		EffectiveDate:  effective,
		ExpirationDate: expiration,
		Method:         MethodCity,
	}
	rate.recomputeTotal()
	return rate, nil
}

// coveringEntry returns the first entry whose [effectiveDate,
// expirationDate] contains day, comparing calendar dates inclusively.
// Entries with missing or unparseable bounds never match.
func coveringEntry(entries []gjson.Result, day time.Time) (gjson.Result, time.Time, time.Time, bool) {
	target := truncateDay(day)
	for _, e := range entries {
		from, ok := parseRateDate(e.Get("effectiveDate").String())
		if !ok {
			continue
		}
		to, ok := parseRateDate(e.Get("expirationDate").String())
		if !ok {
			continue
		}
		if !target.Before(from) && !target.After(to) {
			return e, from, to, true
		}
	}
	return gjson.Result{}, time.Time{}, time.Time{}, false
}

func parseZipNested(record gjson.Result, month int) (components, bool) {
	rateData := record.Get("rate")
	if rateData.IsArray() {
		rateData = rateData.Get("0")
	}
	if !rateData.IsObject() {
		return components{}, false
	}

	c := components{
		Meals:       amount(rateData.Get("meals")),
		Incidentals: amount(rateData.Get("incidentals")),
		Lodging:     monthLodging(rateData.Get("months.month"), month),
	}
	return c, true
}

func parseZipFlat(record gjson.Result, _ int) (components, bool) {
	return components{
		Meals:       amount(record.Get("meals")),
		Incidentals: amount(record.Get("incidentals")),
	}, true
}

func parseCityNested(entry gjson.Result, _ int) (components, bool) {
	rateData := entry.Get("rate")
	if !rateData.IsObject() {
		return components{}, false
	}
	return flatComponents(rateData), true
}

func parseCityFlat(entry gjson.Result, _ int) (components, bool) {
	return flatComponents(entry), true
}

func flatComponents(v gjson.Result) components {
	return components{
		Lodging:     amount(v.Get("lodging")),
		Meals:       amount(v.Get("meals")),
		Incidentals: amount(v.Get("incidentals")),
	}
}

// monthLodging returns the value of the entry for month, or the first
// entry's value when no entry matches. months may be an array or a single
// object.
func monthLodging(months gjson.Result, month int) decimal.Decimal {
	entries := months.Array()
	if len(entries) == 0 {
		return decimal.Zero
	}
	for _, m := range entries {
		if m.Get("number").Int() == int64(month) {
			return amount(m.Get("value"))
		}
	}
	return amount(entries[0].Get("value"))
}

// amount parses a JSON number or numeric string from its raw text. Anything
// else is zero.
func amount(v gjson.Result) decimal.Decimal {
	var raw string
	switch v.Type {
	case gjson.Number:
		raw = v.Raw
	case gjson.String:
		raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(v.Str), "$"))
	default:
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}

var rateDateLayouts = []string{
	DateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"01/02/2006",
}

func parseRateDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range rateDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncateDay(t), true
		}
	}
	return time.Time{}, false
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
