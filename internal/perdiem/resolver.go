package perdiem

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/perdiem/internal/resilience"
	"github.com/sells-group/perdiem/pkg/gsa"
)

// ReasonNotFound is the Resolution reason when every strategy failed.
const ReasonNotFound = "not_found"

// ZipResolver looks up a zip code for a city. It is satisfied by
// geocode.Client.
type ZipResolver interface {
	ResolveZip(ctx context.Context, city, state string) (string, bool)
}

// Attempt records one strategy in a resolution.
type Attempt struct {
	Method  Method `json:"method" yaml:"method"`
	Skipped bool   `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Failure string `json:"failure,omitempty" yaml:"failure,omitempty"`
	Err     error  `json:"-" yaml:"-"`
}

// Resolution is the outcome of Resolve. Either Success is true and Rate is
// set, or Reason is ReasonNotFound.
type Resolution struct {
	Success  bool            `json:"success" yaml:"success"`
	Method   Method          `json:"method,omitempty" yaml:"method,omitempty"`
	ZipCode  string          `json:"zipCode,omitempty" yaml:"zip_code,omitempty"`
	Rate     *NormalizedRate `json:"rate,omitempty" yaml:"rate,omitempty"`
	Reason   string          `json:"reason,omitempty" yaml:"reason,omitempty"`
	Attempts []Attempt       `json:"attempts,omitempty" yaml:"attempts,omitempty"`
}

// Err returns nil for a successful resolution and an error wrapping
// ErrNoApplicableRate otherwise.
func (r *Resolution) Err() error {
	if r.Success {
		return nil
	}
	return eris.Wrapf(ErrNoApplicableRate, "perdiem: %d strategies exhausted", len(r.Attempts))
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithStrategies replaces the default strategy chain.
func WithStrategies(strategies ...Strategy) ResolverOption {
	return func(r *Resolver) {
		r.strategies = strategies
	}
}

// WithMetrics records resolutions and strategy failures on m.
func WithMetrics(m *Metrics) ResolverOption {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// Resolver runs the strategy chain for a LookupRequest.
type Resolver struct {
	strategies []Strategy
	geocoder   ZipResolver
	metrics    *Metrics
}

// NewResolver builds a Resolver over the GSA source. geocoder may be nil,
// in which case requests without a zip go straight to the city lookup.
func NewResolver(source gsa.Client, geocoder ZipResolver, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		strategies: DefaultStrategies(source),
		geocoder:   geocoder,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve validates req, then tries each strategy in order and returns the
// first usable rate. Strategies run one at a time and are never retried.
// The returned error is non-nil only for an invalid request; a rate that
// cannot be found is a Resolution with Success false.
func (r *Resolver) Resolve(ctx context.Context, req LookupRequest) (*Resolution, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	zip := req.ZipCode
	if zip == "" && r.geocoder != nil {
		if z, ok := r.geocoder.ResolveZip(ctx, req.City, req.State); ok {
			zip = z
		}
	}

	in := StrategyInput{Request: req, ZipCode: zip}
	res := &Resolution{}
	var prior error

	for _, s := range r.strategies {
		if s.NeedsZip && zip == "" {
			res.Attempts = append(res.Attempts, Attempt{Method: s.Method, Skipped: true})
			continue
		}

		rate, err := s.Run(ctx, in, prior)
		if err == nil && rate != nil {
			rate.Method = s.Method
			res.Success = true
			res.Method = s.Method
			res.Rate = rate
			if s.Method.IsZip() {
				res.ZipCode = zip
			}
			res.Attempts = append(res.Attempts, Attempt{Method: s.Method})
			r.metrics.resolved(s.Method, "success", time.Since(start))
			zap.L().Debug("perdiem: rate resolved",
				zap.String("method", string(s.Method)),
				zap.String("city", req.City),
				zap.String("state", req.State),
				zap.String("total", rate.Total.String()),
			)
			return res, nil
		}
		if err == nil {
			err = eris.Wrap(ErrNoApplicableRate, "perdiem: strategy returned no rate")
		}

		kind := FailureKind(err)
		r.metrics.strategyFailed(s.Method, kind)
		res.Attempts = append(res.Attempts, Attempt{Method: s.Method, Failure: kind, Err: err})
		zap.L().Debug("perdiem: strategy failed, trying next",
			zap.String("method", string(s.Method)),
			zap.String("kind", kind),
			zap.Bool("transient", resilience.IsTransient(err)),
			zap.Error(err),
		)
		prior = err
	}

	res.Reason = ReasonNotFound
	r.metrics.resolved("", ReasonNotFound, time.Since(start))
	zap.L().Info("perdiem: no rate found",
		zap.String("city", req.City),
		zap.String("state", req.State),
		zap.String("zip", zip),
		zap.String("date", req.Date.Format(DateLayout)),
	)
	return res, nil
}
