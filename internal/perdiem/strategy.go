package perdiem

import (
	"context"

	"github.com/sells-group/perdiem/pkg/gsa"
)

// StrategyInput is what every strategy sees: the validated request and the
// zip code known at the start of the chain (possibly empty).
type StrategyInput struct {
	Request LookupRequest
	ZipCode string
}

// StrategyFunc runs one lookup. prior is the failure of the previous
// strategy in the chain, nil for the first one run.
type StrategyFunc func(ctx context.Context, in StrategyInput, prior error) (*NormalizedRate, error)

// Strategy is one step of the fallback chain.
type Strategy struct {
	Method   Method
	NeedsZip bool
	Run      StrategyFunc
}

// DefaultStrategies returns zip primary, zip alternate and city name
// lookups, in that order.
func DefaultStrategies(source gsa.Client) []Strategy {
	return []Strategy{
		{Method: MethodZip, NeedsZip: true, Run: zipStrategy(source, gsa.ZipPrimary, MethodZip)},
		{Method: MethodZipAlt, NeedsZip: true, Run: zipStrategy(source, gsa.ZipAlternate, MethodZipAlt)},
		{Method: MethodCity, Run: cityStrategy(source)},
	}
}

func zipStrategy(source gsa.Client, variant gsa.ZipVariant, method Method) StrategyFunc {
	return func(ctx context.Context, in StrategyInput, _ error) (*NormalizedRate, error) {
		body, err := source.FetchByZip(ctx, in.ZipCode, in.Request.Year(), variant)
		if err != nil {
			return nil, err
		}
		return NormalizeZip(body, in.Request, method)
	}
}

func cityStrategy(source gsa.Client) StrategyFunc {
	return func(ctx context.Context, in StrategyInput, _ error) (*NormalizedRate, error) {
		body, err := source.FetchByCity(ctx, in.Request.City, in.Request.State, in.Request.Year())
		if err != nil {
			return nil, err
		}
		return NormalizeCity(body, in.Request)
	}
}
