package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"

	"github.com/sells-group/perdiem/internal/config"
	"github.com/sells-group/perdiem/internal/expense"
	"github.com/sells-group/perdiem/internal/perdiem"
	"github.com/sells-group/perdiem/internal/resilience"
	"github.com/sells-group/perdiem/pkg/geocode"
	"github.com/sells-group/perdiem/pkg/gsa"
)

func initStore(ctx context.Context, c config.StoreConfig) (expense.Store, error) {
	var (
		st  expense.Store
		err error
	)
	switch c.Driver {
	case "sqlite":
		st, err = expense.NewSQLite(c.DatabaseURL)
	case "postgres":
		st, err = expense.NewPostgres(ctx, c.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func newGSAClient(c config.GSAConfig) (gsa.Client, error) {
	opts := []gsa.Option{
		gsa.WithTimeout(time.Duration(c.TimeoutSecs) * time.Second),
		gsa.WithRateLimit(c.RateLimit),
	}
	if c.BaseURL != "" {
		opts = append(opts, gsa.WithBaseURL(c.BaseURL))
	}
	if c.UserAgent != "" {
		opts = append(opts, gsa.WithUserAgent(c.UserAgent))
	}
	if c.BreakerFailures > 0 {
		cb := resilience.NewBreaker(resilience.BreakerFromConfig("gsa", c.BreakerFailures, c.BreakerResetSecs))
		opts = append(opts, gsa.WithCircuitBreaker(cb))
	}
	return gsa.NewClient(c.APIKey, opts...)
}

func newGeocoder(c config.GeocodeConfig) geocode.Client {
	opts := []geocode.Option{
		geocode.WithTimeout(time.Duration(c.TimeoutSecs) * time.Second),
		geocode.WithRateLimit(c.RateLimit),
	}
	if c.BaseURL != "" {
		opts = append(opts, geocode.WithBaseURL(c.BaseURL))
	}
	return geocode.NewClient(opts...)
}

// lookupEnv is the rate-lookup side of the app: both upstream clients, the
// resolver and the suggester, sharing one metrics set.
type lookupEnv struct {
	Resolver  *perdiem.Resolver
	Suggester *perdiem.Suggester
	Registry  *prometheus.Registry
}

func initLookup(c *config.Config) (*lookupEnv, error) {
	source, err := newGSAClient(c.GSA)
	if err != nil {
		return nil, eris.Wrap(err, "init gsa client")
	}
	geo := newGeocoder(c.Geocode)

	reg := prometheus.NewRegistry()
	metrics := perdiem.NewMetrics(reg)

	return &lookupEnv{
		Resolver:  perdiem.NewResolver(source, geo, perdiem.WithMetrics(metrics)),
		Suggester: perdiem.NewSuggester(source, geo, metrics),
		Registry:  reg,
	}, nil
}
