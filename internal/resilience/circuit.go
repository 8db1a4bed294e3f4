package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// BreakerState is the position of a Breaker.
type BreakerState int

const (
	// BreakerClosed lets every call through.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects calls until the cooldown elapses.
	BreakerOpen
	// BreakerHalfOpen lets one probe through to test the upstream.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned without calling the upstream while a Breaker is
// open. It wraps ErrUpstreamUnavailable, so a resolver treats it like any
// other outage and moves to its next strategy.
var ErrCircuitOpen = eris.Wrap(ErrUpstreamUnavailable, "circuit breaker is open")

const (
	defaultThreshold = 5
	defaultCooldown  = 30 * time.Second
)

// BreakerConfig configures a Breaker.
type BreakerConfig struct {
	// Service labels log lines, e.g. "gsa".
	Service string

	// Threshold is the number of consecutive outages that opens the breaker.
	Threshold int

	// Cooldown is how long the breaker stays open before a probe.
	Cooldown time.Duration

	// OnStateChange, if set, observes every transition.
	OnStateChange func(from, to BreakerState)
}

// BreakerFromConfig builds a BreakerConfig from the integer settings in the
// config file. Non-positive values keep the defaults (5 failures, 30s).
func BreakerFromConfig(service string, failures, cooldownSecs int) BreakerConfig {
	cfg := BreakerConfig{Service: service, Threshold: failures}
	if cooldownSecs > 0 {
		cfg.Cooldown = time.Duration(cooldownSecs) * time.Second
	}
	return cfg
}

// Breaker fails fast against an upstream that keeps reporting outages. Only
// errors wrapping ErrUpstreamUnavailable with no status or a transient status
// count; a malformed body or a 404 means the upstream answered, and a
// canceled caller says nothing about the upstream.
type Breaker struct {
	cfg BreakerConfig

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	now      func() time.Time
}

// NewBreaker creates a closed Breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = defaultThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = defaultCooldown
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// Do runs fn unless the breaker is open, and records the outcome.
func Do[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	if err := b.admit(); err != nil {
		var zero T
		return zero, err
	}
	v, err := fn(ctx)
	b.record(err)
	return v, err
}

// State reports the current state. An open breaker whose cooldown has
// elapsed reports half-open.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && b.cooledDown() {
		return BreakerHalfOpen
	}
	return b.state
}

// Failures returns the current run of consecutive outages.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

func (b *Breaker) cooledDown() bool {
	return b.now().Sub(b.openedAt) >= b.cfg.Cooldown
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != BreakerOpen {
		return nil
	}
	if b.cooledDown() {
		b.moveTo(BreakerHalfOpen)
		return nil
	}
	return ErrCircuitOpen
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !countsAsOutage(err) {
		b.failures = 0
		if b.state == BreakerHalfOpen {
			b.moveTo(BreakerClosed)
		}
		return
	}

	b.failures++
	if b.state == BreakerHalfOpen || b.failures >= b.cfg.Threshold {
		b.openedAt = b.now()
		b.moveTo(BreakerOpen)
	}
}

func countsAsOutage(err error) bool {
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, ErrMalformedResponse):
		return false
	case !errors.Is(err, ErrUpstreamUnavailable):
		return false
	}
	// A 4xx answer other than 408/429 is about the request, not the upstream.
	code := StatusCode(err)
	return code == 0 || IsTransientHTTPStatus(code)
}

func (b *Breaker) moveTo(to BreakerState) {
	from := b.state
	if from == to {
		return
	}
	b.state = to

	log := zap.L().With(
		zap.String("service", b.cfg.Service),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
	if to == BreakerOpen {
		log.Warn("resilience: breaker opened", zap.Int("failures", b.failures), zap.Duration("cooldown", b.cfg.Cooldown))
	} else {
		log.Info("resilience: breaker state changed")
	}

	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(from, to)
	}
}
