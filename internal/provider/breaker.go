package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/serp1412/coinfeed/internal/domain"
	"github.com/serp1412/coinfeed/internal/infra"
)

// ErrBreakerOpen is returned without calling the source while its breaker is open.
var ErrBreakerOpen = errors.New("circuit breaker open")

type breakerAdapter struct {
	next PullAdapter
	cb   *infra.CircuitBreaker
}

// WithBreaker wraps a pull adapter so repeated failures stop further calls
// until the breaker lets a probe through.
func WithBreaker(next PullAdapter, cb *infra.CircuitBreaker) PullAdapter {
	if cb == nil {
		return next
	}
	return &breakerAdapter{next: next, cb: cb}
}

func (b *breakerAdapter) Name() string { return b.next.Name() }

func (b *breakerAdapter) FetchOne(ctx context.Context, symbol string) (domain.CoinPrice, error) {
	if !b.cb.Allow() {
		return domain.CoinPrice{}, fmt.Errorf("%s: %w", b.next.Name(), ErrBreakerOpen)
	}
	p, err := b.next.FetchOne(ctx, symbol)
	b.record(err)
	return p, err
}

func (b *breakerAdapter) FetchMany(ctx context.Context, symbols []string) (map[string]domain.CoinPrice, error) {
	if !b.cb.Allow() {
		return nil, fmt.Errorf("%s: %w", b.next.Name(), ErrBreakerOpen)
	}
	m, err := b.next.FetchMany(ctx, symbols)
	b.record(err)
	return m, err
}

// record counts an answered request as success; an empty answer is not the source failing.
func (b *breakerAdapter) record(err error) {
	switch {
	case err == nil, errors.Is(err, domain.ErrNoData):
		b.cb.RecordSuccess()
	case errors.Is(err, context.Canceled):
	default:
		b.cb.RecordFailure()
	}
}
