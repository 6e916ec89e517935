// Package provider defines the capabilities the engine needs from price sources
// and builds the configured set of them.
package provider

import (
	"context"

	"github.com/serp1412/coinfeed/internal/domain"
	"github.com/serp1412/coinfeed/internal/infra"
)

// CatalogSource returns the asset listing one page at a time.
type CatalogSource interface {
	// FetchPage returns page (1-based) of size pageSize. Every coin carries an initial quote.
	FetchPage(ctx context.Context, pageSize, page int) ([]domain.Coin, error)
}

// PullAdapter answers price requests on demand.
type PullAdapter interface {
	Name() string

	// FetchOne returns domain.ErrNoData when the source has nothing for symbol.
	FetchOne(ctx context.Context, symbol string) (domain.CoinPrice, error)

	// FetchMany returns prices keyed by upper-case symbol. Symbols the source
	// did not answer are absent from the map.
	FetchMany(ctx context.Context, symbols []string) (map[string]domain.CoinPrice, error)
}

// PushAdapter streams prices over a long-lived connection.
type PushAdapter interface {
	Name() string

	// Connect is a no-op while connecting or connected.
	Connect(ctx context.Context) error
	Disconnect()

	// Subscribe and Unsubscribe send a control frame without waiting for an ack.
	Subscribe(symbol string) error
	Unsubscribe(symbol string) error

	// OnUpdate installs the callback invoked on the receive goroutine, in arrival order.
	OnUpdate(fn func(domain.CoinPrice))

	State() infra.ConnState

	// Done is closed when the current receive loop exits.
	Done() <-chan struct{}
}
