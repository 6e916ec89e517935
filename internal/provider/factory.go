package provider

import (
	"log/slog"

	"github.com/serp1412/coinfeed/internal/infra"
	"github.com/serp1412/coinfeed/internal/infra/bitget"
	"github.com/serp1412/coinfeed/internal/infra/cmc"
	"github.com/serp1412/coinfeed/internal/infra/coingecko"
	"github.com/serp1412/coinfeed/internal/infra/mobula"
	"github.com/serp1412/coinfeed/internal/infra/okx"
	"github.com/serp1412/coinfeed/internal/infra/rest"
)

// Set is every price source the engine is wired to.
type Set struct {
	Catalog CatalogSource
	Pulls   []PullAdapter
	Pushes  []PushAdapter
}

// NewFromConfig builds the catalog and the enabled adapters.
// Pull adapters get a circuit breaker when engine.breaker.enabled is set.
func NewFromConfig(cfg *infra.Config) Set {
	var opts []rest.ClientOption
	if l := infra.NewPerMinuteLimiter(cfg.Catalog.RequestsPerMinute); l != nil {
		opts = append(opts, rest.WithLimiter(l))
	}
	catalog := coingecko.NewCatalog(cfg.Catalog.BaseURL, cfg.Catalog.APIKey, opts...)
	set := Set{Catalog: catalog}

	p := cfg.Providers
	if p.CoinGecko.Enabled {
		set.Pulls = append(set.Pulls, catalog)
	}
	if p.CMC.Enabled {
		set.Pulls = append(set.Pulls, cmc.NewClient(p.CMC.BaseURL, p.CMC.APIKey))
	}
	if p.Mobula.Enabled {
		set.Pulls = append(set.Pulls, mobula.NewClient(p.Mobula.BaseURL, p.Mobula.APIKey))
	}
	if p.OKX.Enabled {
		set.Pushes = append(set.Pushes, okx.NewWorker(p.OKX.WSURL, p.OKX.QuoteCurrency))
	}
	if p.Bitget.Enabled {
		set.Pushes = append(set.Pushes, bitget.NewSpotWorker(p.Bitget.WSURL, p.Bitget.QuoteCurrency))
	}

	if cfg.Engine.Breaker.Enabled {
		for i, a := range set.Pulls {
			cb := infra.NewCircuitBreaker(infra.BreakerConfigFor(a.Name(), cfg))
			set.Pulls[i] = WithBreaker(a, cb)
		}
	}

	slog.Info("Price sources configured",
		slog.Int("pull", len(set.Pulls)),
		slog.Int("push", len(set.Pushes)),
		slog.Any("names", set.Names()))

	return set
}

// Names lists the adapter sources, pull adapters first.
func (s Set) Names() []string {
	names := make([]string, 0, len(s.Pulls)+len(s.Pushes))
	for _, a := range s.Pulls {
		names = append(names, a.Name())
	}
	for _, a := range s.Pushes {
		names = append(names, a.Name())
	}
	return names
}
