package domain

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/serp1412/coinfeed/pkg/quant"
)

// ErrNoData is returned by a price source that answered with an empty result set.
var ErrNoData = errors.New("no data")

// Change is the direction of a source's price relative to its previous quote.
type Change string

const (
	ChangeNone     Change = ""
	ChangeIncrease Change = "increase"
	ChangeDecrease Change = "decrease"
)

// CoinPrice is one source's price observation for a symbol.
// Values are never modified once built; a merge produces a new CoinPrice.
type CoinPrice struct {
	Source string          `json:"source"` // "CG", "CMC", "OKX", ...
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
	Change Change          `json:"change,omitempty"`
}

// WithChange returns a copy of p tagged with the given direction.
func (p CoinPrice) WithChange(c Change) CoinPrice {
	p.Change = c
	return p
}

// Coin is a tracked asset. Identity fields come from the catalog and never change;
// Prices holds at most one quote per source, ordered by recency of update.
type Coin struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	Image     string          `json:"image"`
	MarketCap decimal.Decimal `json:"market_cap"`
	Volume    int64           `json:"volume"`
	Prices    []CoinPrice     `json:"prices"`
}

// Update returns a copy of c with price merged into its quote list.
func (c Coin) Update(price CoinPrice) Coin {
	c.Prices = Merge(c.Prices, price)
	return c
}

// Clone returns a deep copy so callers cannot alias the owner's quote slice.
func (c Coin) Clone() Coin {
	if c.Prices != nil {
		prices := make([]CoinPrice, len(c.Prices))
		copy(prices, c.Prices)
		c.Prices = prices
	}
	return c
}

// BestPrice returns the cheapest quote across all sources.
func (c Coin) BestPrice() (CoinPrice, bool) {
	if len(c.Prices) == 0 {
		return CoinPrice{}, false
	}
	best := c.Prices[0]
	for _, p := range c.Prices[1:] {
		if p.Price.LessThan(best.Price) {
			best = p
		}
	}
	return best, true
}

// PriceFrom returns the quote currently held for source.
func (c Coin) PriceFrom(source string) (CoinPrice, bool) {
	for _, p := range c.Prices {
		if p.Source == source {
			return p, true
		}
	}
	return CoinPrice{}, false
}

// Merge returns the quote list that results from applying incoming to existing.
//
// A prior quote from the same source is removed and its price decides the
// direction tag of incoming; incoming is always appended last. existing is
// never written to.
func Merge(existing []CoinPrice, incoming CoinPrice) []CoinPrice {
	out := make([]CoinPrice, 0, len(existing)+1)
	change := ChangeNone

	for _, p := range existing {
		if p.Source != incoming.Source {
			out = append(out, p)
			continue
		}
		switch quant.Direction(p.Price, incoming.Price) {
		case 1:
			change = ChangeIncrease
		case -1:
			change = ChangeDecrease
		}
	}

	return append(out, incoming.WithChange(change))
}
