// Package coingecko is the asset catalog source. It pages through /coins/markets
// and can also be polled for spot prices through /simple/price.
package coingecko

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/serp1412/coinfeed/internal/domain"
	"github.com/serp1412/coinfeed/internal/infra/rest"
)

// Source tags every quote produced from CoinGecko data.
const Source = "CG"

const (
	DefaultBaseURL = "https://api.coingecko.com/api/v3"
	vsCurrency     = "usd"
)

type Catalog struct {
	baseURL string
	apiKey  string
	client  *rest.Client
}

// NewCatalog creates a catalog against baseURL (DefaultBaseURL when empty).
// apiKey is optional; the public API works without one.
func NewCatalog(baseURL, apiKey string, opts ...rest.ClientOption) *Catalog {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &Catalog{
		baseURL: base,
		apiKey:  apiKey,
		client:  rest.NewClient(opts...),
	}
}

func (c *Catalog) Name() string { return Source }

// FetchPage returns page (1-based) of the market-cap ordered listing.
// Each coin carries its catalog price as the first quote.
func (c *Catalog) FetchPage(ctx context.Context, pageSize, page int) ([]domain.Coin, error) {
	q := url.Values{}
	q.Set("vs_currency", vsCurrency)
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(pageSize))
	q.Set("page", strconv.Itoa(page))

	rows, err := rest.Do[[]marketRow](ctx, c.client, c.request("/coins/markets", q), nil)
	if err != nil {
		return nil, fmt.Errorf("coingecko markets page %d: %w", page, err)
	}

	coins := make([]domain.Coin, 0, len(rows))
	for _, r := range rows {
		symbol := domain.NormalizeSymbol(r.Symbol)
		coins = append(coins, domain.Coin{
			ID:        r.ID,
			Symbol:    symbol,
			Image:     r.Image,
			MarketCap: r.MarketCap,
			Volume:    r.TotalVolume.IntPart(),
			Prices: []domain.CoinPrice{{
				Source: Source,
				Symbol: symbol,
				Price:  r.CurrentPrice,
			}},
		})
	}
	return coins, nil
}

// FetchOne returns the USD spot price of symbol, or domain.ErrNoData.
func (c *Catalog) FetchOne(ctx context.Context, symbol string) (domain.CoinPrice, error) {
	prices, err := c.FetchMany(ctx, []string{symbol})
	if err != nil {
		return domain.CoinPrice{}, err
	}
	p, ok := prices[domain.NormalizeSymbol(symbol)]
	if !ok {
		return domain.CoinPrice{}, domain.ErrNoData
	}
	return p, nil
}

// FetchMany returns the prices CoinGecko knows for symbols; unknown symbols are absent.
func (c *Catalog) FetchMany(ctx context.Context, symbols []string) (map[string]domain.CoinPrice, error) {
	syms := domain.NormalizeSymbols(symbols)
	out := make(map[string]domain.CoinPrice, len(syms))
	if len(syms) == 0 {
		return out, nil
	}

	lower := make([]string, len(syms))
	for i, s := range syms {
		lower[i] = strings.ToLower(s)
	}

	q := url.Values{}
	q.Set("symbols", strings.Join(lower, ","))
	q.Set("vs_currencies", vsCurrency)

	resp, err := rest.Do[simplePriceResponse](ctx, c.client, c.request("/simple/price", q), nil)
	if err != nil {
		return nil, fmt.Errorf("coingecko simple price: %w", err)
	}

	for key, quotes := range resp {
		price, ok := quotes[vsCurrency]
		if !ok {
			continue
		}
		symbol := domain.NormalizeSymbol(key)
		out[symbol] = domain.CoinPrice{Source: Source, Symbol: symbol, Price: price}
	}
	return out, nil
}

func (c *Catalog) request(path string, q url.Values) rest.Request {
	req := rest.Request{
		URL:    c.baseURL + path + "?" + q.Encode(),
		Method: http.MethodGet,
	}
	if c.apiKey != "" {
		req.Header = http.Header{}
		header := "x-cg-demo-api-key"
		if strings.Contains(c.baseURL, "pro-api.coingecko.com") {
			header = "x-cg-pro-api-key"
		}
		req.Header.Set(header, c.apiKey)
	}
	return req
}
