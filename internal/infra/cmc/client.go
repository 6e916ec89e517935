// Package cmc is a pull price adapter for the CoinMarketCap Pro API.
package cmc

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/serp1412/coinfeed/internal/domain"
	"github.com/serp1412/coinfeed/internal/infra/rest"
)

const (
	Source         = "CMC"
	DefaultBaseURL = "https://pro-api.coinmarketcap.com/v1"
	apiKeyHeader   = "X-CMC_PRO_API_KEY"
)

type quotesResponse struct {
	Data map[string]struct {
		Symbol string `json:"symbol"`
		Quote  struct {
			USD struct {
				Price decimal.Decimal `json:"price"`
			} `json:"USD"`
		} `json:"quote"`
	} `json:"data"`
}

type Client struct {
	baseURL string
	apiKey  string
	client  *rest.Client
}

func NewClient(baseURL, apiKey string, opts ...rest.ClientOption) *Client {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		baseURL: base,
		apiKey:  apiKey,
		client:  rest.NewClient(opts...),
	}
}

func (c *Client) Name() string { return Source }

func (c *Client) FetchOne(ctx context.Context, symbol string) (domain.CoinPrice, error) {
	prices, err := c.FetchMany(ctx, []string{symbol})
	if err != nil {
		return domain.CoinPrice{}, err
	}
	if p, ok := prices[domain.NormalizeSymbol(symbol)]; ok {
		return p, nil
	}
	return domain.CoinPrice{}, domain.ErrNoData
}

// FetchMany issues one batched quotes/latest call for all symbols.
func (c *Client) FetchMany(ctx context.Context, symbols []string) (map[string]domain.CoinPrice, error) {
	syms := domain.NormalizeSymbols(symbols)
	out := make(map[string]domain.CoinPrice, len(syms))
	if len(syms) == 0 {
		return out, nil
	}

	q := url.Values{}
	q.Set("symbol", strings.Join(syms, ","))
	q.Set("convert", "USD")

	header := http.Header{}
	header.Set(apiKeyHeader, c.apiKey)

	resp, err := rest.Do[quotesResponse](ctx, c.client, rest.Request{
		URL:    c.baseURL + "/cryptocurrency/quotes/latest?" + q.Encode(),
		Header: header,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("cmc quotes: %w", err)
	}

	for key, row := range resp.Data {
		symbol := domain.NormalizeSymbol(row.Symbol)
		if symbol == "" {
			symbol = domain.NormalizeSymbol(key)
		}
		out[domain.NormalizeSymbol(key)] = domain.CoinPrice{
			Source: Source,
			Symbol: symbol,
			Price:  row.Quote.USD.Price,
		}
	}
	return out, nil
}
