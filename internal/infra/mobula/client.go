// Package mobula is a pull price adapter for the Mobula market API.
package mobula

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/serp1412/coinfeed/internal/domain"
	"github.com/serp1412/coinfeed/internal/infra/rest"
)

const (
	Source         = "MOBULA"
	DefaultBaseURL = "https://api.mobula.io"
)

// multiDataResponse comes in two shapes: "data" keyed by the requested symbol,
// or "dataArray" as a list of rows.
type multiDataResponse struct {
	Data      json.RawMessage `json:"data"`
	DataArray []assetRow      `json:"dataArray"`
}

type assetRow struct {
	Symbol string           `json:"symbol"`
	Price  *decimal.Decimal `json:"price"`
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
	p, ok := prices[domain.NormalizeSymbol(symbol)]
	if !ok {
		return domain.CoinPrice{}, domain.ErrNoData
	}
	return p, nil
}

func (c *Client) FetchMany(ctx context.Context, symbols []string) (map[string]domain.CoinPrice, error) {
	syms := domain.NormalizeSymbols(symbols)
	out := make(map[string]domain.CoinPrice, len(syms))
	if len(syms) == 0 {
		return out, nil
	}

	q := url.Values{}
	q.Set("symbols", strings.Join(syms, ","))

	header := http.Header{}
	header.Set("Authorization", c.apiKey)

	resp, err := rest.Do[multiDataResponse](ctx, c.client, rest.Request{
		URL:    c.baseURL + "/api/1/market/multi-data?" + q.Encode(),
		Header: header,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("mobula multi-data: %w", err)
	}

	rows, err := resp.rows()
	if err != nil {
		return nil, fmt.Errorf("mobula multi-data: %w: %v", rest.ErrDecoding, err)
	}

	for key, row := range rows {
		if row.Price == nil {
			continue
		}
		symbol := domain.NormalizeSymbol(key)
		if symbol == "" {
			continue
		}
		out[symbol] = domain.CoinPrice{Source: Source, Symbol: symbol, Price: *row.Price}
	}
	return out, nil
}

func (r multiDataResponse) rows() (map[string]assetRow, error) {
	rows := make(map[string]assetRow)

	if len(r.Data) > 0 && string(r.Data) != "null" {
		switch r.Data[0] {
		case '{':
			var keyed map[string]*assetRow
			if err := json.Unmarshal(r.Data, &keyed); err != nil {
				return nil, err
			}
			for key, row := range keyed {
				if row != nil {
					rows[key] = *row
				}
			}
		case '[':
			var list []assetRow
			if err := json.Unmarshal(r.Data, &list); err != nil {
				return nil, err
			}
			for _, row := range list {
				rows[row.Symbol] = row
			}
		default:
			return nil, fmt.Errorf("unexpected data shape")
		}
	}

	for _, row := range r.DataArray {
		rows[row.Symbol] = row
	}
	return rows, nil
}
