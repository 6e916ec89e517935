package coingecko

import "github.com/shopspring/decimal"

// marketRow is one element of GET /coins/markets.
type marketRow struct {
	ID           string          `json:"id"`
	Symbol       string          `json:"symbol"`
	Image        string          `json:"image"`
	MarketCap    decimal.Decimal `json:"market_cap"`
	TotalVolume  decimal.Decimal `json:"total_volume"`
	CurrentPrice decimal.Decimal `json:"current_price"`
}

// simplePriceResponse is GET /simple/price keyed by lower-case symbol, then currency.
type simplePriceResponse map[string]map[string]decimal.Decimal
