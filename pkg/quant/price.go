package quant

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DisplayPlaces is the number of decimal places used when a price is rendered.
const DisplayPlaces = 6

var (
	ErrEmptyPrice    = errors.New("empty price")
	ErrNegativePrice = errors.New("negative price")
)

// ParsePrice converts an exchange price string (e.g. "51000.1") to a decimal.
// Prices are never negative; "null" and blank strings are rejected.
func ParsePrice(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return decimal.Zero, ErrEmptyPrice
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse price %q: %w", s, err)
	}
	if d.IsNegative() {
		return decimal.Zero, ErrNegativePrice
	}
	return d, nil
}

// MustPrice is ParsePrice for literals known to be valid. It panics otherwise.
func MustPrice(s string) decimal.Decimal {
	d, err := ParsePrice(s)
	if err != nil {
		panic(err)
	}
	return d
}

// FormatPrice renders a price with trailing zeros trimmed, at most DisplayPlaces decimals.
func FormatPrice(d decimal.Decimal) string {
	return d.Round(DisplayPlaces).String()
}

// Direction compares two prices: +1 when next > prev, -1 when next < prev, 0 when equal.
func Direction(prev, next decimal.Decimal) int {
	return next.Cmp(prev)
}
