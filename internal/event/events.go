// Package event defines the messages the engine's Run loop consumes.
// Anything that changes the coin list travels through the inbox as one of these.
package event

import (
	"time"

	"github.com/serp1412/coinfeed/internal/domain"
)

// Type defines the type of event.
type Type uint16

const (
	EvQuote Type = iota + 1
	EvPage
	EvRefresh
)

func (t Type) String() string {
	switch t {
	case EvQuote:
		return "QUOTE"
	case EvPage:
		return "PAGE"
	case EvRefresh:
		return "REFRESH"
	default:
		return "UNKNOWN"
	}
}

// Event is the interface for all engine events.
type Event interface {
	GetTs() time.Time
	GetType() Type
}

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	Ts time.Time `json:"ts"`
}

func (e BaseEvent) GetTs() time.Time { return e.Ts }

// QuoteEvent is one streamed price. It is applied to the first coin holding
// Price.Symbol when the event is processed, not when it was produced.
type QuoteEvent struct {
	BaseEvent
	Price domain.CoinPrice `json:"price"`
}

func (e *QuoteEvent) GetType() Type { return EvQuote }

// NewQuoteEvent stamps p with the current time.
func NewQuoteEvent(p domain.CoinPrice) *QuoteEvent {
	return &QuoteEvent{BaseEvent: BaseEvent{Ts: time.Now()}, Price: p}
}

// PageEvent appends a fully merged catalog page. Ack is closed once applied.
type PageEvent struct {
	BaseEvent
	Page  int           `json:"page"`
	Coins []domain.Coin `json:"coins"`
	Ack   chan struct{} `json:"-"`
}

func (e *PageEvent) GetType() Type { return EvPage }

func NewPageEvent(page int, coins []domain.Coin) *PageEvent {
	return &PageEvent{
		BaseEvent: BaseEvent{Ts: time.Now()},
		Page:      page,
		Coins:     coins,
		Ack:       make(chan struct{}),
	}
}

// RefreshEvent merges prices into one coin chosen by ID, in slice order.
type RefreshEvent struct {
	BaseEvent
	CoinID string             `json:"coin_id"`
	Prices []domain.CoinPrice `json:"prices"`
	Ack    chan struct{}      `json:"-"`
}

func (e *RefreshEvent) GetType() Type { return EvRefresh }

func NewRefreshEvent(coinID string, prices []domain.CoinPrice) *RefreshEvent {
	return &RefreshEvent{
		BaseEvent: BaseEvent{Ts: time.Now()},
		CoinID:    coinID,
		Prices:    prices,
		Ack:       make(chan struct{}),
	}
}
