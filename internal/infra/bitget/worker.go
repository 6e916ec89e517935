// Package bitget is a push price adapter for the Bitget v2 public spot ticker channel.
package bitget

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/serp1412/coinfeed/internal/domain"
	"github.com/serp1412/coinfeed/internal/infra"
	"github.com/serp1412/coinfeed/pkg/quant"
)

// SpotWorker streams spot tickers using BaseWSWorker.
// Instruments are the symbol glued to the quote currency, e.g. BTCUSDT.
type SpotWorker struct {
	base  *infra.BaseWSWorker
	url   string
	quote string

	mu       sync.RWMutex
	onUpdate func(domain.CoinPrice)
}

func NewSpotWorker(url, quoteCurrency string) *SpotWorker {
	if url == "" {
		url = DefaultWSURL
	}
	if quoteCurrency == "" {
		quoteCurrency = "USDT"
	}
	w := &SpotWorker{
		url:   url,
		quote: strings.ToUpper(quoteCurrency),
	}
	w.base = infra.NewBaseWSWorker(w)
	return w
}

func (w *SpotWorker) ID() string     { return Source }
func (w *SpotWorker) Name() string   { return Source }
func (w *SpotWorker) GetURL() string { return w.url }

func (w *SpotWorker) Connect(ctx context.Context) error {
	return w.base.Start(ctx)
}

func (w *SpotWorker) Disconnect() {
	w.base.Stop()
}

func (w *SpotWorker) State() infra.ConnState { return w.base.State() }
func (w *SpotWorker) Done() <-chan struct{}  { return w.base.Done() }

func (w *SpotWorker) Subscribe(symbol string) error   { return w.send("subscribe", symbol) }
func (w *SpotWorker) Unsubscribe(symbol string) error { return w.send("unsubscribe", symbol) }

func (w *SpotWorker) OnUpdate(fn func(domain.CoinPrice)) {
	w.mu.Lock()
	w.onUpdate = fn
	w.mu.Unlock()
}

func (w *SpotWorker) send(op, symbol string) error {
	b, err := json.Marshal(subscribeRequest{
		Op: op,
		Args: []subscribeArg{{
			InstType: instTypeSpot,
			Channel:  tickerChannel,
			InstID:   domain.NormalizeSymbol(symbol) + w.quote,
		}},
	})
	if err != nil {
		return err
	}
	return w.base.Write(websocket.TextMessage, b)
}

func (w *SpotWorker) OnConnect(ctx context.Context, conn *websocket.Conn) error {
	return nil
}

// OnMessage forwards every row of a ticker frame. Other frames are dropped.
func (w *SpotWorker) OnMessage(ctx context.Context, msg []byte) {
	if string(msg) == "pong" {
		return
	}

	var resp tickerResponse
	if err := json.Unmarshal(msg, &resp); err != nil {
		return
	}
	if resp.Arg.Channel != tickerChannel || len(resp.Data) == 0 {
		return
	}

	w.mu.RLock()
	fn := w.onUpdate
	w.mu.RUnlock()
	if fn == nil {
		return
	}

	for _, row := range resp.Data {
		if p, ok := w.convert(row); ok {
			fn(p)
		}
	}
}

func (w *SpotWorker) OnPing(ctx context.Context, conn *websocket.Conn) error {
	return w.base.Write(websocket.TextMessage, []byte("ping"))
}

func (w *SpotWorker) convert(row tickerData) (domain.CoinPrice, bool) {
	symbol, ok := strings.CutSuffix(strings.ToUpper(row.InstID), w.quote)
	if !ok || symbol == "" {
		return domain.CoinPrice{}, false
	}
	price, err := quant.ParsePrice(row.LastPr)
	if err != nil {
		return domain.CoinPrice{}, false
	}
	return domain.CoinPrice{Source: Source, Symbol: symbol, Price: price}, true
}
