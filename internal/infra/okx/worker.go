// Package okx is a push price adapter for the OKX v5 public tickers channel.
package okx

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

const (
	Source        = "OKX"
	DefaultWSURL  = "wss://ws.okx.com:8443/ws/v5/public"
	tickerChannel = "tickers"
)

// Worker streams ticker updates from OKX using BaseWSWorker.
type Worker struct {
	base  *infra.BaseWSWorker
	url   string
	quote string

	mu       sync.RWMutex
	onUpdate func(domain.CoinPrice)
}

// NewWorker creates a worker quoting every symbol against quoteCurrency (e.g. USDT).
func NewWorker(url, quoteCurrency string) *Worker {
	if url == "" {
		url = DefaultWSURL
	}
	if quoteCurrency == "" {
		quoteCurrency = "USDT"
	}
	w := &Worker{
		url:   url,
		quote: strings.ToUpper(quoteCurrency),
	}
	w.base = infra.NewBaseWSWorker(w)
	return w
}

func (w *Worker) ID() string     { return Source }
func (w *Worker) Name() string   { return Source }
func (w *Worker) GetURL() string { return w.url }

// Connect dials OKX. Calling it while connecting or connected does nothing.
func (w *Worker) Connect(ctx context.Context) error {
	return w.base.Start(ctx)
}

func (w *Worker) Disconnect() {
	w.base.Stop()
}

func (w *Worker) State() infra.ConnState { return w.base.State() }
func (w *Worker) Done() <-chan struct{}  { return w.base.Done() }

// Subscribe sends a tickers subscription for symbol quoted in the worker's currency.
func (w *Worker) Subscribe(symbol string) error { return w.send("subscribe", symbol) }

func (w *Worker) Unsubscribe(symbol string) error { return w.send("unsubscribe", symbol) }

// OnUpdate installs the delivery callback, replacing any previous one.
func (w *Worker) OnUpdate(fn func(domain.CoinPrice)) {
	w.mu.Lock()
	w.onUpdate = fn
	w.mu.Unlock()
}

func (w *Worker) send(op, symbol string) error {
	b, err := json.Marshal(controlFrame{
		Op:   op,
		Args: []channelArg{{Channel: tickerChannel, InstID: w.instID(symbol)}},
	})
	if err != nil {
		return err
	}
	return w.base.Write(websocket.TextMessage, b)
}

func (w *Worker) instID(symbol string) string {
	return domain.NormalizeSymbol(symbol) + "-" + w.quote
}

// OnConnect sends nothing; subscriptions are driven by the caller.
func (w *Worker) OnConnect(ctx context.Context, conn *websocket.Conn) error {
	return nil
}

// OnMessage converts a ticker frame into a quote. Acks, errors, "pong" and
// anything else that does not decode are dropped.
func (w *Worker) OnMessage(ctx context.Context, msg []byte) {
	price, ok := parseTicker(msg)
	if !ok {
		return
	}

	w.mu.RLock()
	fn := w.onUpdate
	w.mu.RUnlock()

	if fn != nil {
		fn(price)
	}
}

// OnPing keeps the session alive; OKX closes idle connections after 30s.
func (w *Worker) OnPing(ctx context.Context, conn *websocket.Conn) error {
	return w.base.Write(websocket.TextMessage, []byte("ping"))
}

func parseTicker(msg []byte) (domain.CoinPrice, bool) {
	var frame tickerFrame
	if err := json.Unmarshal(msg, &frame); err != nil || len(frame.Data) == 0 {
		return domain.CoinPrice{}, false
	}

	row := frame.Data[0]
	symbol, _, _ := strings.Cut(row.InstID, "-")
	symbol = domain.NormalizeSymbol(symbol)
	if symbol == "" {
		return domain.CoinPrice{}, false
	}

	price, err := quant.ParsePrice(row.Last)
	if err != nil {
		return domain.CoinPrice{}, false
	}

	return domain.CoinPrice{Source: Source, Symbol: symbol, Price: price}, true
}
