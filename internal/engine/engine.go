// Package engine owns the coin list. A single Run goroutine applies catalog
// pages, pulled quotes and streamed quotes; everything else reads snapshots.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/serp1412/coinfeed/internal/domain"
	"github.com/serp1412/coinfeed/internal/event"
	"github.com/serp1412/coinfeed/internal/infra"
	"github.com/serp1412/coinfeed/internal/provider"
)

var (
	// ErrUnknownCoin is returned by RefreshCoin for an id that was never loaded.
	ErrUnknownCoin = errors.New("unknown coin")
	// ErrStopped is returned when the Run loop is gone before a load could be applied.
	ErrStopped = errors.New("engine stopped")
)

const (
	DefaultPageSize  = 20
	DefaultInboxSize = 1024
	firstPage        = 1
)

// Observer receives engine lifecycle signals (metrics).
type Observer interface {
	PageLoaded(page, coins int, took time.Duration)
	PageFailed(page int, err error)
	PullFailed(source string, err error)
	QuoteApplied(source string)
	QuoteDropped(source, symbol string)
}

type nopObserver struct{}

func (nopObserver) PageLoaded(int, int, time.Duration) {}
func (nopObserver) PageFailed(int, error)              {}
func (nopObserver) PullFailed(string, error)           {}
func (nopObserver) QuoteApplied(string)                {}
func (nopObserver) QuoteDropped(string, string)        {}

// Status is a point-in-time view of the load state.
type Status struct {
	Loaded    bool           `json:"loaded"`
	Loading   bool           `json:"loading"`
	Page      int            `json:"page"` // next catalog page to load
	Coins     int            `json:"count"`
	Processed uint64         `json:"processed_events"`
	Streams   []StreamStatus `json:"streams"`
}

type StreamStatus struct {
	Source string `json:"source"`
	State  string `json:"state"`
}

type Option func(*Engine)

func WithPageSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.pageSize = n
		}
	}
}

func WithInboxSize(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.inboxSize = n
		}
	}
}

// WithOnUpdate registers a callback invoked on the Run goroutine with a copy
// of every coin that was appended or changed. It must not block for long.
func WithOnUpdate(fn func(domain.Coin)) Option {
	return func(e *Engine) { e.onUpdate = fn }
}

// WithReconnect makes Setup start one supervisor per push adapter.
func WithReconnect(on bool) Option {
	return func(e *Engine) { e.reconnect = on }
}

func WithBackoff(b infra.Backoff) Option {
	return func(e *Engine) { e.backoff = b }
}

func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.obs = o
		}
	}
}

// WithDumpPath sets where the state is written if Run panics.
func WithDumpPath(path string) Option {
	return func(e *Engine) { e.dumpPath = path }
}

// Engine is the aggregation engine.
type Engine struct {
	catalog provider.CatalogSource
	pulls   []provider.PullAdapter
	pushes  []provider.PushAdapter

	pageSize  int
	inboxSize int
	reconnect bool
	backoff   infra.Backoff
	onUpdate  func(domain.Coin)
	obs       Observer
	dumpPath  string

	inbox   chan event.Event
	stop    chan struct{} // closed by Shutdown
	started chan struct{} // closed when Run begins draining the inbox
	done    chan struct{} // closed when Run returns
	running atomic.Bool
	loading atomic.Bool

	// Run is the only writer; mu lets readers take consistent snapshots.
	mu        sync.RWMutex
	coins     []domain.Coin
	bySymbol  map[string]int // first coin holding a symbol
	byID      map[string]int
	cursor    int
	loaded    bool
	processed uint64

	subMu      sync.Mutex
	subscribed []string
	subSet     map[string]struct{}

	setupMu    sync.Mutex
	supStarted bool
	supCancel  context.CancelFunc
	supWG      sync.WaitGroup

	shutdownOnce sync.Once
}

func New(catalog provider.CatalogSource, pulls []provider.PullAdapter, pushes []provider.PushAdapter, opts ...Option) *Engine {
	e := &Engine{
		catalog:   catalog,
		pulls:     pulls,
		pushes:    pushes,
		pageSize:  DefaultPageSize,
		inboxSize: DefaultInboxSize,
		backoff:   infra.DefaultBackoff,
		obs:       nopObserver{},
		dumpPath:  "panic_dump.json",
		stop:      make(chan struct{}),
		started:   make(chan struct{}),
		done:      make(chan struct{}),
		bySymbol:  make(map[string]int),
		byID:      make(map[string]int),
		cursor:    firstPage,
		subSet:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.inbox = make(chan event.Event, e.inboxSize)
	return e
}

// Run processes the inbox until ctx is done or Shutdown is called.
// It must run in exactly one goroutine; extra calls return immediately.
func (e *Engine) Run(ctx context.Context) {
	if !e.running.CompareAndSwap(false, true) {
		slog.Warn("Engine Run called twice; ignoring")
		return
	}
	defer close(e.done)
	close(e.started)

	slog.Info("Engine started",
		slog.Int("pull_adapters", len(e.pulls)),
		slog.Int("push_adapters", len(e.pushes)),
		slog.Int("page_size", e.pageSize))

	defer func() {
		if r := recover(); r != nil {
			slog.Error("CRITICAL_PANIC_DETECTED", slog.Any("panic", r))
			e.DumpState(e.dumpPath)
			panic(fmt.Sprintf("HALTED: %v", r))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Engine stopping...")
			return
		case <-e.stop:
			slog.Info("Engine stopping (shutdown)")
			return
		case ev := <-e.inbox:
			e.processEvent(ev)
		}
	}
}

func (e *Engine) processEvent(ev event.Event) {
	switch ev := ev.(type) {
	case *event.QuoteEvent:
		e.applyQuote(ev.Price)
	case *event.PageEvent:
		e.applyPage(ev)
	case *event.RefreshEvent:
		e.applyRefresh(ev)
	default:
		slog.Warn("Unknown event type", slog.Any("type", ev.GetType()))
	}

	e.mu.Lock()
	e.processed++
	e.mu.Unlock()
}

func (e *Engine) applyQuote(p domain.CoinPrice) {
	e.mu.Lock()
	idx, ok := e.bySymbol[p.Symbol]
	if !ok {
		e.mu.Unlock()
		e.obs.QuoteDropped(p.Source, p.Symbol)
		return
	}
	e.coins[idx] = e.coins[idx].Update(p)
	updated := e.coins[idx].Clone()
	e.mu.Unlock()

	e.obs.QuoteApplied(p.Source)
	e.notify(updated)
}

func (e *Engine) applyPage(ev *event.PageEvent) {
	defer close(ev.Ack)

	e.mu.Lock()
	start := len(e.coins)
	for _, c := range ev.Coins {
		idx := len(e.coins)
		e.coins = append(e.coins, c)
		if _, ok := e.bySymbol[c.Symbol]; !ok {
			e.bySymbol[c.Symbol] = idx
		}
		if _, ok := e.byID[c.ID]; !ok {
			e.byID[c.ID] = idx
		}
	}
	e.cursor++
	e.loaded = true
	added := make([]domain.Coin, 0, len(e.coins)-start)
	for _, c := range e.coins[start:] {
		added = append(added, c.Clone())
	}
	e.mu.Unlock()

	for _, c := range added {
		e.notify(c)
	}
}

func (e *Engine) applyRefresh(ev *event.RefreshEvent) {
	defer close(ev.Ack)

	e.mu.Lock()
	idx, ok := e.byID[ev.CoinID]
	if !ok {
		e.mu.Unlock()
		return
	}
	for _, p := range ev.Prices {
		e.coins[idx] = e.coins[idx].Update(p)
	}
	updated := e.coins[idx].Clone()
	e.mu.Unlock()

	for _, p := range ev.Prices {
		e.obs.QuoteApplied(p.Source)
	}
	if len(ev.Prices) > 0 {
		e.notify(updated)
	}
}

func (e *Engine) notify(c domain.Coin) {
	if e.onUpdate != nil {
		e.onUpdate(c)
	}
}

// enqueue hands ev to Run. It fails only when the engine is gone or ctx ends.
func (e *Engine) enqueue(ctx context.Context, ev event.Event) error {
	select {
	case <-e.stop:
		return ErrStopped
	case <-e.done:
		return ErrStopped
	default:
	}

	select {
	case e.inbox <- ev:
		return nil
	case <-e.done:
		return ErrStopped
	case <-e.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// waitRunning blocks until Run has started, so an acked event is never queued
// on an engine nobody drains.
func (e *Engine) waitRunning(ctx context.Context) error {
	select {
	case <-e.started:
		return nil
	case <-e.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// await waits for Run to apply an acked event. The event is already queued,
// so ctx is not consulted: the load finishes even if the caller gave up.
func (e *Engine) await(ack <-chan struct{}) error {
	select {
	case <-ack:
		return nil
	case <-e.done:
		return ErrStopped
	case <-e.stop:
		return ErrStopped
	}
}

// Coins returns a deep copy of the coin list in load order.
func (e *Engine) Coins() []domain.Coin {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]domain.Coin, len(e.coins))
	for i, c := range e.coins {
		out[i] = c.Clone()
	}
	return out
}

// Coin returns a copy of the coin with the given id.
func (e *Engine) Coin(id string) (domain.Coin, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	idx, ok := e.byID[id]
	if !ok {
		return domain.Coin{}, false
	}
	return e.coins[idx].Clone(), true
}

func (e *Engine) Status() Status {
	e.mu.RLock()
	s := Status{
		Loaded:    e.loaded,
		Loading:   e.loading.Load(),
		Page:      e.cursor,
		Coins:     len(e.coins),
		Processed: e.processed,
	}
	e.mu.RUnlock()

	for _, p := range e.pushes {
		s.Streams = append(s.Streams, StreamStatus{Source: p.Name(), State: p.State().String()})
	}
	return s
}

// Shutdown stops the Run loop and the reconnect supervisors, then disconnects
// every push adapter. Safe to call more than once.
func (e *Engine) Shutdown() {
	e.shutdownOnce.Do(func() {
		close(e.stop)

		e.setupMu.Lock()
		cancel := e.supCancel
		e.setupMu.Unlock()
		if cancel != nil {
			cancel()
		}
		e.supWG.Wait()

		for _, p := range e.pushes {
			p.Disconnect()
		}
		slog.Info("Engine shut down")
	})
}

// DumpState writes the coin list and cursor to a file (for post-mortem).
func (e *Engine) DumpState(filename string) {
	slog.Info("Dumping internal state...", slog.String("file", filename))

	// The panic may have left mu held.
	if e.mu.TryRLock() {
		defer e.mu.RUnlock()
	}

	data := struct {
		Cursor    int           `json:"cursor"`
		Loaded    bool          `json:"loaded"`
		Processed uint64        `json:"processed_events"`
		Coins     []domain.Coin `json:"coins"`
	}{
		Cursor:    e.cursor,
		Loaded:    e.loaded,
		Processed: e.processed,
		Coins:     e.coins,
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		slog.Error("Failed to marshal state", slog.Any("error", err))
		return
	}

	if err := os.WriteFile(filename, b, 0644); err != nil {
		slog.Error("Failed to write state dump", slog.Any("error", err))
	}
}
