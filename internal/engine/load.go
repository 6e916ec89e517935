package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/serp1412/coinfeed/internal/domain"
	"github.com/serp1412/coinfeed/internal/event"
	"github.com/serp1412/coinfeed/internal/provider"
)

// Setup connects every push adapter and installs the quote callback.
// With reconnect enabled it also starts the supervisors, bound to ctx.
// Connect errors are returned joined; the adapters that did connect stay up.
func (e *Engine) Setup(ctx context.Context) error {
	var errs []error
	for _, p := range e.pushes {
		p.OnUpdate(e.handlePush)
		if err := p.Connect(ctx); err != nil {
			slog.Warn("Push adapter connect failed", slog.String("source", p.Name()), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}

	if e.reconnect {
		e.startSupervisors(ctx)
	}
	return errors.Join(errs...)
}

// handlePush runs on an adapter's receive goroutine. Blocking here keeps that
// adapter's quotes in arrival order.
func (e *Engine) handlePush(p domain.CoinPrice) {
	if err := e.enqueue(context.Background(), event.NewQuoteEvent(p)); err != nil {
		e.obs.QuoteDropped(p.Source, p.Symbol)
	}
}

// LoadNextPage fetches the next catalog page, subscribes its symbols on every
// push adapter, merges every pull adapter's answer and appends the page.
//
// A call made while another load is in flight returns nil immediately.
// A catalog failure is returned and leaves the state as it was; pull adapter
// failures are logged and only cost their own quotes.
func (e *Engine) LoadNextPage(ctx context.Context) error {
	if !e.loading.CompareAndSwap(false, true) {
		return nil
	}
	defer e.loading.Store(false)

	if err := e.waitRunning(ctx); err != nil {
		return err
	}

	start := time.Now()

	// Only a load moves the cursor, and loads do not overlap.
	e.mu.RLock()
	page := e.cursor
	e.mu.RUnlock()

	coins, err := e.catalog.FetchPage(ctx, e.pageSize, page)
	if err != nil {
		e.obs.PageFailed(page, err)
		slog.Warn("Catalog page failed", slog.Int("page", page), slog.Any("error", err))
		return fmt.Errorf("load page %d: %w", page, err)
	}

	symbols := make([]string, 0, len(coins))
	for i := range coins {
		coins[i].Symbol = domain.NormalizeSymbol(coins[i].Symbol)
		symbols = append(symbols, coins[i].Symbol)
	}

	e.subscribePage(symbols)
	for _, p := range e.pushes {
		p.OnUpdate(e.handlePush)
	}

	// The page is committed even if the caller leaves, so its pulls must finish too.
	if len(coins) > 0 {
		e.mergePulls(context.WithoutCancel(ctx), coins, domain.NormalizeSymbols(symbols))
	}

	ev := event.NewPageEvent(page, coins)
	if err := e.enqueue(context.WithoutCancel(ctx), ev); err != nil {
		return fmt.Errorf("load page %d: %w", page, err)
	}
	if err := e.await(ev.Ack); err != nil {
		return fmt.Errorf("load page %d: %w", page, err)
	}

	e.obs.PageLoaded(page, len(coins), time.Since(start))
	slog.Info("Page loaded",
		slog.Int("page", page),
		slog.Int("coins", len(coins)),
		slog.Duration("took", time.Since(start)))
	return nil
}

// subscribePage subscribes every push adapter to each coin's symbol, in page order.
func (e *Engine) subscribePage(symbols []string) {
	e.subMu.Lock()
	for _, s := range symbols {
		if _, ok := e.subSet[s]; !ok {
			e.subSet[s] = struct{}{}
			e.subscribed = append(e.subscribed, s)
		}
	}
	e.subMu.Unlock()

	for _, p := range e.pushes {
		for _, s := range symbols {
			if err := p.Subscribe(s); err != nil {
				slog.Debug("Subscribe failed", slog.String("source", p.Name()), slog.String("symbol", s), slog.Any("error", err))
			}
		}
	}
}

// Subscribed returns every symbol handed to the push adapters so far.
func (e *Engine) Subscribed() []string {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	return append([]string(nil), e.subscribed...)
}

type pullResult struct {
	source string
	prices map[string]domain.CoinPrice
	err    error
}

// mergePulls runs FetchMany on every pull adapter in parallel and merges each
// answer into coins as it arrives. It returns once every adapter has finished.
func (e *Engine) mergePulls(ctx context.Context, coins []domain.Coin, symbols []string) {
	results := make(chan pullResult, len(e.pulls))

	var wg sync.WaitGroup
	for _, a := range e.pulls {
		wg.Add(1)
		go func(a provider.PullAdapter) {
			defer wg.Done()
			results <- fetchMany(ctx, a, symbols)
		}(a)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	for r := range results {
		if r.err != nil {
			e.obs.PullFailed(r.source, r.err)
			slog.Warn("Pull adapter failed", slog.String("source", r.source), slog.Any("error", r.err))
			continue
		}
		for i := range coins {
			if p, ok := r.prices[coins[i].Symbol]; ok {
				coins[i] = coins[i].Update(p)
			}
		}
	}
}

func fetchMany(ctx context.Context, a provider.PullAdapter, symbols []string) (res pullResult) {
	res.source = a.Name()
	defer func() {
		if r := recover(); r != nil {
			res.prices = nil
			res.err = fmt.Errorf("panic: %v", r)
		}
	}()
	res.prices, res.err = a.FetchMany(ctx, symbols)
	return res
}

func fetchOne(ctx context.Context, a provider.PullAdapter, symbol string) (p domain.CoinPrice, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return a.FetchOne(ctx, symbol)
}

// RefreshCoin asks every pull adapter for the coin's current price and merges
// the answers, in arrival order, once all adapters have finished.
// Failed adapters are skipped. It returns ErrUnknownCoin for an id never loaded.
func (e *Engine) RefreshCoin(ctx context.Context, id string) error {
	coin, ok := e.Coin(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCoin, id)
	}
	if err := e.waitRunning(ctx); err != nil {
		return err
	}

	type oneResult struct {
		source string
		price  domain.CoinPrice
		err    error
	}
	results := make(chan oneResult, len(e.pulls))

	var wg sync.WaitGroup
	for _, a := range e.pulls {
		wg.Add(1)
		go func(a provider.PullAdapter) {
			defer wg.Done()
			p, err := fetchOne(ctx, a, coin.Symbol)
			results <- oneResult{source: a.Name(), price: p, err: err}
		}(a)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var prices []domain.CoinPrice
	for r := range results {
		if r.err != nil {
			if !errors.Is(r.err, domain.ErrNoData) {
				e.obs.PullFailed(r.source, r.err)
			}
			slog.Debug("Refresh skipped source", slog.String("source", r.source), slog.String("coin", id), slog.Any("error", r.err))
			continue
		}
		prices = append(prices, r.price)
	}

	ev := event.NewRefreshEvent(id, prices)
	if err := e.enqueue(ctx, ev); err != nil {
		return err
	}
	return e.await(ev.Ack)
}
