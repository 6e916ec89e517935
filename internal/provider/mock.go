package provider

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/serp1412/coinfeed/internal/domain"
	"github.com/serp1412/coinfeed/internal/infra"
)

// MockCatalog serves fixed pages. Used by engine tests and the dry-run mode.
type MockCatalog struct {
	mu       sync.Mutex
	pages    map[int][]domain.Coin
	err      error
	block    chan struct{}
	requests []int
	calls    atomic.Int32
}

func NewMockCatalog() *MockCatalog {
	return &MockCatalog{pages: make(map[int][]domain.Coin)}
}

// SetPage registers the coins returned for page.
func (m *MockCatalog) SetPage(page int, coins ...domain.Coin) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[page] = coins
}

// SetError makes every following FetchPage fail (nil restores).
func (m *MockCatalog) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Block makes FetchPage wait until the returned release func is called.
func (m *MockCatalog) Block() (release func()) {
	ch := make(chan struct{})
	m.mu.Lock()
	m.block = ch
	m.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (m *MockCatalog) FetchPage(ctx context.Context, pageSize, page int) ([]domain.Coin, error) {
	m.calls.Add(1)

	m.mu.Lock()
	m.requests = append(m.requests, page)
	block := m.block
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}

	coins := m.pages[page]
	if len(coins) > pageSize {
		coins = coins[:pageSize]
	}
	out := make([]domain.Coin, len(coins))
	for i, c := range coins {
		out[i] = c.Clone()
	}
	return out, nil
}

func (m *MockCatalog) Calls() int { return int(m.calls.Load()) }

// Requests returns the page numbers asked for, in order.
func (m *MockCatalog) Requests() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.requests...)
}

// MockPull answers from a fixed price table.
type MockPull struct {
	name string

	mu     sync.Mutex
	prices map[string]domain.CoinPrice
	err    error
	panics bool
	block  chan struct{}
	calls  atomic.Int32
}

func NewMockPull(name string) *MockPull {
	return &MockPull{name: name, prices: make(map[string]domain.CoinPrice)}
}

func (m *MockPull) Name() string { return m.name }

// SetPrice registers price for symbol, tagged with this adapter's name.
func (m *MockPull) SetPrice(symbol string, price domain.CoinPrice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	price.Source = m.name
	price.Symbol = domain.NormalizeSymbol(symbol)
	m.prices[price.Symbol] = price
}

func (m *MockPull) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetPanic makes the next calls panic, like a misbehaving third-party client.
func (m *MockPull) SetPanic(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panics = on
}

// Block makes calls wait until release is called.
func (m *MockPull) Block() (release func()) {
	ch := make(chan struct{})
	m.mu.Lock()
	m.block = ch
	m.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (m *MockPull) Calls() int { return int(m.calls.Load()) }

func (m *MockPull) FetchOne(ctx context.Context, symbol string) (domain.CoinPrice, error) {
	prices, err := m.FetchMany(ctx, []string{symbol})
	if err != nil {
		return domain.CoinPrice{}, err
	}
	p, ok := prices[domain.NormalizeSymbol(symbol)]
	if !ok {
		return domain.CoinPrice{}, domain.ErrNoData
	}
	return p, nil
}

func (m *MockPull) FetchMany(ctx context.Context, symbols []string) (map[string]domain.CoinPrice, error) {
	m.calls.Add(1)

	m.mu.Lock()
	block, panics := m.block, m.panics
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if panics {
		panic(fmt.Sprintf("%s: mock panic", m.name))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}

	out := make(map[string]domain.CoinPrice)
	for _, s := range domain.NormalizeSymbols(symbols) {
		if p, ok := m.prices[s]; ok {
			out[s] = p
		}
	}
	return out, nil
}

// MockPush is an in-memory stream. Emit delivers a quote as if it came off the wire.
type MockPush struct {
	name string

	mu         sync.Mutex
	state      infra.ConnState
	done       chan struct{}
	onUpdate   func(domain.CoinPrice)
	subscribed []string
	connectErr error
	connects   int
}

func NewMockPush(name string) *MockPush {
	done := make(chan struct{})
	close(done)
	return &MockPush{name: name, done: done}
}

func (m *MockPush) Name() string { return m.name }

func (m *MockPush) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != infra.StateDisconnected {
		return nil
	}
	m.connects++
	if m.connectErr != nil {
		return m.connectErr
	}
	m.state = infra.StateConnected
	m.done = make(chan struct{})
	return nil
}

func (m *MockPush) Disconnect() { m.Drop() }

// Drop ends the current connection as a read error would.
func (m *MockPush) Drop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == infra.StateConnected {
		close(m.done)
	}
	m.state = infra.StateDisconnected
}

// SetConnectError makes Connect fail until cleared.
func (m *MockPush) SetConnectError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectErr = err
}

func (m *MockPush) Subscribe(symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != infra.StateConnected {
		return infra.ErrNotConnected
	}
	m.subscribed = append(m.subscribed, symbol)
	return nil
}

func (m *MockPush) Unsubscribe(symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != infra.StateConnected {
		return infra.ErrNotConnected
	}
	for i, s := range m.subscribed {
		if s == symbol {
			m.subscribed = append(m.subscribed[:i], m.subscribed[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MockPush) OnUpdate(fn func(domain.CoinPrice)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUpdate = fn
}

// Emit calls the installed callback synchronously. It reports false when none is installed.
func (m *MockPush) Emit(p domain.CoinPrice) bool {
	m.mu.Lock()
	fn := m.onUpdate
	m.mu.Unlock()

	if fn == nil {
		return false
	}
	p.Source = m.name
	fn(p)
	return true
}

func (m *MockPush) State() infra.ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *MockPush) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.done
}

// Subscribed returns every symbol subscribed so far, in order.
func (m *MockPush) Subscribed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.subscribed...)
}

func (m *MockPush) Connects() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connects
}
