package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/serp1412/coinfeed/internal/infra"
)

const marketsPage = `[
	{"id":"bitcoin","symbol":"btc","image":"https://x/btc.png","market_cap":1300000000000,"total_volume":25000000000,"current_price":69999.5},
	{"id":"ethereum","symbol":"eth","image":"https://x/eth.png","market_cap":400000000000,"total_volume":12000000000,"current_price":3500.25}
]`

func newCatalogServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/markets" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("page") != "1" {
			w.Write([]byte(`[]`))
			return
		}
		w.Write([]byte(marketsPage))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBootstrap_StartLoadsFirstPage(t *testing.T) {
	srv := newCatalogServer(t)

	cfg, err := infra.ParseConfig([]byte(`
app:
  name: coinfeed-test
catalog:
  base_url: ` + srv.URL + `
  page_size: 2
logging:
  level: error
`))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	b := NewBootstrap()
	if err := b.InitializeWith(ctx, cfg); err != nil {
		t.Fatalf("InitializeWith failed: %v", err)
	}
	defer b.Shutdown()

	if b.Cache != nil {
		t.Error("redis publisher must stay off unless enabled")
	}
	if len(b.Providers.Pulls) != 0 || len(b.Providers.Pushes) != 0 {
		t.Errorf("unexpected adapters: %v", b.Providers.Names())
	}

	b.Start(ctx)

	st := b.Engine.Status()
	if !st.Loaded || st.Coins != 2 || st.Page != 2 {
		t.Fatalf("unexpected status after start: %+v", st)
	}

	coin, ok := b.Engine.Coin("ethereum")
	if !ok || coin.Symbol != "ETH" {
		t.Fatalf("ethereum not loaded: %+v", coin)
	}
	if len(coin.Prices) != 1 || coin.Prices[0].Source != "CG" {
		t.Errorf("expected the catalog quote only, got %+v", coin.Prices)
	}
}

func TestBootstrap_OnUpdateFeedsHub(t *testing.T) {
	srv := newCatalogServer(t)
	cfg, err := infra.ParseConfig([]byte("catalog:\n  base_url: " + srv.URL + "\nlogging:\n  level: error\n"))
	if err != nil {
		t.Fatal(err)
	}

	b := NewBootstrap()
	if err := b.InitializeWith(context.Background(), cfg); err != nil {
		t.Fatal(err)
	}
	defer b.Shutdown()

	// No websocket clients: broadcasting must not block the engine.
	done := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		b.Start(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(4 * time.Second):
		t.Fatal("Start did not return")
	}
	if b.Hub.Count() != 0 {
		t.Errorf("expected no stream subscribers, got %d", b.Hub.Count())
	}
}
