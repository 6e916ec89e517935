package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/serp1412/coinfeed/internal/domain"
	"github.com/serp1412/coinfeed/internal/infra"
	"github.com/serp1412/coinfeed/internal/infra/bitget"
	"github.com/serp1412/coinfeed/internal/infra/cmc"
	"github.com/serp1412/coinfeed/internal/infra/coingecko"
	"github.com/serp1412/coinfeed/internal/infra/mobula"
	"github.com/serp1412/coinfeed/internal/infra/okx"
	"github.com/serp1412/coinfeed/pkg/quant"
)

func TestAdapters_ImplementInterfaces(t *testing.T) {
	var _ CatalogSource = (*coingecko.Catalog)(nil) // Compile-time check
	var _ PullAdapter = (*coingecko.Catalog)(nil)
	var _ PullAdapter = (*cmc.Client)(nil)
	var _ PullAdapter = (*mobula.Client)(nil)
	var _ PushAdapter = (*okx.Worker)(nil)
	var _ PushAdapter = (*bitget.SpotWorker)(nil)

	var _ CatalogSource = (*MockCatalog)(nil)
	var _ PullAdapter = (*MockPull)(nil)
	var _ PushAdapter = (*MockPush)(nil)
}

func TestWithBreaker_OpensAndFailsFast(t *testing.T) {
	pull := NewMockPull("CMC")
	pull.SetError(errors.New("503"))

	cb := infra.NewCircuitBreaker(infra.CircuitBreakerConfig{
		Name:             "CMC",
		FailureThreshold: 2,
		SuccessThreshold: 1,
		Timeout:          time.Hour,
	})
	a := WithBreaker(pull, cb)

	if a.Name() != "CMC" {
		t.Errorf("decorator must keep the source name, got %s", a.Name())
	}

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := a.FetchMany(ctx, []string{"BTC"}); err == nil || errors.Is(err, ErrBreakerOpen) {
			t.Fatalf("call %d: expected source error, got %v", i, err)
		}
	}

	_, err := a.FetchMany(ctx, []string{"BTC"})
	if !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("expected ErrBreakerOpen, got %v", err)
	}
	if _, err := a.FetchOne(ctx, "BTC"); !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("expected ErrBreakerOpen from FetchOne, got %v", err)
	}
	if pull.Calls() != 2 {
		t.Errorf("open breaker must not call the source, got %d calls", pull.Calls())
	}
}

func TestWithBreaker_NoDataIsNotAFailure(t *testing.T) {
	pull := NewMockPull("MOBULA")
	cb := infra.NewCircuitBreaker(infra.CircuitBreakerConfig{Name: "MOBULA", FailureThreshold: 1, Timeout: time.Hour})
	a := WithBreaker(pull, cb)

	for i := 0; i < 3; i++ {
		if _, err := a.FetchOne(context.Background(), "NOPE"); !errors.Is(err, domain.ErrNoData) {
			t.Fatalf("expected ErrNoData, got %v", err)
		}
	}
	if cb.State() != infra.BreakerClosed {
		t.Errorf("expected breaker to stay closed, got %s", cb.State())
	}
}

func TestWithBreaker_NilBreaker(t *testing.T) {
	pull := NewMockPull("CMC")
	if WithBreaker(pull, nil) != PullAdapter(pull) {
		t.Error("nil breaker should return the adapter unchanged")
	}
}

func TestNewFromConfig(t *testing.T) {
	cfg, err := infra.ParseConfig([]byte(`
providers:
  coingecko:
    enabled: true
  cmc:
    enabled: true
    api_key: k1
  mobula:
    enabled: true
    api_key: k2
  okx:
    enabled: true
  bitget:
    enabled: true
engine:
  breaker:
    enabled: true
`))
	if err != nil {
		t.Fatal(err)
	}

	set := NewFromConfig(cfg)
	if set.Catalog == nil {
		t.Fatal("catalog must always be configured")
	}

	want := []string{"CG", "CMC", "MOBULA", "OKX", "BITGET"}
	got := set.Names()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected %v, got %v", want, got)
		}
	}
	if _, ok := set.Pulls[1].(*breakerAdapter); !ok {
		t.Errorf("expected breaker-wrapped pull adapters, got %T", set.Pulls[1])
	}
}

func TestNewFromConfig_Minimal(t *testing.T) {
	cfg, err := infra.ParseConfig([]byte("app:\n  name: coinfeed\n"))
	if err != nil {
		t.Fatal(err)
	}

	set := NewFromConfig(cfg)
	if len(set.Pulls) != 0 || len(set.Pushes) != 0 {
		t.Errorf("expected catalog only, got %v", set.Names())
	}
}

func TestMockPull_FetchMany(t *testing.T) {
	pull := NewMockPull("CMC")
	pull.SetPrice("btc", domain.CoinPrice{Price: quant.MustPrice("50000")})

	got, err := pull.FetchMany(context.Background(), []string{"BTC", "ETH"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got["BTC"].Source != "CMC" {
		t.Errorf("unexpected result: %+v", got)
	}
}

func TestMockPush_Lifecycle(t *testing.T) {
	push := NewMockPush("OKX")

	if err := push.Subscribe("BTC"); !errors.Is(err, infra.ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
	if err := push.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	push.Connect(context.Background())
	if push.Connects() != 1 {
		t.Errorf("Connect must be idempotent, got %d connects", push.Connects())
	}

	done := push.Done()
	push.Drop()
	select {
	case <-done:
	default:
		t.Error("Done was not closed on drop")
	}
	if push.State() != infra.StateDisconnected {
		t.Errorf("expected DISCONNECTED, got %s", push.State())
	}
}
