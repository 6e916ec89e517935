package engine

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/serp1412/coinfeed/internal/infra"
	"github.com/serp1412/coinfeed/internal/provider"
)

var fastBackoff = infra.Backoff{Base: 5 * time.Millisecond, Max: 20 * time.Millisecond}

func TestReconnect_ResubscribesAfterDrop(t *testing.T) {
	catalog := provider.NewMockCatalog()
	catalog.SetPage(1, catalogCoin("bitcoin", "BTC", "1"), catalogCoin("ethereum", "ETH", "1"))

	push := provider.NewMockPush("OKX")
	e := New(catalog, nil, []provider.PushAdapter{push}, WithReconnect(true), WithBackoff(fastBackoff))
	startEngine(t, e)

	if err := e.Setup(context.Background()); err != nil {
		t.Fatal(err)
	}
	e.LoadNextPage(context.Background())

	push.Drop()

	if !waitFor(t, 2*time.Second, func() bool { return len(push.Subscribed()) == 4 }) {
		t.Fatalf("expected resubscription, got %v (connects=%d)", push.Subscribed(), push.Connects())
	}
	if push.Connects() != 2 {
		t.Errorf("expected one redial, got %d connects", push.Connects())
	}
	if push.State() != infra.StateConnected {
		t.Errorf("expected CONNECTED, got %s", push.State())
	}
	want := []string{"BTC", "ETH", "BTC", "ETH"}
	if got := push.Subscribed(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestReconnect_RetriesInitialFailure(t *testing.T) {
	push := provider.NewMockPush("OKX")
	push.SetConnectError(errors.New("refused"))

	e := New(provider.NewMockCatalog(), nil, []provider.PushAdapter{push}, WithReconnect(true), WithBackoff(fastBackoff))
	startEngine(t, e)

	if err := e.Setup(context.Background()); err == nil {
		t.Fatal("expected initial connect error")
	}

	if !waitFor(t, time.Second, func() bool { return push.Connects() >= 3 }) {
		t.Fatalf("supervisor did not retry, connects=%d", push.Connects())
	}
	push.SetConnectError(nil)

	if !waitFor(t, time.Second, func() bool { return push.State() == infra.StateConnected }) {
		t.Fatal("supervisor never connected")
	}
}

func TestReconnect_DisabledByDefault(t *testing.T) {
	push := provider.NewMockPush("OKX")
	e := New(provider.NewMockCatalog(), nil, []provider.PushAdapter{push})
	startEngine(t, e)

	e.Setup(context.Background())
	push.Drop()

	time.Sleep(50 * time.Millisecond)
	if push.Connects() != 1 {
		t.Errorf("no redial expected without WithReconnect, got %d connects", push.Connects())
	}
}

func TestReconnect_StopsOnShutdown(t *testing.T) {
	push := provider.NewMockPush("OKX")
	push.SetConnectError(errors.New("refused"))

	e := New(provider.NewMockCatalog(), nil, []provider.PushAdapter{push}, WithReconnect(true), WithBackoff(fastBackoff))
	e.Setup(context.Background())

	done := make(chan struct{})
	go func() {
		e.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Shutdown did not wait out the supervisors")
	}

	n := push.Connects()
	time.Sleep(50 * time.Millisecond)
	if push.Connects() != n {
		t.Error("supervisor kept dialing after Shutdown")
	}
}
