package mobula

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/serp1412/coinfeed/internal/domain"
	"github.com/serp1412/coinfeed/internal/infra/rest"
	"github.com/serp1412/coinfeed/pkg/quant"
)

func TestClient_FetchMany_Shapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"Keyed object", `{"data":{"BTC":{"symbol":"BTC","price":64000.5},"ETH":{"symbol":"ETH","price":3100},"DOGE":null}}`},
		{"Data array", `{"dataArray":[{"symbol":"btc","price":64000.5},{"symbol":"ETH","price":"3100"},{"symbol":"DOGE"}]}`},
		{"Data as list", `{"data":[{"symbol":"BTC","price":64000.5},{"symbol":"ETH","price":3100}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/1/market/multi-data" {
					t.Errorf("unexpected path: %s", r.URL.Path)
				}
				if got := r.Header.Get("Authorization"); got != "test-key" {
					t.Errorf("expected authorization header test-key, got %q", got)
				}
				if got := r.URL.Query().Get("symbols"); got != "BTC,ETH,DOGE" {
					t.Errorf("expected symbols BTC,ETH,DOGE, got %q", got)
				}
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			got, err := NewClient(ts.URL, "test-key").FetchMany(context.Background(), []string{"btc", "eth", "doge", "btc"})
			if err != nil {
				t.Fatalf("FetchMany failed: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("expected 2 prices, got %v", got)
			}
			if p := got["BTC"]; p.Source != Source || !p.Price.Equal(quant.MustPrice("64000.5")) {
				t.Errorf("unexpected BTC: %+v", p)
			}
			if p := got["ETH"]; !p.Price.Equal(quant.MustPrice("3100")) {
				t.Errorf("unexpected ETH: %+v", p)
			}
			if _, ok := got["DOGE"]; ok {
				t.Error("DOGE had no price and must be absent")
			}
		})
	}
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"Server error", http.StatusInternalServerError, `oops`, rest.ErrUnexpectedStatus},
		{"Bad data shape", http.StatusOK, `{"data":42}`, rest.ErrDecoding},
		{"Empty", http.StatusOK, `{"data":{}}`, domain.ErrNoData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			_, err := NewClient(ts.URL, "k").FetchOne(context.Background(), "BTC")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
