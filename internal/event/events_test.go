package event

import (
	"testing"

	"github.com/serp1412/coinfeed/internal/domain"
)

func TestEventTypes(t *testing.T) {
	tests := []struct {
		ev   Event
		want Type
		name string
	}{
		{NewQuoteEvent(domain.CoinPrice{Symbol: "BTC"}), EvQuote, "QUOTE"},
		{NewPageEvent(1, nil), EvPage, "PAGE"},
		{NewRefreshEvent("bitcoin", nil), EvRefresh, "REFRESH"},
	}

	for _, tt := range tests {
		if tt.ev.GetType() != tt.want {
			t.Errorf("expected %s, got %s", tt.want, tt.ev.GetType())
		}
		if tt.ev.GetType().String() != tt.name {
			t.Errorf("expected name %s, got %s", tt.name, tt.ev.GetType())
		}
		if tt.ev.GetTs().IsZero() {
			t.Errorf("%s event was not timestamped", tt.name)
		}
	}
}

func TestAckChannelsStartOpen(t *testing.T) {
	page := NewPageEvent(2, nil)
	select {
	case <-page.Ack:
		t.Error("page ack must start open")
	default:
	}

	refresh := NewRefreshEvent("bitcoin", nil)
	select {
	case <-refresh.Ack:
		t.Error("refresh ack must start open")
	default:
	}
}
