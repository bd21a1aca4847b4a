package yahoo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/kushalvora6290/moneycontrol-stock-scanner/config"
)

func newTestClient(baseURL string) *Client {
	return NewClient(config.YahooConfig{
		BaseURL:        baseURL,
		Interval:       "5m",
		Range:          "1d",
		SymbolSuffix:   ".NS",
		RequestTimeout: 5,
	}, zerolog.Nop())
}

func TestGetBarsParsesChart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/TATASTEEL.NS") {
			t.Errorf("expected .NS suffix in path, got %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("interval"); got != "5m" {
			t.Errorf("interval = %s, want 5m", got)
		}
		w.Write([]byte(`{"chart":{"result":[{
			"timestamp":[1700000000,1700000300,1700000600],
			"indicators":{"quote":[{
				"open":[100.0,101.0,null],
				"high":[101.5,102.0,null],
				"low":[99.5,100.5,null],
				"close":[101.0,101.8,null],
				"volume":[5000,7000,null]
			}]}
		}]}}`))
	}))
	defer server.Close()

	bars := newTestClient(server.URL).GetBars(context.Background(), "TATASTEEL")

	// The trailing null bucket must be dropped
	if len(bars) != 2 {
		t.Fatalf("bars = %d, want 2", len(bars))
	}
	if bars[0].Close != 101.0 || bars[1].Close != 101.8 {
		t.Errorf("closes = %v, %v", bars[0].Close, bars[1].Close)
	}
	if bars[1].Volume != 7000 {
		t.Errorf("volume = %v, want 7000", bars[1].Volume)
	}
	if !bars[0].Timestamp.Before(bars[1].Timestamp) {
		t.Error("bars must be chronological")
	}
}

func TestGetBarsEmptyResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart":{"result":[]}}`))
	}))
	defer server.Close()

	if bars := newTestClient(server.URL).GetBars(context.Background(), "DELISTED"); len(bars) != 0 {
		t.Errorf("expected no bars for empty result, got %d", len(bars))
	}
}

func TestGetBarsNon200ReturnsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	if bars := newTestClient(server.URL).GetBars(context.Background(), "NOPE"); len(bars) != 0 {
		t.Errorf("expected no bars on 404, got %d", len(bars))
	}
}

func TestGetBarsMalformedBodyReturnsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	if bars := newTestClient(server.URL).GetBars(context.Background(), "X"); len(bars) != 0 {
		t.Errorf("expected no bars on malformed body, got %d", len(bars))
	}
}
