package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/kushalvora6290/moneycontrol-stock-scanner/config"
)

// Bar is one sampling interval of intraday price history.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Client fetches intraday OHLCV bars from the Yahoo Finance chart API.
// Delisted symbols, thin history, transport errors and malformed bodies
// all come back as an empty bar slice; the candidate is simply skipped.
type Client struct {
	baseURL      string
	interval     string
	chartRange   string
	symbolSuffix string
	httpClient   *http.Client
	logger       zerolog.Logger
}

func NewClient(cfg config.YahooConfig, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:      cfg.BaseURL,
		interval:     cfg.Interval,
		chartRange:   cfg.Range,
		symbolSuffix: cfg.SymbolSuffix,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeout) * time.Second,
		},
		logger: logger.With().Str("component", "yahoo").Logger(),
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
	} `json:"chart"`
}

// GetBars returns the symbol's intraday bars in chronological order.
// The exchange suffix is appended here, so callers pass the bare NSE symbol.
func (c *Client) GetBars(ctx context.Context, symbol string) []Bar {
	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s%s?interval=%s&range=%s",
		c.baseURL, symbol, c.symbolSuffix, c.interval, c.chartRange)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		c.logger.Debug().Err(err).Str("symbol", symbol).Msg("request build failed")
		return nil
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("symbol", symbol).Msg("chart fetch failed")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug().Int("status", resp.StatusCode).Str("symbol", symbol).Msg("chart fetch non-200")
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Debug().Err(err).Str("symbol", symbol).Msg("chart body read failed")
		return nil
	}

	var parsed chartResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.logger.Debug().Err(err).Str("symbol", symbol).Msg("chart body malformed")
		return nil
	}

	if len(parsed.Chart.Result) == 0 || len(parsed.Chart.Result[0].Indicators.Quote) == 0 {
		return nil
	}

	result := parsed.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	bars := make([]Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Open) || i >= len(quote.High) || i >= len(quote.Low) ||
			i >= len(quote.Close) || i >= len(quote.Volume) {
			break
		}
		// Yahoo pads the trailing bucket with nulls while it forms
		if quote.Open[i] == nil || quote.High[i] == nil || quote.Low[i] == nil ||
			quote.Close[i] == nil || quote.Volume[i] == nil {
			continue
		}
		bars = append(bars, Bar{
			Timestamp: time.Unix(ts, 0),
			Open:      *quote.Open[i],
			High:      *quote.High[i],
			Low:       *quote.Low[i],
			Close:     *quote.Close[i],
			Volume:    *quote.Volume[i],
		})
	}
	return bars
}
