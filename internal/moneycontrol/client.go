package moneycontrol

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/kushalvora6290/moneycontrol-stock-scanner/config"
)

// Client fetches categorical market-movers lists from the Moneycontrol
// swiftapi. Every failure mode collapses to an empty symbol list: the
// scanner treats an unreachable or malformed feed as "nothing moving
// in this category", never as a run-level error.
type Client struct {
	baseURL    string
	indexID    string
	duration   string
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewClient(cfg config.MoneycontrolConfig, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:  cfg.BaseURL,
		indexID:  cfg.IndexID,
		duration: cfg.Duration,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeout) * time.Second,
		},
		logger: logger.With().Str("component", "moneycontrol").Logger(),
	}
}

type listResponse struct {
	Data struct {
		List []struct {
			Symbol string `json:"symbol"`
		} `json:"list"`
	} `json:"data"`
}

// FetchCategory returns the symbols currently listed under a market-stats
// endpoint (e.g. "volume-shocker"), deduplicated, in feed order.
func (c *Client) FetchCategory(ctx context.Context, endpoint string) []string {
	params := url.Values{}
	params.Set("deviceType", "W")
	params.Set("appVersion", "180")
	params.Set("ex", "N")
	params.Set("section", "overview")
	params.Set("indexId", c.indexID)
	params.Set("dur", c.duration)
	params.Set("page", "1")
	params.Set("responseType", "json")

	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		c.logger.Debug().Err(err).Str("endpoint", endpoint).Msg("request build failed")
		return nil
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Referer", "https://www.moneycontrol.com/")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("endpoint", endpoint).Msg("category fetch failed")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug().Int("status", resp.StatusCode).Str("endpoint", endpoint).Msg("category fetch non-200")
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Debug().Err(err).Str("endpoint", endpoint).Msg("category body read failed")
		return nil
	}

	var parsed listResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.logger.Debug().Err(err).Str("endpoint", endpoint).Msg("category body malformed")
		return nil
	}

	seen := make(map[string]bool, len(parsed.Data.List))
	symbols := make([]string, 0, len(parsed.Data.List))
	for _, item := range parsed.Data.List {
		if item.Symbol == "" || seen[item.Symbol] {
			continue
		}
		seen[item.Symbol] = true
		symbols = append(symbols, item.Symbol)
	}
	return symbols
}
