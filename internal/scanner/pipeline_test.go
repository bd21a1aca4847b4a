package scanner

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kushalvora6290/moneycontrol-stock-scanner/config"
	"github.com/kushalvora6290/moneycontrol-stock-scanner/internal/confirm"
	"github.com/kushalvora6290/moneycontrol-stock-scanner/internal/events"
	"github.com/kushalvora6290/moneycontrol-stock-scanner/internal/indicator"
	"github.com/kushalvora6290/moneycontrol-stock-scanner/internal/notification"
	"github.com/kushalvora6290/moneycontrol-stock-scanner/internal/universe"
	"github.com/kushalvora6290/moneycontrol-stock-scanner/internal/yahoo"
)

type fakeMovers struct {
	feeds map[string][]string
}

func (f *fakeMovers) FetchCategory(ctx context.Context, endpoint string) []string {
	return f.feeds[endpoint]
}

type fakeBars struct {
	bars map[string][]yahoo.Bar
}

func (f *fakeBars) GetBars(ctx context.Context, symbol string) []yahoo.Bar {
	return f.bars[symbol]
}

type fakeUniverse struct {
	set universe.Set
}

func (f *fakeUniverse) Load(ctx context.Context) (universe.Set, error) {
	return f.set, nil
}

type captureNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (c *captureNotifier) Send(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, text)
	return nil
}
func (c *captureNotifier) Name() string    { return "capture" }
func (c *captureNotifier) IsEnabled() bool { return true }

func (c *captureNotifier) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

func testPipelineConfig() *config.Config {
	cfg := &config.Config{}
	cfg.MoneycontrolConfig.Categories = []config.Category{
		{Name: "Volume Shockers", Endpoint: "volume-shocker", Weight: 4},
		{Name: "Top Gainers", Endpoint: "gainer", Weight: 2},
	}
	cfg.ScanConfig = config.ScanConfig{
		MinScore:          3,
		MaxUniverse:       10,
		SnapshotSize:      5,
		MaxTradeAlerts:    3,
		WorkerCount:       2,
		SymbolTimeout:     5,
		RunTimeout:        30,
		RequestsPerSecond: 1000,
	}
	cfg.ConfirmationConfig = config.ConfirmationConfig{
		MinBars:           5,
		RSIPeriod:         3,
		VolumePeriod:      3,
		ATRPeriod:         3,
		VWAPProximityPct:  0.02,
		BreakoutTolerance: 0.998,
		RSISafeLow:        50,
		RSISafeHigh:       90,
		VolumeMultiplier:  1.3,
		RewardRiskRatio:   2.0,
		StopSafetyMargin:  0.003,
		ExitStrategy:      "fixed_rr",
		OpeningRangeStart: "09:15",
		OpeningRangeEnd:   "09:45",
	}
	return cfg
}

// breakoutBars forms a clean VWAP-reclaim opening-range breakout with a
// volume surge on the last bar.
func breakoutBars(t *testing.T) []yahoo.Bar {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatal(err)
	}
	start := time.Date(2026, 8, 28, 9, 15, 0, 0, loc)
	mk := func(i int, o, h, l, c, v float64) yahoo.Bar {
		return yahoo.Bar{
			Timestamp: start.Add(time.Duration(i) * 5 * time.Minute),
			Open:      o, High: h, Low: l, Close: c, Volume: v,
		}
	}
	return []yahoo.Bar{
		mk(0, 100.0, 100.4, 99.8, 100.2, 1000),
		mk(1, 100.2, 100.7, 100.0, 100.5, 1000),
		mk(2, 100.5, 100.6, 100.0, 100.2, 1000),
		mk(3, 100.2, 101.0, 100.1, 100.8, 1200),
		mk(4, 100.8, 101.6, 100.9, 101.5, 5000),
	}
}

func newTestPipeline(t *testing.T, cfg *config.Config, movers *fakeMovers, bars *fakeBars, uni UniverseProvider) (*Pipeline, *captureNotifier) {
	t.Helper()

	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatal(err)
	}
	calc, err := indicator.NewCalculator(indicator.Config{
		RSIPeriod:         cfg.ConfirmationConfig.RSIPeriod,
		VolumePeriod:      cfg.ConfirmationConfig.VolumePeriod,
		ATRPeriod:         cfg.ConfirmationConfig.ATRPeriod,
		MinBars:           cfg.ConfirmationConfig.MinBars,
		OpeningRangeStart: cfg.ConfirmationConfig.OpeningRangeStart,
		OpeningRangeEnd:   cfg.ConfirmationConfig.OpeningRangeEnd,
		Location:          loc,
	})
	if err != nil {
		t.Fatalf("NewCalculator: %v", err)
	}
	engine, err := confirm.NewEngine(cfg.ConfirmationConfig)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	capture := &captureNotifier{}
	manager := notification.NewManager()
	manager.AddNotifier(capture)

	pipeline := NewPipeline(cfg, movers, bars, uni, calc, engine, manager, events.NewEventBus(), zerolog.Nop())
	return pipeline, capture
}

func TestRunFullScan(t *testing.T) {
	movers := &fakeMovers{feeds: map[string][]string{
		"volume-shocker": {"BREAKOUT", "THIN", "JUNK"},
		"gainer":         {"BREAKOUT", "LOWSCORE"},
	}}
	bars := &fakeBars{bars: map[string][]yahoo.Bar{
		"BREAKOUT": breakoutBars(t),
		"THIN":     breakoutBars(t)[:2], // below MinBars
	}}
	uni := &fakeUniverse{set: universe.Set{
		"BREAKOUT": {}, "THIN": {}, "LOWSCORE": {},
	}}

	pipeline, capture := newTestPipeline(t, testPipelineConfig(), movers, bars, uni)
	result := pipeline.Run(context.Background())

	// JUNK (score 4) is outside the universe; LOWSCORE (score 2) is
	// below MinScore. BREAKOUT (6) outranks THIN (4).
	if len(result.Candidates) != 2 {
		t.Fatalf("candidates = %v, want BREAKOUT and THIN", result.Candidates)
	}
	if result.Candidates[0].Symbol != "BREAKOUT" || result.Candidates[0].Score != 6 {
		t.Errorf("top candidate = %+v, want BREAKOUT/6", result.Candidates[0])
	}
	if result.Candidates[1].Symbol != "THIN" || result.Candidates[1].Score != 4 {
		t.Errorf("second candidate = %+v, want THIN/4", result.Candidates[1])
	}

	// THIN has too little history and is skipped without failing the run
	if len(result.Results) != 1 {
		t.Fatalf("results = %d, want 1 (THIN skipped)", len(result.Results))
	}
	if result.Results[0].Symbol != "BREAKOUT" || result.Results[0].Tier != confirm.TierTradeReady {
		t.Errorf("result = %+v, want BREAKOUT TRADE_READY", result.Results[0])
	}
	if result.Results[0].Entry != 101.6 {
		t.Errorf("entry = %v, want 101.6 (last bar high)", result.Results[0].Entry)
	}

	if result.AlertsSent != 1 {
		t.Errorf("alerts sent = %d, want 1", result.AlertsSent)
	}

	messages := capture.messages()
	var sawSnapshot, sawAlert bool
	for _, msg := range messages {
		if strings.Contains(msg, "MARKET MOMENTUM") {
			sawSnapshot = true
		}
		if strings.Contains(msg, "BREAKOUT ALERT") {
			sawAlert = true
		}
	}
	if !sawSnapshot {
		t.Error("momentum snapshot never sent")
	}
	if !sawAlert {
		t.Error("trade alert never sent")
	}

	if pipeline.LastResult() == nil {
		t.Error("LastResult not stored")
	}
	if result.RunID == "" {
		t.Error("run id missing")
	}
}

func TestRunDedupesAcrossRuns(t *testing.T) {
	movers := &fakeMovers{feeds: map[string][]string{
		"volume-shocker": {"BREAKOUT"},
	}}
	bars := &fakeBars{bars: map[string][]yahoo.Bar{
		"BREAKOUT": breakoutBars(t),
	}}

	pipeline, _ := newTestPipeline(t, testPipelineConfig(), movers, bars, nil)

	first := pipeline.Run(context.Background())
	if first.AlertsSent != 1 {
		t.Fatalf("first run alerts = %d, want 1", first.AlertsSent)
	}

	second := pipeline.Run(context.Background())
	if second.AlertsSent != 0 {
		t.Errorf("second run alerts = %d, want 0 (deduped)", second.AlertsSent)
	}
	if len(second.TradeReady) != 1 {
		t.Errorf("setup must still be recorded on the second run, got %d", len(second.TradeReady))
	}
	if pipeline.AlertedPairs() != 1 {
		t.Errorf("alerted pairs = %d, want 1", pipeline.AlertedPairs())
	}
}

func TestRunTradeAlertCap(t *testing.T) {
	cfg := testPipelineConfig()
	cfg.ScanConfig.MaxTradeAlerts = 1

	movers := &fakeMovers{feeds: map[string][]string{
		"volume-shocker": {"ALPHA", "BETA"},
	}}
	bars := &fakeBars{bars: map[string][]yahoo.Bar{
		"ALPHA": breakoutBars(t),
		"BETA":  breakoutBars(t),
	}}

	pipeline, _ := newTestPipeline(t, cfg, movers, bars, nil)
	result := pipeline.Run(context.Background())

	if len(result.TradeReady) != 2 {
		t.Fatalf("trade-ready setups = %d, want 2", len(result.TradeReady))
	}
	if result.AlertsSent != 1 {
		t.Errorf("alerts sent = %d, want 1 (capped)", result.AlertsSent)
	}
}

func TestRunEmptyFeedsCompleteQuietly(t *testing.T) {
	movers := &fakeMovers{feeds: map[string][]string{}}
	bars := &fakeBars{}

	pipeline, capture := newTestPipeline(t, testPipelineConfig(), movers, bars, nil)
	result := pipeline.Run(context.Background())

	if len(result.Candidates) != 0 || len(result.Results) != 0 {
		t.Errorf("empty feeds produced candidates: %+v", result)
	}

	// The snapshot still goes out saying nothing is active
	messages := capture.messages()
	if len(messages) == 0 || !strings.Contains(messages[0], "No active stocks") {
		t.Errorf("expected no-active-stocks snapshot, got %v", messages)
	}
}

func TestRunMissingBarsSkipCandidate(t *testing.T) {
	movers := &fakeMovers{feeds: map[string][]string{
		"volume-shocker": {"GHOST"},
	}}
	bars := &fakeBars{} // GHOST has no history at all

	pipeline, _ := newTestPipeline(t, testPipelineConfig(), movers, bars, nil)
	result := pipeline.Run(context.Background())

	if len(result.Candidates) != 1 {
		t.Fatalf("candidates = %d, want 1", len(result.Candidates))
	}
	if len(result.Results) != 0 {
		t.Errorf("results = %d, want 0 (no bars)", len(result.Results))
	}
}
