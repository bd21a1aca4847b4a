package confirm

import (
	"math"
	"testing"

	"github.com/kushalvora6290/moneycontrol-stock-scanner/config"
	"github.com/kushalvora6290/moneycontrol-stock-scanner/internal/indicator"
	"github.com/kushalvora6290/moneycontrol-stock-scanner/internal/yahoo"
)

func testConfirmationConfig() config.ConfirmationConfig {
	return config.ConfirmationConfig{
		MinBars:             30,
		RSIPeriod:           14,
		VolumePeriod:        20,
		VWAPProximityPct:    0.02,
		BreakoutTolerance:   0.998,
		RSISafeLow:          55,
		RSISafeHigh:         70,
		VolumeMultiplier:    1.3,
		RewardRiskRatio:     2.0,
		StopSafetyMargin:    0.003,
		ExitStrategy:        "fixed_rr",
		ATRPeriod:           14,
		ATRStopMultiplier:   1.0,
		ATRTargetMultiplier: 2.0,
	}
}

// tradeReadySet satisfies every TRADE_READY predicate under the test config.
func tradeReadySet() *indicator.Set {
	return &indicator.Set{
		RSI:              62,
		RSIPrev:          58,
		VWAP:             100,
		VolumeAvg:        1000,
		OpeningRangeHigh: 101,
		HasOpeningRange:  true,
		ATR:              2,
		Last:             yahoo.Bar{High: 103, Low: 101, Close: 102.5, Volume: 2000},
		Prev:             yahoo.Bar{High: 101.5, Low: 100.5, Close: 101, Volume: 1200},
	}
}

func newTestEngine(t *testing.T, cfg config.ConfirmationConfig) *Engine {
	t.Helper()
	engine, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine
}

func TestEvaluateTradeReady(t *testing.T) {
	engine := newTestEngine(t, testConfirmationConfig())
	result := engine.Evaluate("TATASTEEL", tradeReadySet())

	if result.Tier != TierTradeReady {
		t.Fatalf("tier = %s, want TRADE_READY", result.Tier)
	}

	if result.Entry != 103 {
		t.Errorf("entry = %v, want 103 (bar high)", result.Entry)
	}

	// Stop is min(low, VWAP) shrunk by the safety margin
	wantStop := 100 * 0.997
	if math.Abs(result.Stop-wantStop) > 1e-9 {
		t.Errorf("stop = %v, want %v", result.Stop, wantStop)
	}

	wantTarget := 103 + 2*(103-wantStop)
	if math.Abs(result.Target-wantTarget) > 1e-9 {
		t.Errorf("target = %v, want %v", result.Target, wantTarget)
	}

	if len(result.Reasons) == 0 {
		t.Error("expected trade-ready reasons")
	}
}

func TestEvaluateRequiresOpeningRange(t *testing.T) {
	engine := newTestEngine(t, testConfirmationConfig())

	set := tradeReadySet()
	set.HasOpeningRange = false
	// Still close to VWAP enough? 102.5 vs 100 is 2.5%, outside proximity,
	// so this lands at RAW rather than EARLY_MOMENTUM.
	result := engine.Evaluate("TATASTEEL", set)

	if result.Tier != TierRaw {
		t.Errorf("tier = %s, want RAW when opening range is missing", result.Tier)
	}
	if result.Entry != 0 || result.Stop != 0 || result.Target != 0 {
		t.Errorf("levels must stay empty below TRADE_READY: %+v", result)
	}
}

func TestEvaluateRSIOutsideSafeBand(t *testing.T) {
	engine := newTestEngine(t, testConfirmationConfig())

	for _, rsi := range []float64{54.9, 70.1, 85} {
		set := tradeReadySet()
		set.RSI = rsi
		if result := engine.Evaluate("X", set); result.Tier == TierTradeReady {
			t.Errorf("RSI %v outside safe band still confirmed TRADE_READY", rsi)
		}
	}

	// Band edges are inclusive
	for _, rsi := range []float64{55, 70} {
		set := tradeReadySet()
		set.RSI = rsi
		set.RSIPrev = rsi - 1
		if result := engine.Evaluate("X", set); result.Tier != TierTradeReady {
			t.Errorf("RSI %v at band edge should confirm, got %s", rsi, result.Tier)
		}
	}
}

func TestEvaluateFallingRSIBlocksConfirmation(t *testing.T) {
	engine := newTestEngine(t, testConfirmationConfig())

	set := tradeReadySet()
	set.RSIPrev = set.RSI + 1
	if result := engine.Evaluate("X", set); result.Tier == TierTradeReady {
		t.Error("falling RSI still confirmed TRADE_READY")
	}
}

func TestEvaluateVolumeBelowMultiplier(t *testing.T) {
	engine := newTestEngine(t, testConfirmationConfig())

	set := tradeReadySet()
	set.Last.Volume = 1200 // above average but below 1.3x
	result := engine.Evaluate("X", set)
	if result.Tier == TierTradeReady {
		t.Error("sub-multiplier volume still confirmed TRADE_READY")
	}
}

func TestEvaluateEarlyMomentum(t *testing.T) {
	engine := newTestEngine(t, testConfirmationConfig())

	set := &indicator.Set{
		RSI:              52,
		RSIPrev:          49,
		VWAP:             100,
		VolumeAvg:        1000,
		OpeningRangeHigh: 105, // unbroken
		HasOpeningRange:  true,
		Last:             yahoo.Bar{High: 101, Low: 100, Close: 100.5, Volume: 1200},
	}

	result := engine.Evaluate("INFY", set)
	if result.Tier != TierEarlyMomentum {
		t.Fatalf("tier = %s, want EARLY_MOMENTUM", result.Tier)
	}
	if result.Entry != 0 {
		t.Error("early momentum must not carry entry levels")
	}
}

func TestEvaluateRawWhenNothingHolds(t *testing.T) {
	engine := newTestEngine(t, testConfirmationConfig())

	set := &indicator.Set{
		RSI:             45,
		RSIPrev:         48, // falling
		VWAP:            100,
		VolumeAvg:       1000,
		HasOpeningRange: true, OpeningRangeHigh: 105,
		Last: yahoo.Bar{High: 99, Low: 97, Close: 98, Volume: 800},
	}

	if result := engine.Evaluate("SBIN", set); result.Tier != TierRaw {
		t.Errorf("tier = %s, want RAW", result.Tier)
	}
}

func TestEvaluateZeroVWAPNeverEarlyMomentum(t *testing.T) {
	engine := newTestEngine(t, testConfirmationConfig())

	set := &indicator.Set{
		RSI: 60, RSIPrev: 55, VWAP: 0, VolumeAvg: 1000,
		Last: yahoo.Bar{Close: 100, Volume: 2000},
	}
	if result := engine.Evaluate("X", set); result.Tier != TierRaw {
		t.Errorf("zero VWAP should stay RAW, got %s", result.Tier)
	}
}

func TestATRScaledLevels(t *testing.T) {
	cfg := testConfirmationConfig()
	cfg.ExitStrategy = "atr"
	engine := newTestEngine(t, cfg)

	result := engine.Evaluate("TATASTEEL", tradeReadySet())
	if result.Tier != TierTradeReady {
		t.Fatalf("tier = %s, want TRADE_READY", result.Tier)
	}

	if math.Abs(result.Stop-(103-2)) > 1e-9 {
		t.Errorf("ATR stop = %v, want 101", result.Stop)
	}
	if math.Abs(result.Target-(103+4)) > 1e-9 {
		t.Errorf("ATR target = %v, want 107", result.Target)
	}
	if engine.ExitStrategyName() != "atr" {
		t.Errorf("exit strategy name = %s, want atr", engine.ExitStrategyName())
	}
}

func TestNewEngineRejectsUnknownExitStrategy(t *testing.T) {
	cfg := testConfirmationConfig()
	cfg.ExitStrategy = "martingale"
	if _, err := NewEngine(cfg); err == nil {
		t.Error("expected error for unknown exit strategy")
	}
}
