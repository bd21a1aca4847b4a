package confirm

import (
	"fmt"
	"math"

	"github.com/kushalvora6290/moneycontrol-stock-scanner/config"
	"github.com/kushalvora6290/moneycontrol-stock-scanner/internal/indicator"
)

// Tier is the confirmation milestone a candidate reached this run.
type Tier string

const (
	TierRaw           Tier = "RAW"
	TierEarlyMomentum Tier = "EARLY_MOMENTUM"
	TierTradeReady    Tier = "TRADE_READY"
)

// Result is the outcome of evaluating one ranked candidate. Entry, Stop
// and Target are only populated at TRADE_READY.
type Result struct {
	Symbol           string   `json:"symbol"`
	Tier             Tier     `json:"tier"`
	Entry            float64  `json:"entry,omitempty"`
	Stop             float64  `json:"stop,omitempty"`
	Target           float64  `json:"target,omitempty"`
	RSI              float64  `json:"rsi"`
	VWAP             float64  `json:"vwap"`
	Close            float64  `json:"close"`
	SessionChangePct float64  `json:"session_change_pct"`
	CandleStrength   float64  `json:"candle_strength"`
	Reasons          []string `json:"reasons,omitempty"`
}

// ExitStrategy derives stop and target prices once a candidate is
// trade-ready. Two variants exist: a fixed reward:risk ratio off the
// bar low/VWAP, and an ATR-scaled stop with a multiple-based target.
type ExitStrategy interface {
	Name() string
	Levels(entry float64, ind *indicator.Set) (stop, target float64)
}

// FixedRatio stops under the lower of bar low and VWAP, shrunk by a
// small safety margin, and targets a fixed multiple of the risk.
type FixedRatio struct {
	Ratio        float64
	SafetyMargin float64
}

func (f FixedRatio) Name() string { return "fixed_rr" }

func (f FixedRatio) Levels(entry float64, ind *indicator.Set) (float64, float64) {
	stop := math.Min(ind.Last.Low, ind.VWAP) * (1 - f.SafetyMargin)
	target := entry + f.Ratio*(entry-stop)
	return stop, target
}

// ATRScaled sizes the stop and target from the average true range, so
// wide-ranging symbols get proportionally wider levels.
type ATRScaled struct {
	StopMultiplier   float64
	TargetMultiplier float64
}

func (a ATRScaled) Name() string { return "atr" }

func (a ATRScaled) Levels(entry float64, ind *indicator.Set) (float64, float64) {
	stop := entry - a.StopMultiplier*ind.ATR
	target := entry + a.TargetMultiplier*ind.ATR
	return stop, target
}

// Engine evaluates ranked candidates against the confirmation ladder:
// RAW (any ranked candidate) → EARLY_MOMENTUM → TRADE_READY. The
// evaluation is stateless; each run re-checks the latest bar against
// every predicate, so a tier is a conclusion, not stored state.
type Engine struct {
	cfg  config.ConfirmationConfig
	exit ExitStrategy
}

func NewEngine(cfg config.ConfirmationConfig) (*Engine, error) {
	var exit ExitStrategy
	switch cfg.ExitStrategy {
	case "fixed_rr":
		exit = FixedRatio{Ratio: cfg.RewardRiskRatio, SafetyMargin: cfg.StopSafetyMargin}
	case "atr":
		exit = ATRScaled{StopMultiplier: cfg.ATRStopMultiplier, TargetMultiplier: cfg.ATRTargetMultiplier}
	default:
		return nil, fmt.Errorf("unknown exit strategy %q", cfg.ExitStrategy)
	}
	return &Engine{cfg: cfg, exit: exit}, nil
}

// ExitStrategyName reports which exit variant the engine was built with.
func (e *Engine) ExitStrategyName() string { return e.exit.Name() }

// Evaluate grades one candidate's indicator set and returns the highest
// tier whose predicates all hold.
func (e *Engine) Evaluate(symbol string, ind *indicator.Set) Result {
	result := Result{
		Symbol:           symbol,
		Tier:             TierRaw,
		RSI:              ind.RSI,
		VWAP:             ind.VWAP,
		Close:            ind.Last.Close,
		SessionChangePct: ind.SessionChangePct,
		CandleStrength:   candleStrength(ind),
	}

	rsiRising := ind.RSI > ind.RSIPrev
	volumeBuilding := ind.Last.Volume > ind.VolumeAvg
	volumeSurging := ind.Last.Volume > e.cfg.VolumeMultiplier*ind.VolumeAvg

	if e.tradeReady(ind, rsiRising, volumeSurging) {
		result.Tier = TierTradeReady
		result.Entry = ind.Last.High
		result.Stop, result.Target = e.exit.Levels(result.Entry, ind)
		result.Reasons = e.tradeReadyReasons(ind)
		return result
	}

	if e.earlyMomentum(ind, rsiRising, volumeBuilding) {
		result.Tier = TierEarlyMomentum
		result.Reasons = []string{
			"Price holding VWAP",
			fmt.Sprintf("RSI rising (%.1f from %.1f)", ind.RSI, ind.RSIPrev),
			"Volume building over average",
		}
	}

	return result
}

// earlyMomentum holds when price hugs VWAP while RSI and volume build.
func (e *Engine) earlyMomentum(ind *indicator.Set, rsiRising, volumeBuilding bool) bool {
	if ind.VWAP <= 0 {
		return false
	}
	proximity := math.Abs(ind.Last.Close-ind.VWAP) / ind.VWAP
	return proximity < e.cfg.VWAPProximityPct && rsiRising && volumeBuilding
}

// tradeReady holds when price has reclaimed VWAP and broken the opening
// range with RSI in the safe band and still rising, on surging volume.
// A candidate can reach it straight from RAW.
func (e *Engine) tradeReady(ind *indicator.Set, rsiRising, volumeSurging bool) bool {
	if !ind.HasOpeningRange {
		return false
	}
	close := ind.Last.Close
	aboveVWAP := close >= ind.VWAP*e.cfg.BreakoutTolerance
	brokeRange := close >= ind.OpeningRangeHigh*e.cfg.BreakoutTolerance
	rsiSafe := ind.RSI >= e.cfg.RSISafeLow && ind.RSI <= e.cfg.RSISafeHigh

	return aboveVWAP && brokeRange && rsiSafe && rsiRising && volumeSurging
}

func (e *Engine) tradeReadyReasons(ind *indicator.Set) []string {
	return []string{
		"VWAP reclaimed",
		fmt.Sprintf("Opening range high %.2f broken", ind.OpeningRangeHigh),
		fmt.Sprintf("RSI %.1f in safe band, rising", ind.RSI),
		fmt.Sprintf("Volume %.1fx rolling average", volumeRatio(ind)),
	}
}

func candleStrength(ind *indicator.Set) float64 {
	span := ind.Last.High - ind.Last.Low
	if span <= 0 {
		return 0
	}
	return (ind.Last.Close - ind.Last.Low) / span
}

func volumeRatio(ind *indicator.Set) float64 {
	if ind.VolumeAvg == 0 {
		return 0
	}
	return ind.Last.Volume / ind.VolumeAvg
}
