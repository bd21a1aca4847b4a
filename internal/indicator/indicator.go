package indicator

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kushalvora6290/moneycontrol-stock-scanner/internal/yahoo"
)

// ErrInsufficientData marks a bar series too short to evaluate. Callers
// skip the candidate; this is expected for thinly traded or freshly
// listed symbols, not a defect.
var ErrInsufficientData = errors.New("insufficient bar data")

// Set holds the per-symbol indicator snapshot derived from one bar series.
// Everything is recomputed from scratch each run; nothing carries over.
type Set struct {
	RSI              float64 // At the latest bar
	RSIPrev          float64 // At the bar before it
	VWAP             float64 // Cumulative from the start of the window
	VolumeAvg        float64 // Rolling simple average, latest window
	OpeningRangeHigh float64
	HasOpeningRange  bool // False when no bar fell inside the session-open window
	ATR              float64
	SessionChangePct float64 // Close vs first bar open, percent
	Last             yahoo.Bar
	Prev             yahoo.Bar
}

// Config fixes the lookbacks and the session-open window.
type Config struct {
	RSIPeriod         int
	VolumePeriod      int
	ATRPeriod         int
	MinBars           int
	OpeningRangeStart string // "09:15", venue-local
	OpeningRangeEnd   string // "09:45", venue-local
	Location          *time.Location
}

// Calculator computes the indicator set for a bar series.
type Calculator struct {
	cfg        Config
	rangeStart int // Minutes after midnight, venue-local
	rangeEnd   int
}

func NewCalculator(cfg Config) (*Calculator, error) {
	start, err := parseClock(cfg.OpeningRangeStart)
	if err != nil {
		return nil, fmt.Errorf("opening range start: %w", err)
	}
	end, err := parseClock(cfg.OpeningRangeEnd)
	if err != nil {
		return nil, fmt.Errorf("opening range end: %w", err)
	}
	if end <= start {
		return nil, fmt.Errorf("opening range window [%s, %s] is empty", cfg.OpeningRangeStart, cfg.OpeningRangeEnd)
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Calculator{cfg: cfg, rangeStart: start, rangeEnd: end}, nil
}

// Compute derives the full indicator set from a chronological bar series.
// Returns ErrInsufficientData when the series is shorter than MinBars.
func (c *Calculator) Compute(bars []yahoo.Bar) (*Set, error) {
	if len(bars) < c.cfg.MinBars {
		return nil, ErrInsufficientData
	}

	last := len(bars) - 1
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	set := &Set{
		RSI:       rsiAt(closes, last, c.cfg.RSIPeriod),
		RSIPrev:   rsiAt(closes, last-1, c.cfg.RSIPeriod),
		VWAP:      VWAP(bars),
		VolumeAvg: VolumeAverage(bars, c.cfg.VolumePeriod),
		ATR:       ATR(bars, c.cfg.ATRPeriod),
		Last:      bars[last],
		Prev:      bars[last-1],
	}

	if firstOpen := bars[0].Open; firstOpen != 0 {
		set.SessionChangePct = (bars[last].Close - firstOpen) / firstOpen * 100
	}

	set.OpeningRangeHigh, set.HasOpeningRange = c.openingRangeHigh(bars)

	return set, nil
}

// rsiAt computes RSI at index idx using a rolling mean of gains and
// losses over the period. An all-gain window is pinned to 100 rather
// than dividing by a zero average loss.
func rsiAt(closes []float64, idx, period int) float64 {
	if idx < period {
		return 50.0 // Neutral when the lookback is not yet covered
	}

	gains := 0.0
	losses := 0.0
	for i := idx - period + 1; i <= idx; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains += change
		} else {
			losses += -change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		return 100.0
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// VWAP is the running volume-weighted average of typical price over the
// whole window, not a period-bounded average.
func VWAP(bars []yahoo.Bar) float64 {
	var pvSum, volSum float64
	for _, b := range bars {
		typical := (b.High + b.Low + b.Close) / 3
		pvSum += typical * b.Volume
		volSum += b.Volume
	}
	if volSum == 0 {
		return 0
	}
	return pvSum / volSum
}

// VolumeAverage is the simple moving average of volume over the trailing
// window, current bar included.
func VolumeAverage(bars []yahoo.Bar, period int) float64 {
	if len(bars) < period {
		period = len(bars)
	}
	if period == 0 {
		return 0
	}

	sum := 0.0
	for i := len(bars) - period; i < len(bars); i++ {
		sum += bars[i].Volume
	}
	return sum / float64(period)
}

// ATR is the simple average of true range over the trailing period.
func ATR(bars []yahoo.Bar, period int) float64 {
	if len(bars) < period+1 {
		return 0
	}

	trSum := 0.0
	for i := len(bars) - period; i < len(bars); i++ {
		high := bars[i].High
		low := bars[i].Low
		prevClose := bars[i-1].Close

		tr := math.Max(
			high-low,
			math.Max(
				math.Abs(high-prevClose),
				math.Abs(low-prevClose),
			),
		)
		trSum += tr
	}
	return trSum / float64(period)
}

// openingRangeHigh scans bars whose venue-local clock time falls inside
// the session-open window and returns the highest high.
func (c *Calculator) openingRangeHigh(bars []yahoo.Bar) (float64, bool) {
	high := 0.0
	found := false
	for _, b := range bars {
		local := b.Timestamp.In(c.cfg.Location)
		minutes := local.Hour()*60 + local.Minute()
		if minutes < c.rangeStart || minutes > c.rangeEnd {
			continue
		}
		if !found || b.High > high {
			high = b.High
		}
		found = true
	}
	return high, found
}

// parseClock turns "HH:MM" into minutes after midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
