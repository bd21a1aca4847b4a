package indicator

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/kushalvora6290/moneycontrol-stock-scanner/internal/yahoo"
)

func istLocation(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("loading IST: %v", err)
	}
	return loc
}

// sessionBars builds 5-minute bars starting at 09:15 IST with the given
// closes. Open/high/low are derived around the close, volume is flat
// unless overridden.
func sessionBars(loc *time.Location, closes []float64, volumes []float64) []yahoo.Bar {
	start := time.Date(2026, 8, 28, 9, 15, 0, 0, loc)
	bars := make([]yahoo.Bar, len(closes))
	for i, c := range closes {
		vol := 1000.0
		if volumes != nil {
			vol = volumes[i]
		}
		bars[i] = yahoo.Bar{
			Timestamp: start.Add(time.Duration(i) * 5 * time.Minute),
			Open:      c - 0.1,
			High:      c + 0.2,
			Low:       c - 0.3,
			Close:     c,
			Volume:    vol,
		}
	}
	return bars
}

func newTestCalculator(t *testing.T, minBars int) *Calculator {
	t.Helper()
	calc, err := NewCalculator(Config{
		RSIPeriod:         3,
		VolumePeriod:      3,
		ATRPeriod:         3,
		MinBars:           minBars,
		OpeningRangeStart: "09:15",
		OpeningRangeEnd:   "09:45",
		Location:          istLocation(t),
	})
	if err != nil {
		t.Fatalf("NewCalculator: %v", err)
	}
	return calc
}

func TestComputeInsufficientData(t *testing.T) {
	calc := newTestCalculator(t, 10)
	loc := istLocation(t)

	_, err := calc.Compute(sessionBars(loc, []float64{100, 101, 102}, nil))
	if !errors.Is(err, ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
}

func TestRSIPinnedAt100OnAllGains(t *testing.T) {
	closes := []float64{100, 101, 102, 103, 104, 105}
	got := rsiAt(closes, len(closes)-1, 3)
	if got != 100.0 {
		t.Errorf("all-gain RSI = %v, want 100", got)
	}
}

func TestRSINeutralBeforeLookbackCovered(t *testing.T) {
	closes := []float64{100, 101}
	if got := rsiAt(closes, 1, 14); got != 50.0 {
		t.Errorf("short-history RSI = %v, want 50", got)
	}
}

func TestRSIWithinBounds(t *testing.T) {
	closes := []float64{100, 100.5, 100.2, 100.8, 101.5, 101.1, 101.9}
	got := rsiAt(closes, len(closes)-1, 3)
	if got <= 0 || got >= 100 {
		t.Errorf("mixed-move RSI = %v, want strictly inside (0, 100)", got)
	}
}

func TestVWAPWeightsByVolume(t *testing.T) {
	loc := istLocation(t)
	bars := sessionBars(loc, []float64{100, 200}, []float64{1000, 3000})

	// typical prices: (100.2+99.7+100)/3 and (200.2+199.7+200)/3
	tp1 := (100.2 + 99.7 + 100.0) / 3
	tp2 := (200.2 + 199.7 + 200.0) / 3
	want := (tp1*1000 + tp2*3000) / 4000

	got := VWAP(bars)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("VWAP = %v, want %v", got, want)
	}
}

func TestVWAPZeroVolume(t *testing.T) {
	loc := istLocation(t)
	bars := sessionBars(loc, []float64{100, 101}, []float64{0, 0})
	if got := VWAP(bars); got != 0 {
		t.Errorf("zero-volume VWAP = %v, want 0", got)
	}
}

func TestVolumeAverageShrinksWindow(t *testing.T) {
	loc := istLocation(t)
	bars := sessionBars(loc, []float64{100, 101}, []float64{500, 1500})
	if got := VolumeAverage(bars, 20); got != 1000 {
		t.Errorf("short-series volume average = %v, want 1000", got)
	}
}

func TestATRPositiveForMovingSeries(t *testing.T) {
	loc := istLocation(t)
	bars := sessionBars(loc, []float64{100, 102, 99, 103, 101}, nil)
	if got := ATR(bars, 3); got <= 0 {
		t.Errorf("ATR = %v, want positive", got)
	}
}

func TestOpeningRangeHigh(t *testing.T) {
	calc := newTestCalculator(t, 5)
	loc := istLocation(t)

	// 09:15..09:45 covers the first 7 bars; the spike at index 10 is outside
	closes := []float64{100, 101, 102, 101, 100, 101, 102, 103, 104, 105, 120, 106}
	set, err := calc.Compute(sessionBars(loc, closes, nil))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if !set.HasOpeningRange {
		t.Fatal("expected opening range to be found")
	}
	want := 102.2 // highest high among the window bars
	if math.Abs(set.OpeningRangeHigh-want) > 1e-9 {
		t.Errorf("OpeningRangeHigh = %v, want %v", set.OpeningRangeHigh, want)
	}
}

func TestOpeningRangeAbsentOutsideWindow(t *testing.T) {
	calc := newTestCalculator(t, 3)
	loc := istLocation(t)

	// Bars starting 11:00 IST never touch the 09:15-09:45 window
	start := time.Date(2026, 8, 28, 11, 0, 0, 0, loc)
	bars := make([]yahoo.Bar, 5)
	for i := range bars {
		bars[i] = yahoo.Bar{
			Timestamp: start.Add(time.Duration(i) * 5 * time.Minute),
			Open:      100, High: 101, Low: 99, Close: 100.5, Volume: 1000,
		}
	}

	set, err := calc.Compute(bars)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if set.HasOpeningRange {
		t.Error("expected no opening range for a late-session series")
	}
}

func TestSessionChangePct(t *testing.T) {
	calc := newTestCalculator(t, 4)
	loc := istLocation(t)

	closes := []float64{100, 101, 102, 104}
	set, err := calc.Compute(sessionBars(loc, closes, nil))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	// First bar opens at 99.9, last close 104
	want := (104 - 99.9) / 99.9 * 100
	if math.Abs(set.SessionChangePct-want) > 1e-9 {
		t.Errorf("SessionChangePct = %v, want %v", set.SessionChangePct, want)
	}
}

func TestNewCalculatorRejectsEmptyWindow(t *testing.T) {
	_, err := NewCalculator(Config{
		RSIPeriod: 14, VolumePeriod: 20, ATRPeriod: 14, MinBars: 30,
		OpeningRangeStart: "09:45",
		OpeningRangeEnd:   "09:15",
	})
	if err == nil {
		t.Error("expected error for inverted opening range window")
	}
}
