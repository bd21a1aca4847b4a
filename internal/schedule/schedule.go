package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/kushalvora6290/moneycontrol-stock-scanner/config"
	"github.com/kushalvora6290/moneycontrol-stock-scanner/internal/events"
)

// MarketHours gates scan runs to the venue's trading session:
// Monday to Friday between the configured open and close, venue-local.
// NSE trades 09:15 to 15:30 IST. Exchange holidays are not modeled; a
// holiday run simply finds stale feeds and produces nothing.
type MarketHours struct {
	enabled   bool
	loc       *time.Location
	openMins  int
	closeMins int
}

func NewMarketHours(cfg config.MarketHoursConfig) (*MarketHours, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("market timezone %q: %w", cfg.Timezone, err)
	}
	open, err := parseClock(cfg.Open)
	if err != nil {
		return nil, fmt.Errorf("market open: %w", err)
	}
	closeAt, err := parseClock(cfg.Close)
	if err != nil {
		return nil, fmt.Errorf("market close: %w", err)
	}
	if closeAt <= open {
		return nil, fmt.Errorf("market session [%s, %s] is empty", cfg.Open, cfg.Close)
	}
	return &MarketHours{
		enabled:   cfg.Enabled,
		loc:       loc,
		openMins:  open,
		closeMins: closeAt,
	}, nil
}

// IsOpen reports whether t falls inside the trading session. Always
// true when the gate is disabled, so backtest-style manual runs work
// off hours.
func (m *MarketHours) IsOpen(t time.Time) bool {
	if !m.enabled {
		return true
	}
	local := t.In(m.loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	minutes := local.Hour()*60 + local.Minute()
	return minutes >= m.openMins && minutes <= m.closeMins
}

// Location returns the venue timezone, shared with the cron scheduler
// and the opening-range window.
func (m *MarketHours) Location() *time.Location {
	return m.loc
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Scheduler drives scan runs on a cron cadence in venue-local time,
// skipping ticks that land outside market hours.
type Scheduler struct {
	cron   *cron.Cron
	hours  *MarketHours
	run    func(context.Context)
	bus    *events.EventBus
	logger zerolog.Logger
}

func NewScheduler(cfg config.SchedulerConfig, hours *MarketHours, run func(context.Context), bus *events.EventBus, logger zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(cron.WithLocation(hours.Location())),
		hours:  hours,
		run:    run,
		bus:    bus,
		logger: logger.With().Str("component", "scheduler").Logger(),
	}
	if _, err := s.cron.AddFunc(cfg.CronSpec, s.tick); err != nil {
		return nil, fmt.Errorf("cron spec %q: %w", cfg.CronSpec, err)
	}
	return s, nil
}

func (s *Scheduler) tick() {
	if !s.hours.IsOpen(time.Now()) {
		s.logger.Debug().Msg("tick outside market hours, run skipped")
		s.bus.PublishScanSkipped("market closed")
		return
	}
	s.run(context.Background())
}

// Start begins the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Msg("scheduler started")
}

// Stop halts the cron loop and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("scheduler stopped")
}
