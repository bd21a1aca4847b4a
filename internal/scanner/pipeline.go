package scanner

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/kushalvora6290/moneycontrol-stock-scanner/config"
	"github.com/kushalvora6290/moneycontrol-stock-scanner/internal/alert"
	"github.com/kushalvora6290/moneycontrol-stock-scanner/internal/confirm"
	"github.com/kushalvora6290/moneycontrol-stock-scanner/internal/events"
	"github.com/kushalvora6290/moneycontrol-stock-scanner/internal/indicator"
	"github.com/kushalvora6290/moneycontrol-stock-scanner/internal/notification"
	"github.com/kushalvora6290/moneycontrol-stock-scanner/internal/score"
	"github.com/kushalvora6290/moneycontrol-stock-scanner/internal/universe"
	"github.com/kushalvora6290/moneycontrol-stock-scanner/internal/yahoo"
)

// CategoryFetcher pulls one market-movers category feed.
type CategoryFetcher interface {
	FetchCategory(ctx context.Context, endpoint string) []string
}

// BarProvider fetches intraday bars for one symbol.
type BarProvider interface {
	GetBars(ctx context.Context, symbol string) []yahoo.Bar
}

// UniverseProvider supplies the tradeable symbol set. May be nil, in
// which case candidates are not filtered against a listing universe.
type UniverseProvider interface {
	Load(ctx context.Context) (universe.Set, error)
}

// ScanResult is the full outcome of one pipeline run.
type ScanResult struct {
	RunID         string           `json:"run_id"`
	StartedAt     time.Time        `json:"started_at"`
	Duration      time.Duration    `json:"duration"`
	Candidates    []score.Record   `json:"candidates"`
	Results       []confirm.Result `json:"results"`
	TradeReady    []confirm.Result `json:"trade_ready"`
	EarlyMomentum []confirm.Result `json:"early_momentum"`
	AlertsSent    int              `json:"alerts_sent"`
}

// Pipeline runs the full scan: weighted category aggregation, ranking,
// concurrent technical confirmation, then alerting with per-process
// dedup. One Pipeline lives for the whole process and is driven by the
// scheduler; each Run recomputes everything from fresh provider data.
type Pipeline struct {
	cfg       *config.Config
	movers    CategoryFetcher
	bars      BarProvider
	universes UniverseProvider
	calc      *indicator.Calculator
	engine    *confirm.Engine
	dedup     *alert.Deduplicator
	notifier  *notification.Manager
	bus       *events.EventBus
	limiter   *rate.Limiter
	logger    zerolog.Logger

	mu   sync.RWMutex
	last *ScanResult
}

func NewPipeline(
	cfg *config.Config,
	movers CategoryFetcher,
	bars BarProvider,
	universes UniverseProvider,
	calc *indicator.Calculator,
	engine *confirm.Engine,
	notifier *notification.Manager,
	bus *events.EventBus,
	logger zerolog.Logger,
) *Pipeline {
	rps := cfg.ScanConfig.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	return &Pipeline{
		cfg:       cfg,
		movers:    movers,
		bars:      bars,
		universes: universes,
		calc:      calc,
		engine:    engine,
		dedup:     alert.NewDeduplicator(),
		notifier:  notifier,
		bus:       bus,
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
		logger:    logger.With().Str("component", "scanner").Logger(),
	}
}

// job and indexed keep worker output tied to the candidate's ranked
// position so the collected slice can be re-sorted deterministically.
type job struct {
	pos    int
	symbol string
}

type indexed struct {
	pos    int
	result confirm.Result
}

// Run executes one complete scan. Provider failures degrade to empty
// feeds or skipped candidates; Run itself never fails.
func (p *Pipeline) Run(ctx context.Context) *ScanResult {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ScanConfig.RunTimeoutDuration())
	defer cancel()

	result := &ScanResult{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
	}
	logger := p.logger.With().Str("run_id", result.RunID).Logger()
	logger.Info().Msg("scan run started")
	p.bus.PublishScanStarted(result.RunID)

	ranked := p.rankCandidates(ctx, logger)
	result.Candidates = ranked

	if err := p.notifier.SendMomentumSnapshot(ranked, p.cfg.ScanConfig.SnapshotSize); err != nil {
		logger.Warn().Err(err).Msg("momentum snapshot delivery failed")
	}

	if len(ranked) > 0 {
		result.Results = p.evaluateCandidates(ctx, ranked, logger)
	}

	for _, r := range result.Results {
		switch r.Tier {
		case confirm.TierTradeReady:
			result.TradeReady = append(result.TradeReady, r)
		case confirm.TierEarlyMomentum:
			result.EarlyMomentum = append(result.EarlyMomentum, r)
		}
	}

	result.AlertsSent = p.dispatchAlerts(result, logger)

	if len(result.TradeReady) == 0 && len(result.EarlyMomentum) == 0 && len(ranked) > 0 {
		if err := p.notifier.SendNoSetups(); err != nil {
			logger.Warn().Err(err).Msg("no-setups notice delivery failed")
		}
	}

	result.Duration = time.Since(result.StartedAt)

	p.mu.Lock()
	p.last = result
	p.mu.Unlock()

	p.bus.PublishScanCompleted(result.RunID, len(ranked), len(result.EarlyMomentum), len(result.TradeReady), result.Duration)
	logger.Info().
		Int("candidates", len(ranked)).
		Int("early_momentum", len(result.EarlyMomentum)).
		Int("trade_ready", len(result.TradeReady)).
		Int("alerts_sent", result.AlertsSent).
		Dur("duration", result.Duration).
		Msg("scan run completed")

	return result
}

// rankCandidates pulls every configured category feed, aggregates
// weighted scores and returns the ranked candidate universe. Feeds are
// fetched sequentially under the shared rate limiter.
func (p *Pipeline) rankCandidates(ctx context.Context, logger zerolog.Logger) []score.Record {
	results := make([]score.CategoryResult, 0, len(p.cfg.MoneycontrolConfig.Categories))
	for _, cat := range p.cfg.MoneycontrolConfig.Categories {
		if err := p.limiter.Wait(ctx); err != nil {
			logger.Warn().Err(err).Msg("run deadline hit while fetching categories")
			break
		}
		symbols := p.movers.FetchCategory(ctx, cat.Endpoint)
		logger.Debug().Str("category", cat.Name).Int("symbols", len(symbols)).Msg("category fetched")
		results = append(results, score.CategoryResult{
			Name:    cat.Name,
			Weight:  cat.Weight,
			Symbols: symbols,
		})
	}

	records := score.Aggregate(results)
	p.filterByUniverse(ctx, records, logger)

	ranked := score.Rank(records, p.cfg.ScanConfig.MinScore, p.cfg.ScanConfig.MaxUniverse)
	logger.Info().Int("aggregated", len(records)).Int("ranked", len(ranked)).Msg("candidates ranked")
	return ranked
}

// filterByUniverse drops symbols absent from the NSE equity list. A
// universe load failure disables filtering for the run rather than
// killing it.
func (p *Pipeline) filterByUniverse(ctx context.Context, records map[string]*score.Record, logger zerolog.Logger) {
	if p.universes == nil {
		return
	}
	set, err := p.universes.Load(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("universe unavailable, skipping listing filter")
		return
	}
	for symbol := range records {
		if !set.Contains(symbol) {
			logger.Debug().Str("symbol", symbol).Msg("dropped, not in NSE EQ universe")
			delete(records, symbol)
		}
	}
}

// evaluateCandidates runs the confirmation ladder over the ranked
// candidates with a bounded worker pool. Output preserves rank order.
func (p *Pipeline) evaluateCandidates(ctx context.Context, ranked []score.Record, logger zerolog.Logger) []confirm.Result {
	jobChan := make(chan job, len(ranked))
	resultChan := make(chan indexed, len(ranked))

	var wg sync.WaitGroup
	for w := 0; w < p.cfg.ScanConfig.WorkerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobChan {
				if res, ok := p.evaluateOne(ctx, j.symbol, logger); ok {
					resultChan <- indexed{pos: j.pos, result: res}
				}
			}
		}()
	}

	for i, rec := range ranked {
		jobChan <- job{pos: i, symbol: rec.Symbol}
	}
	close(jobChan)

	wg.Wait()
	close(resultChan)

	collected := make([]indexed, 0, len(ranked))
	for item := range resultChan {
		collected = append(collected, item)
	}
	sort.Slice(collected, func(i, j int) bool { return collected[i].pos < collected[j].pos })

	results := make([]confirm.Result, 0, len(collected))
	for _, item := range collected {
		results = append(results, item.result)
	}
	return results
}

// evaluateOne fetches bars, computes indicators and grades a single
// candidate. Any failure skips the candidate without affecting others.
func (p *Pipeline) evaluateOne(ctx context.Context, symbol string, logger zerolog.Logger) (confirm.Result, bool) {
	if err := p.limiter.Wait(ctx); err != nil {
		return confirm.Result{}, false
	}

	symbolCtx, cancel := context.WithTimeout(ctx, p.cfg.ScanConfig.SymbolTimeoutDuration())
	defer cancel()

	bars := p.bars.GetBars(symbolCtx, symbol)
	if len(bars) == 0 {
		logger.Debug().Str("symbol", symbol).Msg("no bars, candidate skipped")
		return confirm.Result{}, false
	}

	ind, err := p.calc.Compute(bars)
	if err != nil {
		if errors.Is(err, indicator.ErrInsufficientData) {
			logger.Debug().Str("symbol", symbol).Int("bars", len(bars)).Msg("insufficient history, candidate skipped")
		} else {
			logger.Warn().Err(err).Str("symbol", symbol).Msg("indicator computation failed")
		}
		return confirm.Result{}, false
	}

	return p.engine.Evaluate(symbol, ind), true
}

// dispatchAlerts sends notifications for newly confirmed setups,
// deduplicated per (symbol, tier) for the process lifetime. Trade
// alerts are capped per run; delivery failures are logged and the
// pair stays marked so a flaky channel cannot cause alert spam.
func (p *Pipeline) dispatchAlerts(result *ScanResult, logger zerolog.Logger) int {
	sent := 0

	for _, r := range result.TradeReady {
		// Cap check comes first so a capped setup stays unmarked and can
		// alert on a later run
		if p.cfg.ScanConfig.MaxTradeAlerts > 0 && sent >= p.cfg.ScanConfig.MaxTradeAlerts {
			logger.Info().Str("symbol", r.Symbol).Msg("trade alert cap reached, setup recorded without alert")
			continue
		}
		if !p.dedup.ShouldAlert(r.Symbol, r.Tier) {
			continue
		}
		p.bus.PublishTradeReady(result.RunID, r.Symbol, r.Entry, r.Stop, r.Target, r.RSI)
		if err := p.notifier.SendTradeAlert(r); err != nil {
			logger.Warn().Err(err).Str("symbol", r.Symbol).Msg("trade alert delivery failed")
		}
		sent++
	}

	for _, r := range result.EarlyMomentum {
		if !p.dedup.ShouldAlert(r.Symbol, r.Tier) {
			continue
		}
		p.bus.PublishEarlyMomentum(result.RunID, r.Symbol, r.Close, r.VWAP, r.RSI)
		if err := p.notifier.SendEarlyMomentum(r); err != nil {
			logger.Warn().Err(err).Str("symbol", r.Symbol).Msg("early momentum notice delivery failed")
		}
	}

	return sent
}

// LastResult returns the most recent completed run, or nil before the
// first run finishes.
func (p *Pipeline) LastResult() *ScanResult {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last
}

// AlertedPairs reports how many (symbol, tier) pairs have alerted since
// process start.
func (p *Pipeline) AlertedPairs() int {
	return p.dedup.Size()
}
