package universe

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kushalvora6290/moneycontrol-stock-scanner/config"
)

const redisKey = "scanner:universe:nse_eq"

// Set is the tradeable NSE equity universe keyed by bare symbol.
type Set map[string]struct{}

func (s Set) Contains(symbol string) bool {
	_, ok := s[symbol]
	return ok
}

func (s Set) Len() int { return len(s) }

// Loader fetches the NSE equity list and caches it, since the source
// CSV changes at most daily. Lookup order is Redis (when configured),
// then the local cache file within its TTL, then the NSE archive. A
// cache that fails to parse is discarded and the source refetched.
type Loader struct {
	cfg        config.UniverseConfig
	rdb        *redis.Client
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewLoader builds a universe loader. rdb may be nil; Redis is an
// optional shared cache, not a requirement.
func NewLoader(cfg config.UniverseConfig, rdb *redis.Client, logger zerolog.Logger) *Loader {
	return &Loader{
		cfg:        cfg,
		rdb:        rdb,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With().Str("component", "universe").Logger(),
	}
}

// Load returns the current NSE EQ-series universe. An empty set with a
// nil error never happens: either the set has symbols or err explains
// why every source failed.
func (l *Loader) Load(ctx context.Context) (Set, error) {
	if set := l.fromRedis(ctx); set != nil {
		return set, nil
	}

	if set := l.fromFile(); set != nil {
		return set, nil
	}

	data, err := l.fetch(ctx)
	if err != nil {
		return nil, err
	}

	set, err := parseEquityList(data)
	if err != nil {
		return nil, fmt.Errorf("equity list from %s: %w", l.cfg.SourceURL, err)
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("equity list from %s has no EQ rows", l.cfg.SourceURL)
	}

	l.store(ctx, data)
	l.logger.Info().Int("symbols", len(set)).Msg("universe refreshed from source")
	return set, nil
}

func (l *Loader) fromRedis(ctx context.Context) Set {
	if l.rdb == nil {
		return nil
	}
	data, err := l.rdb.Get(ctx, redisKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			l.logger.Debug().Err(err).Msg("redis universe lookup failed")
		}
		return nil
	}
	set, err := parseEquityList(data)
	if err != nil || len(set) == 0 {
		l.logger.Warn().Err(err).Msg("discarding corrupt redis universe cache")
		l.rdb.Del(ctx, redisKey)
		return nil
	}
	return set
}

func (l *Loader) fromFile() Set {
	info, err := os.Stat(l.cfg.CacheFile)
	if err != nil {
		return nil
	}
	if l.cfg.CacheTTL > 0 {
		age := time.Since(info.ModTime())
		if age > time.Duration(l.cfg.CacheTTL)*time.Second {
			return nil
		}
	}

	data, err := os.ReadFile(l.cfg.CacheFile)
	if err != nil {
		return nil
	}
	set, err := parseEquityList(data)
	if err != nil || len(set) == 0 {
		l.logger.Warn().Err(err).Str("file", l.cfg.CacheFile).Msg("discarding corrupt universe cache file")
		os.Remove(l.cfg.CacheFile)
		return nil
	}
	return set
}

func (l *Loader) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.cfg.SourceURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching equity list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("equity list fetch returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (l *Loader) store(ctx context.Context, data []byte) {
	if err := os.WriteFile(l.cfg.CacheFile, data, 0644); err != nil {
		l.logger.Warn().Err(err).Str("file", l.cfg.CacheFile).Msg("universe cache file write failed")
	}
	if l.rdb != nil {
		ttl := time.Duration(l.cfg.CacheTTL) * time.Second
		if err := l.rdb.Set(ctx, redisKey, data, ttl).Err(); err != nil {
			l.logger.Debug().Err(err).Msg("redis universe cache write failed")
		}
	}
}

// parseEquityList reads the NSE EQUITY_L.csv format and keeps EQ-series
// symbols. Header column names are matched case-insensitively since the
// archive has shipped both padded and unpadded variants.
func parseEquityList(data []byte) (Set, error) {
	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	symbolCol, seriesCol := -1, -1
	for i, name := range header {
		switch strings.ToUpper(strings.TrimSpace(name)) {
		case "SYMBOL":
			symbolCol = i
		case "SERIES":
			seriesCol = i
		}
	}
	if symbolCol < 0 || seriesCol < 0 {
		return nil, fmt.Errorf("missing SYMBOL/SERIES columns in header %v", header)
	}

	set := make(Set)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}
		if symbolCol >= len(row) || seriesCol >= len(row) {
			continue
		}
		if strings.TrimSpace(row[seriesCol]) != "EQ" {
			continue
		}
		symbol := strings.TrimSpace(row[symbolCol])
		if symbol != "" {
			set[symbol] = struct{}{}
		}
	}
	return set, nil
}
