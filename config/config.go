package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	MoneycontrolConfig MoneycontrolConfig `json:"moneycontrol"`
	YahooConfig        YahooConfig        `json:"yahoo"`
	UniverseConfig     UniverseConfig     `json:"universe"`
	ScanConfig         ScanConfig         `json:"scan"`
	ConfirmationConfig ConfirmationConfig `json:"confirmation"`
	MarketHoursConfig  MarketHoursConfig  `json:"market_hours"`
	SchedulerConfig    SchedulerConfig    `json:"scheduler"`
	NotificationConfig NotificationConfig `json:"notification"`
	ServerConfig       ServerConfig       `json:"server"`
	RedisConfig        RedisConfig        `json:"redis"`
	VaultConfig        VaultConfig        `json:"vault"`
	LoggingConfig      LoggingConfig      `json:"logging"`
}

// Category pairs a Moneycontrol market-stats endpoint with its score weight.
type Category struct {
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"` // path under the swiftapi stats base
	Weight   int    `json:"weight"`
}

type MoneycontrolConfig struct {
	BaseURL        string     `json:"base_url"`
	Categories     []Category `json:"categories"`
	IndexID        string     `json:"index_id"`
	Duration       string     `json:"duration"`
	RequestTimeout int        `json:"request_timeout"` // Seconds
}

type YahooConfig struct {
	BaseURL        string `json:"base_url"`
	Interval       string `json:"interval"`        // e.g., "5m"
	Range          string `json:"range"`           // e.g., "1d"
	SymbolSuffix   string `json:"symbol_suffix"`   // ".NS" for NSE listings
	RequestTimeout int    `json:"request_timeout"` // Seconds
}

type UniverseConfig struct {
	SourceURL string `json:"source_url"` // NSE equity list CSV
	CacheFile string `json:"cache_file"`
	CacheTTL  int    `json:"cache_ttl"` // Seconds; 0 disables expiry
}

type ScanConfig struct {
	MinScore          int     `json:"min_score"`           // Minimum aggregate score to rank
	MaxUniverse       int     `json:"max_universe"`        // Max candidates evaluated per run
	SnapshotSize      int     `json:"snapshot_size"`       // Symbols shown in the raw momentum snapshot
	MaxTradeAlerts    int     `json:"max_trade_alerts"`    // Cap on TRADE_READY alerts per run (0 = unlimited)
	WorkerCount       int     `json:"worker_count"`        // Concurrent candidate evaluators
	SymbolTimeout     int     `json:"symbol_timeout"`      // Seconds per price-history fetch
	RunTimeout        int     `json:"run_timeout"`         // Seconds for the whole run
	RequestsPerSecond float64 `json:"requests_per_second"` // Provider rate limit, shared by workers
}

type ConfirmationConfig struct {
	MinBars             int     `json:"min_bars"` // Below this the candidate is skipped
	RSIPeriod           int     `json:"rsi_period"`
	VolumePeriod        int     `json:"volume_period"`      // Rolling volume average window
	VWAPProximityPct    float64 `json:"vwap_proximity_pct"` // Early momentum: |close-VWAP|/VWAP ceiling
	BreakoutTolerance   float64 `json:"breakout_tolerance"` // Fraction of reference accepted, e.g. 0.998
	RSISafeLow          float64 `json:"rsi_safe_low"`
	RSISafeHigh         float64 `json:"rsi_safe_high"`
	VolumeMultiplier    float64 `json:"volume_multiplier"`  // Trade-ready volume vs rolling average
	RewardRiskRatio     float64 `json:"reward_risk_ratio"`
	StopSafetyMargin    float64 `json:"stop_safety_margin"` // Fractional shrink applied to the stop, e.g. 0.003
	ExitStrategy        string  `json:"exit_strategy"`      // "fixed_rr" or "atr"
	ATRPeriod           int     `json:"atr_period"`
	ATRStopMultiplier   float64 `json:"atr_stop_multiplier"`
	ATRTargetMultiplier float64 `json:"atr_target_multiplier"`
	OpeningRangeStart   string  `json:"opening_range_start"` // "09:15" venue-local
	OpeningRangeEnd     string  `json:"opening_range_end"`   // "09:45" venue-local
}

type MarketHoursConfig struct {
	Enabled  bool   `json:"enabled"`
	Timezone string `json:"timezone"`
	Open     string `json:"open"`  // "09:15"
	Close    string `json:"close"` // "15:30"
}

type SchedulerConfig struct {
	Enabled    bool   `json:"enabled"`
	CronSpec   string `json:"cron_spec"` // e.g. "*/5 9-15 * * 1-5"
	RunOnStart bool   `json:"run_on_start"`
}

type NotificationConfig struct {
	Enabled  bool           `json:"enabled"`
	Telegram TelegramConfig `json:"telegram"`
	Discord  DiscordConfig  `json:"discord"`
}

type TelegramConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}

type DiscordConfig struct {
	Enabled    bool   `json:"enabled"`
	WebhookURL string `json:"webhook_url"`
}

// ServerConfig holds the HTTP status API configuration
type ServerConfig struct {
	Enabled         bool   `json:"enabled"`
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"`
	ReadTimeout     int    `json:"read_timeout"`     // Seconds
	WriteTimeout    int    `json:"write_timeout"`    // Seconds
	ShutdownTimeout int    `json:"shutdown_timeout"` // Seconds
}

// RedisConfig holds the optional Redis cache for the symbol universe
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// VaultConfig holds HashiCorp Vault configuration for notifier credentials
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`
	SecretPath string `json:"secret_path"` // Path of the telegram credential secret
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
}

type LoggingConfig struct {
	Level      string `json:"level"`       // debug, info, warn, error
	Output     string `json:"output"`      // stdout, stderr, or file path
	JSONFormat bool   `json:"json_format"` // JSON lines vs console writer
}

// DefaultCategories lists the Moneycontrol market-movers feeds the scanner
// weighs. Volume and price shocks score higher than generic gainers lists.
func DefaultCategories() []Category {
	return []Category{
		{Name: "Volume Shockers", Endpoint: "volume-shocker", Weight: 4},
		{Name: "Price Shockers", Endpoint: "price-shocker", Weight: 4},
		{Name: "Only Buyers", Endpoint: "buyer", Weight: 3},
		{Name: "Top Gainers", Endpoint: "gainer", Weight: 2},
		{Name: "52 Week High", Endpoint: "52-week-high", Weight: 1},
	}
}

func Load() (*Config, error) {
	cfg, err := loadFromFile("config.json")
	if err != nil {
		// If no config file, start with defaults + environment
		cfg = &Config{}
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.MoneycontrolConfig.BaseURL == "" {
		cfg.MoneycontrolConfig.BaseURL = "https://api.moneycontrol.com/swiftapi/v1/markets/stats"
	}
	if len(cfg.MoneycontrolConfig.Categories) == 0 {
		cfg.MoneycontrolConfig.Categories = DefaultCategories()
	}
	if cfg.MoneycontrolConfig.IndexID == "" {
		cfg.MoneycontrolConfig.IndexID = "7"
	}
	if cfg.MoneycontrolConfig.Duration == "" {
		cfg.MoneycontrolConfig.Duration = "1d"
	}
	if cfg.MoneycontrolConfig.RequestTimeout == 0 {
		cfg.MoneycontrolConfig.RequestTimeout = 10
	}

	if cfg.YahooConfig.BaseURL == "" {
		cfg.YahooConfig.BaseURL = "https://query1.finance.yahoo.com"
	}
	if cfg.YahooConfig.Interval == "" {
		cfg.YahooConfig.Interval = "5m"
	}
	if cfg.YahooConfig.Range == "" {
		cfg.YahooConfig.Range = "1d"
	}
	if cfg.YahooConfig.SymbolSuffix == "" {
		cfg.YahooConfig.SymbolSuffix = ".NS"
	}
	if cfg.YahooConfig.RequestTimeout == 0 {
		cfg.YahooConfig.RequestTimeout = 10
	}

	if cfg.UniverseConfig.SourceURL == "" {
		cfg.UniverseConfig.SourceURL = "https://archives.nseindia.com/content/equities/EQUITY_L.csv"
	}
	if cfg.UniverseConfig.CacheFile == "" {
		cfg.UniverseConfig.CacheFile = "nse_symbols.csv"
	}
	if cfg.UniverseConfig.CacheTTL == 0 {
		cfg.UniverseConfig.CacheTTL = 86400
	}

	if cfg.ScanConfig.MinScore == 0 {
		cfg.ScanConfig.MinScore = 3
	}
	if cfg.ScanConfig.MaxUniverse == 0 {
		cfg.ScanConfig.MaxUniverse = 40
	}
	if cfg.ScanConfig.SnapshotSize == 0 {
		cfg.ScanConfig.SnapshotSize = 15
	}
	if cfg.ScanConfig.MaxTradeAlerts == 0 {
		cfg.ScanConfig.MaxTradeAlerts = 6
	}
	if cfg.ScanConfig.WorkerCount == 0 {
		cfg.ScanConfig.WorkerCount = 4
	}
	if cfg.ScanConfig.SymbolTimeout == 0 {
		cfg.ScanConfig.SymbolTimeout = 15
	}
	if cfg.ScanConfig.RunTimeout == 0 {
		cfg.ScanConfig.RunTimeout = 300
	}
	if cfg.ScanConfig.RequestsPerSecond == 0 {
		cfg.ScanConfig.RequestsPerSecond = 1.25 // ~800ms spacing toward providers
	}

	if cfg.ConfirmationConfig.MinBars == 0 {
		cfg.ConfirmationConfig.MinBars = 30
	}
	if cfg.ConfirmationConfig.RSIPeriod == 0 {
		cfg.ConfirmationConfig.RSIPeriod = 14
	}
	if cfg.ConfirmationConfig.VolumePeriod == 0 {
		cfg.ConfirmationConfig.VolumePeriod = 20
	}
	if cfg.ConfirmationConfig.VWAPProximityPct == 0 {
		cfg.ConfirmationConfig.VWAPProximityPct = 0.02
	}
	if cfg.ConfirmationConfig.BreakoutTolerance == 0 {
		cfg.ConfirmationConfig.BreakoutTolerance = 0.998
	}
	if cfg.ConfirmationConfig.RSISafeLow == 0 {
		cfg.ConfirmationConfig.RSISafeLow = 55
	}
	if cfg.ConfirmationConfig.RSISafeHigh == 0 {
		cfg.ConfirmationConfig.RSISafeHigh = 70
	}
	if cfg.ConfirmationConfig.VolumeMultiplier == 0 {
		cfg.ConfirmationConfig.VolumeMultiplier = 1.3
	}
	if cfg.ConfirmationConfig.RewardRiskRatio == 0 {
		cfg.ConfirmationConfig.RewardRiskRatio = 2.0
	}
	if cfg.ConfirmationConfig.StopSafetyMargin == 0 {
		cfg.ConfirmationConfig.StopSafetyMargin = 0.003
	}
	if cfg.ConfirmationConfig.ExitStrategy == "" {
		cfg.ConfirmationConfig.ExitStrategy = "fixed_rr"
	}
	if cfg.ConfirmationConfig.ATRPeriod == 0 {
		cfg.ConfirmationConfig.ATRPeriod = 14
	}
	if cfg.ConfirmationConfig.ATRStopMultiplier == 0 {
		cfg.ConfirmationConfig.ATRStopMultiplier = 1.0
	}
	if cfg.ConfirmationConfig.ATRTargetMultiplier == 0 {
		cfg.ConfirmationConfig.ATRTargetMultiplier = 2.0
	}
	if cfg.ConfirmationConfig.OpeningRangeStart == "" {
		cfg.ConfirmationConfig.OpeningRangeStart = "09:15"
	}
	if cfg.ConfirmationConfig.OpeningRangeEnd == "" {
		cfg.ConfirmationConfig.OpeningRangeEnd = "09:45"
	}

	if cfg.MarketHoursConfig.Timezone == "" {
		cfg.MarketHoursConfig.Timezone = "Asia/Kolkata"
	}
	if cfg.MarketHoursConfig.Open == "" {
		cfg.MarketHoursConfig.Open = "09:15"
	}
	if cfg.MarketHoursConfig.Close == "" {
		cfg.MarketHoursConfig.Close = "15:30"
	}

	if cfg.SchedulerConfig.CronSpec == "" {
		cfg.SchedulerConfig.CronSpec = "*/5 9-15 * * 1-5"
	}

	if cfg.ServerConfig.Port == 0 {
		cfg.ServerConfig.Port = 8080
	}
	if cfg.ServerConfig.Host == "" {
		cfg.ServerConfig.Host = "0.0.0.0"
	}
	if cfg.ServerConfig.AllowedOrigins == "" {
		cfg.ServerConfig.AllowedOrigins = "*"
	}
	if cfg.ServerConfig.ReadTimeout == 0 {
		cfg.ServerConfig.ReadTimeout = 30
	}
	if cfg.ServerConfig.WriteTimeout == 0 {
		cfg.ServerConfig.WriteTimeout = 30
	}
	if cfg.ServerConfig.ShutdownTimeout == 0 {
		cfg.ServerConfig.ShutdownTimeout = 10
	}
}

func applyEnvOverrides(cfg *Config) {
	cfg.MoneycontrolConfig.BaseURL = getEnvOrDefault("MONEYCONTROL_BASE_URL", cfg.MoneycontrolConfig.BaseURL)
	cfg.YahooConfig.BaseURL = getEnvOrDefault("YAHOO_BASE_URL", cfg.YahooConfig.BaseURL)
	cfg.YahooConfig.Interval = getEnvOrDefault("YAHOO_INTERVAL", cfg.YahooConfig.Interval)

	cfg.UniverseConfig.SourceURL = getEnvOrDefault("UNIVERSE_SOURCE_URL", cfg.UniverseConfig.SourceURL)
	cfg.UniverseConfig.CacheFile = getEnvOrDefault("UNIVERSE_CACHE_FILE", cfg.UniverseConfig.CacheFile)

	cfg.ScanConfig.MinScore = getEnvIntOrDefault("SCAN_MIN_SCORE", cfg.ScanConfig.MinScore)
	cfg.ScanConfig.MaxUniverse = getEnvIntOrDefault("SCAN_MAX_UNIVERSE", cfg.ScanConfig.MaxUniverse)
	cfg.ScanConfig.MaxTradeAlerts = getEnvIntOrDefault("SCAN_MAX_TRADE_ALERTS", cfg.ScanConfig.MaxTradeAlerts)
	cfg.ScanConfig.WorkerCount = getEnvIntOrDefault("SCAN_WORKER_COUNT", cfg.ScanConfig.WorkerCount)
	cfg.ScanConfig.RequestsPerSecond = getEnvFloatOrDefault("SCAN_REQUESTS_PER_SECOND", cfg.ScanConfig.RequestsPerSecond)

	cfg.ConfirmationConfig.RSISafeLow = getEnvFloatOrDefault("CONFIRM_RSI_SAFE_LOW", cfg.ConfirmationConfig.RSISafeLow)
	cfg.ConfirmationConfig.RSISafeHigh = getEnvFloatOrDefault("CONFIRM_RSI_SAFE_HIGH", cfg.ConfirmationConfig.RSISafeHigh)
	cfg.ConfirmationConfig.VolumeMultiplier = getEnvFloatOrDefault("CONFIRM_VOLUME_MULTIPLIER", cfg.ConfirmationConfig.VolumeMultiplier)
	cfg.ConfirmationConfig.RewardRiskRatio = getEnvFloatOrDefault("CONFIRM_REWARD_RISK_RATIO", cfg.ConfirmationConfig.RewardRiskRatio)
	cfg.ConfirmationConfig.ExitStrategy = getEnvOrDefault("CONFIRM_EXIT_STRATEGY", cfg.ConfirmationConfig.ExitStrategy)

	cfg.MarketHoursConfig.Enabled = getEnvOrDefault("MARKET_HOURS_ENABLED", boolString(cfg.MarketHoursConfig.Enabled)) == "true"
	cfg.MarketHoursConfig.Timezone = getEnvOrDefault("MARKET_TIMEZONE", cfg.MarketHoursConfig.Timezone)

	cfg.SchedulerConfig.Enabled = getEnvOrDefault("SCHEDULER_ENABLED", boolString(cfg.SchedulerConfig.Enabled)) == "true"
	cfg.SchedulerConfig.CronSpec = getEnvOrDefault("SCHEDULER_CRON", cfg.SchedulerConfig.CronSpec)
	cfg.SchedulerConfig.RunOnStart = getEnvOrDefault("SCHEDULER_RUN_ON_START", boolString(cfg.SchedulerConfig.RunOnStart)) == "true"

	cfg.NotificationConfig.Enabled = getEnvOrDefault("NOTIFICATIONS_ENABLED", boolString(cfg.NotificationConfig.Enabled)) == "true"
	cfg.NotificationConfig.Telegram.Enabled = getEnvOrDefault("TELEGRAM_ENABLED", boolString(cfg.NotificationConfig.Telegram.Enabled)) == "true"
	cfg.NotificationConfig.Telegram.BotToken = getEnvOrDefault("TELEGRAM_BOT_TOKEN", cfg.NotificationConfig.Telegram.BotToken)
	cfg.NotificationConfig.Telegram.ChatID = getEnvOrDefault("TELEGRAM_CHAT_ID", cfg.NotificationConfig.Telegram.ChatID)
	cfg.NotificationConfig.Discord.Enabled = getEnvOrDefault("DISCORD_ENABLED", boolString(cfg.NotificationConfig.Discord.Enabled)) == "true"
	cfg.NotificationConfig.Discord.WebhookURL = getEnvOrDefault("DISCORD_WEBHOOK_URL", cfg.NotificationConfig.Discord.WebhookURL)

	cfg.ServerConfig.Enabled = getEnvOrDefault("SERVER_ENABLED", boolString(cfg.ServerConfig.Enabled)) == "true"
	cfg.ServerConfig.Port = getEnvIntOrDefault("SERVER_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.Host = getEnvOrDefault("SERVER_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", cfg.ServerConfig.AllowedOrigins)

	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", boolString(cfg.RedisConfig.Enabled)) == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)

	cfg.VaultConfig.Enabled = getEnvOrDefault("VAULT_ENABLED", boolString(cfg.VaultConfig.Enabled)) == "true"
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", cfg.VaultConfig.Address)
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", cfg.VaultConfig.MountPath)
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", cfg.VaultConfig.SecretPath)

	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", cfg.LoggingConfig.Output)
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", boolString(cfg.LoggingConfig.JSONFormat)) == "true"
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	for _, cat := range c.MoneycontrolConfig.Categories {
		if cat.Weight <= 0 {
			return fmt.Errorf("category %q has non-positive weight %d", cat.Name, cat.Weight)
		}
		if cat.Endpoint == "" {
			return fmt.Errorf("category %q has no endpoint", cat.Name)
		}
	}
	cc := c.ConfirmationConfig
	if cc.MinBars <= cc.RSIPeriod || cc.MinBars <= cc.VolumePeriod {
		return fmt.Errorf("min_bars %d must exceed the longest lookback (rsi %d, volume %d)",
			cc.MinBars, cc.RSIPeriod, cc.VolumePeriod)
	}
	if cc.RSISafeLow >= cc.RSISafeHigh {
		return fmt.Errorf("rsi safe band [%v, %v] is empty", cc.RSISafeLow, cc.RSISafeHigh)
	}
	if cc.ExitStrategy != "fixed_rr" && cc.ExitStrategy != "atr" {
		return fmt.Errorf("unknown exit strategy %q", cc.ExitStrategy)
	}
	if c.ScanConfig.WorkerCount < 1 {
		return fmt.Errorf("worker_count must be at least 1")
	}
	return nil
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// SymbolTimeoutDuration returns the per-symbol fetch timeout.
func (s ScanConfig) SymbolTimeoutDuration() time.Duration {
	return time.Duration(s.SymbolTimeout) * time.Second
}

// RunTimeoutDuration returns the whole-run deadline.
func (s ScanConfig) RunTimeoutDuration() time.Duration {
	return time.Duration(s.RunTimeout) * time.Second
}

// GenerateSampleConfig creates a sample configuration file
func GenerateSampleConfig(filename string) error {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.NotificationConfig = NotificationConfig{
		Enabled: true,
		Telegram: TelegramConfig{
			Enabled:  true,
			BotToken: "your_bot_token_here",
			ChatID:   "your_chat_id_here",
		},
	}
	cfg.SchedulerConfig.Enabled = true
	cfg.SchedulerConfig.RunOnStart = true
	cfg.MarketHoursConfig.Enabled = true
	cfg.ServerConfig.Enabled = true
	cfg.LoggingConfig = LoggingConfig{Level: "info", Output: "stdout", JSONFormat: true}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
