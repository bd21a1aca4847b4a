package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kushalvora6290/moneycontrol-stock-scanner/config"
	"github.com/kushalvora6290/moneycontrol-stock-scanner/internal/api"
	"github.com/kushalvora6290/moneycontrol-stock-scanner/internal/confirm"
	"github.com/kushalvora6290/moneycontrol-stock-scanner/internal/events"
	"github.com/kushalvora6290/moneycontrol-stock-scanner/internal/indicator"
	"github.com/kushalvora6290/moneycontrol-stock-scanner/internal/logging"
	"github.com/kushalvora6290/moneycontrol-stock-scanner/internal/moneycontrol"
	"github.com/kushalvora6290/moneycontrol-stock-scanner/internal/notification"
	"github.com/kushalvora6290/moneycontrol-stock-scanner/internal/scanner"
	"github.com/kushalvora6290/moneycontrol-stock-scanner/internal/schedule"
	"github.com/kushalvora6290/moneycontrol-stock-scanner/internal/universe"
	"github.com/kushalvora6290/moneycontrol-stock-scanner/internal/vault"
	"github.com/kushalvora6290/moneycontrol-stock-scanner/internal/yahoo"
)

func main() {
	// Handle command line arguments
	if len(os.Args) > 1 && os.Args[1] == "generate-config" {
		if err := config.GenerateSampleConfig("config.json"); err != nil {
			log.Fatalf("Failed to generate config: %v", err)
		}
		log.Println("Sample config.json generated")
		return
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(logging.Config{
		Level:      cfg.LoggingConfig.Level,
		Output:     cfg.LoggingConfig.Output,
		JSONFormat: cfg.LoggingConfig.JSONFormat,
	})
	logger.Info().Msg("structured logging initialized")

	// Initialize event bus
	eventBus := events.NewEventBus()
	logger.Info().Msg("event bus initialized")

	// Telegram credentials come from Vault when enabled, environment otherwise
	telegramCfg := cfg.NotificationConfig.Telegram
	if cfg.VaultConfig.Enabled {
		vaultClient, err := vault.NewClient(cfg.VaultConfig)
		if err != nil {
			log.Fatalf("Failed to create vault client: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		creds, err := vaultClient.GetTelegramCredentials(ctx)
		cancel()
		if err != nil {
			logger.Warn().Err(err).Msg("vault credential lookup failed, falling back to environment")
		} else {
			telegramCfg.BotToken = creds.BotToken
			telegramCfg.ChatID = creds.ChatID
			logger.Info().Msg("telegram credentials loaded from vault")
		}
	}

	// Initialize notification manager
	notifyManager := notification.NewManager()
	if cfg.NotificationConfig.Enabled {
		if telegramCfg.Enabled {
			notifyManager.AddNotifier(notification.NewTelegramNotifier(notification.TelegramConfig{
				BotToken: telegramCfg.BotToken,
				ChatID:   telegramCfg.ChatID,
				Enabled:  telegramCfg.Enabled,
			}))
			logger.Info().Msg("telegram notifications enabled")
		}
		if cfg.NotificationConfig.Discord.Enabled {
			notifyManager.AddNotifier(notification.NewDiscordNotifier(notification.DiscordConfig{
				WebhookURL: cfg.NotificationConfig.Discord.WebhookURL,
				Enabled:    cfg.NotificationConfig.Discord.Enabled,
			}))
			logger.Info().Msg("discord notifications enabled")
		}
	}

	// Optional Redis cache for the symbol universe
	var rdb *redis.Client
	if cfg.RedisConfig.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Address,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Msg("redis unreachable, universe cache falls back to file")
			rdb = nil
		}
		cancel()
	}

	// Market hours gate, shared timezone for the opening range window
	marketHours, err := schedule.NewMarketHours(cfg.MarketHoursConfig)
	if err != nil {
		log.Fatalf("Failed to configure market hours: %v", err)
	}

	// Data providers
	moversClient := moneycontrol.NewClient(cfg.MoneycontrolConfig, logger)
	barsClient := yahoo.NewClient(cfg.YahooConfig, logger)
	universeLoader := universe.NewLoader(cfg.UniverseConfig, rdb, logger)

	// Confirmation machinery
	calc, err := indicator.NewCalculator(indicator.Config{
		RSIPeriod:         cfg.ConfirmationConfig.RSIPeriod,
		VolumePeriod:      cfg.ConfirmationConfig.VolumePeriod,
		ATRPeriod:         cfg.ConfirmationConfig.ATRPeriod,
		MinBars:           cfg.ConfirmationConfig.MinBars,
		OpeningRangeStart: cfg.ConfirmationConfig.OpeningRangeStart,
		OpeningRangeEnd:   cfg.ConfirmationConfig.OpeningRangeEnd,
		Location:          marketHours.Location(),
	})
	if err != nil {
		log.Fatalf("Failed to configure indicators: %v", err)
	}

	engine, err := confirm.NewEngine(cfg.ConfirmationConfig)
	if err != nil {
		log.Fatalf("Failed to configure confirmation engine: %v", err)
	}
	logger.Info().Str("exit_strategy", engine.ExitStrategyName()).Msg("confirmation engine initialized")

	// Scan pipeline
	pipeline := scanner.NewPipeline(cfg, moversClient, barsClient, universeLoader, calc, engine, notifyManager, eventBus, logger)

	// HTTP status API with the WebSocket alert stream
	var server *api.Server
	if cfg.ServerConfig.Enabled {
		server = api.NewServer(cfg.ServerConfig, pipeline, eventBus, logger)
		go func() {
			if err := server.Start(); err != nil {
				logger.Error().Err(err).Msg("api server stopped")
			}
		}()
	}

	// Scheduler
	var sched *schedule.Scheduler
	if cfg.SchedulerConfig.Enabled {
		sched, err = schedule.NewScheduler(cfg.SchedulerConfig, marketHours, func(ctx context.Context) {
			pipeline.Run(ctx)
		}, eventBus, logger)
		if err != nil {
			log.Fatalf("Failed to configure scheduler: %v", err)
		}
		sched.Start()
	}

	if cfg.SchedulerConfig.RunOnStart || !cfg.SchedulerConfig.Enabled {
		go pipeline.Run(context.Background())
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutting down")
	if sched != nil {
		sched.Stop()
	}
	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
		if err := server.Stop(ctx); err != nil {
			logger.Warn().Err(err).Msg("api server shutdown failed")
		}
		cancel()
	}
	if rdb != nil {
		rdb.Close()
	}
	logger.Info().Msg("shutdown complete")
}
