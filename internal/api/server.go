package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/kushalvora6290/moneycontrol-stock-scanner/config"
	"github.com/kushalvora6290/moneycontrol-stock-scanner/internal/events"
	"github.com/kushalvora6290/moneycontrol-stock-scanner/internal/scanner"
)

// Server exposes the scanner's status over HTTP: the latest run, a
// manual trigger, and a WebSocket stream of scan events.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	pipeline   *scanner.Pipeline
	eventBus   *events.EventBus
	hub        *WSHub
	cfg        config.ServerConfig
	logger     zerolog.Logger
	startedAt  time.Time
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, pipeline *scanner.Pipeline, eventBus *events.EventBus, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if cfg.AllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(cfg.AllowedOrigins, ",")
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:    router,
		pipeline:  pipeline,
		eventBus:  eventBus,
		hub:       NewWSHub(logger),
		cfg:       cfg,
		logger:    logger.With().Str("component", "api").Logger(),
		startedAt: time.Now(),
	}

	server.setupRoutes()

	// Every scan event reaches connected dashboards
	go server.hub.Run()
	eventBus.SubscribeAll(func(event events.Event) {
		server.hub.BroadcastEvent(event)
	})

	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/ws", s.handleWebSocket)

	apiGroup := s.router.Group("/api")
	{
		apiGroup.GET("/scan/latest", s.handleLatestScan)
		apiGroup.POST("/scan/run", s.handleRunScan)
		apiGroup.GET("/status", s.handleStatus)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.startedAt).String(),
	})
}

// handleLatestScan returns the most recent completed run, or 404 before
// the first run finishes.
func (s *Server) handleLatestScan(c *gin.Context) {
	result := s.pipeline.LastResult()
	if result == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no scan completed yet"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleRunScan triggers a scan outside the schedule. The run happens
// asynchronously; clients follow progress over the WebSocket stream.
func (s *Server) handleRunScan(c *gin.Context) {
	go s.pipeline.Run(context.Background())
	c.JSON(http.StatusAccepted, gin.H{"status": "scan started"})
}

func (s *Server) handleStatus(c *gin.Context) {
	status := gin.H{
		"uptime":        time.Since(s.startedAt).String(),
		"ws_clients":    s.hub.GetClientCount(),
		"alerted_pairs": s.pipeline.AlertedPairs(),
	}
	if last := s.pipeline.LastResult(); last != nil {
		status["last_run_id"] = last.RunID
		status["last_run_at"] = last.StartedAt
		status["last_candidates"] = len(last.Candidates)
		status["last_trade_ready"] = len(last.TradeReady)
	}
	c.JSON(http.StatusOK, status)
}

// Start runs the HTTP server until the listener fails or Stop is called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeout) * time.Second,
	}

	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("api server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Stop shuts the HTTP server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
