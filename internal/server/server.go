package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"llmarena/internal/cache"
	"llmarena/internal/config"
	"llmarena/internal/core"
	"llmarena/internal/fanout"
	"llmarena/internal/history"
	"llmarena/internal/metrics"
	"llmarena/internal/upstream"

	"github.com/gin-gonic/gin"
)

// Server application server
type Server struct {
	port    string
	ginMode string

	httpClient *http.Client
	router     *gin.Engine

	cache          *cache.LRUCache
	metricsService *metrics.MetricsService

	upstream    *upstream.Client
	history     *history.Store
	coordinator *fanout.Coordinator

	config config.ServerConfig

	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
}

// NewServer creates a new server instance
func NewServer(cfg config.ServerConfig) (*Server, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required in ServerConfig")
	}
	if cfg.Storage == nil {
		return nil, fmt.Errorf("storage is required in ServerConfig")
	}
	if cfg.HTTPClientSettings == (config.HTTPClientSettings{}) {
		cfg.HTTPClientSettings = config.DefaultHTTPClientSettings()
	}

	cfg.Logger.Info("Initializing server: fan-out limit %d, prompt history size %d",
		cfg.FanoutConcurrency, cfg.PromptHistorySize)

	httpClient := createOptimizedHTTPClient(cfg.HTTPClientSettings)

	catalogCache := cache.NewCache()

	metricsService := metrics.NewMetricsService(metrics.MetricsConfig{
		SaveInterval: core.MinSaveInterval,
		HistorySize:  core.HistoryBufferSize,
		Storage:      cfg.Storage,
		Logger:       cfg.Logger,
	})

	if err := metricsService.LoadStats(); err != nil {
		cfg.Logger.Warn("Failed to load historical stats: %v", err)
	}

	client := upstream.NewClient(upstream.ClientConfig{
		BaseURL:           cfg.UpstreamBaseURL,
		APIKey:            cfg.APIKey,
		HTTPClient:        httpClient,
		Metrics:           metricsService,
		Logger:            cfg.Logger,
		Cache:             catalogCache,
		CatalogCacheTTL:   cfg.ModelsCacheTTL,
		ExposeCredentials: cfg.ExposeCredentials,
	})

	promptHistory := history.NewStore(cfg.PromptHistorySize)

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())

	server := &Server{
		port:           cfg.Port,
		ginMode:        cfg.GinMode,
		httpClient:     httpClient,
		cache:          catalogCache,
		metricsService: metricsService,
		upstream:       client,
		history:        promptHistory,
		coordinator: fanout.NewCoordinator(fanout.Config{
			Querier:        client,
			History:        promptHistory,
			MaxConcurrency: cfg.FanoutConcurrency,
			Logger:         cfg.Logger,
		}),
		config:         cfg,
		shutdownCtx:    shutdownCtx,
		shutdownCancel: shutdownCancel,
	}

	server.setupRoutes()

	return server, nil
}

func createOptimizedHTTPClient(settings config.HTTPClientSettings) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          settings.MaxIdleConns,
		MaxIdleConnsPerHost:   settings.MaxIdleConnsPerHost,
		MaxConnsPerHost:       settings.MaxConnsPerHost,
		IdleConnTimeout:       settings.IdleConnTimeout,
		TLSHandshakeTimeout:   settings.TLSHandshakeTimeout,
		ExpectContinueTimeout: core.HTTPExpectContinueTimeout,
		ForceAttemptHTTP2:     true,
		ResponseHeaderTimeout: core.HTTPResponseHeaderTimeout,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   settings.RequestTimeout,
	}
}

// Handler exposes the router, mainly for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run runs the server
func (s *Server) Run() error {
	s.setupGracefulShutdown()

	srv := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// A comparison waits for the slowest model, bounded by the generation timeout.
		WriteTimeout: 2*core.GenerationTimeout + 30*time.Second,
	}

	go func() {
		<-s.shutdownCtx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			s.config.Logger.Error("Server shutdown error: %v", err)
		}
	}()

	s.config.Logger.Info("Server starting on port %s", s.port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func (s *Server) setupGracefulShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-quit:
			s.config.Logger.Info("Shutdown signal received, shutting down gracefully...")
			s.shutdownCancel()
		case <-s.shutdownCtx.Done():
		}
		signal.Stop(quit)
	}()
}

// Close closes the server
func (s *Server) Close() error {
	if s.shutdownCancel != nil {
		s.shutdownCancel()
	}

	var closeErr error

	if s.metricsService != nil {
		if err := s.metricsService.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close metrics service: %w", err))
		}
	}

	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close catalog cache: %w", err))
		}
	}

	if s.httpClient != nil {
		s.httpClient.CloseIdleConnections()
	}

	return closeErr
}
