package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/flying-pisces/mkd-automation-sub002/internal/api/http"
	"github.com/flying-pisces/mkd-automation-sub002/internal/api/middleware"
	"github.com/flying-pisces/mkd-automation-sub002/internal/bus"
	"github.com/flying-pisces/mkd-automation-sub002/internal/diag"
	"github.com/flying-pisces/mkd-automation-sub002/internal/domain/recording"
	"github.com/flying-pisces/mkd-automation-sub002/internal/host"
	"github.com/flying-pisces/mkd-automation-sub002/internal/infrastructure/config"
	"github.com/flying-pisces/mkd-automation-sub002/internal/infrastructure/logging"
	"github.com/flying-pisces/mkd-automation-sub002/internal/infrastructure/monitoring"
	"github.com/flying-pisces/mkd-automation-sub002/internal/infrastructure/tracing"
	"github.com/flying-pisces/mkd-automation-sub002/internal/notify"
	"github.com/flying-pisces/mkd-automation-sub002/internal/providers/connection"
	"github.com/flying-pisces/mkd-automation-sub002/internal/providers/recorder"
	"github.com/flying-pisces/mkd-automation-sub002/internal/providers/settings"
	"github.com/flying-pisces/mkd-automation-sub002/internal/service"
	"github.com/flying-pisces/mkd-automation-sub002/internal/shared/types"
	"github.com/flying-pisces/mkd-automation-sub002/internal/ws"
)

const (
	// statusPollInterval drives the host and recording gauge refresh
	statusPollInterval = 5 * time.Second
	shutdownTimeout    = 10 * time.Second
)

// Server wraps the HTTP server and its dependencies
type Server struct {
	config   *config.Config
	logger   *logging.Logger
	events   *bus.Bus
	metrics  *monitoring.Metrics
	client   *host.Client
	recorder *recording.Manager
	registry *service.Registry
	hub      *ws.Hub
	notifier *notify.Notifier
	httpSrv  *http.Server

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New assembles the connector from configuration
func New(cfg *config.Config, version string) (*Server, error) {
	logCfg := logging.DefaultConfig()
	if cfg.Logging.Development {
		logCfg = logging.DevelopmentConfig()
	}
	logCfg.Level = cfg.Logging.Level
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	logger.Info("Initializing MKD connector",
		zap.String("port", cfg.Server.Port),
		zap.String("native_host", cfg.Host.Name),
		zap.String("version", version),
	)

	metrics := monitoring.NewMetrics()
	tracer := tracing.New("connector", logger)
	events := bus.New(logger)

	client := host.NewClient(cfg.Host, logger, host.WithObserver(metrics.RecordHostRequest))

	// Host pushes and channel transitions fan out through the bus so
	// every UI surface sees them
	client.Messenger().OnEvent(func(ev host.Event) {
		events.Publish(types.EventHostPush, map[string]interface{}{
			"event": ev.Name,
			"data":  ev.Data,
		})
	})
	client.Messenger().OnConnectionChange(func(status host.Status) {
		metrics.SetHostConnected(status.Connected)
		data := map[string]interface{}{"connected": status.Connected}
		if status.LastError != "" {
			data["error"] = status.LastError
		}
		events.Publish(types.EventConnectionChange, data)
	})

	recManager, err := recording.NewManager(
		cfg.Recording,
		cfg.Redaction,
		tracing.WrapCaller(tracer, client),
		events,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("init recording: %w", err)
	}

	registry := service.NewRegistry()
	registerProviders(registry, recManager, client, events, metrics, logger, cfg)

	doctor := diag.New(cfg, client, logger)

	notifier := notify.New(cfg.Notify, events, logger)
	notifier.Start()

	hub := ws.NewHub(registry, events, metrics, logger)
	go hub.Run()

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.Use(middleware.TokenAuth(cfg.Server.AuthToken))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(cfg.RateLimit))
	}

	handlers := apihttp.NewHandlers(registry, recManager, client, doctor, hub, metrics, logger, version)
	wsHandler := ws.NewHandler(hub, cfg.Server.AllowedOrigins)
	aggregator := apihttp.NewMetricsAggregator(metrics, client)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/status", handlers.Status)
	router.GET("/diagnostics", handlers.Diagnostics)
	router.POST("/host/reconnect", handlers.ReconnectHost)

	// Service management
	router.GET("/services", handlers.ListServices)
	router.POST("/services/discover", handlers.DiscoverServices)
	router.POST("/services/execute", handlers.ExecuteService)

	// Recording lifecycle and archives
	router.POST("/recordings/start", handlers.StartRecording)
	router.POST("/recordings/stop", handlers.StopRecording)
	router.POST("/recordings/pause", handlers.PauseRecording)
	router.POST("/recordings/resume", handlers.ResumeRecording)
	router.GET("/recordings", handlers.ListRecordings)
	router.GET("/recordings/:id", handlers.GetRecording)
	router.DELETE("/recordings/:id", handlers.DeleteRecording)
	router.GET("/recordings/:id/export", handlers.ExportRecording)
	router.POST("/recordings/import", handlers.ImportRecording)

	// Runtime verbosity and UI log ingestion
	router.GET("/logs/level", handlers.GetLogLevel)
	router.PUT("/logs/level", handlers.SetLogLevel)
	router.POST("/logs/stream", handlers.StreamLogs)

	// WebSocket
	router.GET("/stream", wsHandler.HandleConnection)

	// Metrics endpoints
	router.GET("/metrics", monitoring.PrometheusHandler())
	router.GET("/metrics/json", aggregator.GetAggregatedMetrics)

	srv := &Server{
		config:   cfg,
		logger:   logger,
		events:   events,
		metrics:  metrics,
		client:   client,
		recorder: recManager,
		registry: registry,
		hub:      hub,
		notifier: notifier,
		httpSrv: &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		stop: make(chan struct{}),
	}

	// Host spawn is best-effort. A missing host leaves the daemon
	// serving /diagnostics so the extension can tell the user what to fix.
	if err := client.Start(); err != nil {
		logger.Warn("Native host unavailable at startup", zap.Error(err))
	} else {
		metrics.SetHostConnected(true)
	}

	srv.wg.Add(1)
	go srv.pollGauges()

	logger.Info("Connector initialized")
	return srv, nil
}

// Run starts the HTTP listener and blocks until shutdown
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.httpSrv.Addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close shuts the connector down in dependency order: stop accepting
// HTTP, detach UI clients, stop the notifier, settle the host channel,
// then close the bus.
func (s *Server) Close() error {
	s.logger.Info("Shutting down connector")

	s.stopOnce.Do(func() {
		close(s.stop)
	})
	s.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Warn("HTTP shutdown interrupted", zap.Error(err))
	}

	s.hub.Close()
	s.notifier.Close()

	if err := s.client.Close(); err != nil {
		s.logger.Warn("Host channel close failed", zap.Error(err))
	}

	s.events.Close()
	s.logger.Sync()
	return nil
}

// pollGauges refreshes the pending and session gauges. Connection
// transitions update their gauge immediately through the messenger
// callback; the poller covers counts that change without an event.
func (s *Server) pollGauges() {
	defer s.wg.Done()

	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			hostStatus := s.client.Status()
			s.metrics.SetHostConnected(hostStatus.Connected)
			s.metrics.SetHostPending(hostStatus.Pending)

			recStatus := s.recorder.Status()
			s.metrics.SetRecordingActive(recStatus.Active)
			s.metrics.SetRecordingSessions(recStatus.Sessions)
		case <-s.stop:
			return
		}
	}
}

func registerProviders(
	registry *service.Registry,
	recManager *recording.Manager,
	client *host.Client,
	events *bus.Bus,
	metrics *monitoring.Metrics,
	logger *logging.Logger,
	cfg *config.Config,
) {
	providers := []service.Provider{
		recorder.NewProvider(recManager, recorder.WithObserver(metrics.RecordAction)),
		connection.NewProvider(client, events),
		settings.NewProvider(logger, cfg, recManager.Sanitizer()),
	}

	for _, provider := range providers {
		if err := registry.Register(provider); err != nil {
			logger.Warn("Failed to register provider",
				zap.String("service", provider.Definition().ID),
				zap.Error(err),
			)
		}
	}
}
