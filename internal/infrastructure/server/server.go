package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	handlers "github.com/GriffinCanCode/TryAutomation/internal/api/http"
	"github.com/GriffinCanCode/TryAutomation/internal/api/middleware"
	"github.com/GriffinCanCode/TryAutomation/internal/automation"
	"github.com/GriffinCanCode/TryAutomation/internal/examples"
	"github.com/GriffinCanCode/TryAutomation/internal/infrastructure/config"
	"github.com/GriffinCanCode/TryAutomation/internal/infrastructure/logging"
	"github.com/GriffinCanCode/TryAutomation/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/TryAutomation/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/TryAutomation/internal/sandbox"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	http     *http.Server
	executor *sandbox.Executor
	service  *sandbox.Service
	sessions *automation.SessionManager
	catalog  *examples.Catalog
	tracer   *tracing.Tracer
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
}

// NewLogger builds the process logger from config
func NewLogger(cfg *config.Config) *logging.Logger {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		if cfg.Logging.Development {
			return logging.NewDevelopment()
		}
		return logging.NewDefault()
	}
	return logger
}

// AutomationConfig maps the browser section onto the automation package
func AutomationConfig(cfg *config.Config) automation.Config {
	ac := automation.DefaultConfig()
	ac.ChromePath = cfg.Browser.ChromePath
	ac.Endpoint = cfg.Browser.WSEndpoint
	if cfg.Browser.DebuggingPort != 0 {
		ac.DebuggingPort = cfg.Browser.DebuggingPort
	}
	return ac
}

// SandboxConfig maps the sandbox section onto the sandbox package
func SandboxConfig(cfg *config.Config) sandbox.Config {
	return sandbox.Config{
		Timeout:       cfg.Sandbox.Timeout,
		ArtifactGrace: cfg.Sandbox.ArtifactGrace,
		WorkDir:       cfg.Sandbox.WorkDir,
		MaxConcurrent: cfg.Sandbox.MaxConcurrent,
		QueueTimeout:  cfg.Sandbox.QueueTimeout,
	}
}

// NewSandbox builds the executor and service with the browser capability.
// sessions may be nil.
func NewSandbox(cfg *config.Config, sessions *automation.SessionManager, observer sandbox.Observer, logger *logging.Logger) (*sandbox.Service, *sandbox.Executor, error) {
	sbCfg := SandboxConfig(cfg)
	executor, err := sandbox.NewExecutor(sbCfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create executor: %w", err)
	}

	caps := automation.Capabilities(AutomationConfig(cfg), sessions)
	return sandbox.NewService(executor, sbCfg, caps, observer, logger), executor, nil
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	logger := NewLogger(cfg)

	logger.Info("Initializing Try Automation server",
		zap.String("port", cfg.Server.Port),
		zap.Bool("browser_reuse", cfg.Browser.Reuse),
		zap.Duration("timeout", cfg.Sandbox.Timeout),
		zap.Int("max_concurrent", cfg.Sandbox.MaxConcurrent),
	)

	metrics := monitoring.NewMetrics()
	tracer := tracing.New("try-automation", logger.Logger)

	var sessions *automation.SessionManager
	if cfg.Browser.Reuse {
		sessions = automation.NewSessionManager(AutomationConfig(cfg), logger)
	}

	service, executor, err := NewSandbox(cfg, sessions, metrics, logger)
	if err != nil {
		tracer.Close()
		return nil, err
	}
	metrics.TrackInFlight(func() float64 { return float64(executor.InFlight()) })

	catalog := examples.NewCatalog(cfg.Examples.Dir)
	if err := catalog.Load(); err != nil {
		logger.Warn("Failed to load examples", zap.Error(err))
	}
	logger.Info("Examples loaded", zap.String("dir", catalog.Dir()), zap.Int("count", catalog.Len()))

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	if cfg.Server.ForceSSL {
		router.Use(middleware.ForceSSL())
	}
	corsCfg := middleware.DefaultCORSConfig().WithOrigins(cfg.CORS.Origins, cfg.CORS.DevOrigins)
	router.Use(middleware.CORS(corsCfg))

	var runGuards []gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		runGuards = append(runGuards, middleware.RateLimit(rl))
	}

	opts := handlers.Options{
		Metrics:       metrics,
		MaxScriptSize: cfg.Sandbox.MaxScriptSize,
	}
	if sessions != nil {
		opts.Sessions = sessions
	}
	h := handlers.NewHandlers(service, catalog, opts, logger)
	h.Register(router, runGuards...)

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	var handler http.Handler = router
	if cfg.Server.Gzip {
		handler = middleware.Gzip(router)
	}

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	logger.Info("Server initialized successfully")

	return &Server{
		router: router,
		http: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			// a run may take the whole sandbox timeout plus upload and encode
			WriteTimeout: cfg.Sandbox.Timeout + cfg.Sandbox.QueueTimeout + 30*time.Second,
		},
		executor: executor,
		service:  service,
		sessions: sessions,
		catalog:  catalog,
		tracer:   tracer,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
	}, nil
}

// Handler returns the root handler, middleware included
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run starts the HTTP server and blocks until it stops
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting runs, waits for requests in flight and releases
// the shared browser
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	if err := s.executor.Close(); err != nil {
		s.logger.Warn("Failed to close executor", zap.Error(err))
	}

	var errs []error
	if err := s.http.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP shutdown incomplete", zap.Error(err))
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}

	if s.sessions != nil {
		if err := s.sessions.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser session: %w", err))
		}
		s.logger.Info("Closed shared browser session")
	}

	s.tracer.Close()

	// Sync logger before exit
	_ = s.logger.Sync()

	return errors.Join(errs...)
}
