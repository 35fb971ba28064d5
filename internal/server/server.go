package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	apihttp "github.com/appdock/appdock/internal/api/http"
	"github.com/appdock/appdock/internal/api/middleware"
	"github.com/appdock/appdock/internal/domain/actions"
	"github.com/appdock/appdock/internal/domain/catalog"
	"github.com/appdock/appdock/internal/domain/library"
	"github.com/appdock/appdock/internal/infrastructure/config"
	"github.com/appdock/appdock/internal/infrastructure/logging"
	"github.com/appdock/appdock/internal/infrastructure/monitoring"
	"github.com/appdock/appdock/internal/providers/installed"
	"github.com/appdock/appdock/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// Server wires the catalog, the action log, the installed-state provider,
// and the library engine behind the HTTP/WebSocket surface.
type Server struct {
	cfg      *config.Config
	logger   *logging.Logger
	router   *gin.Engine
	engine   *library.Engine
	executor *actions.Executor

	httpServer *http.Server
	cancel     context.CancelFunc
}

// NewServer creates a new server instance. Catalog loading failures are
// fatal: the service never starts with a malformed item universe.
func NewServer(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	metrics := monitoring.NewMetrics()

	cat, err := catalog.Load(context.Background(), catalogSource(cfg, logger))
	if err != nil {
		return nil, err
	}
	logger.Info("catalog loaded", zap.Int("items", cat.Len()))

	system := installed.NewProvider(logger)
	actionLog := actions.NewManager(logger).WithMetrics(metrics)
	engine := library.NewEngine(cat, actionLog, system, logger).WithMetrics(metrics)
	executor := actions.NewExecutor(actionLog, system, cfg.Library.SettleDelay, logger)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSOrigins))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}
	router.Use(monitoring.Middleware(metrics))

	handlers := apihttp.NewHandlers(cat, engine, actionLog, system, logger)
	wsHandler := ws.NewHandler(engine, logger).WithMetrics(metrics)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	// Library view
	router.GET("/library", handlers.ListLibrary)
	router.GET("/library/:id", handlers.GetLibraryItem)
	router.POST("/library/refresh", handlers.RefreshLibrary)

	// Lifecycle actions
	router.GET("/actions", handlers.ListActions)
	router.POST("/actions", handlers.RecordAction)
	router.POST("/actions/:id/advance", handlers.AdvanceAction)

	// Simulated system state
	router.GET("/system/installed", handlers.ListInstalled)
	router.PUT("/system/installed/:id", handlers.MarkInstalled)
	router.DELETE("/system/installed/:id", handlers.MarkUninstalled)

	// Live stream and metrics
	router.GET("/stream", wsHandler.HandleConnection)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &Server{
		cfg:      cfg,
		logger:   logger,
		router:   router,
		engine:   engine,
		executor: executor,
	}, nil
}

// Run starts background reconciliation and serves HTTP until Close is
// called or the listener fails.
func (s *Server) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go s.engine.Run(ctx)
	go s.executor.Run(ctx)

	if s.cfg.Library.RefreshOnStart {
		// Seed the view from actual system state before serving.
		if err := s.engine.Refresh(ctx); err != nil {
			s.logger.Warn("initial refresh failed, serving catalog defaults", zap.Error(err))
		}
	}

	addr := net.JoinHostPort(s.cfg.Server.Host, s.cfg.Server.Port)
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}

	s.logger.Info("server listening", zap.String("addr", addr))
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close stops background reconciliation and shuts the HTTP server down
// gracefully.
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// catalogSource selects the configured catalog backing store.
func catalogSource(cfg *config.Config, logger *logging.Logger) catalog.Source {
	switch {
	case cfg.Catalog.URL != "":
		logger.Info("using remote catalog index", zap.String("url", cfg.Catalog.URL))
		return catalog.NewHTTPSource(cfg.Catalog.URL)
	case cfg.Catalog.Dir != "":
		logger.Info("using catalog directory", zap.String("dir", cfg.Catalog.Dir))
		return catalog.NewFileSource(cfg.Catalog.Dir, logger)
	default:
		return catalog.NewStaticSource(catalog.DefaultItems())
	}
}
