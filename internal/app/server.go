package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"otelmobile/internal/app/health"
	"otelmobile/internal/app/middleware"
	"otelmobile/internal/app/routes"
	"otelmobile/pkg/logger"
	"otelmobile/pkg/telemetry"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const ServiceName = "honeycomb-debug"

// Server exposes health, metrics and the current session of a configured SDK
// over HTTP.
type Server struct {
	sdk        *telemetry.SDK
	snapshot   *SessionSnapshot
	unsub      func()
	httpServer *http.Server
	router     *gin.Engine
	logger     logger.Logger
}

func NewServer(sdk *telemetry.SDK, addr string, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop{}
	}
	s := &Server{
		sdk:      sdk,
		snapshot: &SessionSnapshot{},
		logger:   log,
	}
	s.unsub = sdk.Subscribe(s.snapshot)

	s.setupRoutes()
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(ServiceName, otelgin.WithTracerProvider(s.sdk.TracerProvider())))
	r.Use(middleware.LoggingMiddleware(s.logger))
	r.Use(middleware.SessionMiddleware(s.sdk))

	hc := health.NewChecker(s.logger,
		health.Check{Name: "session_store", Pinger: health.PingFunc(s.sdk.Ping)},
	)
	routes.SetupInfra(r, hc, s.sdk.MetricsHandler())
	routes.SetupDebug(r, sessionView{sessions: s.sdk.Sessions(), snap: s.snapshot})

	s.router = r
}

func (s *Server) Handler() http.Handler { return s.router }

// Run starts the HTTP server and blocks until it shuts down.
func (s *Server) Run() error {
	s.logger.Info("debug server listening", logger.Field{Key: "addr", Value: s.httpServer.Addr})

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("debug server: %w", err)
	}
	return nil
}

// Shutdown stops the HTTP server. The SDK is owned by the caller.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down debug server")
	s.unsub()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("debug server shutdown: %w", err)
	}
	return nil
}
