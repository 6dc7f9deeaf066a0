package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"jabberwocky238/jw238ddns/registry"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServerConfig holds the configuration for the HTTP registration server.
type ServerConfig struct {
	Listen    string
	AuthToken string // Bearer token; empty disables auth.
}

// Server is the HTTP registration API server.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
}

// NewServer creates the HTTP server. resync and checker may be nil, in
// which case /push and /check answer 503.
func NewServer(cfg ServerConfig, svc *registry.Service, resync Resyncer, checker RecordChecker) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(LoggingMiddleware())
	engine.Use(MetricsMiddleware())
	engine.Use(CORSMiddleware())

	// Public endpoints (no auth).
	sys := NewSystemHandler(resync)
	engine.GET("/health", sys.Health)
	engine.GET("/status", sys.Status)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/")
	api.Use(AuthMiddleware(cfg.AuthToken))
	{
		h := NewRegisterHandler(svc, resync, checker)
		api.GET("/register/*path", h.Register)
		api.GET("/list", h.List)
		api.POST("/push", h.Push)
		api.GET("/check/:fqdn", h.Check)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Listen,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
	}
}

// Start begins listening. It blocks until the server is shut down.
func (s *Server) Start() error {
	slog.Info("HTTP registration server starting", "address", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server with a 5-second deadline.
func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
}

// Engine returns the underlying Gin engine (useful for testing).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}
