package restapi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/mnemotree/mnemocore/internal/logging"
	"github.com/mnemotree/mnemocore/internal/mnemo"
	"github.com/mnemotree/mnemocore/pkg/config"
)

// Server is the HTTP surface over a mnemo.Service.
type Server struct {
	router     *gin.Engine
	svc        *mnemo.Service
	config     *config.Config
	httpServer *http.Server
	log        *logging.Logger
}

// NewServer builds a Server wired to svc, applying CORS, API-key
// auth, and body-size middleware according to cfg.RestAPI.
func NewServer(svc *mnemo.Service, cfg *config.Config) *Server {
	log := logging.GetLogger("restapi")

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	if cfg.RestAPI.CORS {
		corsConfig := cors.Config{
			AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key", "X-Tenant-ID"},
			ExposeHeaders: []string{"Content-Length", "Retry-After"},
			MaxAge:        12 * time.Hour,
		}

		switch {
		case len(cfg.RestAPI.AllowOrigins) > 0:
			corsConfig.AllowOrigins = cfg.RestAPI.AllowOrigins
		case cfg.RestAPI.APIKey != "":
			corsConfig.AllowOrigins = []string{
				"http://localhost:*",
				"http://127.0.0.1:*",
				"https://localhost:*",
				"https://127.0.0.1:*",
			}
			corsConfig.AllowWildcard = true
		default:
			corsConfig.AllowAllOrigins = true
		}

		router.Use(cors.New(corsConfig))
	}

	if cfg.RestAPI.APIKey != "" {
		log.Info("API key authentication enabled")
		router.Use(APIKeyAuthMiddleware(cfg.RestAPI.APIKey))
	}

	// No separate gin-level rate limit middleware: mnemo.Service already
	// rate-limits every operation internally per (tenant, op), and its
	// RateLimited errors surface here as 429s via RespondError.
	router.Use(MaxBodySizeMiddleware(DefaultBodyLimit))

	s := &Server{router: router, svc: svc, config: cfg, log: log}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api/v1")
	{
		api.GET("/health", s.handleHealth)

		api.POST("/memories", s.handleStore)
		api.GET("/memories", s.handleGetAll)
		api.GET("/memories/search", s.handleRecall)
		api.GET("/memories/:id", s.handleGet)
		api.PUT("/memories/:id", s.handleUpdate)
		api.DELETE("/memories/:id", s.handleDelete)
		api.GET("/sessions", s.handleListSessions)

		api.POST("/security/detect-pii", s.handleDetectPII)
		api.POST("/security/redact-pii", s.handleRedactPII)
		api.POST("/security/detect-injection", s.handleDetectInjection)
		api.POST("/security/sanitize", s.handleSanitizeInput)
		api.POST("/security/validate", s.handleValidateContent)

		api.POST("/graph/entities", s.handleExtractEntities)
		api.POST("/graph/build", s.handleBuildGraph)
		api.GET("/graph/query", s.handleQueryGraph)
		api.GET("/graph/stats", s.handleGraphStats)
		api.DELETE("/graph", s.handleClearGraph)
	}
}

// Start runs the server until it errors, binding to an auto-selected
// port when cfg.RestAPI.AutoPort is set.
func (s *Server) Start() error {
	addr, err := s.listenAddr()
	if err != nil {
		return err
	}
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}
	s.log.Info("starting REST API server", "address", addr)
	return s.httpServer.ListenAndServe()
}

// StartWithContext runs the server until ctx is cancelled, then shuts
// down gracefully within shutdownTimeout.
func (s *Server) StartWithContext(ctx context.Context, shutdownTimeout time.Duration) error {
	addr, err := s.listenAddr()
	if err != nil {
		return err
	}
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}

	errChan := make(chan error, 1)
	go func() {
		s.log.Info("starting REST API server", "address", addr)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("stopping REST API server")
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.log.Error("server shutdown error", "error", err)
		return err
	}
	s.log.Info("REST API server stopped")
	return nil
}

// Router exposes the underlying engine for tests.
func (s *Server) Router() *gin.Engine { return s.router }

func (s *Server) listenAddr() (string, error) {
	port := s.config.RestAPI.Port
	if s.config.RestAPI.AutoPort {
		available, err := findAvailablePort(port)
		if err != nil {
			s.log.Error("failed to find available port", "error", err, "start_port", port)
			return "", fmt.Errorf("failed to find available port: %w", err)
		}
		port = available
	}
	return fmt.Sprintf("%s:%d", s.config.RestAPI.Host, port), nil
}

func findAvailablePort(startPort int) (int, error) {
	for port := startPort; port < startPort+100; port++ {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err == nil {
			ln.Close()
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available port found in range %d-%d", startPort, startPort+99)
}
