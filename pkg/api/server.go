package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/hivedocs/hivedocs/pkg/access"
	"github.com/hivedocs/hivedocs/pkg/config"
	"github.com/hivedocs/hivedocs/pkg/documents"
	"github.com/hivedocs/hivedocs/pkg/httputil"
	"github.com/hivedocs/hivedocs/pkg/middleware"
	"github.com/hivedocs/hivedocs/pkg/observability"
	"github.com/hivedocs/hivedocs/pkg/search"
	"github.com/hivedocs/hivedocs/pkg/tenants"
)

// Deps carries the wired services the API surface exposes. Cache and
// Metrics may be nil; everything else is required.
type Deps struct {
	Decider         *access.Decider
	AccessStore     *access.Store
	Cache           *access.DecisionCache
	TenantService   tenants.Service
	DocumentService *documents.Service
	SearchService   *search.Service
	Metrics         *observability.Metrics
	Logger          *observability.Logger
}

// Server is the JSON API server
type Server struct {
	router *mux.Router
	config config.ServerConfig
	logger *observability.Logger
	http   *http.Server
}

// NewServer creates the API server with the full middleware chain and
// all routes registered. Middleware order matters: recovery outermost,
// then metrics and logging, then auth, then tenant resolution; the quota
// gate wraps only the document-creation route.
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	s := &Server{
		router: mux.NewRouter(),
		config: cfg,
		logger: deps.Logger,
	}

	s.router.Use(httputil.RecoveryMiddleware)
	if deps.Metrics != nil {
		s.router.Use(deps.Metrics.HTTPMiddleware)
	}
	s.router.Use(httputil.LoggingMiddleware)

	auth := middleware.NewAuthMiddleware(true)
	tenant := middleware.NewTenantContextMiddleware(deps.TenantService)
	quota := middleware.NewQuotaMiddleware(deps.TenantService, deps.Metrics, deps.Logger)

	s.router.Use(auth.Handler)
	s.router.Use(tenant.Handler)

	NewAccessHandlers(deps.Decider, deps.AccessStore, deps.Cache, deps.Metrics, deps.Logger).
		RegisterRoutes(s.router)
	NewTenantHandlers(deps.TenantService, deps.AccessStore, deps.Logger).
		RegisterRoutes(s.router)
	NewDocumentHandlers(deps.DocumentService, deps.Logger).
		RegisterRoutes(s.router, quota.EnforceDocumentQuota)
	NewSearchHandlers(deps.SearchService, deps.Decider, deps.Logger).
		RegisterRoutes(s.router)

	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router exposes the underlying router for extra route registration
func (s *Server) Router() *mux.Router {
	return s.router
}

// Start begins serving. Blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%s", s.config.Host, s.config.Port)
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	s.logger.WithField("addr", addr).Info("API server listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
