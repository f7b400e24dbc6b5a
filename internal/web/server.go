// Package web provides the HTTP JSON API for catalog intake, review and ERP sync.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/JonMunkholm/prodcheck/internal/config"
	"github.com/JonMunkholm/prodcheck/internal/core"
	mw "github.com/JonMunkholm/prodcheck/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP server for the intake API.
type Server struct {
	service *core.Service
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server

	limiter       *mw.RateLimiter
	uploadLimiter *mw.RateLimiter
}

// NewServer creates a new Server instance.
func NewServer(service *core.Service, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	if cfg.Rate.Enabled {
		s.limiter = mw.NewRateLimiter(cfg.Rate.RequestsPerMinute, 10*time.Minute)
		s.uploadLimiter = mw.NewRateLimiter(cfg.Rate.UploadLimit, 10*time.Minute)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(securityHeaders)
	s.router.Use(withOperator)

	if s.limiter != nil {
		s.router.Use(s.limiter.Handler)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(mw.APIKeyAuth(s.cfg.Security.RequireAPIKey, s.cfg.Security.APIKeys))

			// Uploads
			r.Group(func(r chi.Router) {
				if s.uploadLimiter != nil {
					r.Use(s.uploadLimiter.Handler)
				}
				r.Post("/uploads", s.handleUpload)
				r.Post("/uploads/{id}/retry", s.handleRetryUpload)
			})
			r.Get("/uploads/{id}", s.handleGetUpload)

			// Batches
			r.Get("/batches/{code}", s.handleGetBatch)
			r.Get("/batches/{code}/products", s.handleBatchProducts)
			r.Put("/batches/{code}/context", s.handleSetBatchContext)
			r.Post("/batches/{code}/validate", s.handleValidateBatch)
			r.Post("/batches/{code}/reprocess", s.handleReprocessBatch)
			r.Post("/batches/{code}/submit", s.handleSubmitBatch)
			r.Post("/batches/{code}/mark-synced", s.handleMarkBatchSynced)
			r.Get("/batches/{code}/export", s.handleExportBatch)

			// Products
			r.Get("/products/pending-sync", s.handlePendingSync)
			r.Post("/products/sync-status", s.handleUpdateSyncStatus)
			r.Get("/products/{id}", s.handleGetProduct)
			r.Post("/products/{id}/mark-synced", s.handleMarkProductSynced)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// SweepClients drops idle rate limiter entries every interval until ctx ends.
func (s *Server) SweepClients(ctx context.Context, interval time.Duration) error {
	if s.limiter == nil {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			n := s.limiter.Sweep(now) + s.uploadLimiter.Sweep(now)
			if n > 0 {
				slog.Debug("rate limiter sweep", "removed", n)
			}
		}
	}
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
