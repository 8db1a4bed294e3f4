// Package server exposes the per diem resolver, city suggestions and the
// expense log over HTTP behind a single-user login.
package server

import (
	"context"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/perdiem/internal/config"
	"github.com/sells-group/perdiem/internal/expense"
	"github.com/sells-group/perdiem/internal/perdiem"
)

const requestTimeout = 60 * time.Second

// RateResolver resolves a per diem rate. It is satisfied by
// *perdiem.Resolver.
type RateResolver interface {
	Resolve(ctx context.Context, req perdiem.LookupRequest) (*perdiem.Resolution, error)
}

// CitySuggester returns autocomplete candidates. It is satisfied by
// *perdiem.Suggester.
type CitySuggester interface {
	Suggest(ctx context.Context, query, state string) []perdiem.CitySuggestion
}

// Deps are the collaborators a Server routes to. Gatherer may be nil, which
// disables /metrics.
type Deps struct {
	Resolver  RateResolver
	Suggester CitySuggester
	Store     expense.Store
	Gatherer  prometheus.Gatherer
}

// Server holds the HTTP handlers.
type Server struct {
	deps      Deps
	auth      config.AuthConfig
	staticDir string
	origins   []string
	sessions  *sessionStore
	now       func() time.Time
}

// New creates a Server from the auth and server sections of the config.
func New(deps Deps, auth config.AuthConfig, srv config.ServerConfig) *Server {
	ttl := time.Duration(auth.SessionTTLHours) * time.Hour
	return &Server{
		deps:      deps,
		auth:      auth,
		staticDir: srv.StaticDir,
		origins:   srv.AllowedOrigins,
		sessions:  newSessionStore(auth.SessionSecret, ttl),
		now:       time.Now,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	if len(s.origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.origins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", handleHealth)
	if s.deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/login", s.staticPage("login.html"))
	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Get("/", s.staticPage("index.html"))

		r.Route("/api", func(r chi.Router) {
			r.Get("/auth-check", handleAuthCheck)
			r.Post("/perdiem", s.handlePerDiem)
			r.Get("/search-cities", s.handleSearchCities)

			r.Route("/expenses", func(r chi.Router) {
				r.Get("/", s.handleListExpenses)
				r.Post("/", s.handleCreateExpense)
				r.Delete("/", s.handleDeleteAllExpenses)
				r.Get("/export.csv", s.handleExportCSV)
				r.Get("/export.xlsx", s.handleExportXLSX)
				r.Delete("/{id}", s.handleDeleteExpense)
			})
		})
	})

	if s.staticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.staticDir)))
	}

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) staticPage(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.staticDir == "" {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, filepath.Join(s.staticDir, name))
	}
}

// requestLogger logs each request at debug once the handler returns.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("server: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
