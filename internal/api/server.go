// ABOUTME: HTTP server wiring for the parley API
// ABOUTME: Builds the chi router with auth, logging, metrics, and CORS middleware

package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/metrics"
	"github.com/parleyhq/parley/internal/packs"
	"github.com/parleyhq/parley/internal/session"
	"github.com/parleyhq/parley/internal/store"
	"github.com/parleyhq/parley/internal/title"
)

// Server holds the handler dependencies for the parley API.
type Server struct {
	store      store.Store
	verifier   *auth.JWTVerifier
	sessions   *session.Manager
	titles     *title.Synthesizer
	packs      *packs.Manifest
	logger     *slog.Logger
	sessionTTL time.Duration

	allowedOrigins []string
	metricsEnabled bool
}

// Options configures a Server.
type Options struct {
	Store          store.Store
	Verifier       *auth.JWTVerifier
	Sessions       *session.Manager
	Titles         *title.Synthesizer
	Packs          *packs.Manifest
	Logger         *slog.Logger
	SessionTTL     time.Duration
	AllowedOrigins []string
	MetricsEnabled bool
}

// NewServer creates the API server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 7 * 24 * time.Hour
	}
	return &Server{
		store:          opts.Store,
		verifier:       opts.Verifier,
		sessions:       opts.Sessions,
		titles:         opts.Titles,
		packs:          opts.Packs,
		logger:         logger.With("component", "api"),
		sessionTTL:     opts.SessionTTL,
		allowedOrigins: opts.AllowedOrigins,
		metricsEnabled: opts.MetricsEnabled,
	}
}

// Router builds the HTTP handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	if s.metricsEnabled {
		r.Use(metrics.Middleware)
	}

	origins := s.allowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealth)
	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(s.store, s.verifier))

			r.Get("/me", s.handleMe)
			r.Get("/packs", s.handleListPacks)

			r.Route("/chats", func(r chi.Router) {
				r.Get("/", s.handleListChats)
				r.Post("/", s.handleCreateChat)
				r.Route("/{chatID}", func(r chi.Router) {
					r.Get("/", s.handleGetChat)
					r.Patch("/", s.handleUpdateChat)
					r.Delete("/", s.handleDeleteChat)
					r.Get("/messages", s.handleListMessages)
					r.Post("/messages/stream", s.handleStream)
					r.Post("/cancel", s.handleCancel)
					r.Post("/generate-title", s.handleGenerateTitle)
					r.Get("/export", s.handleExportChat)
				})
			})

			r.Route("/folders", func(r chi.Router) {
				r.Get("/", s.handleListFolders)
				r.Post("/", s.handleCreateFolder)
				r.Patch("/{folderID}", s.handleUpdateFolder)
				r.Delete("/{folderID}", s.handleDeleteFolder)
			})

			r.Route("/agents", func(r chi.Router) {
				r.Get("/", s.handleListAgents)
				r.Post("/", s.handleCreateAgent)
				r.Get("/{agentID}", s.handleGetAgent)
				r.Patch("/{agentID}", s.handleUpdateAgent)
				r.Delete("/{agentID}", s.handleDeleteAgent)
			})

			r.Route("/admin", func(r chi.Router) {
				r.With(auth.RequirePermission(store.PermUsersRead)).Get("/users", s.handleListUsers)
				r.With(auth.RequirePermission(store.PermUsersWrite)).Post("/users", s.handleCreateUser)
				r.With(auth.RequirePermission(store.PermUsersWrite)).Patch("/users/{userID}", s.handleUpdateUser)
				r.With(auth.RequirePermission(store.PermUsersWrite)).Delete("/users/{userID}", s.handleDeleteUser)
				r.With(auth.RequirePermission(store.PermAuditRead)).Get("/audit", s.handleListAudit)
				r.With(auth.RequirePermission(store.PermSettingsRead)).Get("/settings", s.handleGetSettings)
				r.With(auth.RequirePermission(store.PermSettingsWrite)).Patch("/settings", s.handleUpdateSettings)
				r.With(auth.RequirePermission(store.PermUsersRead)).Get("/stats", s.handleGetStats)
			})
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requestLogger logs one line per completed request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr)
		}()

		next.ServeHTTP(ww, r)
	})
}
