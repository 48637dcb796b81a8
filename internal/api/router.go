// Package api assembles the HTTP surface: routing, middleware order,
// and the server lifecycle.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bimhub/bimhub/internal/api/handlers"
	apiMiddleware "github.com/bimhub/bimhub/internal/api/middleware"
	"github.com/bimhub/bimhub/internal/logger"
	"github.com/bimhub/bimhub/pkg/auth"
	"github.com/bimhub/bimhub/pkg/authz"
	"github.com/bimhub/bimhub/pkg/content"
	"github.com/bimhub/bimhub/pkg/metrics"
	"github.com/bimhub/bimhub/pkg/oauth"
	"github.com/bimhub/bimhub/pkg/processing"
	"github.com/bimhub/bimhub/pkg/store"
	"github.com/bimhub/bimhub/pkg/upload"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Store   store.Store
	Content content.Store
	Tokens  *auth.TokenService
	OAuth   *oauth.Service
	Checker *authz.Checker
	Uploads *upload.Coordinator
	Queue   processing.Queue

	// Metrics, when set, is served at /metrics.
	Metrics http.Handler

	// HTTPMetrics, when set, instruments every request.
	HTTPMetrics *metrics.HTTPMetrics

	// MaxUploadBytes caps proxied upload bodies. Zero means unlimited.
	MaxUploadBytes int64

	// DevMode exposes the unauthenticated token mint endpoint.
	DevMode bool
}

// NewRouter creates and configures the chi router with all middleware
// and routes.
//
// Middleware order matters: request id and real ip resolution run
// before correlation, correlation before logging so every log line
// carries the correlation id, recovery before the timeout.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apiMiddleware.Correlation)
	if deps.HTTPMetrics != nil {
		r.Use(deps.HTTPMetrics.Middleware)
	}
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	// Uploads and downloads stream large bodies, so the ceiling is
	// generous.
	r.Use(middleware.Timeout(15 * time.Minute))

	healthHandler := handlers.NewHealthHandler(deps.Store, deps.Content)

	// Health routes - unauthenticated
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
		r.Get("/stores", healthHandler.Stores)
	})

	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	// Root redirect to health for convenience
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	workspaceHandler := handlers.NewWorkspaceHandler(deps.Store, deps.Checker)
	projectHandler := handlers.NewProjectHandler(deps.Store, deps.Checker)
	uploadHandler := handlers.NewUploadHandler(deps.Store, deps.Checker, deps.Uploads, deps.Queue, deps.MaxUploadBytes)
	fileHandler := handlers.NewFileHandler(deps.Store, deps.Content, deps.Checker)
	modelHandler := handlers.NewModelHandler(deps.Store, deps.Checker, deps.Queue)
	versionHandler := handlers.NewVersionHandler(deps.Store, deps.Content, deps.Checker)
	oauthHandler := handlers.NewOAuthHandler(deps.OAuth, deps.Store)
	oauthAppHandler := handlers.NewOAuthAppHandler(deps.Store, deps.Checker)
	patHandler := handlers.NewPATHandler(deps.Store, deps.Tokens, deps.Checker)

	// Public token endpoint: the grant carries its own credentials.
	r.Post("/oauth/token", oauthHandler.Token)

	if deps.DevMode {
		devHandler := handlers.NewDevTokenHandler(deps.Store, deps.Tokens)
		r.Post("/dev/token", devHandler.Mint)
	}

	// Everything below requires a bearer token.
	r.Group(func(r chi.Router) {
		r.Use(apiMiddleware.Auth(deps.Tokens))

		r.Post("/oauth/authorize", oauthHandler.Authorize)
		r.Post("/invites/accept", workspaceHandler.AcceptInvite)

		r.Route("/workspaces", func(r chi.Router) {
			r.Post("/", workspaceHandler.Create)
			r.Get("/", workspaceHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", workspaceHandler.Get)
				r.Patch("/", workspaceHandler.Update)
				r.Delete("/", workspaceHandler.Delete)

				r.Post("/projects", projectHandler.Create)
				r.Get("/projects", projectHandler.List)

				r.Route("/members", func(r chi.Router) {
					r.Get("/", workspaceHandler.ListMembers)
					r.Post("/", workspaceHandler.UpsertMember)
					r.Delete("/{userId}", workspaceHandler.RemoveMember)
				})

				r.Route("/invites", func(r chi.Router) {
					r.Get("/", workspaceHandler.ListInvites)
					r.Post("/", workspaceHandler.CreateInvite)
					r.Delete("/{inviteId}", workspaceHandler.RevokeInvite)
				})

				r.Route("/oauth-apps", func(r chi.Router) {
					r.Get("/", oauthAppHandler.List)
					r.Post("/", oauthAppHandler.Create)
				})

				r.Route("/pats", func(r chi.Router) {
					r.Get("/", patHandler.List)
					r.Post("/", patHandler.Create)
				})
			})
		})

		r.Route("/projects/{id}", func(r chi.Router) {
			r.Get("/", projectHandler.Get)
			r.Patch("/", projectHandler.Update)
			r.Delete("/", projectHandler.Delete)

			r.Route("/members", func(r chi.Router) {
				r.Get("/", projectHandler.ListMembers)
				r.Post("/", projectHandler.UpsertMember)
				r.Delete("/{userId}", projectHandler.RemoveMember)
			})

			r.Get("/files", fileHandler.List)

			r.Route("/uploads", func(r chi.Router) {
				r.Post("/", uploadHandler.Reserve)
				r.Route("/{sessionId}", func(r chi.Router) {
					r.Get("/", uploadHandler.Get)
					r.Post("/content", uploadHandler.Content)
					r.Post("/commit", uploadHandler.Commit)
				})
			})

			r.Post("/models", modelHandler.Create)
			r.Get("/models", modelHandler.List)
		})

		r.Route("/files/{id}", func(r chi.Router) {
			r.Get("/", fileHandler.Get)
			r.Get("/content", fileHandler.Content)
			r.Delete("/", fileHandler.Delete)
		})

		r.Route("/models/{id}", func(r chi.Router) {
			r.Get("/", modelHandler.Get)
			r.Delete("/", modelHandler.Delete)
			r.Post("/versions", modelHandler.CreateVersion)
			r.Get("/versions", modelHandler.ListVersions)
		})

		r.Route("/versions/{id}", func(r chi.Router) {
			r.Get("/", versionHandler.Get)
			r.Get("/wexbim", versionHandler.WexBim)
			r.Get("/properties", versionHandler.Properties)
		})

		r.Route("/oauth-apps/{id}", func(r chi.Router) {
			r.Get("/", oauthAppHandler.Get)
			r.Patch("/", oauthAppHandler.Update)
			r.Delete("/", oauthAppHandler.Delete)
			r.Post("/secret", oauthAppHandler.RotateSecret)
			r.Get("/audit", oauthAppHandler.ListAudit)
		})

		r.Route("/pats/{id}", func(r chi.Router) {
			r.Get("/", patHandler.Get)
			r.Delete("/", patHandler.Revoke)
			r.Get("/audit", patHandler.ListAudit)
		})
	})

	return r
}

// isHealthPath returns true if the request path is a healthcheck endpoint.
func isHealthPath(path string) bool {
	return path == "/health" || strings.HasPrefix(path, "/health/")
}

// requestLogger logs request start at DEBUG and completion at INFO.
// Healthcheck requests complete at DEBUG to keep probe noise out of
// production logs.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		logger.DebugCtx(r.Context(), "API request started",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)

		logArgs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", duration.String(),
		}

		if isHealthPath(r.URL.Path) {
			logger.DebugCtx(r.Context(), "API request completed", logArgs...)
		} else {
			logger.InfoCtx(r.Context(), "API request completed", logArgs...)
		}
	})
}
