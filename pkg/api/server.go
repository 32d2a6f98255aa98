// Package api is the HTTP surface of the mirror: connections, projects,
// extraction, jobs, logs and read-only artifact listings.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"gorm.io/gorm"

	"github.com/adomirror/adomirror/pkg/ado"
	"github.com/adomirror/adomirror/pkg/cache"
	"github.com/adomirror/adomirror/pkg/db"
	"github.com/adomirror/adomirror/pkg/extract"
	"github.com/adomirror/adomirror/pkg/jobs"
	"github.com/adomirror/adomirror/pkg/store"
)

// Directory is the part of the connector used to discover projects.
type Directory interface {
	ListProjects(ctx context.Context) ([]ado.ProjectSummary, error)
	GetProjectDetails(ctx context.Context, id string) (*ado.ProjectDetail, error)
	Close(ctx context.Context) error
}

// DirectoryFactory builds a Directory for a connection and its unsealed
// token.
type DirectoryFactory func(conn *store.Connection, token string) (Directory, error)

// Options wires a Server.
type Options struct {
	DB       *gorm.DB
	Store    *store.Store
	Jobs     *jobs.JobStore
	Registry *jobs.Registry
	Starter  jobs.Starter
	// Directories builds connector clients for sync and connection tests.
	Directories DirectoryFactory
	JobConfig   *jobs.JobConfig
	// Cache holds aggregate answers. Nil disables caching.
	Cache *cache.Cache
	// DefaultToken is used by the connection test when none is posted.
	DefaultToken string
	Logger       *slog.Logger
}

// Server serves the HTTP API.
type Server struct {
	db           *gorm.DB
	store        *store.Store
	jobs         *jobs.JobStore
	registry     *jobs.Registry
	starter      jobs.Starter
	directories  DirectoryFactory
	jobCfg       *jobs.JobConfig
	cache        *cache.Cache
	defaultToken string
	logger       *slog.Logger
	startedAt    time.Time
}

// NewServer creates a Server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	jobCfg := opts.JobConfig
	if jobCfg == nil {
		jobCfg = jobs.DefaultJobConfig()
	}
	return &Server{
		db:           opts.DB,
		store:        opts.Store,
		jobs:         opts.Jobs,
		registry:     opts.Registry,
		starter:      opts.Starter,
		directories:  opts.Directories,
		jobCfg:       jobCfg,
		cache:        opts.Cache,
		defaultToken: opts.DefaultToken,
		logger:       logger.With("component", "api"),
		startedAt:    time.Now(),
	}
}

// Router creates the HTTP router with every route mounted.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readyHandler)

	r.Route("/api", func(r chi.Router) {
		r.Route("/connections", func(r chi.Router) {
			r.Get("/", s.listConnections)
			r.Post("/", s.saveConnection)
			r.Post("/test", s.testConnection)
			r.Get("/{id}", s.getConnection)
			r.Put("/{id}", s.updateConnection)
			r.Post("/{id}:deactivate", s.deactivateConnection)
		})

		cached := cache.Middleware(s.cache)
		r.With(cached).Get("/statistics", s.statistics)

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", s.listProjects)
			r.Post("/sync", s.syncProjects)
			r.Post("/extract", s.bulkExtract)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getProject)
				r.Patch("/status", s.updateProjectStatus)
				r.Post("/extract", s.extract)
				r.With(cached).Get("/migration-summary", s.migrationSummary)
				s.mountArtifactListings(r)
			})
		})

		r.Get("/workitems/{id}", s.getWorkItem)
		r.Get("/repositories/{id}", s.getRepository)

		r.Mount("/jobs", jobs.Router(s.jobs, s.registry, s.starter, s.jobCfg, s.logger))
		r.Mount("/logs", jobs.LogsRouter(s.jobs))
	})

	return r
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "alive",
		"uptime": time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// readyHandler reports ready only while the database answers.
func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	dbStatus := map[string]string{"status": "up"}
	if err := db.Ping(ctx, s.db); err != nil {
		dbStatus["status"] = "down"
		dbStatus["error"] = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready", "database": dbStatus})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "database": dbStatus})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeStoreError maps persistence errors to status codes.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, jobs.ErrJobNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInvalid), errors.Is(err, store.ErrInvalidPageToken),
		errors.Is(err, extract.ErrUnknownArtifactType):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, jobs.ErrJobTerminal):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, jobs.ErrShuttingDown):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// writeUpstreamError maps connector errors to status codes.
func writeUpstreamError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ado.ErrUnauthorized):
		writeError(w, http.StatusBadRequest, fmt.Sprintf("azure devops rejected the credentials: %v", err))
	case errors.Is(err, ado.ErrNotFound):
		writeError(w, http.StatusBadRequest, fmt.Sprintf("azure devops organization not found: %v", err))
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func idParam(w http.ResponseWriter, r *http.Request) (uint, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid id %q", raw))
		return 0, false
	}
	return uint(id), true
}

func pageParams(w http.ResponseWriter, r *http.Request) (store.Page, bool) {
	q := r.URL.Query()
	page := store.Page{Token: q.Get("pageToken")}
	if v := q.Get("pageSize"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid pageSize %q", v))
			return page, false
		}
		page.Size = n
	}
	return page, true
}
