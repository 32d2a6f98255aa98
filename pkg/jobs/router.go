package jobs

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
)

// Router creates a chi.Router for the job API, meant to be mounted at
// /api/jobs. starter may be nil, in which case re-extraction is not routed.
func Router(store *JobStore, registry *Registry, starter Starter, cfg *JobConfig, logger *slog.Logger) chi.Router {
	if cfg == nil {
		cfg = DefaultJobConfig()
	}
	r := chi.NewRouter()

	r.Get("/", ListJobsHandler(store, registry, cfg, logger))
	r.Get("/{jobId}", GetJobHandler(store))
	r.Get("/{jobId}/logs", JobLogsHandler(store))
	r.Post("/{jobId}:cancel", CancelJobHandler(store, registry, logger))
	if starter != nil {
		r.Post("/{jobId}:reextract", ReextractJobHandler(store, starter))
	}

	return r
}

// LogsRouter creates a chi.Router for the log API, meant to be mounted at
// /api/logs.
func LogsRouter(store *JobStore) chi.Router {
	r := chi.NewRouter()
	r.Get("/", ListLogsHandler(store))
	r.Get("/summary", LogSummaryHandler(store))
	return r
}
