package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/adomirror/adomirror/pkg/store"
)

// Starter starts a fresh extraction job. It is implemented by the
// extraction engine.
type Starter interface {
	Start(ctx context.Context, projectID uint, artifactType ArtifactType) (*ExtractionJob, error)
}

// GetJobHandler handles GET /api/jobs/{jobId}
func GetJobHandler(store *JobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobId")
		if jobID == "" {
			writeError(w, http.StatusBadRequest, "missing job ID")
			return
		}

		job, err := store.Get(r.Context(), jobID)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, job)
	}
}

// ListJobsHandler handles GET /api/jobs
// Query params: projectId, artifactType, status, pageSize, pageToken.
// Stalled jobs are closed before the page is read.
func ListJobsHandler(store *JobStore, registry *Registry, cfg *JobConfig, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := JobListFilter{
			ArtifactType: ArtifactType(q.Get("artifactType")),
			Status:       Status(q.Get("status")),
		}
		if v := q.Get("projectId"); v != "" {
			id, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid projectId %q", v))
				return
			}
			filter.ProjectID = uint(id)
		}

		pageSize := 20
		if ps := q.Get("pageSize"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil && v > 0 {
				pageSize = v
			}
		}
		pageToken := q.Get("pageToken")

		var live func(string) bool
		if registry != nil {
			live = registry.Live
		}
		closed, err := store.CloseStalled(r.Context(), cfg.StallWindow, live)
		if err != nil {
			logger.Error("stall detection failed", "error", err)
		}
		for _, j := range closed {
			logger.Warn("closed stale job", "jobID", j.ID, "projectID", j.ProjectID, "artifactType", j.ArtifactType, "status", j.Status)
		}

		records, nextToken, total, err := store.List(r.Context(), filter, pageSize, pageToken)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list jobs: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"jobs":          records,
			"nextPageToken": nextToken,
			"totalSize":     total,
		})
	}
}

// CancelJobHandler handles POST /api/jobs/{jobId}:cancel
func CancelJobHandler(store *JobStore, registry *Registry, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobId")
		job, err := store.Get(r.Context(), jobID)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if job.IsTerminal() {
			writeError(w, http.StatusConflict, fmt.Sprintf("job %s is already %s", jobID, job.Status))
			return
		}

		if registry != nil && registry.Cancel(jobID) {
			writeJSON(w, http.StatusAccepted, map[string]string{
				"status": "canceling",
				"jobId":  jobID,
			})
			return
		}

		// Not owned by this process, so nothing will ever finish it.
		if err := store.Fail(r.Context(), jobID, CanceledMessage); err != nil {
			writeStoreError(w, err)
			return
		}
		if err := store.AppendLog(r.Context(), jobID, LevelError, CanceledMessage, nil); err != nil {
			logger.Error("failed to log job cancellation", "jobID", jobID, "error", err)
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "canceled",
			"jobId":  jobID,
		})
	}
}

// CanceledMessage is the error message of a canceled job.
const CanceledMessage = "extraction canceled"

// ReextractJobHandler handles POST /api/jobs/{jobId}:reextract. It starts a
// new job for the same project and artifact type; the old row is kept.
func ReextractJobHandler(store *JobStore, starter Starter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobId")
		job, err := store.Get(r.Context(), jobID)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if !job.IsTerminal() {
			writeError(w, http.StatusConflict, fmt.Sprintf("job %s is still %s", jobID, job.Status))
			return
		}
		fresh, err := starter.Start(r.Context(), job.ProjectID, job.ArtifactType)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, fresh)
	}
}

// JobLogsHandler handles GET /api/jobs/{jobId}/logs
func JobLogsHandler(store *JobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobId")
		if _, err := store.Get(r.Context(), jobID); err != nil {
			writeStoreError(w, err)
			return
		}
		logs, err := store.Logs(r.Context(), jobID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list logs: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
	}
}

// ListLogsHandler handles GET /api/logs
// Query params: level, projectId, limit, offset.
func ListLogsHandler(store *JobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := LogFilter{Level: Level(q.Get("level")), Limit: 100}
		for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
			if v := q.Get(name); v != "" {
				n, err := strconv.Atoi(v)
				if err != nil || n < 0 {
					writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s %q", name, v))
					return
				}
				*dst = n
			}
		}
		if v := q.Get("projectId"); v != "" {
			id, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid projectId %q", v))
				return
			}
			filter.ProjectID = uint(id)
		}

		logs, total, err := store.ListLogs(r.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list logs: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"logs":   logs,
			"total":  total,
			"limit":  filter.Limit,
			"offset": filter.Offset,
		})
	}
}

// LogSummaryHandler handles GET /api/logs/summary
func LogSummaryHandler(store *JobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sum, err := store.Summary(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to summarize logs: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, sum)
	}
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrJobNotFound), errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrJobTerminal):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
