package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStarter creates jobs without running them.
type fakeStarter struct {
	store *JobStore
	calls int
}

func (f *fakeStarter) Start(ctx context.Context, projectID uint, artifactType ArtifactType) (*ExtractionJob, error) {
	f.calls++
	job, _, err := f.store.Create(ctx, projectID, artifactType)
	return job, err
}

func setupRouter(store *JobStore, registry *Registry, starter Starter) *chi.Mux {
	r := chi.NewRouter()
	r.Mount("/api/jobs", Router(store, registry, starter, &JobConfig{Concurrency: 1, StallWindow: 5 * time.Minute}, nil))
	r.Mount("/api/logs", LogsRouter(store))
	return r
}

func doRequest(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestGetJobHandler_Found(t *testing.T) {
	store := NewJobStore(setupTestDB(t))
	job, _, err := store.Create(context.Background(), 4, ArtifactWorkItems)
	require.NoError(t, err)

	w := doRequest(t, setupRouter(store, nil, nil), http.MethodGet, "/api/jobs/"+job.ID)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp ExtractionJob
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, job.ID, resp.ID)
	assert.Equal(t, StatusPending, resp.Status)
	assert.Equal(t, ArtifactWorkItems, resp.ArtifactType)
	assert.Equal(t, uint(4), resp.ProjectID)
}

func TestGetJobHandler_NotFound(t *testing.T) {
	store := NewJobStore(setupTestDB(t))
	w := doRequest(t, setupRouter(store, nil, nil), http.MethodGet, "/api/jobs/nonexistent")
	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Contains(t, resp["error"], "not found")
}

func TestListJobsHandler_ClosesStalled(t *testing.T) {
	db := setupTestDB(t)
	store := NewJobStore(db)
	ctx := context.Background()
	job, _, err := store.Create(ctx, 1, ArtifactWorkItems)
	require.NoError(t, err)
	require.NoError(t, store.Start(ctx, job.ID))
	backdate(t, db, job.ID, 10*time.Minute)

	w := doRequest(t, setupRouter(store, NewRegistry(1, nil), nil), http.MethodGet, "/api/jobs?projectId=1")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Jobs      []ExtractionJob `json:"jobs"`
		TotalSize int             `json:"totalSize"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Jobs, 1)
	assert.Equal(t, 1, resp.TotalSize)
	assert.Equal(t, StatusCompleted, resp.Jobs[0].Status)
	assert.Equal(t, 100, resp.Jobs[0].Progress)
	assert.Equal(t, 10, resp.Jobs[0].ExtractedItems)
	assert.True(t, resp.Jobs[0].AutoClosed)
}

func TestListJobsHandler_BadProjectID(t *testing.T) {
	store := NewJobStore(setupTestDB(t))
	w := doRequest(t, setupRouter(store, nil, nil), http.MethodGet, "/api/jobs?projectId=abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelJobHandler_Live(t *testing.T) {
	store := NewJobStore(setupTestDB(t))
	reg := NewRegistry(1, nil)
	job, _, err := store.Create(context.Background(), 1, ArtifactWorkItems)
	require.NoError(t, err)

	stopped := make(chan struct{})
	require.NoError(t, reg.Launch(job.ID, func(ctx context.Context) {
		<-ctx.Done()
		close(stopped)
	}))

	w := doRequest(t, setupRouter(store, reg, nil), http.MethodPost, "/api/jobs/"+job.ID+":cancel")
	assert.Equal(t, http.StatusAccepted, w.Code)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("job context was not canceled")
	}
}

func TestCancelJobHandler_Orphaned(t *testing.T) {
	store := NewJobStore(setupTestDB(t))
	job, _, err := store.Create(context.Background(), 1, ArtifactWorkItems)
	require.NoError(t, err)

	w := doRequest(t, setupRouter(store, NewRegistry(1, nil), nil), http.MethodPost, "/api/jobs/"+job.ID+":cancel")
	assert.Equal(t, http.StatusOK, w.Code)

	got, err := store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, CanceledMessage, got.ErrorMessage)

	// A finished job cannot be canceled again.
	w = doRequest(t, setupRouter(store, nil, nil), http.MethodPost, "/api/jobs/"+job.ID+":cancel")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCancelJobHandler_LogWriteFailureIsLogged(t *testing.T) {
	db := setupTestDB(t)
	store := NewJobStore(db)
	job, _, err := store.Create(context.Background(), 1, ArtifactWorkItems)
	require.NoError(t, err)
	require.NoError(t, db.Migrator().DropTable(&ExtractionLog{}))

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	r := chi.NewRouter()
	r.Mount("/api/jobs", Router(store, NewRegistry(1, nil), nil, nil, logger))

	w := doRequest(t, r, http.MethodPost, "/api/jobs/"+job.ID+":cancel")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, buf.String(), "failed to log job cancellation")
	assert.Contains(t, buf.String(), job.ID)
}

func TestReextractJobHandler(t *testing.T) {
	store := NewJobStore(setupTestDB(t))
	ctx := context.Background()
	starter := &fakeStarter{store: store}
	router := setupRouter(store, nil, starter)

	job, _, err := store.Create(ctx, 2, ArtifactRepositories)
	require.NoError(t, err)

	w := doRequest(t, router, http.MethodPost, "/api/jobs/"+job.ID+":reextract")
	assert.Equal(t, http.StatusConflict, w.Code, "live jobs are not re-extracted")

	require.NoError(t, store.Complete(ctx, job.ID, 3, 3))
	w = doRequest(t, router, http.MethodPost, "/api/jobs/"+job.ID+":reextract")
	require.Equal(t, http.StatusAccepted, w.Code)

	var fresh ExtractionJob
	require.NoError(t, json.NewDecoder(w.Body).Decode(&fresh))
	assert.NotEqual(t, job.ID, fresh.ID)
	assert.Equal(t, ArtifactRepositories, fresh.ArtifactType)
	assert.Equal(t, uint(2), fresh.ProjectID)
	assert.Equal(t, 1, starter.calls)

	old, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, old.Status, "history is kept")
}

func TestJobLogsHandler(t *testing.T) {
	store := NewJobStore(setupTestDB(t))
	ctx := context.Background()
	job, _, err := store.Create(ctx, 1, ArtifactWorkItems)
	require.NoError(t, err)
	require.NoError(t, store.AppendLog(ctx, job.ID, LevelInfo, "hello", nil))

	router := setupRouter(store, nil, nil)
	w := doRequest(t, router, http.MethodGet, "/api/jobs/"+job.ID+"/logs")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Logs []ExtractionLog `json:"logs"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Logs, 1)
	assert.Equal(t, "hello", resp.Logs[0].Message)

	w = doRequest(t, router, http.MethodGet, "/api/jobs/missing/logs")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLogsHandlers(t *testing.T) {
	store := NewJobStore(setupTestDB(t))
	ctx := context.Background()
	job, _, err := store.Create(ctx, 9, ArtifactUsers)
	require.NoError(t, err)
	require.NoError(t, store.AppendLog(ctx, job.ID, LevelInfo, "ok", nil))
	require.NoError(t, store.AppendLog(ctx, job.ID, LevelError, "bad", nil))

	router := setupRouter(store, nil, nil)
	w := doRequest(t, router, http.MethodGet, "/api/logs?level=ERROR&projectId=9")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Logs  []LogEntry `json:"logs"`
		Total int64      `json:"total"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	assert.Equal(t, int64(1), list.Total)
	require.Len(t, list.Logs, 1)
	assert.Equal(t, "bad", list.Logs[0].Message)
	assert.Equal(t, uint(9), list.Logs[0].ProjectID)

	w = doRequest(t, router, http.MethodGet, "/api/logs?limit=-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, router, http.MethodGet, "/api/logs/summary")
	require.Equal(t, http.StatusOK, w.Code)
	var sum LogSummary
	require.NoError(t, json.NewDecoder(w.Body).Decode(&sum))
	assert.Equal(t, int64(2), sum.TotalOperations)
	assert.Equal(t, 50.0, sum.SuccessRate)
	assert.Len(t, sum.RecentErrors, 1)
	assert.Len(t, sum.RecentJobs, 1)
}
