package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/adomirror/adomirror/pkg/ado"
	"github.com/adomirror/adomirror/pkg/cache"
	"github.com/adomirror/adomirror/pkg/jobs"
	"github.com/adomirror/adomirror/pkg/store"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "api.db") + "?_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(append(store.Models(), jobs.Models()...)...))
	return db
}

// fakeStarter creates pending jobs without running them.
type fakeStarter struct {
	mu    sync.Mutex
	jobs  *jobs.JobStore
	fail  map[uint]error
	calls []string
}

func (f *fakeStarter) Start(ctx context.Context, projectID uint, artifactType jobs.ArtifactType) (*jobs.ExtractionJob, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fmt.Sprintf("%d:%s", projectID, artifactType))
	err := f.fail[projectID]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	job, _, err := f.jobs.Create(ctx, projectID, artifactType)
	return job, err
}

// fakeDirectory serves canned projects.
type fakeDirectory struct {
	projects   []ado.ProjectSummary
	details    map[string]*ado.ProjectDetail
	listErr    error
	closed     bool
	gotToken   string
	gotBaseURL string
}

func (d *fakeDirectory) ListProjects(context.Context) ([]ado.ProjectSummary, error) {
	return d.projects, d.listErr
}

func (d *fakeDirectory) GetProjectDetails(_ context.Context, id string) (*ado.ProjectDetail, error) {
	if p, ok := d.details[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("project %s: %w", id, ado.ErrNotFound)
}

func (d *fakeDirectory) Close(context.Context) error {
	d.closed = true
	return nil
}

type testServer struct {
	db      *gorm.DB
	store   *store.Store
	jobs    *jobs.JobStore
	starter *fakeStarter
	dir     *fakeDirectory
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := setupTestDB(t)
	ts := &testServer{
		db:    db,
		store: store.New(db, nil),
		jobs:  jobs.NewJobStore(db),
		dir:   &fakeDirectory{},
	}
	ts.starter = &fakeStarter{jobs: ts.jobs, fail: map[uint]error{}}
	srv := NewServer(Options{
		DB:       db,
		Store:    ts.store,
		Jobs:     ts.jobs,
		Registry: jobs.NewRegistry(1, nil),
		Starter:  ts.starter,
		Directories: func(conn *store.Connection, token string) (Directory, error) {
			ts.dir.gotToken = token
			ts.dir.gotBaseURL = conn.BaseURL
			return ts.dir, nil
		},
		DefaultToken: "default-pat",
	})
	ts.handler = srv.Router()
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out), w.Body.String())
	return out
}

func (ts *testServer) seedProject(t *testing.T, externalID string) *store.Project {
	t.Helper()
	p := &store.Project{ExternalID: externalID, Name: "Project " + externalID}
	require.NoError(t, ts.store.UpsertProject(context.Background(), p))
	return p
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alive", decode[map[string]string](t, w)["status"])

	w = ts.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", decode[map[string]any](t, w)["status"])
}

func TestReadyDatabaseDown(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer sqlDB.Close()
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		DisableAutomaticPing: true,
		Logger:               logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	srv := NewServer(Options{DB: gdb})
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "not_ready", body["status"])
	assert.Contains(t, body["database"].(map[string]any)["error"], "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnectionLifecycle(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/connections", map[string]string{"organization": "contoso", "patToken": "secret"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	conn := decode[store.Connection](t, w)
	assert.Equal(t, "contoso", conn.Name)
	assert.Equal(t, "https://dev.azure.com/contoso", conn.BaseURL)
	assert.True(t, conn.IsActive)
	assert.NotContains(t, w.Body.String(), "secret")

	w = ts.do(t, http.MethodGet, fmt.Sprintf("/api/connections/%d", conn.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPut, fmt.Sprintf("/api/connections/%d", conn.ID), map[string]string{"organization": "contoso", "name": "Main"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Main", decode[store.Connection](t, w).Name)

	w = ts.do(t, http.MethodPost, fmt.Sprintf("/api/connections/%d:deactivate", conn.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode[map[string]any](t, w)["isActive"])

	w = ts.do(t, http.MethodGet, "/api/connections", nil)
	assert.EqualValues(t, 0, decode[map[string]any](t, w)["count"])
	w = ts.do(t, http.MethodGet, "/api/connections?all=true", nil)
	assert.EqualValues(t, 1, decode[map[string]any](t, w)["count"])
}

func TestConnectionErrors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"missing organization", http.MethodPost, "/api/connections", map[string]string{"patToken": "x"}, http.StatusBadRequest},
		{"new connection without token", http.MethodPost, "/api/connections", map[string]string{"organization": "contoso"}, http.StatusBadRequest},
		{"bad type", http.MethodPost, "/api/connections", map[string]string{"organization": "contoso", "patToken": "x", "type": "mirror"}, http.StatusBadRequest},
		{"unknown id", http.MethodGet, "/api/connections/99", nil, http.StatusNotFound},
		{"bad id", http.MethodGet, "/api/connections/abc", nil, http.StatusBadRequest},
		{"deactivate unknown", http.MethodPost, "/api/connections/99:deactivate", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.NotEmpty(t, decode[map[string]string](t, w)["error"])
		})
	}
}

func TestTestConnection(t *testing.T) {
	ts := newTestServer(t)
	ts.dir.projects = []ado.ProjectSummary{{ID: "a", Name: "Alpha"}, {ID: "b", Name: "Beta"}}

	w := ts.do(t, http.MethodPost, "/api/connections/test", map[string]string{"organization": "contoso"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode[map[string]any](t, w)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 2, body["projectCount"])
	assert.ElementsMatch(t, []any{"Alpha", "Beta"}, body["projects"])
	assert.Equal(t, "default-pat", ts.dir.gotToken)
	assert.True(t, ts.dir.closed)

	var conns int64
	require.NoError(t, ts.db.Model(&store.Connection{}).Count(&conns).Error)
	assert.Zero(t, conns)
}

func TestTestConnectionUpstreamFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unauthorized", &ado.APIError{Method: "GET", URL: "u", StatusCode: http.StatusUnauthorized}, http.StatusBadRequest},
		{"not found", &ado.APIError{Method: "GET", URL: "u", StatusCode: http.StatusNotFound}, http.StatusBadRequest},
		{"server error", &ado.APIError{Method: "GET", URL: "u", StatusCode: http.StatusInternalServerError}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.dir.listErr = tt.err
			w := ts.do(t, http.MethodPost, "/api/connections/test", map[string]string{"organization": "contoso", "patToken": "pat"})
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.Equal(t, "pat", ts.dir.gotToken)
		})
	}
}

func TestSyncProjects(t *testing.T) {
	ts := newTestServer(t)
	_, err := ts.store.SaveConnection(context.Background(), store.ConnectionInput{Organization: "contoso", Token: "pat"})
	require.NoError(t, err)

	detail := &ado.ProjectDetail{ProjectSummary: ado.ProjectSummary{ID: "a", Name: "Alpha"}}
	detail.Capabilities.ProcessTemplate.TemplateName = "Agile"
	detail.Capabilities.VersionControl.SourceControlType = "Tfvc"
	ts.dir.projects = []ado.ProjectSummary{
		{ID: "a", Name: "Alpha", Visibility: "private", LastUpdateTime: "2024-03-01T10:00:00Z"},
		{ID: "b", Name: "Beta"},
	}
	ts.dir.details = map[string]*ado.ProjectDetail{"a": detail}

	w := ts.do(t, http.MethodPost, "/api/projects/sync", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[syncResponse](t, w)
	assert.Equal(t, 2, resp.Synced)
	assert.Empty(t, resp.Errors)
	assert.Equal(t, "pat", ts.dir.gotToken)

	projects, err := ts.store.ListProjects(context.Background(), store.ProjectFilter{})
	require.NoError(t, err)
	require.Len(t, projects, 2)
	byExt := map[string]store.Project{}
	for _, p := range projects {
		byExt[p.ExternalID] = p
	}
	assert.Equal(t, "Agile", byExt["a"].ProcessTemplate)
	assert.Equal(t, "Tfvc", byExt["a"].SourceControl)
	require.NotNil(t, byExt["a"].CreatedDate)
	assert.Equal(t, 2024, byExt["a"].CreatedDate.Year())
	// Detail lookup failed for b; defaults apply.
	assert.Equal(t, "Unknown", byExt["b"].ProcessTemplate)
	assert.Equal(t, "Git", byExt["b"].SourceControl)
	assert.Equal(t, store.ProjectReady, byExt["b"].Status)

	// A second sync updates in place.
	w = ts.do(t, http.MethodPost, "/api/projects/sync", map[string]uint{"connectionId": resp.Connection})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	projects, err = ts.store.ListProjects(context.Background(), store.ProjectFilter{})
	require.NoError(t, err)
	assert.Len(t, projects, 2)
}

func TestSyncProjectsWithoutConnection(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodPost, "/api/projects/sync", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSyncProjectsInactiveConnection(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	conn, err := ts.store.SaveConnection(ctx, store.ConnectionInput{Organization: "contoso", Token: "pat"})
	require.NoError(t, err)
	require.NoError(t, ts.store.DeactivateConnection(ctx, conn.ID))

	w := ts.do(t, http.MethodPost, "/api/projects/sync", map[string]uint{"connectionId": conn.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProjectsListAndStatus(t *testing.T) {
	ts := newTestServer(t)
	a := ts.seedProject(t, "a")
	ts.seedProject(t, "b")

	w := ts.do(t, http.MethodPatch, fmt.Sprintf("/api/projects/%d/status", a.ID), map[string]string{"status": "selected"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, store.ProjectSelected, decode[store.Project](t, w).Status)

	w = ts.do(t, http.MethodGet, "/api/projects?status=selected", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, w)["count"])

	w = ts.do(t, http.MethodPatch, fmt.Sprintf("/api/projects/%d/status", a.ID), map[string]string{"status": "archived"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = ts.do(t, http.MethodGet, "/api/projects?status=archived", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = ts.do(t, http.MethodGet, "/api/projects/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodGet, "/api/statistics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	st := decode[store.Statistics](t, w)
	assert.EqualValues(t, 2, st.TotalProjects)
	assert.EqualValues(t, 1, st.ByStatus[store.ProjectSelected])
}

func TestExtractStartsJob(t *testing.T) {
	ts := newTestServer(t)
	p := ts.seedProject(t, "a")

	w := ts.do(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/extract", p.ID), map[string]string{"artifactType": "workitems"})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	job := decode[jobs.ExtractionJob](t, w)
	assert.Equal(t, jobs.StatusPending, job.Status)
	assert.Equal(t, p.ID, job.ProjectID)

	// The live job is returned again.
	w = ts.do(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/extract", p.ID), map[string]string{"artifactType": "workitems"})
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, job.ID, decode[jobs.ExtractionJob](t, w).ID)

	w = ts.do(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/extract", p.ID), map[string]string{"artifactType": "everything"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, ts.starter.calls, 2)
}

func TestExtractStartErrors(t *testing.T) {
	ts := newTestServer(t)
	ts.starter.fail[7] = fmt.Errorf("project 7: %w", store.ErrNotFound)
	ts.starter.fail[8] = fmt.Errorf("launch job: %w", jobs.ErrShuttingDown)

	w := ts.do(t, http.MethodPost, "/api/projects/7/extract", map[string]string{"artifactType": "users"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = ts.do(t, http.MethodPost, "/api/projects/8/extract", map[string]string{"artifactType": "users"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestBulkExtract(t *testing.T) {
	ts := newTestServer(t)
	a := ts.seedProject(t, "a")
	b := ts.seedProject(t, "b")
	ts.starter.fail[b.ID] = errors.New("boom")

	w := ts.do(t, http.MethodPost, "/api/projects/extract", map[string]any{
		"projectIds":    []uint{a.ID, b.ID},
		"artifactTypes": []string{"workitems", "repositories"},
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	resp := decode[bulkExtractResponse](t, w)
	assert.Len(t, resp.Jobs, 2)
	require.Len(t, resp.Errors, 2)
	assert.Contains(t, resp.Errors[0], "boom")

	w = ts.do(t, http.MethodPost, "/api/projects/extract", map[string]any{"projectIds": []uint{a.ID}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = ts.do(t, http.MethodPost, "/api/projects/extract", map[string]any{"projectIds": []uint{a.ID}, "artifactTypes": []string{"nope"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestArtifactListings(t *testing.T) {
	ts := newTestServer(t)
	p := ts.seedProject(t, "a")
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		wi := &store.WorkItem{ProjectID: p.ID, ExternalID: i, Title: fmt.Sprintf("item %d", i)}
		require.NoError(t, ts.store.SaveWorkItem(ctx, wi, store.WorkItemChildren{}))
	}

	w := ts.do(t, http.MethodGet, fmt.Sprintf("/api/projects/%d/workitems?pageSize=2", p.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	page := decode[store.PageResult[store.WorkItem]](t, w)
	assert.Len(t, page.Items, 2)
	assert.EqualValues(t, 3, page.TotalSize)
	require.NotEmpty(t, page.NextPageToken)

	w = ts.do(t, http.MethodGet, fmt.Sprintf("/api/projects/%d/workitems?pageSize=2&pageToken=%s", p.ID, page.NextPageToken), nil)
	require.Equal(t, http.StatusOK, w.Code)
	page = decode[store.PageResult[store.WorkItem]](t, w)
	assert.Len(t, page.Items, 1)
	assert.Empty(t, page.NextPageToken)

	for _, kind := range []string{"repositories", "pipelines", "testplans", "areapaths", "iterationpaths", "customfields", "users", "boards", "wikipages", "queries"} {
		w := ts.do(t, http.MethodGet, fmt.Sprintf("/api/projects/%d/%s", p.ID, kind), nil)
		assert.Equal(t, http.StatusOK, w.Code, kind)
	}

	w = ts.do(t, http.MethodGet, "/api/projects/999/workitems", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = ts.do(t, http.MethodGet, fmt.Sprintf("/api/projects/%d/workitems?pageToken=zz", p.ID), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = ts.do(t, http.MethodGet, fmt.Sprintf("/api/projects/%d/workitems?pageSize=-1", p.ID), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWorkItemAndRepositoryDetail(t *testing.T) {
	ts := newTestServer(t)
	p := ts.seedProject(t, "a")
	ctx := context.Background()

	wi := &store.WorkItem{ProjectID: p.ID, ExternalID: 42, Title: "Fix login"}
	require.NoError(t, ts.store.SaveWorkItem(ctx, wi, store.WorkItemChildren{
		Comments: []store.WorkItemComment{{ExternalID: 1, Text: "looking"}},
	}))
	w := ts.do(t, http.MethodGet, fmt.Sprintf("/api/workitems/%d", wi.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	d := decode[store.WorkItemDetail](t, w)
	assert.Equal(t, "Fix login", d.Title)
	assert.Len(t, d.Comments, 1)

	repo := &store.Repository{ProjectID: p.ID, ExternalID: "r1", Name: "web"}
	require.NoError(t, ts.store.UpsertRepository(ctx, repo))
	w = ts.do(t, http.MethodGet, fmt.Sprintf("/api/repositories/%d?commits=5", repo.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "web", decode[store.RepositoryDetail](t, w).Name)

	w = ts.do(t, http.MethodGet, fmt.Sprintf("/api/repositories/%d?commits=x", repo.ID), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = ts.do(t, http.MethodGet, "/api/workitems/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = ts.do(t, http.MethodGet, "/api/repositories/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMigrationSummary(t *testing.T) {
	ts := newTestServer(t)
	p := ts.seedProject(t, "a")
	ctx := context.Background()
	require.NoError(t, ts.store.SaveWorkItem(ctx, &store.WorkItem{ProjectID: p.ID, ExternalID: 1, Title: "x"}, store.WorkItemChildren{}))
	job, _, err := ts.jobs.Create(ctx, p.ID, jobs.ArtifactWorkItems)
	require.NoError(t, err)

	w := ts.do(t, http.MethodGet, fmt.Sprintf("/api/projects/%d/migration-summary", p.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	sum := decode[migrationSummary](t, w)
	assert.EqualValues(t, 1, sum.Counts["work_items"])
	assert.EqualValues(t, 0, sum.Counts["repositories"])
	assert.Equal(t, job.ID, sum.LatestJobs[jobs.ArtifactWorkItems].ID)

	w = ts.do(t, http.MethodGet, "/api/projects/999/migration-summary", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestJobRoutesMounted(t *testing.T) {
	ts := newTestServer(t)
	job, _, err := ts.jobs.Create(context.Background(), 1, jobs.ArtifactQueries)
	require.NoError(t, err)

	w := ts.do(t, http.MethodGet, "/api/jobs/"+job.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = ts.do(t, http.MethodGet, "/api/logs/summary", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStatisticsCachedUntilWrite(t *testing.T) {
	db := setupTestDB(t)
	st := store.New(db, nil)
	js := jobs.NewJobStore(db)
	srv := NewServer(Options{DB: db, Store: st, Jobs: js, Starter: &fakeStarter{jobs: js}, Cache: cache.New(16, time.Minute)})
	ts := &testServer{db: db, store: st, jobs: js, handler: srv.Router()}
	p := ts.seedProject(t, "a")

	w := ts.do(t, http.MethodGet, "/api/statistics", nil)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	ts.seedProject(t, "b")
	w = ts.do(t, http.MethodGet, "/api/statistics", nil)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.EqualValues(t, 1, decode[store.Statistics](t, w).TotalProjects)

	w = ts.do(t, http.MethodPatch, fmt.Sprintf("/api/projects/%d/status", p.ID), map[string]string{"status": "migrated"})
	require.Equal(t, http.StatusOK, w.Code)
	w = ts.do(t, http.MethodGet, "/api/statistics", nil)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.EqualValues(t, 2, decode[store.Statistics](t, w).TotalProjects)
}
