package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/adomirror/adomirror/pkg/ado"
	"github.com/adomirror/adomirror/pkg/extract"
	"github.com/adomirror/adomirror/pkg/jobs"
	"github.com/adomirror/adomirror/pkg/store"
)

// GET /api/projects?status=&connectionId=
func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ProjectFilter{Status: store.ProjectStatus(q.Get("status"))}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid status %q", filter.Status))
		return
	}
	if v := q.Get("connectionId"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid connectionId %q", v))
			return
		}
		filter.ConnectionID = uint(id)
	}
	projects, err := s.store.ListProjects(r.Context(), filter)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects, "count": len(projects)})
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	p, err := s.store.GetProject(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type statusRequest struct {
	Status store.ProjectStatus `json:"status"`
}

// PATCH /api/projects/{id}/status
func (s *Server) updateProjectStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := s.store.UpdateProjectStatus(r.Context(), id, req.Status)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.cache.InvalidateAll()
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) statistics(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Statistics(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type syncRequest struct {
	ConnectionID uint `json:"connectionId"`
}

type syncResponse struct {
	Connection uint            `json:"connectionId"`
	Synced     int             `json:"synced"`
	Projects   []store.Project `json:"projects"`
	Errors     []string        `json:"errors,omitempty"`
}

// POST /api/projects/sync refreshes the project list from the given
// connection, or from the newest active one when the body names none.
func (s *Server) syncProjects(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	ctx := r.Context()
	conn, err := s.syncConnection(ctx, req.ConnectionID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	token, err := s.store.Token(conn)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	dir, err := s.directories(conn, token)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer s.closeDirectory(dir)

	summaries, err := dir.ListProjects(ctx)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	resp := syncResponse{Connection: conn.ID, Projects: []store.Project{}}
	for _, sum := range summaries {
		p := projectFromUpstream(ctx, dir, sum, conn.ID, func(err error) {
			s.logger.Warn("project details unavailable, using summary", "project", sum.Name, "error", err)
		})
		if err := s.store.UpsertProject(ctx, p); err != nil {
			resp.Errors = append(resp.Errors, fmt.Sprintf("%s: %v", sum.Name, err))
			continue
		}
		resp.Projects = append(resp.Projects, *p)
	}
	resp.Synced = len(resp.Projects)
	s.cache.InvalidateAll()
	s.logger.Info("projects synced", "connectionID", conn.ID, "synced", resp.Synced, "failed", len(resp.Errors))
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) syncConnection(ctx context.Context, id uint) (*store.Connection, error) {
	if id == 0 {
		return s.store.LatestActiveConnection(ctx)
	}
	conn, err := s.store.GetConnection(ctx, id)
	if err != nil {
		return nil, err
	}
	if !conn.IsActive {
		return nil, fmt.Errorf("%w: connection %d is inactive", store.ErrInvalid, id)
	}
	return conn, nil
}

// projectFromUpstream maps a project, reading its capabilities when the
// detail call succeeds.
func projectFromUpstream(ctx context.Context, dir Directory, sum ado.ProjectSummary, connectionID uint, onDetailErr func(error)) *store.Project {
	detail := &ado.ProjectDetail{ProjectSummary: sum}
	if d, err := dir.GetProjectDetails(ctx, sum.ID); err != nil {
		onDetailErr(err)
	} else {
		detail = d
	}
	id := connectionID
	return &store.Project{
		ExternalID:      sum.ID,
		Name:            sum.Name,
		Description:     sum.Description,
		ProcessTemplate: detail.ProcessTemplate(),
		SourceControl:   detail.SourceControl(),
		Visibility:      sum.Visibility,
		CreatedDate:     ado.ParseTime(sum.LastUpdateTime),
		ConnectionID:    &id,
	}
}

// decodeOptionalJSON decodes a body that may be absent.
func decodeOptionalJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

type extractRequest struct {
	ArtifactType jobs.ArtifactType `json:"artifactType"`
}

// POST /api/projects/{id}/extract
func (s *Server) extract(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req extractRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !extract.ArtifactTypes.Contains(req.ArtifactType) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown artifact type %q", req.ArtifactType))
		return
	}
	job, err := s.starter.Start(r.Context(), id, req.ArtifactType)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.cache.InvalidateAll()
	writeJSON(w, http.StatusAccepted, job)
}

type bulkExtractRequest struct {
	ProjectIDs    []uint              `json:"projectIds"`
	ArtifactTypes []jobs.ArtifactType `json:"artifactTypes"`
}

type bulkExtractResponse struct {
	Jobs   []*jobs.ExtractionJob `json:"jobs"`
	Errors []string              `json:"errors,omitempty"`
}

// POST /api/projects/extract starts one job per project and artifact
// type. A pair that cannot start is reported without stopping the rest.
func (s *Server) bulkExtract(w http.ResponseWriter, r *http.Request) {
	var req bulkExtractRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.ProjectIDs) == 0 || len(req.ArtifactTypes) == 0 {
		writeError(w, http.StatusBadRequest, "projectIds and artifactTypes are required")
		return
	}
	for _, t := range req.ArtifactTypes {
		if !extract.ArtifactTypes.Contains(t) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown artifact type %q", t))
			return
		}
	}

	resp := bulkExtractResponse{Jobs: []*jobs.ExtractionJob{}}
	for _, pid := range req.ProjectIDs {
		for _, t := range req.ArtifactTypes {
			job, err := s.starter.Start(r.Context(), pid, t)
			if err != nil {
				resp.Errors = append(resp.Errors, fmt.Sprintf("project %d %s: %v", pid, t, err))
				continue
			}
			resp.Jobs = append(resp.Jobs, job)
		}
	}
	s.cache.InvalidateAll()
	writeJSON(w, http.StatusAccepted, resp)
}
