package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/adomirror/adomirror/pkg/jobs"
	"github.com/adomirror/adomirror/pkg/store"
)

// mountArtifactListings routes the read-only listings under
// /api/projects/{id}.
func (s *Server) mountArtifactListings(r chi.Router) {
	st := s.store
	r.Get("/workitems", listHandler(s, st.ListWorkItems))
	r.Get("/repositories", listHandler(s, st.ListRepositories))
	r.Get("/pipelines", listHandler(s, st.ListPipelines))
	r.Get("/testplans", listHandler(s, st.ListTestPlans))
	r.Get("/areapaths", listHandler(s, st.ListAreaPaths))
	r.Get("/iterationpaths", listHandler(s, st.ListIterationPaths))
	r.Get("/customfields", listHandler(s, st.ListCustomFields))
	r.Get("/users", listHandler(s, st.ListUsers))
	r.Get("/boards", listHandler(s, st.ListBoards))
	r.Get("/wikipages", listHandler(s, st.ListWikiPages))
	r.Get("/queries", listHandler(s, st.ListQueries))
}

// listHandler serves one page of a project's artifacts. An unknown project
// is a 404 rather than an empty page.
func listHandler[T any](s *Server, list func(context.Context, uint, store.Page) (*store.PageResult[T], error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r)
		if !ok {
			return
		}
		page, ok := pageParams(w, r)
		if !ok {
			return
		}
		if _, err := s.store.GetProject(r.Context(), id); err != nil {
			writeStoreError(w, err)
			return
		}
		res, err := list(r.Context(), id, page)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) getWorkItem(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	d, err := s.store.GetWorkItemDetail(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// GET /api/repositories/{id}?commits=N
func (s *Server) getRepository(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("commits"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid commits %q", v))
			return
		}
		limit = n
	}
	d, err := s.store.GetRepositoryDetail(r.Context(), id, limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type migrationSummary struct {
	Project    *store.Project                           `json:"project"`
	Counts     map[string]int64                         `json:"counts"`
	LatestJobs map[jobs.ArtifactType]jobs.ExtractionJob `json:"latestJobs"`
}

// GET /api/projects/{id}/migration-summary
func (s *Server) migrationSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	counts, err := s.store.ArtifactCounts(ctx, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	latest, err := s.jobs.LatestByArtifact(ctx, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, migrationSummary{Project: p, Counts: counts, LatestJobs: latest})
}
