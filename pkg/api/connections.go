package api

import (
	"context"
	"net/http"
	"time"

	"github.com/adomirror/adomirror/pkg/store"
)

// GET /api/connections?all=true
func (s *Server) listConnections(w http.ResponseWriter, r *http.Request) {
	all := r.URL.Query().Get("all") == "true"
	conns, err := s.store.ListConnections(r.Context(), all)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"connections": conns, "count": len(conns)})
}

// POST /api/connections creates or reactivates the connection for the
// posted organization and type.
func (s *Server) saveConnection(w http.ResponseWriter, r *http.Request) {
	var in store.ConnectionInput
	if !decodeJSON(w, r, &in) {
		return
	}
	conn, err := s.store.SaveConnection(r.Context(), in)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.logger.Info("connection saved", "connectionID", conn.ID, "organization", conn.Organization, "type", conn.Type)
	writeJSON(w, http.StatusOK, conn)
}

func (s *Server) getConnection(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	conn, err := s.store.GetConnection(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

func (s *Server) updateConnection(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var in store.ConnectionInput
	if !decodeJSON(w, r, &in) {
		return
	}
	conn, err := s.store.UpdateConnection(r.Context(), id, in)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

func (s *Server) deactivateConnection(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := s.store.DeactivateConnection(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	s.logger.Info("connection deactivated", "connectionID", id)
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "isActive": false})
}

// POST /api/connections/test lists the projects visible with the posted
// credentials. Nothing is stored.
func (s *Server) testConnection(w http.ResponseWriter, r *http.Request) {
	var in store.ConnectionInput
	if !decodeJSON(w, r, &in) {
		return
	}
	if err := in.Validate(); err != nil {
		writeStoreError(w, err)
		return
	}
	token := in.Token
	if token == "" {
		token = s.defaultToken
	}
	if token == "" {
		writeError(w, http.StatusBadRequest, "patToken is required")
		return
	}

	conn := &store.Connection{Organization: in.Organization, BaseURL: in.BaseURL, Type: in.Type}
	dir, err := s.directories(conn, token)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer s.closeDirectory(dir)

	projects, err := dir.ListProjects(r.Context())
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	names := make([]string, 0, len(projects))
	for _, p := range projects {
		names = append(names, p.Name)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"organization": in.Organization,
		"projectCount": len(projects),
		"projects":     names,
	})
}

func (s *Server) closeDirectory(dir Directory) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := dir.Close(ctx); err != nil {
		s.logger.Warn("connector did not close in time", "error", err)
	}
}
