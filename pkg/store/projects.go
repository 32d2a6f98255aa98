package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// projectSyncColumns are refreshed from upstream on every sync. Status and
// counts belong to this side and are never overwritten by a sync.
var projectSyncColumns = []string{
	"name", "description", "process_template", "source_control", "visibility",
	"created_date", "connection_id", "last_synced_at", "updated_at",
}

// UpsertProject inserts or refreshes a project by external id and loads the
// stored row back into p.
func (s *Store) UpsertProject(ctx context.Context, p *Project) error {
	if p.Status == "" {
		p.Status = ProjectReady
	}
	now := time.Now().UTC()
	p.LastSyncedAt = &now
	db := s.conn(ctx)
	if err := db.Clauses(onConflict([]string{"external_id"}, projectSyncColumns)).Create(p).Error; err != nil {
		return fmt.Errorf("upsert project %s: %w", p.ExternalID, err)
	}
	externalID := p.ExternalID
	*p = Project{}
	if err := db.Where("external_id = ?", externalID).Take(p).Error; err != nil {
		return fmt.Errorf("reload project %s: %w", externalID, err)
	}
	return nil
}

// GetProject retrieves a project by id.
func (s *Store) GetProject(ctx context.Context, id uint) (*Project, error) {
	var p Project
	if err := s.conn(ctx).Take(&p, id).Error; err != nil {
		return nil, notFound(err, "project", id)
	}
	return &p, nil
}

// ProjectFilter narrows ListProjects.
type ProjectFilter struct {
	Status       ProjectStatus
	ConnectionID uint
}

// ListProjects returns projects ordered by name.
func (s *Store) ListProjects(ctx context.Context, filter ProjectFilter) ([]Project, error) {
	q := s.conn(ctx).Order("name ASC")
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.ConnectionID != 0 {
		q = q.Where("connection_id = ?", filter.ConnectionID)
	}
	out := []Project{}
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return out, nil
}

// UpdateProjectStatus sets the migration status of a project.
func (s *Store) UpdateProjectStatus(ctx context.Context, id uint, status ProjectStatus) (*Project, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: project status %q", ErrInvalid, status)
	}
	res := s.conn(ctx).Model(&Project{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return nil, fmt.Errorf("update project status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	return s.GetProject(ctx, id)
}

// MarkExtracting moves a ready or selected project to in_progress. Other
// statuses are left alone.
func (s *Store) MarkExtracting(ctx context.Context, id uint) error {
	err := s.conn(ctx).Model(&Project{}).
		Where("id = ? AND status IN ?", id, []ProjectStatus{ProjectReady, ProjectSelected}).
		Update("status", ProjectInProgress).Error
	if err != nil {
		return fmt.Errorf("mark project %d in progress: %w", id, err)
	}
	return nil
}

// SetProjectCounts writes aggregate count columns. Unknown column names are
// rejected.
func (s *Store) SetProjectCounts(ctx context.Context, id uint, counts map[string]int) error {
	if len(counts) == 0 {
		return nil
	}
	updates := make(map[string]any, len(counts))
	for col, n := range counts {
		if !isCountColumn(col) {
			return fmt.Errorf("unknown project count column %q", col)
		}
		updates[col] = n
	}
	res := s.conn(ctx).Model(&Project{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("set project counts: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	return nil
}

func isCountColumn(col string) bool {
	for _, c := range CountColumns {
		if c == col {
			return true
		}
	}
	return false
}

// Statistics aggregates the project table.
type Statistics struct {
	TotalProjects     int64                   `json:"totalProjects"`
	ByStatus          map[ProjectStatus]int64 `json:"byStatus"`
	WorkItems         int64                   `json:"totalWorkItems"`
	Repositories      int64                   `json:"totalRepositories"`
	Pipelines         int64                   `json:"totalPipelines"`
	TestCases         int64                   `json:"totalTestCases"`
	ActiveConnections int64                   `json:"activeConnections"`
}

// Statistics returns totals across all projects.
func (s *Store) Statistics(ctx context.Context) (*Statistics, error) {
	db := s.conn(ctx)
	st := &Statistics{ByStatus: map[ProjectStatus]int64{}}

	var rows []struct {
		Status ProjectStatus
		N      int64
	}
	if err := db.Model(&Project{}).Select("status, COUNT(*) AS n").Group("status").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count projects by status: %w", err)
	}
	for _, r := range rows {
		st.ByStatus[r.Status] = r.N
		st.TotalProjects += r.N
	}

	counts := []struct {
		dst   *int64
		model any
		scope func(*gorm.DB) *gorm.DB
	}{
		{&st.WorkItems, &WorkItem{}, nil},
		{&st.Repositories, &Repository{}, nil},
		{&st.Pipelines, &Pipeline{}, nil},
		{&st.TestCases, &TestCase{}, nil},
		{&st.ActiveConnections, &Connection{}, func(q *gorm.DB) *gorm.DB { return q.Where("is_active = ?", true) }},
	}
	for _, c := range counts {
		q := db.Model(c.model)
		if c.scope != nil {
			q = c.scope(q)
		}
		if err := q.Count(c.dst).Error; err != nil {
			return nil, fmt.Errorf("statistics: %w", err)
		}
	}
	return st, nil
}
