package store

import (
	"context"
	"fmt"
)

func projectRows[T any](rows []T, projectID uint, set func(*T, uint)) {
	for i := range rows {
		set(&rows[i], projectID)
	}
}

// UpsertAreaPaths upserts area paths of a project by node identifier.
func (s *Store) UpsertAreaPaths(ctx context.Context, projectID uint, paths []AreaPath) error {
	projectRows(paths, projectID, func(p *AreaPath, id uint) { p.ProjectID = id })
	err := upsertAll(s.conn(ctx), paths, []string{"project_id", "external_id"},
		[]string{"name", "path", "parent_path", "has_children"})
	if err != nil {
		return fmt.Errorf("upsert area paths: %w", err)
	}
	return nil
}

// ListAreaPaths pages the area paths of a project.
func (s *Store) ListAreaPaths(ctx context.Context, projectID uint, page Page) (*PageResult[AreaPath], error) {
	return listPage[AreaPath](ctx, s.db, page, byProject(projectID))
}

// UpsertIterationPaths upserts iteration paths of a project by node
// identifier.
func (s *Store) UpsertIterationPaths(ctx context.Context, projectID uint, paths []IterationPath) error {
	projectRows(paths, projectID, func(p *IterationPath, id uint) { p.ProjectID = id })
	err := upsertAll(s.conn(ctx), paths, []string{"project_id", "external_id"},
		[]string{"name", "path", "parent_path", "has_children", "start_date", "finish_date"})
	if err != nil {
		return fmt.Errorf("upsert iteration paths: %w", err)
	}
	return nil
}

// ListIterationPaths pages the iteration paths of a project.
func (s *Store) ListIterationPaths(ctx context.Context, projectID uint, page Page) (*PageResult[IterationPath], error) {
	return listPage[IterationPath](ctx, s.db, page, byProject(projectID))
}

// UpsertCustomFields upserts custom fields of a project by reference name.
func (s *Store) UpsertCustomFields(ctx context.Context, projectID uint, fields []CustomField) error {
	projectRows(fields, projectID, func(f *CustomField, id uint) {
		f.ProjectID = id
		if f.ExternalID == "" {
			f.ExternalID = f.ReferenceName
		}
	})
	err := upsertAll(s.conn(ctx), fields, []string{"project_id", "external_id"},
		[]string{"name", "reference_name", "type", "usage", "read_only"})
	if err != nil {
		return fmt.Errorf("upsert custom fields: %w", err)
	}
	return nil
}

// ListCustomFields pages the custom fields of a project.
func (s *Store) ListCustomFields(ctx context.Context, projectID uint, page Page) (*PageResult[CustomField], error) {
	return listPage[CustomField](ctx, s.db, page, byProject(projectID))
}

// UpsertUsers upserts project members by identity id.
func (s *Store) UpsertUsers(ctx context.Context, projectID uint, users []ProjectUser) error {
	projectRows(users, projectID, func(u *ProjectUser, id uint) { u.ProjectID = id })
	err := upsertAll(s.conn(ctx), users, []string{"project_id", "external_id"},
		[]string{"display_name", "unique_name", "email", "work_item_count"})
	if err != nil {
		return fmt.Errorf("upsert users: %w", err)
	}
	return nil
}

// ListUsers pages the members of a project.
func (s *Store) ListUsers(ctx context.Context, projectID uint, page Page) (*PageResult[ProjectUser], error) {
	return listPage[ProjectUser](ctx, s.db, page, byProject(projectID))
}

// UpsertBoard inserts or refreshes a board and loads it back into b.
func (s *Store) UpsertBoard(ctx context.Context, b *Board) error {
	db := s.conn(ctx)
	if err := db.Clauses(onConflict([]string{"project_id", "external_id"}, []string{"name", "team"})).Create(b).Error; err != nil {
		return fmt.Errorf("upsert board %s: %w", b.ExternalID, err)
	}
	projectID, externalID := b.ProjectID, b.ExternalID
	*b = Board{}
	if err := db.Where("project_id = ? AND external_id = ?", projectID, externalID).Take(b).Error; err != nil {
		return fmt.Errorf("reload board %s: %w", externalID, err)
	}
	return nil
}

// UpsertBoardColumns upserts the columns of one board.
func (s *Store) UpsertBoardColumns(ctx context.Context, boardID uint, cols []BoardColumn) error {
	for i := range cols {
		cols[i].BoardID = boardID
	}
	err := upsertAll(s.conn(ctx), cols, []string{"board_id", "external_id"},
		[]string{"name", "column_type", "item_limit"})
	if err != nil {
		return fmt.Errorf("upsert board columns: %w", err)
	}
	return nil
}

// BoardDetail is a board with its columns.
type BoardDetail struct {
	Board
	Columns []BoardColumn `json:"columns"`
}

// ListBoards pages the boards of a project with their columns.
func (s *Store) ListBoards(ctx context.Context, projectID uint, page Page) (*PageResult[BoardDetail], error) {
	boards, err := listPage[Board](ctx, s.db, page, byProject(projectID))
	if err != nil {
		return nil, err
	}
	out := &PageResult[BoardDetail]{
		Items:         make([]BoardDetail, 0, len(boards.Items)),
		NextPageToken: boards.NextPageToken,
		TotalSize:     boards.TotalSize,
	}
	for _, b := range boards.Items {
		cols := []BoardColumn{}
		if err := s.conn(ctx).Where("board_id = ?", b.ID).Order("id ASC").Find(&cols).Error; err != nil {
			return nil, fmt.Errorf("load board columns: %w", err)
		}
		out.Items = append(out.Items, BoardDetail{Board: b, Columns: cols})
	}
	return out, nil
}

// UpsertWikiPages upserts wiki pages of a project.
func (s *Store) UpsertWikiPages(ctx context.Context, projectID uint, pages []WikiPage) error {
	projectRows(pages, projectID, func(p *WikiPage, id uint) { p.ProjectID = id })
	err := upsertAll(s.conn(ctx), pages, []string{"project_id", "external_id"},
		[]string{"wiki_id", "wiki_name", "path", "git_item_path", "page_order", "is_parent", "content"})
	if err != nil {
		return fmt.Errorf("upsert wiki pages: %w", err)
	}
	return nil
}

// ListWikiPages pages the wiki pages of a project. Page content is left out
// of listings.
func (s *Store) ListWikiPages(ctx context.Context, projectID uint, page Page) (*PageResult[WikiPage], error) {
	res, err := listPage[WikiPage](ctx, s.db, page, byProject(projectID))
	if err != nil {
		return nil, err
	}
	for i := range res.Items {
		res.Items[i].Content = ""
	}
	return res, nil
}

// UpsertQueries upserts saved queries of a project.
func (s *Store) UpsertQueries(ctx context.Context, projectID uint, queries []Query) error {
	projectRows(queries, projectID, func(q *Query, id uint) { q.ProjectID = id })
	err := upsertAll(s.conn(ctx), queries, []string{"project_id", "external_id"},
		[]string{"name", "path", "query_type", "wiql"})
	if err != nil {
		return fmt.Errorf("upsert queries: %w", err)
	}
	return nil
}

// ListQueries pages the saved queries of a project.
func (s *Store) ListQueries(ctx context.Context, projectID uint, page Page) (*PageResult[Query], error) {
	return listPage[Query](ctx, s.db, page, byProject(projectID))
}
