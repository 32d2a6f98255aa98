package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

var workItemUpdateColumns = []string{
	"revision", "title", "work_item_type", "state", "assigned_to", "created_date", "changed_date",
	"area_path", "iteration_path", "priority", "tags", "description", "description_markdown",
	"fields", "updated_at",
}

// WorkItemChildren is the complete child set of one work item. A nil
// collection leaves the stored rows of that kind untouched; a non-nil one,
// even empty, replaces them.
type WorkItemChildren struct {
	Comments    []WorkItemComment
	Attachments []WorkItemAttachment
	Revisions   []WorkItemRevision
	Relations   []WorkItemRelation
}

// SaveWorkItem upserts wi by (project_id, external_id) and replaces its
// child collections, all in one transaction. On return wi holds the stored
// row.
func (s *Store) SaveWorkItem(ctx context.Context, wi *WorkItem, children WorkItemChildren) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(onConflict([]string{"project_id", "external_id"}, workItemUpdateColumns)).Create(wi).Error; err != nil {
			return fmt.Errorf("upsert work item %d: %w", wi.ExternalID, err)
		}
		projectID, externalID := wi.ProjectID, wi.ExternalID
		*wi = WorkItem{}
		if err := tx.Where("project_id = ? AND external_id = ?", projectID, externalID).Take(wi).Error; err != nil {
			return fmt.Errorf("reload work item %d: %w", externalID, err)
		}
		return replaceChildren(tx, wi.ID, children)
	})
}

func replaceChildren(tx *gorm.DB, workItemID uint, c WorkItemChildren) error {
	deletes := []struct {
		replace bool
		model   any
		column  string
	}{
		{c.Comments != nil, &WorkItemComment{}, "work_item_id"},
		{c.Attachments != nil, &WorkItemAttachment{}, "work_item_id"},
		{c.Revisions != nil, &WorkItemRevision{}, "work_item_id"},
		{c.Relations != nil, &WorkItemRelation{}, "source_work_item_id"},
	}
	for _, d := range deletes {
		if !d.replace {
			continue
		}
		if err := tx.Where(d.column+" = ?", workItemID).Delete(d.model).Error; err != nil {
			return fmt.Errorf("clear work item children: %w", err)
		}
	}

	for i := range c.Comments {
		c.Comments[i].ID = 0
		c.Comments[i].WorkItemID = workItemID
	}
	for i := range c.Attachments {
		c.Attachments[i].ID = 0
		c.Attachments[i].WorkItemID = workItemID
	}
	for i := range c.Revisions {
		c.Revisions[i].ID = 0
		c.Revisions[i].WorkItemID = workItemID
	}
	for i := range c.Relations {
		c.Relations[i].ID = 0
		c.Relations[i].SourceWorkItemID = workItemID
	}

	if err := createAll(tx, c.Comments); err != nil {
		return fmt.Errorf("insert comments: %w", err)
	}
	if err := createAll(tx, c.Attachments); err != nil {
		return fmt.Errorf("insert attachments: %w", err)
	}
	if err := createAll(tx, c.Revisions); err != nil {
		return fmt.Errorf("insert revisions: %w", err)
	}
	if err := createAll(tx, c.Relations); err != nil {
		return fmt.Errorf("insert relations: %w", err)
	}
	return nil
}

func createAll[T any](tx *gorm.DB, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	return tx.CreateInBatches(rows, 100).Error
}

// ListWorkItems pages the work items of a project.
func (s *Store) ListWorkItems(ctx context.Context, projectID uint, page Page) (*PageResult[WorkItem], error) {
	return listPage[WorkItem](ctx, s.db, page, byProject(projectID))
}

// WorkItemDetail is a work item with its child collections.
type WorkItemDetail struct {
	WorkItem
	Comments    []WorkItemComment    `json:"comments"`
	Attachments []WorkItemAttachment `json:"attachments"`
	Revisions   []WorkItemRevision   `json:"revisions"`
	Relations   []WorkItemRelation   `json:"relations"`
}

// GetWorkItemDetail loads a work item and its children.
func (s *Store) GetWorkItemDetail(ctx context.Context, id uint) (*WorkItemDetail, error) {
	db := s.conn(ctx)
	var d WorkItemDetail
	if err := db.Take(&d.WorkItem, id).Error; err != nil {
		return nil, notFound(err, "work item", id)
	}
	d.Comments = []WorkItemComment{}
	d.Attachments = []WorkItemAttachment{}
	d.Revisions = []WorkItemRevision{}
	d.Relations = []WorkItemRelation{}
	loads := []struct {
		dst    any
		column string
		order  string
	}{
		{&d.Comments, "work_item_id", "id ASC"},
		{&d.Attachments, "work_item_id", "id ASC"},
		{&d.Revisions, "work_item_id", "revision_number ASC"},
		{&d.Relations, "source_work_item_id", "id ASC"},
	}
	for _, l := range loads {
		if err := db.Where(l.column+" = ?", id).Order(l.order).Find(l.dst).Error; err != nil {
			return nil, fmt.Errorf("load work item %d children: %w", id, err)
		}
	}
	return &d, nil
}

// WorkItemCountsByAssignee counts stored work items per assignee display
// name.
func (s *Store) WorkItemCountsByAssignee(ctx context.Context, projectID uint) (map[string]int, error) {
	var rows []struct {
		AssignedTo string
		N          int
	}
	err := s.conn(ctx).Model(&WorkItem{}).
		Select("assigned_to, COUNT(*) AS n").
		Where("project_id = ? AND assigned_to <> ''", projectID).
		Group("assigned_to").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count work items by assignee: %w", err)
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.AssignedTo] = r.N
	}
	return out, nil
}
