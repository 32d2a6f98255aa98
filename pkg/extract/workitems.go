package extract

import (
	"context"
	"fmt"

	"github.com/adomirror/adomirror/pkg/ado"
	"github.com/adomirror/adomirror/pkg/store"
)

func extractWorkItems(ctx context.Context, r *run) error {
	project := r.project.Name
	ids, err := r.src.ListWorkItemIDs(ctx, project)
	if err != nil {
		return fmt.Errorf("list work item ids: %w", err)
	}
	ids = dedupe(ids)

	err = r.batched(ctx, len(ids), r.e.cfg.WorkItemBatchSize, "work items", func(lo, hi int) {
		records, err := r.src.GetWorkItemBatch(ctx, project, ids[lo:hi])
		if err != nil {
			r.warn(fmt.Sprintf("Failed to fetch work items %d-%d", lo+1, hi), err,
				map[string]any{"ids": ids[lo:hi]})
			return
		}
		for _, rec := range records {
			if ctx.Err() != nil {
				return
			}
			r.saveWorkItem(ctx, rec)
		}
	})
	if err != nil {
		return err
	}
	r.counts["work_item_count"] = len(ids)
	return nil
}

// saveWorkItem stores one work item and its child collections. Comments and
// revisions that cannot be fetched keep their stored rows.
func (r *run) saveWorkItem(ctx context.Context, rec ado.WorkItemRecord) {
	project := r.project.Name
	description := r.richText.Sanitize(rec.String("System.Description"))
	wi := &store.WorkItem{
		ProjectID:           r.project.ID,
		ExternalID:          rec.ID,
		Revision:            rec.Rev,
		Title:               rec.String("System.Title"),
		WorkItemType:        rec.String("System.WorkItemType"),
		State:               rec.String("System.State"),
		AssignedTo:          rec.String("System.AssignedTo"),
		CreatedDate:         ado.ParseTime(rec.String("System.CreatedDate")),
		ChangedDate:         ado.ParseTime(rec.String("System.ChangedDate")),
		AreaPath:            rec.String("System.AreaPath"),
		IterationPath:       rec.String("System.IterationPath"),
		Priority:            rec.Int("Microsoft.VSTS.Common.Priority"),
		Tags:                rec.String("System.Tags"),
		Description:         description,
		DescriptionMarkdown: r.richText.Markdown(description),
		Fields:              jsonColumn(rec.Fields),
	}

	children := store.WorkItemChildren{
		Attachments: []store.WorkItemAttachment{},
		Relations:   []store.WorkItemRelation{},
	}
	for _, a := range ado.AttachmentsFromRelations(rec.Relations) {
		children.Attachments = append(children.Attachments, store.WorkItemAttachment{
			ExternalID:  a.ID,
			Name:        a.Name,
			URL:         a.URL,
			Size:        a.Size,
			CreatedDate: ado.ParseTime(a.CreatedDate),
		})
	}
	for _, rel := range rec.Relations {
		if rel.Rel == ado.AttachedFileRel {
			continue
		}
		target, _ := rel.TargetWorkItemID()
		children.Relations = append(children.Relations, store.WorkItemRelation{
			TargetExternalID: target,
			RelationType:     rel.Rel,
			URL:              rel.URL,
		})
	}

	comments, err := r.src.ListWorkItemComments(ctx, project, rec.ID)
	if err != nil {
		r.warn(fmt.Sprintf("Failed to fetch comments of work item %d", rec.ID), err, map[string]any{"workItemId": rec.ID})
	} else {
		children.Comments = make([]store.WorkItemComment, 0, len(comments))
		for _, c := range comments {
			children.Comments = append(children.Comments, store.WorkItemComment{
				ExternalID:  c.ID,
				Text:        r.richText.Sanitize(c.Text),
				CreatedBy:   c.CreatedBy.DisplayName,
				CreatedDate: ado.ParseTime(c.CreatedDate),
			})
		}
	}

	revisions, err := r.src.ListWorkItemRevisions(ctx, project, rec.ID)
	if err != nil {
		r.warn(fmt.Sprintf("Failed to fetch revisions of work item %d", rec.ID), err, map[string]any{"workItemId": rec.ID})
	} else {
		children.Revisions = make([]store.WorkItemRevision, 0, len(revisions))
		for _, rev := range revisions {
			children.Revisions = append(children.Revisions, store.WorkItemRevision{
				RevisionNumber: rev.Rev,
				ChangedBy:      rev.ChangedBy(),
				ChangedDate:    ado.ParseTime(rev.ChangedDate()),
				Fields:         jsonColumn(rev.Fields),
			})
		}
	}

	if ctx.Err() != nil {
		return
	}
	if err := r.store.SaveWorkItem(ctx, wi, children); err != nil {
		r.warn(fmt.Sprintf("Failed to save work item %d", rec.ID), err, map[string]any{"workItemId": rec.ID})
	}
}
