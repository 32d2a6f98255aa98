package ado

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// MaxWorkItemBatch is the upstream limit for one workitemsbatch call.
const MaxWorkItemBatch = 200

type wiqlRequest struct {
	Query string `json:"query"`
}

type wiqlResponse struct {
	WorkItems []struct {
		ID int `json:"id"`
	} `json:"workItems"`
}

// ListWorkItemIDs runs a WIQL query selecting every work item of the
// project, newest first.
func (c *Client) ListWorkItemIDs(ctx context.Context, project string) ([]int, error) {
	query := fmt.Sprintf(
		"SELECT [System.Id] FROM WorkItems WHERE [System.TeamProject] = '%s' ORDER BY [System.Id] DESC",
		strings.ReplaceAll(project, "'", "''"),
	)
	var resp wiqlResponse
	if err := c.post(ctx, projectPath(project, "wit", "wiql"), nil, wiqlRequest{Query: query}, &resp); err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(resp.WorkItems))
	for _, wi := range resp.WorkItems {
		ids = append(ids, wi.ID)
	}
	return ids, nil
}

type workItemBatchRequest struct {
	IDs    []int  `json:"ids"`
	Expand string `json:"$expand,omitempty"`
}

// GetWorkItemBatch fetches up to MaxWorkItemBatch work items with their
// relations.
func (c *Client) GetWorkItemBatch(ctx context.Context, project string, ids []int) ([]WorkItemRecord, error) {
	if len(ids) == 0 {
		return []WorkItemRecord{}, nil
	}
	if len(ids) > MaxWorkItemBatch {
		return nil, fmt.Errorf("ado: work item batch of %d exceeds limit %d", len(ids), MaxWorkItemBatch)
	}
	var resp listResponse[WorkItemRecord]
	body := workItemBatchRequest{IDs: ids, Expand: "relations"}
	if err := c.post(ctx, projectPath(project, "wit", "workitemsbatch"), nil, body, &resp); err != nil {
		return nil, err
	}
	if resp.Value == nil {
		resp.Value = []WorkItemRecord{}
	}
	return resp.Value, nil
}

type commentsResponse struct {
	Comments          []Comment `json:"comments"`
	ContinuationToken string    `json:"continuationToken"`
}

// ListWorkItemComments returns the discussion of one work item.
func (c *Client) ListWorkItemComments(ctx context.Context, project string, id int) ([]Comment, error) {
	path := projectPath(project, "wit", "workItems", strconv.Itoa(id), "comments")
	all := []Comment{}
	token := ""
	for {
		// The comments API is only published as a preview version.
		q := url.Values{"api-version": {c.apiVersion + "-preview.3"}}
		if token != "" {
			q.Set("continuationToken", token)
		}
		var page commentsResponse
		if _, err := c.get(ctx, path, q, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Comments...)
		if page.ContinuationToken == "" {
			return all, nil
		}
		token = page.ContinuationToken
	}
}

// ListWorkItemRevisions returns every revision of one work item.
func (c *Client) ListWorkItemRevisions(ctx context.Context, project string, id int) ([]Revision, error) {
	return listSkip[Revision](ctx, c, projectPath(project, "wit", "workItems", strconv.Itoa(id), "revisions"), nil)
}
