package ado

import (
	"context"
	"net/url"
)

// ListProjects returns every project of the organization.
func (c *Client) ListProjects(ctx context.Context) ([]ProjectSummary, error) {
	return listAll[ProjectSummary](ctx, c, "/_apis/projects", url.Values{"$top": {"500"}})
}

// GetProjectDetails returns a project including its capabilities.
func (c *Client) GetProjectDetails(ctx context.Context, id string) (*ProjectDetail, error) {
	var p ProjectDetail
	q := url.Values{"includeCapabilities": {"true"}}
	if _, err := c.get(ctx, "/_apis/projects/"+url.PathEscape(id), q, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
