package ado

import (
	"context"
	"net/url"
)

type queryNode struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	IsFolder  bool        `json:"isFolder"`
	QueryType string      `json:"queryType"`
	Wiql      string      `json:"wiql"`
	Children  []queryNode `json:"children"`
}

// ListQueries returns the stored queries of a project two folder levels
// deep. Folders are flattened into the Path of the queries they contain.
func (c *Client) ListQueries(ctx context.Context, project string) ([]Query, error) {
	var resp listResponse[queryNode]
	q := url.Values{"$depth": {"2"}, "$expand": {"wiql"}}
	if _, err := c.get(ctx, projectPath(project, "wit", "queries"), q, &resp); err != nil {
		return nil, err
	}
	return flattenQueries(resp.Value, ""), nil
}

func flattenQueries(nodes []queryNode, path string) []Query {
	out := []Query{}
	for _, n := range nodes {
		if n.IsFolder {
			folder := n.Name
			if path != "" {
				folder = path + "/" + n.Name
			}
			out = append(out, flattenQueries(n.Children, folder)...)
			continue
		}
		out = append(out, Query{
			ID:        n.ID,
			Name:      n.Name,
			Path:      path,
			QueryType: n.QueryType,
			Wiql:      n.Wiql,
		})
	}
	return out
}
