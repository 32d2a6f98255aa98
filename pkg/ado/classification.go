package ado

import (
	"context"
	"net/url"
)

// PathSeparator joins classification node names into a path.
const PathSeparator = `\`

type classificationNode struct {
	ID          int                  `json:"id"`
	Identifier  string               `json:"identifier"`
	Name        string               `json:"name"`
	HasChildren bool                 `json:"hasChildren"`
	Children    []classificationNode `json:"children"`
	Attributes  struct {
		StartDate  string `json:"startDate"`
		FinishDate string `json:"finishDate"`
	} `json:"attributes"`
}

// ListAreaPaths returns the project's area tree flattened in pre-order.
func (c *Client) ListAreaPaths(ctx context.Context, project string) ([]ClassificationNode, error) {
	return c.classification(ctx, project, "Areas")
}

// ListIterationPaths returns the project's iteration tree flattened in
// pre-order.
func (c *Client) ListIterationPaths(ctx context.Context, project string) ([]ClassificationNode, error) {
	return c.classification(ctx, project, "Iterations")
}

func (c *Client) classification(ctx context.Context, project, group string) ([]ClassificationNode, error) {
	var root classificationNode
	q := url.Values{"$depth": {"100"}}
	if _, err := c.get(ctx, projectPath(project, "wit", "classificationnodes", group), q, &root); err != nil {
		return nil, err
	}
	return flattenClassification(root), nil
}

// flattenClassification walks a node tree pre-order. Each path is the
// ancestor names joined with PathSeparator, starting at the root.
func flattenClassification(root classificationNode) []ClassificationNode {
	out := []ClassificationNode{}
	var walk func(n classificationNode, parentPath string)
	walk = func(n classificationNode, parentPath string) {
		path := n.Name
		if parentPath != "" {
			path = parentPath + PathSeparator + n.Name
		}
		out = append(out, ClassificationNode{
			ID:          n.ID,
			Identifier:  n.Identifier,
			Name:        n.Name,
			Path:        path,
			ParentPath:  parentPath,
			HasChildren: n.HasChildren || len(n.Children) > 0,
			StartDate:   n.Attributes.StartDate,
			FinishDate:  n.Attributes.FinishDate,
		})
		for _, child := range n.Children {
			walk(child, path)
		}
	}
	if root.Name != "" {
		walk(root, "")
	}
	return out
}

// ListFields returns the work item field definitions used by a project.
func (c *Client) ListFields(ctx context.Context, project string) ([]Field, error) {
	return listAll[Field](ctx, c, projectPath(project, "wit", "fields"), nil)
}
