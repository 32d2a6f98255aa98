package ado

import (
	"context"
	"net/url"
)

type wikiPageNode struct {
	ID          int            `json:"id"`
	Path        string         `json:"path"`
	GitItemPath string         `json:"gitItemPath"`
	Order       int            `json:"order"`
	IsParent    bool           `json:"isParentPage"`
	Content     string         `json:"content"`
	SubPages    []wikiPageNode `json:"subPages"`
}

// ListWikis returns the wikis of a project.
func (c *Client) ListWikis(ctx context.Context, project string) ([]Wiki, error) {
	return listAll[Wiki](ctx, c, projectPath(project, "wiki", "wikis"), nil)
}

// ListWikiPages returns every page of a wiki, flattened in pre-order, with
// content.
func (c *Client) ListWikiPages(ctx context.Context, project, wikiID string) ([]WikiPage, error) {
	var root wikiPageNode
	q := url.Values{
		"path":           {"/"},
		"recursionLevel": {"full"},
		"includeContent": {"true"},
	}
	if _, err := c.get(ctx, projectPath(project, "wiki", "wikis", url.PathEscape(wikiID), "pages"), q, &root); err != nil {
		return nil, err
	}

	out := []WikiPage{}
	var walk func(n wikiPageNode)
	walk = func(n wikiPageNode) {
		// The synthetic root "/" is not a page.
		if n.Path != "/" {
			out = append(out, WikiPage{
				ID:          n.ID,
				Path:        n.Path,
				GitItemPath: n.GitItemPath,
				Order:       n.Order,
				Content:     n.Content,
				IsParent:    n.IsParent || len(n.SubPages) > 0,
			})
		}
		for _, sub := range n.SubPages {
			walk(sub)
		}
	}
	walk(root)
	return out, nil
}
