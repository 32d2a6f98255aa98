package ado

import (
	"context"
	"net/url"
	"strconv"
)

func repoPath(project, repoID string, parts ...string) string {
	return projectPath(project, append([]string{"git", "repositories", url.PathEscape(repoID)}, parts...)...)
}

// ListRepositories returns the Git repositories of a project.
func (c *Client) ListRepositories(ctx context.Context, project string) ([]Repository, error) {
	return listAll[Repository](ctx, c, projectPath(project, "git", "repositories"), nil)
}

// ListBranches returns the refs/heads refs of a repository.
func (c *Client) ListBranches(ctx context.Context, project, repoID string) ([]Branch, error) {
	return listAll[Branch](ctx, c, repoPath(project, repoID, "refs"), url.Values{"filter": {"heads/"}})
}

// ListCommits returns the newest top commits of a repository.
func (c *Client) ListCommits(ctx context.Context, project, repoID string, top int) ([]Commit, error) {
	if top <= 0 {
		top = 100
	}
	var resp listResponse[Commit]
	q := url.Values{"searchCriteria.$top": {strconv.Itoa(top)}}
	if _, err := c.get(ctx, repoPath(project, repoID, "commits"), q, &resp); err != nil {
		return nil, err
	}
	if resp.Value == nil {
		return []Commit{}, nil
	}
	return resp.Value, nil
}

// ListPullRequests returns the pull requests of a repository in the given
// status (active, completed, abandoned or all).
func (c *Client) ListPullRequests(ctx context.Context, project, repoID, status string) ([]PullRequest, error) {
	if status == "" {
		status = "all"
	}
	return listSkip[PullRequest](ctx, c, repoPath(project, repoID, "pullrequests"),
		url.Values{"searchCriteria.status": {status}})
}
