package extract

import (
	"context"
	"fmt"

	"github.com/adomirror/adomirror/pkg/ado"
	"github.com/adomirror/adomirror/pkg/store"
)

// extractRepositories stores one repository per batch together with its
// branches, latest commits and pull requests.
func extractRepositories(ctx context.Context, r *run) error {
	project := r.project.Name
	repos, err := r.src.ListRepositories(ctx, project)
	if err != nil {
		return fmt.Errorf("list repositories: %w", err)
	}

	err = r.batched(ctx, len(repos), 1, "repositories", func(lo, hi int) {
		for _, repo := range repos[lo:hi] {
			r.saveRepository(ctx, repo)
		}
	})
	if err != nil {
		return err
	}
	r.counts["repo_count"] = len(repos)
	return nil
}

func (r *run) saveRepository(ctx context.Context, repo ado.Repository) {
	project := r.project.Name
	row := &store.Repository{
		ProjectID:     r.project.ID,
		ExternalID:    repo.ID,
		Name:          repo.Name,
		URL:           repo.WebURL,
		RemoteURL:     repo.RemoteURL,
		DefaultBranch: repo.DefaultBranch,
		Size:          repo.Size,
	}
	if row.URL == "" {
		row.URL = repo.URL
	}
	if err := r.store.UpsertRepository(ctx, row); err != nil {
		r.warn(fmt.Sprintf("Failed to save repository %s", repo.Name), err, map[string]any{"repository": repo.ID})
		return
	}
	details := map[string]any{"repository": repo.Name}

	if branches, err := r.src.ListBranches(ctx, project, repo.ID); err != nil {
		r.warn(fmt.Sprintf("Failed to fetch branches of %s", repo.Name), err, details)
	} else {
		rows := make([]store.Branch, 0, len(branches))
		for _, b := range branches {
			rows = append(rows, store.Branch{
				Name:      b.ShortName(),
				ObjectID:  b.ObjectID,
				Creator:   b.Creator.DisplayName,
				IsDefault: b.Name == repo.DefaultBranch,
			})
		}
		if err := r.store.UpsertBranches(ctx, row.ID, dedupeBy(rows, func(b store.Branch) string { return b.Name })); err != nil {
			r.warn(fmt.Sprintf("Failed to save branches of %s", repo.Name), err, details)
		}
	}

	if commits, err := r.src.ListCommits(ctx, project, repo.ID, r.e.cfg.CommitTop); err != nil {
		r.warn(fmt.Sprintf("Failed to fetch commits of %s", repo.Name), err, details)
	} else {
		rows := make([]store.Commit, 0, len(commits))
		for _, c := range commits {
			rows = append(rows, store.Commit{
				CommitID:    c.CommitID,
				Author:      c.Author.Name,
				AuthorEmail: c.Author.Email,
				Committer:   c.Committer.Name,
				Comment:     c.Comment,
				CommitDate:  ado.ParseTime(c.Author.Date),
			})
		}
		if err := r.store.UpsertCommits(ctx, row.ID, dedupeBy(rows, func(c store.Commit) string { return c.CommitID })); err != nil {
			r.warn(fmt.Sprintf("Failed to save commits of %s", repo.Name), err, details)
		}
	}

	if prs, err := r.src.ListPullRequests(ctx, project, repo.ID, "all"); err != nil {
		r.warn(fmt.Sprintf("Failed to fetch pull requests of %s", repo.Name), err, details)
	} else {
		rows := make([]store.PullRequest, 0, len(prs))
		for _, pr := range prs {
			rows = append(rows, store.PullRequest{
				ExternalID:   pr.PullRequestID,
				Title:        pr.Title,
				Description:  pr.Description,
				CreatedBy:    pr.CreatedBy.DisplayName,
				CreatedDate:  ado.ParseTime(pr.CreationDate),
				ClosedDate:   ado.ParseTime(pr.ClosedDate),
				Status:       pr.Status,
				SourceBranch: ado.Branch{Name: pr.SourceRefName}.ShortName(),
				TargetBranch: ado.Branch{Name: pr.TargetRefName}.ShortName(),
			})
		}
		if err := r.store.UpsertPullRequests(ctx, row.ID, dedupeBy(rows, func(p store.PullRequest) int { return p.ExternalID })); err != nil {
			r.warn(fmt.Sprintf("Failed to save pull requests of %s", repo.Name), err, details)
		}
	}
}
