package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// UpsertRepository inserts or refreshes a repository by (project_id,
// external_id) and loads the stored row back into r.
func (s *Store) UpsertRepository(ctx context.Context, r *Repository) error {
	db := s.conn(ctx)
	updates := []string{"name", "url", "remote_url", "default_branch", "size", "updated_at"}
	if err := db.Clauses(onConflict([]string{"project_id", "external_id"}, updates)).Create(r).Error; err != nil {
		return fmt.Errorf("upsert repository %s: %w", r.ExternalID, err)
	}
	projectID, externalID := r.ProjectID, r.ExternalID
	*r = Repository{}
	if err := db.Where("project_id = ? AND external_id = ?", projectID, externalID).Take(r).Error; err != nil {
		return fmt.Errorf("reload repository %s: %w", externalID, err)
	}
	return nil
}

// UpsertBranches upserts branches of one repository by name.
func (s *Store) UpsertBranches(ctx context.Context, repositoryID uint, branches []Branch) error {
	for i := range branches {
		branches[i].RepositoryID = repositoryID
	}
	err := upsertAll(s.conn(ctx), branches, []string{"repository_id", "name"},
		[]string{"object_id", "creator", "is_default"})
	if err != nil {
		return fmt.Errorf("upsert branches: %w", err)
	}
	return nil
}

// UpsertCommits upserts commits of one repository by commit id.
func (s *Store) UpsertCommits(ctx context.Context, repositoryID uint, commits []Commit) error {
	for i := range commits {
		commits[i].RepositoryID = repositoryID
	}
	err := upsertAll(s.conn(ctx), commits, []string{"repository_id", "commit_id"},
		[]string{"author", "author_email", "committer", "comment", "commit_date"})
	if err != nil {
		return fmt.Errorf("upsert commits: %w", err)
	}
	return nil
}

// UpsertPullRequests upserts pull requests of one repository by external id.
func (s *Store) UpsertPullRequests(ctx context.Context, repositoryID uint, prs []PullRequest) error {
	for i := range prs {
		prs[i].RepositoryID = repositoryID
	}
	err := upsertAll(s.conn(ctx), prs, []string{"repository_id", "external_id"},
		[]string{"title", "description", "created_by", "created_date", "closed_date", "status", "source_branch", "target_branch"})
	if err != nil {
		return fmt.Errorf("upsert pull requests: %w", err)
	}
	return nil
}

// ListRepositories pages the repositories of a project.
func (s *Store) ListRepositories(ctx context.Context, projectID uint, page Page) (*PageResult[Repository], error) {
	return listPage[Repository](ctx, s.db, page, byProject(projectID))
}

// RepositoryDetail is a repository with its branches, recent commits and
// pull requests.
type RepositoryDetail struct {
	Repository
	Branches     []Branch      `json:"branches"`
	Commits      []Commit      `json:"commits"`
	PullRequests []PullRequest `json:"pullRequests"`
}

// GetRepositoryDetail loads a repository and up to commitLimit of its
// newest commits.
func (s *Store) GetRepositoryDetail(ctx context.Context, id uint, commitLimit int) (*RepositoryDetail, error) {
	if commitLimit <= 0 {
		commitLimit = 50
	}
	db := s.conn(ctx)
	var d RepositoryDetail
	if err := db.Take(&d.Repository, id).Error; err != nil {
		return nil, notFound(err, "repository", id)
	}
	d.Branches = []Branch{}
	d.Commits = []Commit{}
	d.PullRequests = []PullRequest{}

	byRepo := func(q *gorm.DB) *gorm.DB { return q.Where("repository_id = ?", id) }
	if err := byRepo(db).Order("name ASC").Find(&d.Branches).Error; err != nil {
		return nil, fmt.Errorf("load branches: %w", err)
	}
	if err := byRepo(db).Order("commit_date DESC").Limit(commitLimit).Find(&d.Commits).Error; err != nil {
		return nil, fmt.Errorf("load commits: %w", err)
	}
	if err := byRepo(db).Order("external_id DESC").Find(&d.PullRequests).Error; err != nil {
		return nil, fmt.Errorf("load pull requests: %w", err)
	}
	return &d, nil
}
