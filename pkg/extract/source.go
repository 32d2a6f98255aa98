package extract

import (
	"context"
	"log/slog"
	"strings"

	"github.com/adomirror/adomirror/pkg/ado"
	"github.com/adomirror/adomirror/pkg/config"
	"github.com/adomirror/adomirror/pkg/store"
)

// Source is the subset of the Azure DevOps connector the strategies read
// from. *ado.Client implements it.
type Source interface {
	ListWorkItemIDs(ctx context.Context, project string) ([]int, error)
	GetWorkItemBatch(ctx context.Context, project string, ids []int) ([]ado.WorkItemRecord, error)
	ListWorkItemComments(ctx context.Context, project string, id int) ([]ado.Comment, error)
	ListWorkItemRevisions(ctx context.Context, project string, id int) ([]ado.Revision, error)

	ListRepositories(ctx context.Context, project string) ([]ado.Repository, error)
	ListBranches(ctx context.Context, project, repoID string) ([]ado.Branch, error)
	ListCommits(ctx context.Context, project, repoID string, top int) ([]ado.Commit, error)
	ListPullRequests(ctx context.Context, project, repoID, status string) ([]ado.PullRequest, error)

	ListPipelines(ctx context.Context, project string) ([]ado.Pipeline, error)
	ListPipelineRuns(ctx context.Context, project string, pipelineID int) ([]ado.PipelineRun, error)

	ListTestPlans(ctx context.Context, project string) ([]ado.TestPlan, error)
	ListTestSuites(ctx context.Context, project string, planID int) ([]ado.TestSuite, error)
	ListTestCases(ctx context.Context, project string, planID, suiteID int) ([]ado.TestCase, error)

	ListAreaPaths(ctx context.Context, project string) ([]ado.ClassificationNode, error)
	ListIterationPaths(ctx context.Context, project string) ([]ado.ClassificationNode, error)
	ListFields(ctx context.Context, project string) ([]ado.Field, error)

	ListTeams(ctx context.Context, project string) ([]ado.Team, error)
	ListTeamMembers(ctx context.Context, project, teamID string) ([]ado.TeamMember, error)
	ListBoards(ctx context.Context, project, teamID string) ([]ado.Board, error)
	ListBoardColumns(ctx context.Context, project, teamID, boardID string) ([]ado.BoardColumn, error)

	ListWikis(ctx context.Context, project string) ([]ado.Wiki, error)
	ListWikiPages(ctx context.Context, project, wikiID string) ([]ado.WikiPage, error)
	ListQueries(ctx context.Context, project string) ([]ado.Query, error)

	Close(ctx context.Context) error
}

var _ Source = (*ado.Client)(nil)

// SourceFactory builds a Source for a connection. token is the unsealed
// access token.
type SourceFactory func(conn *store.Connection, token string) (Source, error)

// ADOSourceFactory returns a SourceFactory creating real connector clients.
func ADOSourceFactory(cfg config.ADOConfig, logger *slog.Logger) SourceFactory {
	return func(conn *store.Connection, token string) (Source, error) {
		client, err := NewClient(cfg, conn, token, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// NewClient builds a connector client for conn. The connection base URL
// wins over the configured one.
func NewClient(cfg config.ADOConfig, conn *store.Connection, token string, logger *slog.Logger) (*ado.Client, error) {
	baseURL := cfg.BaseURL
	if conn.BaseURL != "" {
		baseURL = trimOrganization(conn.BaseURL, conn.Organization)
	}
	return ado.New(ado.Config{
		BaseURL:      baseURL,
		Organization: conn.Organization,
		Token:        token,
		APIVersion:   cfg.APIVersion,
		Timeout:      cfg.RequestTimeout,
		Logger:       logger,
	})
}

// trimOrganization turns "https://dev.azure.com/org" back into the host
// part, since the client appends the organization itself.
func trimOrganization(baseURL, org string) string {
	baseURL = strings.TrimRight(baseURL, "/")
	return strings.TrimSuffix(baseURL, "/"+org)
}
