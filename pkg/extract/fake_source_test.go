package extract

import (
	"context"
	"fmt"
	"sync"

	"github.com/adomirror/adomirror/pkg/ado"
	"github.com/adomirror/adomirror/pkg/store"
)

// fakeSource serves canned upstream data. errs maps a method name to the
// error it should return.
type fakeSource struct {
	mu sync.Mutex

	workItemIDs []int
	workItems   map[int]ado.WorkItemRecord
	comments    map[int][]ado.Comment
	revisions   map[int][]ado.Revision

	repos    []ado.Repository
	branches map[string][]ado.Branch
	commits  map[string][]ado.Commit
	prs      map[string][]ado.PullRequest

	pipelines []ado.Pipeline
	runs      map[int][]ado.PipelineRun

	plans  []ado.TestPlan
	suites map[int][]ado.TestSuite
	cases  map[int][]ado.TestCase

	areas      []ado.ClassificationNode
	iterations []ado.ClassificationNode
	fields     []ado.Field
	teams      []ado.Team
	members    map[string][]ado.TeamMember
	boards     map[string][]ado.Board
	columns    map[string][]ado.BoardColumn
	wikis      []ado.Wiki
	wikiPages  map[string][]ado.WikiPage
	queries    []ado.Query

	errs map[string]error
	// onBatch runs at the start of every GetWorkItemBatch call.
	onBatch func(ctx context.Context, ids []int)

	batchCalls int
	closed     bool
}

func (f *fakeSource) err(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errs[method]
}

func (f *fakeSource) ListWorkItemIDs(ctx context.Context, project string) ([]int, error) {
	if err := f.err("ListWorkItemIDs"); err != nil {
		return nil, err
	}
	return append([]int{}, f.workItemIDs...), nil
}

func (f *fakeSource) GetWorkItemBatch(ctx context.Context, project string, ids []int) ([]ado.WorkItemRecord, error) {
	f.mu.Lock()
	f.batchCalls++
	hook := f.onBatch
	f.mu.Unlock()
	if hook != nil {
		hook(ctx, ids)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.err("GetWorkItemBatch"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ado.WorkItemRecord, 0, len(ids))
	for _, id := range ids {
		if rec, ok := f.workItems[id]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeSource) ListWorkItemComments(ctx context.Context, project string, id int) ([]ado.Comment, error) {
	if err := f.err("ListWorkItemComments"); err != nil {
		return nil, err
	}
	return f.comments[id], nil
}

func (f *fakeSource) ListWorkItemRevisions(ctx context.Context, project string, id int) ([]ado.Revision, error) {
	if err := f.err("ListWorkItemRevisions"); err != nil {
		return nil, err
	}
	return f.revisions[id], nil
}

func (f *fakeSource) ListRepositories(ctx context.Context, project string) ([]ado.Repository, error) {
	return f.repos, f.err("ListRepositories")
}

func (f *fakeSource) ListBranches(ctx context.Context, project, repoID string) ([]ado.Branch, error) {
	return f.branches[repoID], f.err("ListBranches")
}

func (f *fakeSource) ListCommits(ctx context.Context, project, repoID string, top int) ([]ado.Commit, error) {
	commits := f.commits[repoID]
	if len(commits) > top {
		commits = commits[:top]
	}
	return commits, f.err("ListCommits")
}

func (f *fakeSource) ListPullRequests(ctx context.Context, project, repoID, status string) ([]ado.PullRequest, error) {
	return f.prs[repoID], f.err("ListPullRequests")
}

func (f *fakeSource) ListPipelines(ctx context.Context, project string) ([]ado.Pipeline, error) {
	return f.pipelines, f.err("ListPipelines")
}

func (f *fakeSource) ListPipelineRuns(ctx context.Context, project string, pipelineID int) ([]ado.PipelineRun, error) {
	return f.runs[pipelineID], f.err("ListPipelineRuns")
}

func (f *fakeSource) ListTestPlans(ctx context.Context, project string) ([]ado.TestPlan, error) {
	return f.plans, f.err("ListTestPlans")
}

func (f *fakeSource) ListTestSuites(ctx context.Context, project string, planID int) ([]ado.TestSuite, error) {
	return f.suites[planID], f.err("ListTestSuites")
}

func (f *fakeSource) ListTestCases(ctx context.Context, project string, planID, suiteID int) ([]ado.TestCase, error) {
	return f.cases[suiteID], f.err("ListTestCases")
}

func (f *fakeSource) ListAreaPaths(ctx context.Context, project string) ([]ado.ClassificationNode, error) {
	return f.areas, f.err("ListAreaPaths")
}

func (f *fakeSource) ListIterationPaths(ctx context.Context, project string) ([]ado.ClassificationNode, error) {
	return f.iterations, f.err("ListIterationPaths")
}

func (f *fakeSource) ListFields(ctx context.Context, project string) ([]ado.Field, error) {
	return f.fields, f.err("ListFields")
}

func (f *fakeSource) ListTeams(ctx context.Context, project string) ([]ado.Team, error) {
	return f.teams, f.err("ListTeams")
}

func (f *fakeSource) ListTeamMembers(ctx context.Context, project, teamID string) ([]ado.TeamMember, error) {
	return f.members[teamID], f.err("ListTeamMembers")
}

func (f *fakeSource) ListBoards(ctx context.Context, project, teamID string) ([]ado.Board, error) {
	return f.boards[teamID], f.err("ListBoards")
}

func (f *fakeSource) ListBoardColumns(ctx context.Context, project, teamID, boardID string) ([]ado.BoardColumn, error) {
	return f.columns[boardID], f.err("ListBoardColumns")
}

func (f *fakeSource) ListWikis(ctx context.Context, project string) ([]ado.Wiki, error) {
	return f.wikis, f.err("ListWikis")
}

func (f *fakeSource) ListWikiPages(ctx context.Context, project, wikiID string) ([]ado.WikiPage, error) {
	return f.wikiPages[wikiID], f.err("ListWikiPages")
}

func (f *fakeSource) ListQueries(ctx context.Context, project string) ([]ado.Query, error) {
	return f.queries, f.err("ListQueries")
}

func (f *fakeSource) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSource) factory() SourceFactory {
	return func(conn *store.Connection, token string) (Source, error) {
		if token == "" {
			return nil, fmt.Errorf("empty token")
		}
		return f, nil
	}
}

// workItemRecords builds n work items with ids 1..n.
func workItemRecords(n int) ([]int, map[int]ado.WorkItemRecord) {
	ids := make([]int, 0, n)
	recs := make(map[int]ado.WorkItemRecord, n)
	for i := 1; i <= n; i++ {
		ids = append(ids, i)
		recs[i] = ado.WorkItemRecord{
			ID:  i,
			Rev: 1,
			Fields: map[string]any{
				"System.Title":        fmt.Sprintf("Item %d", i),
				"System.WorkItemType": "Task",
				"System.State":        "New",
				"System.AssignedTo":   map[string]any{"displayName": "Ada"},
				"System.CreatedDate":  "2024-03-01T10:00:00Z",
			},
		}
	}
	return ids, recs
}
