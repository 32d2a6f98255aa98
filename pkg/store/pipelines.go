package store

import (
	"context"
	"fmt"
)

// UpsertPipeline inserts or refreshes a pipeline and loads it back into p.
func (s *Store) UpsertPipeline(ctx context.Context, p *Pipeline) error {
	db := s.conn(ctx)
	updates := []string{"name", "folder", "configuration_type", "yaml_path", "revision", "updated_at"}
	if err := db.Clauses(onConflict([]string{"project_id", "external_id"}, updates)).Create(p).Error; err != nil {
		return fmt.Errorf("upsert pipeline %d: %w", p.ExternalID, err)
	}
	projectID, externalID := p.ProjectID, p.ExternalID
	*p = Pipeline{}
	if err := db.Where("project_id = ? AND external_id = ?", projectID, externalID).Take(p).Error; err != nil {
		return fmt.Errorf("reload pipeline %d: %w", externalID, err)
	}
	return nil
}

// UpsertPipelineRuns upserts the runs of one pipeline.
func (s *Store) UpsertPipelineRuns(ctx context.Context, pipelineID uint, runs []PipelineRun) error {
	for i := range runs {
		runs[i].PipelineID = pipelineID
	}
	err := upsertAll(s.conn(ctx), runs, []string{"pipeline_id", "external_id"},
		[]string{"name", "status", "result", "created_date", "finished_date"})
	if err != nil {
		return fmt.Errorf("upsert pipeline runs: %w", err)
	}
	return nil
}

// ListPipelines pages the pipelines of a project.
func (s *Store) ListPipelines(ctx context.Context, projectID uint, page Page) (*PageResult[Pipeline], error) {
	return listPage[Pipeline](ctx, s.db, page, byProject(projectID))
}

// UpsertTestPlan inserts or refreshes a test plan and loads it back into p.
func (s *Store) UpsertTestPlan(ctx context.Context, p *TestPlan) error {
	db := s.conn(ctx)
	updates := []string{"name", "description", "area_path", "iteration", "state"}
	if err := db.Clauses(onConflict([]string{"project_id", "external_id"}, updates)).Create(p).Error; err != nil {
		return fmt.Errorf("upsert test plan %d: %w", p.ExternalID, err)
	}
	projectID, externalID := p.ProjectID, p.ExternalID
	*p = TestPlan{}
	if err := db.Where("project_id = ? AND external_id = ?", projectID, externalID).Take(p).Error; err != nil {
		return fmt.Errorf("reload test plan %d: %w", externalID, err)
	}
	return nil
}

// UpsertTestSuite inserts or refreshes a suite and loads it back into ts.
func (s *Store) UpsertTestSuite(ctx context.Context, ts *TestSuite) error {
	db := s.conn(ctx)
	if err := db.Clauses(onConflict([]string{"test_plan_id", "external_id"}, []string{"name", "suite_type"})).Create(ts).Error; err != nil {
		return fmt.Errorf("upsert test suite %d: %w", ts.ExternalID, err)
	}
	planID, externalID := ts.TestPlanID, ts.ExternalID
	*ts = TestSuite{}
	if err := db.Where("test_plan_id = ? AND external_id = ?", planID, externalID).Take(ts).Error; err != nil {
		return fmt.Errorf("reload test suite %d: %w", externalID, err)
	}
	return nil
}

// UpsertTestCases upserts the test cases of one suite.
func (s *Store) UpsertTestCases(ctx context.Context, suiteID uint, cases []TestCase) error {
	for i := range cases {
		cases[i].TestSuiteID = suiteID
	}
	err := upsertAll(s.conn(ctx), cases, []string{"test_suite_id", "external_id"}, []string{"title", "state", "priority"})
	if err != nil {
		return fmt.Errorf("upsert test cases: %w", err)
	}
	return nil
}

// TestPlanDetail is a test plan with its suites and their cases.
type TestPlanDetail struct {
	TestPlan
	Suites []TestSuiteDetail `json:"suites"`
}

// TestSuiteDetail is a suite with its cases.
type TestSuiteDetail struct {
	TestSuite
	TestCases []TestCase `json:"testCases"`
}

// ListTestPlans pages the test plans of a project, each with its suites and
// test cases.
func (s *Store) ListTestPlans(ctx context.Context, projectID uint, page Page) (*PageResult[TestPlanDetail], error) {
	plans, err := listPage[TestPlan](ctx, s.db, page, byProject(projectID))
	if err != nil {
		return nil, err
	}
	db := s.conn(ctx)
	out := &PageResult[TestPlanDetail]{
		Items:         make([]TestPlanDetail, 0, len(plans.Items)),
		NextPageToken: plans.NextPageToken,
		TotalSize:     plans.TotalSize,
	}
	for _, plan := range plans.Items {
		var suites []TestSuite
		if err := db.Where("test_plan_id = ?", plan.ID).Order("id ASC").Find(&suites).Error; err != nil {
			return nil, fmt.Errorf("load suites: %w", err)
		}
		d := TestPlanDetail{TestPlan: plan, Suites: make([]TestSuiteDetail, 0, len(suites))}
		for _, suite := range suites {
			cases := []TestCase{}
			if err := db.Where("test_suite_id = ?", suite.ID).Order("id ASC").Find(&cases).Error; err != nil {
				return nil, fmt.Errorf("load test cases: %w", err)
			}
			d.Suites = append(d.Suites, TestSuiteDetail{TestSuite: suite, TestCases: cases})
		}
		out.Items = append(out.Items, d)
	}
	return out, nil
}

// CountTestCases counts the stored test cases of a project.
func (s *Store) CountTestCases(ctx context.Context, projectID uint) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&TestCase{}).
		Where("test_suite_id IN (?)", s.conn(ctx).Model(&TestSuite{}).Select("id").
			Where("test_plan_id IN (?)", s.conn(ctx).Model(&TestPlan{}).Select("id").Where("project_id = ?", projectID))).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count test cases: %w", err)
	}
	return n, nil
}
