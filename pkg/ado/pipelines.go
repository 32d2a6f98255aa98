package ado

import (
	"context"
	"strconv"
)

// ListPipelines returns the pipeline definitions of a project.
func (c *Client) ListPipelines(ctx context.Context, project string) ([]Pipeline, error) {
	return listAll[Pipeline](ctx, c, projectPath(project, "pipelines"), nil)
}

// ListPipelineRuns returns the recent runs of a pipeline.
func (c *Client) ListPipelineRuns(ctx context.Context, project string, pipelineID int) ([]PipelineRun, error) {
	return listAll[PipelineRun](ctx, c, projectPath(project, "pipelines", strconv.Itoa(pipelineID), "runs"), nil)
}

// ListTestPlans returns the test plans of a project.
func (c *Client) ListTestPlans(ctx context.Context, project string) ([]TestPlan, error) {
	return listAll[TestPlan](ctx, c, projectPath(project, "testplan", "plans"), nil)
}

// ListTestSuites returns the suites of a test plan.
func (c *Client) ListTestSuites(ctx context.Context, project string, planID int) ([]TestSuite, error) {
	return listAll[TestSuite](ctx, c, projectPath(project, "testplan", "Plans", strconv.Itoa(planID), "suites"), nil)
}

// ListTestCases returns the test cases of a suite.
func (c *Client) ListTestCases(ctx context.Context, project string, planID, suiteID int) ([]TestCase, error) {
	return listAll[TestCase](ctx, c,
		projectPath(project, "testplan", "Plans", strconv.Itoa(planID), "Suites", strconv.Itoa(suiteID), "TestCase"), nil)
}
