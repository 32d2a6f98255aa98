package extract

import (
	"context"
	"fmt"

	"github.com/adomirror/adomirror/pkg/ado"
	"github.com/adomirror/adomirror/pkg/store"
)

func extractPipelines(ctx context.Context, r *run) error {
	project := r.project.Name
	pipelines, err := r.src.ListPipelines(ctx, project)
	if err != nil {
		return fmt.Errorf("list pipelines: %w", err)
	}

	err = r.batched(ctx, len(pipelines), 1, "pipelines", func(lo, hi int) {
		for _, p := range pipelines[lo:hi] {
			row := &store.Pipeline{
				ProjectID:         r.project.ID,
				ExternalID:        p.ID,
				Name:              p.Name,
				Folder:            p.Folder,
				ConfigurationType: p.Configuration.Type,
				YamlPath:          p.Configuration.Path,
				Revision:          p.Revision,
			}
			if err := r.store.UpsertPipeline(ctx, row); err != nil {
				r.warn(fmt.Sprintf("Failed to save pipeline %s", p.Name), err, map[string]any{"pipeline": p.ID})
				continue
			}
			runs, err := r.src.ListPipelineRuns(ctx, project, p.ID)
			if err != nil {
				r.warn(fmt.Sprintf("Failed to fetch runs of pipeline %s", p.Name), err, map[string]any{"pipeline": p.ID})
				continue
			}
			rows := make([]store.PipelineRun, 0, len(runs))
			for _, pr := range runs {
				rows = append(rows, store.PipelineRun{
					ExternalID:   pr.ID,
					Name:         pr.Name,
					Status:       pr.State,
					Result:       pr.Result,
					CreatedDate:  ado.ParseTime(pr.CreatedDate),
					FinishedDate: ado.ParseTime(pr.FinishedDate),
				})
			}
			if err := r.store.UpsertPipelineRuns(ctx, row.ID, dedupeBy(rows, func(pr store.PipelineRun) int { return pr.ExternalID })); err != nil {
				r.warn(fmt.Sprintf("Failed to save runs of pipeline %s", p.Name), err, map[string]any{"pipeline": p.ID})
			}
		}
	})
	if err != nil {
		return err
	}
	r.counts["pipeline_count"] = len(pipelines)
	return nil
}

// extractTestCases stores one test plan per batch with its suites and their
// test cases. The project count is the number of stored test cases.
func extractTestCases(ctx context.Context, r *run) error {
	project := r.project.Name
	plans, err := r.src.ListTestPlans(ctx, project)
	if err != nil {
		return fmt.Errorf("list test plans: %w", err)
	}

	err = r.batched(ctx, len(plans), 1, "test plans", func(lo, hi int) {
		for _, plan := range plans[lo:hi] {
			r.saveTestPlan(ctx, plan)
		}
	})
	if err != nil {
		return err
	}
	n, err := r.store.CountTestCases(ctx, r.project.ID)
	if err != nil {
		return fmt.Errorf("count test cases: %w", err)
	}
	r.counts["test_case_count"] = int(n)
	return nil
}

func (r *run) saveTestPlan(ctx context.Context, plan ado.TestPlan) {
	project := r.project.Name
	row := &store.TestPlan{
		ProjectID:   r.project.ID,
		ExternalID:  plan.ID,
		Name:        plan.Name,
		Description: plan.Description,
		AreaPath:    plan.AreaPath,
		Iteration:   plan.Iteration,
		State:       plan.State,
	}
	if err := r.store.UpsertTestPlan(ctx, row); err != nil {
		r.warn(fmt.Sprintf("Failed to save test plan %s", plan.Name), err, map[string]any{"testPlan": plan.ID})
		return
	}

	suites, err := r.src.ListTestSuites(ctx, project, plan.ID)
	if err != nil {
		r.warn(fmt.Sprintf("Failed to fetch suites of test plan %s", plan.Name), err, map[string]any{"testPlan": plan.ID})
		return
	}
	for _, suite := range suites {
		if ctx.Err() != nil {
			return
		}
		srow := &store.TestSuite{TestPlanID: row.ID, ExternalID: suite.ID, Name: suite.Name, SuiteType: suite.SuiteType}
		if err := r.store.UpsertTestSuite(ctx, srow); err != nil {
			r.warn(fmt.Sprintf("Failed to save test suite %s", suite.Name), err, map[string]any{"testSuite": suite.ID})
			continue
		}
		cases, err := r.src.ListTestCases(ctx, project, plan.ID, suite.ID)
		if err != nil {
			r.warn(fmt.Sprintf("Failed to fetch test cases of suite %s", suite.Name), err, map[string]any{"testSuite": suite.ID})
			continue
		}
		rows := make([]store.TestCase, 0, len(cases))
		for _, tc := range cases {
			rows = append(rows, store.TestCase{
				ExternalID: tc.WorkItem.ID,
				Title:      tc.WorkItem.Name,
				State:      tc.State(),
				Priority:   tc.Priority(),
			})
		}
		if err := r.store.UpsertTestCases(ctx, srow.ID, dedupeBy(rows, func(c store.TestCase) int { return c.ExternalID })); err != nil {
			r.warn(fmt.Sprintf("Failed to save test cases of suite %s", suite.Name), err, map[string]any{"testSuite": suite.ID})
		}
	}
}
