package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// ArtifactCounts counts the stored rows of every artifact table for one
// project, keyed by table name.
func (s *Store) ArtifactCounts(ctx context.Context, projectID uint) (map[string]int64, error) {
	db := s.conn(ctx)
	ids := func(model any) *gorm.DB {
		return db.Model(model).Select("id").Where("project_id = ?", projectID)
	}
	workItems := ids(&WorkItem{})
	repos := ids(&Repository{})
	suites := db.Model(&TestSuite{}).Select("id").Where("test_plan_id IN (?)", ids(&TestPlan{}))

	counts := []struct {
		model schema.Tabler
		where string
		arg   any
	}{
		{&WorkItem{}, "project_id = ?", projectID},
		{&WorkItemComment{}, "work_item_id IN (?)", workItems},
		{&WorkItemAttachment{}, "work_item_id IN (?)", workItems},
		{&WorkItemRevision{}, "work_item_id IN (?)", workItems},
		{&WorkItemRelation{}, "source_work_item_id IN (?)", workItems},
		{&Repository{}, "project_id = ?", projectID},
		{&Branch{}, "repository_id IN (?)", repos},
		{&Commit{}, "repository_id IN (?)", repos},
		{&PullRequest{}, "repository_id IN (?)", repos},
		{&Pipeline{}, "project_id = ?", projectID},
		{&PipelineRun{}, "pipeline_id IN (?)", ids(&Pipeline{})},
		{&TestPlan{}, "project_id = ?", projectID},
		{&TestSuite{}, "test_plan_id IN (?)", ids(&TestPlan{})},
		{&TestCase{}, "test_suite_id IN (?)", suites},
		{&AreaPath{}, "project_id = ?", projectID},
		{&IterationPath{}, "project_id = ?", projectID},
		{&CustomField{}, "project_id = ?", projectID},
		{&ProjectUser{}, "project_id = ?", projectID},
		{&Board{}, "project_id = ?", projectID},
		{&BoardColumn{}, "board_id IN (?)", ids(&Board{})},
		{&WikiPage{}, "project_id = ?", projectID},
		{&Query{}, "project_id = ?", projectID},
	}

	out := make(map[string]int64, len(counts))
	for _, c := range counts {
		table := c.model.TableName()
		var n int64
		if err := db.Model(c.model).Where(c.where, c.arg).Count(&n).Error; err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		out[table] = n
	}
	return out, nil
}
