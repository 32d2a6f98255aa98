package store

import (
	"time"

	"gorm.io/datatypes"
)

// WorkItem is a mirrored work item. Fields keeps the full upstream field map.
type WorkItem struct {
	ID                  uint           `gorm:"primaryKey;column:id" json:"id"`
	ProjectID           uint           `gorm:"column:project_id;not null;uniqueIndex:idx_work_item_natural,priority:1" json:"projectId"`
	ExternalID          int            `gorm:"column:external_id;not null;uniqueIndex:idx_work_item_natural,priority:2" json:"externalId"`
	Revision            int            `gorm:"column:revision" json:"revision"`
	Title               string         `gorm:"column:title;size:500" json:"title"`
	WorkItemType        string         `gorm:"column:work_item_type;size:100;index" json:"workItemType"`
	State               string         `gorm:"column:state;size:100" json:"state"`
	AssignedTo          string         `gorm:"column:assigned_to;size:255" json:"assignedTo"`
	CreatedDate         *time.Time     `gorm:"column:created_date" json:"createdDate,omitempty"`
	ChangedDate         *time.Time     `gorm:"column:changed_date" json:"changedDate,omitempty"`
	AreaPath            string         `gorm:"column:area_path;size:500" json:"areaPath"`
	IterationPath       string         `gorm:"column:iteration_path;size:500" json:"iterationPath"`
	Priority            int            `gorm:"column:priority" json:"priority"`
	Tags                string         `gorm:"column:tags;type:text" json:"tags"`
	Description         string         `gorm:"column:description;type:text" json:"description"`
	DescriptionMarkdown string         `gorm:"column:description_markdown;type:text" json:"descriptionMarkdown"`
	Fields              datatypes.JSON `gorm:"column:fields" json:"fields,omitempty"`
	CreatedAt           time.Time      `gorm:"column:created_at" json:"-"`
	UpdatedAt           time.Time      `gorm:"column:updated_at" json:"updatedAt"`
}

func (WorkItem) TableName() string { return "work_items" }

// WorkItemComment is replaced in full on every extraction of its work item.
type WorkItemComment struct {
	ID          uint       `gorm:"primaryKey;column:id" json:"id"`
	WorkItemID  uint       `gorm:"column:work_item_id;not null;index" json:"workItemId"`
	ExternalID  int        `gorm:"column:external_id" json:"externalId"`
	Text        string     `gorm:"column:text;type:text" json:"text"`
	CreatedBy   string     `gorm:"column:created_by;size:255" json:"createdBy"`
	CreatedDate *time.Time `gorm:"column:created_date" json:"createdDate,omitempty"`
}

func (WorkItemComment) TableName() string { return "work_item_comments" }

type WorkItemAttachment struct {
	ID          uint       `gorm:"primaryKey;column:id" json:"id"`
	WorkItemID  uint       `gorm:"column:work_item_id;not null;index" json:"workItemId"`
	ExternalID  string     `gorm:"column:external_id;size:255" json:"externalId"`
	Name        string     `gorm:"column:name;size:255" json:"name"`
	URL         string     `gorm:"column:url;size:1000" json:"url"`
	Size        int64      `gorm:"column:size" json:"size"`
	CreatedBy   string     `gorm:"column:created_by;size:255" json:"createdBy"`
	CreatedDate *time.Time `gorm:"column:created_date" json:"createdDate,omitempty"`
}

func (WorkItemAttachment) TableName() string { return "work_item_attachments" }

type WorkItemRevision struct {
	ID             uint           `gorm:"primaryKey;column:id" json:"id"`
	WorkItemID     uint           `gorm:"column:work_item_id;not null;index" json:"workItemId"`
	RevisionNumber int            `gorm:"column:revision_number" json:"revisionNumber"`
	ChangedBy      string         `gorm:"column:changed_by;size:255" json:"changedBy"`
	ChangedDate    *time.Time     `gorm:"column:changed_date" json:"changedDate,omitempty"`
	Fields         datatypes.JSON `gorm:"column:fields" json:"fields,omitempty"`
}

func (WorkItemRevision) TableName() string { return "work_item_revisions" }

// WorkItemRelation links a work item to another item by its upstream id.
// The target may not be mirrored (yet), so no foreign key is kept for it.
type WorkItemRelation struct {
	ID               uint   `gorm:"primaryKey;column:id" json:"id"`
	SourceWorkItemID uint   `gorm:"column:source_work_item_id;not null;index" json:"sourceWorkItemId"`
	TargetExternalID int    `gorm:"column:target_external_id" json:"targetExternalId"`
	RelationType     string `gorm:"column:relation_type;size:100" json:"relationType"`
	URL              string `gorm:"column:url;size:1000" json:"url"`
}

func (WorkItemRelation) TableName() string { return "work_item_relations" }

type Repository struct {
	ID            uint      `gorm:"primaryKey;column:id" json:"id"`
	ProjectID     uint      `gorm:"column:project_id;not null;uniqueIndex:idx_repository_natural,priority:1" json:"projectId"`
	ExternalID    string    `gorm:"column:external_id;size:255;not null;uniqueIndex:idx_repository_natural,priority:2" json:"externalId"`
	Name          string    `gorm:"column:name;size:255" json:"name"`
	URL           string    `gorm:"column:url;size:1000" json:"url"`
	RemoteURL     string    `gorm:"column:remote_url;size:1000" json:"remoteUrl"`
	DefaultBranch string    `gorm:"column:default_branch;size:255" json:"defaultBranch"`
	Size          int64     `gorm:"column:size" json:"size"`
	CreatedAt     time.Time `gorm:"column:created_at" json:"-"`
	UpdatedAt     time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

func (Repository) TableName() string { return "repositories" }

type Branch struct {
	ID           uint   `gorm:"primaryKey;column:id" json:"id"`
	RepositoryID uint   `gorm:"column:repository_id;not null;uniqueIndex:idx_branch_natural,priority:1" json:"repositoryId"`
	Name         string `gorm:"column:name;size:255;not null;uniqueIndex:idx_branch_natural,priority:2" json:"name"`
	ObjectID     string `gorm:"column:object_id;size:64" json:"objectId"`
	Creator      string `gorm:"column:creator;size:255" json:"creator"`
	IsDefault    bool   `gorm:"column:is_default" json:"isDefault"`
}

func (Branch) TableName() string { return "branches" }

type Commit struct {
	ID           uint       `gorm:"primaryKey;column:id" json:"id"`
	RepositoryID uint       `gorm:"column:repository_id;not null;uniqueIndex:idx_commit_natural,priority:1" json:"repositoryId"`
	CommitID     string     `gorm:"column:commit_id;size:64;not null;uniqueIndex:idx_commit_natural,priority:2" json:"commitId"`
	Author       string     `gorm:"column:author;size:255" json:"author"`
	AuthorEmail  string     `gorm:"column:author_email;size:255" json:"authorEmail"`
	Committer    string     `gorm:"column:committer;size:255" json:"committer"`
	Comment      string     `gorm:"column:comment;type:text" json:"comment"`
	CommitDate   *time.Time `gorm:"column:commit_date" json:"commitDate,omitempty"`
}

func (Commit) TableName() string { return "commits" }

type PullRequest struct {
	ID           uint       `gorm:"primaryKey;column:id" json:"id"`
	RepositoryID uint       `gorm:"column:repository_id;not null;uniqueIndex:idx_pull_request_natural,priority:1" json:"repositoryId"`
	ExternalID   int        `gorm:"column:external_id;not null;uniqueIndex:idx_pull_request_natural,priority:2" json:"externalId"`
	Title        string     `gorm:"column:title;size:500" json:"title"`
	Description  string     `gorm:"column:description;type:text" json:"description"`
	CreatedBy    string     `gorm:"column:created_by;size:255" json:"createdBy"`
	CreatedDate  *time.Time `gorm:"column:created_date" json:"createdDate,omitempty"`
	ClosedDate   *time.Time `gorm:"column:closed_date" json:"closedDate,omitempty"`
	Status       string     `gorm:"column:status;size:100" json:"status"`
	SourceBranch string     `gorm:"column:source_branch;size:255" json:"sourceBranch"`
	TargetBranch string     `gorm:"column:target_branch;size:255" json:"targetBranch"`
}

func (PullRequest) TableName() string { return "pull_requests" }

type Pipeline struct {
	ID                uint      `gorm:"primaryKey;column:id" json:"id"`
	ProjectID         uint      `gorm:"column:project_id;not null;uniqueIndex:idx_pipeline_natural,priority:1" json:"projectId"`
	ExternalID        int       `gorm:"column:external_id;not null;uniqueIndex:idx_pipeline_natural,priority:2" json:"externalId"`
	Name              string    `gorm:"column:name;size:255" json:"name"`
	Folder            string    `gorm:"column:folder;size:500" json:"folder"`
	ConfigurationType string    `gorm:"column:configuration_type;size:100" json:"configurationType"`
	YamlPath          string    `gorm:"column:yaml_path;size:500" json:"yamlPath"`
	Revision          int       `gorm:"column:revision" json:"revision"`
	UpdatedAt         time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

func (Pipeline) TableName() string { return "pipelines" }

type PipelineRun struct {
	ID           uint       `gorm:"primaryKey;column:id" json:"id"`
	PipelineID   uint       `gorm:"column:pipeline_id;not null;uniqueIndex:idx_pipeline_run_natural,priority:1" json:"pipelineId"`
	ExternalID   int        `gorm:"column:external_id;not null;uniqueIndex:idx_pipeline_run_natural,priority:2" json:"externalId"`
	Name         string     `gorm:"column:name;size:255" json:"name"`
	Status       string     `gorm:"column:status;size:100" json:"status"`
	Result       string     `gorm:"column:result;size:100" json:"result"`
	CreatedDate  *time.Time `gorm:"column:created_date" json:"createdDate,omitempty"`
	FinishedDate *time.Time `gorm:"column:finished_date" json:"finishedDate,omitempty"`
}

func (PipelineRun) TableName() string { return "pipeline_runs" }

type TestPlan struct {
	ID          uint   `gorm:"primaryKey;column:id" json:"id"`
	ProjectID   uint   `gorm:"column:project_id;not null;uniqueIndex:idx_test_plan_natural,priority:1" json:"projectId"`
	ExternalID  int    `gorm:"column:external_id;not null;uniqueIndex:idx_test_plan_natural,priority:2" json:"externalId"`
	Name        string `gorm:"column:name;size:255" json:"name"`
	Description string `gorm:"column:description;type:text" json:"description"`
	AreaPath    string `gorm:"column:area_path;size:500" json:"areaPath"`
	Iteration   string `gorm:"column:iteration;size:500" json:"iteration"`
	State       string `gorm:"column:state;size:100" json:"state"`
}

func (TestPlan) TableName() string { return "test_plans" }

type TestSuite struct {
	ID         uint   `gorm:"primaryKey;column:id" json:"id"`
	TestPlanID uint   `gorm:"column:test_plan_id;not null;uniqueIndex:idx_test_suite_natural,priority:1" json:"testPlanId"`
	ExternalID int    `gorm:"column:external_id;not null;uniqueIndex:idx_test_suite_natural,priority:2" json:"externalId"`
	Name       string `gorm:"column:name;size:255" json:"name"`
	SuiteType  string `gorm:"column:suite_type;size:100" json:"suiteType"`
}

func (TestSuite) TableName() string { return "test_suites" }

type TestCase struct {
	ID          uint   `gorm:"primaryKey;column:id" json:"id"`
	TestSuiteID uint   `gorm:"column:test_suite_id;not null;uniqueIndex:idx_test_case_natural,priority:1" json:"testSuiteId"`
	ExternalID  int    `gorm:"column:external_id;not null;uniqueIndex:idx_test_case_natural,priority:2" json:"externalId"`
	Title       string `gorm:"column:title;size:500" json:"title"`
	State       string `gorm:"column:state;size:100" json:"state"`
	Priority    int    `gorm:"column:priority" json:"priority"`
}

func (TestCase) TableName() string { return "test_cases" }

type AreaPath struct {
	ID          uint   `gorm:"primaryKey;column:id" json:"id"`
	ProjectID   uint   `gorm:"column:project_id;not null;uniqueIndex:idx_area_path_natural,priority:1" json:"projectId"`
	ExternalID  string `gorm:"column:external_id;size:255;not null;uniqueIndex:idx_area_path_natural,priority:2" json:"externalId"`
	Name        string `gorm:"column:name;size:255" json:"name"`
	Path        string `gorm:"column:path;size:1000" json:"path"`
	ParentPath  string `gorm:"column:parent_path;size:1000" json:"parentPath"`
	HasChildren bool   `gorm:"column:has_children" json:"hasChildren"`
}

func (AreaPath) TableName() string { return "area_paths" }

type IterationPath struct {
	ID          uint       `gorm:"primaryKey;column:id" json:"id"`
	ProjectID   uint       `gorm:"column:project_id;not null;uniqueIndex:idx_iteration_path_natural,priority:1" json:"projectId"`
	ExternalID  string     `gorm:"column:external_id;size:255;not null;uniqueIndex:idx_iteration_path_natural,priority:2" json:"externalId"`
	Name        string     `gorm:"column:name;size:255" json:"name"`
	Path        string     `gorm:"column:path;size:1000" json:"path"`
	ParentPath  string     `gorm:"column:parent_path;size:1000" json:"parentPath"`
	HasChildren bool       `gorm:"column:has_children" json:"hasChildren"`
	StartDate   *time.Time `gorm:"column:start_date" json:"startDate,omitempty"`
	FinishDate  *time.Time `gorm:"column:finish_date" json:"finishDate,omitempty"`
}

func (IterationPath) TableName() string { return "iteration_paths" }

// CustomField is keyed by the field reference name.
type CustomField struct {
	ID            uint   `gorm:"primaryKey;column:id" json:"id"`
	ProjectID     uint   `gorm:"column:project_id;not null;uniqueIndex:idx_custom_field_natural,priority:1" json:"projectId"`
	ExternalID    string `gorm:"column:external_id;size:255;not null;uniqueIndex:idx_custom_field_natural,priority:2" json:"externalId"`
	Name          string `gorm:"column:name;size:255" json:"name"`
	ReferenceName string `gorm:"column:reference_name;size:255" json:"referenceName"`
	Type          string `gorm:"column:type;size:100" json:"type"`
	Usage         string `gorm:"column:usage;size:100" json:"usage"`
	ReadOnly      bool   `gorm:"column:read_only" json:"readOnly"`
}

func (CustomField) TableName() string { return "custom_fields" }

// ProjectUser is a member of at least one team of the project.
type ProjectUser struct {
	ID            uint   `gorm:"primaryKey;column:id" json:"id"`
	ProjectID     uint   `gorm:"column:project_id;not null;uniqueIndex:idx_project_user_natural,priority:1" json:"projectId"`
	ExternalID    string `gorm:"column:external_id;size:255;not null;uniqueIndex:idx_project_user_natural,priority:2" json:"externalId"`
	DisplayName   string `gorm:"column:display_name;size:255" json:"displayName"`
	UniqueName    string `gorm:"column:unique_name;size:255" json:"uniqueName"`
	Email         string `gorm:"column:email;size:255" json:"email"`
	WorkItemCount int    `gorm:"column:work_item_count" json:"workItemCount"`
}

func (ProjectUser) TableName() string { return "project_users" }

type Board struct {
	ID         uint   `gorm:"primaryKey;column:id" json:"id"`
	ProjectID  uint   `gorm:"column:project_id;not null;uniqueIndex:idx_board_natural,priority:1" json:"projectId"`
	ExternalID string `gorm:"column:external_id;size:255;not null;uniqueIndex:idx_board_natural,priority:2" json:"externalId"`
	Name       string `gorm:"column:name;size:255" json:"name"`
	Team       string `gorm:"column:team;size:255" json:"team"`
}

func (Board) TableName() string { return "boards" }

type BoardColumn struct {
	ID         uint   `gorm:"primaryKey;column:id" json:"id"`
	BoardID    uint   `gorm:"column:board_id;not null;uniqueIndex:idx_board_column_natural,priority:1" json:"boardId"`
	ExternalID string `gorm:"column:external_id;size:255;not null;uniqueIndex:idx_board_column_natural,priority:2" json:"externalId"`
	Name       string `gorm:"column:name;size:255" json:"name"`
	ColumnType string `gorm:"column:column_type;size:100" json:"columnType"`
	ItemLimit  int    `gorm:"column:item_limit" json:"itemLimit"`
}

func (BoardColumn) TableName() string { return "board_columns" }

// WikiPage is keyed by "<wikiID>:<pageID>" since page ids are only unique
// within one wiki.
type WikiPage struct {
	ID          uint   `gorm:"primaryKey;column:id" json:"id"`
	ProjectID   uint   `gorm:"column:project_id;not null;uniqueIndex:idx_wiki_page_natural,priority:1" json:"projectId"`
	ExternalID  string `gorm:"column:external_id;size:255;not null;uniqueIndex:idx_wiki_page_natural,priority:2" json:"externalId"`
	WikiID      string `gorm:"column:wiki_id;size:255" json:"wikiId"`
	WikiName    string `gorm:"column:wiki_name;size:255" json:"wikiName"`
	Path        string `gorm:"column:path;size:1000" json:"path"`
	GitItemPath string `gorm:"column:git_item_path;size:1000" json:"gitItemPath"`
	PageOrder   int    `gorm:"column:page_order" json:"order"`
	IsParent    bool   `gorm:"column:is_parent" json:"isParent"`
	Content     string `gorm:"column:content;type:text" json:"content,omitempty"`
}

func (WikiPage) TableName() string { return "wiki_pages" }

type Query struct {
	ID         uint   `gorm:"primaryKey;column:id" json:"id"`
	ProjectID  uint   `gorm:"column:project_id;not null;uniqueIndex:idx_query_natural,priority:1" json:"projectId"`
	ExternalID string `gorm:"column:external_id;size:255;not null;uniqueIndex:idx_query_natural,priority:2" json:"externalId"`
	Name       string `gorm:"column:name;size:255" json:"name"`
	Path       string `gorm:"column:path;size:1000" json:"path"`
	QueryType  string `gorm:"column:query_type;size:100" json:"queryType"`
	Wiql       string `gorm:"column:wiql;type:text" json:"wiql"`
}

func (Query) TableName() string { return "queries" }

// Models lists every table owned by this package, parents first.
func Models() []any {
	return []any{
		&Connection{}, &Project{},
		&WorkItem{}, &WorkItemComment{}, &WorkItemAttachment{}, &WorkItemRevision{}, &WorkItemRelation{},
		&Repository{}, &Branch{}, &Commit{}, &PullRequest{},
		&Pipeline{}, &PipelineRun{},
		&TestPlan{}, &TestSuite{}, &TestCase{},
		&AreaPath{}, &IterationPath{}, &CustomField{}, &ProjectUser{},
		&Board{}, &BoardColumn{}, &WikiPage{}, &Query{},
	}
}

func (r Connection) GetID() uint { return r.ID }
func (r Project) GetID() uint { return r.ID }
func (r WorkItem) GetID() uint { return r.ID }
func (r Repository) GetID() uint { return r.ID }
func (r Pipeline) GetID() uint { return r.ID }
func (r TestPlan) GetID() uint { return r.ID }
func (r AreaPath) GetID() uint { return r.ID }
func (r IterationPath) GetID() uint { return r.ID }
func (r CustomField) GetID() uint { return r.ID }
func (r ProjectUser) GetID() uint { return r.ID }
func (r Board) GetID() uint { return r.ID }
func (r WikiPage) GetID() uint { return r.ID }
func (r Query) GetID() uint { return r.ID }
