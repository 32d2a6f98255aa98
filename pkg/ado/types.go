package ado

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// IdentityRef is the compact user reference embedded in most records.
type IdentityRef struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	UniqueName  string `json:"uniqueName"`
}

// ProjectSummary is one entry of the organization project list.
type ProjectSummary struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	Visibility     string `json:"visibility"`
	State          string `json:"state"`
	Revision       int64  `json:"revision"`
	URL            string `json:"url"`
	LastUpdateTime string `json:"lastUpdateTime"`
}

// ProjectDetail adds the capabilities block of a single project.
type ProjectDetail struct {
	ProjectSummary
	Capabilities struct {
		ProcessTemplate struct {
			TemplateName string `json:"templateName"`
			TemplateID   string `json:"templateTypeId"`
		} `json:"processTemplate"`
		VersionControl struct {
			SourceControlType string `json:"sourceControlType"`
		} `json:"versioncontrol"`
	} `json:"capabilities"`
}

// ProcessTemplate returns the template name, "Unknown" when absent.
func (p ProjectDetail) ProcessTemplate() string {
	if p.Capabilities.ProcessTemplate.TemplateName == "" {
		return "Unknown"
	}
	return p.Capabilities.ProcessTemplate.TemplateName
}

// SourceControl returns the source control type, "Git" when absent.
func (p ProjectDetail) SourceControl() string {
	if p.Capabilities.VersionControl.SourceControlType == "" {
		return "Git"
	}
	return p.Capabilities.VersionControl.SourceControlType
}

// WorkItemRecord is a work item as returned by workitemsbatch.
type WorkItemRecord struct {
	ID        int                `json:"id"`
	Rev       int                `json:"rev"`
	Fields    map[string]any     `json:"fields"`
	Relations []WorkItemRelation `json:"relations"`
	URL       string             `json:"url"`
}

// WorkItemRelation is a link from a work item to another resource.
type WorkItemRelation struct {
	Rel        string         `json:"rel"`
	URL        string         `json:"url"`
	Attributes map[string]any `json:"attributes"`
}

// AttachedFileRel is the relation type used for attachments.
const AttachedFileRel = "AttachedFile"

// TargetWorkItemID parses the trailing id of a work item link URL.
func (r WorkItemRelation) TargetWorkItemID() (int, bool) {
	idx := strings.LastIndex(r.URL, "/workItems/")
	if idx < 0 {
		return 0, false
	}
	id, err := strconv.Atoi(r.URL[idx+len("/workItems/"):])
	if err != nil {
		return 0, false
	}
	return id, true
}

// String returns a field as text. Identity fields yield their display name.
func (w WorkItemRecord) String(name string) string {
	return fieldString(w.Fields[name])
}

// Int returns a numeric field, zero when absent or not a number.
func (w WorkItemRecord) Int(name string) int {
	return fieldInt(w.Fields[name])
}

func fieldString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case map[string]any:
		if s, ok := t["displayName"].(string); ok {
			return s
		}
		return ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func fieldInt(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case int:
		return t
	case json.Number:
		n, _ := t.Int64()
		return int(n)
	case string:
		n, _ := strconv.Atoi(t)
		return n
	}
	return 0
}

// Comment is a work item discussion entry.
type Comment struct {
	ID          int         `json:"id"`
	Text        string      `json:"text"`
	CreatedBy   IdentityRef `json:"createdBy"`
	CreatedDate string      `json:"createdDate"`
}

// Attachment is a file attached to a work item.
type Attachment struct {
	ID          string
	Name        string
	URL         string
	Size        int64
	CreatedDate string
}

// AttachmentsFromRelations picks the AttachedFile links of a work item.
func AttachmentsFromRelations(rels []WorkItemRelation) []Attachment {
	out := []Attachment{}
	for _, rel := range rels {
		if rel.Rel != AttachedFileRel {
			continue
		}
		a := Attachment{URL: rel.URL}
		if idx := strings.LastIndex(rel.URL, "/"); idx >= 0 {
			a.ID = rel.URL[idx+1:]
		}
		a.Name = fieldString(rel.Attributes["name"])
		a.Size = int64(fieldInt(rel.Attributes["resourceSize"]))
		a.CreatedDate = fieldString(rel.Attributes["resourceCreatedDate"])
		out = append(out, a)
	}
	return out
}

// Revision is one historical version of a work item.
type Revision struct {
	ID     int            `json:"id"`
	Rev    int            `json:"rev"`
	Fields map[string]any `json:"fields"`
}

// ChangedBy returns System.ChangedBy as a display name.
func (r Revision) ChangedBy() string { return fieldString(r.Fields["System.ChangedBy"]) }

// ChangedDate returns System.ChangedDate as text.
func (r Revision) ChangedDate() string { return fieldString(r.Fields["System.ChangedDate"]) }

// Repository is a Git repository.
type Repository struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	URL           string `json:"url"`
	RemoteURL     string `json:"remoteUrl"`
	WebURL        string `json:"webUrl"`
	DefaultBranch string `json:"defaultBranch"`
	Size          int64  `json:"size"`
	IsDisabled    bool   `json:"isDisabled"`
}

// Branch is a Git ref under refs/heads.
type Branch struct {
	Name     string      `json:"name"`
	ObjectID string      `json:"objectId"`
	Creator  IdentityRef `json:"creator"`
}

// ShortName strips the refs/heads/ prefix.
func (b Branch) ShortName() string { return strings.TrimPrefix(b.Name, "refs/heads/") }

// GitUserDate is the author/committer block of a commit.
type GitUserDate struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Date  string `json:"date"`
}

// Commit is a Git commit summary.
type Commit struct {
	CommitID  string      `json:"commitId"`
	Author    GitUserDate `json:"author"`
	Committer GitUserDate `json:"committer"`
	Comment   string      `json:"comment"`
	URL       string      `json:"url"`
}

// PullRequest is a Git pull request summary.
type PullRequest struct {
	PullRequestID int         `json:"pullRequestId"`
	Title         string      `json:"title"`
	Description   string      `json:"description"`
	CreatedBy     IdentityRef `json:"createdBy"`
	CreationDate  string      `json:"creationDate"`
	ClosedDate    string      `json:"closedDate"`
	Status        string      `json:"status"`
	SourceRefName string      `json:"sourceRefName"`
	TargetRefName string      `json:"targetRefName"`
}

// Pipeline is a pipeline definition.
type Pipeline struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Folder        string `json:"folder"`
	Revision      int    `json:"revision"`
	Configuration struct {
		Type string `json:"type"`
		Path string `json:"path"`
	} `json:"configuration"`
}

// PipelineRun is one execution of a pipeline.
type PipelineRun struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	State        string `json:"state"`
	Result       string `json:"result"`
	CreatedDate  string `json:"createdDate"`
	FinishedDate string `json:"finishedDate"`
}

// TestPlan is a test plan.
type TestPlan struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	AreaPath    string `json:"areaPath"`
	Iteration   string `json:"iteration"`
	State       string `json:"state"`
}

// TestSuite is a suite inside a test plan.
type TestSuite struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	SuiteType string `json:"suiteType"`
}

// TestCase is a test case reference inside a suite.
type TestCase struct {
	WorkItem struct {
		ID             int              `json:"id"`
		Name           string           `json:"name"`
		WorkItemFields []map[string]any `json:"workItemFields"`
	} `json:"workItem"`
}

// Field looks up a value in the test case's work item field list.
func (tc TestCase) Field(name string) any {
	for _, f := range tc.WorkItem.WorkItemFields {
		if v, ok := f[name]; ok {
			return v
		}
	}
	return nil
}

// State returns System.State.
func (tc TestCase) State() string { return fieldString(tc.Field("System.State")) }

// Priority returns Microsoft.VSTS.Common.Priority.
func (tc TestCase) Priority() int { return fieldInt(tc.Field("Microsoft.VSTS.Common.Priority")) }

// ClassificationNode is one flattened area or iteration node.
type ClassificationNode struct {
	ID          int
	Identifier  string
	Name        string
	Path        string
	ParentPath  string
	HasChildren bool
	StartDate   string
	FinishDate  string
}

// Field is a work item field definition.
type Field struct {
	Name          string `json:"name"`
	ReferenceName string `json:"referenceName"`
	Type          string `json:"type"`
	Usage         string `json:"usage"`
	ReadOnly      bool   `json:"readOnly"`
}

// IsCustom reports fields outside the built-in System and Microsoft
// namespaces.
func (f Field) IsCustom() bool {
	return !strings.HasPrefix(f.ReferenceName, "System.") && !strings.HasPrefix(f.ReferenceName, "Microsoft.")
}

// Team is a project team.
type Team struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// TeamMember is one member of a team.
type TeamMember struct {
	Identity struct {
		ID          string `json:"id"`
		DisplayName string `json:"displayName"`
		UniqueName  string `json:"uniqueName"`
	} `json:"identity"`
	IsTeamAdmin bool `json:"isTeamAdmin"`
}

// Board is a team's Kanban board.
type Board struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// BoardColumn is one column of a board.
type BoardColumn struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ColumnType string `json:"columnType"`
	ItemLimit  int    `json:"itemLimit"`
}

// Wiki is a project or code wiki.
type Wiki struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// WikiPage is one flattened wiki page.
type WikiPage struct {
	ID          int
	Path        string
	GitItemPath string
	Order       int
	Content     string
	IsParent    bool
}

// Query is a stored work item query. Folders are flattened away; Path holds
// the folder chain.
type Query struct {
	ID        string
	Name      string
	Path      string
	QueryType string
	Wiql      string
}

// ParseTime parses the timestamp formats the API emits. Empty or invalid
// input yields nil.
func ParseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() <= 1 {
				return nil
			}
			t = t.UTC()
			return &t
		}
	}
	return nil
}
