package jobs

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Status represents the lifecycle state of an extraction job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ArtifactType names the category of upstream data a job imports.
type ArtifactType string

const (
	ArtifactWorkItems      ArtifactType = "workitems"
	ArtifactRepositories   ArtifactType = "repositories"
	ArtifactPipelines      ArtifactType = "pipelines"
	ArtifactTestCases      ArtifactType = "testcases"
	ArtifactClassification ArtifactType = "classification"
	ArtifactAreaPaths      ArtifactType = "areapaths"
	ArtifactIterationPaths ArtifactType = "iterationpaths"
	ArtifactCustomFields   ArtifactType = "customfields"
	ArtifactUsers          ArtifactType = "users"
	ArtifactBoardColumns   ArtifactType = "boardcolumns"
	ArtifactWikiPages      ArtifactType = "wikipages"
	ArtifactQueries        ArtifactType = "queries"
	ArtifactAllMetadata    ArtifactType = "all-metadata"
)

// ExtractionJob is the GORM model for one extraction attempt.
//
// ActiveKey is set to "<projectID>:<artifactType>" while the job is pending
// or in progress and cleared once it is terminal. Its unique index keeps at
// most one live job per project and artifact type. StartedAt is null until
// the job is claimed; CreatedAt is when it was queued.
type ExtractionJob struct {
	ID             string       `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	ProjectID      uint         `gorm:"column:project_id;not null;index:idx_job_project_type,priority:1" json:"projectId"`
	ArtifactType   ArtifactType `gorm:"column:artifact_type;size:50;not null;index:idx_job_project_type,priority:2" json:"artifactType"`
	Status         Status       `gorm:"column:status;size:20;not null;default:pending;index:idx_job_status" json:"status"`
	Progress       int          `gorm:"column:progress;not null;default:0" json:"progress"`
	TotalItems     int          `gorm:"column:total_items;not null;default:0" json:"totalItems"`
	ExtractedItems int          `gorm:"column:extracted_items;not null;default:0" json:"extractedItems"`
	StartedAt      *time.Time   `gorm:"column:started_at" json:"startedAt"`
	CompletedAt    *time.Time   `gorm:"column:completed_at" json:"completedAt,omitempty"`
	ErrorMessage   string       `gorm:"column:error_message;type:text" json:"errorMessage,omitempty"`
	ActiveKey      *string      `gorm:"column:active_key;size:100;uniqueIndex:idx_job_active_key" json:"-"`
	AutoClosed     bool         `gorm:"column:auto_closed;not null;default:false" json:"autoClosed,omitempty"`
	CreatedAt      time.Time    `gorm:"column:created_at;not null;index:idx_job_created" json:"createdAt"`
	UpdatedAt      time.Time    `gorm:"column:updated_at" json:"updatedAt"`
}

// TableName returns the GORM table name.
func (ExtractionJob) TableName() string { return "extraction_jobs" }

// IsTerminal returns true if the job is in a terminal state.
func (j *ExtractionJob) IsTerminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// ActiveKey returns the live-job key for a project and artifact type.
func ActiveKey(projectID uint, artifactType ArtifactType) string {
	return fmt.Sprintf("%d:%s", projectID, artifactType)
}

// Level is the severity of a job log row.
type Level string

const (
	LevelInfo    Level = "INFO"
	LevelWarning Level = "WARNING"
	LevelError   Level = "ERROR"
)

// ExtractionLog is an append-only log row of a job.
type ExtractionLog struct {
	ID        uint           `gorm:"primaryKey;column:id" json:"id"`
	JobID     string         `gorm:"column:job_id;type:varchar(36);not null;index" json:"jobId"`
	Level     Level          `gorm:"column:level;size:10;not null;index" json:"level"`
	Message   string         `gorm:"column:message;type:text;not null" json:"message"`
	Details   datatypes.JSON `gorm:"column:details" json:"details,omitempty"`
	Timestamp time.Time      `gorm:"column:timestamp;not null;index" json:"timestamp"`
}

// TableName returns the GORM table name.
func (ExtractionLog) TableName() string { return "extraction_logs" }

// Models lists the tables owned by this package.
func Models() []any {
	return []any{&ExtractionJob{}, &ExtractionLog{}}
}
