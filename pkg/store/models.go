package store

import (
	"time"
)

// ConnectionType tags a connection as the side of a migration it serves.
type ConnectionType string

const (
	ConnectionSource ConnectionType = "source"
	ConnectionTarget ConnectionType = "target"
)

// Connection is an Azure DevOps organization plus the credential used to
// read it. Connections are deactivated, never deleted.
type Connection struct {
	ID           uint           `gorm:"primaryKey;column:id" json:"id"`
	Name         string         `gorm:"column:name;not null" json:"name"`
	Organization string         `gorm:"column:organization;size:255;not null;uniqueIndex:idx_connection_org_type,priority:1" json:"organization"`
	BaseURL      string         `gorm:"column:base_url;size:500;not null" json:"baseUrl"`
	Token        string         `gorm:"column:pat_token;type:text;not null" json:"-"`
	Type         ConnectionType `gorm:"column:type;size:50;not null;uniqueIndex:idx_connection_org_type,priority:2" json:"type"`
	IsActive     bool           `gorm:"column:is_active;not null" json:"isActive"`
	CreatedAt    time.Time      `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt    time.Time      `gorm:"column:updated_at" json:"updatedAt"`
}

// TableName returns the GORM table name.
func (Connection) TableName() string { return "ado_connections" }

// ProjectStatus is the migration status of a project.
type ProjectStatus string

const (
	ProjectReady      ProjectStatus = "ready"
	ProjectSelected   ProjectStatus = "selected"
	ProjectInProgress ProjectStatus = "in_progress"
	ProjectMigrated   ProjectStatus = "migrated"
)

// Valid reports whether s is a known status.
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectReady, ProjectSelected, ProjectInProgress, ProjectMigrated:
		return true
	}
	return false
}

// Project is a mirrored Azure DevOps project.
type Project struct {
	ID              uint          `gorm:"primaryKey;column:id" json:"id"`
	ExternalID      string        `gorm:"column:external_id;size:255;not null;uniqueIndex:idx_project_external" json:"externalId"`
	Name            string        `gorm:"column:name;size:255;not null" json:"name"`
	Description     string        `gorm:"column:description;type:text" json:"description"`
	ProcessTemplate string        `gorm:"column:process_template;size:100" json:"processTemplate"`
	SourceControl   string        `gorm:"column:source_control;size:50" json:"sourceControl"`
	Visibility      string        `gorm:"column:visibility;size:50" json:"visibility"`
	CreatedDate     *time.Time    `gorm:"column:created_date" json:"createdDate,omitempty"`
	Status          ProjectStatus `gorm:"column:status;size:50;not null;default:ready;index" json:"status"`
	ConnectionID    *uint         `gorm:"column:connection_id;index" json:"connectionId,omitempty"`

	WorkItemCount      int `gorm:"column:work_item_count;not null;default:0" json:"workItemCount"`
	RepoCount          int `gorm:"column:repo_count;not null;default:0" json:"repoCount"`
	TestCaseCount      int `gorm:"column:test_case_count;not null;default:0" json:"testCaseCount"`
	PipelineCount      int `gorm:"column:pipeline_count;not null;default:0" json:"pipelineCount"`
	AreaPathCount      int `gorm:"column:area_path_count;not null;default:0" json:"areaPathCount"`
	IterationPathCount int `gorm:"column:iteration_path_count;not null;default:0" json:"iterationPathCount"`
	CustomFieldCount   int `gorm:"column:custom_field_count;not null;default:0" json:"customFieldCount"`
	UserCount          int `gorm:"column:user_count;not null;default:0" json:"userCount"`

	LastSyncedAt *time.Time `gorm:"column:last_synced_at" json:"lastSyncedAt,omitempty"`
	CreatedAt    time.Time  `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt    time.Time  `gorm:"column:updated_at" json:"updatedAt"`
}

// TableName returns the GORM table name.
func (Project) TableName() string { return "projects" }

// CountColumns lists the project columns an extraction may update.
var CountColumns = []string{
	"work_item_count",
	"repo_count",
	"test_case_count",
	"pipeline_count",
	"area_path_count",
	"iteration_path_count",
	"custom_field_count",
	"user_count",
}
