package main

// The CLI is self-contained and does not import the server packages; these
// mirror the JSON the server returns.

type connection struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	Organization string `json:"organization"`
	BaseURL      string `json:"baseUrl"`
	Type         string `json:"type"`
	IsActive     bool   `json:"isActive"`
	CreatedAt    string `json:"createdAt"`
}

type project struct {
	ID              uint   `json:"id"`
	ExternalID      string `json:"externalId"`
	Name            string `json:"name"`
	ProcessTemplate string `json:"processTemplate"`
	SourceControl   string `json:"sourceControl"`
	Visibility      string `json:"visibility"`
	Status          string `json:"status"`
	WorkItemCount   int    `json:"workItemCount"`
	RepoCount       int    `json:"repoCount"`
	PipelineCount   int    `json:"pipelineCount"`
	TestCaseCount   int    `json:"testCaseCount"`
	LastSyncedAt    string `json:"lastSyncedAt,omitempty"`
}

type job struct {
	ID             string `json:"id"`
	ProjectID      uint   `json:"projectId"`
	ArtifactType   string `json:"artifactType"`
	Status         string `json:"status"`
	Progress       int    `json:"progress"`
	TotalItems     int    `json:"totalItems"`
	ExtractedItems int    `json:"extractedItems"`
	ErrorMessage   string `json:"errorMessage,omitempty"`
	AutoClosed     bool   `json:"autoClosed,omitempty"`
	CreatedAt      string `json:"createdAt"`
}

func (j job) terminal() bool {
	return j.Status == "completed" || j.Status == "failed"
}

type logEntry struct {
	ID           uint   `json:"id"`
	JobID        string `json:"jobId"`
	Level        string `json:"level"`
	Message      string `json:"message"`
	Timestamp    string `json:"timestamp"`
	ProjectID    uint   `json:"projectId,omitempty"`
	ArtifactType string `json:"artifactType,omitempty"`
}

type logSummary struct {
	TotalOperations int64      `json:"totalOperations"`
	InfoCount       int64      `json:"infoCount"`
	WarningCount    int64      `json:"warningCount"`
	ErrorCount      int64      `json:"errorCount"`
	SuccessRate     float64    `json:"successRate"`
	RecentErrors    []logEntry `json:"recentErrors"`
	RecentJobs      []job      `json:"recentJobs"`
}
