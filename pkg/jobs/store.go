package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrJobNotFound is returned when a job id does not exist.
var ErrJobNotFound = errors.New("job not found")

// ErrJobTerminal is returned when an operation needs a live job.
var ErrJobTerminal = errors.New("job already finished")

// stalledDefaultItems is written as the item count of an auto-closed job
// that never learned its total.
const stalledDefaultItems = 10

// JobStore provides database operations for extraction jobs and their logs.
type JobStore struct {
	db *gorm.DB
}

// NewJobStore creates a new JobStore.
func NewJobStore(db *gorm.DB) *JobStore {
	return &JobStore{db: db}
}

// WithDB returns a JobStore bound to another handle.
func (s *JobStore) WithDB(db *gorm.DB) *JobStore {
	return &JobStore{db: db}
}

// AutoMigrate creates or updates the job tables.
func (s *JobStore) AutoMigrate() error {
	return s.db.AutoMigrate(Models()...)
}

func (s *JobStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// JobListFilter defines filters for listing jobs.
type JobListFilter struct {
	ProjectID    uint
	ArtifactType ArtifactType
	Status       Status
}

// Create starts a pending job for (projectID, artifactType). If a live job for
// the same pair exists, that job is returned with created=false instead.
// Safe for concurrent use.
func (s *JobStore) Create(ctx context.Context, projectID uint, artifactType ArtifactType) (job *ExtractionJob, created bool, err error) {
	key := ActiveKey(projectID, artifactType)
	findLive := func(db *gorm.DB) (*ExtractionJob, error) {
		var existing ExtractionJob
		err := db.Where("active_key = ?", key).Take(&existing).Error
		if err != nil {
			return nil, err
		}
		return &existing, nil
	}

	err = s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := findLive(tx)
		if err == nil {
			job = existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("check active job: %w", err)
		}

		now := time.Now().UTC()
		fresh := &ExtractionJob{
			ID:           uuid.New().String(),
			ProjectID:    projectID,
			ArtifactType: artifactType,
			Status:       StatusPending,
			ActiveKey:    &key,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.Create(fresh).Error; err != nil {
			return err
		}
		job, created = fresh, true
		return nil
	})
	if err != nil {
		// Another request may have inserted the live job between our check
		// and insert. The unique index rejected ours; return theirs.
		if existing, lookupErr := findLive(s.conn(ctx)); lookupErr == nil {
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("create job: %w", err)
	}
	return job, created, nil
}

// Start moves a pending job to in_progress.
func (s *JobStore) Start(ctx context.Context, jobID string) error {
	now := time.Now().UTC()
	res := s.conn(ctx).Model(&ExtractionJob{}).
		Where("id = ? AND status = ?", jobID, StatusPending).
		Updates(map[string]any{
			"status":     StatusInProgress,
			"started_at": now,
			"updated_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("start job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return s.liveCheck(ctx, jobID)
	}
	return nil
}

// SetTotal records the index size of a running job.
func (s *JobStore) SetTotal(ctx context.Context, jobID string, total int) error {
	return s.updateLive(ctx, jobID, map[string]any{"total_items": total})
}

// UpdateProgress records the items extracted so far.
func (s *JobStore) UpdateProgress(ctx context.Context, jobID string, extracted, progress int) error {
	return s.updateLive(ctx, jobID, map[string]any{
		"extracted_items": extracted,
		"progress":        progress,
	})
}

func (s *JobStore) updateLive(ctx context.Context, jobID string, updates map[string]any) error {
	updates["updated_at"] = time.Now().UTC()
	res := s.conn(ctx).Model(&ExtractionJob{}).
		Where("id = ? AND status IN ?", jobID, []Status{StatusPending, StatusInProgress}).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return s.liveCheck(ctx, jobID)
	}
	return nil
}

func (s *JobStore) liveCheck(ctx context.Context, jobID string) error {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.IsTerminal() {
		return fmt.Errorf("job %s is %s: %w", jobID, job.Status, ErrJobTerminal)
	}
	return nil
}

// Complete marks a job completed with progress 100.
func (s *JobStore) Complete(ctx context.Context, jobID string, extracted, total int) error {
	return s.finish(ctx, jobID, map[string]any{
		"status":          StatusCompleted,
		"progress":        100,
		"extracted_items": extracted,
		"total_items":     total,
	})
}

// Fail marks a job failed with the given message.
func (s *JobStore) Fail(ctx context.Context, jobID string, errMsg string) error {
	return s.finish(ctx, jobID, map[string]any{
		"status":        StatusFailed,
		"error_message": errMsg,
	})
}

func (s *JobStore) finish(ctx context.Context, jobID string, updates map[string]any) error {
	now := time.Now().UTC()
	updates["completed_at"] = now
	updates["updated_at"] = now
	updates["active_key"] = nil
	res := s.conn(ctx).Model(&ExtractionJob{}).
		Where("id = ? AND status IN ?", jobID, []Status{StatusPending, StatusInProgress}).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("finish job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if err := s.liveCheck(ctx, jobID); err != nil {
			return err
		}
	}
	return nil
}

// Get retrieves a job by ID.
func (s *JobStore) Get(ctx context.Context, jobID string) (*ExtractionJob, error) {
	var job ExtractionJob
	if err := s.conn(ctx).Take(&job, "id = ?", jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%s: %w", jobID, ErrJobNotFound)
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &job, nil
}

// List returns paginated jobs matching the given filter, newest first.
func (s *JobStore) List(ctx context.Context, filter JobListFilter, pageSize int, pageToken string) ([]ExtractionJob, string, int, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	buildQuery := func(base *gorm.DB) *gorm.DB {
		q := base.Model(&ExtractionJob{})
		if filter.ProjectID != 0 {
			q = q.Where("project_id = ?", filter.ProjectID)
		}
		if filter.ArtifactType != "" {
			q = q.Where("artifact_type = ?", filter.ArtifactType)
		}
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		return q
	}

	var totalSize int64
	if err := buildQuery(s.conn(ctx)).Count(&totalSize).Error; err != nil {
		return nil, "", 0, fmt.Errorf("count jobs: %w", err)
	}

	query := buildQuery(s.conn(ctx)).Order("created_at DESC").Order("id DESC").Limit(pageSize + 1)
	if pageToken != "" {
		at, id, err := parsePageToken(pageToken)
		if err != nil {
			return nil, "", 0, err
		}
		query = query.Where("created_at < ? OR (created_at = ? AND id < ?)", at, at, id)
	}

	var records []ExtractionJob
	if err := query.Find(&records).Error; err != nil {
		return nil, "", 0, fmt.Errorf("list jobs: %w", err)
	}

	var nextToken string
	if len(records) > pageSize {
		last := records[pageSize-1]
		nextToken = last.CreatedAt.UTC().Format(time.RFC3339Nano) + "," + last.ID
		records = records[:pageSize]
	}

	return records, nextToken, int(totalSize), nil
}

func parsePageToken(token string) (time.Time, string, error) {
	ts, id, ok := strings.Cut(token, ",")
	if !ok {
		return time.Time{}, "", errors.New("invalid page token")
	}
	at, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("invalid page token: %w", err)
	}
	return at.UTC(), id, nil
}

// LatestByArtifact returns the newest job of each artifact type for a
// project.
func (s *JobStore) LatestByArtifact(ctx context.Context, projectID uint) (map[ArtifactType]ExtractionJob, error) {
	var records []ExtractionJob
	err := s.conn(ctx).Where("project_id = ?", projectID).
		Order("created_at DESC").Order("id DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list project jobs: %w", err)
	}
	out := make(map[ArtifactType]ExtractionJob)
	for _, j := range records {
		if _, seen := out[j.ArtifactType]; !seen {
			out[j.ArtifactType] = j
		}
	}
	return out, nil
}

// CloseStalled force-completes jobs that have been in progress since before
// now-window. Jobs for which live reports true are still running in this
// process and are left alone. Closed jobs are flagged auto_closed and get a
// WARNING log row. Pending jobs older than the window that live does not
// report are failed as orphaned, which releases their active key.
func (s *JobStore) CloseStalled(ctx context.Context, window time.Duration, live func(jobID string) bool) ([]ExtractionJob, error) {
	cutoff := time.Now().UTC().Add(-window)
	var stalled []ExtractionJob
	err := s.conn(ctx).
		Where("status = ? AND started_at < ?", StatusInProgress, cutoff).
		Find(&stalled).Error
	if err != nil {
		return nil, fmt.Errorf("find stalled jobs: %w", err)
	}

	var closed []ExtractionJob
	for _, j := range stalled {
		if live != nil && live(j.ID) {
			continue
		}
		total := j.TotalItems
		if total <= 0 {
			total = stalledDefaultItems
		}
		now := time.Now().UTC()
		res := s.conn(ctx).Model(&ExtractionJob{}).
			Where("id = ? AND status = ?", j.ID, StatusInProgress).
			Updates(map[string]any{
				"status":          StatusCompleted,
				"progress":        100,
				"total_items":     total,
				"extracted_items": total,
				"completed_at":    now,
				"updated_at":      now,
				"active_key":      nil,
				"auto_closed":     true,
			})
		if res.Error != nil {
			return closed, fmt.Errorf("close stalled job %s: %w", j.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			continue
		}
		msg := fmt.Sprintf("Job auto-closed after %s without progress; item counts are synthetic", window)
		if err := s.AppendLog(ctx, j.ID, LevelWarning, msg, map[string]any{
			"startedAt":     j.StartedAt,
			"reportedTotal": j.TotalItems,
			"extracted":     j.ExtractedItems,
		}); err != nil {
			return closed, err
		}
		j.Status, j.Progress, j.TotalItems, j.ExtractedItems = StatusCompleted, 100, total, total
		j.CompletedAt, j.ActiveKey, j.AutoClosed = &now, nil, true
		closed = append(closed, j)
	}

	orphaned, err := s.FailOrphaned(ctx, window, live)
	return append(closed, orphaned...), err
}

// OrphanedMessage is the error message of a pending job that lost its
// process before it was launched.
const OrphanedMessage = "extraction orphaned before start"

// FailOrphaned fails pending jobs created more than olderThan ago that live
// does not report. Such a job was queued by a process that is gone and will
// never be launched. A zero olderThan takes every pending job not live.
func (s *JobStore) FailOrphaned(ctx context.Context, olderThan time.Duration, live func(jobID string) bool) ([]ExtractionJob, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	var pending []ExtractionJob
	err := s.conn(ctx).
		Where("status = ? AND created_at <= ?", StatusPending, cutoff).
		Find(&pending).Error
	if err != nil {
		return nil, fmt.Errorf("find orphaned jobs: %w", err)
	}

	var failed []ExtractionJob
	for _, j := range pending {
		if live != nil && live(j.ID) {
			continue
		}
		now := time.Now().UTC()
		res := s.conn(ctx).Model(&ExtractionJob{}).
			Where("id = ? AND status = ?", j.ID, StatusPending).
			Updates(map[string]any{
				"status":        StatusFailed,
				"error_message": OrphanedMessage,
				"completed_at":  now,
				"updated_at":    now,
				"active_key":    nil,
			})
		if res.Error != nil {
			return failed, fmt.Errorf("fail orphaned job %s: %w", j.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			continue
		}
		if err := s.AppendLog(ctx, j.ID, LevelWarning, OrphanedMessage, map[string]any{
			"createdAt": j.CreatedAt,
		}); err != nil {
			return failed, err
		}
		j.Status, j.ErrorMessage, j.CompletedAt, j.ActiveKey = StatusFailed, OrphanedMessage, &now, nil
		failed = append(failed, j)
	}
	return failed, nil
}

// AppendLog adds a log row to a job. details may be nil.
func (s *JobStore) AppendLog(ctx context.Context, jobID string, level Level, message string, details map[string]any) error {
	entry := ExtractionLog{
		JobID:     jobID,
		Level:     level,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
	if len(details) > 0 {
		raw, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("encode log details: %w", err)
		}
		entry.Details = datatypes.JSON(raw)
	}
	if err := s.conn(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("append job log: %w", err)
	}
	return nil
}

// Logs returns the log rows of one job in write order.
func (s *JobStore) Logs(ctx context.Context, jobID string) ([]ExtractionLog, error) {
	out := []ExtractionLog{}
	if err := s.conn(ctx).Where("job_id = ?", jobID).Order("id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list job logs: %w", err)
	}
	return out, nil
}

// LogEntry is a log row joined with its job.
type LogEntry struct {
	ExtractionLog
	ProjectID    uint         `json:"projectId"`
	ArtifactType ArtifactType `json:"artifactType"`
}

// LogFilter narrows ListLogs.
type LogFilter struct {
	Level     Level
	ProjectID uint
	Limit     int
	Offset    int
}

// ListLogs returns log rows across jobs, newest first, with the total count
// matching the filter.
func (s *JobStore) ListLogs(ctx context.Context, filter LogFilter) ([]LogEntry, int64, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	if filter.Limit > 1000 {
		filter.Limit = 1000
	}
	base := func() *gorm.DB {
		q := s.conn(ctx).Table("extraction_logs").
			Joins("JOIN extraction_jobs ON extraction_jobs.id = extraction_logs.job_id")
		if filter.Level != "" {
			q = q.Where("extraction_logs.level = ?", Level(strings.ToUpper(string(filter.Level))))
		}
		if filter.ProjectID != 0 {
			q = q.Where("extraction_jobs.project_id = ?", filter.ProjectID)
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count logs: %w", err)
	}
	out := []LogEntry{}
	err := base().
		Select("extraction_logs.*, extraction_jobs.project_id, extraction_jobs.artifact_type").
		Order("extraction_logs.timestamp DESC").Order("extraction_logs.id DESC").
		Limit(filter.Limit).Offset(filter.Offset).
		Scan(&out).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list logs: %w", err)
	}
	return out, total, nil
}

// LogSummary aggregates log levels and recent activity.
type LogSummary struct {
	TotalOperations int64           `json:"totalOperations"`
	InfoCount       int64           `json:"infoCount"`
	WarningCount    int64           `json:"warningCount"`
	ErrorCount      int64           `json:"errorCount"`
	SuccessRate     float64         `json:"successRate"`
	RecentErrors    []LogEntry      `json:"recentErrors"`
	RecentJobs      []ExtractionJob `json:"recentJobs"`
}

// Summary counts log rows per level and returns the five most recent errors
// and the ten most recent jobs. The success rate is the share of non-error
// rows, rounded to one decimal.
func (s *JobStore) Summary(ctx context.Context) (*LogSummary, error) {
	var rows []struct {
		Level Level
		N     int64
	}
	if err := s.conn(ctx).Model(&ExtractionLog{}).Select("level, COUNT(*) AS n").Group("level").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count logs by level: %w", err)
	}
	sum := &LogSummary{SuccessRate: 100}
	for _, r := range rows {
		switch r.Level {
		case LevelInfo:
			sum.InfoCount = r.N
		case LevelWarning:
			sum.WarningCount = r.N
		case LevelError:
			sum.ErrorCount = r.N
		}
	}
	sum.TotalOperations = sum.InfoCount + sum.WarningCount + sum.ErrorCount
	if sum.TotalOperations > 0 {
		rate := 100 * (1 - float64(sum.ErrorCount)/float64(sum.TotalOperations))
		sum.SuccessRate = math.Round(rate*10) / 10
	}

	errs, _, err := s.ListLogs(ctx, LogFilter{Level: LevelError, Limit: 5})
	if err != nil {
		return nil, err
	}
	sum.RecentErrors = errs

	sum.RecentJobs = []ExtractionJob{}
	if err := s.conn(ctx).Order("created_at DESC").Order("id DESC").Limit(10).Find(&sum.RecentJobs).Error; err != nil {
		return nil, fmt.Errorf("list recent jobs: %w", err)
	}
	return sum, nil
}
