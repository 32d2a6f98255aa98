// Package extract runs extraction jobs: it drives the Azure DevOps
// connector for one artifact type of one project, upserts what it reads and
// keeps the job and log rows current.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"gorm.io/gorm"

	"github.com/adomirror/adomirror/pkg/ado"
	"github.com/adomirror/adomirror/pkg/config"
	"github.com/adomirror/adomirror/pkg/jobs"
	"github.com/adomirror/adomirror/pkg/store"
)

var (
	// ErrUnknownArtifactType is returned by Start for an unsupported type.
	ErrUnknownArtifactType = errors.New("unknown artifact type")
	// ErrConnectionNotFound fails a job whose project has no usable
	// connection.
	ErrConnectionNotFound = errors.New("no active connection")
)

// ArtifactTypes is every type Start accepts.
var ArtifactTypes = mapset.NewSet(
	jobs.ArtifactWorkItems,
	jobs.ArtifactRepositories,
	jobs.ArtifactPipelines,
	jobs.ArtifactTestCases,
	jobs.ArtifactClassification,
	jobs.ArtifactAreaPaths,
	jobs.ArtifactIterationPaths,
	jobs.ArtifactCustomFields,
	jobs.ArtifactUsers,
	jobs.ArtifactBoardColumns,
	jobs.ArtifactWikiPages,
	jobs.ArtifactQueries,
	jobs.ArtifactAllMetadata,
)

// Config tunes extraction runs.
type Config struct {
	BatchPause        time.Duration // Sleep between batches.
	WorkItemBatchSize int           // Work items per workitemsbatch call, at most 200.
	CommitTop         int           // Commits read per repository.
	CloseTimeout      time.Duration // Bound on releasing a connector.
}

// DefaultConfig returns the default extraction configuration.
func DefaultConfig() Config {
	return Config{
		BatchPause:        500 * time.Millisecond,
		WorkItemBatchSize: 100,
		CommitTop:         100,
		CloseTimeout:      5 * time.Second,
	}
}

// ConfigFrom derives the extraction configuration from the server
// configuration. Zero values keep their defaults.
func ConfigFrom(cfg *config.Config) Config {
	out := DefaultConfig()
	out.BatchPause = cfg.Extraction.BatchPause
	if cfg.Extraction.WorkItemBatchSize > 0 {
		out.WorkItemBatchSize = cfg.Extraction.WorkItemBatchSize
	}
	if cfg.Extraction.CommitTop > 0 {
		out.CommitTop = cfg.Extraction.CommitTop
	}
	if cfg.ADO.CloseTimeout > 0 {
		out.CloseTimeout = cfg.ADO.CloseTimeout
	}
	return out
}

// Engine starts extraction jobs and runs them on a jobs.Registry.
type Engine struct {
	store    *store.Store
	jobs     *jobs.JobStore
	registry *jobs.Registry
	sources  SourceFactory
	richText *RichText
	cfg      Config
	logger   *slog.Logger

	batchPause atomic.Int64
}

var _ jobs.Starter = (*Engine)(nil)

// New creates an Engine.
func New(st *store.Store, js *jobs.JobStore, registry *jobs.Registry, sources SourceFactory, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.WorkItemBatchSize <= 0 || cfg.WorkItemBatchSize > ado.MaxWorkItemBatch {
		cfg.WorkItemBatchSize = DefaultConfig().WorkItemBatchSize
	}
	if cfg.CommitTop <= 0 {
		cfg.CommitTop = DefaultConfig().CommitTop
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = DefaultConfig().CloseTimeout
	}
	e := &Engine{
		store:    st,
		jobs:     js,
		registry: registry,
		sources:  sources,
		richText: NewRichText(),
		cfg:      cfg,
		logger:   logger.With("component", "extract"),
	}
	e.SetBatchPause(cfg.BatchPause)
	return e
}

// SetBatchPause changes the inter-batch pause of runs started from now on
// and of batches not yet begun.
func (e *Engine) SetBatchPause(d time.Duration) {
	if d < 0 {
		d = 0
	}
	e.batchPause.Store(int64(d))
}

// Start creates a job for (projectID, artifactType) and launches it. When a
// job for the pair is already pending or running, that job is returned and
// nothing new is launched.
func (e *Engine) Start(ctx context.Context, projectID uint, artifactType jobs.ArtifactType) (*jobs.ExtractionJob, error) {
	if !ArtifactTypes.Contains(artifactType) {
		return nil, fmt.Errorf("%q: %w", artifactType, ErrUnknownArtifactType)
	}
	project, err := e.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	job, created, err := e.jobs.Create(ctx, projectID, artifactType)
	if err != nil {
		return nil, err
	}
	if !created {
		return job, nil
	}

	if err := e.store.MarkExtracting(ctx, projectID); err != nil {
		e.logger.Warn("failed to mark project in progress", "projectID", projectID, "error", err)
	}

	if err := e.registry.Launch(job.ID, func(runCtx context.Context) {
		e.run(runCtx, job.ID, project, artifactType)
	}); err != nil {
		if failErr := e.jobs.Fail(ctx, job.ID, err.Error()); failErr != nil {
			e.logger.Error("failed to record launch failure", "jobID", job.ID, "error", failErr)
		}
		return nil, fmt.Errorf("launch job: %w", err)
	}

	e.logger.Info("extraction started", "jobID", job.ID, "projectID", projectID, "artifactType", artifactType)
	return job, nil
}

// run executes one job to a terminal state. Bookkeeping writes use a context
// that survives cancellation so a canceled job is still recorded as failed.
func (e *Engine) run(ctx context.Context, jobID string, project *store.Project, artifactType jobs.ArtifactType) {
	bctx := context.WithoutCancel(ctx)
	logger := e.logger.With("jobID", jobID, "projectID", project.ID, "artifactType", artifactType)

	err := e.store.DB().WithContext(bctx).Connection(func(conn *gorm.DB) error {
		r := &run{
			e:        e,
			jobID:    jobID,
			project:  project,
			store:    e.store.WithDB(conn),
			jobs:     e.jobs.WithDB(conn),
			bctx:     bctx,
			logger:   logger,
			counts:   map[string]int{},
			richText: e.richText,
		}
		return r.execute(ctx, artifactType)
	})
	if err != nil {
		logger.Error("extraction ended with a bookkeeping error", "error", err)
	}
}

// run is the state of one job execution.
type run struct {
	e        *Engine
	jobID    string
	project  *store.Project
	src      Source
	store    *store.Store
	jobs     *jobs.JobStore
	bctx     context.Context
	logger   *slog.Logger
	richText *RichText

	total     int
	extracted int
	warnings  int
	counts    map[string]int

	// nested suppresses per-record job progress while a composite job
	// runs its parts.
	nested bool
}

func (r *run) execute(ctx context.Context, artifactType jobs.ArtifactType) error {
	if err := r.jobs.Start(r.bctx, r.jobID); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return r.fail(ctx, ctx.Err())
	}

	src, err := r.openSource(ctx)
	if err != nil {
		return r.fail(ctx, err)
	}
	r.src = src
	defer r.closeSource()

	strategy, ok := strategyFor(artifactType)
	if !ok {
		return r.fail(ctx, fmt.Errorf("%q: %w", artifactType, ErrUnknownArtifactType))
	}
	r.info(fmt.Sprintf("Starting %s extraction for project %s", artifactType, r.project.Name), nil)

	runErr := strategy(ctx, r)
	if len(r.counts) > 0 {
		if err := r.store.SetProjectCounts(r.bctx, r.project.ID, r.counts); err != nil {
			r.logger.Error("failed to update project counts", "error", err)
		}
	}
	if runErr != nil {
		return r.fail(ctx, runErr)
	}

	if err := r.jobs.Complete(r.bctx, r.jobID, r.extracted, r.total); err != nil {
		return err
	}
	r.info(fmt.Sprintf("Extraction completed: %d of %d items", r.extracted, r.total),
		map[string]any{"extracted": r.extracted, "total": r.total, "warnings": r.warnings})
	r.logger.Info("extraction completed", "extracted", r.extracted, "total", r.total, "warnings", r.warnings)
	return nil
}

// fail records err as the job outcome. Cancellation is reported with a fixed
// message whatever error surfaced from the canceled call.
func (r *run) fail(ctx context.Context, err error) error {
	msg := err.Error()
	if ctx.Err() != nil {
		msg = jobs.CanceledMessage
	}
	if failErr := r.jobs.Fail(r.bctx, r.jobID, msg); failErr != nil {
		if errors.Is(failErr, jobs.ErrJobTerminal) {
			return nil
		}
		return failErr
	}
	r.errorLog("Extraction failed: "+msg, map[string]any{"error": err.Error()})
	r.logger.Error("extraction failed", "error", err)
	return nil
}

// openSource resolves the project's connection, falling back to the newest
// active one, and builds a connector for it.
func (r *run) openSource(ctx context.Context) (Source, error) {
	var conn *store.Connection
	var err error
	if r.project.ConnectionID != nil {
		conn, err = r.store.GetConnection(ctx, *r.project.ConnectionID)
		if err == nil && !conn.IsActive {
			err = fmt.Errorf("connection %d is inactive", conn.ID)
		}
	} else {
		conn, err = r.store.LatestActiveConnection(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionNotFound, err)
	}
	token, err := r.store.Token(conn)
	if err != nil {
		return nil, fmt.Errorf("unseal token of connection %d: %w", conn.ID, err)
	}
	src, err := r.e.sources(conn, token)
	if err != nil {
		return nil, fmt.Errorf("build connector: %w", err)
	}
	return src, nil
}

func (r *run) closeSource() {
	ctx, cancel := context.WithTimeout(r.bctx, r.e.cfg.CloseTimeout)
	defer cancel()
	if err := r.src.Close(ctx); err != nil {
		r.logger.Warn("connector did not close in time", "error", err)
	}
}

func (r *run) log(level jobs.Level, msg string, details map[string]any) {
	if err := r.jobs.AppendLog(r.bctx, r.jobID, level, msg, details); err != nil {
		r.logger.Error("failed to write job log", "error", err)
	}
}

func (r *run) info(msg string, details map[string]any)     { r.log(jobs.LevelInfo, msg, details) }
func (r *run) errorLog(msg string, details map[string]any) { r.log(jobs.LevelError, msg, details) }

// warn records a per-item failure. The run carries on.
func (r *run) warn(msg string, err error, details map[string]any) {
	if details == nil {
		details = map[string]any{}
	}
	details["error"] = err.Error()
	r.warnings++
	r.log(jobs.LevelWarning, msg, details)
	r.logger.Warn(msg, "error", err)
}

func (r *run) setTotal(n int) error {
	if r.nested {
		return nil
	}
	r.total = n
	return r.jobs.SetTotal(r.bctx, r.jobID, n)
}

// progress records that k of n items are done.
func (r *run) progress(k, n int) error {
	if r.nested {
		return nil
	}
	r.extracted = k
	pct := 100
	if n > 0 {
		pct = k * 100 / n
	}
	return r.jobs.UpdateProgress(r.bctx, r.jobID, k, pct)
}

// batched walks n items in batches of size, strictly in order. fn handles
// items [lo, hi); its own failures are expected to be logged by fn and not
// stop the walk. Progress and an INFO row are written after every batch.
func (r *run) batched(ctx context.Context, n, size int, label string, fn func(lo, hi int)) error {
	if err := r.setTotal(n); err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	if size <= 0 {
		size = 1
	}
	batches := (n + size - 1) / size
	for b, lo := 0, 0; lo < n; b, lo = b+1, lo+size {
		if err := ctx.Err(); err != nil {
			return err
		}
		hi := min(lo+size, n)
		fn(lo, hi)
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.progress(hi, n); err != nil {
			return err
		}
		r.info(fmt.Sprintf("Extracted %d of %d %s", hi, n, label),
			map[string]any{"batch": b + 1, "batches": batches, "extracted": hi, "total": n})
		r.logger.Info("batch extracted", "label", label, "batch", b+1, "batches", batches, "extracted", hi, "total", n)
		if hi < n {
			if err := r.pause(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *run) pause(ctx context.Context) error {
	d := time.Duration(r.e.batchPause.Load())
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
