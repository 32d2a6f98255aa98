package jobs

import (
	"time"

	"github.com/adomirror/adomirror/pkg/config"
)

// JobConfig controls job scheduling and stall detection.
type JobConfig struct {
	Concurrency     int           // Max concurrently running jobs. Default 4.
	StallWindow     time.Duration // Age after which an unowned in_progress job is auto-closed. Default 5m.
	ShutdownTimeout time.Duration // How long Shutdown waits for canceled jobs. Default 30s.
}

// DefaultJobConfig returns the default job configuration.
func DefaultJobConfig() *JobConfig {
	return &JobConfig{
		Concurrency:     4,
		StallWindow:     5 * time.Minute,
		ShutdownTimeout: 30 * time.Second,
	}
}

// JobConfigFrom derives the job configuration from the loaded server
// configuration. Zero values keep their defaults.
func JobConfigFrom(cfg config.ExtractionConfig) *JobConfig {
	out := DefaultJobConfig()
	if cfg.Concurrency > 0 {
		out.Concurrency = cfg.Concurrency
	}
	if cfg.StallWindow > 0 {
		out.StallWindow = cfg.StallWindow
	}
	return out
}
