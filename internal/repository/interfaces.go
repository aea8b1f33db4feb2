package repository

import (
	"context"
	"io"

	"go-damage-assessor/pkg/models"
)

// ImageRepository defines the interface for raw image access
type ImageRepository interface {
	// Put stores the bytes and returns the new image id
	Put(ctx context.Context, data []byte) (string, error)

	// Get returns the stored bytes or ErrImageNotFound
	Get(ctx context.Context, id string) ([]byte, error)

	// Exists reports whether the id can be fetched
	Exists(ctx context.Context, id string) (bool, error)
}

// ReleaseImageStore closes stores that hold connections (those implementing
// io.Closer) and is a no-op for the rest
func ReleaseImageStore(store ImageRepository) error {
	if c, ok := store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// ResultRepository persists analysis results keyed by job id.
// Implementations other than the memory store survive a restart.
type ResultRepository interface {
	// Save stores or replaces the result of a job
	Save(ctx context.Context, jobID string, result *models.AnalysisResult) error

	// Load returns the result or ErrResultNotFound
	Load(ctx context.Context, jobID string) (*models.AnalysisResult, error)

	// Latest returns the most recently created result or ErrResultNotFound
	Latest(ctx context.Context) (*models.AnalysisResult, error)

	// Delete removes the result or returns ErrResultNotFound
	Delete(ctx context.Context, jobID string) error

	// Lifecycle management
	Close() error
}

// JobRegistry owns the status records of analysis jobs. Every method is
// safe for concurrent use and returns copies, never shared records.
type JobRegistry interface {
	Create(ctx context.Context, job models.AnalysisJob) error
	Get(ctx context.Context, id string) (models.AnalysisJob, error)

	// Start moves a queued job to processing
	Start(ctx context.Context, id, message string) error

	// UpdateProgress records a checkpoint; lower values keep the current one
	UpdateProgress(ctx context.Context, id string, progress int, message string) error

	Complete(ctx context.Context, id, message string) error

	// Fail marks a running job failed. A queued job may also fail directly
	// when it is cancelled before it starts.
	Fail(ctx context.Context, id, message string) error

	// Delete drops a terminal job; active jobs yield ErrJobActive
	Delete(ctx context.Context, id string) error

	// Active returns the ids of queued and processing jobs
	Active(ctx context.Context) []string
}
