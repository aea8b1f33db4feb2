package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go-damage-assessor/pkg/models"
)

// MemoryJobRegistry keeps job records in a lock-guarded map
type MemoryJobRegistry struct {
	mu   sync.RWMutex
	jobs map[string]*models.AnalysisJob
	now  func() time.Time
}

// NewMemoryJobRegistry creates an empty registry
func NewMemoryJobRegistry() *MemoryJobRegistry {
	return &MemoryJobRegistry{
		jobs: make(map[string]*models.AnalysisJob),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Create registers a queued job with progress 0
func (r *MemoryJobRegistry) Create(_ context.Context, job models.AnalysisJob) error {
	if job.ID == "" {
		return fmt.Errorf("create job: empty id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job.ID]; ok {
		return fmt.Errorf("create job %s: %w", job.ID, ErrJobExists)
	}
	now := r.now()
	job.Status = models.JobQueued
	job.Progress = 0
	if job.Message == "" {
		job.Message = "Queued for analysis"
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	r.jobs[job.ID] = &job
	return nil
}

// Get returns a copy of the job record
func (r *MemoryJobRegistry) Get(_ context.Context, id string) (models.AnalysisJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return models.AnalysisJob{}, fmt.Errorf("get job %s: %w", id, ErrJobNotFound)
	}
	return *job, nil
}

func (r *MemoryJobRegistry) Start(_ context.Context, id, message string) error {
	return r.transition(id, models.JobProcessing, -1, message)
}

// UpdateProgress only applies to processing jobs
func (r *MemoryJobRegistry) UpdateProgress(_ context.Context, id string, progress int, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return fmt.Errorf("update job %s: %w", id, ErrJobNotFound)
	}
	if job.Status != models.JobProcessing {
		return fmt.Errorf("update job %s in status %s: %w", id, job.Status, ErrInvalidTransition)
	}
	if progress > 100 {
		progress = 100
	}
	if progress > job.Progress {
		job.Progress = progress
	}
	if message != "" {
		job.Message = message
	}
	job.UpdatedAt = r.now()
	return nil
}

// Complete marks the job done at progress 100
func (r *MemoryJobRegistry) Complete(_ context.Context, id, message string) error {
	return r.transition(id, models.JobCompleted, 100, message)
}

// Fail marks the job failed, leaving progress at its last value
func (r *MemoryJobRegistry) Fail(_ context.Context, id, message string) error {
	return r.transition(id, models.JobFailed, -1, message)
}

func (r *MemoryJobRegistry) transition(id string, next models.JobStatus, progress int, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return fmt.Errorf("job %s: %w", id, ErrJobNotFound)
	}
	if !job.Status.CanTransitionTo(next) {
		return fmt.Errorf("job %s %s -> %s: %w", id, job.Status, next, ErrInvalidTransition)
	}
	job.Status = next
	if progress >= 0 {
		job.Progress = progress
	}
	if message != "" {
		job.Message = message
	}
	job.UpdatedAt = r.now()
	return nil
}

// Delete removes a terminal job
func (r *MemoryJobRegistry) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return fmt.Errorf("delete job %s: %w", id, ErrJobNotFound)
	}
	if !job.Status.IsTerminal() {
		return fmt.Errorf("delete job %s: %w", id, ErrJobActive)
	}
	delete(r.jobs, id)
	return nil
}

// Active lists non-terminal jobs oldest first
func (r *MemoryJobRegistry) Active(_ context.Context) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	active := make([]*models.AnalysisJob, 0)
	for _, job := range r.jobs {
		if !job.Status.IsTerminal() {
			active = append(active, job)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].CreatedAt.Equal(active[j].CreatedAt) {
			return active[i].ID < active[j].ID
		}
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})

	ids := make([]string, len(active))
	for i, job := range active {
		ids[i] = job.ID
	}
	return ids
}
