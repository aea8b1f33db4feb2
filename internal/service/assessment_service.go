package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"go-damage-assessor/internal/analyzer"
	apperrors "go-damage-assessor/internal/errors"
	"go-damage-assessor/internal/logger"
	"go-damage-assessor/internal/observer"
	"go-damage-assessor/internal/repository"
	"go-damage-assessor/pkg/config"
	"go-damage-assessor/pkg/models"
	"go-damage-assessor/pkg/validation"
)

// Service-side checkpoints around the pipeline's own
const (
	progressLoading    = 5
	progressPersisting = 95
)

// AssessmentService runs before/after comparisons and owns the job lifecycle
type AssessmentService interface {
	// Submit validates the request, registers a queued job and schedules it
	Submit(ctx context.Context, req models.AnalyzeRequest) (*models.AnalysisJob, error)

	// AnalyzeSync runs the same stages on the caller's goroutine
	AnalyzeSync(ctx context.Context, req models.AnalyzeRequest) (*models.AnalysisResult, error)

	GetStatus(ctx context.Context, jobID string) (*models.AnalysisJob, error)
	GetResult(ctx context.Context, jobID string) (*models.AnalysisResult, error)
	DeleteResult(ctx context.Context, jobID string) error
	LatestResult(ctx context.Context) (*models.AnalysisResult, error)

	Stats() analyzer.PoolStats

	// Close stops accepting jobs, cancels running ones and waits for workers
	Close() error
}

// Dependencies are the collaborators the service is wired with
type Dependencies struct {
	Images   repository.ImageRepository
	Results  repository.ResultRepository
	Jobs     repository.JobRegistry
	Pipeline analyzer.Pipeline
	Events   *observer.EventPublisher
}

// Options tune scheduling and timeouts
type Options struct {
	Workers         int
	QueueSize       int
	AnalysisTimeout time.Duration
	FetchTimeout    time.Duration
	Tuning          *config.AnalysisConfig
}

type assessmentService struct {
	images    repository.ImageRepository
	results   repository.ResultRepository
	jobs      repository.JobRegistry
	pipeline  analyzer.Pipeline
	events    *observer.EventPublisher
	pool      *analyzer.WorkerPool
	validator *validation.RequestValidator
	tuning    *config.AnalysisConfig

	analysisTimeout time.Duration
	fetchTimeout    time.Duration

	baseCtx context.Context
	cancel  context.CancelFunc
	newID   func() string
}

// NewAssessmentService creates the service and starts its worker pool
func NewAssessmentService(deps Dependencies, opts Options) AssessmentService {
	if opts.Tuning == nil {
		opts.Tuning = config.Default()
	}
	if opts.AnalysisTimeout <= 0 {
		opts.AnalysisTimeout = 2 * time.Minute
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 15 * time.Second
	}
	if deps.Jobs == nil {
		deps.Jobs = repository.NewMemoryJobRegistry()
	}
	if deps.Pipeline == nil {
		deps.Pipeline = analyzer.NewPipeline()
	}
	if deps.Events == nil {
		deps.Events = observer.NewEventPublisher()
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	pool := analyzer.NewWorkerPool(opts.Workers, opts.QueueSize)
	pool.Start()

	return &assessmentService{
		images:          deps.Images,
		results:         deps.Results,
		jobs:            deps.Jobs,
		pipeline:        deps.Pipeline,
		events:          deps.Events,
		pool:            pool,
		validator:       validation.NewRequestValidator(opts.Tuning.DefaultLevel),
		tuning:          opts.Tuning,
		analysisTimeout: opts.AnalysisTimeout,
		fetchTimeout:    opts.FetchTimeout,
		baseCtx:         baseCtx,
		cancel:          cancel,
		newID:           uuid.NewString,
	}
}

func (s *assessmentService) Submit(ctx context.Context, req models.AnalyzeRequest) (*models.AnalysisJob, error) {
	if err := s.validator.ValidateAnalyzeRequest(&req); err != nil {
		return nil, err
	}
	if err := s.baseCtx.Err(); err != nil {
		return nil, apperrors.NewUnavailableError("service is shutting down", err)
	}

	// Missing images are reported before any job exists
	for _, id := range []string{req.BeforeImageID, req.AfterImageID} {
		if err := s.ensureImage(ctx, id); err != nil {
			return nil, err
		}
	}

	job := models.AnalysisJob{
		ID:            s.newID(),
		BeforeImageID: req.BeforeImageID,
		AfterImageID:  req.AfterImageID,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, apperrors.NewInternalError("failed to register job", err)
	}

	if !s.pool.Submit(func() { s.runJob(job.ID, req) }) {
		_ = s.jobs.Fail(ctx, job.ID, "rejected: job queue is full")
		_ = s.jobs.Delete(ctx, job.ID)
		s.publish(observer.JobEvent{
			EventType:     observer.JobRejected,
			JobID:         job.ID,
			BeforeImageID: job.BeforeImageID,
			AfterImageID:  job.AfterImageID,
		})
		return nil, apperrors.NewUnavailableError("analysis queue is full, retry later", nil)
	}

	queued, err := s.jobs.Get(ctx, job.ID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to read job", err)
	}
	s.publish(observer.JobEvent{
		EventType:     observer.JobQueued,
		JobID:         job.ID,
		BeforeImageID: job.BeforeImageID,
		AfterImageID:  job.AfterImageID,
	})
	return &queued, nil
}

func (s *assessmentService) ensureImage(ctx context.Context, id string) error {
	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	ok, err := s.images.Exists(fetchCtx, id)
	if err != nil {
		return mapImageError(id, err)
	}
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("image %q not found", id), repository.ErrImageNotFound)
	}
	return nil
}

// runJob executes on a worker and always ends the job in a terminal state
func (s *assessmentService) runJob(jobID string, req models.AnalyzeRequest) {
	log := logger.ForJob(jobID)
	ctx, cancel := context.WithTimeout(s.baseCtx, s.analysisTimeout)
	defer cancel()

	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		log.WithError(err).Error("Queued job disappeared from registry")
		return
	}
	if ctx.Err() != nil {
		s.failJob(jobID, job, false, 0, ctx.Err())
		return
	}

	start := time.Now()
	if err := s.jobs.Start(ctx, jobID, "Loading images"); err != nil {
		log.WithError(err).Error("Failed to start job")
		return
	}
	_ = s.jobs.UpdateProgress(ctx, jobID, progressLoading, "Loading images")
	s.publish(observer.JobEvent{
		EventType:     observer.JobStarted,
		JobID:         jobID,
		BeforeImageID: job.BeforeImageID,
		AfterImageID:  job.AfterImageID,
		Progress:      progressLoading,
		QueueLag:      start.Sub(job.CreatedAt),
	})

	sink := func(progress int, message string) {
		if err := s.jobs.UpdateProgress(ctx, jobID, progress, message); err != nil {
			log.WithError(err).Debug("Progress update rejected")
			return
		}
		s.publish(observer.JobEvent{
			EventType: observer.JobProgress,
			JobID:     jobID,
			Progress:  progress,
			Message:   message,
		})
	}

	result, err := s.execute(ctx, jobID, req, sink)
	if err != nil {
		s.failJob(jobID, job, true, time.Since(start), err)
		return
	}

	sink(progressPersisting, "Persisting result")
	if err := s.results.Save(ctx, jobID, result); err != nil {
		s.failJob(jobID, job, true, time.Since(start), apperrors.NewPersistenceError("failed to persist result", err))
		return
	}
	if err := s.jobs.Complete(ctx, jobID, "Analysis complete"); err != nil {
		log.WithError(err).Error("Failed to mark job completed")
		return
	}

	s.publish(observer.JobEvent{
		EventType:      observer.JobCompleted,
		JobID:          jobID,
		BeforeImageID:  job.BeforeImageID,
		AfterImageID:   job.AfterImageID,
		Progress:       100,
		ProcessingTime: time.Since(start),
		Success:        true,
		SeverityScore:  result.SeverityScore,
		RegionCounts:   regionCounts(result),
	})
}

func (s *assessmentService) failJob(jobID string, job models.AnalysisJob, started bool, elapsed time.Duration, cause error) {
	message := failureMessage(cause)
	// The job context may already be cancelled; the registry update must still land
	if err := s.jobs.Fail(context.Background(), jobID, message); err != nil {
		logger.ForJob(jobID).WithError(err).Error("Failed to mark job failed")
	}

	current, _ := s.jobs.Get(context.Background(), jobID)
	s.publish(observer.JobEvent{
		EventType:      observer.JobFailed,
		JobID:          jobID,
		BeforeImageID:  job.BeforeImageID,
		AfterImageID:   job.AfterImageID,
		Progress:       current.Progress,
		ProcessingTime: elapsed,
		ErrorMessage:   message,
		WasProcessing:  started,
	})
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "analysis cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "analysis timed out"
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Cause != nil {
			return fmt.Sprintf("%s: %v", appErr.Message, appErr.Cause)
		}
		return appErr.Message
	}
	return err.Error()
}

// execute loads both images and runs the pipeline
func (s *assessmentService) execute(ctx context.Context, jobID string, req models.AnalyzeRequest, sink analyzer.ProgressSink) (*models.AnalysisResult, error) {
	before, err := s.loadImage(ctx, req.BeforeImageID)
	if err != nil {
		return nil, err
	}
	after, err := s.loadImage(ctx, req.AfterImageID)
	if err != nil {
		return nil, err
	}

	opts := analyzer.OptionsFromConfig(s.tuning).
		WithLevel(req.AnalysisLevel).
		WithDisasterType(req.DisasterType)
	if req.IncludeDiagnostics {
		opts = opts.WithDiagnostics()
	}

	result, err := s.pipeline.Run(ctx, before, after, opts, sink)
	if err != nil {
		return nil, err
	}
	result.JobID = jobID
	result.BeforeImageID = req.BeforeImageID
	result.AfterImageID = req.AfterImageID
	result.Location = req.Location
	return result, nil
}

func (s *assessmentService) loadImage(ctx context.Context, id string) ([]byte, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	data, err := s.images.Get(fetchCtx, id)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, mapImageError(id, err)
	}
	return data, nil
}

func (s *assessmentService) AnalyzeSync(ctx context.Context, req models.AnalyzeRequest) (*models.AnalysisResult, error) {
	if err := s.validator.ValidateAnalyzeRequest(&req); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.analysisTimeout)
	defer cancel()

	jobID := s.newID()
	start := time.Now()
	result, err := s.execute(ctx, jobID, req, nil)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewTimeoutError("analysis timed out", err)
		}
		return nil, err
	}
	if err := s.results.Save(ctx, jobID, result); err != nil {
		return nil, apperrors.NewPersistenceError("failed to persist result", err)
	}

	s.publish(observer.JobEvent{
		EventType:      observer.JobCompleted,
		JobID:          jobID,
		BeforeImageID:  req.BeforeImageID,
		AfterImageID:   req.AfterImageID,
		Progress:       100,
		ProcessingTime: time.Since(start),
		Success:        true,
		SeverityScore:  result.SeverityScore,
		RegionCounts:   regionCounts(result),
		Metadata:       map[string]interface{}{"mode": "sync"},
	})
	return result, nil
}

// GetStatus falls back to the result store so jobs completed before a
// restart still report Completed
func (s *assessmentService) GetStatus(ctx context.Context, jobID string) (*models.AnalysisJob, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err == nil {
		return &job, nil
	}
	if !errors.Is(err, repository.ErrJobNotFound) {
		return nil, apperrors.NewInternalError("failed to read job", err)
	}

	result, err := s.results.Load(ctx, jobID)
	if err != nil {
		return nil, mapResultError(jobID, err)
	}
	return &models.AnalysisJob{
		ID:            jobID,
		Status:        models.JobCompleted,
		Progress:      100,
		Message:       "Analysis complete",
		BeforeImageID: result.BeforeImageID,
		AfterImageID:  result.AfterImageID,
		CreatedAt:     result.CreatedAt,
		UpdatedAt:     result.CreatedAt,
	}, nil
}

func (s *assessmentService) GetResult(ctx context.Context, jobID string) (*models.AnalysisResult, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err == nil {
		switch job.Status {
		case models.JobFailed:
			return nil, apperrors.NewJobFailedError(fmt.Sprintf("analysis %s failed: %s", jobID, job.Message))
		case models.JobQueued, models.JobProcessing:
			return nil, apperrors.NewNotReadyError(
				fmt.Sprintf("analysis %s is %s (%d%%)", jobID, job.Status, job.Progress))
		}
	} else if !errors.Is(err, repository.ErrJobNotFound) {
		return nil, apperrors.NewInternalError("failed to read job", err)
	}

	result, err := s.results.Load(ctx, jobID)
	if err != nil {
		return nil, mapResultError(jobID, err)
	}
	return result, nil
}

func (s *assessmentService) DeleteResult(ctx context.Context, jobID string) error {
	job, jobErr := s.jobs.Get(ctx, jobID)
	hasJob := jobErr == nil
	if hasJob && !job.Status.IsTerminal() {
		return apperrors.NewConflictError(fmt.Sprintf("analysis %s is still %s", jobID, job.Status), repository.ErrJobActive)
	}

	err := s.results.Delete(ctx, jobID)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrResultNotFound) && hasJob:
		// Failed jobs have no result; dropping the record is enough
	default:
		return mapResultError(jobID, err)
	}

	if hasJob {
		if err := s.jobs.Delete(ctx, jobID); err != nil && !errors.Is(err, repository.ErrJobNotFound) {
			return apperrors.NewConflictError("failed to delete job record", err)
		}
	}
	s.publish(observer.JobEvent{EventType: observer.ResultDeleted, JobID: jobID})
	return nil
}

func (s *assessmentService) LatestResult(ctx context.Context) (*models.AnalysisResult, error) {
	result, err := s.results.Latest(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrResultNotFound) {
			return nil, apperrors.NewNotFoundError("no completed analysis yet", err)
		}
		return nil, mapResultError("latest", err)
	}
	return result, nil
}

func (s *assessmentService) Stats() analyzer.PoolStats {
	return s.pool.GetStats()
}

func (s *assessmentService) Close() error {
	active := s.jobs.Active(context.Background())
	if len(active) > 0 {
		logger.ForComponent("assessment_service").
			WithField("active_jobs", len(active)).
			Info("Cancelling active analysis jobs")
	}
	s.cancel()
	s.pool.Close()
	s.events.Wait()
	return s.pipeline.Close()
}

func (s *assessmentService) publish(event observer.JobEvent) {
	s.events.NotifyObservers(context.Background(), event)
}

func regionCounts(res *models.AnalysisResult) map[string]int {
	return map[string]int{
		string(models.CategoryGeneric):    len(res.DamageRegions),
		string(models.CategoryBuilding):   len(res.BuildingDamage),
		string(models.CategoryRoad):       len(res.RoadDamage),
		string(models.CategoryFlood):      len(res.FloodAreas),
		string(models.CategoryVegetation): len(res.VegetationLoss),
	}
}

func mapImageError(id string, err error) error {
	switch {
	case errors.Is(err, repository.ErrImageNotFound):
		return apperrors.NewNotFoundError(fmt.Sprintf("image %q not found", id), err)
	case errors.Is(err, repository.ErrRepositoryUnavailable):
		return apperrors.NewUnavailableError("image store unavailable", err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError(fmt.Sprintf("timed out fetching image %q", id), err)
	}
	return apperrors.NewNetworkError(fmt.Sprintf("failed to fetch image %q", id), err)
}

func mapResultError(jobID string, err error) error {
	switch {
	case errors.Is(err, repository.ErrResultNotFound):
		return apperrors.NewNotFoundError(fmt.Sprintf("analysis %q not found", jobID), err)
	case errors.Is(err, repository.ErrRepositoryUnavailable):
		return apperrors.NewUnavailableError("result store unavailable", err)
	}
	return apperrors.NewPersistenceError("failed to load result", err)
}
