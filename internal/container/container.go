package container

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"go-damage-assessor/internal/analyzer"
	"go-damage-assessor/internal/config"
	"go-damage-assessor/internal/factory"
	"go-damage-assessor/internal/logger"
	"go-damage-assessor/internal/observer"
	"go-damage-assessor/internal/repository"
	"go-damage-assessor/internal/service"
	"go-damage-assessor/internal/transport"
	analysisconfig "go-damage-assessor/pkg/config"
)

// Container holds all application dependencies
type Container struct {
	config         *config.Config
	analysisConfig *analysisconfig.AnalysisConfig
	imageStore     repository.ImageRepository
	resultStore    repository.ResultRepository
	jobs           repository.JobRegistry
	events         *observer.EventPublisher
	metrics        *observer.Metrics
	service        service.AssessmentService
	handler        http.Handler
}

// NewContainer creates a new dependency injection container
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	logger.SetLevel(cfg.LogLevel)

	analysisCfg, err := analysisconfig.Load(cfg.AnalysisConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load analysis config: %w", err)
	}

	imageStore, resultStore, err := factory.OpenStores(ctx, factory.NewStoreFactory(cfg))
	if err != nil {
		return nil, err
	}

	metrics := observer.NewMetrics()
	events := observer.NewEventPublisher()
	events.Subscribe(observer.NewLoggingObserver(nil))
	events.Subscribe(observer.NewMetricsObserver(metrics))

	jobs := repository.NewMemoryJobRegistry()
	svc := service.NewAssessmentService(service.Dependencies{
		Images:   imageStore,
		Results:  resultStore,
		Jobs:     jobs,
		Pipeline: analyzer.NewPipeline(),
		Events:   events,
	}, service.Options{
		Workers:         cfg.MaxConcurrentJobs,
		QueueSize:       cfg.JobQueueSize,
		AnalysisTimeout: cfg.AnalysisTimeout,
		FetchTimeout:    cfg.ImageFetchTimeout,
		Tuning:          analysisCfg,
	})

	metrics.RegisterQueueGauges(
		func() float64 { return float64(svc.Stats().QueueLength) },
		func() float64 { return float64(svc.Stats().QueueCapacity) },
	)

	logger.WithFields(logrus.Fields{
		"image_store":  cfg.ImageStore.Driver,
		"result_store": cfg.ResultStore.Driver,
		"workers":      cfg.MaxConcurrentJobs,
		"queue_size":   cfg.JobQueueSize,
	}).Info("Dependencies initialized")

	return &Container{
		config:         cfg,
		analysisConfig: analysisCfg,
		imageStore:     imageStore,
		resultStore:    resultStore,
		jobs:           jobs,
		events:         events,
		metrics:        metrics,
		service:        svc,
		handler:        transport.NewHandler(svc, metrics, cfg),
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Service returns the assessment service
func (c *Container) Service() service.AssessmentService {
	return c.service
}

// ImageStore returns the configured image store
func (c *Container) ImageStore() repository.ImageRepository {
	return c.imageStore
}

// Close stops the workers, then releases both stores
func (c *Container) Close() error {
	return errors.Join(c.service.Close(), c.resultStore.Close(), repository.ReleaseImageStore(c.imageStore))
}
