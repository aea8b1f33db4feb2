package analyzer

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	apperrors "go-damage-assessor/internal/errors"
	"go-damage-assessor/internal/logger"
	"go-damage-assessor/pkg/models"
	"go-damage-assessor/pkg/services"
	"go-damage-assessor/pkg/validation"
)

// Pipeline checkpoints
const (
	progressDecoded     = 10
	progressNormalized  = 15
	progressChangeMask  = 20
	progressCandidates  = 25
	progressClassifying = 30
	progressClassified  = 80
	progressScored      = 90
)

// pipeline implements Pipeline and orchestrates every stage of a comparison
type pipeline struct {
	classifiers []Classifier
	metrics     MetricsCalculator
	quality     *validation.QualityValidator
	reports     *services.ReportService
}

// DefaultClassifiers returns the five damage passes sharing one calculator
func DefaultClassifiers(metrics MetricsCalculator) []Classifier {
	if metrics == nil {
		metrics = NewMetricsCalculator()
	}
	return []Classifier{
		NewGenericClassifier(metrics),
		NewBuildingDetector(metrics),
		NewRoadDetector(metrics),
		NewFloodDetector(metrics),
		NewVegetationDetector(metrics),
	}
}

// NewPipeline creates a pipeline; with no classifiers the default set is used
func NewPipeline(classifiers ...Classifier) Pipeline {
	metrics := NewMetricsCalculator()
	if len(classifiers) == 0 {
		classifiers = DefaultClassifiers(metrics)
	}
	return &pipeline{
		classifiers: classifiers,
		metrics:     metrics,
		quality:     validation.NewQualityValidator(),
		reports:     services.NewReportService(),
	}
}

// Run executes preprocess, extract, classify and score in order
func (pl *pipeline) Run(ctx context.Context, before, after []byte, opts AnalysisOptions, sink ProgressSink) (*models.AnalysisResult, error) {
	start := time.Now()
	progress := newProgressReporter(sink)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	beforeImg, err := DecodeImage(before, "before")
	if err != nil {
		return nil, err
	}
	afterImg, err := DecodeImage(after, "after")
	if err != nil {
		return nil, err
	}
	progress.report(progressDecoded, "Images decoded")

	p, err := PreprocessImages(beforeImg, afterImg, opts.Tuning.BlurKernelSize)
	if err != nil {
		return nil, err
	}
	defer p.Close()
	progress.report(progressNormalized, "Images normalized")

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	changes := ExtractChanges(p, opts.Tuning)
	defer changes.Close()
	progress.report(progressChangeMask, fmt.Sprintf("Change mask computed (%.2f%% changed)", changes.ChangedPercentage))
	progress.report(progressCandidates, fmt.Sprintf("%d candidate regions extracted", len(changes.Candidates)))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	in := &ClassifierInput{Images: p, Candidates: changes.Candidates, Options: opts}
	progress.report(progressClassifying, "Running damage classifiers")
	outputs := pl.classify(ctx, in, progress)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &models.AnalysisResult{
		AnalysisLevel:     opts.Level,
		DisasterType:      opts.DeclaredType,
		Width:             p.Width,
		Height:            p.Height,
		Resampled:         p.Resampled,
		ChangedPercentage: changes.ChangedPercentage,
		DamageRegions:     []models.Region{},
		BuildingDamage:    []models.Region{},
		RoadDamage:        []models.Region{},
		FloodAreas:        []models.Region{},
		VegetationLoss:    []models.Region{},
	}
	for _, out := range outputs {
		assignRegions(result, out)
	}

	result.SeverityScore = ScoreSeverity(result.ChangedPercentage,
		result.DamageRegions, result.BuildingDamage, result.RoadDamage,
		len(result.FloodAreas), len(result.VegetationLoss))
	result.Overview = BuildOverview(result)

	estimate := EstimateDisaster(p, pl.metrics)
	result.Assessment = pl.reports.Assess(result, models.SceneAssessment{
		EstimatedDisaster:   estimate.Type,
		EstimateConfidence:  estimate.Confidence,
		BlueIncrease:        round2(estimate.Signals.BlueIncrease),
		WarmIncrease:        round2(estimate.Signals.WarmIncrease),
		EdgeChangeRatio:     round2(estimate.Signals.EdgeChangeRatio),
		MeanIntensityChange: round2(estimate.Signals.MeanIntensityChange),
	})

	result.Warnings = pl.inputWarnings(p, beforeImg.Bounds(), afterImg.Bounds())
	if opts.IncludeDiagnostics {
		diag, err := BuildDiagnostics(changes, opts.Tuning.DiffThreshold)
		if err != nil {
			logger.WithError(err).Warn("Diagnostics rendering failed")
			result.Warnings = append(result.Warnings, "diagnostics could not be rendered")
		} else {
			result.Diagnostics = diag
		}
	}
	progress.report(progressScored, fmt.Sprintf("Severity scored (%.1f)", result.SeverityScore))

	result.ProcessingTimeSec = time.Since(start).Seconds()
	result.CreatedAt = time.Now().UTC()
	return result, nil
}

// classify fans the classifiers out under a concurrency limit. A failing or
// panicking classifier contributes an empty list; siblings keep running.
func (pl *pipeline) classify(ctx context.Context, in *ClassifierInput, progress *progressReporter) []classifierOutput {
	outputs := make([]classifierOutput, len(pl.classifiers))

	limit := in.Options.Tuning.ClassifierConcurrency
	if limit <= 0 {
		limit = len(pl.classifiers)
	}

	var g errgroup.Group
	g.SetLimit(limit)

	var mu sync.Mutex
	completed := 0
	span := progressClassified - progressClassifying

	for i, c := range pl.classifiers {
		i, c := i, c
		g.Go(func() error {
			start := time.Now()
			regions, err := runClassifier(ctx, c, in)
			if err != nil {
				if ctx.Err() == nil {
					stageErr := apperrors.NewPipelineStageError(c.Name(), err)
					logger.WithFields(logrus.Fields{
						"classifier": c.Name(),
						"stage":      "classify",
					}).WithError(stageErr).Warn("Classifier failed, continuing without its regions")
				}
				regions = []models.Region{}
			}
			outputs[i] = classifierOutput{category: c.Category(), regions: regions}

			mu.Lock()
			completed++
			pct := progressClassifying + completed*span/len(pl.classifiers)
			mu.Unlock()
			progress.report(pct, fmt.Sprintf("%s classifier finished (%d regions)", c.Name(), len(regions)))

			logger.WithFields(logrus.Fields{
				"classifier":  c.Name(),
				"regions":     len(regions),
				"duration_ms": time.Since(start).Milliseconds(),
			}).Debug("Classifier completed")
			return nil
		})
	}
	_ = g.Wait()
	return outputs
}

func runClassifier(ctx context.Context, c Classifier, in *ClassifierInput) (regions []models.Region, err error) {
	defer func() {
		if r := recover(); r != nil {
			regions, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	regions, err = c.Classify(ctx, in)
	if err != nil {
		return nil, err
	}
	bounds := in.Bounds()
	valid := regions[:0]
	for _, r := range regions {
		if r.Area > 0 && r.Confidence >= 0 && r.Confidence <= 1 && r.BBox.Within(bounds.Dx(), bounds.Dy()) {
			valid = append(valid, r)
		}
	}
	if valid == nil {
		valid = []models.Region{}
	}
	return valid, nil
}

func assignRegions(res *models.AnalysisResult, out classifierOutput) {
	switch out.category {
	case models.CategoryGeneric:
		res.DamageRegions = append(res.DamageRegions, out.regions...)
	case models.CategoryBuilding:
		res.BuildingDamage = append(res.BuildingDamage, out.regions...)
	case models.CategoryRoad:
		res.RoadDamage = append(res.RoadDamage, out.regions...)
	case models.CategoryFlood:
		res.FloodAreas = append(res.FloodAreas, out.regions...)
	case models.CategoryVegetation:
		res.VegetationLoss = append(res.VegetationLoss, out.regions...)
	}
}

func (pl *pipeline) inputWarnings(p *Preprocessed, beforeBounds, afterBounds image.Rectangle) []string {
	var issues []validation.QualityIssue
	issues = append(issues, pl.quality.ValidateInput(validation.ImageQualityMetrics{
		Label:        "before",
		Width:        beforeBounds.Dx(),
		Height:       beforeBounds.Dy(),
		Brightness:   p.BeforeGray.Mean().Val1,
		LaplacianVar: pl.metrics.LaplacianVariance(p.BeforeGray),
	})...)
	issues = append(issues, pl.quality.ValidateInput(validation.ImageQualityMetrics{
		Label:        "after",
		Width:        afterBounds.Dx(),
		Height:       afterBounds.Dy(),
		Brightness:   p.AfterGray.Mean().Val1,
		LaplacianVar: pl.metrics.LaplacianVariance(p.AfterGray),
	})...)

	warnings := pl.quality.ConvertIssuesToMessages(issues)
	if p.Resampled {
		warnings = append(warnings, fmt.Sprintf("after image resampled from %dx%d to %dx%d",
			afterBounds.Dx(), afterBounds.Dy(), p.Width, p.Height))
	}
	return warnings
}

// Close releases pipeline resources
func (pl *pipeline) Close() error {
	return nil
}

// progressReporter forwards checkpoints to a sink, never letting the value
// go backwards
type progressReporter struct {
	mu   sync.Mutex
	sink ProgressSink
	last int
}

func newProgressReporter(sink ProgressSink) *progressReporter {
	return &progressReporter{sink: sink}
}

func (r *progressReporter) report(progress int, message string) {
	if r.sink == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if progress < r.last {
		progress = r.last
	}
	r.last = progress
	r.sink(progress, message)
}
