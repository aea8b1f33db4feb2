package analyzer

import (
	"context"

	"gocv.io/x/gocv"

	"go-damage-assessor/pkg/models"
)

// Pipeline runs the full before/after comparison
type Pipeline interface {
	// Run decodes both images and produces a scored result. sink may be nil.
	Run(ctx context.Context, before, after []byte, opts AnalysisOptions, sink ProgressSink) (*models.AnalysisResult, error)

	// Lifecycle management
	Close() error
}

// ProgressSink receives pipeline checkpoints. Values never decrease.
type ProgressSink func(progress int, message string)

// Classifier is one independent damage pass over the preprocessed images.
// Implementations must treat the input as read-only.
type Classifier interface {
	Name() string
	Category() models.Category
	Classify(ctx context.Context, in *ClassifierInput) ([]models.Region, error)
}

// MetricsCalculator computes the crop-level signals classifiers decide on
type MetricsCalculator interface {
	MeanAbsDifference(before, after gocv.Mat) float64
	ChannelAbsDifference(before, after gocv.Mat) [3]float64
	MeanSquaredError(beforeGray, afterGray gocv.Mat) float64
	TextureDifference(beforeGray, afterGray gocv.Mat) float64
	HistogramCorrelation(beforeHSV, afterHSV gocv.Mat) float64
	ChannelMeans(m gocv.Mat) [3]float64
	LaplacianVariance(gray gocv.Mat) float64
}
