package analyzer

import (
	"context"

	"go-damage-assessor/pkg/models"
)

type floodDetector struct {
	metrics MetricsCalculator
}

// NewFloodDetector reports ground that is water-colored after but not before
func NewFloodDetector(metrics MetricsCalculator) Classifier {
	if metrics == nil {
		metrics = NewMetricsCalculator()
	}
	return &floodDetector{metrics: metrics}
}

func (f *floodDetector) Name() string              { return "flood" }
func (f *floodDetector) Category() models.Category { return models.CategoryFlood }

func (f *floodDetector) Classify(ctx context.Context, in *ClassifierInput) ([]models.Region, error) {
	tuning := in.Options.Tuning

	flooded := appearedMask(in.Images.BeforeHSV, in.Images.AfterHSV, waterRange, tuning.MorphKernelSize)
	defer flooded.Close()

	areas := contourCandidates(flooded, tuning.FloodMinArea, in.Bounds())

	regions := make([]models.Region, 0, len(areas))
	for _, area := range areas {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		regions = append(regions, f.assess(in, area, len(regions)+1))
	}
	return regions, nil
}

func (f *floodDetector) assess(in *ClassifierInput, area Candidate, id int) models.Region {
	after := in.Images.After.Region(area.Rect)
	defer after.Close()

	meanBlue := f.metrics.ChannelMeans(after)[0]
	depth := WaterDepthFor(meanBlue)

	detail := &models.FloodDetail{MeanBlue: round2(meanBlue)}
	if in.Options.includes(models.LevelStandard) {
		detail.WaterDepth = depth
	}
	if in.Options.includes(models.LevelDetailed) {
		detail.FlowDirection = flowDirection(area.Rect, in.Bounds())
		detail.RecoveryEstimate = floodRecovery[depth]
		detail.AreaSquareMeters = squareMeters(area.Area, in.Options.Tuning.MetersPerPixel)
	}

	return models.Region{
		ID:         id,
		Category:   models.CategoryFlood,
		BBox:       models.BBoxFromRect(area.Rect),
		Area:       area.Area,
		Confidence: capConfidence(0.7+area.Area/50000, 0.95),
		Flood:      detail,
	}
}
