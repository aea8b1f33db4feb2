package analyzer

import (
	"context"
	"image"
	"math"

	"go-damage-assessor/pkg/models"
)

type roadDetector struct {
	metrics MetricsCalculator
}

// NewRoadDetector segments low-saturation gray surfaces in the before image
// and reports every damaged segment where they intersect a changed region
func NewRoadDetector(metrics MetricsCalculator) Classifier {
	if metrics == nil {
		metrics = NewMetricsCalculator()
	}
	return &roadDetector{metrics: metrics}
}

func (r *roadDetector) Name() string              { return "road" }
func (r *roadDetector) Category() models.Category { return models.CategoryRoad }

func (r *roadDetector) Classify(ctx context.Context, in *ClassifierInput) ([]models.Region, error) {
	if len(in.Candidates) == 0 {
		return []models.Region{}, nil
	}
	tuning := in.Options.Tuning

	mask := colorMask(in.Images.BeforeHSV, roadRange)
	defer mask.Close()
	cleanMask(&mask, tuning.MorphKernelSize)

	roads := contourCandidates(mask, tuning.RoadMinArea, in.Bounds())

	regions := make([]models.Region, 0)
	for _, road := range roads {
		for _, cand := range in.Candidates {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			segment := road.Rect.Intersect(cand.Rect)
			if segment.Empty() {
				continue
			}
			regions = append(regions, r.assess(in, segment, len(regions)+1))
		}
	}
	return regions, nil
}

func (r *roadDetector) assess(in *ClassifierInput, segment image.Rectangle, id int) models.Region {
	crops := cropImages(in.Images, segment)
	defer crops.Close()

	texture := r.metrics.TextureDifference(crops.BeforeGray, crops.AfterGray)
	severity := RoadSeverityFor(texture)
	area := float64(segment.Dx() * segment.Dy())
	mpp := in.Options.Tuning.MetersPerPixel

	detail := &models.RoadDetail{
		Severity:          severity,
		TextureDifference: round2(texture),
	}
	if in.Options.includes(models.LevelStandard) {
		detail.LengthMeters = round2(math.Max(float64(segment.Dx()), float64(segment.Dy())) * mpp)
	}
	if in.Options.includes(models.LevelDetailed) {
		detail.RecoveryEstimate = roadRecovery[severity]
		detail.AreaSquareMeters = squareMeters(area, mpp)
	}

	return models.Region{
		ID:         id,
		Category:   models.CategoryRoad,
		BBox:       models.BBoxFromRect(segment),
		Area:       area,
		Confidence: capConfidence(0.6+texture/200+area/100000, 0.95),
		Road:       detail,
	}
}
