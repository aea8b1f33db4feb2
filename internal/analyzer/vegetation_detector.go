package analyzer

import (
	"context"

	"go-damage-assessor/pkg/models"
)

type vegetationDetector struct {
	metrics MetricsCalculator
}

// NewVegetationDetector reports ground that is vegetation-colored before but
// not after
func NewVegetationDetector(metrics MetricsCalculator) Classifier {
	if metrics == nil {
		metrics = NewMetricsCalculator()
	}
	return &vegetationDetector{metrics: metrics}
}

func (v *vegetationDetector) Name() string              { return "vegetation" }
func (v *vegetationDetector) Category() models.Category { return models.CategoryVegetation }

func (v *vegetationDetector) Classify(ctx context.Context, in *ClassifierInput) ([]models.Region, error) {
	tuning := in.Options.Tuning

	lost := appearedMask(in.Images.AfterHSV, in.Images.BeforeHSV, vegetationRange, tuning.MorphKernelSize)
	defer lost.Close()

	areas := contourCandidates(lost, tuning.VegetationMinArea, in.Bounds())

	regions := make([]models.Region, 0, len(areas))
	for _, area := range areas {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		regions = append(regions, v.assess(in, area, len(regions)+1))
	}
	return regions, nil
}

func (v *vegetationDetector) assess(in *ClassifierInput, area Candidate, id int) models.Region {
	before := in.Images.BeforeHSV.Region(area.Rect)
	defer before.Close()

	saturation := v.metrics.ChannelMeans(before)[1]
	density := VegetationDensityFor(saturation)

	detail := &models.VegetationDetail{MeanSaturation: round2(saturation)}
	if in.Options.includes(models.LevelStandard) {
		detail.Density = density
	}
	if in.Options.includes(models.LevelDetailed) {
		detail.RecoveryEstimate = vegetationRecovery[density]
		detail.AreaSquareMeters = squareMeters(area.Area, in.Options.Tuning.MetersPerPixel)
	}

	return models.Region{
		ID:         id,
		Category:   models.CategoryVegetation,
		BBox:       models.BBoxFromRect(area.Rect),
		Area:       area.Area,
		Confidence: capConfidence(0.6+area.Area/50000, 0.95),
		Vegetation: detail,
	}
}
