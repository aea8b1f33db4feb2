package analyzer

import (
	"context"

	"go-damage-assessor/pkg/models"
)

type genericClassifier struct {
	metrics MetricsCalculator
}

// NewGenericClassifier types every extracted candidate with the kind cascade
func NewGenericClassifier(metrics MetricsCalculator) Classifier {
	if metrics == nil {
		metrics = NewMetricsCalculator()
	}
	return &genericClassifier{metrics: metrics}
}

func (g *genericClassifier) Name() string              { return "generic" }
func (g *genericClassifier) Category() models.Category { return models.CategoryGeneric }

func (g *genericClassifier) Classify(ctx context.Context, in *ClassifierInput) ([]models.Region, error) {
	regions := make([]models.Region, 0, len(in.Candidates))
	for _, cand := range in.Candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		regions = append(regions, g.classifyCandidate(in, cand, len(regions)+1))
	}
	return regions, nil
}

func (g *genericClassifier) classifyCandidate(in *ClassifierInput, cand Candidate, id int) models.Region {
	crops := cropImages(in.Images, cand.Rect)
	defer crops.Close()

	meanDiff := g.metrics.MeanAbsDifference(crops.Before, crops.After)
	beforeMeans := g.metrics.ChannelMeans(crops.Before)
	afterMeans := g.metrics.ChannelMeans(crops.After)

	signals := RegionSignals{
		Declared:             in.Options.DeclaredType,
		HistogramCorrelation: g.metrics.HistogramCorrelation(crops.BeforeHSV, crops.AfterHSV),
		BlueIncrease:         afterMeans[0] - beforeMeans[0],
		GreenDecrease:        beforeMeans[1] - afterMeans[1],
		RedIncrease:          afterMeans[2] - beforeMeans[2],
		TextureDifference:    g.metrics.TextureDifference(crops.BeforeGray, crops.AfterGray),
	}

	severity := GenericSeverityFor(meanDiff)
	detail := &models.GenericDetail{
		Kind:           ClassifyKind(signals),
		Severity:       severity,
		MeanDifference: round2(meanDiff),
	}

	if in.Options.includes(models.LevelStandard) {
		ch := g.metrics.ChannelAbsDifference(crops.Before, crops.After)
		change := [3]float64{round2(ch[0]), round2(ch[1]), round2(ch[2])}
		detail.MeanColorChange = &change
	}
	region := models.Region{
		ID:         id,
		Category:   models.CategoryGeneric,
		BBox:       models.BBoxFromRect(cand.Rect),
		Area:       cand.Area,
		Confidence: capConfidence(0.9+cand.Area/10000, 0.99),
		Generic:    detail,
	}
	if in.Options.includes(models.LevelDetailed) {
		detail.Signals = &models.ChangeSignals{
			HistogramCorrelation: round2(signals.HistogramCorrelation),
			BlueIncrease:         round2(signals.BlueIncrease),
			GreenDecrease:        round2(signals.GreenDecrease),
			RedIncrease:          round2(signals.RedIncrease),
			TextureDifference:    round2(signals.TextureDifference),
		}
		detail.RecoveryEstimate = genericRecovery[severity]
		detail.AreaSquareMeters = squareMeters(cand.Area, in.Options.Tuning.MetersPerPixel)
	}
	return region
}
