package analyzer

import (
	"gocv.io/x/gocv"

	"go-damage-assessor/pkg/models"
)

// SceneSignals are whole-image statistics used to guess the disaster type
type SceneSignals struct {
	BlueIncrease        float64
	WarmIncrease        float64
	EdgeChangeRatio     float64
	MeanIntensityChange float64
}

// DisasterEstimate is the scene-level guess and its fixed confidence
type DisasterEstimate struct {
	Type       models.DisasterType
	Confidence float64
	Signals    SceneSignals
}

// EstimateDisaster inspects global color and edge shifts between the two
// images. It does not influence region detection.
func EstimateDisaster(p *Preprocessed, metrics MetricsCalculator) DisasterEstimate {
	if metrics == nil {
		metrics = NewMetricsCalculator()
	}
	before := metrics.ChannelMeans(p.Before)
	after := metrics.ChannelMeans(p.After)

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(p.BeforeGray, p.AfterGray, &diff)

	s := SceneSignals{
		BlueIncrease:        after[0] - before[0],
		WarmIncrease:        (after[1] + after[2]) - (before[1] + before[2]),
		EdgeChangeRatio:     edgeChangeRatio(p.BeforeGray, p.AfterGray),
		MeanIntensityChange: diff.Mean().Val1,
	}

	est := DisasterEstimate{Signals: s}
	switch {
	case s.BlueIncrease > 20 && s.MeanIntensityChange > 30:
		est.Type, est.Confidence = models.DisasterFlood, 0.7
	case s.WarmIncrease > 30:
		est.Type, est.Confidence = models.DisasterFire, 0.65
	case s.EdgeChangeRatio > 0.4:
		est.Type, est.Confidence = models.DisasterEarthquake, 0.6
	default:
		est.Type, est.Confidence = models.DisasterUnknown, 0.5
	}
	return est
}

// edgeChangeRatio is the share of pixels whose Canny edge state differs
// between the two images, in [0,1]
func edgeChangeRatio(beforeGray, afterGray gocv.Mat) float64 {
	e1, e2, diff := gocv.NewMat(), gocv.NewMat(), gocv.NewMat()
	defer e1.Close()
	defer e2.Close()
	defer diff.Close()
	gocv.Canny(beforeGray, &e1, 100, 200)
	gocv.Canny(afterGray, &e2, 100, 200)
	gocv.AbsDiff(e1, e2, &diff)

	total := diff.Rows() * diff.Cols()
	if total == 0 {
		return 0
	}
	return float64(gocv.CountNonZero(diff)) / float64(total)
}
