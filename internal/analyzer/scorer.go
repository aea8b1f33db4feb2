package analyzer

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"go-damage-assessor/pkg/models"
)

// severityWeights maps every severity label seen on generic, building and
// road regions to its contribution to the score
var severityWeights = map[string]float64{
	string(models.SeverityCritical): 10,
	string(models.SeverityHigh):     7,
	string(models.SeverityMedium):   4,
	string(models.SeverityLow):      1,

	string(models.BuildingCollapsed):        10,
	string(models.BuildingSeverelyDamaged):  7,
	string(models.BuildingPartiallyDamaged): 4,
	string(models.BuildingMinorDamage):      1,

	string(models.RoadSevere):   7,
	string(models.RoadModerate): 4,
	string(models.RoadMinor):    1,
}

// ScoreSeverity reduces a result to a single score in [0,10], rounded to one
// decimal. Label counts are log-dampened so many minor findings cannot
// dominate a few severe ones.
func ScoreSeverity(changedPct float64, generic, buildings, roads []models.Region, floodCount, vegetationCount int) float64 {
	counts := make(map[string]int)
	for _, group := range [][]models.Region{generic, buildings, roads} {
		for _, r := range group {
			if label := r.SeverityLabel(); label != "" {
				counts[label]++
			}
		}
	}

	sum := math.Min(changedPct*0.1, 10)
	for label, count := range counts {
		sum += severityWeights[label] * math.Log1p(float64(count))
	}
	sum += math.Min(float64(floodCount)*2, 10)
	sum += math.Min(float64(vegetationCount)*0.5, 5)

	score := math.Max(0, math.Min(sum/10, 10))
	return math.Round(score*10) / 10
}

// BuildOverview aggregates counts and distributions over a finished result
func BuildOverview(res *models.AnalysisResult) models.DamageOverview {
	ov := models.DamageOverview{
		KindCounts: make(map[models.DamageKind]int),
	}

	var confidences []float64
	for _, group := range res.AllRegions() {
		ov.TotalRegions += len(group)
		for _, r := range group {
			confidences = append(confidences, r.Confidence)
		}
	}
	if len(confidences) > 0 {
		ov.MeanConfidence = round2(stat.Mean(confidences, nil))
	}

	for _, r := range res.DamageRegions {
		if r.Generic == nil {
			continue
		}
		ov.KindCounts[r.Generic.Kind]++
		addSeverity(&ov.SeverityDistribution, r.Generic.Severity)
	}

	ov.Buildings.Total = len(res.BuildingDamage)
	for _, r := range res.BuildingDamage {
		if r.Building == nil {
			continue
		}
		switch r.Building.Severity {
		case models.BuildingCollapsed:
			ov.Buildings.Collapsed++
			addSeverity(&ov.SeverityDistribution, models.SeverityCritical)
		case models.BuildingSeverelyDamaged:
			ov.Buildings.SeverelyDamaged++
			addSeverity(&ov.SeverityDistribution, models.SeverityHigh)
		case models.BuildingPartiallyDamaged:
			ov.Buildings.PartiallyDamaged++
			addSeverity(&ov.SeverityDistribution, models.SeverityMedium)
		default:
			ov.Buildings.MinorDamage++
			addSeverity(&ov.SeverityDistribution, models.SeverityLow)
		}
	}

	ov.Roads.Total = len(res.RoadDamage)
	for _, r := range res.RoadDamage {
		if r.Road == nil {
			continue
		}
		switch r.Road.Severity {
		case models.RoadSevere:
			ov.Roads.Severe++
			addSeverity(&ov.SeverityDistribution, models.SeverityHigh)
		case models.RoadModerate:
			ov.Roads.Moderate++
			addSeverity(&ov.SeverityDistribution, models.SeverityMedium)
		default:
			ov.Roads.Minor++
			addSeverity(&ov.SeverityDistribution, models.SeverityLow)
		}
	}

	ov.FloodAreaCount = len(res.FloodAreas)
	for _, r := range res.FloodAreas {
		ov.FloodedPixels += r.Area
	}
	ov.VegetationLossCount = len(res.VegetationLoss)
	for _, r := range res.VegetationLoss {
		ov.VegetationLostPixels += r.Area
	}
	return ov
}

func addSeverity(b *models.SeverityBuckets, s models.GenericSeverity) {
	switch s {
	case models.SeverityCritical:
		b.Critical++
	case models.SeverityHigh:
		b.High++
	case models.SeverityMedium:
		b.Medium++
	default:
		b.Low++
	}
}
