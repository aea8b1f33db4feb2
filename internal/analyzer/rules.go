package analyzer

import "go-damage-assessor/pkg/models"

// Cascade thresholds
const (
	strongColorShift   = 30.0
	highTexture        = 30.0
	lowCorrelation     = 0.5
	veryLowCorrelation = 0.3
	moderateCorr       = 0.7
)

// RegionSignals are the inputs of the generic kind cascade
type RegionSignals struct {
	Declared             models.DisasterType
	HistogramCorrelation float64
	BlueIncrease         float64
	GreenDecrease        float64
	RedIncrease          float64
	TextureDifference    float64
}

// KindRule is one (predicate, outcome) step of the kind cascade
type KindRule struct {
	Name  string
	Match func(s RegionSignals) bool
	Kind  models.DamageKind
}

// KindCascade is evaluated top to bottom and stops at the first match.
// A declared flood or fire selects its rule regardless of the colour shift;
// declaring a type never removes a region.
var KindCascade = []KindRule{
	{
		Name: "flooding",
		Match: func(s RegionSignals) bool {
			return s.Declared == models.DisasterFlood || s.BlueIncrease > strongColorShift
		},
		Kind: models.KindFlooding,
	},
	{
		Name: "fire",
		Match: func(s RegionSignals) bool {
			return s.Declared == models.DisasterFire || s.RedIncrease > strongColorShift
		},
		Kind: models.KindFireDamage,
	},
	{
		Name: "collapse",
		Match: func(s RegionSignals) bool {
			return s.Declared == models.DisasterEarthquake && s.TextureDifference > highTexture
		},
		Kind: models.KindBuildingCollapse,
	},
	{
		Name: "structural",
		Match: func(s RegionSignals) bool {
			return s.TextureDifference > highTexture && s.HistogramCorrelation < lowCorrelation
		},
		Kind: models.KindStructuralDamage,
	},
	{
		Name: "vegetation",
		Match: func(s RegionSignals) bool {
			return s.GreenDecrease > strongColorShift
		},
		Kind: models.KindVegetationLoss,
	},
	{
		Name: "severe",
		Match: func(s RegionSignals) bool {
			return s.HistogramCorrelation < veryLowCorrelation
		},
		Kind: models.KindSevereDamage,
	},
	{
		Name: "surface",
		Match: func(s RegionSignals) bool {
			return s.HistogramCorrelation < moderateCorr
		},
		Kind: models.KindSurfaceDamage,
	},
}

// ClassifyKind runs the cascade; regions matching no rule are minor changes
func ClassifyKind(s RegionSignals) models.DamageKind {
	for _, rule := range KindCascade {
		if rule.Match(s) {
			return rule.Kind
		}
	}
	return models.KindMinorChange
}

// GenericSeverityFor tiers the mean absolute pixel difference of a crop
func GenericSeverityFor(meanDiff float64) models.GenericSeverity {
	switch {
	case meanDiff > 100:
		return models.SeverityCritical
	case meanDiff > 70:
		return models.SeverityHigh
	case meanDiff > 40:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// BuildingSeverityFor tiers the mean squared error of a building crop
func BuildingSeverityFor(mse float64) models.BuildingSeverity {
	switch {
	case mse > 3000:
		return models.BuildingCollapsed
	case mse > 2000:
		return models.BuildingSeverelyDamaged
	case mse > 1000:
		return models.BuildingPartiallyDamaged
	default:
		return models.BuildingMinorDamage
	}
}

// RoadSeverityFor tiers the texture difference of a road segment
func RoadSeverityFor(texture float64) models.RoadSeverity {
	switch {
	case texture > 60:
		return models.RoadSevere
	case texture > 40:
		return models.RoadModerate
	default:
		return models.RoadMinor
	}
}

// WaterDepthFor buckets the mean blue intensity of a flooded crop.
// Brighter water reads as shallower.
func WaterDepthFor(meanBlue float64) string {
	switch {
	case meanBlue >= 200:
		return "shallow (<0.5m)"
	case meanBlue >= 150:
		return "moderate (0.5-1.5m)"
	case meanBlue >= 100:
		return "deep (1.5-3m)"
	default:
		return "very deep (>3m)"
	}
}

// VegetationDensityFor buckets the mean saturation of the lost vegetation
func VegetationDensityFor(meanSaturation float64) string {
	switch {
	case meanSaturation > 150:
		return "dense"
	case meanSaturation > 90:
		return "moderate"
	default:
		return "sparse"
	}
}

var (
	buildingRecovery = map[models.BuildingSeverity]string{
		models.BuildingCollapsed:        "12-24 months",
		models.BuildingSeverelyDamaged:  "6-12 months",
		models.BuildingPartiallyDamaged: "2-6 months",
		models.BuildingMinorDamage:      "2-8 weeks",
	}
	roadRecovery = map[models.RoadSeverity]string{
		models.RoadSevere:   "3-6 months",
		models.RoadModerate: "1-3 months",
		models.RoadMinor:    "1-4 weeks",
	}
	floodRecovery = map[string]string{
		"shallow (<0.5m)":     "1-2 weeks",
		"moderate (0.5-1.5m)": "2-6 weeks",
		"deep (1.5-3m)":       "1-3 months",
		"very deep (>3m)":     "3-6 months",
	}
	vegetationRecovery = map[string]string{
		"dense":    "3-5 years",
		"moderate": "1-3 years",
		"sparse":   "6-12 months",
	}
	genericRecovery = map[models.GenericSeverity]string{
		models.SeverityCritical: "6-12 months",
		models.SeverityHigh:     "3-6 months",
		models.SeverityMedium:   "1-3 months",
		models.SeverityLow:      "1-4 weeks",
	}
)
