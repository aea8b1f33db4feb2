package models

import "time"

// AnalysisLevel controls how much optional metadata classifiers attach to regions.
// It never changes which regions are detected.
type AnalysisLevel string

const (
	LevelBasic    AnalysisLevel = "basic"
	LevelStandard AnalysisLevel = "standard"
	LevelDetailed AnalysisLevel = "detailed"
)

// Valid reports whether the level is one of the known levels
func (l AnalysisLevel) Valid() bool {
	switch l {
	case LevelBasic, LevelStandard, LevelDetailed:
		return true
	}
	return false
}

// Includes reports whether metadata gated at min should be attached at this level
func (l AnalysisLevel) Includes(min AnalysisLevel) bool {
	return l.rank() >= min.rank()
}

func (l AnalysisLevel) rank() int {
	switch l {
	case LevelStandard:
		return 1
	case LevelDetailed:
		return 2
	default:
		return 0
	}
}

// DisasterType is the declared or estimated kind of event behind the change
type DisasterType string

const (
	DisasterFlood      DisasterType = "flood"
	DisasterFire       DisasterType = "fire"
	DisasterEarthquake DisasterType = "earthquake"
	DisasterHurricane  DisasterType = "hurricane"
	DisasterLandslide  DisasterType = "landslide"
	DisasterUnknown    DisasterType = "unknown"
)

// Valid reports whether the type is a known disaster type
func (d DisasterType) Valid() bool {
	switch d {
	case DisasterFlood, DisasterFire, DisasterEarthquake, DisasterHurricane, DisasterLandslide, DisasterUnknown:
		return true
	}
	return false
}

// AnalysisResult is the durable output of one comparison
type AnalysisResult struct {
	JobID         string        `json:"job_id"`
	BeforeImageID string        `json:"before_image_id"`
	AfterImageID  string        `json:"after_image_id"`
	AnalysisLevel AnalysisLevel `json:"analysis_level"`
	DisasterType  DisasterType  `json:"disaster_type,omitempty"`
	Location      string        `json:"region,omitempty"`

	Width     int  `json:"width"`
	Height    int  `json:"height"`
	Resampled bool `json:"resampled"`

	ChangedPercentage float64        `json:"changed_percentage"`
	SeverityScore     float64        `json:"severity_score"`
	Overview          DamageOverview `json:"damage_overview"`

	DamageRegions  []Region `json:"damage_regions"`
	BuildingDamage []Region `json:"building_damage"`
	RoadDamage     []Region `json:"road_damage"`
	FloodAreas     []Region `json:"flood_areas"`
	VegetationLoss []Region `json:"vegetation_loss"`

	Assessment  *SceneAssessment `json:"assessment,omitempty"`
	Diagnostics *Diagnostics     `json:"diagnostics,omitempty"`
	Warnings    []string         `json:"warnings,omitempty"`

	ProcessingTimeSec float64   `json:"processing_time_sec"`
	CreatedAt         time.Time `json:"created_at"`
}

// AllRegions returns the five region collections in a fixed order
func (r *AnalysisResult) AllRegions() [][]Region {
	return [][]Region{r.DamageRegions, r.BuildingDamage, r.RoadDamage, r.FloodAreas, r.VegetationLoss}
}

// DamageOverview is a pure reduction over the typed regions
type DamageOverview struct {
	TotalRegions         int                `json:"total_regions"`
	KindCounts           map[DamageKind]int `json:"kind_counts"`
	SeverityDistribution SeverityBuckets    `json:"severity_distribution"`
	Buildings            BuildingBreakdown  `json:"buildings"`
	Roads                RoadBreakdown      `json:"roads"`
	FloodAreaCount       int                `json:"flood_area_count"`
	VegetationLossCount  int                `json:"vegetation_loss_count"`
	FloodedPixels        float64            `json:"flooded_pixels"`
	VegetationLostPixels float64            `json:"vegetation_lost_pixels"`
	MeanConfidence       float64            `json:"mean_confidence"`
}

// SeverityBuckets is the four-bucket severity distribution
type SeverityBuckets struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// BuildingBreakdown counts building records per severity
type BuildingBreakdown struct {
	Total            int `json:"total"`
	Collapsed        int `json:"collapsed"`
	SeverelyDamaged  int `json:"severely_damaged"`
	PartiallyDamaged int `json:"partially_damaged"`
	MinorDamage      int `json:"minor_damage"`
}

// RoadBreakdown counts road records per severity
type RoadBreakdown struct {
	Total    int `json:"total"`
	Severe   int `json:"severe"`
	Moderate int `json:"moderate"`
	Minor    int `json:"minor"`
}

// SceneAssessment summarizes the comparison for human consumers
type SceneAssessment struct {
	ImpactLevel         string       `json:"impact_level"`
	ImpactDescription   string       `json:"impact_description"`
	EstimatedDisaster   DisasterType `json:"estimated_disaster_type"`
	EstimateConfidence  float64      `json:"estimate_confidence"`
	Recommendations     []string     `json:"recommendations"`
	KeyFindings         []string     `json:"key_findings"`
	BlueIncrease        float64      `json:"blue_increase"`
	WarmIncrease        float64      `json:"warm_increase"`
	EdgeChangeRatio     float64      `json:"edge_change_ratio"`
	MeanIntensityChange float64      `json:"mean_intensity_change"`
}

// Diagnostics carries optional visual artifacts as base64 PNG
type Diagnostics struct {
	DifferenceHeatmap string  `json:"difference_heatmap"`
	ChangeMask        string  `json:"change_mask"`
	ChangedPixels     int     `json:"changed_pixels"`
	TotalPixels       int     `json:"total_pixels"`
	Threshold         float64 `json:"threshold"`
}
