package models

import "image"

// Category identifies which classifier produced a region
type Category string

const (
	CategoryGeneric    Category = "generic"
	CategoryBuilding   Category = "building"
	CategoryRoad       Category = "road"
	CategoryFlood      Category = "flood"
	CategoryVegetation Category = "vegetation"
)

// DamageKind is the outcome of the generic decision cascade
type DamageKind string

const (
	KindFlooding         DamageKind = "Flooding"
	KindFireDamage       DamageKind = "FireDamage"
	KindBuildingCollapse DamageKind = "BuildingCollapse"
	KindStructuralDamage DamageKind = "StructuralDamage"
	KindVegetationLoss   DamageKind = "VegetationLoss"
	KindSevereDamage     DamageKind = "SevereDamage"
	KindSurfaceDamage    DamageKind = "SurfaceDamage"
	KindMinorChange      DamageKind = "MinorChange"
)

// GenericSeverity tiers the mean absolute difference of a generic region
type GenericSeverity string

const (
	SeverityCritical GenericSeverity = "Critical"
	SeverityHigh     GenericSeverity = "High"
	SeverityMedium   GenericSeverity = "Medium"
	SeverityLow      GenericSeverity = "Low"
)

// BuildingSeverity tiers the pixel error of a damaged building
type BuildingSeverity string

const (
	BuildingCollapsed        BuildingSeverity = "Collapsed"
	BuildingSeverelyDamaged  BuildingSeverity = "SeverelyDamaged"
	BuildingPartiallyDamaged BuildingSeverity = "PartiallyDamaged"
	BuildingMinorDamage      BuildingSeverity = "MinorDamage"
)

// RoadSeverity tiers the texture change of a damaged road segment
type RoadSeverity string

const (
	RoadSevere   RoadSeverity = "Severe"
	RoadModerate RoadSeverity = "Moderate"
	RoadMinor    RoadSeverity = "Minor"
)

// BBox is an axis-aligned box in the before image's pixel frame
type BBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// BBoxFromRect converts an image.Rectangle
func BBoxFromRect(r image.Rectangle) BBox {
	return BBox{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Rect converts back to an image.Rectangle
func (b BBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// Within reports whether the box lies inside a width x height frame
func (b BBox) Within(width, height int) bool {
	return b.X >= 0 && b.Y >= 0 && b.Width > 0 && b.Height > 0 &&
		b.X+b.Width <= width && b.Y+b.Height <= height
}

// Region is a classified area of change. Exactly one detail pointer is set,
// matching Category.
type Region struct {
	ID         int      `json:"id"`
	Category   Category `json:"category"`
	BBox       BBox     `json:"bbox"`
	Area       float64  `json:"area"`
	Confidence float64  `json:"confidence"`

	Generic    *GenericDetail    `json:"generic,omitempty"`
	Building   *BuildingDetail   `json:"building,omitempty"`
	Road       *RoadDetail       `json:"road,omitempty"`
	Flood      *FloodDetail      `json:"flood,omitempty"`
	Vegetation *VegetationDetail `json:"vegetation,omitempty"`
}

// SeverityLabel returns the category-specific severity as a plain label.
// Flood and vegetation regions carry no severity tier.
func (r Region) SeverityLabel() string {
	switch {
	case r.Generic != nil:
		return string(r.Generic.Severity)
	case r.Building != nil:
		return string(r.Building.Severity)
	case r.Road != nil:
		return string(r.Road.Severity)
	}
	return ""
}

// GenericDetail describes a region found by the generic change classifier
type GenericDetail struct {
	Kind           DamageKind      `json:"kind"`
	Severity       GenericSeverity `json:"severity"`
	MeanDifference float64         `json:"mean_difference"`

	MeanColorChange  *[3]float64    `json:"mean_color_change,omitempty"`
	Signals          *ChangeSignals `json:"signals,omitempty"`
	RecoveryEstimate string         `json:"estimated_recovery_time,omitempty"`
	AreaSquareMeters float64        `json:"area_sq_m,omitempty"`
}

// ChangeSignals are the measurements the kind cascade decides on
type ChangeSignals struct {
	HistogramCorrelation float64 `json:"histogram_correlation"`
	BlueIncrease         float64 `json:"blue_increase"`
	GreenDecrease        float64 `json:"green_decrease"`
	RedIncrease          float64 `json:"red_increase"`
	TextureDifference    float64 `json:"texture_difference"`
}

// BuildingDetail describes a damaged building footprint
type BuildingDetail struct {
	Severity         BuildingSeverity `json:"severity"`
	MeanSquaredError float64          `json:"mean_squared_error"`
	Vertices         int              `json:"vertices"`

	StructureType    string  `json:"structure_type,omitempty"`
	RecoveryEstimate string  `json:"estimated_recovery_time,omitempty"`
	AreaSquareMeters float64 `json:"area_sq_m,omitempty"`
}

// RoadDetail describes a damaged road segment
type RoadDetail struct {
	Severity          RoadSeverity `json:"severity"`
	TextureDifference float64      `json:"texture_difference"`

	LengthMeters     float64 `json:"length_m,omitempty"`
	RecoveryEstimate string  `json:"estimated_recovery_time,omitempty"`
	AreaSquareMeters float64 `json:"area_sq_m,omitempty"`
}

// FloodDetail describes newly water-covered ground
type FloodDetail struct {
	MeanBlue float64 `json:"mean_blue"`

	WaterDepth       string  `json:"water_depth,omitempty"`
	FlowDirection    string  `json:"flow_direction,omitempty"`
	RecoveryEstimate string  `json:"estimated_recovery_time,omitempty"`
	AreaSquareMeters float64 `json:"area_sq_m,omitempty"`
}

// VegetationDetail describes lost vegetation cover
type VegetationDetail struct {
	MeanSaturation float64 `json:"mean_saturation"`

	Density          string  `json:"vegetation_density,omitempty"`
	RecoveryEstimate string  `json:"estimated_recovery_time,omitempty"`
	AreaSquareMeters float64 `json:"area_sq_m,omitempty"`
}
