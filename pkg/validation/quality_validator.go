package validation

import "fmt"

// QualityThresholds defines configurable thresholds for input-image checks
type QualityThresholds struct {
	// Sharpness
	MinLaplacianVariance float64

	// Mean gray level on a 0-255 scale
	MinBrightness float64
	MaxBrightness float64

	// Resolution
	MinWidth  int
	MinHeight int
}

// DefaultQualityThresholds returns the default quality thresholds
func DefaultQualityThresholds() QualityThresholds {
	return QualityThresholds{
		MinLaplacianVariance: 50.0,
		MinBrightness:        40.0,
		MaxBrightness:        220.0,
		MinWidth:             64,
		MinHeight:            64,
	}
}

// QualityValidator flags input images that make change detection unreliable.
// Issues are advisory and never fail an analysis.
type QualityValidator struct {
	thresholds QualityThresholds
}

// NewQualityValidator creates a new quality validator with default thresholds
func NewQualityValidator() *QualityValidator {
	return &QualityValidator{
		thresholds: DefaultQualityThresholds(),
	}
}

// NewQualityValidatorWithThresholds creates a quality validator with custom thresholds
func NewQualityValidatorWithThresholds(thresholds QualityThresholds) *QualityValidator {
	return &QualityValidator{
		thresholds: thresholds,
	}
}

// QualityIssue represents a quality validation issue
type QualityIssue struct {
	Image       string  `json:"image"`
	Type        string  `json:"type"`
	Message     string  `json:"message"`
	ActualValue float64 `json:"actual_value,omitempty"`
	Threshold   float64 `json:"threshold,omitempty"`
}

// ImageQualityMetrics are the measurements of one input image
type ImageQualityMetrics struct {
	Label        string // "before" or "after"
	Width        int
	Height       int
	Brightness   float64
	LaplacianVar float64
}

// ValidateInput checks one input image
func (qv *QualityValidator) ValidateInput(metrics ImageQualityMetrics) []QualityIssue {
	var issues []QualityIssue

	if metrics.Width < qv.thresholds.MinWidth || metrics.Height < qv.thresholds.MinHeight {
		issues = append(issues, QualityIssue{
			Image:       metrics.Label,
			Type:        "low_resolution",
			Message:     fmt.Sprintf("image is only %dx%d; small regions may be missed", metrics.Width, metrics.Height),
			ActualValue: float64(metrics.Width * metrics.Height),
			Threshold:   float64(qv.thresholds.MinWidth * qv.thresholds.MinHeight),
		})
	}

	if metrics.Brightness < qv.thresholds.MinBrightness {
		issues = append(issues, QualityIssue{
			Image:       metrics.Label,
			Type:        "too_dark",
			Message:     "image is very dark; color-based detectors may under-report",
			ActualValue: metrics.Brightness,
			Threshold:   qv.thresholds.MinBrightness,
		})
	} else if metrics.Brightness > qv.thresholds.MaxBrightness {
		issues = append(issues, QualityIssue{
			Image:       metrics.Label,
			Type:        "too_bright",
			Message:     "image is overexposed; color-based detectors may under-report",
			ActualValue: metrics.Brightness,
			Threshold:   qv.thresholds.MaxBrightness,
		})
	}

	if metrics.LaplacianVar < qv.thresholds.MinLaplacianVariance {
		issues = append(issues, QualityIssue{
			Image:       metrics.Label,
			Type:        "blurriness",
			Message:     "image has little fine detail; edge-based detectors may miss structures",
			ActualValue: metrics.LaplacianVar,
			Threshold:   qv.thresholds.MinLaplacianVariance,
		})
	}

	return issues
}

// ConvertIssuesToMessages converts quality issues to warning lines
func (qv *QualityValidator) ConvertIssuesToMessages(issues []QualityIssue) []string {
	var messages []string
	for _, issue := range issues {
		if issue.Image != "" {
			messages = append(messages, fmt.Sprintf("%s: %s", issue.Image, issue.Message))
			continue
		}
		messages = append(messages, issue.Message)
	}
	return messages
}
