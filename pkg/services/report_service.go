package services

import (
	"fmt"
	"math"
	"strings"

	"go-damage-assessor/pkg/models"
)

const (
	ImpactLow    = "Low"
	ImpactMedium = "Medium"
	ImpactHigh   = "High"
)

var impactDescriptions = map[string]string{
	ImpactLow:    "Minor changes detected. Limited impact observed.",
	ImpactMedium: "Moderate changes detected. Significant impact in specific areas.",
	ImpactHigh:   "Major changes detected. Widespread and severe impact observed.",
}

var generalRecommendations = map[string][]string{
	ImpactLow: {
		"Conduct routine monitoring to ensure no further deterioration",
		"Document the changes for future reference",
		"Implement preventative measures in vulnerable areas",
	},
	ImpactMedium: {
		"Prioritize recovery efforts in the most affected regions",
		"Conduct a detailed assessment of structural integrity",
		"Allocate resources for targeted repair and restoration",
		"Implement temporary support or containment measures",
	},
	ImpactHigh: {
		"Immediate evacuation may be necessary in severely affected areas",
		"Deploy emergency response teams to address critical damage",
		"Establish temporary shelter and essential services",
		"Develop a comprehensive rehabilitation and reconstruction plan",
		"Request additional resources and external assistance",
	},
}

var disasterRecommendations = map[models.DisasterType][]string{
	models.DisasterFlood: {
		"Assess water contamination levels before reoccupation",
		"Check electrical systems for water damage before restoring power",
		"Implement proper drainage before reconstruction",
		"Monitor for mold growth in affected structures",
	},
	models.DisasterFire: {
		"Evaluate structural integrity of fire-damaged buildings",
		"Assess soil erosion risk in burned areas",
		"Monitor for potential landslides in steep, burned terrain",
		"Implement erosion control measures before rainy season",
	},
	models.DisasterEarthquake: {
		"Inspect for structural damage, particularly to load-bearing walls",
		"Check for gas leaks and damaged utility lines",
		"Assess buildings for lateral stability and foundation damage",
		"Monitor for aftershock impacts to already-damaged structures",
	},
	models.DisasterHurricane: {
		"Inspect roofs and building envelopes for wind damage",
		"Check for water intrusion through damaged roofs and windows",
		"Assess trees and overhead hazards around structures",
		"Evaluate coastal erosion and sea defenses",
	},
	models.DisasterLandslide: {
		"Monitor slope stability for continuing movement",
		"Assess drainage patterns that may contribute to further slides",
		"Evaluate neighboring areas for similar risk factors",
		"Consider slope reinforcement or terracing during reconstruction",
	},
	models.DisasterUnknown: {
		"Conduct a multi-hazard assessment to determine disaster type",
		"Document all observed changes in detail for expert analysis",
		"Use caution when approaching affected areas",
		"Consult with disaster assessment specialists",
	},
}

// specificRecommendationCount is how many disaster-specific lines follow the general ones
const specificRecommendationCount = 3

// ReportService turns a scored result into a human-readable scene assessment
type ReportService struct{}

// NewReportService creates a new report service
func NewReportService() *ReportService {
	return &ReportService{}
}

// ImpactLevel buckets the changed percentage
func (s *ReportService) ImpactLevel(changedPct float64) (level, description string) {
	switch {
	case changedPct < 10:
		level = ImpactLow
	case changedPct < 30:
		level = ImpactMedium
	default:
		level = ImpactHigh
	}
	return level, impactDescriptions[level]
}

// Recommendations returns the general list for the impact level followed by
// the first few lines specific to the disaster type
func (s *ReportService) Recommendations(impact string, disaster models.DisasterType) []string {
	general := generalRecommendations[impact]
	recs := make([]string, 0, len(general)+specificRecommendationCount)
	recs = append(recs, general...)

	specific := disasterRecommendations[disaster]
	if len(specific) > specificRecommendationCount {
		specific = specific[:specificRecommendationCount]
	}
	return append(recs, specific...)
}

// Assess completes scene with impact, recommendations and key findings.
// scene carries the estimated disaster type; a declared type on the result wins.
func (s *ReportService) Assess(res *models.AnalysisResult, scene models.SceneAssessment) *models.SceneAssessment {
	out := scene
	out.ImpactLevel, out.ImpactDescription = s.ImpactLevel(res.ChangedPercentage)

	disaster := scene.EstimatedDisaster
	if res.DisasterType != "" {
		disaster = res.DisasterType
	}
	if disaster == "" {
		disaster = models.DisasterUnknown
	}
	out.Recommendations = s.Recommendations(out.ImpactLevel, disaster)
	out.KeyFindings = s.keyFindings(res, out, disaster)
	return &out
}

func (s *ReportService) keyFindings(res *models.AnalysisResult, scene models.SceneAssessment, disaster models.DisasterType) []string {
	findings := []string{
		fmt.Sprintf("Impact level: %s", scene.ImpactLevel),
	}
	if res.DisasterType != "" {
		findings = append(findings, fmt.Sprintf("Declared disaster type: %s", titleCase(string(disaster))))
	} else {
		findings = append(findings, fmt.Sprintf("Detected disaster type: %s (confidence: %d%%)",
			titleCase(string(disaster)), int(math.Round(scene.EstimateConfidence*100))))
	}
	findings = append(findings,
		fmt.Sprintf("Changed area: %.2f%% of the image", res.ChangedPercentage),
		fmt.Sprintf("Severity score: %.1f / 10", res.SeverityScore),
	)

	ov := res.Overview
	if ov.Buildings.Total > 0 {
		findings = append(findings, fmt.Sprintf("%d damaged building(s), %d collapsed",
			ov.Buildings.Total, ov.Buildings.Collapsed))
	}
	if ov.Roads.Total > 0 {
		findings = append(findings, fmt.Sprintf("%d damaged road segment(s), %d severe",
			ov.Roads.Total, ov.Roads.Severe))
	}
	if ov.FloodAreaCount > 0 {
		findings = append(findings, fmt.Sprintf("%d newly flooded area(s)", ov.FloodAreaCount))
	}
	if ov.VegetationLossCount > 0 {
		findings = append(findings, fmt.Sprintf("%d area(s) of vegetation loss", ov.VegetationLossCount))
	}
	return findings
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
