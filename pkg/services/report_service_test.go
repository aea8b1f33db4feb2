package services

import (
	"strings"
	"testing"

	"go-damage-assessor/pkg/models"
)

func TestImpactLevel(t *testing.T) {
	s := NewReportService()

	tests := []struct {
		pct  float64
		want string
	}{
		{0, ImpactLow},
		{9.99, ImpactLow},
		{10, ImpactMedium},
		{29.99, ImpactMedium},
		{30, ImpactHigh},
		{100, ImpactHigh},
	}
	for _, tt := range tests {
		level, desc := s.ImpactLevel(tt.pct)
		if level != tt.want {
			t.Errorf("ImpactLevel(%v) = %s, want %s", tt.pct, level, tt.want)
		}
		if desc == "" {
			t.Errorf("ImpactLevel(%v) returned no description", tt.pct)
		}
	}
}

func TestRecommendations(t *testing.T) {
	s := NewReportService()

	recs := s.Recommendations(ImpactHigh, models.DisasterFlood)
	if len(recs) != 5+3 {
		t.Fatalf("Expected 8 recommendations, got %d", len(recs))
	}
	if recs[5] != "Assess water contamination levels before reoccupation" {
		t.Errorf("unexpected first flood recommendation: %q", recs[5])
	}

	// Repeated calls must not share backing arrays
	a := s.Recommendations(ImpactLow, models.DisasterFire)
	b := s.Recommendations(ImpactLow, models.DisasterEarthquake)
	if a[len(a)-1] == b[len(b)-1] {
		t.Error("recommendation lists leaked between calls")
	}
	if len(generalRecommendations[ImpactLow]) != 3 {
		t.Error("general recommendations were mutated")
	}
}

func TestAssess_DeclaredTypeWins(t *testing.T) {
	s := NewReportService()
	res := &models.AnalysisResult{
		ChangedPercentage: 12.5,
		DisasterType:      models.DisasterEarthquake,
		SeverityScore:     3.2,
	}
	scene := s.Assess(res, models.SceneAssessment{
		EstimatedDisaster:  models.DisasterFlood,
		EstimateConfidence: 0.7,
	})

	if scene.ImpactLevel != ImpactMedium {
		t.Errorf("ImpactLevel = %s", scene.ImpactLevel)
	}
	if scene.EstimatedDisaster != models.DisasterFlood {
		t.Error("estimate should be preserved")
	}
	last := scene.Recommendations[len(scene.Recommendations)-1]
	if !strings.Contains(last, "lateral stability") {
		t.Errorf("expected earthquake recommendations, got %q", last)
	}
	if !strings.Contains(strings.Join(scene.KeyFindings, "\n"), "Declared disaster type: Earthquake") {
		t.Errorf("unexpected findings: %v", scene.KeyFindings)
	}
}

func TestAssess_KeyFindings(t *testing.T) {
	s := NewReportService()
	res := &models.AnalysisResult{ChangedPercentage: 44.4}
	res.Overview.FloodAreaCount = 2
	res.Overview.Buildings = models.BuildingBreakdown{Total: 3, Collapsed: 1}

	scene := s.Assess(res, models.SceneAssessment{EstimatedDisaster: models.DisasterFlood, EstimateConfidence: 0.7})
	joined := strings.Join(scene.KeyFindings, "\n")

	for _, want := range []string{
		"Impact level: High",
		"Detected disaster type: Flood (confidence: 70%)",
		"Changed area: 44.40% of the image",
		"3 damaged building(s), 1 collapsed",
		"2 newly flooded area(s)",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("missing finding %q in %v", want, scene.KeyFindings)
		}
	}
}
