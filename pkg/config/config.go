package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"go-damage-assessor/pkg/models"
)

// AnalysisConfig holds the tuning knobs of the change-detection pipeline
type AnalysisConfig struct {
	DiffThreshold    float64 `yaml:"diff_threshold"`
	BlurKernelSize   int     `yaml:"blur_kernel"`
	DilateKernelSize int     `yaml:"dilate_kernel"`
	DilateIterations int     `yaml:"dilate_iterations"`
	MorphKernelSize  int     `yaml:"morph_kernel"`

	MinRegionArea     float64 `yaml:"min_region_area"`
	BuildingMinArea   float64 `yaml:"building_min_area"`
	RoadMinArea       float64 `yaml:"road_min_area"`
	FloodMinArea      float64 `yaml:"flood_min_area"`
	VegetationMinArea float64 `yaml:"vegetation_min_area"`

	CannyLow  float32 `yaml:"canny_low"`
	CannyHigh float32 `yaml:"canny_high"`

	MetersPerPixel        float64              `yaml:"meters_per_pixel"`
	DefaultLevel          models.AnalysisLevel `yaml:"default_level"`
	ClassifierConcurrency int                  `yaml:"classifier_concurrency"`
}

// Default returns the stock pipeline configuration
func Default() *AnalysisConfig {
	return &AnalysisConfig{
		DiffThreshold:         30,
		BlurKernelSize:        5,
		DilateKernelSize:      5,
		DilateIterations:      2,
		MorphKernelSize:       5,
		MinRegionArea:         100,
		BuildingMinArea:       1000,
		RoadMinArea:           500,
		FloodMinArea:          500,
		VegetationMinArea:     500,
		CannyLow:              50,
		CannyHigh:             150,
		MetersPerPixel:        0.5,
		DefaultLevel:          models.LevelStandard,
		ClassifierConcurrency: 5,
	}
}

// Load reads YAML overrides from path on top of Default. An empty path
// or a missing file yields the defaults.
func Load(path string) (*AnalysisConfig, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read analysis config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse analysis config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with
func (c *AnalysisConfig) Validate() error {
	if c.DiffThreshold <= 0 || c.DiffThreshold >= 255 {
		return fmt.Errorf("diff_threshold must be in (0,255) (got %v)", c.DiffThreshold)
	}
	for name, k := range map[string]int{
		"blur_kernel":   c.BlurKernelSize,
		"dilate_kernel": c.DilateKernelSize,
		"morph_kernel":  c.MorphKernelSize,
	} {
		if k <= 0 || k%2 == 0 {
			return fmt.Errorf("%s must be a positive odd number (got %d)", name, k)
		}
	}
	if c.DilateIterations < 1 {
		return fmt.Errorf("dilate_iterations must be >= 1 (got %d)", c.DilateIterations)
	}
	for name, a := range map[string]float64{
		"min_region_area":     c.MinRegionArea,
		"building_min_area":   c.BuildingMinArea,
		"road_min_area":       c.RoadMinArea,
		"flood_min_area":      c.FloodMinArea,
		"vegetation_min_area": c.VegetationMinArea,
	} {
		if a <= 0 {
			return fmt.Errorf("%s must be > 0 (got %v)", name, a)
		}
	}
	if c.CannyLow <= 0 || c.CannyHigh <= c.CannyLow {
		return fmt.Errorf("canny thresholds must satisfy 0 < low < high (got %v, %v)", c.CannyLow, c.CannyHigh)
	}
	if c.MetersPerPixel <= 0 {
		return fmt.Errorf("meters_per_pixel must be > 0 (got %v)", c.MetersPerPixel)
	}
	if !c.DefaultLevel.Valid() {
		return fmt.Errorf("default_level must be basic, standard or detailed (got %q)", c.DefaultLevel)
	}
	if c.ClassifierConcurrency < 1 {
		return fmt.Errorf("classifier_concurrency must be >= 1 (got %d)", c.ClassifierConcurrency)
	}
	return nil
}
