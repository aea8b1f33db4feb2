package analyzer

import (
	"go-damage-assessor/pkg/config"
	"go-damage-assessor/pkg/models"
)

// AnalysisOptions provides flexible configuration for one comparison
type AnalysisOptions struct {
	Level              models.AnalysisLevel
	DeclaredType       models.DisasterType
	IncludeDiagnostics bool

	// Pipeline tuning, copied so a run never observes later edits
	Tuning config.AnalysisConfig
}

// DefaultOptions returns standard-level options with stock tuning
func DefaultOptions() AnalysisOptions {
	return OptionsFromConfig(config.Default())
}

// OptionsFromConfig builds options at the configured default level
func OptionsFromConfig(cfg *config.AnalysisConfig) AnalysisOptions {
	if cfg == nil {
		cfg = config.Default()
	}
	return AnalysisOptions{
		Level:  cfg.DefaultLevel,
		Tuning: *cfg,
	}
}

// BasicOptions attaches measurements only
func BasicOptions() AnalysisOptions {
	return DefaultOptions().WithLevel(models.LevelBasic)
}

// DetailedOptions attaches every optional field
func DetailedOptions() AnalysisOptions {
	return DefaultOptions().WithLevel(models.LevelDetailed)
}

// WithLevel sets the metadata depth; unknown levels are ignored
func (opts AnalysisOptions) WithLevel(level models.AnalysisLevel) AnalysisOptions {
	if level.Valid() {
		opts.Level = level
	}
	return opts
}

// WithDisasterType biases the generic kind cascade
func (opts AnalysisOptions) WithDisasterType(t models.DisasterType) AnalysisOptions {
	opts.DeclaredType = t
	return opts
}

// WithDiagnostics requests heatmap and mask images in the result
func (opts AnalysisOptions) WithDiagnostics() AnalysisOptions {
	opts.IncludeDiagnostics = true
	return opts
}

// WithThreshold overrides the binarization threshold of the change mask
func (opts AnalysisOptions) WithThreshold(threshold float64) AnalysisOptions {
	opts.Tuning.DiffThreshold = threshold
	return opts
}

func (opts AnalysisOptions) includes(level models.AnalysisLevel) bool {
	return opts.Level.Includes(level)
}
