package analyzer

import (
	"image"

	"go-damage-assessor/pkg/models"
)

// Candidate is one changed region found by the extractor
type Candidate struct {
	Rect image.Rectangle
	Area float64
}

// ClassifierInput is the shared read-only view handed to every classifier
type ClassifierInput struct {
	Images     *Preprocessed
	Candidates []Candidate
	Options    AnalysisOptions
}

// Bounds returns the frame every region must fit in
func (in *ClassifierInput) Bounds() image.Rectangle {
	return image.Rect(0, 0, in.Images.Width, in.Images.Height)
}

// classifierOutput pairs a category with what its classifier produced
type classifierOutput struct {
	category models.Category
	regions  []models.Region
}
