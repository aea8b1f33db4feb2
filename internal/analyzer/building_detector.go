package analyzer

import (
	"context"
	"image"
	"sort"

	"gocv.io/x/gocv"

	"go-damage-assessor/pkg/models"
)

const (
	minBuildingVertices = 4
	maxBuildingVertices = 8
)

type buildingDetector struct {
	metrics MetricsCalculator
}

// NewBuildingDetector finds polygonal footprints in the before image that
// overlap a changed region
func NewBuildingDetector(metrics MetricsCalculator) Classifier {
	if metrics == nil {
		metrics = NewMetricsCalculator()
	}
	return &buildingDetector{metrics: metrics}
}

func (b *buildingDetector) Name() string              { return "building" }
func (b *buildingDetector) Category() models.Category { return models.CategoryBuilding }

type footprint struct {
	rect     image.Rectangle
	area     float64
	vertices int
}

func (b *buildingDetector) Classify(ctx context.Context, in *ClassifierInput) ([]models.Region, error) {
	if len(in.Candidates) == 0 {
		return []models.Region{}, nil
	}
	tuning := in.Options.Tuning

	footprints := b.footprints(in.Images.BeforeGray, tuning.CannyLow, tuning.CannyHigh, tuning.BuildingMinArea, in.Bounds())

	regions := make([]models.Region, 0)
	for _, fp := range footprints {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !overlapsAny(fp.rect, in.Candidates) {
			continue
		}
		regions = append(regions, b.assess(in, fp, len(regions)+1))
	}
	return regions, nil
}

// footprints returns near-rectangular closed contours of the before edges
func (b *buildingDetector) footprints(gray gocv.Mat, low, high float32, minArea float64, bounds image.Rectangle) []footprint {
	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, low, high)

	// Connect broken edge segments so outlines close
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()
	gocv.Dilate(edges, &edges, kernel)

	contours := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var out []footprint
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		area := gocv.ContourArea(contour)
		if area < minArea || area <= 0 {
			continue
		}

		approx := gocv.ApproxPolyDP(contour, 0.02*gocv.ArcLength(contour, true), true)
		vertices := approx.Size()
		approx.Close()
		if vertices < minBuildingVertices || vertices > maxBuildingVertices {
			continue
		}

		rect := gocv.BoundingRect(contour).Intersect(bounds)
		if rect.Empty() {
			continue
		}
		out = append(out, footprint{rect: rect, area: area, vertices: vertices})
	}
	sortFootprints(out)
	return out
}

func (b *buildingDetector) assess(in *ClassifierInput, fp footprint, id int) models.Region {
	crops := cropImages(in.Images, fp.rect)
	defer crops.Close()

	mse := b.metrics.MeanSquaredError(crops.BeforeGray, crops.AfterGray)
	severity := BuildingSeverityFor(mse)

	detail := &models.BuildingDetail{
		Severity:         severity,
		MeanSquaredError: round2(mse),
		Vertices:         fp.vertices,
	}
	if in.Options.includes(models.LevelStandard) {
		detail.StructureType = "irregular"
		if fp.vertices == 4 {
			detail.StructureType = "rectangular"
		}
	}
	if in.Options.includes(models.LevelDetailed) {
		detail.RecoveryEstimate = buildingRecovery[severity]
		detail.AreaSquareMeters = squareMeters(fp.area, in.Options.Tuning.MetersPerPixel)
	}

	return models.Region{
		ID:         id,
		Category:   models.CategoryBuilding,
		BBox:       models.BBoxFromRect(fp.rect),
		Area:       fp.area,
		Confidence: capConfidence(0.6+mse/10000+fp.area/100000, 0.95),
		Building:   detail,
	}
}

// overlapsAny reports whether r shares area with at least one candidate
func overlapsAny(r image.Rectangle, cands []Candidate) bool {
	for _, c := range cands {
		if r.Overlaps(c.Rect) {
			return true
		}
	}
	return false
}

func sortFootprints(fps []footprint) {
	sort.SliceStable(fps, func(i, j int) bool { return rectLess(fps[i].rect, fps[j].rect) })
}
