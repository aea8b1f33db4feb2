package analyzer

import (
	"image"
	"math"
	"sort"

	"gocv.io/x/gocv"

	"go-damage-assessor/pkg/config"
)

// ChangeSet is the output of the change-region extractor
type ChangeSet struct {
	ChangedPercentage float64
	ChangedPixels     int
	TotalPixels       int

	// Difference is the raw absolute difference of the denoised grays and Mask
	// its binarization before dilation. Both are owned by the ChangeSet.
	Difference gocv.Mat
	Mask       gocv.Mat

	Candidates []Candidate
}

// Close releases the difference and mask buffers
func (cs *ChangeSet) Close() {
	cs.Difference.Close()
	cs.Mask.Close()
}

// ExtractChanges diffs the denoised grays, thresholds the difference and
// enumerates external contours of the dilated mask as candidates
func ExtractChanges(p *Preprocessed, cfg config.AnalysisConfig) *ChangeSet {
	cs := &ChangeSet{
		Difference:  gocv.NewMat(),
		Mask:        gocv.NewMat(),
		TotalPixels: p.Width * p.Height,
	}

	gocv.AbsDiff(p.BeforeDenoised, p.AfterDenoised, &cs.Difference)
	gocv.Threshold(cs.Difference, &cs.Mask, float32(cfg.DiffThreshold), 255, gocv.ThresholdBinary)

	cs.ChangedPixels = gocv.CountNonZero(cs.Mask)
	if cs.TotalPixels > 0 {
		pct := float64(cs.ChangedPixels) / float64(cs.TotalPixels) * 100
		cs.ChangedPercentage = math.Round(pct*100) / 100
	}
	if cs.ChangedPixels == 0 {
		return cs
	}

	dilated := gocv.NewMat()
	defer dilated.Close()
	kernelSize := cfg.DilateKernelSize
	if kernelSize <= 0 {
		kernelSize = 5
	}
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(kernelSize, kernelSize))
	defer kernel.Close()

	iterations := cfg.DilateIterations
	if iterations <= 0 {
		iterations = 1
	}
	cs.Mask.CopyTo(&dilated)
	for i := 0; i < iterations; i++ {
		gocv.Dilate(dilated, &dilated, kernel)
	}

	cs.Candidates = contourCandidates(dilated, cfg.MinRegionArea, image.Rect(0, 0, p.Width, p.Height))
	return cs
}

// contourCandidates extracts external contours of a binary mask whose area
// reaches minArea, clipped to bounds and sorted top-to-bottom, left-to-right
func contourCandidates(mask gocv.Mat, minArea float64, bounds image.Rectangle) []Candidate {
	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var out []Candidate
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		area := gocv.ContourArea(c)
		if area < minArea || area <= 0 {
			continue
		}
		rect := gocv.BoundingRect(c).Intersect(bounds)
		if rect.Empty() {
			continue
		}
		out = append(out, Candidate{Rect: rect, Area: area})
	}
	sortCandidates(out)
	return out
}

func sortCandidates(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool { return rectLess(cands[i].Rect, cands[j].Rect) })
}

// rectLess orders rectangles top-to-bottom, then left-to-right
func rectLess(a, b image.Rectangle) bool {
	if a.Min.Y != b.Min.Y {
		return a.Min.Y < b.Min.Y
	}
	return a.Min.X < b.Min.X
}
