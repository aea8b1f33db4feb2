package analyzer

import (
	"image"
	"math"

	"gocv.io/x/gocv"
)

// cropSet is a read-only view of one rectangle across every derived mat.
// Views share memory with the parent mats and must be closed.
type cropSet struct {
	Before, After         gocv.Mat
	BeforeGray, AfterGray gocv.Mat
	BeforeHSV, AfterHSV   gocv.Mat
}

func cropImages(p *Preprocessed, r image.Rectangle) cropSet {
	return cropSet{
		Before:     p.Before.Region(r),
		After:      p.After.Region(r),
		BeforeGray: p.BeforeGray.Region(r),
		AfterGray:  p.AfterGray.Region(r),
		BeforeHSV:  p.BeforeHSV.Region(r),
		AfterHSV:   p.AfterHSV.Region(r),
	}
}

func (c cropSet) Close() {
	c.Before.Close()
	c.After.Close()
	c.BeforeGray.Close()
	c.AfterGray.Close()
	c.BeforeHSV.Close()
	c.AfterHSV.Close()
}

// hsvRange is an inclusive HSV color band (OpenCV scale: H 0-180)
type hsvRange struct {
	Lower, Upper gocv.Scalar
}

var (
	roadRange       = hsvRange{gocv.NewScalar(0, 0, 50, 0), gocv.NewScalar(180, 50, 200, 0)}
	waterRange      = hsvRange{gocv.NewScalar(90, 50, 40, 0), gocv.NewScalar(130, 255, 255, 0)}
	vegetationRange = hsvRange{gocv.NewScalar(35, 40, 40, 0), gocv.NewScalar(85, 255, 255, 0)}
)

// colorMask selects pixels inside the band
func colorMask(hsv gocv.Mat, band hsvRange) gocv.Mat {
	mask := gocv.NewMat()
	gocv.InRangeWithScalar(hsv, band.Lower, band.Upper, &mask)
	return mask
}

// cleanMask applies an opening then a closing in place
func cleanMask(mask *gocv.Mat, size int) {
	if size <= 0 {
		size = 5
	}
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(size, size))
	defer kernel.Close()
	gocv.MorphologyEx(*mask, mask, gocv.MorphOpen, kernel)
	gocv.MorphologyEx(*mask, mask, gocv.MorphClose, kernel)
}

// appearedMask returns pixels inside band in `now` that were not in `was`
func appearedMask(was, now gocv.Mat, band hsvRange, morphSize int) gocv.Mat {
	wasMask := colorMask(was, band)
	defer wasMask.Close()
	nowMask := colorMask(now, band)
	defer nowMask.Close()

	notWas := gocv.NewMat()
	defer notWas.Close()
	gocv.BitwiseNot(wasMask, &notWas)

	out := gocv.NewMat()
	gocv.BitwiseAnd(nowMask, notWas, &out)
	cleanMask(&out, morphSize)
	return out
}

func capConfidence(v, max float64) float64 {
	if v > max {
		v = max
	}
	if v < 0 {
		return 0
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func squareMeters(area, metersPerPixel float64) float64 {
	return round2(area * metersPerPixel * metersPerPixel)
}

// flowDirection names the compass sector of r's center relative to the frame
// center, with north at the top of the image
func flowDirection(r, frame image.Rectangle) string {
	cx := float64(r.Min.X+r.Max.X) / 2
	cy := float64(r.Min.Y+r.Max.Y) / 2
	fx := float64(frame.Min.X+frame.Max.X) / 2
	fy := float64(frame.Min.Y+frame.Max.Y) / 2
	dx, dy := cx-fx, fy-cy

	if math.Abs(dx) <= 0.05*float64(frame.Dx()) && math.Abs(dy) <= 0.05*float64(frame.Dy()) {
		return "stationary"
	}
	sectors := [...]string{"east", "northeast", "north", "northwest", "west", "southwest", "south", "southeast"}
	angle := math.Atan2(dy, dx) * 180 / math.Pi
	if angle < 0 {
		angle += 360
	}
	idx := int(math.Floor((angle+22.5)/45)) % len(sectors)
	return sectors[idx]
}
