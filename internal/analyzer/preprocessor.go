package analyzer

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"runtime"

	"gocv.io/x/gocv"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	apperrors "go-damage-assessor/internal/errors"
)

// Preprocessed holds the normalized derivatives of a before/after pair.
// All mats share the before image's dimensions.
type Preprocessed struct {
	Before, After                 gocv.Mat // BGR
	BeforeGray, AfterGray         gocv.Mat
	BeforeHSV, AfterHSV           gocv.Mat
	BeforeDenoised, AfterDenoised gocv.Mat

	Width, Height int
	Resampled     bool
}

// Close releases every native buffer
func (p *Preprocessed) Close() {
	for _, m := range []*gocv.Mat{
		&p.Before, &p.After,
		&p.BeforeGray, &p.AfterGray,
		&p.BeforeHSV, &p.AfterHSV,
		&p.BeforeDenoised, &p.AfterDenoised,
	} {
		m.Close()
	}
}

// DecodeImage turns raw bytes into an image, labelling failures with which
// input was unreadable
func DecodeImage(data []byte, label string) (image.Image, error) {
	if len(data) == 0 {
		return nil, apperrors.NewDecodeError(fmt.Sprintf("%s image is empty", label), nil)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewDecodeError(fmt.Sprintf("%s image is not a valid raster", label), err)
	}
	return img, nil
}

// Preprocess decodes both inputs and normalizes them
func Preprocess(before, after []byte, blurKernel int) (*Preprocessed, error) {
	beforeImg, err := DecodeImage(before, "before")
	if err != nil {
		return nil, err
	}
	afterImg, err := DecodeImage(after, "after")
	if err != nil {
		return nil, err
	}
	return PreprocessImages(beforeImg, afterImg, blurKernel)
}

// PreprocessImages resamples after to before's dimensions (aspect ratio is
// not preserved) and derives gray, HSV and denoised gray mats
func PreprocessImages(before, after image.Image, blurKernel int) (*Preprocessed, error) {
	if err := checkDimensions(before, "before"); err != nil {
		return nil, err
	}
	if err := checkDimensions(after, "after"); err != nil {
		return nil, err
	}
	if blurKernel <= 0 || blurKernel%2 == 0 {
		blurKernel = 5
	}

	beforeMat, err := matFromImage(before)
	if err != nil {
		return nil, err
	}
	afterMat, err := matFromImage(after)
	if err != nil {
		beforeMat.Close()
		return nil, err
	}

	p := &Preprocessed{
		Before: beforeMat,
		Width:  beforeMat.Cols(),
		Height: beforeMat.Rows(),
	}

	if afterMat.Cols() != p.Width || afterMat.Rows() != p.Height {
		resized := gocv.NewMat()
		gocv.Resize(afterMat, &resized, image.Pt(p.Width, p.Height), 0, 0, gocv.InterpolationLinear)
		afterMat.Close()
		afterMat = resized
		p.Resampled = true
	}
	p.After = afterMat

	p.BeforeGray, p.AfterGray = gocv.NewMat(), gocv.NewMat()
	gocv.CvtColor(p.Before, &p.BeforeGray, gocv.ColorBGRToGray)
	gocv.CvtColor(p.After, &p.AfterGray, gocv.ColorBGRToGray)

	p.BeforeHSV, p.AfterHSV = gocv.NewMat(), gocv.NewMat()
	gocv.CvtColor(p.Before, &p.BeforeHSV, gocv.ColorBGRToHSV)
	gocv.CvtColor(p.After, &p.AfterHSV, gocv.ColorBGRToHSV)

	kernel := image.Pt(blurKernel, blurKernel)
	p.BeforeDenoised, p.AfterDenoised = gocv.NewMat(), gocv.NewMat()
	gocv.GaussianBlur(p.BeforeGray, &p.BeforeDenoised, kernel, 0, 0, gocv.BorderDefault)
	gocv.GaussianBlur(p.AfterGray, &p.AfterDenoised, kernel, 0, 0, gocv.BorderDefault)

	return p, nil
}

func checkDimensions(img image.Image, label string) error {
	if img == nil {
		return apperrors.NewDecodeError(fmt.Sprintf("%s image is missing", label), nil)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return apperrors.NewDimensionError(
			fmt.Sprintf("%s image has zero area (%dx%d)", label, b.Dx(), b.Dy()), nil)
	}
	return nil
}

// matFromImage copies an image into a BGR mat
func matFromImage(img image.Image) (gocv.Mat, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	rgba, ok := img.(*image.RGBA)
	if !ok || b.Min != (image.Point{}) || rgba.Stride != 4*w {
		rgba = image.NewRGBA(image.Rect(0, 0, w, h))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}

	wrapped, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC4, rgba.Pix)
	if err != nil {
		return gocv.Mat{}, apperrors.NewDecodeError("could not convert raster", err)
	}
	defer wrapped.Close()

	bgr := gocv.NewMat()
	gocv.CvtColor(wrapped, &bgr, gocv.ColorRGBAToBGR)
	runtime.KeepAlive(rgba)
	return bgr, nil
}
