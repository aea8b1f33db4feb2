package analyzer

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"gocv.io/x/gocv"
)

// createTestImage creates a solid test image
func createTestImage(width, height int, fillColor color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, fillColor)
		}
	}
	return img
}

// createGradientImage creates a diagonal black-to-white gradient
func createGradientImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			intensity := uint8((x + y) * 255 / (width + height))
			img.SetRGBA(x, y, color.RGBA{intensity, intensity, intensity, 255})
		}
	}
	return img
}

// fillRect paints r on a copy of img
func fillRect(img *image.RGBA, r image.Rectangle, c color.RGBA) *image.RGBA {
	out := image.NewRGBA(img.Bounds())
	copy(out.Pix, img.Pix)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			out.SetRGBA(x, y, c)
		}
	}
	return out
}

// createCheckerboard creates a high-frequency pattern with the given cell size
func createCheckerboard(width, height, cell int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := uint8(0)
			if (x/cell+y/cell)%2 == 0 {
				v = 255
			}
			img.SetRGBA(x, y, color.RGBA{v, v, v, 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func mustMat(t *testing.T, img image.Image) gocv.Mat {
	t.Helper()
	m, err := matFromImage(img)
	if err != nil {
		t.Fatalf("matFromImage: %v", err)
	}
	return m
}

func mustPreprocess(t *testing.T, before, after image.Image) *Preprocessed {
	t.Helper()
	p, err := PreprocessImages(before, after, 5)
	if err != nil {
		t.Fatalf("PreprocessImages: %v", err)
	}
	return p
}

var (
	gray128 = color.RGBA{128, 128, 128, 255}
	blue    = color.RGBA{0, 0, 255, 255}
	green   = color.RGBA{30, 160, 40, 255}
	brown   = color.RGBA{120, 90, 60, 255}
	dark    = color.RGBA{40, 40, 40, 255}
)
