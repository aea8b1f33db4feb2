package analyzer

import (
	"math"

	"gocv.io/x/gocv"
)

const (
	histHueBins = 50
	histSatBins = 60
)

// metricsCalculator implements MetricsCalculator on top of OpenCV
type metricsCalculator struct{}

// NewMetricsCalculator creates a new crop metrics calculator
func NewMetricsCalculator() MetricsCalculator {
	return &metricsCalculator{}
}

// MeanAbsDifference averages |before-after| over every pixel and channel
func (mc *metricsCalculator) MeanAbsDifference(before, after gocv.Mat) float64 {
	ch := mc.ChannelAbsDifference(before, after)
	n := before.Channels()
	if n <= 0 {
		return 0
	}
	if n > 3 {
		n = 3
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += ch[i]
	}
	return sum / float64(n)
}

// ChannelAbsDifference returns the per-channel mean absolute difference
func (mc *metricsCalculator) ChannelAbsDifference(before, after gocv.Mat) [3]float64 {
	if before.Empty() || after.Empty() {
		return [3]float64{}
	}
	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(before, after, &diff)

	mean := diff.Mean()
	return [3]float64{mean.Val1, mean.Val2, mean.Val3}
}

// MeanSquaredError compares two single-channel crops
func (mc *metricsCalculator) MeanSquaredError(beforeGray, afterGray gocv.Mat) float64 {
	if beforeGray.Empty() || afterGray.Empty() {
		return 0
	}
	a, b := gocv.NewMat(), gocv.NewMat()
	defer a.Close()
	defer b.Close()
	beforeGray.ConvertTo(&a, gocv.MatTypeCV32F)
	afterGray.ConvertTo(&b, gocv.MatTypeCV32F)

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.Subtract(a, b, &diff)

	sq := gocv.NewMat()
	defer sq.Close()
	gocv.Multiply(diff, diff, &sq)

	return sq.Mean().Val1
}

// TextureDifference is the mean absolute difference of Sobel gradient magnitudes
func (mc *metricsCalculator) TextureDifference(beforeGray, afterGray gocv.Mat) float64 {
	if beforeGray.Empty() || afterGray.Empty() {
		return 0
	}
	magBefore := gradientMagnitude(beforeGray)
	defer magBefore.Close()
	magAfter := gradientMagnitude(afterGray)
	defer magAfter.Close()

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(magBefore, magAfter, &diff)

	return diff.Mean().Val1
}

func gradientMagnitude(gray gocv.Mat) gocv.Mat {
	gx, gy := gocv.NewMat(), gocv.NewMat()
	defer gx.Close()
	defer gy.Close()
	gocv.Sobel(gray, &gx, gocv.MatTypeCV64F, 1, 0, 3, 1, 0, gocv.BorderDefault)
	gocv.Sobel(gray, &gy, gocv.MatTypeCV64F, 0, 1, 3, 1, 0, gocv.BorderDefault)

	mag := gocv.NewMat()
	gocv.Magnitude(gx, gy, &mag)
	return mag
}

// HistogramCorrelation compares hue/saturation histograms of two HSV crops.
// Identical color distributions give 1.
func (mc *metricsCalculator) HistogramCorrelation(beforeHSV, afterHSV gocv.Mat) float64 {
	if beforeHSV.Empty() || afterHSV.Empty() {
		return 0
	}
	h1 := hueSatHistogram(beforeHSV)
	defer h1.Close()
	h2 := hueSatHistogram(afterHSV)
	defer h2.Close()

	corr := float64(gocv.CompareHist(h1, h2, gocv.HistCmpCorrel))
	if math.IsNaN(corr) || math.IsInf(corr, 0) {
		return 0
	}
	return corr
}

func hueSatHistogram(hsv gocv.Mat) gocv.Mat {
	mask := gocv.NewMat()
	defer mask.Close()

	hist := gocv.NewMat()
	gocv.CalcHist([]gocv.Mat{hsv}, []int{0, 1}, mask, &hist,
		[]int{histHueBins, histSatBins}, []float64{0, 180, 0, 256}, false)
	gocv.Normalize(hist, &hist, 0, 1, gocv.NormMinMax)
	return hist
}

// ChannelMeans returns the mean of the first three channels (B, G, R for color mats)
func (mc *metricsCalculator) ChannelMeans(m gocv.Mat) [3]float64 {
	if m.Empty() {
		return [3]float64{}
	}
	mean := m.Mean()
	return [3]float64{mean.Val1, mean.Val2, mean.Val3}
}

// LaplacianVariance measures sharpness of a gray image
func (mc *metricsCalculator) LaplacianVariance(gray gocv.Mat) float64 {
	if gray.Empty() {
		return 0
	}
	lap := gocv.NewMat()
	defer lap.Close()
	gocv.Laplacian(gray, &lap, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault)

	mean, stddev := gocv.NewMat(), gocv.NewMat()
	defer mean.Close()
	defer stddev.Close()
	gocv.MeanStdDev(lap, &mean, &stddev)

	sd := stddev.GetDoubleAt(0, 0)
	return sd * sd
}
