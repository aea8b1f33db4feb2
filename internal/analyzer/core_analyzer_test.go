package analyzer

import (
	"context"
	"errors"
	"image"
	"reflect"
	"sync"
	"testing"

	apperrors "go-damage-assessor/internal/errors"
	"go-damage-assessor/pkg/models"
)

// floodPair is a uniform gray scene where a 200x200 blue patch appears at (50,50)
func floodPair(t *testing.T) (before, after []byte) {
	t.Helper()
	base := createTestImage(300, 300, gray128)
	flooded := fillRect(base, image.Rect(50, 50, 250, 250), blue)
	return encodePNG(t, base), encodePNG(t, flooded)
}

func assertRegionInvariants(t *testing.T, res *models.AnalysisResult) {
	t.Helper()
	for _, group := range res.AllRegions() {
		for _, r := range group {
			if !r.BBox.Within(res.Width, res.Height) {
				t.Errorf("%s region %d bbox %+v outside %dx%d", r.Category, r.ID, r.BBox, res.Width, res.Height)
			}
			if r.Area <= 0 {
				t.Errorf("%s region %d has area %v", r.Category, r.ID, r.Area)
			}
			if r.Confidence < 0 || r.Confidence > 1 {
				t.Errorf("%s region %d has confidence %v", r.Category, r.ID, r.Confidence)
			}
		}
	}
}

func TestNewPipeline(t *testing.T) {
	p := NewPipeline()
	if p == nil {
		t.Fatal("Expected non-nil pipeline")
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close returned %v", err)
	}
}

func TestRun_IdenticalImages(t *testing.T) {
	img := encodePNG(t, createTestImage(200, 200, gray128))

	res, err := NewPipeline().Run(context.Background(), img, img, DefaultOptions(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.ChangedPercentage != 0 {
		t.Errorf("Expected 0%% change, got %v", res.ChangedPercentage)
	}
	for i, group := range res.AllRegions() {
		if len(group) != 0 {
			t.Errorf("collection %d: expected no regions, got %d", i, len(group))
		}
	}
	if res.SeverityScore != 0 {
		t.Errorf("Expected score 0.0, got %v", res.SeverityScore)
	}
}

func TestRun_FloodPatch(t *testing.T) {
	before, after := floodPair(t)

	res, err := NewPipeline().Run(context.Background(), before, after, DefaultOptions(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(res.FloodAreas) != 1 {
		t.Fatalf("Expected exactly one flood region, got %d", len(res.FloodAreas))
	}
	flood := res.FloodAreas[0]
	want := models.BBox{X: 50, Y: 50, Width: 200, Height: 200}
	if abs(flood.BBox.X-want.X) > 2 || abs(flood.BBox.Y-want.Y) > 2 ||
		abs(flood.BBox.Width-want.Width) > 4 || abs(flood.BBox.Height-want.Height) > 4 {
		t.Errorf("flood bbox = %+v, want about %+v", flood.BBox, want)
	}
	if flood.Flood == nil || flood.Flood.WaterDepth == "" {
		t.Errorf("Expected a water depth bucket, got %+v", flood.Flood)
	}
	if res.ChangedPercentage <= 0 {
		t.Error("Expected a positive changed percentage")
	}
	if len(res.DamageRegions) == 0 {
		t.Error("Expected at least one generic damage region")
	} else if res.DamageRegions[0].Generic.Kind != models.KindFlooding {
		t.Errorf("Expected Flooding kind, got %s", res.DamageRegions[0].Generic.Kind)
	}
	if res.SeverityScore <= 0 || res.SeverityScore > 10 {
		t.Errorf("score out of range: %v", res.SeverityScore)
	}
	if res.Assessment == nil || len(res.Assessment.Recommendations) == 0 {
		t.Error("Expected a scene assessment with recommendations")
	}
	assertRegionInvariants(t, res)
}

func TestRun_DimensionMismatchResamples(t *testing.T) {
	before := encodePNG(t, createTestImage(300, 200, gray128))
	after := encodePNG(t, createTestImage(150, 100, gray128))

	res, err := NewPipeline().Run(context.Background(), before, after, DefaultOptions(), nil)
	if err != nil {
		t.Fatalf("mismatched dimensions should not fail: %v", err)
	}
	if !res.Resampled {
		t.Error("Expected Resampled to be set")
	}
	if res.Width != 300 || res.Height != 200 {
		t.Errorf("Expected before dimensions 300x200, got %dx%d", res.Width, res.Height)
	}
	assertRegionInvariants(t, res)
}

func TestRun_Idempotent(t *testing.T) {
	before, after := floodPair(t)
	pl := NewPipeline()
	opts := DetailedOptions()

	first, err := pl.Run(context.Background(), before, after, opts, nil)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := pl.Run(context.Background(), before, after, opts, nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if first.ChangedPercentage != second.ChangedPercentage {
		t.Errorf("changed percentage differs: %v vs %v", first.ChangedPercentage, second.ChangedPercentage)
	}
	if first.SeverityScore != second.SeverityScore {
		t.Errorf("score differs: %v vs %v", first.SeverityScore, second.SeverityScore)
	}
	if !reflect.DeepEqual(first.AllRegions(), second.AllRegions()) {
		t.Error("region sets differ between identical runs")
	}
}

func TestRun_ThresholdMonotonic(t *testing.T) {
	before := encodePNG(t, createGradientImage(200, 200))
	after := encodePNG(t, createCheckerboard(200, 200, 10))
	pl := NewPipeline()

	prev := 101.0
	for _, threshold := range []float64{5, 20, 30, 60, 120, 200} {
		res, err := pl.Run(context.Background(), before, after, DefaultOptions().WithThreshold(threshold), nil)
		if err != nil {
			t.Fatalf("threshold %v: %v", threshold, err)
		}
		if res.ChangedPercentage > prev {
			t.Errorf("threshold %v increased change from %v to %v", threshold, prev, res.ChangedPercentage)
		}
		prev = res.ChangedPercentage
	}
}

func TestRun_LevelIndependentDetection(t *testing.T) {
	base := createTestImage(300, 300, gray128)
	afterImg := fillRect(base, image.Rect(50, 50, 250, 250), blue)
	afterImg = fillRect(afterImg, image.Rect(10, 260, 120, 295), brown)
	before, after := encodePNG(t, base), encodePNG(t, afterImg)
	pl := NewPipeline()

	boxes := func(res *models.AnalysisResult) [][]models.BBox {
		var out [][]models.BBox
		for _, group := range res.AllRegions() {
			var bb []models.BBox
			for _, r := range group {
				bb = append(bb, r.BBox)
			}
			out = append(out, bb)
		}
		return out
	}

	var reference [][]models.BBox
	for _, level := range []models.AnalysisLevel{models.LevelBasic, models.LevelStandard, models.LevelDetailed} {
		res, err := pl.Run(context.Background(), before, after, DefaultOptions().WithLevel(level), nil)
		if err != nil {
			t.Fatalf("%s: %v", level, err)
		}
		got := boxes(res)
		if reference == nil {
			reference = got
			continue
		}
		if !reflect.DeepEqual(reference, got) {
			t.Errorf("%s detected different regions: %v vs %v", level, got, reference)
		}
	}
}

func TestRun_LevelGatesMetadata(t *testing.T) {
	before, after := floodPair(t)
	pl := NewPipeline()

	basic, err := pl.Run(context.Background(), before, after, BasicOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}
	detailed, err := pl.Run(context.Background(), before, after, DetailedOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}

	if basic.FloodAreas[0].Flood.WaterDepth != "" || basic.DamageRegions[0].Generic.MeanColorChange != nil {
		t.Error("basic level should attach measurements only")
	}
	fd := detailed.FloodAreas[0].Flood
	if fd.WaterDepth == "" || fd.RecoveryEstimate == "" || fd.FlowDirection == "" || fd.AreaSquareMeters <= 0 {
		t.Errorf("detailed level should attach every optional field, got %+v", fd)
	}
	if detailed.DamageRegions[0].Generic.Signals == nil {
		t.Error("detailed level should attach the signal breakdown")
	}
}

func TestRun_VegetationLoss(t *testing.T) {
	base := createTestImage(300, 300, gray128)
	beforeImg := fillRect(base, image.Rect(40, 40, 160, 140), green)
	afterImg := fillRect(base, image.Rect(40, 40, 160, 140), brown)

	res, err := NewPipeline().Run(context.Background(), encodePNG(t, beforeImg), encodePNG(t, afterImg), DefaultOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.VegetationLoss) != 1 {
		t.Fatalf("Expected one vegetation loss region, got %d", len(res.VegetationLoss))
	}
	if res.VegetationLoss[0].Vegetation.Density == "" {
		t.Error("Expected a density bucket at standard level")
	}
	if len(res.FloodAreas) != 0 {
		t.Errorf("Expected no flood regions, got %d", len(res.FloodAreas))
	}
}

func TestRun_BuildingDamage(t *testing.T) {
	base := createTestImage(300, 300, gray128)
	footprint := image.Rect(60, 60, 160, 140)
	beforeImg := fillRect(base, footprint, dark)
	afterImg := fillRect(base, image.Rectangle{}, dark)
	rubble := createCheckerboard(300, 300, 3)
	for y := footprint.Min.Y; y < footprint.Max.Y; y++ {
		for x := footprint.Min.X; x < footprint.Max.X; x++ {
			afterImg.SetRGBA(x, y, rubble.RGBAAt(x, y))
		}
	}

	res, err := NewPipeline().Run(context.Background(), encodePNG(t, beforeImg), encodePNG(t, afterImg), DefaultOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.BuildingDamage) != 1 {
		t.Fatalf("Expected one damaged building, got %d", len(res.BuildingDamage))
	}
	b := res.BuildingDamage[0].Building
	if b.Vertices < 4 || b.Vertices > 8 {
		t.Errorf("vertices = %d", b.Vertices)
	}
	if b.Severity != models.BuildingCollapsed {
		t.Errorf("Expected Collapsed, got %s (mse %v)", b.Severity, b.MeanSquaredError)
	}
	assertRegionInvariants(t, res)
}

func TestRun_RoadDamage(t *testing.T) {
	base := createTestImage(300, 300, green)
	strip := image.Rect(0, 120, 300, 160)
	beforeImg := fillRect(base, strip, gray128)
	patches := []image.Rectangle{image.Rect(40, 100, 90, 180), image.Rect(190, 100, 240, 180)}
	afterImg := beforeImg
	for _, patch := range patches {
		afterImg = fillRect(afterImg, patch, dark)
	}

	opts := DefaultOptions()
	p, err := PreprocessImages(beforeImg, afterImg, opts.Tuning.BlurKernelSize)
	if err != nil {
		t.Fatal(err)
	}
	changes := ExtractChanges(p, opts.Tuning)
	want := map[models.BBox]bool{}
	for _, cand := range changes.Candidates {
		if seg := strip.Intersect(cand.Rect); !seg.Empty() {
			want[models.BBoxFromRect(seg)] = true
		}
	}
	changes.Close()
	p.Close()
	if len(want) != 2 {
		t.Fatalf("Expected two changed segments on the strip, got %v", want)
	}

	before, after := encodePNG(t, beforeImg), encodePNG(t, afterImg)
	res, err := NewPipeline().Run(context.Background(), before, after, opts, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.RoadDamage) != 2 {
		t.Fatalf("Expected two damaged road segments, got %d", len(res.RoadDamage))
	}
	for _, r := range res.RoadDamage {
		if !want[r.BBox] {
			t.Errorf("unexpected road bbox %+v, want one of %v", r.BBox, want)
		}
		if r.BBox.Y != strip.Min.Y || r.BBox.Height != strip.Dy() {
			t.Errorf("road bbox %+v should span the strip rows", r.BBox)
		}
		covered := false
		for _, patch := range patches {
			if r.BBox.X <= patch.Min.X && r.BBox.X+r.BBox.Width >= patch.Max.X {
				covered = true
			}
		}
		if !covered {
			t.Errorf("road bbox %+v does not cover a damaged patch", r.BBox)
		}
		d := r.Road
		if d == nil {
			t.Fatal("road detail missing")
		}
		if d.Severity != RoadSeverityFor(d.TextureDifference) {
			t.Errorf("severity %s does not match texture %v", d.Severity, d.TextureDifference)
		}
		if d.LengthMeters <= 0 {
			t.Errorf("standard level should report length, got %v", d.LengthMeters)
		}
		if d.RecoveryEstimate != "" || d.AreaSquareMeters != 0 {
			t.Errorf("standard level should not report recovery or area: %+v", d)
		}
	}
	assertRegionInvariants(t, res)

	basic, err := NewPipeline().Run(context.Background(), before, after, BasicOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(basic.RoadDamage) != 2 {
		t.Fatalf("basic level: expected two road segments, got %d", len(basic.RoadDamage))
	}
	for _, r := range basic.RoadDamage {
		if r.Road.LengthMeters != 0 {
			t.Errorf("basic level should omit length, got %v", r.Road.LengthMeters)
		}
	}
}

type failingClassifier struct {
	panics bool
}

func (f failingClassifier) Name() string              { return "broken" }
func (f failingClassifier) Category() models.Category { return models.CategoryRoad }
func (f failingClassifier) Classify(ctx context.Context, in *ClassifierInput) ([]models.Region, error) {
	if f.panics {
		panic("detector exploded")
	}
	return nil, errors.New("detector failed")
}

func TestRun_ClassifierFailureDegrades(t *testing.T) {
	before, after := floodPair(t)

	for _, panics := range []bool{false, true} {
		pl := NewPipeline(failingClassifier{panics: panics}, NewFloodDetector(nil))
		res, err := pl.Run(context.Background(), before, after, DefaultOptions(), nil)
		if err != nil {
			t.Fatalf("panics=%v: classifier failure should not fail the run: %v", panics, err)
		}
		if res.RoadDamage == nil || len(res.RoadDamage) != 0 {
			t.Errorf("panics=%v: failed category should be an empty list, got %v", panics, res.RoadDamage)
		}
		if len(res.FloodAreas) != 1 {
			t.Errorf("panics=%v: sibling classifier output lost", panics)
		}
	}
}

func TestRun_ProgressIsMonotonic(t *testing.T) {
	before, after := floodPair(t)

	var mu sync.Mutex
	var seen []int
	sink := func(progress int, message string) {
		mu.Lock()
		defer mu.Unlock()
		if message == "" {
			t.Error("checkpoint without a message")
		}
		seen = append(seen, progress)
	}

	if _, err := NewPipeline().Run(context.Background(), before, after, DefaultOptions(), sink); err != nil {
		t.Fatal(err)
	}

	if len(seen) < 10 {
		t.Fatalf("Expected every checkpoint to be reported, got %v", seen)
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] < seen[i-1] {
			t.Errorf("progress regressed: %v", seen)
		}
	}
	if seen[0] != progressDecoded || seen[len(seen)-1] != progressScored {
		t.Errorf("unexpected first/last checkpoints: %v", seen)
	}
}

func TestRun_Diagnostics(t *testing.T) {
	before, after := floodPair(t)

	res, err := NewPipeline().Run(context.Background(), before, after, DefaultOptions().WithDiagnostics(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Diagnostics == nil || res.Diagnostics.DifferenceHeatmap == "" || res.Diagnostics.ChangeMask == "" {
		t.Fatal("Expected encoded diagnostics")
	}
	if res.Diagnostics.TotalPixels != 300*300 {
		t.Errorf("TotalPixels = %d", res.Diagnostics.TotalPixels)
	}
}

func TestRun_DecodeError(t *testing.T) {
	good := encodePNG(t, createTestImage(10, 10, gray128))

	_, err := NewPipeline().Run(context.Background(), []byte("not an image"), good, DefaultOptions(), nil)
	if !apperrors.IsType(err, apperrors.ErrorTypeDecode) {
		t.Errorf("Expected decode error, got %v", err)
	}
	_, err = NewPipeline().Run(context.Background(), good, nil, DefaultOptions(), nil)
	if !apperrors.IsType(err, apperrors.ErrorTypeDecode) {
		t.Errorf("Expected decode error for empty input, got %v", err)
	}
}

func TestPreprocess_ZeroArea(t *testing.T) {
	empty := image.NewRGBA(image.Rect(0, 0, 0, 0))
	_, err := PreprocessImages(empty, createTestImage(10, 10, gray128), 5)
	if !apperrors.IsType(err, apperrors.ErrorTypeDimension) {
		t.Errorf("Expected dimension error, got %v", err)
	}
}

func TestRun_Cancelled(t *testing.T) {
	before, after := floodPair(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPipeline().Run(ctx, before, after, DefaultOptions(), nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
