package analyzer

import (
	"encoding/base64"

	"gocv.io/x/gocv"

	apperrors "go-damage-assessor/internal/errors"
	"go-damage-assessor/pkg/models"
)

// BuildDiagnostics renders the difference heatmap and the change mask as
// base64 PNGs
func BuildDiagnostics(cs *ChangeSet, threshold float64) (*models.Diagnostics, error) {
	normalized := gocv.NewMat()
	defer normalized.Close()
	gocv.Normalize(cs.Difference, &normalized, 0, 255, gocv.NormMinMax)

	heatmap := gocv.NewMat()
	defer heatmap.Close()
	gocv.ApplyColorMap(normalized, &heatmap, gocv.ColormapJet)

	heat, err := encodePNGBase64(heatmap)
	if err != nil {
		return nil, err
	}
	mask, err := encodePNGBase64(cs.Mask)
	if err != nil {
		return nil, err
	}

	return &models.Diagnostics{
		DifferenceHeatmap: heat,
		ChangeMask:        mask,
		ChangedPixels:     cs.ChangedPixels,
		TotalPixels:       cs.TotalPixels,
		Threshold:         threshold,
	}, nil
}

func encodePNGBase64(m gocv.Mat) (string, error) {
	buf, err := gocv.IMEncode(gocv.PNGFileExt, m)
	if err != nil {
		return "", apperrors.NewPipelineStageError("diagnostics", err)
	}
	defer buf.Close()
	return base64.StdEncoding.EncodeToString(buf.GetBytes()), nil
}
