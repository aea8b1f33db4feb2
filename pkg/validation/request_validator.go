package validation

import (
	"fmt"
	"net/url"
	"strings"

	apperrors "go-damage-assessor/internal/errors"
	"go-damage-assessor/pkg/models"
)

// MaxImageIDLength bounds image identifiers accepted at the API boundary
const MaxImageIDLength = 128

// RequestValidator checks analysis requests and store endpoints before any
// work is scheduled
type RequestValidator struct {
	allowedSchemes []string
	defaultLevel   models.AnalysisLevel
}

// NewRequestValidator creates a validator that fills empty levels with defaultLevel
func NewRequestValidator(defaultLevel models.AnalysisLevel) *RequestValidator {
	if !defaultLevel.Valid() {
		defaultLevel = models.LevelStandard
	}
	return &RequestValidator{
		allowedSchemes: []string{"http", "https"},
		defaultLevel:   defaultLevel,
	}
}

// ValidateAnalyzeRequest normalizes and validates req in place
func (v *RequestValidator) ValidateAnalyzeRequest(req *models.AnalyzeRequest) error {
	if req == nil {
		return apperrors.NewValidationError("request body is required", nil)
	}
	req.BeforeImageID = strings.TrimSpace(req.BeforeImageID)
	req.AfterImageID = strings.TrimSpace(req.AfterImageID)

	if err := v.ValidateImageID(req.BeforeImageID); err != nil {
		return apperrors.NewValidationError("invalid before_image_id", err)
	}
	if err := v.ValidateImageID(req.AfterImageID); err != nil {
		return apperrors.NewValidationError("invalid after_image_id", err)
	}

	if req.AnalysisLevel == "" {
		req.AnalysisLevel = v.defaultLevel
	}
	if !req.AnalysisLevel.Valid() {
		return apperrors.NewValidationError(
			fmt.Sprintf("analysis_level must be one of basic, standard, detailed; got %q", req.AnalysisLevel), nil)
	}

	req.DisasterType = models.DisasterType(strings.ToLower(string(req.DisasterType)))
	if req.DisasterType != "" && !req.DisasterType.Valid() {
		return apperrors.NewValidationError(fmt.Sprintf("unknown disaster_type %q", req.DisasterType), nil)
	}
	return nil
}

// ValidateImageID accepts ids made of letters, digits, '.', '_' and '-' that
// cannot escape a storage directory
func (v *RequestValidator) ValidateImageID(id string) error {
	if id == "" {
		return apperrors.NewValidationError("image id cannot be empty", nil)
	}
	if len(id) > MaxImageIDLength {
		return apperrors.NewValidationError(fmt.Sprintf("image id exceeds %d characters", MaxImageIDLength), nil)
	}
	if id == "." || strings.Contains(id, "..") {
		return apperrors.NewValidationError("image id cannot contain path traversal", nil)
	}
	for _, r := range id {
		if !isIDRune(r) {
			return apperrors.NewValidationError(fmt.Sprintf("image id contains invalid character %q", r), nil)
		}
	}
	return nil
}

func isIDRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.', r == '_', r == '-':
		return true
	}
	return false
}

// ValidateBaseURL checks the endpoint of a remote image store
func (v *RequestValidator) ValidateBaseURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return apperrors.NewValidationError("URL cannot be empty", nil)
	}

	parsedURL, err := url.Parse(raw)
	if err != nil {
		return apperrors.NewValidationError("Invalid URL format", err)
	}

	if !v.isSchemeAllowed(parsedURL.Scheme) {
		return apperrors.NewValidationError("URL scheme not allowed", nil)
	}

	if parsedURL.Host == "" {
		return apperrors.NewValidationError("URL must have a valid host", nil)
	}
	return nil
}

// isSchemeAllowed checks if the URL scheme is in the allowed list
func (v *RequestValidator) isSchemeAllowed(scheme string) bool {
	for _, allowed := range v.allowedSchemes {
		if scheme == allowed {
			return true
		}
	}
	return false
}
