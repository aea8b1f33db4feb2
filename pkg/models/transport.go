package models

// AnalyzeRequest asks for a before/after comparison
type AnalyzeRequest struct {
	BeforeImageID      string        `json:"before_image_id" binding:"required"`
	AfterImageID       string        `json:"after_image_id" binding:"required"`
	AnalysisLevel      AnalysisLevel `json:"analysis_level,omitempty"`
	DisasterType       DisasterType  `json:"disaster_type,omitempty"`
	Location           string        `json:"region,omitempty"`
	Async              *bool         `json:"async,omitempty"`
	IncludeDiagnostics bool          `json:"include_diagnostics,omitempty"`
}

// IsAsync defaults to true when the caller did not say
func (r AnalyzeRequest) IsAsync() bool {
	return r.Async == nil || *r.Async
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Type    string `json:"type,omitempty"`
}

// DeleteResponse acknowledges a deleted result
type DeleteResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}
