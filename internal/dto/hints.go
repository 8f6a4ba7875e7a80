package dto

// FieldHint is one suggestion supplied by the document/AI extraction
// collaborator. The engine consumes these as opaque hints; it performs no
// extraction itself.
type FieldHint struct {
	FieldName      string  `json:"fieldName" binding:"required"`
	SuggestedValue string  `json:"suggestedValue"`
	Confidence     float64 `json:"confidence"`
}

// ApplyHintsRequest records AI suggestions against an invoice's fields.
type ApplyHintsRequest struct {
	Version int64       `json:"version" binding:"required"`
	Hints   []FieldHint `json:"hints" binding:"required,min=1,dive"`
}
