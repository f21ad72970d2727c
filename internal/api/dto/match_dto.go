package dto

// MatchResultRequest is the payload for creating or fully replacing a match
// result. Updates overwrite every field.
type MatchResultRequest struct {
	JobDescriptionID int64   `json:"job_description_id" binding:"required"`
	ConsultantID     int64   `json:"consultant_id" binding:"required"`
	Rank             int     `json:"rank" binding:"required,min=1"`
	SimilarityScore  float64 `json:"similarity_score"`
	MatchedAt        string  `json:"matched_at,omitempty"` // RFC3339, optional
}

type MatchResultDTO struct {
	ID               int64   `json:"id"`
	JobDescriptionID int64   `json:"job_description_id"`
	ConsultantID     int64   `json:"consultant_id"`
	Rank             int     `json:"rank"`
	SimilarityScore  float64 `json:"similarity_score"`
	MatchedAt        string  `json:"matched_at"`
}

type ListMatchResultsResponse struct {
	Matches []MatchResultDTO `json:"matches"`
}

type TopNRequest struct {
	Limit int `form:"limit"`
}

// RecomputeAcceptedResponse is returned when a recompute request is queued
// instead of executed synchronously.
type RecomputeAcceptedResponse struct {
	JobDescriptionID int64  `json:"job_description_id"`
	Status           string `json:"status"`
}
