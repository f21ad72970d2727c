package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/talentops/match-service/internal/api/dto"
	"github.com/talentops/match-service/internal/domain"
	"github.com/talentops/match-service/internal/match"
	"github.com/talentops/match-service/internal/model"
)

const defaultTopLimit = 10

// RecomputeMatches handles POST /api/v1/jobs/:job_id/matches/recompute
// Runs a full matching pass for the job description. With ?async=true the
// request is queued for the worker service instead.
func (h *MatchHandler) RecomputeMatches(c *gin.Context) {
	jobID, ok := h.pathID(c, "job_id")
	if !ok {
		return
	}

	h.logger.Info("RecomputeMatches called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.Int64("job_description_id", jobID),
	)

	if c.Query("async") == "true" {
		h.enqueueRecompute(c, jobID)
		return
	}

	entries, err := h.service.Recompute(c.Request.Context(), jobID)
	if err != nil {
		h.respondError(c, err, "An error occurred while recomputing match results.")
		return
	}

	c.JSON(http.StatusOK, entries)
}

// enqueueRecompute publishes a recompute request to the worker queue
func (h *MatchHandler) enqueueRecompute(c *gin.Context, jobID int64) {
	if h.rabbitClient == nil || !h.rabbitClient.IsConnected() {
		h.logger.Error("Recompute queue unavailable",
			slog.Int64("job_description_id", jobID),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Recompute queue is unavailable.",
		})
		return
	}

	body, err := json.Marshal(gin.H{"job_description_id": jobID})
	if err != nil {
		h.respondError(c, err, "An error occurred while queueing the recompute request.")
		return
	}

	if err := h.rabbitClient.PublishWithRetry(c.Request.Context(), body, "application/json"); err != nil {
		h.logger.Error("Failed to publish recompute request",
			slog.Int64("job_description_id", jobID),
			slog.Any("error", err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "An error occurred while queueing the recompute request.",
		})
		return
	}

	c.JSON(http.StatusAccepted, dto.RecomputeAcceptedResponse{
		JobDescriptionID: jobID,
		Status:           "queued",
	})
}

// GetTopThreeMatches handles GET /api/v1/jobs/:job_id/matches/top3
// Returns the top three ranked matches with full consultant profiles inlined
func (h *MatchHandler) GetTopThreeMatches(c *gin.Context) {
	jobID, ok := h.pathID(c, "job_id")
	if !ok {
		return
	}

	entries, err := h.service.TopThreeWithProfiles(c.Request.Context(), jobID)
	if err != nil {
		h.respondError(c, err, "An error occurred while fetching the match result.")
		return
	}

	c.JSON(http.StatusOK, entries)
}

// GetTopMatches handles GET /api/v1/jobs/:job_id/matches/top?limit=n
// Returns up to n matches ordered by ascending rank, stored shape only
func (h *MatchHandler) GetTopMatches(c *gin.Context) {
	jobID, ok := h.pathID(c, "job_id")
	if !ok {
		return
	}

	var req dto.TopNRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.Limit <= 0 {
		req.Limit = defaultTopLimit
	}

	results, err := h.service.TopN(c.Request.Context(), jobID, req.Limit)
	if err != nil {
		h.respondError(c, err, "An error occurred while fetching match results.")
		return
	}

	c.JSON(http.StatusOK, dto.ListMatchResultsResponse{Matches: toDTOs(results)})
}

// ListMatchesByJob handles GET /api/v1/jobs/:job_id/matches
// Returns every match result stored for the job description
func (h *MatchHandler) ListMatchesByJob(c *gin.Context) {
	jobID, ok := h.pathID(c, "job_id")
	if !ok {
		return
	}

	results, err := h.service.ListByJob(c.Request.Context(), jobID)
	if err != nil {
		h.respondError(c, err, "An error occurred while fetching match results for the job description ID.")
		return
	}

	c.JSON(http.StatusOK, dto.ListMatchResultsResponse{Matches: toDTOs(results)})
}

// GetMatch handles GET /api/v1/matches/:match_id
func (h *MatchHandler) GetMatch(c *gin.Context) {
	id, ok := h.pathID(c, "match_id")
	if !ok {
		return
	}

	result, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "An error occurred while fetching the match result.")
		return
	}

	c.JSON(http.StatusOK, toDTO(result))
}

// CreateMatch handles POST /api/v1/matches
func (h *MatchHandler) CreateMatch(c *gin.Context) {
	input, ok := h.bindInput(c)
	if !ok {
		return
	}

	result, err := h.service.Create(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, err, "An error occurred while adding the match result.")
		return
	}

	c.JSON(http.StatusCreated, toDTO(result))
}

// UpdateMatch handles PUT /api/v1/matches/:match_id
// Full replace: every field of the stored row is overwritten by the payload
func (h *MatchHandler) UpdateMatch(c *gin.Context) {
	id, ok := h.pathID(c, "match_id")
	if !ok {
		return
	}

	input, ok := h.bindInput(c)
	if !ok {
		return
	}

	result, err := h.service.Update(c.Request.Context(), id, input)
	if err != nil {
		h.respondError(c, err, "An error occurred while updating the match result.")
		return
	}

	c.JSON(http.StatusOK, toDTO(result))
}

// DeleteMatch handles DELETE /api/v1/matches/:match_id
func (h *MatchHandler) DeleteMatch(c *gin.Context) {
	id, ok := h.pathID(c, "match_id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, err, "An error occurred while deleting the match result.")
		return
	}

	c.Status(http.StatusNoContent)
}

// pathID parses a positive integer path parameter, answering 400 on failure
func (h *MatchHandler) pathID(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.logger.Error("Invalid path parameter",
			slog.String("param", name),
			slog.String("value", raw),
		)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": name + " must be a positive integer",
		})
		return 0, false
	}

	return id, true
}

// bindInput binds and validates the match result payload
func (h *MatchHandler) bindInput(c *gin.Context) (match.Input, bool) {
	var req dto.MatchResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return match.Input{}, false
	}

	input := match.Input{
		JobDescriptionID: req.JobDescriptionID,
		ConsultantID:     req.ConsultantID,
		Rank:             req.Rank,
		SimilarityScore:  req.SimilarityScore,
	}

	if req.MatchedAt != "" {
		matchedAt, err := time.Parse(time.RFC3339, req.MatchedAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "matched_at must be RFC3339",
			})
			return match.Input{}, false
		}
		input.MatchedAt = matchedAt
	}

	return input, true
}

// respondError maps service errors onto the 404/500 taxonomy. Anything that
// is not a known not-found condition surfaces as the generic message; the
// detail was already logged by the service.
func (h *MatchHandler) respondError(c *gin.Context, err error, genericMsg string) {
	switch {
	case errors.Is(err, domain.ErrMatchResultNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Match result not found."})
	case errors.Is(err, domain.ErrNoMatches):
		c.JSON(http.StatusNotFound, gin.H{"error": "No match results found for the given job description ID."})
	case errors.Is(err, domain.ErrMatchingFailed):
		c.JSON(http.StatusNotFound, gin.H{"error": "Matching produced no result for the job description."})
	case errors.Is(err, domain.ErrJobDescriptionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Job description not found."})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": genericMsg})
	}
}

func toDTO(result *model.MatchResult) dto.MatchResultDTO {
	return dto.MatchResultDTO{
		ID:               result.ID,
		JobDescriptionID: result.JobDescriptionID,
		ConsultantID:     result.ConsultantID,
		Rank:             result.Rank,
		SimilarityScore:  result.SimilarityScore,
		MatchedAt:        result.MatchedAt.Format(time.RFC3339),
	}
}

func toDTOs(results []model.MatchResult) []dto.MatchResultDTO {
	dtos := make([]dto.MatchResultDTO, len(results))
	for i := range results {
		dtos[i] = toDTO(&results[i])
	}
	return dtos
}
