// Package matching is the client for the external agent-matching engine.
// The engine owns the actual ranking logic; this package only carries the
// request/response contract.
package matching

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/talentops/match-service/internal/model"
)

const contentType = "application/json"

// Config holds matching engine client configuration
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client calls the agent-matching engine over HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Profile is the consultant payload exchanged with the engine
type Profile struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Skills       string `json:"skills"`
	Experience   int    `json:"experience"`
	Location     string `json:"location"`
	Availability string `json:"availability"`
}

// RankedMatch is one scored pairing in the engine's output order
type RankedMatch struct {
	Profile         Profile `json:"profile"`
	SimilarityScore float64 `json:"similarity_score"`
}

// Result is the engine's response for one matching run
type Result struct {
	Message    string        `json:"message"`
	AllMatches []RankedMatch `json:"all_matches"`
}

type runRequest struct {
	JobDescription jobPayload `json:"job_description"`
	Profiles       []Profile  `json:"profiles"`
}

type jobPayload struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// NewClient creates a new matching engine client
func NewClient(cfg *Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Run submits a matching run for the job against the candidate pool.
// A nil Result with nil error means the engine declined to produce a
// result for this job.
func (c *Client) Run(ctx context.Context, jd *model.JobDescription, profiles []model.ConsultantProfile) (*Result, error) {
	var jobID int64
	if jd != nil {
		jobID = jd.ID
	}

	payload := runRequest{
		Profiles: make([]Profile, len(profiles)),
	}
	// The run is submitted even without a job description; the engine
	// answers an empty job with no result.
	if jd != nil {
		payload.JobDescription = jobPayload{
			ID:          jd.ID,
			Title:       jd.Title,
			Description: jd.Description,
		}
	}

	for i, p := range profiles {
		payload.Profiles[i] = Profile{
			ID:           p.ID,
			Name:         p.Name,
			Skills:       p.Skills,
			Experience:   p.Experience,
			Location:     p.Location,
			Availability: p.NormalizedAvailability().String(),
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal matching request: %w", err)
	}

	url := c.baseURL + "/v1/matching/run"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build matching request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	c.logger.Debug("Invoking matching engine",
		slog.Int64("job_description_id", jobID),
		slog.Int("pool_size", len(profiles)),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("matching engine request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusNoContent:
		// Engine had nothing to say about this job.
		return nil, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("matching engine returned status %d: %s", resp.StatusCode, string(snippet))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode matching response: %w", err)
	}

	c.logger.Debug("Matching engine run finished",
		slog.Int64("job_description_id", jobID),
		slog.Int("matches", len(result.AllMatches)),
	)

	return &result, nil
}
