package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/talentops/match-service/internal/domain"
	"github.com/talentops/match-service/internal/model"
	"github.com/talentops/match-service/shared/postgresql"
)

// Storage handles all database operations for the match service.
// It is shared by the API and worker binaries, which operate on the
// same set of tables.
type Storage struct {
	client *postgresql.Client
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(pg *postgresql.Client, logger *slog.Logger) *Storage {
	return &Storage{
		client: pg,
		db:     pg.GetDB(),
		logger: logger,
	}
}

func (s *Storage) GetMatchResultByID(ctx context.Context, id int64) (*model.MatchResult, error) {
	query := `
		SELECT id, job_description_id, consultant_id, rank, similarity_score, matched_at
		FROM match_results
		WHERE id = $1
	`

	var result model.MatchResult
	err := s.db.GetContext(ctx, &result, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMatchResultNotFound
		}
		return nil, fmt.Errorf("failed to get match result: %w", err)
	}

	return &result, nil
}

// ListMatchResultsByJob returns all match results for a job description in
// storage order. An empty slice is not an error at this layer.
func (s *Storage) ListMatchResultsByJob(ctx context.Context, jobID int64) ([]model.MatchResult, error) {
	query := `
		SELECT id, job_description_id, consultant_id, rank, similarity_score, matched_at
		FROM match_results
		WHERE job_description_id = $1
	`

	var results []model.MatchResult
	if err := s.db.SelectContext(ctx, &results, query, jobID); err != nil {
		return nil, fmt.Errorf("failed to list match results: %w", err)
	}

	return results, nil
}

// TopMatchResults returns up to limit match results for a job description
// ordered by ascending rank (rank 1 is the best match).
func (s *Storage) TopMatchResults(ctx context.Context, jobID int64, limit int) ([]model.MatchResult, error) {
	query := `
		SELECT id, job_description_id, consultant_id, rank, similarity_score, matched_at
		FROM match_results
		WHERE job_description_id = $1
		ORDER BY rank ASC
		LIMIT $2
	`

	var results []model.MatchResult
	if err := s.db.SelectContext(ctx, &results, query, jobID, limit); err != nil {
		return nil, fmt.Errorf("failed to get top match results: %w", err)
	}

	return results, nil
}

func (s *Storage) CreateMatchResult(ctx context.Context, result *model.MatchResult) error {
	query := `
		INSERT INTO match_results (job_description_id, consultant_id, rank, similarity_score, matched_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := s.db.QueryRowContext(
		ctx,
		query,
		result.JobDescriptionID,
		result.ConsultantID,
		result.Rank,
		result.SimilarityScore,
		result.MatchedAt,
	).Scan(&result.ID)

	if err != nil {
		return fmt.Errorf("failed to create match result: %w", err)
	}

	return nil
}

// UpdateMatchResult overwrites every mutable column of the row. Full-replace
// semantics: callers supply the complete field set.
func (s *Storage) UpdateMatchResult(ctx context.Context, result *model.MatchResult) error {
	query := `
		UPDATE match_results
		SET job_description_id = $1,
		    consultant_id = $2,
		    rank = $3,
		    similarity_score = $4,
		    matched_at = $5
		WHERE id = $6
	`

	res, err := s.db.ExecContext(
		ctx,
		query,
		result.JobDescriptionID,
		result.ConsultantID,
		result.Rank,
		result.SimilarityScore,
		result.MatchedAt,
		result.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update match result: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.ErrMatchResultNotFound
	}

	return nil
}

func (s *Storage) DeleteMatchResult(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM match_results WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete match result: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.ErrMatchResultNotFound
	}

	return nil
}

// ReplaceMatchesForJob removes every prior match result for the job and
// inserts the fresh ranked set in one transaction, so a failed recompute
// never leaves stale ranks mixed with new ones.
func (s *Storage) ReplaceMatchesForJob(ctx context.Context, jobID int64, results []model.MatchResult) error {
	return s.client.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM match_results WHERE job_description_id = $1`, jobID); err != nil {
			return fmt.Errorf("failed to delete prior match results: %w", err)
		}

		query := `
			INSERT INTO match_results (job_description_id, consultant_id, rank, similarity_score, matched_at)
			VALUES ($1, $2, $3, $4, $5)
		`

		for i := range results {
			r := &results[i]
			if _, err := tx.ExecContext(ctx, query, r.JobDescriptionID, r.ConsultantID, r.Rank, r.SimilarityScore, r.MatchedAt); err != nil {
				return fmt.Errorf("failed to insert match result rank %d: %w", r.Rank, err)
			}
		}

		return nil
	})
}

func (s *Storage) GetJobDescription(ctx context.Context, id int64) (*model.JobDescription, error) {
	query := `
		SELECT id, title, description, requestor_email, created_at
		FROM job_descriptions
		WHERE id = $1
	`

	var jd model.JobDescription
	err := s.db.GetContext(ctx, &jd, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobDescriptionNotFound
		}
		return nil, fmt.Errorf("failed to get job description: %w", err)
	}

	return &jd, nil
}

// GetConsultantProfile fetches a consultant by id. A missing consultant is
// not an error here: match rows can outlive the profile they point at, and
// read paths render those as a null profile.
func (s *Storage) GetConsultantProfile(ctx context.Context, id int64) (*model.ConsultantProfile, error) {
	query := `
		SELECT id, name, skills, experience, location, availability
		FROM consultant_profiles
		WHERE id = $1
	`

	var profile model.ConsultantProfile
	err := s.db.GetContext(ctx, &profile, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get consultant profile: %w", err)
	}

	return &profile, nil
}

// ListAvailableConsultants returns the candidate pool for a matching run:
// every consultant whose availability is not "unavailable".
func (s *Storage) ListAvailableConsultants(ctx context.Context) ([]model.ConsultantProfile, error) {
	query := `
		SELECT id, name, skills, experience, location, availability
		FROM consultant_profiles
		WHERE availability <> $1
	`

	var profiles []model.ConsultantProfile
	if err := s.db.SelectContext(ctx, &profiles, query, string(domain.AvailabilityUnavailable)); err != nil {
		return nil, fmt.Errorf("failed to list available consultants: %w", err)
	}

	return profiles, nil
}

func (s *Storage) CreateWorkflowStatus(ctx context.Context, ws *model.WorkflowStatus) error {
	query := `
		INSERT INTO workflow_statuses (job_description_id, steps, progress, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING id
	`

	err := s.db.QueryRowContext(ctx, query, ws.JobDescriptionID, ws.Steps, ws.Progress, ws.CreatedAt).Scan(&ws.ID)
	if err != nil {
		return fmt.Errorf("failed to create workflow status: %w", err)
	}

	return nil
}

// CompleteWorkflowStatus marks the most recent workflow status for the job
// as COMPLETED and returns its id.
func (s *Storage) CompleteWorkflowStatus(ctx context.Context, jobID int64) (int64, error) {
	query := `
		UPDATE workflow_statuses
		SET progress = $1,
		    updated_at = NOW()
		WHERE id = (
			SELECT id FROM workflow_statuses
			WHERE job_description_id = $2
			ORDER BY created_at DESC
			LIMIT 1
		)
		RETURNING id
	`

	var id int64
	err := s.db.QueryRowContext(ctx, query, domain.WorkflowCompleted, jobID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("no workflow status to complete for job %d", jobID)
		}
		return 0, fmt.Errorf("failed to complete workflow status: %w", err)
	}

	s.logger.Debug("Workflow status completed",
		slog.Int64("workflow_status_id", id),
		slog.Int64("job_description_id", jobID),
	)

	return id, nil
}

func (s *Storage) CreateNotification(ctx context.Context, n *model.Notification) error {
	query := `
		INSERT INTO notifications (job_description_id, workflow_status_id, recipient_email, email_content, status, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := s.db.QueryRowContext(
		ctx,
		query,
		n.JobDescriptionID,
		n.WorkflowStatusID,
		n.RecipientEmail,
		n.EmailContent,
		n.Status,
		n.SentAt,
	).Scan(&n.ID)

	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}
