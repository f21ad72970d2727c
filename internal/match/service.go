// Package match implements the match-result operations of the recruiting
// workflow: recomputing the ranked pairing set for a job description and the
// CRUD surface over stored match results.
package match

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/talentops/match-service/internal/domain"
	"github.com/talentops/match-service/internal/matching"
	"github.com/talentops/match-service/internal/model"
)

// ErrInternal replaces any unexpected failure. The original error detail is
// logged, never returned to the caller.
var ErrInternal = errors.New("internal server error")

// Store is the persistence surface the service needs. *storage.Storage
// satisfies it; tests use an in-memory fake.
type Store interface {
	GetMatchResultByID(ctx context.Context, id int64) (*model.MatchResult, error)
	ListMatchResultsByJob(ctx context.Context, jobID int64) ([]model.MatchResult, error)
	TopMatchResults(ctx context.Context, jobID int64, limit int) ([]model.MatchResult, error)
	CreateMatchResult(ctx context.Context, result *model.MatchResult) error
	UpdateMatchResult(ctx context.Context, result *model.MatchResult) error
	DeleteMatchResult(ctx context.Context, id int64) error
	ReplaceMatchesForJob(ctx context.Context, jobID int64, results []model.MatchResult) error
	GetJobDescription(ctx context.Context, id int64) (*model.JobDescription, error)
	GetConsultantProfile(ctx context.Context, id int64) (*model.ConsultantProfile, error)
	ListAvailableConsultants(ctx context.Context) ([]model.ConsultantProfile, error)
	CreateWorkflowStatus(ctx context.Context, ws *model.WorkflowStatus) error
	CompleteWorkflowStatus(ctx context.Context, jobID int64) (int64, error)
	CreateNotification(ctx context.Context, n *model.Notification) error
}

// Matcher runs the external agent-matching engine. A nil result with nil
// error means the engine produced nothing for this job.
type Matcher interface {
	Run(ctx context.Context, jd *model.JobDescription, profiles []model.ConsultantProfile) (*matching.Result, error)
}

// Sender delivers notification email. Failures are logged and recorded on
// the notification row, never propagated.
type Sender interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// Config holds match service dependencies
type Config struct {
	Store        Store
	Matcher      Matcher
	Sender       Sender
	Logger       *slog.Logger
	EmailSubject string
}

// Service implements the match-result operations
type Service struct {
	store        Store
	matcher      Matcher
	sender       Sender
	logger       *slog.Logger
	emailSubject string
	now          func() time.Time
}

// NewService creates a new match service
func NewService(cfg *Config) *Service {
	subject := cfg.EmailSubject
	if subject == "" {
		subject = "Matching run completed"
	}

	return &Service{
		store:        cfg.Store,
		matcher:      cfg.Matcher,
		sender:       cfg.Sender,
		logger:       cfg.Logger,
		emailSubject: subject,
		now:          time.Now,
	}
}

// ProfileView is the consultant shape embedded in serialized match entries
type ProfileView struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Skills       string `json:"skills"`
	Experience   int    `json:"experience"`
	Location     string `json:"location"`
	Availability string `json:"availability"`
}

// MatchEntry is one serialized entry of a recompute run
type MatchEntry struct {
	Profile         *ProfileView `json:"profile"`
	SimilarityScore float64      `json:"similarity_score"`
	Rank            int          `json:"rank"`
}

// TopMatchEntry is one serialized entry of the top-3 read path, with the
// full consultant profile re-fetched and inlined.
type TopMatchEntry struct {
	Profile         *ProfileView `json:"profile"`
	SimilarityScore float64      `json:"similarity_score"`
	Rank            int          `json:"rank"`
	RankedAt        string       `json:"ranked_at,omitempty"`
}

// Input carries caller-supplied fields for Create and Update. Update is a
// full replace: every field overwrites the stored one.
type Input struct {
	JobDescriptionID int64
	ConsultantID     int64
	Rank             int
	SimilarityScore  float64
	MatchedAt        time.Time
}

// Recompute runs a full matching pass for the job description: records a
// workflow status, invokes the matching engine against the pool of
// consultants that are not unavailable, sends a best-effort notification
// email, replaces all prior match results with the fresh ranked set and
// records a notification row. Returns the serialized ranked entries.
func (s *Service) Recompute(ctx context.Context, jobID int64) ([]MatchEntry, error) {
	s.logger.Debug("Recomputing matches", slog.Int64("job_description_id", jobID))

	jd, err := s.store.GetJobDescription(ctx, jobID)
	if err != nil && !errors.Is(err, domain.ErrJobDescriptionNotFound) {
		return nil, s.internal("fetch job description", jobID, err)
	}

	pool, err := s.store.ListAvailableConsultants(ctx)
	if err != nil {
		return nil, s.internal("list consultant pool", jobID, err)
	}

	if jd == nil || len(pool) == 0 {
		// The run proceeds anyway; the engine decides what an empty
		// input means.
		s.logger.Warn("Job description or consultant pool missing for matching run",
			slog.Int64("job_description_id", jobID),
			slog.Bool("job_found", jd != nil),
			slog.Int("pool_size", len(pool)),
		)
	}

	ws := &model.WorkflowStatus{
		JobDescriptionID: jobID,
		Steps: model.StepMap{
			domain.StepJDParsed:         true,
			domain.StepProfilesCompared: false,
		},
		Progress:  domain.WorkflowProcessing,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateWorkflowStatus(ctx, ws); err != nil {
		return nil, s.internal("create workflow status", jobID, err)
	}

	result, err := s.matcher.Run(ctx, jd, pool)
	if err != nil {
		return nil, s.internal("run matching engine", jobID, err)
	}
	if result == nil {
		s.logger.Warn("Matching engine produced no result",
			slog.Int64("job_description_id", jobID),
		)
		return nil, domain.ErrMatchingFailed
	}

	notificationStatus := domain.NotificationSent
	recipient := ""
	if jd != nil {
		recipient = jd.RequestorEmail
	}

	if recipient != "" {
		if sendErr := s.sender.Send(ctx, recipient, s.emailSubject, result.Message); sendErr != nil {
			// Best-effort: a failed notification never aborts the run.
			s.logger.Error("Failed to send notification email",
				slog.Int64("job_description_id", jobID),
				slog.String("recipient", recipient),
				slog.Any("error", sendErr),
			)
			notificationStatus = domain.NotificationFailed
		}
	}

	wsID, err := s.store.CompleteWorkflowStatus(ctx, jobID)
	if err != nil {
		return nil, s.internal("complete workflow status", jobID, err)
	}

	if len(result.AllMatches) == 0 {
		s.logger.Warn("No matches returned by engine",
			slog.Int64("job_description_id", jobID),
		)
	}

	matchedAt := s.now()
	rows := make([]model.MatchResult, len(result.AllMatches))
	entries := make([]MatchEntry, len(result.AllMatches))
	for i, m := range result.AllMatches {
		rank := i + 1
		rows[i] = model.MatchResult{
			JobDescriptionID: jobID,
			ConsultantID:     m.Profile.ID,
			Rank:             rank,
			SimilarityScore:  m.SimilarityScore,
			MatchedAt:        matchedAt,
		}
		entries[i] = MatchEntry{
			Profile: &ProfileView{
				ID:           m.Profile.ID,
				Name:         m.Profile.Name,
				Skills:       m.Profile.Skills,
				Experience:   m.Profile.Experience,
				Location:     m.Profile.Location,
				Availability: m.Profile.Availability,
			},
			SimilarityScore: m.SimilarityScore,
			Rank:            rank,
		}
	}

	if err := s.store.ReplaceMatchesForJob(ctx, jobID, rows); err != nil {
		return nil, s.internal("replace match results", jobID, err)
	}

	notification := &model.Notification{
		JobDescriptionID: jobID,
		WorkflowStatusID: wsID,
		RecipientEmail:   recipient,
		EmailContent:     result.Message,
		Status:           notificationStatus,
		SentAt:           s.now(),
	}
	if err := s.store.CreateNotification(ctx, notification); err != nil {
		return nil, s.internal("record notification", jobID, err)
	}

	s.logger.Info("Matching run completed",
		slog.Int64("job_description_id", jobID),
		slog.Int("matches", len(entries)),
		slog.String("notification_status", notificationStatus),
	)

	return entries, nil
}

// TopThreeWithProfiles returns up to three matches for the job ordered by
// ascending rank, each with the full consultant profile re-fetched and
// inlined. A match whose consultant no longer exists carries a nil profile.
func (s *Service) TopThreeWithProfiles(ctx context.Context, jobID int64) ([]TopMatchEntry, error) {
	results, err := s.store.TopMatchResults(ctx, jobID, 3)
	if err != nil {
		return nil, s.internal("fetch top matches", jobID, err)
	}
	if len(results) == 0 {
		return nil, domain.ErrNoMatches
	}

	entries := make([]TopMatchEntry, len(results))
	for i, r := range results {
		entry := TopMatchEntry{
			SimilarityScore: r.SimilarityScore,
			Rank:            r.Rank,
		}
		if !r.MatchedAt.IsZero() {
			entry.RankedAt = r.MatchedAt.Format(time.RFC3339)
		}

		consultant, err := s.store.GetConsultantProfile(ctx, r.ConsultantID)
		if err != nil {
			return nil, s.internal("fetch consultant profile", jobID, err)
		}
		if consultant != nil {
			entry.Profile = &ProfileView{
				ID:           consultant.ID,
				Name:         consultant.Name,
				Skills:       consultant.Skills,
				Experience:   consultant.Experience,
				Location:     consultant.Location,
				Availability: consultant.NormalizedAvailability().String(),
			}
		}

		entries[i] = entry
	}

	return entries, nil
}

// TopN returns up to n matches for the job ordered by ascending rank, in the
// stored shape without the profile join.
func (s *Service) TopN(ctx context.Context, jobID int64, n int) ([]model.MatchResult, error) {
	results, err := s.store.TopMatchResults(ctx, jobID, n)
	if err != nil {
		return nil, s.internal("fetch top matches", jobID, err)
	}
	if len(results) == 0 {
		return nil, domain.ErrNoMatches
	}

	return results, nil
}

// GetByID fetches one match result by primary key
func (s *Service) GetByID(ctx context.Context, id int64) (*model.MatchResult, error) {
	result, err := s.store.GetMatchResultByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrMatchResultNotFound) {
			s.logger.Warn("Match result not found", slog.Int64("id", id))
			return nil, err
		}
		return nil, s.internal("fetch match result", id, err)
	}

	return result, nil
}

// ListByJob returns every match result stored for the job description
func (s *Service) ListByJob(ctx context.Context, jobID int64) ([]model.MatchResult, error) {
	results, err := s.store.ListMatchResultsByJob(ctx, jobID)
	if err != nil {
		return nil, s.internal("list match results", jobID, err)
	}
	if len(results) == 0 {
		s.logger.Warn("No match results for job description",
			slog.Int64("job_description_id", jobID),
		)
		return nil, domain.ErrNoMatches
	}

	return results, nil
}

// Create inserts a new match result from caller-supplied fields. No
// uniqueness or rank-conflict validation is performed.
func (s *Service) Create(ctx context.Context, input Input) (*model.MatchResult, error) {
	matchedAt := input.MatchedAt
	if matchedAt.IsZero() {
		matchedAt = s.now()
	}

	result := &model.MatchResult{
		JobDescriptionID: input.JobDescriptionID,
		ConsultantID:     input.ConsultantID,
		Rank:             input.Rank,
		SimilarityScore:  input.SimilarityScore,
		MatchedAt:        matchedAt,
	}

	if err := s.store.CreateMatchResult(ctx, result); err != nil {
		return nil, s.internal("create match result", input.JobDescriptionID, err)
	}

	s.logger.Info("Match result created",
		slog.Int64("id", result.ID),
		slog.Int64("job_description_id", result.JobDescriptionID),
	)

	return result, nil
}

// Update overwrites every field of an existing match result with the
// supplied payload (full replace, not a partial patch).
func (s *Service) Update(ctx context.Context, id int64, input Input) (*model.MatchResult, error) {
	existing, err := s.store.GetMatchResultByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrMatchResultNotFound) {
			s.logger.Warn("Match result not found for update", slog.Int64("id", id))
			return nil, err
		}
		return nil, s.internal("fetch match result for update", id, err)
	}

	existing.JobDescriptionID = input.JobDescriptionID
	existing.ConsultantID = input.ConsultantID
	existing.Rank = input.Rank
	existing.SimilarityScore = input.SimilarityScore
	existing.MatchedAt = input.MatchedAt

	if err := s.store.UpdateMatchResult(ctx, existing); err != nil {
		if errors.Is(err, domain.ErrMatchResultNotFound) {
			return nil, err
		}
		return nil, s.internal("update match result", id, err)
	}

	s.logger.Info("Match result updated", slog.Int64("id", id))

	return existing, nil
}

// Delete removes one match result by primary key
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.store.GetMatchResultByID(ctx, id); err != nil {
		if errors.Is(err, domain.ErrMatchResultNotFound) {
			s.logger.Warn("Match result not found for deletion", slog.Int64("id", id))
			return err
		}
		return s.internal("fetch match result for deletion", id, err)
	}

	if err := s.store.DeleteMatchResult(ctx, id); err != nil {
		if errors.Is(err, domain.ErrMatchResultNotFound) {
			return err
		}
		return s.internal("delete match result", id, err)
	}

	s.logger.Info("Match result deleted", slog.Int64("id", id))

	return nil
}

// internal logs the full error detail and returns the generic ErrInternal.
func (s *Service) internal(op string, id int64, err error) error {
	s.logger.Error("Match operation failed",
		slog.String("op", op),
		slog.Int64("id", id),
		slog.Any("error", err),
	)
	return ErrInternal
}
