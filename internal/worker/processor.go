package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/talentops/match-service/internal/domain"
	"github.com/talentops/match-service/internal/match"
)

// processRecompute runs one matching pass with the configured timeout
func (w *Worker) processRecompute(ctx context.Context, msg *RecomputeMessage) error {
	w.logger.Info("Processing recompute request",
		slog.Int64("job_description_id", msg.JobDescriptionID),
		slog.String("worker_id", w.workerID),
	)

	runCtx := ctx
	if w.jobTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, w.jobTimeout)
		defer cancel()
	}

	entries, err := w.service.Recompute(runCtx, msg.JobDescriptionID)
	if err != nil {
		// The engine declining a job is terminal; redelivering the
		// message cannot change the outcome.
		if errors.Is(err, domain.ErrMatchingFailed) {
			return fmt.Errorf("recompute declined for job %d: %w", msg.JobDescriptionID, err)
		}

		// Everything else (DB hiccup, engine outage, timeout) may
		// succeed on redelivery.
		return domain.NewRetryableError(fmt.Errorf("recompute failed for job %d: %w", msg.JobDescriptionID, err))
	}

	w.logger.Info("Recompute produced matches",
		slog.Int64("job_description_id", msg.JobDescriptionID),
		slog.Int("matches", len(entries)),
	)

	return nil
}

// shouldRequeue determines whether a failed recompute should be redelivered
func (w *Worker) shouldRequeue(err error) bool {
	var retryable *domain.RetryableError
	if errors.As(err, &retryable) {
		return true
	}

	if errors.Is(err, match.ErrInternal) {
		return true
	}

	return false
}
