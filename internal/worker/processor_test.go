package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentops/match-service/internal/domain"
	"github.com/talentops/match-service/internal/match"
)

type fakeRecomputer struct {
	entries  []match.MatchEntry
	err      error
	gotJobID int64
	gotCtx   context.Context
}

func (f *fakeRecomputer) Recompute(ctx context.Context, jobID int64) ([]match.MatchEntry, error) {
	f.gotCtx = ctx
	f.gotJobID = jobID
	return f.entries, f.err
}

func newTestWorker(svc Recomputer, jobTimeout time.Duration) *Worker {
	return NewWorker(&Config{
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Service:    svc,
		JobTimeout: jobTimeout,
	})
}

func TestWorker_ProcessRecompute(t *testing.T) {
	msg := &RecomputeMessage{JobDescriptionID: 7, DeliveryTag: 1}

	t.Run("successful run", func(t *testing.T) {
		svc := &fakeRecomputer{entries: []match.MatchEntry{{Rank: 1}}}
		w := newTestWorker(svc, 0)

		err := w.processRecompute(context.Background(), msg)
		require.NoError(t, err)
		assert.Equal(t, int64(7), svc.gotJobID)
	})

	t.Run("declined job is terminal", func(t *testing.T) {
		svc := &fakeRecomputer{err: domain.ErrMatchingFailed}
		w := newTestWorker(svc, 0)

		err := w.processRecompute(context.Background(), msg)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrMatchingFailed)

		var retryable *domain.RetryableError
		assert.False(t, errors.As(err, &retryable))
	})

	t.Run("other failures are retryable", func(t *testing.T) {
		svc := &fakeRecomputer{err: match.ErrInternal}
		w := newTestWorker(svc, 0)

		err := w.processRecompute(context.Background(), msg)
		require.Error(t, err)

		var retryable *domain.RetryableError
		assert.True(t, errors.As(err, &retryable))
	})

	t.Run("job timeout bounds the run context", func(t *testing.T) {
		svc := &fakeRecomputer{}
		w := newTestWorker(svc, time.Minute)

		require.NoError(t, w.processRecompute(context.Background(), msg))

		deadline, ok := svc.gotCtx.Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
	})
}

func TestWorker_ShouldRequeue(t *testing.T) {
	w := newTestWorker(&fakeRecomputer{}, 0)

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "retryable error",
			err:      domain.NewRetryableError(errors.New("db hiccup")),
			expected: true,
		},
		{
			name:     "wrapped retryable error",
			err:      fmt.Errorf("recompute failed: %w", domain.NewRetryableError(errors.New("timeout"))),
			expected: true,
		},
		{
			name:     "internal service error",
			err:      match.ErrInternal,
			expected: true,
		},
		{
			name:     "declined job",
			err:      fmt.Errorf("recompute declined: %w", domain.ErrMatchingFailed),
			expected: false,
		},
		{
			name:     "plain error",
			err:      errors.New("malformed message"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, w.shouldRequeue(tt.err))
		})
	}
}
