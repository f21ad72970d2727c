// Package worker consumes queued recompute requests and runs matching
// passes through the match service.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talentops/match-service/internal/match"
	"github.com/talentops/match-service/shared/rabbitmq"
)

// RecomputeMessage is one queued recompute request
type RecomputeMessage struct {
	JobDescriptionID int64  `json:"job_description_id"`
	DeliveryTag      uint64 `json:"-"`
}

// Recomputer runs one matching pass. *match.Service satisfies it.
type Recomputer interface {
	Recompute(ctx context.Context, jobID int64) ([]match.MatchEntry, error)
}

// Config holds worker configuration
type Config struct {
	Logger        *slog.Logger
	RabbitClient  *rabbitmq.Client
	Service       Recomputer
	Concurrency   int
	JobTimeout    time.Duration
	PrefetchCount int
}

// Worker consumes recompute requests from RabbitMQ and dispatches them to a
// bounded pool of goroutines.
type Worker struct {
	logger        *slog.Logger
	rabbitClient  *rabbitmq.Client
	service       Recomputer
	concurrency   int
	jobTimeout    time.Duration
	prefetchCount int
	workerID      string
	jobsChan      chan *RecomputeMessage
	wg            sync.WaitGroup
	stopChan      chan struct{}
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	prefetch := cfg.PrefetchCount
	if prefetch <= 0 {
		prefetch = concurrency
	}

	return &Worker{
		logger:        cfg.Logger,
		rabbitClient:  cfg.RabbitClient,
		service:       cfg.Service,
		concurrency:   concurrency,
		jobTimeout:    cfg.JobTimeout,
		prefetchCount: prefetch,
		workerID:      fmt.Sprintf("match-worker-%s", uuid.New().String()[:8]),
		jobsChan:      make(chan *RecomputeMessage),
		stopChan:      make(chan struct{}),
	}
}

// Start begins consuming and processing recompute requests. It blocks until
// the context is canceled or the delivery channel closes.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return fmt.Errorf("failed to setup consumer: %w", err)
	}

	w.spawnWorkerPool(ctx)
	w.startMessageDispatcher(ctx, deliveries)

	return nil
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker", slog.String("worker_id", w.workerID))
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Worker stopped", slog.String("worker_id", w.workerID))
}

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}

	w.logger.Info("Worker pool spawned",
		slog.Int("worker_count", w.concurrency),
		slog.String("worker_id", w.workerID),
	)
}

// workerLoop is the main processing loop for each worker goroutine
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Worker goroutine stopping - stopChan closed",
				slog.String("worker_name", workerName),
			)
			return

		case <-ctx.Done():
			w.logger.Info("Worker goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return

		case msg, ok := <-w.jobsChan:
			if !ok {
				return
			}

			err := w.processRecompute(ctx, msg)

			channel := w.rabbitClient.GetChannel()
			if channel == nil {
				w.logger.Error("Failed to get RabbitMQ channel for ACK/NACK",
					slog.String("worker_name", workerName),
					slog.Int64("job_description_id", msg.JobDescriptionID),
				)
				continue
			}

			if err != nil {
				requeue := w.shouldRequeue(err)

				w.logger.Error("Recompute processing failed",
					slog.String("worker_name", workerName),
					slog.Int64("job_description_id", msg.JobDescriptionID),
					slog.Bool("requeue", requeue),
					slog.Any("error", err),
				)

				if nackErr := channel.Nack(msg.DeliveryTag, false, requeue); nackErr != nil {
					w.logger.Error("Failed to NACK message",
						slog.String("worker_name", workerName),
						slog.Any("error", nackErr),
					)
				}
				continue
			}

			if ackErr := channel.Ack(msg.DeliveryTag, false); ackErr != nil {
				w.logger.Error("Failed to ACK message",
					slog.String("worker_name", workerName),
					slog.Any("error", ackErr),
				)
			} else {
				w.logger.Info("Recompute completed",
					slog.String("worker_name", workerName),
					slog.Int64("job_description_id", msg.JobDescriptionID),
				)
			}
		}
	}
}
