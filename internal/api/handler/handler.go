package handler

import (
	"context"
	"log/slog"

	"github.com/talentops/match-service/internal/match"
	"github.com/talentops/match-service/internal/model"
	"github.com/talentops/match-service/shared/rabbitmq"
)

// MatchService is the operation surface the handlers need. *match.Service
// satisfies it; handler tests use a fake.
type MatchService interface {
	Recompute(ctx context.Context, jobID int64) ([]match.MatchEntry, error)
	TopThreeWithProfiles(ctx context.Context, jobID int64) ([]match.TopMatchEntry, error)
	TopN(ctx context.Context, jobID int64, n int) ([]model.MatchResult, error)
	GetByID(ctx context.Context, id int64) (*model.MatchResult, error)
	ListByJob(ctx context.Context, jobID int64) ([]model.MatchResult, error)
	Create(ctx context.Context, input match.Input) (*model.MatchResult, error)
	Update(ctx context.Context, id int64, input match.Input) (*model.MatchResult, error)
	Delete(ctx context.Context, id int64) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger       *slog.Logger
	Service      MatchService
	RabbitClient *rabbitmq.Client
}

// MatchHandler handles match-result HTTP requests
type MatchHandler struct {
	logger       *slog.Logger
	service      MatchService
	rabbitClient *rabbitmq.Client
}

// NewMatchHandler creates a new MatchHandler instance
func NewMatchHandler(deps *Dependencies) *MatchHandler {
	return &MatchHandler{
		logger:       deps.Logger,
		service:      deps.Service,
		rabbitClient: deps.RabbitClient,
	}
}
