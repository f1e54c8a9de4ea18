// Package evaluationqueue runs background battle judging on River.
package evaluationqueue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"

	evaluationservice "github.com/inf-monkeys/arena/app/modules/evaluation/application"
	evaluationtypes "github.com/inf-monkeys/arena/app/modules/evaluation/domain/types"
	"github.com/inf-monkeys/arena/internal/attr"
)

const judgeQueue = "evaluation_judge"

// Service schedules and runs battle judging jobs using River.
type Service struct {
	client  *river.Client[pgx.Tx]
	pool    *pgxpool.Pool
	logger  *slog.Logger
	evalSvc evaluationservice.Service
}

var _ evaluationservice.BattleQueue = (*Service)(nil)

// NewService creates the River-backed judging queue. The evaluation service
// is attached afterwards with AttachEvaluationService because the two
// reference each other.
func NewService(ctx context.Context, dsn string, maxWorkers int, logger *slog.Logger) (*Service, error) {
	ctxLogger := logger.With(
		attr.String("component", "river_queue"),
	)

	// River requires pgx, not database/sql.
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	service := &Service{
		pool:   pool,
		logger: ctxLogger,
	}

	if maxWorkers <= 0 {
		maxWorkers = 10
	}
	workers := river.NewWorkers()
	river.AddWorker(workers, &battleJudgeWorker{service: service})

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			judgeQueue: {MaxWorkers: maxWorkers},
		},
		Workers: workers,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}
	service.client = riverClient

	ctxLogger.InfoContext(ctx, "Evaluation queue service initialized")
	return service, nil
}

// AttachEvaluationService wires the service the workers call. Must happen
// before Start.
func (s *Service) AttachEvaluationService(svc evaluationservice.Service) {
	s.evalSvc = svc
}

// Start starts the River client.
func (s *Service) Start(ctx context.Context) error {
	if s.evalSvc == nil {
		return fmt.Errorf("evaluation service not attached")
	}
	if err := s.client.Start(ctx); err != nil {
		return fmt.Errorf("failed to start River client: %w", err)
	}
	s.logger.InfoContext(ctx, "Evaluation queue service started")
	return nil
}

// Stop stops the River client and closes the pool.
func (s *Service) Stop(ctx context.Context) error {
	if err := s.client.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop River client: %w", err)
	}
	s.pool.Close()
	s.logger.InfoContext(ctx, "Evaluation queue service stopped")
	return nil
}

// EnqueueBattleJudging schedules the automated judge for one battle. Unique
// by args so the same battle is never queued twice.
func (s *Service) EnqueueBattleJudging(ctx context.Context, battleID evaluationtypes.BattleID) error {
	jobResult, err := s.client.Insert(ctx, BattleJudgeJob{BattleID: battleID.String()}, &river.InsertOpts{
		Queue: judgeQueue,
		UniqueOpts: river.UniqueOpts{
			ByArgs: true,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue battle judging job: %w", err)
	}
	s.logger.InfoContext(ctx, "Battle judging job enqueued",
		attr.String("battle_id", battleID.String()),
		attr.Int64("job_id", jobResult.Job.ID),
	)
	return nil
}
