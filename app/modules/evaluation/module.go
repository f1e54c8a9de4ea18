// Package evaluation wires the evaluation module: repositories, judge,
// queue, service, and HTTP handlers.
package evaluation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/trace"

	evaluationservice "github.com/inf-monkeys/arena/app/modules/evaluation/application"
	evaluationhandlers "github.com/inf-monkeys/arena/app/modules/evaluation/infrastructure/handlers"
	llmjudge "github.com/inf-monkeys/arena/app/modules/evaluation/infrastructure/judge"
	evaluationmetrics "github.com/inf-monkeys/arena/app/modules/evaluation/infrastructure/metrics"
	evaluationqueue "github.com/inf-monkeys/arena/app/modules/evaluation/infrastructure/queue"
	evaluationdb "github.com/inf-monkeys/arena/app/modules/evaluation/infrastructure/repositories"
	"github.com/inf-monkeys/arena/config"
	"github.com/inf-monkeys/arena/internal/eventbus"
)

// Module is the assembled evaluation module.
type Module struct {
	Service evaluationservice.Service
	queue   *evaluationqueue.Service
	logger  *slog.Logger
}

// NewModule creates the evaluation module and mounts its HTTP routes on
// httpRouter. The judge is optional: without an API key the module still
// serves manual resolution, and auto-evaluation reports a failure.
func NewModule(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	db *bun.DB,
	eventBus eventbus.EventBus,
	metrics evaluationmetrics.EvaluationMetrics,
	tracer trace.Tracer,
	httpRouter chi.Router,
) (*Module, error) {
	logger.InfoContext(ctx, "Initializing evaluation module")

	repo := evaluationdb.New()

	var judge evaluationservice.Judge
	if cfg.Judge.APIKey != "" {
		j, err := llmjudge.New(cfg.Judge, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create judge: %w", err)
		}
		judge = j
	} else {
		logger.WarnContext(ctx, "No judge API key configured, auto-evaluation disabled")
	}

	var queue *evaluationqueue.Service
	if cfg.Queue.Enabled {
		q, err := evaluationqueue.NewService(ctx, cfg.Postgres.DSN, cfg.Queue.MaxWorkers, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create judging queue: %w", err)
		}
		queue = q
	}

	var battleQueue evaluationservice.BattleQueue
	if queue != nil {
		battleQueue = queue
	}

	service := evaluationservice.NewEvaluationService(repo, db, eventBus, judge, battleQueue, logger, metrics, tracer)

	if queue != nil {
		queue.AttachEvaluationService(service)
	}

	if httpRouter != nil {
		handlers := evaluationhandlers.NewEvaluationHandlers(service, logger)
		handlers.RegisterRoutes(httpRouter)
	}

	return &Module{Service: service, queue: queue, logger: logger}, nil
}

// Start launches the background judging workers when the queue is enabled.
func (m *Module) Start(ctx context.Context) error {
	if m.queue == nil {
		return nil
	}
	return m.queue.Start(ctx)
}

// Close stops the background workers and releases the queue's pool.
func (m *Module) Close(ctx context.Context) error {
	if m.queue == nil {
		return nil
	}
	return m.queue.Stop(ctx)
}
