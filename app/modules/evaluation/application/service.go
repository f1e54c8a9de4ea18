package evaluationservice

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	evaluationtypes "github.com/inf-monkeys/arena/app/modules/evaluation/domain/types"
	evaluationmetrics "github.com/inf-monkeys/arena/app/modules/evaluation/infrastructure/metrics"
	evaluationdb "github.com/inf-monkeys/arena/app/modules/evaluation/infrastructure/repositories"
	"github.com/inf-monkeys/arena/internal/attr"
	"github.com/inf-monkeys/arena/internal/eventbus"
	"github.com/inf-monkeys/arena/internal/results"
)

// conflictRetries is how many times a transaction that lost a row-contention
// race is retried before the operation surfaces ErrConcurrency.
const conflictRetries = 3

// EvaluationService implements the Service interface.
type EvaluationService struct {
	repo     evaluationdb.Repository
	db       *bun.DB
	EventBus eventbus.EventBus
	judge    Judge
	queue    BattleQueue
	logger   *slog.Logger
	metrics  evaluationmetrics.EvaluationMetrics
	tracer   trace.Tracer
}

// NewEvaluationService creates a new EvaluationService. judge and queue may
// be nil when no automated judging backend is configured.
func NewEvaluationService(
	repo evaluationdb.Repository,
	db *bun.DB,
	eventBus eventbus.EventBus,
	judge Judge,
	queue BattleQueue,
	logger *slog.Logger,
	metrics evaluationmetrics.EvaluationMetrics,
	tracer trace.Tracer,
) *EvaluationService {
	return &EvaluationService{
		repo:     repo,
		db:       db,
		EventBus: eventBus,
		judge:    judge,
		queue:    queue,
		logger:   logger,
		metrics:  metrics,
		tracer:   tracer,
	}
}

// operationFunc is the signature for service operation functions.
type operationFunc func(ctx context.Context) (results.OperationResult, error)

// withTelemetry wraps a service operation with tracing, metrics, and panic
// recovery. This standardizes observability across all service methods.
func (s *EvaluationService) withTelemetry(
	ctx context.Context,
	operationName string,
	moduleID evaluationtypes.ModuleID,
	op operationFunc,
) (result results.OperationResult, err error) {
	ctx, span := s.tracer.Start(ctx, operationName, trace.WithAttributes(
		attribute.String("operation", operationName),
		attribute.String("module_id", moduleID.String()),
	))
	defer span.End()

	s.metrics.RecordOperationAttempt(ctx, operationName, moduleID)

	startTime := time.Now()
	defer func() {
		s.metrics.RecordOperationDuration(ctx, operationName, time.Since(startTime))
	}()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operationName, r)
			s.logger.ErrorContext(ctx, "Critical panic recovered",
				attr.ExtractCorrelationID(ctx),
				attr.String("module_id", moduleID.String()),
				attr.Error(err),
			)
			s.metrics.RecordOperationFailure(ctx, operationName, moduleID)
			span.RecordError(err)
			result = results.OperationResult{}
		}
	}()

	result, err = op(ctx)
	if err != nil {
		wrappedErr := fmt.Errorf("%s: %w", operationName, err)
		s.logger.ErrorContext(ctx, "Operation failed with error",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("module_id", moduleID.String()),
			attr.Error(wrappedErr),
		)
		s.metrics.RecordOperationFailure(ctx, operationName, moduleID)
		span.RecordError(wrappedErr)
		return result, wrappedErr
	}

	if result.IsFailure() {
		s.logger.WarnContext(ctx, "Operation returned failure result",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("module_id", moduleID.String()),
			attr.Any("failure_type", fmt.Sprintf("%T", result.Failure)),
		)
		s.metrics.RecordOperationFailure(ctx, operationName, moduleID)
	}

	if result.IsSuccess() {
		s.logger.InfoContext(ctx, "Operation completed successfully",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("module_id", moduleID.String()),
		)
		s.metrics.RecordOperationSuccess(ctx, operationName, moduleID)
	}

	return result, nil
}

// runInTxWithRetry runs fn inside a transaction and retries it when the
// transaction lost a row-contention race. Retrying re-reads all state, so fn
// must be safe to run from scratch.
func (s *EvaluationService) runInTxWithRetry(ctx context.Context, operationName string, fn func(ctx context.Context, tx bun.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt <= conflictRetries; attempt++ {
		if attempt > 0 {
			s.metrics.RecordConflictRetry(ctx, operationName)
			s.logger.WarnContext(ctx, "Retrying after concurrency conflict",
				attr.ExtractCorrelationID(ctx),
				attr.String("operation", operationName),
				attr.Int("attempt", attempt),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 25 * time.Millisecond):
			}
		}

		err := s.db.RunInTx(ctx, nil, fn)
		if err == nil {
			return nil
		}
		if !evaluationdb.IsRetriableConflict(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("%w: %v", ErrConcurrency, lastErr)
}

// publishEvent marshals payload and publishes it after the owning
// transaction has committed. Publish failures are logged, not returned: the
// write is already durable and events are best-effort.
func (s *EvaluationService) publishEvent(ctx context.Context, topic string, payload any) {
	if s.EventBus == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to marshal event payload",
			attr.ExtractCorrelationID(ctx),
			attr.String("topic", topic),
			attr.Error(err),
		)
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), body)
	if correlationID := attr.CorrelationIDFromContext(ctx); correlationID != "" {
		msg.Metadata.Set("correlation_id", correlationID)
	}
	if err := s.EventBus.Publish(ctx, topic, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish event",
			attr.ExtractCorrelationID(ctx),
			attr.String("topic", topic),
			attr.Error(err),
		)
	}
}
