package evaluationmetrics

import (
	"context"
	"time"

	evaluationtypes "github.com/inf-monkeys/arena/app/modules/evaluation/domain/types"
)

// EvaluationMetrics records operational metrics for the evaluation module.
type EvaluationMetrics interface {
	RecordOperationAttempt(ctx context.Context, operation string, moduleID evaluationtypes.ModuleID)
	RecordOperationSuccess(ctx context.Context, operation string, moduleID evaluationtypes.ModuleID)
	RecordOperationFailure(ctx context.Context, operation string, moduleID evaluationtypes.ModuleID)
	RecordOperationDuration(ctx context.Context, operation string, duration time.Duration)
	RecordDBQueryDuration(ctx context.Context, duration time.Duration)
	RecordBattleResolved(ctx context.Context, result evaluationtypes.BattleResult)
	RecordBattleFailed(ctx context.Context)
	RecordConflictRetry(ctx context.Context, operation string)
	RecordJudgeVerdict(ctx context.Context, model string, result evaluationtypes.BattleResult)
	RecordJudgeError(ctx context.Context, model string)
}
