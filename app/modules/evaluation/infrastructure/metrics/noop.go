package evaluationmetrics

import (
	"context"
	"time"

	evaluationtypes "github.com/inf-monkeys/arena/app/modules/evaluation/domain/types"
)

// NoOpMetrics discards all measurements. Used in tests.
type NoOpMetrics struct{}

var _ EvaluationMetrics = (*NoOpMetrics)(nil)

func (NoOpMetrics) RecordOperationAttempt(context.Context, string, evaluationtypes.ModuleID) {}
func (NoOpMetrics) RecordOperationSuccess(context.Context, string, evaluationtypes.ModuleID) {}
func (NoOpMetrics) RecordOperationFailure(context.Context, string, evaluationtypes.ModuleID) {}
func (NoOpMetrics) RecordOperationDuration(context.Context, string, time.Duration)           {}
func (NoOpMetrics) RecordDBQueryDuration(context.Context, time.Duration)                     {}
func (NoOpMetrics) RecordBattleResolved(context.Context, evaluationtypes.BattleResult)       {}
func (NoOpMetrics) RecordBattleFailed(context.Context)                                       {}
func (NoOpMetrics) RecordConflictRetry(context.Context, string)                              {}
func (NoOpMetrics) RecordJudgeVerdict(context.Context, string, evaluationtypes.BattleResult) {}
func (NoOpMetrics) RecordJudgeError(context.Context, string)                                 {}
