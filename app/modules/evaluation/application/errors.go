package evaluationservice

import "errors"

// Error taxonomy of the evaluation service. Handlers map these onto
// transport codes; everything else is an internal error.
var (
	// ErrValidation marks rejected input (unknown strategy, too few assets,
	// invalid result, inactive module).
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a missing module, evaluator, battle or group.
	ErrNotFound = errors.New("not found")

	// ErrConsistency marks an attempt to re-resolve a battle that already
	// carries a result.
	ErrConsistency = errors.New("consistency error")

	// ErrConcurrency marks a transaction that lost a row-contention race and
	// exhausted its retries. The operation is safe to submit again.
	ErrConcurrency = errors.New("concurrency error")

	// ErrEvaluator marks a judge invocation that could not produce a
	// verdict.
	ErrEvaluator = errors.New("evaluator error")
)
