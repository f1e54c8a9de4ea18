// Package results defines the success/failure envelope service operations
// return. An operation can fail in two distinct ways: an infrastructure
// error (the error return) or a business outcome the caller must handle
// (the Failure payload with a nil error).
package results

// OperationResult carries either a success payload or a failure payload.
type OperationResult struct {
	Success any
	Failure any
	Error   error
}

// SuccessResult wraps a success payload.
func SuccessResult(payload any) OperationResult {
	return OperationResult{Success: payload}
}

// FailureResult wraps a business-failure payload.
func FailureResult(payload any) OperationResult {
	return OperationResult{Failure: payload}
}

// IsSuccess reports whether the operation produced a success payload.
func (r OperationResult) IsSuccess() bool { return r.Success != nil }

// IsFailure reports whether the operation produced a failure payload.
func (r OperationResult) IsFailure() bool { return r.Failure != nil }
