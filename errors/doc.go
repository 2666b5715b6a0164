// Package errors provides the status codes and structured error types of
// the reference bridge.
//
// Two views of every failure exist. Inside Go, operations return *Error,
// categorized by Phase (where the error occurred) and Kind (error category)
// and carrying the ABI Status it maps to. At the native boundary the error
// collapses to a Status, and the status to a fixed message:
//
//	err := errors.New(errors.PhaseScope, errors.KindScopeMismatch).
//		Status(errors.StatusHandleScopeMismatch).
//		Handle(7).
//		Detail("scope is not the innermost open scope").
//		Build()
//
//	status := errors.StatusOf(err)    // StatusHandleScopeMismatch
//	msg, ok := errors.Message(status) // "Invalid handle scope usage", true
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
