// Package result holds the envelopes returned by identity operations.
//
// A Result carries user-facing validation failures. Faults (store errors,
// misconfigured metadata) travel separately as Go errors.
package result

import "strings"

// Result is the outcome of an operation. It is successful when it carries no errors.
type Result struct {
	Errors []string `json:"errors,omitempty"`
}

// Success returns a successful Result.
func Success() Result {
	return Result{}
}

// Failure returns a failed Result carrying errs.
func Failure(errs ...string) Result {
	if len(errs) == 0 {
		errs = []string{"operation failed"}
	}
	return Result{Errors: append([]string(nil), errs...)}
}

// IsSuccess reports whether the Result has no errors.
func (r Result) IsSuccess() bool {
	return len(r.Errors) == 0
}

func (r Result) String() string {
	if r.IsSuccess() {
		return "success"
	}
	return strings.Join(r.Errors, "; ")
}

// DataResult is a Result with an optional payload. A successful DataResult
// with a nil Data means the requested entity does not exist.
type DataResult[T any] struct {
	Result
	Data *T `json:"data,omitempty"`
}

// With returns a successful DataResult carrying data.
func With[T any](data *T) DataResult[T] {
	return DataResult[T]{Data: data}
}

// Fail returns a failed DataResult carrying errs.
func Fail[T any](errs ...string) DataResult[T] {
	return DataResult[T]{Result: Failure(errs...)}
}

// From lifts a plain Result into a DataResult without payload.
func From[T any](r Result) DataResult[T] {
	return DataResult[T]{Result: r}
}
