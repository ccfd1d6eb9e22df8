package runner

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindInvalidInput              Kind = "InvalidInput"
	KindUpstreamSourceFailure     Kind = "UpstreamSourceFailure"
	KindPerThreadExpansionFailure Kind = "PerThreadExpansionFailure"
	KindMalformedDigest           Kind = "MalformedDigest"
	KindCompletionServiceFailure  Kind = "CompletionServiceFailure"
)

// Error is the only error type returned by Runner.Run. PerThreadExpansionFailure
// is recovered inside the pipeline and never appears here.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("runner: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the kind of a pipeline error, or "" when err did not come
// from the runner.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsInvalidInput reports whether err was caused by the caller's input.
func IsInvalidInput(err error) bool {
	return KindOf(err) == KindInvalidInput
}
