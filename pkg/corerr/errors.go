// Package corerr defines the error taxonomy shared across every core
// component (LLM transport, parsers, pipeline, diffusion client, queue).
package corerr

import (
	"errors"
	"fmt"
)

// Kind identifies the category of failure. Callers branch on Kind with
// errors.As + Kind comparison rather than matching on message text.
type Kind string

const (
	// KindUpstream is a non-2xx or service-level error from the LLM or
	// diffusion service.
	KindUpstream Kind = "upstream_error"

	// KindWorkflow means the diffusion service rejected the workflow graph.
	KindWorkflow Kind = "workflow_error"

	// KindParse means a response could not be parsed into the expected shape.
	KindParse Kind = "parse_error"

	// KindEmptyOutput means a stage produced no usable content.
	KindEmptyOutput Kind = "empty_output"

	// KindTimeout means a timeout budget elapsed.
	KindTimeout Kind = "timeout"

	// KindCancelled means a cancellation flag was observed.
	KindCancelled Kind = "cancelled"

	// KindNotFound means a referenced entity does not exist.
	KindNotFound Kind = "not_found"

	// KindNotPending means a queue transition precondition was violated
	// (the job was not in the Pending state required for the operation).
	KindNotPending Kind = "not_pending"

	// KindIO means a filesystem or store failure.
	KindIO Kind = "io_error"

	// KindGenerationFailed means the diffusion service reported failure
	// without a more specific kind.
	KindGenerationFailed Kind = "generation_failed"

	// KindNoImages means generation completed without producing any image
	// reference to download.
	KindNoImages Kind = "no_images"
)

// Error is the single tagged error type used across the core. It carries a
// Kind for programmatic branching and a context message for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped error for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error of the given kind with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a new Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a new Error of the given kind wrapping an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
