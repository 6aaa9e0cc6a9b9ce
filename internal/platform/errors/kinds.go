package errors

import (
	"errors"
	"fmt"
)

// ToolErrorKind distinguishes why a Tool Runner invocation failed.
type ToolErrorKind string

const (
	ToolNotFound     ToolErrorKind = "tool_not_found"
	PermissionDenied ToolErrorKind = "permission_denied"
	ToolTimeout      ToolErrorKind = "timeout"
	ToolExecution    ToolErrorKind = "execution"
)

// ToolError wraps a Tool Runner failure with the kind, exit code and a
// truncated stderr snippet.
type ToolError struct {
	Kind     ToolErrorKind
	Tool     string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ToolError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s: %s (exit=%d): %s", e.Tool, e.Kind, e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("%s: %s (exit=%d)", e.Tool, e.Kind, e.ExitCode)
}

func (e *ToolError) Unwrap() error { return e.Err }

// NewToolError builds a ToolError, truncating stderr to 500 bytes per the
// Tool Runner contract.
func NewToolError(kind ToolErrorKind, tool string, exitCode int, stderr string, err error) error {
	return &ToolError{
		Kind:     kind,
		Tool:     tool,
		ExitCode: exitCode,
		Stderr:   truncate(stderr, 500),
		Err:      err,
	}
}

// InvalidArgumentError marks malformed caller input: an unparseable domain,
// an empty leak-scan URL set, an unknown scan mode.
type InvalidArgumentError struct {
	Field  string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func NewInvalidArgumentError(field, reason string) error {
	return &InvalidArgumentError{Field: field, Reason: reason}
}

// NotFoundError marks a lookup against an unknown entity (job id, task id).
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func NewNotFoundError(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// ConflictError marks a uniqueness violation, e.g. a duplicate manually
// added subdomain.
type ConflictError struct {
	Kind string
	Key  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.Kind, e.Key)
}

func NewConflictError(kind, key string) error {
	return &ConflictError{Kind: kind, Key: key}
}

// ParseError marks a single malformed output record from a tool parser.
// Parsers recover from these by skipping the offending line; they are
// never propagated as fatal.
type ParseError struct {
	Parser string
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Parser, e.Reason, truncate(e.Line, 80))
}

func NewParseError(parser, line, reason string) error {
	return &ParseError{Parser: parser, Line: line, Reason: reason}
}

// RetryableKind distinguishes the retryable-error classes the dispatcher
// treats as backoff-worthy rather than terminal.
type RetryableKind string

const (
	RetryableConnection RetryableKind = "connection"
	RetryableTimeout    RetryableKind = "timeout"
	RetryableIO         RetryableKind = "io"

	// RetryablePipeline marks a full-scan pipeline stage failure: recon_full
	// tasks retry on any failure, as opposed to leak_check's
	// connection/timeout/IO-only classification.
	RetryablePipeline RetryableKind = "pipeline"
)

// RetryableError marks a worker-layer failure the dispatcher should retry
// with backoff instead of failing the task outright.
type RetryableError struct {
	Kind RetryableKind
	Err  error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable(%s): %v", e.Kind, e.Err)
}

func (e *RetryableError) Unwrap() error { return e.Err }

func NewRetryableError(kind RetryableKind, err error) error {
	return &RetryableError{Kind: kind, Err: err}
}

// truncate limits a string to n bytes, appending "..." when it is cut short.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// FatalError marks a task-worker failure with no retry semantics: the job
// transitions straight to failed.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

func NewFatalError(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsToolError reports whether err is (or wraps) a ToolError of the given
// kind; kind == "" matches any ToolError.
func IsToolError(err error, kind ToolErrorKind) bool {
	var te *ToolError
	if !errors.As(err, &te) {
		return false
	}
	return kind == "" || te.Kind == kind
}

// IsRetryable reports whether err is (or wraps) a RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}

// IsInvalidArgument reports whether err is (or wraps) an InvalidArgumentError.
func IsInvalidArgument(err error) bool {
	var ie *InvalidArgumentError
	return errors.As(err, &ie)
}

// IsConflict reports whether err is (or wraps) a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
