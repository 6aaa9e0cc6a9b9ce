package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestToolErrorTruncatesStderr(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 600)
	err := NewToolError(ToolExecution, "amass", 1, long, nil)

	var te *ToolError
	if !stderrors.As(err, &te) {
		t.Fatal("expected a *ToolError")
	}
	if len(te.Stderr) != 500 {
		t.Fatalf("expected stderr truncated to 500 bytes, got %d", len(te.Stderr))
	}
	if !strings.HasSuffix(te.Stderr, "...") {
		t.Error("truncated stderr should end in ...")
	}
}

func TestIsToolErrorMatchesKind(t *testing.T) {
	t.Parallel()

	err := NewToolError(ToolNotFound, "subfinder", -1, "", nil)
	if !IsToolError(err, ToolNotFound) {
		t.Error("expected IsToolError to match ToolNotFound")
	}
	if IsToolError(err, ToolTimeout) {
		t.Error("did not expect IsToolError to match a different kind")
	}
	if !IsToolError(err, "") {
		t.Error("empty kind should match any ToolError")
	}
}

func TestIsRetryableUnwraps(t *testing.T) {
	t.Parallel()

	inner := stderrors.New("connection reset")
	err := NewRetryableError(RetryableConnection, inner)
	wrapped := stderrors.New("handler failed: " + err.Error())

	if !IsRetryable(err) {
		t.Error("expected IsRetryable to recognize a RetryableError")
	}
	if IsRetryable(wrapped) {
		t.Error("a plain string-wrapped error should not report retryable")
	}
	var re *RetryableError
	if !stderrors.As(err, &re) || re.Kind != RetryableConnection {
		t.Fatal("expected errors.As to recover the RetryableConnection kind")
	}
}

func TestPredicateHelpers(t *testing.T) {
	t.Parallel()

	if !IsNotFound(NewNotFoundError("job", "abc123")) {
		t.Error("expected IsNotFound to match NotFoundError")
	}
	if !IsInvalidArgument(NewInvalidArgumentError("domain", "empty")) {
		t.Error("expected IsInvalidArgument to match InvalidArgumentError")
	}
	if !IsConflict(NewConflictError("subdomain", "api.example.com")) {
		t.Error("expected IsConflict to match ConflictError")
	}
	if IsNotFound(NewConflictError("subdomain", "api.example.com")) {
		t.Error("IsNotFound must not match unrelated error kinds")
	}
}

func TestFatalErrorNilPassthrough(t *testing.T) {
	t.Parallel()

	if NewFatalError(nil) != nil {
		t.Error("NewFatalError(nil) should return nil")
	}
	inner := stderrors.New("disk full")
	err := NewFatalError(inner)
	if err == nil || err.Error() != "disk full" {
		t.Fatalf("expected FatalError to pass through the inner message, got %v", err)
	}
	if !stderrors.Is(err, inner) {
		t.Error("expected FatalError to unwrap to the inner error")
	}
}

func TestParseErrorTruncatesLine(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("a", 200)
	err := NewParseError("httpx", long, "invalid json")
	if !strings.Contains(err.Error(), "...") {
		t.Error("expected ParseError message to contain a truncation marker")
	}
}
