package runner

import (
	"context"
	"testing"
	"time"

	apperrors "reconctl/internal/platform/errors"
)

// TestRunRespectsCallerDeadline guards against re-imposing a 120s ceiling on
// top of a caller-supplied, longer deadline (the usual shape: a stage calls
// WithTimeout itself, then Run/Stream with Timeout: 0).
func TestRunRespectsCallerDeadline(t *testing.T) {
	parent, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	runCtx, rcancel := boundContext(parent, 0)
	defer rcancel()

	dl, ok := runCtx.Deadline()
	if !ok {
		t.Fatal("boundContext() returned a context with no deadline")
	}
	if time.Until(dl) < 4*time.Second {
		t.Errorf("boundContext() shortened the caller's 5s deadline to %v remaining; want it preserved", time.Until(dl))
	}
}

// TestRunDefaultsTimeoutWithNoDeadline covers the other branch: a caller
// with no deadline at all still gets the 120s safety net.
func TestRunDefaultsTimeoutWithNoDeadline(t *testing.T) {
	runCtx, cancel := boundContext(context.Background(), 0)
	defer cancel()

	dl, ok := runCtx.Deadline()
	if !ok {
		t.Fatal("boundContext() with no parent deadline should still set one")
	}
	if d := time.Until(dl); d > 120*time.Second || d < 110*time.Second {
		t.Errorf("boundContext() default deadline %v from now, want ~120s", d)
	}
}

func TestRunClassifiesMissingBinary(t *testing.T) {
	_, err := Run(context.Background(), Options{Argv: []string{"reconctl-no-such-binary-on-any-path"}})
	if !apperrors.IsToolError(err, apperrors.ToolNotFound) {
		t.Fatalf("Run(missing binary) = %v, want ToolError kind tool_not_found", err)
	}
}

func TestRunRejectsEmptyArgv(t *testing.T) {
	_, err := Run(context.Background(), Options{})
	if !apperrors.IsInvalidArgument(err) {
		t.Fatalf("Run(empty argv) = %v, want InvalidArgumentError", err)
	}
}

// TestRunExplicitTimeoutOverridesDeadline covers a positive opts.Timeout
// taking precedence even over a longer parent deadline.
func TestRunExplicitTimeoutOverridesDeadline(t *testing.T) {
	parent, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()

	runCtx, rcancel := boundContext(parent, 2*time.Second)
	defer rcancel()

	dl, ok := runCtx.Deadline()
	if !ok {
		t.Fatal("boundContext() with an explicit timeout should set a deadline")
	}
	if d := time.Until(dl); d > 3*time.Second {
		t.Errorf("boundContext() explicit 2s timeout gave %v remaining, want ~2s", d)
	}
}
