// Package taskctx carries the Task Dispatcher's soft-deadline signal down
// into a running Handler without making core packages import dispatch.
package taskctx

import "context"

type softDeadlineKey struct{}

// WithSoftDeadline attaches soft, a context whose cancellation marks the
// task's soft timeout elapsed, to ctx. A long-running handler checks
// SoftDeadlineExceeded between stages to wind down cleanly before the
// dispatcher's hard timeout kills it outright.
func WithSoftDeadline(ctx context.Context, soft context.Context) context.Context {
	return context.WithValue(ctx, softDeadlineKey{}, soft)
}

// SoftDeadlineExceeded reports whether the soft deadline attached to ctx (if
// any) has elapsed. A ctx with no soft deadline attached never reports true.
func SoftDeadlineExceeded(ctx context.Context) bool {
	soft, ok := ctx.Value(softDeadlineKey{}).(context.Context)
	if !ok {
		return false
	}
	select {
	case <-soft.Done():
		return true
	default:
		return false
	}
}
