package delta

import "context"

// newCancelledContext returns a context paired with its cancel function,
// for tests that exercise the WithCancellation option.
func newCancelledContext() (context.Context, context.CancelFunc) {
	return context.WithCancel(context.Background())
}
