package quiver

import (
	"time"

	"github.com/quiverhq/quiver-go/internal/async"
)

// Operation is a handle on an in-flight asynchronous workflow. It completes
// exactly once; Cancel requests cooperative termination, checked between
// workflow steps — an in-flight network call is never aborted, the workflow
// just stops at its next step boundary.
type Operation[T any] struct {
	op *async.Operation
}

func newOperation[T any](op *async.Operation) *Operation[T] {
	return &Operation[T]{op: op}
}

// Cancel requests termination. After completion it is a no-op. A cancelled
// operation's Wait returns ErrCancelled, never a stale partial result.
func (o *Operation[T]) Cancel() { o.op.Cancel() }

// Cancelled reports whether Cancel has been called.
func (o *Operation[T]) Cancelled() bool { return o.op.Cancelled() }

// Finished reports whether the workflow has completed.
func (o *Operation[T]) Finished() bool { return o.op.Finished() }

// Done returns a channel closed on completion.
func (o *Operation[T]) Done() <-chan struct{} { return o.op.Done() }

// Wait blocks for the outcome. A timeout > 0 caps the wait; when it elapses
// the operation is cancelled and ErrWaitTimeout returned. timeout <= 0 waits
// indefinitely.
func (o *Operation[T]) Wait(timeout time.Duration) (T, error) {
	var zero T
	v, err := o.op.Wait(timeout)
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, nil
	}
	return out, nil
}
