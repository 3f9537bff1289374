// Package async provides the bounded worker pool and the cancellable
// operation primitive backing the client's asynchronous workflows.
//
// Cancellation is cooperative: workflows check their Token at step boundaries
// (before each poll, before each next-step decision) and bail out between
// steps. Cancelling never aborts an in-flight network call; it only prevents
// the next step from starting. A cancelled operation completes with
// ErrCancelled and its completion callback is suppressed, so observers never
// receive stale partial results.
package async

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrCancelled is reported by operations that were cancelled before
// completing.
var ErrCancelled = errors.New("operation cancelled")

// ErrWaitTimeout is reported by Operation.Wait when the caller-supplied
// timeout elapses. The operation is cancelled as a side effect so the
// underlying workflow stops at its next step boundary.
var ErrWaitTimeout = errors.New("wait timed out")

// Pool executes operations with bounded parallelism.
type Pool struct {
	g errgroup.Group
}

// NewPool creates a pool running at most limit operations concurrently.
// limit <= 0 means unbounded.
func NewPool(limit int) *Pool {
	p := &Pool{}
	if limit > 0 {
		p.g.SetLimit(limit)
	}
	return p
}

// Go schedules fn on the pool, blocking while the pool is at its limit.
func (p *Pool) Go(fn func()) {
	p.g.Go(func() error {
		fn()
		return nil
	})
}

// Drain blocks until every scheduled operation has returned.
func (p *Pool) Drain() { _ = p.g.Wait() }

// Token is a cooperative cancellation flag shared between an Operation and
// the workflow running under it.
type Token struct {
	once sync.Once
	done chan struct{}
}

// NewToken creates an uncancelled token.
func NewToken() *Token {
	return &Token{done: make(chan struct{})}
}

// Cancel marks the token cancelled. Safe to call multiple times and after
// the owning operation completed.
func (t *Token) Cancel() {
	t.once.Do(func() { close(t.done) })
}

// Cancelled reports whether Cancel has been called.
func (t *Token) Cancelled() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Done returns a channel closed on cancellation.
func (t *Token) Done() <-chan struct{} { return t.done }

// Sleep pauses for d, returning early with false when the token is cancelled
// or the context expires first.
func (t *Token) Sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-t.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// Operation is one unit of asynchronous work. It completes exactly once with
// either a value or an error; a cancelled operation completes with
// ErrCancelled.
type Operation struct {
	token *Token
	done  chan struct{}

	mu    sync.Mutex
	ended bool
	value any
	err   error
}

// Run schedules fn on the pool and returns its operation handle. The token
// passed to fn is the one Cancel trips; fn is expected to check it between
// steps and return ErrCancelled when it fires. callback, when non-nil, is
// invoked exactly once on the pool goroutine after completion — unless the
// operation was cancelled, in which case it never runs.
func Run(ctx context.Context, p *Pool, fn func(ctx context.Context, tok *Token) (any, error), callback func(any, error)) *Operation {
	op := &Operation{
		token: NewToken(),
		done:  make(chan struct{}),
	}
	p.Go(func() {
		value, err := fn(ctx, op.token)
		if op.token.Cancelled() {
			value, err = nil, ErrCancelled
		}
		op.finish(value, err)
		if callback != nil && !errors.Is(err, ErrCancelled) {
			callback(value, err)
		}
	})
	return op
}

func (o *Operation) finish(value any, err error) {
	o.mu.Lock()
	o.ended = true
	o.value = value
	o.err = err
	o.mu.Unlock()
	close(o.done)
}

// Cancel requests cooperative termination. A no-op once the operation has
// completed.
func (o *Operation) Cancel() { o.token.Cancel() }

// Cancelled reports whether Cancel has been called.
func (o *Operation) Cancelled() bool { return o.token.Cancelled() }

// Finished reports whether the operation has completed.
func (o *Operation) Finished() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ended
}

// Done returns a channel closed when the operation completes.
func (o *Operation) Done() <-chan struct{} { return o.done }

// Wait blocks until completion and returns the outcome. A timeout > 0 caps
// the wait: when it elapses the operation is cancelled and ErrWaitTimeout is
// returned instead of hanging.
func (o *Operation) Wait(timeout time.Duration) (any, error) {
	if timeout <= 0 {
		<-o.done
		return o.result()
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-o.done:
		return o.result()
	case <-timer.C:
		o.Cancel()
		return nil, ErrWaitTimeout
	}
}

func (o *Operation) result() (any, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.value, o.err
}
