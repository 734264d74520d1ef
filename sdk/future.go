package sdk

import (
	"context"
	"sync"
)

// SendStatus reports whether a request was accepted for dispatch. It says
// nothing about the eventual HTTP outcome.
type SendStatus int

const (
	// SendStatusSent means the request was built, signed and handed to a worker
	SendStatusSent SendStatus = iota
	// SendStatusFailed means the request could not be built or signed and
	// was never dispatched
	SendStatusFailed
)

// String returns the string representation of the status
func (s SendStatus) String() string {
	if s == SendStatusFailed {
		return "failed"
	}
	return "sent"
}

// Future is the eventual outcome of one logical request. It completes
// exactly once, with a value or an error; redirects followed on the way
// are not outcomes.
//
// Example:
//
//	f := client.Get(ctx, "game", nil)
//	if f.Status() == sdk.SendStatusFailed {
//	    return f.SendError()
//	}
//	data, err := f.Wait(ctx)
type Future[T any] struct {
	status  SendStatus
	sendErr error

	done      chan struct{}
	mu        sync.Mutex
	completed bool
	value     T
	err       error
	callbacks []func(T, error)
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{status: SendStatusSent, done: make(chan struct{})}
}

// failedFuture is the result of a request that never left the caller
func failedFuture[T any](err error) *Future[T] {
	f := &Future[T]{status: SendStatusFailed, sendErr: err, done: make(chan struct{})}
	var zero T
	f.complete(zero, err)
	return f
}

// complete records the outcome. Calls after the first are ignored.
func (f *Future[T]) complete(value T, err error) {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		return
	}
	f.completed = true
	f.value, f.err = value, err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, fn := range callbacks {
		fn(value, err)
	}
}

// Status reports whether the request was dispatched
func (f *Future[T]) Status() SendStatus { return f.status }

// SendError is the build or signing error of a request that was not dispatched
func (f *Future[T]) SendError() error { return f.sendErr }

// Done is closed when the outcome is available
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Wait blocks until the outcome is available or ctx is done. Giving up on
// the wait does not cancel the request.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// OnComplete registers fn to run with the outcome. If the future already
// completed, fn runs immediately on the calling goroutine; otherwise it
// runs on the goroutine that completes the request.
func (f *Future[T]) OnComplete(fn func(T, error)) {
	f.mu.Lock()
	if !f.completed {
		f.callbacks = append(f.callbacks, fn)
		f.mu.Unlock()
		return
	}
	value, err := f.value, f.err
	f.mu.Unlock()
	fn(value, err)
}

// mapFuture derives a future that completes with fn applied to src's value.
// The send status is carried over.
func mapFuture[A, B any](src *Future[A], fn func(A) (B, error)) *Future[B] {
	dst := &Future[B]{status: src.status, sendErr: src.sendErr, done: make(chan struct{})}
	src.OnComplete(func(a A, err error) {
		if err != nil {
			var zero B
			dst.complete(zero, err)
			return
		}
		dst.complete(fn(a))
	})
	return dst
}
