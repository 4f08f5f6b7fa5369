package client

import (
	"context"
	"errors"
)

// Call is an in-flight request that can be canceled before it settles.
type Call[T any] struct {
	cancel   context.CancelFunc
	done     chan struct{}
	val      T
	err      error
	canceled bool
}

// Go runs fn in the background. Canceling the call (or ctx) before fn returns
// settles it with ErrCanceled and discards whatever fn produced.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Call[T] {
	ctx, cancel := context.WithCancel(ctx)
	c := &Call[T]{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(c.done)
		defer cancel()
		val, err := fn(ctx)
		if errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, ErrCanceled) {
			c.canceled = true
			c.err = ErrCanceled
			return
		}
		c.val, c.err = val, err
	}()
	return c
}

// Cancel aborts the call. It has no effect once the call has settled.
func (c *Call[T]) Cancel() { c.cancel() }

// Done is closed when the call settles.
func (c *Call[T]) Done() <-chan struct{} { return c.done }

// Wait blocks until the call settles.
func (c *Call[T]) Wait() (T, error) {
	<-c.done
	return c.val, c.err
}

// Canceled reports whether the call settled as canceled. Only meaningful
// after Done is closed.
func (c *Call[T]) Canceled() bool {
	<-c.done
	return c.canceled
}
