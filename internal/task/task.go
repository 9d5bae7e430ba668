// Package task provides the future returned by asynchronous ledger and
// taxonomy mutations. A caller either waits on it and handles the error or
// drops it; the work runs to completion either way.
package task

import (
	"context"
	"sync"
)

// Task is the pending result of one asynchronous operation.
type Task struct {
	done chan struct{}
	once sync.Once
	err  error
}

// Run starts fn on its own goroutine and returns its task.
func Run(fn func() error) *Task {
	t := &Task{done: make(chan struct{})}
	go func() {
		t.finish(fn())
	}()
	return t
}

// Completed returns a task that already succeeded.
func Completed() *Task {
	return Failed(nil)
}

// Failed returns a task that already finished with err.
func Failed(err error) *Task {
	t := &Task{done: make(chan struct{})}
	t.finish(err)
	return t
}

func (t *Task) finish(err error) {
	t.once.Do(func() {
		t.err = err
		close(t.done)
	})
}

// Done is closed when the operation has finished.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err returns the operation's error, or nil while it is still running.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the operation finishes or ctx is done. Giving up on the
// wait does not cancel the operation.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitAll waits for every task and returns the first error encountered.
func WaitAll(ctx context.Context, tasks ...*Task) error {
	var first error
	for _, t := range tasks {
		if err := t.Wait(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
