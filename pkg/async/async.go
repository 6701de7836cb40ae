package async

import (
	"fmt"
	"sync"
	"time"
)

// Future represents the result of an asynchronous computation.
type Future[U any] struct {
	result U
	err    error
	done   chan struct{}
}

// Await waits for the asynchronous function to complete and returns its
// result and error.
func (f *Future[U]) Await() (U, error) {
	<-f.done
	return f.result, f.err
}

// AwaitWithTimeout waits for completion or the given timeout, whichever comes
// first. On timeout the zero value and ErrTimeout are returned; the
// underlying goroutine keeps running to completion.
func (f *Future[U]) AwaitWithTimeout(timeout time.Duration) (U, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-time.After(timeout):
		var zero U
		return zero, ErrTimeout
	}
}

// IsComplete reports whether the computation has finished, without blocking.
func (f *Future[U]) IsComplete() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Go runs fn in its own goroutine and returns a Future for its result.
// Panics inside fn are recovered and surfaced as errors so one unit of
// concurrent fan-out work can never take down its siblings.
func Go[U any](fn func() (U, error)) *Future[U] {
	f := &Future[U]{done: make(chan struct{})}

	go func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.err = fmt.Errorf("%w: %v", ErrPanicked, r)
			}
		}()

		f.result, f.err = fn()
	}()

	return f
}

// Outcome pairs one future's result with its error.
type Outcome[U any] struct {
	Result U
	Err    error
}

// Settle waits for every future and returns each one's Outcome in order.
// Unlike a fail-fast wait, one future's error never hides or cancels the
// others.
func Settle[U any](futures ...*Future[U]) []Outcome[U] {
	outcomes := make([]Outcome[U], len(futures))

	var wg sync.WaitGroup
	wg.Add(len(futures))
	for i, future := range futures {
		go func(i int, f *Future[U]) {
			defer wg.Done()
			outcomes[i].Result, outcomes[i].Err = f.Await()
		}(i, future)
	}
	wg.Wait()

	return outcomes
}
