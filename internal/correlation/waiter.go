package correlation

import (
	"context"
	"sync"
)

// Waiter is the continuation of one outstanding question. It resolves at
// most once; later resolve calls report false and change nothing.
type Waiter struct {
	once   sync.Once
	done   chan struct{}
	answer string
	err    error
}

func newWaiter() *Waiter {
	return &Waiter{done: make(chan struct{})}
}

// Done is closed once the waiter has an outcome.
func (w *Waiter) Done() <-chan struct{} { return w.done }

// Wait blocks until the waiter resolves or ctx ends. The answer has no
// deadline of its own; ctx is only the caller's lifetime.
func (w *Waiter) Wait(ctx context.Context) (string, error) {
	select {
	case <-w.done:
		return w.answer, w.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (w *Waiter) resolve(answer string, err error) bool {
	resolved := false
	w.once.Do(func() {
		w.answer = answer
		w.err = err
		close(w.done)
		resolved = true
	})
	return resolved
}
