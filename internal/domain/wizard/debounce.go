package wizard

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultSearchDelay is how long a search waits for the next keystroke.
const DefaultSearchDelay = 300 * time.Millisecond

var ErrSuperseded = errors.New("superseded by a newer request")

// Debouncer runs the latest of a burst of calls. Each call cancels the one
// before it; only the newest call's result is ever returned, older calls get
// ErrSuperseded.
type Debouncer[T any] struct {
	delay time.Duration

	mu     sync.Mutex
	token  uint64
	cancel context.CancelFunc
}

func NewDebouncer[T any](delay time.Duration) *Debouncer[T] {
	return &Debouncer[T]{delay: delay}
}

// Do waits out the delay, then runs fn unless a newer call arrived.
func (d *Debouncer[T]) Do(ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	d.mu.Lock()
	d.token++
	token := d.token
	if d.cancel != nil {
		d.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.mu.Unlock()
	defer cancel()

	timer := time.NewTimer(d.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		if d.latest(token) {
			return zero, ctx.Err()
		}
		return zero, ErrSuperseded
	case <-timer.C:
	}

	v, err := fn(ctx)
	if !d.latest(token) {
		return zero, ErrSuperseded
	}
	return v, err
}

func (d *Debouncer[T]) latest(token uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.token == token
}
