package viewsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"smart_aquarium/internal/store"
)

// DefaultCommandTimeout bounds a single command write.
const DefaultCommandTimeout = 10 * time.Second

// Dispatcher performs the store write of a command. It never retries.
type Dispatcher struct {
	store   store.Store
	root    string
	timeout time.Duration
}

func NewDispatcher(s store.Store, root string, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &Dispatcher{store: s, root: root, timeout: timeout}
}

// Execute issues the write for p and waits for its outcome. A store that
// does not honour ctx is abandoned after the timeout and the command fails
// with ErrCommandTimeout.
func (d *Dispatcher) Execute(ctx context.Context, p plan) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	path := store.Join(d.root, p.path)
	done := make(chan error, 1)
	go func() {
		if p.op == opMerge {
			done <- d.store.Merge(ctx, path, p.partial)
			return
		}
		done <- d.store.Write(ctx, path, p.value)
	}()

	select {
	case err := <-done:
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w after %s", ErrCommandTimeout, d.timeout)
			}
			return fmt.Errorf("write %s: %w", path, err)
		}
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", ErrCommandTimeout, d.timeout)
		}
		return ctx.Err()
	}
}
