package viewsync

import (
	"sync"

	"smart_aquarium/internal/store"
)

// Subscription is one live watch on a store path. After Unsubscribe
// returns the callback is never invoked again.
type Subscription struct {
	path string

	mu     sync.Mutex
	active bool
	cancel func()
	once   sync.Once
}

// Subscribe watches path and forwards every snapshot to fn in delivery
// order. fn must not call Unsubscribe on its own subscription.
func Subscribe(s store.Store, path string, fn func(store.Snapshot)) (*Subscription, error) {
	sub := &Subscription{path: path, active: true}
	cancel, err := s.Watch(path, func(snap store.Snapshot) {
		sub.mu.Lock()
		defer sub.mu.Unlock()
		if !sub.active {
			return
		}
		fn(snap)
	})
	if err != nil {
		return nil, err
	}
	sub.cancel = cancel
	return sub, nil
}

func (s *Subscription) Path() string { return s.path }

// Unsubscribe stops delivery and releases the store watch. It waits for a
// callback already running and is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.mu.Lock()
		s.active = false
		s.mu.Unlock()
		s.cancel()
	})
}

// Scope owns the subscriptions of one mounted view and releases all of them
// on Close.
type Scope struct {
	mu     sync.Mutex
	subs   []*Subscription
	closed bool
}

// Subscribe opens a subscription owned by the scope.
func (sc *Scope) Subscribe(s store.Store, path string, fn func(store.Snapshot)) error {
	sc.mu.Lock()
	if sc.closed {
		sc.mu.Unlock()
		return ErrUnmounted
	}
	sc.mu.Unlock()

	sub, err := Subscribe(s, path, fn)
	if err != nil {
		return err
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.closed {
		sub.Unsubscribe()
		return ErrUnmounted
	}
	sc.subs = append(sc.subs, sub)
	return nil
}

// Len returns the number of live subscriptions.
func (sc *Scope) Len() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return len(sc.subs)
}

// Close unsubscribes everything exactly once.
func (sc *Scope) Close() {
	sc.mu.Lock()
	subs := sc.subs
	sc.subs = nil
	sc.closed = true
	sc.mu.Unlock()
	for _, sub := range subs {
		sub.Unsubscribe()
	}
}
