package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Memory is an in-process hierarchical store. Each watcher owns a goroutine
// draining an unbounded FIFO, so callbacks never block writers and every
// watcher observes snapshots in mutation order.
type Memory struct {
	mu       sync.Mutex
	root     any
	watchers map[uint64]*watcher
	nextID   uint64
	closed   bool
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty store, or one holding initial when non-nil.
func NewMemory(initial any) (*Memory, error) {
	m := &Memory{watchers: make(map[uint64]*watcher)}
	if initial != nil {
		v, err := canonical(initial)
		if err != nil {
			return nil, err
		}
		m.root = assign(nil, nil, v)
	}
	return m, nil
}

// Get returns a copy of the value at path.
func (m *Memory) Get(path string) (any, bool, error) {
	p, err := CleanPath(path)
	if err != nil {
		return nil, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := lookup(m.root, split(p))
	return deepCopy(v), ok, nil
}

// Tree returns a copy of the whole tree.
func (m *Memory) Tree() any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return deepCopy(m.root)
}

func (m *Memory) Watch(path string, fn func(Snapshot)) (func(), error) {
	p, err := CleanPath(path)
	if err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, fmt.Errorf("watch %q: nil callback", p)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	m.nextID++
	id := m.nextID
	w := newWatcher(p, fn)
	m.watchers[id] = w
	w.enqueue(m.snapshotLocked(p))
	m.mu.Unlock()

	go w.run()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.watchers, id)
			m.mu.Unlock()
			w.stop()
		})
	}, nil
}

func (m *Memory) Write(ctx context.Context, path string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := CleanPath(path)
	if err != nil {
		return err
	}
	v, err := canonical(value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.root = assign(m.root, split(p), v)
	m.notifyLocked(p)
	return nil
}

// Merge applies each key of partial relative to path. Keys may contain
// slashes to address nested fields; siblings not named are left untouched.
// All keys are applied before watchers are notified.
func (m *Memory) Merge(ctx context.Context, path string, partial map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := CleanPath(path)
	if err != nil {
		return err
	}
	if len(partial) == 0 {
		return nil
	}
	updates, err := mergeUpdates(p, partial)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.applyLocked(p, updates)
	return nil
}

// Update reads the value at path and merges the partial fn derives from it
// without letting another mutation in between. fn runs with the store
// locked and must not call back into it. The applied partial is returned;
// it is nil when fn asked for no change.
func (m *Memory) Update(ctx context.Context, path string, fn func(current any) map[string]any) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := CleanPath(path)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	cur, _ := lookup(m.root, split(p))
	partial := fn(deepCopy(cur))
	if len(partial) == 0 {
		return nil, nil
	}
	updates, err := mergeUpdates(p, partial)
	if err != nil {
		return nil, err
	}
	m.applyLocked(p, updates)
	return partial, nil
}

type update struct {
	segs  []string
	value any
}

// mergeUpdates validates partial and resolves its keys against p in a
// stable order.
func mergeUpdates(p string, partial map[string]any) ([]update, error) {
	keys := make([]string, 0, len(partial))
	for k := range partial {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	updates := make([]update, 0, len(keys))
	for _, k := range keys {
		kp, err := CleanPath(k)
		if err != nil || kp == "" {
			return nil, fmt.Errorf("%w: merge key %q", ErrInvalidPath, k)
		}
		v, err := canonical(partial[k])
		if err != nil {
			return nil, fmt.Errorf("merge key %q: %w", k, err)
		}
		updates = append(updates, update{segs: split(Join(p, kp)), value: v})
	}
	return updates, nil
}

func (m *Memory) applyLocked(p string, updates []update) {
	for _, u := range updates {
		m.root = assign(m.root, u.segs, u.value)
	}
	m.notifyLocked(p)
}

// Close stops every watcher. Later calls fail with ErrClosed.
func (m *Memory) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	ws := m.watchers
	m.watchers = make(map[uint64]*watcher)
	m.mu.Unlock()
	for _, w := range ws {
		w.stop()
	}
	return nil
}

func (m *Memory) snapshotLocked(p string) Snapshot {
	v, ok := lookup(m.root, split(p))
	return Snapshot{Path: p, Value: deepCopy(v), Exists: ok}
}

func (m *Memory) notifyLocked(changed string) {
	for _, w := range m.watchers {
		if related(w.path, changed) {
			w.enqueue(m.snapshotLocked(w.path))
		}
	}
}

type watcher struct {
	path string
	fn   func(Snapshot)

	mu      sync.Mutex
	queue   []Snapshot
	stopped bool
	signal  chan struct{}
}

func newWatcher(path string, fn func(Snapshot)) *watcher {
	return &watcher{path: path, fn: fn, signal: make(chan struct{}, 1)}
}

func (w *watcher) enqueue(s Snapshot) {
	w.mu.Lock()
	if !w.stopped {
		w.queue = append(w.queue, s)
	}
	w.mu.Unlock()
	select {
	case w.signal <- struct{}{}:
	default:
	}
}

func (w *watcher) stop() {
	w.mu.Lock()
	w.stopped = true
	w.queue = nil
	w.mu.Unlock()
	select {
	case w.signal <- struct{}{}:
	default:
	}
}

func (w *watcher) run() {
	for range w.signal {
		for {
			w.mu.Lock()
			if w.stopped {
				w.mu.Unlock()
				return
			}
			if len(w.queue) == 0 {
				w.mu.Unlock()
				break
			}
			s := w.queue[0]
			w.queue = w.queue[1:]
			w.mu.Unlock()
			w.fn(s)
		}
	}
}
