package viewsync

import (
	"context"
	"sync"

	"smart_aquarium/internal/models"
	"smart_aquarium/internal/store"
)

type fakeCall struct {
	op    string
	path  string
	value any
}

type fakeWatch struct {
	path      string
	fn        func(store.Snapshot)
	cancelled bool
}

// fakeStore delivers snapshots synchronously on demand and records writes.
// With leaky set it keeps delivering to cancelled watches, like a store
// with a slow teardown.
type fakeStore struct {
	mu       sync.Mutex
	watches  []*fakeWatch
	calls    []fakeCall
	writeErr error
	hang     chan struct{}
	leaky    bool
	cancels  int
}

func newFakeStore() *fakeStore { return &fakeStore{} }

func (f *fakeStore) Watch(path string, fn func(store.Snapshot)) (func(), error) {
	w := &fakeWatch{path: path, fn: fn}
	f.mu.Lock()
	f.watches = append(f.watches, w)
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if !w.cancelled {
			w.cancelled = true
			f.cancels++
		}
	}, nil
}

func (f *fakeStore) record(ctx context.Context, c fakeCall) error {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	err, hang := f.writeErr, f.hang
	f.mu.Unlock()
	if hang != nil {
		<-hang
	}
	return err
}

func (f *fakeStore) Write(ctx context.Context, path string, value any) error {
	return f.record(ctx, fakeCall{op: "write", path: path, value: value})
}

func (f *fakeStore) Merge(ctx context.Context, path string, partial map[string]any) error {
	return f.record(ctx, fakeCall{op: "merge", path: path, value: partial})
}

func (f *fakeStore) deliver(path string, value any) {
	f.send(store.Snapshot{Path: path, Value: value, Exists: value != nil})
}

func (f *fakeStore) send(s store.Snapshot) {
	f.mu.Lock()
	var targets []func(store.Snapshot)
	for _, w := range f.watches {
		if w.path == s.Path && (!w.cancelled || f.leaky) {
			targets = append(targets, w.fn)
		}
	}
	f.mu.Unlock()
	for _, fn := range targets {
		fn(s)
	}
}

func (f *fakeStore) live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, w := range f.watches {
		if !w.cancelled {
			n++
		}
	}
	return n
}

func (f *fakeStore) writes() []fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakeCall(nil), f.calls...)
}

type recordingRenderer struct {
	mu      sync.Mutex
	states  []models.ViewState
	notices []models.Notice
}

func (r *recordingRenderer) Render(s models.ViewState) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *recordingRenderer) Notify(n models.Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

func (r *recordingRenderer) renders() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

func (r *recordingRenderer) last() models.ViewState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[len(r.states)-1]
}

func (r *recordingRenderer) allNotices() []models.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Notice(nil), r.notices...)
}
