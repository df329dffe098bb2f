// Package store defines the path-addressed realtime store contract and its
// implementations: an in-memory tree and a websocket client for the daemon.
package store

import (
	"context"
	"errors"
)

var (
	ErrInvalidPath  = errors.New("invalid store path")
	ErrInvalidValue = errors.New("value is not JSON-compatible")
	ErrNotConnected = errors.New("store not connected")
	ErrClosed       = errors.New("store closed")
)

// ErrWatchRejected is carried by a Snapshot when the server refused the
// subscription. The watch is offered again after the next reconnect.
var ErrWatchRejected = errors.New("watch rejected")

// Snapshot is the full value at and below Path at one point in time.
// Err is set when the subscription lost its connection; the underlying
// client keeps reconnecting and later snapshots clear the condition.
type Snapshot struct {
	Path   string
	Value  any
	Exists bool
	Err    error
}

// Store is the remote state store consumed by the dashboard core.
//
// Watch invokes fn with the current value right after subscribing and again on
// every change of the subtree, in emission order. The returned function stops
// the watch; it must not be called from inside fn.
type Store interface {
	Watch(path string, fn func(Snapshot)) (func(), error)
	Write(ctx context.Context, path string, value any) error
	Merge(ctx context.Context, path string, partial map[string]any) error
}
