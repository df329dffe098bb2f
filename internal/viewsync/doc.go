// Package viewsync keeps per-view dashboard state in sync with the remote
// aquarium store.
//
// Raw subtree snapshots are normalized into typed records, folded together
// with the view's pending commands and projected into a models.ViewState.
// User intents become a single store write each. The write is applied
// optimistically and then confirmed by the store or rolled back.
package viewsync

import "errors"

var (
	ErrUnmounted      = errors.New("view is not mounted")
	ErrUnknownView    = errors.New("unknown view")
	ErrUnknownAlert   = errors.New("unknown alert")
	ErrInvalidIntent  = errors.New("invalid intent")
	ErrCommandTimeout = errors.New("command timed out")
)
