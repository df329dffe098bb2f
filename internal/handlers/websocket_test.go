package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"smart_aquarium/internal/service"
	"smart_aquarium/internal/store"

	"github.com/gorilla/websocket"
)

type snapshotLog struct {
	mu    sync.Mutex
	snaps []store.Snapshot
}

func (l *snapshotLog) add(s store.Snapshot) {
	l.mu.Lock()
	l.snaps = append(l.snaps, s)
	l.mu.Unlock()
}

// waitFor polls until pred holds for the latest snapshot.
func (l *snapshotLog) waitFor(t *testing.T, pred func(store.Snapshot) bool) store.Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		l.mu.Lock()
		n := len(l.snaps)
		var last store.Snapshot
		if n > 0 {
			last = l.snaps[n-1]
		}
		l.mu.Unlock()
		if n > 0 && pred(last) {
			return last
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met; snapshots=%+v", l.snaps)
	return store.Snapshot{}
}

func startWSServer(t *testing.T, st service.Store) string {
	t.Helper()
	r := newTestRouter(&service.Service{Authorization: &mockAuth{parseID: 1}, Store: st})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestWebSocket_WatchWriteMergeRoundTrip(t *testing.T) {
	st := newMemStore(t, map[string]any{
		"aquarium": map[string]any{"sensors": map[string]any{"temperature": 25.0}},
	})
	url := startWSServer(t, st)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := store.DialWS(ctx, url, store.WithToken("valid"))
	if err != nil {
		t.Fatalf("DialWS: %v", err)
	}
	defer client.Close()

	var log snapshotLog
	stop, err := client.Watch("aquarium/sensors", log.add)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	log.waitFor(t, func(s store.Snapshot) bool {
		m, _ := s.Value.(map[string]any)
		return s.Exists && m["temperature"] == 25.0
	})

	if err := client.Write(ctx, "aquarium/sensors/temperature", 26.5); err != nil {
		t.Fatalf("Write: %v", err)
	}
	log.waitFor(t, func(s store.Snapshot) bool {
		m, _ := s.Value.(map[string]any)
		return m["temperature"] == 26.5
	})

	if err := client.Merge(ctx, "aquarium/sensors", map[string]any{"turbidity": 4.0}); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	last := log.waitFor(t, func(s store.Snapshot) bool {
		m, _ := s.Value.(map[string]any)
		return m["turbidity"] == 4.0
	})
	if m := last.Value.(map[string]any); m["temperature"] != 26.5 {
		t.Fatalf("merge dropped a sibling: %+v", m)
	}

	if err := client.Write(ctx, "aquarium/../x", 1); err == nil {
		t.Fatal("expected error frame for invalid path")
	}

	stop()
	if err := client.Write(ctx, "aquarium/sensors/temperature", 27.0); err != nil {
		t.Fatalf("Write: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	log.mu.Lock()
	defer log.mu.Unlock()
	for _, s := range log.snaps {
		if m, ok := s.Value.(map[string]any); ok && m["temperature"] == 27.0 {
			t.Fatal("snapshot delivered after unwatch")
		}
	}
}

func TestWebSocket_RequiresToken(t *testing.T) {
	url := startWSServer(t, newMemStore(t, nil))

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected handshake to fail without a token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
}

func TestWebSocket_UnknownOpAndWatchWithoutID(t *testing.T) {
	url := startWSServer(t, newMemStore(t, nil))
	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer valid")
	conn, _, err := websocket.DefaultDialer.Dial(url, hdr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	cases := []struct {
		frame store.ClientFrame
		want  string
	}{
		{store.ClientFrame{ID: "1", Op: "explode", Path: "a"}, "unknown op"},
		{store.ClientFrame{Op: store.OpWatch, Path: "a"}, "watch requires an id"},
		{store.ClientFrame{ID: "3", Op: store.OpMerge, Path: "a", Value: []byte(`"x"`)}, store.ErrInvalidValue.Error()},
	}
	for _, tc := range cases {
		if err := conn.WriteJSON(tc.frame); err != nil {
			t.Fatalf("WriteJSON: %v", err)
		}
		var f store.ServerFrame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("ReadJSON: %v", err)
		}
		if f.Type != store.FrameError || f.ID != tc.frame.ID || f.Error != tc.want {
			t.Fatalf("unexpected frame for %+v: %+v", tc.frame, f)
		}
	}
}
