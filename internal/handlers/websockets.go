package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"smart_aquarium/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Send/receive timing configuration and message size limits.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 1 << 16 // 64 KB
	sendBuffer = 64
)

var errUnknownOp = errors.New("unknown op")

// Upgrader for HTTP -> WebSocket. Consider tightening CheckOrigin in production.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsSession serves one realtime connection. A single writer goroutine owns
// the socket; watch callbacks and the reader hand it frames through out.
type wsSession struct {
	h    *Handler
	conn *websocket.Conn
	out  chan store.ServerFrame
	done chan struct{}
	once sync.Once

	mu      sync.Mutex
	watches map[string]func()
}

func (h *Handler) wsConnect(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	s := &wsSession{
		h:       h,
		conn:    conn,
		out:     make(chan store.ServerFrame, sendBuffer),
		done:    make(chan struct{}),
		watches: make(map[string]func()),
	}
	defer s.cleanup()

	// Configure read limits and pong handler to extend read deadline.
	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go s.readLoop(c.Request.Context())
	s.writeLoop(c.Request.Context())
}

func (s *wsSession) stop() { s.once.Do(func() { close(s.done) }) }

// cleanup drops every watch and closes the socket.
func (s *wsSession) cleanup() {
	s.stop()
	s.mu.Lock()
	stops := make([]func(), 0, len(s.watches))
	for id, stop := range s.watches {
		stops = append(stops, stop)
		delete(s.watches, id)
	}
	s.mu.Unlock()
	for _, stop := range stops {
		stop()
	}
	_ = s.conn.Close()
}

// emit queues a frame for the writer. It gives up once the session ends.
func (s *wsSession) emit(f store.ServerFrame) {
	select {
	case s.out <- f:
	case <-s.done:
	}
}

func (s *wsSession) writeLoop(ctx context.Context) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-ping.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logInfo("ws_ping_failed", "err", err)
				return
			}
		case f := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(f); err != nil {
				s.logInfo("ws_write_failed", "err", err)
				return
			}
		}
	}
}

func (s *wsSession) readLoop(ctx context.Context) {
	defer s.stop()
	for {
		var f store.ClientFrame
		if err := s.conn.ReadJSON(&f); err != nil {
			s.logInfo("ws_read_closed", "err", err)
			return
		}
		if err := s.handle(ctx, f); err != nil {
			s.emit(store.ServerFrame{Type: store.FrameError, ID: f.ID, Path: f.Path, Error: err.Error()})
			continue
		}
		if f.Op != store.OpWatch {
			s.emit(store.ServerFrame{Type: store.FrameAck, ID: f.ID, Path: f.Path})
		}
	}
}

func (s *wsSession) handle(ctx context.Context, f store.ClientFrame) error {
	switch f.Op {
	case store.OpWatch:
		return s.watch(f.ID, f.Path)
	case store.OpUnwatch:
		s.unwatch(f.ID)
		return nil
	case store.OpWrite:
		var v any
		if len(f.Value) > 0 {
			if err := json.Unmarshal(f.Value, &v); err != nil {
				return store.ErrInvalidValue
			}
		}
		wctx, cancel := context.WithTimeout(ctx, writeWait)
		defer cancel()
		return s.h.services.Store.Write(wctx, f.Path, v)
	case store.OpMerge:
		var partial map[string]any
		if err := json.Unmarshal(f.Value, &partial); err != nil {
			return store.ErrInvalidValue
		}
		wctx, cancel := context.WithTimeout(ctx, writeWait)
		defer cancel()
		return s.h.services.Store.Merge(wctx, f.Path, partial)
	default:
		return errUnknownOp
	}
}

// watch registers a subscription under the client's id. Reusing an id
// replaces the earlier subscription.
func (s *wsSession) watch(id, path string) error {
	if id == "" {
		return errors.New("watch requires an id")
	}
	stop, err := s.h.services.Store.Watch(path, func(snap store.Snapshot) {
		s.emit(store.ServerFrame{
			Type:   store.FrameSnapshot,
			Sub:    id,
			Path:   snap.Path,
			Exists: snap.Exists,
			Value:  snap.Value,
		})
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	prev := s.watches[id]
	s.watches[id] = stop
	s.mu.Unlock()
	if prev != nil {
		prev()
	}
	return nil
}

func (s *wsSession) unwatch(id string) {
	s.mu.Lock()
	stop := s.watches[id]
	delete(s.watches, id)
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
}

func (s *wsSession) logInfo(key string, kv ...interface{}) {
	if s.h.log != nil {
		s.h.log.Infow(key, kv...)
	}
}
