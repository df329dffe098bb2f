package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"smart_aquarium/internal/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait        = 10 * time.Second
	wsHandshakeTimeout = 10 * time.Second
	defaultRetryEvery  = 2 * time.Second
)

// WSClient implements Store against the daemon's /ws endpoint. Requests are
// matched to acks by id; watches survive reconnects and are re-sent on every
// new connection. While disconnected each watch receives a Snapshot carrying
// ErrNotConnected.
type WSClient struct {
	url    string
	header http.Header
	dialer *websocket.Dialer
	log    *logger.Logger
	retry  time.Duration

	connMu  sync.RWMutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan wsResult

	watchMu sync.Mutex
	watches map[string]*remoteWatch

	closed    chan struct{}
	closeOnce sync.Once
}

type wsResult struct {
	frame ServerFrame
	err   error
}

type remoteWatch struct {
	path string
	fn   func(Snapshot)
}

var _ Store = (*WSClient)(nil)

// WSOption customizes a WSClient.
type WSOption func(*WSClient)

// WithToken sends a bearer token on every handshake.
func WithToken(token string) WSOption {
	return func(c *WSClient) {
		if token != "" {
			c.header.Set("Authorization", "Bearer "+token)
		}
	}
}

func WithLogger(l *logger.Logger) WSOption {
	return func(c *WSClient) { c.log = l }
}

// WithRetryInterval sets the delay between reconnect attempts.
func WithRetryInterval(d time.Duration) WSOption {
	return func(c *WSClient) {
		if d > 0 {
			c.retry = d
		}
	}
}

// DialWS connects to url (ws:// or wss://) and starts the read loop.
func DialWS(ctx context.Context, url string, opts ...WSOption) (*WSClient, error) {
	c := &WSClient{
		url:     url,
		header:  http.Header{},
		dialer:  &websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout},
		log:     logger.Nop(),
		retry:   defaultRetryEvery,
		pending: make(map[string]chan wsResult),
		watches: make(map[string]*remoteWatch),
		closed:  make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *WSClient) connect(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	go c.readLoop(conn)

	c.watchMu.Lock()
	frames := make([]ClientFrame, 0, len(c.watches))
	for id, w := range c.watches {
		frames = append(frames, ClientFrame{ID: id, Op: OpWatch, Path: w.path})
	}
	c.watchMu.Unlock()
	for _, f := range frames {
		if err := c.send(f); err != nil {
			c.log.Warnw("ws_resubscribe_failed", "path", f.Path, "err", err)
		}
	}
	return nil
}

func (c *WSClient) Watch(path string, fn func(Snapshot)) (func(), error) {
	p, err := CleanPath(path)
	if err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, fmt.Errorf("watch %q: nil callback", p)
	}
	select {
	case <-c.closed:
		return nil, ErrClosed
	default:
	}

	id := uuid.NewString()
	c.watchMu.Lock()
	c.watches[id] = &remoteWatch{path: p, fn: fn}
	c.watchMu.Unlock()

	if err := c.send(ClientFrame{ID: id, Op: OpWatch, Path: p}); err != nil {
		// resent by connect once the link is back
		fn(Snapshot{Path: p, Err: ErrNotConnected})
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			c.watchMu.Lock()
			delete(c.watches, id)
			c.watchMu.Unlock()
			_ = c.send(ClientFrame{ID: id, Op: OpUnwatch, Path: p})
		})
	}, nil
}

func (c *WSClient) Write(ctx context.Context, path string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return c.call(ctx, ClientFrame{Op: OpWrite, Path: path, Value: raw})
}

func (c *WSClient) Merge(ctx context.Context, path string, partial map[string]any) error {
	raw, err := json.Marshal(partial)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return c.call(ctx, ClientFrame{Op: OpMerge, Path: path, Value: raw})
}

// Close terminates the connection, fails pending calls and stops reconnecting.
func (c *WSClient) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.connMu.Lock()
		conn := c.conn
		c.conn = nil
		c.connMu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		c.failPending()
	})
	return nil
}

func (c *WSClient) call(ctx context.Context, f ClientFrame) error {
	f.ID = uuid.NewString()
	ch := make(chan wsResult, 1)
	c.pendingMu.Lock()
	c.pending[f.ID] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, f.ID)
		c.pendingMu.Unlock()
	}()

	if err := c.send(f); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return ErrClosed
	case res := <-ch:
		if res.err != nil {
			return res.err
		}
		if res.frame.Type == FrameError {
			return errors.New(res.frame.Error)
		}
		return nil
	}
}

func (c *WSClient) send(f ClientFrame) error {
	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(f)
}

func (c *WSClient) readLoop(conn *websocket.Conn) {
	for {
		var f ServerFrame
		if err := conn.ReadJSON(&f); err != nil {
			c.log.Infow("ws_client_read_closed", "err", err)
			c.disconnected(conn)
			return
		}
		switch f.Type {
		case FrameSnapshot:
			c.watchMu.Lock()
			w, ok := c.watches[f.Sub]
			c.watchMu.Unlock()
			if ok {
				w.fn(Snapshot{Path: w.path, Value: f.Value, Exists: f.Exists})
			}
		case FrameAck, FrameError:
			c.pendingMu.Lock()
			ch, ok := c.pending[f.ID]
			c.pendingMu.Unlock()
			if ok {
				select {
				case ch <- wsResult{frame: f}:
				default:
				}
				continue
			}
			if f.Type == FrameError {
				c.watchRejected(f)
			}
		}
	}
}

// watchRejected reports a refused watch to its callback. Error frames for
// ids that are neither pending calls nor watches are dropped.
func (c *WSClient) watchRejected(f ServerFrame) {
	c.watchMu.Lock()
	w, ok := c.watches[f.ID]
	c.watchMu.Unlock()
	if !ok {
		return
	}
	c.log.Warnw("ws_watch_rejected", "path", w.path, "err", f.Error)
	w.fn(Snapshot{Path: w.path, Err: fmt.Errorf("%w: %s", ErrWatchRejected, f.Error)})
}

func (c *WSClient) disconnected(conn *websocket.Conn) {
	c.connMu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.connMu.Unlock()
	_ = conn.Close()

	select {
	case <-c.closed:
		return
	default:
	}

	c.failPending()

	c.watchMu.Lock()
	ws := make([]*remoteWatch, 0, len(c.watches))
	for _, w := range c.watches {
		ws = append(ws, w)
	}
	c.watchMu.Unlock()
	for _, w := range ws {
		w.fn(Snapshot{Path: w.path, Err: ErrNotConnected})
	}

	go c.reconnect()
}

func (c *WSClient) reconnect() {
	t := time.NewTicker(c.retry)
	defer t.Stop()
	for {
		select {
		case <-c.closed:
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(context.Background(), wsHandshakeTimeout)
			err := c.connect(ctx)
			cancel()
			if err == nil {
				c.log.Infow("ws_client_reconnected", "url", c.url)
				return
			}
			c.log.Debugw("ws_client_reconnect_failed", "err", err)
		}
	}
}

func (c *WSClient) failPending() {
	c.pendingMu.Lock()
	for id, ch := range c.pending {
		select {
		case ch <- wsResult{err: ErrNotConnected}:
		default:
		}
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()
}
