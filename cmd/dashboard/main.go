// Command dashboard mounts one aquarium view against a running daemon,
// prints every projected state as a JSON line and dispatches intents read
// from stdin, one JSON document per line.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"smart_aquarium/internal/config"
	"smart_aquarium/internal/logger"
	"smart_aquarium/internal/models"
	"smart_aquarium/internal/store"
	"smart_aquarium/internal/viewsync"
)

// lineRenderer writes states and notices as tagged JSON lines.
type lineRenderer struct {
	mu  sync.Mutex
	enc *json.Encoder
	log *logger.Logger
}

type line struct {
	Type   string            `json:"type"`
	State  *models.ViewState `json:"state,omitempty"`
	Notice *models.Notice    `json:"notice,omitempty"`
	ID     string            `json:"id,omitempty"`
	Error  string            `json:"error,omitempty"`
}

func (r *lineRenderer) write(l line) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enc.Encode(l); err != nil {
		r.log.Warnw("output_failed", "err", err)
	}
}

func (r *lineRenderer) Render(s models.ViewState) { r.write(line{Type: "state", State: &s}) }
func (r *lineRenderer) Notify(n models.Notice)    { r.write(line{Type: "notice", Notice: &n}) }

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}
	log := logger.Get(cfg.Log.Level)

	viewName := flag.String("view", cfg.Dashboard.View, "view to mount: dashboard, controls, alerts or settings")
	url := flag.String("url", cfg.Dashboard.URL, "daemon websocket url")
	token := flag.String("token", cfg.Dashboard.Token, "bearer token")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	client, err := store.DialWS(dialCtx, *url, store.WithToken(*token), store.WithLogger(log.Named("ws")))
	cancel()
	if err != nil {
		log.Fatalw("failed to connect", "url", *url, "err", err)
	}
	defer func() { _ = client.Close() }()

	out := &lineRenderer{enc: json.NewEncoder(os.Stdout), log: log}
	view, err := viewsync.NewView(models.ViewName(*viewName), client, out,
		viewsync.WithRoot(cfg.Store.Root),
		viewsync.WithLogger(log),
		viewsync.WithCommandTimeout(cfg.Sync.CommandTimeout),
		viewsync.WithTick(cfg.Sync.Tick),
	)
	if err != nil {
		log.Fatalw("invalid view", "view", *viewName, "err", err)
	}
	if err := view.Mount(); err != nil {
		log.Fatalw("mount failed", "err", err)
	}

	// stdin EOF stops dispatching; states keep streaming until a signal.
	go readIntents(os.Stdin, view, out)

	<-ctx.Done()
	view.Unmount()
	view.Wait()
}

// readIntents dispatches each stdin line until EOF.
func readIntents(in io.Reader, view *viewsync.View, out *lineRenderer) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		b := sc.Bytes()
		if len(b) == 0 {
			continue
		}
		intent, err := viewsync.DecodeIntent(b)
		if err != nil {
			out.write(line{Type: "rejected", Error: err.Error()})
			continue
		}
		id, err := view.Dispatch(intent)
		if err != nil {
			out.write(line{Type: "rejected", Error: err.Error()})
			continue
		}
		out.write(line{Type: "dispatched", ID: id})
	}
}
