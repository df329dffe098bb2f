package viewsync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"smart_aquarium/internal/clock"
	"smart_aquarium/internal/logger"
	"smart_aquarium/internal/models"
	"smart_aquarium/internal/store"
)

const (
	DefaultRoot = "aquarium"
	// DefaultTick refreshes relative times even when no data arrives.
	DefaultTick = time.Minute
)

// viewSections lists the subtrees each view watches.
var viewSections = map[models.ViewName][]Section{
	models.ViewDashboard: {SectionSensors, SectionDevices, SectionAlerts},
	models.ViewControls:  {SectionDevices},
	models.ViewAlerts:    {SectionAlerts, SectionSettings},
	models.ViewSettings:  {SectionSettings, SectionSensors},
}

// viewIntents lists the intents each view accepts.
var viewIntents = map[models.ViewName]map[string]bool{
	models.ViewDashboard: {},
	models.ViewControls: {
		SetFeederMode{}.Name(): true, SetFeedInterval{}.Name(): true, FeedNow{}.Name(): true,
		SetLightMode{}.Name(): true, SetLightPower{}.Name(): true, ToggleLight{}.Name(): true,
		SetLightColor{}.Name(): true, SetLightBrightness{}.Name(): true,
		SetPumpMode{}.Name(): true, SetPumpPower{}.Name(): true, TogglePump{}.Name(): true,
	},
	models.ViewAlerts: {
		DismissAlert{}.Name(): true, ClearAllAlerts{}.Name(): true,
		StopBuzzer{}.Name(): true, SaveThresholds{}.Name(): true,
	},
	models.ViewSettings: {
		SaveSchedules{}.Name(): true,
	},
}

// Sections returns the subtrees watched by view.
func Sections(view models.ViewName) []Section {
	return append([]Section(nil), viewSections[view]...)
}

// Renderer is the presentation layer. Its methods are called with the
// view's lock held, one at a time and in order, so they must not call back
// into the View.
type Renderer interface {
	Render(state models.ViewState)
	Notify(n models.Notice)
}

type Option func(*View)

func WithRoot(root string) Option { return func(v *View) { v.root = root } }

func WithClock(c clock.Clock) Option { return func(v *View) { v.clock = c } }

func WithLogger(l *logger.Logger) Option { return func(v *View) { v.log = l } }

func WithCommandTimeout(d time.Duration) Option { return func(v *View) { v.timeout = d } }

func WithTick(d time.Duration) Option { return func(v *View) { v.tick = d } }

// View is one mounted dashboard screen. Snapshots, ticks, dispatches and
// write completions are serialized by the view's lock. Every piece of
// state is rebuilt on Mount and dropped on Unmount.
type View struct {
	name     models.ViewName
	store    store.Store
	renderer Renderer
	root     string
	clock    clock.Clock
	log      *logger.Logger
	timeout  time.Duration
	tick     time.Duration

	dispatcher *Dispatcher
	writes     sync.WaitGroup

	mu      sync.Mutex
	mounted bool
	gen     uint64
	proj    *Projector
	scope   *Scope
	stop    chan struct{}
}

func NewView(name models.ViewName, s store.Store, r Renderer, opts ...Option) (*View, error) {
	if _, ok := viewSections[name]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownView, name)
	}
	v := &View{
		name:     name,
		store:    s,
		renderer: r,
		root:     DefaultRoot,
		clock:    clock.Real{},
		log:      logger.Nop(),
		timeout:  DefaultCommandTimeout,
		tick:     DefaultTick,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.log = v.log.Named(string(name))
	v.dispatcher = NewDispatcher(s, v.root, v.timeout)
	return v, nil
}

func (v *View) Name() models.ViewName { return v.name }

// Mount opens one subscription per watched subtree and starts the refresh
// ticker. Mounting a mounted view is a no-op.
func (v *View) Mount() error {
	v.mu.Lock()
	if v.mounted {
		v.mu.Unlock()
		return nil
	}
	v.gen++
	gen := v.gen
	sections := viewSections[v.name]
	v.mounted = true
	v.proj = NewProjector(v.name, sections)
	if v.timeout > 0 {
		v.proj.settle = v.timeout
	}
	v.scope = &Scope{}
	v.stop = make(chan struct{})
	scope, stop := v.scope, v.stop
	v.render()
	v.mu.Unlock()

	// The store may deliver the first snapshot before Watch returns, so no
	// lock is held while subscribing.
	for _, sec := range sections {
		path := store.Join(v.root, string(sec))
		if err := scope.Subscribe(v.store, path, v.onSnapshot(gen, sec)); err != nil {
			v.Unmount()
			return fmt.Errorf("subscribe %s: %w", path, err)
		}
	}

	go v.runTicker(gen, v.clock.NewTicker(v.tick), stop)
	v.log.Debugw("view_mounted", "sections", len(sections))
	return nil
}

// Unmount releases every subscription and discards local state. No
// snapshot or write outcome reaches the renderer once it returns. Writes
// still in transit are not cancelled.
func (v *View) Unmount() {
	v.mu.Lock()
	if !v.mounted {
		v.mu.Unlock()
		return
	}
	v.mounted = false
	scope, stop := v.scope, v.stop
	v.proj, v.scope, v.stop = nil, nil, nil
	v.mu.Unlock()

	// Subscription callbacks take v.mu, so the scope is closed without it.
	scope.Close()
	close(stop)
	v.log.Debugw("view_unmounted")
}

// Dispatch validates intent, applies it optimistically and starts its
// write. It returns the command id; the outcome arrives later through the
// renderer.
func (v *View) Dispatch(intent Intent) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.mounted {
		return "", ErrUnmounted
	}
	if !viewIntents[v.name][intent.Name()] {
		return "", fmt.Errorf("%w: %s is not available on the %s view", ErrInvalidIntent, intent.Name(), v.name)
	}

	now := v.clock.Now()
	p, err := intent.plan(v.proj.State(now), now)
	if err != nil {
		return "", err
	}

	cmd := models.PendingCommand{
		ID:         uuid.NewString(),
		Intent:     intent.Name(),
		TargetPath: p.path,
		Payload:    p.payload(),
		IssuedAt:   now.Unix(),
		Status:     models.CommandIssued,
		Overlay:    p.overlay,
		OneShot:    p.oneShot,
	}
	v.proj.Issue(cmd)
	v.render()
	v.log.Debugw("command_issued", "id", cmd.ID, "intent", cmd.Intent, "path", cmd.TargetPath)

	gen := v.gen
	v.writes.Add(1)
	go func() {
		defer v.writes.Done()
		err := v.dispatcher.Execute(context.Background(), p)
		v.resolve(gen, cmd, err)
	}()
	return cmd.ID, nil
}

// State returns the current projection. An unmounted view has an empty one.
func (v *View) State() models.ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.mounted {
		return models.ViewState{View: v.name}
	}
	return v.proj.State(v.clock.Now())
}

// Pending returns the unretired commands of the mounted view.
func (v *View) Pending() []models.PendingCommand {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.mounted {
		return nil
	}
	return v.proj.Pending()
}

// Wait blocks until every write started by Dispatch has resolved.
func (v *View) Wait() { v.writes.Wait() }

func (v *View) onSnapshot(gen uint64, sec Section) func(store.Snapshot) {
	return func(snap store.Snapshot) {
		v.mu.Lock()
		defer v.mu.Unlock()
		if !v.mounted || v.gen != gen {
			return
		}
		if snap.Err != nil {
			v.log.Warnw("subscription_error", "section", sec, "error", snap.Err)
		} else if Malformed(snap.Value, snap.Exists) {
			v.log.Warnw("malformed_snapshot", "section", sec, "value_type", fmt.Sprintf("%T", snap.Value))
		}
		if v.proj.ApplySnapshot(sec, snap, v.clock.Now()) {
			v.render()
		}
	}
}

func (v *View) resolve(gen uint64, cmd models.PendingCommand, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.mounted || v.gen != gen {
		return
	}
	if err == nil {
		v.proj.Confirm(cmd.ID, v.clock.Now())
		v.log.Debugw("command_confirmed", "id", cmd.ID, "intent", cmd.Intent)
	} else {
		n, ok := v.proj.Fail(cmd.ID, err, v.clock.Now())
		if !ok {
			return
		}
		v.log.Warnw("command_failed", "id", cmd.ID, "intent", cmd.Intent, "error", err)
		v.renderer.Notify(n)
	}
	v.render()
}

func (v *View) runTicker(gen uint64, t clock.Ticker, stop <-chan struct{}) {
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C():
			v.mu.Lock()
			if v.mounted && v.gen == gen {
				v.proj.Expire(v.clock.Now())
				v.render()
			}
			v.mu.Unlock()
		}
	}
}

// render must be called with v.mu held.
func (v *View) render() {
	v.renderer.Render(v.proj.State(v.clock.Now()))
}
