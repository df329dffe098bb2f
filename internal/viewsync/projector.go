package viewsync

import (
	"fmt"
	"time"

	"smart_aquarium/internal/models"
	"smart_aquarium/internal/store"
)

// One-shot command names, also used as InProgress keys.
const (
	OneShotFeedNow    = "feedNow"
	OneShotStopBuzzer = "stopBuzzer"
)

// Input is everything a projection depends on.
type Input struct {
	View       models.ViewName
	Connected  bool
	Base       Base
	Pending    []models.PendingCommand
	Buzzer     bool
	InProgress map[string]bool
	Now        time.Time
}

// Project folds the pending commands over the confirmed base and derives
// the rendered state. Overlays of live commands win over snapshot values;
// failed and retired commands contribute nothing. Later commands win over
// earlier ones on the same field.
func Project(in Input) models.ViewState {
	b := in.Base.clone()
	live := 0
	for _, c := range in.Pending {
		switch c.Status {
		case models.CommandIssued, models.CommandInFlight, models.CommandConfirmed:
			applyOverlay(&b, c.Overlay)
			live++
		}
	}

	alerts := MaterializeAlerts(b.Alerts, b.Flags, in.Now)
	inProgress := make(map[string]bool, len(in.InProgress))
	for k, v := range in.InProgress {
		if v {
			inProgress[k] = true
		}
	}

	return models.ViewState{
		View:              in.View,
		Connected:         in.Connected,
		Sensors:           b.Sensors,
		TemperatureText:   FormatTemperature(b.Sensors.TemperatureC),
		TempStatus:        ClassifyTemperature(b.Sensors.TemperatureC),
		Devices:           b.Devices,
		TimeSinceLastFed:  TimeSinceLastFed(b.Devices.Feeder, in.Now),
		TimeToNextFeeding: TimeToNextFeeding(b.Devices.Feeder, in.Now),
		Alerts:            alerts,
		Banner:            Banner(alerts),
		ActiveCounts:      CountActive(alerts),
		BuzzerActive:      in.Buzzer,
		Settings:          b.Settings,
		InProgress:        inProgress,
		Pending:           live,
		UpdatedAt:         in.Now.Unix(),
	}
}

// Projector is the stateful reducer of one mounted view. It owns the
// confirmed base and the pending command set. It is not safe for
// concurrent use; View serializes access.
type Projector struct {
	view       models.ViewName
	sections   []Section
	base       Base
	seen       map[Section]bool
	connected  map[Section]bool
	pending    []models.PendingCommand
	buzzer     bool
	inProgress map[string]bool

	// settle bounds how long a confirmed overlay may disagree with the
	// snapshots of its section before the store value takes over.
	settle      time.Duration
	confirmedAt map[string]time.Time
}

func NewProjector(view models.ViewName, sections []Section) *Projector {
	return &Projector{
		view:     view,
		sections: sections,
		base: Base{
			Devices:  NormalizeDevices(nil),
			Settings: NormalizeSettings(nil),
			Alerts:   NormalizeAlerts(nil),
			Flags:    FlagHistory{},
		},
		seen:        make(map[Section]bool),
		connected:   make(map[Section]bool),
		inProgress:  make(map[string]bool),
		settle:      DefaultCommandTimeout,
		confirmedAt: make(map[string]time.Time),
	}
}

// ApplySnapshot folds one store snapshot for section into the base and
// reconciles pending commands against it. It reports whether the rendered
// state may have changed; stale sensor snapshots are dropped.
func (p *Projector) ApplySnapshot(section Section, snap store.Snapshot, now time.Time) bool {
	if snap.Err != nil {
		changed := p.connected[section]
		p.connected[section] = false
		return changed
	}
	p.connected[section] = true

	switch section {
	case SectionSensors:
		next := NormalizeSensors(snap.Value)
		if p.seen[section] && IsStale(p.base.Sensors, next) {
			return false
		}
		p.base.Sensors = next
	case SectionDevices:
		p.base.Devices = NormalizeDevices(snap.Value)
	case SectionSettings:
		p.base.Settings = NormalizeSettings(snap.Value)
	case SectionAlerts:
		next := NormalizeAlerts(snap.Value)
		if BuzzerRaised(p.base.Alerts, next) {
			p.buzzer = true
		} else if !BuzzerSounding(next) {
			p.buzzer = false
		}
		p.base.Flags = RememberFlags(p.base.Flags, next, now)
		p.base.Alerts = next
	default:
		return false
	}
	p.seen[section] = true
	p.reconcile(section, now)
	return true
}

// reconcile retires commands the new base has caught up with: any command
// whose overlay values all match, and confirmed commands whose settle
// window has passed. A snapshot taken before the write can still arrive
// after its acknowledgement, so a mismatch inside the window keeps the
// overlay.
func (p *Projector) reconcile(section Section, now time.Time) {
	kept := p.pending[:0]
	for _, c := range p.pending {
		if c.OneShot == "" && commandSection(c) == section && p.retirable(c, now) {
			delete(p.confirmedAt, c.ID)
			continue
		}
		kept = append(kept, c)
	}
	p.pending = kept
}

func (p *Projector) retirable(c models.PendingCommand, now time.Time) bool {
	switch c.Status {
	case models.CommandIssued, models.CommandInFlight:
		return overlayMatches(&p.base, c.Overlay)
	case models.CommandConfirmed:
		return overlayMatches(&p.base, c.Overlay) || p.settled(c.ID, now)
	}
	return false
}

func (p *Projector) settled(id string, now time.Time) bool {
	at, ok := p.confirmedAt[id]
	return ok && !now.Before(at.Add(p.settle))
}

// Expire retires confirmed commands whose settle window has passed with no
// matching snapshot, handing their fields back to the last snapshot. It
// reports whether anything was retired.
func (p *Projector) Expire(now time.Time) bool {
	kept := p.pending[:0]
	for _, c := range p.pending {
		if c.Status == models.CommandConfirmed && p.settled(c.ID, now) {
			delete(p.confirmedAt, c.ID)
			continue
		}
		kept = append(kept, c)
	}
	expired := len(kept) != len(p.pending)
	p.pending = kept
	return expired
}

func commandSection(c models.PendingCommand) Section {
	if len(c.Overlay) > 0 {
		return sectionOf(c.Overlay[0].Field)
	}
	return sectionOf(c.TargetPath)
}

// Issue registers a command whose write is about to start.
func (p *Projector) Issue(c models.PendingCommand) {
	c.Status = models.CommandInFlight
	if c.OneShot != "" {
		p.inProgress[c.OneShot] = true
	}
	p.pending = append(p.pending, c)
}

// Confirm records a successful write at now. One-shot commands retire at
// once; the others keep their overlay until a matching snapshot arrives or
// the settle window ends. Commands already retired are ignored.
func (p *Projector) Confirm(id string, now time.Time) {
	i := p.find(id)
	if i < 0 {
		return
	}
	c := &p.pending[i]
	if c.OneShot == "" {
		c.Status = models.CommandConfirmed
		p.confirmedAt[id] = now
		return
	}
	delete(p.inProgress, c.OneShot)
	if c.OneShot == OneShotStopBuzzer {
		p.buzzer = false
	}
	p.remove(i)
}

// Fail retires a command whose write failed, which reverts its overlay,
// and returns the notice to show. ok is false when the command is unknown.
func (p *Projector) Fail(id string, cause error, now time.Time) (n models.Notice, ok bool) {
	i := p.find(id)
	if i < 0 {
		return models.Notice{}, false
	}
	c := p.pending[i]
	if c.OneShot != "" {
		delete(p.inProgress, c.OneShot)
	}
	p.remove(i)
	return models.Notice{
		CommandID: c.ID,
		Intent:    c.Intent,
		Message:   fmt.Sprintf("%s failed: %v", c.Intent, cause),
		At:        now.Unix(),
	}, true
}

// Pending returns a copy of the unretired commands in issue order.
func (p *Projector) Pending() []models.PendingCommand {
	return append([]models.PendingCommand(nil), p.pending...)
}

// Connected reports whether every section has a live subscription.
func (p *Projector) Connected() bool {
	for _, s := range p.sections {
		if !p.connected[s] {
			return false
		}
	}
	return len(p.sections) > 0
}

func (p *Projector) State(now time.Time) models.ViewState {
	return Project(Input{
		View:       p.view,
		Connected:  p.Connected(),
		Base:       p.base,
		Pending:    p.pending,
		Buzzer:     p.buzzer,
		InProgress: p.inProgress,
		Now:        now,
	})
}

func (p *Projector) find(id string) int {
	for i, c := range p.pending {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (p *Projector) remove(i int) {
	p.pending = append(p.pending[:i], p.pending[i+1:]...)
}
