package service

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"smart_aquarium/internal/clock"
	"smart_aquarium/internal/device"
	"smart_aquarium/internal/logger"
	"smart_aquarium/internal/models"
	"smart_aquarium/internal/store"
	"smart_aquarium/internal/viewsync"
)

// ----------- Simulation constants -----------
const (
	AmbientC         = 26.0 // temperature the tank settles toward °C
	SettleRate       = 0.02 // share of the gap to ambient closed per tick
	DriftC           = 0.15 // largest random temperature step per tick °C
	BaseTurbidityNTU = 5.0  // turbidity of freshly filtered water
	TurbidityRiseNTU = 0.05 // per tick while the pump is off
	TurbidityFallNTU = 0.2  // per tick while the pump runs
)

type SimulatorOptions struct {
	Root     string
	Clock    clock.Clock
	Location *time.Location // schedules are wall-clock times in this zone
	Mirror   device.LightMirror
	Probe    device.TemperatureProbe
	Drift    func() float64 // values in [-1, 1)
	Logger   *logger.Logger
}

// SimulatorService plays the aquarium controller against the store: it
// publishes sensor readings, consumes commands, runs the auto schedules and
// raises threshold alerts.
type SimulatorService struct {
	store  Store
	root   string
	clock  clock.Clock
	loc    *time.Location
	mirror device.LightMirror
	probe  device.TemperatureProbe
	drift  func() float64
	log    *logger.Logger

	mirrored *models.LightState
}

func NewSimulatorService(st Store, opts SimulatorOptions) *SimulatorService {
	s := &SimulatorService{
		store:  st,
		root:   strings.Trim(opts.Root, "/"),
		clock:  opts.Clock,
		loc:    opts.Location,
		mirror: opts.Mirror,
		probe:  opts.Probe,
		drift:  opts.Drift,
		log:    opts.Logger,
	}
	if s.clock == nil {
		s.clock = clock.Real{}
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.drift == nil {
		s.drift = func() float64 { return rand.Float64()*2 - 1 }
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	return s
}

// Run ticks at the given interval until ctx is canceled.
func (s *SimulatorService) Run(ctx context.Context, tick time.Duration) {
	t := s.clock.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C():
			if err := s.Step(ctx, now); err != nil {
				s.log.Warnw("simulator_step_failed", "error", err)
			}
		}
	}
}

// tick is one step's reading of the tree plus the updates it produces.
type tick struct {
	now      time.Time
	sensors  models.SensorSnapshot
	devices  models.Devices
	settings models.Settings
	alerts   map[string]any
	commands map[string]any
	updates  map[string]any
}

// Step advances the simulation once. The tree is read and every resulting
// change applied as one atomic update at the root, so an operator write
// cannot land between the read and the write-back.
func (s *SimulatorService) Step(ctx context.Context, now time.Time) error {
	probed, hasProbe := s.readProbe(ctx)

	var t *tick
	_, err := s.store.Update(ctx, s.root, func(raw any) map[string]any {
		tree := mapOf(raw)
		t = &tick{
			now:      now,
			sensors:  viewsync.NormalizeSensors(tree["sensors"]),
			devices:  viewsync.NormalizeDevices(tree["devices"]),
			settings: viewsync.NormalizeSettings(tree["settings"]),
			alerts:   mapOf(tree["alerts"]),
			commands: mapOf(tree["commands"]),
			updates:  make(map[string]any),
		}
		s.sense(t, probed, hasProbe)
		s.handleCommands(t)
		s.autoFeed(t)
		s.driveLights(t)
		s.cyclePump(t)
		s.evaluateAlerts(t)
		return t.updates
	})
	if err != nil {
		return fmt.Errorf("apply tick: %w", err)
	}
	s.mirrorLight(ctx, t.devices.Lights)
	return nil
}

// readProbe runs outside the store lock; ok is false without a probe or
// when the read failed.
func (s *SimulatorService) readProbe(ctx context.Context) (float64, bool) {
	if s.probe == nil {
		return 0, false
	}
	v, err := s.probe.ReadTemperature(ctx)
	if err != nil {
		s.log.Warnw("probe_read_failed", "error", err)
		return 0, false
	}
	return v, true
}

// sense publishes the next sensor reading. A probe reading supplies the
// temperature; otherwise it drifts around ambient.
func (s *SimulatorService) sense(t *tick, probed float64, hasProbe bool) {
	temp := AmbientC
	if t.sensors.TemperatureC != nil {
		temp = *t.sensors.TemperatureC
	}
	if hasProbe {
		temp = probed
	} else {
		temp += (AmbientC-temp)*SettleRate + s.drift()*DriftC
	}

	turb := BaseTurbidityNTU
	if t.sensors.TurbidityNTU != nil {
		turb = *t.sensors.TurbidityNTU
	}
	if t.devices.Pump.Status == models.PowerOn {
		turb = math.Max(BaseTurbidityNTU, turb-TurbidityFallNTU)
	} else {
		turb += TurbidityRiseNTU
	}

	temp, turb = round2(temp), round2(turb)
	ts := t.now.Unix()
	t.sensors = models.SensorSnapshot{TemperatureC: &temp, TurbidityNTU: &turb, ObservedAt: &ts}
	t.updates["sensors/temperature"] = temp
	t.updates["sensors/turbidity"] = turb
	t.updates["sensors/timestamp"] = ts
}

// handleCommands consumes the one-shot command flags and resets them.
func (s *SimulatorService) handleCommands(t *tick) {
	if t.commands["feedNow"] == true {
		s.feed(t, "Manual feeding complete")
		t.updates["commands/feedNow"] = false
	}
	if t.commands["stopBuzzer"] == true {
		t.updates["commands/stopBuzzer"] = false
		s.log.Infow("buzzer_silenced")
	}
}

func (s *SimulatorService) autoFeed(t *tick) {
	f := t.devices.Feeder
	if f.Mode != models.ModeAuto {
		return
	}
	if f.LastFedAt != nil {
		due := time.Unix(*f.LastFedAt, 0).Add(time.Duration(f.IntervalHours) * time.Hour)
		if t.now.Before(due) {
			return
		}
	}
	s.feed(t, "Scheduled feeding complete")
}

func (s *SimulatorService) feed(t *tick, message string) {
	ts := t.now.Unix()
	t.devices.Feeder.LastFedAt = &ts
	t.updates["devices/feeder/lastFed"] = ts
	t.updates[fmt.Sprintf("alerts/alert_%d", t.now.UnixMilli())] = map[string]any{
		"type":      string(models.AlertSuccess),
		"title":     "Feeding Complete",
		"message":   message,
		"timestamp": ts,
		"active":    true,
	}
	s.log.Infow("fish_fed", "message", message)
}

// driveLights switches the lights by the daily schedule in auto mode.
func (s *SimulatorService) driveLights(t *tick) {
	l := &t.devices.Lights
	if l.Mode != models.ModeAuto {
		return
	}
	sched := t.settings.Schedules
	want := models.PowerOff
	if withinDaily(t.now.In(s.loc), sched.LightStart, sched.LightEnd) {
		want = models.PowerOn
	}
	if l.Status != want {
		l.Status = want
		t.updates["devices/lights/status"] = string(want)
	}
}

// cyclePump runs the pump for PumpDurationMin at the start of every
// PumpIntervalMin window, counted from local midnight.
func (s *SimulatorService) cyclePump(t *tick) {
	p := &t.devices.Pump
	sched := t.settings.Schedules
	if p.Mode != models.ModeAuto || sched.PumpIntervalMin <= 0 {
		return
	}
	local := t.now.In(s.loc)
	minute := local.Hour()*60 + local.Minute()
	want := models.PowerOff
	if minute%sched.PumpIntervalMin < sched.PumpDurationMin {
		want = models.PowerOn
	}
	if p.Status != want {
		p.Status = want
		t.updates["devices/pump/status"] = string(want)
	}
}

// evaluateAlerts raises or clears the sensor flags against the thresholds.
func (s *SimulatorService) evaluateAlerts(t *tick) {
	th := t.settings.Thresholds

	tempMsg := ""
	if v := t.sensors.TemperatureC; v != nil {
		switch {
		case *v < th.TempMinC:
			tempMsg = fmt.Sprintf("Temperature below %.1f°C minimum", th.TempMinC)
		case *v > th.TempMaxC:
			tempMsg = fmt.Sprintf("Temperature above %.1f°C maximum", th.TempMaxC)
		}
	}
	s.setFlag(t, "temperature", tempMsg)

	turbMsg := ""
	if v := t.sensors.TurbidityNTU; v != nil && *v > th.TurbidityMaxNTU {
		turbMsg = fmt.Sprintf("Turbidity above %.0f NTU", th.TurbidityMaxNTU)
	}
	s.setFlag(t, "turbidity", turbMsg)
}

func (s *SimulatorService) setFlag(t *tick, field, msg string) {
	current, _ := t.alerts[field].(string)
	if current == msg {
		return
	}
	t.updates[store.Join("alerts", field)] = msg
	if msg != "" {
		s.log.Warnw("alert_raised", "field", field, "message", msg)
	}
}

// mirrorLight pushes the light record to the physical lamp when it changed
// since the last successful push.
func (s *SimulatorService) mirrorLight(ctx context.Context, l models.LightState) {
	if s.mirror == nil || (s.mirrored != nil && *s.mirrored == l) {
		return
	}
	if err := s.mirror.Apply(ctx, l); err != nil {
		s.log.Warnw("light_mirror_failed", "error", err)
		return
	}
	s.mirrored = &l
}

// withinDaily reports whether t falls in [start, end) of a daily HH:MM
// window. Windows may wrap past midnight.
func withinDaily(t time.Time, start, end string) bool {
	from, ok1 := minuteOfDay(start)
	to, ok2 := minuteOfDay(end)
	if !ok1 || !ok2 || from == to {
		return false
	}
	m := t.Hour()*60 + t.Minute()
	if from < to {
		return m >= from && m < to
	}
	return m >= from || m < to
}

func minuteOfDay(hhmm string) (int, bool) {
	h, m, ok := strings.Cut(hhmm, ":")
	if !ok {
		return 0, false
	}
	hh, err1 := strconv.Atoi(h)
	mm, err2 := strconv.Atoi(m)
	if err1 != nil || err2 != nil || hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, false
	}
	return hh*60 + mm, true
}

// helpers
func mapOf(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }
