package service

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"smart_aquarium/internal/models"
	"smart_aquarium/internal/store"
)

// ---- Test doubles ----

// memStore adapts store.Memory to the service Store.
type memStore struct{ *store.Memory }

func newMemStore(t *testing.T, tree map[string]any) memStore {
	t.Helper()
	var initial any
	if tree != nil {
		initial = tree
	}
	m, err := store.NewMemory(initial)
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return memStore{m}
}

// interleavedStore lets an operator write land just before the
// simulator's update takes the store lock.
type interleavedStore struct {
	memStore
	before func()
}

func (s interleavedStore) Update(ctx context.Context, path string, fn func(any) map[string]any) (map[string]any, error) {
	if s.before != nil {
		s.before()
	}
	return s.memStore.Update(ctx, path, fn)
}

type probeStub struct {
	temp float64
	err  error
}

func (p *probeStub) ReadTemperature(context.Context) (float64, error) { return p.temp, p.err }

type mirrorStub struct {
	applied []models.LightState
	err     error
}

func (m *mirrorStub) Apply(_ context.Context, l models.LightState) error {
	if m.err != nil {
		return m.err
	}
	m.applied = append(m.applied, l)
	return nil
}

// noon on a fixed day, UTC
var simNow = time.Date(2025, time.March, 3, 12, 0, 0, 0, time.UTC)

func baseTree() map[string]any {
	return map[string]any{
		"aquarium": map[string]any{
			"sensors": map[string]any{"temperature": 26.0, "turbidity": 5.0, "timestamp": simNow.Add(-time.Second).Unix()},
			"devices": map[string]any{
				"feeder": map[string]any{"mode": "manual", "interval": 6, "lastFed": simNow.Add(-time.Hour).Unix()},
				"lights": map[string]any{"mode": "manual", "status": "OFF", "color": "#4A90E2", "brightness": 80},
				"pump":   map[string]any{"mode": "manual", "status": "OFF"},
			},
			"settings": map[string]any{
				"schedules":  map[string]any{"lightStart": "06:00", "lightEnd": "20:00", "pumpDuration": 10, "pumpInterval": 60},
				"thresholds": map[string]any{"tempMin": 24, "tempMax": 28, "turbidityMax": 30},
			},
		},
	}
}

func newTestSimulator(st Store, opts SimulatorOptions) *SimulatorService {
	opts.Root = "aquarium"
	opts.Location = time.UTC
	if opts.Drift == nil {
		opts.Drift = func() float64 { return 0 }
	}
	return NewSimulatorService(st, opts)
}

func get(t *testing.T, st Store, path string) any {
	t.Helper()
	v, _, err := st.Get(path)
	if err != nil {
		t.Fatalf("Get(%q): %v", path, err)
	}
	return v
}

func set(t *testing.T, st Store, path string, v any) {
	t.Helper()
	if err := st.Write(context.Background(), path, v); err != nil {
		t.Fatalf("Write(%q): %v", path, err)
	}
}

// ---- Tests ----

func TestSimulator_SensorsSettleTowardAmbient(t *testing.T) {
	st := newMemStore(t, baseTree())
	set(t, st, "aquarium/sensors/temperature", 30.0)
	sim := newTestSimulator(st, SimulatorOptions{})

	if err := sim.Step(context.Background(), simNow); err != nil {
		t.Fatalf("Step: %v", err)
	}
	want := round2(30 + (AmbientC-30)*SettleRate)
	if got := get(t, st, "aquarium/sensors/temperature"); got != want {
		t.Fatalf("temperature = %v, want %v", got, want)
	}
	if got := get(t, st, "aquarium/sensors/timestamp"); got != float64(simNow.Unix()) {
		t.Fatalf("timestamp = %v, want %v", got, simNow.Unix())
	}
	if got := get(t, st, "aquarium/sensors/turbidity"); got != 5.0+TurbidityRiseNTU {
		t.Fatalf("turbidity = %v, want rise while pump is off", got)
	}
}

func TestSimulator_ProbeOverridesDrift(t *testing.T) {
	st := newMemStore(t, baseTree())
	sim := newTestSimulator(st, SimulatorOptions{Probe: &probeStub{temp: 31.26}})

	if err := sim.Step(context.Background(), simNow); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got := get(t, st, "aquarium/sensors/temperature"); got != 31.26 {
		t.Fatalf("temperature = %v, want probe reading", got)
	}
	if got := get(t, st, "aquarium/alerts/temperature"); got != "Temperature above 28.0°C maximum" {
		t.Fatalf("temperature flag = %v", got)
	}

	sim.probe = &probeStub{err: errors.New("no response")}
	if err := sim.Step(context.Background(), simNow.Add(time.Second)); err != nil {
		t.Fatalf("probe failure must not fail the step: %v", err)
	}
}

func TestSimulator_ConsumesFeedNowAndStopBuzzer(t *testing.T) {
	st := newMemStore(t, baseTree())
	set(t, st, "aquarium/commands", map[string]any{"feedNow": true, "stopBuzzer": true, "timestamp": simNow.UnixMilli()})
	sim := newTestSimulator(st, SimulatorOptions{})

	if err := sim.Step(context.Background(), simNow); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got := get(t, st, "aquarium/commands/feedNow"); got != false {
		t.Fatalf("feedNow = %v, want reset", got)
	}
	if got := get(t, st, "aquarium/commands/stopBuzzer"); got != false {
		t.Fatalf("stopBuzzer = %v, want reset", got)
	}
	if got := get(t, st, "aquarium/devices/feeder/lastFed"); got != float64(simNow.Unix()) {
		t.Fatalf("lastFed = %v, want now", got)
	}
	rec, ok := get(t, st, "aquarium/alerts/alert_"+itoa(simNow.UnixMilli())).(map[string]any)
	if !ok || rec["type"] != "success" || rec["active"] != true {
		t.Fatalf("expected success record, got %#v", rec)
	}
}

func TestSimulator_AutoFeedWhenDue(t *testing.T) {
	st := newMemStore(t, baseTree())
	set(t, st, "aquarium/devices/feeder/mode", "auto")
	sim := newTestSimulator(st, SimulatorOptions{})

	// fed an hour ago with a 6h interval: not due
	if err := sim.Step(context.Background(), simNow); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got := get(t, st, "aquarium/devices/feeder/lastFed"); got != float64(simNow.Add(-time.Hour).Unix()) {
		t.Fatalf("fed too early: lastFed=%v", got)
	}

	later := simNow.Add(5 * time.Hour)
	if err := sim.Step(context.Background(), later); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got := get(t, st, "aquarium/devices/feeder/lastFed"); got != float64(later.Unix()) {
		t.Fatalf("lastFed = %v, want %v", got, later.Unix())
	}
}

func TestSimulator_LightScheduleInAutoMode(t *testing.T) {
	st := newMemStore(t, baseTree())
	set(t, st, "aquarium/devices/lights/mode", "auto")
	mirror := &mirrorStub{}
	sim := newTestSimulator(st, SimulatorOptions{Mirror: mirror})

	if err := sim.Step(context.Background(), simNow); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got := get(t, st, "aquarium/devices/lights/status"); got != "ON" {
		t.Fatalf("lights at noon = %v, want ON", got)
	}

	night := time.Date(2025, time.March, 3, 21, 30, 0, 0, time.UTC)
	if err := sim.Step(context.Background(), night); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got := get(t, st, "aquarium/devices/lights/status"); got != "OFF" {
		t.Fatalf("lights at night = %v, want OFF", got)
	}

	// unchanged light is not mirrored again
	if err := sim.Step(context.Background(), night.Add(time.Second)); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if len(mirror.applied) != 2 || mirror.applied[0].Status != models.PowerOn || mirror.applied[1].Status != models.PowerOff {
		t.Fatalf("unexpected mirror calls: %+v", mirror.applied)
	}
}

func TestSimulator_ManualModeLeavesDevicesAlone(t *testing.T) {
	st := newMemStore(t, baseTree())
	sim := newTestSimulator(st, SimulatorOptions{})

	if err := sim.Step(context.Background(), simNow); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got := get(t, st, "aquarium/devices/lights/status"); got != "OFF" {
		t.Fatalf("manual lights changed to %v", got)
	}
	if got := get(t, st, "aquarium/devices/pump/status"); got != "OFF" {
		t.Fatalf("manual pump changed to %v", got)
	}
}

func TestSimulator_PumpCycle(t *testing.T) {
	st := newMemStore(t, baseTree())
	set(t, st, "aquarium/devices/pump/mode", "auto")
	sim := newTestSimulator(st, SimulatorOptions{})

	cases := []struct {
		at   time.Time
		want string
	}{
		{simNow.Add(5 * time.Minute), "ON"},   // 12:05, inside the first 10 minutes
		{simNow.Add(15 * time.Minute), "OFF"}, // 12:15
		{simNow.Add(60 * time.Minute), "ON"},  // 13:00
	}
	for _, c := range cases {
		if err := sim.Step(context.Background(), c.at); err != nil {
			t.Fatalf("Step: %v", err)
		}
		if got := get(t, st, "aquarium/devices/pump/status"); got != c.want {
			t.Fatalf("pump at %s = %v, want %s", c.at.Format("15:04"), got, c.want)
		}
	}
}

func TestSimulator_AlertFlagsRaiseAndClear(t *testing.T) {
	st := newMemStore(t, baseTree())
	set(t, st, "aquarium/sensors/turbidity", 40.0)
	probe := &probeStub{temp: 20}
	sim := newTestSimulator(st, SimulatorOptions{Probe: probe})

	if err := sim.Step(context.Background(), simNow); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got := get(t, st, "aquarium/alerts/temperature"); got != "Temperature below 24.0°C minimum" {
		t.Fatalf("temperature flag = %v", got)
	}
	if got := get(t, st, "aquarium/alerts/turbidity"); got != "Turbidity above 30 NTU" {
		t.Fatalf("turbidity flag = %v", got)
	}

	probe.temp = 25
	set(t, st, "aquarium/sensors/turbidity", 10.0)
	if err := sim.Step(context.Background(), simNow.Add(time.Second)); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got := get(t, st, "aquarium/alerts/temperature"); got != "" {
		t.Fatalf("temperature flag = %v, want cleared", got)
	}
	if got := get(t, st, "aquarium/alerts/turbidity"); got != "" {
		t.Fatalf("turbidity flag = %v, want cleared", got)
	}
}

func TestSimulator_RunStopsOnCancel(t *testing.T) {
	st := newMemStore(t, baseTree())
	sim := newTestSimulator(st, SimulatorOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sim.Run(ctx, 5*time.Millisecond)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if v, _, _ := st.Get("aquarium/sensors/timestamp"); v == float64(simNow.Add(-time.Second).Unix()) {
		t.Fatal("expected at least one tick to publish sensors")
	}
}

func TestWithinDaily(t *testing.T) {
	at := func(h, m int) time.Time { return time.Date(2025, 1, 1, h, m, 0, 0, time.UTC) }
	cases := []struct {
		name       string
		t          time.Time
		start, end string
		want       bool
	}{
		{"inside day window", at(12, 0), "06:00", "20:00", true},
		{"start inclusive", at(6, 0), "06:00", "20:00", true},
		{"end exclusive", at(20, 0), "06:00", "20:00", false},
		{"wraps past midnight", at(1, 0), "22:00", "06:00", true},
		{"outside wrapped window", at(12, 0), "22:00", "06:00", false},
		{"empty window", at(12, 0), "08:00", "08:00", false},
		{"invalid time", at(12, 0), "8am", "20:00", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := withinDaily(c.t, c.start, c.end); got != c.want {
				t.Fatalf("withinDaily = %v, want %v", got, c.want)
			}
		})
	}
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

func TestSimulator_OperatorWriteBeforeTickIsRespected(t *testing.T) {
	mem := newMemStore(t, baseTree())
	set(t, mem, "aquarium/devices/lights/mode", "auto")
	set(t, mem, "aquarium/devices/lights/status", "ON")

	// at night the schedule wants the lights OFF, but the operator takes
	// manual control first
	st := interleavedStore{memStore: mem, before: func() {
		err := mem.Merge(context.Background(), "aquarium/devices/lights", map[string]any{"mode": "manual", "status": "ON"})
		if err != nil {
			t.Errorf("operator merge: %v", err)
		}
	}}
	sim := newTestSimulator(st, SimulatorOptions{})

	if err := sim.Step(context.Background(), simNow.Add(10*time.Hour)); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got := get(t, mem, "aquarium/devices/lights/status"); got != "ON" {
		t.Fatalf("lights = %v, want the operator's ON", got)
	}
	if got := get(t, mem, "aquarium/devices/lights/mode"); got != "manual" {
		t.Fatalf("mode = %v, want manual", got)
	}
}
