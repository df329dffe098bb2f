package viewsync

import (
	"fmt"
	"strings"
	"time"

	"smart_aquarium/internal/models"
	"smart_aquarium/internal/store"
)

// Intent is a user action. Each intent turns into exactly one store write.
type Intent interface {
	Name() string
	plan(state models.ViewState, now time.Time) (plan, error)
}

type writeOp int

const (
	opWrite writeOp = iota
	opMerge
)

// plan is the store write an intent resolves to, relative to the root.
type plan struct {
	op      writeOp
	path    string
	value   any
	partial map[string]any
	overlay []models.FieldValue
	oneShot string
}

func (p plan) payload() any {
	if p.op == opMerge {
		return p.partial
	}
	return p.value
}

// mergePlan merges fields under target. Each field must live below target.
func mergePlan(target string, fields ...models.FieldValue) plan {
	partial := make(map[string]any, len(fields))
	for _, f := range fields {
		partial[strings.TrimPrefix(f.Field, target+"/")] = rawValue(f.Value)
	}
	return plan{op: opMerge, path: target, partial: partial, overlay: fields}
}

func commandPlan(name string, now time.Time) plan {
	return plan{
		op:   opMerge,
		path: string(SectionCommands),
		partial: map[string]any{
			name:        true,
			"timestamp": now.UnixMilli(),
		},
		oneShot: name,
	}
}

// rawValue converts a normalized value back into its stored form.
func rawValue(v any) any {
	switch t := v.(type) {
	case models.Mode:
		return string(t)
	case models.Power:
		return string(t)
	default:
		return v
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidIntent, fmt.Sprintf(format, args...))
}

func devicePath(kind models.DeviceKind, leaf string) string {
	return store.Join(string(SectionDevices), string(kind), leaf)
}

func deviceTarget(kind models.DeviceKind) string {
	return store.Join(string(SectionDevices), string(kind))
}

func modePlan(kind models.DeviceKind, m models.Mode) (plan, error) {
	if !m.Valid() {
		return plan{}, invalid("unknown mode %q", m)
	}
	return mergePlan(deviceTarget(kind), models.FieldValue{Field: devicePath(kind, "mode"), Value: m}), nil
}

func powerPlan(kind models.DeviceKind, p models.Power) (plan, error) {
	if !p.Valid() {
		return plan{}, invalid("unknown power status %q", p)
	}
	return mergePlan(deviceTarget(kind), models.FieldValue{Field: devicePath(kind, "status"), Value: p}), nil
}

type SetFeederMode struct{ Mode models.Mode }

func (SetFeederMode) Name() string { return "setFeederMode" }
func (i SetFeederMode) plan(models.ViewState, time.Time) (plan, error) {
	return modePlan(models.DeviceFeeder, i.Mode)
}

// SetFeedInterval sets the automatic feeding interval, 1 to 24 hours.
type SetFeedInterval struct{ Hours int }

func (SetFeedInterval) Name() string { return "setFeedInterval" }
func (i SetFeedInterval) plan(models.ViewState, time.Time) (plan, error) {
	if i.Hours < 1 || i.Hours > 24 {
		return plan{}, invalid("feed interval %dh out of range 1..24", i.Hours)
	}
	return mergePlan(deviceTarget(models.DeviceFeeder),
		models.FieldValue{Field: devicePath(models.DeviceFeeder, "interval"), Value: i.Hours}), nil
}

// FeedNow triggers one feeding. The device resets the trigger itself.
type FeedNow struct{}

func (FeedNow) Name() string { return OneShotFeedNow }
func (FeedNow) plan(s models.ViewState, now time.Time) (plan, error) {
	if s.InProgress[OneShotFeedNow] {
		return plan{}, invalid("feeding already in progress")
	}
	return commandPlan(OneShotFeedNow, now), nil
}

type SetLightMode struct{ Mode models.Mode }

func (SetLightMode) Name() string { return "setLightMode" }
func (i SetLightMode) plan(models.ViewState, time.Time) (plan, error) {
	return modePlan(models.DeviceLights, i.Mode)
}

type SetLightPower struct{ Status models.Power }

func (SetLightPower) Name() string { return "setLightPower" }
func (i SetLightPower) plan(models.ViewState, time.Time) (plan, error) {
	return powerPlan(models.DeviceLights, i.Status)
}

// ToggleLight flips the light status as currently displayed.
type ToggleLight struct{}

func (ToggleLight) Name() string { return "toggleLight" }
func (ToggleLight) plan(s models.ViewState, _ time.Time) (plan, error) {
	return powerPlan(models.DeviceLights, s.Devices.Lights.Status.Toggle())
}

// SetLightColor takes a #RRGGBB color.
type SetLightColor struct{ Color string }

func (SetLightColor) Name() string { return "setLightColor" }
func (i SetLightColor) plan(models.ViewState, time.Time) (plan, error) {
	if !hexColor.MatchString(i.Color) {
		return plan{}, invalid("color %q is not #RRGGBB", i.Color)
	}
	return mergePlan(deviceTarget(models.DeviceLights),
		models.FieldValue{Field: devicePath(models.DeviceLights, "color"), Value: strings.ToUpper(i.Color)}), nil
}

type SetLightBrightness struct{ Percent int }

func (SetLightBrightness) Name() string { return "setLightBrightness" }
func (i SetLightBrightness) plan(models.ViewState, time.Time) (plan, error) {
	if i.Percent < 0 || i.Percent > 100 {
		return plan{}, invalid("brightness %d%% out of range 0..100", i.Percent)
	}
	return mergePlan(deviceTarget(models.DeviceLights),
		models.FieldValue{Field: devicePath(models.DeviceLights, "brightness"), Value: i.Percent}), nil
}

type SetPumpMode struct{ Mode models.Mode }

func (SetPumpMode) Name() string { return "setPumpMode" }
func (i SetPumpMode) plan(models.ViewState, time.Time) (plan, error) {
	return modePlan(models.DevicePump, i.Mode)
}

type SetPumpPower struct{ Status models.Power }

func (SetPumpPower) Name() string { return "setPumpPower" }
func (i SetPumpPower) plan(models.ViewState, time.Time) (plan, error) {
	return powerPlan(models.DevicePump, i.Status)
}

type TogglePump struct{}

func (TogglePump) Name() string { return "togglePump" }
func (TogglePump) plan(s models.ViewState, _ time.Time) (plan, error) {
	return powerPlan(models.DevicePump, s.Devices.Pump.Status.Toggle())
}

// StopBuzzer silences the device buzzer.
type StopBuzzer struct{}

func (StopBuzzer) Name() string { return OneShotStopBuzzer }
func (StopBuzzer) plan(s models.ViewState, now time.Time) (plan, error) {
	if s.InProgress[OneShotStopBuzzer] {
		return plan{}, invalid("buzzer stop already in progress")
	}
	return commandPlan(OneShotStopBuzzer, now), nil
}

// DismissAlert deactivates one alert. A flag is cleared by writing "" and a
// record gets active=false; neither is deleted.
type DismissAlert struct{ ID string }

func (DismissAlert) Name() string { return "dismissAlert" }
func (i DismissAlert) plan(s models.ViewState, _ time.Time) (plan, error) {
	for _, a := range s.Alerts {
		if a.ID != i.ID {
			continue
		}
		if !a.Active {
			return plan{}, invalid("alert %q is not active", i.ID)
		}
		if a.Source == models.AlertFromFlag {
			path := store.Join(string(SectionAlerts), a.ID)
			return plan{
				op:      opWrite,
				path:    path,
				value:   "",
				overlay: []models.FieldValue{{Field: path, Value: ""}},
			}, nil
		}
		return mergePlan(store.Join(string(SectionAlerts), a.ID),
			models.FieldValue{Field: store.Join(string(SectionAlerts), a.ID, "active"), Value: false}), nil
	}
	return plan{}, fmt.Errorf("%w: %q", ErrUnknownAlert, i.ID)
}

// ClearAllAlerts deactivates every active alert with a single merge at the
// alerts root.
type ClearAllAlerts struct{}

func (ClearAllAlerts) Name() string { return "clearAllAlerts" }
func (ClearAllAlerts) plan(s models.ViewState, _ time.Time) (plan, error) {
	var fields []models.FieldValue
	for _, a := range s.Alerts {
		if !a.Active {
			continue
		}
		if a.Source == models.AlertFromFlag {
			fields = append(fields, models.FieldValue{Field: store.Join(string(SectionAlerts), a.ID), Value: ""})
		} else {
			fields = append(fields, models.FieldValue{Field: store.Join(string(SectionAlerts), a.ID, "active"), Value: false})
		}
	}
	if len(fields) == 0 {
		return plan{}, invalid("no active alerts")
	}
	return mergePlan(string(SectionAlerts), fields...), nil
}

type SaveSchedules struct{ Schedules models.Schedules }

func (SaveSchedules) Name() string { return "saveSchedules" }
func (i SaveSchedules) plan(models.ViewState, time.Time) (plan, error) {
	s := i.Schedules
	if !clockTime.MatchString(s.LightStart) || !clockTime.MatchString(s.LightEnd) {
		return plan{}, invalid("light schedule %q-%q is not HH:MM", s.LightStart, s.LightEnd)
	}
	if s.PumpDurationMin < 1 || s.PumpIntervalMin < 1 {
		return plan{}, invalid("pump duration and interval must be positive")
	}
	if s.PumpDurationMin > s.PumpIntervalMin {
		return plan{}, invalid("pump duration %dm exceeds interval %dm", s.PumpDurationMin, s.PumpIntervalMin)
	}
	const target = "settings/schedules"
	return mergePlan(target,
		models.FieldValue{Field: target + "/lightStart", Value: s.LightStart},
		models.FieldValue{Field: target + "/lightEnd", Value: s.LightEnd},
		models.FieldValue{Field: target + "/pumpDuration", Value: s.PumpDurationMin},
		models.FieldValue{Field: target + "/pumpInterval", Value: s.PumpIntervalMin},
	), nil
}

type SaveThresholds struct{ Thresholds models.Thresholds }

func (SaveThresholds) Name() string { return "saveThresholds" }
func (i SaveThresholds) plan(models.ViewState, time.Time) (plan, error) {
	t := i.Thresholds
	if t.TempMinC >= t.TempMaxC {
		return plan{}, invalid("minimum temperature %.1f must be below maximum %.1f", t.TempMinC, t.TempMaxC)
	}
	if t.TurbidityMaxNTU <= 0 {
		return plan{}, invalid("turbidity limit must be positive")
	}
	const target = "settings/thresholds"
	return mergePlan(target,
		models.FieldValue{Field: target + "/tempMin", Value: t.TempMinC},
		models.FieldValue{Field: target + "/tempMax", Value: t.TempMaxC},
		models.FieldValue{Field: target + "/turbidityMax", Value: t.TurbidityMaxNTU},
	), nil
}
