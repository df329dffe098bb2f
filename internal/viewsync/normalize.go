package viewsync

import (
	"encoding/json"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"smart_aquarium/internal/models"
)

// Section is a top-level subtree under the aquarium root.
type Section string

const (
	SectionSensors  Section = "sensors"
	SectionDevices  Section = "devices"
	SectionAlerts   Section = "alerts"
	SectionSettings Section = "settings"
	SectionCommands Section = "commands"
)

var (
	hexColor  = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
	clockTime = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
)

// RawAlerts is the alerts subtree split by storage variant.
// Flags keeps empty strings so a cleared flag can be told apart from a
// missing one.
type RawAlerts struct {
	Flags   map[string]string
	Records []models.AlertRecord
}

func (r RawAlerts) clone() RawAlerts {
	out := RawAlerts{Flags: make(map[string]string, len(r.Flags))}
	for k, v := range r.Flags {
		out.Flags[k] = v
	}
	out.Records = append([]models.AlertRecord(nil), r.Records...)
	return out
}

// NormalizeSensors maps the sensors subtree. Missing or malformed readings
// stay nil.
func NormalizeSensors(raw any) models.SensorSnapshot {
	m := asMap(raw)
	var s models.SensorSnapshot
	if f, ok := number(m["temperature"]); ok {
		s.TemperatureC = &f
	}
	if f, ok := number(m["turbidity"]); ok {
		s.TurbidityNTU = &f
	}
	if f, ok := number(m["timestamp"]); ok {
		ts := epochSeconds(f)
		s.ObservedAt = &ts
	}
	return s
}

// IsStale reports whether next was observed before prev. Snapshots without
// a timestamp are never stale.
func IsStale(prev, next models.SensorSnapshot) bool {
	if prev.ObservedAt == nil || next.ObservedAt == nil {
		return false
	}
	return *next.ObservedAt < *prev.ObservedAt
}

// deviceNormalizers fills one device record from its raw subtree.
var deviceNormalizers = map[models.DeviceKind]func(raw map[string]any, d *models.Devices){
	models.DeviceFeeder: func(raw map[string]any, d *models.Devices) {
		d.Feeder.Mode = parseMode(raw["mode"])
		d.Feeder.IntervalHours = models.DefaultFeedIntervalHours
		if f, ok := number(raw["interval"]); ok && f >= 1 {
			d.Feeder.IntervalHours = int(math.Round(f))
		}
		if f, ok := number(raw["lastFed"]); ok && f > 0 {
			ts := epochSeconds(f)
			d.Feeder.LastFedAt = &ts
		}
	},
	models.DeviceLights: func(raw map[string]any, d *models.Devices) {
		d.Lights.Mode = parseMode(raw["mode"])
		d.Lights.Status = parsePower(raw["status"])
		d.Lights.Color = models.DefaultLightColor
		if c, ok := raw["color"].(string); ok && hexColor.MatchString(c) {
			d.Lights.Color = strings.ToUpper(c)
		}
		d.Lights.BrightnessPercent = models.DefaultBrightnessPercent
		if f, ok := number(raw["brightness"]); ok {
			d.Lights.BrightnessPercent = int(math.Round(math.Max(0, math.Min(100, f))))
		}
	},
	models.DevicePump: func(raw map[string]any, d *models.Devices) {
		d.Pump.Mode = parseMode(raw["mode"])
		d.Pump.Status = parsePower(raw["status"])
	},
}

var deviceKinds = []models.DeviceKind{models.DeviceFeeder, models.DeviceLights, models.DevicePump}

// NormalizeDevices maps the devices subtree, filling defaults for every
// absent device or field.
func NormalizeDevices(raw any) models.Devices {
	m := asMap(raw)
	var d models.Devices
	for _, kind := range deviceKinds {
		deviceNormalizers[kind](asMap(m[string(kind)]), &d)
	}
	return d
}

// NormalizeSettings maps the settings subtree over the factory defaults.
func NormalizeSettings(raw any) models.Settings {
	m := asMap(raw)
	s := models.DefaultSettings()

	sched := asMap(m["schedules"])
	if v, ok := sched["lightStart"].(string); ok && clockTime.MatchString(v) {
		s.Schedules.LightStart = v
	}
	if v, ok := sched["lightEnd"].(string); ok && clockTime.MatchString(v) {
		s.Schedules.LightEnd = v
	}
	if f, ok := number(sched["pumpDuration"]); ok && f > 0 {
		s.Schedules.PumpDurationMin = int(math.Round(f))
	}
	if f, ok := number(sched["pumpInterval"]); ok && f > 0 {
		s.Schedules.PumpIntervalMin = int(math.Round(f))
	}

	th := asMap(m["thresholds"])
	if f, ok := number(th["tempMin"]); ok {
		s.Thresholds.TempMinC = f
	}
	if f, ok := number(th["tempMax"]); ok {
		s.Thresholds.TempMaxC = f
	}
	if f, ok := number(th["turbidityMax"]); ok {
		s.Thresholds.TurbidityMaxNTU = f
	}
	return s
}

// NormalizeAlerts splits the alerts subtree into string flags and structured
// records. Entries of any other shape are skipped.
func NormalizeAlerts(raw any) RawAlerts {
	m := asMap(raw)
	out := RawAlerts{Flags: make(map[string]string)}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			out.Flags[k] = strings.TrimSpace(v)
		case map[string]any:
			rec := models.AlertRecord{
				ID:      k,
				Kind:    models.ParseAlertKind(strings.ToLower(str(v["type"]))),
				Title:   str(v["title"]),
				Message: str(v["message"]),
				Active:  true,
				Source:  models.AlertFromRecord,
			}
			if f, ok := number(v["timestamp"]); ok {
				rec.RaisedAt = epochSeconds(f)
			}
			if b, ok := v["active"].(bool); ok {
				rec.Active = b
			}
			out.Records = append(out.Records, rec)
		}
	}
	return out
}

// Malformed reports whether an existing snapshot value cannot be a subtree.
func Malformed(raw any, exists bool) bool {
	if !exists {
		return false
	}
	_, ok := raw.(map[string]any)
	return !ok
}

func asMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

// number accepts JSON numbers and numeric strings. Anything else, including
// NaN and infinities, is absent.
func number(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		var err error
		if f, err = t.Float64(); err != nil {
			return 0, false
		}
	case string:
		var err error
		if f, err = strconv.ParseFloat(strings.TrimSpace(t), 64); err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// epochSeconds accepts both seconds and milliseconds since the epoch.
func epochSeconds(f float64) int64 {
	if f > 1e11 {
		return int64(f / 1000)
	}
	return int64(f)
}

func parseMode(v any) models.Mode {
	if s, ok := v.(string); ok && strings.EqualFold(s, string(models.ModeManual)) {
		return models.ModeManual
	}
	return models.ModeAuto
}

func parsePower(v any) models.Power {
	switch t := v.(type) {
	case string:
		if strings.EqualFold(t, string(models.PowerOn)) {
			return models.PowerOn
		}
	case bool:
		if t {
			return models.PowerOn
		}
	}
	return models.PowerOff
}
