package viewsync

import (
	"strings"

	"smart_aquarium/internal/models"
)

// Base is the normalized store content last delivered to a view together
// with the session's flag history.
type Base struct {
	Sensors  models.SensorSnapshot
	Devices  models.Devices
	Settings models.Settings
	Alerts   RawAlerts
	Flags    FlagHistory
}

func (b Base) clone() Base {
	b.Alerts = b.Alerts.clone()
	return b
}

// field reads and writes one overlayable value of a Base. Values use the
// normalized Go types, so a snapshot value and an overlay value compare
// with ==.
type field struct {
	get func(b *Base) (any, bool)
	set func(b *Base, v any)
}

func typed[T comparable](ptr func(b *Base) *T) field {
	return field{
		get: func(b *Base) (any, bool) { return *ptr(b), true },
		set: func(b *Base, v any) {
			if t, ok := v.(T); ok {
				*ptr(b) = t
			}
		},
	}
}

var fieldTable = map[string]field{
	"devices/feeder/mode":       typed(func(b *Base) *models.Mode { return &b.Devices.Feeder.Mode }),
	"devices/feeder/interval":   typed(func(b *Base) *int { return &b.Devices.Feeder.IntervalHours }),
	"devices/lights/mode":       typed(func(b *Base) *models.Mode { return &b.Devices.Lights.Mode }),
	"devices/lights/status":     typed(func(b *Base) *models.Power { return &b.Devices.Lights.Status }),
	"devices/lights/color":      typed(func(b *Base) *string { return &b.Devices.Lights.Color }),
	"devices/lights/brightness": typed(func(b *Base) *int { return &b.Devices.Lights.BrightnessPercent }),
	"devices/pump/mode":         typed(func(b *Base) *models.Mode { return &b.Devices.Pump.Mode }),
	"devices/pump/status":       typed(func(b *Base) *models.Power { return &b.Devices.Pump.Status }),

	"settings/schedules/lightStart":    typed(func(b *Base) *string { return &b.Settings.Schedules.LightStart }),
	"settings/schedules/lightEnd":      typed(func(b *Base) *string { return &b.Settings.Schedules.LightEnd }),
	"settings/schedules/pumpDuration":  typed(func(b *Base) *int { return &b.Settings.Schedules.PumpDurationMin }),
	"settings/schedules/pumpInterval":  typed(func(b *Base) *int { return &b.Settings.Schedules.PumpIntervalMin }),
	"settings/thresholds/tempMin":      typed(func(b *Base) *float64 { return &b.Settings.Thresholds.TempMinC }),
	"settings/thresholds/tempMax":      typed(func(b *Base) *float64 { return &b.Settings.Thresholds.TempMaxC }),
	"settings/thresholds/turbidityMax": typed(func(b *Base) *float64 { return &b.Settings.Thresholds.TurbidityMaxNTU }),
}

// lookupField resolves a root-relative path. Besides the fixed table it
// understands alerts/<id> (flag text) and alerts/<id>/active (record bit).
func lookupField(path string) (field, bool) {
	if f, ok := fieldTable[path]; ok {
		return f, true
	}
	rest, ok := strings.CutPrefix(path, string(SectionAlerts)+"/")
	if !ok || rest == "" {
		return field{}, false
	}
	if id, ok := strings.CutSuffix(rest, "/active"); ok && id != "" && !strings.Contains(id, "/") {
		return recordActiveField(id), true
	}
	if strings.Contains(rest, "/") {
		return field{}, false
	}
	return flagField(rest), true
}

func flagField(id string) field {
	return field{
		get: func(b *Base) (any, bool) {
			v, ok := b.Alerts.Flags[id]
			return v, ok
		},
		set: func(b *Base, v any) {
			if s, ok := v.(string); ok {
				if b.Alerts.Flags == nil {
					b.Alerts.Flags = make(map[string]string)
				}
				b.Alerts.Flags[id] = s
			}
		},
	}
}

func recordActiveField(id string) field {
	return field{
		get: func(b *Base) (any, bool) {
			for _, r := range b.Alerts.Records {
				if r.ID == id {
					return r.Active, true
				}
			}
			return nil, false
		},
		set: func(b *Base, v any) {
			active, ok := v.(bool)
			if !ok {
				return
			}
			for i := range b.Alerts.Records {
				if b.Alerts.Records[i].ID == id {
					b.Alerts.Records[i].Active = active
				}
			}
		},
	}
}

// sectionOf returns the top-level subtree a root-relative path belongs to.
func sectionOf(path string) Section {
	head, _, _ := strings.Cut(path, "/")
	return Section(head)
}

func applyOverlay(b *Base, overlay []models.FieldValue) {
	for _, fv := range overlay {
		if f, ok := lookupField(fv.Field); ok {
			f.set(b, fv.Value)
		}
	}
}

// overlayMatches reports whether every overlay value is already present in b.
func overlayMatches(b *Base, overlay []models.FieldValue) bool {
	if len(overlay) == 0 {
		return false
	}
	for _, fv := range overlay {
		f, ok := lookupField(fv.Field)
		if !ok {
			return false
		}
		v, ok := f.get(b)
		if !ok || v != fv.Value {
			return false
		}
	}
	return true
}
