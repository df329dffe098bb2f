package viewsync

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"smart_aquarium/internal/models"
)

// Optimal water temperature band, inclusive on both ends.
const (
	OptimalMinC = 24.0
	OptimalMaxC = 28.0
)

// TimeSinceLastFed formats the time elapsed since the last feeding,
// e.g. "1h 30m ago" or "12m ago".
func TimeSinceLastFed(f models.FeederState, now time.Time) string {
	if f.LastFedAt == nil {
		return models.Placeholder
	}
	elapsed := now.Unix() - *f.LastFedAt
	if elapsed < 0 {
		elapsed = 0
	}
	h, m := elapsed/3600, elapsed%3600/60
	if h >= 1 {
		return fmt.Sprintf("%dh %dm ago", h, m)
	}
	return fmt.Sprintf("%dm ago", m)
}

// TimeToNextFeeding formats the time left until the feeder is due,
// e.g. "In 4h 30m", or "Due now" once it has passed.
func TimeToNextFeeding(f models.FeederState, now time.Time) string {
	if f.LastFedAt == nil {
		return models.Placeholder
	}
	interval := f.IntervalHours
	if interval < 1 {
		interval = models.DefaultFeedIntervalHours
	}
	remaining := *f.LastFedAt + int64(interval)*3600 - now.Unix()
	if remaining <= 0 {
		return "Due now"
	}
	return fmt.Sprintf("In %dh %dm", remaining/3600, remaining%3600/60)
}

func ClassifyTemperature(t *float64) models.TempStatus {
	switch {
	case t == nil:
		return models.TempUnknown
	case *t < OptimalMinC:
		return models.TempCold
	case *t > OptimalMaxC:
		return models.TempHot
	default:
		return models.TempOptimal
	}
}

func FormatTemperature(t *float64) string {
	if t == nil {
		return models.Placeholder
	}
	return fmt.Sprintf("%.1f°C", *t)
}

// flagTraits describes how a string flag under alerts/ is presented.
type flagTraits struct {
	kind   models.AlertKind
	title  string
	buzzer bool
}

var flagTable = map[string]flagTraits{
	"temperature": {kind: models.AlertError, title: "Temperature Alert", buzzer: true},
	"turbidity":   {kind: models.AlertWarning, title: "Water Quality Alert"},
	"feeder":      {kind: models.AlertWarning, title: "Feeder Alert"},
	"pump":        {kind: models.AlertWarning, title: "Pump Alert"},
}

func traitsOf(field string) flagTraits {
	if t, ok := flagTable[field]; ok {
		return t
	}
	title := field
	if title != "" {
		title = strings.ToUpper(title[:1]) + title[1:]
	}
	return flagTraits{kind: models.AlertError, title: title + " Alert"}
}

func flagRecord(field, text string, at int64) models.AlertRecord {
	t := traitsOf(field)
	return models.AlertRecord{
		ID:       field,
		Kind:     t.kind,
		Title:    t.title,
		Message:  text,
		RaisedAt: at,
		Active:   true,
		Source:   models.AlertFromFlag,
	}
}

// FlagHistory holds the flag alerts raised during one view session, keyed
// by field. It lets a cleared flag keep showing as an inactive record.
type FlagHistory map[string]models.AlertRecord

// RememberFlags returns the history after observing raw at now. Flags that
// disappeared from the store are forgotten.
func RememberFlags(h FlagHistory, raw RawAlerts, now time.Time) FlagHistory {
	out := make(FlagHistory, len(raw.Flags))
	for field, text := range raw.Flags {
		prev, seen := h[field]
		switch {
		case text == "" && seen:
			prev.Active = false
			out[field] = prev
		case text == "":
		case seen && prev.Active && prev.Message == text:
			out[field] = prev
		default:
			out[field] = flagRecord(field, text, now.Unix())
		}
	}
	return out
}

// MaterializeAlerts builds the alert list: one active record per non-empty
// flag, one inactive record per flag cleared this session, then every
// structured record. The result is sorted newest first.
func MaterializeAlerts(raw RawAlerts, h FlagHistory, now time.Time) []models.AlertRecord {
	out := make([]models.AlertRecord, 0, len(raw.Flags)+len(raw.Records))
	for field, text := range raw.Flags {
		rec, seen := h[field]
		switch {
		case text != "":
			if !seen || !rec.Active || rec.Message != text {
				rec = flagRecord(field, text, now.Unix())
			}
			out = append(out, rec)
		case seen:
			rec.Active = false
			out = append(out, rec)
		}
	}
	out = append(out, raw.Records...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RaisedAt != out[j].RaisedAt {
			return out[i].RaisedAt > out[j].RaisedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// CountActive counts active alerts per kind. Every kind has an entry.
func CountActive(alerts []models.AlertRecord) map[models.AlertKind]int {
	counts := make(map[models.AlertKind]int, len(models.AlertKinds))
	for _, k := range models.AlertKinds {
		counts[k] = 0
	}
	for _, a := range alerts {
		if a.Active {
			counts[a.Kind]++
		}
	}
	return counts
}

// Banner returns the alert the dashboard headlines: the newest active one.
func Banner(alerts []models.AlertRecord) *models.AlertRecord {
	for i := range alerts {
		if alerts[i].Active {
			a := alerts[i]
			return &a
		}
	}
	return nil
}

// BuzzerRaised reports whether a buzzer flag went from empty to non-empty.
func BuzzerRaised(prev, next RawAlerts) bool {
	for field, text := range next.Flags {
		if text != "" && traitsOf(field).buzzer && prev.Flags[field] == "" {
			return true
		}
	}
	return false
}

// BuzzerSounding reports whether any buzzer flag is set.
func BuzzerSounding(raw RawAlerts) bool {
	for field, text := range raw.Flags {
		if text != "" && traitsOf(field).buzzer {
			return true
		}
	}
	return false
}
