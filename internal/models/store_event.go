package models

import "time"

// Event types appended to the daemon's event log.
const (
	EventCommand  = "COMMAND"
	EventAlert    = "ALERT"
	EventDevice   = "DEVICE"
	EventSettings = "SETTINGS"
	EventSystem   = "SYSTEM"
)

// StoreEvent is a single log entry describing a change applied to the store.
type StoreEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`
	Path        string    `json:"path"`
	Description string    `json:"description"`
	Metadata    any       `json:"metadata,omitempty"`
}
