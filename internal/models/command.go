package models

// CommandStatus is the lifecycle state of a PendingCommand.
// ISSUED -> IN_FLIGHT -> {CONFIRMED, FAILED}; CONFIRMED and FAILED end in RETIRED.
type CommandStatus string

const (
	CommandIssued    CommandStatus = "ISSUED"
	CommandInFlight  CommandStatus = "IN_FLIGHT"
	CommandConfirmed CommandStatus = "CONFIRMED"
	CommandFailed    CommandStatus = "FAILED"
	CommandRetired   CommandStatus = "RETIRED"
)

// FieldValue is one optimistic overlay entry. Field is a store path relative
// to the aquarium root, e.g. "devices/lights/status".
type FieldValue struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

// PendingCommand is a write issued by the client and not yet retired.
type PendingCommand struct {
	ID         string        `json:"id"`
	Intent     string        `json:"intent"`
	TargetPath string        `json:"target_path"`
	Payload    any           `json:"payload"`
	IssuedAt   int64         `json:"issued_at"` // epoch seconds
	Status     CommandStatus `json:"status"`
	Overlay    []FieldValue  `json:"overlay,omitempty"`
	// OneShot names the transient in-progress flag of trigger commands (feedNow, stopBuzzer).
	OneShot string `json:"one_shot,omitempty"`
}
