package models

// ViewName identifies one of the four dashboard screens.
type ViewName string

const (
	ViewDashboard ViewName = "dashboard"
	ViewControls  ViewName = "controls"
	ViewAlerts    ViewName = "alerts"
	ViewSettings  ViewName = "settings"
)

// Placeholder shown for values that cannot be computed yet.
const Placeholder = "--"

// ViewState is the read-only projection handed to the presentation layer.
type ViewState struct {
	View      ViewName `json:"view"`
	Connected bool     `json:"connected"`

	Sensors         SensorSnapshot `json:"sensors"`
	TemperatureText string         `json:"temperature_text"`
	TempStatus      TempStatus     `json:"temp_status"`

	Devices           Devices `json:"devices"`
	TimeSinceLastFed  string  `json:"time_since_last_fed"`
	TimeToNextFeeding string  `json:"time_to_next_feeding"`

	Alerts       []AlertRecord     `json:"alerts"`
	Banner       *AlertRecord      `json:"banner,omitempty"` // newest active alert
	ActiveCounts map[AlertKind]int `json:"active_counts"`
	BuzzerActive bool              `json:"buzzer_active"`

	Settings Settings `json:"settings"`

	InProgress map[string]bool `json:"in_progress,omitempty"`
	Pending    int             `json:"pending"`
	UpdatedAt  int64           `json:"updated_at"` // epoch seconds of the projection
}

// Notice is a one-shot user-visible message about a failed command.
type Notice struct {
	CommandID string `json:"command_id"`
	Intent    string `json:"intent"`
	Message   string `json:"message"`
	At        int64  `json:"at"`
}
