package models

// SensorSnapshot is the normalized sensors subtree. Nil fields were absent
// or malformed in the raw snapshot.
type SensorSnapshot struct {
	TemperatureC *float64 `json:"temperature_c,omitempty"`
	TurbidityNTU *float64 `json:"turbidity_ntu,omitempty"`
	ObservedAt   *int64   `json:"observed_at,omitempty"` // epoch seconds
}

// TempStatus classifies a water temperature reading.
type TempStatus string

const (
	TempUnknown TempStatus = "UNKNOWN"
	TempCold    TempStatus = "COLD"
	TempOptimal TempStatus = "OPTIMAL"
	TempHot     TempStatus = "HOT"
)
