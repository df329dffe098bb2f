package models

// Schedules drive the lights and pump while they run in auto mode.
type Schedules struct {
	LightStart      string `json:"light_start"` // HH:MM
	LightEnd        string `json:"light_end"`   // HH:MM
	PumpDurationMin int    `json:"pump_duration_min"`
	PumpIntervalMin int    `json:"pump_interval_min"`
}

// Thresholds are the alert limits the device evaluates.
type Thresholds struct {
	TempMinC        float64 `json:"temp_min_c"`
	TempMaxC        float64 `json:"temp_max_c"`
	TurbidityMaxNTU float64 `json:"turbidity_max_ntu"`
}

type Settings struct {
	Schedules  Schedules  `json:"schedules"`
	Thresholds Thresholds `json:"thresholds"`
}

// DefaultSettings mirrors the factory configuration of the controller.
func DefaultSettings() Settings {
	return Settings{
		Schedules: Schedules{
			LightStart:      "06:00",
			LightEnd:        "20:00",
			PumpDurationMin: 10,
			PumpIntervalMin: 60,
		},
		Thresholds: Thresholds{
			TempMinC:        24,
			TempMaxC:        28,
			TurbidityMaxNTU: 30,
		},
	}
}
