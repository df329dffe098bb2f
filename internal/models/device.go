package models

// Mode is the control mode shared by every device.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeManual Mode = "manual"
)

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool { return m == ModeAuto || m == ModeManual }

// Power is an actuator on/off status.
type Power string

const (
	PowerOn  Power = "ON"
	PowerOff Power = "OFF"
)

func (p Power) Valid() bool { return p == PowerOn || p == PowerOff }

// Toggle returns the opposite power status.
func (p Power) Toggle() Power {
	if p == PowerOn {
		return PowerOff
	}
	return PowerOn
}

// DeviceKind names a device subtree under devices/.
type DeviceKind string

const (
	DeviceFeeder DeviceKind = "feeder"
	DeviceLights DeviceKind = "lights"
	DevicePump   DeviceKind = "pump"
)

// Defaults applied when a device field is absent.
const (
	DefaultFeedIntervalHours = 6
	DefaultLightColor        = "#4A90E2"
	DefaultBrightnessPercent = 80
)

type FeederState struct {
	Mode          Mode   `json:"mode"`
	IntervalHours int    `json:"interval_hours"`
	LastFedAt     *int64 `json:"last_fed_at,omitempty"` // epoch seconds
}

type LightState struct {
	Mode              Mode   `json:"mode"`
	Status            Power  `json:"status"`
	Color             string `json:"color"` // #RRGGBB
	BrightnessPercent int    `json:"brightness_percent"`
}

type PumpState struct {
	Mode   Mode  `json:"mode"`
	Status Power `json:"status"`
}

// Devices groups the three device records of one aquarium.
type Devices struct {
	Feeder FeederState `json:"feeder"`
	Lights LightState  `json:"lights"`
	Pump   PumpState   `json:"pump"`
}
