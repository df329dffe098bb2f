package models

// AlertKind is the severity class of an alert.
type AlertKind string

const (
	AlertError   AlertKind = "error"
	AlertWarning AlertKind = "warning"
	AlertSuccess AlertKind = "success"
	AlertInfo    AlertKind = "info"
)

// AlertKinds lists every kind in severity order.
var AlertKinds = []AlertKind{AlertError, AlertWarning, AlertSuccess, AlertInfo}

// ParseAlertKind maps a raw kind string onto the closed set; unknown values are info.
func ParseAlertKind(s string) AlertKind {
	for _, k := range AlertKinds {
		if string(k) == s {
			return k
		}
	}
	return AlertInfo
}

// AlertSource tells how an alert is stored remotely, which decides how it is dismissed.
type AlertSource string

const (
	// AlertFromFlag is a string field under alerts/, cleared by writing "".
	AlertFromFlag AlertSource = "flag"
	// AlertFromRecord is an object under alerts/ carrying its own active bit.
	AlertFromRecord AlertSource = "record"
)

type AlertRecord struct {
	ID       string      `json:"id"`
	Kind     AlertKind   `json:"kind"`
	Title    string      `json:"title"`
	Message  string      `json:"message"`
	RaisedAt int64       `json:"raised_at"` // epoch seconds
	Active   bool        `json:"active"`
	Source   AlertSource `json:"source"`
}
