package store

import "encoding/json"

// Websocket realtime protocol shared by the daemon handler and WSClient.
const (
	OpWatch   = "watch"
	OpUnwatch = "unwatch"
	OpWrite   = "write"
	OpMerge   = "merge"

	FrameSnapshot = "snapshot"
	FrameAck      = "ack"
	FrameError    = "error"
)

// ClientFrame is sent by clients. For watch the ID doubles as the subscription id;
// for unwatch ID names the subscription to drop.
type ClientFrame struct {
	ID    string          `json:"id"`
	Op    string          `json:"op"`
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value,omitempty"`
}

// ServerFrame is sent by the daemon.
type ServerFrame struct {
	Type   string `json:"type"`
	ID     string `json:"id,omitempty"`
	Sub    string `json:"sub,omitempty"`
	Path   string `json:"path,omitempty"`
	Exists bool   `json:"exists,omitempty"`
	Value  any    `json:"value,omitempty"`
	Error  string `json:"error,omitempty"`
}
