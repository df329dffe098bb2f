package viewsync

import (
	"encoding/json"
	"fmt"
)

// IntentRequest is the wire form of an intent: its name plus the intent's
// fields, e.g. {"intent":"setLightBrightness","args":{"percent":40}}.
type IntentRequest struct {
	Intent string          `json:"intent"`
	Args   json.RawMessage `json:"args,omitempty"`
}

var intentDecoders = map[string]func(json.RawMessage) (Intent, error){
	SetFeederMode{}.Name():      decodeInto[SetFeederMode],
	SetFeedInterval{}.Name():    decodeInto[SetFeedInterval],
	FeedNow{}.Name():            decodeInto[FeedNow],
	SetLightMode{}.Name():       decodeInto[SetLightMode],
	SetLightPower{}.Name():      decodeInto[SetLightPower],
	ToggleLight{}.Name():        decodeInto[ToggleLight],
	SetLightColor{}.Name():      decodeInto[SetLightColor],
	SetLightBrightness{}.Name(): decodeInto[SetLightBrightness],
	SetPumpMode{}.Name():        decodeInto[SetPumpMode],
	SetPumpPower{}.Name():       decodeInto[SetPumpPower],
	TogglePump{}.Name():         decodeInto[TogglePump],
	StopBuzzer{}.Name():         decodeInto[StopBuzzer],
	DismissAlert{}.Name():       decodeInto[DismissAlert],
	ClearAllAlerts{}.Name():     decodeInto[ClearAllAlerts],
	SaveSchedules{}.Name():      decodeInto[SaveSchedules],
	SaveThresholds{}.Name():     decodeInto[SaveThresholds],
}

func decodeInto[T Intent](args json.RawMessage) (Intent, error) {
	var v T
	if len(args) > 0 {
		if err := json.Unmarshal(args, &v); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidIntent, v.Name(), err)
		}
	}
	return v, nil
}

// DecodeIntent parses one IntentRequest document. Field values are only
// decoded here; range checks happen on dispatch.
func DecodeIntent(b []byte) (Intent, error) {
	var req IntentRequest
	if err := json.Unmarshal(b, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIntent, err)
	}
	dec, ok := intentDecoders[req.Intent]
	if !ok {
		return nil, fmt.Errorf("%w: unknown intent %q", ErrInvalidIntent, req.Intent)
	}
	return dec(req.Args)
}
