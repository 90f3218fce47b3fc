package api

import (
	"math"

	"github.com/goccy/go-json"
)

// ControllerIdField is the only game event field the relay writes.
const ControllerIdField = "controllerId"

// Event is a game event payload as raw fields. The relay reads
// what it needs for routing and passes every value through as is.
type Event map[string]json.RawMessage

// UnwrapEvent reads a payload object. An empty or null payload
// is an empty event, anything but an object is an error.
func UnwrapEvent(data []byte) (Event, error) {
	var e Event
	if len(data) > 0 {
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
	}
	if e == nil {
		e = Event{}
	}
	return e, nil
}

// Str returns a string field, ok is false if there is no such field
// or it is not a string.
func (e Event) Str(key string) (v string, ok bool) {
	raw, found := e[key]
	if !found {
		return "", false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	return v, true
}

// Num returns a number field, null is not a number.
func (e Event) Num(key string) (v float64, ok bool) {
	raw, found := e[key]
	if !found || string(raw) == "null" {
		return 0, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return v, true
}

// SetController puts the sender in, replacing whatever was claimed.
func (e Event) SetController(id string) {
	raw, _ := json.Marshal(id)
	e[ControllerIdField] = raw
}

// InRange tells whether a point is inside the normalized [0, 100] plane.
func InRange(x, y float64) bool { return inRange(x) && inRange(y) }

func inRange(v float64) bool { return !math.IsNaN(v) && v >= 0 && v <= 100 }
