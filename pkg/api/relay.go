package api

import "github.com/goccy/go-json"

type (
	SessionCreatedResponse struct {
		SessionId string `json:"sessionId"`
		Secret    string `json:"secret"`
	}
	JoinSessionRequest struct {
		SessionId string `json:"sessionId"`
		Secret    string `json:"secret"`
	}
	JoinResultResponse struct {
		SessionId string `json:"sessionId"`
		Success   bool   `json:"success"`
		Error     string `json:"error,omitempty"`
	}
	// Member tells the display about a controller coming or going.
	Member struct {
		ControllerId string `json:"controllerId"`
	}
)

// Controller events. ControllerId is always overwritten by the relay
// with the id of the sending connection, other fields go to the display
// untouched, including the ones not listed here.
type (
	BeginPointingEvent struct {
		ControllerId string `json:"controllerId"`
		Gyro         bool   `json:"gyro"`
	}
	// PointerUpdateEvent is a high-frequency aim sample.
	// X and Y are normalized to [0, 100], Seq lets the display skip stale samples.
	PointerUpdateEvent struct {
		ControllerId string  `json:"controllerId"`
		X            float64 `json:"x"`
		Y            float64 `json:"y"`
		Seq          uint32  `json:"seq,omitempty"`
	}
	CancelPointingEvent struct {
		ControllerId string `json:"controllerId"`
	}
	Point struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	CommitActionEvent struct {
		ControllerId string  `json:"controllerId"`
		Target       Point   `json:"target"`
		Magnitude    float64 `json:"magnitude"`
		Targeted     bool    `json:"targeted"`
	}
	// TargetingEvent points at a game object, its id is up to the game.
	TargetingEvent struct {
		ControllerId string          `json:"controllerId"`
		OrbId        json.RawMessage `json:"orbId,omitempty"`
	}
)

// ActionOutcomeEvent is sent by the display to the controller
// in ControllerId. The whole payload is delivered as is.
type ActionOutcomeEvent struct {
	ControllerId string  `json:"controllerId"`
	Success      bool    `json:"success"`
	ScoreDelta   float64 `json:"scoreDelta"`
}
