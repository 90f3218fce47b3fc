// Package api defines the wire format between the relay and its endpoints.
//
// Each message is a JSON-encoded "packet" of the following structure:
//
//	t - (required) one of the predefined unique packet types;
//	p - (optional) packet payload with arbitrary data.
//
// The packets differentiate by their predefined types with which it is possible
// to unwrap the payload into distinct request/response data structures.
//
// Example:
//
//	{"t":2,"p":{"sessionId":"AB12CD","secret":"9f0c7e6a..."}}
package api

import (
	"fmt"

	"github.com/goccy/go-json"
)

type PT uint8

type In struct {
	T       PT              `json:"t"`
	Payload json.RawMessage `json:"p,omitempty"` // should be json.RawMessage for 2-pass unmarshal
}

type Out struct {
	T       PT  `json:"t"`
	Payload any `json:"p,omitempty"`
}

// Packet codes:
//
//	1-9 - session lifecycle
//	1x  - game events
//	10x - signaling
const (
	CreateSession  PT = 1
	SessionCreated PT = 2
	JoinSession    PT = 3
	JoinResult     PT = 4
	MemberJoined   PT = 5
	MemberLeft     PT = 6
	SessionEnded   PT = 7

	BeginPointing  PT = 10
	PointerUpdate  PT = 11
	CancelPointing PT = 12
	CommitAction   PT = 13
	ActionOutcome  PT = 14
	SessionRestart PT = 15
	Targeting      PT = 16

	InitSignal   PT = 100
	WebrtcOffer  PT = 101
	WebrtcAnswer PT = 102
	WebrtcIce    PT = 103
	Ready        PT = 104
)

func (p PT) String() string {
	switch p {
	case CreateSession:
		return "CreateSession"
	case SessionCreated:
		return "SessionCreated"
	case JoinSession:
		return "JoinSession"
	case JoinResult:
		return "JoinResult"
	case MemberJoined:
		return "MemberJoined"
	case MemberLeft:
		return "MemberLeft"
	case SessionEnded:
		return "SessionEnded"
	case BeginPointing:
		return "BeginPointing"
	case PointerUpdate:
		return "PointerUpdate"
	case CancelPointing:
		return "CancelPointing"
	case CommitAction:
		return "CommitAction"
	case ActionOutcome:
		return "ActionOutcome"
	case SessionRestart:
		return "SessionRestart"
	case Targeting:
		return "Targeting"
	case InitSignal:
		return "InitSignal"
	case WebrtcOffer:
		return "WebrtcOffer"
	case WebrtcAnswer:
		return "WebrtcAnswer"
	case WebrtcIce:
		return "WebrtcIce"
	case Ready:
		return "Ready"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(p))
	}
}

var ErrMalformed = fmt.Errorf("malformed")

// Decode reads a packet envelope.
func Decode(data []byte) (In, error) {
	var in In
	if err := json.Unmarshal(data, &in); err != nil {
		return in, fmt.Errorf("%w packet: %v", ErrMalformed, err)
	}
	if in.T == 0 {
		return in, fmt.Errorf("%w packet: no type", ErrMalformed)
	}
	return in, nil
}

// Encode makes a packet out of its type and payload.
func Encode(t PT, payload any) ([]byte, error) { return json.Marshal(Out{T: t, Payload: payload}) }

// Unwrap decodes packet payload into T or returns nil.
func Unwrap[T any](data []byte) *T {
	out := new(T)
	if len(data) == 0 {
		return out
	}
	if err := json.Unmarshal(data, out); err != nil {
		return nil
	}
	return out
}
