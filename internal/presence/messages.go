package presence

import (
	"encoding/json"
	"fmt"
)

// Wire message types. The set is closed: anything else is a decode error.
const (
	TypeRegister = "register"
	TypeMove     = "move"
	TypeMeditate = "meditate"

	TypeNearby   = "nearby"
	TypeJoined   = "joined"
	TypeMoved    = "moved"
	TypeLeft     = "left"
	TypeQiGained = "qi_gained"
	TypeError    = "error"
)

// Envelope wraps every message in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Inbound is the closed set of client-to-server messages.
type Inbound interface {
	isInbound()
}

type RegisterPayload struct {
	CharacterID string  `json:"character_id"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
}

type MovePayload struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	SpeedKmh float64 `json:"speed_kmh"`
}

type MeditatePayload struct {
	Active bool `json:"active"`
}

func (RegisterPayload) isInbound() {}
func (MovePayload) isInbound()     {}
func (MeditatePayload) isInbound() {}

type LeftPayload struct {
	ID string `json:"id"`
}

type QiGainedPayload struct {
	ID     string `json:"id"`
	Amount int    `json:"amount"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// DecodeInbound parses a client frame into its typed variant.
func DecodeInbound(raw []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}

	switch env.Type {
	case TypeRegister:
		var p RegisterPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case TypeMove:
		var p MovePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case TypeMeditate:
		var p MeditatePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", env.Type)
	}
}

// Encode wraps a payload in an envelope frame.
func Encode(msgType string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: msgType, Data: data})
}
