package syncchannel

import "encoding/json"

// Frame types exchanged on the party websocket.
const (
	FrameWelcome = "welcome"
	FrameState   = "state"
	FrameError   = "error"
	FramePing    = "ping"
	FramePong    = "pong"
)

type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type Welcome struct {
	Role          string `json:"role"`
	ParticipantID string `json:"participantId"`
}

type ErrorMessage struct {
	Message string `json:"message"`
}
