package websocket

import "github.com/stemsi/assessment-session/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionVisibility Action = "visibility"
	ActionPing       Action = "ping"
)

// RequestPayload is the single inbound message shape; fields depend on Action.
type RequestPayload struct {
	Action Action `json:"action"`
	// Hidden is set on visibility messages: true when the surface lost focus.
	Hidden bool `json:"hidden"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError     Event = "error"
	EventState     Event = "state"
	EventViolation Event = "violation"
	EventPong      Event = "pong"
)

// StateResponse announces a session state transition.
type StateResponse struct {
	Event   Event              `json:"event"`
	State   model.SessionState `json:"state"`
	Message string             `json:"message,omitempty"`
}

// ViolationResponse warns the candidate that a focus loss was recorded.
type ViolationResponse struct {
	Event       Event  `json:"event"`
	TabSwitches int    `json:"tab_switches"`
	Message     string `json:"message"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
