package rig

import (
	"encoding/json"

	"github.com/reframe/reframe/backend-go/internal/camera"
	"github.com/reframe/reframe/backend-go/internal/geometry"
)

// Message is the websocket envelope. Client operations carry a typed payload;
// server messages carry the authoritative state.
type Message struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

const (
	// Client -> server operations.
	TypeUpdate = "rig.update"
	TypeReset  = "rig.reset"
	TypeAspect = "rig.aspect"
	TypePlane  = "rig.plane"

	// Server -> client messages.
	TypeWelcome = "rig.welcome"
	TypeState   = "rig.state"
	TypeError   = "error"
)

// AspectPayload is the body of a rig.aspect operation.
type AspectPayload struct {
	AspectRatio float64 `json:"aspectRatio"`
}

// PlanePayload is the body of a rig.plane operation.
type PlanePayload struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// StatePayload is the full authoritative rig state, sent on welcome and
// after every accepted operation. State and geometry always travel together
// so renderers never see one ahead of the other.
type StatePayload struct {
	State    camera.Snapshot  `json:"state"`
	Original camera.Snapshot  `json:"original"`
	Plane    camera.Plane     `json:"plane"`
	Geometry geometry.Derived `json:"geometry"`
}

// ErrorPayload is the body of an error message.
type ErrorPayload struct {
	Reason string `json:"reason"`
}
