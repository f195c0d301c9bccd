package geometry

import "github.com/reframe/reframe/backend-go/internal/camera"

// Derived bundles everything the presentation layer needs to redraw after a
// state change: camera pose, viewport frame, frustum edges and the orbit
// path radius. It is a pure function of (State, Plane) and is recomputed
// from scratch on every mutation.
type Derived struct {
	Position    Vec3      `json:"position"`
	Orientation Quat      `json:"orientation"`
	Frame       Frame     `json:"frame"`
	Frustum     []Segment `json:"frustum,omitempty"`
	OrbitRadius float64   `json:"orbitRadius"`
}

// Compute evaluates the whole derived bundle for one rig state.
func Compute(s camera.State, plane camera.Plane) Derived {
	pos := Position(s)
	frame := ViewportFrame(s, plane)
	return Derived{
		Position:    pos,
		Orientation: Orientation(s),
		Frame:       frame,
		Frustum:     FrustumLines(pos, frame),
		OrbitRadius: OrbitRadius(s),
	}
}
