package camera

// State is the control state of the virtual camera rig. The camera orbits a
// fixed subject at the origin: Distance and the two orbit angles place the
// camera body, Pan/Tilt only perturb the gaze direction and never move the
// camera itself.
type State struct {
	Distance float64 `json:"distance"` // meters from orbit centre to camera
	OrbitH   float64 `json:"orbitH"`   // degrees around the vertical axis, 0 = head-on
	OrbitV   float64 `json:"orbitV"`   // degrees of elevation, 0 = eye level
	Pan      float64 `json:"pan"`      // degrees of gaze yaw applied after the orbit
	Tilt     float64 `json:"tilt"`     // degrees of gaze pitch applied after the orbit
}

// Rig-boundary bounds. Clamping happens at the controller boundary so the
// geometry engine never sees a zero radius or an exact ±90° elevation
// (gimbal degeneracy).
const (
	MinDistance = 0.01
	MaxOrbitV   = 89.9
)

// Update is a partial change to a State. Nil fields are left untouched;
// set fields win wholesale (last write wins per field).
type Update struct {
	Distance *float64 `json:"distance,omitempty"`
	OrbitH   *float64 `json:"orbitH,omitempty"`
	OrbitV   *float64 `json:"orbitV,omitempty"`
	Pan      *float64 `json:"pan,omitempty"`
	Tilt     *float64 `json:"tilt,omitempty"`
}

// Apply returns a copy of s with the non-nil fields of u applied and bounds
// enforced.
func (s State) Apply(u Update) State {
	if u.Distance != nil {
		s.Distance = *u.Distance
	}
	if u.OrbitH != nil {
		s.OrbitH = *u.OrbitH
	}
	if u.OrbitV != nil {
		s.OrbitV = *u.OrbitV
	}
	if u.Pan != nil {
		s.Pan = *u.Pan
	}
	if u.Tilt != nil {
		s.Tilt = *u.Tilt
	}
	return s.Clamped()
}

// Clamped returns a copy of s with Distance and OrbitV forced into bounds.
func (s State) Clamped() State {
	if s.Distance < MinDistance {
		s.Distance = MinDistance
	}
	if s.OrbitV > MaxOrbitV {
		s.OrbitV = MaxOrbitV
	}
	if s.OrbitV < -MaxOrbitV {
		s.OrbitV = -MaxOrbitV
	}
	return s
}

// Snapshot is a read-only view of the rig state merged with the descriptive
// tags produced by the initial analysis. Snapshots are plain values; handing
// one out can never expose the rig's internal state to mutation.
type Snapshot struct {
	State
	ShotType string `json:"shotType"`
	Angle    string `json:"angle"`
}

// Plane describes the image plane the uploaded photo occupies in the scene:
// its aspect ratio (width/height) and extents in scene units. Supplied once
// per loaded image.
type Plane struct {
	AspectRatio float64 `json:"aspectRatio"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
}

// DefaultPlane is the image plane used before an image has been measured.
func DefaultPlane() Plane {
	return Plane{AspectRatio: 1.5, Width: 3, Height: 2}
}
