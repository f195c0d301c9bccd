package rig

import (
	"github.com/reframe/reframe/backend-go/internal/analysis"
	"github.com/reframe/reframe/backend-go/internal/camera"
	"github.com/reframe/reframe/backend-go/internal/geometry"
)

// Rig owns the live camera state and the frozen original captured at
// analysis time, and keeps the derived geometry in step with them. It is
// deliberately single-threaded: callers (the hub room, the wasm shim)
// serialize access.
type Rig struct {
	live     camera.State
	original camera.Snapshot
	plane    camera.Plane
	derived  geometry.Derived
}

// New returns a rig seeded with the default analysis record.
func New() *Rig {
	r := &Rig{plane: camera.DefaultPlane()}
	r.Initialize(analysis.DefaultResult())
	return r
}

// Initialize maps an analysis result onto the rig: distance/yaw/pitch become
// the orbit controls, pan and tilt start at zero, and a deep copy is frozen
// as the original state together with the descriptive tags. Missing fields
// arrive already substituted via Result.Normalized.
func (r *Rig) Initialize(res analysis.Result) {
	res = res.Normalized()
	state := camera.State{
		Distance: res.Distance,
		OrbitH:   res.Yaw,
		OrbitV:   res.Pitch,
	}.Clamped()

	r.live = state
	r.original = camera.Snapshot{
		State:    state,
		ShotType: res.ShotType,
		Angle:    res.Angle,
	}
	r.recompute()
}

// Restore seeds the rig from previously persisted snapshots, keeping the
// live state a session had when it was last touched.
func (r *Rig) Restore(original camera.Snapshot, live camera.State, plane camera.Plane) {
	r.original = original
	r.original.State = original.State.Clamped()
	r.live = live.Clamped()
	if plane.AspectRatio > 0 && plane.Width > 0 && plane.Height > 0 {
		r.plane = plane
	}
	r.recompute()
}

// Update merges a partial update into the live state, last write wins per
// field, and recomputes the derived geometry. The mutation is atomic: the
// new state and its geometry become visible together.
func (r *Rig) Update(u camera.Update) {
	r.live = r.live.Apply(u)
	r.recompute()
}

// Reset overwrites the live state with a copy of the original.
func (r *Rig) Reset() {
	r.live = r.original.State
	r.recompute()
}

// SetAspectRatio updates the image plane's aspect ratio and recomputes the
// derived geometry only; the camera state is untouched.
func (r *Rig) SetAspectRatio(ratio float64) {
	if ratio <= 0 {
		return
	}
	r.plane.AspectRatio = ratio
	r.recompute()
}

// SetPlaneSize updates the image plane extents in scene units.
func (r *Rig) SetPlaneSize(width, height float64) {
	if width <= 0 || height <= 0 {
		return
	}
	r.plane.Width = width
	r.plane.Height = height
	r.recompute()
}

// State returns a snapshot of the live state merged with the analysis tags.
func (r *Rig) State() camera.Snapshot {
	return camera.Snapshot{
		State:    r.live,
		ShotType: r.original.ShotType,
		Angle:    r.original.Angle,
	}
}

// OriginalState returns the frozen state captured at initialize time.
func (r *Rig) OriginalState() camera.Snapshot {
	return r.original
}

// Plane returns the current image plane descriptor.
func (r *Rig) Plane() camera.Plane {
	return r.plane
}

// Derived returns the geometry computed for the current state.
func (r *Rig) Derived() geometry.Derived {
	return r.derived
}

func (r *Rig) recompute() {
	r.derived = geometry.Compute(r.live, r.plane)
}
