package geometry

import (
	"math"

	"github.com/reframe/reframe/backend-go/internal/camera"
)

// worldUp is the scene's up direction. The look basis is derived from it and
// the camera-to-subject direction.
var worldUp = Vec3{Y: 1}

// Position converts the rig's spherical controls into the camera's Cartesian
// position around the subject at the origin. Pan and tilt have no effect
// here: they turn the gaze, not the body.
func Position(s camera.State) Vec3 {
	theta := radians(s.OrbitH)
	phi := radians(s.OrbitV)
	return Vec3{
		X: s.Distance * math.Cos(phi) * math.Sin(theta),
		Y: s.Distance * math.Sin(phi),
		Z: s.Distance * math.Cos(phi) * math.Cos(theta),
	}
}

// Basis returns the camera's orthonormal look basis after pan and tilt.
// The camera first orients toward the origin; pan then rotates the gaze
// around the local up axis and tilt around the local right axis.
func Basis(s camera.State) (forward, right, up Vec3) {
	pos := Position(s)

	forward = pos.Scale(-1).Normalize() // look at the subject
	right = forward.Cross(worldUp)
	if right.Norm() < 1e-9 {
		// Gaze parallel to world up (orbitV at the poles); any horizontal
		// right axis works, pick +X like the orbit's reference direction.
		right = Vec3{X: 1}
	}
	right = right.Normalize()
	up = right.Cross(forward).Normalize()

	if s.Pan != 0 {
		a := radians(s.Pan)
		forward = rotateAround(forward, up, a).Normalize()
		right = rotateAround(right, up, a).Normalize()
	}
	if s.Tilt != 0 {
		a := radians(s.Tilt)
		forward = rotateAround(forward, right, a).Normalize()
		up = rotateAround(up, right, a).Normalize()
	}
	return forward, right, up
}

// Orientation returns the pan/tilt-adjusted basis as a quaternion.
func Orientation(s camera.State) Quat {
	forward, right, up := Basis(s)
	return quatFromBasis(right, up, forward)
}

// OrbitRadius is the radius of the orbit-path circle drawn around the
// subject. Cosmetic, but it must track the rig distance exactly.
func OrbitRadius(s camera.State) float64 {
	return s.Distance
}
