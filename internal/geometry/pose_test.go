package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reframe/reframe/backend-go/internal/camera"
)

const tol = 1e-6

func TestPositionOnSphere(t *testing.T) {
	// |Position| must equal Distance for every state with OrbitV strictly
	// inside (-90, 90) and positive distance.
	states := []camera.State{
		{Distance: 3},
		{Distance: 3, OrbitH: 90},
		{Distance: 3, OrbitH: -135, OrbitV: 45},
		{Distance: 0.5, OrbitH: 17, OrbitV: -89},
		{Distance: 1000, OrbitH: 359, OrbitV: 89.9},
		{Distance: 0.1, OrbitH: 720, OrbitV: -30, Pan: 50, Tilt: -20},
	}
	for _, s := range states {
		assert.InDelta(t, s.Distance, Position(s).Norm(), tol, "state %+v", s)
	}
}

func TestPositionReferencePoses(t *testing.T) {
	tests := []struct {
		name  string
		state camera.State
		want  Vec3
	}{
		{"head-on", camera.State{Distance: 3}, Vec3{0, 0, 3}},
		{"quarter orbit", camera.State{Distance: 3, OrbitH: 90}, Vec3{3, 0, 0}},
		{"behind", camera.State{Distance: 3, OrbitH: 180}, Vec3{0, 0, -3}},
		{"overhead-ish", camera.State{Distance: 2, OrbitV: 90}, Vec3{0, 2, 0}},
		{"45/45", camera.State{Distance: 2, OrbitH: 45, OrbitV: 45},
			Vec3{1, math.Sqrt2, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Position(tt.state)
			assert.InDelta(t, tt.want.X, got.X, tol)
			assert.InDelta(t, tt.want.Y, got.Y, tol)
			assert.InDelta(t, tt.want.Z, got.Z, tol)
		})
	}
}

func TestPanTiltDoNotMoveCamera(t *testing.T) {
	base := camera.State{Distance: 4, OrbitH: 30, OrbitV: 20}
	moved := base
	moved.Pan = 35
	moved.Tilt = -15
	assert.Equal(t, Position(base), Position(moved))
}

func TestBasisOrthonormal(t *testing.T) {
	states := []camera.State{
		{Distance: 3},
		{Distance: 3, OrbitH: 120, OrbitV: -40},
		{Distance: 3, OrbitH: 10, OrbitV: 5, Pan: 25, Tilt: 40},
		{Distance: 1, OrbitV: 89.9}, // near the pole, fallback right axis
	}
	for _, s := range states {
		forward, right, up := Basis(s)
		assert.InDelta(t, 1, forward.Norm(), tol)
		assert.InDelta(t, 1, right.Norm(), tol)
		assert.InDelta(t, 1, up.Norm(), tol)
		assert.InDelta(t, 0, forward.Dot(right), tol)
		assert.InDelta(t, 0, forward.Dot(up), tol)
		assert.InDelta(t, 0, right.Dot(up), tol)
	}
}

func TestBasisLooksAtOrigin(t *testing.T) {
	s := camera.State{Distance: 5, OrbitH: 60, OrbitV: 25}
	forward, _, _ := Basis(s)
	want := Position(s).Scale(-1).Normalize()
	assert.InDelta(t, want.X, forward.X, tol)
	assert.InDelta(t, want.Y, forward.Y, tol)
	assert.InDelta(t, want.Z, forward.Z, tol)
}

func TestPanRotatesGazeAroundUp(t *testing.T) {
	base := camera.State{Distance: 3}
	panned := base
	panned.Pan = 90

	fwd, _, _ := Basis(panned)
	// Head-on the camera sits at +Z looking down -Z; a 90° pan swings the
	// gaze onto the local right/left axis, still horizontal.
	assert.InDelta(t, 0, fwd.Y, tol)
	assert.InDelta(t, 0, fwd.Z, tol)
	assert.InDelta(t, 1, math.Abs(fwd.X), tol)
}

func TestOrientationIsUnitQuaternion(t *testing.T) {
	states := []camera.State{
		{Distance: 3},
		{Distance: 3, OrbitH: 90, OrbitV: 45, Pan: 10, Tilt: -30},
		{Distance: 2, OrbitH: 200, OrbitV: -60},
	}
	for _, s := range states {
		q := Orientation(s)
		n := math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
		assert.InDelta(t, 1, n, tol, "state %+v", s)
	}
}

func TestPositionContinuity(t *testing.T) {
	// Small control deltas must produce small position deltas.
	s := camera.State{Distance: 3, OrbitH: 33, OrbitV: 21}
	p0 := Position(s)
	s.OrbitH += 1e-4
	s.OrbitV -= 1e-4
	p1 := Position(s)
	require.Less(t, p1.Sub(p0).Norm(), 1e-4*3*math.Pi/180*3)
}

func TestOrbitRadiusTracksDistance(t *testing.T) {
	for _, d := range []float64{0.1, 1, 3, 42, 1000} {
		assert.Equal(t, d, OrbitRadius(camera.State{Distance: d}))
	}
}
