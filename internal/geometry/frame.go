package geometry

import (
	"math"

	"github.com/reframe/reframe/backend-go/internal/camera"
)

// Tunable projection heuristics. These define the product's look; they are
// not physical constraints.
const (
	// AssumedFOV is the vertical field of view, in degrees, used to size the
	// viewport frame when projecting onto the image plane.
	AssumedFOV = 50.0

	// FrameMargin oversizes the default frame slightly past the image extent.
	FrameMargin = 1.1

	// MinFrameScale and MaxFrameScale clamp the frame size as the camera
	// moves very near or very far.
	MinFrameScale = 0.5
	MaxFrameScale = 2.0

	// NearPlaneEpsilon is the camera-to-plane distance below which the
	// projection is considered degenerate and the frame not visible.
	NearPlaneEpsilon = 0.1

	// frameDepthOffset lifts the frame slightly off the image plane, on the
	// camera's side, so the two surfaces don't z-fight.
	frameDepthOffset = 0.01
)

// Frame is the rectangular footprint the camera currently sees on the image
// plane. Corners are in plane-local coordinates (the plane spans the XY axes
// at z=0) with a small Z offset toward the camera. Derived output only:
// recomputed from scratch on every state change, never stored.
type Frame struct {
	Corners [4]Vec3 `json:"corners"` // BL, BR, TR, TL winding
	CenterX float64 `json:"centerX"`
	CenterY float64 `json:"centerY"`
	Visible bool    `json:"visible"`
	// Flipped is set when the camera has crossed behind the image plane and
	// the frame's facing should be mirrored.
	Flipped bool `json:"flipped"`
}

// Segment is one frustum edge, from the camera to a frame corner.
type Segment struct {
	From Vec3 `json:"from"`
	To   Vec3 `json:"to"`
}

// ViewportFrame projects the camera's pan/tilt-adjusted forward ray onto the
// image plane and returns the frame it would see there. When the camera is
// nearly coplanar with the image plane the projection has no meaning, so an
// explicit not-visible frame comes back instead of NaN coordinates.
func ViewportFrame(s camera.State, plane camera.Plane) Frame {
	pos := Position(s)

	planeDist := math.Abs(pos.Z)
	if planeDist < NearPlaneEpsilon {
		return Frame{Visible: false}
	}

	// Frame size from the assumed FOV at the camera's depth, normalized so
	// the default pose roughly covers the image plus a margin, then clamped
	// so extreme distances can't degenerate the frame.
	baseHeight := 2 * math.Tan(radians(AssumedFOV)/2) * planeDist
	scale := plane.Height * FrameMargin / baseHeight
	if scale < MinFrameScale {
		scale = MinFrameScale
	}
	if scale > MaxFrameScale {
		scale = MaxFrameScale
	}
	height := baseHeight * scale
	width := baseHeight * plane.AspectRatio * scale

	// Centre: intersect the adjusted forward ray with the z=0 plane. A gaze
	// near-parallel to the plane makes the division blow up; treat any
	// non-finite result as zero offset.
	forward, _, _ := Basis(s)
	t := -pos.Z / forward.Z
	cx := pos.X + forward.X*t
	cy := pos.Y + forward.Y*t
	if math.IsNaN(cx) || math.IsInf(cx, 0) {
		cx = 0
	}
	if math.IsNaN(cy) || math.IsInf(cy, 0) {
		cy = 0
	}
	cx = clampAbs(cx, plane.Width)
	cy = clampAbs(cy, plane.Height)

	z := frameDepthOffset
	if pos.Z < 0 {
		z = -frameDepthOffset
	}

	hw, hh := width/2, height/2
	return Frame{
		Corners: [4]Vec3{
			{cx - hw, cy - hh, z},
			{cx + hw, cy - hh, z},
			{cx + hw, cy + hh, z},
			{cx - hw, cy + hh, z},
		},
		CenterX: cx,
		CenterY: cy,
		Visible: true,
		Flipped: pos.Z < 0,
	}
}

// FrustumLines returns the four edges joining the camera position to the
// viewport-frame corners. Nil when the frame is not visible.
func FrustumLines(position Vec3, frame Frame) []Segment {
	if !frame.Visible {
		return nil
	}
	lines := make([]Segment, 4)
	for i, c := range frame.Corners {
		lines[i] = Segment{From: position, To: c}
	}
	return lines
}

func clampAbs(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}
