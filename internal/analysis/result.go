package analysis

// Result is the structured output of the vision analysis: the camera
// parameters the model believes produced the uploaded photo, plus the
// descriptive tags used in generated prompts.
type Result struct {
	Distance    float64 `json:"distance"`    // meters, subject to camera
	FocalLength float64 `json:"focalLength"` // mm
	Pitch       float64 `json:"pitch"`       // degrees, positive = camera above eye level
	Yaw         float64 `json:"yaw"`         // degrees, positive = camera to subject's side
	Roll        float64 `json:"roll"`        // degrees
	Height      float64 `json:"height"`      // meters, camera height above ground
	ShotType    string  `json:"shotType"`
	Angle       string  `json:"angle"`
	Lens        string  `json:"lens"`
	Description string  `json:"description"`
}

// DefaultResult is the single source of truth for fallback camera parameters.
// It is used wholesale when the model's output cannot be parsed, and per
// field when the model omits values.
func DefaultResult() Result {
	return Result{
		Distance:    3,
		FocalLength: 50,
		Pitch:       0,
		Yaw:         0,
		Roll:        0,
		Height:      1.6,
		ShotType:    "medium shot",
		Angle:       "eye level",
		Lens:        "normal",
	}
}

// Normalized returns r with missing fields substituted from DefaultResult.
// Numeric zero is a legitimate value for the angles, so only the fields
// where zero is meaningless fall back.
func (r Result) Normalized() Result {
	def := DefaultResult()
	if r.Distance <= 0 {
		r.Distance = def.Distance
	}
	if r.FocalLength <= 0 {
		r.FocalLength = def.FocalLength
	}
	if r.Height <= 0 {
		r.Height = def.Height
	}
	if r.ShotType == "" {
		r.ShotType = def.ShotType
	}
	if r.Angle == "" {
		r.Angle = def.Angle
	}
	if r.Lens == "" {
		r.Lens = def.Lens
	}
	return r
}
