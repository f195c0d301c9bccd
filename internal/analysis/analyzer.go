// Package analysis infers the camera position that produced an uploaded
// photo by asking a vision-capable model and parsing its structured reply.
package analysis

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
)

const systemPrompt = `You are a cinematography expert. Analyze the photo and estimate the camera setup that produced it.
Respond with ONLY a JSON object, no prose, with these fields:
{
  "distance": <meters from camera to the main subject, number>,
  "focalLength": <lens focal length in mm, number>,
  "pitch": <camera elevation angle in degrees, positive = above the subject looking down, number>,
  "yaw": <horizontal angle in degrees, 0 = head-on, positive = camera to the subject's left, number>,
  "roll": <camera roll in degrees, number>,
  "height": <camera height above ground in meters, number>,
  "shotType": <one of "extreme close-up", "close-up", "medium shot", "full shot", "wide shot">,
  "angle": <one of "low angle", "eye level", "high angle", "overhead">,
  "lens": <one of "wide", "normal", "telephoto">,
  "description": <one sentence describing the framing>
}`

const userPrompt = "Estimate the camera position for this photo."

// ModelCaller is the slice of the AI client the analyzer needs.
type ModelCaller interface {
	CompleteWithImage(ctx context.Context, system, user string, image []byte, mimeType string) (string, error)
}

// Analyzer turns image bytes into a camera-position estimate.
type Analyzer struct {
	client ModelCaller
}

// NewAnalyzer wraps a model client. The client carries the credential; the
// analyzer itself holds no state between calls.
func NewAnalyzer(client ModelCaller) *Analyzer {
	return &Analyzer{client: client}
}

// Analyze sends the image to the model and parses the estimate. A reply that
// cannot be parsed degrades to the default record so the user can still work
// with the image; credential and transport failures propagate.
func (a *Analyzer) Analyze(ctx context.Context, image []byte, mimeType string) (Result, error) {
	reply, err := a.client.CompleteWithImage(ctx, systemPrompt, userPrompt, image, mimeType)
	if err != nil {
		// Credential and transport failures both surface; only a reply we
		// cannot parse is recovered locally.
		return Result{}, err
	}

	res, ok := parseResult(reply)
	if !ok {
		slog.Warn("analysis reply unparseable, using defaults", "reply", truncate(reply, 120))
		return DefaultResult(), nil
	}
	return res.Normalized(), nil
}

// parseResult extracts the JSON object from a model reply. Models often wrap
// JSON in markdown fences or lead-in prose; take the outermost braces.
func parseResult(reply string) (Result, bool) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return Result{}, false
	}

	var res Result
	if err := json.Unmarshal([]byte(reply[start:end+1]), &res); err != nil {
		return Result{}, false
	}
	return res, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
