package analysis

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reframe/reframe/backend-go/internal/ai"
)

type fakeModel struct {
	reply string
	err   error
}

func (f *fakeModel) CompleteWithImage(_ context.Context, _, _ string, _ []byte, _ string) (string, error) {
	return f.reply, f.err
}

func TestAnalyzeParsesWellFormedReply(t *testing.T) {
	a := NewAnalyzer(&fakeModel{reply: `{
		"distance": 2.2, "focalLength": 35, "pitch": -12, "yaw": 30,
		"roll": 0, "height": 1.4, "shotType": "close-up",
		"angle": "low angle", "lens": "wide", "description": "low three-quarter view"
	}`})

	res, err := a.Analyze(context.Background(), []byte("img"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, 2.2, res.Distance)
	assert.Equal(t, 35.0, res.FocalLength)
	assert.Equal(t, -12.0, res.Pitch)
	assert.Equal(t, 30.0, res.Yaw)
	assert.Equal(t, "close-up", res.ShotType)
	assert.Equal(t, "low angle", res.Angle)
}

func TestAnalyzeStripsMarkdownFences(t *testing.T) {
	a := NewAnalyzer(&fakeModel{reply: "Here is my estimate:\n```json\n{\"distance\": 5, \"shotType\": \"wide shot\"}\n```\n"})

	res, err := a.Analyze(context.Background(), []byte("img"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, 5.0, res.Distance)
	assert.Equal(t, "wide shot", res.ShotType)
	// Omitted fields pick up defaults.
	assert.Equal(t, 50.0, res.FocalLength)
	assert.Equal(t, "eye level", res.Angle)
}

func TestAnalyzeMalformedReplyFallsBackToDefaults(t *testing.T) {
	replies := []string{
		"I cannot determine the camera position.",
		"{not json at all",
		"",
		`{"distance": "far away"}`,
	}
	for _, reply := range replies {
		a := NewAnalyzer(&fakeModel{reply: reply})
		res, err := a.Analyze(context.Background(), []byte("img"), "image/png")
		require.NoError(t, err, "reply %q must not error", reply)
		assert.Equal(t, DefaultResult(), res, "reply %q", reply)
	}
}

func TestAnalyzeCredentialErrorPropagates(t *testing.T) {
	a := NewAnalyzer(&fakeModel{err: fmt.Errorf("rejected: %w", ai.ErrCredential)})
	_, err := a.Analyze(context.Background(), []byte("img"), "image/png")
	require.Error(t, err)
	assert.ErrorIs(t, err, ai.ErrCredential)
}

func TestAnalyzeTransportErrorPropagates(t *testing.T) {
	a := NewAnalyzer(&fakeModel{err: errors.New("connection reset")})
	_, err := a.Analyze(context.Background(), []byte("img"), "image/png")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ai.ErrCredential)
}

func TestDefaultResult(t *testing.T) {
	def := DefaultResult()
	assert.Equal(t, 3.0, def.Distance)
	assert.Equal(t, 50.0, def.FocalLength)
	assert.Equal(t, 0.0, def.Pitch)
	assert.Equal(t, 0.0, def.Yaw)
	assert.Equal(t, 0.0, def.Roll)
	assert.Equal(t, 1.6, def.Height)
	assert.Equal(t, "medium shot", def.ShotType)
	assert.Equal(t, "eye level", def.Angle)
	assert.Equal(t, "normal", def.Lens)
}

func TestNormalizedKeepsZeroAngles(t *testing.T) {
	r := Result{Distance: 2, Pitch: 0, Yaw: 0}.Normalized()
	assert.Equal(t, 2.0, r.Distance)
	assert.Equal(t, 0.0, r.Pitch)
	assert.Equal(t, 0.0, r.Yaw)
	assert.Equal(t, "medium shot", r.ShotType)
}
