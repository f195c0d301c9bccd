// Package prompt turns camera rig snapshots into natural-language prompts
// for AI image and video generators: a position prompt describing where the
// camera sits now, and a movement prompt describing how it got there from
// the analyzed original.
package prompt

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
)

// ModelCaller is the slice of the AI client the generator needs.
type ModelCaller interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Snapshot is the camera description handed in by the caller. It mirrors the
// rig's state snapshot without importing it, keeping this package usable
// from anything that can describe a camera.
type Snapshot struct {
	Distance float64
	OrbitH   float64
	OrbitV   float64
	Pan      float64
	Tilt     float64
	ShotType string
	Angle    string
}

const positionSystem = `You write concise camera direction for AI image generators.
Given a technical camera description, produce one fluent sentence a prompt author would use.
Mention shot type, camera angle and direction. No preamble, no quotes.`

const movementSystem = `You write concise camera movement direction for AI video generators.
Given a starting and ending camera position, describe the camera move between them in one
fluent sentence (e.g. "the camera orbits left while craning up and pushing in"). No preamble, no quotes.`

// Generator produces prompt text through the language model.
type Generator struct {
	client ModelCaller
}

func NewGenerator(client ModelCaller) *Generator {
	return &Generator{client: client}
}

// Position generates a natural-language description of a single camera
// position. A single failure surfaces to the caller; there are no retries.
func (g *Generator) Position(ctx context.Context, snap Snapshot) (string, error) {
	text, err := g.client.Complete(ctx, positionSystem, DescribePosition(snap))
	if err != nil {
		return "", fmt.Errorf("generate position prompt: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// Movement generates a description of the camera move from the original
// analyzed position to the current one.
func (g *Generator) Movement(ctx context.Context, from, to Snapshot) (string, error) {
	text, err := g.client.Complete(ctx, movementSystem, DescribeMovement(from, to))
	if err != nil {
		return "", fmt.Errorf("generate movement prompt: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// Result carries one generation outcome; position and movement succeed or
// fail independently.
type Result struct {
	Text string
	Err  error
}

// Generate runs the position and movement generations concurrently. The two
// calls share no state and neither outcome affects the other.
func (g *Generator) Generate(ctx context.Context, from, to Snapshot) (position, movement Result) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		position.Text, position.Err = g.Position(ctx, to)
	}()
	go func() {
		defer wg.Done()
		movement.Text, movement.Err = g.Movement(ctx, from, to)
	}()
	wg.Wait()
	return position, movement
}

// DescribePosition renders a snapshot as the technical description fed to
// the model.
func DescribePosition(s Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Shot type: %s. Camera angle: %s. ", orDefault(s.ShotType, "medium shot"), orDefault(s.Angle, "eye level"))
	fmt.Fprintf(&b, "The camera is %.1fm from the subject, %s, %s.",
		s.Distance, horizontalDirection(s.OrbitH), elevation(s.OrbitV))
	if s.Pan != 0 || s.Tilt != 0 {
		fmt.Fprintf(&b, " The gaze is offset: pan %.0f°, tilt %.0f°.", s.Pan, s.Tilt)
	}
	return b.String()
}

// DescribeMovement renders a from/to pair, including the per-axis deltas so
// the model can name the move precisely.
func DescribeMovement(from, to Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Start: %s\nEnd: %s\n", DescribePosition(from), DescribePosition(to))

	var moves []string
	if d := to.Distance - from.Distance; math.Abs(d) > 0.05 {
		if d < 0 {
			moves = append(moves, fmt.Sprintf("push in %.1fm", -d))
		} else {
			moves = append(moves, fmt.Sprintf("pull out %.1fm", d))
		}
	}
	if d := to.OrbitH - from.OrbitH; math.Abs(d) > 0.5 {
		if d > 0 {
			moves = append(moves, fmt.Sprintf("orbit right %.0f°", d))
		} else {
			moves = append(moves, fmt.Sprintf("orbit left %.0f°", -d))
		}
	}
	if d := to.OrbitV - from.OrbitV; math.Abs(d) > 0.5 {
		if d > 0 {
			moves = append(moves, fmt.Sprintf("crane up %.0f°", d))
		} else {
			moves = append(moves, fmt.Sprintf("crane down %.0f°", -d))
		}
	}
	if d := to.Pan - from.Pan; math.Abs(d) > 0.5 {
		moves = append(moves, fmt.Sprintf("pan %.0f°", d))
	}
	if d := to.Tilt - from.Tilt; math.Abs(d) > 0.5 {
		moves = append(moves, fmt.Sprintf("tilt %.0f°", d))
	}
	if len(moves) == 0 {
		moves = append(moves, "hold position")
	}
	fmt.Fprintf(&b, "Moves: %s.", strings.Join(moves, ", "))
	return b.String()
}

// horizontalDirection names the orbit angle as a compass-style direction
// relative to the subject, in 45° sectors.
func horizontalDirection(orbitH float64) string {
	a := math.Mod(orbitH, 360)
	if a < 0 {
		a += 360
	}
	switch {
	case a < 22.5 || a >= 337.5:
		return "directly in front"
	case a < 67.5:
		return "to the front-right"
	case a < 112.5:
		return "to the right side"
	case a < 157.5:
		return "to the back-right"
	case a < 202.5:
		return "directly behind"
	case a < 247.5:
		return "to the back-left"
	case a < 292.5:
		return "to the left side"
	default:
		return "to the front-left"
	}
}

func elevation(orbitV float64) string {
	switch {
	case orbitV >= 60:
		return "nearly overhead looking down"
	case orbitV >= 20:
		return "raised high looking down"
	case orbitV >= 5:
		return "slightly above eye level"
	case orbitV > -5:
		return "at eye level"
	case orbitV > -20:
		return "slightly below eye level looking up"
	default:
		return "low to the ground looking up"
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
