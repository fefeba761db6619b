// Package canvas turns the strokes a user draws over an image into a
// coverage mask, and keeps the host-side state of the drawing surface.
package canvas

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Mode is a drawing tool.
type Mode string

const (
	ModeFreedraw  Mode = "freedraw"
	ModeLine      Mode = "line"
	ModeRect      Mode = "rect"
	ModeCircle    Mode = "circle"
	ModeErase     Mode = "erase"
	ModeTransform Mode = "transform" // client-side only; carries no coverage
)

// Modes lists the tools in the order the UI offers them.
var Modes = []Mode{ModeFreedraw, ModeLine, ModeRect, ModeCircle, ModeTransform, ModeErase}

// ErrInvalidStroke is returned for strokes that cannot be rasterized.
var ErrInvalidStroke = errors.New("canvas: invalid stroke")

// ParseMode validates a tool name.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidStroke, s)
}

// Point is a canvas position in image pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke is one tool application.
//
//   - freedraw, erase: Points is the pointer path.
//   - line: first and last point.
//   - rect: two opposite corners, filled.
//   - circle: center then a point on the rim, filled.
type Stroke struct {
	Mode   Mode    `json:"mode"`
	Width  float64 `json:"width"`
	Points []Point `json:"points"`
}

// Drawing is the ordered stroke list for one image.
type Drawing struct {
	Strokes []Stroke `json:"strokes"`
}

// DecodeDrawing reads a JSON drawing.
func DecodeDrawing(r io.Reader) (Drawing, error) {
	var d Drawing
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return Drawing{}, fmt.Errorf("canvas: decode drawing: %w", err)
	}
	return d, nil
}

// Validate checks every stroke.
func (d Drawing) Validate() error {
	for i, s := range d.Strokes {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("stroke %d: %w", i, err)
		}
	}
	return nil
}

// Validate checks the mode, width and point count of s.
func (s Stroke) Validate() error {
	if _, err := ParseMode(string(s.Mode)); err != nil {
		return err
	}
	if s.Mode == ModeTransform {
		return nil
	}
	if !(s.Width > 0) {
		return fmt.Errorf("%w: width must be positive, got %v", ErrInvalidStroke, s.Width)
	}
	min := 1
	switch s.Mode {
	case ModeLine, ModeRect, ModeCircle:
		min = 2
	}
	if len(s.Points) < min {
		return fmt.Errorf("%w: %s needs at least %d points, got %d", ErrInvalidStroke, s.Mode, min, len(s.Points))
	}
	return nil
}
