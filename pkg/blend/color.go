package blend

import (
	"fmt"
	"strconv"
	"strings"
)

// ChannelOrder describes how the three channels of an Image buffer map to
// red, green and blue.
type ChannelOrder int

const (
	// BGR stores blue first; this is the layout the editor works in.
	BGR ChannelOrder = iota
	// RGB stores red first, matching image.Image and PNG encoding.
	RGB
)

func (o ChannelOrder) String() string {
	switch o {
	case BGR:
		return "bgr"
	case RGB:
		return "rgb"
	default:
		return fmt.Sprintf("ChannelOrder(%d)", int(o))
	}
}

// ParseChannelOrder accepts "rgb" or "bgr" in any case.
func ParseChannelOrder(s string) (ChannelOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bgr":
		return BGR, nil
	case "rgb":
		return RGB, nil
	default:
		return BGR, &InvalidParameterError{Name: "channel order", Value: s, Reason: "want rgb or bgr"}
	}
}

// Color is an RGB triple with components in [0,255].
type Color struct {
	R, G, B float64
}

// FlatNormal is the tangent-space normal pointing straight out of the surface.
// Stored in BGR order it reads (255,128,128).
var FlatNormal = Color{R: 128, G: 128, B: 255}

// Channels returns c laid out in the given channel order.
func (c Color) Channels(order ChannelOrder) [3]float64 {
	if order == RGB {
		return [3]float64{c.R, c.G, c.B}
	}
	return [3]float64{c.B, c.G, c.R}
}

// Hex formats c as #rrggbb, clamping and truncating each component.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", clampToByte(c.R), clampToByte(c.G), clampToByte(c.B))
}

func (c Color) String() string {
	return fmt.Sprintf("rgb(%g,%g,%g)", c.R, c.G, c.B)
}

var namedColors = map[string]string{
	"black":      "#000000",
	"white":      "#ffffff",
	"red":        "#ff0000",
	"green":      "#008000",
	"lime":       "#00ff00",
	"blue":       "#0000ff",
	"gray":       "#808080",
	"grey":       "#808080",
	"flatnormal": "#8080ff",
}

// ParseColor accepts #rrggbb, #rgb, "r,g,b" with decimal components, or a
// small set of color names (including "flatnormal").
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Color{}, &InvalidParameterError{Name: "color", Value: s, Reason: "empty"}
	}
	if hex, ok := namedColors[strings.ToLower(s)]; ok {
		return ParseColor(hex)
	}
	if strings.Contains(s, ",") {
		parts := strings.Split(s, ",")
		if len(parts) != 3 {
			return Color{}, &InvalidParameterError{Name: "color", Value: s, Reason: "want three components"}
		}
		var v [3]float64
		for i, p := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil || f < 0 || f > 255 {
				return Color{}, &InvalidParameterError{Name: "color", Value: s, Reason: "components must be numbers in [0,255]"}
			}
			v[i] = f
		}
		return Color{R: v[0], G: v[1], B: v[2]}, nil
	}
	if s[0] != '#' {
		return Color{}, &InvalidParameterError{Name: "color", Value: s, Reason: "unsupported format"}
	}
	hex := s[1:]
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return Color{}, &InvalidParameterError{Name: "color", Value: s, Reason: "unsupported hex length"}
	}
	var v [3]float64
	for i := 0; i < 3; i++ {
		n, err := strconv.ParseUint(hex[i*2:i*2+2], 16, 8)
		if err != nil {
			return Color{}, &InvalidParameterError{Name: "color", Value: s, Reason: "invalid hex digits"}
		}
		v[i] = float64(n)
	}
	return Color{R: v[0], G: v[1], B: v[2]}, nil
}

// clampToByte clamps v to [0,255] and truncates toward zero, the same way
// a saturating cast to uint8 would.
func clampToByte(v float64) uint8 {
	if v != v || v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
