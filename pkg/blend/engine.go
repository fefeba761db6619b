// Package blend implements the intensity-reduction blend: selected pixels of
// an image are linearly interpolated toward a target color, weighted by a
// normalized mask and an intensity factor.
package blend

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
)

// Engine holds the explicit configuration of a blend. The zero value blends
// BGR buffers toward the zero color; use NewEngine for the editor defaults.
// An Engine is safe for concurrent use.
type Engine struct {
	// Target is the blend destination in RGB semantics.
	Target Color
	// Order is the channel order of every Image passed to Blend.
	Order ChannelOrder
	// Reducer runs when noise reduction is requested. Nil means PassthroughReducer.
	Reducer NoiseReducer
	// Logger receives warnings. Nil means slog.Default().
	Logger *slog.Logger
}

// NewEngine returns an engine blending BGR buffers toward FlatNormal.
func NewEngine() *Engine {
	return &Engine{Target: FlatNormal, Order: BGR}
}

var defaultEngine = NewEngine()

// Blend runs the default engine: BGR buffers, FlatNormal target, placeholder
// noise reduction.
func Blend(img *Image, mask *Mask, intensity float64, reduceNoise bool) (*Image, error) {
	return defaultEngine.Blend(img, mask, intensity, reduceNoise)
}

// NoiseReductionAvailable reports whether a real reducer is configured.
func (e *Engine) NoiseReductionAvailable() bool {
	if e.Reducer == nil {
		return false
	}
	_, placeholder := e.Reducer.(placeholderReducer)
	return !placeholder
}

// Blend returns a new image where each pixel is
//
//	out = (1 - w)*img + w*target,  w = intensity * mask/255
//
// Inputs are never modified. When reduceNoise is set the configured
// NoiseReducer runs on the result; the placeholder reducer only logs a warning.
func (e *Engine) Blend(img *Image, mask *Mask, intensity float64, reduceNoise bool) (*Image, error) {
	if err := Validate(img, mask, intensity); err != nil {
		return nil, err
	}

	target := e.Target.Channels(e.Order)
	out := NewImage(img.Width, img.Height)
	for p, m := range mask.Pix {
		w := intensity * (m / 255.0)
		i := p * 3
		out.Pix[i+0] = (1-w)*img.Pix[i+0] + w*target[0]
		out.Pix[i+1] = (1-w)*img.Pix[i+1] + w*target[1]
		out.Pix[i+2] = (1-w)*img.Pix[i+2] + w*target[2]
	}

	if !reduceNoise {
		return out, nil
	}
	return e.reduceNoise(out, mask)
}

func (e *Engine) reduceNoise(img *Image, mask *Mask) (*Image, error) {
	reducer := e.Reducer
	if reducer == nil {
		reducer = PassthroughReducer{}
	}
	reduced, err := reducer.Reduce(img, mask)
	if errors.Is(err, ErrNoiseReductionUnimplemented) {
		e.logger().Warn("noise reduction requested but not implemented; result left unchanged",
			"width", img.Width, "height", img.Height)
		return img, nil
	}
	if err != nil {
		return nil, fmt.Errorf("blend: noise reduction: %w", err)
	}
	if reduced == nil || reduced.Width != img.Width || reduced.Height != img.Height || len(reduced.Pix) != len(img.Pix) {
		return nil, fmt.Errorf("blend: noise reduction returned a malformed image")
	}
	return reduced, nil
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// Validate checks the inputs of a blend without running it.
func Validate(img *Image, mask *Mask, intensity float64) error {
	if img == nil {
		return &InvalidParameterError{Name: "image", Value: nil, Reason: "nil image"}
	}
	if mask == nil {
		return &InvalidParameterError{Name: "mask", Value: nil, Reason: "nil mask"}
	}
	if img.Width != mask.Width || img.Height != mask.Height {
		return &DimensionMismatchError{
			ImageWidth: img.Width, ImageHeight: img.Height,
			MaskWidth: mask.Width, MaskHeight: mask.Height,
		}
	}
	if len(img.Pix) != img.Width*img.Height*3 {
		return &InvalidParameterError{Name: "image", Value: len(img.Pix), Reason: "buffer length does not match dimensions"}
	}
	if len(mask.Pix) != mask.Width*mask.Height {
		return &InvalidParameterError{Name: "mask", Value: len(mask.Pix), Reason: "buffer length does not match dimensions"}
	}
	if math.IsNaN(intensity) || intensity < 0 || intensity > 1 {
		return &InvalidParameterError{Name: "intensity", Value: intensity, Reason: "must be in [0,1]"}
	}
	for _, m := range mask.Pix {
		if math.IsNaN(m) || m < 0 || m > 255 {
			return &InvalidParameterError{Name: "mask", Value: m, Reason: "values must be in [0,255]"}
		}
	}
	return nil
}

// ClampIntensity maps v into [0,1]; NaN becomes 0. For hosts that prefer
// clamping a slider value over rejecting it.
func ClampIntensity(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
