package cli

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"

	"github.com/Fepozopo/nmedit/pkg/blend"
	"github.com/Fepozopo/nmedit/pkg/imageio"
)

var errNoImage = errors.New("no image loaded")

// Session is the state of one terminal editing session: the open image, an
// optional mask image and the blend parameters.
type Session struct {
	Engine      *blend.Engine
	Intensity   float64
	ReduceNoise bool

	Path     string
	Source   *imageio.Source
	MaskPath string

	img  *blend.Image
	mask *blend.Mask
}

// NewSession starts an empty session with its own copy of engine, so
// SetTarget never leaks into other sessions sharing it. Nil means
// blend.NewEngine().
func NewSession(engine *blend.Engine, intensity float64) *Session {
	e := blend.NewEngine()
	if engine != nil {
		*e = *engine
	}
	return &Session{Engine: e, Intensity: intensity}
}

// Open loads the image at path. A loaded mask is kept only when it still
// matches the new image size.
func (s *Session) Open(path string) error {
	src, err := imageio.Load(path)
	if err != nil {
		return err
	}
	s.Path = path
	s.Source = src
	s.img = blend.FromImage(src.Image, s.Engine.Order)
	if s.mask != nil && (s.mask.Width != s.img.Width || s.mask.Height != s.img.Height) {
		s.mask = nil
		s.MaskPath = ""
	}
	return nil
}

// LoadMask reads a grayscale mask image. Its size must match the open image.
func (s *Session) LoadMask(path string) error {
	src, err := imageio.Load(path)
	if err != nil {
		return err
	}
	m := blend.MaskFromGray(src.Image)
	if s.img != nil && (m.Width != s.img.Width || m.Height != s.img.Height) {
		return &blend.DimensionMismatchError{
			ImageWidth: s.img.Width, ImageHeight: s.img.Height,
			MaskWidth: m.Width, MaskHeight: m.Height,
		}
	}
	s.mask = m
	s.MaskPath = path
	return nil
}

// SetIntensity validates and sets the blend intensity.
func (s *Session) SetIntensity(v float64) error {
	if err := checkIntensity(v); err != nil {
		return err
	}
	s.Intensity = v
	return nil
}

func checkIntensity(v float64) error {
	if v != v || v < 0 || v > 1 {
		return &blend.InvalidParameterError{Name: "intensity", Value: v, Reason: "must be in [0,1]"}
	}
	return nil
}

// SetTarget changes the color the image is pulled toward.
func (s *Session) SetTarget(color string) error {
	c, err := blend.ParseColor(color)
	if err != nil {
		return err
	}
	s.Engine.Target = c
	return nil
}

// Mask returns the active mask: the loaded one, or a fully selected mask
// when none was loaded.
func (s *Session) Mask() (*blend.Mask, error) {
	if s.img == nil {
		return nil, errNoImage
	}
	if s.mask != nil {
		return s.mask, nil
	}
	m := blend.NewMask(s.img.Width, s.img.Height)
	m.Fill(255)
	return m, nil
}

// Render blends the open image and returns the displayable result and mask.
func (s *Session) Render() (*image.NRGBA, *image.Gray, error) {
	mask, err := s.Mask()
	if err != nil {
		return nil, nil, err
	}
	out, err := s.Engine.Blend(s.img, mask, s.Intensity, s.ReduceNoise)
	if err != nil {
		return nil, nil, err
	}
	return out.ToNRGBA(s.Engine.Order), mask.ToGray(), nil
}

// Save renders and writes the result and mask into dir, or next to the
// source image when dir is empty.
func (s *Session) Save(dir string) (resultPath, maskPath string, err error) {
	if s.img == nil {
		return "", "", errNoImage
	}
	result, mask, err := s.Render()
	if err != nil {
		return "", "", err
	}
	if dir == "" {
		dir = filepath.Dir(s.Path)
	}
	return imageio.SaveOutputs(dir, s.Source.Name, result, mask)
}

// Info is a one-line description of the open image.
func (s *Session) Info() string {
	if s.Source == nil {
		return "no image"
	}
	b := s.Source.Image.Bounds()
	mask := "none (whole image)"
	if s.MaskPath != "" {
		mask = filepath.Base(s.MaskPath)
	}
	return fmt.Sprintf("%s  %s %dx%d  %s  mask: %s  intensity: %.2f  target: %s",
		s.Source.Name, s.Source.Format, b.Dx(), b.Dy(),
		imageio.Entry{Size: s.Source.Size}.HumanSize(), mask, s.Intensity, s.Engine.Target.Hex())
}
