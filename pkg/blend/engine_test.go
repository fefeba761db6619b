package blend

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidImage(w, h int, px [3]float64) *Image {
	img := NewImage(w, h)
	img.Fill(px)
	return img
}

func randomImage(rng *rand.Rand, w, h int) *Image {
	img := NewImage(w, h)
	for i := range img.Pix {
		img.Pix[i] = float64(rng.Intn(256))
	}
	return img
}

func randomMask(rng *rand.Rand, w, h int) *Mask {
	m := NewMask(w, h)
	for i := range m.Pix {
		switch rng.Intn(3) {
		case 0:
			m.Pix[i] = 0
		case 1:
			m.Pix[i] = 255
		default:
			m.Pix[i] = float64(rng.Intn(256))
		}
	}
	return m
}

func quietEngine() *Engine {
	e := NewEngine()
	e.Logger = slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	return e
}

func TestBlendWorkedExample(t *testing.T) {
	img := solidImage(1, 1, [3]float64{10, 10, 10})
	mask := NewMask(1, 1)
	mask.Fill(255)

	out, err := quietEngine().Blend(img, mask, 0.5, false)
	require.NoError(t, err)
	assert.Equal(t, [3]float64{132.5, 69, 69}, out.At(0, 0))

	mask.Fill(0)
	for _, intensity := range []float64{0, 0.25, 0.5, 1} {
		out, err := quietEngine().Blend(img, mask, intensity, false)
		require.NoError(t, err)
		assert.Equal(t, [3]float64{10, 10, 10}, out.At(0, 0), "intensity %v", intensity)
	}
}

func TestBlendZeroIntensityIsIdentity(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	img := randomImage(rng, 9, 7)
	mask := randomMask(rng, 9, 7)

	out, err := Blend(img, mask, 0, false)
	require.NoError(t, err)
	assert.Equal(t, img.Pix, out.Pix)
}

func TestBlendUnselectedPixelsUnchanged(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	img := randomImage(rng, 8, 8)
	mask := randomMask(rng, 8, 8)

	out, err := Blend(img, mask, 0.8, false)
	require.NoError(t, err)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if mask.At(x, y) == 0 {
				assert.Equal(t, img.At(x, y), out.At(x, y), "pixel %d,%d", x, y)
			}
		}
	}
}

func TestBlendFullIntensityReachesTarget(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	img := randomImage(rng, 6, 5)
	mask := NewMask(6, 5)
	mask.Fill(255)

	for _, order := range []ChannelOrder{BGR, RGB} {
		e := &Engine{Target: Color{R: 12, G: 200, B: 77}, Order: order}
		out, err := e.Blend(img, mask, 1, false)
		require.NoError(t, err)
		want := e.Target.Channels(order)
		for y := 0; y < 5; y++ {
			for x := 0; x < 6; x++ {
				assert.Equal(t, want, out.At(x, y))
			}
		}
	}
}

func TestBlendDefaultTargetIsBGRFlatNormal(t *testing.T) {
	img := NewImage(1, 1)
	mask := NewMask(1, 1)
	mask.Fill(255)

	out, err := Blend(img, mask, 1, false)
	require.NoError(t, err)
	assert.Equal(t, [3]float64{255, 128, 128}, out.At(0, 0))
}

func TestBlendIsConvexCombination(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	e := quietEngine()
	target := e.Target.Channels(e.Order)
	for trial := 0; trial < 20; trial++ {
		img := randomImage(rng, 5, 5)
		mask := randomMask(rng, 5, 5)
		intensity := rng.Float64()

		out, err := e.Blend(img, mask, intensity, false)
		require.NoError(t, err)
		for i, v := range out.Pix {
			lo := math.Min(img.Pix[i], target[i%3])
			hi := math.Max(img.Pix[i], target[i%3])
			assert.GreaterOrEqual(t, v, lo-1e-9)
			assert.LessOrEqual(t, v, hi+1e-9)
		}
	}
}

func TestBlendTwiceMovesFurtherTowardTarget(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	e := quietEngine()
	target := e.Target.Channels(e.Order)
	img := randomImage(rng, 4, 4)
	mask := NewMask(4, 4)
	mask.Fill(255)
	const intensity = 0.3

	once, err := e.Blend(img, mask, intensity, false)
	require.NoError(t, err)
	twice, err := e.Blend(once, mask, intensity, false)
	require.NoError(t, err)

	for i := range img.Pix {
		d1 := target[i%3] - once.Pix[i]
		d2 := target[i%3] - twice.Pix[i]
		assert.InDelta(t, (1-intensity)*d1, d2, 1e-9)
	}
	assert.NotEqual(t, once.Pix, twice.Pix)
}

func TestBlendSoftMaskWeights(t *testing.T) {
	img := solidImage(1, 1, [3]float64{0, 0, 0})
	mask := NewMask(1, 1)
	mask.Fill(51) // 0.2 after normalization

	out, err := Blend(img, mask, 0.5, false)
	require.NoError(t, err)
	got := out.At(0, 0)
	assert.InDelta(t, 0.1*255, got[0], 1e-9)
	assert.InDelta(t, 0.1*128, got[1], 1e-9)
	assert.InDelta(t, 0.1*128, got[2], 1e-9)
}

func TestBlendDoesNotMutateInputs(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	img := randomImage(rng, 5, 3)
	mask := randomMask(rng, 5, 3)
	imgCopy := img.Clone()
	maskCopy := mask.Clone()

	_, err := Blend(img, mask, 0.7, true)
	require.NoError(t, err)
	assert.Equal(t, imgCopy.Pix, img.Pix)
	assert.Equal(t, maskCopy.Pix, mask.Pix)
}

// The default reducer is a placeholder. This test fails once a real
// reducer becomes the default, which is the cue to revisit callers that
// assume noise reduction is a no-op.
func TestReduceNoisePlaceholderIsIdentity(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	img := randomImage(rng, 7, 7)
	mask := randomMask(rng, 7, 7)

	var logs bytes.Buffer
	e := NewEngine()
	e.Logger = slog.New(slog.NewTextHandler(&logs, nil))

	plain, err := e.Blend(img, mask, 0.6, false)
	require.NoError(t, err)
	denoised, err := e.Blend(img, mask, 0.6, true)
	require.NoError(t, err)

	assert.Equal(t, plain.Pix, denoised.Pix)
	assert.False(t, e.NoiseReductionAvailable())
	assert.Contains(t, logs.String(), "noise reduction requested but not implemented")
}

func TestNoiseReductionAvailableIgnoresPlaceholderPointer(t *testing.T) {
	var logs bytes.Buffer
	e := NewEngine()
	e.Logger = slog.New(slog.NewTextHandler(&logs, nil))
	e.Reducer = &PassthroughReducer{}
	assert.False(t, e.NoiseReductionAvailable())

	e.Reducer = PassthroughReducer{}
	assert.False(t, e.NoiseReductionAvailable())

	img := solidImage(2, 2, [3]float64{10, 20, 30})
	mask := NewMask(2, 2)
	mask.Fill(255)
	e.Reducer = &PassthroughReducer{}
	_, err := e.Blend(img, mask, 0.5, true)
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "noise reduction requested but not implemented")
}

func TestReduceNoiseCustomReducer(t *testing.T) {
	img := solidImage(2, 2, [3]float64{10, 20, 30})
	mask := NewMask(2, 2)
	mask.Fill(255)

	var seen *Mask
	e := quietEngine()
	e.Reducer = NoiseReducerFunc(func(in *Image, m *Mask) (*Image, error) {
		seen = m
		out := in.Clone()
		out.Fill([3]float64{1, 2, 3})
		return out, nil
	})
	assert.True(t, e.NoiseReductionAvailable())

	out, err := e.Blend(img, mask, 0.5, true)
	require.NoError(t, err)
	assert.Equal(t, [3]float64{1, 2, 3}, out.At(1, 1))
	assert.Same(t, mask, seen, "reducer gets the caller's unnormalized mask")

	boom := errors.New("boom")
	e.Reducer = NoiseReducerFunc(func(*Image, *Mask) (*Image, error) { return nil, boom })
	_, err = e.Blend(img, mask, 0.5, true)
	assert.ErrorIs(t, err, boom)

	e.Reducer = NoiseReducerFunc(func(*Image, *Mask) (*Image, error) { return NewImage(1, 1), nil })
	_, err = e.Blend(img, mask, 0.5, true)
	assert.Error(t, err)
}

func TestBlendDimensionMismatch(t *testing.T) {
	img := NewImage(4, 3)
	mask := NewMask(3, 4)

	_, err := Blend(img, mask, 0.5, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	var dm *DimensionMismatchError
	require.True(t, errors.As(err, &dm))
	assert.Equal(t, 4, dm.ImageWidth)
	assert.Equal(t, 4, dm.MaskHeight)
	assert.Contains(t, err.Error(), "4x3")
}

func TestBlendInvalidParameters(t *testing.T) {
	img := NewImage(2, 2)
	mask := NewMask(2, 2)

	for _, v := range []float64{-0.01, 1.01, math.NaN(), math.Inf(1)} {
		_, err := Blend(img, mask, v, false)
		assert.ErrorIs(t, err, ErrInvalidParameter, "intensity %v", v)
	}

	_, err := Blend(nil, mask, 0.5, false)
	assert.ErrorIs(t, err, ErrInvalidParameter)
	_, err = Blend(img, nil, 0.5, false)
	assert.ErrorIs(t, err, ErrInvalidParameter)

	short := &Image{Width: 2, Height: 2, Pix: make([]float64, 5)}
	_, err = Blend(short, mask, 0.5, false)
	var ip *InvalidParameterError
	require.True(t, errors.As(err, &ip))
	assert.Equal(t, "image", ip.Name)
}

func TestBlendRejectsMaskOutOfRange(t *testing.T) {
	img := solidImage(2, 2, [3]float64{10, 20, 30})

	for _, v := range []float64{-1, 255.5, 1000, math.NaN(), math.Inf(-1)} {
		mask := NewMask(2, 2)
		mask.Pix[3] = v
		_, err := Blend(img, mask, 0.5, false)
		require.ErrorIs(t, err, ErrInvalidParameter, "mask value %v", v)
		var ip *InvalidParameterError
		require.True(t, errors.As(err, &ip))
		assert.Equal(t, "mask", ip.Name)
	}

	mask := NewMask(2, 2)
	mask.Pix[0], mask.Pix[1] = 0, 255
	_, err := Blend(img, mask, 0.5, false)
	assert.NoError(t, err, "bounds are inclusive")
}

func TestClampIntensity(t *testing.T) {
	assert.Equal(t, 0.0, ClampIntensity(-3))
	assert.Equal(t, 1.0, ClampIntensity(3))
	assert.Equal(t, 0.4, ClampIntensity(0.4))
	assert.Equal(t, 0.0, ClampIntensity(math.NaN()))
}
