package blend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseColor(t *testing.T) {
	cases := map[string]Color{
		"#8080ff":     FlatNormal,
		"#8080FF":     FlatNormal,
		"flatnormal":  FlatNormal,
		"#f00":        {R: 255},
		"128,128,255": FlatNormal,
		" 0, 0.5, 1 ": {R: 0, G: 0.5, B: 1},
		"white":       {R: 255, G: 255, B: 255},
	}
	for in, want := range cases {
		got, err := ParseColor(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "nope", "#12345", "#gggggg", "1,2", "1,2,300"} {
		_, err := ParseColor(bad)
		assert.ErrorIs(t, err, ErrInvalidParameter, bad)
	}
}

func TestColorChannelsAndHex(t *testing.T) {
	assert.Equal(t, [3]float64{255, 128, 128}, FlatNormal.Channels(BGR))
	assert.Equal(t, [3]float64{128, 128, 255}, FlatNormal.Channels(RGB))
	assert.Equal(t, "#8080ff", FlatNormal.Hex())
}

func TestParseChannelOrder(t *testing.T) {
	o, err := ParseChannelOrder("RGB")
	require.NoError(t, err)
	assert.Equal(t, RGB, o)
	assert.Equal(t, "bgr", BGR.String())

	_, err = ParseChannelOrder("gbr")
	assert.ErrorIs(t, err, ErrInvalidParameter)
}
