package colormath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClamp8(t *testing.T) {
	tests := []struct {
		in   float64
		want uint8
	}{
		{-10, 0},
		{0, 0},
		{12.9, 12},
		{254.99, 254},
		{255, 255},
		{400, 255},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Clamp8(tt.in), "Clamp8(%v)", tt.in)
	}
}

func TestMax(t *testing.T) {
	assert.Equal(t, Black, Max())
	assert.Equal(t, RGB{255, 216, 10}, Max(RGB{255, 0, 10}, RGB{0, 216, 0}))
}

func TestScale(t *testing.T) {
	assert.Equal(t, RGB{63, 54, 0}, RGB{255, 216, 0}.Scale(0.25))
	assert.Equal(t, Black, RGB{255, 255, 255}.Scale(0))
}

func TestLerpEndpoints(t *testing.T) {
	a := RGB{10, 200, 30}
	b := RGB{250, 0, 30}

	assert.Equal(t, a, Lerp(a, b, 0))
	assert.Equal(t, b, Lerp(a, b, 1))
	assert.Equal(t, RGB{130, 100, 30}, Lerp(a, b, 0.5))
}

func TestEaseInOutQuad(t *testing.T) {
	assert.Equal(t, 0.0, EaseInOutQuad(0))
	assert.Equal(t, 1.0, EaseInOutQuad(1))
	assert.InDelta(t, 0.5, EaseInOutQuad(0.5), 1e-9)
	assert.InDelta(t, 0.125, EaseInOutQuad(0.25), 1e-9)
	assert.InDelta(t, 0.875, EaseInOutQuad(0.75), 1e-9)

	prev := 0.0
	for i := 0; i <= 1000; i++ {
		k := EaseInOutQuad(float64(i) / 1000)
		require.GreaterOrEqual(t, k, prev, "ease must be monotonic at step %d", i)
		prev = k
	}
}

func TestParseHex(t *testing.T) {
	c, err := ParseHex("#FFD800")
	require.NoError(t, err)
	assert.Equal(t, RGB{255, 216, 0}, c)
	assert.Equal(t, "FFD800", c.Hex())

	c, err = ParseHex("")
	require.NoError(t, err)
	assert.True(t, c.IsBlack())

	_, err = ParseHex("FFF")
	assert.Error(t, err)
	_, err = ParseHex("GGGGGG")
	assert.Error(t, err)
}

func TestTextRoundTrip(t *testing.T) {
	var c RGB
	require.NoError(t, c.UnmarshalText([]byte("009EE3")))
	b, err := c.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "009EE3", string(b))
}
