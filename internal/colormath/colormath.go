// Package colormath has the per-channel RGB helpers used by the topology
// and the renderer.
package colormath

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RGB is a color with 8-bit channels.
type RGB struct {
	R, G, B uint8
}

// Black is the zero color.
var Black = RGB{}

// Clamp8 truncates v toward zero and clamps it to [0,255].
func Clamp8(v float64) uint8 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

// Max returns the channel-wise maximum of the given colors, black for none.
func Max(colors ...RGB) RGB {
	var out RGB
	for _, c := range colors {
		out.R = max(out.R, c.R)
		out.G = max(out.G, c.G)
		out.B = max(out.B, c.B)
	}
	return out
}

// Scale multiplies every channel by ratio.
func (c RGB) Scale(ratio float64) RGB {
	return RGB{
		R: Clamp8(float64(c.R) * ratio),
		G: Clamp8(float64(c.G) * ratio),
		B: Clamp8(float64(c.B) * ratio),
	}
}

// Lerp interpolates from a to b by k; k is not clamped, the channels are.
func Lerp(a, b RGB, k float64) RGB {
	ch := func(x, y uint8) uint8 {
		return Clamp8(float64(x) + (float64(y)-float64(x))*k)
	}
	return RGB{R: ch(a.R, b.R), G: ch(a.G, b.G), B: ch(a.B, b.B)}
}

// EaseLinear is the identity curve.
func EaseLinear(u float64) float64 { return u }

// EaseInOutQuad accelerates until halfway then decelerates.
func EaseInOutQuad(u float64) float64 {
	if u < 0.5 {
		return 2 * u * u
	}
	return 1 - math.Pow(-2*u+2, 2)/2
}

// IsBlack reports whether every channel is zero.
func (c RGB) IsBlack() bool { return c == Black }

// Hex renders the color as RRGGBB.
func (c RGB) Hex() string {
	return fmt.Sprintf("%02X%02X%02X", c.R, c.G, c.B)
}

// ParseHex parses RRGGBB with an optional leading '#'. The empty string is black.
func ParseHex(s string) (RGB, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if s == "" {
		return Black, nil
	}
	if len(s) != 6 {
		return Black, fmt.Errorf("invalid color %q: want 6 hex digits", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return Black, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// MarshalText lets colors appear as hex strings in JSON output.
func (c RGB) MarshalText() ([]byte, error) {
	return []byte(c.Hex()), nil
}

// UnmarshalText accepts the same forms as ParseHex.
func (c *RGB) UnmarshalText(b []byte) error {
	v, err := ParseHex(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
