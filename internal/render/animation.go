package render

import (
	"math"
	"time"

	"github.com/budapestmetrodisplay/metrodisplay/internal/colormath"
)

// animation fades one LED from start to end.
type animation struct {
	start colormath.RGB
	end   colormath.RGB
	t0    time.Time
	dur   time.Duration
	ease  func(float64) float64
}

// sample returns the color at now and whether the fade is over.
func (a *animation) sample(now time.Time) (colormath.RGB, bool) {
	if a.dur <= 0 {
		return a.end, true
	}
	u := float64(now.Sub(a.t0)) / float64(a.dur)
	u = math.Max(0, math.Min(1, u))
	return colormath.Lerp(a.start, a.end, a.ease(u)), u >= 1
}

// NextTick advances the frame anchor by one frame. When now is already past
// the new anchor the frame overran: the anchor moves to now and the wait is zero.
func NextTick(prev, now time.Time, frame time.Duration) (next time.Time, wait time.Duration) {
	next = prev.Add(frame)
	wait = next.Sub(now)
	if wait <= 0 {
		return now, 0
	}
	return next, wait
}

// Pack writes R, G, B for every color in order.
func Pack(colors []colormath.RGB) []byte {
	out := make([]byte, 0, len(colors)*3)
	for _, c := range colors {
		out = append(out, c.R, c.G, c.B)
	}
	return out
}

// brightnessFloor is the lowest channel value that stays visible after the
// controller applies its own brightness.
const brightnessFloor = 28

// ApplyBrightnessFloor raises every non-zero value v with v*brightness below
// the floor to ceil(floor/brightness), at most 255. Zeros stay zero.
func ApplyBrightnessFloor(payload []byte, brightness float64) {
	lifted := byte(255)
	if brightness > 0 {
		lifted = colormath.Clamp8(math.Ceil(brightnessFloor / brightness))
	}
	for i, v := range payload {
		if v != 0 && float64(v)*brightness < brightnessFloor {
			payload[i] = lifted
		}
	}
}
