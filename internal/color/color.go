// Package color assigns player colors. The mapping depends on the name only,
// so every participant derives the same color without it being transmitted.
package color

import (
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
)

// FromName returns a "#rrggbb" color for a player name. Hues are spread over
// the whole wheel; saturation and lightness stay in a range that is readable
// on a dark sky.
func FromName(name string) string {
	h := xxhash.Sum64String(name)

	hue := float64(h % 360)
	saturation := 0.65 + float64((h>>16)%26)/100 // 0.65 .. 0.90
	lightness := 0.50 + float64((h>>32)%16)/100  // 0.50 .. 0.65

	r, g, b := hslToRGB(hue, saturation, lightness)
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

func hslToRGB(h, s, l float64) (uint8, uint8, uint8) {
	c := (1 - math.Abs(2*l-1)) * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := l - c/2

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}

	return channel(r + m), channel(g + m), channel(b + m)
}

func channel(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
}
