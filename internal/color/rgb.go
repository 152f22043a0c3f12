// Package color holds the RGB triple shared by the realtime decoder and the hub client.
package color

import (
	"fmt"

	"github.com/lucasb-eyer/go-colorful"
)

// RGB is an 8-bit per channel color
type RGB struct {
	R, G, B uint8
}

// FromSlice builds an RGB from the first three bytes of b.
// The caller guarantees len(b) >= 3.
func FromSlice(b []byte) RGB {
	return RGB{R: b[0], G: b[1], B: b[2]}
}

// FromInts converts a hub-reported [r, g, b] list.
// Returns false if the list is not exactly three channels in range.
func FromInts(v []float64) (RGB, bool) {
	if len(v) != 3 {
		return RGB{}, false
	}
	var out [3]uint8
	for i, c := range v {
		if c < 0 || c > 255 {
			return RGB{}, false
		}
		out[i] = uint8(c + 0.5)
	}
	return RGB{R: out[0], G: out[1], B: out[2]}, true
}

// Ints returns the color as the [r, g, b] list the hub expects.
func (c RGB) Ints() []int {
	return []int{int(c.R), int(c.G), int(c.B)}
}

// Hex returns the color as #rrggbb.
func (c RGB) Hex() string {
	return colorful.Color{
		R: float64(c.R) / 255.0,
		G: float64(c.G) / 255.0,
		B: float64(c.B) / 255.0,
	}.Hex()
}

func (c RGB) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.R, c.G, c.B)
}
