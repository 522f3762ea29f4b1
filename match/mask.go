package match

import (
	"fmt"

	"github.com/lucasb-eyer/go-colorful"
)

// TransparentColor designates one RGB value in an overlay as "not part of
// the asset": pixels equal to it are excluded from scoring. Alpha is
// deliberately ignored here, matching assets exported with a solid key
// color rather than an alpha channel.
type TransparentColor struct {
	R, G, B uint8
}

// White is the conventional key color for UI assets on a white sheet.
var White = TransparentColor{R: 255, G: 255, B: 255}

// ParseHexColor parses "#RRGGBB" (leading '#' optional) into a
// TransparentColor.
func ParseHexColor(s string) (TransparentColor, error) {
	if len(s) > 0 && s[0] == '#' {
		s = s[1:]
	}
	var r, g, b uint8
	if len(s) != 6 {
		return TransparentColor{}, fmt.Errorf("invalid hex color %q: want RRGGBB", s)
	}
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
		return TransparentColor{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return TransparentColor{R: r, G: g, B: b}, nil
}

// Mask marks overlay pixels excluded from scoring. It is derived once per
// overlay and owned exclusively by that overlay's search; it is never
// mutated afterwards.
type Mask struct {
	w, h     int
	skip     []bool
	excluded int
}

// BuildMask derives the mask for an overlay. With a nil key color the mask
// excludes nothing. With tolerance 0 the comparison is exact per channel;
// a positive tolerance switches to a perceptual RGB distance in [0,1] so
// anti-aliased fringes around a key color can be excluded too.
func BuildMask(overlay *PixelGrid, key *TransparentColor, tolerance float64) *Mask {
	m := &Mask{
		w:    overlay.Width(),
		h:    overlay.Height(),
		skip: make([]bool, overlay.Width()*overlay.Height()),
	}
	if key == nil {
		return m
	}

	var ref colorful.Color
	if tolerance > 0 {
		ref = colorful.Color{
			R: float64(key.R) / 255.0,
			G: float64(key.G) / 255.0,
			B: float64(key.B) / 255.0,
		}
	}

	for y := 0; y < m.h; y++ {
		for x := 0; x < m.w; x++ {
			r, g, b, _ := overlay.At(x, y)

			var transparent bool
			if tolerance <= 0 {
				transparent = r == key.R && g == key.G && b == key.B
			} else {
				c := colorful.Color{
					R: float64(r) / 255.0,
					G: float64(g) / 255.0,
					B: float64(b) / 255.0,
				}
				transparent = ref.DistanceRgb(c) <= tolerance
			}

			if transparent {
				m.skip[y*m.w+x] = true
				m.excluded++
			}
		}
	}
	return m
}

// Masked reports whether the overlay pixel at (x, y) is excluded.
func (m *Mask) Masked(x, y int) bool { return m.skip[y*m.w+x] }

// Excluded returns the number of masked pixels.
func (m *Mask) Excluded() int { return m.excluded }

// Unmasked returns the number of pixels that participate in scoring. A
// fully masked overlay yields 0 here, which downstream surfaces as an
// undefined score rather than an error.
func (m *Mask) Unmasked() int { return m.w*m.h - m.excluded }
