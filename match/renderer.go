package match

import (
	"image"
	"image/color"
	"image/png"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// MatchColors returns the palette cycled through when outlining matches.
func MatchColors() []color.RGBA {
	return []color.RGBA{
		{255, 0, 0, 255},   // Red
		{0, 200, 0, 255},   // Green
		{0, 100, 255, 255}, // Blue
		{255, 165, 0, 255}, // Orange
		{200, 0, 200, 255}, // Magenta
		{0, 200, 200, 255}, // Cyan
	}
}

// Annotator draws match rectangles onto a copy of the background image.
type Annotator struct {
	background *PixelGrid
	results    []OverlayResult
}

// NewAnnotator builds an annotator for the given background and results.
func NewAnnotator(background *PixelGrid, results []OverlayResult) *Annotator {
	return &Annotator{background: background, results: results}
}

// Render produces the annotated image. Each overlay gets the next palette
// color; its best match is drawn with a thicker outline plus an ID label,
// runner-up matches with a thin outline only. Overlays with errors or
// undefined scores are skipped.
func (a *Annotator) Render() *image.RGBA {
	img := a.background.Image()
	colors := MatchColors()

	for i, res := range a.results {
		if res.Err != nil {
			continue
		}
		c := colors[i%len(colors)]
		for j, m := range res.Matches {
			if m.Undefined {
				continue
			}
			thickness := 1
			if j == 0 {
				thickness = 2
			}
			drawRect(img, m.Offset.X, m.Offset.Y, res.Width, res.Height, thickness, c)
			if j == 0 {
				drawLabel(img, m.Offset.X, m.Offset.Y-4, res.OverlayID, c)
			}
		}
	}
	return img
}

// SavePNG renders the annotation and writes it to a PNG file
func (a *Annotator) SavePNG(path string) error {
	img := a.Render()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	return png.Encode(f, img)
}

// drawRect outlines a w×h rectangle whose top-left corner is (x, y).
// The outline grows inward so it never spills outside the matched region.
func drawRect(img *image.RGBA, x, y, w, h, thickness int, c color.RGBA) {
	for t := 0; t < thickness; t++ {
		for px := x + t; px <= x+w-1-t; px++ {
			setPixel(img, px, y+t, c)
			setPixel(img, px, y+h-1-t, c)
		}
		for py := y + t; py <= y+h-1-t; py++ {
			setPixel(img, x+t, py, c)
			setPixel(img, x+w-1-t, py, c)
		}
	}
}

func setPixel(img *image.RGBA, x, y int, c color.RGBA) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.SetRGBA(x, y, c)
	}
}

// drawLabel renders small text above a match. The label is clamped into
// the image so matches near the top edge stay labelled.
func drawLabel(img *image.RGBA, x, y int, text string, c color.RGBA) {
	face := basicfont.Face7x13
	if y < face.Ascent {
		y = face.Ascent
	}
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
