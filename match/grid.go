package match

import (
	"image"
	"image/draw"
)

// Channels is the number of color channels per sample. All grids are RGBA;
// images decoded from formats without an alpha channel get opaque alpha.
const Channels = 4

// PixelGrid is an immutable W×H raster of RGBA samples stored row-major.
// Background and overlay images are both represented as PixelGrids. The
// pixel data is never mutated after construction, so a grid can be shared
// freely across concurrent searches.
type PixelGrid struct {
	w, h int
	pix  []uint8 // len == w*h*Channels
}

// NewGrid builds a grid from a flat row-major RGBA sample slice. The slice
// is copied so later mutation of the caller's buffer cannot leak into the
// grid. Returns a *MalformedGridError when the dimensions are degenerate or
// the sample count does not agree with them.
func NewGrid(w, h int, pix []uint8) (*PixelGrid, error) {
	if w < 1 || h < 1 || len(pix) != w*h*Channels {
		return nil, &MalformedGridError{Width: w, Height: h, Samples: len(pix)}
	}
	p := make([]uint8, len(pix))
	copy(p, pix)
	return &PixelGrid{w: w, h: h, pix: p}, nil
}

// GridFromImage converts any decoded image into a grid. Formats without
// native RGBA storage are redrawn into an RGBA raster first.
func GridFromImage(img image.Image) (*PixelGrid, error) {
	b := img.Bounds()
	if b.Dx() < 1 || b.Dy() < 1 {
		return nil, &MalformedGridError{Width: b.Dx(), Height: b.Dy()}
	}

	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != b.Dx()*Channels || !b.Min.Eq(image.Point{}) {
		dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
		rgba = dst
	}

	return NewGrid(b.Dx(), b.Dy(), rgba.Pix)
}

// Width returns the grid width in pixels.
func (g *PixelGrid) Width() int { return g.w }

// Height returns the grid height in pixels.
func (g *PixelGrid) Height() int { return g.h }

// At returns the RGBA sample at (x, y). Callers must stay in bounds.
func (g *PixelGrid) At(x, y int) (r, gr, b, a uint8) {
	i := (y*g.w + x) * Channels
	return g.pix[i], g.pix[i+1], g.pix[i+2], g.pix[i+3]
}

// Row returns a read-only view of n pixels starting at (x, y). This is the
// window accessor the scorer iterates over; the returned slice aliases the
// grid's storage and must not be written to.
func (g *PixelGrid) Row(x, y, n int) []uint8 {
	i := (y*g.w + x) * Channels
	return g.pix[i : i+n*Channels : i+n*Channels]
}

// Fits reports whether an overlay of the given dimensions has at least one
// valid placement inside this grid.
func (g *PixelGrid) Fits(w, h int) bool {
	return w <= g.w && h <= g.h
}

// Image renders the grid back to a standard library image. The pixel data
// is copied; the grid stays immutable.
func (g *PixelGrid) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, g.w, g.h))
	copy(img.Pix, g.pix)
	return img
}
