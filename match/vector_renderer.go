package match

import (
	"image/color"
	"io"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/svg"
)

// VectorAnnotator writes search results as an SVG overlay: the background
// dimensions become the viewport and each match is a stroked rectangle.
// Unlike the raster annotator the output scales cleanly when inspected,
// which matters for small overlays on large backgrounds.
type VectorAnnotator struct {
	Background  *PixelGrid
	Results     []OverlayResult
	StrokeWidth float64
	Scale       float64 // canvas units per background pixel
}

// NewVectorAnnotator creates a vector annotator with default settings.
func NewVectorAnnotator(background *PixelGrid, results []OverlayResult) *VectorAnnotator {
	return &VectorAnnotator{
		Background:  background,
		Results:     results,
		StrokeWidth: 1.0,
		Scale:       1.0,
	}
}

// RenderToSVG writes the annotation as an SVG to the provided writer.
func (v *VectorAnnotator) RenderToSVG(w io.Writer) error {
	width := float64(v.Background.Width()) * v.Scale
	height := float64(v.Background.Height()) * v.Scale

	svgRenderer := svg.New(w, width, height, nil)
	v.renderToCanvas(svgRenderer, width, height)
	return svgRenderer.Close()
}

func (v *VectorAnnotator) renderToCanvas(renderer canvasRenderer, width, height float64) {
	// White background.
	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	renderer.RenderPath(canvas.Rectangle(width, height), bgStyle, canvas.Identity)

	// SVG y axis points up; image rows count down from the top.
	toCanvas := func(x, y int) (float64, float64) {
		return float64(x) * v.Scale, height - float64(y)*v.Scale
	}

	colors := MatchColors()
	for i, res := range v.Results {
		if res.Err != nil {
			continue
		}
		c := colors[i%len(colors)]

		rectStyle := canvas.DefaultStyle
		rectStyle.Fill = canvas.Paint{Color: canvas.Transparent}
		rectStyle.Stroke = canvas.Paint{Color: color.RGBA{c.R, c.G, c.B, 255}}
		rectStyle.StrokeWidth = v.StrokeWidth

		for j, m := range res.Matches {
			if m.Undefined {
				continue
			}
			if j == 0 {
				rectStyle.StrokeWidth = 2 * v.StrokeWidth
			} else {
				rectStyle.StrokeWidth = v.StrokeWidth
			}

			x0, y0 := toCanvas(m.Offset.X, m.Offset.Y)
			x1, y1 := toCanvas(m.Offset.X+res.Width, m.Offset.Y+res.Height)

			rect := &canvas.Path{}
			rect.MoveTo(x0, y0)
			rect.LineTo(x1, y0)
			rect.LineTo(x1, y1)
			rect.LineTo(x0, y1)
			rect.Close()
			renderer.RenderPath(rect, rectStyle, canvas.Identity)
		}
	}
}

// canvasRenderer is the subset of the canvas render targets used here.
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}
