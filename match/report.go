package match

import (
	"encoding/json"
	"fmt"
	"io"
)

// Version is stamped into reports. Overridden at build time via ldflags.
var Version = "dev"

// ImageInfo describes one input image in a report.
type ImageInfo struct {
	Filename string `json:"filename"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// MatchJSON is one reported placement. Score is nil when the comparison
// was undefined (every overlay pixel masked).
type MatchJSON struct {
	X           int      `json:"x"`
	Y           int      `json:"y"`
	Score       *float64 `json:"score"`
	Confidence  float64  `json:"confidence"`
	Perfect     bool     `json:"perfect"`
	BorderMatch bool     `json:"borderMatch"`
}

// OverlayReport collects the reported matches for one overlay.
type OverlayReport struct {
	Overlay ImageInfo   `json:"overlay"`
	Matches []MatchJSON `json:"matches,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Report is the full output of one search run.
type Report struct {
	Version     string          `json:"version"`
	Background  ImageInfo       `json:"background"`
	Overlays    []OverlayReport `json:"overlays"`
	Transparent string          `json:"transparent,omitempty"`
}

// BuildReport assembles a Report from search results. background names the
// background image file; transparent is the hex key color in effect, or
// empty.
func BuildReport(background ImageInfo, results []OverlayResult, transparent string) Report {
	rep := Report{
		Version:     Version,
		Background:  background,
		Transparent: transparent,
		Overlays:    make([]OverlayReport, 0, len(results)),
	}
	for _, res := range results {
		or := OverlayReport{
			Overlay: ImageInfo{Filename: res.OverlayID, Width: res.Width, Height: res.Height},
		}
		if res.Err != nil {
			or.Error = res.Err.Error()
		}
		for _, m := range res.Matches {
			mj := MatchJSON{
				X:           m.Offset.X,
				Y:           m.Offset.Y,
				Confidence:  m.Confidence,
				Perfect:     m.Perfect,
				BorderMatch: m.BorderMatch,
			}
			if !m.Undefined {
				score := m.Score
				mj.Score = &score
			}
			or.Matches = append(or.Matches, mj)
		}
		rep.Overlays = append(rep.Overlays, or)
	}
	return rep
}

// WriteJSON writes the report as indented JSON.
func (r Report) WriteJSON(w io.Writer) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// WriteText writes a human-readable report, one line per match.
func (r Report) WriteText(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "background: %s (%dx%d)\n",
		r.Background.Filename, r.Background.Width, r.Background.Height); err != nil {
		return err
	}
	for _, or := range r.Overlays {
		fmt.Fprintf(w, "%s (%dx%d):\n", or.Overlay.Filename, or.Overlay.Width, or.Overlay.Height)
		if or.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", or.Error)
			continue
		}
		for _, m := range or.Matches {
			if m.Score == nil {
				fmt.Fprintf(w, "  (%d, %d) score undefined (all pixels transparent)\n", m.X, m.Y)
				continue
			}
			line := fmt.Sprintf("  (%d, %d) score %.6f confidence %.2f", m.X, m.Y, *m.Score, m.Confidence)
			if m.Perfect {
				line += " [perfect]"
			} else if m.BorderMatch {
				line += " [border match]"
			}
			fmt.Fprintln(w, line)
		}
	}
	return nil
}
