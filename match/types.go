package match

import "fmt"

// Offset is the placement of an overlay's top-left corner within the
// background, in background pixel coordinates.
type Offset struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// MatchResult describes one candidate placement of an overlay.
//
// Score uses distance semantics throughout: 0 means the overlay is pixel
// identical to the background window, larger values mean a worse fit. The
// score is the mean absolute per-channel difference over all unmasked
// pixels, so it is comparable across overlays of different sizes and masks
// of different coverage.
type MatchResult struct {
	Offset      Offset  `json:"offset"`
	Score       float64 `json:"score"`
	Compared    int     `json:"compared"`    // unmasked pixels contributing to the score
	Undefined   bool    `json:"undefined"`   // true when Compared == 0; Score is meaningless
	Perfect     bool    `json:"perfect"`     // exact pixel match at this offset
	BorderMatch bool    `json:"borderMatch"` // overlay perimeter matches the background
	Confidence  float64 `json:"confidence"`  // how sharply this offset stands out, in [0,1]
}

// Overlay pairs an identifier (usually the source path) with its decoded
// grid. Transparent, when set, overrides the search-wide key color for this
// overlay only.
type Overlay struct {
	ID          string
	Grid        *PixelGrid
	Transparent *TransparentColor
}

// OverlayResult is the outcome of searching one overlay against the
// background. Err is set for per-overlay failures (OverlayTooLargeError,
// context cancellation); Matches is ordered best-first.
type OverlayResult struct {
	OverlayID string
	Width     int
	Height    int
	Matches   []MatchResult
	Err       error
}

// Best returns the best defined match, or false when the overlay produced
// none. The undefined sentinel never counts as a best match; its Score
// field is meaningless and must not be compared against real scores.
func (r *OverlayResult) Best() (MatchResult, bool) {
	if len(r.Matches) == 0 || r.Matches[0].Undefined {
		return MatchResult{}, false
	}
	return r.Matches[0], true
}

// MalformedGridError indicates a pixel grid whose dimensions and sample
// count disagree. Grid construction failures are fatal for the run: a
// malformed background or overlay cannot produce meaningful results.
type MalformedGridError struct {
	Width   int
	Height  int
	Samples int
}

func (e *MalformedGridError) Error() string {
	return fmt.Sprintf("malformed grid: %dx%d with %d samples (want %d)",
		e.Width, e.Height, e.Samples, e.Width*e.Height*Channels)
}

// OverlayTooLargeError indicates an overlay that cannot fit inside the
// background in at least one axis. It is isolated to the offending overlay;
// other overlays in the same run are unaffected.
type OverlayTooLargeError struct {
	BackgroundW int
	BackgroundH int
	OverlayW    int
	OverlayH    int
}

func (e *OverlayTooLargeError) Error() string {
	return fmt.Sprintf("overlay %dx%d exceeds background %dx%d",
		e.OverlayW, e.OverlayH, e.BackgroundW, e.BackgroundH)
}
