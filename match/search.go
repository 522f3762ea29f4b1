package match

import (
	"context"
	"runtime"
	"sync"
)

// Options configures a search run. The zero value is not usable; start from
// DefaultOptions.
type Options struct {
	TopK        int               // best offsets reported per overlay (>= 1)
	Transparent *TransparentColor // optional key color excluded from scoring
	Tolerance   float64           // 0 = exact key-color match; >0 = perceptual distance
	Workers     int               // concurrent overlay searches (<= 0 means NumCPU)
	Naive       bool              // disable pruning; reference path for differential tests
}

// DefaultOptions returns the defaults used by the CLI: single best match,
// no transparency, one worker per CPU, pruning enabled.
func DefaultOptions() Options {
	return Options{
		TopK:    1,
		Workers: runtime.NumCPU(),
	}
}

// Search locates each overlay inside the background and returns one
// OverlayResult per overlay, in input order.
//
// Offsets are enumerated row-major (dy outer, dx inner) and the first
// offset reaching the minimal score wins ties, so results are fully
// deterministic and independent of the worker count: overlays are
// independent units of work that share only the read-only background, and
// the final slice is indexed by input position rather than completion
// order. The search space is O(background pixels × overlay pixels) per
// overlay; pruning (see searchOverlay) cuts the constant without changing
// any reported offset or score.
//
// Cancelling ctx abandons overlays that have not finished; they are
// reported with ctx's error while completed overlays keep their results.
func Search(ctx context.Context, background *PixelGrid, overlays []Overlay, opts Options) []OverlayResult {
	if opts.TopK < 1 {
		opts.TopK = 1
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]OverlayResult, len(overlays))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i := range overlays {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = searchOverlay(ctx, background, overlays[i], opts)
		}(i)
	}
	wg.Wait()

	return results
}

// candidate is a running-best entry held privately by one overlay's search.
type candidate struct {
	off Offset
	raw int64
}

// searchOverlay sweeps every valid offset for one overlay and keeps the
// best TopK placements. All mutable state lives in this frame; nothing is
// shared with other overlay searches.
func searchOverlay(ctx context.Context, bg *PixelGrid, ov Overlay, opts Options) OverlayResult {
	result := OverlayResult{
		OverlayID: ov.ID,
		Width:     ov.Grid.Width(),
		Height:    ov.Grid.Height(),
	}

	if !bg.Fits(ov.Grid.Width(), ov.Grid.Height()) {
		result.Err = &OverlayTooLargeError{
			BackgroundW: bg.Width(),
			BackgroundH: bg.Height(),
			OverlayW:    ov.Grid.Width(),
			OverlayH:    ov.Grid.Height(),
		}
		return result
	}

	key := opts.Transparent
	if ov.Transparent != nil {
		key = ov.Transparent
	}
	mask := BuildMask(ov.Grid, key, opts.Tolerance)
	unmasked := mask.Unmasked()

	// Fully masked overlay: there is nothing to compare at any offset, so
	// the score is undefined rather than a (falsely perfect) zero. The
	// caller decides whether that is meaningful.
	if unmasked == 0 {
		result.Matches = []MatchResult{{
			Offset:    Offset{X: 0, Y: 0},
			Compared:  0,
			Undefined: true,
		}}
		return result
	}

	maxDX := bg.Width() - ov.Grid.Width()
	maxDY := bg.Height() - ov.Grid.Height()

	best := make([]candidate, 0, opts.TopK)
	for dy := 0; dy <= maxDY; dy++ {
		if ctx != nil && ctx.Err() != nil {
			result.Matches = nil
			result.Err = ctx.Err()
			return result
		}
		for dx := 0; dx <= maxDX; dx++ {
			at := Offset{X: dx, Y: dy}

			var raw int64
			if opts.Naive || len(best) < opts.TopK {
				raw = rawScore(bg, ov.Grid, mask, at)
			} else {
				// Bound by the current K-th best: a candidate whose partial
				// sum already exceeds it can never be kept.
				raw = rawScoreBounded(bg, ov.Grid, mask, at, best[len(best)-1].raw)
			}

			best = insertCandidate(best, candidate{off: at, raw: raw}, opts.TopK)
		}
	}

	stats := sampleScoreStats(bg, ov.Grid, mask, maxDX, maxDY, unmasked)

	result.Matches = make([]MatchResult, len(best))
	for i, c := range best {
		score := normalizeScore(c.raw, unmasked)
		result.Matches[i] = MatchResult{
			Offset:      c.off,
			Score:       score,
			Compared:    unmasked,
			Perfect:     c.raw == 0,
			BorderMatch: borderMatches(bg, ov.Grid, mask, c.off),
			Confidence:  confidenceFrom(stats, score),
		}
	}
	return result
}

// insertCandidate keeps best sorted ascending by raw score, capped at k
// entries. Insertion is after existing equal scores and replacement of the
// worst entry requires a strictly better score, so the earliest-enumerated
// offset always wins ties.
func insertCandidate(best []candidate, c candidate, k int) []candidate {
	pos := len(best)
	for pos > 0 && best[pos-1].raw > c.raw {
		pos--
	}
	if pos == k {
		return best
	}
	if len(best) < k {
		best = append(best, candidate{})
	}
	copy(best[pos+1:], best[pos:])
	best[pos] = c
	return best
}
