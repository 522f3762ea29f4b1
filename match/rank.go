package match

import (
	"sort"

	"github.com/paulmach/orb"
)

// OrderMode selects how overlay results are ordered in reports.
type OrderMode int

const (
	// OrderInput preserves the order overlays were supplied in.
	OrderInput OrderMode = iota
	// OrderScore sorts overlays by their best score, best first. Overlays
	// with undefined scores or errors sort last, keeping their relative
	// input order.
	OrderScore
)

// Rank orders a copy of results according to mode. The input slice is not
// modified.
func Rank(results []OverlayResult, mode OrderMode) []OverlayResult {
	out := make([]OverlayResult, len(results))
	copy(out, results)
	if mode == OrderInput {
		return out
	}

	sort.SliceStable(out, func(i, j int) bool {
		bi, iok := out[i].Best()
		bj, jok := out[j].Best()
		if iok != jok {
			return iok
		}
		if !iok {
			return false
		}
		return bi.Score < bj.Score
	})
	return out
}

// Distinct filters one overlay's matches so that no kept match overlaps an
// earlier (better) kept one. Matches are assumed sorted best-first, as
// produced by the search. Useful when an overlay occurs several times in
// the background and near-duplicate offsets around each occurrence would
// otherwise crowd out the others.
func Distinct(matches []MatchResult, overlayW, overlayH int) []MatchResult {
	kept := make([]MatchResult, 0, len(matches))
	bounds := make([]orb.Bound, 0, len(matches))

	for _, m := range matches {
		b := matchBound(m.Offset, overlayW, overlayH)
		overlaps := false
		for _, kb := range bounds {
			if b.Intersects(kb) {
				overlaps = true
				break
			}
		}
		if overlaps {
			continue
		}
		kept = append(kept, m)
		bounds = append(bounds, b)
	}
	return kept
}

func matchBound(at Offset, w, h int) orb.Bound {
	return orb.Bound{
		Min: orb.Point{float64(at.X), float64(at.Y)},
		Max: orb.Point{float64(at.X + w - 1), float64(at.Y + h - 1)},
	}
}
