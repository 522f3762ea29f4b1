package match

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// borderMatches reports whether the overlay's outer edge is pixel-identical
// to the background at the given offset. Masked border pixels are treated
// as matching. A border match with an imperfect interior usually means the
// overlay sits in the right frame but its contents changed.
func borderMatches(bg, ov *PixelGrid, mask *Mask, at Offset) bool {
	w, h := ov.Width(), ov.Height()

	for x := 0; x < w; x++ {
		if !borderPixelEqual(bg, ov, mask, at, x, 0) {
			return false
		}
		if h > 1 && !borderPixelEqual(bg, ov, mask, at, x, h-1) {
			return false
		}
	}
	for y := 1; y < h-1; y++ {
		if !borderPixelEqual(bg, ov, mask, at, 0, y) {
			return false
		}
		if w > 1 && !borderPixelEqual(bg, ov, mask, at, w-1, y) {
			return false
		}
	}
	return true
}

func borderPixelEqual(bg, ov *PixelGrid, mask *Mask, at Offset, x, y int) bool {
	if mask.Masked(x, y) {
		return true
	}
	br, bgc, bb, ba := bg.At(at.X+x, at.Y+y)
	or, og, ob, oa := ov.At(x, y)
	return br == or && bgc == og && bb == ob && ba == oa
}

// scoreStats summarizes the score distribution over a subsample of offsets.
// Zero stddev (flat background) disables the confidence signal.
type scoreStats struct {
	mean   float64
	stddev float64
}

// statsSampleTarget bounds the number of offsets scored for statistics so
// the extra cost stays negligible next to the search itself.
const statsSampleTarget = 256

// sampleScoreStats scores a deterministic stride-spaced subsample of
// offsets and returns the mean and standard deviation of the normalized
// scores. The stride depends only on the search space size, so repeated
// runs see the same sample.
func sampleScoreStats(bg, ov *PixelGrid, mask *Mask, maxDX, maxDY, unmasked int) scoreStats {
	total := (maxDX + 1) * (maxDY + 1)
	stride := 1
	if total > statsSampleTarget {
		stride = total / statsSampleTarget
	}

	scores := make([]float64, 0, statsSampleTarget+1)
	for i := 0; i < total; i += stride {
		at := Offset{X: i % (maxDX + 1), Y: i / (maxDX + 1)}
		scores = append(scores, normalizeScore(rawScore(bg, ov, mask, at), unmasked))
	}

	mean, std := stat.MeanStdDev(scores, nil)
	if len(scores) < 2 || math.IsNaN(std) {
		std = 0
	}
	return scoreStats{mean: mean, stddev: std}
}

// confidenceFrom maps a score to [0, 1): how far below the sampled mean it
// sits, in standard deviations, squashed by z/(1+z). Scores at or above
// the mean, or a degenerate distribution, give zero.
func confidenceFrom(s scoreStats, score float64) float64 {
	if s.stddev == 0 {
		return 0
	}
	z := (s.mean - score) / s.stddev
	if z <= 0 {
		return 0
	}
	return z / (1 + z)
}
