package match

// The scorer is a pure function of (background, overlay, mask, offset).
// Differences are accumulated as a raw int64 sum of absolute per-channel
// deltas; the maximum possible sum is 255 * 4 * W * H, far below the int64
// range for any realistic image, so no overflow handling is needed before
// normalization.

// rawScore accumulates the absolute per-channel difference between the
// overlay and the background window at the given offset, skipping masked
// pixels. This is the naive reference path.
func rawScore(bg, ov *PixelGrid, mask *Mask, at Offset) int64 {
	var sum int64
	ow := ov.Width()
	for j := 0; j < ov.Height(); j++ {
		bgRow := bg.Row(at.X, at.Y+j, ow)
		ovRow := ov.Row(0, j, ow)
		for i := 0; i < ow; i++ {
			if mask.Masked(i, j) {
				continue
			}
			sum += pixelDelta(bgRow, ovRow, i*Channels)
		}
	}
	return sum
}

// rawScoreBounded is the branch-and-bound variant: it abandons accumulation
// as soon as the partial sum strictly exceeds limit. Partial sums only grow,
// so any candidate whose true sum is <= limit is never cut short; the two
// paths are score-equivalent for every offset that can still win.
func rawScoreBounded(bg, ov *PixelGrid, mask *Mask, at Offset, limit int64) int64 {
	var sum int64
	ow := ov.Width()
	for j := 0; j < ov.Height(); j++ {
		bgRow := bg.Row(at.X, at.Y+j, ow)
		ovRow := ov.Row(0, j, ow)
		for i := 0; i < ow; i++ {
			if mask.Masked(i, j) {
				continue
			}
			sum += pixelDelta(bgRow, ovRow, i*Channels)
		}
		if sum > limit {
			return sum
		}
	}
	return sum
}

// pixelDelta sums the absolute channel differences of one pixel. Both row
// slices must start at the same offset's first channel.
func pixelDelta(bgRow, ovRow []uint8, i int) int64 {
	var d int64
	for c := 0; c < Channels; c++ {
		d += absDiff(bgRow[i+c], ovRow[i+c])
	}
	return d
}

func absDiff(a, b uint8) int64 {
	if a > b {
		return int64(a - b)
	}
	return int64(b - a)
}

// ScoreAt computes the normalized dissimilarity between the overlay and the
// background window at one offset. The returned compared count is the
// number of unmasked pixels; undefined is true when that count is zero, in
// which case score carries no meaning and must not be treated as 0.
func ScoreAt(bg, ov *PixelGrid, mask *Mask, at Offset) (score float64, compared int, undefined bool) {
	compared = mask.Unmasked()
	if compared == 0 {
		return 0, 0, true
	}
	raw := rawScore(bg, ov, mask, at)
	return normalizeScore(raw, compared), compared, false
}

// normalizeScore divides the raw sum by the number of pixel-channel terms,
// making scores comparable across overlays of different sizes and masks of
// different coverage.
func normalizeScore(raw int64, unmaskedPixels int) float64 {
	return float64(raw) / float64(unmaskedPixels*Channels)
}
