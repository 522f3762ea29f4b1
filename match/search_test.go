package match

import (
	"context"
	"errors"
	"math/rand"
	"testing"
)

// Helper building a black background with a white square at (x, y)
func backgroundWithSquare(t *testing.T, w, h, x, y, side int) *PixelGrid {
	t.Helper()
	pix := make([]uint8, w*h*Channels)
	paintRect(pix, w, 0, 0, w, h, 0, 0, 0, 255)
	paintRect(pix, w, x, y, side, side, 255, 255, 255, 255)
	return mustGrid(t, w, h, pix)
}

func singleOverlay(grid *PixelGrid) []Overlay {
	return []Overlay{{ID: "overlay", Grid: grid}}
}

func TestSearch_FindsEmbeddedSquare(t *testing.T) {
	bg := backgroundWithSquare(t, 4, 4, 1, 1, 2)
	ov := solidGrid(t, 2, 2, 255, 255, 255, 255)

	results := Search(context.Background(), bg, singleOverlay(ov), DefaultOptions())
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	best, ok := results[0].Best()
	if !ok {
		t.Fatal("no best match")
	}
	if best.Offset != (Offset{X: 1, Y: 1}) {
		t.Errorf("best offset = %v, want (1,1)", best.Offset)
	}
	if best.Score != 0 || !best.Perfect {
		t.Errorf("best score = %v perfect = %v, want 0 and true", best.Score, best.Perfect)
	}
	if best.Compared != 4 {
		t.Errorf("compared = %d, want 4", best.Compared)
	}
}

// Planting an overlay into a random background at any valid offset must
// recover exactly that offset with score 0.
func TestSearch_PlantedOverlayRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(77))
	const bw, bh, ow, oh = 24, 20, 5, 4

	base := make([]uint8, bw*bh*Channels)
	for i := range base {
		base[i] = uint8(rng.Intn(256))
	}
	ovPix := make([]uint8, ow*oh*Channels)
	for i := range ovPix {
		ovPix[i] = uint8(rng.Intn(256))
	}
	ov := mustGrid(t, ow, oh, ovPix)

	for trial := 0; trial < 8; trial++ {
		x := rng.Intn(bw - ow + 1)
		y := rng.Intn(bh - oh + 1)

		pix := make([]uint8, len(base))
		copy(pix, base)
		for j := 0; j < oh; j++ {
			copy(pix[((y+j)*bw+x)*Channels:], ovPix[j*ow*Channels:(j+1)*ow*Channels])
		}
		bg := mustGrid(t, bw, bh, pix)

		results := Search(context.Background(), bg, singleOverlay(ov), DefaultOptions())
		best, ok := results[0].Best()
		if !ok {
			t.Fatalf("planted at (%d,%d): no best match", x, y)
		}
		if best.Offset != (Offset{X: x, Y: y}) {
			t.Errorf("planted at (%d,%d): recovered %v", x, y, best.Offset)
		}
		if best.Score != 0 || !best.Perfect {
			t.Errorf("planted at (%d,%d): score = %v perfect = %v, want 0 and true",
				x, y, best.Score, best.Perfect)
		}
	}
}

func TestSearch_TieBreakRowMajor(t *testing.T) {
	// Uniform background: every offset scores identically, so the
	// first-enumerated offset (0,0) must win, and top-K must follow
	// row-major order exactly.
	bg := solidGrid(t, 3, 3, 50, 50, 50, 255)
	ov := solidGrid(t, 2, 2, 50, 50, 50, 255)

	opts := DefaultOptions()
	opts.TopK = 4
	results := Search(context.Background(), bg, singleOverlay(ov), opts)

	want := []Offset{{0, 0}, {1, 0}, {0, 1}, {1, 1}}
	if len(results[0].Matches) != len(want) {
		t.Fatalf("got %d matches, want %d", len(results[0].Matches), len(want))
	}
	for i, m := range results[0].Matches {
		if m.Offset != want[i] {
			t.Errorf("match %d offset = %v, want %v", i, m.Offset, want[i])
		}
	}
}

func TestSearch_SameSizeSingleOffset(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	bg := randomGrid(t, 6, 5, rng)

	pix := make([]uint8, 6*5*Channels)
	for j := 0; j < 5; j++ {
		copy(pix[j*6*Channels:], bg.Row(0, j, 6))
	}
	ov := mustGrid(t, 6, 5, pix)

	results := Search(context.Background(), bg, singleOverlay(ov), DefaultOptions())
	best, ok := results[0].Best()
	if !ok {
		t.Fatal("no best match")
	}
	if best.Offset != (Offset{}) {
		t.Errorf("offset = %v, want (0,0)", best.Offset)
	}
	if !best.Perfect {
		t.Error("same-size identical overlay must be a perfect match")
	}
}

func TestSearch_OverlayTooLargeIsolated(t *testing.T) {
	bg := backgroundWithSquare(t, 4, 4, 1, 1, 2)
	good := solidGrid(t, 2, 2, 255, 255, 255, 255)
	tooWide := solidGrid(t, 5, 2, 0, 0, 0, 255)

	overlays := []Overlay{
		{ID: "too-wide", Grid: tooWide},
		{ID: "good", Grid: good},
	}
	results := Search(context.Background(), bg, overlays, DefaultOptions())

	var tlErr *OverlayTooLargeError
	if !errors.As(results[0].Err, &tlErr) {
		t.Fatalf("results[0].Err = %v, want OverlayTooLargeError", results[0].Err)
	}
	if len(results[0].Matches) != 0 {
		t.Error("oversized overlay must produce no matches")
	}

	if results[1].Err != nil {
		t.Fatalf("good overlay failed: %v", results[1].Err)
	}
	best, ok := results[1].Best()
	if !ok || best.Offset != (Offset{X: 1, Y: 1}) {
		t.Errorf("good overlay best = %v ok=%v, want (1,1)", best.Offset, ok)
	}
}

func TestSearch_AllTransparentUndefined(t *testing.T) {
	bg := solidGrid(t, 4, 4, 0, 0, 0, 255)
	ov := solidGrid(t, 2, 2, 255, 255, 255, 255)

	white := White
	opts := DefaultOptions()
	opts.Transparent = &white
	results := Search(context.Background(), bg, singleOverlay(ov), opts)

	if results[0].Err != nil {
		t.Fatalf("undefined score is not an error, got %v", results[0].Err)
	}
	if len(results[0].Matches) != 1 {
		t.Fatalf("got %d matches, want 1 sentinel", len(results[0].Matches))
	}
	m := results[0].Matches[0]
	if !m.Undefined || m.Compared != 0 {
		t.Errorf("sentinel = %+v, want Undefined with Compared 0", m)
	}
	if _, ok := results[0].Best(); ok {
		t.Error("undefined sentinel must not count as a best match")
	}
}

func TestSearch_MaskChangesWinner(t *testing.T) {
	// Background: white square at (2,2). Overlay: white 2x2 with one red
	// pixel. Unmasked, the red pixel drags every offset away from perfect;
	// masking red by key color makes (2,2) a perfect match.
	bg := backgroundWithSquare(t, 6, 6, 2, 2, 2)

	pix := make([]uint8, 2*2*Channels)
	paintRect(pix, 2, 0, 0, 2, 2, 255, 255, 255, 255)
	paintRect(pix, 2, 1, 1, 1, 1, 255, 0, 0, 255)
	ov := mustGrid(t, 2, 2, pix)

	plain := Search(context.Background(), bg, singleOverlay(ov), DefaultOptions())
	if best, _ := plain[0].Best(); best.Perfect {
		t.Error("unmasked overlay must not match perfectly")
	}

	key := TransparentColor{R: 255, G: 0, B: 0}
	opts := DefaultOptions()
	opts.Transparent = &key
	masked := Search(context.Background(), bg, singleOverlay(ov), opts)

	best, ok := masked[0].Best()
	if !ok {
		t.Fatal("no best match")
	}
	if best.Offset != (Offset{X: 2, Y: 2}) || !best.Perfect {
		t.Errorf("masked best = %+v, want perfect match at (2,2)", best)
	}
	if best.Compared != 3 {
		t.Errorf("compared = %d, want 3", best.Compared)
	}
}

func TestSearch_PerOverlayTransparentOverridesGlobal(t *testing.T) {
	// Background: white square at (2,2). Two copies of the same white
	// overlay, one carrying its own red key color. The global key is white,
	// so the plain copy masks itself to nothing while the red-keyed copy
	// keeps all pixels and matches the square.
	bg := backgroundWithSquare(t, 6, 6, 2, 2, 2)
	ov := solidGrid(t, 2, 2, 255, 255, 255, 255)

	red := TransparentColor{R: 255, G: 0, B: 0}
	overlays := []Overlay{
		{ID: "global-key", Grid: ov},
		{ID: "own-key", Grid: ov, Transparent: &red},
	}

	white := White
	opts := DefaultOptions()
	opts.Transparent = &white
	results := Search(context.Background(), bg, overlays, opts)

	if _, ok := results[0].Best(); ok {
		t.Error("overlay under the global white key must be fully masked")
	}

	best, ok := results[1].Best()
	if !ok {
		t.Fatal("overlay with its own key color produced no match")
	}
	if best.Offset != (Offset{X: 2, Y: 2}) || !best.Perfect {
		t.Errorf("best = %+v, want perfect match at (2,2)", best)
	}
	if best.Compared != 4 {
		t.Errorf("compared = %d, want 4 (red key masks nothing here)", best.Compared)
	}
}

// Pruning must be invisible in the output: the pruned path and the naive
// path report identical offsets and scores for random data.
func TestSearch_PrunedMatchesNaive(t *testing.T) {
	rng := rand.New(rand.NewSource(1234))
	bg := randomGrid(t, 24, 18, rng)
	overlays := []Overlay{
		{ID: "a", Grid: randomGrid(t, 4, 4, rng)},
		{ID: "b", Grid: randomGrid(t, 7, 3, rng)},
		{ID: "c", Grid: randomGrid(t, 2, 9, rng)},
	}

	for _, topK := range []int{1, 3, 10} {
		pruned := DefaultOptions()
		pruned.TopK = topK
		naive := pruned
		naive.Naive = true

		got := Search(context.Background(), bg, overlays, pruned)
		want := Search(context.Background(), bg, overlays, naive)

		for i := range overlays {
			if len(got[i].Matches) != len(want[i].Matches) {
				t.Fatalf("topK=%d overlay %s: %d matches pruned vs %d naive",
					topK, overlays[i].ID, len(got[i].Matches), len(want[i].Matches))
			}
			for j := range got[i].Matches {
				g, w := got[i].Matches[j], want[i].Matches[j]
				if g.Offset != w.Offset || g.Score != w.Score {
					t.Errorf("topK=%d overlay %s match %d: pruned %v/%v, naive %v/%v",
						topK, overlays[i].ID, j, g.Offset, g.Score, w.Offset, w.Score)
				}
			}
		}
	}
}

// Results must not depend on the worker count.
func TestSearch_DeterministicAcrossWorkers(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	bg := randomGrid(t, 20, 20, rng)
	overlays := make([]Overlay, 6)
	for i := range overlays {
		overlays[i] = Overlay{ID: string(rune('a' + i)), Grid: randomGrid(t, 3, 3, rng)}
	}

	opts := DefaultOptions()
	opts.TopK = 2
	opts.Workers = 1
	reference := Search(context.Background(), bg, overlays, opts)

	for _, workers := range []int{2, 4, 16} {
		opts.Workers = workers
		got := Search(context.Background(), bg, overlays, opts)
		for i := range overlays {
			if got[i].OverlayID != reference[i].OverlayID {
				t.Fatalf("workers=%d: result %d is %s, want %s (input order lost)",
					workers, i, got[i].OverlayID, reference[i].OverlayID)
			}
			for j := range reference[i].Matches {
				g, w := got[i].Matches[j], reference[i].Matches[j]
				if g.Offset != w.Offset || g.Score != w.Score {
					t.Errorf("workers=%d overlay %s match %d differs: %v vs %v",
						workers, overlays[i].ID, j, g, w)
				}
			}
		}
	}
}

func TestSearch_ContextCancelled(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	bg := randomGrid(t, 30, 30, rng)
	ov := randomGrid(t, 4, 4, rng)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := Search(ctx, bg, singleOverlay(ov), DefaultOptions())
	if !errors.Is(results[0].Err, context.Canceled) {
		t.Errorf("Err = %v, want context.Canceled", results[0].Err)
	}
	if len(results[0].Matches) != 0 {
		t.Error("cancelled overlay must not report partial matches")
	}
}

func TestInsertCandidate(t *testing.T) {
	var best []candidate

	best = insertCandidate(best, candidate{off: Offset{0, 0}, raw: 10}, 2)
	best = insertCandidate(best, candidate{off: Offset{1, 0}, raw: 5}, 2)
	best = insertCandidate(best, candidate{off: Offset{2, 0}, raw: 10}, 2)

	if len(best) != 2 {
		t.Fatalf("len = %d, want 2", len(best))
	}
	if best[0].raw != 5 || best[1].raw != 10 {
		t.Errorf("scores = [%d %d], want [5 10]", best[0].raw, best[1].raw)
	}
	// Equal score must not displace the earlier offset.
	if best[1].off != (Offset{0, 0}) {
		t.Errorf("kept offset = %v, want (0,0) (earlier offset wins ties)", best[1].off)
	}

	// Strictly better score displaces the worst entry.
	best = insertCandidate(best, candidate{off: Offset{3, 0}, raw: 1}, 2)
	if best[0].raw != 1 || best[1].raw != 5 {
		t.Errorf("scores = [%d %d], want [1 5]", best[0].raw, best[1].raw)
	}
}
