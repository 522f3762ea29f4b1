package match

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// LoadGrid decodes an image file into a pixel grid. PNG, JPEG, GIF, BMP,
// TIFF and WebP are supported.
func LoadGrid(path string) (*PixelGrid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return GridFromImage(img)
}

// LoadOverlays loads each path into an Overlay whose ID is the file's base
// name. Paths are typically the output of ExpandPatterns.
func LoadOverlays(paths []string) ([]Overlay, error) {
	overlays := make([]Overlay, 0, len(paths))
	for _, p := range paths {
		grid, err := LoadGrid(p)
		if err != nil {
			return nil, fmt.Errorf("overlay %s: %w", p, err)
		}
		overlays = append(overlays, Overlay{ID: filepath.Base(p), Grid: grid})
	}
	return overlays, nil
}

// ExpandPatterns expands shell glob patterns into file paths. Arguments
// without glob metacharacters pass through untouched, so missing literal
// paths still surface as open errors rather than silently vanishing.
// Matches within one pattern are sorted for stable run-to-run ordering.
func ExpandPatterns(patterns []string) ([]string, error) {
	paths := make([]string, 0, len(patterns))
	for _, pat := range patterns {
		if !strings.ContainsAny(pat, "*?[") {
			paths = append(paths, pat)
			continue
		}
		matches, err := filepath.Glob(pat)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pat, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("pattern %q matched no files", pat)
		}
		sort.Strings(matches)
		paths = append(paths, matches...)
	}
	return paths, nil
}
