package match

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func sampleResults() []OverlayResult {
	return []OverlayResult{
		{
			OverlayID: "logo.png",
			Width:     4,
			Height:    3,
			Matches: []MatchResult{
				{Offset: Offset{X: 7, Y: 2}, Score: 0, Compared: 12, Perfect: true, BorderMatch: true, Confidence: 0.9},
				{Offset: Offset{X: 1, Y: 5}, Score: 3.25, Compared: 12, Confidence: 0.2},
			},
		},
		{
			OverlayID: "ghost.png",
			Width:     2,
			Height:    2,
			Matches:   []MatchResult{{Undefined: true}},
		},
		{
			OverlayID: "huge.png",
			Width:     99,
			Height:    99,
			Err:       &OverlayTooLargeError{BackgroundW: 10, BackgroundH: 10, OverlayW: 99, OverlayH: 99},
		},
	}
}

func TestBuildReport(t *testing.T) {
	rep := BuildReport(ImageInfo{Filename: "bg.png", Width: 10, Height: 10}, sampleResults(), "ffffff")

	if rep.Version != Version {
		t.Errorf("version = %q, want %q", rep.Version, Version)
	}
	if rep.Transparent != "ffffff" {
		t.Errorf("transparent = %q", rep.Transparent)
	}
	if len(rep.Overlays) != 3 {
		t.Fatalf("got %d overlay reports, want 3", len(rep.Overlays))
	}

	logo := rep.Overlays[0]
	if logo.Overlay.Filename != "logo.png" || logo.Overlay.Width != 4 {
		t.Errorf("logo info = %+v", logo.Overlay)
	}
	if logo.Matches[0].Score == nil || *logo.Matches[0].Score != 0 {
		t.Error("perfect match must carry score 0, not nil")
	}
	if !logo.Matches[0].Perfect || !logo.Matches[0].BorderMatch {
		t.Error("perfect/border flags lost in report")
	}

	if rep.Overlays[1].Matches[0].Score != nil {
		t.Error("undefined score must serialize as null, never 0")
	}

	if rep.Overlays[2].Error == "" {
		t.Error("failed overlay must carry an error message")
	}
}

func TestReportWriteJSON(t *testing.T) {
	rep := BuildReport(ImageInfo{Filename: "bg.png", Width: 10, Height: 10}, sampleResults(), "")

	var buf bytes.Buffer
	if err := rep.WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	var decoded Report
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Background.Filename != "bg.png" {
		t.Errorf("background = %+v", decoded.Background)
	}
	if decoded.Overlays[1].Matches[0].Score != nil {
		t.Error("undefined score must decode back to nil")
	}
	if !strings.Contains(buf.String(), `"score": null`) {
		t.Error("undefined score must appear as null in the JSON text")
	}
}

func TestReportWriteText(t *testing.T) {
	rep := BuildReport(ImageInfo{Filename: "bg.png", Width: 10, Height: 10}, sampleResults(), "ffffff")

	var buf bytes.Buffer
	if err := rep.WriteText(&buf); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"bg.png (10x10)",
		"logo.png (4x3):",
		"(7, 2)",
		"[perfect]",
		"score undefined",
		"error: overlay 99x99 exceeds background 10x10",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text report missing %q:\n%s", want, out)
		}
	}
}
