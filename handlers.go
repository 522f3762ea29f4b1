package main

import (
	"encoding/json"
	"image/png"
	"log"
	"net/http"
	"time"

	"github.com/kottz/sickan/match"
)

// newHTTPServer creates an HTTP server with all endpoints
func newHTTPServer(stateTracker *match.StateTracker, config *match.Config) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[HTTP] /health request from %s", r.RemoteAddr)
		w.Header().Set("Content-Type", "application/json")
		status := struct {
			Status     string    `json:"status"`
			Timestamp  time.Time `json:"timestamp"`
			HasResults bool      `json:"hasResults"`
		}{
			Status:     "ok",
			Timestamp:  time.Now(),
			HasResults: stateTracker.HasResults(),
		}
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Printf("Error encoding health status: %v", err)
		}
	})

	// Latest report endpoint
	mux.HandleFunc("/results.json", func(w http.ResponseWriter, r *http.Request) {
		state := sourceState(stateTracker, config, r)
		if state == nil {
			http.Error(w, "No results available", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		if err := state.Report.WriteJSON(w); err != nil {
			log.Printf("Error encoding report JSON: %v", err)
		}
	})

	// Annotated frame endpoint (raster)
	mux.HandleFunc("/annotated.png", func(w http.ResponseWriter, r *http.Request) {
		state := sourceState(stateTracker, config, r)
		if state == nil {
			http.Error(w, "No results available", http.StatusServiceUnavailable)
			return
		}

		annotator := match.NewAnnotator(state.Frame, state.Results)
		img := annotator.Render()

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		if err := png.Encode(w, img); err != nil {
			log.Printf("Error encoding annotated PNG: %v", err)
		}
	})

	// Annotated frame endpoint (vector)
	mux.HandleFunc("/annotated.svg", func(w http.ResponseWriter, r *http.Request) {
		state := sourceState(stateTracker, config, r)
		if state == nil {
			http.Error(w, "No results available", http.StatusServiceUnavailable)
			return
		}

		va := match.NewVectorAnnotator(state.Frame, state.Results)

		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "no-cache")
		if err := va.RenderToSVG(w); err != nil {
			log.Printf("Error encoding annotated SVG: %v", err)
		}
	})

	return mux
}

// sourceState resolves the ?source= query parameter to the tracked state.
// Without the parameter it falls back to the first configured source, so
// single-source deployments need no query string.
func sourceState(stateTracker *match.StateTracker, config *match.Config, r *http.Request) *match.SourceState {
	sourceID := r.URL.Query().Get("source")
	if sourceID == "" && len(config.Sources) > 0 {
		sourceID = config.Sources[0].ID
	}
	return stateTracker.Get(sourceID)
}
