package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/kottz/sickan/match"
)

// Version is set at build time via -ldflags
var Version = "dev"

var (
	backgroundFile   = flag.String("background", "", "Background image to search in")
	overlayPatterns  = flag.String("overlays", "", "Comma-separated overlay images or glob patterns")
	whiteTransparent = flag.Bool("white-transparent", false, "Treat pure white overlay pixels as transparent")
	transparentColor = flag.String("transparent-color", "", "Hex key color treated as transparent (e.g. ff00ff)")
	tolerance        = flag.Float64("tolerance", 0, "Perceptual distance tolerance for the key color (0 = exact)")
	topK             = flag.Int("top-k", 1, "Number of best offsets reported per overlay")
	printFormat      = flag.String("print-format", "text", "Report format: text or json")
	annotateFile     = flag.String("annotate", "", "Write annotated PNG with match rectangles to this path")
	annotateSVGFile  = flag.String("annotate-svg", "", "Write annotated SVG with match rectangles to this path")
	workers          = flag.Int("workers", 0, "Concurrent overlay searches (0 = number of CPUs)")
	naive            = flag.Bool("naive", false, "Disable search pruning (slow, for verification)")
	distinct         = flag.Bool("distinct", false, "Suppress matches that overlap a better match")
	orderByScore     = flag.Bool("order-by-score", false, "Order overlays by best score instead of input order")
	configFile       = flag.String("config", "config.yaml", "Path to configuration file (service mode)")
	serveMode        = flag.Bool("serve", false, "Run MQTT service mode for streamed frames")
	httpMode         = flag.Bool("http", false, "Enable HTTP server for serving results")
	httpPort         = flag.Int("http-port", 8080, "HTTP server port (default 8080)")
)

func main() {
	flag.Parse()
	match.Version = Version
	fmt.Fprintf(os.Stderr, "sickan version: %s\n", Version)

	if *serveMode || *httpMode {
		runService()
		return
	}

	if *backgroundFile == "" || *overlayPatterns == "" {
		fmt.Println("sickan finds the offsets where overlay images best match a background")
		fmt.Println()
		fmt.Println("Usage:")
		fmt.Println("  sickan -background bg.png -overlays 'icons/*.png'")
		fmt.Println("  sickan -background bg.png -overlays a.png,b.png -top-k 3 -print-format json")
		fmt.Println("  sickan -serve -config config.yaml     (MQTT frame service)")
		fmt.Println("  sickan -serve -http -http-port 8080   (service with HTTP endpoints)")
		fmt.Println()
		flag.PrintDefaults()
		os.Exit(2)
	}

	runSearch()
}

// runSearch performs a one-shot search and prints the report
func runSearch() {
	background, err := match.LoadGrid(*backgroundFile)
	if err != nil {
		log.Fatalf("Error loading background: %v", err)
	}

	paths, err := match.ExpandPatterns(strings.Split(*overlayPatterns, ","))
	if err != nil {
		log.Fatalf("Error expanding overlay patterns: %v", err)
	}
	overlays, err := match.LoadOverlays(paths)
	if err != nil {
		log.Fatalf("Error loading overlays: %v", err)
	}

	opts, transparentHex, err := buildOptions()
	if err != nil {
		log.Fatalf("Error in options: %v", err)
	}

	results := match.Search(context.Background(), background, overlays, opts)

	if *distinct {
		for i := range results {
			if results[i].Err == nil {
				results[i].Matches = match.Distinct(results[i].Matches, results[i].Width, results[i].Height)
			}
		}
	}

	order := match.OrderInput
	if *orderByScore {
		order = match.OrderScore
	}
	results = match.Rank(results, order)

	report := match.BuildReport(match.ImageInfo{
		Filename: *backgroundFile,
		Width:    background.Width(),
		Height:   background.Height(),
	}, results, transparentHex)

	switch *printFormat {
	case "json":
		err = report.WriteJSON(os.Stdout)
	case "text":
		err = report.WriteText(os.Stdout)
	default:
		log.Fatalf("Invalid print format: %s (must be text or json)", *printFormat)
	}
	if err != nil {
		log.Fatalf("Error writing report: %v", err)
	}

	if *annotateFile != "" {
		annotator := match.NewAnnotator(background, results)
		if err := annotator.SavePNG(*annotateFile); err != nil {
			log.Fatalf("Error writing annotated PNG: %v", err)
		}
		fmt.Fprintf(os.Stderr, "Created annotated PNG: %s\n", *annotateFile)
	}

	if *annotateSVGFile != "" {
		f, err := os.Create(*annotateSVGFile)
		if err != nil {
			log.Fatalf("Error creating SVG file: %v", err)
		}
		va := match.NewVectorAnnotator(background, results)
		renderErr := va.RenderToSVG(f)
		if closeErr := f.Close(); renderErr == nil {
			renderErr = closeErr
		}
		if renderErr != nil {
			log.Fatalf("Error writing annotated SVG: %v", renderErr)
		}
		fmt.Fprintf(os.Stderr, "Created annotated SVG: %s\n", *annotateSVGFile)
	}

	// A missing best match (every overlay errored or scored undefined) is an
	// operational failure for scripted callers.
	for _, res := range results {
		if _, ok := res.Best(); ok {
			return
		}
	}
	os.Exit(1)
}

// buildOptions assembles search options from CLI flags. It returns the
// effective transparent color in hex form for the report, or empty.
func buildOptions() (match.Options, string, error) {
	opts := match.DefaultOptions()
	opts.TopK = *topK
	opts.Workers = *workers
	opts.Naive = *naive
	opts.Tolerance = *tolerance

	var transparentHex string
	if *transparentColor != "" {
		tc, err := match.ParseHexColor(*transparentColor)
		if err != nil {
			return opts, "", err
		}
		opts.Transparent = &tc
		transparentHex = *transparentColor
	} else if *whiteTransparent {
		white := match.White
		opts.Transparent = &white
		transparentHex = "ffffff"
	}

	return opts, transparentHex, nil
}
