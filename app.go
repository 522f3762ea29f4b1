package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/kottz/sickan/match"
)

// App encapsulates the service state and dependencies
type App struct {
	Config       *match.Config
	Overlays     []match.Overlay
	SearchOpts   match.Options
	StateTracker *match.StateTracker
	MQTTClient   *match.MQTTClient
	Publisher    *match.Publisher

	// CLI flags (effectively dependencies)
	ConfigFile string
	HttpPort   int
	ServeMode  bool
	HttpMode   bool
}

// NewApp creates a new App instance
func NewApp() *App {
	return &App{
		StateTracker: match.NewStateTracker(),
	}
}

// LoadConfiguration loads the config file, the overlays it names, and the
// search options derived from it
func (a *App) LoadConfiguration() error {
	config, err := match.LoadConfig(a.ConfigFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.Config = config

	overlays, err := match.LoadConfiguredOverlays(config)
	if err != nil {
		return fmt.Errorf("loading overlays: %w", err)
	}
	a.Overlays = overlays

	opts, err := config.Options()
	if err != nil {
		return fmt.Errorf("building search options: %w", err)
	}
	a.SearchOpts = opts

	return nil
}

// HandleFrame runs the search for one received frame and records the result
// It is the FrameHandler wired into the MQTT client
func (a *App) HandleFrame(sourceID string, rawPayload []byte, grid *match.PixelGrid, err error) {
	if err != nil {
		log.Printf("Error receiving frame for %s: %v", sourceID, err)
		return
	}

	results := match.Search(context.Background(), grid, a.Overlays, a.SearchOpts)

	if a.Config.Search.Distinct {
		for i := range results {
			if results[i].Err == nil {
				results[i].Matches = match.Distinct(results[i].Matches, results[i].Width, results[i].Height)
			}
		}
	}

	transparentHex := ""
	if a.Config.Search.WhiteTransparent {
		transparentHex = "ffffff"
	}
	report := match.BuildReport(match.ImageInfo{
		Filename: sourceID,
		Width:    grid.Width(),
		Height:   grid.Height(),
	}, results, transparentHex)

	a.StateTracker.Update(sourceID, grid, results, report)

	log.Printf("%s: searched %d overlays in %dx%d frame", sourceID, len(a.Overlays), grid.Width(), grid.Height())

	if a.Publisher != nil {
		if err := a.Publisher.PublishReport(sourceID, report); err != nil {
			log.Printf("Error publishing report for %s: %v", sourceID, err)
		}
	}
}

// runService starts the combined MQTT and/or HTTP service
func runService() {
	fmt.Println("Starting sickan service...")

	app := NewApp()
	app.ConfigFile = *configFile
	app.HttpPort = *httpPort
	app.ServeMode = *serveMode
	app.HttpMode = *httpMode

	if err := app.LoadConfiguration(); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Printf("Loaded config from %s (%d sources, %d overlays)",
		app.ConfigFile, len(app.Config.Sources), len(app.Overlays))

	if app.ServeMode {
		mqttClient, err := match.InitMQTT(app.Config, app.HandleFrame)
		if err != nil {
			log.Fatalf("Failed to initialize MQTT: %v", err)
		}
		if mqttClient == nil {
			log.Fatal("MQTT broker not configured in config.yaml")
		}
		app.MQTTClient = mqttClient
		app.Publisher = match.NewPublisher(mqttClient.GetClient(), app.Config.MQTT.PublishPrefix)
		fmt.Println("MQTT report publisher initialized")
	}

	if app.HttpMode {
		httpServer := newHTTPServer(app.StateTracker, app.Config)
		go func() {
			addr := fmt.Sprintf(":%d", app.HttpPort)
			fmt.Printf("HTTP server starting on %s\n", addr)
			if err := http.ListenAndServe(addr, httpServer); err != nil {
				log.Fatalf("HTTP server error: %v", err)
			}
		}()
	}

	fmt.Println("\nService Running")
	fmt.Println("===============")

	if app.ServeMode {
		fmt.Println("\nMQTT:")
		fmt.Println("  Subscribed topics:")
		for _, src := range app.Config.Sources {
			fmt.Printf("    - %s (%s)\n", src.Topic, src.ID)
		}
		publishPrefix := app.Publisher.Prefix()
		fmt.Printf("  Publishing to: %s/{sourceID}\n", publishPrefix)
		fmt.Printf("  Combined reports: %s/reports\n", publishPrefix)
	}

	if app.HttpMode {
		fmt.Printf("\nHTTP endpoints (port %d):\n", app.HttpPort)
		fmt.Println("  GET /health                      - Health check")
		fmt.Println("  GET /results.json?source=ID      - Latest search report")
		fmt.Println("  GET /annotated.png?source=ID     - Latest frame with match rectangles")
		fmt.Println("  GET /annotated.svg?source=ID     - Match rectangles as SVG")
	}

	fmt.Println("\nPress Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan

	fmt.Println("\nShutting down service...")
	if app.MQTTClient != nil {
		app.MQTTClient.Disconnect()
	}
	fmt.Println("Service stopped")
}
