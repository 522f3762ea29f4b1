package match

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FrameSource identifies one MQTT topic delivering background frames.
type FrameSource struct {
	ID    string `yaml:"id" json:"id"`
	Topic string `yaml:"topic" json:"topic"`
}

// OverlayConfig names one overlay image to search for.
type OverlayConfig struct {
	ID          string `yaml:"id,omitempty" json:"id,omitempty"`                   // defaults to the file's base name
	Path        string `yaml:"path" json:"path"`                                   // image file or glob pattern
	Transparent string `yaml:"transparent,omitempty" json:"transparent,omitempty"` // hex key color, e.g. "ffffff"
}

// SearchConfig holds the search tuning knobs shared by all overlays.
type SearchConfig struct {
	TopK             int     `yaml:"topK,omitempty" json:"topK,omitempty"`
	Tolerance        float64 `yaml:"tolerance,omitempty" json:"tolerance,omitempty"`
	Workers          int     `yaml:"workers,omitempty" json:"workers,omitempty"`
	WhiteTransparent bool    `yaml:"whiteTransparent,omitempty" json:"whiteTransparent,omitempty"`
	Distinct         bool    `yaml:"distinct,omitempty" json:"distinct,omitempty"`
}

// MQTTConfig holds MQTT connection settings.
type MQTTConfig struct {
	Broker        string `yaml:"broker" json:"broker"`
	PublishPrefix string `yaml:"publishPrefix" json:"publishPrefix"`
	ClientID      string `yaml:"clientId" json:"clientId"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`
}

// Config represents the full service configuration file.
type Config struct {
	MQTT     MQTTConfig      `yaml:"mqtt" json:"mqtt"`
	Sources  []FrameSource   `yaml:"sources" json:"sources"`
	Overlays []OverlayConfig `yaml:"overlays" json:"overlays"`
	Search   SearchConfig    `yaml:"search,omitempty" json:"search,omitempty"`
}

// GetSourceByID returns the frame source config for the given ID.
func (c *Config) GetSourceByID(id string) *FrameSource {
	for i := range c.Sources {
		if c.Sources[i].ID == id {
			return &c.Sources[i]
		}
	}
	return nil
}

// Options builds search Options from the config, applying defaults for
// unset fields.
func (c *Config) Options() (Options, error) {
	opts := DefaultOptions()
	if c.Search.TopK > 0 {
		opts.TopK = c.Search.TopK
	}
	if c.Search.Workers > 0 {
		opts.Workers = c.Search.Workers
	}
	opts.Tolerance = c.Search.Tolerance
	if c.Search.WhiteTransparent {
		white := White
		opts.Transparent = &white
	}
	return opts, nil
}

// LoadConfig loads the service configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	// Validate required fields
	if config.MQTT.Broker == "" {
		return nil, fmt.Errorf("mqtt.broker is required")
	}
	if len(config.Sources) == 0 {
		return nil, fmt.Errorf("at least one frame source must be defined")
	}
	if len(config.Overlays) == 0 {
		return nil, fmt.Errorf("at least one overlay must be defined")
	}

	for i, src := range config.Sources {
		if src.ID == "" {
			return nil, fmt.Errorf("sources[%d].id is required", i)
		}
		if src.Topic == "" {
			return nil, fmt.Errorf("sources[%d].topic is required for %s", i, src.ID)
		}
	}
	for i, oc := range config.Overlays {
		if oc.Path == "" {
			return nil, fmt.Errorf("overlays[%d].path is required", i)
		}
		if oc.Transparent != "" {
			if _, err := ParseHexColor(oc.Transparent); err != nil {
				return nil, fmt.Errorf("overlays[%d].transparent: %w", i, err)
			}
		}
	}

	return &config, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// LoadConfiguredOverlays expands and loads every overlay named in the
// config. An entry's transparent color is attached to each overlay it
// loads, where it overrides the search-wide key color at mask time.
func LoadConfiguredOverlays(c *Config) ([]Overlay, error) {
	overlays := make([]Overlay, 0, len(c.Overlays))
	for i, oc := range c.Overlays {
		paths, err := ExpandPatterns([]string{oc.Path})
		if err != nil {
			return nil, fmt.Errorf("overlays[%d]: %w", i, err)
		}
		loaded, err := LoadOverlays(paths)
		if err != nil {
			return nil, fmt.Errorf("overlays[%d]: %w", i, err)
		}
		if oc.ID != "" && len(loaded) == 1 {
			loaded[0].ID = oc.ID
		}
		if oc.Transparent != "" {
			tc, err := ParseHexColor(oc.Transparent)
			if err != nil {
				return nil, fmt.Errorf("overlays[%d].transparent: %w", i, err)
			}
			for j := range loaded {
				loaded[j].Transparent = &tc
			}
		}
		overlays = append(overlays, loaded...)
	}
	return overlays, nil
}
