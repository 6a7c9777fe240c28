package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config represents the complete focus game configuration
type Config struct {
	InstanceID       string          `yaml:"instance_id" env:"FOCUS_INSTANCE_ID"`
	ShutdownTimeoutS int             `yaml:"shutdown_timeout_s"` // Graceful shutdown timeout in seconds (default: 5)
	Camera           CameraConfig    `yaml:"camera"`
	Classify         ClassifyConfig  `yaml:"classify"`
	Game             GameConfig      `yaml:"game"`
	Predictor        PredictorConfig `yaml:"predictor"`
	MQTT             MQTTConfig      `yaml:"mqtt"`
}

// CameraConfig contains capture device settings
type CameraConfig struct {
	// Device is the video device path (e.g. /dev/video0). Empty selects
	// the first rear-facing device reported by the source.
	Device string `yaml:"device" env:"FOCUS_CAMERA_DEVICE"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	FPS    int    `yaml:"fps"`
	// Mock replaces the hardware device with a synthetic frame generator
	Mock bool `yaml:"mock" env:"FOCUS_CAMERA_MOCK"`
}

// ClassifyConfig contains frame classifier settings
type ClassifyConfig struct {
	// IntervalMS is the throttle window: at most one frame is classified
	// per interval, intervening frames are dropped (default: 300)
	IntervalMS int `yaml:"interval_ms"`
	// MinConfidence drops predictions below this score (default: 0.10)
	MinConfidence float64 `yaml:"min_confidence"`
	// ExtraStoplist extends the built-in generic-term stoplist
	ExtraStoplist []string `yaml:"extra_stoplist"`
}

// GameConfig contains challenge/scoring settings
type GameConfig struct {
	// AvailabilityTTLS is the trailing window in seconds a label stays
	// available after last being seen (default: 30)
	AvailabilityTTLS int `yaml:"availability_ttl_s"`
	// SettleMS is the delay between session start and engine start (default: 500)
	SettleMS int `yaml:"settle_ms"`
	// AdvanceDelayMS is the success-display delay before the next
	// challenge is selected (default: 1000)
	AdvanceDelayMS int `yaml:"advance_delay_ms"`
	// PointsPerFind is awarded per completed challenge (default: 10)
	PointsPerFind int `yaml:"points_per_find"`
}

// PredictorConfig selects the label predictor backend
type PredictorConfig struct {
	// Command launches the external model worker; empty selects the
	// scripted predictor (useful together with camera.mock)
	Command string   `yaml:"command" env:"FOCUS_PREDICTOR_COMMAND"`
	Args    []string `yaml:"args"`
	// Script is the label rotation used by the scripted predictor
	Script []string `yaml:"script"`
}

// MQTTConfig contains optional telemetry broker settings.
// An empty broker disables event emission entirely.
type MQTTConfig struct {
	Broker string          `yaml:"broker" env:"FOCUS_MQTT_BROKER"`
	Topics MQTTTopics      `yaml:"topics"`
	QoS    map[string]byte `yaml:"qos"`
}

// MQTTTopics contains topic templates
type MQTTTopics struct {
	Events string `yaml:"events"`
	Health string `yaml:"health"`
}

// Load reads and parses a YAML configuration file, applies environment
// overrides (FOCUS_* variables), fills defaults and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Environment overrides take precedence over the file
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment overrides: %w", err)
	}

	cfg.applyDefaults()

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with all defaults applied, suitable
// for embedding the game without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.InstanceID == "" {
		c.InstanceID = "focus-quest"
	}
	if c.ShutdownTimeoutS == 0 {
		c.ShutdownTimeoutS = 5
	}
	if c.Camera.Width == 0 || c.Camera.Height == 0 {
		c.Camera.Width, c.Camera.Height = 640, 480
	}
	if c.Camera.FPS == 0 {
		c.Camera.FPS = 30
	}
	if c.Classify.IntervalMS == 0 {
		c.Classify.IntervalMS = 300
	}
	if c.Classify.MinConfidence == 0 {
		c.Classify.MinConfidence = 0.10
	}
	if c.Game.AvailabilityTTLS == 0 {
		c.Game.AvailabilityTTLS = 30
	}
	if c.Game.SettleMS == 0 {
		c.Game.SettleMS = 500
	}
	if c.Game.AdvanceDelayMS == 0 {
		c.Game.AdvanceDelayMS = 1000
	}
	if c.Game.PointsPerFind == 0 {
		c.Game.PointsPerFind = 10
	}
	if c.MQTT.Topics.Events == "" {
		c.MQTT.Topics.Events = "focus/events"
	}
	if c.MQTT.Topics.Health == "" {
		c.MQTT.Topics.Health = "focus/health"
	}
}
