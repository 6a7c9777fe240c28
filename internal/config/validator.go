package config

import (
	"fmt"
	"regexp"
)

var instanceIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

// Validate checks if the configuration is valid
func Validate(cfg *Config) error {
	if cfg.InstanceID == "" {
		return fmt.Errorf("instance_id is required")
	}
	if !instanceIDPattern.MatchString(cfg.InstanceID) {
		return fmt.Errorf("instance_id must match pattern [a-z0-9-]+")
	}

	if cfg.Camera.FPS <= 0 {
		return fmt.Errorf("camera.fps must be > 0")
	}
	if cfg.Camera.FPS > 60 {
		return fmt.Errorf("camera.fps must be <= 60, got %d", cfg.Camera.FPS)
	}
	if cfg.Camera.Width <= 0 || cfg.Camera.Height <= 0 {
		return fmt.Errorf("camera resolution must be positive, got %dx%d",
			cfg.Camera.Width, cfg.Camera.Height)
	}

	if cfg.Classify.IntervalMS < 0 {
		return fmt.Errorf("classify.interval_ms must be >= 0")
	}
	if cfg.Classify.MinConfidence < 0 || cfg.Classify.MinConfidence > 1 {
		return fmt.Errorf("classify.min_confidence must be in [0,1], got %.2f",
			cfg.Classify.MinConfidence)
	}

	if cfg.Game.AvailabilityTTLS <= 0 {
		return fmt.Errorf("game.availability_ttl_s must be > 0")
	}
	if cfg.Game.PointsPerFind < 0 {
		return fmt.Errorf("game.points_per_find must be >= 0")
	}

	// MQTT is optional: validate topics only when a broker is configured
	if cfg.MQTT.Broker != "" {
		if cfg.MQTT.Topics.Events == "" {
			return fmt.Errorf("mqtt.topics.events is required when mqtt.broker is set")
		}
		if cfg.MQTT.QoS == nil {
			cfg.MQTT.QoS = map[string]byte{
				"challenge_completed": 1,
				"health":              0,
			}
		}
	}

	return nil
}
