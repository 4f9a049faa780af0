// internal/config/validate.go
package config

import (
	"errors"
	"fmt"
	"strings"
)

var knownLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil config")
	}

	// ------------------------------------------------------------
	// SOURCE
	// ------------------------------------------------------------

	if strings.TrimSpace(cfg.Source.Host) == "" {
		return errors.New("source.host is required")
	}
	if cfg.Source.Port < 1 || cfg.Source.Port > 65535 {
		return fmt.Errorf("source.port %d out of range 1..65535", cfg.Source.Port)
	}
	if cfg.Source.UnitID < 0 || cfg.Source.UnitID > 247 {
		return fmt.Errorf("source.unit_id %d out of range 0..247", cfg.Source.UnitID)
	}
	if cfg.Source.TimeoutMs < 0 {
		return fmt.Errorf("source.timeout_ms must be >= 0, got %d", cfg.Source.TimeoutMs)
	}

	// ------------------------------------------------------------
	// POLL
	// ------------------------------------------------------------

	if cfg.Poll.IntervalSeconds <= 0 {
		return fmt.Errorf("poll.interval_seconds must be > 0, got %d", cfg.Poll.IntervalSeconds)
	}
	if cfg.Poll.StaleAfterSeconds < 0 {
		return fmt.Errorf("poll.stale_after_seconds must be >= 0, got %d", cfg.Poll.StaleAfterSeconds)
	}
	if cfg.Poll.StaleAfterSeconds > 0 && cfg.Poll.StaleAfterSeconds < cfg.Poll.IntervalSeconds {
		return fmt.Errorf(
			"poll.stale_after_seconds (%d) must not be shorter than poll.interval_seconds (%d)",
			cfg.Poll.StaleAfterSeconds,
			cfg.Poll.IntervalSeconds,
		)
	}

	// ------------------------------------------------------------
	// DEVICE
	// ------------------------------------------------------------

	if cfg.Device.ID == "" {
		return errors.New("device.id is required")
	}
	for i := 0; i < len(cfg.Device.ID); i++ {
		c := cfg.Device.ID[i]
		ok := c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '-'
		if !ok {
			return fmt.Errorf("device.id %q: only [A-Za-z0-9_-] allowed", cfg.Device.ID)
		}
	}

	// ------------------------------------------------------------
	// MQTT (opt-in)
	// ------------------------------------------------------------

	if cfg.MQTT.Enabled {
		if cfg.MQTT.Broker == "" {
			return errors.New("mqtt.broker is required when mqtt is enabled")
		}
		if cfg.MQTT.Port < 1 || cfg.MQTT.Port > 65535 {
			return fmt.Errorf("mqtt.port %d out of range 1..65535", cfg.MQTT.Port)
		}
		if cfg.MQTT.QoS < 0 || cfg.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos %d out of range 0..2", cfg.MQTT.QoS)
		}
		if strings.ContainsAny(cfg.MQTT.BaseTopic, "#+") || strings.ContainsAny(cfg.MQTT.DiscoveryPrefix, "#+") {
			return errors.New("mqtt topics must not contain wildcards")
		}
	}

	// ------------------------------------------------------------
	// LOGGING
	// ------------------------------------------------------------

	if lvl := strings.ToLower(cfg.Logging.Level); lvl != "" && !knownLevels[lvl] {
		return fmt.Errorf("logging.level %q unknown", cfg.Logging.Level)
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format %q unknown (console|json)", cfg.Logging.Format)
	}

	return nil
}
