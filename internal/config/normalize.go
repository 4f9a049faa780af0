// internal/config/normalize.go
package config

import "strings"

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	cfg.Source.Host = strings.TrimSpace(cfg.Source.Host)

	// Stale window defaults to three missed cycles.
	if cfg.Poll.StaleAfterSeconds == 0 {
		cfg.Poll.StaleAfterSeconds = 3 * cfg.Poll.IntervalSeconds
	}

	if cfg.Device.Name == "" {
		cfg.Device.Name = cfg.Device.ID
	}

	cfg.MQTT.BaseTopic = strings.Trim(cfg.MQTT.BaseTopic, "/")
	if cfg.MQTT.BaseTopic == "" {
		cfg.MQTT.BaseTopic = cfg.Device.ID
	}
	cfg.MQTT.DiscoveryPrefix = strings.Trim(cfg.MQTT.DiscoveryPrefix, "/")
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "ups-poller-" + cfg.Device.ID
	}

	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	cfg.Logging.Format = strings.ToLower(cfg.Logging.Format)
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}
