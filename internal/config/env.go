// internal/config/env.go
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// Variables already set in the environment win.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load env %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides cfg from environment variables.
// It returns the names of the variables that were applied.
func ApplyEnv(cfg *Config) ([]string, error) {
	var applied []string

	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			*dst = v
			applied = append(applied, name)
		}
	}
	num := func(name string, dst *int) error {
		v, ok := os.LookupEnv(name)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: env %s=%q: %w", name, v, err)
		}
		*dst = n
		applied = append(applied, name)
		return nil
	}

	str("UPS_HOST", &cfg.Source.Host)
	str("MQTT_BROKER", &cfg.MQTT.Broker)
	str("MQTT_USERNAME", &cfg.MQTT.Username)
	str("MQTT_PASSWORD", &cfg.MQTT.Password)
	str("LOG_LEVEL", &cfg.Logging.Level)

	for _, n := range []struct {
		name string
		dst  *int
	}{
		{"UPS_PORT", &cfg.Source.Port},
		{"UPS_UNIT_ID", &cfg.Source.UnitID},
		{"UPS_SCAN_INTERVAL", &cfg.Poll.IntervalSeconds},
		{"UPS_TIMEOUT_MS", &cfg.Source.TimeoutMs},
		{"MQTT_PORT", &cfg.MQTT.Port},
	} {
		if err := num(n.name, n.dst); err != nil {
			return applied, err
		}
	}

	// a broker from the environment implies MQTT is wanted
	if v := os.Getenv("MQTT_BROKER"); v != "" {
		cfg.MQTT.Enabled = true
	}

	return applied, nil
}
