// internal/config/config.go
package config

import (
	"net"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Source  SourceConfig  `yaml:"source"`
	Poll    PollConfig    `yaml:"poll"`
	Device  DeviceConfig  `yaml:"device"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	HTTP    HTTPConfig    `yaml:"http"`
	Logging LoggingConfig `yaml:"logging"`
}

// ---- SOURCE ----

type SourceConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	UnitID    int    `yaml:"unit_id"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// Endpoint returns host:port.
func (s SourceConfig) Endpoint() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

func (s SourceConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutMs) * time.Millisecond
}

// ---- POLL ----

type PollConfig struct {
	IntervalSeconds   int `yaml:"interval_seconds"`
	StaleAfterSeconds int `yaml:"stale_after_seconds"` // 0 => 3 x interval
}

func (p PollConfig) Interval() time.Duration {
	return time.Duration(p.IntervalSeconds) * time.Second
}

func (p PollConfig) StaleAfter() time.Duration {
	return time.Duration(p.StaleAfterSeconds) * time.Second
}

// ---- DEVICE ----

type DeviceConfig struct {
	Name         string `yaml:"name"`
	ID           string `yaml:"id"`
	Manufacturer string `yaml:"manufacturer"`
	Model        string `yaml:"model"`

	// ExtendedFields publishes the per-phase power fields of the output block.
	ExtendedFields bool `yaml:"extended_fields"`
}

// ---- MQTT ----

type MQTTConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Broker          string `yaml:"broker"`
	Port            int    `yaml:"port"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	ClientID        string `yaml:"client_id"`
	DiscoveryPrefix string `yaml:"discovery_prefix"`
	BaseTopic       string `yaml:"base_topic"`
	QoS             int    `yaml:"qos"`
	Retain          bool   `yaml:"retain"`
}

// BrokerURL returns the broker as a paho server URL.
func (m MQTTConfig) BrokerURL() string {
	if strings.Contains(m.Broker, "://") {
		return m.Broker
	}
	return "tcp://" + net.JoinHostPort(m.Broker, strconv.Itoa(m.Port))
}

// ---- HTTP ----

type HTTPConfig struct {
	Listen string `yaml:"listen"` // empty disables the server
}

// ---- LOGGING ----

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console | json
	File   string `yaml:"file"`
}

// Default returns the configuration used for every key the file omits.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			Port:      502,
			UnitID:    1,
			TimeoutMs: 10000,
		},
		Poll: PollConfig{
			IntervalSeconds: 30,
		},
		Device: DeviceConfig{
			Name:         "Huawei UPS",
			ID:           "huawei_ups",
			Manufacturer: "Huawei",
			Model:        "HUAWEI_UPS",
		},
		MQTT: MQTTConfig{
			Port:            1883,
			DiscoveryPrefix: "homeassistant",
			BaseTopic:       "huawei_ups",
			QoS:             1,
			Retain:          true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
