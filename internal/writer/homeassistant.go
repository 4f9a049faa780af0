// internal/writer/homeassistant.go
package writer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tamzrod/ups-poller/internal/ups"
)

// DeviceInfo is the Home Assistant device block.
type DeviceInfo struct {
	Name         string   `json:"name"`
	Identifiers  []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

// SensorConfig is one Home Assistant MQTT discovery payload.
type SensorConfig struct {
	Name                string     `json:"name"`
	UniqueID            string     `json:"unique_id"`
	ObjectID            string     `json:"object_id"`
	StateTopic          string     `json:"state_topic"`
	UnitOfMeasurement   string     `json:"unit_of_measurement,omitempty"`
	DeviceClass         string     `json:"device_class,omitempty"`
	StateClass          string     `json:"state_class,omitempty"`
	Device              DeviceInfo `json:"device"`
	ValueTemplate       string     `json:"value_template"`
	AvailabilityTopic   string     `json:"availability_topic"`
	PayloadAvailable    string     `json:"payload_available"`
	PayloadNotAvailable string     `json:"payload_not_available"`
	EntityCategory      string     `json:"entity_category,omitempty"`
}

// HAOptions configures the Home Assistant snapshot writer.
type HAOptions struct {
	Topics  Topics
	Device  DeviceInfo
	Sensors []ups.Sensor
	QoS     byte
	Retain  bool
}

// HomeAssistant publishes discovery once, then one state document per snapshot.
type HomeAssistant struct {
	pub  publisher
	opts HAOptions

	mu         sync.Mutex
	discovered bool
}

// NewHomeAssistant builds the snapshot writer.
func NewHomeAssistant(pub publisher, opts HAOptions) *HomeAssistant {
	return &HomeAssistant{pub: pub, opts: opts}
}

// Reset forces discovery to be re-published with the next snapshot.
// Called after a broker reconnect.
func (h *HomeAssistant) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.discovered = false
}

// WriteSnapshot delivers s. Discovery is retried with every snapshot until it
// has gone through once.
func (h *HomeAssistant) WriteSnapshot(s ups.Snapshot) error {
	if h == nil || h.pub == nil {
		return errors.New("homeassistant writer: disabled")
	}
	if offline(h.pub) {
		// discovery stays pending until the link is back
		return ErrOffline
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var errs []string

	if !h.discovered {
		if err := h.publishDiscovery(); err != nil {
			errs = append(errs, err.Error())
		} else {
			h.discovered = true
		}
	}

	payload, err := json.Marshal(StatePayload(s))
	if err != nil {
		return fmt.Errorf("homeassistant writer: encode state: %w", err)
	}
	if err := h.pub.Publish(h.opts.Topics.State(), h.opts.QoS, h.opts.Retain, payload); err != nil {
		errs = append(errs, fmt.Sprintf("state publish failed: %v", err))
	}

	if len(errs) > 0 {
		return errors.New("homeassistant writer: " + strings.Join(errs, " | "))
	}
	return nil
}

func (h *HomeAssistant) publishDiscovery() error {
	var errs []string

	for _, sc := range h.Configs() {
		payload, err := json.Marshal(sc)
		if err != nil {
			return fmt.Errorf("encode discovery %s: %w", sc.ObjectID, err)
		}
		if err := h.pub.Publish(h.opts.Topics.Discovery(sc.ObjectID), h.opts.QoS, true, payload); err != nil {
			errs = append(errs, fmt.Sprintf("discovery %s: %v", sc.ObjectID, err))
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, " | "))
	}
	return nil
}

// Configs returns the discovery payload of every sensor, plus the health
// diagnostic sensor.
func (h *HomeAssistant) Configs() []SensorConfig {
	t := h.opts.Topics
	out := make([]SensorConfig, 0, len(h.opts.Sensors)+1)

	for _, s := range h.opts.Sensors {
		sc := SensorConfig{
			Name:                s.Name,
			UniqueID:            t.DeviceID + "_" + s.UniqueID(),
			ObjectID:            t.DeviceID + "_" + s.UniqueID(),
			StateTopic:          t.State(),
			UnitOfMeasurement:   s.Unit,
			DeviceClass:         s.DeviceClass,
			Device:              h.opts.Device,
			ValueTemplate:       fmt.Sprintf("{{ value_json.%s }}", s.Key),
			AvailabilityTopic:   t.Availability(),
			PayloadAvailable:    PayloadOnline,
			PayloadNotAvailable: PayloadOffline,
		}
		if s.Diagnostic {
			sc.EntityCategory = "diagnostic"
			if _, isState := ups.StateName(s.Key, 0); isState {
				sc.ValueTemplate = fmt.Sprintf("{{ value_json.%s }}", stateNameKey(s.Key))
			}
		} else {
			sc.StateClass = "measurement"
		}
		out = append(out, sc)
	}

	out = append(out, SensorConfig{
		Name:                "Poll Health",
		UniqueID:            t.DeviceID + "_health",
		ObjectID:            t.DeviceID + "_health",
		StateTopic:          t.Diagnostic(),
		Device:              h.opts.Device,
		ValueTemplate:       "{{ value_json.health }}",
		AvailabilityTopic:   t.Availability(),
		PayloadAvailable:    PayloadOnline,
		PayloadNotAvailable: PayloadOffline,
		EntityCategory:      "diagnostic",
	})

	return out
}

// StatePayload is the JSON state document of s: every field by key, plus a
// "<Key>Name" entry with the name of each status code.
func StatePayload(s ups.Snapshot) map[string]any {
	out := make(map[string]any, s.Len()+3)
	for _, k := range s.Keys() {
		v, _ := s.Get(k)
		out[k] = v
		if code, ok := s.Code(k); ok {
			if name, isState := ups.StateName(k, code); isState {
				out[stateNameKey(k)] = name
			}
		}
	}
	return out
}

func stateNameKey(key string) string { return key + "Name" }
