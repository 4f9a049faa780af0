// internal/writer/writer.go
package writer

import (
	"errors"

	"github.com/tamzrod/ups-poller/internal/status"
	"github.com/tamzrod/ups-poller/internal/ups"
)

// publisher is the exact contract the MQTT writers use.
// IMPORTANT: There must be NO other version of this interface anywhere.
type publisher interface {
	Publish(topic string, qos byte, retain bool, payload []byte) error
}

// ErrOffline is returned instead of publishing while the broker link is down.
var ErrOffline = errors.New("writer: broker offline")

// linkState is implemented by publishers that know whether they are connected.
type linkState interface {
	Connected() bool
}

func offline(pub publisher) bool {
	ls, ok := pub.(linkState)
	return ok && !ls.Connected()
}

// SnapshotWriter delivers measurement snapshots.
type SnapshotWriter interface {
	WriteSnapshot(s ups.Snapshot) error
}

// StatusWriter is the delivery-only contract for device status.
// It receives a snapshot and writes it verbatim.
type StatusWriter interface {
	WriteStatus(s status.Snapshot) error
}

// Topics is the fully-built MQTT topic plan for one device.
type Topics struct {
	DiscoveryPrefix string
	Base            string
	DeviceID        string
}

// State carries the JSON measurement snapshot.
func (t Topics) State() string { return t.Base + "/state" }

// Availability carries online / offline.
func (t Topics) Availability() string { return t.Base + "/availability" }

// Diagnostic carries the JSON status snapshot.
func (t Topics) Diagnostic() string { return t.Base + "/diagnostic" }

// Discovery is the Home Assistant config topic of one sensor.
func (t Topics) Discovery(objectID string) string {
	return t.DiscoveryPrefix + "/sensor/" + t.DeviceID + "/" + objectID + "/config"
}

const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)
