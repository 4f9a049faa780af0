// internal/writer/status_writer.go
package writer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tamzrod/ups-poller/internal/status"
)

// MQTTStatusWriter is the concrete StatusWriter used by the poller.
// It owns the availability and diagnostic topics.
type MQTTStatusWriter struct {
	mu sync.Mutex

	pub    publisher
	topics Topics
	qos    byte
	retain bool

	needFull bool
	last     status.Snapshot
}

// NewStatusWriter builds the MQTT status writer.
func NewStatusWriter(pub publisher, topics Topics, qos byte, retain bool) *MQTTStatusWriter {
	return &MQTTStatusWriter{
		pub:      pub,
		topics:   topics,
		qos:      qos,
		retain:   retain,
		needFull: true, // full re-assert on first successful write
		last:     status.Snapshot{Health: status.HealthUnknown},
	}
}

// Reset forces a full re-assert on the next write.
// Called after a broker reconnect.
func (sw *MQTTStatusWriter) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.needFull = true
}

// WriteStatus delivers a device status snapshot.
// On any publish failure, the next successful call will re-assert both topics.
func (sw *MQTTStatusWriter) WriteStatus(s status.Snapshot) error {
	if sw == nil || sw.pub == nil {
		return errors.New("status writer: disabled")
	}

	sw.mu.Lock()
	defer sw.mu.Unlock()

	if offline(sw.pub) {
		sw.needFull = true
		return ErrOffline
	}

	// ------------------------------------------------------------
	// HARD INVARIANT: seconds_in_error MUST NOT wrap
	// ------------------------------------------------------------
	if s.SecondsInError > status.SecondsInErrorMax {
		s.SecondsInError = status.SecondsInErrorMax
	}

	if sw.needFull {
		if err := sw.publishAvailability(s); err != nil {
			sw.needFull = true
			return fmt.Errorf("status writer: full assert failed: %w", err)
		}
		if err := sw.publishDiagnostic(s); err != nil {
			sw.needFull = true
			return fmt.Errorf("status writer: full assert failed: %w", err)
		}

		sw.needFull = false
		sw.last = s
		return nil
	}

	var errs []string

	// availability only flips on online/offline boundaries
	if sw.last.Available() != s.Available() {
		if err := sw.publishAvailability(s); err != nil {
			errs = append(errs, fmt.Sprintf("availability publish failed: %v", err))
		}
	}

	if sw.last != s {
		if err := sw.publishDiagnostic(s); err != nil {
			errs = append(errs, fmt.Sprintf("diagnostic publish failed: %v", err))
		}
	}

	if len(errs) > 0 {
		// Any partial failure introduces doubt: re-assert on next success.
		sw.needFull = true
		return errors.New("status writer: " + strings.Join(errs, " | "))
	}

	sw.last = s
	return nil
}

// Offline publishes the offline availability payload, used on shutdown.
func (sw *MQTTStatusWriter) Offline() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if err := sw.pub.Publish(sw.topics.Availability(), sw.qos, true, []byte(PayloadOffline)); err != nil {
		sw.needFull = true
		return fmt.Errorf("status writer: offline publish failed: %w", err)
	}
	return nil
}

func (sw *MQTTStatusWriter) publishAvailability(s status.Snapshot) error {
	payload := PayloadOffline
	if s.Available() {
		payload = PayloadOnline
	}
	// availability is always retained so late subscribers see it
	return sw.pub.Publish(sw.topics.Availability(), sw.qos, true, []byte(payload))
}

func (sw *MQTTStatusWriter) publishDiagnostic(s status.Snapshot) error {
	payload, err := json.Marshal(status.Encode(s))
	if err != nil {
		return err
	}
	return sw.pub.Publish(sw.topics.Diagnostic(), sw.qos, sw.retain, payload)
}
