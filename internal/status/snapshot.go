// internal/status/snapshot.go
package status

import "time"

// Snapshot represents exactly what the status writers are allowed to deliver.
// It contains no logic and no memory of the past beyond current state.
type Snapshot struct {
	Health         uint16
	LastErrorCode  uint16
	SecondsInError uint16

	ConsecutiveFailures uint32
	LastSuccess         time.Time
	LastError           string
}

// HealthName returns the wire name of a health code.
func HealthName(h uint16) string {
	switch h {
	case HealthOK:
		return "ok"
	case HealthError:
		return "error"
	case HealthStale:
		return "stale"
	default:
		return "unknown"
	}
}

// Available reports whether consumers should treat the device as online.
func (s Snapshot) Available() bool {
	return s.Health == HealthOK || s.Health == HealthError
}
