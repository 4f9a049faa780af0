// internal/status/encode.go
package status

import "time"

// Diagnostic is the wire form of a Snapshot.
type Diagnostic struct {
	Health              string `json:"health"`
	HealthCode          uint16 `json:"health_code"`
	LastErrorCode       uint16 `json:"last_error_code"`
	LastError           string `json:"last_error,omitempty"`
	SecondsInError      uint16 `json:"seconds_in_error"`
	ConsecutiveFailures uint32 `json:"consecutive_failures"`
	LastSuccess         string `json:"last_success,omitempty"`
}

// Encode converts a Snapshot into its diagnostic payload.
// No IO. No side effects.
func Encode(s Snapshot) Diagnostic {
	d := Diagnostic{
		Health:              HealthName(s.Health),
		HealthCode:          s.Health,
		LastErrorCode:       s.LastErrorCode,
		LastError:           s.LastError,
		SecondsInError:      s.SecondsInError,
		ConsecutiveFailures: s.ConsecutiveFailures,
	}
	if !s.LastSuccess.IsZero() {
		d.LastSuccess = s.LastSuccess.UTC().Format(time.RFC3339)
	}
	return d
}
