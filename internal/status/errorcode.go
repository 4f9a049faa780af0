// internal/status/errorcode.go
package status

import "errors"

type coder interface {
	Code() uint16
}

// ErrorCode extracts the diagnostic code carried by err.
// nil maps to ErrorCodeNone; errors with no code map to ErrorCodeUnknown.
func ErrorCode(err error) uint16 {
	if err == nil {
		return ErrorCodeNone
	}
	var c coder
	if errors.As(err, &c) {
		if code := c.Code(); code != ErrorCodeNone {
			return code
		}
	}
	return ErrorCodeUnknown
}
