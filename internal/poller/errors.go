// internal/poller/errors.go
package poller

import (
	"errors"
	"fmt"

	"github.com/tamzrod/ups-poller/internal/status"
)

// ErrInvalidGeometry is returned for reads outside 1..MaxReadQuantity words.
var ErrInvalidGeometry = errors.New("poller: invalid read geometry")

type coder interface{ Code() uint16 }

// isException reports whether err is a device answer rather than a transport failure.
func isException(err error) bool {
	var c coder
	return errors.As(err, &c)
}

// LinkDownFailure means the transport could not be connected.
// No register read was attempted.
type LinkDownFailure struct {
	Endpoint string
	Err      error
}

func (e *LinkDownFailure) Error() string {
	return fmt.Sprintf("link down: endpoint=%s: %v", e.Endpoint, e.Err)
}

func (e *LinkDownFailure) Unwrap() error { return e.Err }

func (e *LinkDownFailure) Code() uint16 { return status.ErrorCodeLinkDown }

// ReadFailure means one block read failed: protocol exception, malformed
// frame, timeout or transport error.
type ReadFailure struct {
	Block   string
	Address uint16
	Count   uint16
	Err     error

	// LinkLost is set when the failure came from the transport rather than
	// from the device.
	LinkLost bool
}

func (e *ReadFailure) Error() string {
	return fmt.Sprintf("read %s failed: addr=%d count=%d: %v", e.Block, e.Address, e.Count, e.Err)
}

func (e *ReadFailure) Unwrap() error { return e.Err }

// Code passes a device exception code through; anything else is a read error.
func (e *ReadFailure) Code() uint16 {
	var c coder
	if errors.As(e.Err, &c) {
		return c.Code()
	}
	return status.ErrorCodeRead
}

// DecodeFailure means a block was received but is not decodable.
type DecodeFailure struct {
	Block   string
	Address uint16
	Count   uint16
	Err     error
}

func (e *DecodeFailure) Error() string {
	return fmt.Sprintf("decode %s failed: addr=%d count=%d: %v", e.Block, e.Address, e.Count, e.Err)
}

func (e *DecodeFailure) Unwrap() error { return e.Err }

func (e *DecodeFailure) Code() uint16 { return status.ErrorCodeDecode }
