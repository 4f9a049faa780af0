// internal/poller/types.go
package poller

import (
	"context"
	"time"

	"github.com/tamzrod/ups-poller/internal/ups"
)

// Transport abstracts the Modbus operations needed by the poller.
// The poller depends on geometry only.
type Transport interface {
	Connect(ctx context.Context) error
	Connected() bool
	ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) // FC 3
	Close() error
}

// Factory builds a fresh, unconnected Transport. ONE attempt per call.
type Factory func() (Transport, error)

// ReadBlock describes one Modbus read geometry.
type ReadBlock struct {
	Name     string
	Address  uint16
	Quantity uint16
}

// BlockResult is the raw result of a single read.
type BlockResult struct {
	Name      string
	Address   uint16
	Quantity  uint16
	Registers []uint16
}

// PollResult is produced by one poll cycle.
type PollResult struct {
	UnitID   string
	At       time.Time
	Duration time.Duration

	Blocks   []BlockResult
	Snapshot ups.Snapshot // complete, or empty when Err != nil

	Err      error // non-nil means the poll cycle failed
	CloseErr error // transport close failure, never fails the cycle
}

// OK reports whether the cycle produced a snapshot.
func (r PollResult) OK() bool { return r.Err == nil }
