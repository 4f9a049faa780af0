// internal/poller/builder.go
package poller

import (
	"github.com/tamzrod/ups-poller/internal/config"
	pmodbus "github.com/tamzrod/ups-poller/internal/poller/modbus"
	"github.com/tamzrod/ups-poller/internal/ups"
)

// Build constructs a Poller for the configured UPS and wires the Modbus
// client lifecycle. A fresh client is dialed on every cycle and closed at
// its end; no connection is opened here.
func Build(c *config.Config) (*Poller, error) {
	endpoint := c.Source.Endpoint()

	// client factory: ONE attempt per call
	factory := func() (Transport, error) {
		return pmodbus.New(pmodbus.Config{
			Endpoint: endpoint,
			UnitID:   uint8(c.Source.UnitID),
			Timeout:  c.Source.Timeout(),
		})
	}

	return New(
		Config{
			UnitID:   c.Device.ID,
			Endpoint: endpoint,
			Blocks:   ups.Blocks(),
			Extended: c.Device.ExtendedFields,
		},
		factory,
	)
}
