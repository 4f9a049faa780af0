// internal/poller/modbus/client.go
package modbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

// ErrNotConnected is returned by reads issued before Connect.
var ErrNotConnected = errors.New("modbus client: not connected")

// Client implements poller.Transport using Modbus TCP function code 3.
// This adapter is geometry-only: it issues requests and unpacks raw responses.
type Client struct {
	mu sync.Mutex

	cfg     Config
	handler *modbus.TCPClientHandler
	client  modbus.Client
}

// Config is minimal transport config.
type Config struct {
	Endpoint string
	UnitID   uint8
	Timeout  time.Duration
}

// ExceptionError is a Modbus exception response from the device.
type ExceptionError struct {
	Function  byte
	Exception byte
}

func (e *ExceptionError) Error() string {
	return fmt.Sprintf("modbus exception: fc=%d code=%d", e.Function, e.Exception)
}

// Code is the diagnostic code of the exception (0x100 | exception).
func (e *ExceptionError) Code() uint16 {
	return 0x100 | uint16(e.Exception)
}

// New creates an unconnected Modbus TCP client.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("modbus client: endpoint required")
	}
	return &Client{cfg: cfg}, nil
}

// Endpoint returns the configured host:port.
func (c *Client) Endpoint() string { return c.cfg.Endpoint }

// Connect dials the endpoint. One attempt; ctx bounds the wait.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handler != nil {
		return nil
	}

	h := modbus.NewTCPClientHandler(c.cfg.Endpoint)
	h.Timeout = c.cfg.Timeout
	h.SlaveId = c.cfg.UnitID

	done := make(chan error, 1)
	go func() {
		done <- h.Connect()
	}()

	select {
	case err := <-done:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		// release the socket if the dial completes after we gave up
		go func() {
			if err := <-done; err == nil {
				_ = h.Close()
			}
		}()
		return ctx.Err()
	}

	c.handler = h
	c.client = modbus.NewClient(h)
	return nil
}

// Connected reports whether Connect succeeded and Close has not been called.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler != nil
}

// ReadHoldingRegisters issues one FC3 request and returns the words big-endian decoded.
func (c *Client) ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return nil, ErrNotConnected
	}
	if qty == 0 {
		return nil, nil
	}

	raw, err := c.client.ReadHoldingRegisters(addr, qty)
	if err != nil {
		var me *modbus.ModbusError
		if errors.As(err, &me) {
			return nil, &ExceptionError{Function: me.FunctionCode, Exception: me.ExceptionCode}
		}
		return nil, err
	}
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("modbus: read-registers byte count %d not even", len(raw))
	}
	return unpackRegisters(raw), nil
}

// Close closes the TCP connection. Safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handler == nil {
		return nil
	}
	err := c.handler.Close()
	c.handler = nil
	c.client = nil
	return err
}

// ---- helpers (pure geometry) ----

func unpackRegisters(data []byte) []uint16 {
	n := len(data) / 2
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		out[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return out
}
