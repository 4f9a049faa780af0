// internal/poller/poller.go
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tamzrod/ups-poller/internal/decode"
	"github.com/tamzrod/ups-poller/internal/ups"
)

// Config is the minimal runtime config the poller needs.
type Config struct {
	UnitID   string
	Endpoint string
	Blocks   []ups.Block

	// Extended also publishes the dormant output power fields.
	Extended bool
}

// Poller is a dumb reader: one cycle per call, all-or-nothing.
type Poller struct {
	cfg  Config
	conn *ConnectionManager
	now  func() time.Time
}

// New creates a poller with immutable config.
func New(cfg Config, factory Factory) (*Poller, error) {
	if cfg.UnitID == "" {
		return nil, errors.New("poller: unit id required")
	}
	if len(cfg.Blocks) == 0 {
		return nil, errors.New("poller: at least one read block required")
	}
	if factory == nil {
		return nil, errors.New("poller: transport factory required")
	}
	for _, b := range cfg.Blocks {
		if b.Quantity < 1 || b.Quantity > MaxReadQuantity {
			return nil, fmt.Errorf("poller: block %s: %w", b.Name, ErrInvalidGeometry)
		}
	}
	return &Poller{
		cfg:  cfg,
		conn: NewConnectionManager(cfg.Endpoint, factory),
		now:  time.Now,
	}, nil
}

// UnitID returns the configured unit id.
func (p *Poller) UnitID() string { return p.cfg.UnitID }

// Connection exposes the connection manager (read-only use).
func (p *Poller) Connection() *ConnectionManager { return p.conn }

// PollOnce performs exactly one poll cycle.
// All-or-nothing: any failure aborts the cycle and no snapshot is produced.
// The transport is closed on every exit path.
func (p *Poller) PollOnce(ctx context.Context) (res PollResult) {
	start := p.now()
	res = PollResult{
		UnitID: p.cfg.UnitID,
		At:     start,
	}
	defer func() {
		res.Duration = p.now().Sub(start)
	}()

	var tr Transport
	defer func() {
		r := recover()
		if r != nil {
			res.Blocks = nil
			res.Snapshot = ups.Snapshot{}
			res.Err = &DecodeFailure{Block: "cycle", Err: fmt.Errorf("panic: %v", r)}
		}
		// a panic inside connect may leave a half-built transport behind
		if tr != nil || r != nil {
			res.CloseErr = p.conn.Close()
		}
	}()

	tr, err := p.conn.EnsureConnected(ctx)
	if err != nil {
		res.Err = err
		return res
	}

	reader := NewBlockReader(tr)
	blocks := make([]BlockResult, 0, len(p.cfg.Blocks))

	for _, b := range p.cfg.Blocks {
		if err := ctx.Err(); err != nil {
			res.Err = fmt.Errorf("poll cancelled before %s: %w", b.Name, err)
			return res
		}

		br, err := reader.Read(ReadBlock{Name: b.Name, Address: b.Address, Quantity: b.Quantity})
		if err != nil {
			res.Err = err
			return res
		}
		blocks = append(blocks, br)
	}

	snap, err := Assemble(p.cfg.Blocks, blocks, start, p.cfg.Extended)
	if err != nil {
		res.Err = err
		return res
	}

	// Commit only if all reads and decodes succeeded
	res.Blocks = blocks
	res.Snapshot = snap
	return res
}

// Assemble decodes a complete set of raw blocks into a Snapshot.
// Pure: the same blocks always yield the same values.
func Assemble(plan []ups.Block, blocks []BlockResult, at time.Time, extended bool) (ups.Snapshot, error) {
	if len(blocks) != len(plan) {
		return ups.Snapshot{}, &DecodeFailure{
			Block: "cycle",
			Err:   fmt.Errorf("got %d blocks, want %d", len(blocks), len(plan)),
		}
	}

	values := make(map[string]float64)

	for i, b := range plan {
		br := blocks[i]
		fail := func(err error) error {
			return &DecodeFailure{Block: b.Name, Address: b.Address, Count: b.Quantity, Err: err}
		}

		if br.Name != b.Name || br.Address != b.Address {
			return ups.Snapshot{}, fail(fmt.Errorf("unexpected block %s at %d", br.Name, br.Address))
		}
		if err := decode.Apply(b.Fields, br.Registers, values, extended); err != nil {
			return ups.Snapshot{}, fail(err)
		}
		if len(b.Bits) > 0 {
			if len(br.Registers) == 0 {
				return ups.Snapshot{}, fail(decode.ErrShortBlock)
			}
			decode.ApplyBits(b.Bits, br.Registers[0], values)
		}
	}

	return ups.NewSnapshot(values, at), nil
}
