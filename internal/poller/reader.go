// internal/poller/reader.go
package poller

import "fmt"

// MaxReadQuantity is the FC3 protocol limit of words per request.
const MaxReadQuantity = 125

// BlockReader issues exactly one read request per call.
type BlockReader struct {
	tr Transport
}

// NewBlockReader reads through tr. tr must be connected.
func NewBlockReader(tr Transport) *BlockReader {
	return &BlockReader{tr: tr}
}

// Read fetches rb.Quantity consecutive holding registers starting at rb.Address.
func (r *BlockReader) Read(rb ReadBlock) (BlockResult, error) {
	if rb.Quantity < 1 || rb.Quantity > MaxReadQuantity {
		return BlockResult{}, &ReadFailure{
			Block:   rb.Name,
			Address: rb.Address,
			Count:   rb.Quantity,
			Err:     ErrInvalidGeometry,
		}
	}

	regs, err := r.tr.ReadHoldingRegisters(rb.Address, rb.Quantity)
	if err != nil {
		return BlockResult{}, &ReadFailure{
			Block:    rb.Name,
			Address:  rb.Address,
			Count:    rb.Quantity,
			Err:      err,
			LinkLost: !isException(err),
		}
	}

	if len(regs) != int(rb.Quantity) {
		return BlockResult{}, &DecodeFailure{
			Block:   rb.Name,
			Address: rb.Address,
			Count:   rb.Quantity,
			Err:     fmt.Errorf("got %d words, want %d", len(regs), rb.Quantity),
		}
	}

	return BlockResult{
		Name:      rb.Name,
		Address:   rb.Address,
		Quantity:  rb.Quantity,
		Registers: regs,
	}, nil
}
