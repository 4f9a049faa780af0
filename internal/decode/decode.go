// internal/decode/decode.go
package decode

import (
	"errors"
	"fmt"
)

// ErrShortBlock is returned when a field points past the end of a block.
var ErrShortBlock = errors.New("decode: index outside register block")

// Kind selects how a single register word is interpreted.
type Kind uint8

const (
	// Signed interprets the word as two's complement int16.
	Signed Kind = iota
	// Unsigned interprets the word as uint16.
	Unsigned
)

// Field is one row of a register layout table.
// Offset is relative to the first register of the block.
type Field struct {
	Key     string
	Offset  int
	Kind    Kind
	Divisor float64 // 0 or 1 means unscaled

	// Dormant fields are decoded but only emitted on request.
	Dormant bool
}

// Bitfield is one packed group inside a status word.
type Bitfield struct {
	Key   string
	Shift uint
	Width uint
}

// ScaledSigned returns int16(words[index]) / divisor.
func ScaledSigned(words []uint16, index int, divisor float64) (float64, error) {
	if index < 0 || index >= len(words) {
		return 0, fmt.Errorf("%w: index=%d len=%d", ErrShortBlock, index, len(words))
	}
	v := float64(int16(words[index]))
	if divisor == 0 || divisor == 1 {
		return v, nil
	}
	return v / divisor, nil
}

// UnsignedWord returns words[index] unchanged.
func UnsignedWord(words []uint16, index int) (uint16, error) {
	if index < 0 || index >= len(words) {
		return 0, fmt.Errorf("%w: index=%d len=%d", ErrShortBlock, index, len(words))
	}
	return words[index], nil
}

// Bits extracts (word >> shift) & (1<<width - 1).
// Values are not range checked.
func Bits(word uint16, shift, width uint) uint16 {
	return (word >> shift) & uint16((1<<width)-1)
}

// Apply decodes every field of a layout table from words into dst.
// Dormant fields are skipped unless includeDormant is set.
// dst is left untouched when any field fails.
func Apply(fields []Field, words []uint16, dst map[string]float64, includeDormant bool) error {
	out := make(map[string]float64, len(fields))

	for _, f := range fields {
		if f.Dormant && !includeDormant {
			continue
		}

		switch f.Kind {
		case Signed:
			v, err := ScaledSigned(words, f.Offset, f.Divisor)
			if err != nil {
				return fmt.Errorf("field %s: %w", f.Key, err)
			}
			out[f.Key] = v

		case Unsigned:
			w, err := UnsignedWord(words, f.Offset)
			if err != nil {
				return fmt.Errorf("field %s: %w", f.Key, err)
			}
			v := float64(w)
			if f.Divisor != 0 && f.Divisor != 1 {
				v /= f.Divisor
			}
			out[f.Key] = v

		default:
			return fmt.Errorf("field %s: unknown kind %d", f.Key, f.Kind)
		}
	}

	for k, v := range out {
		dst[k] = v
	}
	return nil
}

// ApplyBits decodes each bitfield of word into dst.
func ApplyBits(bits []Bitfield, word uint16, dst map[string]float64) {
	for _, b := range bits {
		dst[b.Key] = float64(Bits(word, b.Shift, b.Width))
	}
}
