// internal/ups/registers.go
package ups

import "github.com/tamzrod/ups-poller/internal/decode"

// Register map of the UPS holding registers.
// Addresses are 0-based (documented register number minus 40001).
// This layout is device-defined and MUST NOT be configurable.

// Block names, used in failure reports.
const (
	BlockAlert  = "alert"
	BlockStatus = "status"
	BlockInput  = "input"
	BlockOutput = "output"
)

// Block is one contiguous holding-register read and how to decode it.
type Block struct {
	Name     string
	Address  uint16
	Quantity uint16

	Fields []decode.Field
	// Bits are decoded from the first word of the block.
	Bits []decode.Bitfield
}

// Status word bit groups.
const (
	ShiftPowerState   = 7
	ShiftUPSRunState  = 10
	ShiftBatteryState = 13
	StateWidth        = 3
)

// Field keys.
const (
	KeyAlert        = "Alert"
	KeyPowerState   = "PowerState"
	KeyUPSRunState  = "UPSRunState"
	KeyBatteryState = "BatteryState"
)

// 40301
var alertBlock = Block{
	Name:     BlockAlert,
	Address:  300,
	Quantity: 1,
	Fields: []decode.Field{
		{Key: KeyAlert, Offset: 0, Kind: decode.Unsigned},
	},
}

// 40131
var statusBlock = Block{
	Name:     BlockStatus,
	Address:  130,
	Quantity: 1,
	Bits: []decode.Bitfield{
		{Key: KeyPowerState, Shift: ShiftPowerState, Width: StateWidth},
		{Key: KeyUPSRunState, Shift: ShiftUPSRunState, Width: StateWidth},
		{Key: KeyBatteryState, Shift: ShiftBatteryState, Width: StateWidth},
	},
}

// 40001
var inputBlock = Block{
	Name:     BlockInput,
	Address:  0,
	Quantity: 17,
	Fields: []decode.Field{
		s10("UinA", 0), s10("UinB", 1), s10("UinC", 2),
		s10("UinAB", 3), s10("UinBC", 4), s10("UinCA", 5),
		s10("IinA", 6), s10("IinB", 7), s10("IinC", 8),
		s100("Fin", 9),
		s100("PFinA", 10), s100("PFinB", 11), s100("PFinC", 12),
		s10("VbatPos", 13), s10("VbatNeg", 14),
		s10("IZeroSeq", 15),
		s10("Temp", 16),
	},
}

// 40046
var outputBlock = Block{
	Name:     BlockOutput,
	Address:  45,
	Quantity: 28,
	Fields: []decode.Field{
		s10("UoutA", 0), s10("UoutB", 1), s10("UoutC", 2),
		s10("UoutAB", 3), s10("UoutBC", 4), s10("UoutCA", 5),
		s10("IoutA", 6), s10("IoutB", 7), s10("IoutC", 8),
		s100("Fout", 9),

		// 10..18: active / real / reactive power per phase
		dormant("PactiveA", 10), dormant("PactiveB", 11), dormant("PactiveC", 12),
		dormant("PrealA", 13), dormant("PrealB", 14), dormant("PrealC", 15),
		dormant("PvarA", 16), dormant("PvarB", 17), dormant("PvarC", 18),

		s100("PFoutA", 19), s100("PFoutB", 20), s100("PFoutC", 21),
		s10("LoadA", 22), s10("LoadB", 23), s10("LoadC", 24),

		// 25..27: peak power per phase
		dormant("PeakA", 25), dormant("PeakB", 26), dormant("PeakC", 27),
	},
}

// Blocks returns the read plan of one poll cycle, in read order.
func Blocks() []Block {
	return []Block{alertBlock, statusBlock, inputBlock, outputBlock}
}

// Keys returns every key a complete snapshot carries.
func Keys(extended bool) []string {
	var keys []string
	for _, b := range Blocks() {
		for _, f := range b.Fields {
			if f.Dormant && !extended {
				continue
			}
			keys = append(keys, f.Key)
		}
		for _, bf := range b.Bits {
			keys = append(keys, bf.Key)
		}
	}
	return keys
}

func s10(key string, off int) decode.Field {
	return decode.Field{Key: key, Offset: off, Kind: decode.Signed, Divisor: 10}
}

func s100(key string, off int) decode.Field {
	return decode.Field{Key: key, Offset: off, Kind: decode.Signed, Divisor: 100}
}

func dormant(key string, off int) decode.Field {
	f := s10(key, off)
	f.Dormant = true
	return f
}
