// internal/ups/states.go
package ups

// Reserved is the name of any code outside the documented range.
const Reserved = "reserved"

var powerStates = []string{
	"no-output",
	"bypass",
	"main-inverter",
	"battery-inverter",
	"hybrid",
	"mains-eco",
	"battery-eco",
}

var runStates = []string{
	"standalone",
	"parallel",
	"standalone-eco",
	"parallel-eco",
	"aging-test",
	"frequency-converter",
	"standalone-smart-online",
}

var batteryStates = []string{
	"disconnected",
	"float-idle",
	"sleep",
	"float-charge",
	"equalize-charge",
	"discharge",
}

// PowerStateName names a PowerState code.
func PowerStateName(code uint16) string { return name(powerStates, code) }

// RunStateName names a UPSRunState code.
func RunStateName(code uint16) string { return name(runStates, code) }

// BatteryStateName names a BatteryState code.
func BatteryStateName(code uint16) string { return name(batteryStates, code) }

// StateName names the code of a status field key, if key is one.
func StateName(key string, code uint16) (string, bool) {
	switch key {
	case KeyPowerState:
		return PowerStateName(code), true
	case KeyUPSRunState:
		return RunStateName(code), true
	case KeyBatteryState:
		return BatteryStateName(code), true
	}
	return "", false
}

func name(table []string, code uint16) string {
	if int(code) < len(table) {
		return table[code]
	}
	return Reserved
}
