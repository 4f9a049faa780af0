// internal/ups/sensors.go
package ups

import "strings"

// Sensor describes how one snapshot field is presented to consumers.
type Sensor struct {
	Name        string
	Key         string
	Unit        string
	DeviceClass string
	// Diagnostic sensors carry device state rather than measurements.
	Diagnostic bool
}

// UniqueID is the stable per-field identifier.
func (s Sensor) UniqueID() string {
	return strings.ToLower(s.Key)
}

const (
	classVoltage   = "voltage"
	classCurrent   = "current"
	classFrequency = "frequency"
	classPF        = "power_factor"
	classPower     = "power"
	classTemp      = "temperature"
)

var sensors = []Sensor{
	{Name: "Input Voltage A", Key: "UinA", Unit: "V", DeviceClass: classVoltage},
	{Name: "Input Voltage B", Key: "UinB", Unit: "V", DeviceClass: classVoltage},
	{Name: "Input Voltage C", Key: "UinC", Unit: "V", DeviceClass: classVoltage},
	{Name: "Input Voltage AB", Key: "UinAB", Unit: "V", DeviceClass: classVoltage},
	{Name: "Input Voltage BC", Key: "UinBC", Unit: "V", DeviceClass: classVoltage},
	{Name: "Input Voltage CA", Key: "UinCA", Unit: "V", DeviceClass: classVoltage},
	{Name: "Input Current A", Key: "IinA", Unit: "A", DeviceClass: classCurrent},
	{Name: "Input Current B", Key: "IinB", Unit: "A", DeviceClass: classCurrent},
	{Name: "Input Current C", Key: "IinC", Unit: "A", DeviceClass: classCurrent},
	{Name: "Input Current N", Key: "IZeroSeq", Unit: "A", DeviceClass: classCurrent},
	{Name: "Input Power Factor A", Key: "PFinA", DeviceClass: classPF},
	{Name: "Input Power Factor B", Key: "PFinB", DeviceClass: classPF},
	{Name: "Input Power Factor C", Key: "PFinC", DeviceClass: classPF},

	{Name: "Output Voltage A", Key: "UoutA", Unit: "V", DeviceClass: classVoltage},
	{Name: "Output Voltage B", Key: "UoutB", Unit: "V", DeviceClass: classVoltage},
	{Name: "Output Voltage C", Key: "UoutC", Unit: "V", DeviceClass: classVoltage},
	{Name: "Output Voltage AB", Key: "UoutAB", Unit: "V", DeviceClass: classVoltage},
	{Name: "Output Voltage BC", Key: "UoutBC", Unit: "V", DeviceClass: classVoltage},
	{Name: "Output Voltage CA", Key: "UoutCA", Unit: "V", DeviceClass: classVoltage},
	{Name: "Output Current A", Key: "IoutA", Unit: "A", DeviceClass: classCurrent},
	{Name: "Output Current B", Key: "IoutB", Unit: "A", DeviceClass: classCurrent},
	{Name: "Output Current C", Key: "IoutC", Unit: "A", DeviceClass: classCurrent},
	{Name: "Output Power Factor A", Key: "PFoutA", DeviceClass: classPF},
	{Name: "Output Power Factor B", Key: "PFoutB", DeviceClass: classPF},
	{Name: "Output Power Factor C", Key: "PFoutC", DeviceClass: classPF},
	// plain percentage: load is not a battery charge level
	{Name: "Output Load A", Key: "LoadA", Unit: "%"},
	{Name: "Output Load B", Key: "LoadB", Unit: "%"},
	{Name: "Output Load C", Key: "LoadC", Unit: "%"},

	{Name: "Battery Voltage +", Key: "VbatPos", Unit: "V", DeviceClass: classVoltage},
	{Name: "Battery Voltage -", Key: "VbatNeg", Unit: "V", DeviceClass: classVoltage},
	{Name: "Temperature", Key: "Temp", Unit: "°C", DeviceClass: classTemp},

	{Name: "Input Frequency", Key: "Fin", Unit: "Hz", DeviceClass: classFrequency},
	{Name: "Output Frequency", Key: "Fout", Unit: "Hz", DeviceClass: classFrequency},

	{Name: "Alert", Key: KeyAlert, Diagnostic: true},
	{Name: "Power State", Key: KeyPowerState, Diagnostic: true},
	{Name: "UPS Run State", Key: KeyUPSRunState, Diagnostic: true},
	{Name: "Battery State", Key: KeyBatteryState, Diagnostic: true},
}

// Dormant output power fields, published with device.extended_fields.
var extendedSensors = []Sensor{
	{Name: "Output Active Power A", Key: "PactiveA", Unit: "W", DeviceClass: classPower},
	{Name: "Output Active Power B", Key: "PactiveB", Unit: "W", DeviceClass: classPower},
	{Name: "Output Active Power C", Key: "PactiveC", Unit: "W", DeviceClass: classPower},
	{Name: "Output Real Power A", Key: "PrealA", Unit: "VA", DeviceClass: "apparent_power"},
	{Name: "Output Real Power B", Key: "PrealB", Unit: "VA", DeviceClass: "apparent_power"},
	{Name: "Output Real Power C", Key: "PrealC", Unit: "VA", DeviceClass: "apparent_power"},
	{Name: "Output VAR Power A", Key: "PvarA", Unit: "var", DeviceClass: "reactive_power"},
	{Name: "Output VAR Power B", Key: "PvarB", Unit: "var", DeviceClass: "reactive_power"},
	{Name: "Output VAR Power C", Key: "PvarC", Unit: "var", DeviceClass: "reactive_power"},
	{Name: "Output Peak Power A", Key: "PeakA", Unit: "W", DeviceClass: classPower},
	{Name: "Output Peak Power B", Key: "PeakB", Unit: "W", DeviceClass: classPower},
	{Name: "Output Peak Power C", Key: "PeakC", Unit: "W", DeviceClass: classPower},
}

// Sensors returns the presentation catalogue for every published field.
func Sensors(extended bool) []Sensor {
	out := make([]Sensor, 0, len(sensors)+len(extendedSensors))
	out = append(out, sensors...)
	if extended {
		out = append(out, extendedSensors...)
	}
	return out
}

// SensorByKey looks up a catalogue entry.
func SensorByKey(key string) (Sensor, bool) {
	for _, s := range sensors {
		if s.Key == key {
			return s, true
		}
	}
	for _, s := range extendedSensors {
		if s.Key == key {
			return s, true
		}
	}
	return Sensor{}, false
}
