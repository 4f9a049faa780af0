// internal/status/constants.go
package status

// Health and error code values.
// These values are published to consumers and MUST NOT be configurable.

// ---- HEALTH CODES ----

// HealthUnknown represents the boot state, before the first cycle finished.
const HealthUnknown uint16 = 0

// HealthOK represents a device whose last cycle succeeded.
const HealthOK uint16 = 1

// HealthError represents a device whose last cycle failed.
const HealthError uint16 = 2

// HealthStale represents a device with no success within the stale window.
const HealthStale uint16 = 3

// ---- ERROR CODES ----

// ErrorCodeNone means the last cycle succeeded.
const ErrorCodeNone uint16 = 0

// ErrorCodeUnknown is used for failures that carry no code of their own.
const ErrorCodeUnknown uint16 = 1

// ErrorCodeLinkDown means the transport could not be connected.
const ErrorCodeLinkDown uint16 = 2

// ErrorCodeRead means a register read failed on the transport.
const ErrorCodeRead uint16 = 3

// ErrorCodeDecode means a block was received but could not be decoded.
const ErrorCodeDecode uint16 = 4

// ErrorCodeException is OR-ed with the Modbus exception code (0x101..0x1FF).
const ErrorCodeException uint16 = 0x100

// ---- LIMITS ----

// SecondsInErrorMax is the saturation value of SecondsInError.
const SecondsInErrorMax = 65535
