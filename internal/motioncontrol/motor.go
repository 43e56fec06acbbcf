package motioncontrol

import "time"

// Motor is the hardware adapter contract motion control drives every tick.
// internal/motor.RTUDriver is the production implementation
// over Modbus RTU; internal/motor also ships an in-memory fake for tests.
type Motor interface {
	// SetAbsolutePosition commands the motor to the given absolute step
	// count (sign already reflecting direction/REVERSE_DIRECTION).
	SetAbsolutePosition(steps int32) error
	// SetMaxAllowedOutput pushes a new torque/current ceiling (raw units).
	SetMaxAllowedOutput(raw uint16) error
	// MinConsecutiveWriteDelay is the minimum spacing the transport needs
	// between two writes; the control loop busy-waits to honour it.
	MinConsecutiveWriteDelay() time.Duration
	// Delay blocks the calling goroutine for d. On the real transport this
	// is a thin wrapper; fakes can use it to simulate bus latency.
	Delay(d time.Duration)
}
