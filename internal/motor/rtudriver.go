package motor

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/ossm-project/ossm-core/internal/logger"
)

// DirectionSetter toggles an RS-485 transceiver's DE/RE line around a
// write. internal/board.DirectionPin satisfies this; nil leaves the line
// untouched (e.g. transceivers wired for automatic direction control).
type DirectionSetter interface {
	SetTransmit(enabled bool) error
}

// RTUDriver is a Modbus-RTU client over RS-485 implementing
// internal/motioncontrol.Motor, covering the drive's standard holding/input
// registers plus its custom absolute-position function code.
type RTUDriver struct {
	port     string
	baudRate int
	unitID   byte
	timeout  time.Duration

	minWriteDelay time.Duration
	direction     DirectionSetter

	serialPort serial.Port
	mu         sync.Mutex
	lastWrite  time.Time
}

// NewRTUDriver constructs a driver bound to port at baudRate, talking to
// the drive at unitID. The port is opened lazily on first use.
func NewRTUDriver(port string, baudRate int, unitID byte, minWriteDelay time.Duration) *RTUDriver {
	return &RTUDriver{
		port:          port,
		baudRate:      baudRate,
		unitID:        unitID,
		timeout:       200 * time.Millisecond,
		minWriteDelay: minWriteDelay,
	}
}

// WithDirectionPin attaches the RS-485 transceiver's direction-control pin,
// toggled to transmit immediately before each frame write and back to
// receive immediately after.
func (d *RTUDriver) WithDirectionPin(pin DirectionSetter) *RTUDriver {
	d.direction = pin
	return d
}

func (d *RTUDriver) transmitWindow(fn func() error) error {
	if d.direction != nil {
		if err := d.direction.SetTransmit(true); err != nil {
			logger.Get().Warn("failed to assert RS-485 transmit direction", zap.Error(err))
		}
		defer func() {
			if err := d.direction.SetTransmit(false); err != nil {
				logger.Get().Warn("failed to release RS-485 transmit direction", zap.Error(err))
			}
		}()
	}
	return fn()
}

// MinConsecutiveWriteDelay implements motioncontrol.Motor.
func (d *RTUDriver) MinConsecutiveWriteDelay() time.Duration { return d.minWriteDelay }

// Delay implements motioncontrol.Motor.
func (d *RTUDriver) Delay(dur time.Duration) { time.Sleep(dur) }

// Open opens the underlying serial port if it is not already open.
func (d *RTUDriver) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.openLocked()
}

func (d *RTUDriver) openLocked() error {
	if d.serialPort != nil {
		return nil
	}
	mode := &serial.Mode{
		BaudRate: d.baudRate,
		DataBits: 8,
		StopBits: serial.OneStopBit,
		Parity:   serial.NoParity,
	}
	port, err := serial.Open(d.port, mode)
	if err != nil {
		return errors.Wrapf(err, "opening serial port %s", d.port)
	}
	if err := port.SetReadTimeout(d.timeout); err != nil {
		port.Close()
		return errors.Wrap(err, "setting serial read timeout")
	}
	d.serialPort = port
	return nil
}

// Close closes the underlying serial port.
func (d *RTUDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.serialPort == nil {
		return nil
	}
	err := d.serialPort.Close()
	d.serialPort = nil
	return err
}

// SetAbsolutePosition implements motioncontrol.Motor using the drive's
// custom 8-byte frame: [unitID, 0x7B, pos (4 bytes, big-endian), crc (2
// bytes, little-endian)].
func (d *RTUDriver) SetAbsolutePosition(steps int32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.openLocked(); err != nil {
		return err
	}

	frame := make([]byte, 6)
	frame[0] = d.unitID
	frame[1] = FuncSetAbsolutePosition
	binary.BigEndian.PutUint32(frame[2:], uint32(steps))
	crc := calcCRC16(frame)
	frame = append(frame, byte(crc&0xFF), byte(crc>>8))

	return d.writeFrame(frame)
}

// SetMaxAllowedOutput writes the drive's standstill-max-output register,
// the torque/current ceiling in raw drive units.
func (d *RTUDriver) SetMaxAllowedOutput(raw uint16) error {
	return d.WriteRegister(RegStandstillMaxOutput, raw)
}

// WriteRegister writes a single holding register (Modbus function 0x06).
func (d *RTUDriver) WriteRegister(reg ReadWriteMotorRegisters, value uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.openLocked(); err != nil {
		return err
	}

	frame := make([]byte, 6)
	frame[0] = d.unitID
	frame[1] = 0x06
	binary.BigEndian.PutUint16(frame[2:], uint16(reg))
	binary.BigEndian.PutUint16(frame[4:], value)
	crc := calcCRC16(frame)
	frame = append(frame, byte(crc&0xFF), byte(crc>>8))

	return d.writeFrameExpectEcho(frame)
}

// ReadRegister reads a single register from the drive's read-only bank.
func (d *RTUDriver) ReadRegister(reg ReadOnlyMotorRegisters) (uint16, error) {
	regs, err := d.readHoldings(uint16(reg), 1)
	if err != nil {
		return 0, err
	}
	return regs[0], nil
}

// GetTargetPosition reads the drive's current target position in encoder
// pulses, assembled from its low/high register pair.
func (d *RTUDriver) GetTargetPosition() (int32, error) {
	regs, err := d.readHoldings(uint16(RegTargetPositionLowU16), 2)
	if err != nil {
		return 0, err
	}
	return int32(uint32(regs[1])<<16 | uint32(regs[0])), nil
}

// readHoldings reads count consecutive registers starting at addr via
// Modbus function 0x03; the drive exposes both its read-only and
// read-write banks through it.
func (d *RTUDriver) readHoldings(addr uint16, count uint16) ([]uint16, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.openLocked(); err != nil {
		return nil, err
	}

	frame := make([]byte, 6)
	frame[0] = d.unitID
	frame[1] = 0x03
	binary.BigEndian.PutUint16(frame[2:], addr)
	binary.BigEndian.PutUint16(frame[4:], count)
	crc := calcCRC16(frame)
	frame = append(frame, byte(crc&0xFF), byte(crc>>8))

	resp, err := d.exchange(frame, 5+2*int(count))
	if err != nil {
		return nil, err
	}
	if len(resp) < 3+2*int(count) {
		return nil, errors.New("short read-registers response")
	}
	regs := make([]uint16, count)
	for i := range regs {
		regs[i] = binary.BigEndian.Uint16(resp[3+2*i:])
	}
	return regs, nil
}

// writeFrame sends frame, honouring the minimum inter-write delay, and
// does not wait for a reply (the drive does not ack absolute-position
// writes).
func (d *RTUDriver) writeFrame(frame []byte) error {
	return d.transmitWindow(func() error {
		d.waitForWriteSlot()
		if _, err := d.serialPort.Write(frame); err != nil {
			return errors.Wrap(err, "writing motor frame")
		}
		d.lastWrite = time.Now()
		return nil
	})
}

// writeFrameExpectEcho sends frame and reads back the drive's echo, which
// for a single-register write is the same 8-byte frame.
func (d *RTUDriver) writeFrameExpectEcho(frame []byte) error {
	_, err := d.exchange(frame, len(frame))
	return err
}

// modbusExceptionLen is the fixed length of a Modbus exception response.
const modbusExceptionLen = 5

func (d *RTUDriver) exchange(frame []byte, wantLen int) ([]byte, error) {
	d.waitForWriteSlot()

	if err := d.serialPort.ResetInputBuffer(); err != nil {
		logger.Get().Warn("failed to reset serial input buffer", zap.Error(err))
	}
	if err := d.transmitWindow(func() error {
		_, err := d.serialPort.Write(frame)
		return err
	}); err != nil {
		return nil, errors.Wrap(err, "writing motor frame")
	}
	d.lastWrite = time.Now()

	resp := make([]byte, 256)
	total := 0
	for total < wantLen {
		n, err := d.serialPort.Read(resp[total:])
		if err != nil || n == 0 {
			break
		}
		total += n
		// An exception response is always 5 bytes; stop waiting for the
		// full frame once one arrives intact.
		if total == modbusExceptionLen && resp[1]&0x80 != 0 && verifyCRC16(resp[:total]) {
			break
		}
	}
	if total < modbusExceptionLen {
		return nil, errors.Errorf("incomplete motor response: got %d bytes", total)
	}
	resp = resp[:total]

	if !verifyCRC16(resp) {
		return nil, errors.New("motor response CRC mismatch")
	}
	if resp[1]&0x80 != 0 {
		return nil, errors.Errorf("motor exception code %d", resp[2])
	}
	if total < wantLen {
		return nil, errors.Errorf("incomplete motor response: got %d of %d bytes", total, wantLen)
	}
	return resp[:len(resp)-2], nil
}

func (d *RTUDriver) waitForWriteSlot() {
	if d.lastWrite.IsZero() {
		return
	}
	if since := time.Since(d.lastWrite); since < d.minWriteDelay {
		time.Sleep(d.minWriteDelay - since)
	}
}

// Reprogram runs the drive's baud-rate re-programming magic sequence:
// enable modbus, write the target baud's magic code into the acceleration
// register, nudge the weak-magnetic-angle register, then a final
// (intentionally unacknowledged) modbus-enable write. This lets the driver
// recover from a drive that booted at its stock baud rate and bring it up
// to the operating baud rate.
func (d *RTUDriver) Reprogram(target BaudRate) error {
	if err := d.WriteRegister(RegModbusEnable, 1); err != nil {
		return errors.Wrap(err, "enabling modbus")
	}
	if err := d.WriteRegister(RegMotorAcceleration, target.code()); err != nil {
		return errors.Wrap(err, "writing baud rate magic code")
	}
	if err := d.WriteRegister(RegWeakMagneticAngle, 129); err != nil {
		return errors.Wrap(err, "writing weak magnetic angle")
	}
	// The drive resets its UART immediately after the magic sequence and
	// never acknowledges this final write; failure here is expected.
	_ = d.WriteRegister(RegModbusEnable, 506)
	return nil
}

// homeSettleTimeout bounds the wait for the drive's homing cycle to
// report a target position inside tolerance.
const homeSettleTimeout = 30 * time.Second

// Home runs the drive's built-in homing cycle at reduced speed and torque,
// polling the target-position register until it settles inside tolerance,
// then restores the run tuning. Motion control must not be started until
// this returns.
func (d *RTUDriver) Home() error {
	if err := d.WriteRegister(RegMotorTargetSpeed, HomingSpeedRPM); err != nil {
		return errors.Wrap(err, "reducing speed for homing")
	}
	if err := d.WriteRegister(RegStandstillMaxOutput, HomingMaxAllowedOutput); err != nil {
		return errors.Wrap(err, "reducing torque for homing")
	}
	if err := d.WriteRegister(RegSpecificFunction, 1); err != nil {
		return errors.Wrap(err, "triggering homing cycle")
	}

	deadline := time.Now().Add(homeSettleTimeout)
	for {
		pos, err := d.GetTargetPosition()
		if err == nil && absInt32(pos) < HomingTargetPositionTolerance {
			break
		}
		if err != nil {
			logger.Get().Warn("homing position read failed, retrying", zap.Error(err))
		}
		if time.Now().After(deadline) {
			return errors.Errorf("homing did not settle within %s", homeSettleTimeout)
		}
		time.Sleep(100 * time.Millisecond)
	}

	if err := d.WriteRegister(RegMotorTargetSpeed, DefaultMaxMotorSpeedRPM); err != nil {
		return errors.Wrap(err, "restoring speed after homing")
	}
	return errors.Wrap(d.WriteRegister(RegStandstillMaxOutput, DefaultMaxAllowedOutput), "restoring torque after homing")
}

func absInt32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// ApplyDefaultTuning pushes the drive's startup tuning: speed and
// acceleration set high (the trajectory planner shapes the motion, not the
// drive), stock loop gains, and the default torque ceiling.
func (d *RTUDriver) ApplyDefaultTuning() error {
	writes := []struct {
		reg ReadWriteMotorRegisters
		val uint16
	}{
		{RegMotorTargetSpeed, DefaultMaxMotorSpeedRPM},
		{RegMotorAcceleration, DefaultAcceleration},
		{RegSpeedRingProportionalCoeff, DefaultSpeedProportionalCoeff},
		{RegPositionRingProportionalCoeff, DefaultPositionProportionalCoeff},
		{RegStandstillMaxOutput, DefaultMaxAllowedOutput},
	}
	for _, w := range writes {
		if err := d.WriteRegister(w.reg, w.val); err != nil {
			return errors.Wrapf(err, "writing register 0x%02x", uint16(w.reg))
		}
	}
	return nil
}

func calcCRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

func verifyCRC16(data []byte) bool {
	if len(data) < 3 {
		return false
	}
	received := uint16(data[len(data)-1])<<8 | uint16(data[len(data)-2])
	return received == calcCRC16(data[:len(data)-2])
}
