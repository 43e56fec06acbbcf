// Package motor implements the servo drive adapter: a Modbus-RTU client
// over RS-485 (RTUDriver) plus an in-memory fake for tests. The register
// map and baud-rate magic sequence below come from the drive vendor's
// documentation.
package motor

// ReadWriteMotorRegisters enumerates the drive's writable holding
// registers.
type ReadWriteMotorRegisters uint16

const (
	RegModbusEnable                  ReadWriteMotorRegisters = 0x00
	RegDriverOutputEnable            ReadWriteMotorRegisters = 0x01
	RegMotorTargetSpeed              ReadWriteMotorRegisters = 0x02
	RegMotorAcceleration             ReadWriteMotorRegisters = 0x03
	RegWeakMagneticAngle             ReadWriteMotorRegisters = 0x04
	RegSpeedRingProportionalCoeff    ReadWriteMotorRegisters = 0x05
	RegSpeedLoopIntegrationTime      ReadWriteMotorRegisters = 0x06
	RegPositionRingProportionalCoeff ReadWriteMotorRegisters = 0x07
	RegSpeedFeedForward              ReadWriteMotorRegisters = 0x08
	RegDirPolarity                   ReadWriteMotorRegisters = 0x09
	RegElectronicGearNumerator       ReadWriteMotorRegisters = 0x0A
	RegElectronicGearDenominator     ReadWriteMotorRegisters = 0x0B
	RegParameterSaveFlag             ReadWriteMotorRegisters = 0x14
	RegAbsolutePositionLowU16        ReadWriteMotorRegisters = 0x16
	RegAbsolutePositionHighU16       ReadWriteMotorRegisters = 0x17
	RegStandstillMaxOutput           ReadWriteMotorRegisters = 0x18
	RegSpecificFunction              ReadWriteMotorRegisters = 0x19
)

// ReadOnlyMotorRegisters enumerates the drive's read-only registers. The
// drive exposes both banks through the same read-holdings function code.
type ReadOnlyMotorRegisters uint16

const (
	RegTargetPositionLowU16  ReadOnlyMotorRegisters = 0x0C
	RegTargetPositionHighU16 ReadOnlyMotorRegisters = 0x0D
	RegAlarmCode             ReadOnlyMotorRegisters = 0x0E
	RegSystemCurrent         ReadOnlyMotorRegisters = 0x0F
	RegMotorCurrentSpeed     ReadOnlyMotorRegisters = 0x10
	RegSystemVoltage         ReadOnlyMotorRegisters = 0x11
	RegSystemTemperature     ReadOnlyMotorRegisters = 0x12
	RegSystemOutputPwm       ReadOnlyMotorRegisters = 0x13
	RegDeviceAddress         ReadOnlyMotorRegisters = 0x15
)

// BaudRate identifies one of the drive's supported serial speeds, and the
// magic register value the drive expects during the re-programming
// sequence to switch to it.
type BaudRate int

const (
	Baud9600   BaudRate = 9600
	Baud19200  BaudRate = 19200
	Baud38400  BaudRate = 38400
	Baud115200 BaudRate = 115200
)

// code returns the drive's internal magic value for this baud rate, used
// only during the re-programming sequence (see RTUDriver.Reprogram).
func (b BaudRate) code() uint16 {
	switch b {
	case Baud9600:
		return 800
	case Baud19200:
		return 801
	case Baud38400:
		return 802
	case Baud115200:
		return 803
	default:
		return 801
	}
}

// Default tuning applied at startup. Speed and acceleration are set high
// because the trajectory planner, not the drive, shapes the motion.
const (
	DefaultMaxMotorSpeedRPM          = 3000
	DefaultAcceleration              = 50000
	DefaultSpeedProportionalCoeff    = 3000
	DefaultPositionProportionalCoeff = 3000
	DefaultMaxAllowedOutput          = 600
	HomingSpeedRPM                   = 80
	HomingMaxAllowedOutput           = 89
	HomingTargetPositionTolerance    = 15
)

// FuncSetAbsolutePosition is the drive's non-standard Modbus function code
// for an 8-byte absolute-position write: [unitID, 0x7B, pos(4 bytes BE),
// crc(2 bytes LE)].
const FuncSetAbsolutePosition byte = 0x7B
