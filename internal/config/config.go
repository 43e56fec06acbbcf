// Package config loads the compile-time tunables that govern the firmware
// core (travel envelope, planner limits, motor calibration, remote
// protocol timing). Loaded once at startup via viper (optional YAML file
// plus OSSM_-prefixed environment overrides) and then treated as
// effectively immutable for the lifetime of the process — nothing in
// internal/motioncontrol or internal/pattern re-reads it after Load.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Motion holds the travel envelope and planner limits.
type Motion struct {
	MinMoveMM                float64 `mapstructure:"min_move_mm"`
	MaxMoveMM                float64 `mapstructure:"max_move_mm"`
	RetractOnMotionDisabled  bool    `mapstructure:"retract_on_motion_disabled"`
	RetractVelocityMMS       float64 `mapstructure:"retract_velocity_mm_s"`
	ReverseDirection         bool    `mapstructure:"reverse_direction"`
	LoopUpdateIntervalMS     int64   `mapstructure:"loop_update_interval_ms"`
	MinVelocityMMS           float64 `mapstructure:"min_velocity_mm_s"`
	MaxVelocityMMS           float64 `mapstructure:"max_velocity_mm_s"`
	MaxAccelerationMMS2      float64 `mapstructure:"max_acceleration_mm_s2"`
	MaxJerkMMS3              float64 `mapstructure:"max_jerk_mm_s3"`
	VelocityUpdateCooldownMS int64   `mapstructure:"velocity_update_cooldown_ms"`
	PanicOnEnvelopeExceeded  bool    `mapstructure:"panic_on_envelope_exceeded"`
	MaxNoRemoteHeartbeatMS   int64   `mapstructure:"max_no_remote_heartbeat_ms"`
}

// MaxTravelMM is the derived envelope span.
func (m Motion) MaxTravelMM() float64 { return m.MaxMoveMM - m.MinMoveMM }

// Motor holds torque bounds and belt/encoder kinematics constants.
type Motor struct {
	MinOutput             uint16  `mapstructure:"min_output"`
	MaxOutput             uint16  `mapstructure:"max_output"`
	PulleyToothCount      float64 `mapstructure:"pulley_tooth_count"`
	BeltPitchMM           float64 `mapstructure:"belt_pitch_mm"`
	StepsPerRevolution    float64 `mapstructure:"steps_per_revolution"`
	MinConsecutiveWriteMS int64   `mapstructure:"min_consecutive_write_ms"`
	Port                  string  `mapstructure:"port"`
	StockBaudRate         int     `mapstructure:"stock_baud_rate"`
	OperatingBaudRate     int     `mapstructure:"operating_baud_rate"`
}

// StepsPerMM is the derived belt/encoder conversion factor.
func (m Motor) StepsPerMM() float64 {
	return m.StepsPerRevolution / (m.PulleyToothCount * m.BeltPitchMM)
}

// Remote holds wire-protocol identifiers for the two remote transports.
type Remote struct {
	StringPort       string `mapstructure:"string_port"`
	BinaryPort       string `mapstructure:"binary_port"`
	OssmTargetID     int32  `mapstructure:"ossm_target_id"`
	HeartbeatSendMS  int64  `mapstructure:"heartbeat_send_ms"`
	MaxCommandLength int    `mapstructure:"max_command_length"`
	MaxStateJSONLen  int    `mapstructure:"max_state_json_len"`
}

// Simulator holds the desktop GUI simulator websocket bridge settings.
type Simulator struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Board holds the RS-485 transceiver direction-pin wiring.
type Board struct {
	DirectionPin int  `mapstructure:"direction_pin"`
	Enabled      bool `mapstructure:"enabled"`
}

// Logger mirrors internal/logger.Config for config-file population.
type Logger struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	LogDir     string `mapstructure:"log_dir"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Config holds all compile-time configuration for the firmware core.
type Config struct {
	Motion    Motion    `mapstructure:"motion"`
	Motor     Motor     `mapstructure:"motor"`
	Remote    Remote    `mapstructure:"remote"`
	Simulator Simulator `mapstructure:"simulator"`
	Board     Board     `mapstructure:"board"`
	Logger    Logger    `mapstructure:"logger"`
}

// Load reads configuration from an optional file and OSSM_-prefixed
// environment variables, falling back to the stock OSSM hardware defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("ossm")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		v.AddConfigPath(getConfigDir())
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix("OSSM")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Motion.MaxMoveMM <= cfg.Motion.MinMoveMM {
		return nil, fmt.Errorf("invalid configuration: max_move_mm (%v) must exceed min_move_mm (%v)", cfg.Motion.MaxMoveMM, cfg.Motion.MinMoveMM)
	}
	if cfg.Motion.MinVelocityMMS <= 0 {
		return nil, fmt.Errorf("invalid configuration: min_velocity_mm_s must be > 0")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("motion.min_move_mm", 10.0)
	v.SetDefault("motion.max_move_mm", 190.0)
	v.SetDefault("motion.retract_on_motion_disabled", true)
	// RETRACT_VELOCITY defaults to V_MAX/4 of the default 600 mm/s V_MAX. The
	// default is the fixed value 150; it does not follow an overridden
	// max_velocity_mm_s.
	v.SetDefault("motion.retract_velocity_mm_s", 150.0)
	v.SetDefault("motion.reverse_direction", false)
	v.SetDefault("motion.loop_update_interval_ms", 10)
	v.SetDefault("motion.min_velocity_mm_s", 1e-3)
	v.SetDefault("motion.max_velocity_mm_s", 600.0)
	v.SetDefault("motion.max_acceleration_mm_s2", 30000.0)
	v.SetDefault("motion.max_jerk_mm_s3", 100000.0)
	v.SetDefault("motion.velocity_update_cooldown_ms", 30)
	v.SetDefault("motion.panic_on_envelope_exceeded", false)
	v.SetDefault("motion.max_no_remote_heartbeat_ms", 8000)

	v.SetDefault("motor.min_output", 12)
	v.SetDefault("motor.max_output", 60)
	v.SetDefault("motor.pulley_tooth_count", 20.0)
	v.SetDefault("motor.belt_pitch_mm", 2.0)
	v.SetDefault("motor.steps_per_revolution", 32768.0)
	v.SetDefault("motor.min_consecutive_write_ms", 2)
	v.SetDefault("motor.port", "/dev/ttyUSB0")
	v.SetDefault("motor.stock_baud_rate", 19200)
	v.SetDefault("motor.operating_baud_rate", 115200)

	v.SetDefault("remote.string_port", ":7890")
	v.SetDefault("remote.binary_port", ":7891")
	v.SetDefault("remote.ossm_target_id", 1)
	v.SetDefault("remote.heartbeat_send_ms", 5000)
	v.SetDefault("remote.max_command_length", 64)
	v.SetDefault("remote.max_state_json_len", 128)

	v.SetDefault("simulator.enabled", true)
	v.SetDefault("simulator.addr", ":7892")

	v.SetDefault("board.direction_pin", 17)
	v.SetDefault("board.enabled", false)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.log_dir", "./logs")
	v.SetDefault("logger.max_size_mb", 20)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age_days", 7)
	v.SetDefault("logger.compress", true)
}

func getConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".ossm-core")
}
