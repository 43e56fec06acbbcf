package motioncontrol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ossm-project/ossm-core/internal/config"
	"github.com/ossm-project/ossm-core/internal/motor"
)

func testMotion() config.Motion {
	return config.Motion{
		MinMoveMM:                10,
		MaxMoveMM:                190,
		MinVelocityMMS:           1e-3,
		MaxVelocityMMS:           600,
		MaxAccelerationMMS2:      30000,
		MaxJerkMMS3:              100000,
		LoopUpdateIntervalMS:     10,
		VelocityUpdateCooldownMS: 30,
	}
}

func testMotorCfg() config.Motor {
	return config.Motor{
		MinOutput:          12,
		MaxOutput:          60,
		PulleyToothCount:   20,
		BeltPitchMM:        2,
		StepsPerRevolution: 32768,
	}
}

func runTicks(mc *MotionControl, start time.Time, n int, step time.Duration) time.Time {
	now := start
	for i := 0; i < n; i++ {
		now = now.Add(step)
		mc.Tick(now)
	}
	return now
}

func TestPositionNeverExceedsEnvelope(t *testing.T) {
	sim := motor.NewSimulated()
	motion := testMotion()
	mc := New(sim, motion, testMotorCfg())

	mc.SetMaxVelocity(600)
	mc.SetTargetPosition(190)

	start := time.Now()
	runTicks(mc, start, 500, 10*time.Millisecond)

	assert.LessOrEqual(t, mc.CurrentPosition(), motion.MaxMoveMM)
	assert.GreaterOrEqual(t, mc.CurrentPosition(), motion.MinMoveMM)
}

func TestMoveCompletesAndClearsInProgress(t *testing.T) {
	sim := motor.NewSimulated()
	motion := testMotion()
	mc := New(sim, motion, testMotorCfg())

	mc.SetMaxVelocity(600)
	mc.SetTargetPosition(100)

	start := time.Now()
	require.True(t, mc.IsMoveInProgress())
	runTicks(mc, start, 1000, 10*time.Millisecond)

	assert.False(t, mc.IsMoveInProgress())
	assert.InDelta(t, 100, mc.CurrentPosition(), 0.5)
}

func TestVelocityChangeHonoursCooldown(t *testing.T) {
	sim := motor.NewSimulated()
	motion := testMotion()
	mc := New(sim, motion, testMotorCfg())

	mc.SetMaxVelocity(100)
	mc.SetTargetPosition(150)

	start := time.Now()
	mc.Tick(start.Add(10 * time.Millisecond))

	// A velocity change issued immediately after should not take effect
	// before the 30ms cooldown elapses.
	mc.SetMaxVelocity(600)
	before := mc.appliedVelocity
	mc.Tick(start.Add(20 * time.Millisecond))
	assert.Equal(t, before, mc.appliedVelocity, "velocity must not change inside cooldown window")

	mc.Tick(start.Add(60 * time.Millisecond))
	assert.Equal(t, 600.0, mc.appliedVelocity, "velocity should apply once cooldown has elapsed")
}

func TestSetMaxVelocityClampsToFloor(t *testing.T) {
	sim := motor.NewSimulated()
	motion := testMotion()
	mc := New(sim, motion, testMotorCfg())

	mc.SetMaxVelocity(-5)
	assert.Equal(t, motion.MinVelocityMMS, loadFloat(&mc.setpoints.velocity))
}

func TestSetMaxVelocityScaledPreservesRatio(t *testing.T) {
	sim := motor.NewSimulated()
	motion := testMotion()
	mc := New(sim, motion, testMotorCfg())

	mc.SetMaxVelocity(120) // current setpoint (e.g. pattern cut): 120, reference: 600 -> ratio 1/5
	mc.SetMaxVelocityScaled(600, 300)

	assert.InDelta(t, 60, loadFloat(&mc.setpoints.velocity), 0.01) // 300 * (120/600)
}

func TestSetTorqueEncodesRawUnits(t *testing.T) {
	sim := motor.NewSimulated()
	motion := testMotion()
	motorCfg := testMotorCfg()
	mc := New(sim, motion, motorCfg)

	mc.SetTorque(100)
	mc.Tick(time.Now())

	assert.Equal(t, uint16(motorCfg.MaxOutput*10), sim.MaxOutput())
}
