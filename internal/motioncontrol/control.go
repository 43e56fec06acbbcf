// Package motioncontrol implements the real-time motion-control loop:
// a hand-rolled jerk-limited point-to-point planner driven by a ~10ms tick,
// fed target position/velocity/torque through lock-free atomic setpoints and
// a single dirty flag, and writing absolute step positions to the motor
// adapter every tick. The tick handler must never block beyond the bounded
// motor write — it logs only through the sampled hot-path logger
// (logger.WithTick), and the cooldown/dirty-flag protocol below exists so a
// storm of remote-driven velocity updates cannot turn into a storm of
// expensive mid-flight replans.
package motioncontrol

import (
	"math"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ossm-project/ossm-core/internal/config"
	"github.com/ossm-project/ossm-core/internal/logger"
)

// defaultVelocityUpdateCooldown debounces remote-driven velocity changes
// into the tick loop so a burst of speed-knob events cannot force a replan
// every tick; see setpointStorage and (*MotionControl).Tick.
const defaultVelocityUpdateCooldown = 30 * time.Millisecond

// setpointStorage holds the next position/velocity/torque request as
// independent atomic cells plus a single dirty flag — one atomic per
// field, never a struct-wide mutex.
type setpointStorage struct {
	position atomic.Uint64 // float64 bits, mm
	velocity atomic.Uint64 // float64 bits, mm/s
	torque   atomic.Uint32 // raw motor output units
	dirty    atomic.Bool
}

func storeFloat(cell *atomic.Uint64, v float64) { cell.Store(math.Float64bits(v)) }
func loadFloat(cell *atomic.Uint64) float64     { return math.Float64frombits(cell.Load()) }

// MotionControl owns the planner, the motor adapter, and the per-tick
// state machine between them. All exported methods are safe to call from
// any goroutine; Tick must only ever be called from the dedicated
// motion-control goroutine.
type MotionControl struct {
	motor    Motor
	motion   config.Motion
	motorCfg config.Motor

	setpoints setpointStorage

	moveInProgress atomic.Bool

	// cached setpoints, compared against setpoints.* on a dirty tick to
	// detect which field(s) actually changed since the last observation.
	cachedPosition float64
	cachedVelocity float64
	cachedTorque   uint32

	// active profile bookkeeping — owned exclusively by Tick.
	activeProfile   *profile
	moveDirection   float64 // +1 or -1
	moveStartTime   time.Time
	moveStartPos    float64
	currentPosition float64
	appliedVelocity float64 // velocity cap the active profile was built with

	velocitySetpoint   float64
	lastVelocityUpdate time.Time

	lastMotorWrite time.Time

	cooldown time.Duration

	tickSeq uint64
}

// New constructs a motion controller parked at MinMoveMM with the minimum
// velocity cap, mirroring the documented startup state.
func New(motor Motor, motion config.Motion, motorCfg config.Motor) *MotionControl {
	mc := &MotionControl{
		motor:            motor,
		motion:           motion,
		motorCfg:         motorCfg,
		currentPosition:  motion.MinMoveMM,
		cachedPosition:   motion.MinMoveMM,
		appliedVelocity:  motion.MinVelocityMMS,
		velocitySetpoint: motion.MinVelocityMMS,
		cachedVelocity:   motion.MinVelocityMMS,
		cooldown:         time.Duration(motion.VelocityUpdateCooldownMS) * time.Millisecond,
	}
	if mc.cooldown <= 0 {
		mc.cooldown = defaultVelocityUpdateCooldown
	}
	storeFloat(&mc.setpoints.position, motion.MinMoveMM)
	storeFloat(&mc.setpoints.velocity, motion.MinVelocityMMS)
	return mc
}

// IsMoveInProgress reports whether the planner is still driving toward the
// last submitted target.
func (mc *MotionControl) IsMoveInProgress() bool { return mc.moveInProgress.Load() }

// SetTargetPosition requests a new absolute target position in mm. Marks
// the controller dirty and, if idle, starts a move.
func (mc *MotionControl) SetTargetPosition(position float64) {
	storeFloat(&mc.setpoints.position, position)
	mc.setpoints.dirty.Store(true)
	mc.moveInProgress.Store(true)
}

// SetMaxVelocity requests a new velocity cap in mm/s, floored at
// MinVelocityMMS and capped at MaxVelocityMMS (with a logged clamp).
func (mc *MotionControl) SetMaxVelocity(maxVelocity float64) {
	if maxVelocity < mc.motion.MinVelocityMMS {
		maxVelocity = mc.motion.MinVelocityMMS
	}
	if maxVelocity > mc.motion.MaxVelocityMMS {
		logger.Get().Warn("requested velocity exceeds cap, clamping",
			zap.Float64("requested", maxVelocity), zap.Float64("max", mc.motion.MaxVelocityMMS))
		maxVelocity = mc.motion.MaxVelocityMMS
	}
	storeFloat(&mc.setpoints.velocity, maxVelocity)
	mc.setpoints.dirty.Store(true)
}

// SetMaxVelocityScaled preserves the ratio between an in-flight velocity
// setpoint and a previous reference velocity when the reference changes —
// used by internal/motionstate to rescale a pattern's velocity cut (e.g.
// Teasing Pounding's 1/5th) across a remote-driven speed change instead of
// clobbering it outright.
func (mc *MotionControl) SetMaxVelocityScaled(oldReferenceVelocity, newReferenceVelocity float64) {
	current := loadFloat(&mc.setpoints.velocity)
	if oldReferenceVelocity <= 0 {
		mc.SetMaxVelocity(newReferenceVelocity)
		return
	}
	ratio := current / oldReferenceVelocity
	mc.SetMaxVelocity(newReferenceVelocity * ratio)
}

// SetTorque requests a new torque ceiling as a percentage in [0,100],
// converted to the motor's raw output units.
func (mc *MotionControl) SetTorque(maxTorquePct float64) {
	pct := saturateRange(maxTorquePct, 0, 100)
	raw := scale(pct, 0, 100, float64(mc.motorCfg.MinOutput), float64(mc.motorCfg.MaxOutput))
	mc.setpoints.torque.Store(uint32(raw * 10))
	mc.setpoints.dirty.Store(true)
}

// Tick advances the controller by one control-loop period. It must be
// called from a single dedicated goroutine on a fixed ~10ms period (see
// startMotionControlLoop in cmd/ossm-core) and must never block beyond the
// bounded motor write below.
func (mc *MotionControl) Tick(now time.Time) {
	mc.tickSeq++
	tickStart := now

	if mc.setpoints.dirty.CompareAndSwap(true, false) {
		mc.consumeDirtySetpoints(now)
	}

	if mc.moveInProgress.Load() {
		mc.driveActiveMove(now)
	}

	elapsed := time.Since(tickStart)
	interval := time.Duration(mc.motion.LoopUpdateIntervalMS) * time.Millisecond
	if interval > 0 && elapsed > interval {
		logger.WithTick(mc.tickSeq).Warn("motion control tick overran its period",
			zap.Duration("elapsed", elapsed), zap.Duration("budget", interval))
	}
}

func (mc *MotionControl) consumeDirtySetpoints(now time.Time) {
	newPosition := loadFloat(&mc.setpoints.position)
	newVelocity := loadFloat(&mc.setpoints.velocity)
	newTorque := mc.setpoints.torque.Load()

	if newPosition != mc.cachedPosition {
		mc.cachedPosition = newPosition
		mc.startMove(newPosition, mc.appliedVelocity, now)
	}
	if newVelocity != mc.cachedVelocity {
		mc.cachedVelocity = newVelocity
		// Stashed, not applied immediately — the cooldown in
		// driveActiveMove decides when this takes effect.
		mc.velocitySetpoint = newVelocity
		mc.lastVelocityUpdate = now
	}
	if newTorque != mc.cachedTorque {
		mc.cachedTorque = newTorque
		if err := mc.motor.SetMaxAllowedOutput(uint16(newTorque)); err != nil {
			logger.WithTick(mc.tickSeq).Error("failed to write torque ceiling", zap.Error(err))
		}
	}
}

func (mc *MotionControl) startMove(target, velocityCap float64, now time.Time) {
	distance := target - mc.currentPosition
	direction := 1.0
	if distance < 0 {
		direction = -1.0
		distance = -distance
	}
	mc.activeProfile = newProfile(distance, velocityCap, mc.motion.MaxAccelerationMMS2, mc.motion.MaxJerkMMS3)
	mc.moveDirection = direction
	mc.moveStartTime = now
	mc.moveStartPos = mc.currentPosition
	mc.appliedVelocity = velocityCap
	mc.moveInProgress.Store(true)
}

func (mc *MotionControl) driveActiveMove(now time.Time) {
	if mc.velocitySetpoint != mc.appliedVelocity && now.Sub(mc.lastVelocityUpdate) > mc.cooldown {
		mc.startMove(mc.targetPosition(), mc.velocitySetpoint, now)
	}

	if mc.activeProfile == nil {
		mc.moveInProgress.Store(false)
		return
	}

	elapsed := now.Sub(mc.moveStartTime).Seconds()
	offset, _, _ := mc.activeProfile.Evaluate(elapsed)
	newPosition := mc.moveStartPos + mc.moveDirection*offset

	saturated := saturateRange(newPosition, mc.motion.MinMoveMM, mc.motion.MaxMoveMM)
	if saturated != newPosition {
		logger.WithTick(mc.tickSeq).Warn("planner position exceeded travel envelope, saturating",
			zap.Float64("requested", newPosition), zap.Float64("min", mc.motion.MinMoveMM), zap.Float64("max", mc.motion.MaxMoveMM))
		if mc.motion.PanicOnEnvelopeExceeded {
			panic("motion control: position exceeded configured travel envelope")
		}
		newPosition = saturated
	}
	mc.currentPosition = newPosition

	steps := int32(newPosition * mc.motorCfg.StepsPerMM())
	if !mc.motion.ReverseDirection {
		steps = -steps
	}

	minWrite := mc.motor.MinConsecutiveWriteDelay()
	if sinceWrite := now.Sub(mc.lastMotorWrite); !mc.lastMotorWrite.IsZero() && sinceWrite < minWrite {
		mc.motor.Delay(minWrite - sinceWrite)
	}
	if err := mc.motor.SetAbsolutePosition(steps); err != nil {
		logger.WithTick(mc.tickSeq).Error("motor write failed, retrying next tick", zap.Error(err))
	} else {
		mc.lastMotorWrite = time.Now()
	}

	if elapsed >= mc.activeProfile.Duration() {
		mc.moveInProgress.Store(false)
		mc.activeProfile = nil
	}
}

// targetPosition returns the active move's absolute target, used when a
// velocity-cap change forces a mid-flight replan from the current position
// toward the same, unchanged target.
func (mc *MotionControl) targetPosition() float64 {
	if mc.activeProfile == nil {
		return mc.currentPosition
	}
	return mc.moveStartPos + mc.moveDirection*mc.activeProfile.distance
}

// CurrentPosition returns the controller's last computed position in mm.
// Intended for diagnostics/tests, not the hot path.
func (mc *MotionControl) CurrentPosition() float64 { return mc.currentPosition }

func scale(input, inStart, inEnd, outStart, outEnd float64) float64 {
	slope := (outEnd - outStart) / (inEnd - inStart)
	return outStart + slope*(input-inStart)
}

func saturateRange(input, min, max float64) float64 {
	if input < min {
		return min
	}
	if input > max {
		return max
	}
	return input
}
