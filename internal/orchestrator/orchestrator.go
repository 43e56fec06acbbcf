// Package orchestrator implements the motion orchestrator: a
// cooperative ~10ms loop that reads the shared motion state, sequences
// pattern moves through the motion-control loop, and handles retract-on-
// disable and pattern-switch transitions. It owns the pattern executor for
// the lifetime of the process.
package orchestrator

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/ossm-project/ossm-core/internal/config"
	"github.com/ossm-project/ossm-core/internal/logger"
	"github.com/ossm-project/ossm-core/internal/motionstate"
	"github.com/ossm-project/ossm-core/internal/pattern"
)

// tickInterval matches the motion-control loop's cadence; the orchestrator
// is not itself real-time critical but keeps the same cooperative
// discipline, suspending only at well-defined points.
const tickInterval = 10 * time.Millisecond

// MotionController is the subset of internal/motioncontrol.MotionControl the
// orchestrator drives. A narrow interface keeps this package testable
// without a real planner.
type MotionController interface {
	SetTargetPosition(mm float64)
	SetMaxVelocity(mmS float64)
	SetTorque(pct float64)
	IsMoveInProgress() bool
}

// torqueUnset is the "never equal" sentinel that forces the orchestrator's
// first torque-carrying move to always push a value down to motion control
// despite the changed-only write discipline.
const torqueUnset = math.MaxFloat64

// Orchestrator sequences pattern moves onto the motion-control loop.
type Orchestrator struct {
	state    *motionstate.State
	executor *pattern.PatternExecutor
	control  MotionController
	motion   config.Motion

	wasEnabled    bool
	lastPattern   uint32
	lastVelocity  float64
	lastTorque    float64
	pendingDelay  time.Duration
	patternPicked bool
}

// New constructs an orchestrator driving control from state through
// executor, using motion for the travel-envelope and retract constants.
func New(state *motionstate.State, executor *pattern.PatternExecutor, control MotionController, motion config.Motion) *Orchestrator {
	return &Orchestrator{
		state:      state,
		executor:   executor,
		control:    control,
		motion:     motion,
		lastTorque: torqueUnset,
	}
}

// Run drives the orchestrator loop until ctx is cancelled. This is the
// long-running goroutine body started from cmd/ossm-core.
func (o *Orchestrator) Run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.tick(ctx)
		}
	}
}

// tick runs one orchestration iteration: snapshot state, handle the
// enable/disable edges and pattern switches, then sequence the next move.
func (o *Orchestrator) tick(ctx context.Context) {
	snap := o.state.GetMotionState()
	machine := snap.ToMachine(o.motion)

	if o.wasEnabled && !machine.Enabled {
		o.handleDisableEdge(ctx)
	} else if !o.wasEnabled && machine.Enabled {
		o.handleEnableEdge()
	}
	o.wasEnabled = machine.Enabled

	if !o.patternPicked || machine.Pattern != o.lastPattern {
		o.executor.SetPattern(machine.Pattern)
		o.executor.Reset()
		o.lastPattern = machine.Pattern
		o.patternPicked = true
	}

	if !machine.Enabled {
		return
	}

	if o.control.IsMoveInProgress() {
		return
	}

	if o.pendingDelay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(o.pendingDelay):
		}
		o.pendingDelay = 0
	}

	input := pattern.PatternInput{
		Depth:        machine.DepthMM,
		MotionLength: machine.LengthMM,
		Velocity:     machine.VelocityMMS,
		Sensation:    machine.Sensation,
	}
	move := o.executor.NextMove(input)

	if move.Velocity != o.lastVelocity {
		o.control.SetMaxVelocity(move.Velocity)
		o.lastVelocity = move.Velocity
	}
	if move.HasTorque && move.TorquePct != o.lastTorque {
		o.control.SetTorque(move.TorquePct)
		o.lastTorque = move.TorquePct
	}
	o.control.SetTargetPosition(move.Position)

	o.pendingDelay = time.Duration(move.DelayMS) * time.Millisecond
}

// handleDisableEdge runs the retract sequence on enabled:true->false: reset
// the active pattern, submit a move to MinMoveMM at RetractVelocityMMS, and
// poll until it finishes before restoring the user's configured velocity
// cap. The cap is re-read from the shared motion state here, not taken
// from the last pattern move — a remote speed change can land between
// moves and would otherwise be restored stale. A build option
// (RetractOnMotionDisabled=false) instead just drops the velocity to the
// floor and stops, for mechanical designs that forbid unattended
// retraction.
func (o *Orchestrator) handleDisableEdge(ctx context.Context) {
	o.executor.Reset()

	if !o.motion.RetractOnMotionDisabled {
		o.control.SetMaxVelocity(o.motion.MinVelocityMMS)
		return
	}

	restoreVelocity := o.state.GetMotionState().ToMachine(o.motion).VelocityMMS
	o.control.SetMaxVelocity(o.motion.RetractVelocityMMS)
	// Retract always targets MinMoveMM, never 0.0 — the envelope minimum
	// is the closest position the carriage may legally reach.
	o.control.SetTargetPosition(o.motion.MinMoveMM)

	for o.control.IsMoveInProgress() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(tickInterval):
		}
	}

	if restoreVelocity > 0 {
		o.control.SetMaxVelocity(restoreVelocity)
		o.lastVelocity = restoreVelocity
	}
	logger.Get().Info("retract complete", zap.Float64("restored_velocity_mm_s", restoreVelocity))
}

// handleEnableEdge runs on disabled->enabled: if retract-on-disable is off
// (so handleDisableEdge never restored the velocity itself), restore the
// last pattern-supplied velocity cap here instead.
func (o *Orchestrator) handleEnableEdge() {
	if o.motion.RetractOnMotionDisabled {
		return
	}
	if o.lastVelocity > 0 {
		o.control.SetMaxVelocity(o.lastVelocity)
	}
}
