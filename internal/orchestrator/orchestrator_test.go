package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ossm-project/ossm-core/internal/config"
	"github.com/ossm-project/ossm-core/internal/motionstate"
	"github.com/ossm-project/ossm-core/internal/pattern"
)

func testMotion() config.Motion {
	return config.Motion{
		MinMoveMM:               10,
		MaxMoveMM:               190,
		MinVelocityMMS:          1e-3,
		MaxVelocityMMS:          600,
		RetractOnMotionDisabled: true,
		RetractVelocityMMS:      150,
	}
}

// fakeControl is a minimal MotionController fake that finishes a move after
// one IsMoveInProgress poll, recording every submitted value.
type fakeControl struct {
	positions  []float64
	velocities []float64
	torques    []float64
	inProgress bool
	pollsLeft  int
}

func (f *fakeControl) SetTargetPosition(mm float64) {
	f.positions = append(f.positions, mm)
	f.inProgress = true
	f.pollsLeft = 1
}

func (f *fakeControl) SetMaxVelocity(mmS float64) { f.velocities = append(f.velocities, mmS) }
func (f *fakeControl) SetTorque(pct float64)      { f.torques = append(f.torques, pct) }

func (f *fakeControl) IsMoveInProgress() bool {
	if f.inProgress && f.pollsLeft > 0 {
		f.pollsLeft--
		if f.pollsLeft == 0 {
			f.inProgress = false
		}
		return true
	}
	return f.inProgress
}

func TestRetractOnDisableTargetsMinMoveMM(t *testing.T) {
	motion := testMotion()
	state := motionstate.New(motion, nil)
	control := &fakeControl{}
	orch := New(state, pattern.NewPatternExecutor(), control, motion)

	state.SetDepthPct(100)
	state.SetLengthPct(50)
	state.SetVelocityPct(50)
	state.SetEnabled(true)
	orch.tick(context.Background())

	state.SetEnabled(false)
	orch.tick(context.Background())

	require.NotEmpty(t, control.positions)
	assert.Equal(t, motion.MinMoveMM, control.positions[len(control.positions)-1])
	assert.False(t, control.inProgress)

	machineV := state.GetMotionState().ToMachine(motion).VelocityMMS
	require.GreaterOrEqual(t, len(control.velocities), 2)
	assert.Equal(t, motion.RetractVelocityMMS, control.velocities[len(control.velocities)-2])
	assert.InDelta(t, machineV, control.velocities[len(control.velocities)-1], 0.001)
}

func TestRetractRestoresFreshlyConfiguredVelocity(t *testing.T) {
	motion := testMotion()
	state := motionstate.New(motion, nil)
	control := &fakeControl{}
	orch := New(state, pattern.NewPatternExecutor(), control, motion)

	state.SetDepthPct(100)
	state.SetLengthPct(50)
	state.SetVelocityPct(50)
	state.SetEnabled(true)
	orch.tick(context.Background())

	// Speed change lands after the last move was submitted but before the
	// disable edge; the restore must use it, not the move-time velocity.
	state.SetVelocityPct(25)

	state.SetEnabled(false)
	orch.tick(context.Background())

	machineV := state.GetMotionState().ToMachine(motion).VelocityMMS
	require.NotEmpty(t, control.velocities)
	assert.InDelta(t, machineV, control.velocities[len(control.velocities)-1], 0.001)
}

func TestEnabledEdgeSelectsAndResetsPattern(t *testing.T) {
	motion := testMotion()
	state := motionstate.New(motion, nil)
	control := &fakeControl{}
	exec := pattern.NewPatternExecutor()
	orch := New(state, exec, control, motion)

	state.SetPattern(3) // Half'n'Half
	state.SetEnabled(true)
	orch.tick(context.Background())

	assert.Equal(t, uint32(3), exec.Index())
}

func TestFirstMoveAfterEnableSubmitsTarget(t *testing.T) {
	motion := testMotion()
	state := motionstate.New(motion, nil)
	control := &fakeControl{}
	orch := New(state, pattern.NewPatternExecutor(), control, motion)

	state.SetDepthPct(100)
	state.SetLengthPct(50)
	state.SetVelocityPct(100)
	state.SetEnabled(true)

	orch.tick(context.Background())

	require.NotEmpty(t, control.positions)
	require.NotEmpty(t, control.velocities)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	motion := testMotion()
	state := motionstate.New(motion, nil)
	control := &fakeControl{}
	orch := New(state, pattern.NewPatternExecutor(), control, motion)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		orch.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
