package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleStrokeSequence(t *testing.T) {
	p := NewSimple()
	input := PatternInput{Depth: 100, MotionLength: 50, Velocity: 200, Sensation: 0}

	want := []struct {
		position float64
		velocity float64
	}{
		{100, 200}, {50, 200}, {100, 200}, {50, 200},
	}
	for i, w := range want {
		move := p.NextMove(input)
		assert.Equal(t, w.position, move.Position, "move %d position", i)
		assert.Equal(t, w.velocity, move.Velocity, "move %d velocity", i)
	}
}

func TestTeasingPoundingPlus50Sensation(t *testing.T) {
	p := NewTeasingPounding()
	input := PatternInput{Depth: 100, MotionLength: 50, Velocity: 200, Sensation: 50}

	m1 := p.NextMove(input) // out
	assert.Equal(t, 100.0, m1.Position)
	assert.Equal(t, 40.0, m1.Velocity)

	m2 := p.NextMove(input) // in
	assert.Equal(t, 50.0, m2.Position)
	assert.Equal(t, 120.0, m2.Velocity)

	m3 := p.NextMove(input) // out
	assert.Equal(t, 100.0, m3.Position)
	assert.Equal(t, 40.0, m3.Velocity)

	m4 := p.NextMove(input) // in
	assert.Equal(t, 50.0, m4.Position)
	assert.Equal(t, 120.0, m4.Velocity)
}

func TestDeeperSensationZero(t *testing.T) {
	p := NewDeeper()
	input := PatternInput{Depth: 120, MotionLength: 60, Velocity: 100, Sensation: 0}

	wantOut := []float64{65, 70, 75, 80, 85, 90, 95, 100, 105, 110, 115, 120, 65}

	for i, wantTarget := range wantOut {
		// ordering invariant: the first move after reset is the out stroke.
		outMove := p.NextMove(input)
		assert.Equal(t, wantTarget, outMove.Position, "out-stroke %d", i)

		inMove := p.NextMove(input)
		assert.Equal(t, 60.0, inMove.Position, "in-stroke %d", i)
	}
}

func TestStopNGoSensationZero(t *testing.T) {
	p := NewStopNGo()
	input := PatternInput{Depth: 100, MotionLength: 50, Velocity: 200, Sensation: 0}

	wantM := []int{1, 2, 3, 4, 5, 5, 4, 3, 2, 1, 1}

	for seriesIdx, m := range wantM {
		// each series is m out/in pairs; only the final in-stroke of the
		// series carries the delay.
		for stroke := 1; stroke <= m; stroke++ {
			outMove := p.NextMove(input)
			assert.Equal(t, 100.0, outMove.Position, "series %d stroke %d out", seriesIdx, stroke)
			assert.Zero(t, outMove.DelayMS, "out-stroke never carries delay")

			inMove := p.NextMove(input)
			assert.Equal(t, 50.0, inMove.Position, "series %d stroke %d in", seriesIdx, stroke)
			if stroke == m {
				require.Equal(t, uint64(5050), inMove.DelayMS, "series %d final in-stroke delay", seriesIdx)
			} else {
				assert.Zero(t, inMove.DelayMS, "series %d stroke %d in-stroke delay", seriesIdx, stroke)
			}
		}
	}
}

func TestHalfHalfAlternatesHalfDepthOutStroke(t *testing.T) {
	p := NewHalfHalf()
	input := PatternInput{Depth: 100, MotionLength: 50, Velocity: 200, Sensation: 0}

	out1 := p.NextMove(input)
	assert.Equal(t, 100.0, out1.Position) // full depth first
	p.NextMove(input)                     // in-stroke

	out2 := p.NextMove(input)
	assert.Equal(t, 75.0, out2.Position) // depth - motion_length/2
}

func TestTorqueCarriesScaledTorquePct(t *testing.T) {
	p := NewTorque()
	input := PatternInput{Depth: 100, MotionLength: 50, Velocity: 200, Sensation: -100}

	move := p.NextMove(input)
	require.True(t, move.HasTorque)
	assert.Equal(t, 0.0, move.TorquePct)
}

func TestPatternExecutorFallsBackOnUnknownIndex(t *testing.T) {
	e := NewPatternExecutor()
	e.SetPattern(99)
	assert.Equal(t, uint32(0), e.Index())
	assert.Equal(t, "Simple Stroke", e.Name())
}

func TestPatternExecutorCatalogueHasTorqueHole(t *testing.T) {
	entries := ListCatalogue()
	require.Len(t, entries, 6)
	assert.Equal(t, "Torque", entries[2].Name)
	assert.Equal(t, 2, entries[2].Idx)
}

func TestGetPatternDescription(t *testing.T) {
	desc, ok := GetPatternDescription(0)
	require.True(t, ok)
	assert.NotEmpty(t, desc)

	_, ok = GetPatternDescription(99)
	assert.False(t, ok)
}

func TestPatternExecutorSaturatesMoves(t *testing.T) {
	e := NewPatternExecutor() // Simple
	input := PatternInput{Depth: 100, MotionLength: 200, Velocity: 50, Sensation: 0}
	move := e.NextMove(input)
	assert.GreaterOrEqual(t, move.Position, 0.0)
	assert.LessOrEqual(t, move.Position, input.Depth)
}
