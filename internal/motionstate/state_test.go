package motionstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ossm-project/ossm-core/internal/config"
)

func testMotion() config.Motion {
	return config.Motion{
		MinMoveMM:      10,
		MaxMoveMM:      190,
		MinVelocityMMS: 1e-3,
		MaxVelocityMMS: 600,
	}
}

type fakeRescaler struct {
	oldV, newV float64
	calls      int
}

func (f *fakeRescaler) SetMaxVelocityScaled(oldV, newV float64) {
	f.oldV, f.newV = oldV, newV
	f.calls++
}

func TestPercentageSettersClamp(t *testing.T) {
	s := New(testMotion(), nil)
	s.SetDepthPct(150)
	s.SetLengthPct(150)
	s.SetSensationPct(150)

	snap := s.GetMotionState()
	assert.Equal(t, uint32(100), snap.DepthPct)
	assert.Equal(t, uint32(100), snap.LengthPct)
	assert.Equal(t, uint32(100), snap.SensationPct)
}

func TestSensationDefaultsToSignedZero(t *testing.T) {
	s := New(testMotion(), nil)
	snap := s.GetMotionState()
	assert.Equal(t, uint32(50), snap.SensationPct)
	assert.Equal(t, 0.0, snap.ToMachine(testMotion()).Sensation)
}

func TestSetVelocityPctRescalesInFlightMove(t *testing.T) {
	rescaler := &fakeRescaler{}
	s := New(testMotion(), rescaler)
	s.SetVelocityPct(50)
	require.Equal(t, 1, rescaler.calls)

	s.SetVelocityPct(100)

	require.Equal(t, 2, rescaler.calls)
	assert.InDelta(t, scale(50, 0, 100, 1e-3, 600), rescaler.oldV, 0.001)
	assert.InDelta(t, scale(100, 0, 100, 1e-3, 600), rescaler.newV, 0.001)
}

func TestMillimetreRoundTrip(t *testing.T) {
	s := New(testMotion(), nil)
	motion := testMotion()

	s.SetDepthMM(90)
	snap := s.GetMotionState()
	machine := snap.ToMachine(motion)
	assert.InDelta(t, 90, machine.DepthMM, 1.0) // integer pct truncation tolerance
}

func TestAsJSONReflectsEnabledState(t *testing.T) {
	s := New(testMotion(), nil)
	s.SetEnabled(true)
	s.SetDepthPct(80)

	body, err := s.GetMotionState().AsJSON(256)
	require.NoError(t, err)
	assert.Contains(t, body, `"state":"strokeEngine"`)
	assert.Contains(t, body, `"depth":80`)
}

func TestAsJSONReportsOverflow(t *testing.T) {
	s := New(testMotion(), nil)
	_, err := s.GetMotionState().AsJSON(5)
	assert.Error(t, err)
}

func TestSensationSignedRoundTrip(t *testing.T) {
	s := New(testMotion(), nil)
	s.SetSensationSigned(-100)
	assert.Equal(t, uint32(0), s.GetMotionState().SensationPct)

	s.SetSensationSigned(100)
	assert.Equal(t, uint32(100), s.GetMotionState().SensationPct)

	s.SetSensationSigned(0)
	assert.Equal(t, uint32(50), s.GetMotionState().SensationPct)
}
