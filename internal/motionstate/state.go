// Package motionstate implements the process-wide mailbox of current user
// intent: depth/length/velocity/sensation percentages, pattern index, and
// the enabled flag. Every field is
// its own lock-free atomic cell — there is deliberately no mutex wrapping the
// whole record, and no cross-field atomicity is promised: a reader takes a
// consistent snapshot per field, never a transactional one across fields.
package motionstate

import (
	"fmt"
	"sync/atomic"

	"github.com/ossm-project/ossm-core/internal/config"
)

// VelocityRescaler is implemented by the motion-control loop so that
// set_velocity_pct can re-scale an in-flight move's velocity proportionally
// instead of clobbering it outright. See SetVelocityPct.
type VelocityRescaler interface {
	SetMaxVelocityScaled(oldMachineVelocity, newMachineVelocity float64)
}

// State is the shared motion-state mailbox. The zero value is not usable;
// construct with New.
type State struct {
	depthPct     atomic.Uint32
	lengthPct    atomic.Uint32
	velocityPct  atomic.Uint32
	sensationPct atomic.Uint32 // stored 0..100; 50 == signed zero. See Snapshot.Sensation.
	patternIndex atomic.Uint32
	enabled      atomic.Bool

	motion   config.Motion
	rescaler VelocityRescaler
}

// New constructs a motion state mailbox. The sensation cell starts at 50,
// the unsigned encoding of signed zero.
func New(motion config.Motion, rescaler VelocityRescaler) *State {
	s := &State{motion: motion, rescaler: rescaler}
	s.sensationPct.Store(50)
	return s
}

func clampPct(v uint32) uint32 {
	if v > 100 {
		return 100
	}
	return v
}

// SetDepthPct clamps to [0,100] and stores.
func (s *State) SetDepthPct(v uint32) { s.depthPct.Store(clampPct(v)) }

// SetLengthPct clamps to [0,100] and stores.
func (s *State) SetLengthPct(v uint32) { s.lengthPct.Store(clampPct(v)) }

// SetSensationPct clamps to [0,100] and stores. 50 is "zero" sensation.
func (s *State) SetSensationPct(v uint32) { s.sensationPct.Store(clampPct(v)) }

// SetPattern stores the raw pattern index; validity is checked on read by
// the pattern executor, not here.
func (s *State) SetPattern(idx uint32) { s.patternIndex.Store(idx) }

// SetEnabled stores the enable/disable flag.
func (s *State) SetEnabled(enabled bool) { s.enabled.Store(enabled) }

// SetVelocityPct clamps to [0,100], computes the ratio between the
// motion-control velocity implied by the previous percentage and the one
// implied by the new percentage, and asks the rescaler to apply that ratio
// to whatever velocity is currently in flight. This preserves a pattern's
// velocity cut (e.g. Teasing Pounding's 1/5) across a remote-driven speed
// change instead of clobbering it to the raw new percentage.
func (s *State) SetVelocityPct(v uint32) {
	v = clampPct(v)
	previous := s.velocityPct.Load()

	oldMachineV := scale(float64(previous), 0, 100, s.motion.MinVelocityMMS, s.motion.MaxVelocityMMS)
	newMachineV := scale(float64(v), 0, 100, s.motion.MinVelocityMMS, s.motion.MaxVelocityMMS)

	if s.rescaler != nil {
		s.rescaler.SetMaxVelocityScaled(oldMachineV, newMachineV)
	}

	s.velocityPct.Store(v)
}

// SetDepthMM converts millimetres to a percentage and delegates.
func (s *State) SetDepthMM(mm float64) {
	mm = saturateRange(mm, 0, s.motion.MaxTravelMM())
	s.SetDepthPct(uint32(scale(mm, 0, s.motion.MaxTravelMM(), 0, 100)))
}

// SetLengthMM converts millimetres to a percentage and delegates.
func (s *State) SetLengthMM(mm float64) {
	mm = saturateRange(mm, 0, s.motion.MaxTravelMM())
	s.SetLengthPct(uint32(scale(mm, 0, s.motion.MaxTravelMM(), 0, 100)))
}

// SetVelocityMMS converts mm/s to a percentage and delegates.
func (s *State) SetVelocityMMS(mms float64) {
	pct := scale(mms, s.motion.MinVelocityMMS, s.motion.MaxVelocityMMS, 0, 100)
	s.SetVelocityPct(uint32(saturateRange(pct, 0, 100)))
}

// SetSensationSigned accepts sensation in [-100,+100] and delegates to the
// unsigned percentage setter.
func (s *State) SetSensationSigned(signed int32) {
	f := saturateRange(float64(signed), MinSensation, MaxSensation)
	pct := scale(f, MinSensation, MaxSensation, 0, 100)
	s.SetSensationPct(uint32(pct))
}

// Sensation range, matching the pattern package's contract.
const (
	MinSensation = -100.0
	MaxSensation = 100.0
)

// Snapshot is a percentage-unit read of the motion state, taken as
// independent per-field loads (not a transactional read).
type Snapshot struct {
	DepthPct     uint32
	LengthPct    uint32
	VelocityPct  uint32
	SensationPct uint32
	PatternIndex uint32
	Enabled      bool
}

// GetMotionState returns a percentage-unit snapshot.
func (s *State) GetMotionState() Snapshot {
	return Snapshot{
		DepthPct:     s.depthPct.Load(),
		LengthPct:    s.lengthPct.Load(),
		VelocityPct:  s.velocityPct.Load(),
		SensationPct: s.sensationPct.Load(),
		PatternIndex: s.patternIndex.Load(),
		Enabled:      s.enabled.Load(),
	}
}

// Machine is a derived, per-read projection of Snapshot into physical units.
type Machine struct {
	DepthMM     float64
	LengthMM    float64
	VelocityMMS float64
	Sensation   float64 // signed, [-100,+100]
	Pattern     uint32
	Enabled     bool
}

// ToMachine converts a percentage snapshot into physical units using the
// calibration constants in motion.
func (snap Snapshot) ToMachine(motion config.Motion) Machine {
	return Machine{
		DepthMM:     scale(float64(snap.DepthPct), 0, 100, 0, motion.MaxTravelMM()),
		LengthMM:    scale(float64(snap.LengthPct), 0, 100, 0, motion.MaxTravelMM()),
		VelocityMMS: scale(float64(snap.VelocityPct), 0, 100, motion.MinVelocityMMS, motion.MaxVelocityMMS),
		Sensation:   scale(float64(snap.SensationPct), 0, 100, MinSensation, MaxSensation),
		Pattern:     snap.PatternIndex,
		Enabled:     snap.Enabled,
	}
}

// AsJSON serialises the snapshot to the fixed-schema JSON format consumed by
// remotes: {"state":"strokeEngine"|"menu","depth":N,"stroke":N,"speed":N,
// "sensation":N,"pattern":N}. maxLen bounds the output; an overflow is
// reported as an error (never a panic) and the caller is expected to log it.
func (snap Snapshot) AsJSON(maxLen int) (string, error) {
	state := "menu"
	if snap.Enabled {
		state = "strokeEngine"
	}
	out := fmt.Sprintf(
		`{"state":"%s","depth":%d,"stroke":%d,"speed":%d,"sensation":%d,"pattern":%d}`,
		state, snap.DepthPct, snap.LengthPct, snap.VelocityPct, snap.SensationPct, snap.PatternIndex,
	)
	if maxLen > 0 && len(out) > maxLen {
		return out[:maxLen], fmt.Errorf("state JSON overflowed buffer: %d > %d bytes", len(out), maxLen)
	}
	return out, nil
}

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
