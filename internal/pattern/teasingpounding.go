package pattern

const teasingMaxScalingFactor = 5.0

// TeasingPounding has the same geometry as Simple but skews the velocity of
// one stroke direction based on the sign and magnitude of sensation. Both
// strokes start from a 1/5th-velocity baseline cut; a positive sensation
// speeds up the in-stroke, a negative sensation speeds up the out-stroke,
// by a factor from 1 to 5 that grows with |sensation|.
type TeasingPounding struct {
	outStroke bool
}

func NewTeasingPounding() *TeasingPounding { return &TeasingPounding{} }

func (p *TeasingPounding) Name() string { return "Teasing Pounding" }

func (p *TeasingPounding) Description() string {
	return "Full-amplitude strokes with one direction slowed toward a fifth of velocity, skew set by sensation."
}

func (p *TeasingPounding) Reset() { p.outStroke = false }

func (p *TeasingPounding) NextMove(input PatternInput) PatternMove {
	p.outStroke = !p.outStroke

	cut := input.Velocity / teasingMaxScalingFactor
	sensationFactor := scale(absFloat(input.Sensation), 0, MaxSensation, 1, teasingMaxScalingFactor)

	outVelocity := cut
	inVelocity := cut
	if input.Sensation > 0 {
		inVelocity = cut * sensationFactor
	} else if input.Sensation < 0 {
		outVelocity = cut * sensationFactor
	}

	if p.outStroke {
		return NewMove(outVelocity, input.Depth)
	}
	return NewMove(inVelocity, input.Depth-input.MotionLength)
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
