package pattern

// HalfHalf uses the same velocity selection as TeasingPounding, but every
// second out-stroke only travels half the motion length.
type HalfHalf struct {
	outStroke bool
	half      bool
}

func NewHalfHalf() *HalfHalf { return &HalfHalf{} }

func (p *HalfHalf) Name() string { return "Half'n'Half" }

func (p *HalfHalf) Description() string {
	return "Every second out-stroke travels only half the motion length; velocity skew follows sensation as in Teasing Pounding."
}

func (p *HalfHalf) Reset() {
	p.outStroke = false
	p.half = false
}

func (p *HalfHalf) NextMove(input PatternInput) PatternMove {
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
		target := input.Depth
		if p.half {
			target = input.Depth - input.MotionLength/2
		}
		p.half = !p.half
		return NewMove(outVelocity, target)
	}
	return NewMove(inVelocity, input.Depth-input.MotionLength)
}
