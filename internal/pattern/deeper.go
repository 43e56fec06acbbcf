package pattern

const (
	deeperMinSteps = 2.0
	deeperMaxSteps = 22.0
)

// Deeper divides the out-stroke into N equal increments (N driven by
// sensation) and walks the target through them one stroke at a time,
// wrapping back to the first increment after N. The in-stroke always
// returns fully to depth-motion_length.
type Deeper struct {
	outStroke         bool
	numSteps          int
	currentStep       int
	previousSensation float64
	initialized       bool
}

func NewDeeper() *Deeper { return &Deeper{} }

func (p *Deeper) Name() string { return "Deeper" }

func (p *Deeper) Description() string {
	return "Out-stroke advances through equal increments of the motion length before wrapping; step count set by sensation."
}

func (p *Deeper) Reset() {
	p.outStroke = false
	p.numSteps = 0
	p.currentStep = 0
	p.initialized = false
}

func (p *Deeper) NextMove(input PatternInput) PatternMove {
	p.outStroke = !p.outStroke

	if !p.initialized || input.Sensation != p.previousSensation {
		p.numSteps = int(scale(input.Sensation, MinSensation, MaxSensation, deeperMinSteps, deeperMaxSteps))
		if p.numSteps < 1 {
			p.numSteps = 1
		}
		p.currentStep = 1
		p.previousSensation = input.Sensation
		p.initialized = true
	}

	inBase := input.Depth - input.MotionLength

	if !p.outStroke {
		return NewMove(input.Velocity, inBase)
	}

	increment := input.MotionLength / float64(p.numSteps)
	target := inBase + increment*float64(p.currentStep)

	p.currentStep++
	if p.currentStep > p.numSteps {
		p.currentStep = 1
	}

	return NewMove(input.Velocity, target)
}
