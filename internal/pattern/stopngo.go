package pattern

const (
	stopNGoMaxStrokes = 5
	stopNGoMinDelayMS = 100.0
	stopNGoMaxDelayMS = 10000.0
)

// StopNGo does full-amplitude alternation, grouped into series of M
// strokes where M ramps 1..MaxStrokes and back down, inclusive, reversing
// direction at each endpoint. The final in-stroke of every series carries a
// post-move delay derived from sensation. Any sensation change resets the
// series back to M=1.
type StopNGo struct {
	outStroke         bool
	numStrokes        int
	currentStroke     int
	countingUp        bool
	previousSensation float64
	initialized       bool
}

func NewStopNGo() *StopNGo { return &StopNGo{} }

func (p *StopNGo) Name() string { return "Stop'n'Go" }

func (p *StopNGo) Description() string {
	return "Full-amplitude strokes grouped into series that ramp from 1 to 5 strokes and back, pausing at the end of every series."
}

func (p *StopNGo) Reset() {
	p.outStroke = false
	p.numStrokes = 0
	p.currentStroke = 0
	p.countingUp = false
	p.initialized = false
}

func (p *StopNGo) NextMove(input PatternInput) PatternMove {
	p.outStroke = !p.outStroke

	if !p.initialized || input.Sensation != p.previousSensation {
		p.numStrokes = 1
		p.currentStroke = 1
		p.countingUp = true
		p.previousSensation = input.Sensation
		p.initialized = true
	}

	if p.outStroke {
		return NewMove(input.Velocity, input.Depth)
	}

	target := input.Depth - input.MotionLength

	var delayMS uint64
	hasDelay := false
	if p.currentStroke == p.numStrokes {
		delayMS = uint64(scale(input.Sensation, MinSensation, MaxSensation, stopNGoMinDelayMS, stopNGoMaxDelayMS))
		hasDelay = true

		// A boundary touch flips direction but holds the series length for
		// one extra series (producing the 1,1 and 5,5 plateaus at the
		// ramp's endpoints) before resuming the increment/decrement.
		switch {
		case p.numStrokes == 1 && !p.countingUp:
			p.countingUp = true
		case p.numStrokes == stopNGoMaxStrokes && p.countingUp:
			p.countingUp = false
		case p.countingUp:
			p.numStrokes++
		default:
			p.numStrokes--
		}
		p.currentStroke = 0
	}
	p.currentStroke++

	if hasDelay {
		return NewMoveWithDelay(input.Velocity, target, delayMS)
	}
	return NewMove(input.Velocity, target)
}
