package pattern

// Simple alternates a full out-stroke to Depth and a full in-stroke to
// Depth-MotionLength, both at the commanded velocity.
type Simple struct {
	outStroke bool
}

// NewSimple constructs a fresh Simple pattern.
func NewSimple() *Simple { return &Simple{} }

func (p *Simple) Name() string { return "Simple Stroke" }

func (p *Simple) Description() string {
	return "Alternates at full velocity between depth and depth minus motion length."
}

func (p *Simple) Reset() { p.outStroke = false }

func (p *Simple) NextMove(input PatternInput) PatternMove {
	p.outStroke = !p.outStroke
	if p.outStroke {
		return NewMove(input.Velocity, input.Depth)
	}
	return NewMove(input.Velocity, input.Depth-input.MotionLength)
}
