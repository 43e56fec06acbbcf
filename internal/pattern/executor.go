package pattern

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/ossm-project/ossm-core/internal/logger"
)

// catalogEntry names an index in the pattern catalogue and constructs a
// fresh instance of it. Index 2 is reserved for Torque, which is only
// present in some builds — callers that omit it leave a hole in the index
// space, same as the upstream catalogue.
type catalogEntry struct {
	name string
	make func() Pattern
}

// Catalogue is the fixed, compile-time-known set of patterns, indexed
// exactly as the remote protocol expects: 0=Simple, 1=Teasing Pounding,
// 2=Torque (the hole, included here), 3=Half'n'Half, 4=Deeper, 5=Stop'n'Go.
var catalogue = []catalogEntry{
	0: {"Simple Stroke", func() Pattern { return NewSimple() }},
	1: {"Teasing Pounding", func() Pattern { return NewTeasingPounding() }},
	2: {"Torque", func() Pattern { return NewTorque() }},
	3: {"Half'n'Half", func() Pattern { return NewHalfHalf() }},
	4: {"Deeper", func() Pattern { return NewDeeper() }},
	5: {"Stop'n'Go", func() Pattern { return NewStopNGo() }},
}

// GetPatternDescription returns the description of the pattern at idx,
// constructing a throwaway instance to read it. Returns false if idx is
// out of range or a hole in the catalogue.
func GetPatternDescription(idx uint32) (string, bool) {
	if int(idx) >= len(catalogue) || catalogue[idx].make == nil {
		return "", false
	}
	return catalogue[idx].make().Description(), true
}

// CatalogueEntry describes one pattern for the {"name":...,"idx":...} wire
// listing sent to remotes.
type CatalogueEntry struct {
	Name string `json:"name"`
	Idx  int    `json:"idx"`
}

// ListCatalogue returns the catalogue in index order for the remote
// listing endpoint.
func ListCatalogue() []CatalogueEntry {
	out := make([]CatalogueEntry, 0, len(catalogue))
	for idx, entry := range catalogue {
		if entry.make == nil {
			continue
		}
		out = append(out, CatalogueEntry{Name: entry.name, Idx: idx})
	}
	return out
}

// GetAllPatternsJSON serialises ListCatalogue for the remote listing
// endpoint: [{"name":"Simple Stroke","idx":0},...].
func GetAllPatternsJSON() (string, error) {
	b, err := json.Marshal(ListCatalogue())
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// PatternExecutor owns the currently selected pattern and dispatches
// NextMove calls to it, saturating the result to the caller-supplied
// envelope.
type PatternExecutor struct {
	index   uint32
	current Pattern
}

// NewPatternExecutor constructs an executor starting on pattern 0 (Simple).
func NewPatternExecutor() *PatternExecutor {
	e := &PatternExecutor{}
	e.SetPattern(0)
	return e
}

// SetPattern switches to the pattern at idx, resetting it so its first move
// is an out-stroke. An unknown or empty index falls back to Simple (index
// 0) and logs the substitution.
func (e *PatternExecutor) SetPattern(idx uint32) {
	var entry catalogEntry
	if int(idx) < len(catalogue) {
		entry = catalogue[idx]
	}
	if entry.make == nil {
		logger.Get().Warn("unknown pattern index, falling back to Simple Stroke", zap.Uint32("requested", idx))
		idx = 0
		entry = catalogue[0]
	}
	e.index = idx
	e.current = entry.make()
}

// Index returns the currently selected pattern's catalogue index.
func (e *PatternExecutor) Index() uint32 { return e.index }

// Reset returns the currently active pattern to its initial phase in
// place, without switching it — used on motion-disable, where the pattern
// selection itself must not change. See SetPattern for the pattern-switch
// case, which constructs a fresh instance instead.
func (e *PatternExecutor) Reset() { e.current.Reset() }

// Name returns the currently selected pattern's display name.
func (e *PatternExecutor) Name() string { return e.current.Name() }

// NextMove computes the next move from the active pattern and saturates
// its position to [0, input.Depth] and velocity to [0, input.Velocity].
func (e *PatternExecutor) NextMove(input PatternInput) PatternMove {
	move := e.current.NextMove(input)
	move.Position = saturateRange(move.Position, 0, input.Depth)
	move.Velocity = saturateRange(move.Velocity, 0, input.Velocity)
	return move
}
