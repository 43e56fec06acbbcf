package remote

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeSetter struct {
	depthPct     uint32
	lengthPct    uint32
	velocityPct  uint32
	sensationPct uint32
	pattern      uint32
	enabled      bool
}

func (f *fakeSetter) SetDepthPct(v uint32)     { f.depthPct = v }
func (f *fakeSetter) SetLengthPct(v uint32)    { f.lengthPct = v }
func (f *fakeSetter) SetVelocityPct(v uint32)  { f.velocityPct = v }
func (f *fakeSetter) SetSensationPct(v uint32) { f.sensationPct = v }
func (f *fakeSetter) SetPattern(v uint32)      { f.pattern = v }
func (f *fakeSetter) SetEnabled(v bool)        { f.enabled = v }

func TestHandleSetActionsDispatchToSetter(t *testing.T) {
	state := &fakeSetter{}
	h := NewCommandHandler(state, 0)

	assert.Equal(t, "ok:set:speed:75", h.Handle("set:speed:75"))
	assert.Equal(t, uint32(75), state.velocityPct)

	assert.Equal(t, "ok:set:depth:40", h.Handle("set:depth:40"))
	assert.Equal(t, uint32(40), state.depthPct)

	assert.Equal(t, "ok:set:stroke:60", h.Handle("set:stroke:60"))
	assert.Equal(t, uint32(60), state.lengthPct)

	assert.Equal(t, "ok:set:sensation:10", h.Handle("set:sensation:10"))
	assert.Equal(t, uint32(10), state.sensationPct)

	assert.Equal(t, "ok:set:pattern:3", h.Handle("set:pattern:3"))
	assert.Equal(t, uint32(3), state.pattern)
}

func TestHandleGoActionsEnableAndDisable(t *testing.T) {
	state := &fakeSetter{}
	h := NewCommandHandler(state, 0)

	assert.Equal(t, "ok:go:strokeEngine", h.Handle("go:strokeEngine"))
	assert.True(t, state.enabled)

	assert.Equal(t, "ok:go:menu", h.Handle("go:menu"))
	assert.False(t, state.enabled)
}

func TestHandleUnknownVerbFails(t *testing.T) {
	state := &fakeSetter{}
	h := NewCommandHandler(state, 0)
	assert.Equal(t, "fail:bogus:action", h.Handle("bogus:action"))
}

func TestHandleNonNumericValueFails(t *testing.T) {
	state := &fakeSetter{}
	h := NewCommandHandler(state, 0)
	assert.Equal(t, "fail:set:speed:notanumber", h.Handle("set:speed:notanumber"))
}

func TestHandleMissingActionFails(t *testing.T) {
	state := &fakeSetter{}
	h := NewCommandHandler(state, 0)
	assert.Equal(t, "fail:noaction", h.Handle("noaction"))
}

func TestHandleOverflowReplacesReplyWithOverflow(t *testing.T) {
	state := &fakeSetter{}
	h := NewCommandHandler(state, 8)

	reply := h.Handle("set:speed:75")
	assert.Equal(t, "ok:overflow", reply)
	assert.True(t, strings.HasPrefix(reply, "ok:"))
}
