package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacketEncodeDecodeRoundTrip(t *testing.T) {
	p := Packet{
		Speed:     42.5,
		Depth:     12.25,
		Stroke:    99.0,
		Sensation: -3.5,
		Pattern:   2,
		RState:    true,
		Connected: true,
		Heartbeat: false,
		Cmd:       CmdSetSpeed,
		Value:     80,
		Target:    1,
	}

	raw := p.Encode()
	assert.Len(t, raw, PacketSize)

	got, err := DecodePacket(raw)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestDecodePacketRejectsWrongLength(t *testing.T) {
	_, err := DecodePacket(make([]byte, PacketSize-1))
	assert.Error(t, err)
}

func TestApplyCommandDispatchesSetters(t *testing.T) {
	state := &fakeSetter{}

	require.NoError(t, ApplyCommand(state, Packet{Cmd: CmdSetDepth, Value: 55}))
	assert.Equal(t, uint32(55), state.depthPct)

	require.NoError(t, ApplyCommand(state, Packet{Cmd: CmdOn}))
	assert.True(t, state.enabled)

	require.NoError(t, ApplyCommand(state, Packet{Cmd: CmdOff}))
	assert.False(t, state.enabled)
}

func TestApplyCommandRejectsUnknownEnum(t *testing.T) {
	state := &fakeSetter{}
	err := ApplyCommand(state, Packet{Cmd: Command(999)})
	assert.Error(t, err)
}
