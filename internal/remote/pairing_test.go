package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservePairsNewSourceOnMatchingTarget(t *testing.T) {
	r := NewPairingRegistry(1)

	paired, reply := r.Observe("10.0.0.5:9000", Packet{Target: 1})
	assert.True(t, paired)
	require.NotNil(t, reply)
	assert.True(t, reply.Heartbeat)
	assert.True(t, reply.Connected)
	assert.Equal(t, uint32(1), reply.Target)

	peers := r.Peers()
	require.Len(t, peers, 1)
	assert.Equal(t, "10.0.0.5:9000", peers[0].SourceAddr)
}

func TestObserveIgnoresWrongTarget(t *testing.T) {
	r := NewPairingRegistry(1)
	paired, reply := r.Observe("10.0.0.5:9000", Packet{Target: 99})
	assert.False(t, paired)
	assert.Nil(t, reply)
	assert.Empty(t, r.Peers())
}

func TestObserveRefreshesHeartbeatForKnownPeer(t *testing.T) {
	r := NewPairingRegistry(1)
	r.Observe("10.0.0.5:9000", Packet{Target: 1})

	before := r.NewestHeartbeat()
	paired, reply := r.Observe("10.0.0.5:9000", Packet{Target: 1, Heartbeat: true})
	assert.False(t, paired)
	assert.Nil(t, reply)
	assert.False(t, r.NewestHeartbeat().Before(before))
}

func TestNewestHeartbeatZeroWhenNoPeers(t *testing.T) {
	r := NewPairingRegistry(1)
	assert.True(t, r.NewestHeartbeat().IsZero())
}
