package remote

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ossm-project/ossm-core/internal/logger"
)

// Peer is one paired binary-protocol remote. SourceAddr is the radio
// transport's own source identifier (e.g. an ESP-NOW MAC address); ID is a
// session identifier minted locally for logging/diagnostics, since the
// wire packet itself carries no peer identity field.
type Peer struct {
	ID            uuid.UUID
	SourceAddr    string
	LastHeartbeat time.Time
}

// PairingRegistry tracks paired binary-protocol remotes: the first
// broadcast-directed packet whose Target matches ossmTargetID and whose
// source is not yet known pairs that source, replying with a heartbeat
// packet.
type PairingRegistry struct {
	mu           sync.Mutex
	peers        map[string]*Peer
	ossmTargetID uint32
}

// NewPairingRegistry constructs a registry for the given OSSM numeric
// target id (1 on stock hardware).
func NewPairingRegistry(ossmTargetID uint32) *PairingRegistry {
	return &PairingRegistry{
		peers:        make(map[string]*Peer),
		ossmTargetID: ossmTargetID,
	}
}

// Observe processes one received packet from sourceAddr. If the packet is
// broadcast-directed (Target == ossmTargetID) and sourceAddr is not yet a
// known peer, it is paired and a heartbeat reply packet is returned for
// the caller to send back. Any packet from a known peer refreshes its
// heartbeat timestamp whenever p.Heartbeat is set.
func (r *PairingRegistry) Observe(sourceAddr string, p Packet) (paired bool, reply *Packet) {
	r.mu.Lock()
	defer r.mu.Unlock()

	peer, known := r.peers[sourceAddr]
	if !known {
		if p.Target != r.ossmTargetID {
			return false, nil
		}
		peer = &Peer{ID: uuid.New(), SourceAddr: sourceAddr, LastHeartbeat: time.Now()}
		r.peers[sourceAddr] = peer
		logger.Get().Info("paired new remote", zap.String("source", sourceAddr), zap.String("peer_id", peer.ID.String()))
		reply = &Packet{Heartbeat: true, Connected: true, Target: r.ossmTargetID}
		return true, reply
	}

	if p.Heartbeat {
		peer.LastHeartbeat = time.Now()
	}
	return false, nil
}

// Peers returns a snapshot of currently known peers.
func (r *PairingRegistry) Peers() []Peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, *p)
	}
	return out
}

// NewestHeartbeat returns the most recent heartbeat timestamp across all
// known peers, or the zero Time if there are none yet.
func (r *PairingRegistry) NewestHeartbeat() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest time.Time
	for _, p := range r.peers {
		if p.LastHeartbeat.After(latest) {
			latest = p.LastHeartbeat
		}
	}
	return latest
}
