package remote

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// Command is the binary remote's 32-bit command enum, mapping wire values
// onto the motion-state setters and the two connection-lifecycle commands
// that also echo a reply packet.
type Command uint32

const (
	CmdNone Command = iota
	CmdSetSpeed
	CmdSetDepth
	CmdSetStroke
	CmdSetSensation
	CmdSetPattern
	CmdOn
	CmdOff
)

// Packet is the fixed packed record exchanged with the binary/proprietary
// low-latency remote: five floats, four one-byte booleans, a command enum,
// a float payload, and a target peer id. Byte order is little-endian,
// native field order, no trailing slack.
type Packet struct {
	Speed     float32
	Depth     float32
	Stroke    float32
	Sensation float32
	Pattern   float32

	RState    bool
	Connected bool
	Heartbeat bool
	_pad      bool

	Cmd    Command
	Value  float32
	Target uint32
}

// PacketSize is the encoded wire size of Packet in bytes.
const PacketSize = 36

// Encode serialises p into its little-endian wire representation.
func (p Packet) Encode() []byte {
	buf := make([]byte, PacketSize)
	binary.LittleEndian.PutUint32(buf[0:4], floatBits(p.Speed))
	binary.LittleEndian.PutUint32(buf[4:8], floatBits(p.Depth))
	binary.LittleEndian.PutUint32(buf[8:12], floatBits(p.Stroke))
	binary.LittleEndian.PutUint32(buf[12:16], floatBits(p.Sensation))
	binary.LittleEndian.PutUint32(buf[16:20], floatBits(p.Pattern))
	buf[20] = boolByte(p.RState)
	buf[21] = boolByte(p.Connected)
	buf[22] = boolByte(p.Heartbeat)
	buf[23] = 0
	binary.LittleEndian.PutUint32(buf[24:28], uint32(p.Cmd))
	binary.LittleEndian.PutUint32(buf[28:32], floatBits(p.Value))
	binary.LittleEndian.PutUint32(buf[32:36], p.Target)
	return buf
}

// DecodePacket parses a raw frame into a Packet, returning a wrapped error
// on a framing error (wrong length). The caller is expected to log and
// drop the packet, never propagate.
func DecodePacket(raw []byte) (Packet, error) {
	if len(raw) != PacketSize {
		return Packet{}, errors.Errorf("remote packet: expected %d bytes, got %d", PacketSize, len(raw))
	}
	r := bytes.NewReader(raw)
	var p Packet
	var speedBits, depthBits, strokeBits, sensationBits, patternBits, valueBits uint32
	for _, f := range []*uint32{&speedBits, &depthBits, &strokeBits, &sensationBits, &patternBits} {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return Packet{}, errors.Wrap(err, "decoding remote packet floats")
		}
	}
	p.Speed = bitsFloat(speedBits)
	p.Depth = bitsFloat(depthBits)
	p.Stroke = bitsFloat(strokeBits)
	p.Sensation = bitsFloat(sensationBits)
	p.Pattern = bitsFloat(patternBits)

	flags := raw[20:24]
	p.RState = flags[0] != 0
	p.Connected = flags[1] != 0
	p.Heartbeat = flags[2] != 0

	p.Cmd = Command(binary.LittleEndian.Uint32(raw[24:28]))
	if err := binary.Read(bytes.NewReader(raw[28:32]), binary.LittleEndian, &valueBits); err != nil {
		return Packet{}, errors.Wrap(err, "decoding remote packet value")
	}
	p.Value = bitsFloat(valueBits)
	p.Target = binary.LittleEndian.Uint32(raw[32:36])

	return p, nil
}

// ApplyCommand dispatches p.Cmd to state, using p.Value as the payload for
// the Set* commands. An unrecognised command is returned as an error for
// the caller to log; the packet is dropped, never propagated further.
func ApplyCommand(state Setter, p Packet) error {
	v := uint32(p.Value)
	switch p.Cmd {
	case CmdNone:
		return nil
	case CmdSetSpeed:
		state.SetVelocityPct(v)
	case CmdSetDepth:
		state.SetDepthPct(v)
	case CmdSetStroke:
		state.SetLengthPct(v)
	case CmdSetSensation:
		state.SetSensationPct(v)
	case CmdSetPattern:
		state.SetPattern(v)
	case CmdOn:
		state.SetEnabled(true)
	case CmdOff:
		state.SetEnabled(false)
	default:
		return fmt.Errorf("unrecognised remote command enum %d", p.Cmd)
	}
	return nil
}

func floatBits(f float32) uint32 { return math.Float32bits(f) }
func bitsFloat(b uint32) float32 { return math.Float32frombits(b) }

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
