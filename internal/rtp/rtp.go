// Package rtp builds and parses the RTP framing used by every A2DP
// variant, per spec.md §4.7. It wraps github.com/pion/rtp for header
// marshal/unmarshal and layers on the Bluetooth-specific conventions: the
// optional 1-byte SBC/LDAC media header, AAC fragmentation, and
// receive-side sequence-gap / mark-bit handling.
package rtp

import (
	"math/rand"

	pionrtp "github.com/pion/rtp"
)

// HeaderLen is the fixed 12-byte RTP header length with no extensions or
// CSRCs, per spec.md §4.7.
const HeaderLen = 12

// PayloadType is the RTP payload type used for all Bluetooth audio media,
// per spec.md §4.7.
const PayloadType = 96

// Packetizer tracks the monotonically increasing sequence number and
// timestamp for one outbound A2DP stream.
type Packetizer struct {
	seq uint16
	ts  uint32
	ssrc uint32
}

// NewPacketizer creates a packetizer with a random initial sequence
// number, per spec.md §4.7 ("sequence number random-initialised then
// monotonic").
func NewPacketizer() *Packetizer {
	return &Packetizer{seq: uint16(rand.Intn(1 << 16)), ssrc: rand.Uint32()}
}

// Build marshals one RTP packet: 12-byte header, optional media header
// byte, then payload. mark sets the RTP marker bit (used by AAC
// fragmentation's final fragment). The sequence number is advanced by one
// regardless of whether the caller is emitting a whole audio frame or one
// fragment of it — per-fragment increment is spec.md §4.7's fragmentation
// rule.
func (p *Packetizer) Build(mark bool, mediaHeader []byte, payload []byte) []byte {
	h := pionrtp.Header{
		Version:        2,
		PayloadType:    PayloadType,
		SequenceNumber: p.seq,
		Timestamp:      p.ts,
		SSRC:           p.ssrc,
		Marker:         mark,
	}
	p.seq++

	hdrBytes, _ := h.Marshal()
	out := make([]byte, 0, len(hdrBytes)+len(mediaHeader)+len(payload))
	out = append(out, hdrBytes...)
	out = append(out, mediaHeader...)
	out = append(out, payload...)
	return out
}

// AdvanceTimestamp advances the timestamp by frames*10000/sampleRate
// (integer division), per spec.md §4.7/§8 property 2. It does not affect
// the sequence number.
func (p *Packetizer) AdvanceTimestamp(frames, sampleRate int) {
	p.ts += uint32(frames * 10000 / sampleRate)
}

// Timestamp returns the current timestamp value, for building multiple
// fragments of the same audio frame (spec.md §4.7: "the timestamp is the
// same across all fragments of one audio frame").
func (p *Packetizer) Timestamp() uint32 { return p.ts }

// Sequence returns the next sequence number that will be assigned.
func (p *Packetizer) Sequence() uint16 { return p.seq }

// SBCMediaHeader packs the SBC/LDAC 1-byte media header's frame-count
// field, per spec.md §4.7. The upper bits (fragmentation/last/RFA) are
// always zero in this implementation path since only SBC/LDAC sources use
// it and neither fragments.
func SBCMediaHeader(frameCount int) []byte {
	return []byte{byte(frameCount & 0x0f)}
}

// SBCFrameCount extracts the frame count from a media header byte.
func SBCFrameCount(mediaHeader byte) int { return int(mediaHeader & 0x0f) }

// ParsedPacket is a decoded inbound RTP packet.
type ParsedPacket struct {
	Sequence  uint16
	Timestamp uint32
	Marker    bool
	Payload   []byte // payload after the 12-byte header, media header NOT stripped
}

// Parse unmarshals an inbound RTP packet using pion/rtp.
func Parse(buf []byte) (ParsedPacket, error) {
	var pkt pionrtp.Packet
	if err := pkt.Unmarshal(buf); err != nil {
		return ParsedPacket{}, err
	}
	return ParsedPacket{
		Sequence:  pkt.SequenceNumber,
		Timestamp: pkt.Timestamp,
		Marker:    pkt.Marker,
		Payload:   pkt.Payload,
	}, nil
}

// GapDetector maintains the expected sequence counter for one inbound
// A2DP stream and reports gaps, per spec.md §4.7's receive-side rule: the
// first packet resynchronises silently, every subsequent mismatch is
// reported (but playback continues regardless).
type GapDetector struct {
	haveFirst bool
	expected  uint16
}

// Observe reports whether seq was the expected next sequence number and
// advances the expectation to seq+1 either way, since a dropped or
// reordered packet should not cause every subsequent packet to also be
// flagged.
func (g *GapDetector) Observe(seq uint16) (gap bool) {
	if !g.haveFirst {
		g.haveFirst = true
		g.expected = seq + 1
		return false
	}
	gap = seq != g.expected
	g.expected = seq + 1
	return gap
}

// MarkQuirkTracker implements spec.md §4.7's AAC mark-bit quirk: if the
// mark bit has not been seen in the first three packets, assume the peer
// never sets it and disable reassembly (treat every packet as terminal)
// from then on.
type MarkQuirkTracker struct {
	seen    int
	markSet bool
	decided bool
}

// Observe feeds one inbound packet's marker bit into the tracker.
func (m *MarkQuirkTracker) Observe(marker bool) {
	if m.decided {
		return
	}
	if marker {
		m.markSet = true
	}
	m.seen++
	if m.seen >= 3 {
		m.decided = true
	}
}

// TreatEveryPacketAsTerminal reports whether reassembly should be
// disabled. Before a decision is reached (fewer than 3 packets observed),
// it conservatively reports false.
func (m *MarkQuirkTracker) TreatEveryPacketAsTerminal() bool {
	return m.decided && !m.markSet
}
