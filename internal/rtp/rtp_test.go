package rtp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSequenceMonotonicity(t *testing.T) {
	p := NewPacketizer()
	start := p.Sequence()
	for i := 0; i < 10; i++ {
		pkt := p.Build(false, nil, []byte{0x01})
		parsed, err := Parse(pkt)
		require.NoError(t, err)
		require.Equal(t, start+uint16(i), parsed.Sequence)
	}
}

func TestTimestampCadence(t *testing.T) {
	p := NewPacketizer()
	const rate = 44100
	const framesPerPacket = 128
	prev := p.Timestamp()
	for i := 0; i < 5; i++ {
		p.AdvanceTimestamp(framesPerPacket, rate)
		cur := p.Timestamp()
		require.Equal(t, uint32(framesPerPacket*10000/rate), cur-prev)
		prev = cur
	}
}

func TestGapDetectorFirstPacketSilent(t *testing.T) {
	var g GapDetector
	require.False(t, g.Observe(100))
	require.False(t, g.Observe(101))
	require.True(t, g.Observe(105)) // gap
	require.False(t, g.Observe(106))
}

func TestMarkQuirkDisablesReassemblyWhenNeverSet(t *testing.T) {
	var m MarkQuirkTracker
	m.Observe(false)
	require.False(t, m.TreatEveryPacketAsTerminal())
	m.Observe(false)
	require.False(t, m.TreatEveryPacketAsTerminal())
	m.Observe(false)
	require.True(t, m.TreatEveryPacketAsTerminal())
}

func TestMarkQuirkKeepsReassemblyWhenSeen(t *testing.T) {
	var m MarkQuirkTracker
	m.Observe(false)
	m.Observe(true)
	m.Observe(false)
	require.False(t, m.TreatEveryPacketAsTerminal())
}

func TestSBCMediaHeaderFrameCount(t *testing.T) {
	h := SBCMediaHeader(5)
	require.Equal(t, 5, SBCFrameCount(h[0]))
}
