package aac

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransmuxDemuxRoundTrip(t *testing.T) {
	payload := make([]byte, 300) // exercises the 0xFF continuation byte
	for i := range payload {
		payload[i] = byte(i)
	}
	frame := Transmux(payload)
	back, err := Demux(frame)
	require.NoError(t, err)
	require.Equal(t, payload, back)
}

func TestDemuxRejectsTruncatedFrame(t *testing.T) {
	_, err := Demux(LATMFrame{Payload: []byte{0xFF}})
	require.Error(t, err)
}

func TestFallbackEncodeDecodeRoundTrip(t *testing.T) {
	enc := NewFallbackEncoder(2)
	dec := NewFallbackDecoder(2)

	pcm := make([]int16, enc.FrameSamples()*2)
	for i := range pcm {
		pcm[i] = int16(i)
	}

	frame, err := enc.Encode(pcm)
	require.NoError(t, err)

	out, err := dec.Decode(frame)
	require.NoError(t, err)
	require.Len(t, out, enc.FrameSamples()*2)
}

func TestFallbackEncodeRejectsWrongSize(t *testing.T) {
	enc := NewFallbackEncoder(2)
	_, err := enc.Encode(make([]int16, 3))
	require.Error(t, err)
}
