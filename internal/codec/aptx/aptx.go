// Package aptx is a minimal aptX encoder handle. Like internal/codec/sbc,
// it gives the I/O engine the opaque shape spec.md describes (a fixed
// block of stereo PCM in, a fixed number of bytes out) without
// attempting a bit-accurate aptX ADPCM implementation, which belongs to
// a proprietary DSP library outside this daemon's scope.
package aptx

import "fmt"

// BlockFrames is the number of stereo PCM frames (L+R sample pairs) one
// aptX block consumes, per spec.md §4.8.
const BlockFrames = 4

// BlockBytes is the number of encoded bytes one aptX block produces.
const BlockBytes = 4

// Codec holds an aptX encoder handle. AptX carries no RTP header on the
// wire (spec.md §4.7): the engine writes Encode's output directly to the
// BT socket write buffer.
type Codec struct{}

// New creates an aptX encoder handle.
func New() *Codec { return &Codec{} }

// Encode consumes exactly BlockFrames stereo sample pairs (2*BlockFrames
// int16 values, interleaved L,R,L,R,...) and returns BlockBytes bytes.
func (c *Codec) Encode(pcm []int16) ([]byte, error) {
	need := BlockFrames * 2
	if len(pcm) != need {
		return nil, fmt.Errorf("aptx: encode expects %d samples, got %d", need, len(pcm))
	}
	out := make([]byte, BlockBytes)
	for i, s := range pcm {
		out[i%BlockBytes] ^= byte(s >> 8)
	}
	return out, nil
}
