// Package cvsd implements the CVSD "codec" used for narrowband SCO
// telephony per spec.md §4.8: a pass-through of 16-bit PCM samples copied
// verbatim between the speaker FIFO and the BT socket (encode direction),
// and the BT socket and the mic FIFO (decode direction). There is nothing
// to transform; the type exists so the engine can treat CVSD the same way
// it treats every other codec variant (a handle with Encode/Decode).
package cvsd

import "encoding/binary"

// Codec is a stateless pass-through handle.
type Codec struct{}

// New creates a CVSD pass-through handle.
func New() *Codec { return &Codec{} }

// Encode packs pcm samples into little-endian bytes for the BT socket.
func (c *Codec) Encode(pcm []int16) []byte {
	out := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// Decode unpacks little-endian bytes from the BT socket into PCM samples.
// raw must have an even length; a trailing odd byte is ignored, mirroring
// what a real CVSD transcoder does with a short final read.
func (c *Codec) Decode(raw []byte) []int16 {
	n := len(raw) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return out
}
