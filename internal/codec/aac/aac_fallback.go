//go:build !aac_cgo
// +build !aac_cgo

package aac

import "fmt"

// fallbackFrameSamples matches nativeFrameSamples so the engine's
// buffering logic doesn't need to branch on build tag.
const fallbackFrameSamples = 1024

// FallbackEncoder is the always-available pure-Go stand-in used when no
// cgo AAC binding was built in, and in every test. Like internal/codec/sbc
// it is a deterministic placeholder transform, not a bit-accurate AAC-LC
// encoder — fidelity is the real library's job; this package's contract
// is the LATM framing and fragmentation behaviour around it.
type FallbackEncoder struct {
	channels int
}

// NewFallbackEncoder constructs the pure-Go AAC stand-in.
func NewFallbackEncoder(channels int) *FallbackEncoder {
	return &FallbackEncoder{channels: channels}
}

// FrameSamples returns the PCM frame length (per channel) one Encode call
// consumes.
func (f *FallbackEncoder) FrameSamples() int { return fallbackFrameSamples }

// Encode consumes FrameSamples()*channels PCM samples and returns one
// LATM-framed access unit.
func (f *FallbackEncoder) Encode(pcm []int16) (LATMFrame, error) {
	need := fallbackFrameSamples * f.channels
	if len(pcm) != need {
		return LATMFrame{}, fmt.Errorf("aac: encode expects %d samples, got %d", need, len(pcm))
	}
	payload := make([]byte, need/4)
	for i, s := range pcm {
		payload[i%len(payload)] ^= byte(s >> 8)
	}
	return Transmux(payload), nil
}

// FallbackDecoder is the always-available pure-Go counterpart to
// FallbackEncoder.
type FallbackDecoder struct {
	channels int
}

// NewFallbackDecoder constructs the pure-Go AAC stand-in decoder.
func NewFallbackDecoder(channels int) *FallbackDecoder {
	return &FallbackDecoder{channels: channels}
}

// Decode un-frames frame and reconstructs FrameSamples()*channels PCM
// samples.
func (f *FallbackDecoder) Decode(frame LATMFrame) ([]int16, error) {
	payload, err := Demux(frame)
	if err != nil {
		return nil, err
	}
	out := make([]int16, fallbackFrameSamples*f.channels)
	if len(payload) == 0 {
		return out, nil
	}
	for i := range out {
		out[i] = int16(payload[i%len(payload)]) << 8
	}
	return out, nil
}
