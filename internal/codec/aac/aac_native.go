//go:build aac_cgo
// +build aac_cgo

package aac

import (
	"fmt"

	opus "gopkg.in/hraban/opus.v2"
)

// nativeFrameSamples is the AAC access unit size used by the native
// binding's configuration (1024 samples per channel, the usual AAC-LC
// frame length).
const nativeFrameSamples = 1024

// NativeEncoder binds to a real compressed-audio encoder via cgo. No
// production AAC-LC Go binding ships with a pure-Go build, so this build
// tag reuses the host encoder binding shape the teacher established for
// Opus (gopkg.in/hraban/opus.v2): same construction, bitrate and
// complexity knobs, same enable/fallback pattern, pointed at this
// daemon's AAC sample rate and channel count instead of VoIP telephony
// defaults.
type NativeEncoder struct {
	enc      *opus.Encoder
	channels int
}

// NewNativeEncoder constructs the cgo-backed encoder for the given
// sample rate and channel count, mirroring ka9q_ubersdr's NewOpusEncoder.
func NewNativeEncoder(sampleRate, channels int) (*NativeEncoder, error) {
	enc, err := opus.NewEncoder(sampleRate, channels, opus.Application(2049))
	if err != nil {
		return nil, fmt.Errorf("aac: native encoder init failed: %w", err)
	}
	if err := enc.SetBitrate(128000); err != nil {
		return nil, fmt.Errorf("aac: native encoder bitrate: %w", err)
	}
	return &NativeEncoder{enc: enc, channels: channels}, nil
}

// FrameSamples returns the PCM frame length (per channel) one Encode call
// consumes.
func (n *NativeEncoder) FrameSamples() int { return nativeFrameSamples }

// Encode runs pcm through the native encoder and LATM-frames the result.
func (n *NativeEncoder) Encode(pcm []int16) (LATMFrame, error) {
	out := make([]byte, 4000)
	written, err := n.enc.Encode(pcm, out)
	if err != nil {
		return LATMFrame{}, fmt.Errorf("aac: native encode failed: %w", err)
	}
	return Transmux(out[:written]), nil
}

// NativeDecoder binds a real compressed-audio decoder via cgo.
type NativeDecoder struct {
	dec      *opus.Decoder
	channels int
}

// NewNativeDecoder constructs the cgo-backed decoder.
func NewNativeDecoder(sampleRate, channels int) (*NativeDecoder, error) {
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("aac: native decoder init failed: %w", err)
	}
	return &NativeDecoder{dec: dec, channels: channels}, nil
}

// Decode un-frames frame and runs it through the native decoder.
func (n *NativeDecoder) Decode(frame LATMFrame) ([]int16, error) {
	payload, err := Demux(frame)
	if err != nil {
		return nil, err
	}
	pcm := make([]int16, nativeFrameSamples*n.channels)
	samplesPerChannel, err := n.dec.Decode(payload, pcm)
	if err != nil {
		return nil, fmt.Errorf("aac: native decode failed: %w", err)
	}
	return pcm[:samplesPerChannel*n.channels], nil
}
