// Package aac implements the AAC (LATM) codec flow from spec.md §4.8: a
// LATM transmux around a compressed-audio encoder/decoder, with the
// RTP fragmentation rules of spec.md §4.7 (split on MTU, mark bit on the
// final fragment, shared timestamp across fragments) layered on top by
// internal/engine.
//
// AAC genuinely has no adequate pure-Go encoder, so this package reuses
// the teacher's optional-native-library-with-fallback pattern
// (`//go:build aac_cgo` / `!aac_cgo`) verbatim: aac_native.go documents the
// cgo binding shape behind the real codec, aac_fallback.go is the
// always-available pure-Go LATM transmux used by default and in tests.
package aac

import "fmt"

// LATMFrame is one AAC-in-LATM access unit: the raw AAC payload plus the
// LATM framing Transmux adds around it.
type LATMFrame struct {
	Payload []byte
}

// Encoder turns raw PCM into LATM-framed AAC access units.
type Encoder interface {
	Encode(pcm []int16) (LATMFrame, error)
	FrameSamples() int
}

// Decoder turns LATM-framed AAC access units back into PCM.
type Decoder interface {
	Decode(frame LATMFrame) ([]int16, error)
}

// Transmux wraps a raw AAC payload in a LATM StreamMuxConfig-less "in-band"
// frame: a single length-prefix byte sequence compatible with the
// fixed-config LATM mode Bluetooth A2DP uses (no out-of-band audio
// specific config changes mid-stream). This is shared by both the native
// and fallback encoders so the wire framing is identical either way.
func Transmux(aacPayload []byte) LATMFrame {
	framed := make([]byte, 0, len(aacPayload)+3)
	n := len(aacPayload)
	for n >= 0xFF {
		framed = append(framed, 0xFF)
		n -= 0xFF
	}
	framed = append(framed, byte(n))
	framed = append(framed, aacPayload...)
	return LATMFrame{Payload: framed}
}

// Demux reverses Transmux, recovering the raw AAC payload length-prefix
// encoding used on the wire.
func Demux(frame LATMFrame) ([]byte, error) {
	buf := frame.Payload
	total := 0
	i := 0
	for {
		if i >= len(buf) {
			return nil, fmt.Errorf("aac: truncated LATM length prefix")
		}
		total += int(buf[i])
		if buf[i] != 0xFF {
			i++
			break
		}
		i++
	}
	if len(buf)-i < total {
		return nil, fmt.Errorf("aac: LATM payload shorter than declared length")
	}
	return buf[i : i+total], nil
}
