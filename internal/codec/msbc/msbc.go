package msbc

import (
	"github.com/cwsl/btaudiod/internal/codec/sbc"
)

// FrameSamples is the number of 16kHz PCM samples one mSBC frame covers.
const FrameSamples = 128

func payloadCodec() *sbc.Codec {
	return sbc.New(sbc.Config{Codesize: FrameSamples, FrameBytes: sbcPayloadLen, Channels: 1, SampleRate: 16000})
}

// Encoder accumulates PCM samples fed in arbitrary-sized chunks and emits
// complete 60-byte H2 packets once FrameSamples worth of PCM are
// available, per spec.md §8.2.
type Encoder struct {
	pending []int16
	seq     int
	codec   *sbc.Codec
}

// NewEncoder creates an mSBC encoder.
func NewEncoder() *Encoder {
	return &Encoder{codec: payloadCodec()}
}

// Write feeds pcm samples in and returns any complete H2 packets produced.
func (e *Encoder) Write(pcm []int16) ([]byte, error) {
	e.pending = append(e.pending, pcm...)

	var out []byte
	for len(e.pending) >= FrameSamples {
		frame := e.pending[:FrameSamples]
		e.pending = e.pending[FrameSamples:]

		sbcFrame, err := e.codec.Encode(frame)
		if err != nil {
			return out, err
		}

		packet := make([]byte, 0, FrameLen)
		packet = append(packet, syncByte, seqByteFor(e.seq))
		packet = append(packet, sbcFrame...)
		packet = append(packet, 0x00) // pad byte to reach 60
		e.seq++

		out = append(out, packet...)
	}
	return out, nil
}

// Decoder scans an incoming byte stream for valid H2 headers before each
// decode, preserving partial data when no header is found, per spec.md
// §4.8. The first successfully decoded frame only yields its final
// FrameSamples-InitialLatency samples, modelling the real mSBC decoder's
// analysis-filter startup latency (spec.md §8.2).
type Decoder struct {
	buf            []byte
	codec          *sbc.Codec
	primed         bool
	InitialLatency int
}

// NewDecoder creates an mSBC decoder with the standard 64-sample initial
// latency from spec.md §8.2.
func NewDecoder() *Decoder {
	return &Decoder{codec: payloadCodec(), InitialLatency: 64}
}

// Write feeds raw bytes from the Bluetooth socket in and returns any PCM
// samples decoded from complete packets found within them.
func (d *Decoder) Write(raw []byte) ([]int16, error) {
	d.buf = append(d.buf, raw...)

	var out []int16
	for {
		found, offset, keepLen := ScanH2(d.buf)
		if !found {
			d.buf = tail(d.buf, keepLen)
			return out, nil
		}
		if keepLen < FrameLen {
			// Header found but the full packet hasn't arrived yet.
			d.buf = d.buf[offset:]
			return out, nil
		}

		packet := d.buf[offset : offset+FrameLen]
		d.buf = d.buf[offset+FrameLen:]

		sbcFrame := packet[2 : 2+sbcPayloadLen]
		pcm, err := d.codec.Decode(sbcFrame)
		if err != nil {
			return out, err
		}

		if !d.primed {
			d.primed = true
			if d.InitialLatency < len(pcm) {
				pcm = pcm[d.InitialLatency:]
			} else {
				pcm = nil
			}
		}
		out = append(out, pcm...)
	}
}

func tail(buf []byte, n int) []byte {
	if n <= 0 || n > len(buf) {
		if n <= 0 {
			return nil
		}
		n = len(buf)
	}
	start := len(buf) - n
	return append([]byte(nil), buf[start:]...)
}
