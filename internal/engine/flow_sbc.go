package engine

import (
	"time"

	"github.com/cwsl/btaudiod/internal/btsock"
	"github.com/cwsl/btaudiod/internal/codec/sbc"
	"github.com/cwsl/btaudiod/internal/metrics"
	"github.com/cwsl/btaudiod/internal/pcmbuf"
	"github.com/cwsl/btaudiod/internal/pcmio"
	"github.com/cwsl/btaudiod/internal/ratesync"
	"github.com/cwsl/btaudiod/internal/registry"
	"github.com/cwsl/btaudiod/internal/rtp"
	"github.com/cwsl/btaudiod/internal/volume"
)

// SBCSinkFlow decodes inbound RTP+SBC frames and writes PCM to the local
// FIFO, per spec.md §4.8 "SBC sink".
type SBCSinkFlow struct {
	T       *registry.Transport
	Ep      *registry.PCMEndpoint
	Codec   *sbc.Codec
	Gaps    rtp.GapDetector
	Metrics *metrics.Metrics
	readBuf []byte
}

func (f *SBCSinkFlow) setMetrics(m *metrics.Metrics) { f.Metrics = m }

// NewSBCSinkFlow constructs a sink flow for transport t writing into ep.
func NewSBCSinkFlow(t *registry.Transport, ep *registry.PCMEndpoint) *SBCSinkFlow {
	cfg := sbc.DefaultA2DPConfig()
	return &SBCSinkFlow{
		T:       t,
		Ep:      ep,
		Codec:   sbc.New(cfg),
		readBuf: make([]byte, 4096),
	}
}

func (f *SBCSinkFlow) HandlesBT() bool   { return true }
func (f *SBCSinkFlow) HandlesFIFO() bool { return false }
func (f *SBCSinkFlow) Reset()            {}
func (f *SBCSinkFlow) Close()            {}
func (f *SBCSinkFlow) ReadFd() int       { return -1 }

// OnFIFOReadable is never called for a sink flow.
func (f *SBCSinkFlow) OnFIFOReadable() error { return nil }

func (f *SBCSinkFlow) OnBTReadable() error {
	n, err := btsock.Read(f.T.BTSocketFd(), f.readBuf)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	parsed, err := rtp.Parse(f.readBuf[:n])
	if err != nil {
		return nil // malformed packet: codec error policy is log-and-drop
	}
	if f.Gaps.Observe(parsed.Sequence) {
		// Sequence gap: log and continue, per spec.md §4.7.
		if f.Metrics != nil {
			f.Metrics.RTPSequenceGapsTotal.WithLabelValues(f.T.Identity.Profile.String()).Inc()
		}
	}
	if len(parsed.Payload) < 1 {
		return nil
	}
	frameCount := rtp.SBCFrameCount(parsed.Payload[0])
	body := parsed.Payload[1:]

	var pcm []int16
	frameLen := f.Codec.Cfg.FrameBytes
	for i := 0; i < frameCount && len(body) >= frameLen; i++ {
		decoded, derr := f.Codec.Decode(body[:frameLen])
		if derr != nil {
			if f.Metrics != nil {
				f.Metrics.CodecErrorsTotal.WithLabelValues("sbc", "decode").Inc()
			}
			body = body[frameLen:]
			continue // codec error: drop this frame, continue
		}
		body = body[frameLen:]
		pcm = append(pcm, decoded...)
	}
	if len(pcm) == 0 {
		return nil
	}

	ch1, mute1, ch2, mute2 := registry.UnpackVolume(f.Ep.Volume().Get())
	volume.ScaleStereoInPlace(pcm, volume.Factor(ch1, mute1, volume.A2DPMaxVolume), volume.Factor(ch2, mute2, volume.A2DPMaxVolume))

	raw := int16SliceToBytes(pcm)
	_, werr := pcmio.Write(f.Ep.FIFOFd, raw, waitWritable)
	return werr
}

// SBCSourceFlow reads PCM from the local FIFO, encodes it as SBC, and
// writes RTP+SBC packets to the Bluetooth socket, per spec.md §4.8 "SBC
// source"/§8.3.
type SBCSourceFlow struct {
	T       *registry.Transport
	Ep      *registry.PCMEndpoint
	Codec   *sbc.Codec
	Pkt     *rtp.Packetizer
	RS      *ratesync.Synchroniser
	Metrics *metrics.Metrics
	pcm     *pcmbuf.Buffer[int16]
}

func (f *SBCSourceFlow) setMetrics(m *metrics.Metrics) { f.Metrics = m }

// NewSBCSourceFlow constructs a source flow for transport t reading from ep.
func NewSBCSourceFlow(t *registry.Transport, ep *registry.PCMEndpoint) *SBCSourceFlow {
	cfg := sbc.DefaultA2DPConfig()
	return &SBCSourceFlow{
		T:     t,
		Ep:    ep,
		Codec: sbc.New(cfg),
		Pkt:   rtp.NewPacketizer(),
		RS:    ratesync.New(cfg.SampleRate),
		pcm:   pcmbuf.New[int16](cfg.Codesize * cfg.Channels * 8),
	}
}

func (f *SBCSourceFlow) HandlesBT() bool     { return false }
func (f *SBCSourceFlow) HandlesFIFO() bool   { return true }
func (f *SBCSourceFlow) Reset()              { f.RS.Init(f.Codec.Cfg.SampleRate) }
func (f *SBCSourceFlow) Close()              {}
func (f *SBCSourceFlow) ReadFd() int         { return f.Ep.FIFOFd }
func (f *SBCSourceFlow) OnBTReadable() error { return nil }

func (f *SBCSourceFlow) OnFIFOReadable() error {
	cfg := f.Codec.Cfg
	needBytes := cfg.Codesize * cfg.Channels * 2
	readBuf := make([]byte, needBytes)
	n, err := pcmio.Read(f.Ep.FIFOFd, readBuf)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	samples := bytesToInt16Slice(readBuf[:n])
	f.pcm.Init(f.pcm.LenOut() + len(samples))
	copy(f.pcm.Tail(), samples)
	f.pcm.Seek(len(samples))

	codesize := cfg.Codesize * cfg.Channels
	maxFramesPerPacket := (f.T.WriteMTU - rtp.HeaderLen - 1) / cfg.FrameBytes
	if maxFramesPerPacket < 1 {
		maxFramesPerPacket = 1
	}

	for f.pcm.LenOut() >= codesize {
		encodeStart := time.Now()
		var payload []byte
		framesPacked := 0
		data := f.pcm.Data()
		for framesPacked < maxFramesPerPacket && len(data) >= codesize {
			frame, derr := f.Codec.Encode(data[:codesize])
			if derr != nil {
				if f.Metrics != nil {
					f.Metrics.CodecErrorsTotal.WithLabelValues("sbc", "encode").Inc()
				}
				break
			}
			payload = append(payload, frame...)
			data = data[codesize:]
			framesPacked++
		}
		if framesPacked == 0 {
			break
		}
		f.pcm.Shift(framesPacked * codesize)

		mediaHeader := rtp.SBCMediaHeader(framesPacked)
		pkt := f.Pkt.Build(false, mediaHeader, payload)
		if _, werr := btsock.Write(f.T.BTSocketFd(), pkt, waitWritable); werr != nil {
			return werr
		}
		f.Pkt.AdvanceTimestamp(framesPacked*cfg.Codesize, cfg.SampleRate)
		f.RS.Sync(framesPacked*cfg.Codesize, encodeStart)
		f.T.SetEncodingDelay(int(f.RS.GetBusyMicros() / 100))
	}
	return nil
}

func int16SliceToBytes(s []int16) []byte {
	out := make([]byte, len(s)*2)
	for i, v := range s {
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

func bytesToInt16Slice(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(b[i*2]) | int16(b[i*2+1])<<8
	}
	return out
}
