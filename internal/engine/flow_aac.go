package engine

import (
	"time"

	"github.com/cwsl/btaudiod/internal/btsock"
	"github.com/cwsl/btaudiod/internal/codec/aac"
	"github.com/cwsl/btaudiod/internal/metrics"
	"github.com/cwsl/btaudiod/internal/pcmbuf"
	"github.com/cwsl/btaudiod/internal/pcmio"
	"github.com/cwsl/btaudiod/internal/ratesync"
	"github.com/cwsl/btaudiod/internal/registry"
	"github.com/cwsl/btaudiod/internal/rtp"
	"github.com/cwsl/btaudiod/internal/volume"
)

const aacSampleRate = 44100
const aacChannels = 2

// AACSinkFlow reassembles fragmented RTP+LATM access units, decodes them,
// and writes PCM to the local FIFO, per spec.md §4.7/§4.8.
type AACSinkFlow struct {
	T       *registry.Transport
	Ep      *registry.PCMEndpoint
	Dec     *aac.FallbackDecoder
	Gaps    rtp.GapDetector
	Quirk   rtp.MarkQuirkTracker
	Metrics *metrics.Metrics
	pending []byte
	readBuf []byte
}

func (f *AACSinkFlow) setMetrics(m *metrics.Metrics) { f.Metrics = m }

// NewAACSinkFlow constructs an AAC sink flow.
func NewAACSinkFlow(t *registry.Transport, ep *registry.PCMEndpoint) *AACSinkFlow {
	return &AACSinkFlow{
		T:       t,
		Ep:      ep,
		Dec:     aac.NewFallbackDecoder(aacChannels),
		readBuf: make([]byte, 4096),
	}
}

func (f *AACSinkFlow) HandlesBT() bool       { return true }
func (f *AACSinkFlow) HandlesFIFO() bool     { return false }
func (f *AACSinkFlow) Reset()                {}
func (f *AACSinkFlow) Close()                {}
func (f *AACSinkFlow) ReadFd() int           { return -1 }
func (f *AACSinkFlow) OnFIFOReadable() error { return nil }

func (f *AACSinkFlow) OnBTReadable() error {
	n, err := btsock.Read(f.T.BTSocketFd(), f.readBuf)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	parsed, perr := rtp.Parse(f.readBuf[:n])
	if perr != nil {
		return nil
	}
	if f.Gaps.Observe(parsed.Sequence) && f.Metrics != nil {
		f.Metrics.RTPSequenceGapsTotal.WithLabelValues(f.T.Identity.Profile.String()).Inc()
	}
	f.Quirk.Observe(parsed.Marker)

	f.pending = append(f.pending, parsed.Payload...)
	terminal := parsed.Marker || f.Quirk.TreatEveryPacketAsTerminal()
	if !terminal {
		return nil
	}

	frame := aac.LATMFrame{Payload: f.pending}
	f.pending = nil

	pcm, derr := f.Dec.Decode(frame)
	if derr != nil {
		if f.Metrics != nil {
			f.Metrics.CodecErrorsTotal.WithLabelValues("aac", "decode").Inc()
		}
		return nil // codec error: drop, continue
	}

	ch1, mute1, ch2, mute2 := registry.UnpackVolume(f.Ep.Volume().Get())
	volume.ScaleStereoInPlace(pcm, volume.Factor(ch1, mute1, volume.A2DPMaxVolume), volume.Factor(ch2, mute2, volume.A2DPMaxVolume))

	_, werr := pcmio.Write(f.Ep.FIFOFd, int16SliceToBytes(pcm), waitWritable)
	return werr
}

// AACSourceFlow reads PCM, encodes one LATM access unit at a time, and
// fragments it across RTP packets per spec.md §4.7's fragmentation rule.
// Each access unit is encoded into its own LATM frame; only the PCM staging
// buffer grows, to fit each read.
type AACSourceFlow struct {
	T       *registry.Transport
	Ep      *registry.PCMEndpoint
	Enc     *aac.FallbackEncoder
	Pkt     *rtp.Packetizer
	RS      *ratesync.Synchroniser
	Metrics *metrics.Metrics
	pcm     *pcmbuf.Buffer[int16]
}

func (f *AACSourceFlow) setMetrics(m *metrics.Metrics) { f.Metrics = m }

// NewAACSourceFlow constructs an AAC source flow.
func NewAACSourceFlow(t *registry.Transport, ep *registry.PCMEndpoint) *AACSourceFlow {
	enc := aac.NewFallbackEncoder(aacChannels)
	return &AACSourceFlow{
		T:   t,
		Ep:  ep,
		Enc: enc,
		Pkt: rtp.NewPacketizer(),
		RS:  ratesync.New(aacSampleRate),
		pcm: pcmbuf.New[int16](enc.FrameSamples() * aacChannels * 4),
	}
}

func (f *AACSourceFlow) HandlesBT() bool     { return false }
func (f *AACSourceFlow) HandlesFIFO() bool   { return true }
func (f *AACSourceFlow) Reset()              { f.RS.Init(aacSampleRate) }
func (f *AACSourceFlow) Close()              {}
func (f *AACSourceFlow) ReadFd() int         { return f.Ep.FIFOFd }
func (f *AACSourceFlow) OnBTReadable() error { return nil }

func (f *AACSourceFlow) OnFIFOReadable() error {
	need := f.Enc.FrameSamples() * aacChannels * 2
	readBuf := make([]byte, need)
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

	frameLen := f.Enc.FrameSamples() * aacChannels
	for f.pcm.LenOut() >= frameLen {
		encodeStart := time.Now()
		chunk := f.pcm.Data()[:frameLen]
		latm, eerr := f.Enc.Encode(chunk)
		f.pcm.Shift(frameLen)
		if eerr != nil {
			if f.Metrics != nil {
				f.Metrics.CodecErrorsTotal.WithLabelValues("aac", "encode").Inc()
			}
			continue // codec error: drop this frame, continue
		}
		if werr := f.writeFragmented(latm); werr != nil {
			return werr
		}
		f.Pkt.AdvanceTimestamp(f.Enc.FrameSamples(), aacSampleRate)
		f.RS.Sync(f.Enc.FrameSamples(), encodeStart)
		f.T.SetEncodingDelay(int(f.RS.GetBusyMicros() / 100))
	}
	return nil
}

// writeFragmented splits latm.Payload across RTP packets of at most
// mtu_write-RTP_HEADER_LEN bytes, setting the mark bit on the final
// fragment and keeping the timestamp fixed across all fragments of one
// audio frame, per spec.md §4.7.
func (f *AACSourceFlow) writeFragmented(latm aac.LATMFrame) error {
	chunkSize := f.T.WriteMTU - rtp.HeaderLen
	if chunkSize < 1 {
		chunkSize = 1
	}
	payload := latm.Payload
	ts := f.Pkt.Timestamp()
	_ = ts // timestamp is held fixed by not calling AdvanceTimestamp until all fragments are sent

	for len(payload) > 0 {
		n := chunkSize
		if n > len(payload) {
			n = len(payload)
		}
		fragment := payload[:n]
		payload = payload[n:]
		last := len(payload) == 0
		pkt := f.Pkt.Build(last, nil, fragment)
		if _, err := btsock.Write(f.T.BTSocketFd(), pkt, waitWritable); err != nil {
			return err
		}
	}
	return nil
}
