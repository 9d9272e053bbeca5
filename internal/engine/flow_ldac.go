package engine

import (
	"time"

	"github.com/cwsl/btaudiod/internal/btsock"
	"github.com/cwsl/btaudiod/internal/codec/ldac"
	"github.com/cwsl/btaudiod/internal/metrics"
	"github.com/cwsl/btaudiod/internal/pcmbuf"
	"github.com/cwsl/btaudiod/internal/pcmio"
	"github.com/cwsl/btaudiod/internal/ratesync"
	"github.com/cwsl/btaudiod/internal/registry"
	"github.com/cwsl/btaudiod/internal/rtp"
)

const ldacSampleRate = 96000

// LDACSourceFlow encodes stereo PCM with LDAC and paces quality via
// ldac_ABR, which inspects the Bluetooth socket's write backlog before
// every encode call, per spec.md §4.8/§9. Output frames carry RTP plus a
// 1-byte media header, like SBC.
type LDACSourceFlow struct {
	T            *registry.Transport
	Ep           *registry.PCMEndpoint
	Codec        *ldac.Codec
	ABR          *ldac.ABR
	Pkt          *rtp.Packetizer
	RS           *ratesync.Synchroniser
	Metrics      *metrics.Metrics
	idleBaseline int
	pcm          *pcmbuf.Buffer[int16]
}

func (f *LDACSourceFlow) setMetrics(m *metrics.Metrics) { f.Metrics = m }

// NewLDACSourceFlow constructs an LDAC source flow. abrEnabled mirrors the
// `ldac.abr` config option; initialQuality mirrors `ldac.eqmid`.
func NewLDACSourceFlow(t *registry.Transport, ep *registry.PCMEndpoint, abrEnabled bool, initialQuality ldac.QualityIndex) *LDACSourceFlow {
	return &LDACSourceFlow{
		T:     t,
		Ep:    ep,
		Codec: ldac.New(initialQuality),
		ABR:   &ldac.ABR{Enabled: abrEnabled},
		Pkt:   rtp.NewPacketizer(),
		RS:    ratesync.New(ldacSampleRate),
		pcm:   pcmbuf.New[int16](ldac.BlockFrames * 2 * 8),
	}
}

func (f *LDACSourceFlow) HandlesBT() bool     { return false }
func (f *LDACSourceFlow) HandlesFIFO() bool   { return true }
func (f *LDACSourceFlow) Reset()              { f.RS.Init(ldacSampleRate) }
func (f *LDACSourceFlow) Close()              {}
func (f *LDACSourceFlow) ReadFd() int         { return f.Ep.FIFOFd }
func (f *LDACSourceFlow) OnBTReadable() error { return nil }

func (f *LDACSourceFlow) OnFIFOReadable() error {
	need := ldac.BlockFrames * 2 * 2
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

	blockLen := ldac.BlockFrames * 2
	for f.pcm.LenOut() >= blockLen {
		if backlog, berr := btsock.Backlog(f.T.BTSocketFd(), f.idleBaseline); berr == nil {
			f.ABR.Tune(f.Codec, backlog, f.T.WriteMTU)
			if f.Metrics != nil {
				f.Metrics.TransportBacklog.WithLabelValues(f.T.Identity.Profile.String()).Set(float64(backlog))
			}
		}

		encodeStart := time.Now()
		frame, eerr := f.Codec.Encode(f.pcm.Data()[:blockLen])
		f.pcm.Shift(blockLen)
		if eerr != nil {
			if f.Metrics != nil {
				f.Metrics.CodecErrorsTotal.WithLabelValues("ldac", "encode").Inc()
			}
			continue
		}

		mediaHeader := rtp.SBCMediaHeader(1)
		pkt := f.Pkt.Build(false, mediaHeader, frame)
		if _, werr := btsock.Write(f.T.BTSocketFd(), pkt, waitWritable); werr != nil {
			return werr
		}
		f.Pkt.AdvanceTimestamp(ldac.BlockFrames, ldacSampleRate)
		f.RS.Sync(ldac.BlockFrames, encodeStart)
		f.T.SetEncodingDelay(int(f.RS.GetBusyMicros() / 100))
	}
	return nil
}
