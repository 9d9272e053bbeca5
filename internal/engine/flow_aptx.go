package engine

import (
	"time"

	"github.com/cwsl/btaudiod/internal/btsock"
	"github.com/cwsl/btaudiod/internal/codec/aptx"
	"github.com/cwsl/btaudiod/internal/metrics"
	"github.com/cwsl/btaudiod/internal/pcmbuf"
	"github.com/cwsl/btaudiod/internal/pcmio"
	"github.com/cwsl/btaudiod/internal/ratesync"
	"github.com/cwsl/btaudiod/internal/registry"
)

const aptxSampleRate = 44100

// AptXSourceFlow encodes stereo PCM in fixed 4-frame blocks and fills the
// Bluetooth write buffer up to MTU before flushing, per spec.md §4.8
// "AptX source". AptX carries no RTP framing on the wire (spec.md §4.7).
type AptXSourceFlow struct {
	T       *registry.Transport
	Ep      *registry.PCMEndpoint
	Codec   *aptx.Codec
	RS      *ratesync.Synchroniser
	Metrics *metrics.Metrics
	pcm     *pcmbuf.Buffer[int16]
	outbuf  []byte
}

func (f *AptXSourceFlow) setMetrics(m *metrics.Metrics) { f.Metrics = m }

// NewAptXSourceFlow constructs an AptX source flow.
func NewAptXSourceFlow(t *registry.Transport, ep *registry.PCMEndpoint) *AptXSourceFlow {
	return &AptXSourceFlow{
		T:     t,
		Ep:    ep,
		Codec: aptx.New(),
		RS:    ratesync.New(aptxSampleRate),
		pcm:   pcmbuf.New[int16](aptx.BlockFrames * 2 * 8),
	}
}

func (f *AptXSourceFlow) HandlesBT() bool     { return false }
func (f *AptXSourceFlow) HandlesFIFO() bool   { return true }
func (f *AptXSourceFlow) Reset()              { f.RS.Init(aptxSampleRate) }
func (f *AptXSourceFlow) Close()              {}
func (f *AptXSourceFlow) ReadFd() int         { return f.Ep.FIFOFd }
func (f *AptXSourceFlow) OnBTReadable() error { return nil }

func (f *AptXSourceFlow) OnFIFOReadable() error {
	need := aptx.BlockFrames * 2 * 2
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

	blockLen := aptx.BlockFrames * 2
	mtu := f.T.WriteMTU
	if mtu < aptx.BlockBytes {
		mtu = aptx.BlockBytes
	}

	for f.pcm.LenOut() >= blockLen {
		encodeStart := time.Now()
		block, eerr := f.Codec.Encode(f.pcm.Data()[:blockLen])
		f.pcm.Shift(blockLen)
		if eerr != nil {
			if f.Metrics != nil {
				f.Metrics.CodecErrorsTotal.WithLabelValues("aptx", "encode").Inc()
			}
			continue
		}
		if len(f.outbuf)+len(block) > mtu {
			if werr := f.flush(); werr != nil {
				return werr
			}
		}
		f.outbuf = append(f.outbuf, block...)
		f.RS.Sync(aptx.BlockFrames, encodeStart)
		f.T.SetEncodingDelay(int(f.RS.GetBusyMicros() / 100))

		if len(f.outbuf) >= mtu {
			if werr := f.flush(); werr != nil {
				return werr
			}
		}
	}
	return nil
}

func (f *AptXSourceFlow) flush() error {
	if len(f.outbuf) == 0 {
		return nil
	}
	_, err := btsock.Write(f.T.BTSocketFd(), f.outbuf, waitWritable)
	f.outbuf = f.outbuf[:0]
	return err
}
