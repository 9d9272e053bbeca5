package engine

import (
	"github.com/cwsl/btaudiod/internal/btsock"
	"github.com/cwsl/btaudiod/internal/codec/cvsd"
	"github.com/cwsl/btaudiod/internal/codec/msbc"
	"github.com/cwsl/btaudiod/internal/metrics"
	"github.com/cwsl/btaudiod/internal/pcmio"
	"github.com/cwsl/btaudiod/internal/registry"
	"github.com/cwsl/btaudiod/internal/volume"
)

// CVSDFlow is the narrowband SCO pass-through: 16-bit samples copied
// verbatim between the speaker FIFO and the BT socket (encode direction)
// and between the BT socket and the mic FIFO (decode direction), at fixed
// mtu_write/mtu_read, per spec.md §4.8 "SCO (CVSD)".
type CVSDFlow struct {
	T       *registry.Transport
	Speaker *registry.PCMEndpoint // source direction: engine reads this fifo
	Mic     *registry.PCMEndpoint // sink direction: engine writes this fifo
	Codec   *cvsd.Codec
	readBuf []byte
}

// NewCVSDFlow constructs a CVSD duplex flow.
func NewCVSDFlow(t *registry.Transport, speaker, mic *registry.PCMEndpoint) *CVSDFlow {
	return &CVSDFlow{T: t, Speaker: speaker, Mic: mic, Codec: cvsd.New(), readBuf: make([]byte, 4096)}
}

func (f *CVSDFlow) HandlesBT() bool   { return true }
func (f *CVSDFlow) HandlesFIFO() bool { return true }
func (f *CVSDFlow) Reset()            {}
func (f *CVSDFlow) Close()            {}
func (f *CVSDFlow) ReadFd() int       { return f.Speaker.FIFOFd }

func (f *CVSDFlow) OnFIFOReadable() error {
	n, err := pcmio.Read(f.Speaker.FIFOFd, f.readBuf)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	_, werr := btsock.Write(f.T.BTSocketFd(), f.readBuf[:n], waitWritable)
	return werr
}

func (f *CVSDFlow) OnBTReadable() error {
	n, err := btsock.Read(f.T.BTSocketFd(), f.readBuf)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	pcm := bytesToInt16Slice(f.readBuf[:n])
	_, muteMic, _, _ := registry.UnpackVolume(f.Mic.Volume().Get())
	volume.ScaleMonoInPlace(pcm, volume.Factor(15, muteMic, volume.SCOMaxVolume))
	_, werr := pcmio.Write(f.Mic.FIFOFd, int16SliceToBytes(pcm), waitWritable)
	return werr
}

// MSBCFlow is the wideband SCO flow: H2-framed mSBC in both directions,
// per spec.md §4.8 "SCO (mSBC)".
type MSBCFlow struct {
	T       *registry.Transport
	Speaker *registry.PCMEndpoint
	Mic     *registry.PCMEndpoint
	Enc     *msbc.Encoder
	Dec     *msbc.Decoder
	Metrics *metrics.Metrics
	readBuf []byte
}

func (f *MSBCFlow) setMetrics(m *metrics.Metrics) { f.Metrics = m }

// NewMSBCFlow constructs an mSBC duplex flow.
func NewMSBCFlow(t *registry.Transport, speaker, mic *registry.PCMEndpoint) *MSBCFlow {
	return &MSBCFlow{
		T:       t,
		Speaker: speaker,
		Mic:     mic,
		Enc:     msbc.NewEncoder(),
		Dec:     msbc.NewDecoder(),
		readBuf: make([]byte, 4096),
	}
}

func (f *MSBCFlow) HandlesBT() bool   { return true }
func (f *MSBCFlow) HandlesFIFO() bool { return true }
func (f *MSBCFlow) Reset()            {}
func (f *MSBCFlow) Close()            {}
func (f *MSBCFlow) ReadFd() int       { return f.Speaker.FIFOFd }

func (f *MSBCFlow) OnFIFOReadable() error {
	n, err := pcmio.Read(f.Speaker.FIFOFd, f.readBuf)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	pcm := bytesToInt16Slice(f.readBuf[:n])
	encoded, eerr := f.Enc.Write(pcm)
	if eerr != nil {
		if f.Metrics != nil {
			f.Metrics.CodecErrorsTotal.WithLabelValues("msbc", "encode").Inc()
		}
		return nil // codec error: drop, continue
	}
	if len(encoded) == 0 {
		return nil
	}
	_, werr := btsock.Write(f.T.BTSocketFd(), encoded, waitWritable)
	return werr
}

func (f *MSBCFlow) OnBTReadable() error {
	n, err := btsock.Read(f.T.BTSocketFd(), f.readBuf)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	pcm, derr := f.Dec.Write(f.readBuf[:n])
	if derr != nil {
		if f.Metrics != nil {
			f.Metrics.CodecErrorsTotal.WithLabelValues("msbc", "decode").Inc()
		}
		return nil
	}
	if len(pcm) == 0 {
		return nil
	}
	_, muteMic, _, _ := registry.UnpackVolume(f.Mic.Volume().Get())
	volume.ScaleMonoInPlace(pcm, volume.Factor(15, muteMic, volume.SCOMaxVolume))
	_, werr := pcmio.Write(f.Mic.FIFOFd, int16SliceToBytes(pcm), waitWritable)
	return werr
}
