package engine

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/cwsl/btaudiod/internal/codec/sbc"
	"github.com/cwsl/btaudiod/internal/metrics"
	"github.com/cwsl/btaudiod/internal/registry"
	"github.com/cwsl/btaudiod/internal/rtp"
)

func newSourceTransport(t *testing.T, profile registry.Profile, a2dp registry.A2DPCodecID) *registry.Transport {
	t.Helper()
	reg := registry.New()
	a, _ := reg.LookupOrCreateAdapter(0, "/org/btaudio/hci0", "hci0")
	d, _ := a.LookupOrCreateDevice(registry.Address{1, 2, 3, 4, 5, 6})
	tr, _ := d.LookupOrCreateTransport(registry.CodecIdentity{Profile: profile, A2DP: a2dp})
	return tr
}

// TestSBCSourcePacketShape exercises spec.md §8.3: every outgoing packet
// begins with 12-byte RTP + 1-byte media header, stays within MTU, the
// media-header frame count matches the frames packed, and the timestamp
// advances by frames_packed*10000/sample_rate.
func TestSBCSourcePacketShape(t *testing.T) {
	tr := newSourceTransport(t, registry.ProfileA2DPSource, registry.A2DPCodecSBC)
	tr.WriteMTU = 679

	fifoR, fifoW, err := unixPipe()
	require.NoError(t, err)
	defer unix.Close(fifoR)
	defer unix.Close(fifoW)

	btA, btB, err := unixSocketpair()
	require.NoError(t, err)
	defer unix.Close(btA)
	defer unix.Close(btB)
	require.NoError(t, unix.SetNonblock(btB, true))

	ep := tr.Endpoint(0)
	ep.FIFOFd = fifoR
	tr.SetBTSocketFd(btA)

	flow := NewSBCSourceFlow(tr, ep)
	cfg := sbc.DefaultA2DPConfig()

	pcm := make([]int16, cfg.Codesize*cfg.Channels)
	for i := range pcm {
		pcm[i] = int16(i)
	}
	raw := int16SliceToBytes(pcm)
	_, err = unix.Write(fifoW, raw)
	require.NoError(t, err)

	beforeTs := flow.Pkt.Timestamp()
	require.NoError(t, flow.OnFIFOReadable())
	afterTs := flow.Pkt.Timestamp()

	buf := make([]byte, 2048)
	total, rerr := waitAndRead(t, btB, buf)
	require.NoError(t, rerr)
	require.Greater(t, total, 0)
	require.LessOrEqual(t, total, 679)

	parsed, perr := rtp.Parse(buf[:total])
	require.NoError(t, perr)
	require.GreaterOrEqual(t, len(parsed.Payload), 1)

	frameCount := rtp.SBCFrameCount(parsed.Payload[0])
	require.Equal(t, 1, frameCount)
	require.Equal(t, uint32(cfg.Codesize*10000/cfg.SampleRate), afterTs-beforeTs)
}

// TestSCOFlowsHandleBothDirections is a smoke test for spec.md's "single
// readiness wait on {signal-pipe, data-fd}" model as applied to a duplex
// SCO flow: HandlesBT and HandlesFIFO must both be true.
func TestSCOFlowsHandleBothDirections(t *testing.T) {
	tr := newSourceTransport(t, registry.ProfileHFPAG, registry.A2DPCodecSBC)
	tr.Identity.SCO = registry.SCOCodecCVSD
	speaker, mic := tr.Endpoint(0), tr.Endpoint(1)
	flow := NewCVSDFlow(tr, speaker, mic)

	require.True(t, flow.HandlesBT())
	require.True(t, flow.HandlesFIFO())
}

// TestBuildPollSetGatesBTFdOnActiveState exercises the fix for §4.8's "the
// data fd is gated on state == ACTIVE" invariant applying equally to the
// Bluetooth socket for sink-direction flows, not just the FIFO: a PAUSED
// sink transport must stop polling its BT fd too, or it keeps decoding and
// forwarding audio while paused.
func TestBuildPollSetGatesBTFdOnActiveState(t *testing.T) {
	tr := newSourceTransport(t, registry.ProfileA2DPSink, registry.A2DPCodecSBC)
	ep := tr.Endpoint(0)
	flow := NewSBCSinkFlow(tr, ep)
	r := New(tr, flow, nil)

	btA, btB, err := unixSocketpair()
	require.NoError(t, err)
	defer unix.Close(btA)
	defer unix.Close(btB)
	tr.SetBTSocketFd(btA)

	tr.SetState(registry.StateActive)
	fds, indexBT, _ := r.buildPollSet()
	require.Len(t, fds, 1)
	require.Equal(t, 0, indexBT)

	tr.SetState(registry.StatePaused)
	fds, indexBT, _ = r.buildPollSet()
	require.Empty(t, fds)
	require.Equal(t, -1, indexBT)
}

// TestNewFlowWiresOptionalMetrics exercises the setMetrics hook NewFlow
// uses so that an error/backlog/gap counter wired inside a flow's I/O path
// actually reaches the collectors the operator scrapes at /metrics, rather
// than being constructed against its own private registry.
func TestNewFlowWiresOptionalMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	tr := newSourceTransport(t, registry.ProfileA2DPSource, registry.A2DPCodecSBC)
	flow, err := NewFlow(tr, Options{Metrics: m})
	require.NoError(t, err)
	require.Same(t, m, flow.(*SBCSourceFlow).Metrics)

	tr = newSourceTransport(t, registry.ProfileA2DPSink, registry.A2DPCodecSBC)
	flow, err = NewFlow(tr, Options{Metrics: m})
	require.NoError(t, err)
	require.Same(t, m, flow.(*SBCSinkFlow).Metrics)
}

func unixPipe() (r, w int, err error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return -1, -1, err
	}
	if err := unix.SetNonblock(fds[0], true); err != nil {
		return -1, -1, err
	}
	return fds[0], fds[1], nil
}

func unixSocketpair() (a, b int, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, -1, err
	}
	if err := unix.SetNonblock(fds[0], true); err != nil {
		return -1, -1, err
	}
	return fds[0], fds[1], nil
}

func waitAndRead(t *testing.T, fd int, buf []byte) (int, error) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		n, err := unix.Read(fd, buf)
		if err == unix.EAGAIN {
			time.Sleep(5 * time.Millisecond)
			continue
		}
		return n, err
	}
	t.Fatal("timed out waiting for data")
	return 0, nil
}
