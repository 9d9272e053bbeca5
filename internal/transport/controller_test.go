package transport

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/cwsl/btaudiod/internal/metrics"
	"github.com/cwsl/btaudiod/internal/registry"
)

// fakeFifo hands out incrementing fake fd numbers without touching the
// kernel, so controller logic can be tested without real pipes.
type fakeFifo struct {
	next int
}

func (f *fakeFifo) OpenDataPipe(ep *registry.PCMEndpoint, mode OpenMode) (int, int, error) {
	f.next++
	internal := f.next
	f.next++
	external := f.next
	return internal, external, nil
}

func (f *fakeFifo) OpenControlPair(ep *registry.PCMEndpoint) (int, int, error) {
	f.next++
	internal := f.next
	f.next++
	external := f.next
	return internal, external, nil
}

func (f *fakeFifo) Close(fd int) error { return nil }

func newTestTransport(t *testing.T) (*registry.Registry, *registry.Transport) {
	t.Helper()
	reg := registry.New()
	a, _ := reg.LookupOrCreateAdapter(0, "/org/btaudio/hci0", "hci0")
	d, _ := a.LookupOrCreateDevice(registry.Address{1, 2, 3, 4, 5, 6})
	tr, _ := d.LookupOrCreateTransport(registry.CodecIdentity{Profile: registry.ProfileA2DPSource, A2DP: registry.A2DPCodecSBC})
	return reg, tr
}

func TestOpenAssignsFdsAndSignals(t *testing.T) {
	_, tr := newTestTransport(t)
	ctrl := New(tr, Capability{AllowSink: true}, &fakeFifo{})

	dataFd, ctrlFd, err := ctrl.Open(0, ModeSink)
	require.NoError(t, err)
	require.NotEqual(t, -1, dataFd)
	require.NotEqual(t, -1, ctrlFd)
	require.Equal(t, registry.StateActive, tr.State())

	select {
	case sig := <-tr.SignalCh:
		require.Equal(t, registry.SigPCMOpen, sig)
	default:
		t.Fatal("expected PCM_OPEN signal")
	}
}

func TestOpenBusyWhenAlreadyOpen(t *testing.T) {
	_, tr := newTestTransport(t)
	ctrl := New(tr, Capability{AllowSink: true}, &fakeFifo{})
	_, _, err := ctrl.Open(0, ModeSink)
	require.NoError(t, err)
	<-tr.SignalCh // drain

	_, _, err = ctrl.Open(0, ModeSink)
	require.ErrorIs(t, err, ErrBusy)
}

func TestOpenNotSupportedMode(t *testing.T) {
	_, tr := newTestTransport(t)
	ctrl := New(tr, Capability{AllowSink: true}, &fakeFifo{})
	_, _, err := ctrl.Open(0, ModeSource)
	require.ErrorIs(t, err, ErrNotSupported)
}

func TestDeferredAcquireFailureReturnsFdsAndError(t *testing.T) {
	_, tr := newTestTransport(t)
	ctrl := New(tr, Capability{
		AllowSink:       true,
		DeferredAcquire: true,
		Acquire: func(t *registry.Transport) (int, int, int, error) {
			return -1, 0, 0, ErrAcquireFailed
		},
	}, &fakeFifo{})

	_, _, err := ctrl.Open(0, ModeSink)
	require.ErrorIs(t, err, ErrAcquireFailed)
	require.Equal(t, -1, tr.Endpoint(0).FIFOFd)
	require.Equal(t, -1, tr.Endpoint(0).CtrlFd)
}

func TestDrainCompletesWhenSignalled(t *testing.T) {
	_, tr := newTestTransport(t)
	ctrl := New(tr, Capability{AllowSink: true}, &fakeFifo{})

	go func() {
		<-tr.SignalCh // consume SYNC
		tr.SignalDrained()
	}()

	ok := ctrl.Drain(time.Second)
	require.True(t, ok)
}

func TestDrainTimesOut(t *testing.T) {
	_, tr := newTestTransport(t)
	ctrl := New(tr, Capability{AllowSink: true}, &fakeFifo{})
	go func() { <-tr.SignalCh }() // consume SYNC, never signal drained

	ok := ctrl.Drain(50 * time.Millisecond)
	require.False(t, ok)
}

func TestDrainObservesDurationMetric(t *testing.T) {
	_, tr := newTestTransport(t)
	ctrl := New(tr, Capability{AllowSink: true}, &fakeFifo{})
	ctrl.Metrics = metrics.New(prometheus.NewRegistry())

	go func() {
		<-tr.SignalCh // consume SYNC
		tr.SignalDrained()
	}()

	require.True(t, ctrl.Drain(time.Second))
	require.Equal(t, 1, testutil.CollectAndCount(ctrl.Metrics.DrainDuration))
}

func TestReleasePCMClosesFdAndReturnsIdle(t *testing.T) {
	_, tr := newTestTransport(t)
	ctrl := New(tr, Capability{AllowSink: true}, &fakeFifo{})
	ctrl.Open(0, ModeSink)
	<-tr.SignalCh

	ctrl.ReleasePCM(tr.Endpoint(0))
	require.Equal(t, -1, tr.Endpoint(0).FIFOFd)
	require.Equal(t, registry.StateIdle, tr.State())
}
