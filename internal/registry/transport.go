package registry

import (
	"sync"
	"sync/atomic"
)

// State is the transport state machine's current state, per spec.md §4.4.
type State int32

const (
	StateIdle State = iota
	StateActive
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StatePaused:
		return "paused"
	default:
		return "idle"
	}
}

// Signal is an 8-bit code sent down a transport's signalling pipe to wake
// its I/O goroutine, per spec.md §4.4.
type Signal byte

const (
	SigPing Signal = iota
	SigPCMOpen
	SigPCMClose
	SigPCMPause
	SigPCMResume
	SigPCMSync
	SigPCMDrop
)

// Transport is one directional or bidirectional audio channel on a device
// for a specific profile+codec, per spec.md §3.
type Transport struct {
	refCounted

	Identity CodecIdentity
	Device   *Device // non-owning back-reference, per spec.md §9

	state State // atomic via State field ops below

	btSocketFd atomic.Int32 // -1 when released
	ReadMTU    int
	WriteMTU   int

	CodecConfig []byte // opaque codec-specific configuration blob

	delayUnits atomic.Int32 // encoding delay estimate, units of 0.1ms

	// Signalling pipe: the controller writes signal codes here, the I/O
	// goroutine reads them as part of its single readiness wait.
	SignalCh chan Signal

	// drained is broadcast when a drain (SYNC) completes.
	drainedMu sync.Mutex
	drainedCV *sync.Cond
	drainGen  int

	ioDone chan struct{} // closed when the I/O goroutine returns

	// A2DP transports carry one endpoint; SCO transports carry two
	// (speaker = index 0, mic = index 1). RFCOMM sub-transports carry none.
	PCM [2]*PCMEndpoint

	// Stereo volume/mute for A2DP, or per-direction mute for SCO.
	StereoVolume Volume
}

func newTransport(d *Device, identity CodecIdentity) *Transport {
	t := &Transport{
		Identity: identity,
		Device:   d,
		SignalCh: make(chan Signal, 16),
		ioDone:   make(chan struct{}),
	}
	t.btSocketFd.Store(-1)
	t.drainedCV = sync.NewCond(&t.drainedMu)
	t.refCounted = newRefCounted(func() { t.teardown() })

	switch {
	case identity.Profile.IsA2DP():
		t.PCM[0] = newPCMEndpoint(t, 2, 44100, PCMFlags{
			Sink:   identity.Profile == ProfileA2DPSink,
			Source: identity.Profile == ProfileA2DPSource,
		})
	case identity.Profile.IsSCO():
		t.PCM[0] = newPCMEndpoint(t, 1, 8000, PCMFlags{ProfileTag: "speaker"})
		t.PCM[1] = newPCMEndpoint(t, 1, 8000, PCMFlags{ProfileTag: "mic"})
	}
	return t
}

func (t *Transport) teardown() {
	close(t.SignalCh)
	if t.Device != nil {
		t.Device.Unref()
	}
}

// State returns the current state.
func (t *Transport) State() State { return State(atomic.LoadInt32((*int32)(&t.state))) }

// SetState atomically updates the state.
func (t *Transport) SetState(s State) { atomic.StoreInt32((*int32)(&t.state), int32(s)) }

// BTSocketFd returns the current Bluetooth socket fd, or -1 if released.
func (t *Transport) BTSocketFd() int { return int(t.btSocketFd.Load()) }

// SetBTSocketFd atomically stores the Bluetooth socket fd. It is called by
// the code that acquires or releases the socket (the A2DP and SCO profile
// handlers and Controller.Open), not by the I/O goroutine, which only
// reads the field.
func (t *Transport) SetBTSocketFd(fd int) { t.btSocketFd.Store(int32(fd)) }

// EncodingDelay returns the current encoding delay estimate in 0.1ms units.
func (t *Transport) EncodingDelay() int { return int(t.delayUnits.Load()) }

// SetEncodingDelay stores a new encoding delay estimate.
func (t *Transport) SetEncodingDelay(units int) { t.delayUnits.Store(int32(units)) }

// SignalDrained wakes everyone waiting in WaitDrained. Called by the I/O
// goroutine when a poll times out with an empty producer queue while
// draining, per spec.md §4.4's drain semantics.
func (t *Transport) SignalDrained() {
	t.drainedMu.Lock()
	t.drainGen++
	t.drainedCV.Broadcast()
	t.drainedMu.Unlock()
}

// WaitDrained blocks until the next SignalDrained call or until timeout is
// closed/receives, whichever comes first, by racing a goroutine against the
// condition variable. Callers normally pass a time.After channel.
func (t *Transport) WaitDrained(timeout <-chan struct{}) bool {
	done := make(chan struct{})
	go func() {
		t.drainedMu.Lock()
		gen := t.drainGen
		for t.drainGen == gen {
			t.drainedCV.Wait()
		}
		t.drainedMu.Unlock()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-timeout:
		return false
	}
}

// IODone returns the channel closed when the I/O goroutine exits, used to
// join it synchronously before the transport is freed (spec.md §3's
// one-thread invariant).
func (t *Transport) IODone() <-chan struct{} { return t.ioDone }

// MarkIODone closes the join channel. The I/O goroutine must call this
// exactly once, as its last action.
func (t *Transport) MarkIODone() { close(t.ioDone) }

// Endpoint returns PCM[0] (A2DP or SCO speaker) or PCM[1] (SCO mic).
func (t *Transport) Endpoint(index int) *PCMEndpoint {
	if index < 0 || index > 1 {
		return nil
	}
	return t.PCM[index]
}
