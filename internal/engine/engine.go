// Package engine runs the per-transport I/O goroutine loops from spec.md
// §4.8: one goroutine per live transport, each driven by a single
// readiness wait over its signalling channel and its data fd(s), gated on
// state == ACTIVE, with the codec-specific behaviour supplied by a Flow.
package engine

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"

	"github.com/cwsl/btaudiod/internal/btsock"
	"github.com/cwsl/btaudiod/internal/logging"
	"github.com/cwsl/btaudiod/internal/pcmio"
	"github.com/cwsl/btaudiod/internal/registry"
)

// pollPeriod is the readiness wait's bounded timeout, per spec.md §5
// ("level-triggered polling") and the drain bound of spec.md §8 property 5
// (drained fires within two poll periods).
const pollPeriod = 100 * time.Millisecond

// Flow supplies the codec-specific behaviour for one transport's I/O loop.
// A flow only implements the directions it actually carries: an A2DP sink
// flow only ever sees OnBTReadable, an A2DP source flow only ever sees
// OnFIFOReadable, SCO flows see both.
type Flow interface {
	// HandlesBT reports whether this flow reads from the Bluetooth socket.
	HandlesBT() bool
	// HandlesFIFO reports whether this flow reads from a local FIFO.
	HandlesFIFO() bool
	// OnBTReadable is called when the Bluetooth socket has data available.
	// It returns btsock.ErrPeerGone to request transport teardown.
	OnBTReadable() error
	// OnFIFOReadable is called when the source-direction FIFO has data
	// available. It returns pcmio.ErrClientGone to request PCM release.
	OnFIFOReadable() error
	// ReadFd returns the fd this flow currently reads PCM from (source
	// direction), or -1 when no local client has the endpoint open. Read
	// dynamically every iteration, since Open/ReleasePCM change it while
	// the loop runs.
	ReadFd() int
	// Reset is called on PCM_OPEN/PCM_RESUME to re-anchor any internal
	// rate synchroniser.
	Reset()
	// Close releases any codec state held by the flow. Called once, on
	// loop exit.
	Close()
}

// Runner drives one transport's I/O goroutine.
type Runner struct {
	T            *registry.Transport
	Flow         Flow
	onDone       func()
	drainPending bool
}

// New creates a Runner for transport t and the already-constructed flow.
// onDone, if non-nil, is invoked after MarkIODone (e.g. to request registry
// teardown following a peer-gone error).
func New(t *registry.Transport, flow Flow, onDone func()) *Runner {
	return &Runner{T: t, Flow: flow, onDone: onDone}
}

// Run is the per-transport I/O loop, normally invoked as `go r.Run()`. It
// returns once the transport is closed or the Bluetooth peer vanishes.
// Per spec.md §8 property 6, the caller must not Unref the transport's
// final reference until this goroutine has exited (observe via
// T.IODone()); Run calls T.MarkIODone() as its last action.
func (r *Runner) Run() {
	defer func() {
		r.Flow.Close()
		r.T.MarkIODone()
		if r.onDone != nil {
			r.onDone()
		}
	}()

	for {
		select {
		case sig, ok := <-r.T.SignalCh:
			if !ok {
				return
			}
			if closed := r.handleSignal(sig); closed {
				return
			}
			continue
		default:
		}

		fds, indexBT, indexFIFO := r.buildPollSet()
		if len(fds) == 0 {
			// Nothing to wait on yet (e.g. not ACTIVE and no BT socket) —
			// still service signals promptly.
			select {
			case sig, ok := <-r.T.SignalCh:
				if !ok {
					return
				}
				if closed := r.handleSignal(sig); closed {
					return
				}
			case <-time.After(pollPeriod):
				r.tickDrain(false)
			}
			continue
		}

		n, err := pollRetryEINTR(fds, int(pollPeriod/time.Millisecond))
		if err != nil {
			logging.Errorf("engine: poll failed for transport %p: %v", r.T, err)
			return
		}

		moved := false
		if n > 0 {
			if indexBT >= 0 && fds[indexBT].Revents&unix.POLLIN != 0 {
				if err := r.Flow.OnBTReadable(); err != nil {
					if errors.Is(err, btsock.ErrPeerGone) {
						logging.Infof("engine: peer gone on transport %p", r.T)
						return
					}
					logging.Errorf("engine: codec error on transport %p: %v", r.T, err)
				} else {
					moved = true
				}
			}
			if indexFIFO >= 0 && fds[indexFIFO].Revents&unix.POLLIN != 0 {
				if err := r.Flow.OnFIFOReadable(); err != nil {
					if errors.Is(err, pcmio.ErrClientGone) {
						logging.Infof("engine: client gone on transport %p", r.T)
						r.T.SetState(registry.StateIdle)
					} else {
						logging.Errorf("engine: codec error on transport %p: %v", r.T, err)
					}
				} else {
					moved = true
				}
			}
		}

		r.tickDrain(moved)
	}
}

// tickDrain completes a pending drain once a poll period passes with no
// data movement, per spec.md §4.8's PCM_SYNC handling.
func (r *Runner) tickDrain(moved bool) {
	if r.drainPending && !moved {
		r.drainPending = false
		r.T.SignalDrained()
	}
}

// handleSignal applies one signal's effect, per spec.md §4.8 "Signal
// handling inside codec loops". It returns true if the loop should exit;
// that only happens when the transport itself is torn down (observed as
// SignalCh being closed, handled by the caller, never by a case here).
// PCM_CLOSE "falls through to the same disconnection path used on FIFO
// EOF" (spec.md §4.8): the endpoint has already been released and the
// state set to IDLE by the controller before this signal was sent, so
// there is nothing left for the loop to do but keep waiting — the BT
// socket and the goroutine itself outlive a single local client's Open.
func (r *Runner) handleSignal(sig registry.Signal) (closeLoop bool) {
	switch sig {
	case registry.SigPCMOpen, registry.SigPCMResume:
		r.Flow.Reset()
	case registry.SigPCMClose:
	case registry.SigPCMSync:
		r.drainPending = true
	case registry.SigPCMDrop:
		if fd := r.Flow.ReadFd(); fd != -1 {
			pcmio.Flush(fd)
		}
	case registry.SigPCMPause:
		// state already updated by the controller; nothing else to do.
	case registry.SigPing:
	}
	return false
}

// buildPollSet assembles the pollfd slice for this iteration: the BT
// socket and the FIFO fd, each only polled while the flow reads that
// direction AND the transport is ACTIVE, per spec.md §4.8 ("the data fd
// is gated on state == ACTIVE"). HandlesBT() is true only for the
// flows where the Bluetooth side is the data consumer (A2DP sink, both
// SCO directions), so gating it the same way the FIFO fd is gated stops
// those flows from still decoding and forwarding incoming audio while
// PAUSED.
func (r *Runner) buildPollSet() (fds []unix.PollFd, indexBT, indexFIFO int) {
	indexBT, indexFIFO = -1, -1
	active := r.T.State() == registry.StateActive

	if r.Flow.HandlesBT() && active {
		if fd := r.T.BTSocketFd(); fd != -1 {
			fds = append(fds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
			indexBT = len(fds) - 1
		}
	}
	if r.Flow.HandlesFIFO() && active {
		if fd := r.Flow.ReadFd(); fd != -1 {
			fds = append(fds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
			indexFIFO = len(fds) - 1
		}
	}
	return fds, indexBT, indexFIFO
}

func pollRetryEINTR(fds []unix.PollFd, timeoutMs int) (int, error) {
	for {
		n, err := unix.Poll(fds, timeoutMs)
		if err == nil {
			return n, nil
		}
		if errors.Is(err, unix.EINTR) {
			continue
		}
		return 0, err
	}
}
