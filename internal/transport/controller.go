// Package transport implements the per-transport control-plane state
// machine from spec.md §4.4: the signal pipe, the ACTIVE/PAUSED/IDLE state
// transitions, and the Open/Drain/Drop/SetState/ReleasePCM method surface
// consumed by the event/IPC layer.
package transport

import (
	"errors"
	"time"

	"github.com/cwsl/btaudiod/internal/metrics"
	"github.com/cwsl/btaudiod/internal/registry"
)

// Well-known errors returned to IPC callers, per spec.md §7.
var (
	ErrBusy          = errors.New("busy")
	ErrNotSupported  = errors.New("not supported")
	ErrAcquireFailed = errors.New("could not acquire bluetooth socket")
)

// OpenMode is the direction a client requests when opening a PCM endpoint.
type OpenMode int

const (
	ModeSource OpenMode = iota
	ModeSink
)

// AcquireFunc negotiates Bluetooth socket handover with the remote stack
// for a given transport and returns the raw fd, or an error. ReleaseFunc
// gives it back. Both are filled in per profile capability variant (design
// note §9: A2dpSource, A2dpSink, ScoAg, ScoHf, Rfcomm), since the handover
// protocol differs per profile even though the controller logic around it
// does not.
type AcquireFunc func(t *registry.Transport) (fd int, readMTU, writeMTU int, err error)
type ReleaseFunc func(t *registry.Transport)

// Capability bundles the acquire/release pair and the profile's allowed
// open modes.
type Capability struct {
	Acquire     AcquireFunc
	Release     ReleaseFunc
	AllowSource bool
	AllowSink   bool
	// DeferredAcquire is true for A2DP-source: the BT socket is only
	// acquired when a local client opens the PCM, per spec.md §3
	// Lifecycle. False means the socket is already held when the
	// transport was created (A2DP-sink, SCO).
	DeferredAcquire bool
}

// Controller drives one Transport's state machine and signal pipe. The bus
// server creates one Controller per exported PCM endpoint, so an SCO
// transport has two (speaker and mic) sharing its state and signal pipe.
type Controller struct {
	T       *registry.Transport
	Cap     Capability
	Fifo    FifoOpener
	Metrics *metrics.Metrics // optional; nil disables drain-duration observations
}

// FifoOpener creates the non-blocking pipe (PCM data) and non-blocking
// seqpacket pair (PCM control) for a newly opened endpoint. It is an
// interface so tests can substitute in-memory pipes instead of real
// kernel fds.
type FifoOpener interface {
	OpenDataPipe(endpoint *registry.PCMEndpoint, mode OpenMode) (internalFd, externalFd int, err error)
	OpenControlPair(endpoint *registry.PCMEndpoint) (internalFd, externalFd int, err error)
	Close(fd int) error
}

// New creates a Controller for an already-registered transport.
func New(t *registry.Transport, cap Capability, fifo FifoOpener) *Controller {
	return &Controller{T: t, Cap: cap, Fifo: fifo}
}

// Open validates mode against the transport's profile, allocates the
// endpoint's fds, signals PCM_OPEN, and — for A2DP-source only — acquires
// the Bluetooth socket on demand, per spec.md §4.4. epIndex selects which
// of the transport's (up to two) PCM endpoints is being opened: 0 for
// A2DP's single endpoint or an SCO speaker, 1 for an SCO mic. Each bus PCM
// object maps to exactly one epIndex, so the caller — not this method —
// resolves which endpoint a given bus object addresses.
func (c *Controller) Open(epIndex int, mode OpenMode) (dataFd, ctrlFd int, err error) {
	if (mode == ModeSource && !c.Cap.AllowSource) || (mode == ModeSink && !c.Cap.AllowSink) {
		return -1, -1, ErrNotSupported
	}

	ep := c.T.Endpoint(epIndex)
	if ep == nil {
		return -1, -1, ErrNotSupported
	}
	if ep.IsOpen() {
		return -1, -1, ErrBusy
	}

	internalData, externalData, err := c.Fifo.OpenDataPipe(ep, mode)
	if err != nil {
		return -1, -1, err
	}
	internalCtrl, externalCtrl, err := c.Fifo.OpenControlPair(ep)
	if err != nil {
		c.Fifo.Close(internalData)
		c.Fifo.Close(externalData)
		return -1, -1, err
	}

	ep.FIFOFd = internalData
	ep.CtrlFd = internalCtrl

	c.signal(registry.SigPCMOpen)

	if c.Cap.DeferredAcquire && c.Cap.Acquire != nil {
		fd, rmtu, wmtu, aerr := c.Cap.Acquire(c.T)
		if aerr != nil {
			c.Fifo.Close(internalData)
			c.Fifo.Close(externalData)
			c.Fifo.Close(internalCtrl)
			c.Fifo.Close(externalCtrl)
			ep.FIFOFd = -1
			ep.CtrlFd = -1
			return -1, -1, ErrAcquireFailed
		}
		c.T.SetBTSocketFd(fd)
		c.T.ReadMTU, c.T.WriteMTU = rmtu, wmtu
	}

	c.T.SetState(registry.StateActive)
	return externalData, externalCtrl, nil
}

// Drain signals SYNC and waits for the drained condition, up to timeout.
func (c *Controller) Drain(timeout time.Duration) bool {
	start := time.Now()
	c.signal(registry.SigPCMSync)
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	drained := c.T.WaitDrained(deadline.C)
	if c.Metrics != nil {
		c.Metrics.DrainDuration.WithLabelValues(c.T.Identity.Profile.String()).Observe(time.Since(start).Seconds())
	}
	return drained
}

// Drop signals DROP; the I/O goroutine flushes the FIFO.
func (c *Controller) Drop() {
	c.signal(registry.SigPCMDrop)
}

// SetState atomically updates the state and follows with the matching
// signal so the I/O goroutine observes the transition promptly.
func (c *Controller) SetState(s registry.State) {
	c.T.SetState(s)
	switch s {
	case registry.StateActive:
		c.signal(registry.SigPCMResume)
	case registry.StatePaused:
		c.signal(registry.SigPCMPause)
	case registry.StateIdle:
		c.signal(registry.SigPCMClose)
	}
}

// ReleasePCM closes both of an endpoint's internal fds and signals
// PCM_CLOSE, per spec.md §4.4.
func (c *Controller) ReleasePCM(ep *registry.PCMEndpoint) {
	if ep.FIFOFd != -1 {
		c.Fifo.Close(ep.FIFOFd)
		ep.FIFOFd = -1
	}
	if ep.CtrlFd != -1 {
		c.Fifo.Close(ep.CtrlFd)
		ep.CtrlFd = -1
	}
	c.T.SetState(registry.StateIdle)
	c.signal(registry.SigPCMClose)
}

// signal writes to the transport's signal pipe, dropping PING coalescing
// is not performed: every signal is delivered, in order, per spec.md §5.
func (c *Controller) signal(s registry.Signal) {
	select {
	case c.T.SignalCh <- s:
	default:
		// Channel full: the I/O goroutine is behind. Block briefly rather
		// than silently drop a state-changing signal.
		c.T.SignalCh <- s
	}
}

// Destroy tears the transport down: it asks the I/O goroutine to stop (by
// closing the BT socket observation path is the normal trigger; this is
// the explicit path for remote-stack-initiated removal), joins it, then
// drops the registry's reference, which — once every other handle is
// released — runs the transport's teardown and unrefs the device. This is
// the one-thread invariant from spec.md §8 property 6: the join always
// happens before the final Unref.
func (c *Controller) Destroy(cancel func()) {
	if cancel != nil {
		cancel()
	}
	<-c.T.IODone()
	c.T.Unref()
}
