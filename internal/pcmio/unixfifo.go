package pcmio

import (
	"golang.org/x/sys/unix"

	"github.com/cwsl/btaudiod/internal/registry"
	trctl "github.com/cwsl/btaudiod/internal/transport"
)

// UnixFifoOpener is the production transport.FifoOpener: a non-blocking
// pipe for PCM data and a non-blocking seqpacket pair for the control
// channel, per spec.md §6's "data-fd is one end of a pipe" / "ctrl-fd is a
// seqpacket socket".
type UnixFifoOpener struct{}

// OpenDataPipe creates a pipe and returns (internal, external) fds: the
// internal end is kept by the I/O engine, the external end is handed to
// the bus client. For ModeSource the client writes and the engine reads,
// so the engine keeps the read end; for ModeSink it's the reverse.
func (UnixFifoOpener) OpenDataPipe(ep *registry.PCMEndpoint, mode trctl.OpenMode) (internalFd, externalFd int, err error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
		return -1, -1, err
	}
	r, w := fds[0], fds[1]
	internalFd, externalFd = w, r
	if mode == trctl.ModeSource {
		internalFd, externalFd = r, w
	}
	if err := unix.SetNonblock(internalFd, true); err != nil {
		unix.Close(r)
		unix.Close(w)
		return -1, -1, err
	}
	return internalFd, externalFd, nil
}

// OpenControlPair creates a seqpacket socketpair; the internal end is read
// by the bus server's control-frame goroutine, the external end is handed
// to the client as ctrl-fd. Only the internal end is set non-blocking.
func (UnixFifoOpener) OpenControlPair(ep *registry.PCMEndpoint) (internalFd, externalFd int, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_SEQPACKET|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, -1, err
	}
	if err := unix.SetNonblock(fds[0], true); err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return -1, -1, err
	}
	return fds[0], fds[1], nil
}

// Close closes fd, ignoring already-closed fds (-1).
func (UnixFifoOpener) Close(fd int) error {
	if fd == -1 {
		return nil
	}
	return unix.Close(fd)
}
