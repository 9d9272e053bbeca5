package busserver

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"

	"github.com/cwsl/btaudiod/internal/logging"
	"github.com/cwsl/btaudiod/internal/registry"
	trctl "github.com/cwsl/btaudiod/internal/transport"
)

// drainTimeout bounds how long a "Drain" control frame blocks waiting for
// the I/O goroutine to report empty, per spec.md §5's 100ms poll / bounded
// wait.
const drainTimeout = 2 * time.Second

// dispatchControlFrame applies one control-channel command, per spec.md §6:
// the client sends a single-frame "Drain"/"Drop"/"Pause"/"Resume" command
// and receives "OK" or "Invalid".
func dispatchControlFrame(cmd string, ctrl *trctl.Controller) string {
	switch cmd {
	case "Drain":
		if ctrl.Drain(drainTimeout) {
			return "OK"
		}
		return "Invalid"
	case "Drop":
		ctrl.Drop()
		return "OK"
	case "Pause":
		ctrl.SetState(registry.StatePaused)
		return "OK"
	case "Resume":
		ctrl.SetState(registry.StateActive)
		return "OK"
	default:
		return "Invalid"
	}
}

// runControlFrameLoop reads single-frame commands off ep's internal
// seqpacket control fd until the client closes its end, dispatching each
// to ctrl and writing back the response. It's meant to run as its own
// goroutine, one per open PCM endpoint, for the endpoint's open lifetime.
func runControlFrameLoop(ep *registry.PCMEndpoint, ctrl *trctl.Controller) {
	buf := make([]byte, 64)
	for {
		fd := ep.CtrlFd
		if fd == -1 {
			return
		}
		if err := waitReadable(fd); err != nil {
			if errors.Is(err, unix.EBADF) {
				return
			}
			logging.Errorf("busserver: control channel poll failed: %v", err)
			return
		}
		n, err := unix.Read(fd, buf)
		switch {
		case err != nil && errors.Is(err, unix.EAGAIN):
			continue
		case err != nil && errors.Is(err, unix.EINTR):
			continue
		case err != nil || n == 0:
			return // client closed its end
		}
		resp := dispatchControlFrame(string(buf[:n]), ctrl)
		if _, werr := unix.Write(fd, []byte(resp)); werr != nil {
			return
		}
	}
}

func waitReadable(fd int) error {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	for {
		_, err := unix.Poll(fds, -1)
		if err == nil {
			return nil
		}
		if errors.Is(err, unix.EINTR) {
			continue
		}
		return err
	}
}
