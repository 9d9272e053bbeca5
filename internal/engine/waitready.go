package engine

import (
	"errors"

	"golang.org/x/sys/unix"
)

// waitWritable blocks (with retry on EINTR) until fd reports POLLOUT, for
// use as the waitWritable callback pcmio.Write and btsock.Write take on
// EAGAIN.
func waitWritable(fd int) error {
	pfd := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
	for {
		_, err := unix.Poll(pfd, -1)
		if err == nil {
			return nil
		}
		if errors.Is(err, unix.EINTR) {
			continue
		}
		return err
	}
}
