// Package btsock implements non-blocking writes to a Bluetooth transport
// socket and outgoing-queue backlog measurement, per spec.md §4.6.
package btsock

import (
	"errors"

	"golang.org/x/sys/unix"
)

// ErrPeerGone is returned when the socket reports the peer has vanished
// (ECONNRESET/ENOTCONN), per spec.md §7's peer-gone error kind. The I/O
// loop is expected to exit on this error.
var ErrPeerGone = errors.New("btsock: peer disconnected")

// Backlog returns the kernel's outgoing queue depth for fd (bytes not yet
// acknowledged by the link layer), via TIOCOUTQ. idleBaseline is
// subtracted so callers see only the backlog attributable to in-flight
// writes, per spec.md §4.6.
func Backlog(fd int, idleBaseline int) (int, error) {
	outq, err := unix.IoctlGetInt(fd, unix.TIOCOUTQ)
	if err != nil {
		return 0, err
	}
	backlog := outq - idleBaseline
	if backlog < 0 {
		backlog = 0
	}
	return backlog, nil
}

// Read performs a non-blocking read from the Bluetooth socket fd. EOF,
// ECONNRESET and ENOTCONN all report ErrPeerGone; EAGAIN reports 0 bytes
// with no error (no data ready yet); EINTR retries.
func Read(fd int, buf []byte) (int, error) {
	for {
		n, err := unix.Read(fd, buf)
		switch {
		case err == nil && n == 0:
			return 0, ErrPeerGone
		case err == nil:
			return n, nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return 0, nil
		case errors.Is(err, unix.ECONNRESET), errors.Is(err, unix.ENOTCONN):
			return 0, ErrPeerGone
		default:
			return 0, err
		}
	}
}

// WaitWritableFunc blocks until fd is writable or returns an error.
type WaitWritableFunc func(fd int) error

// Write performs a non-blocking write-all to the Bluetooth socket fd. On
// EAGAIN it waits for writable readiness via waitWritable and retries; on
// EINTR it retries; on ECONNRESET/ENOTCONN it returns ErrPeerGone so the
// I/O loop can exit, per spec.md §4.6/§7.
func Write(fd int, buf []byte, waitWritable WaitWritableFunc) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := unix.Write(fd, buf[total:])
		switch {
		case err == nil:
			total += n
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			if waitWritable != nil {
				if werr := waitWritable(fd); werr != nil {
					return total, werr
				}
			}
		case errors.Is(err, unix.ECONNRESET), errors.Is(err, unix.ENOTCONN):
			return total, ErrPeerGone
		default:
			return total, err
		}
	}
	return total, nil
}

// SetNonblocking puts fd into non-blocking mode, as every Bluetooth
// transport socket write in this daemon requires per spec.md §4.6.
func SetNonblocking(fd int) error {
	return unix.SetNonblock(fd, true)
}
