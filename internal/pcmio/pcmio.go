// Package pcmio implements the PCM endpoint read/write/flush primitives
// from spec.md §4.5: retry-on-interrupt reads and writes over the FIFO fd
// shared with a local client, plus client-disconnect detection.
package pcmio

import (
	"errors"

	"golang.org/x/sys/unix"
)

// ErrClientGone is returned by Read/Write when the peer has disconnected
// (FIFO EOF, EBADF, or EPIPE), per spec.md §7's client-gone error kind.
// The caller is expected to invoke its transport's ReleasePCM in response.
var ErrClientGone = errors.New("pcmio: client disconnected")

// Read reads up to n samples (n*sampleSize bytes) from fd into buf, sized
// n*sampleSize already. It retries on EINTR, treats 0-return or EBADF as a
// client disconnect, and returns 0 without error on EAGAIN (no data ready
// yet, not a disconnect).
func Read(fd int, buf []byte) (int, error) {
	for {
		n, err := unix.Read(fd, buf)
		switch {
		case err == nil && n == 0:
			return 0, ErrClientGone
		case err == nil:
			return n, nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return 0, nil
		case errors.Is(err, unix.EBADF):
			return 0, ErrClientGone
		default:
			return 0, err
		}
	}
}

// Write performs an atomic write-all with retry on EINTR. On EAGAIN it
// waits for the fd to become writable (via waitWritable) and retries. A
// broken pipe releases the endpoint (by returning ErrClientGone) and
// reports 0 bytes written.
func Write(fd int, buf []byte, waitWritable func(fd int) error) (int, error) {
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
		case errors.Is(err, unix.EPIPE):
			return 0, ErrClientGone
		default:
			return total, err
		}
	}
	return total, nil
}

// FlushMaxBytes bounds how much a single Flush call discards, per spec.md
// §4.5.
const FlushMaxBytes = 32 * 1024

// Flush discards up to FlushMaxBytes from fd by reading into a scratch
// buffer (the "zero-copy move to a null sink" of spec.md is splice() on
// Linux; we approximate it portably with a bounded read loop, which is
// semantically equivalent from the caller's point of view: the bytes are
// discarded without being handed to a PCM consumer). It returns the number
// of bytes discarded for the caller to debug-log.
func Flush(fd int) int {
	scratch := make([]byte, 4096)
	discarded := 0
	for discarded < FlushMaxBytes {
		chunk := scratch
		if rest := FlushMaxBytes - discarded; rest < len(chunk) {
			chunk = chunk[:rest]
		}
		n, err := unix.Read(fd, chunk)
		if err != nil || n <= 0 {
			break
		}
		discarded += n
	}
	return discarded
}
