package pcmio

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestReadWriteRoundTripOverPipe(t *testing.T) {
	r, w, err := osPipe()
	require.NoError(t, err)
	defer unix.Close(r)
	defer unix.Close(w)

	payload := []byte("hello pcm frame")
	n, err := Write(w, payload, nil)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)

	buf := make([]byte, 64)
	got, err := Read(r, buf)
	require.NoError(t, err)
	require.Equal(t, payload, buf[:got])
}

func TestReadClientGoneOnEOF(t *testing.T) {
	r, w, err := osPipe()
	require.NoError(t, err)
	unix.Close(w) // close write end -> EOF on read

	buf := make([]byte, 16)
	_, err = Read(r, buf)
	require.ErrorIs(t, err, ErrClientGone)
	unix.Close(r)
}

func osPipe() (r, w int, err error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return -1, -1, err
	}
	return fds[0], fds[1], nil
}
