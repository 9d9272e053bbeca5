package btsock

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestWriteAndReadRoundTripOverSocketpair(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	a, b := fds[0], fds[1]
	defer unix.Close(a)
	defer unix.Close(b)

	require.NoError(t, SetNonblocking(a))
	require.NoError(t, SetNonblocking(b))

	payload := []byte("hello bluetooth")
	n, err := Write(a, payload, nil)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)

	buf := make([]byte, 64)
	var got int
	for got == 0 {
		nr, rerr := Read(b, buf)
		require.NoError(t, rerr)
		got = nr
	}
	require.Equal(t, payload, buf[:got])
}

func TestReadReportsPeerGoneOnClose(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	a, b := fds[0], fds[1]
	defer unix.Close(a)

	require.NoError(t, SetNonblocking(b))
	require.NoError(t, unix.Close(a))

	buf := make([]byte, 16)
	_, err = Read(b, buf)
	require.ErrorIs(t, err, ErrPeerGone)
}

func TestBacklogSubtractsIdleBaseline(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	a, b := fds[0], fds[1]
	defer unix.Close(a)
	defer unix.Close(b)

	_, err = Write(a, []byte("queued for the peer"), nil)
	require.NoError(t, err)

	backlog, err := Backlog(a, 0)
	require.NoError(t, err)
	require.GreaterOrEqual(t, backlog, 0)

	half, err := Backlog(a, backlog/2)
	require.NoError(t, err)
	require.Equal(t, backlog-backlog/2, half)

	over, err := Backlog(a, backlog+1)
	require.NoError(t, err)
	require.Equal(t, 0, over)
}
