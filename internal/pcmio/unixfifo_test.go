package pcmio

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/cwsl/btaudiod/internal/registry"
	trctl "github.com/cwsl/btaudiod/internal/transport"
)

func TestOpenDataPipeSourceKeepsReadEndInternal(t *testing.T) {
	o := UnixFifoOpener{}
	internal, external, err := o.OpenDataPipe(nil, trctl.ModeSource)
	require.NoError(t, err)
	defer o.Close(internal)
	defer o.Close(external)

	_, werr := unix.Write(external, []byte("hi"))
	require.NoError(t, werr)

	buf := make([]byte, 8)
	n, rerr := Read(internal, buf)
	require.NoError(t, rerr)
	require.Equal(t, "hi", string(buf[:n]))
}

func TestOpenDataPipeSinkKeepsWriteEndInternal(t *testing.T) {
	o := UnixFifoOpener{}
	internal, external, err := o.OpenDataPipe(nil, trctl.ModeSink)
	require.NoError(t, err)
	defer o.Close(internal)
	defer o.Close(external)

	_, werr := Write(internal, []byte("hi"), nil)
	require.NoError(t, werr)

	buf := make([]byte, 8)
	n, rerr := unix.Read(external, buf)
	require.NoError(t, rerr)
	require.Equal(t, "hi", string(buf[:n]))
}

func TestOpenControlPairRoundTrip(t *testing.T) {
	o := UnixFifoOpener{}
	internal, external, err := o.OpenControlPair(&registry.PCMEndpoint{})
	require.NoError(t, err)
	defer o.Close(internal)
	defer o.Close(external)

	_, werr := unix.Write(external, []byte("Drain"))
	require.NoError(t, werr)

	buf := make([]byte, 32)
	n, rerr := unix.Read(internal, buf)
	require.NoError(t, rerr)
	require.Equal(t, "Drain", string(buf[:n]))
}
