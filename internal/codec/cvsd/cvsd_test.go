package cvsd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := New()
	pcm := []int16{0, 1, -1, 32767, -32768, 12345}
	raw := c.Encode(pcm)
	require.Len(t, raw, len(pcm)*2)

	back := c.Decode(raw)
	require.Equal(t, pcm, back)
}

func TestDecodeIgnoresTrailingOddByte(t *testing.T) {
	c := New()
	raw := []byte{0x01, 0x00, 0x02, 0x00, 0xFF}
	back := c.Decode(raw)
	require.Equal(t, []int16{1, 2}, back)
}
