package aptx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeProducesOneBlock(t *testing.T) {
	c := New()
	pcm := make([]int16, BlockFrames*2)
	for i := range pcm {
		pcm[i] = int16(i * 100)
	}
	out, err := c.Encode(pcm)
	require.NoError(t, err)
	require.Len(t, out, BlockBytes)
}

func TestEncodeRejectsWrongSize(t *testing.T) {
	c := New()
	_, err := c.Encode(make([]int16, 3))
	require.Error(t, err)
}
