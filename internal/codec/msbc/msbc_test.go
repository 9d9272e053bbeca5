package msbc

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScanH2Examples(t *testing.T) {
	cases := []struct {
		name           string
		buf            []byte
		wantFound      bool
		wantOffset     int
		wantRemaining  int
	}{
		{
			name:          "header at offset 0",
			buf:           []byte{0x01, 0x08, 0xad, 0x00, 0x00, 0xd5, 0x10, 0x00, 0x11, 0x10},
			wantFound:     true,
			wantOffset:    0,
			wantRemaining: 10,
		},
		{
			name:          "header at offset 4",
			buf:           []byte{0x00, 0xd5, 0x10, 0x00, 0x01, 0x38, 0xad, 0x00, 0x11, 0x10},
			wantFound:     true,
			wantOffset:    4,
			wantRemaining: 6,
		},
		{
			name:          "header at offset 1",
			buf:           []byte{0xd5, 0x01, 0xc8, 0xad, 0x00, 0x01, 0xf8, 0xad, 0x11, 0x10},
			wantFound:     true,
			wantOffset:    1,
			wantRemaining: 9,
		},
		{
			name:          "sequence bit not duplicated",
			buf:           []byte{0x01, 0x18, 0xad},
			wantFound:     false,
			wantOffset:    0,
			wantRemaining: 1,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			found, offset, remaining := ScanH2(c.buf)
			require.Equal(t, c.wantFound, found)
			if c.wantFound {
				require.Equal(t, c.wantOffset, offset)
			}
			require.Equal(t, c.wantRemaining, remaining)
		})
	}
}

func sineSamples(n int, rate float64) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(1000 * math.Sin(2*math.Pi*440*float64(i)/rate))
	}
	return out
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	samples := sineSamples(1024, 16000)

	enc := NewEncoder()
	var encoded []byte
	// Feed in arbitrary-sized chunks.
	chunkSizes := []int{37, 91, 1, 500, 395}
	pos := 0
	for _, sz := range chunkSizes {
		end := pos + sz
		if end > len(samples) {
			end = len(samples)
		}
		out, err := enc.Write(samples[pos:end])
		require.NoError(t, err)
		encoded = append(encoded, out...)
		pos = end
	}
	require.Equal(t, len(samples), pos)
	require.Len(t, encoded, 480)
	require.Equal(t, 0, len(encoded)%FrameLen)

	dec := NewDecoder()
	pcm, err := dec.Write(encoded)
	require.NoError(t, err)
	require.Len(t, pcm, 960)
}
