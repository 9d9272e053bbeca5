package ldac

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeSizeVariesByQuality(t *testing.T) {
	pcm := make([]int16, BlockFrames*2)
	hi := New(QualityHigh)
	out, err := hi.Encode(pcm)
	require.NoError(t, err)
	require.Len(t, out, frameBytesFor(QualityHigh))

	lo := New(QualityLow)
	out, err = lo.Encode(pcm)
	require.NoError(t, err)
	require.Len(t, out, frameBytesFor(QualityLow))
}

func TestABRDropsQualityUnderBacklog(t *testing.T) {
	c := New(QualityHigh)
	abr := &ABR{Enabled: true}

	abr.Tune(c, 700, 100) // 7 frames queued >= 6
	require.Equal(t, QualityLow, c.Quality)

	abr.Tune(c, 500, 100) // 5 frames queued >= 4
	require.Equal(t, QualityMid, c.Quality)
}

func TestABRRecoversQualityWhenBacklogDrains(t *testing.T) {
	c := New(QualityLow)
	abr := &ABR{Enabled: true}

	abr.Tune(c, 0, 100)
	require.Equal(t, QualityHigh, c.Quality)
}

func TestABRDisabledLeavesQualityUnchanged(t *testing.T) {
	c := New(QualityHigh)
	abr := &ABR{Enabled: false}
	abr.Tune(c, 900, 100)
	require.Equal(t, QualityHigh, c.Quality)
}
