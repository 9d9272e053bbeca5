package volume

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScalingIdempotenceAtMaxVolumeUnmuted(t *testing.T) {
	factor := Factor(A2DPMaxVolume, false, A2DPMaxVolume)
	require.InDelta(t, 1.0, factor, 1e-9)

	samples := []int16{100, -200, 3000, -32768, 32767}
	cp := append([]int16(nil), samples...)
	ScaleMonoInPlace(samples, factor)
	require.Equal(t, cp, samples)
}

func TestMuteProducesSilence(t *testing.T) {
	factor := Factor(64, true, A2DPMaxVolume)
	require.Equal(t, 0.0, factor)
	samples := []int16{1234, -5678}
	ScaleMonoInPlace(samples, factor)
	require.Equal(t, []int16{0, 0}, samples)
}

func TestSaturationOnOverflow(t *testing.T) {
	// Large factor from an intentionally out-of-spec call shouldn't wrap.
	samples := []int16{30000}
	ScaleMonoInPlace(samples, 2.0)
	require.Equal(t, int16(32767), samples[0])
}

func TestStereoAppliesPerChannelFactor(t *testing.T) {
	samples := []int16{1000, 1000}
	ScaleStereoInPlace(samples, 1.0, 0.0)
	require.Equal(t, int16(1000), samples[0])
	require.Equal(t, int16(0), samples[1])
}
