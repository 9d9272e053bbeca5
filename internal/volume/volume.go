// Package volume implements the software volume scaling from spec.md §4.9,
// applied in place to 16-bit signed interleaved PCM when the daemon owns
// volume instead of forwarding it to the peer.
package volume

import "math"

// Factor computes the linear multiplier for a channel's volume, per
// spec.md §4.9: 10^((-64 + 64*v/vMax)/20), or 0 when muted.
func Factor(v uint8, muted bool, vMax int) float64 {
	if muted {
		return 0
	}
	if vMax <= 0 {
		return 1
	}
	db := -64 + 64*float64(v)/float64(vMax)
	return math.Pow(10, db/20)
}

func saturate(v float64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// ScaleStereoInPlace multiplies interleaved L/R 16-bit samples by their
// respective channel factors, saturating on overflow.
func ScaleStereoInPlace(samples []int16, leftFactor, rightFactor float64) {
	for i := 0; i+1 < len(samples); i += 2 {
		samples[i] = saturate(float64(samples[i]) * leftFactor)
		samples[i+1] = saturate(float64(samples[i+1]) * rightFactor)
	}
}

// ScaleMonoInPlace multiplies every sample by factor, saturating on
// overflow. Used for SCO's single-channel speaker/mic paths.
func ScaleMonoInPlace(samples []int16, factor float64) {
	for i := range samples {
		samples[i] = saturate(float64(samples[i]) * factor)
	}
}

// A2DPMaxVolume and SCOMaxVolume are the profile ceilings from spec.md
// §4.9.
const (
	A2DPMaxVolume = 127
	SCOMaxVolume  = 15
)
