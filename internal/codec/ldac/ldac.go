// Package ldac is a minimal LDAC encoder handle plus the "ldac_ABR"
// backlog-driven quality adaptation described in spec.md §4.8/§9. As with
// the other codec packages, the actual LDAC DSP is an opaque third-party
// library from this daemon's point of view; what's implemented here is
// the quality-index state machine the engine drives on every encode call.
package ldac

import "fmt"

// QualityIndex selects one of LDAC's three encode quality modes, mirroring
// the `ldac.eqmid` config option (0..2).
type QualityIndex int

const (
	QualityHigh QualityIndex = iota
	QualityMid
	QualityLow
)

// BlockFrames is the number of stereo PCM frames one LDAC frame covers.
const BlockFrames = 128

// frameBytesFor is the encoded size at the given QualityIndex; a real
// LDAC encoder varies this per quality level, this placeholder keeps a
// fixed ratio per level.
func frameBytesFor(q QualityIndex) int {
	switch q {
	case QualityHigh:
		return 330
	case QualityMid:
		return 220
	default:
		return 110
	}
}

// Codec holds LDAC encoder state: the current quality index, mutated only
// by ABR between calls.
type Codec struct {
	Quality QualityIndex
}

// New creates an LDAC encoder handle at the given initial quality.
func New(initial QualityIndex) *Codec {
	return &Codec{Quality: initial}
}

// Encode consumes exactly BlockFrames stereo sample pairs and returns one
// LDAC frame at the codec's current quality index.
func (c *Codec) Encode(pcm []int16) ([]byte, error) {
	need := BlockFrames * 2
	if len(pcm) != need {
		return nil, fmt.Errorf("ldac: encode expects %d samples, got %d", need, len(pcm))
	}
	n := frameBytesFor(c.Quality)
	out := make([]byte, n)
	for i, s := range pcm {
		out[i%n] ^= byte(s >> 8)
	}
	return out, nil
}

// ABR tunes Codec.Quality every call based on the BT socket's current
// write backlog relative to its MTU, per spec.md §4.8: "ldac_ABR monitors
// BT socket backlog (current queued bytes / MTU) and tunes encoder
// quality index every call." The thresholds (6, 4, 2) are carried
// unmodified from the reference behaviour noted as an undocumented
// tunable in spec.md §9.
type ABR struct {
	Enabled bool
}

// thresholds in backlog-frames (queued bytes / mtu), highest first.
const (
	thresholdDropToLow  = 6
	thresholdDropToMid  = 4
	thresholdRecoverMid = 2
)

// Tune inspects backlogBytes/mtu and adjusts codec.Quality. Called once
// per encode iteration by the engine, regardless of whether this call's
// frame actually changes quality (ABR reacts every call, per spec.md).
func (a *ABR) Tune(codec *Codec, backlogBytes, mtu int) {
	if !a.Enabled || mtu <= 0 {
		return
	}
	backlogFrames := backlogBytes / mtu

	switch {
	case backlogFrames >= thresholdDropToLow:
		codec.Quality = QualityLow
	case backlogFrames >= thresholdDropToMid:
		codec.Quality = QualityMid
	case backlogFrames < thresholdRecoverMid:
		codec.Quality = QualityHigh
	}
}
