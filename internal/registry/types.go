// Package registry holds the in-memory tree of adapters -> devices ->
// transports, each transport carrying one or two PCM endpoints. It is the
// single source of truth the bus server and the I/O engine both read from.
package registry

import (
	"sync"
	"sync/atomic"
)

// Profile identifies a Bluetooth audio or control-plane profile.
type Profile int

const (
	ProfileNone Profile = iota
	ProfileA2DPSource
	ProfileA2DPSink
	ProfileHSPAG
	ProfileHSPHS
	ProfileHFPAG
	ProfileHFPHF
	ProfileRFCOMM
)

func (p Profile) String() string {
	switch p {
	case ProfileA2DPSource:
		return "a2dp-source"
	case ProfileA2DPSink:
		return "a2dp-sink"
	case ProfileHSPAG:
		return "hsp-ag"
	case ProfileHSPHS:
		return "hsp-hs"
	case ProfileHFPAG:
		return "hfp-ag"
	case ProfileHFPHF:
		return "hfp-hf"
	case ProfileRFCOMM:
		return "rfcomm"
	default:
		return "none"
	}
}

// IsA2DP reports whether the profile is one of the two A2DP directions.
func (p Profile) IsA2DP() bool { return p == ProfileA2DPSource || p == ProfileA2DPSink }

// IsSCO reports whether the profile carries synchronous voice audio.
func (p Profile) IsSCO() bool {
	switch p {
	case ProfileHSPAG, ProfileHSPHS, ProfileHFPAG, ProfileHFPHF:
		return true
	default:
		return false
	}
}

// SCOCodec enumerates the voice codecs carried over SCO/eSCO.
type SCOCodec int

const (
	SCOCodecUndefined SCOCodec = iota
	SCOCodecCVSD
	SCOCodecMSBC
)

// A2DPCodecID mirrors the Bluetooth SIG assigned codec identifiers relevant
// to this daemon. Values are illustrative, not the full registry.
type A2DPCodecID uint16

const (
	A2DPCodecSBC  A2DPCodecID = 0x0000
	A2DPCodecAAC  A2DPCodecID = 0x0002
	A2DPCodecAptX A2DPCodecID = 0x4FFF
	A2DPCodecLDAC A2DPCodecID = 0x2D01
)

// CodecIdentity is the {profile, codec} pair that names a Transport, per
// spec.md §3.
type CodecIdentity struct {
	Profile Profile
	A2DP    A2DPCodecID // meaningful when Profile.IsA2DP()
	SCO     SCOCodec    // meaningful when Profile.IsSCO()
}

// refCounted is embedded by every registry entity; it gives them a shared,
// atomic reference count starting at 1, matching spec.md §4.3.
type refCounted struct {
	count    atomic.Int32
	teardown func()
	once     sync.Once
}

func newRefCounted(teardown func()) refCounted {
	rc := refCounted{teardown: teardown}
	rc.count.Store(1)
	return rc
}

// Ref increments the reference count.
func (r *refCounted) Ref() { r.count.Add(1) }

// Unref decrements the reference count and, on reaching zero, runs the
// entity's teardown exactly once.
func (r *refCounted) Unref() {
	if r.count.Add(-1) == 0 {
		r.once.Do(func() {
			if r.teardown != nil {
				r.teardown()
			}
		})
	}
}

// RefCount returns the current count, for diagnostics and tests only.
func (r *refCounted) RefCount() int32 { return r.count.Load() }
