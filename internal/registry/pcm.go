package registry

import "sync/atomic"

// PCMFlags describe the direction and profile tag of a PCM endpoint, per
// spec.md §3.
type PCMFlags struct {
	Sink       bool // true for sink direction (daemon writes PCM out to client)
	Source     bool // true for source direction (client writes PCM in)
	ProfileTag string
}

// Volume is the packed 16-bit field from spec.md §3/§4.9/§6: two 7-bit
// magnitudes and two mute bits, mutated atomically as a single unit.
type Volume struct {
	packed atomic.Uint32 // low 16 bits hold the packed value
}

// PackVolume encodes (ch1, mute1, ch2, mute2) into the bus's 16-bit layout:
// bit15=ch1 mute, bits14..8=ch1 magnitude, bit7=ch2 mute, bits6..0=ch2
// magnitude.
func PackVolume(ch1 uint8, mute1 bool, ch2 uint8, mute2 bool) uint16 {
	var v uint16
	v |= uint16(ch1&0x7f) << 8
	v |= uint16(ch2 & 0x7f)
	if mute1 {
		v |= 1 << 15
	}
	if mute2 {
		v |= 1 << 7
	}
	return v
}

// UnpackVolume is the inverse of PackVolume.
func UnpackVolume(v uint16) (ch1 uint8, mute1 bool, ch2 uint8, mute2 bool) {
	ch1 = uint8((v >> 8) & 0x7f)
	ch2 = uint8(v & 0x7f)
	mute1 = v&(1<<15) != 0
	mute2 = v&(1<<7) != 0
	return
}

// Get returns the current packed volume value.
func (v *Volume) Get() uint16 { return uint16(v.packed.Load()) }

// Set atomically replaces the packed volume value.
func (v *Volume) Set(packed uint16) { v.packed.Store(uint32(packed)) }

// PCMEndpoint is the in-process PCM side of a transport, per spec.md §3/§4.5.
type PCMEndpoint struct {
	refCounted

	FIFOFd     int // -1 when closed
	CtrlFd     int // -1 when closed; seqpacket control channel (spec.md §6)
	Channels   int
	SampleRate int
	Flags      PCMFlags
	Transport  *Transport // non-owning back-reference

	vol Volume
}

func newPCMEndpoint(t *Transport, channels, sampleRate int, flags PCMFlags) *PCMEndpoint {
	e := &PCMEndpoint{
		FIFOFd:     -1,
		CtrlFd:     -1,
		Channels:   channels,
		SampleRate: sampleRate,
		Flags:      flags,
		Transport:  t,
	}
	e.refCounted = newRefCounted(func() {})
	return e
}

// IsOpen reports whether a client currently has the endpoint's data fd.
func (e *PCMEndpoint) IsOpen() bool { return e.FIFOFd != -1 }

// Volume returns the endpoint's packed volume field.
func (e *PCMEndpoint) Volume() *Volume { return &e.vol }
