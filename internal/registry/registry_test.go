package registry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVolumeRoundTrip(t *testing.T) {
	for ch1 := uint8(0); ch1 <= 127; ch1 += 13 {
		for ch2 := uint8(0); ch2 <= 127; ch2 += 17 {
			for _, m1 := range []bool{false, true} {
				for _, m2 := range []bool{false, true} {
					packed := PackVolume(ch1, m1, ch2, m2)
					gotCh1, gotM1, gotCh2, gotM2 := UnpackVolume(packed)
					require.Equal(t, ch1, gotCh1)
					require.Equal(t, m1, gotM1)
					require.Equal(t, ch2, gotCh2)
					require.Equal(t, m2, gotM2)
				}
			}
		}
	}
}

func TestAdapterDeviceTransportLifecycle(t *testing.T) {
	reg := New()
	a, created := reg.LookupOrCreateAdapter(0, "/org/btaudio/hci0", "hci0")
	require.True(t, created)
	require.EqualValues(t, 1, a.RefCount())

	d, created := a.LookupOrCreateDevice(Address{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF})
	require.True(t, created)
	require.EqualValues(t, 2, d.RefCount()) // container hold + caller handle

	identity := CodecIdentity{Profile: ProfileA2DPSource, A2DP: A2DPCodecSBC}
	tr, created := d.LookupOrCreateTransport(identity)
	require.True(t, created)
	require.NotNil(t, tr.PCM[0])
	require.Nil(t, tr.PCM[1])
	require.Equal(t, StateIdle, tr.State())

	// device ref count went up by one for the transport's back-reference.
	require.EqualValues(t, 3, d.RefCount())

	tr.Unref() // release caller's handle
	require.EqualValues(t, 3, d.RefCount())

	_, removed := d.RemoveTransport(identity)
	require.True(t, removed)
	require.EqualValues(t, 2, d.RefCount()) // transport teardown unrefed device

	d.Unref() // release caller's handle
	_, removed = a.RemoveDevice(d.Address)
	require.True(t, removed)

	a.Unref()
}

func TestSCOTransportHasTwoEndpoints(t *testing.T) {
	reg := New()
	a, _ := reg.LookupOrCreateAdapter(0, "/org/btaudio/hci0", "hci0")
	d, _ := a.LookupOrCreateDevice(Address{1, 2, 3, 4, 5, 6})
	tr, _ := d.LookupOrCreateTransport(CodecIdentity{Profile: ProfileHFPAG, SCO: SCOCodecMSBC})
	require.NotNil(t, tr.PCM[0])
	require.NotNil(t, tr.PCM[1])
	require.Equal(t, "speaker", tr.PCM[0].Flags.ProfileTag)
	require.Equal(t, "mic", tr.PCM[1].Flags.ProfileTag)
}
