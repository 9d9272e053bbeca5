package busserver

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/require"

	"github.com/cwsl/btaudiod/internal/registry"
	trctl "github.com/cwsl/btaudiod/internal/transport"
)

func newTestDevice(t *testing.T) *registry.Device {
	t.Helper()
	reg := registry.New()
	a, _ := reg.LookupOrCreateAdapter(0, "/org/btaudio/hci0", "hci0")
	d, _ := a.LookupOrCreateDevice(registry.Address{0xAA, 0xBB, 0xCC, 0x11, 0x22, 0x33})
	return d
}

func TestDevicePathFormatsAddress(t *testing.T) {
	d := newTestDevice(t)
	require.Equal(t, "/org/btaudio/hci0/dev_AA_BB_CC_11_22_33", string(devicePath(d.Adapter, d.Address)))
}

func TestTransportPathIncludesProfileSegment(t *testing.T) {
	d := newTestDevice(t)
	tr, _ := d.LookupOrCreateTransport(registry.CodecIdentity{Profile: registry.ProfileA2DPSource, A2DP: registry.A2DPCodecSBC})
	path := transportPath(tr)
	require.Contains(t, string(path), "/dev_AA_BB_CC_11_22_33/")
	require.NotContains(t, string(path), " ")
}

func TestPCMPathAddsSuffixOnlyForSCO(t *testing.T) {
	d := newTestDevice(t)
	a2dp, _ := d.LookupOrCreateTransport(registry.CodecIdentity{Profile: registry.ProfileA2DPSink, A2DP: registry.A2DPCodecSBC})
	require.Equal(t, transportPath(a2dp), pcmPath(a2dp, 0))

	sco, _ := d.LookupOrCreateTransport(registry.CodecIdentity{Profile: registry.ProfileHFPAG, SCO: registry.SCOCodecMSBC})
	require.Equal(t, transportPath(sco)+"/speaker", pcmPath(sco, 0))
	require.Equal(t, transportPath(sco)+"/mic", pcmPath(sco, 1))
}

func TestDispatchControlFrameKnownCommands(t *testing.T) {
	reg := registry.New()
	a, _ := reg.LookupOrCreateAdapter(0, "/org/btaudio/hci0", "hci0")
	d, _ := a.LookupOrCreateDevice(registry.Address{1, 2, 3, 4, 5, 6})
	tr, _ := d.LookupOrCreateTransport(registry.CodecIdentity{Profile: registry.ProfileA2DPSource, A2DP: registry.A2DPCodecSBC})
	ctrl := trctl.New(tr, trctl.Capability{AllowSink: true}, &fakeFifo{})
	_, _, err := ctrl.Open(0, trctl.ModeSink)
	require.NoError(t, err)

	require.Equal(t, "OK", dispatchControlFrame("Pause", ctrl))
	require.Equal(t, registry.StatePaused, tr.State())

	require.Equal(t, "OK", dispatchControlFrame("Resume", ctrl))
	require.Equal(t, registry.StateActive, tr.State())

	require.Equal(t, "OK", dispatchControlFrame("Drop", ctrl))
	require.Equal(t, "Invalid", dispatchControlFrame("Bogus", ctrl))
}

// fakeFifo hands out placeholder fd numbers instead of real pipes, so the
// controller can be driven without touching the kernel.
type fakeFifo struct{ next int }

func (f *fakeFifo) OpenDataPipe(ep *registry.PCMEndpoint, mode trctl.OpenMode) (int, int, error) {
	f.next += 2
	return 1000 + f.next, 1001 + f.next, nil
}

func (f *fakeFifo) OpenControlPair(ep *registry.PCMEndpoint) (int, int, error) {
	f.next += 2
	return 1000 + f.next, 1001 + f.next, nil
}

func (f *fakeFifo) Close(fd int) error { return nil }

func TestCodecIDForA2DPAndSCO(t *testing.T) {
	require.Equal(t, uint16(registry.A2DPCodecSBC), codecID(registry.CodecIdentity{Profile: registry.ProfileA2DPSource, A2DP: registry.A2DPCodecSBC}))
	require.Equal(t, uint16(1), codecID(registry.CodecIdentity{Profile: registry.ProfileHFPAG, SCO: registry.SCOCodecCVSD}))
	require.Equal(t, uint16(2), codecID(registry.CodecIdentity{Profile: registry.ProfileHFPHF, SCO: registry.SCOCodecMSBC}))
}

func TestModesReflectsCapability(t *testing.T) {
	require.Equal(t, []string{"source"}, modes(trctl.Capability{AllowSource: true}))
	require.Equal(t, []string{"sink"}, modes(trctl.Capability{AllowSink: true}))
	require.Equal(t, []string{"source", "sink"}, modes(trctl.Capability{AllowSource: true, AllowSink: true}))
	require.Nil(t, modes(trctl.Capability{}))
}

func TestRFCOMMModeMapping(t *testing.T) {
	require.Equal(t, "HFP-AG", rfcommMode(registry.ProfileHFPAG))
	require.Equal(t, "HSP-HS", rfcommMode(registry.ProfileHSPHS))
	require.Equal(t, "", rfcommMode(registry.ProfileA2DPSink))
}

type recordingMirror struct {
	added, removed, changed int
}

func (m *recordingMirror) PublishPCMAdded(adapter, device, profile, path string, props map[string]string) {
	m.added++
}
func (m *recordingMirror) PublishPCMRemoved(adapter, device, profile, path string) { m.removed++ }
func (m *recordingMirror) PublishPropertiesChanged(adapter, device, profile, path string, changed map[string]string) {
	m.changed++
}

func TestMirrorLabelsUsesAdapterIndexAndAddress(t *testing.T) {
	d := newTestDevice(t)
	tr, _ := d.LookupOrCreateTransport(registry.CodecIdentity{Profile: registry.ProfileA2DPSink, A2DP: registry.A2DPCodecSBC})

	adapter, device, profile := mirrorLabels(tr)
	require.Equal(t, "hci0", adapter)
	require.Equal(t, "AA:BB:CC:11:22:33", device)
	require.Equal(t, registry.ProfileA2DPSink.String(), profile)
}

func TestStringifyVariantsFormatsEachValue(t *testing.T) {
	out := stringifyVariants(map[string]dbus.Variant{
		"Channels": dbus.MakeVariant(byte(2)),
		"Codec":    dbus.MakeVariant(uint16(0)),
	})
	require.Len(t, out, 2)
	require.NotEmpty(t, out["Channels"])
	require.NotEmpty(t, out["Codec"])
}

func TestRecordingMirrorSatisfiesEventMirror(t *testing.T) {
	var m EventMirror = &recordingMirror{}
	m.PublishPCMAdded("hci0", "AA:BB:CC:11:22:33", "a2dp-sink", "/path", nil)
	m.PublishPCMRemoved("hci0", "AA:BB:CC:11:22:33", "a2dp-sink", "/path")
	m.PublishPropertiesChanged("hci0", "AA:BB:CC:11:22:33", "a2dp-sink", "/path", nil)
	rec := m.(*recordingMirror)
	require.Equal(t, 1, rec.added)
	require.Equal(t, 1, rec.removed)
	require.Equal(t, 1, rec.changed)
}

func TestPCMPropsMapIncludesVolumeCallback(t *testing.T) {
	d := newTestDevice(t)
	tr, _ := d.LookupOrCreateTransport(registry.CodecIdentity{Profile: registry.ProfileA2DPSink, A2DP: registry.A2DPCodecSBC})
	ep := tr.Endpoint(0)
	ep.Volume().Set(registry.PackVolume(64, false, 64, false))

	props := pcmPropsMap(tr, ep, trctl.Capability{AllowSink: true})
	vol := props[PCMIface]["Volume"]
	require.True(t, vol.Writable)
	require.NotNil(t, vol.Callback)

	changed := props[PCMIface]["Channels"]
	require.False(t, changed.Writable)
}
