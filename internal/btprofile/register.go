package btprofile

import (
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/cwsl/btaudiod/internal/busserver"
	"github.com/cwsl/btaudiod/internal/logging"
	"github.com/cwsl/btaudiod/internal/registry"
)

// A2DP UUIDs from the Bluetooth SIG assigned numbers document.
const (
	uuidA2DPSource = "0000110a-0000-1000-8000-00805f9b34fb"
	uuidA2DPSink   = "0000110b-0000-1000-8000-00805f9b34fb"
	uuidHSPAG      = "00001112-0000-1000-8000-00805f9b34fb"
	uuidHSPHS      = "00001108-0000-1000-8000-00805f9b34fb"
	uuidHFPAG      = "0000111f-0000-1000-8000-00805f9b34fb"
	uuidHFPHF      = "0000111e-0000-1000-8000-00805f9b34fb"
)

// sbcCapabilities is the standard 4-byte SBC_Codec_Specific_Information
// block from the A2DP spec: byte0 bits [sampling freq][channel mode],
// byte1 bits [block length][subbands][allocation method], byte2 min
// bitpool, byte3 max bitpool. This advertises every sampling
// rate/channel-mode combination; SelectConfiguration returns this same
// blob unchanged as the selected configuration.
var sbcCapabilities = []byte{0xFF, 0xFF, 2, 53}

// Enabled mirrors config.EnableConfig: which profiles to register with
// bluetoothd at startup, per spec.md §6.
type Enabled struct {
	A2DPSource bool
	A2DPSink   bool
	HSPAG      bool
	HSPHS      bool
	HFPAG      bool
	HFPHF      bool
}

// RegisterAll registers a MediaEndpoint1 per enabled A2DP direction and a
// Profile1 per enabled HSP/HFP role with bluetoothd, and exports the
// corresponding objects on conn. Registration errors for one profile are
// logged and skipped rather than aborting the rest, since bluetoothd may
// not support every profile on every system (e.g. no Media1 object if the
// adapter lacks audio codec offload).
func RegisterAll(conn *dbus.Conn, reg *registry.Registry, srv *busserver.Server, hciFilter []string, enabled Enabled) {
	adapters := discoverAdapters(conn, hciFilter)
	if len(adapters) == 0 {
		logging.Warnf("btprofile: no matching bluez adapters found (hci_filter=%v)", hciFilter)
	}

	for _, adapterPath := range adapters {
		if enabled.A2DPSource {
			registerMediaEndpoint(conn, reg, srv, adapterPath, registry.ProfileA2DPSource, registry.A2DPCodecSBC, uuidA2DPSource, "btaudio_a2dp_source_sbc")
		}
		if enabled.A2DPSink {
			registerMediaEndpoint(conn, reg, srv, adapterPath, registry.ProfileA2DPSink, registry.A2DPCodecSBC, uuidA2DPSink, "btaudio_a2dp_sink_sbc")
		}
	}

	if enabled.HSPAG {
		registerSCOProfile(conn, reg, srv, registry.ProfileHSPAG, uuidHSPAG, "/org/btaudio/profile/hsp_ag")
	}
	if enabled.HSPHS {
		registerSCOProfile(conn, reg, srv, registry.ProfileHSPHS, uuidHSPHS, "/org/btaudio/profile/hsp_hs")
	}
	if enabled.HFPAG {
		registerSCOProfile(conn, reg, srv, registry.ProfileHFPAG, uuidHFPAG, "/org/btaudio/profile/hfp_ag")
	}
	if enabled.HFPHF {
		registerSCOProfile(conn, reg, srv, registry.ProfileHFPHF, uuidHFPHF, "/org/btaudio/profile/hfp_hf")
	}
}

// discoverAdapters walks bluez's ObjectManager tree for org.bluez.Adapter1
// objects, filtered by hciFilter (adapter names, e.g. "hci0"); an empty
// filter allows every adapter, per SPEC_FULL.md §7.
func discoverAdapters(conn *dbus.Conn, hciFilter []string) []dbus.ObjectPath {
	obj := conn.Object("org.bluez", "/")
	var managed map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	call := obj.Call("org.freedesktop.DBus.ObjectManager.GetManagedObjects", 0)
	if call.Err != nil {
		logging.Errorf("btprofile: GetManagedObjects failed: %v", call.Err)
		return nil
	}
	if err := call.Store(&managed); err != nil {
		logging.Errorf("btprofile: decode GetManagedObjects failed: %v", err)
		return nil
	}

	var out []dbus.ObjectPath
	for path, ifaces := range managed {
		if _, ok := ifaces["org.bluez.Adapter1"]; !ok {
			continue
		}
		if len(hciFilter) > 0 && !allowed(string(path), hciFilter) {
			continue
		}
		out = append(out, path)
	}
	return out
}

func allowed(path string, hciFilter []string) bool {
	for _, name := range hciFilter {
		if strings.HasSuffix(path, "/"+name) {
			return true
		}
	}
	return false
}

func registerMediaEndpoint(conn *dbus.Conn, reg *registry.Registry, srv *busserver.Server, adapterPath dbus.ObjectPath, profile registry.Profile, codec registry.A2DPCodecID, uuid, localName string) {
	ep := newA2DPEndpoint(conn, reg, srv, profile, codec, sbcCapabilities)
	localPath := dbus.ObjectPath(fmt.Sprintf("/org/btaudio/endpoint/%s", localName))
	if err := conn.Export(ep, localPath, "org.bluez.MediaEndpoint1"); err != nil {
		logging.Errorf("btprofile: export MediaEndpoint1 %s failed: %v", localPath, err)
		return
	}

	media := conn.Object("org.bluez", adapterPath)
	props := map[string]dbus.Variant{
		"UUID":         dbus.MakeVariant(uuid),
		"Codec":        dbus.MakeVariant(byte(codec)),
		"Capabilities": dbus.MakeVariant(sbcCapabilities),
	}
	if call := media.Call("org.bluez.Media1.RegisterEndpoint", 0, localPath, props); call.Err != nil {
		logging.Errorf("btprofile: RegisterEndpoint(%s, %s) failed: %v", adapterPath, localPath, call.Err)
		return
	}
	logging.Infof("btprofile: registered %s endpoint on %s", profile, adapterPath)
}

func registerSCOProfile(conn *dbus.Conn, reg *registry.Registry, srv *busserver.Server, profile registry.Profile, uuid string, localPath dbus.ObjectPath) {
	p := newSCOProfile(conn, reg, srv, profile)
	if err := conn.Export(p, localPath, "org.bluez.Profile1"); err != nil {
		logging.Errorf("btprofile: export Profile1 %s failed: %v", localPath, err)
		return
	}

	manager := conn.Object("org.bluez", dbus.ObjectPath("/org/bluez"))
	opts := map[string]dbus.Variant{
		"Role": dbus.MakeVariant(profileRole(profile)),
	}
	if call := manager.Call("org.bluez.ProfileManager1.RegisterProfile", 0, localPath, uuid, opts); call.Err != nil {
		logging.Errorf("btprofile: RegisterProfile(%s, %s) failed: %v", localPath, uuid, call.Err)
		return
	}
	logging.Infof("btprofile: registered %s profile at %s", profile, localPath)
}

func profileRole(p registry.Profile) string {
	switch p {
	case registry.ProfileHSPAG, registry.ProfileHFPAG:
		return "server"
	default:
		return "client"
	}
}
