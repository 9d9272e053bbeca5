package btprofile

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/cwsl/btaudiod/internal/busserver"
	"github.com/cwsl/btaudiod/internal/logging"
	"github.com/cwsl/btaudiod/internal/registry"
	trctl "github.com/cwsl/btaudiod/internal/transport"
)

// mediaTransportIface is BlueZ's transport object, handed to us via
// SetConfiguration's first argument; Acquire/Release on it are how we get
// and give back the actual socket fd (BlueZ's documented media-api.txt).
const mediaTransportIface = "org.bluez.MediaTransport1"

// a2dpEndpoint implements org.bluez.MediaEndpoint1 for one {profile, codec}
// pair, per original_source's bluez-iface.c media endpoint registration.
type a2dpEndpoint struct {
	conn    *dbus.Conn
	reg     *registry.Registry
	srv     *busserver.Server
	profile registry.Profile
	codec   registry.A2DPCodecID
	caps    []byte // fixed capability blob advertised to bluetoothd

	mu     sync.Mutex
	byPath map[dbus.ObjectPath]a2dpRegistration // bluez transport path -> our transport
}

type a2dpRegistration struct {
	t       *registry.Transport
	release trctl.ReleaseFunc
}

func newA2DPEndpoint(conn *dbus.Conn, reg *registry.Registry, srv *busserver.Server, profile registry.Profile, codec registry.A2DPCodecID, caps []byte) *a2dpEndpoint {
	return &a2dpEndpoint{
		conn: conn, reg: reg, srv: srv, profile: profile, codec: codec, caps: caps,
		byPath: make(map[dbus.ObjectPath]a2dpRegistration),
	}
}

// SelectConfiguration returns the endpoint's own fixed capability blob as
// the configuration. The peer's advertised capabilities are not inspected.
// Per spec.md's Non-goal of arbitrary format conversion, btaudiod always
// asks for its own fixed configuration rather than negotiating, mirroring
// the teacher's fixed internal PCM format.
func (e *a2dpEndpoint) SelectConfiguration(capabilities []byte) ([]byte, *dbus.Error) {
	return e.caps, nil
}

// SetConfiguration is called once bluetoothd has negotiated the codec with
// the peer; transport is the new org.bluez.MediaTransport1 object, and
// properties carries at least "Device".
func (e *a2dpEndpoint) SetConfiguration(transport dbus.ObjectPath, properties map[string]dbus.Variant) *dbus.Error {
	devicePath, ok := properties["Device"].Value().(dbus.ObjectPath)
	if !ok {
		return dbus.MakeFailedError(fmt.Errorf("btprofile: SetConfiguration missing Device property"))
	}
	hciIndex, addr, err := parseDevicePath(devicePath)
	if err != nil {
		return dbus.MakeFailedError(err)
	}

	adapter, _ := e.reg.LookupOrCreateAdapter(hciIndex, string(adapterPath(devicePath)), fmt.Sprintf("hci%d", hciIndex))
	device, _ := adapter.LookupOrCreateDevice(addr)
	t, _ := device.LookupOrCreateTransport(registry.CodecIdentity{Profile: e.profile, A2DP: e.codec})

	cap := trctl.Capability{
		AllowSource:     e.profile == registry.ProfileA2DPSource,
		AllowSink:       e.profile == registry.ProfileA2DPSink,
		DeferredAcquire: e.profile == registry.ProfileA2DPSource,
		Acquire:         e.acquireFunc(transport),
		Release:         e.releaseFunc(transport),
	}

	// A2DP-sink holds the socket for the transport's whole life; acquire
	// it now. A2DP-source defers until a local client opens the PCM, per
	// spec.md §3 Lifecycle.
	if !cap.DeferredAcquire {
		fd, rmtu, wmtu, aerr := cap.Acquire(t)
		if aerr != nil {
			device.Unref()
			return dbus.MakeFailedError(aerr)
		}
		t.SetBTSocketFd(fd)
		t.ReadMTU, t.WriteMTU = rmtu, wmtu
	}

	e.mu.Lock()
	e.byPath[transport] = a2dpRegistration{t: t, release: cap.Release}
	e.mu.Unlock()

	if err := e.srv.RegisterTransport(t, cap); err != nil {
		logging.Errorf("btprofile: RegisterTransport failed for %s: %v", devicePath, err)
		return dbus.MakeFailedError(err)
	}
	return nil
}

// ClearConfiguration tears down the transport bluetoothd is discarding.
func (e *a2dpEndpoint) ClearConfiguration(transport dbus.ObjectPath) *dbus.Error {
	e.mu.Lock()
	reg, ok := e.byPath[transport]
	delete(e.byPath, transport)
	e.mu.Unlock()
	if !ok {
		return nil
	}
	e.srv.UnregisterTransport(reg.t)
	if reg.t.BTSocketFd() != -1 && reg.release != nil {
		reg.release(reg.t)
	}
	// The I/O goroutine notices the closed socket (or, for a source
	// transport with no BT socket yet acquired, the next PCM_CLOSE/ping)
	// and exits on its own; join it off the bus dispatch goroutine so a
	// slow-to-notice engine loop can't stall ClearConfiguration, per
	// spec.md §8 property 6's join-before-final-Unref invariant.
	go func() {
		<-reg.t.IODone()
		reg.t.Device.RemoveTransport(reg.t.Identity)
	}()
	return nil
}

// Release is called when bluetoothd itself is shutting the endpoint down.
func (e *a2dpEndpoint) Release() *dbus.Error { return nil }

// acquireFunc returns a trctl.AcquireFunc that calls MediaTransport1.Acquire
// over the bus, per media-api.txt: Acquire() -> (fd, read_mtu, write_mtu).
func (e *a2dpEndpoint) acquireFunc(transport dbus.ObjectPath) trctl.AcquireFunc {
	return func(t *registry.Transport) (int, int, int, error) {
		obj := e.conn.Object("org.bluez", transport)
		call := obj.Call(mediaTransportIface+".Acquire", 0)
		if call.Err != nil {
			return -1, 0, 0, call.Err
		}
		var fd dbus.UnixFD
		var readMTU, writeMTU uint16
		if err := call.Store(&fd, &readMTU, &writeMTU); err != nil {
			return -1, 0, 0, err
		}
		return int(fd), int(readMTU), int(writeMTU), nil
	}
}

// releaseFunc calls MediaTransport1.Release, giving the socket back to
// bluetoothd.
func (e *a2dpEndpoint) releaseFunc(transport dbus.ObjectPath) trctl.ReleaseFunc {
	return func(t *registry.Transport) {
		obj := e.conn.Object("org.bluez", transport)
		if call := obj.Call(mediaTransportIface+".Release", 0); call.Err != nil {
			logging.Warnf("btprofile: MediaTransport1.Release(%s) failed: %v", transport, call.Err)
		}
	}
}
