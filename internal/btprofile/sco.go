package btprofile

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"golang.org/x/sys/unix"

	"github.com/cwsl/btaudiod/internal/busserver"
	"github.com/cwsl/btaudiod/internal/logging"
	"github.com/cwsl/btaudiod/internal/registry"
	trctl "github.com/cwsl/btaudiod/internal/transport"
)

// scoProfile implements org.bluez.Profile1 for one HSP/HFP role.
// NewConnection hands us the RFCOMM socket fd directly, so unlike A2DP
// there is no deferred Acquire: the transport is created already holding
// its socket, per spec.md §3 Lifecycle ("sockets already held when the
// transport was created" case).
type scoProfile struct {
	conn    *dbus.Conn
	reg     *registry.Registry
	srv     *busserver.Server
	profile registry.Profile

	mu     sync.Mutex
	byPath map[dbus.ObjectPath]*registry.Transport
}

func newSCOProfile(conn *dbus.Conn, reg *registry.Registry, srv *busserver.Server, profile registry.Profile) *scoProfile {
	return &scoProfile{conn: conn, reg: reg, srv: srv, profile: profile, byPath: make(map[dbus.ObjectPath]*registry.Transport)}
}

// NewConnection is called once bluetoothd has accepted (AG role) or
// established (HF role) the RFCOMM channel for this profile.
func (p *scoProfile) NewConnection(device dbus.ObjectPath, fd dbus.UnixFD, properties map[string]dbus.Variant) *dbus.Error {
	hciIndex, addr, err := parseDevicePath(device)
	if err != nil {
		return dbus.MakeFailedError(err)
	}

	adapter, _ := p.reg.LookupOrCreateAdapter(hciIndex, string(adapterPath(device)), fmt.Sprintf("hci%d", hciIndex))
	dev, _ := adapter.LookupOrCreateDevice(addr)
	t, _ := dev.LookupOrCreateTransport(registry.CodecIdentity{Profile: p.profile, SCO: registry.SCOCodecCVSD})

	t.SetBTSocketFd(int(fd))
	t.ReadMTU, t.WriteMTU = 48, 48 // typical HCI SCO MTU; no codec flow changes it

	cap := trctl.Capability{
		AllowSource: true,
		AllowSink:   true,
	}

	p.mu.Lock()
	p.byPath[device] = t
	p.mu.Unlock()

	if err := p.srv.RegisterTransport(t, cap); err != nil {
		logging.Errorf("btprofile: RegisterTransport failed for %s: %v", device, err)
		return dbus.MakeFailedError(err)
	}
	return nil
}

// RequestDisconnection is called when bluetoothd is tearing the RFCOMM
// channel down, either at the peer's request or ours.
func (p *scoProfile) RequestDisconnection(device dbus.ObjectPath) *dbus.Error {
	p.mu.Lock()
	t, ok := p.byPath[device]
	delete(p.byPath, device)
	p.mu.Unlock()
	if !ok {
		return nil
	}
	p.srv.UnregisterTransport(t)
	if fd := t.BTSocketFd(); fd != -1 {
		unix.Close(fd)
		t.SetBTSocketFd(-1)
	}
	go func() {
		<-t.IODone()
		t.Device.RemoveTransport(t.Identity)
	}()
	return nil
}

// Release is called when bluetoothd itself is shutting the profile down.
func (p *scoProfile) Release() *dbus.Error { return nil }
