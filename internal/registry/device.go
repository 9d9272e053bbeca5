package registry

import (
	"fmt"
	"sync"
)

// Address is a 6-byte Bluetooth device address.
type Address [6]byte

func (a Address) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", a[0], a[1], a[2], a[3], a[4], a[5])
}

// transportKey is the lookup key for a device's transport map: (type,
// profile, codec) per spec.md §3. "type" distinguishes the RFCOMM
// sub-transport from its parent SCO transport, since both share profile.
type transportKey struct {
	isRFCOMM bool
	identity CodecIdentity
}

func keyFor(identity CodecIdentity) transportKey {
	return transportKey{isRFCOMM: identity.Profile == ProfileRFCOMM, identity: identity}
}

// BatteryLevel is the device's optional 0-100 battery reading.
type BatteryLevel struct {
	Known bool
	Value uint8
}

// Device is one remote Bluetooth peer bonded to an Adapter, per spec.md §3.
type Device struct {
	refCounted

	Address Address
	Adapter *Adapter // non-owning back-reference

	mu         sync.Mutex
	transports map[transportKey]*Transport

	batteryMu sync.Mutex
	battery   BatteryLevel

	OnPropertiesChanged func(d *Device) // invoked after Battery changes
}

func newDevice(a *Adapter, addr Address) *Device {
	d := &Device{
		Address:    addr,
		Adapter:    a,
		transports: make(map[transportKey]*Transport),
	}
	d.refCounted = newRefCounted(func() { d.teardown() })
	return d
}

func (d *Device) teardown() {
	if d.Adapter != nil {
		d.Adapter.Unref()
	}
}

// SetBattery updates the battery reading and notifies listeners.
func (d *Device) SetBattery(b BatteryLevel) {
	d.batteryMu.Lock()
	d.battery = b
	d.batteryMu.Unlock()
	if d.OnPropertiesChanged != nil {
		d.OnPropertiesChanged(d)
	}
}

// Battery returns the current battery reading.
func (d *Device) Battery() BatteryLevel {
	d.batteryMu.Lock()
	defer d.batteryMu.Unlock()
	return d.battery
}

// LookupTransport takes the device mutex and returns a newly-refd handle,
// or false if no such transport exists.
func (d *Device) LookupTransport(identity CodecIdentity) (*Transport, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.transports[keyFor(identity)]
	if !ok {
		return nil, false
	}
	t.Ref()
	return t, true
}

// LookupOrCreateTransport atomically looks up a transport by identity,
// creating it if absent; a new transport starts with refcount 2, one held
// by the device's map and one handed to the caller. The bool reports
// whether a new transport was created.
func (d *Device) LookupOrCreateTransport(identity CodecIdentity) (*Transport, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := keyFor(identity)
	if t, ok := d.transports[key]; ok {
		t.Ref()
		return t, false
	}
	t := newTransport(d, identity)
	d.transports[key] = t
	d.Ref() // the transport holds a weak back-reference that becomes a
	// real unref on teardown; balance it by refing the device now.
	t.Ref()
	return t, true
}

// RemoveTransport drops the transport from the map and unrefs it, intended
// to be called once when the remote stack reports the transport gone or
// its socket is observed closed (spec.md §3 Lifecycle).
func (d *Device) RemoveTransport(identity CodecIdentity) (*Transport, bool) {
	d.mu.Lock()
	key := keyFor(identity)
	t, ok := d.transports[key]
	if ok {
		delete(d.transports, key)
	}
	d.mu.Unlock()
	if !ok {
		return nil, false
	}
	t.Unref()
	return t, true
}

// Transports returns a snapshot of currently registered transports, each
// newly-refd.
func (d *Device) Transports() []*Transport {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Transport, 0, len(d.transports))
	for _, t := range d.transports {
		t.Ref()
		out = append(out, t)
	}
	return out
}
