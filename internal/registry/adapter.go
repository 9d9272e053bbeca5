package registry

import "sync"

// Adapter is a local Bluetooth controller, per spec.md §3.
type Adapter struct {
	refCounted

	Index          int
	LocalBusPath   string // e.g. /org/bluez/hci0
	RemoteStackRef string // opaque handle/path into the host Bluetooth stack

	mu      sync.Mutex
	devices map[Address]*Device
}

func newAdapter(index int, localBusPath, remoteStackRef string) *Adapter {
	a := &Adapter{
		Index:          index,
		LocalBusPath:   localBusPath,
		RemoteStackRef: remoteStackRef,
		devices:        make(map[Address]*Device),
	}
	a.refCounted = newRefCounted(func() {})
	return a
}

// LookupDevice takes the adapter mutex and returns a newly-refd handle, or
// false if the address is unknown.
func (a *Adapter) LookupDevice(addr Address) (*Device, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	d, ok := a.devices[addr]
	if !ok {
		return nil, false
	}
	d.Ref()
	return d, true
}

// LookupOrCreateDevice atomically finds or creates a Device for addr.
func (a *Adapter) LookupOrCreateDevice(addr Address) (*Device, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if d, ok := a.devices[addr]; ok {
		d.Ref()
		return d, false
	}
	d := newDevice(a, addr)
	a.devices[addr] = d
	a.Ref()
	d.Ref()
	return d, true
}

// RemoveDevice drops the device from the map and unrefs it.
func (a *Adapter) RemoveDevice(addr Address) (*Device, bool) {
	a.mu.Lock()
	d, ok := a.devices[addr]
	if ok {
		delete(a.devices, addr)
	}
	a.mu.Unlock()
	if !ok {
		return nil, false
	}
	d.Unref()
	return d, true
}

// Devices returns a snapshot of currently registered devices, each
// newly-refd.
func (a *Adapter) Devices() []*Device {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*Device, 0, len(a.devices))
	for _, d := range a.devices {
		d.Ref()
		out = append(out, d)
	}
	return out
}
