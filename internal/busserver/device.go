package busserver

import (
	"github.com/godbus/dbus/v5/prop"

	"github.com/cwsl/btaudiod/internal/registry"
)

// DeviceIface carries the Battery property SPEC_FULL.md §7 wires onto the
// device object rather than per-transport: original_source/src/ba-adapter.h
// and bluealsa-dbus.c report Battery on the *device*, shared by every
// transport that device carries.
const DeviceIface = "org.btaudio.Device1"

// registerDevice exports a Device1 object at addr's device path the first
// time any of its transports registers, and hooks the registry's
// OnPropertiesChanged callback so battery updates emit PropertiesChanged
// without polling.
func (s *Server) registerDevice(d *registry.Device) (*prop.Properties, error) {
	s.mu.Lock()
	if p, ok := s.devices[d]; ok {
		s.mu.Unlock()
		return p, nil
	}
	s.mu.Unlock()

	path := devicePath(d.Adapter, d.Address)
	battery := d.Battery()
	var batteryByte byte
	if battery.Known {
		batteryByte = battery.Value
	}

	p, err := prop.Export(s.conn, path, map[string]map[string]*prop.Prop{
		DeviceIface: {
			"Address": {Value: d.Address.String(), Writable: false, Emit: prop.EmitTrue},
			"Battery": {Value: batteryByte, Writable: false, Emit: prop.EmitTrue},
		},
	})
	if err != nil {
		return nil, err
	}

	d.OnPropertiesChanged = func(d *registry.Device) {
		b := d.Battery()
		var v byte
		if b.Known {
			v = b.Value
		}
		p.SetMust(DeviceIface, "Battery", v)
	}

	s.mu.Lock()
	s.devices[d] = p
	s.mu.Unlock()
	return p, nil
}
