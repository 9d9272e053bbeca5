package busserver

import (
	"github.com/godbus/dbus/v5"

	"github.com/cwsl/btaudiod/internal/registry"
	trctl "github.com/cwsl/btaudiod/internal/transport"
)

// pcmEntry is the (path, properties) pair GetPCMs returns for one
// transport, and PCMAdded carries for the new one — the a(oa{sv}) /
// (oa{sv}) shapes from spec.md §6.
type pcmEntry struct {
	Path  dbus.ObjectPath
	Props map[string]dbus.Variant
}

// manager implements the Manager1 interface's GetPCMs method.
type manager struct {
	srv *Server
}

// GetPCMs implements Manager1.GetPCMs() -> array of (object-path,
// dict<string,variant>).
func (m *manager) GetPCMs() ([]pcmEntry, *dbus.Error) {
	m.srv.mu.Lock()
	defer m.srv.mu.Unlock()

	out := make([]pcmEntry, 0, len(m.srv.pcms))
	for _, reg := range m.srv.pcms {
		out = append(out, pcmEntry{Path: reg.path, Props: snapshotVariants(reg.t, reg.ep, reg.cap)})
	}
	return out, nil
}

// snapshotVariants renders a transport's current PCM1 properties as the
// dict<string,variant> the bus surface (GetPCMs, PCMAdded) carries.
func snapshotVariants(t *registry.Transport, ep *registry.PCMEndpoint, cap trctl.Capability) map[string]dbus.Variant {
	dev := devicePath(t.Device.Adapter, t.Device.Address)
	battery := t.Device.Battery()
	var batteryByte byte
	if battery.Known {
		batteryByte = battery.Value
	}
	return map[string]dbus.Variant{
		"Device":   dbus.MakeVariant(dev),
		"Modes":    dbus.MakeVariant(modes(cap)),
		"Channels": dbus.MakeVariant(byte(ep.Channels)),
		"Sampling": dbus.MakeVariant(uint32(ep.SampleRate)),
		"Codec":    dbus.MakeVariant(codecID(t.Identity)),
		"Delay":    dbus.MakeVariant(uint16(t.EncodingDelay())),
		"Volume":   dbus.MakeVariant(ep.Volume().Get()),
		"Battery":  dbus.MakeVariant(batteryByte),
	}
}

// emitPCMAdded sends Manager1.PCMAdded(object-path, properties), per
// spec.md §8's ordering guarantee that PCMAdded strictly precedes any
// PropertiesChanged for the same transport — callers must call this
// before starting anything that could mutate a property.
func (s *Server) emitPCMAdded(path dbus.ObjectPath, props map[string]dbus.Variant) error {
	return s.conn.Emit(s.rootPath, ManagerIface+".PCMAdded", path, props)
}

// emitPCMRemoved sends Manager1.PCMRemoved(object-path), the last event
// for a transport per spec.md §8.
func (s *Server) emitPCMRemoved(path dbus.ObjectPath) error {
	return s.conn.Emit(s.rootPath, ManagerIface+".PCMRemoved", path)
}
