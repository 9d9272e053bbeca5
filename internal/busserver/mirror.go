package busserver

import (
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/cwsl/btaudiod/internal/registry"
)

// EventMirror receives a copy of every Manager1/PCM1 bus event the server
// emits. internal/mqttpub implements it; kept as an interface here so this
// package doesn't need to import mqttpub.
type EventMirror interface {
	PublishPCMAdded(adapter, device, profile, path string, props map[string]string)
	PublishPCMRemoved(adapter, device, profile, path string)
	PublishPropertiesChanged(adapter, device, profile, path string, changed map[string]string)
}

// SetEventMirror installs m, which from this point on receives every
// RegisterTransport/UnregisterTransport/RefreshMetrics event alongside the
// bus signal. Not safe to call concurrently with RegisterTransport.
func (s *Server) SetEventMirror(m EventMirror) {
	s.mirror = m
}

func mirrorLabels(t *registry.Transport) (adapter, device, profile string) {
	return fmt.Sprintf("hci%d", t.Device.Adapter.Index), t.Device.Address.String(), t.Identity.Profile.String()
}

func stringifyVariants(props map[string]dbus.Variant) map[string]string {
	out := make(map[string]string, len(props))
	for k, v := range props {
		out[k] = v.String()
	}
	return out
}
