package busserver

import (
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/cwsl/btaudiod/internal/registry"
)

// devicePath builds "<adapter-bus-path>/dev_XX_XX_XX_XX_XX_XX", the
// bluez-style device object path, from the adapter's own bus path.
func devicePath(a *registry.Adapter, addr registry.Address) dbus.ObjectPath {
	return dbus.ObjectPath(fmt.Sprintf("%s/dev_%s", a.LocalBusPath, strings.ReplaceAll(addr.String(), ":", "_")))
}

// transportPath builds the PCM/RFCOMM object path for t, per spec.md §6:
// "/org/<service>/hci<N>/<dev>/<profile>".
func transportPath(t *registry.Transport) dbus.ObjectPath {
	dev := devicePath(t.Device.Adapter, t.Device.Address)
	return dbus.ObjectPath(fmt.Sprintf("%s/%s", dev, profileSegment(t.Identity)))
}

func profileSegment(id registry.CodecIdentity) string {
	return strings.ReplaceAll(id.Profile.String(), "-", "_")
}

// pcmPath builds the object path for one of a transport's PCM endpoints.
// A2DP transports carry a single endpoint and use transportPath(t)
// unchanged (RFCOMM transports carry none); SCO transports carry two (speaker=0, mic=1)
// and get a "/speaker" or "/mic" suffix, per spec.md §3's two-endpoint SCO
// transport.
func pcmPath(t *registry.Transport, epIndex int) dbus.ObjectPath {
	base := transportPath(t)
	if !t.Identity.Profile.IsSCO() {
		return base
	}
	if epIndex == 1 {
		return base + "/mic"
	}
	return base + "/speaker"
}
