// Package btprofile is the BlueZ-facing half of profile acquisition: it
// registers MediaEndpoint1 objects (A2DP) and Profile1 objects (HSP/HFP)
// with bluetoothd over the system bus and turns the resulting
// SetConfiguration/NewConnection calls into registry.Transport objects
// with a working trctl.Capability, per original_source/src/bluez-iface.c
// and ofono-iface.c's role in the original daemon (SPEC_FULL.md §7).
package btprofile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/cwsl/btaudiod/internal/registry"
)

// parseDevicePath extracts the adapter's hci index and the remote device's
// address from a bluez device object path shaped
// "/org/bluez/hciN/dev_XX_XX_XX_XX_XX_XX".
func parseDevicePath(path dbus.ObjectPath) (hciIndex int, addr registry.Address, err error) {
	parts := strings.Split(string(path), "/")
	var hciSeg, devSeg string
	for _, p := range parts {
		switch {
		case strings.HasPrefix(p, "hci"):
			hciSeg = p
		case strings.HasPrefix(p, "dev_"):
			devSeg = p
		}
	}
	if hciSeg == "" || devSeg == "" {
		return 0, addr, fmt.Errorf("btprofile: malformed device path %q", path)
	}
	hciIndex, err = strconv.Atoi(strings.TrimPrefix(hciSeg, "hci"))
	if err != nil {
		return 0, addr, fmt.Errorf("btprofile: bad adapter index in %q: %w", path, err)
	}
	octets := strings.Split(strings.TrimPrefix(devSeg, "dev_"), "_")
	if len(octets) != 6 {
		return 0, addr, fmt.Errorf("btprofile: bad device address in %q", path)
	}
	for i, o := range octets {
		v, err := strconv.ParseUint(o, 16, 8)
		if err != nil {
			return 0, addr, fmt.Errorf("btprofile: bad address octet %q: %w", o, err)
		}
		addr[i] = byte(v)
	}
	return hciIndex, addr, nil
}

// adapterPath rebuilds the adapter's own bluez object path from a device
// path, e.g. "/org/bluez/hci0/dev_.." -> "/org/bluez/hci0".
func adapterPath(devicePath dbus.ObjectPath) dbus.ObjectPath {
	s := string(devicePath)
	if i := strings.LastIndex(s, "/dev_"); i >= 0 {
		return dbus.ObjectPath(s[:i])
	}
	return devicePath
}
