package btprofile

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/require"

	"github.com/cwsl/btaudiod/internal/registry"
)

func TestParseDevicePath(t *testing.T) {
	hci, addr, err := parseDevicePath("/org/bluez/hci0/dev_AA_BB_CC_11_22_33")
	require.NoError(t, err)
	require.Equal(t, 0, hci)
	require.Equal(t, registry.Address{0xAA, 0xBB, 0xCC, 0x11, 0x22, 0x33}, addr)
}

func TestParseDevicePathRejectsMalformed(t *testing.T) {
	_, _, err := parseDevicePath("/org/bluez/hci0/not_a_device")
	require.Error(t, err)
}

func TestAdapterPath(t *testing.T) {
	require.Equal(t, dbus.ObjectPath("/org/bluez/hci0"), adapterPath("/org/bluez/hci0/dev_AA_BB_CC_11_22_33"))
}
