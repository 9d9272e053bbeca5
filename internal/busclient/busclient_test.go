package busclient

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/require"
)

func TestDecodePCMReadsKnownProperties(t *testing.T) {
	props := map[string]dbus.Variant{
		"Device":   dbus.MakeVariant(dbus.ObjectPath("/org/btaudio/hci0/dev_AA_BB")),
		"Modes":    dbus.MakeVariant([]string{"source", "sink"}),
		"Channels": dbus.MakeVariant(byte(2)),
		"Sampling": dbus.MakeVariant(uint32(44100)),
		"Codec":    dbus.MakeVariant(uint16(0)),
		"Delay":    dbus.MakeVariant(uint16(120)),
		"Volume":   dbus.MakeVariant(uint16(0x7f7f)),
		"Battery":  dbus.MakeVariant(byte(80)),
	}
	p := decodePCM("/org/btaudio/hci0/dev_AA_BB/a2dp_source", props)

	require.Equal(t, dbus.ObjectPath("/org/btaudio/hci0/dev_AA_BB"), p.Device)
	require.Equal(t, []string{"source", "sink"}, p.Modes)
	require.Equal(t, byte(2), p.Channels)
	require.Equal(t, uint32(44100), p.Sampling)
	require.Equal(t, uint16(120), p.Delay)
	require.Equal(t, uint16(0x7f7f), p.Volume)
	require.Equal(t, byte(80), p.Battery)
}

func TestDecodePCMToleratesMissingProperties(t *testing.T) {
	p := decodePCM("/some/path", map[string]dbus.Variant{})
	require.Equal(t, dbus.ObjectPath("/some/path"), p.Path)
	require.Empty(t, p.Modes)
	require.Equal(t, byte(0), p.Channels)
}
