package btprofile

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cwsl/btaudiod/internal/registry"
)

func TestAllowedMatchesAdapterSuffix(t *testing.T) {
	require.True(t, allowed("/org/bluez/hci0", []string{"hci0"}))
	require.False(t, allowed("/org/bluez/hci1", []string{"hci0"}))
	require.True(t, allowed("/org/bluez/hci1", []string{"hci0", "hci1"}))
}

func TestProfileRoleServerForAGRoles(t *testing.T) {
	require.Equal(t, "server", profileRole(registry.ProfileHSPAG))
	require.Equal(t, "server", profileRole(registry.ProfileHFPAG))
	require.Equal(t, "client", profileRole(registry.ProfileHSPHS))
	require.Equal(t, "client", profileRole(registry.ProfileHFPHF))
}

func TestSBCCapabilitiesShape(t *testing.T) {
	require.Len(t, sbcCapabilities, 4)
}
