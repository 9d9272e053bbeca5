package busserver

import (
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"

	"github.com/cwsl/btaudiod/internal/registry"
	trctl "github.com/cwsl/btaudiod/internal/transport"
)

// rfcommMode maps a SCO transport's profile onto the RFCOMM1 Mode string,
// per spec.md §6.
func rfcommMode(p registry.Profile) string {
	switch p {
	case registry.ProfileHFPAG:
		return "HFP-AG"
	case registry.ProfileHFPHF:
		return "HFP-HF"
	case registry.ProfileHSPAG:
		return "HSP-AG"
	case registry.ProfileHSPHS:
		return "HSP-HS"
	default:
		return ""
	}
}

// rfcommObject implements the RFCOMM1 interface SCO transports additionally
// carry, per spec.md §6.
type rfcommObject struct {
	srv  *Server
	t    *registry.Transport
	ctrl *trctl.Controller
}

// Open implements RFCOMM1.Open() -> fd: a seqpacket used for AT-command
// exchange. It returns the Bluetooth socket fd the transport already holds
// (the RFCOMM channel is a sub-transport of the SCO link per SPEC_FULL.md
// §7) and fails with ErrAcquireFailed when none is held; it does not
// acquire a socket itself.
func (o *rfcommObject) Open() (dbus.UnixFD, *dbus.Error) {
	fd := o.t.BTSocketFd()
	if fd == -1 {
		o.srv.countBusError("RFCOMM.Open")
		return 0, dbus.MakeFailedError(trctl.ErrAcquireFailed)
	}
	return dbus.UnixFD(fd), nil
}

func rfcommPropsMap(t *registry.Transport) map[string]map[string]*prop.Prop {
	return map[string]map[string]*prop.Prop{
		RFCOMMIface: {
			"Mode":     {Value: rfcommMode(t.Identity.Profile), Writable: false, Emit: prop.EmitTrue},
			"Features": {Value: uint32(0), Writable: false, Emit: prop.EmitTrue},
		},
	}
}
