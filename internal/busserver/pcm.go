package busserver

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"

	"github.com/cwsl/btaudiod/internal/registry"
	trctl "github.com/cwsl/btaudiod/internal/transport"
)

// codecID maps a transport's codec identity onto the bus's Codec property
// (uint16 id), per spec.md §6.
func codecID(identity registry.CodecIdentity) uint16 {
	if identity.Profile.IsA2DP() {
		return uint16(identity.A2DP)
	}
	switch identity.SCO {
	case registry.SCOCodecCVSD:
		return 1
	case registry.SCOCodecMSBC:
		return 2
	default:
		return 0
	}
}

// modes lists the directions a transport's PCM endpoint supports, per
// spec.md §6's Modes property ("source"|"sink").
func modes(cap trctl.Capability) []string {
	var out []string
	if cap.AllowSource {
		out = append(out, "source")
	}
	if cap.AllowSink {
		out = append(out, "sink")
	}
	return out
}

// pcmObject implements the bus's PCM1 interface for one transport endpoint.
type pcmObject struct {
	srv     *Server
	t       *registry.Transport
	ep      *registry.PCMEndpoint
	epIndex int
	ctrl    *trctl.Controller
	props   *prop.Properties
}

// Open implements PCM1.Open(mode) -> (data-fd, ctrl-fd), per spec.md §6.
func (o *pcmObject) Open(mode string) (dbus.UnixFD, dbus.UnixFD, *dbus.Error) {
	var m trctl.OpenMode
	switch mode {
	case "source":
		m = trctl.ModeSource
	case "sink":
		m = trctl.ModeSink
	default:
		return 0, 0, dbus.MakeFailedError(fmt.Errorf("invalid mode %q", mode))
	}

	dataFd, ctrlFd, err := o.ctrl.Open(o.epIndex, m)
	if err != nil {
		o.srv.countBusError("PCM.Open")
		return 0, 0, dbus.MakeFailedError(err)
	}
	o.srv.countPCMOpen(o.t.Identity, mode)
	go runControlFrameLoop(o.ep, o.ctrl)
	return dbus.UnixFD(dataFd), dbus.UnixFD(ctrlFd), nil
}

// pcmPropsMap builds the property table prop.Export needs plus the initial
// values, per spec.md §6's PCM1 property list.
func pcmPropsMap(t *registry.Transport, ep *registry.PCMEndpoint, cap trctl.Capability) map[string]map[string]*prop.Prop {
	dev := devicePath(t.Device.Adapter, t.Device.Address)
	battery := t.Device.Battery()
	var batteryByte byte
	if battery.Known {
		batteryByte = battery.Value
	}
	return map[string]map[string]*prop.Prop{
		PCMIface: {
			"Device":   {Value: dev, Writable: false, Emit: prop.EmitTrue},
			"Modes":    {Value: modes(cap), Writable: false, Emit: prop.EmitTrue},
			"Channels": {Value: byte(ep.Channels), Writable: false, Emit: prop.EmitTrue},
			"Sampling": {Value: uint32(ep.SampleRate), Writable: false, Emit: prop.EmitTrue},
			"Codec":    {Value: codecID(t.Identity), Writable: false, Emit: prop.EmitTrue},
			"Delay":    {Value: uint16(t.EncodingDelay()), Writable: false, Emit: prop.EmitTrue},
			"Volume": {
				Value:    ep.Volume().Get(),
				Writable: true,
				Emit:     prop.EmitTrue,
				Callback: func(c *prop.Change) *dbus.Error {
					v, ok := c.Value.(uint16)
					if !ok {
						return dbus.MakeFailedError(fmt.Errorf("Volume must be uint16"))
					}
					ep.Volume().Set(v)
					return nil
				},
			},
			"Battery": {Value: batteryByte, Writable: false, Emit: prop.EmitTrue},
		},
	}
}
