// Package busclient is a thin client over the bus surface
// internal/busserver exports, for the aplay-equivalent and ctl-equivalent
// CLIs. It does no buffering or codec work itself — it just turns method
// calls and signals into plain Go values, per SPEC_FULL.md §7.
package busclient

import (
	"fmt"
	"os"

	"github.com/godbus/dbus/v5"
)

// PCM describes one bus PCM object, as returned by GetPCMs or carried on a
// PCMAdded signal.
type PCM struct {
	Path     dbus.ObjectPath
	Device   dbus.ObjectPath
	Modes    []string
	Channels byte
	Sampling uint32
	Codec    uint16
	Delay    uint16
	Volume   uint16
	Battery  byte
}

// Client wraps a bus connection scoped to one service, per spec.md §6.
type Client struct {
	conn        *dbus.Conn
	serviceName string
	rootPath    dbus.ObjectPath
}

// Dial connects to the system or session bus and returns a Client bound to
// serviceName/rootPath. system selects which bus to dial, matching the
// daemon's own bus.system config knob.
func Dial(system bool, serviceName string, rootPath dbus.ObjectPath) (*Client, error) {
	var conn *dbus.Conn
	var err error
	if system {
		conn, err = dbus.ConnectSystemBus()
	} else {
		conn, err = dbus.ConnectSessionBus()
	}
	if err != nil {
		return nil, fmt.Errorf("busclient: connect: %w", err)
	}
	return &Client{conn: conn, serviceName: serviceName, rootPath: rootPath}, nil
}

// Close releases the underlying bus connection.
func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) managerObj() dbus.BusObject {
	return c.conn.Object(c.serviceName, c.rootPath)
}

// ListPCMs calls Manager1.GetPCMs and decodes the result into PCM values.
func (c *Client) ListPCMs() ([]PCM, error) {
	call := c.managerObj().Call("org.btaudio.Manager1.GetPCMs", 0)
	if call.Err != nil {
		return nil, fmt.Errorf("busclient: GetPCMs: %w", call.Err)
	}

	var raw []struct {
		Path  dbus.ObjectPath
		Props map[string]dbus.Variant
	}
	if err := call.Store(&raw); err != nil {
		return nil, fmt.Errorf("busclient: decode GetPCMs reply: %w", err)
	}

	out := make([]PCM, 0, len(raw))
	for _, r := range raw {
		out = append(out, decodePCM(r.Path, r.Props))
	}
	return out, nil
}

func decodePCM(path dbus.ObjectPath, props map[string]dbus.Variant) PCM {
	p := PCM{Path: path}
	if v, ok := props["Device"]; ok {
		p.Device, _ = v.Value().(dbus.ObjectPath)
	}
	if v, ok := props["Modes"]; ok {
		p.Modes, _ = v.Value().([]string)
	}
	if v, ok := props["Channels"]; ok {
		p.Channels, _ = v.Value().(byte)
	}
	if v, ok := props["Sampling"]; ok {
		p.Sampling, _ = v.Value().(uint32)
	}
	if v, ok := props["Codec"]; ok {
		p.Codec, _ = v.Value().(uint16)
	}
	if v, ok := props["Delay"]; ok {
		p.Delay, _ = v.Value().(uint16)
	}
	if v, ok := props["Volume"]; ok {
		p.Volume, _ = v.Value().(uint16)
	}
	if v, ok := props["Battery"]; ok {
		p.Battery, _ = v.Value().(byte)
	}
	return p
}

// Subscribe starts listening for PCMAdded/PCMRemoved signals and returns a
// channel of decoded events. The channel is closed when the underlying
// signal channel closes (i.e. on Close()).
type Event struct {
	Added   bool
	Removed bool
	PCM     PCM
}

// Subscribe adds a match rule for Manager1's signals and streams decoded
// events, per spec.md §8.5's add-then-remove ordering.
func (c *Client) Subscribe() (<-chan Event, error) {
	rule := fmt.Sprintf("type='signal',interface='org.btaudio.Manager1',path='%s'", c.rootPath)
	if call := c.conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, rule); call.Err != nil {
		return nil, fmt.Errorf("busclient: AddMatch: %w", call.Err)
	}

	sig := make(chan *dbus.Signal, 16)
	c.conn.Signal(sig)

	out := make(chan Event, 16)
	go func() {
		defer close(out)
		for s := range sig {
			switch s.Name {
			case "org.btaudio.Manager1.PCMAdded":
				if len(s.Body) != 2 {
					continue
				}
				path, _ := s.Body[0].(dbus.ObjectPath)
				props, _ := s.Body[1].(map[string]dbus.Variant)
				out <- Event{Added: true, PCM: decodePCM(path, props)}
			case "org.btaudio.Manager1.PCMRemoved":
				if len(s.Body) != 1 {
					continue
				}
				path, _ := s.Body[0].(dbus.ObjectPath)
				out <- Event{Removed: true, PCM: PCM{Path: path}}
			}
		}
	}()
	return out, nil
}

// Open calls PCM1.Open(mode) on path and returns the data and control fds
// as *os.File, so callers can use them with the standard io package.
func (c *Client) Open(path dbus.ObjectPath, mode string) (data, ctrl *os.File, err error) {
	obj := c.conn.Object(c.serviceName, path)
	call := obj.Call("org.btaudio.PCM1.Open", 0, mode)
	if call.Err != nil {
		return nil, nil, fmt.Errorf("busclient: Open(%s): %w", mode, call.Err)
	}
	var dataFd, ctrlFd dbus.UnixFD
	if err := call.Store(&dataFd, &ctrlFd); err != nil {
		return nil, nil, fmt.Errorf("busclient: decode Open reply: %w", err)
	}
	return os.NewFile(uintptr(dataFd), "btaudio-data"), os.NewFile(uintptr(ctrlFd), "btaudio-ctrl"), nil
}

// SetVolume writes the PCM1 Volume property via the standard
// org.freedesktop.DBus.Properties.Set method.
func (c *Client) SetVolume(path dbus.ObjectPath, packed uint16) error {
	obj := c.conn.Object(c.serviceName, path)
	call := obj.Call("org.freedesktop.DBus.Properties.Set", 0, "org.btaudio.PCM1", "Volume", dbus.MakeVariant(packed))
	if call.Err != nil {
		return fmt.Errorf("busclient: SetVolume: %w", call.Err)
	}
	return nil
}

// SendControl writes a single control-frame command ("Drain"/"Drop"/
// "Pause"/"Resume") on ctrl and returns the daemon's one-word reply.
func SendControl(ctrl *os.File, cmd string) (string, error) {
	if _, err := ctrl.Write([]byte(cmd)); err != nil {
		return "", fmt.Errorf("busclient: write control frame: %w", err)
	}
	buf := make([]byte, 64)
	n, err := ctrl.Read(buf)
	if err != nil {
		return "", fmt.Errorf("busclient: read control reply: %w", err)
	}
	return string(buf[:n]), nil
}
