// Package busserver exports the registry's adapters/devices/transports
// over D-Bus, per spec.md §6: a Manager1 object at the service root, a
// Device1 object per bonded device, and a PCM1 (plus RFCOMM1 for SCO)
// object per transport endpoint.
package busserver

import (
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"

	"github.com/cwsl/btaudiod/internal/logging"
	"github.com/cwsl/btaudiod/internal/metrics"
	"github.com/cwsl/btaudiod/internal/registry"
	trctl "github.com/cwsl/btaudiod/internal/transport"
)

// Interface names, per spec.md §6.
const (
	ManagerIface = "org.btaudio.Manager1"
	PCMIface     = "org.btaudio.PCM1"
	RFCOMMIface  = "org.btaudio.RFCOMM1"
)

// pcmRegistration is everything the server keeps about one exported PCM1
// object so it can be looked up again for teardown or a GetPCMs snapshot.
type pcmRegistration struct {
	path  dbus.ObjectPath
	t     *registry.Transport
	ep    *registry.PCMEndpoint
	cap   trctl.Capability
	ctrl  *trctl.Controller
	props *prop.Properties
}

// Server owns the bus connection and the object tree mirroring the
// registry, per spec.md §6/§9.
type Server struct {
	conn        *dbus.Conn
	reg         *registry.Registry
	fifo        trctl.FifoOpener
	metrics     *metrics.Metrics
	rootPath    dbus.ObjectPath
	startEngine func(t *registry.Transport)
	mirror      EventMirror

	mu      sync.Mutex
	pcms    map[*registry.PCMEndpoint]*pcmRegistration
	rfcomms map[*registry.Transport]*rfcommObject
	devices map[*registry.Device]*prop.Properties
}

// New connects to conn, exports the Manager1 object at rootPath, and
// requests busName on the bus, per spec.md §6. startEngine is invoked once
// per transport, after PCMAdded has been emitted, to start that
// transport's per-transport I/O goroutine (internal/engine.Runner.Run) —
// kept as a callback so this package doesn't need to import internal/engine
// or know how to build a codec Flow.
func New(conn *dbus.Conn, reg *registry.Registry, fifo trctl.FifoOpener, m *metrics.Metrics, busName string, rootPath dbus.ObjectPath, startEngine func(t *registry.Transport)) (*Server, error) {
	s := &Server{
		startEngine: startEngine,
		conn:        conn,
		reg:         reg,
		fifo:        fifo,
		metrics:     m,
		rootPath:    rootPath,
		pcms:        make(map[*registry.PCMEndpoint]*pcmRegistration),
		rfcomms:     make(map[*registry.Transport]*rfcommObject),
		devices:     make(map[*registry.Device]*prop.Properties),
	}

	if err := conn.Export(&manager{srv: s}, rootPath, ManagerIface); err != nil {
		return nil, err
	}
	node := &introspect.Node{
		Name: string(rootPath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name: ManagerIface,
				Methods: []introspect.Method{
					{Name: "GetPCMs", Args: []introspect.Arg{
						{Name: "pcms", Type: "a(oa{sv})", Direction: "out"},
					}},
				},
				Signals: []introspect.Signal{
					{Name: "PCMAdded", Args: []introspect.Arg{
						{Name: "pcm", Type: "o"},
						{Name: "properties", Type: "a{sv}"},
					}},
					{Name: "PCMRemoved", Args: []introspect.Arg{
						{Name: "pcm", Type: "o"},
					}},
				},
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), rootPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return nil, err
	}

	reply, err := conn.RequestName(busName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return nil, err
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		logging.Warnf("busserver: bus name %s already owned, running unnamed", busName)
	}
	return s, nil
}

// RegisterTransport exports a PCM1 object for each endpoint t carries (one
// for A2DP transports, none for RFCOMM, two — speaker and mic — for SCO transports,
// per spec.md §3), plus an RFCOMM1 object for SCO transports, then emits
// Manager1.PCMAdded for each. Per spec.md §8's ordering guarantee,
// PCMAdded is only emitted once every object for t is fully exported, so
// no PropertiesChanged can race ahead of it.
func (s *Server) RegisterTransport(t *registry.Transport, cap trctl.Capability) error {
	if _, err := s.registerDevice(t.Device); err != nil {
		return err
	}

	type added struct {
		path  dbus.ObjectPath
		props map[string]dbus.Variant
	}
	var toAnnounce []added

	for epIndex := 0; epIndex < 2; epIndex++ {
		ep := t.Endpoint(epIndex)
		if ep == nil {
			continue
		}
		path := pcmPath(t, epIndex)
		ctrl := trctl.New(t, cap, s.fifo)
		ctrl.Metrics = s.metrics
		obj := &pcmObject{srv: s, t: t, ep: ep, epIndex: epIndex, ctrl: ctrl}

		props, err := prop.Export(s.conn, path, pcmPropsMap(t, ep, cap))
		if err != nil {
			return err
		}
		if err := s.conn.Export(obj, path, PCMIface); err != nil {
			return err
		}
		obj.props = props

		s.mu.Lock()
		s.pcms[ep] = &pcmRegistration{path: path, t: t, ep: ep, cap: cap, ctrl: ctrl, props: props}
		s.mu.Unlock()

		toAnnounce = append(toAnnounce, added{path: path, props: snapshotVariants(t, ep, cap)})
	}

	if t.Identity.Profile.IsSCO() {
		rf := &rfcommObject{srv: s, t: t}
		path := transportPath(t)
		if _, err := prop.Export(s.conn, path, rfcommPropsMap(t)); err != nil {
			return err
		}
		if err := s.conn.Export(rf, path, RFCOMMIface); err != nil {
			return err
		}
		s.mu.Lock()
		s.rfcomms[t] = rf
		s.mu.Unlock()
	}

	for _, a := range toAnnounce {
		if err := s.emitPCMAdded(a.path, a.props); err != nil {
			logging.Errorf("busserver: PCMAdded emit failed for %s: %v", a.path, err)
		}
		if s.mirror != nil {
			adapter, device, profile := mirrorLabels(t)
			s.mirror.PublishPCMAdded(adapter, device, profile, string(a.path), stringifyVariants(a.props))
		}
	}

	if s.startEngine != nil {
		s.startEngine(t)
	}
	return nil
}

// UnregisterTransport unexports every bus object t owns and emits
// Manager1.PCMRemoved last, per spec.md §8.
func (s *Server) UnregisterTransport(t *registry.Transport) {
	var removed []dbus.ObjectPath

	for epIndex := 0; epIndex < 2; epIndex++ {
		ep := t.Endpoint(epIndex)
		if ep == nil {
			continue
		}
		s.mu.Lock()
		reg, ok := s.pcms[ep]
		if ok {
			delete(s.pcms, ep)
		}
		s.mu.Unlock()
		if !ok {
			continue
		}
		if ep.IsOpen() {
			reg.ctrl.ReleasePCM(ep)
		}
		if err := s.conn.Export(nil, reg.path, PCMIface); err != nil {
			logging.Errorf("busserver: unexport %s failed: %v", reg.path, err)
		}
		removed = append(removed, reg.path)
	}

	if t.Identity.Profile.IsSCO() {
		s.mu.Lock()
		_, ok := s.rfcomms[t]
		delete(s.rfcomms, t)
		s.mu.Unlock()
		if ok {
			path := transportPath(t)
			if err := s.conn.Export(nil, path, RFCOMMIface); err != nil {
				logging.Errorf("busserver: unexport %s failed: %v", path, err)
			}
		}
	}

	adapter, device, profile := mirrorLabels(t)
	for _, path := range removed {
		if err := s.emitPCMRemoved(path); err != nil {
			logging.Errorf("busserver: PCMRemoved emit failed for %s: %v", path, err)
		}
		if s.mirror != nil {
			s.mirror.PublishPCMRemoved(adapter, device, profile, string(path))
		}
	}
}

// countBusError increments the per-method bus error counter.
func (s *Server) countBusError(method string) {
	if s.metrics != nil {
		s.metrics.BusMethodErrorsTotal.WithLabelValues(method).Inc()
	}
}

// countPCMOpen increments the per-profile/mode PCM open counter.
func (s *Server) countPCMOpen(identity registry.CodecIdentity, mode string) {
	if s.metrics != nil {
		s.metrics.PCMOpensTotal.WithLabelValues(identity.Profile.String(), mode).Inc()
	}
}

// RefreshMetrics periodically snapshots every registered transport's state
// and delay into the gauge vectors and pushes Delay/Volume changes onto the
// bus, until stop is closed. Delay is driven by the codec engine rather
// than by bus Set calls, so it needs polling instead of the Callback hook
// Volume uses. The backlog gauge is not touched here; the LDAC flow sets it
// directly.
func (s *Server) RefreshMetrics(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.refreshOnce()
		}
	}
}

func (s *Server) refreshOnce() {
	s.mu.Lock()
	regs := make([]*pcmRegistration, 0, len(s.pcms))
	for _, r := range s.pcms {
		regs = append(regs, r)
	}
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.TransportsByState.Reset()
	}
	for _, r := range regs {
		profile := r.t.Identity.Profile.String()
		if s.metrics != nil {
			s.metrics.TransportsByState.WithLabelValues(profile, r.t.State().String()).Inc()
			s.metrics.TransportDelay.WithLabelValues(profile).Set(float64(r.t.EncodingDelay()))
		}
		r.props.SetMust(PCMIface, "Delay", uint16(r.t.EncodingDelay()))
		r.props.SetMust(PCMIface, "Volume", r.ep.Volume().Get())

		if s.mirror != nil {
			adapter, device, pname := mirrorLabels(r.t)
			s.mirror.PublishPropertiesChanged(adapter, device, pname, string(r.path), map[string]string{
				"Delay":  fmt.Sprintf("%d", r.t.EncodingDelay()),
				"Volume": fmt.Sprintf("%d", r.ep.Volume().Get()),
			})
		}
	}
}
