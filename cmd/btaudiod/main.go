// Command btaudiod is the Bluetooth audio bridge daemon: it exports the
// adapter/device/transport registry over D-Bus and drives the per-transport
// codec I/O loops, per spec.md.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cwsl/btaudiod/internal/busserver"
	"github.com/cwsl/btaudiod/internal/btprofile"
	"github.com/cwsl/btaudiod/internal/config"
	"github.com/cwsl/btaudiod/internal/engine"
	"github.com/cwsl/btaudiod/internal/logging"
	"github.com/cwsl/btaudiod/internal/metrics"
	"github.com/cwsl/btaudiod/internal/mqttpub"
	"github.com/cwsl/btaudiod/internal/pcmio"
	"github.com/cwsl/btaudiod/internal/registry"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "/etc/btaudiod/config.yaml", "path to configuration file")
	debug := flag.Bool("debug", false, "enable debug logging")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("btaudiod", version)
		return
	}

	logging.DebugMode = *debug
	if envDebug := os.Getenv("BTAUDIOD_DEBUG"); envDebug != "" {
		logging.DebugMode = envDebug == "1" || envDebug == "true"
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logging.Errorf("failed to load configuration: %v", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logging.Errorf("invalid configuration: %v", err)
		os.Exit(1)
	}
	if !cfg.AnyProfileEnabled() {
		logging.Errorf("no profile enabled in %s; nothing to serve", *configPath)
		os.Exit(1)
	}

	reg := registry.New()
	m := metrics.New(prometheus.DefaultRegisterer)

	var conn *dbus.Conn
	if cfg.Bus.System {
		conn, err = dbus.ConnectSystemBus()
	} else {
		conn, err = dbus.ConnectSessionBus()
	}
	if err != nil {
		logging.Errorf("failed to connect to bus: %v", err)
		os.Exit(1)
	}
	defer conn.Close()

	engineOpts := engine.Options{
		LDACAbrEnabled:   cfg.LDAC.ABR,
		LDACEqmid:        cfg.LDAC.EQMID,
		DaemonOwnsVolume: true,
		Metrics:          m,
	}

	startEngine := func(t *registry.Transport) {
		flow, err := engine.NewFlow(t, engineOpts)
		if err != nil {
			logging.Errorf("main: no I/O flow for transport %v: %v", t.Identity, err)
			return
		}
		r := engine.New(t, flow, func() {
			logging.Debugf("main: I/O loop exited for transport %v", t.Identity)
		})
		go r.Run()
	}

	srv, err := busserver.New(conn, reg, pcmio.UnixFifoOpener{}, m, cfg.Bus.ServiceName, dbus.ObjectPath(cfg.Bus.RootPath), startEngine)
	if err != nil {
		logging.Errorf("failed to start bus server: %v", err)
		os.Exit(1)
	}

	stopRefresh := make(chan struct{})
	go srv.RefreshMetrics(time.Second, stopRefresh)

	if cfg.Prometheus.Enabled {
		go metrics.ServeForever(cfg.Prometheus.Listen)
	}

	var mqttPublisher *mqttpub.Publisher
	if cfg.MQTT.Enabled {
		mqttPublisher, err = mqttpub.New(mqttpub.Config{
			Broker:      cfg.MQTT.Broker,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         cfg.MQTT.QoS,
			Retain:      cfg.MQTT.Retain,
		})
		if err != nil {
			logging.Errorf("failed to start MQTT publisher: %v", err)
			os.Exit(1)
		}
		defer mqttPublisher.Close()
		srv.SetEventMirror(mqttPublisher)
	}

	btprofile.RegisterAll(conn, reg, srv, cfg.HCIFilter, btprofile.Enabled{
		A2DPSource: cfg.Enable.A2DPSource,
		A2DPSink:   cfg.Enable.A2DPSink,
		HSPAG:      cfg.Enable.HSPAG,
		HSPHS:      cfg.Enable.HSPHS,
		HFPAG:      cfg.Enable.HFPAG,
		HFPHF:      cfg.Enable.HFPHF,
	})

	logging.Infof("btaudiod %s ready on %s%s", version, map[bool]string{true: "system bus, ", false: "session bus, "}[cfg.Bus.System], cfg.Bus.ServiceName)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logging.Infof("shutting down")
	close(stopRefresh)
}
