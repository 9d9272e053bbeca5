// Package metrics registers btaudiod's Prometheus collectors, grounded on
// the teacher's prometheus.go: promauto-constructed vectors held on one
// struct, updated from the registry and the per-transport I/O loops,
// served over promhttp at the configured listen address.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cwsl/btaudiod/internal/logging"
)

// Metrics holds every collector btaudiod exports.
type Metrics struct {
	TransportsByState    *prometheus.GaugeVec // labels: profile, state
	TransportBacklog     *prometheus.GaugeVec // labels: profile; bytes
	TransportDelay       *prometheus.GaugeVec // labels: profile; 0.1ms units
	DrainDuration        *prometheus.HistogramVec
	CodecErrorsTotal     *prometheus.CounterVec // labels: codec, kind
	RTPSequenceGapsTotal *prometheus.CounterVec // labels: profile
	PCMOpensTotal        *prometheus.CounterVec // labels: profile, mode
	BusMethodErrorsTotal *prometheus.CounterVec // labels: method
}

// New registers every collector against reg (prometheus.DefaultRegisterer
// in production, a fresh prometheus.NewRegistry() in tests so repeated
// calls don't collide on duplicate metric names).
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TransportsByState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "btaudio_transports",
			Help: "Number of registered transports by profile and state.",
		}, []string{"profile", "state"}),
		TransportBacklog: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "btaudio_transport_backlog_bytes",
			Help: "Bluetooth socket send backlog per transport, in bytes.",
		}, []string{"profile"}),
		TransportDelay: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "btaudio_transport_encoding_delay_tenths_ms",
			Help: "Encoding delay estimate per transport, in 0.1ms units.",
		}, []string{"profile"}),
		DrainDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "btaudio_drain_duration_seconds",
			Help:    "Time spent waiting for a PCM drain to complete.",
			Buckets: prometheus.DefBuckets,
		}, []string{"profile"}),
		CodecErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "btaudio_codec_errors_total",
			Help: "Codec decode/encode errors, by codec and error kind.",
		}, []string{"codec", "kind"}),
		RTPSequenceGapsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "btaudio_rtp_sequence_gaps_total",
			Help: "RTP sequence number gaps observed on inbound streams.",
		}, []string{"profile"}),
		PCMOpensTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "btaudio_pcm_opens_total",
			Help: "PCM Open() calls served, by profile and mode.",
		}, []string{"profile", "mode"}),
		BusMethodErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "btaudio_bus_method_errors_total",
			Help: "D-Bus method calls that returned an error, by method name.",
		}, []string{"method"}),
	}
}

// ServeForever starts the /metrics HTTP endpoint and blocks until it
// fails; callers normally invoke it as `go metrics.ServeForever(addr)`.
func ServeForever(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logging.Infof("metrics: listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logging.Errorf("metrics: server exited: %v", err)
	}
}
