package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTransportsByStateCounts(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.TransportsByState.WithLabelValues("a2dp-sink", "active").Set(2)
	require.InDelta(t, 2, testutil.ToFloat64(m.TransportsByState.WithLabelValues("a2dp-sink", "active")), 0)
}

func TestCodecErrorsTotalIncrements(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.CodecErrorsTotal.WithLabelValues("sbc", "decode").Inc()
	m.CodecErrorsTotal.WithLabelValues("sbc", "decode").Inc()
	require.InDelta(t, 2, testutil.ToFloat64(m.CodecErrorsTotal.WithLabelValues("sbc", "decode")), 0)
}
