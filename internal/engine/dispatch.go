package engine

import (
	"fmt"

	"github.com/cwsl/btaudiod/internal/codec/ldac"
	"github.com/cwsl/btaudiod/internal/metrics"
	"github.com/cwsl/btaudiod/internal/registry"
)

// Options carries the small set of config-driven knobs a flow needs at
// construction time, per spec.md §6 Environment/config.
type Options struct {
	LDACAbrEnabled   bool
	LDACEqmid        ldac.QualityIndex
	DaemonOwnsVolume bool // not read by any flow: sink flows always apply software volume scaling
	Metrics          *metrics.Metrics // optional; nil disables codec/backlog/gap observations
}

// NewFlow builds the Flow for a transport's {profile, codec} identity, per
// the component mapping in SPEC_FULL.md §6 / spec.md §4.8. btaudiod's own
// role is fixed by the transport's Profile: A2dpSource transports run a
// "source" flow that reads local PCM and writes the BT link, A2dpSink
// transports run a "sink" flow that does the reverse, and SCO transports
// always run a duplex flow.
func NewFlow(t *registry.Transport, opts Options) (Flow, error) {
	flow, err := newFlow(t, opts)
	if err != nil {
		return nil, err
	}
	if withMetrics, ok := flow.(interface{ setMetrics(*metrics.Metrics) }); ok {
		withMetrics.setMetrics(opts.Metrics)
	}
	return flow, nil
}

func newFlow(t *registry.Transport, opts Options) (Flow, error) {
	switch {
	case t.Identity.Profile == registry.ProfileA2DPSink:
		ep := t.Endpoint(0)
		switch t.Identity.A2DP {
		case registry.A2DPCodecSBC:
			return NewSBCSinkFlow(t, ep), nil
		case registry.A2DPCodecAAC:
			return NewAACSinkFlow(t, ep), nil
		default:
			return nil, fmt.Errorf("engine: sink flow not supported for codec %v", t.Identity.A2DP)
		}

	case t.Identity.Profile == registry.ProfileA2DPSource:
		ep := t.Endpoint(0)
		switch t.Identity.A2DP {
		case registry.A2DPCodecSBC:
			return NewSBCSourceFlow(t, ep), nil
		case registry.A2DPCodecAAC:
			return NewAACSourceFlow(t, ep), nil
		case registry.A2DPCodecAptX:
			return NewAptXSourceFlow(t, ep), nil
		case registry.A2DPCodecLDAC:
			return NewLDACSourceFlow(t, ep, opts.LDACAbrEnabled, opts.LDACEqmid), nil
		default:
			return nil, fmt.Errorf("engine: source flow not supported for codec %v", t.Identity.A2DP)
		}

	case t.Identity.Profile.IsSCO():
		speaker, mic := t.Endpoint(0), t.Endpoint(1)
		switch t.Identity.SCO {
		case registry.SCOCodecCVSD:
			return NewCVSDFlow(t, speaker, mic), nil
		case registry.SCOCodecMSBC:
			return NewMSBCFlow(t, speaker, mic), nil
		default:
			return nil, fmt.Errorf("engine: unsupported SCO codec %v", t.Identity.SCO)
		}

	default:
		return nil, fmt.Errorf("engine: no I/O flow for profile %v (e.g. RFCOMM carries no PCM)", t.Identity.Profile)
	}
}
