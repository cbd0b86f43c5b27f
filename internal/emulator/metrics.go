package emulator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	surfaceProxy = "proxy"
	surfaceToken = "token"
	surfaceNone  = "none"

	outcomeEmulated    = "emulated"
	outcomeNotFound    = "not_found"
	outcomeUnsupported = "unsupported"
	outcomeMalformed   = "malformed"
	outcomeError       = "error"
)

type metrics struct {
	calls *prometheus.CounterVec
}

// newMetrics registers with registry when it is non-nil.
func newMetrics(registry prometheus.Registerer) *metrics {
	factory := promauto.With(registry)
	return &metrics{
		calls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "web3call_emulated_calls_total",
				Help: "eth_call requests handled by the virtual contract emulator, by surface and outcome",
			},
			[]string{"surface", "outcome"},
		),
	}
}

func (m *metrics) observe(surface, outcome string) {
	m.calls.WithLabelValues(surface, outcome).Inc()
}
