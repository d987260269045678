package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	DirectionSend    = "send"
	DirectionReceive = "receive"
	DirectionRespond = "respond"

	ResultOK    = "ok"
	ResultError = "error"
)

var (
	registerOnce sync.Once

	hostMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sproto",
			Subsystem: "host",
			Name:      "messages_total",
			Help:      "RPC host messages by direction, kind and result.",
		},
		[]string{"direction", "kind", "result"},
	)
	pendingSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sproto",
			Subsystem: "host",
			Name:      "pending_sessions",
			Help:      "Sessions awaiting a response.",
		},
	)
	codecBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sproto",
			Subsystem: "codec",
			Name:      "bytes_total",
			Help:      "Bytes produced by codec operations.",
		},
		[]string{"op"},
	)
	codecDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sproto",
			Subsystem: "codec",
			Name:      "duration_seconds",
			Help:      "Codec operation duration in seconds.",
			Buckets:   []float64{1e-6, 1e-5, 1e-4, 1e-3, 1e-2, 1e-1},
		},
		[]string{"op"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(hostMessages, pendingSessions, codecBytes, codecDuration)
	})
}

func RecordHostMessage(direction, kind string, err error) {
	RegisterMetrics()
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	hostMessages.WithLabelValues(direction, kind, result).Inc()
}

func SetPendingSessions(n int) {
	RegisterMetrics()
	pendingSessions.Set(float64(n))
}

// RecordCodec counts output bytes for a successful encode, decode, pack or
// unpack call.
func RecordCodec(op string, n int, duration time.Duration) {
	RegisterMetrics()
	codecBytes.WithLabelValues(op).Add(float64(n))
	codecDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// WriteMetrics dumps every metric on the default registry to path in the
// Prometheus text format. The file is replaced atomically.
func WriteMetrics(path string) error {
	RegisterMetrics()
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
