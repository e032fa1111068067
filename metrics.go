package kvrows

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeOK            = "ok"
	outcomeStorageError  = "storage_error"
	outcomeEncodingError = "encoding_error"
)

// metrics are per Storage. With a nil Registerer they are still updated but
// never exported; a Registerer can take the metrics of only one Storage.
type metrics struct {
	operations  *prometheus.CounterVec
	durations   *prometheus.HistogramVec
	scannedRows prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kvrows_operations_total",
				Help: "Total adapter operations by outcome.",
			},
			[]string{"op", "outcome"},
		),
		durations: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kvrows_operation_duration_seconds",
				Help:    "Adapter operation latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"op"},
		),
		scannedRows: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "kvrows_scanned_rows_total",
				Help: "Total rows returned by data scans, including undecodable ones.",
			},
		),
	}
}

func (m *metrics) observe(op string, start time.Time, err error) {
	m.operations.WithLabelValues(op, outcomeOf(err)).Inc()
	m.durations.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, ErrEncoding):
		return outcomeEncodingError
	default:
		return outcomeStorageError
	}
}
