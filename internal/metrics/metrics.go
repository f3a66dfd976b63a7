package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quadra",
			Name:      "booking_created_total",
			Help:      "Count of reservations written, by unit.",
		},
		[]string{"unit"},
	)

	bookingRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quadra",
			Name:      "booking_rejected_total",
			Help:      "Count of reservations rejected at confirm, by reason.",
		},
		[]string{"reason"},
	)

	bookingCanceled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "quadra",
			Name:      "booking_canceled_total",
			Help:      "Count of reservations canceled by staff.",
		},
	)

	lockWait = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "quadra",
			Name:      "lock_wait_seconds",
			Help:      "Time spent waiting for an agenda lock.",
			Buckets:   []float64{.001, .005, .025, .1, .5, 1, 2.5, 5, 10},
		},
		[]string{"key"},
	)
)

// Rejection reasons.
const (
	ReasonCapacity  = "capacity"
	ReasonDuplicate = "duplicate"
	ReasonBusy      = "busy"
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingCreated, bookingRejected, bookingCanceled, lockWait)
	})
}

func IncBookingCreated(unit string) {
	bookingCreated.WithLabelValues(unit).Inc()
}

func IncBookingRejected(reason string) {
	bookingRejected.WithLabelValues(reason).Inc()
}

func IncBookingCanceled() {
	bookingCanceled.Inc()
}

func ObserveLockWait(key string, d time.Duration) {
	lockWait.WithLabelValues(key).Observe(d.Seconds())
}
