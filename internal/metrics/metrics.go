package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tablebook",
			Name:      "api_requests_total",
			Help:      "Calls made to the booking API by operation and HTTP status (0 on transport error).",
		},
		[]string{"op", "status"},
	)

	apiDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tablebook",
			Name:      "api_request_duration_seconds",
			Help:      "Latency of booking API calls by operation.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tablebook",
			Name:      "booking_created_total",
			Help:      "Bookings submitted through the wizard by outcome.",
		},
		[]string{"outcome"},
	)

	bookingUpdated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tablebook",
			Name:      "booking_updated_total",
			Help:      "Bookings edited by customers.",
		},
	)

	bookingCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tablebook",
			Name:      "booking_cancelled_total",
			Help:      "Bookings cancelled by customers.",
		},
	)

	logins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tablebook",
			Name:      "login_total",
			Help:      "Login attempts by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(apiRequests, apiDuration, bookingCreated, bookingUpdated, bookingCancelled, logins)
	})
}

func ObserveAPICall(op string, status int, took time.Duration) {
	apiRequests.WithLabelValues(op, strconv.Itoa(status)).Inc()
	apiDuration.WithLabelValues(op).Observe(took.Seconds())
}

func IncBookingCreated(outcome string) {
	bookingCreated.WithLabelValues(outcome).Inc()
}

func IncBookingUpdated() {
	bookingUpdated.Inc()
}

func IncBookingCancelled() {
	bookingCancelled.Inc()
}

func IncLogin(outcome string) {
	logins.WithLabelValues(outcome).Inc()
}
