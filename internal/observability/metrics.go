package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BookingOperations counts orchestrated operations by name and outcome code.
	BookingOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courtbook_booking_operations_total",
		Help: "Total booking operations by operation and outcome",
	}, []string{"operation", "outcome"})

	// BookingTransactionLatency records the duration of each orchestrated transaction.
	BookingTransactionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "courtbook_booking_transaction_seconds",
		Help:    "Booking transaction latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// ReservationTransitions counts reservation state changes.
	ReservationTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courtbook_reservation_transitions_total",
		Help: "Total reservation transitions by source and target status",
	}, []string{"from", "to"})

	// SlotClaimConflicts counts lost compare-and-set races on slot status.
	SlotClaimConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courtbook_slot_claim_conflicts_total",
		Help: "Total slot claims rejected because the slot was no longer available",
	})

	// SanctionsExpired counts sanctions deactivated by the expiry sweeper.
	SanctionsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courtbook_sanctions_expired_total",
		Help: "Total sanctions deactivated after their expiry",
	})

	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courtbook_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// AvailabilityCacheLookups counts availability cache hits, misses and
	// fills discarded because the venue was invalidated meanwhile.
	AvailabilityCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courtbook_availability_cache_lookups_total",
		Help: "Availability cache lookups by result",
	}, []string{"result"})
)

// TrackTransaction returns a function that records transaction latency when called (e.g. defer).
func TrackTransaction(operation string) func() {
	start := time.Now()
	return func() {
		BookingTransactionLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

// RecordOperation increments the outcome counter. An empty code means success.
func RecordOperation(operation, code string) {
	if code == "" {
		code = "OK"
	}
	BookingOperations.WithLabelValues(operation, code).Inc()
}
