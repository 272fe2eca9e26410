package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fieldbook"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status code.",
		},
		[]string{"endpoint", "code"},
	)

	reservationsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_created_total",
			Help:      "Reservations persisted by booking type.",
		},
		[]string{"booking_type"},
	)

	slotConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_conflicts_total",
			Help:      "Booking attempts rejected because the slot was taken.",
		},
	)

	occurrencesSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "membership_occurrences_skipped_total",
			Help:      "Membership occurrences skipped during series creation by reason.",
		},
		[]string{"reason"},
	)

	cancellations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cancellations_total",
			Help:      "Cancelled reservations by kind and refund status.",
		},
		[]string{"kind", "refund_status"},
	)

	refundAmount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refund_amount_total",
			Help:      "Sum of refunds granted by currency.",
		},
		[]string{"currency"},
	)

	syncTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_tasks_total",
			Help:      "Sheets mirror tasks by outcome.",
		},
		[]string{"outcome"},
	)

	domainEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "domain_events_total",
			Help:      "Domain events published on the in-process bus.",
		},
		[]string{"type"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			reservationsCreated,
			slotConflicts,
			occurrencesSkipped,
			cancellations,
			refundAmount,
			syncTasks,
			domainEvents,
		)
	})
}

func IncHTTP(endpoint, code string) {
	httpRequests.WithLabelValues(endpoint, code).Inc()
}

func IncReservationCreated(bookingType string) {
	reservationsCreated.WithLabelValues(bookingType).Inc()
}

func IncSlotConflict() {
	slotConflicts.Inc()
}

func IncOccurrenceSkipped(reason string) {
	occurrencesSkipped.WithLabelValues(reason).Inc()
}

// ObserveCancellation counts n cancelled reservations.
func ObserveCancellation(kind, refundStatus string, n int) {
	cancellations.WithLabelValues(kind, refundStatus).Add(float64(n))
}

func AddRefund(currency string, amount float64) {
	if amount <= 0 {
		return
	}
	refundAmount.WithLabelValues(currency).Add(amount)
}

func IncSyncTask(outcome string) {
	syncTasks.WithLabelValues(outcome).Inc()
}

func IncDomainEvent(eventType string) {
	domainEvents.WithLabelValues(eventType).Inc()
}
