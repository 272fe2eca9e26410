package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	return m.GetCounter().GetValue()
}

func TestMetrics(t *testing.T) {
	Register()
	Register()

	assert.NotPanics(t, func() {
		IncHTTP("test_endpoint", "200")
		IncSlotConflict()
		IncSyncTask("completed")
	})
}

func TestReservationCounters(t *testing.T) {
	before := counterValue(t, reservationsCreated.WithLabelValues("membership"))
	IncReservationCreated("membership")
	IncReservationCreated("membership")
	assert.Equal(t, before+2, counterValue(t, reservationsCreated.WithLabelValues("membership")))

	skipped := counterValue(t, occurrencesSkipped.WithLabelValues("booked"))
	IncOccurrenceSkipped("booked")
	assert.Equal(t, skipped+1, counterValue(t, occurrencesSkipped.WithLabelValues("booked")))
}

func TestRefundCounters(t *testing.T) {
	before := counterValue(t, refundAmount.WithLabelValues("LAK"))
	AddRefund("LAK", 15000)
	AddRefund("LAK", 0)
	AddRefund("LAK", -5)
	assert.Equal(t, before+15000, counterValue(t, refundAmount.WithLabelValues("LAK")))

	cancelled := counterValue(t, cancellations.WithLabelValues("series", "none"))
	ObserveCancellation("series", "none", 3)
	assert.Equal(t, cancelled+3, counterValue(t, cancellations.WithLabelValues("series", "none")))
}

func TestDomainEvents(t *testing.T) {
	before := counterValue(t, domainEvents.WithLabelValues("series_created"))
	IncDomainEvent("series_created")
	assert.Equal(t, before+1, counterValue(t, domainEvents.WithLabelValues("series_created")))
}
