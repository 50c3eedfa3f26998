// Package metrics exposes booking-service counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	MetricBookingsTotal            = "booking_bookings_total"
	MetricTransitionsTotal         = "booking_status_transitions_total"
	MetricInvoiceConflictsTotal    = "booking_invoice_number_conflicts_total"
	MetricInvoiceStatusTotal       = "booking_invoice_status_changes_total"
	MetricRemindersDispatchedTotal = "booking_reminders_dispatched_total"
	MetricEventsPublishedTotal     = "booking_outbox_events_published_total"
)

// Metrics is safe for concurrent use. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	bookings            *prometheus.CounterVec
	transitions         *prometheus.CounterVec
	invoiceConflicts    prometheus.Counter
	invoiceStatus       *prometheus.CounterVec
	remindersDispatched prometheus.Counter
	eventsPublished     *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricBookingsTotal,
			Help: "Booking attempts by outcome.",
		}, []string{"outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricTransitionsTotal,
			Help: "Applied appointment status transitions.",
		}, []string{"from", "to"}),
		invoiceConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricInvoiceConflictsTotal,
			Help: "Invoice number unique-constraint conflicts seen while booking.",
		}),
		invoiceStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricInvoiceStatusTotal,
			Help: "Invoice status changes.",
		}, []string{"from", "to"}),
		remindersDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRemindersDispatchedTotal,
			Help: "Reminders handed to the delivery transport.",
		}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricEventsPublishedTotal,
			Help: "Outbox events relayed to Kafka.",
		}, []string{"event_type"}),
	}
	m.registry.MustRegister(
		m.bookings,
		m.transitions,
		m.invoiceConflicts,
		m.invoiceStatus,
		m.remindersDispatched,
		m.eventsPublished,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Booking(outcome string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) InvoiceConflict() {
	if m == nil {
		return
	}
	m.invoiceConflicts.Inc()
}

func (m *Metrics) InvoiceStatus(from, to string) {
	if m == nil {
		return
	}
	m.invoiceStatus.WithLabelValues(from, to).Inc()
}

func (m *Metrics) RemindersDispatched(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.remindersDispatched.Add(float64(n))
}

func (m *Metrics) EventPublished(eventType string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(eventType).Inc()
}
