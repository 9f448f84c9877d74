package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "shopvisit"

var (
	once sync.Once

	availabilityChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_checks_total",
			Help:      "Count of availability evaluations by result status.",
		},
		[]string{"status"},
	)

	scheduleLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedule_loads_total",
			Help:      "Count of schedule loads by origin (remote, mirror, fallback).",
		},
		[]string{"origin"},
	)

	enquiriesCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enquiries_created_total",
			Help:      "Count of enquiries submitted by source (direct, merge).",
		},
		[]string{"source"},
	)

	ordersCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Count of orders created.",
		},
	)

	paymentToggles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_toggles_total",
			Help:      "Count of payment status toggles by resulting status.",
		},
		[]string{"status"},
	)

	mergeEntries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merge_entries_total",
			Help:      "Count of local cart entries processed on login by outcome.",
		},
		[]string{"outcome"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Count of local API requests by endpoint.",
		},
		[]string{"endpoint"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			availabilityChecks, scheduleLoads, enquiriesCreated,
			ordersCreated, paymentToggles, mergeEntries, httpRequests,
		)
	})
}

func IncAvailabilityCheck(status string) {
	availabilityChecks.WithLabelValues(status).Inc()
}

func IncScheduleLoad(origin string) {
	scheduleLoads.WithLabelValues(origin).Inc()
}

func IncEnquiryCreated(source string) {
	enquiriesCreated.WithLabelValues(source).Inc()
}

func IncOrderCreated() {
	ordersCreated.Inc()
}

func IncPaymentToggle(status string) {
	paymentToggles.WithLabelValues(status).Inc()
}

func IncMergeEntry(outcome string) {
	mergeEntries.WithLabelValues(outcome).Inc()
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}
