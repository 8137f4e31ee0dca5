// Package metrics provides Prometheus metrics for the feed relay.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FeedChecksTotal counts feed checks by resulting status code.
	FeedChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rsshook",
			Name:      "feed_checks_total",
			Help:      "Total number of feed checks by resulting status code",
		},
		[]string{"status"},
	)

	// DeliveriesTotal counts webhook delivery attempts by result.
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rsshook",
			Name:      "deliveries_total",
			Help:      "Total number of webhook deliveries by result",
		},
		[]string{"result"},
	)

	// SeededTotal counts article ids recorded as sent without delivery on initial checks.
	SeededTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rsshook",
			Name:      "seeded_articles_total",
			Help:      "Total number of article ids recorded without delivery during initial checks",
		},
	)

	// SentRecordSize tracks the number of remembered sent article ids.
	SentRecordSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rsshook",
			Name:      "sent_record_size",
			Help:      "Number of article ids currently held in the sent article record",
		},
	)

	// CycleDuration measures how long a scheduling cycle takes, checks included.
	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "rsshook",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of scheduling cycles in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// DueFeeds observes how many feeds were dispatched per cycle.
	DueFeeds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "rsshook",
			Name:      "due_feeds",
			Help:      "Distribution of feeds dispatched per scheduling cycle",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)
)

// RecordCheck records a finished feed check.
func RecordCheck(status int) {
	FeedChecksTotal.WithLabelValues(strconv.Itoa(status)).Inc()
}

// RecordDelivery records a webhook delivery outcome.
func RecordDelivery(success bool) {
	if success {
		DeliveriesTotal.WithLabelValues("success").Inc()
		return
	}
	DeliveriesTotal.WithLabelValues("failure").Inc()
}

// RecordCycle records a completed scheduling cycle.
func RecordCycle(dueCount int, seconds float64) {
	DueFeeds.Observe(float64(dueCount))
	CycleDuration.Observe(seconds)
}
