package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	NotificationsClassified = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deliverynotify_notifications_classified_total",
			Help: "Delivery events run through the classifier",
		},
		[]string{"type"},
	)

	NotificationsDisplayed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deliverynotify_notifications_displayed_total",
			Help: "Notifications made visible, by delivery path",
		},
		[]string{"path", "type"},
	)

	NotificationsSuppressed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deliverynotify_notifications_suppressed_total",
			Help: "Notifications hidden by the settings gate or deduplication",
		},
		[]string{"path", "reason"},
	)

	MalformedPayloads = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "deliverynotify_malformed_payloads_total",
			Help: "Push payloads that fell back to the generic notification",
		},
	)

	ProximityAlerts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deliverynotify_proximity_alerts_total",
			Help: "Threshold crossings emitted by the proximity monitor",
		},
		[]string{"type"},
	)

	SubscriptionTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deliverynotify_subscription_changes_total",
			Help: "Push subscription records created or removed",
		},
		[]string{"op"},
	)

	Dispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deliverynotify_dispatches_total",
			Help: "Server-initiated pushes by outcome",
		},
		[]string{"status"},
	)

	PushHandlingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deliverynotify_push_handling_duration_seconds",
			Help:    "Time the background agent spends on one push",
			Buckets: prometheus.DefBuckets,
		},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deliverynotify_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deliverynotify_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

var registerOnce sync.Once

// Register adds every collector to reg. Only the first call has an effect.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(
			NotificationsClassified,
			NotificationsDisplayed,
			NotificationsSuppressed,
			MalformedPayloads,
			ProximityAlerts,
			SubscriptionTransitions,
			Dispatches,
			PushHandlingDuration,
			HTTPRequests,
			HTTPRequestDuration,
		)
	})
}
