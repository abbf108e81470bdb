// Package metrics exposes Prometheus instrumentation for the HTTP layer and
// the social graph operations.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cityconnect_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cityconnect_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	HTTPRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cityconnect_rate_limit_hits_total",
			Help: "Total number of requests rejected by a rate limiter",
		},
		[]string{"limiter"},
	)

	// Social graph
	FriendRequestTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cityconnect_friend_request_transitions_total",
			Help: "Friend request state changes by kind",
		},
		[]string{"transition"}, // sent, cancelled, accepted, declined, unfriended
	)

	RatingsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cityconnect_ratings_submitted_total",
			Help: "Total number of ratings created or updated",
		},
	)

	MatchQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cityconnect_match_query_duration_seconds",
			Help:    "Duration of interest match lookups",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"scope"},
	)

	MatchResults = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cityconnect_match_results",
			Help:    "Number of matching candidates before paging",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 1000},
		},
		[]string{"scope"},
	)

	NotificationEmails = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cityconnect_notification_emails_total",
			Help: "Notification emails by kind and outcome",
		},
		[]string{"kind", "result"},
	)
)

func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func RecordRateLimitHit(limiter string) {
	HTTPRateLimitHits.WithLabelValues(limiter).Inc()
}

func RecordFriendRequestTransition(transition string) {
	FriendRequestTransitions.WithLabelValues(transition).Inc()
}

func RecordRatingSubmitted() {
	RatingsSubmitted.Inc()
}

func RecordMatchQuery(scope string, total int, duration time.Duration) {
	MatchQueryDuration.WithLabelValues(scope).Observe(duration.Seconds())
	MatchResults.WithLabelValues(scope).Observe(float64(total))
}

func RecordNotificationEmail(kind string, err error) {
	result := "sent"
	if err != nil {
		result = "failed"
	}
	NotificationEmails.WithLabelValues(kind, result).Inc()
}
