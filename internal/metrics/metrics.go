// Package metrics registers the service's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookEventsTotal counts processed billing webhook events by
	// type and outcome (processed, duplicate, failed, ignored).
	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "equipqr",
		Subsystem: "webhook",
		Name:      "events_total",
		Help:      "Billing webhook events by type and outcome.",
	}, []string{"event_type", "outcome"})

	// FeatureAccessDecisionsTotal counts feature-access resolutions by
	// feature and reason.
	FeatureAccessDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "equipqr",
		Subsystem: "feature_access",
		Name:      "decisions_total",
		Help:      "Feature access decisions by feature and reason.",
	}, []string{"feature", "reason"})

	// HTTPRequestDuration observes request latency by route and status.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "equipqr",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route, method and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method", "status"})

	// SessionRefreshesTotal counts session snapshot refreshes by result
	// (fresh, refreshed, coalesced, stale, discarded).
	SessionRefreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "equipqr",
		Subsystem: "session",
		Name:      "refreshes_total",
		Help:      "Session snapshot refresh attempts by result.",
	}, []string{"result"})
)
