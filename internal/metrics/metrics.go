// Package metrics holds the Prometheus collectors for the linking flow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// OutcomeSuccess labels a callback that reached Complete.
const OutcomeSuccess = "success"

var (
	// AuthorizeRedirectsTotal counts flows started at the authorize endpoint
	AuthorizeRedirectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linkedin_link_authorize_redirects_total",
		Help: "The total number of authorization redirects issued",
	})

	// CallbacksTotal counts callbacks by outcome: success or the failed stage
	CallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linkedin_link_callbacks_total",
		Help: "The total number of callbacks by outcome",
	}, []string{"outcome"})

	// StageDuration observes how long each pipeline stage took
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "linkedin_link_stage_duration_seconds",
		Help:    "The duration of each callback stage in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	// PostsSkippedTotal counts callbacks whose profile carried no id
	PostsSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linkedin_link_posts_skipped_total",
		Help: "The total number of callbacks that skipped the posts fetch",
	})
)
