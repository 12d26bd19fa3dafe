package sessions

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "identity"
	metricsSubsystem = "sessions"

	refreshSourceCache  = "cache"
	refreshSourceLedger = "ledger"
)

var (
	sessionsIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "issued_total",
		Help:      "Number of sessions issued.",
	})
	refreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "refresh_token_lookups_total",
			Help:      "Number of refresh tokens found, by the store they came from.",
		},
		[]string{"source"},
	)
	sessionsRevokedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "revoked_total",
		Help:      "Number of sessions ended by logout.",
	})
	eventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "events_published_total",
			Help:      "Number of token events published, by kind.",
		},
		[]string{"event"},
	)
	eventPublishFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "event_publish_failures_total",
			Help:      "Number of token events that could not be published, by kind.",
		},
		[]string{"event"},
	)
	eventsAppliedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "events_applied_total",
			Help:      "Number of token events applied to the local cache, by kind.",
		},
		[]string{"event"},
	)
)
