package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for EventRegistrations.
const (
	OutcomeRegistered        = "registered"
	OutcomeUnregistered      = "unregistered"
	OutcomeAlreadyRegistered = "already_registered"
	OutcomeCapacityExceeded  = "capacity_exceeded"
	OutcomeNotRegistered     = "not_registered"
	OutcomeNotFound          = "not_found"
	OutcomeError             = "error"
)

var (
	EventRegistrations = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_registrations_total",
			Help:      "Event registration attempts by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// RegistrationCountDrift counts events whose cached registration_count
	// disagreed with the registration rows when synced.
	RegistrationCountDrift = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registration_count_drift_total",
			Help:      "Total number of events whose cached registration count was corrected by a sync",
		},
	)

	RegistrationSyncedEvents = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registration_count_synced_events_total",
			Help:      "Total number of events visited by registration count syncs",
		},
	)

	RevokedTokensDeleted = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revoked_tokens_deleted_total",
			Help:      "Total number of expired revoked-token rows purged",
		},
	)
)
