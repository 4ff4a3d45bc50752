package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/unisphere-campus/server/internal/metrics"
	"github.com/unisphere-campus/server/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("github.com/unisphere-campus/server/internal/domain/events")

// SyncChunkSize is the number of event ids fetched per page when syncing
// every event.
const SyncChunkSize = 500

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("component", "events").Logger(),
	}
}

func (s *Service) CreateEvent(ctx context.Context, params CreateParams, createdBy int64) (*Event, error) {
	params = normalizeCreate(params)
	if err := validateCreate(params); err != nil {
		return nil, err
	}
	if params.Status == "" {
		params.Status = StatusUpcoming
	}

	event, err := s.repo.Create(ctx, params, createdBy)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("event_id", event.ID).Int64("created_by", createdBy).Msg("event created")
	return event, nil
}

func (s *Service) GetEvent(ctx context.Context, id int64) (*Event, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListEvents(ctx context.Context, filters Filters, page Pagination) ([]Event, error) {
	return s.repo.List(ctx, filters, page)
}

// UpdateEvent applies a partial update. Lowering max_capacity below the
// current count is allowed; existing registrations are kept and new ones are
// refused until seats free up.
func (s *Service) UpdateEvent(ctx context.Context, id int64, params UpdateParams) (*Event, error) {
	params = normalizeUpdate(params)
	if err := validateUpdate(params); err != nil {
		return nil, err
	}
	if params.IsEmpty() {
		return s.repo.GetByID(ctx, id)
	}

	event, err := s.repo.Update(ctx, id, params)
	if err != nil {
		return nil, err
	}
	if event.MaxCapacity != nil && event.RegistrationCount > *event.MaxCapacity {
		s.logger.Warn().
			Int64("event_id", id).
			Int("max_capacity", *event.MaxCapacity).
			Int("registration_count", event.RegistrationCount).
			Msg("capacity lowered below current registrations")
	}
	return event, nil
}

// DeleteEvent removes the event and all of its registrations atomically and
// returns how many registrations were removed.
func (s *Service) DeleteEvent(ctx context.Context, id int64) (int64, error) {
	var removed int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if _, err := tx.GetForUpdate(ctx, id); err != nil {
			return err
		}
		n, err := tx.DeleteRegistrations(ctx, id)
		if err != nil {
			return err
		}
		removed = n
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info().Int64("event_id", id).Int64("registrations_removed", removed).Msg("event deleted")
	return removed, nil
}

func (s *Service) IsUserRegistered(ctx context.Context, eventID, userID int64) (bool, error) {
	_, err := s.repo.FindRegistration(ctx, eventID, userID)
	if errors.Is(err, ErrNotRegistered) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RegisteredEventIDs reports which of eventIDs the user is registered for.
func (s *Service) RegisteredEventIDs(ctx context.Context, userID int64, eventIDs []int64) (map[int64]bool, error) {
	if len(eventIDs) == 0 {
		return map[int64]bool{}, nil
	}
	return s.repo.RegisteredEventIDs(ctx, userID, eventIDs)
}

func (s *Service) IsEventFull(ctx context.Context, eventID int64) (bool, error) {
	event, err := s.repo.GetByID(ctx, eventID)
	if err != nil {
		return false, err
	}
	return event.IsFull(), nil
}

func (s *Service) AvailableSpots(ctx context.Context, eventID int64) (*int, error) {
	event, err := s.repo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return event.AvailableSpots(), nil
}

// RegisterUserForEvent claims a seat for the user. The event row is locked
// for the duration of the transaction and the counter is only incremented
// while the event has room, so concurrent callers racing for the last seat
// produce exactly one winner.
func (s *Service) RegisterUserForEvent(ctx context.Context, eventID, userID int64, notes *string) (*Registration, error) {
	ctx, span := tracer.Start(ctx, "events.RegisterUserForEvent")
	defer span.End()
	span.SetAttributes(attribute.Int64("event.id", eventID), attribute.Int64("user.id", userID))
	start := time.Now()
	notes = normalizeNotes(notes)

	var registration *Registration
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if _, err := tx.GetForUpdate(ctx, eventID); err != nil {
			return err
		}

		_, err := tx.FindRegistration(ctx, eventID, userID)
		switch {
		case err == nil:
			return ErrAlreadyRegistered
		case !errors.Is(err, ErrNotRegistered):
			return err
		}

		ok, err := tx.IncrementRegistrationCount(ctx, eventID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrCapacityExceeded
		}

		registration, err = tx.CreateRegistration(ctx, eventID, userID, notes)
		return err
	})

	outcome := registrationOutcome(err, metrics.OutcomeRegistered)
	span.SetAttributes(attribute.String("registration.outcome", outcome))
	metrics.EventRegistrations.WithLabelValues("register", outcome).Inc()
	if outcome == metrics.OutcomeError {
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordQuery("register_user", start, err)
		return nil, fmt.Errorf("register user %d for event %d: %w", userID, eventID, err)
	}
	metrics.RecordQuery("register_user", start, nil)
	if err != nil {
		s.logger.Debug().Int64("event_id", eventID).Int64("user_id", userID).Str("outcome", outcome).Msg("registration refused")
		return nil, err
	}

	s.logger.Info().Int64("event_id", eventID).Int64("user_id", userID).Msg("user registered for event")
	return registration, nil
}

// UnregisterUserFromEvent frees the user's seat. The counter never drops
// below zero even if it had drifted.
func (s *Service) UnregisterUserFromEvent(ctx context.Context, eventID, userID int64) error {
	ctx, span := tracer.Start(ctx, "events.UnregisterUserFromEvent")
	defer span.End()
	span.SetAttributes(attribute.Int64("event.id", eventID), attribute.Int64("user.id", userID))
	start := time.Now()

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if _, err := tx.GetForUpdate(ctx, eventID); err != nil {
			return err
		}
		deleted, err := tx.DeleteRegistration(ctx, eventID, userID)
		if err != nil {
			return err
		}
		if !deleted {
			return ErrNotRegistered
		}
		return tx.DecrementRegistrationCount(ctx, eventID)
	})

	outcome := registrationOutcome(err, metrics.OutcomeUnregistered)
	span.SetAttributes(attribute.String("registration.outcome", outcome))
	metrics.EventRegistrations.WithLabelValues("unregister", outcome).Inc()
	if outcome == metrics.OutcomeError {
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordQuery("unregister_user", start, err)
		return fmt.Errorf("unregister user %d from event %d: %w", userID, eventID, err)
	}
	metrics.RecordQuery("unregister_user", start, nil)
	if err != nil {
		return err
	}

	s.logger.Info().Int64("event_id", eventID).Int64("user_id", userID).Msg("user unregistered from event")
	return nil
}

// SyncRegistrationCount recomputes the cached counter from the registration
// rows. Running it repeatedly is a no-op once the counter is correct.
func (s *Service) SyncRegistrationCount(ctx context.Context, eventID int64) (*SyncResult, error) {
	var result SyncResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		event, err := tx.GetForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		actual, err := tx.CountRegistrations(ctx, eventID)
		if err != nil {
			return err
		}

		result = SyncResult{Previous: event.RegistrationCount, Current: actual}
		if actual != event.RegistrationCount {
			if err := tx.SetRegistrationCount(ctx, eventID, actual); err != nil {
				return err
			}
			result.Changed = true
			event.RegistrationCount = actual
		}
		result.Event = event
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RegistrationSyncedEvents.Inc()
	if result.Changed {
		metrics.RegistrationCountDrift.Inc()
		s.logger.Warn().
			Int64("event_id", eventID).
			Int("previous_count", result.Previous).
			Int("actual_count", result.Current).
			Msg("registration count drift corrected")
	}
	return &result, nil
}

// SyncAllRegistrationCounts walks every event in id order and syncs it.
// Events deleted while the walk is in progress are skipped. It returns the
// number of events synced.
func (s *Service) SyncAllRegistrationCounts(ctx context.Context) (int, error) {
	synced, corrected := 0, 0
	var afterID int64
	for {
		ids, err := s.repo.ListIDsAfter(ctx, afterID, SyncChunkSize)
		if err != nil {
			return synced, fmt.Errorf("list event ids: %w", err)
		}
		if len(ids) == 0 {
			break
		}

		for _, id := range ids {
			result, err := s.SyncRegistrationCount(ctx, id)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return synced, fmt.Errorf("sync event %d: %w", id, err)
			}
			synced++
			if result.Changed {
				corrected++
			}
		}

		afterID = ids[len(ids)-1]
		if len(ids) < SyncChunkSize {
			break
		}
	}

	s.logger.Info().Int("synced_events", synced).Int("corrected_events", corrected).Msg("registration counts synced")
	return synced, nil
}

func (s *Service) ListRegistrations(ctx context.Context, eventID int64, page Pagination) ([]Registration, error) {
	if _, err := s.repo.GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	return s.repo.ListRegistrations(ctx, eventID, page)
}

// CapacityView summarizes an already loaded event for API responses.
type CapacityView struct {
	IsFull         bool
	AvailableSpots *int
}

func NewCapacityView(event Event) CapacityView {
	return CapacityView{IsFull: event.IsFull(), AvailableSpots: event.AvailableSpots()}
}

func registrationOutcome(err error, success string) string {
	switch {
	case err == nil:
		return success
	case errors.Is(err, ErrAlreadyRegistered):
		return metrics.OutcomeAlreadyRegistered
	case errors.Is(err, ErrCapacityExceeded):
		return metrics.OutcomeCapacityExceeded
	case errors.Is(err, ErrNotRegistered):
		return metrics.OutcomeNotRegistered
	case errors.Is(err, ErrNotFound):
		return metrics.OutcomeNotFound
	}
	return metrics.OutcomeError
}
