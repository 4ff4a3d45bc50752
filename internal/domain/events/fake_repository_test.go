package events

import (
	"context"
	"sort"
	"sync"
	"time"
)

// memoryRepo is an in-memory Repository. WithTx holds the store lock for
// the whole callback and restores a snapshot when the callback fails.
type memoryRepo struct {
	store *memoryStore
	inTx  bool
}

type memoryStore struct {
	mu            sync.Mutex
	nextEventID   int64
	nextRegID     int64
	events        map[int64]Event
	registrations map[int64]Registration

	// failCreateRegistration makes CreateRegistration fail once, after the
	// counter has been incremented, to exercise rollback.
	failCreateRegistration error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{store: &memoryStore{
		events:        map[int64]Event{},
		registrations: map[int64]Registration{},
	}}
}

func (r *memoryRepo) lock() func() {
	if r.inTx {
		return func() {}
	}
	r.store.mu.Lock()
	return r.store.mu.Unlock
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	if r.inTx {
		return fn(ctx, r)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	events := make(map[int64]Event, len(r.store.events))
	for k, v := range r.store.events {
		events[k] = v
	}
	regs := make(map[int64]Registration, len(r.store.registrations))
	for k, v := range r.store.registrations {
		regs[k] = v
	}

	if err := fn(ctx, &memoryRepo{store: r.store, inTx: true}); err != nil {
		r.store.events = events
		r.store.registrations = regs
		return err
	}
	return nil
}

func (r *memoryRepo) Create(_ context.Context, params CreateParams, createdBy int64) (*Event, error) {
	defer r.lock()()
	r.store.nextEventID++
	now := time.Now().UTC()
	event := Event{
		ID:          r.store.nextEventID,
		Title:       params.Title,
		Description: params.Description,
		Category:    params.Category,
		ImageURL:    params.ImageURL,
		Location:    params.Location,
		Date:        params.Date,
		Status:      params.Status,
		MaxCapacity: params.MaxCapacity,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.store.events[event.ID] = event
	return &event, nil
}

func (r *memoryRepo) GetByID(_ context.Context, id int64) (*Event, error) {
	defer r.lock()()
	event, ok := r.store.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &event, nil
}

func (r *memoryRepo) GetForUpdate(ctx context.Context, id int64) (*Event, error) {
	return r.GetByID(ctx, id)
}

func (r *memoryRepo) List(_ context.Context, filters Filters, page Pagination) ([]Event, error) {
	defer r.lock()()
	ids := r.sortedEventIDs()
	var out []Event
	for _, id := range ids {
		event := r.store.events[id]
		if filters.Category != "" && event.Category != filters.Category {
			continue
		}
		if filters.Status != "" && event.Status != filters.Status {
			continue
		}
		out = append(out, event)
	}
	if page.Skip >= len(out) {
		return []Event{}, nil
	}
	out = out[page.Skip:]
	if page.Limit > 0 && len(out) > page.Limit {
		out = out[:page.Limit]
	}
	return out, nil
}

func (r *memoryRepo) ListIDsAfter(_ context.Context, afterID int64, limit int) ([]int64, error) {
	defer r.lock()()
	var out []int64
	for _, id := range r.sortedEventIDs() {
		if id > afterID {
			out = append(out, id)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memoryRepo) sortedEventIDs() []int64 {
	ids := make([]int64, 0, len(r.store.events))
	for id := range r.store.events {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *memoryRepo) Update(_ context.Context, id int64, params UpdateParams) (*Event, error) {
	defer r.lock()()
	event, ok := r.store.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	if params.Title != nil {
		event.Title = *params.Title
	}
	if params.Description != nil {
		event.Description = *params.Description
	}
	if params.Category != nil {
		event.Category = *params.Category
	}
	if params.ImageURL != nil {
		event.ImageURL = *params.ImageURL
	}
	if params.Location != nil {
		event.Location = *params.Location
	}
	if params.Date != nil {
		event.Date = *params.Date
	}
	if params.Status != nil {
		event.Status = *params.Status
	}
	if params.ClearMaxCapacity {
		event.MaxCapacity = nil
	} else if params.MaxCapacity != nil {
		capacity := *params.MaxCapacity
		event.MaxCapacity = &capacity
	}
	event.UpdatedAt = time.Now().UTC()
	r.store.events[id] = event
	return &event, nil
}

func (r *memoryRepo) Delete(_ context.Context, id int64) error {
	defer r.lock()()
	if _, ok := r.store.events[id]; !ok {
		return ErrNotFound
	}
	delete(r.store.events, id)
	return nil
}

func (r *memoryRepo) FindRegistration(_ context.Context, eventID, userID int64) (*Registration, error) {
	defer r.lock()()
	for _, reg := range r.store.registrations {
		if reg.EventID == eventID && reg.UserID == userID {
			return &reg, nil
		}
	}
	return nil, ErrNotRegistered
}

func (r *memoryRepo) CreateRegistration(_ context.Context, eventID, userID int64, notes *string) (*Registration, error) {
	defer r.lock()()
	if err := r.store.failCreateRegistration; err != nil {
		r.store.failCreateRegistration = nil
		return nil, err
	}
	for _, reg := range r.store.registrations {
		if reg.EventID == eventID && reg.UserID == userID {
			return nil, ErrAlreadyRegistered
		}
	}
	r.store.nextRegID++
	reg := Registration{ID: r.store.nextRegID, EventID: eventID, UserID: userID, Notes: notes, RegisteredAt: time.Now().UTC()}
	r.store.registrations[reg.ID] = reg
	return &reg, nil
}

func (r *memoryRepo) DeleteRegistration(_ context.Context, eventID, userID int64) (bool, error) {
	defer r.lock()()
	for id, reg := range r.store.registrations {
		if reg.EventID == eventID && reg.UserID == userID {
			delete(r.store.registrations, id)
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepo) DeleteRegistrations(_ context.Context, eventID int64) (int64, error) {
	defer r.lock()()
	var n int64
	for id, reg := range r.store.registrations {
		if reg.EventID == eventID {
			delete(r.store.registrations, id)
			n++
		}
	}
	return n, nil
}

func (r *memoryRepo) ListRegistrations(_ context.Context, eventID int64, page Pagination) ([]Registration, error) {
	defer r.lock()()
	var out []Registration
	for _, reg := range r.store.registrations {
		if reg.EventID == eventID {
			out = append(out, reg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if page.Skip >= len(out) {
		return []Registration{}, nil
	}
	out = out[page.Skip:]
	if page.Limit > 0 && len(out) > page.Limit {
		out = out[:page.Limit]
	}
	return out, nil
}

func (r *memoryRepo) CountRegistrations(_ context.Context, eventID int64) (int, error) {
	defer r.lock()()
	n := 0
	for _, reg := range r.store.registrations {
		if reg.EventID == eventID {
			n++
		}
	}
	return n, nil
}

func (r *memoryRepo) RegisteredEventIDs(_ context.Context, userID int64, eventIDs []int64) (map[int64]bool, error) {
	defer r.lock()()
	wanted := map[int64]bool{}
	for _, id := range eventIDs {
		wanted[id] = true
	}
	out := map[int64]bool{}
	for _, reg := range r.store.registrations {
		if reg.UserID == userID && wanted[reg.EventID] {
			out[reg.EventID] = true
		}
	}
	return out, nil
}

func (r *memoryRepo) IncrementRegistrationCount(_ context.Context, eventID int64) (bool, error) {
	defer r.lock()()
	event, ok := r.store.events[eventID]
	if !ok {
		return false, nil
	}
	if event.MaxCapacity != nil && event.RegistrationCount >= *event.MaxCapacity {
		return false, nil
	}
	event.RegistrationCount++
	r.store.events[eventID] = event
	return true, nil
}

func (r *memoryRepo) DecrementRegistrationCount(_ context.Context, eventID int64) error {
	defer r.lock()()
	event, ok := r.store.events[eventID]
	if !ok {
		return ErrNotFound
	}
	if event.RegistrationCount > 0 {
		event.RegistrationCount--
	}
	r.store.events[eventID] = event
	return nil
}

func (r *memoryRepo) SetRegistrationCount(_ context.Context, eventID int64, count int) error {
	defer r.lock()()
	event, ok := r.store.events[eventID]
	if !ok {
		return ErrNotFound
	}
	event.RegistrationCount = count
	r.store.events[eventID] = event
	return nil
}

// setCount forces the cached counter, simulating drift.
func (r *memoryRepo) setCount(eventID int64, count int) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	event := r.store.events[eventID]
	event.RegistrationCount = count
	r.store.events[eventID] = event
}
