package announcements

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/unisphere-campus/server/internal/api/pagination"
	"github.com/unisphere-campus/server/internal/sanitize"
	"github.com/unisphere-campus/server/internal/validation"
)

var ErrNotFound = errors.New("announcement not found")

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NameResolver maps user ids to display names.
type NameResolver interface {
	FullNames(ctx context.Context, ids []int64) (map[int64]string, error)
}

type Service struct {
	repo   Repository
	names  NameResolver
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, names NameResolver, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		names:  names,
		logger: logger.With().Str("component", "announcements").Logger(),
		now:    time.Now,
	}
}

func (s *Service) Create(ctx context.Context, params CreateParams, createdBy int64) (*Announcement, error) {
	params.Title = sanitize.Text(params.Title)
	params.Content = sanitize.HTML(params.Content)
	params.Category = sanitize.Text(params.Category)
	params.Priority = strings.ToLower(strings.TrimSpace(params.Priority))
	if err := validate(params); err != nil {
		return nil, err
	}
	if params.Priority == "" {
		params.Priority = PriorityMedium
	}
	if params.Date == nil {
		now := s.now().UTC()
		params.Date = &now
	} else {
		utc := params.Date.UTC()
		params.Date = &utc
	}

	created, err := s.repo.Create(ctx, params, createdBy)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("announcement_id", created.ID).Int64("created_by", createdBy).Msg("announcement created")
	return s.decorateOne(ctx, created)
}

func (s *Service) Get(ctx context.Context, id int64) (*Announcement, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.decorateOne(ctx, item)
}

func (s *Service) List(ctx context.Context, filters Filters, page Pagination) ([]Announcement, error) {
	items, err := s.repo.List(ctx, filters, page)
	if err != nil {
		return nil, err
	}
	return s.decorate(ctx, items)
}

func (s *Service) ListByCategory(ctx context.Context, category string, page Pagination) ([]Announcement, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, ValidationError{Field: "category", Message: "is required"}
	}
	return s.List(ctx, Filters{Category: category}, page)
}

func (s *Service) ListHighPriority(ctx context.Context, page Pagination) ([]Announcement, error) {
	return s.List(ctx, Filters{Priority: PriorityHigh}, page)
}

func (s *Service) Update(ctx context.Context, id int64, params UpdateParams) (*Announcement, error) {
	params.Title = sanitize.OptionalText(params.Title)
	params.Content = sanitize.OptionalHTML(params.Content)
	params.Category = sanitize.OptionalText(params.Category)
	if params.Priority != nil {
		priority := strings.ToLower(strings.TrimSpace(*params.Priority))
		params.Priority = &priority
	}
	if params.Date != nil {
		utc := params.Date.UTC()
		params.Date = &utc
	}

	required := []struct {
		field string
		value *string
	}{{"title", params.Title}, {"content", params.Content}, {"category", params.Category}}
	for _, r := range required {
		if r.value != nil && *r.value == "" {
			return nil, ValidationError{Field: r.field, Message: "must not be empty"}
		}
	}
	if err := validate(params); err != nil {
		return nil, err
	}
	if params.IsEmpty() {
		return s.Get(ctx, id)
	}

	updated, err := s.repo.Update(ctx, id, params)
	if err != nil {
		return nil, err
	}
	return s.decorateOne(ctx, updated)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Int64("announcement_id", id).Msg("announcement deleted")
	return nil
}

func (s *Service) decorateOne(ctx context.Context, item *Announcement) (*Announcement, error) {
	items, err := s.decorate(ctx, []Announcement{*item})
	if err != nil {
		return nil, err
	}
	return &items[0], nil
}

func (s *Service) decorate(ctx context.Context, items []Announcement) ([]Announcement, error) {
	if s.names == nil || len(items) == 0 {
		return items, nil
	}
	seen := map[int64]bool{}
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if !seen[item.CreatedBy] {
			seen[item.CreatedBy] = true
			ids = append(ids, item.CreatedBy)
		}
	}
	names, err := s.names.FullNames(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve creator names: %w", err)
	}
	for i := range items {
		items[i].CreatorName = names[items[i].CreatedBy]
	}
	return items, nil
}

func validate(value any) error {
	if err := validation.Struct(value); err != nil {
		var fieldErr validation.FieldError
		if errors.As(err, &fieldErr) {
			return ValidationError{Field: fieldErr.Field, Message: fieldErr.Message}
		}
		return ValidationError{Message: err.Error()}
	}
	return nil
}

// ParseFilters reads category, priority and the skip/limit window.
func ParseFilters(values url.Values) (Filters, Pagination, error) {
	filters := Filters{
		Category: strings.TrimSpace(values.Get("category")),
		Priority: strings.ToLower(strings.TrimSpace(values.Get("priority"))),
	}
	switch filters.Priority {
	case "", PriorityLow, PriorityMedium, PriorityHigh:
	default:
		return filters, Pagination{}, ValidationError{Field: "priority", Message: "must be one of: low, medium, high"}
	}

	offset, err := pagination.Parse(values, pagination.Standard)
	if err != nil {
		var pageErr pagination.Error
		if errors.As(err, &pageErr) {
			return filters, Pagination{}, ValidationError{Field: pageErr.Field, Message: pageErr.Message}
		}
		return filters, Pagination{}, err
	}
	return filters, Pagination{Skip: offset.Skip, Limit: offset.Limit}, nil
}
