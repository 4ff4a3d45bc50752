package places

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"github.com/unisphere-campus/server/internal/api/pagination"
	"github.com/unisphere-campus/server/internal/sanitize"
	"github.com/unisphere-campus/server/internal/validation"
)

var ErrNotFound = errors.New("place not found")

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

var listParams = pagination.Params{SkipParam: "offset", LimitParam: "limit", DefaultLimit: 50, MaxLimit: 100}

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("component", "places").Logger()}
}

func (s *Service) Create(ctx context.Context, userID int64, params CreateParams) (*Place, error) {
	params.Name = sanitize.Text(params.Name)
	params.Description = sanitize.Text(params.Description)
	params.Category = sanitize.Text(params.Category)
	params.ImageURL = strings.TrimSpace(params.ImageURL)
	if err := validate(params); err != nil {
		return nil, err
	}
	if err := validateImageURL(params.ImageURL); err != nil {
		return nil, err
	}
	if params.IsFavorite == nil {
		favorite := true
		params.IsFavorite = &favorite
	}

	place, err := s.repo.Create(ctx, userID, params)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Int64("place_id", place.ID).Int64("user_id", userID).Msg("place saved")
	return place, nil
}

func (s *Service) Get(ctx context.Context, id, userID int64) (*Place, error) {
	return s.repo.Get(ctx, id, userID)
}

func (s *Service) List(ctx context.Context, userID int64, page Pagination) (ListResult, error) {
	places, total, err := s.repo.List(ctx, userID, page)
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{Places: places, Total: total, Limit: page.Limit, Offset: page.Offset}, nil
}

func (s *Service) Update(ctx context.Context, id, userID int64, params UpdateParams) (*Place, error) {
	params.Name = sanitize.OptionalText(params.Name)
	params.Description = sanitize.OptionalText(params.Description)
	params.Category = sanitize.OptionalText(params.Category)
	if params.ImageURL != nil {
		trimmed := strings.TrimSpace(*params.ImageURL)
		params.ImageURL = &trimmed
	}
	if params.Name != nil && *params.Name == "" {
		return nil, ValidationError{Field: "name", Message: "must not be empty"}
	}
	if params.Category != nil && *params.Category == "" {
		return nil, ValidationError{Field: "category", Message: "must not be empty"}
	}
	if err := validate(params); err != nil {
		return nil, err
	}
	if params.ImageURL != nil {
		if err := validateImageURL(*params.ImageURL); err != nil {
			return nil, err
		}
	}
	if params.IsEmpty() {
		return s.repo.Get(ctx, id, userID)
	}
	return s.repo.Update(ctx, id, userID, params)
}

func (s *Service) Delete(ctx context.Context, id, userID int64) error {
	return s.repo.Delete(ctx, id, userID)
}

// ParsePagination reads limit (1..100, default 50) and offset.
func ParsePagination(values url.Values) (Pagination, error) {
	offset, err := pagination.Parse(values, listParams)
	if err != nil {
		var pageErr pagination.Error
		if errors.As(err, &pageErr) {
			return Pagination{}, ValidationError{Field: pageErr.Field, Message: pageErr.Message}
		}
		return Pagination{}, err
	}
	return Pagination{Limit: offset.Limit, Offset: offset.Skip}, nil
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

func validateImageURL(raw string) error {
	if err := validation.ValidateURL(raw, "image_url", false); err != nil {
		var urlErr validation.URLValidationError
		if errors.As(err, &urlErr) {
			return ValidationError{Field: "image_url", Message: urlErr.Message}
		}
		return ValidationError{Field: "image_url", Message: err.Error()}
	}
	return nil
}
