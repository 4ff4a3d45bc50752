package events

import (
	"errors"
	"strings"

	"github.com/unisphere-campus/server/internal/sanitize"
	"github.com/unisphere-campus/server/internal/validation"
)

func normalizeCreate(params CreateParams) CreateParams {
	params.Title = sanitize.Text(params.Title)
	params.Description = sanitize.HTML(params.Description)
	params.Category = sanitize.Text(params.Category)
	params.Location = sanitize.Text(params.Location)
	params.ImageURL = strings.TrimSpace(params.ImageURL)
	params.Status = sanitize.Text(params.Status)
	if !params.Date.IsZero() {
		params.Date = params.Date.UTC()
	}
	return params
}

func normalizeUpdate(params UpdateParams) UpdateParams {
	params.Title = sanitize.OptionalText(params.Title)
	params.Description = sanitize.OptionalHTML(params.Description)
	params.Category = sanitize.OptionalText(params.Category)
	params.Location = sanitize.OptionalText(params.Location)
	params.Status = sanitize.OptionalText(params.Status)
	if params.ImageURL != nil {
		trimmed := strings.TrimSpace(*params.ImageURL)
		params.ImageURL = &trimmed
	}
	if params.Date != nil {
		utc := params.Date.UTC()
		params.Date = &utc
	}
	if params.ClearMaxCapacity {
		params.MaxCapacity = nil
	}
	return params
}

func normalizeNotes(notes *string) *string {
	notes = sanitize.OptionalText(notes)
	if notes != nil && *notes == "" {
		return nil
	}
	return notes
}

func validateCreate(params CreateParams) error {
	if err := validation.Struct(params); err != nil {
		return toValidationError(err)
	}
	return validateImageURL(params.ImageURL)
}

func validateUpdate(params UpdateParams) error {
	if params.Title != nil && *params.Title == "" {
		return ValidationError{Field: "title", Message: "must not be empty"}
	}
	if params.Date != nil && params.Date.IsZero() {
		return ValidationError{Field: "date", Message: "must not be empty"}
	}
	if params.Status != nil && *params.Status == "" {
		return ValidationError{Field: "status", Message: "must not be empty"}
	}
	if err := validation.Struct(params); err != nil {
		return toValidationError(err)
	}
	if params.ImageURL != nil {
		return validateImageURL(*params.ImageURL)
	}
	return nil
}

func validateImageURL(raw string) error {
	if err := validation.ValidateURL(raw, "image_url", false); err != nil {
		var urlErr validation.URLValidationError
		if errors.As(err, &urlErr) {
			return ValidationError{Field: urlErr.Field, Message: urlErr.Message}
		}
		return ValidationError{Field: "image_url", Message: err.Error()}
	}
	return nil
}

func toValidationError(err error) error {
	var fieldErr validation.FieldError
	if errors.As(err, &fieldErr) {
		return ValidationError{Field: fieldErr.Field, Message: fieldErr.Message}
	}
	return ValidationError{Message: err.Error()}
}
