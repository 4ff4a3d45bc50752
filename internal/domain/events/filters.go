package events

import (
	"errors"
	"net/url"
	"strings"

	"github.com/unisphere-campus/server/internal/api/pagination"
)

// ParseFilters reads list filters and the skip/limit window from a query
// string. event_status is accepted as an alias of status.
func ParseFilters(values url.Values) (Filters, Pagination, error) {
	filters := Filters{
		Category: strings.TrimSpace(values.Get("category")),
		Status:   strings.TrimSpace(values.Get("status")),
	}
	if filters.Status == "" {
		filters.Status = strings.TrimSpace(values.Get("event_status"))
	}
	if len(filters.Category) > 100 {
		return filters, Pagination{}, FilterError{Field: "category", Message: "must be at most 100 characters"}
	}
	if len(filters.Status) > 50 {
		return filters, Pagination{}, FilterError{Field: "status", Message: "must be at most 50 characters"}
	}

	offset, err := pagination.Parse(values, pagination.Standard)
	if err != nil {
		var pageErr pagination.Error
		if errors.As(err, &pageErr) {
			return filters, Pagination{}, FilterError{Field: pageErr.Field, Message: pageErr.Message}
		}
		return filters, Pagination{}, err
	}
	return filters, Pagination{Skip: offset.Skip, Limit: offset.Limit}, nil
}

// ParsePagination reads only the skip/limit window.
func ParsePagination(values url.Values) (Pagination, error) {
	_, page, err := ParseFilters(url.Values{"skip": values["skip"], "limit": values["limit"]})
	return page, err
}
